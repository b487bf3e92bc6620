package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/hyperjump/kindred/pkg/utils"
)

// AnswersFlag collects repeated --answer qid=text flags.
type AnswersFlag map[string]string

func (a AnswersFlag) String() string {
	parts := make([]string, 0, len(a))
	for k, v := range a {
		parts = append(parts, k+"="+v)
	}
	return strings.Join(parts, ",")
}

// Set implements flag.Value.
func (a AnswersFlag) Set(s string) error {
	k, v, ok := utils.SplitKeyValue(s)
	if !ok {
		return fmt.Errorf("answer must look like qid=text, got %q", s)
	}
	a[k] = v
	return nil
}

// LoadAnswers reads a JSON object of question id to answer from path, or from stdin when path is "-".
// Flags in extra override answers from the file.
func LoadAnswers(path string, stdin io.Reader, extra map[string]string) (map[string]string, error) {
	answers := make(map[string]string)
	if path != "" {
		var r io.Reader = stdin
		if path != "-" {
			f, err := os.Open(path)
			if err != nil {
				return nil, fmt.Errorf("open answers: %w", err)
			}
			defer f.Close()
			r = f
		}
		if err := json.NewDecoder(r).Decode(&answers); err != nil {
			return nil, fmt.Errorf("parse answers: %w", err)
		}
	}
	for k, v := range extra {
		answers[k] = v
	}
	return answers, nil
}
