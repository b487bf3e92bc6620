package cli

import (
	"flag"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestAnswersFlag(t *testing.T) {
	answers := AnswersFlag{}
	fs := flag.NewFlagSet("register", flag.ContinueOnError)
	fs.Var(answers, "answer", "")
	if err := fs.Parse([]string{"--answer", "q1=hiking", "--answer", "q4=male"}); err != nil {
		t.Fatal(err)
	}
	if answers["q1"] != "hiking" || answers["q4"] != "male" {
		t.Errorf("answers: %v", answers)
	}
	if err := answers.Set("broken"); err == nil {
		t.Error("expected error for missing =")
	}
}

func TestLoadAnswers(t *testing.T) {
	path := filepath.Join(t.TempDir(), "answers.json")
	if err := os.WriteFile(path, []byte(`{"q1":"hiking","q2":"jazz"}`), 0644); err != nil {
		t.Fatal(err)
	}
	got, err := LoadAnswers(path, nil, map[string]string{"q2": "rock", "q4": "female"})
	if err != nil {
		t.Fatal(err)
	}
	if got["q1"] != "hiking" || got["q2"] != "rock" || got["q4"] != "female" {
		t.Errorf("answers: %v", got)
	}

	got, err = LoadAnswers("-", strings.NewReader(`{"q3":"tea"}`), nil)
	if err != nil {
		t.Fatal(err)
	}
	if got["q3"] != "tea" {
		t.Errorf("stdin answers: %v", got)
	}

	if _, err := LoadAnswers(filepath.Join(t.TempDir(), "missing.json"), nil, nil); err == nil {
		t.Error("expected error for missing file")
	}
	if _, err := LoadAnswers("-", strings.NewReader("not json"), nil); err == nil {
		t.Error("expected error for invalid json")
	}
}
