// Package cli provides CLI utilities for kindred: output formatting and the HTTP client used by client subcommands.
package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"time"

	"github.com/hyperjump/kindred/internal/models"
	"github.com/hyperjump/kindred/internal/service"
	"github.com/hyperjump/kindred/pkg/utils"
)

// OutputFormat is the format for command output.
type OutputFormat string

const (
	// OutputText is human-readable text (default).
	OutputText OutputFormat = "text"
	// OutputJSON is structured JSON for machine consumption.
	OutputJSON OutputFormat = "json"
)

// ParseOutputFormat accepts "text" or "json".
func ParseOutputFormat(s string) (OutputFormat, error) {
	switch OutputFormat(s) {
	case OutputText, OutputJSON:
		return OutputFormat(s), nil
	default:
		return "", fmt.Errorf("unknown output format %q; use text or json", s)
	}
}

// WriteMatchResults writes a user's matches to w in the given format.
func WriteMatchResults(w io.Writer, userID string, response *models.MatchResponse, format OutputFormat) error {
	if format == OutputJSON {
		return writeJSON(w, response)
	}
	if len(response.Matches) == 0 {
		_, err := fmt.Fprintf(w, "No matches for %s\n", userID)
		return err
	}
	fmt.Fprintf(w, "\n%d matches for %s\n\n", len(response.Matches), userID)
	fmt.Fprintf(w, "%-5s %-20s %s\n", "RANK", "ROLLNO", "SIMILARITY")
	for i, m := range response.Matches {
		fmt.Fprintf(w, "%-5d %-20s %6.2f%%\n", i+1, m.UserID, m.Similarity)
	}
	_, err := fmt.Fprintln(w)
	return err
}

// WriteStatus writes server status to w in the given format.
func WriteStatus(w io.Writer, st *service.Status, format OutputFormat) error {
	if format == OutputJSON {
		return writeJSON(w, st)
	}
	fmt.Fprintf(w, "users:              %d   # vectors across all partitions\n", st.Index.Total)
	for _, p := range sortedPartitions(st.Index.Sizes) {
		fmt.Fprintf(w, "  %-17s %d\n", p+":", st.Index.Sizes[models.Partition(p)])
	}
	fmt.Fprintf(w, "submissions:        %d   # rows in the submission log\n", st.Submissions)
	for _, p := range sortedPartitions(st.SubmissionsByPartition) {
		fmt.Fprintf(w, "  %-17s %d\n", p+":", st.SubmissionsByPartition[models.Partition(p)])
	}
	if st.StorageBytes > 0 {
		fmt.Fprintf(w, "storage_bytes:      %d\n", st.StorageBytes)
	}
	fmt.Fprintln(w)
	fmt.Fprintln(w, "# configuration")
	fmt.Fprintf(w, "dimensions:         %d\n", st.Index.Dimensions)
	if st.EmbeddingModel != "" {
		fmt.Fprintf(w, "embedding_model:    %s\n", st.EmbeddingModel)
	}
	fmt.Fprintf(w, "default_top_k:      %d\n", st.DefaultTopK)
	fmt.Fprintf(w, "max_top_k:          %d\n", st.MaxTopK)
	_, err := fmt.Fprintf(w, "threshold:          %.2f\n", st.Threshold)
	return err
}

// WriteSubmissions writes a user's stored submissions in the given format.
func WriteSubmissions(w io.Writer, resp *models.SubmissionsResponse, format OutputFormat) error {
	if format == OutputJSON {
		return writeJSON(w, resp)
	}
	if len(resp.Submissions) == 0 {
		_, err := fmt.Fprintf(w, "No submissions for %s.\n", resp.UserID)
		return err
	}
	for i, sub := range resp.Submissions {
		fmt.Fprintf(w, "%d. %s  %s  %s\n", i+1, sub.ID, sub.Partition, sub.CreatedAt.Format(time.RFC3339))
		questions := make([]string, 0, len(sub.Responses))
		for q := range sub.Responses {
			questions = append(questions, q)
		}
		sort.Strings(questions)
		for _, q := range questions {
			fmt.Fprintf(w, "   %s: %s\n", q, utils.Truncate(sub.Responses[q], 80))
		}
	}
	return nil
}

func sortedPartitions[V any](m map[models.Partition]V) []string {
	out := make([]string, 0, len(m))
	for p := range m {
		out = append(out, string(p))
	}
	sort.Strings(out)
	return out
}

func writeJSON(w io.Writer, v interface{}) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
