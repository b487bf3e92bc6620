package models

import (
	"errors"
	"fmt"
	"strings"
)

// ErrInvalidRequest wraps all request validation failures.
var ErrInvalidRequest = errors.New("invalid request")

// RegisterRequest is the body of a registration call.
type RegisterRequest struct {
	UserID    string            `json:"rollno"`
	Responses map[string]string `json:"responses"`
	// Partition is optional; when empty it is read from the partition question's answer.
	Partition string `json:"partition,omitempty"`
}

// Validate checks the request shape. It does not resolve the partition.
func (r *RegisterRequest) Validate() error {
	r.UserID = strings.TrimSpace(r.UserID)
	if r.UserID == "" {
		return fmt.Errorf("%w: rollno is required", ErrInvalidRequest)
	}
	if len(r.Responses) == 0 {
		return fmt.Errorf("%w: responses cannot be empty", ErrInvalidRequest)
	}
	for qid, answer := range r.Responses {
		if strings.TrimSpace(answer) == "" {
			return fmt.Errorf("%w: answer to %s is blank", ErrInvalidRequest, qid)
		}
	}
	return nil
}

// ResolvePartition returns the explicit partition if set, otherwise the answer to partitionQuestion.
func (r *RegisterRequest) ResolvePartition(partitionQuestion string) (Partition, error) {
	if r.Partition != "" {
		return ParsePartition(r.Partition)
	}
	answer, ok := r.Responses[partitionQuestion]
	if !ok {
		return "", fmt.Errorf("%w: missing answer to partition question %s", ErrInvalidPartition, partitionQuestion)
	}
	return ParsePartition(answer)
}

// MatchRequest is the body of a match call.
type MatchRequest struct {
	UserID    string   `json:"rollno"`
	TopK      int      `json:"top_k,omitempty"`
	Threshold *float64 `json:"threshold,omitempty"` // nil uses the configured threshold
}

// Validate checks the request shape and normalizes TopK. defaultTopK applies when TopK is unset
// and maxTopK caps it.
func (r *MatchRequest) Validate(defaultTopK, maxTopK int) error {
	r.UserID = strings.TrimSpace(r.UserID)
	if r.UserID == "" {
		return fmt.Errorf("%w: rollno is required", ErrInvalidRequest)
	}
	if r.TopK < 0 {
		return fmt.Errorf("%w: top_k must not be negative", ErrInvalidRequest)
	}
	if r.TopK == 0 {
		r.TopK = defaultTopK
	}
	if maxTopK > 0 && r.TopK > maxTopK {
		r.TopK = maxTopK
	}
	return nil
}
