// Package storage defines the persistence interface for survey submissions.
package storage

import (
	"context"
	"errors"

	"github.com/hyperjump/kindred/internal/models"
)

// ErrSubmissionNotFound is returned when a submission id does not exist.
var ErrSubmissionNotFound = errors.New("submission not found")

// SubmissionStore records the raw answers behind each registration.
// It is an audit log; the match index is rebuilt from nothing on restart.
type SubmissionStore interface {
	CreateSubmission(ctx context.Context, sub *models.Submission) error
	GetSubmission(ctx context.Context, id string) (*models.Submission, error)
	GetSubmissionsByUser(ctx context.Context, userID string) ([]*models.Submission, error)
	DeleteSubmission(ctx context.Context, id string) error

	CountSubmissions(ctx context.Context) (int64, error)
	CountByPartition(ctx context.Context) (map[models.Partition]int64, error)

	Close() error
}
