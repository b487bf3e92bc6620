package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"

	"github.com/hyperjump/kindred/internal/models"
)

// SQLiteStorage implements SubmissionStore using SQLite.
type SQLiteStorage struct {
	db   *sql.DB
	path string
}

var _ SubmissionStore = (*SQLiteStorage)(nil)

// NewSQLiteStorage opens or creates a SQLite database at dbPath and initializes the schema.
// Parent directories are created if they do not exist.
func NewSQLiteStorage(dbPath string) (*SQLiteStorage, error) {
	if dir := filepath.Dir(dbPath); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}
	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to enable WAL: %w", err)
	}

	if err := initSchema(db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	return &SQLiteStorage{db: db, path: dbPath}, nil
}

func initSchema(db *sql.DB) error {
	schema := `
	CREATE TABLE IF NOT EXISTS submissions (
		id TEXT PRIMARY KEY,
		user_id TEXT NOT NULL,
		partition TEXT NOT NULL,
		responses TEXT NOT NULL,
		created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
	);

	CREATE INDEX IF NOT EXISTS idx_submissions_user_id ON submissions(user_id);
	CREATE INDEX IF NOT EXISTS idx_submissions_partition ON submissions(partition);
	`
	_, err := db.Exec(schema)
	return err
}

// Path returns the database file path.
func (s *SQLiteStorage) Path() string {
	return s.path
}

// CreateSubmission inserts a submission. ID and CreatedAt are filled in when empty.
func (s *SQLiteStorage) CreateSubmission(ctx context.Context, sub *models.Submission) error {
	responsesJSON, err := json.Marshal(sub.Responses)
	if err != nil {
		return fmt.Errorf("failed to marshal responses: %w", err)
	}
	if sub.ID == "" {
		sub.ID = uuid.NewString()
	}
	if sub.CreatedAt.IsZero() {
		sub.CreatedAt = time.Now().UTC()
	}

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO submissions (id, user_id, partition, responses, created_at)
		 VALUES (?, ?, ?, ?, ?)`,
		sub.ID, sub.UserID, string(sub.Partition), string(responsesJSON), sub.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert submission: %w", err)
	}
	return nil
}

// GetSubmission returns a submission by ID.
func (s *SQLiteStorage) GetSubmission(ctx context.Context, id string) (*models.Submission, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, user_id, partition, responses, created_at
		 FROM submissions WHERE id = ?`, id)
	sub, err := scanSubmission(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ErrSubmissionNotFound, id)
	}
	return sub, err
}

// GetSubmissionsByUser returns a user's submissions, oldest first.
func (s *SQLiteStorage) GetSubmissionsByUser(ctx context.Context, userID string) ([]*models.Submission, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, user_id, partition, responses, created_at
		 FROM submissions WHERE user_id = ? ORDER BY created_at, rowid`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var subs []*models.Submission
	for rows.Next() {
		sub, err := scanSubmission(rows)
		if err != nil {
			return nil, err
		}
		subs = append(subs, sub)
	}
	return subs, rows.Err()
}

// DeleteSubmission removes a submission. Deleting a missing id returns ErrSubmissionNotFound.
func (s *SQLiteStorage) DeleteSubmission(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, "DELETE FROM submissions WHERE id = ?", id)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("%w: %s", ErrSubmissionNotFound, id)
	}
	return nil
}

// CountSubmissions returns the total number of submissions.
func (s *SQLiteStorage) CountSubmissions(ctx context.Context) (int64, error) {
	var count int64
	err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM submissions").Scan(&count)
	return count, err
}

// CountByPartition returns the number of submissions per partition.
func (s *SQLiteStorage) CountByPartition(ctx context.Context) (map[models.Partition]int64, error) {
	rows, err := s.db.QueryContext(ctx, "SELECT partition, COUNT(*) FROM submissions GROUP BY partition")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	counts := make(map[models.Partition]int64)
	for rows.Next() {
		var p string
		var n int64
		if err := rows.Scan(&p, &n); err != nil {
			return nil, err
		}
		counts[models.Partition(p)] = n
	}
	return counts, rows.Err()
}

// Close closes the database connection.
func (s *SQLiteStorage) Close() error {
	return s.db.Close()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanSubmission(row scanner) (*models.Submission, error) {
	var sub models.Submission
	var partition, responsesJSON string
	if err := row.Scan(&sub.ID, &sub.UserID, &partition, &responsesJSON, &sub.CreatedAt); err != nil {
		return nil, err
	}
	sub.Partition = models.Partition(partition)
	if err := json.Unmarshal([]byte(responsesJSON), &sub.Responses); err != nil {
		return nil, fmt.Errorf("failed to unmarshal responses: %w", err)
	}
	return &sub, nil
}
