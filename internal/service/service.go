// Package service ties the profile builder, partitioned index, match engine and submission store together.
package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/hyperjump/kindred/internal/embedding"
	"github.com/hyperjump/kindred/internal/index"
	"github.com/hyperjump/kindred/internal/match"
	"github.com/hyperjump/kindred/internal/metrics"
	"github.com/hyperjump/kindred/internal/models"
	"github.com/hyperjump/kindred/internal/profile"
	"github.com/hyperjump/kindred/internal/storage"
)

// PartialRegistrationError means the index rejected a vector after its submission row was written,
// and deleting that row failed too. The store now holds a submission with no indexed vector.
type PartialRegistrationError struct {
	UserID       string
	SubmissionID string
	InsertErr    error
	RollbackErr  error
}

func (e *PartialRegistrationError) Error() string {
	return fmt.Sprintf("partial registration for %s: index insert failed (%v) and submission %s could not be removed (%v)",
		e.UserID, e.InsertErr, e.SubmissionID, e.RollbackErr)
}

func (e *PartialRegistrationError) Unwrap() []error {
	return []error{e.InsertErr, e.RollbackErr}
}

// ErrStoreDisabled is returned by submission lookups when no store is configured.
var ErrStoreDisabled = errors.New("submission store disabled")

// Status summarizes the service state for the status endpoint.
type Status struct {
	Index                  index.Stats                `json:"index"`
	Submissions            int64                      `json:"submissions"`
	SubmissionsByPartition map[models.Partition]int64 `json:"submissions_by_partition,omitempty"`
	StorageBytes           int64                      `json:"storage_bytes"`
	DefaultTopK            int                        `json:"default_top_k"`
	MaxTopK                int                        `json:"max_top_k"`
	Threshold              float64                    `json:"threshold"`
	EmbeddingModel         string                     `json:"embedding_model,omitempty"`
}

// Service owns every component; cmd/kindred creates exactly one.
type Service struct {
	builder *profile.Builder
	index   *index.PartitionedIndex
	engine  *match.Engine
	store   storage.SubmissionStore
	dbPath  string
	model   string
	closers []io.Closer
	metrics metrics.Recorder
	logger  *zap.Logger
}

// Option configures a Service.
type Option func(*Service)

// WithStore records every registration in store. Without a store registrations live only in memory.
func WithStore(store storage.SubmissionStore, dbPath string) Option {
	return func(s *Service) {
		s.store = store
		s.dbPath = dbPath
	}
}

// WithMetrics sets the metrics recorder.
func WithMetrics(r metrics.Recorder) Option {
	return func(s *Service) {
		if r != nil {
			s.metrics = r
		}
	}
}

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option {
	return func(s *Service) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithCloser registers a resource, such as the embedder, to release on Close.
func WithCloser(c io.Closer) Option {
	return func(s *Service) { s.closers = append(s.closers, c) }
}

// WithModelName sets the embedding model reported by Status.
func WithModelName(name string) Option {
	return func(s *Service) { s.model = name }
}

// New creates a Service.
func New(builder *profile.Builder, idx *index.PartitionedIndex, engine *match.Engine, opts ...Option) *Service {
	s := &Service{
		builder: builder,
		index:   idx,
		engine:  engine,
		metrics: metrics.Noop{},
		logger:  zap.NewNop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Engine returns the match engine, e.g. to update its limits on config reload.
func (s *Service) Engine() *match.Engine {
	return s.engine
}

// Register builds userID's profile vector from responses and adds it to partition.
// Embedding runs before any lock is taken. The submission row is written before the index insert
// and removed again if the insert fails.
func (s *Service) Register(ctx context.Context, userID string, responses map[string]string, partition models.Partition) error {
	start := time.Now()
	err := s.register(ctx, strings.TrimSpace(userID), responses, partition)
	s.metrics.RecordRegister(string(partition), time.Since(start), err)
	if err == nil {
		s.metrics.SetIndexSize(string(partition), s.index.Stats().Sizes[partition])
	}
	return err
}

func (s *Service) register(ctx context.Context, userID string, responses map[string]string, partition models.Partition) error {
	if userID == "" {
		return fmt.Errorf("%w: rollno is required", models.ErrInvalidRequest)
	}
	if !partition.Valid() {
		return fmt.Errorf("%w: %q", models.ErrInvalidPartition, partition)
	}
	if s.index.Contains(userID) {
		return fmt.Errorf("%w: %s", index.ErrDuplicateUser, userID)
	}

	vec, err := s.builder.Build(ctx, responses)
	if err != nil {
		if errors.Is(err, embedding.ErrEmbeddingUnavailable) {
			s.metrics.RecordEmbeddingError()
		}
		return fmt.Errorf("build profile for %s: %w", userID, err)
	}

	var sub *models.Submission
	if s.store != nil {
		sub = &models.Submission{UserID: userID, Partition: partition, Responses: responses}
		if err := s.store.CreateSubmission(ctx, sub); err != nil {
			return fmt.Errorf("store submission for %s: %w", userID, err)
		}
	}

	entry, err := s.index.Insert(userID, partition, vec)
	if err != nil {
		if sub == nil {
			return err
		}
		// The request context may already be done; the rollback must still run.
		if rbErr := s.store.DeleteSubmission(context.WithoutCancel(ctx), sub.ID); rbErr != nil {
			s.logger.Error("rollback failed",
				zap.String("user", userID),
				zap.String("submission", sub.ID),
				zap.Error(rbErr))
			return &PartialRegistrationError{UserID: userID, SubmissionID: sub.ID, InsertErr: err, RollbackErr: rbErr}
		}
		return err
	}

	s.logger.Info("user registered",
		zap.String("user", userID),
		zap.String("partition", string(partition)),
		zap.Int("ordinal", entry.Ordinal))
	return nil
}

// FindMatches returns userID's matches. A nil threshold uses the configured default.
func (s *Service) FindMatches(ctx context.Context, userID string, topK int, threshold *float64) ([]models.Match, error) {
	t := s.engine.Limits().DefaultThreshold
	if threshold != nil {
		t = *threshold
	}
	return s.engine.FindMatches(ctx, strings.TrimSpace(userID), topK, t)
}

// Status reports index sizes, stored submissions and the active limits.
func (s *Service) Status(ctx context.Context) (*Status, error) {
	limits := s.engine.Limits()
	st := &Status{
		Index:          s.index.Stats(),
		DefaultTopK:    limits.DefaultTopK,
		MaxTopK:        limits.MaxTopK,
		Threshold:      limits.DefaultThreshold,
		EmbeddingModel: s.model,
	}
	if s.store != nil {
		n, err := s.store.CountSubmissions(ctx)
		if err != nil {
			return nil, fmt.Errorf("count submissions: %w", err)
		}
		st.Submissions = n
		byPartition, err := s.store.CountByPartition(ctx)
		if err != nil {
			return nil, fmt.Errorf("count submissions by partition: %w", err)
		}
		st.SubmissionsByPartition = byPartition
		size, err := storage.DatabaseSizeBytes(s.dbPath)
		if err != nil {
			s.logger.Warn("database size unavailable", zap.Error(err))
		}
		st.StorageBytes = size
	}
	return st, nil
}

// Submissions returns every stored submission for userID, oldest first. Unknown users get an empty slice.
func (s *Service) Submissions(ctx context.Context, userID string) ([]*models.Submission, error) {
	if s.store == nil {
		return nil, ErrStoreDisabled
	}
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return nil, fmt.Errorf("%w: rollno is required", models.ErrInvalidRequest)
	}
	subs, err := s.store.GetSubmissionsByUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	if subs == nil {
		subs = []*models.Submission{}
	}
	return subs, nil
}

// Submission returns the stored submission with the given id.
func (s *Service) Submission(ctx context.Context, id string) (*models.Submission, error) {
	if s.store == nil {
		return nil, ErrStoreDisabled
	}
	return s.store.GetSubmission(ctx, id)
}

// Close releases the store and every registered closer.
func (s *Service) Close() error {
	var errs []error
	if s.store != nil {
		if err := s.store.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close store: %w", err))
		}
	}
	for _, c := range s.closers {
		if err := c.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
