// Package match finds the closest profiles in the opposite partition and scores them relative to the best one.
package match

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/hyperjump/kindred/internal/metrics"
	"github.com/hyperjump/kindred/internal/models"
	"github.com/hyperjump/kindred/internal/vector"
)

// ErrInvalidThreshold is returned for thresholds outside [0, 100].
var ErrInvalidThreshold = errors.New("threshold must be between 0 and 100")

// Limits bounds match queries. It is swapped atomically when the config is reloaded.
type Limits struct {
	DefaultTopK      int
	MaxTopK          int
	DefaultThreshold float64
}

// DefaultLimits returns top_k 50 capped at 500 with a 60% threshold.
func DefaultLimits() Limits {
	return Limits{DefaultTopK: 50, MaxTopK: 500, DefaultThreshold: 60}
}

// Index is the part of index.PartitionedIndex the engine queries.
type Index interface {
	Lookup(id string) (models.Partition, []float32, error)
	Search(partition models.Partition, query []float32, k int) ([]vector.Result, error)
}

// Engine runs match queries against a partitioned index.
type Engine struct {
	index   Index
	limits  atomic.Pointer[Limits]
	metrics metrics.Recorder
	logger  *zap.Logger
}

// Option configures an Engine.
type Option func(*Engine)

// WithLogger sets the logger. Nil keeps the no-op logger.
func WithLogger(l *zap.Logger) Option {
	return func(e *Engine) {
		if l != nil {
			e.logger = l
		}
	}
}

// WithMetrics sets the metrics recorder.
func WithMetrics(r metrics.Recorder) Option {
	return func(e *Engine) {
		if r != nil {
			e.metrics = r
		}
	}
}

// WithLimits sets the initial query limits.
func WithLimits(l Limits) Option {
	return func(e *Engine) { e.SetLimits(l) }
}

// NewEngine creates a match engine over idx.
func NewEngine(idx Index, opts ...Option) *Engine {
	e := &Engine{
		index:   idx,
		metrics: metrics.Noop{},
		logger:  zap.NewNop(),
	}
	e.SetLimits(DefaultLimits())
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// SetLimits replaces the query limits. Non-positive values fall back to the defaults.
func (e *Engine) SetLimits(l Limits) {
	d := DefaultLimits()
	if l.DefaultTopK <= 0 {
		l.DefaultTopK = d.DefaultTopK
	}
	if l.MaxTopK <= 0 {
		l.MaxTopK = d.MaxTopK
	}
	if l.DefaultTopK > l.MaxTopK {
		l.DefaultTopK = l.MaxTopK
	}
	if l.DefaultThreshold < 0 || l.DefaultThreshold > 100 {
		l.DefaultThreshold = d.DefaultThreshold
	}
	e.limits.Store(&l)
}

// Limits returns the current query limits.
func (e *Engine) Limits() Limits {
	return *e.limits.Load()
}

// FindMatches returns up to topK users from the opposite partition whose score, as a percentage of the
// best score, is at least threshold. Results keep descending score order.
// topK <= 0 uses the configured default and is capped at the configured maximum.
func (e *Engine) FindMatches(ctx context.Context, requesterID string, topK int, threshold float64) ([]models.Match, error) {
	start := time.Now()
	matches, err := e.findMatches(ctx, requesterID, topK, threshold)
	e.metrics.RecordMatch(time.Since(start), len(matches), err)
	return matches, err
}

func (e *Engine) findMatches(ctx context.Context, requesterID string, topK int, threshold float64) ([]models.Match, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if threshold < 0 || threshold > 100 || math.IsNaN(threshold) {
		return nil, fmt.Errorf("%w: got %v", ErrInvalidThreshold, threshold)
	}
	limits := e.Limits()
	if topK <= 0 {
		topK = limits.DefaultTopK
	}
	if topK > limits.MaxTopK {
		topK = limits.MaxTopK
	}

	partition, query, err := e.index.Lookup(requesterID)
	if err != nil {
		return nil, err
	}
	target := partition.Opposite()

	results, err := e.index.Search(target, query, topK+1)
	if err != nil {
		return nil, fmt.Errorf("search %s partition: %w", target, err)
	}

	candidates := results[:0:0]
	for _, r := range results {
		if r.ID == requesterID {
			e.logger.Warn("requester found in opposite partition",
				zap.String("user", requesterID),
				zap.String("partition", string(partition)))
			e.metrics.RecordSelfMatch()
			continue
		}
		candidates = append(candidates, r)
	}
	if len(candidates) > topK {
		candidates = candidates[:topK]
	}

	matches := make([]models.Match, 0, len(candidates))
	if len(candidates) == 0 {
		return matches, nil
	}

	maxScore := candidates[0].Score
	for _, c := range candidates {
		pct := 0.0
		if maxScore > 0 {
			pct = c.Score / maxScore * 100
		}
		// Rounding is for display only; 99.996 must not pass a threshold of 100.
		if pct >= threshold {
			matches = append(matches, models.Match{UserID: c.ID, Similarity: roundTo(pct, 2)})
		}
	}

	e.logger.Debug("match query",
		zap.String("user", requesterID),
		zap.String("target", string(target)),
		zap.Int("top_k", topK),
		zap.Float64("threshold", threshold),
		zap.Int("candidates", len(candidates)),
		zap.Int("matches", len(matches)))
	return matches, nil
}

func roundTo(v float64, places int) float64 {
	p := math.Pow(10, float64(places))
	return math.Round(v*p) / p
}
