// Package profile turns a user's survey answers into a single normalized profile vector.
package profile

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/hyperjump/kindred/internal/embedding"
	"github.com/hyperjump/kindred/internal/vector"
)

// ErrEmptyProfile is returned when no answers remain after exclusions.
var ErrEmptyProfile = errors.New("empty profile: no answers to embed")

const (
	defaultWeight      = 1.0
	defaultConcurrency = 4
)

// Builder embeds each answer, scales it by its question weight and normalizes the sum.
type Builder struct {
	embedder    embedding.Embedder
	weights     map[string]float64
	excluded    map[string]struct{}
	timeout     time.Duration
	concurrency int
	logger      *zap.Logger
}

// Option configures a Builder.
type Option func(*Builder)

// WithWeights sets per-question weights. Questions without a weight use 1.0.
func WithWeights(weights map[string]float64) Option {
	return func(b *Builder) {
		b.weights = make(map[string]float64, len(weights))
		for q, w := range weights {
			b.weights[q] = w
		}
	}
}

// WithExcluded skips the given questions, e.g. the one that carries the partition.
func WithExcluded(questions ...string) Option {
	return func(b *Builder) {
		for _, q := range questions {
			b.excluded[q] = struct{}{}
		}
	}
}

// WithTimeout bounds each embedding call. Zero means no per-call timeout.
func WithTimeout(d time.Duration) Option {
	return func(b *Builder) { b.timeout = d }
}

// WithConcurrency limits how many answers are embedded at once.
func WithConcurrency(n int) Option {
	return func(b *Builder) {
		if n > 0 {
			b.concurrency = n
		}
	}
}

// WithLogger sets a logger for debug output.
func WithLogger(l *zap.Logger) Option {
	return func(b *Builder) {
		if l != nil {
			b.logger = l
		}
	}
}

// NewBuilder creates a Builder around embedder.
func NewBuilder(embedder embedding.Embedder, opts ...Option) *Builder {
	b := &Builder{
		embedder:    embedder,
		weights:     map[string]float64{},
		excluded:    map[string]struct{}{},
		concurrency: defaultConcurrency,
		logger:      zap.NewNop(),
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Weight returns the weight applied to question.
func (b *Builder) Weight(question string) float64 {
	if w, ok := b.weights[question]; ok {
		return w
	}
	return defaultWeight
}

// Excluded reports whether question is left out of the profile vector.
func (b *Builder) Excluded(question string) bool {
	_, ok := b.excluded[question]
	return ok
}

// Build returns the unit-norm profile vector for responses (question ID -> answer).
// Questions are accumulated in sorted order so the result does not depend on map iteration order.
func (b *Builder) Build(ctx context.Context, responses map[string]string) ([]float32, error) {
	questions := make([]string, 0, len(responses))
	for q := range responses {
		if !b.Excluded(q) {
			questions = append(questions, q)
		}
	}
	if len(questions) == 0 {
		return nil, ErrEmptyProfile
	}
	sort.Strings(questions)

	start := time.Now()
	embeddings := make([][]float32, len(questions))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(b.concurrency)
	for i, q := range questions {
		g.Go(func() error {
			ectx := gctx
			if b.timeout > 0 {
				var cancel context.CancelFunc
				ectx, cancel = context.WithTimeout(gctx, b.timeout)
				defer cancel()
			}
			emb, err := b.embedder.Embed(ectx, responses[q])
			if err != nil {
				return fmt.Errorf("%w: question %s: %w", embedding.ErrEmbeddingUnavailable, q, err)
			}
			embeddings[i] = emb
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	weights := make([]float64, len(questions))
	for i, q := range questions {
		weights[i] = b.Weight(q)
	}
	sum, err := vector.WeightedAdd(embeddings, weights)
	if err != nil {
		return nil, fmt.Errorf("combine answers: %w", err)
	}
	vec, err := vector.Normalize(sum)
	if err != nil {
		return nil, fmt.Errorf("normalize profile: %w", err)
	}
	b.logger.Debug("profile vector built",
		zap.Int("questions", len(questions)),
		zap.Duration("elapsed", time.Since(start)))
	return vec, nil
}
