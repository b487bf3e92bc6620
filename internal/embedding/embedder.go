// Package embedding provides text embedders (ONNX, OpenAI-compatible, mock) and an LRU caching wrapper.
package embedding

import (
	"context"
	"errors"
	"math"
)

// ErrEmbeddingUnavailable marks failures of the embedding backend. It is the only error class worth retrying.
var ErrEmbeddingUnavailable = errors.New("embedding unavailable")

// ErrEmptyInput is returned when the input text is empty.
var ErrEmptyInput = errors.New("embedding: empty input")

// Embedder produces unit-normalized vector embeddings for text. Identical input yields identical output.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)
	Dimensions() int
	Close() error
}

// embedEach implements EmbedBatch in terms of Embed for embedders without a native batch call.
func embedEach(ctx context.Context, e Embedder, texts []string) ([][]float32, error) {
	embeddings := make([][]float32, len(texts))
	for i, text := range texts {
		emb, err := e.Embed(ctx, text)
		if err != nil {
			return nil, err
		}
		embeddings[i] = emb
	}
	return embeddings, nil
}

// normalizeInPlace scales x to unit L2 norm; a zero vector is left unchanged.
func normalizeInPlace(x []float32) {
	var sum float64
	for _, v := range x {
		sum += float64(v) * float64(v)
	}
	if sum == 0 {
		return
	}
	inv := 1.0 / math.Sqrt(sum)
	for i := range x {
		x[i] = float32(float64(x[i]) * inv)
	}
}
