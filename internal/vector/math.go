package vector

import "fmt"

// Normalize returns a copy of v scaled to unit L2 norm.
// A zero vector cannot be normalized and yields ErrDegenerateVector.
func Normalize(v []float32) ([]float32, error) {
	norm := L2Norm(v)
	if norm == 0 {
		return nil, ErrDegenerateVector
	}
	out := make([]float32, len(v))
	for i, x := range v {
		out[i] = float32(float64(x) / norm)
	}
	return out, nil
}

// WeightedAdd returns the elementwise sum of vectors[i]*weights[i]. All vectors must share one dimension.
func WeightedAdd(vectors [][]float32, weights []float64) ([]float32, error) {
	if len(vectors) != len(weights) {
		return nil, fmt.Errorf("vectors and weights length mismatch: %d != %d", len(vectors), len(weights))
	}
	if len(vectors) == 0 {
		return nil, nil
	}
	dim := len(vectors[0])
	sum := make([]float64, dim)
	for i, vec := range vectors {
		if len(vec) != dim {
			return nil, &DimensionMismatchError{Expected: dim, Actual: len(vec)}
		}
		w := weights[i]
		for j, x := range vec {
			sum[j] += float64(x) * w
		}
	}
	out := make([]float32, dim)
	for j, x := range sum {
		out[j] = float32(x)
	}
	return out, nil
}
