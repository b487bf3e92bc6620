package vector

import (
	"errors"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalize(t *testing.T) {
	v, err := Normalize([]float32{3, 4})
	require.NoError(t, err)
	assert.InDelta(t, 0.6, v[0], 1e-6)
	assert.InDelta(t, 0.8, v[1], 1e-6)
	assert.InDelta(t, 1.0, L2Norm(v), 1e-6)
}

func TestNormalize_Idempotent(t *testing.T) {
	inputs := [][]float32{
		{3, 4},
		{0.1, -0.2, 0.3, 0.9},
		{1e-3, 5, -7, 2, 0},
	}
	for _, in := range inputs {
		once, err := Normalize(in)
		require.NoError(t, err)
		twice, err := Normalize(once)
		require.NoError(t, err)
		require.Len(t, twice, len(once))
		for i := range once {
			assert.InDelta(t, once[i], twice[i], 1e-6)
		}
	}
}

func TestNormalize_ZeroVector(t *testing.T) {
	_, err := Normalize([]float32{0, 0, 0})
	assert.ErrorIs(t, err, ErrDegenerateVector)
}

func TestNormalize_DoesNotMutateInput(t *testing.T) {
	in := []float32{3, 4}
	_, err := Normalize(in)
	require.NoError(t, err)
	assert.Equal(t, []float32{3, 4}, in)
}

func TestWeightedAdd(t *testing.T) {
	sum, err := WeightedAdd([][]float32{{1, 0}, {0, 1}}, []float64{2, 0.5})
	require.NoError(t, err)
	assert.Equal(t, []float32{2, 0.5}, sum)
}

func TestWeightedAdd_DimensionMismatch(t *testing.T) {
	_, err := WeightedAdd([][]float32{{1, 0}, {0, 1, 0}}, []float64{1, 1})
	var dm *DimensionMismatchError
	require.True(t, errors.As(err, &dm))
	assert.Equal(t, 2, dm.Expected)
	assert.Equal(t, 3, dm.Actual)
}

func TestWeightedAdd_WeightsLengthMismatch(t *testing.T) {
	_, err := WeightedAdd([][]float32{{1, 0}}, []float64{1, 2})
	assert.Error(t, err)
}

func TestDot(t *testing.T) {
	d, err := Dot([]float32{1, 2, 3}, []float32{4, 5, 6})
	require.NoError(t, err)
	assert.InDelta(t, 32.0, d, 1e-9)

	_, err = Dot([]float32{1}, []float32{1, 2})
	var dm *DimensionMismatchError
	assert.True(t, errors.As(err, &dm))
}

func TestL2Norm(t *testing.T) {
	assert.InDelta(t, math.Sqrt(2), L2Norm([]float32{1, 1}), 1e-9)
	assert.Equal(t, 0.0, L2Norm(nil))
}
