package retrieval

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCosine(t *testing.T) {
	a := []float32{1, 0, 0}
	b := []float32{0, 1, 0}

	assert.InDelta(t, 1.0, Cosine(a, a), 1e-9)
	assert.Zero(t, Cosine(a, b))
	// symmetric
	assert.Equal(t, Cosine(a, b), Cosine(b, a))
}

func TestCosineDegenerateInputs(t *testing.T) {
	assert.Zero(t, Cosine([]float32{1, 2}, []float32{1, 2, 3}))
	assert.Zero(t, Cosine(nil, nil))
	assert.Zero(t, Cosine([]float32{0, 0, 0}, []float32{1, 2, 3}))
}

func TestCosineScaleInvariant(t *testing.T) {
	a := []float32{1, 2, 3}
	b := []float32{2, 4, 6}
	assert.InDelta(t, 1.0, Cosine(a, b), 1e-6)
}

func TestRankOrdering(t *testing.T) {
	query := []float32{1, 0}
	vectors := [][]float32{
		{0, 1},       // orthogonal
		{1, 0},       // identical direction
		{0.7, 0.7},   // partial match
		{0, 0},       // zero
	}

	got := Rank(query, vectors, 10)
	require.Len(t, got, 4)
	assert.Equal(t, 1, got[0].Index)
	assert.Equal(t, 2, got[1].Index)
}

func TestRankTopKBound(t *testing.T) {
	query := []float32{1, 0}
	vectors := [][]float32{{1, 0}, {1, 0}, {1, 0}, {1, 0}, {1, 0}, {1, 0}, {1, 0}}

	assert.Len(t, Rank(query, vectors, 3), 3)
	// k <= 0 falls back to the default
	assert.Len(t, Rank(query, vectors, 0), DefaultTopK)
}

func TestRankStableTies(t *testing.T) {
	query := []float32{1, 0}
	vectors := [][]float32{{2, 0}, {1, 0}, {3, 0}}

	got := Rank(query, vectors, 3)
	require.Len(t, got, 3)
	// all score 1.0; input order is preserved
	assert.Equal(t, []int{got[0].Index, got[1].Index, got[2].Index}, []int{0, 1, 2})
}

func TestRankEmpty(t *testing.T) {
	assert.Empty(t, Rank([]float32{1}, nil, 5))
}
