package vector

import (
	"math"
	"testing"

	"github.com/stretchr/testify/require"

	appErr "github.com/kalorin/webseek/internal/pkg/errors"
)

func TestCosineSelfSimilarity(t *testing.T) {
	a := []float32{0.3, -1.2, 4.5, 0.01}
	score, err := Cosine(a, a)
	require.NoError(t, err)
	require.InDelta(t, 1.0, score, 1e-9)
}

func TestCosineZeroVector(t *testing.T) {
	zero := []float32{0, 0, 0}
	other := []float32{1, 2, 3}
	score, err := Cosine(zero, other)
	require.NoError(t, err)
	require.Equal(t, 0.0, score)

	score, err = Cosine(zero, zero)
	require.NoError(t, err)
	require.Equal(t, 0.0, score)
}

func TestCosineSymmetry(t *testing.T) {
	a := []float32{1, 0.5, -0.2}
	b := []float32{0.8, 0.1, 0.4}
	ab, err := Cosine(a, b)
	require.NoError(t, err)
	ba, err := Cosine(b, a)
	require.NoError(t, err)
	require.Equal(t, ab, ba)
}

func TestCosineOrthogonal(t *testing.T) {
	score, err := Cosine([]float32{1, 0}, []float32{0, 1})
	require.NoError(t, err)
	require.InDelta(t, 0.0, score, 1e-9)
}

func TestCosineDimensionMismatch(t *testing.T) {
	_, err := Cosine([]float32{1, 2}, []float32{1, 2, 3})
	require.ErrorIs(t, err, appErr.ErrDimensionMismatch)
}

func TestTopKOrderingAndLimit(t *testing.T) {
	query := []float32{1, 0}
	candidates := []Candidate{
		{ID: "low", Vector: []float32{0.3, 0.95}},
		{ID: "best", Vector: []float32{1, 0}},
		{ID: "mid", Vector: []float32{0.9, 0.1}},
	}
	matches, err := TopK(query, candidates, 2, NoMinScore)
	require.NoError(t, err)
	require.Len(t, matches, 2)
	require.Equal(t, "best", matches[0].ID)
	require.Equal(t, "mid", matches[1].ID)
	for i := 1; i < len(matches); i++ {
		require.GreaterOrEqual(t, matches[i-1].Score, matches[i].Score)
	}
}

func TestTopKMinScoreExcludes(t *testing.T) {
	query := []float32{1, 0}
	candidates := []Candidate{
		{ID: "hit", Vector: []float32{0.9, 0.1}},
		{ID: "miss", Vector: []float32{0, 1}},
	}
	matches, err := TopK(query, candidates, 5, 0.85)
	require.NoError(t, err)
	require.Len(t, matches, 1)
	require.Equal(t, "hit", matches[0].ID)
}

func TestTopKStableTies(t *testing.T) {
	query := []float32{1, 0}
	// Same direction, different magnitudes: identical cosine score.
	candidates := []Candidate{
		{ID: "first", Vector: []float32{2, 0}},
		{ID: "second", Vector: []float32{5, 0}},
	}
	matches, err := TopK(query, candidates, 2, NoMinScore)
	require.NoError(t, err)
	require.Equal(t, "first", matches[0].ID)
	require.Equal(t, "second", matches[1].ID)
}

func TestTopKDimensionMismatchFails(t *testing.T) {
	query := []float32{1, 0}
	candidates := []Candidate{{ID: "bad", Vector: []float32{1, 0, 0}}}
	_, err := TopK(query, candidates, 1, NoMinScore)
	require.ErrorIs(t, err, appErr.ErrDimensionMismatch)
}

func TestTopKEmptyAndZeroK(t *testing.T) {
	matches, err := TopK([]float32{1}, nil, 3, NoMinScore)
	require.NoError(t, err)
	require.Empty(t, matches)

	matches, err = TopK([]float32{1}, []Candidate{{ID: "x", Vector: []float32{1}}}, 0, NoMinScore)
	require.NoError(t, err)
	require.Empty(t, matches)
}

func TestNoMinScoreIsNegativeInfinity(t *testing.T) {
	require.True(t, math.IsInf(NoMinScore, -1))
}
