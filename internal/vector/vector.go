// Package vector implements cosine similarity and exact top-k search over
// embedding collections. Both the chunk ranker and the semantic cache build
// on it.
package vector

import (
	"fmt"
	"math"
	"sort"

	appErr "github.com/kalorin/webseek/internal/pkg/errors"
)

// NoMinScore disables the score floor in TopK.
var NoMinScore = math.Inf(-1)

type Candidate struct {
	ID     string
	Vector []float32
}

type Match struct {
	ID    string
	Score float64
}

// Cosine returns the cosine similarity of a and b in [-1, 1]. Vectors of
// different lengths come from different embedding models and cannot be
// compared. A zero-norm vector scores 0.0 against anything; that is policy,
// not an error.
func Cosine(a, b []float32) (float64, error) {
	if len(a) != len(b) {
		return 0, fmt.Errorf("%w: %d vs %d", appErr.ErrDimensionMismatch, len(a), len(b))
	}
	var dot, normA, normB float64
	for i := range a {
		x := float64(a[i])
		y := float64(b[i])
		dot += x * y
		normA += x * x
		normB += y * y
	}
	if normA == 0 || normB == 0 {
		return 0, nil
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB)), nil
}

// TopK scores every candidate against query and returns at most k matches in
// non-increasing score order. Ties keep candidate insertion order, so equal
// inputs always produce equal output. Candidates below minScore are dropped
// even if fewer than k remain.
func TopK(query []float32, candidates []Candidate, k int, minScore float64) ([]Match, error) {
	if k <= 0 {
		return nil, nil
	}
	matches := make([]Match, 0, len(candidates))
	for _, cand := range candidates {
		score, err := Cosine(query, cand.Vector)
		if err != nil {
			return nil, err
		}
		if score < minScore {
			continue
		}
		matches = append(matches, Match{ID: cand.ID, Score: score})
	}
	sort.SliceStable(matches, func(i, j int) bool {
		return matches[i].Score > matches[j].Score
	})
	if len(matches) > k {
		matches = matches[:k]
	}
	return matches, nil
}
