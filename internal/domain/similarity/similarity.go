// Package similarity holds the scoring function shared by every index store.
package similarity

import (
	"math"

	"github.com/kailas-cloud/gradsearch/internal/domain"
)

// Offset shifts cosine similarity out of [-1, 1] into [0, 2] so scores
// stay non-negative. The result is a ranking key, not a probability.
const Offset = 1.0

// ErrDimensionMismatch is returned when two vectors differ in length.
var ErrDimensionMismatch = domain.ErrVectorDimMismatch

// Cosine returns the cosine similarity of a and b in [-1, 1].
// A zero-norm vector has no direction and scores 0.
func Cosine(a, b []float32) (float64, error) {
	if len(a) != len(b) {
		return 0, ErrDimensionMismatch
	}

	var dot, normA, normB float64
	for i := range a {
		x, y := float64(a[i]), float64(b[i])
		dot += x * y
		normA += x * x
		normB += y * y
	}
	if normA == 0 || normB == 0 {
		return 0, nil
	}

	c := dot / (math.Sqrt(normA) * math.Sqrt(normB))
	// rounding can push identical vectors slightly past 1
	return math.Max(-1, math.Min(1, c)), nil
}

// Score returns cosine(a, b) + 1.0.
func Score(a, b []float32) (float64, error) {
	c, err := Cosine(a, b)
	if err != nil {
		return 0, err
	}
	return c + Offset, nil
}

// FromCosineDistance converts a store-reported cosine distance d = 1 - cosine
// into the same score Score produces.
func FromCosineDistance(d float64) float64 {
	return (1 - d) + Offset
}
