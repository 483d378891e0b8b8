// Package metric provides the similarity primitives used for drift scoring.
package metric

import (
	"errors"
	"fmt"
	"math"
)

// ErrDimensionMismatch is returned when two vectors compared element-wise
// have different lengths.
type ErrDimensionMismatch struct {
	Expected int
	Actual   int
}

func (e *ErrDimensionMismatch) Error() string {
	return fmt.Sprintf("dimension mismatch: expected %d, got %d", e.Expected, e.Actual)
}

// ErrNonFinite is returned when a vector holds NaN or an infinity.
var ErrNonFinite = errors.New("non-finite vector component")

// Dot calculates the dot product of two vectors.
// Assumes vectors are the same length (caller's responsibility).
func Dot(a, b []float64) float64 {
	var ret float64
	for i := range a {
		ret += a[i] * b[i]
	}
	return ret
}

// Magnitude calculates the L2 norm of v.
func Magnitude(v []float64) float64 {
	return math.Sqrt(Dot(v, v))
}

// CosineSimilarity calculates dot(v1,v2) / (|v1|*|v2|).
//
// Vectors of different lengths are rejected rather than truncated to the
// shorter one. If either vector has zero magnitude the similarity is 0.
// Each vector is scaled by its largest absolute component first, so finite
// inputs of any magnitude cannot overflow into Inf or NaN. The result is
// clamped to [-1, 1] to absorb floating-point overshoot.
func CosineSimilarity(v1, v2 []float64) (float64, error) {
	if len(v1) != len(v2) {
		return 0, &ErrDimensionMismatch{Expected: len(v1), Actual: len(v2)}
	}

	a, err := scaled(v1)
	if err != nil {
		return 0, err
	}
	b, err := scaled(v2)
	if err != nil {
		return 0, err
	}

	magnitudeA := Magnitude(a)
	magnitudeB := Magnitude(b)

	// Avoid division by zero
	if magnitudeA == 0 || magnitudeB == 0 {
		return 0, nil
	}

	sim := Dot(a, b) / (magnitudeA * magnitudeB)
	if math.IsNaN(sim) || math.IsInf(sim, 0) {
		return 0, ErrNonFinite
	}
	return math.Max(-1, math.Min(1, sim)), nil
}

// scaled returns v divided by its largest absolute component, leaving every
// component within [-1, 1]. A zero vector is returned unchanged.
func scaled(v []float64) ([]float64, error) {
	var maxAbs float64
	for _, x := range v {
		if math.IsNaN(x) || math.IsInf(x, 0) {
			return nil, ErrNonFinite
		}
		maxAbs = max(maxAbs, math.Abs(x))
	}
	if maxAbs == 0 || maxAbs == 1 {
		return v, nil
	}

	out := make([]float64, len(v))
	for i, x := range v {
		out[i] = x / maxAbs
	}
	return out, nil
}
