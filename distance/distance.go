package distance

import (
	"fmt"
	"math"
)

// Metric identifies the vector comparison metric of a field index.
type Metric int

const (
	// MetricUnspecified is the zero value. Provider rejects it, so every
	// field index carries an explicit metric choice.
	MetricUnspecified Metric = iota
	MetricCosine
	MetricEuclidean
	MetricManhattan
	MetricDot
)

// String returns a string representation of the Metric.
func (m Metric) String() string {
	switch m {
	case MetricUnspecified:
		return "Unspecified"
	case MetricCosine:
		return "Cosine"
	case MetricEuclidean:
		return "Euclidean"
	case MetricManhattan:
		return "Manhattan"
	case MetricDot:
		return "Dot"
	default:
		return fmt.Sprintf("Unknown(%d)", int(m))
	}
}

// ErrDimensionMismatch is a named error type for dimension mismatch.
type ErrDimensionMismatch struct {
	Expected int // Expected dimensions
	Actual   int // Actual dimensions
}

// Error returns the error message for dimension mismatch.
func (e *ErrDimensionMismatch) Error() string {
	return fmt.Sprintf("dimension mismatch: expected %d, got %d", e.Expected, e.Actual)
}

// Func computes a distance (lower is better) between two equal-length
// vectors. Dimension checks are the caller's responsibility.
type Func func(a, b []float32) float32

// Dot calculates the dot product of two vectors.
func Dot(a, b []float32) float32 {
	var sum float32
	for i := range a {
		sum += a[i] * b[i]
	}
	return sum
}

// SquaredL2 calculates the squared L2 (Euclidean) distance between two vectors.
func SquaredL2(a, b []float32) float32 {
	var sum float32
	for i := range a {
		d := a[i] - b[i]
		sum += d * d
	}
	return sum
}

// L2 calculates the L2 (Euclidean) distance between two vectors.
func L2(a, b []float32) float32 {
	return float32(math.Sqrt(float64(SquaredL2(a, b))))
}

// L1 calculates the L1 (Manhattan) distance between two vectors.
func L1(a, b []float32) float32 {
	var sum float32
	for i := range a {
		d := a[i] - b[i]
		if d < 0 {
			d = -d
		}
		sum += d
	}
	return sum
}

// Magnitude calculates the magnitude (L2 norm) of a vector.
func Magnitude(v []float32) float32 {
	return float32(math.Sqrt(float64(Dot(v, v))))
}

// CosineSimilarity calculates the cosine similarity between two vectors.
//
// When either vector has zero magnitude the similarity is defined as 0,
// not an error. Callers relying on score(v, v) ≈ 1 must account for the
// zero vector.
func CosineSimilarity(a, b []float32) float32 {
	ma := Magnitude(a)
	mb := Magnitude(b)
	if ma == 0 || mb == 0 {
		return 0
	}
	return Dot(a, b) / (ma * mb)
}

// CosineDistance converts cosine similarity into a distance (lower is better).
func CosineDistance(a, b []float32) float32 {
	return 1 - CosineSimilarity(a, b)
}

// NormalizeL2InPlace L2-normalizes v in place.
// Returns false if v has zero L2 norm.
func NormalizeL2InPlace(v []float32) bool {
	if len(v) == 0 {
		return false
	}
	norm2 := Dot(v, v)
	if norm2 == 0 {
		return false
	}
	inv := 1 / float32(math.Sqrt(float64(norm2)))
	for i := range v {
		v[i] *= inv
	}
	return true
}

// Provider returns the distance function for the given metric.
func Provider(m Metric) (Func, error) {
	switch m {
	case MetricCosine:
		return CosineDistance, nil
	case MetricEuclidean:
		return L2, nil
	case MetricManhattan:
		return L1, nil
	case MetricDot:
		// Raw inner product is "higher is better"; negate to stay in
		// distance space.
		return func(a, b []float32) float32 { return -Dot(a, b) }, nil
	default:
		return nil, fmt.Errorf("distance: unsupported metric: %v", m)
	}
}

// ToSimilarity converts a raw distance under m into the shared similarity
// space (higher is better). The conversion per metric is fixed:
//
//	Cosine:    1 - d  (restores the raw cosine similarity)
//	Euclidean: 1 / (1 + d)
//	Manhattan: 1 / (1 + d)
//	Dot:       -d     (restores the raw inner product)
func ToSimilarity(m Metric, d float32) float64 {
	switch m {
	case MetricCosine:
		return 1 - float64(d)
	case MetricEuclidean, MetricManhattan:
		return 1 / (1 + float64(d))
	case MetricDot:
		return -float64(d)
	default:
		return 0
	}
}

// WorstSimilarity returns the lower bound of the converted similarity space
// for m. The combiner substitutes it for entities absent from a field's
// candidate list so weighted averages stay well-formed.
func WorstSimilarity(m Metric) float64 {
	switch m {
	case MetricCosine:
		return -1
	case MetricEuclidean, MetricManhattan:
		return 0
	case MetricDot:
		return -math.MaxFloat64
	default:
		return 0
	}
}

// Score computes the similarity between a and b under m, in the converted
// "higher is better" space. It has no side effects and is safe to invoke
// concurrently on immutable inputs.
func Score(a, b []float32, m Metric) (float64, error) {
	if len(a) != len(b) {
		return 0, &ErrDimensionMismatch{Expected: len(a), Actual: len(b)}
	}
	fn, err := Provider(m)
	if err != nil {
		return 0, err
	}
	return ToSimilarity(m, fn(a, b)), nil
}
