package vector

import (
	"fmt"
	"math"
	"strings"
)

// Metric names a distance function. Smaller distances mean more similar.
type Metric string

const (
	MetricL2Squared Metric = "l2sq"
	MetricL2        Metric = "l2"
	MetricCosine    Metric = "cosine"
)

// ParseMetric maps a config value to a Metric. Empty selects l2sq.
func ParseMetric(s string) (Metric, error) {
	switch Metric(strings.ToLower(strings.TrimSpace(s))) {
	case "", MetricL2Squared:
		return MetricL2Squared, nil
	case MetricL2:
		return MetricL2, nil
	case MetricCosine:
		return MetricCosine, nil
	default:
		return "", fmt.Errorf("vector: unknown metric %q", s)
	}
}

// Distance computes the metric between a and b, which must have equal length.
func (m Metric) Distance(a, b []float32) (float64, error) {
	switch m {
	case MetricL2:
		return L2Distance(a, b)
	case MetricCosine:
		return CosineDistance(a, b)
	default:
		return SquaredL2Distance(a, b)
	}
}

// SquaredL2Distance computes the squared Euclidean distance.
func SquaredL2Distance(a, b []float32) (float64, error) {
	if len(a) != len(b) {
		return 0, fmt.Errorf("vector: L2 distance dimension mismatch: %d vs %d", len(a), len(b))
	}
	var sum float64
	for i := range a {
		d := float64(a[i]) - float64(b[i])
		sum += d * d
	}
	return sum, nil
}

// L2Distance computes the Euclidean distance.
func L2Distance(a, b []float32) (float64, error) {
	sq, err := SquaredL2Distance(a, b)
	if err != nil {
		return 0, err
	}
	return math.Sqrt(sq), nil
}

// CosineDistance returns 1 - cosine similarity. A zero-magnitude vector is
// treated as orthogonal to everything (distance 1).
func CosineDistance(a, b []float32) (float64, error) {
	if len(a) != len(b) {
		return 0, fmt.Errorf("vector: cosine distance dimension mismatch: %d vs %d", len(a), len(b))
	}
	var dot, na2, nb2 float64
	for i := range a {
		va := float64(a[i])
		vb := float64(b[i])
		dot += va * vb
		na2 += va * va
		nb2 += vb * vb
	}
	if na2 == 0 || nb2 == 0 {
		return 1, nil
	}
	// sqrt of the product keeps a vector exactly at distance 0 from itself
	d := 1 - dot/math.Sqrt(na2*nb2)
	return math.Max(0, math.Min(2, d)), nil
}

// Normalize returns v scaled to unit length. Zero vectors are returned as is.
func Normalize(v []float32) []float32 {
	var norm float64
	for _, x := range v {
		norm += float64(x) * float64(x)
	}
	if norm == 0 {
		return v
	}
	norm = math.Sqrt(norm)
	out := make([]float32, len(v))
	for i, x := range v {
		out[i] = float32(float64(x) / norm)
	}
	return out
}
