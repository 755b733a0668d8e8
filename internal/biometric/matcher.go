package biometric

import (
	"context"
	"errors"
	"fmt"
	"math"
)

// ErrNoFaceDetected is returned when a frame contains no usable face.
var ErrNoFaceDetected = errors.New("no face detected")

const (
	// DefaultMatchThreshold is the largest distance still considered a match (exclusive).
	DefaultMatchThreshold = 0.55
	// MinMatchThreshold and MaxMatchThreshold bound the tunable range. Lower is stricter.
	MinMatchThreshold = 0.40
	MaxMatchThreshold = 0.60
)

// Matcher detects a face in a frame and compares descriptors.
type Matcher interface {
	DetectAndDescribe(ctx context.Context, frame []byte) (Descriptor, error)
	Compare(a, b Descriptor) (float64, error)
}

// IsMatch reports whether distance is strictly below threshold.
func IsMatch(distance, threshold float64) bool {
	return distance < threshold
}

// Metric names a descriptor distance function. Euclidean distance is zero
// only for identical descriptors. Cosine distance ignores magnitude, so any
// positively scaled copy of a descriptor is also at distance zero.
type Metric string

const (
	MetricEuclidean Metric = "euclidean"
	MetricCosine    Metric = "cosine"
)

// ParseMetric returns the metric named s, defaulting to euclidean.
func ParseMetric(s string) (Metric, error) {
	switch Metric(s) {
	case "", MetricEuclidean:
		return MetricEuclidean, nil
	case MetricCosine:
		return MetricCosine, nil
	default:
		return "", fmt.Errorf("unknown face metric %q", s)
	}
}

// Distance computes the metric between a and b.
func (m Metric) Distance(a, b Descriptor) (float64, error) {
	if len(a) != len(b) {
		return 0, &ValidationError{
			Field:  "descriptor",
			Reason: fmt.Sprintf("dimension mismatch: %d vs %d", len(a), len(b)),
		}
	}
	if len(a) == 0 {
		return 0, &ValidationError{Field: "descriptor", Reason: "empty"}
	}
	if m == MetricCosine {
		if isZero(a) || isZero(b) {
			return 0, &ValidationError{Field: "descriptor", Reason: "zero vector has no direction"}
		}
		return CosineDistance(a, b), nil
	}
	return EuclideanDistance(a, b), nil
}

func isZero(d Descriptor) bool {
	for _, v := range d {
		if v != 0 {
			return false
		}
	}
	return true
}

// EuclideanDistance returns the L2 distance between equal-length descriptors.
func EuclideanDistance(a, b Descriptor) float64 {
	var sum float64
	for i := range a {
		d := float64(a[i]) - float64(b[i])
		sum += d * d
	}
	return math.Sqrt(sum)
}

// CosineDistance returns 1 - cosine similarity, in [0, 2].
// Zero vectors are maximally distant.
func CosineDistance(a, b Descriptor) float64 {
	var dotProduct, normA, normB float64
	for i := range a {
		dotProduct += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}
	if normA == 0 || normB == 0 {
		return 2.0
	}

	similarity := dotProduct / (math.Sqrt(normA) * math.Sqrt(normB))
	// Clamp to [-1, 1] to handle floating point errors
	similarity = math.Max(-1, math.Min(1, similarity))
	return 1 - similarity
}
