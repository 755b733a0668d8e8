package biometric

import (
	"errors"
	"math"
	"testing"
)

func TestIsMatch(t *testing.T) {
	tests := []struct {
		name      string
		distance  float64
		threshold float64
		expected  bool
	}{
		{"close face", 0.30, 0.55, true},
		{"different face", 0.70, 0.55, false},
		{"at threshold is a reject", 0.55, 0.55, false},
		{"strict threshold", 0.45, 0.40, false},
		{"lenient threshold", 0.58, 0.60, true},
		{"identical", 0, DefaultMatchThreshold, true},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if got := IsMatch(tc.distance, tc.threshold); got != tc.expected {
				t.Errorf("IsMatch(%v, %v) = %v; want %v", tc.distance, tc.threshold, got, tc.expected)
			}
		})
	}
}

func TestEuclideanDistance(t *testing.T) {
	a := Descriptor{0, 0, 0}
	b := Descriptor{3, 4, 0}

	if d := EuclideanDistance(a, b); d != 5 {
		t.Errorf("expected 5, got %f", d)
	}
	if d := EuclideanDistance(b, a); d != 5 {
		t.Errorf("expected symmetric 5, got %f", d)
	}
	if d := EuclideanDistance(b, b); d != 0 {
		t.Errorf("expected 0 for identical descriptors, got %f", d)
	}
}

func TestCosineDistance(t *testing.T) {
	tests := []struct {
		name     string
		a, b     Descriptor
		expected float64
	}{
		{"identical", Descriptor{1, 0}, Descriptor{1, 0}, 0},
		{"orthogonal", Descriptor{1, 0}, Descriptor{0, 1}, 1},
		{"opposite", Descriptor{1, 0}, Descriptor{-1, 0}, 2},
		{"zero vector", Descriptor{0, 0}, Descriptor{1, 0}, 2},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if d := CosineDistance(tc.a, tc.b); math.Abs(d-tc.expected) > 1e-9 {
				t.Errorf("CosineDistance = %f; want %f", d, tc.expected)
			}
		})
	}
}

func TestMetric_DimensionMismatch(t *testing.T) {
	_, err := MetricEuclidean.Distance(Descriptor{1, 2}, Descriptor{1, 2, 3})
	var verr *ValidationError
	if !errors.As(err, &verr) {
		t.Fatalf("expected ValidationError, got %v", err)
	}
}

func TestMetric_CosineRejectsZeroVector(t *testing.T) {
	tests := []struct {
		name string
		a, b Descriptor
	}{
		{"both zero", Descriptor{0, 0, 0}, Descriptor{0, 0, 0}},
		{"probe zero", Descriptor{0, 0, 0}, Descriptor{0.1, 0.2, 0.3}},
		{"enrolled zero", Descriptor{0.1, 0.2, 0.3}, Descriptor{0, 0, 0}},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, err := MetricCosine.Distance(tc.a, tc.b)
			var verr *ValidationError
			if !errors.As(err, &verr) {
				t.Fatalf("expected ValidationError, got %v", err)
			}
		})
	}

	// Euclidean still compares zero vectors.
	if d, err := MetricEuclidean.Distance(Descriptor{0, 0}, Descriptor{0, 0}); err != nil || d != 0 {
		t.Errorf("expected 0, nil for identical zero vectors, got %f, %v", d, err)
	}
}

func TestMetric_CosineIgnoresScale(t *testing.T) {
	d, err := MetricCosine.Distance(Descriptor{0.1, 0.2, 0.3}, Descriptor{0.2, 0.4, 0.6})
	if err != nil {
		t.Fatalf("Distance failed: %v", err)
	}
	if math.Abs(d) > 1e-6 {
		t.Errorf("expected scaled copy at distance 0, got %f", d)
	}
}

func TestParseMetric(t *testing.T) {
	if m, err := ParseMetric(""); err != nil || m != MetricEuclidean {
		t.Errorf("expected euclidean default, got %v, %v", m, err)
	}
	if m, err := ParseMetric("cosine"); err != nil || m != MetricCosine {
		t.Errorf("expected cosine, got %v, %v", m, err)
	}
	if _, err := ParseMetric("manhattan"); err == nil {
		t.Error("expected error for unknown metric")
	}
}
