package biometric

import (
	"encoding/json"
	"errors"
	"math"
	"strings"
	"testing"
)

func numbers(n int, v float32) []float32 {
	out := make([]float32, n)
	for i := range out {
		out[i] = v
	}
	return out
}

func jsonArray(values []float32) string {
	b, _ := json.Marshal(values)
	return string(b)
}

func TestParseDescriptor_Shapes(t *testing.T) {
	arr := jsonArray(numbers(4, 0.25))
	str, _ := json.Marshal(arr)

	tests := []struct {
		name    string
		raw     string
		wantErr bool
	}{
		{"raw array", arr, false},
		{"json string", string(str), false},
		{"padded array", "  " + arr + "\n", false},
		{"null", "null", true},
		{"empty", "", true},
		{"number", "0.5", true},
		{"object", `{"values":[1,2,3,4]}`, true},
		{"string without array", `"hello"`, true},
		{"array of strings", `["a","b","c","d"]`, true},
		{"too short", "[0.1,0.2]", true},
		{"too long", "[0.1,0.2,0.3,0.4,0.5]", true},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			d, err := ParseDescriptor(json.RawMessage(tc.raw), 4)
			if tc.wantErr {
				var verr *ValidationError
				if !errors.As(err, &verr) {
					t.Fatalf("expected ValidationError, got %v", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if d.Dim() != 4 || d[0] != 0.25 {
				t.Errorf("unexpected descriptor %v", d)
			}
		})
	}
}

func TestParseDescriptor_StringAndArrayAgree(t *testing.T) {
	values := []float32{0.1, -0.2, 0.3, -0.4}
	arr := jsonArray(values)
	str, _ := json.Marshal(arr)

	a, err := ParseDescriptor(json.RawMessage(arr), 4)
	if err != nil {
		t.Fatalf("array: %v", err)
	}
	b, err := ParseDescriptor(json.RawMessage(str), 4)
	if err != nil {
		t.Fatalf("string: %v", err)
	}
	if EuclideanDistance(a, b) != 0 {
		t.Errorf("expected identical descriptors, got %v and %v", a, b)
	}
}

func TestNewDescriptor_RejectsNonFinite(t *testing.T) {
	values := numbers(3, 0)
	values[1] = float32(math.NaN())
	_, err := NewDescriptor(values, 3)
	var verr *ValidationError
	if !errors.As(err, &verr) {
		t.Fatalf("expected ValidationError, got %v", err)
	}
	if !strings.Contains(verr.Error(), "not finite") {
		t.Errorf("unexpected message %q", verr.Error())
	}
}

func TestNewDescriptor_DefaultDim(t *testing.T) {
	if _, err := NewDescriptor(numbers(DefaultDescriptorDim, 0.1), 0); err != nil {
		t.Errorf("expected default dim to accept %d values: %v", DefaultDescriptorDim, err)
	}
	if _, err := NewDescriptor(numbers(127, 0.1), 0); err == nil {
		t.Error("expected 127 values to be rejected")
	}
}
