// Package biometric defines the face-matching capability consumed by the
// verification engine and the descriptor type it operates on.
package biometric

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
)

// DefaultDescriptorDim is the length of a face-api / dlib face descriptor.
const DefaultDescriptorDim = 128

// ValidationError reports a descriptor that does not satisfy the fixed-length contract.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

// Descriptor is a fixed-length face descriptor.
type Descriptor []float32

// NewDescriptor validates values against dim and returns a copy.
func NewDescriptor(values []float32, dim int) (Descriptor, error) {
	if dim <= 0 {
		dim = DefaultDescriptorDim
	}
	if len(values) != dim {
		return nil, &ValidationError{
			Field:  "descriptor",
			Reason: fmt.Sprintf("expected %d values, got %d", dim, len(values)),
		}
	}
	d := make(Descriptor, dim)
	for i, v := range values {
		if math.IsNaN(float64(v)) || math.IsInf(float64(v), 0) {
			return nil, &ValidationError{
				Field:  "descriptor",
				Reason: fmt.Sprintf("value %d is not finite", i),
			}
		}
		d[i] = v
	}
	return d, nil
}

// Dim returns the descriptor length.
func (d Descriptor) Dim() int {
	return len(d)
}

// ParseDescriptor normalizes an enrolled descriptor as it arrives from the
// employee profile: either a raw JSON array of numbers or a JSON string whose
// content is such an array.
func ParseDescriptor(raw json.RawMessage, dim int) (Descriptor, error) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return nil, &ValidationError{Field: "descriptor", Reason: "missing"}
	}

	if raw[0] == '"' {
		var inner string
		if err := json.Unmarshal(raw, &inner); err != nil {
			return nil, &ValidationError{Field: "descriptor", Reason: "malformed string"}
		}
		raw = bytes.TrimSpace([]byte(inner))
		if len(raw) == 0 || raw[0] != '[' {
			return nil, &ValidationError{Field: "descriptor", Reason: "string does not contain a numeric array"}
		}
	}

	if raw[0] != '[' {
		return nil, &ValidationError{Field: "descriptor", Reason: "expected numeric array"}
	}

	var values []float32
	if err := json.Unmarshal(raw, &values); err != nil {
		return nil, &ValidationError{Field: "descriptor", Reason: "array contains non-numeric values"}
	}
	return NewDescriptor(values, dim)
}
