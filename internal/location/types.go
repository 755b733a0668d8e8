// Package location provides the geolocation feed and the proximity gate used
// to decide whether a staff member is on site.
package location

import (
	"errors"
	"fmt"
	"time"
)

// ErrLocationUnavailable is returned when the sensor is absent or permission
// was denied. It is terminal for the consumer.
var ErrLocationUnavailable = errors.New("location unavailable")

// Coordinate is a WGS84 point in degrees.
type Coordinate struct {
	Lat float64 `json:"lat" yaml:"lat"`
	Lng float64 `json:"lng" yaml:"lng"`
}

// Fix is a single sample from the geolocation sensor.
type Fix struct {
	Lat       float64   `json:"lat"`
	Lng       float64   `json:"lng"`
	Accuracy  float64   `json:"accuracy"` // meters
	Timestamp time.Time `json:"timestamp"`
}

// Coordinate returns the fix position.
func (f Fix) Coordinate() Coordinate {
	return Coordinate{Lat: f.Lat, Lng: f.Lng}
}

// SensorOptions configures the sensor subscription.
type SensorOptions struct {
	HighAccuracy bool          `yaml:"high_accuracy"`
	MaxFixAge    time.Duration `yaml:"max_fix_age"`
	FixTimeout   time.Duration `yaml:"fix_timeout"`
}

// SensorErrorCode classifies sensor failures.
type SensorErrorCode string

const (
	CodePermissionDenied    SensorErrorCode = "permission_denied"
	CodeUnsupported         SensorErrorCode = "unsupported"
	CodePositionUnavailable SensorErrorCode = "position_unavailable"
	CodeTimeout             SensorErrorCode = "timeout"
)

// SensorError is reported by a sensor in place of a fix.
type SensorError struct {
	Code    SensorErrorCode
	Message string
}

func (e *SensorError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("sensor error: %s", e.Code)
	}
	return fmt.Sprintf("sensor error: %s: %s", e.Code, e.Message)
}

// Fatal reports whether the error disables location entirely.
func (e *SensorError) Fatal() bool {
	return e.Code == CodePermissionDenied || e.Code == CodeUnsupported
}

// Is makes fatal sensor errors match ErrLocationUnavailable.
func (e *SensorError) Is(target error) bool {
	return target == ErrLocationUnavailable && e.Fatal()
}

// Event is one message on the monitor stream: either a fix or an error.
type Event struct {
	Fix *Fix
	Err error
}

// Sensor is the callback-driven geolocation capability.
type Sensor interface {
	Subscribe(onFix func(Fix), onError func(error), opts SensorOptions) (unsubscribe func(), err error)
}
