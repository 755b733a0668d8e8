package database

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"time"
)

// ErrAttemptConflict is returned when an attempt ID is reused by another employee.
var ErrAttemptConflict = errors.New("attempt id already used by another employee")

// Employee is a staff member joined with their school.
type Employee struct {
	ID         int64
	Name       string
	SchoolID   int64
	SchoolName string
	// AnchorLat and AnchorLng are the school coordinates, nil when not configured.
	AnchorLat *float64
	AnchorLng *float64
	// FaceDescriptor is empty when the employee has no enrolled face.
	FaceDescriptor []float32
}

// HasAnchor reports whether both school coordinates are set.
func (e *Employee) HasAnchor() bool {
	return e.AnchorLat != nil && e.AnchorLng != nil
}

// StoredClockEvent is a row of employee_attendance.
type StoredClockEvent struct {
	ID             int64
	EmployeeID     int64
	EventType      string
	Timestamp      time.Time
	Lat            float64
	Lng            float64
	DistanceMeters float64
	Photo          []byte // JPEG, not loaded by history queries
	AttemptID      string
	Verified       bool
}

// HashToken returns the hex SHA-256 of an employee API token. Only hashes are stored.
func HashToken(token string) string {
	sum := sha256.Sum256([]byte(token))
	return hex.EncodeToString(sum[:])
}
