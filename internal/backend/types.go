// Package backend holds the wire types of the employee time-clock API and a
// client for it.
package backend

import (
	"encoding/json"
	"time"
)

// ProfileResponse is returned by GET /api/employee/info.
type ProfileResponse struct {
	Success bool        `json:"success"`
	Data    ProfileData `json:"data"`
}

// ProfileData describes the authenticated employee. The anchor is null when
// the school has no coordinates configured. EnrolledDescriptor is either a
// JSON array or a string containing one.
type ProfileData struct {
	ID                 int64           `json:"id"`
	Name               string          `json:"name"`
	SchoolID           int64           `json:"schoolId"`
	SchoolName         string          `json:"schoolName"`
	AnchorLat          *float64        `json:"anchorLat"`
	AnchorLng          *float64        `json:"anchorLng"`
	EnrolledDescriptor json.RawMessage `json:"enrolledDescriptor"`
}

// ClockEventRequest is the body of POST /api/employee/clock.
type ClockEventRequest struct {
	EventType string  `json:"eventType"`
	Lat       float64 `json:"lat"`
	Lng       float64 `json:"lng"`
	// Photo is a data URL, e.g. "data:image/jpeg;base64,...".
	Photo     string `json:"photo"`
	AttemptID string `json:"attemptId"`
}

// ClockEventResponse acknowledges a stored event.
type ClockEventResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
	ID      int64  `json:"id"`
}

// HistoryEntry is one past event, without the photo.
type HistoryEntry struct {
	ID        int64     `json:"id"`
	EventType string    `json:"eventType"`
	Timestamp time.Time `json:"timestamp"`
	Lat       float64   `json:"lat"`
	Lng       float64   `json:"lng"`
	Verified  bool      `json:"verified"`
}

// HistoryResponse is returned by GET /api/employee/history.
type HistoryResponse struct {
	Success bool           `json:"success"`
	Data    []HistoryEntry `json:"data"`
}

// ErrorResponse is the body of every non-2xx response.
type ErrorResponse struct {
	Error string `json:"error"`
}
