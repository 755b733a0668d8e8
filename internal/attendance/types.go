// Package attendance holds the time-clock domain model shared by the engine,
// the recorder and the backend.
package attendance

import (
	"fmt"
	"strings"
	"time"

	"github.com/kozaktomas/staff-clock/internal/biometric"
	"github.com/kozaktomas/staff-clock/internal/location"
)

// EventType is the kind of time-clock event.
type EventType string

const (
	EventArrival     EventType = "ARRIVAL"
	EventLunchOut    EventType = "LUNCH_OUT"
	EventLunchReturn EventType = "LUNCH_RETURN"
	EventDeparture   EventType = "DEPARTURE"
)

// EventTypes lists every valid event type in day order.
var EventTypes = []EventType{EventArrival, EventLunchOut, EventLunchReturn, EventDeparture}

// legacyEventTypes maps the names used by older clients.
var legacyEventTypes = map[string]EventType{
	"clock_in":     EventArrival,
	"lunch_out":    EventLunchOut,
	"lunch_return": EventLunchReturn,
	"clock_out":    EventDeparture,
}

// ParseEventType accepts canonical names in any case and the legacy names.
func ParseEventType(s string) (EventType, error) {
	s = strings.TrimSpace(s)
	if t, ok := legacyEventTypes[strings.ToLower(s)]; ok {
		return t, nil
	}
	t := EventType(strings.ToUpper(strings.ReplaceAll(s, "-", "_")))
	if t.Valid() {
		return t, nil
	}
	return "", fmt.Errorf("unknown event type %q", s)
}

// Valid reports whether t is one of EventTypes.
func (t EventType) Valid() bool {
	switch t {
	case EventArrival, EventLunchOut, EventLunchReturn, EventDeparture:
		return true
	}
	return false
}

// Outcome is the verdict of a verification attempt.
type Outcome string

const (
	OutcomePending  Outcome = "PENDING"
	OutcomeMatched  Outcome = "MATCHED"
	OutcomeRejected Outcome = "REJECTED"
	OutcomeError    Outcome = "ERROR"
)

// Attempt is one user-initiated verification cycle.
type Attempt struct {
	ID                 string
	EventType          EventType
	DistanceMeters     float64
	DescriptorDistance float64
	Outcome            Outcome
	StartedAt          time.Time
}

// Event is a verified time-clock event handed to the backend.
type Event struct {
	EmployeeID string
	EventType  EventType
	Coordinate location.Coordinate
	Snapshot   []byte // JPEG
	Timestamp  time.Time
	AttemptID  string
}

// Ack is the backend acknowledgement of a persisted event.
type Ack struct {
	ID      int64
	Message string
	Event   Event
}

// EmployeeProfile is the staff member the engine verifies.
type EmployeeProfile struct {
	ID         string
	Name       string
	SchoolID   string
	SchoolName string
	Anchor     *location.Coordinate
	Descriptor biometric.Descriptor
}
