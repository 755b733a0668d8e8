package database

import (
	"context"
)

// EmployeeReader resolves authenticated employees
type EmployeeReader interface {
	// GetEmployeeByToken returns the active employee owning token, nil if none
	GetEmployeeByToken(ctx context.Context, token string) (*Employee, error)
}

// ClockEventReader provides read-only access to clock events
type ClockEventReader interface {
	// ListClockEvents returns events of an employee, newest first, without photos.
	// An empty types slice matches every event type.
	ListClockEvents(ctx context.Context, employeeID int64, types []string, limit int) ([]StoredClockEvent, error)
	// GetClockEventByAttempt returns the event recorded for an attempt, nil if none
	GetClockEventByAttempt(ctx context.Context, attemptID string) (*StoredClockEvent, error)
}

// ClockEventWriter provides write access to clock events
type ClockEventWriter interface {
	ClockEventReader

	// SaveClockEvent inserts ev and fills its ID and Timestamp. Saving an attempt
	// that already exists loads the stored row into ev and returns created=false.
	SaveClockEvent(ctx context.Context, ev *StoredClockEvent) (created bool, err error)
}
