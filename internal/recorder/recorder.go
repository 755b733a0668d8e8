// Package recorder turns a matched verification attempt into a stored
// time-clock event.
package recorder

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/kozaktomas/staff-clock/internal/attendance"
	"github.com/kozaktomas/staff-clock/internal/backend"
	"github.com/kozaktomas/staff-clock/internal/capture"
	"github.com/kozaktomas/staff-clock/internal/location"
)

// ErrSubmissionFailed wraps every failure to persist an event.
var ErrSubmissionFailed = errors.New("submission failed")

// Backend stores clock events.
type Backend interface {
	SubmitClockEvent(ctx context.Context, req backend.ClockEventRequest) (*backend.ClockEventResponse, error)
}

// Options controls snapshot encoding.
type Options struct {
	MaxSize int
	Quality int
}

// Recorder submits matched attempts. It does not retry.
type Recorder struct {
	backend    Backend
	employeeID string
	opts       Options
	now        func() time.Time
}

// New returns a recorder for employeeID.
func New(b Backend, employeeID string, opts Options) *Recorder {
	return &Recorder{backend: b, employeeID: employeeID, opts: opts, now: time.Now}
}

// Submit builds the event for a matched attempt and sends it.
func (r *Recorder) Submit(ctx context.Context, attempt attendance.Attempt, frame capture.Frame, fix location.Fix) (*attendance.Ack, error) {
	if attempt.Outcome != attendance.OutcomeMatched {
		return nil, fmt.Errorf("%w: attempt %s is %s, not %s", ErrSubmissionFailed, attempt.ID, attempt.Outcome, attendance.OutcomeMatched)
	}
	if !attempt.EventType.Valid() {
		return nil, fmt.Errorf("%w: invalid event type %q", ErrSubmissionFailed, attempt.EventType)
	}

	snapshot, err := EncodeSnapshot(frame.Data, r.opts.MaxSize, r.opts.Quality)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrSubmissionFailed, err)
	}

	event := attendance.Event{
		EmployeeID: r.employeeID,
		EventType:  attempt.EventType,
		Coordinate: fix.Coordinate(),
		Snapshot:   snapshot,
		Timestamp:  r.now(),
		AttemptID:  attempt.ID,
	}

	resp, err := r.backend.SubmitClockEvent(ctx, backend.ClockEventRequest{
		EventType: string(event.EventType),
		Lat:       event.Coordinate.Lat,
		Lng:       event.Coordinate.Lng,
		Photo:     DataURL(snapshot),
		AttemptID: event.AttemptID,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrSubmissionFailed, err)
	}
	if !resp.Success {
		return nil, fmt.Errorf("%w: backend rejected event: %s", ErrSubmissionFailed, resp.Message)
	}

	log.Printf("recorder: %s for employee %s stored as #%d (%d byte snapshot)",
		event.EventType, event.EmployeeID, resp.ID, len(snapshot))
	return &attendance.Ack{ID: resp.ID, Message: resp.Message, Event: event}, nil
}
