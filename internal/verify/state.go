// Package verify implements the state machine that authorizes a time-clock
// event by combining a proximity check with a live face match.
package verify

import (
	"errors"

	"github.com/kozaktomas/staff-clock/internal/attendance"
	"github.com/kozaktomas/staff-clock/internal/location"
)

var (
	// ErrAttemptActive is returned by Begin while another attempt is live.
	ErrAttemptActive = errors.New("verification attempt already active")
	// ErrNotReady is returned when a command is not valid in the current state.
	ErrNotReady = errors.New("engine not ready for this action")
	// ErrNoSession is returned by Cancel when no capture session is open.
	ErrNoSession = errors.New("no open capture session")
	// ErrEngineStopped is returned once Run has exited.
	ErrEngineStopped = errors.New("verification engine stopped")
)

// State is a verification engine state.
type State int

const (
	StateIdle State = iota
	StateAwaitingLocation
	StateBlocked
	StateReady
	StateCapturing
	StateVerifying
	StateSubmitting
	StateCompleted
	StateFailed
)

var stateNames = map[State]string{
	StateIdle:             "Idle",
	StateAwaitingLocation: "AwaitingLocation",
	StateBlocked:          "Blocked",
	StateReady:            "Ready",
	StateCapturing:        "Capturing",
	StateVerifying:        "Verifying",
	StateSubmitting:       "Submitting",
	StateCompleted:        "Completed",
	StateFailed:           "Failed",
}

func (s State) String() string {
	if name, ok := stateNames[s]; ok {
		return name
	}
	return "Unknown"
}

// Reason qualifies the Blocked and Failed states.
type Reason string

const (
	ReasonNone                Reason = ""
	ReasonLocationUnavailable Reason = "LocationUnavailable"
	ReasonOutOfRange          Reason = "OutOfRange"
	ReasonDeviceUnavailable   Reason = "DeviceUnavailable"
	ReasonNoFaceDetected      Reason = "NoFaceDetected"
	ReasonBiometricMismatch   Reason = "BiometricMismatch"
	ReasonVerificationError   Reason = "VerificationError"
	ReasonSubmissionFailed    Reason = "SubmissionFailed"
	ReasonTimedOut            Reason = "TimedOut"
)

// recaptureReasons are failures after which the session stays open and the
// user may capture again within the same attempt.
var recaptureReasons = map[Reason]bool{
	ReasonNoFaceDetected:    true,
	ReasonBiometricMismatch: true,
	ReasonVerificationError: true,
	ReasonOutOfRange:        true,
}

// Status is an observable snapshot of the engine.
type Status struct {
	State   State
	Reason  Reason
	Message string
	// Fatal is set when location is unavailable; the engine accepts no further commands.
	Fatal bool

	Fix       *location.Fix
	Proximity location.Proximity
	// SensorError is the last non-fatal sensor error, cleared by the next fix.
	SensorError error

	Attempt     *attendance.Attempt
	SessionOpen bool
	// Mismatches counts consecutive biometric mismatches. It is informational only.
	Mismatches int
	Ack        *attendance.Ack
}

func (s Status) String() string {
	if s.Reason != ReasonNone {
		return s.State.String() + "(" + string(s.Reason) + ")"
	}
	return s.State.String()
}
