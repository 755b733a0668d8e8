package verify

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/kozaktomas/staff-clock/internal/attendance"
	"github.com/kozaktomas/staff-clock/internal/biometric"
	"github.com/kozaktomas/staff-clock/internal/capture"
	"github.com/kozaktomas/staff-clock/internal/location"
	"golang.org/x/text/message"
)

// Locator is the location feed owned by the engine for the duration of Run.
type Locator interface {
	Start(ctx context.Context, opts location.SensorOptions) error
	Events() <-chan location.Event
	Stop()
}

// SessionOpener acquires the capture device for one attempt.
type SessionOpener interface {
	Open(ctx context.Context) (*capture.Session, error)
}

// Submitter persists a matched attempt.
type Submitter interface {
	Submit(ctx context.Context, attempt attendance.Attempt, frame capture.Frame, fix location.Fix) (*attendance.Ack, error)
}

// Options tunes the engine.
type Options struct {
	RadiusMeters   float64
	MatchThreshold float64
	Sensor         location.SensorOptions
	// AttemptTimeout bounds an attempt from Begin until submission. Zero disables it.
	AttemptTimeout time.Duration
	Printer        *message.Printer
}

// Dependencies are the collaborators the engine drives.
type Dependencies struct {
	Locator   Locator
	Camera    SessionOpener
	Matcher   biometric.Matcher
	Submitter Submitter
}

// Engine is the verification state machine. All state transitions happen on
// the goroutine running Run; the public methods only send it messages.
type Engine struct {
	profile   attendance.EmployeeProfile
	opts      Options
	deps      Dependencies
	printer   *message.Printer
	newID     func() string
	now       func() time.Time
	commands  chan command
	results   chan result
	done      chan struct{}
	updates   chan Status
	started   atomic.Bool
	statusMu  sync.RWMutex
	published Status

	// Owned by the Run goroutine.
	runCtx     context.Context
	state      State
	reason     Reason
	message    string
	fatal      bool
	fix        *location.Fix
	prox       location.Proximity
	sensorErr  error
	att        *activeAttempt
	ack        *attendance.Ack
	mismatches int

	// openSettled is closed once the most recent camera open has been handled.
	openSettled chan struct{}
}

// New validates the profile and options and returns an idle engine.
func New(profile attendance.EmployeeProfile, opts Options, deps Dependencies) (*Engine, error) {
	if len(profile.Descriptor) == 0 {
		return nil, &biometric.ValidationError{Field: "descriptor", Reason: "employee has no enrolled face"}
	}
	if deps.Locator == nil || deps.Camera == nil || deps.Matcher == nil || deps.Submitter == nil {
		return nil, errors.New("verify: locator, camera, matcher and submitter are required")
	}
	if opts.RadiusMeters <= 0 {
		opts.RadiusMeters = location.DefaultRadiusMeters
	}
	if opts.MatchThreshold == 0 {
		opts.MatchThreshold = biometric.DefaultMatchThreshold
	}
	if opts.MatchThreshold < biometric.MinMatchThreshold || opts.MatchThreshold > biometric.MaxMatchThreshold {
		return nil, fmt.Errorf("verify: match threshold %.2f outside [%.2f, %.2f]",
			opts.MatchThreshold, biometric.MinMatchThreshold, biometric.MaxMatchThreshold)
	}
	printer := opts.Printer
	if printer == nil {
		printer = NewPrinter("en")
	}

	e := &Engine{
		profile:  profile,
		opts:     opts,
		deps:     deps,
		printer:  printer,
		newID:    uuid.NewString,
		now:      time.Now,
		commands: make(chan command),
		results:  make(chan result),
		done:     make(chan struct{}),
		updates:  make(chan Status, 1),
		state:    StateIdle,
	}
	e.published = e.snapshot()
	return e, nil
}

// Status returns the latest published snapshot.
func (e *Engine) Status() Status {
	e.statusMu.RLock()
	defer e.statusMu.RUnlock()
	return e.published
}

// Updates streams status snapshots. Pending snapshots are superseded by newer
// ones. The channel is closed when Run returns.
func (e *Engine) Updates() <-chan Status {
	return e.updates
}

// Done is closed when Run returns.
func (e *Engine) Done() <-chan struct{} {
	return e.done
}

// WaitFor blocks until a status satisfies pred or ctx ends.
func (e *Engine) WaitFor(ctx context.Context, pred func(Status) bool) (Status, error) {
	if s := e.Status(); pred(s) {
		return s, nil
	}
	for {
		select {
		case s, ok := <-e.updates:
			if !ok {
				s = e.Status()
				if pred(s) {
					return s, nil
				}
				return s, ErrEngineStopped
			}
			if pred(s) {
				return s, nil
			}
		case <-ctx.Done():
			return e.Status(), ctx.Err()
		}
	}
}

// Run starts the location feed and processes commands until ctx is done or
// location becomes unavailable. It returns nil on cancellation.
func (e *Engine) Run(ctx context.Context) error {
	if !e.started.CompareAndSwap(false, true) {
		return errors.New("verify: engine already running")
	}
	defer close(e.updates)
	defer close(e.done)

	e.runCtx = ctx
	e.setState(StateAwaitingLocation, ReasonNone, e.printer.Sprintf(msgAwaitingLocation))

	if err := e.deps.Locator.Start(ctx, e.opts.Sensor); err != nil {
		e.disable(err)
		return err
	}
	defer e.deps.Locator.Stop()
	defer e.discardAttempt()

	events := e.deps.Locator.Events()
	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-events:
			if !ok {
				events = nil
				continue
			}
			if err := e.handleLocation(ev); err != nil {
				return err
			}
		case cmd := <-e.commands:
			cmd.reply <- e.handleCommand(cmd)
		case res := <-e.results:
			e.handleResult(res)
		}
	}
}

// Begin starts an attempt for eventType. Only valid in Ready.
func (e *Engine) Begin(ctx context.Context, eventType attendance.EventType) error {
	if !eventType.Valid() {
		return fmt.Errorf("verify: invalid event type %q", eventType)
	}
	return e.send(ctx, command{kind: cmdBegin, eventType: eventType})
}

// Capture takes a frame from the open session and verifies it.
func (e *Engine) Capture(ctx context.Context) error {
	return e.send(ctx, command{kind: cmdCapture})
}

// Cancel closes the open session and discards the attempt.
func (e *Engine) Cancel(ctx context.Context) error {
	return e.send(ctx, command{kind: cmdCancel})
}

// Reset clears a finished attempt, keeping the location feed running.
func (e *Engine) Reset(ctx context.Context) error {
	return e.send(ctx, command{kind: cmdReset})
}

type commandKind int

const (
	cmdBegin commandKind = iota
	cmdCapture
	cmdCancel
	cmdReset
)

type command struct {
	kind      commandKind
	eventType attendance.EventType
	reply     chan error
}

func (e *Engine) send(ctx context.Context, cmd command) error {
	cmd.reply = make(chan error, 1)
	select {
	case e.commands <- cmd:
	case <-e.done:
		return ErrEngineStopped
	case <-ctx.Done():
		return ctx.Err()
	}
	// The loop replies before it can exit, so the reply is always delivered.
	return <-cmd.reply
}

func (e *Engine) handleCommand(cmd command) error {
	switch cmd.kind {
	case cmdBegin:
		return e.begin(cmd.eventType)
	case cmdCapture:
		return e.capture()
	case cmdCancel:
		return e.cancel()
	case cmdReset:
		return e.reset()
	}
	return fmt.Errorf("verify: unknown command %d", cmd.kind)
}

func (e *Engine) handleLocation(ev location.Event) error {
	if ev.Err != nil {
		if errors.Is(ev.Err, location.ErrLocationUnavailable) {
			e.disable(ev.Err)
			return ev.Err
		}
		e.sensorErr = ev.Err
		e.publish()
		return nil
	}
	if ev.Fix == nil {
		return nil
	}

	fix := *ev.Fix
	e.fix = &fix
	e.sensorErr = nil
	e.prox = location.Evaluate(fix, e.profile.Anchor, e.opts.RadiusMeters)

	switch e.state {
	case StateAwaitingLocation, StateBlocked, StateReady:
		e.enterLocationState()
	default:
		e.publish()
	}
	return nil
}

// enterLocationState moves to the state implied by the latest fix.
func (e *Engine) enterLocationState() {
	switch {
	case e.fix == nil:
		e.setState(StateAwaitingLocation, ReasonNone, e.printer.Sprintf(msgAwaitingLocation))
	case e.profile.Anchor == nil:
		e.setState(StateBlocked, ReasonOutOfRange, e.printer.Sprintf(msgNoAnchor))
	case !e.prox.WithinRange:
		e.setState(StateBlocked, ReasonOutOfRange,
			e.printer.Sprintf(msgOutOfRange, e.prox.DistanceMeters, e.opts.RadiusMeters))
	default:
		e.setState(StateReady, ReasonNone, e.printer.Sprintf(msgReady))
	}
}

// disable makes location loss terminal.
func (e *Engine) disable(err error) {
	log.Printf("verify: location unavailable, disabling engine: %v", err)
	e.discardAttempt()
	e.fatal = true
	e.setState(StateFailed, ReasonLocationUnavailable, e.printer.Sprintf(msgLocationDenied, err))
}

func (e *Engine) setState(state State, reason Reason, msg string) {
	e.state = state
	e.reason = reason
	e.message = msg
	e.publish()
}

func (e *Engine) snapshot() Status {
	s := Status{
		State:       e.state,
		Reason:      e.reason,
		Message:     e.message,
		Fatal:       e.fatal,
		Proximity:   e.prox,
		SensorError: e.sensorErr,
		Mismatches:  e.mismatches,
		Ack:         e.ack,
	}
	if e.fix != nil {
		fix := *e.fix
		s.Fix = &fix
	}
	if e.att != nil {
		rec := e.att.rec
		s.Attempt = &rec
		s.SessionOpen = e.att.session != nil
	}
	return s
}

// publish stores a snapshot and offers it on the updates channel, replacing
// any snapshot the consumer has not read yet. Only the Run goroutine publishes.
func (e *Engine) publish() {
	s := e.snapshot()
	e.statusMu.Lock()
	e.published = s
	e.statusMu.Unlock()

	select {
	case e.updates <- s:
		return
	default:
	}
	select {
	case <-e.updates:
	default:
	}
	e.updates <- s
}
