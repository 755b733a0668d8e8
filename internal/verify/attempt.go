package verify

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/kozaktomas/staff-clock/internal/attendance"
	"github.com/kozaktomas/staff-clock/internal/biometric"
	"github.com/kozaktomas/staff-clock/internal/capture"
	"github.com/kozaktomas/staff-clock/internal/location"
)

// activeAttempt is the loop-owned state of the live attempt.
type activeAttempt struct {
	rec    attendance.Attempt
	ctx    context.Context
	cancel context.CancelFunc
	timer  *time.Timer

	session *capture.Session
	opening bool
	// pendingCapture records a Capture issued while the device was opening.
	pendingCapture bool
	capturing      bool
	frame          capture.Frame
	// gen increments on every capture so results of superseded captures are dropped.
	gen int
	// finished is set once the attempt can produce no further results.
	finished bool
}

type resultKind int

const (
	resOpened resultKind = iota
	resFrame
	resVerified
	resSubmitted
	resTimedOut
)

// result is posted by async operations back to the loop, tagged with the
// attempt and capture generation it belongs to.
type result struct {
	kind      resultKind
	attemptID string
	gen       int

	session  *capture.Session
	frame    capture.Frame
	distance float64
	ack      *attendance.Ack
	err      error
	// settled is closed by the loop once an open result has been handled.
	settled  chan struct{}
}

// post hands r to the loop. If the loop has exited, any session carried by r
// is closed so the device is not leaked.
func (e *Engine) post(r result) {
	select {
	case e.results <- r:
	case <-e.done:
		if r.session != nil {
			r.session.Close()
		}
		if r.settled != nil {
			close(r.settled)
		}
	}
}

// current reports whether r belongs to the live attempt and capture.
func (e *Engine) current(r result) bool {
	if e.att == nil || e.att.finished || e.att.rec.ID != r.attemptID {
		return false
	}
	if r.kind == resTimedOut || r.kind == resOpened {
		return true
	}
	return r.gen == e.att.gen
}

func (e *Engine) begin(eventType attendance.EventType) error {
	if e.state != StateReady {
		if e.att != nil {
			return ErrAttemptActive
		}
		return fmt.Errorf("%w: state is %s", ErrNotReady, e.state)
	}

	ctx, cancel := context.WithCancel(e.runCtx)
	a := &activeAttempt{
		rec: attendance.Attempt{
			ID:             e.newID(),
			EventType:      eventType,
			DistanceMeters: e.prox.DistanceMeters,
			Outcome:        attendance.OutcomePending,
			StartedAt:      e.now(),
		},
		ctx:     ctx,
		cancel:  cancel,
		opening: true,
	}
	e.att = a
	e.ack = nil

	if e.opts.AttemptTimeout > 0 {
		id := a.rec.ID
		a.timer = time.AfterFunc(e.opts.AttemptTimeout, func() {
			e.post(result{kind: resTimedOut, attemptID: id})
		})
	}

	log.Printf("verify: attempt %s started for %s at %.0fm", a.rec.ID, eventType, a.rec.DistanceMeters)
	e.setState(StateCapturing, ReasonNone, e.printer.Sprintf(msgOpeningCamera))

	// An open abandoned by Cancel still holds the device until the loop
	// closes its session, so the next open waits for it to settle.
	prev := e.openSettled
	settled := make(chan struct{})
	e.openSettled = settled

	go func(id string) {
		if prev != nil {
			select {
			case <-prev:
			case <-ctx.Done():
				e.post(result{kind: resOpened, attemptID: id, err: ctx.Err(), settled: settled})
				return
			}
		}
		s, err := e.deps.Camera.Open(ctx)
		e.post(result{kind: resOpened, attemptID: id, session: s, err: err, settled: settled})
	}(a.rec.ID)
	return nil
}

func (e *Engine) capture() error {
	a := e.att
	if a == nil || a.finished {
		return fmt.Errorf("%w: no attempt in progress", ErrNotReady)
	}

	switch {
	case e.state == StateCapturing && a.opening:
		a.pendingCapture = true
		return nil
	case e.state == StateCapturing && a.capturing:
		return fmt.Errorf("%w: capture already in progress", ErrNotReady)
	case e.state == StateCapturing && a.session != nil:
	case e.state == StateFailed && recaptureReasons[e.reason] && a.session != nil:
	default:
		return fmt.Errorf("%w: cannot capture in state %s", ErrNotReady, e.state)
	}

	e.startCapture()
	return nil
}

func (e *Engine) startCapture() {
	a := e.att
	a.gen++
	a.capturing = true
	a.pendingCapture = false
	a.rec.Outcome = attendance.OutcomePending
	a.rec.DescriptorDistance = 0
	e.setState(StateCapturing, ReasonNone, e.printer.Sprintf(msgLookAtCamera))

	go func(id string, gen int, s *capture.Session) {
		frame, err := s.Capture(a.ctx)
		e.post(result{kind: resFrame, attemptID: id, gen: gen, frame: frame, err: err})
	}(a.rec.ID, a.gen, a.session)
}

func (e *Engine) cancel() error {
	a := e.att
	if a == nil || a.finished || (a.session == nil && !a.opening) {
		return ErrNoSession
	}
	log.Printf("verify: attempt %s cancelled in state %s", a.rec.ID, e.state)
	e.discardAttempt()
	e.enterLocationState()
	if e.state == StateReady {
		e.message = e.printer.Sprintf(msgCancelled)
		e.publish()
	}
	return nil
}

func (e *Engine) reset() error {
	if e.state != StateCompleted && e.state != StateFailed {
		return fmt.Errorf("%w: nothing to reset in state %s", ErrNotReady, e.state)
	}
	e.discardAttempt()
	e.ack = nil
	e.enterLocationState()
	return nil
}

// discardAttempt closes the session, cancels in-flight work and forgets the attempt.
func (e *Engine) discardAttempt() {
	if e.att == nil {
		return
	}
	e.finishAttempt()
	e.att = nil
}

// finishAttempt releases everything held by the attempt but keeps its record
// visible in Status until Reset.
func (e *Engine) finishAttempt() {
	a := e.att
	if a == nil {
		return
	}
	a.finished = true
	a.opening = false
	a.capturing = false
	if a.timer != nil {
		a.timer.Stop()
	}
	e.closeSession()
	a.cancel()
}

func (e *Engine) closeSession() {
	if e.att != nil && e.att.session != nil {
		e.att.session.Close()
		e.att.session = nil
	}
}

// fail moves to Failed(reason). Reasons that allow recapture keep the session open.
func (e *Engine) fail(reason Reason, outcome attendance.Outcome, msg string) {
	e.att.rec.Outcome = outcome
	if !recaptureReasons[reason] {
		e.finishAttempt()
	}
	log.Printf("verify: attempt %s failed: %s", e.att.rec.ID, reason)
	e.setState(StateFailed, reason, msg)
}

func (e *Engine) handleResult(r result) {
	if r.settled != nil {
		defer close(r.settled)
	}
	if !e.current(r) {
		if r.session != nil {
			r.session.Close()
		}
		log.Printf("verify: discarding stale result for attempt %s", r.attemptID)
		return
	}

	switch r.kind {
	case resOpened:
		e.onOpened(r)
	case resFrame:
		e.onFrame(r)
	case resVerified:
		e.onVerified(r)
	case resSubmitted:
		e.onSubmitted(r)
	case resTimedOut:
		e.onTimedOut()
	}
}

func (e *Engine) onOpened(r result) {
	a := e.att
	a.opening = false
	if r.err != nil {
		log.Printf("verify: opening camera: %v", r.err)
		e.fail(ReasonDeviceUnavailable, attendance.OutcomeError, e.printer.Sprintf(msgDeviceUnavailable))
		return
	}
	a.session = r.session
	if a.pendingCapture {
		e.startCapture()
		return
	}
	e.setState(StateCapturing, ReasonNone, e.printer.Sprintf(msgLookAtCamera))
}

func (e *Engine) onFrame(r result) {
	a := e.att
	a.capturing = false
	if r.err != nil {
		log.Printf("verify: capturing frame: %v", r.err)
		e.fail(ReasonDeviceUnavailable, attendance.OutcomeError, e.printer.Sprintf(msgDeviceUnavailable))
		return
	}
	a.frame = r.frame
	e.setState(StateVerifying, ReasonNone, e.printer.Sprintf(msgVerifying))

	enrolled := e.profile.Descriptor
	go func(id string, gen int, frame []byte) {
		res := result{kind: resVerified, attemptID: id, gen: gen}
		desc, err := e.deps.Matcher.DetectAndDescribe(a.ctx, frame)
		if err == nil {
			res.distance, err = e.deps.Matcher.Compare(desc, enrolled)
		}
		res.err = err
		e.post(res)
	}(a.rec.ID, a.gen, r.frame.Data)
}

func (e *Engine) onVerified(r result) {
	a := e.att
	switch {
	case errors.Is(r.err, biometric.ErrNoFaceDetected):
		e.fail(ReasonNoFaceDetected, attendance.OutcomeError, e.printer.Sprintf(msgNoFace))
		return
	case r.err != nil:
		log.Printf("verify: face verification: %v", r.err)
		e.fail(ReasonVerificationError, attendance.OutcomeError, e.printer.Sprintf(msgVerifyError))
		return
	}

	a.rec.DescriptorDistance = r.distance
	if !biometric.IsMatch(r.distance, e.opts.MatchThreshold) {
		e.mismatches++
		if e.mismatches > 1 {
			log.Printf("verify: %d consecutive mismatches for employee %s", e.mismatches, e.profile.ID)
		}
		e.fail(ReasonBiometricMismatch, attendance.OutcomeRejected, e.printer.Sprintf(msgMismatch))
		return
	}
	e.mismatches = 0

	// Proximity is an independent gate: it must still hold at the moment of the match.
	prox := location.Evaluate(*e.fix, e.profile.Anchor, e.opts.RadiusMeters)
	a.rec.DistanceMeters = prox.DistanceMeters
	if !prox.WithinRange {
		e.fail(ReasonOutOfRange, attendance.OutcomeError,
			e.printer.Sprintf(msgMovedAway, prox.DistanceMeters, e.opts.RadiusMeters))
		return
	}

	a.rec.Outcome = attendance.OutcomeMatched
	if a.timer != nil {
		a.timer.Stop()
	}
	// The frame is kept as the snapshot; the device is no longer needed.
	e.closeSession()
	e.setState(StateSubmitting, ReasonNone, e.printer.Sprintf(msgSubmitting))

	go func(rec attendance.Attempt, gen int, frame capture.Frame, fix location.Fix) {
		ack, err := e.deps.Submitter.Submit(a.ctx, rec, frame, fix)
		e.post(result{kind: resSubmitted, attemptID: rec.ID, gen: gen, ack: ack, err: err})
	}(a.rec, a.gen, a.frame, *e.fix)
}

func (e *Engine) onSubmitted(r result) {
	if r.err != nil {
		log.Printf("verify: submitting attempt %s: %v", e.att.rec.ID, r.err)
		e.fail(ReasonSubmissionFailed, attendance.OutcomeError, e.printer.Sprintf(msgSubmitFailed, r.err))
		return
	}
	e.finishAttempt()
	e.ack = r.ack
	log.Printf("verify: attempt %s recorded", e.att.rec.ID)
	e.setState(StateCompleted, ReasonNone, e.printer.Sprintf(msgCompleted))
}

func (e *Engine) onTimedOut() {
	if e.state == StateSubmitting {
		return
	}
	e.finishAttempt()
	e.fail(ReasonTimedOut, attendance.OutcomeError, e.printer.Sprintf(msgTimedOut))
}
