package location

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"
)

// Monitor turns a callback-driven Sensor into a single-subscriber stream.
// Only the most recent undelivered event is kept; older ones are superseded.
type Monitor struct {
	sensor Sensor
	now    func() time.Time

	quit chan struct{}

	mu          sync.Mutex
	events      chan Event
	latest      *Fix
	opts        SensorOptions
	unsubscribe func()
	started     bool
	stopped     bool
	failed      bool
}

// NewMonitor creates a monitor over sensor. A nil sensor makes Start fail
// with ErrLocationUnavailable.
func NewMonitor(sensor Sensor) *Monitor {
	return &Monitor{
		sensor: sensor,
		now:    time.Now,
		quit:   make(chan struct{}),
		events: make(chan Event, 1),
	}
}

// Events returns the stream of fixes and sensor errors. The channel is closed by Stop.
func (m *Monitor) Events() <-chan Event {
	return m.events
}

// Latest returns the most recent accepted fix, if any.
func (m *Monitor) Latest() (Fix, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.latest == nil {
		return Fix{}, false
	}
	return *m.latest, true
}

// Start begins continuous sampling. Absence of the sensor or a refused
// subscription is reported both as the returned error and as a single
// terminal event on the stream.
func (m *Monitor) Start(ctx context.Context, opts SensorOptions) error {
	m.mu.Lock()
	if m.started {
		m.mu.Unlock()
		return errors.New("location monitor already started")
	}
	m.started = true
	m.opts = opts
	m.mu.Unlock()

	if m.sensor == nil {
		err := fmt.Errorf("%w: no geolocation sensor", ErrLocationUnavailable)
		m.fail(err)
		return err
	}

	unsubscribe, err := m.sensor.Subscribe(m.onFix, m.onError, opts)
	if err != nil {
		if !errors.Is(err, ErrLocationUnavailable) {
			err = fmt.Errorf("%w: %w", ErrLocationUnavailable, err)
		}
		m.fail(err)
		return err
	}

	m.mu.Lock()
	if m.stopped || m.failed {
		// Stop or a fatal callback raced the subscription.
		m.mu.Unlock()
		unsubscribe()
		return nil
	}
	m.unsubscribe = unsubscribe
	m.mu.Unlock()

	if ctx != nil && ctx.Done() != nil {
		go func() {
			select {
			case <-ctx.Done():
				m.Stop()
			case <-m.quit:
			}
		}()
	}
	return nil
}

// Stop releases the subscription and closes the event stream. Safe to call twice.
func (m *Monitor) Stop() {
	m.mu.Lock()
	if m.stopped {
		m.mu.Unlock()
		return
	}
	m.stopped = true
	unsubscribe := m.unsubscribe
	m.unsubscribe = nil
	close(m.events)
	close(m.quit)
	m.mu.Unlock()

	if unsubscribe != nil {
		unsubscribe()
	}
}

func (m *Monitor) onFix(fix Fix) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.stopped || m.failed {
		return
	}
	if m.opts.MaxFixAge > 0 && !fix.Timestamp.IsZero() && m.now().Sub(fix.Timestamp) > m.opts.MaxFixAge {
		return
	}
	f := fix
	m.latest = &f
	m.publishLocked(Event{Fix: &f})
}

func (m *Monitor) onError(err error) {
	if err == nil {
		return
	}
	if errors.Is(err, ErrLocationUnavailable) {
		m.fail(err)
		return
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.stopped || m.failed {
		return
	}
	m.publishLocked(Event{Err: err})
}

// fail publishes a terminal error once and drops the subscription.
func (m *Monitor) fail(err error) {
	m.mu.Lock()
	if m.stopped || m.failed {
		m.mu.Unlock()
		return
	}
	m.failed = true
	m.publishLocked(Event{Err: err})
	unsubscribe := m.unsubscribe
	m.unsubscribe = nil
	m.mu.Unlock()

	if unsubscribe != nil {
		unsubscribe()
	}
}

// publishLocked replaces any pending event with ev. Caller holds m.mu.
func (m *Monitor) publishLocked(ev Event) {
	select {
	case m.events <- ev:
		return
	default:
	}
	select {
	case <-m.events:
	default:
	}
	m.events <- ev
}
