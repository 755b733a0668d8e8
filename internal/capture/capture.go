// Package capture owns the live media-capture device for a verification attempt.
package capture

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"
)

var (
	// ErrDeviceUnavailable is returned when the device cannot be acquired.
	ErrDeviceUnavailable = errors.New("capture device unavailable")
	// ErrSessionBusy is returned when a session is already open.
	ErrSessionBusy = errors.New("capture session already open")
	// ErrSessionClosed is returned by operations on a closed session.
	ErrSessionClosed = errors.New("capture session closed")
)

// Kind is the media kind requested from a device.
type Kind string

const KindVideo Kind = "video"

// Device grants access to a media stream.
type Device interface {
	RequestAccess(ctx context.Context, kind Kind) (Stream, error)
}

// Stream is an acquired device stream. Release stops all underlying tracks.
type Stream interface {
	ReadFrame(ctx context.Context) ([]byte, error)
	Release()
}

// Frame is one encoded still image taken from a stream.
type Frame struct {
	Data       []byte
	CapturedAt time.Time
}

// Camera serializes access to a Device so that at most one Session is open.
type Camera struct {
	device Device
	now    func() time.Time

	mu   sync.Mutex
	busy bool
}

// NewCamera creates a camera over device.
func NewCamera(device Device) *Camera {
	return &Camera{device: device, now: time.Now}
}

// Open acquires the device and returns the session owning it.
func (c *Camera) Open(ctx context.Context) (*Session, error) {
	c.mu.Lock()
	if c.busy {
		c.mu.Unlock()
		return nil, ErrSessionBusy
	}
	c.busy = true
	c.mu.Unlock()

	if c.device == nil {
		c.release()
		return nil, fmt.Errorf("%w: no capture device", ErrDeviceUnavailable)
	}

	stream, err := c.device.RequestAccess(ctx, KindVideo)
	if err != nil {
		c.release()
		if errors.Is(err, ErrDeviceUnavailable) {
			return nil, err
		}
		return nil, fmt.Errorf("%w: %w", ErrDeviceUnavailable, err)
	}

	return &Session{camera: c, stream: stream}, nil
}

// Busy reports whether a session is open or being opened.
func (c *Camera) Busy() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.busy
}

func (c *Camera) release() {
	c.mu.Lock()
	c.busy = false
	c.mu.Unlock()
}

// Session is the scoped owner of an acquired stream.
type Session struct {
	camera *Camera
	stream Stream

	mu     sync.Mutex
	closed bool
	last   *Frame
}

// Capture reads one frame. It fails with ErrSessionClosed once Close has
// been called, including when Close races an in-flight read.
func (s *Session) Capture(ctx context.Context) (Frame, error) {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return Frame{}, ErrSessionClosed
	}
	stream := s.stream
	s.mu.Unlock()

	data, err := stream.ReadFrame(ctx)

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return Frame{}, ErrSessionClosed
	}
	if err != nil {
		return Frame{}, fmt.Errorf("reading frame: %w", err)
	}
	frame := Frame{Data: data, CapturedAt: s.camera.now()}
	s.last = &frame
	return frame, nil
}

// LastFrame returns the most recently captured frame.
func (s *Session) LastFrame() (Frame, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.last == nil {
		return Frame{}, false
	}
	return *s.last, true
}

// Closed reports whether Close has been called.
func (s *Session) Closed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

// Close releases the stream and frees the camera. Idempotent.
func (s *Session) Close() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	stream := s.stream
	s.mu.Unlock()

	stream.Release()
	s.camera.release()
}

// WithSession opens a session, runs fn and closes the session on every exit
// path, panics included.
func WithSession(ctx context.Context, cam *Camera, fn func(*Session) error) error {
	s, err := cam.Open(ctx)
	if err != nil {
		return err
	}
	defer s.Close()
	return fn(s)
}
