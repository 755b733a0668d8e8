package capture

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"sync"
	"sync/atomic"
)

var imageExtensions = []string{".jpg", ".jpeg", ".png", ".bmp"}

// DirectoryDevice serves image files from a directory as frames, cycling
// through them in name order. It is used for kiosks fed by an external
// capture daemon and for demos.
type DirectoryDevice struct {
	dir    string
	active atomic.Int32
}

// NewDirectoryDevice creates a device reading frames from dir.
func NewDirectoryDevice(dir string) *DirectoryDevice {
	return &DirectoryDevice{dir: dir}
}

// ActiveTracks returns the number of streams not yet released.
func (d *DirectoryDevice) ActiveTracks() int {
	return int(d.active.Load())
}

// RequestAccess lists the directory and opens a stream over its images.
func (d *DirectoryDevice) RequestAccess(ctx context.Context, kind Kind) (Stream, error) {
	if kind != KindVideo {
		return nil, fmt.Errorf("%w: unsupported media kind %q", ErrDeviceUnavailable, kind)
	}

	entries, err := os.ReadDir(d.dir)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrDeviceUnavailable, err)
	}

	var files []string
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		if slices.Contains(imageExtensions, strings.ToLower(filepath.Ext(e.Name()))) {
			files = append(files, filepath.Join(d.dir, e.Name()))
		}
	}
	if len(files) == 0 {
		return nil, fmt.Errorf("%w: no images in %s", ErrDeviceUnavailable, d.dir)
	}
	slices.Sort(files)

	d.active.Add(1)
	return &directoryStream{device: d, files: files}, nil
}

type directoryStream struct {
	device *DirectoryDevice
	files  []string

	mu       sync.Mutex
	next     int
	released bool
}

func (s *directoryStream) ReadFrame(ctx context.Context) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.Lock()
	if s.released {
		s.mu.Unlock()
		return nil, ErrSessionClosed
	}
	path := s.files[s.next%len(s.files)]
	s.next++
	s.mu.Unlock()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", filepath.Base(path), err)
	}
	return data, nil
}

func (s *directoryStream) Release() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.released {
		return
	}
	s.released = true
	s.device.active.Add(-1)
}
