package audio

import (
	"context"
	"sync"
)

// MockDevice implements Device for testing.
type MockDevice struct {
	// OpenFunc is called when Open is invoked.
	// If nil, a new MockStream is returned.
	OpenFunc func(ctx context.Context, format Format) (Stream, error)

	mu      sync.Mutex
	opens   int
	streams []*MockStream
}

// NewMockDevice creates a mock device that always grants access.
func NewMockDevice() *MockDevice {
	return &MockDevice{}
}

// DeniedDevice returns a mock device whose Open always fails with err.
func DeniedDevice(err error) *MockDevice {
	return &MockDevice{
		OpenFunc: func(ctx context.Context, format Format) (Stream, error) {
			return nil, err
		},
	}
}

// Open implements Device.
func (d *MockDevice) Open(ctx context.Context, format Format) (Stream, error) {
	d.mu.Lock()
	d.opens++
	fn := d.OpenFunc
	d.mu.Unlock()

	if fn != nil {
		return fn(ctx, format)
	}

	s := NewMockStream(64)
	d.mu.Lock()
	d.streams = append(d.streams, s)
	d.mu.Unlock()
	return s, nil
}

// Opens returns how many times Open was called.
func (d *MockDevice) Opens() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.opens
}

// Last returns the most recently opened stream, or nil.
func (d *MockDevice) Last() *MockStream {
	d.mu.Lock()
	defer d.mu.Unlock()
	if len(d.streams) == 0 {
		return nil
	}
	return d.streams[len(d.streams)-1]
}

// MockStream is a Stream fed by Push.
type MockStream struct {
	mu     sync.Mutex
	ch     chan []byte
	closed bool
	pushed int
}

// NewMockStream creates a stream buffering up to size chunks.
func NewMockStream(size int) *MockStream {
	return &MockStream{ch: make(chan []byte, size)}
}

// Push delivers a chunk to the reader. It fails once the stream is closed.
func (s *MockStream) Push(chunk []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrStreamClosed
	}
	s.ch <- chunk
	s.pushed++
	return nil
}

// Chunks implements Stream.
func (s *MockStream) Chunks() <-chan []byte {
	return s.ch
}

// Close implements Stream.
func (s *MockStream) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.closed {
		s.closed = true
		close(s.ch)
	}
	return nil
}

// Closed reports whether the capture was released.
func (s *MockStream) Closed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

// Pushed returns how many chunks were accepted.
func (s *MockStream) Pushed() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.pushed
}

var (
	_ Device = (*MockDevice)(nil)
	_ Stream = (*MockStream)(nil)
)
