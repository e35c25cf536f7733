package tts

import (
	"context"
	"sync"
	"time"

	"github.com/teslashibe/go-lingua/pkg/audio"
)

// Mock implements Provider for testing.
type Mock struct {
	// SynthesizeFunc is called by Synthesize. If nil, silence is returned
	// at roughly 20 ms per character.
	SynthesizeFunc func(ctx context.Context, text, locale string) (*AudioResult, error)

	// HealthFunc is called by Health. If nil, the mock is healthy.
	HealthFunc func(ctx context.Context) error

	mu    sync.Mutex
	calls []MockCall
}

// MockCall records a method invocation.
type MockCall struct {
	Method string
	Text   string
	Locale string
	Time   time.Time
}

// NewMock creates a mock returning silent audio.
func NewMock() *Mock {
	return &Mock{}
}

// FailingMock returns a mock whose every call fails with err.
func FailingMock(err error) *Mock {
	return &Mock{
		SynthesizeFunc: func(ctx context.Context, text, locale string) (*AudioResult, error) {
			return nil, err
		},
		HealthFunc: func(ctx context.Context) error {
			return err
		},
	}
}

// Synthesize implements Provider.
func (m *Mock) Synthesize(ctx context.Context, text, locale string) (*AudioResult, error) {
	m.record("Synthesize", text, locale)
	if m.SynthesizeFunc != nil {
		return m.SynthesizeFunc(ctx, text, locale)
	}
	format := audio.Format{SampleRate: 24000, Channels: 1}
	pcm := make([]byte, len(text)*960)
	return newResult(pcm, format, text, locale, time.Now()), nil
}

// Health implements Provider.
func (m *Mock) Health(ctx context.Context) error {
	m.record("Health", "", "")
	if m.HealthFunc != nil {
		return m.HealthFunc(ctx)
	}
	return nil
}

// Close implements Provider.
func (m *Mock) Close() error {
	m.record("Close", "", "")
	return nil
}

func (m *Mock) record(method, text, locale string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = append(m.calls, MockCall{Method: method, Text: text, Locale: locale, Time: time.Now()})
}

// Calls returns all recorded calls.
func (m *Mock) Calls() []MockCall {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]MockCall(nil), m.calls...)
}

// CallCount returns how many times method was called.
func (m *Mock) CallCount(method string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, c := range m.calls {
		if c.Method == method {
			n++
		}
	}
	return n
}

// LastCall returns the most recent call, or nil.
func (m *Mock) LastCall() *MockCall {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.calls) == 0 {
		return nil
	}
	c := m.calls[len(m.calls)-1]
	return &c
}

// MockSink implements Sink by recording what would be played.
type MockSink struct {
	// PlayFunc is called by Play when set.
	PlayFunc func(ctx context.Context, pcm []byte, format audio.Format) error

	mu    sync.Mutex
	plays []MockPlay
}

// MockPlay records one Play call.
type MockPlay struct {
	Bytes  int
	Format audio.Format
}

// NewMockSink creates a recording sink.
func NewMockSink() *MockSink {
	return &MockSink{}
}

// Play implements Sink.
func (s *MockSink) Play(ctx context.Context, pcm []byte, format audio.Format) error {
	s.mu.Lock()
	s.plays = append(s.plays, MockPlay{Bytes: len(pcm), Format: format})
	fn := s.PlayFunc
	s.mu.Unlock()
	if fn != nil {
		return fn(ctx, pcm, format)
	}
	return nil
}

// Plays returns recorded plays.
func (s *MockSink) Plays() []MockPlay {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]MockPlay(nil), s.plays...)
}

var (
	_ Provider = (*Mock)(nil)
	_ Sink     = (*MockSink)(nil)
)
