package stt

import (
	"context"
	"strings"
	"sync"
)

// Mock implements Transcriber for testing. Recognized speech is scripted with
// Say; Start clears it like Live does.
type Mock struct {
	// StartErr is returned by Start when set.
	StartErr error

	mu        sync.Mutex
	segments  []string
	listening bool
	locales   []string
	stops     int
	resets    int
	audio     int
}

// NewMock creates a mock transcriber.
func NewMock() *Mock {
	return &Mock{}
}

// Start implements Transcriber.
func (m *Mock) Start(ctx context.Context, locale string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.locales = append(m.locales, locale)
	if m.StartErr != nil {
		return m.StartErr
	}
	m.segments = nil
	m.listening = true
	return nil
}

// Stop implements Transcriber.
func (m *Mock) Stop() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.listening = false
	m.stops++
	return nil
}

// SendAudio implements Transcriber.
func (m *Mock) SendAudio(pcm []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.listening {
		return ErrNotListening
	}
	m.audio += len(pcm)
	return nil
}

// Transcript implements Transcriber.
func (m *Mock) Transcript() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return strings.Join(m.segments, " ")
}

// Reset implements Transcriber.
func (m *Mock) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.segments = nil
	m.resets++
}

// Listening implements Transcriber.
func (m *Mock) Listening() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.listening
}

// Say appends a recognized segment.
func (m *Mock) Say(text string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.segments = append(m.segments, text)
}

// Locales returns the locales passed to Start.
func (m *Mock) Locales() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.locales...)
}

// Stops returns how many times Stop was called.
func (m *Mock) Stops() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.stops
}

// Resets returns how many times Reset was called.
func (m *Mock) Resets() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.resets
}

// AudioBytes returns how many bytes were sent while listening.
func (m *Mock) AudioBytes() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.audio
}

// MockClient implements Client for testing. Emit plays back segments as the
// engine would.
type MockClient struct {
	// ConnectErr is returned by Connect when set.
	ConnectErr error
	// Flush lists segments delivered as final results during Close.
	Flush []string

	mu        sync.Mutex
	callback  TranscriptCallback
	connected bool
	options   []Options
	sent      int
	closes    int
}

// NewMockClient creates a mock streaming client.
func NewMockClient() *MockClient {
	return &MockClient{}
}

// Connect implements Client.
func (c *MockClient) Connect(ctx context.Context, opts Options) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.options = append(c.options, opts)
	if c.ConnectErr != nil {
		return c.ConnectErr
	}
	c.connected = true
	return nil
}

// SendAudio implements Client.
func (c *MockClient) SendAudio(pcm []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.connected {
		return ErrNotConnected
	}
	c.sent += len(pcm)
	return nil
}

// OnTranscript implements Client.
func (c *MockClient) OnTranscript(cb TranscriptCallback) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.callback = cb
}

// Close implements Client.
func (c *MockClient) Close() error {
	c.mu.Lock()
	c.connected = false
	c.closes++
	flush := c.Flush
	c.mu.Unlock()

	for _, text := range flush {
		c.Emit(text, true)
	}
	return nil
}

// IsConnected implements Client.
func (c *MockClient) IsConnected() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.connected
}

// Emit delivers a segment to the registered callback.
func (c *MockClient) Emit(text string, isFinal bool) {
	c.mu.Lock()
	cb := c.callback
	c.mu.Unlock()
	if cb != nil {
		cb(text, isFinal)
	}
}

// Options returns the options of every Connect call.
func (c *MockClient) Options() []Options {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]Options(nil), c.options...)
}

// Sent returns how many audio bytes were accepted.
func (c *MockClient) Sent() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.sent
}

// Closes returns how many times Close was called.
func (c *MockClient) Closes() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closes
}

var (
	_ Transcriber = (*Mock)(nil)
	_ Client      = (*MockClient)(nil)
)
