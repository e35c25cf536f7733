package stt

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
)

// LiveOption configures a Live transcriber.
type LiveOption func(*Live)

// WithSampleRate sets the PCM sample rate sent to the engine.
func WithSampleRate(rate int) LiveOption {
	return func(l *Live) {
		l.sampleRate = rate
	}
}

// WithChannels sets the PCM channel count sent to the engine.
func WithChannels(n int) LiveOption {
	return func(l *Live) {
		l.channels = n
	}
}

// WithClearOnStart controls whether Start discards the previous transcript.
func WithClearOnStart(clear bool) LiveOption {
	return func(l *Live) {
		l.clearOnStart = clear
	}
}

// WithLogger sets the structured logger.
func WithLogger(logger *slog.Logger) LiveOption {
	return func(l *Live) {
		l.logger = logger
	}
}

// OnUpdate registers a callback fired with the transcript after every change.
func OnUpdate(fn func(transcript string)) LiveOption {
	return func(l *Live) {
		l.onUpdate = fn
	}
}

// Live is a Transcriber over a streaming Client. The transcript is the
// finalized segments followed by the current interim segment.
type Live struct {
	client       Client
	sampleRate   int
	channels     int
	clearOnStart bool
	logger       *slog.Logger
	onUpdate     func(string)

	mu        sync.Mutex
	final     []string
	interim   string
	listening bool
}

// NewLive creates a transcriber over client.
func NewLive(client Client, opts ...LiveOption) *Live {
	l := &Live{
		client:       client,
		sampleRate:   16000,
		channels:     1,
		clearOnStart: true,
		logger:       slog.Default(),
	}
	for _, opt := range opts {
		opt(l)
	}
	l.logger = l.logger.With("component", "stt.live")
	client.OnTranscript(l.handle)
	return l
}

// Start connects the engine for locale.
func (l *Live) Start(ctx context.Context, locale string) error {
	l.mu.Lock()
	if l.listening {
		l.mu.Unlock()
		return nil
	}
	if l.clearOnStart {
		l.final = nil
		l.interim = ""
	}
	l.listening = true
	l.mu.Unlock()

	err := l.client.Connect(ctx, Options{
		Language:       locale,
		SampleRate:     l.sampleRate,
		Channels:       l.channels,
		InterimResults: true,
	})
	if err != nil {
		l.mu.Lock()
		l.listening = false
		l.mu.Unlock()
		return fmt.Errorf("stt: start listening: %w", err)
	}

	l.logger.Debug("listening", "locale", locale)
	l.notify()
	return nil
}

// Stop closes the engine and keeps any interim segment left after the
// final flush as final.
func (l *Live) Stop() error {
	l.mu.Lock()
	if !l.listening {
		l.mu.Unlock()
		return nil
	}
	l.listening = false
	l.mu.Unlock()

	err := l.client.Close()

	l.mu.Lock()
	promoted := l.interim != ""
	if promoted {
		l.final = append(l.final, l.interim)
		l.interim = ""
	}
	l.mu.Unlock()
	if promoted {
		l.notify()
	}
	return err
}

// SendAudio forwards audio to the engine.
func (l *Live) SendAudio(pcm []byte) error {
	if !l.Listening() {
		return ErrNotListening
	}
	return l.client.SendAudio(pcm)
}

// Transcript returns the running transcript.
func (l *Live) Transcript() string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.transcriptLocked()
}

// Reset clears the transcript.
func (l *Live) Reset() {
	l.mu.Lock()
	l.final = nil
	l.interim = ""
	l.mu.Unlock()
	l.notify()
}

// Listening reports whether a listening period is active.
func (l *Live) Listening() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.listening
}

func (l *Live) handle(text string, isFinal bool) {
	text = strings.TrimSpace(text)

	l.mu.Lock()
	if isFinal {
		if text != "" {
			l.final = append(l.final, text)
		}
		l.interim = ""
	} else {
		l.interim = text
	}
	l.mu.Unlock()

	l.notify()
}

func (l *Live) transcriptLocked() string {
	parts := make([]string, 0, len(l.final)+1)
	parts = append(parts, l.final...)
	if l.interim != "" {
		parts = append(parts, l.interim)
	}
	return strings.Join(parts, " ")
}

func (l *Live) notify() {
	if l.onUpdate == nil {
		return
	}
	l.onUpdate(l.Transcript())
}

var _ Transcriber = (*Live)(nil)
