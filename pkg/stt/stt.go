// Package stt provides live speech-to-text for a recording session.
//
// A Transcriber owns the running transcript of one listening period. Live
// implements it over any streaming Client such as Deepgram.
package stt

import (
	"context"
	"errors"
)

var (
	// ErrNotConnected is returned when sending audio without a connection.
	ErrNotConnected = errors.New("stt: not connected")

	// ErrNotListening is returned when audio arrives outside a listening period.
	ErrNotListening = errors.New("stt: not listening")

	// ErrNoAPIKey is returned when a hosted engine has no credentials.
	ErrNoAPIKey = errors.New("stt: API key not configured")
)

// Transcriber accumulates a live transcript while listening.
type Transcriber interface {
	// Start begins listening in the given BCP-47 locale.
	Start(ctx context.Context, locale string) error

	// Stop ends listening. The transcript is kept until Reset or the next Start.
	Stop() error

	// SendAudio feeds captured PCM16 audio.
	SendAudio(pcm []byte) error

	// Transcript returns the running transcript.
	Transcript() string

	// Reset clears the transcript.
	Reset()

	// Listening reports whether a listening period is active.
	Listening() bool
}

// TranscriptCallback receives a recognized segment.
type TranscriptCallback func(text string, isFinal bool)

// Options configures a streaming connection.
type Options struct {
	Language       string
	SampleRate     int
	Channels       int
	InterimResults bool
}

// Client is a streaming recognition engine.
type Client interface {
	Connect(ctx context.Context, opts Options) error
	SendAudio(pcm []byte) error
	OnTranscript(cb TranscriptCallback)
	Close() error
	IsConnected() bool
}
