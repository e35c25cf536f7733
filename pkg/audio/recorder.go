package audio

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/teslashibe/go-lingua/pkg/visual"
)

// State is the lifecycle state of the recorder.
type State string

const (
	StateIdle      State = "idle"
	StateAcquiring State = "acquiring"
	StateRecording State = "recording"
	StateStopped   State = "stopped"
)

// Transcriber is the live speech-to-text engine bound to a session.
type Transcriber interface {
	Start(ctx context.Context, locale string) error
	Stop() error
	SendAudio(pcm []byte) error
}

// Meter consumes the analyzer of the active session.
type Meter interface {
	Attach(src visual.Source)
	Detach()
}

// SessionInfo describes the active recording session.
type SessionInfo struct {
	ID        string    `json:"id"`
	Locale    string    `json:"locale"`
	StartedAt time.Time `json:"started_at"`
	Chunks    int       `json:"chunks"`
	Bytes     int       `json:"bytes"`
}

// session owns the stream, the analyzer and the buffered chunks.
type session struct {
	id        string
	locale    string
	startedAt time.Time
	stream    Stream
	analyzer  *Analyzer
	done      chan struct{}

	mu     sync.Mutex
	chunks [][]byte
	bytes  int
}

func (s *session) pump(t Transcriber, logger *slog.Logger) {
	defer close(s.done)

	for chunk := range s.stream.Chunks() {
		if len(chunk) == 0 {
			continue
		}
		s.mu.Lock()
		s.chunks = append(s.chunks, chunk)
		s.bytes += len(chunk)
		s.mu.Unlock()

		s.analyzer.Write(chunk)
		if t != nil {
			if err := t.SendAudio(chunk); err != nil {
				logger.Debug("transcriber rejected audio", "error", err)
			}
		}
	}
}

func (s *session) info() SessionInfo {
	s.mu.Lock()
	defer s.mu.Unlock()
	return SessionInfo{
		ID:        s.id,
		Locale:    s.locale,
		StartedAt: s.startedAt,
		Chunks:    len(s.chunks),
		Bytes:     s.bytes,
	}
}

// RecorderOption configures a Recorder.
type RecorderOption func(*Recorder)

// WithFormat sets the capture format.
func WithFormat(f Format) RecorderOption {
	return func(r *Recorder) {
		r.format = f
	}
}

// WithFFTSize sets the analyzer window length.
func WithFFTSize(n int) RecorderOption {
	return func(r *Recorder) {
		r.fftSize = n
	}
}

// WithRecordingsDir sets where artifacts are written.
func WithRecordingsDir(dir string) RecorderOption {
	return func(r *Recorder) {
		r.dir = dir
	}
}

// WithLogger sets the structured logger.
func WithLogger(logger *slog.Logger) RecorderOption {
	return func(r *Recorder) {
		r.logger = logger
	}
}

// OnStateChange registers a callback fired after every lifecycle transition.
func OnStateChange(fn func(State)) RecorderOption {
	return func(r *Recorder) {
		r.onState = fn
	}
}

// Recorder records one session at a time.
type Recorder struct {
	device      Device
	transcriber Transcriber
	meter       Meter
	format      Format
	fftSize     int
	dir         string
	logger      *slog.Logger
	onState     func(State)

	// opMu orders session setup in Start against Stop. Device acquisition
	// runs outside it so Stop can abort a pending Open.
	opMu sync.Mutex

	mu        sync.Mutex
	state     State
	releasing bool
	attempt   uint64
	session   *session
	last      *Artifact
}

// NewRecorder creates a recorder. transcriber and meter may be nil.
func NewRecorder(device Device, transcriber Transcriber, meter Meter, opts ...RecorderOption) *Recorder {
	r := &Recorder{
		device:      device,
		transcriber: transcriber,
		meter:       meter,
		format:      DefaultFormat,
		fftSize:     DefaultFFTSize,
		dir:         filepath.Join(os.TempDir(), "go-lingua", "recordings"),
		logger:      slog.Default(),
		state:       StateIdle,
	}
	for _, opt := range opts {
		opt(r)
	}
	r.logger = r.logger.With("component", "audio.recorder")
	return r
}

// Start acquires the device and begins a session bound to locale.
// Failures are logged and returned; the recorder is left idle.
func (r *Recorder) Start(ctx context.Context, locale string) error {
	if r.device == nil {
		r.logger.Error("audio capture not supported on this host")
		return ErrUnsupported
	}

	r.mu.Lock()
	if r.state == StateAcquiring || r.state == StateRecording || r.releasing {
		r.mu.Unlock()
		return ErrAlreadyRecording
	}
	r.attempt++
	attempt := r.attempt
	r.state = StateAcquiring
	r.mu.Unlock()
	r.notify(StateAcquiring)

	stream, err := r.device.Open(ctx, r.format)
	if err != nil {
		r.mu.Lock()
		if r.attempt == attempt {
			r.state = StateIdle
		}
		r.mu.Unlock()
		r.notify(StateIdle)
		r.logger.Error("error accessing audio device", "error", err)
		return fmt.Errorf("audio: start recording: %w", err)
	}

	sess := &session{
		id:        uuid.NewString(),
		locale:    locale,
		startedAt: time.Now(),
		stream:    stream,
		analyzer:  NewAnalyzer(r.fftSize, r.format.Channels),
		done:      make(chan struct{}),
	}

	r.opMu.Lock()
	r.mu.Lock()
	if r.attempt != attempt || r.state != StateAcquiring {
		r.mu.Unlock()
		r.opMu.Unlock()
		_ = stream.Close()
		r.logger.Info("recording aborted during device acquisition")
		return ErrAborted
	}
	r.session = sess
	r.state = StateRecording
	r.mu.Unlock()

	if r.transcriber != nil {
		if err := r.transcriber.Start(ctx, locale); err != nil {
			r.logger.Warn("live transcription unavailable", "error", err, "locale", locale)
		}
	}
	go sess.pump(r.transcriber, r.logger)
	if r.meter != nil {
		r.meter.Attach(sess.analyzer)
	}
	r.opMu.Unlock()

	r.logger.Info("recording started", "session", sess.id, "locale", locale)
	r.notify(StateRecording)
	return nil
}

// Stop ends the active session and returns its artifact. A pending
// acquisition is aborted. Only the call that ends a session gets a nil error;
// every other call returns ErrNotRecording.
func (r *Recorder) Stop() (*Artifact, error) {
	r.mu.Lock()
	if r.state == StateAcquiring {
		r.attempt++
		r.state = StateIdle
		r.mu.Unlock()
		r.notify(StateIdle)
		return nil, ErrNotRecording
	}
	r.mu.Unlock()

	r.opMu.Lock()
	r.mu.Lock()
	if r.state != StateRecording {
		r.mu.Unlock()
		r.opMu.Unlock()
		return nil, ErrNotRecording
	}
	sess := r.session
	r.session = nil
	r.state = StateStopped
	r.releasing = true
	r.mu.Unlock()
	r.opMu.Unlock()

	if r.transcriber != nil {
		if err := r.transcriber.Stop(); err != nil {
			r.logger.Warn("stop transcriber", "error", err)
		}
	}
	if err := sess.stream.Close(); err != nil {
		r.logger.Warn("release capture device", "error", err)
	}
	<-sess.done

	artifact, err := r.finalize(sess)
	if r.meter != nil {
		r.meter.Detach()
	}

	r.mu.Lock()
	r.releasing = false
	if artifact != nil {
		r.last = artifact
	}
	r.mu.Unlock()

	if err != nil {
		r.logger.Error("finalize recording", "session", sess.id, "error", err)
	} else {
		r.logger.Info("recording stopped", "session", sess.id, "duration", artifact.Duration)
	}
	r.notify(StateStopped)
	return artifact, err
}

// Close stops any active session. Safe on teardown.
func (r *Recorder) Close() error {
	if _, err := r.Stop(); err != nil && !errors.Is(err, ErrNotRecording) {
		return err
	}
	return nil
}

func (r *Recorder) finalize(sess *session) (*Artifact, error) {
	sess.mu.Lock()
	chunks := sess.chunks
	total := sess.bytes
	sess.chunks = nil
	sess.mu.Unlock()

	path := filepath.Join(r.dir, sess.id+".wav")
	size, err := WriteWAV(path, r.format, chunks)
	if err != nil {
		return nil, err
	}
	return &Artifact{
		ID:        sess.id,
		Path:      path,
		Format:    r.format,
		Duration:  r.format.Duration(total),
		Size:      size,
		Locale:    sess.locale,
		CreatedAt: time.Now(),
	}, nil
}

func (r *Recorder) notify(s State) {
	if r.onState != nil {
		r.onState(s)
	}
}

// Recording reports whether a session is capturing.
func (r *Recorder) Recording() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.state == StateRecording
}

// State returns the lifecycle state.
func (r *Recorder) State() State {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.state
}

// Session returns the active session, or nil.
func (r *Recorder) Session() *SessionInfo {
	r.mu.Lock()
	sess := r.session
	r.mu.Unlock()
	if sess == nil {
		return nil
	}
	info := sess.info()
	return &info
}

// LastArtifact returns the most recent finalized recording, or nil.
func (r *Recorder) LastArtifact() *Artifact {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.last
}

// Format returns the capture format.
func (r *Recorder) Format() Format {
	return r.format
}

// IsDeviceError reports whether err belongs to the device-access taxonomy.
func IsDeviceError(err error) bool {
	return errors.Is(err, ErrDeviceUnavailable) || errors.Is(err, ErrUnsupported)
}
