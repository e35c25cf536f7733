// Package view is the conversation view controller: it owns the recording
// session of one mounted conversation, the visualizer loop, the running
// history and the transcript toggle, and wires the recorder, transcriber,
// backend and speaker together.
package view

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/teslashibe/go-lingua/pkg/audio"
	"github.com/teslashibe/go-lingua/pkg/catalog"
	"github.com/teslashibe/go-lingua/pkg/conversation"
	"github.com/teslashibe/go-lingua/pkg/stt"
	"github.com/teslashibe/go-lingua/pkg/visual"
)

// Button labels.
const (
	LabelStartRecording = "Start Recording"
	LabelStopRecording  = "Stop Recording"
	LabelShowTranscript = "Show Transcript"
	LabelHideTranscript = "Hide Transcript"
)

// HomePath is where Back navigates.
const HomePath = "/"

// ErrNotMounted is returned by operations that need a mounted view.
var ErrNotMounted = errors.New("view: not mounted")

// Speaker speaks a reply without blocking.
type Speaker interface {
	Speak(text, locale string)
}

// Navigator moves the UI to another route.
type Navigator interface {
	Navigate(path string)
}

// NavigatorFunc adapts a function to Navigator.
type NavigatorFunc func(path string)

// Navigate calls f.
func (f NavigatorFunc) Navigate(path string) { f(path) }

// Deps are the collaborators of a View. Transcriber, Speaker and Navigator
// may be nil.
type Deps struct {
	Catalog     *catalog.Catalog
	Device      audio.Device
	Transcriber stt.Transcriber
	Exchanger   conversation.Exchanger
	Speaker     Speaker
	Navigator   Navigator
}

// ArtifactInfo describes the last recording.
type ArtifactInfo struct {
	ID        string        `json:"id"`
	Duration  time.Duration `json:"duration"`
	Size      int64         `json:"size"`
	Locale    string        `json:"locale"`
	CreatedAt time.Time     `json:"created_at"`
}

// State is a snapshot of the view.
type State struct {
	Mounted         bool                `json:"mounted"`
	Recording       bool                `json:"recording"`
	RecordLabel     string              `json:"record_label"`
	ShowTranscript  bool                `json:"show_transcript"`
	TranscriptLabel string              `json:"transcript_label"`
	Transcript      string              `json:"transcript"`
	History         []string            `json:"history"`
	Language        catalog.Language    `json:"language"`
	Proficiency     catalog.Proficiency `json:"proficiency"`
	Locale          string              `json:"locale"`
	Prompt          string              `json:"prompt"`
	Amplitude       float64             `json:"amplitude"`
	Pending         int                 `json:"pending"`
	Recorded        *ArtifactInfo       `json:"recorded,omitempty"`
}

// ChangeKind classifies a state change.
type ChangeKind int

const (
	// ChangeState is any change other than a visualizer frame.
	ChangeState ChangeKind = iota
	// ChangeAmplitude is a visualizer frame.
	ChangeAmplitude
)

// Change is delivered to subscribers.
type Change struct {
	Kind  ChangeKind
	State State
}

// View is the conversation view controller. It is safe for concurrent use.
type View struct {
	catalog     *catalog.Catalog
	transcriber stt.Transcriber
	exchanger   conversation.Exchanger
	speaker     Speaker
	navigator   Navigator
	visualizer  *visual.Visualizer
	recorder    *audio.Recorder
	logger      *slog.Logger
	timeout     time.Duration

	inflight sync.WaitGroup

	mu             sync.Mutex
	mounted        bool
	generation     uint64
	ctx            context.Context
	cancel         context.CancelFunc
	selection      catalog.Selection
	settings       catalog.Settings
	history        []string
	showTranscript bool
	amplitude      float64
	pending        int

	subMu   sync.RWMutex
	nextSub int
	subs    map[int]func(Change)
}

// New creates an unmounted view.
func New(deps Deps, opts ...Option) *View {
	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}

	v := &View{
		catalog:     deps.Catalog,
		transcriber: deps.Transcriber,
		exchanger:   deps.Exchanger,
		speaker:     deps.Speaker,
		navigator:   deps.Navigator,
		logger:      o.logger.With("component", "view"),
		timeout:     o.exchangeTimeout,
		subs:        make(map[int]func(Change)),
	}
	if v.catalog == nil {
		v.catalog = catalog.Default()
	}

	v.visualizer = visual.New(
		visual.WithScheduler(o.scheduler),
		visual.WithLogger(o.logger),
		visual.OnAmplitude(v.setAmplitude),
	)

	var tr audio.Transcriber
	if deps.Transcriber != nil {
		tr = deps.Transcriber
	}
	recOpts := []audio.RecorderOption{
		audio.WithLogger(o.logger),
		audio.WithFormat(o.format),
	}
	if o.recordingsDir != "" {
		recOpts = append(recOpts, audio.WithRecordingsDir(o.recordingsDir))
	}
	v.recorder = audio.NewRecorder(deps.Device, tr, v.visualizer, recOpts...)

	if o.onChange != nil {
		fn := o.onChange
		v.Subscribe(func(c Change) { fn(c.State) })
	}
	return v
}

// Mount derives the session settings from sel and starts a fresh
// conversation. Mounting an already mounted view unmounts it first.
func (v *View) Mount(sel *catalog.Selection) catalog.Settings {
	v.Unmount()
	// A session that raced an earlier unmount may still hold the device.
	if err := v.recorder.Close(); err != nil {
		v.logger.Warn("release recorder on mount", "error", err)
	}

	settings := v.catalog.Derive(sel)

	v.mu.Lock()
	v.mounted = true
	v.generation++
	v.ctx, v.cancel = context.WithCancel(context.Background())
	v.selection = catalog.Selection{}
	if sel != nil {
		v.selection = *sel
	}
	v.settings = settings
	v.history = []string{}
	v.showTranscript = false
	v.amplitude = 0
	v.mu.Unlock()

	if v.transcriber != nil {
		v.transcriber.Reset()
	}

	v.logger.Info("conversation mounted", "language", settings.Language, "locale", settings.LocaleCode)
	v.notify(ChangeState)
	return settings
}

// Unmount stops any active session and releases the device. Exchanges still
// in flight are cancelled and their responses dropped. It is idempotent.
func (v *View) Unmount() {
	v.mu.Lock()
	if !v.mounted {
		v.mu.Unlock()
		return
	}
	v.mounted = false
	v.generation++
	cancel := v.cancel
	v.mu.Unlock()

	cancel()
	if err := v.recorder.Close(); err != nil {
		v.logger.Warn("release recorder on unmount", "error", err)
	}
	v.visualizer.Detach()

	v.logger.Info("conversation unmounted")
	v.notify(ChangeState)
}

// StartRecording acquires the device and starts a session in the mounted
// locale. Failures are logged and returned; the view stays not recording.
func (v *View) StartRecording(ctx context.Context) error {
	v.mu.Lock()
	if !v.mounted {
		v.mu.Unlock()
		return ErrNotMounted
	}
	locale := v.settings.LocaleCode
	gen := v.generation
	v.mu.Unlock()

	err := v.recorder.Start(ctx, locale)
	if errors.Is(err, audio.ErrAborted) {
		v.logger.Info("recording cancelled before it started")
		v.notify(ChangeState)
		return err
	}
	if err != nil {
		v.logger.Error("error accessing microphone", "error", err)
		v.notify(ChangeState)
		return err
	}

	v.mu.Lock()
	current := v.mounted && v.generation == gen
	v.mu.Unlock()
	if !current {
		// Unmounted while the device was being acquired.
		if err := v.recorder.Close(); err != nil {
			v.logger.Warn("release recorder", "error", err)
		}
		return ErrNotMounted
	}

	v.notify(ChangeState)
	return nil
}

// StopRecording ends the active session and sends the transcript to the
// backend in the background. It is a no-op when not recording.
func (v *View) StopRecording(ctx context.Context) error {
	// Visualizer cancelled and device halted before the request goes out.
	// Only the caller that ended the session sends the turn.
	_, err := v.recorder.Stop()
	if errors.Is(err, audio.ErrNotRecording) {
		return nil
	}
	if err != nil {
		v.logger.Error("finalize recording", "error", err)
	}

	transcript := ""
	if v.transcriber != nil {
		transcript = v.transcriber.Transcript()
	}

	v.mu.Lock()
	if !v.mounted {
		v.mu.Unlock()
		v.notify(ChangeState)
		return nil
	}
	gen := v.generation
	reqCtx := v.ctx
	req := conversation.NewRequest(transcript, v.history)
	locale := v.settings.LocaleCode
	v.pending++
	v.inflight.Add(1)
	v.mu.Unlock()

	go v.exchange(reqCtx, gen, req, locale)

	v.notify(ChangeState)
	return nil
}

// ToggleRecording starts or stops recording.
func (v *View) ToggleRecording(ctx context.Context) error {
	if v.recorder.Recording() {
		return v.StopRecording(ctx)
	}
	return v.StartRecording(ctx)
}

// ToggleTranscript flips transcript visibility and returns the new value.
func (v *View) ToggleTranscript() bool {
	v.mu.Lock()
	v.showTranscript = !v.showTranscript
	show := v.showTranscript
	v.mu.Unlock()

	v.notify(ChangeState)
	return show
}

// EndConversation clears the live transcript. History is kept.
func (v *View) EndConversation() {
	if v.transcriber != nil {
		v.transcriber.Reset()
	}
	v.notify(ChangeState)
}

// Back unmounts and navigates home. It returns the target path.
func (v *View) Back() string {
	v.Unmount()
	if v.navigator != nil {
		v.navigator.Navigate(HomePath)
	}
	return HomePath
}

// Refresh notifies subscribers, e.g. after the transcript changed.
func (v *View) Refresh() {
	v.notify(ChangeState)
}

// Artifact returns the last finalized recording, or nil.
func (v *View) Artifact() *audio.Artifact {
	return v.recorder.LastArtifact()
}

// Catalog returns the lookup tables used by Mount.
func (v *View) Catalog() *catalog.Catalog {
	return v.catalog
}

// Visualizer returns the amplitude loop.
func (v *View) Visualizer() *visual.Visualizer {
	return v.visualizer
}

// Snapshot returns the current state.
func (v *View) Snapshot() State {
	v.mu.Lock()
	s := State{
		Mounted:        v.mounted,
		ShowTranscript: v.showTranscript,
		History:        append([]string{}, v.history...),
		Language:       v.settings.Language,
		Proficiency:    v.selection.Proficiency,
		Locale:         v.settings.LocaleCode,
		Prompt:         v.settings.Prompt,
		Amplitude:      v.amplitude,
		Pending:        v.pending,
	}
	v.mu.Unlock()

	s.Recording = v.recorder.Recording()
	s.RecordLabel = LabelStartRecording
	if s.Recording {
		s.RecordLabel = LabelStopRecording
	}
	s.TranscriptLabel = LabelShowTranscript
	if s.ShowTranscript {
		s.TranscriptLabel = LabelHideTranscript
	}
	if v.transcriber != nil {
		s.Transcript = v.transcriber.Transcript()
	}
	if a := v.recorder.LastArtifact(); a != nil {
		s.Recorded = &ArtifactInfo{
			ID:        a.ID,
			Duration:  a.Duration,
			Size:      a.Size,
			Locale:    a.Locale,
			CreatedAt: a.CreatedAt,
		}
	}
	return s
}

// Wait blocks until in-flight exchanges and queued speech complete.
func (v *View) Wait() {
	v.inflight.Wait()
	if w, ok := v.speaker.(interface{ Wait() }); ok {
		w.Wait()
	}
}

// Close unmounts the view and waits for background work.
func (v *View) Close() error {
	v.Unmount()
	v.inflight.Wait()
	return nil
}

func (v *View) setAmplitude(a float64) {
	v.mu.Lock()
	v.amplitude = a
	v.mu.Unlock()
	v.notify(ChangeAmplitude)
}
