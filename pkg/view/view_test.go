package view

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/teslashibe/go-lingua/internal/log"
	"github.com/teslashibe/go-lingua/pkg/audio"
	"github.com/teslashibe/go-lingua/pkg/catalog"
	"github.com/teslashibe/go-lingua/pkg/conversation"
	"github.com/teslashibe/go-lingua/pkg/stt"
	"github.com/teslashibe/go-lingua/pkg/visual"
)

type spoken struct {
	text   string
	locale string
}

type recordingSpeaker struct {
	mu    sync.Mutex
	calls []spoken
}

func (s *recordingSpeaker) Speak(text, locale string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls = append(s.calls, spoken{text, locale})
}

func (s *recordingSpeaker) Calls() []spoken {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]spoken(nil), s.calls...)
}

// hookedTranscriber runs onStart after the mock starts listening.
type hookedTranscriber struct {
	*stt.Mock
	onStart func()
}

func (h *hookedTranscriber) Start(ctx context.Context, locale string) error {
	err := h.Mock.Start(ctx, locale)
	if h.onStart != nil {
		h.onStart()
	}
	return err
}

type fixture struct {
	view    *View
	device  *audio.MockDevice
	stt     *stt.Mock
	backend *conversation.Mock
	speaker *recordingSpeaker
	sched   *visual.ManualScheduler
	nav     []string
}

func newFixture(t *testing.T, device *audio.MockDevice, backend *conversation.Mock) *fixture {
	t.Helper()
	f := &fixture{
		device:  device,
		stt:     stt.NewMock(),
		backend: backend,
		speaker: &recordingSpeaker{},
		sched:   visual.NewManualScheduler(),
	}
	f.view = New(Deps{
		Device:      device,
		Transcriber: f.stt,
		Exchanger:   backend,
		Speaker:     f.speaker,
		Navigator:   NavigatorFunc(func(p string) { f.nav = append(f.nav, p) }),
	},
		WithScheduler(f.sched),
		WithLogger(log.Discard()),
		WithRecordingsDir(t.TempDir()),
	)
	t.Cleanup(func() { f.view.Close() })
	return f
}

func french() *catalog.Selection {
	return &catalog.Selection{Language: catalog.French, Proficiency: catalog.Beginner}
}

func TestMount(t *testing.T) {
	t.Run("derives french settings", func(t *testing.T) {
		f := newFixture(t, audio.NewMockDevice(), conversation.NewMock())
		settings := f.view.Mount(french())
		if settings.LocaleCode != "fr-FR" {
			t.Errorf("locale = %q, want fr-FR", settings.LocaleCode)
		}

		s := f.view.Snapshot()
		if !s.Mounted || s.Recording {
			t.Errorf("mounted=%v recording=%v", s.Mounted, s.Recording)
		}
		if s.RecordLabel != LabelStartRecording {
			t.Errorf("record label = %q", s.RecordLabel)
		}
		if s.TranscriptLabel != LabelShowTranscript {
			t.Errorf("transcript label = %q", s.TranscriptLabel)
		}
		if s.History == nil || len(s.History) != 0 {
			t.Errorf("history = %#v, want empty", s.History)
		}
	})

	t.Run("nil selection mounts with empty settings", func(t *testing.T) {
		f := newFixture(t, audio.NewMockDevice(), conversation.NewMock())
		settings := f.view.Mount(nil)
		if settings.LocaleCode != "" || settings.Prompt != "" {
			t.Errorf("settings = %+v, want empty", settings)
		}
		if !f.view.Snapshot().Mounted {
			t.Error("not mounted")
		}
	})

	t.Run("start before mount", func(t *testing.T) {
		f := newFixture(t, audio.NewMockDevice(), conversation.NewMock())
		if err := f.view.StartRecording(context.Background()); !errors.Is(err, ErrNotMounted) {
			t.Errorf("err = %v, want ErrNotMounted", err)
		}
	})
}

func TestRecordingTurn(t *testing.T) {
	f := newFixture(t, audio.NewMockDevice(), conversation.Replying("Salut!"))
	f.view.Mount(french())
	ctx := context.Background()

	if err := f.view.ToggleRecording(ctx); err != nil {
		t.Fatalf("start: %v", err)
	}
	s := f.view.Snapshot()
	if !s.Recording || s.RecordLabel != LabelStopRecording {
		t.Fatalf("recording=%v label=%q", s.Recording, s.RecordLabel)
	}
	if got := f.stt.Locales(); len(got) != 1 || got[0] != "fr-FR" {
		t.Errorf("transcriber locales = %v", got)
	}

	f.device.Last().Push(make([]byte, 320))
	f.stt.Say("bonjour")

	if err := f.view.ToggleRecording(ctx); err != nil {
		t.Fatalf("stop: %v", err)
	}
	f.view.Wait()

	if !f.device.Last().Closed() {
		t.Error("capture stream not released")
	}
	if f.sched.Pending() != 0 {
		t.Errorf("pending frames = %d, want 0", f.sched.Pending())
	}

	reqs := f.backend.Requests()
	if len(reqs) != 1 {
		t.Fatalf("requests = %d, want 1", len(reqs))
	}
	if reqs[0].Text != "bonjour" || len(reqs[0].ConversationHistory) != 0 {
		t.Errorf("request = %+v", reqs[0])
	}

	s = f.view.Snapshot()
	want := []string{"bonjour", "Salut!"}
	if len(s.History) != 2 || s.History[0] != want[0] || s.History[1] != want[1] {
		t.Errorf("history = %v, want %v", s.History, want)
	}
	if s.Recorded == nil {
		t.Error("expected a recorded artifact")
	}

	calls := f.speaker.Calls()
	if len(calls) != 1 || calls[0].text != "Salut!" || calls[0].locale != "fr-FR" {
		t.Errorf("speaker calls = %+v", calls)
	}

	// Second turn carries the history.
	if err := f.view.StartRecording(ctx); err != nil {
		t.Fatalf("restart: %v", err)
	}
	f.stt.Say("ça va")
	f.view.StopRecording(ctx)
	f.view.Wait()

	reqs = f.backend.Requests()
	if len(reqs) != 2 || len(reqs[1].ConversationHistory) != 2 {
		t.Fatalf("second request = %+v", reqs)
	}
	if got := len(f.view.Snapshot().History); got != 4 {
		t.Errorf("history length = %d, want 4", got)
	}
}

func TestDeniedDevice(t *testing.T) {
	denied := errors.New("permission denied")
	f := newFixture(t, audio.DeniedDevice(denied), conversation.NewMock())
	f.view.Mount(french())

	err := f.view.StartRecording(context.Background())
	if !errors.Is(err, denied) {
		t.Fatalf("err = %v, want %v", err, denied)
	}
	if f.view.Snapshot().Recording {
		t.Error("recording after denied access")
	}
	if f.sched.Pending() != 0 {
		t.Error("visualizer started without a stream")
	}
	if h := f.view.Snapshot().History; h == nil || len(h) != 0 {
		t.Errorf("history = %#v, want unchanged", h)
	}
	if f.backend.Calls() != 0 {
		t.Errorf("backend calls = %d, want 0", f.backend.Calls())
	}
}

func TestStopWhenIdle(t *testing.T) {
	f := newFixture(t, audio.NewMockDevice(), conversation.NewMock())
	f.view.Mount(french())

	if err := f.view.StopRecording(context.Background()); err != nil {
		t.Fatalf("stop: %v", err)
	}
	f.view.Wait()
	if f.backend.Calls() != 0 {
		t.Errorf("backend calls = %d, want 0", f.backend.Calls())
	}
}

func TestConcurrentStop(t *testing.T) {
	f := newFixture(t, audio.NewMockDevice(), conversation.Replying("Salut!"))
	f.view.Mount(french())
	ctx := context.Background()

	if err := f.view.StartRecording(ctx); err != nil {
		t.Fatalf("start: %v", err)
	}
	f.stt.Say("bonjour")

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := f.view.StopRecording(ctx); err != nil {
				t.Errorf("stop: %v", err)
			}
		}()
	}
	wg.Wait()
	f.view.Wait()

	if got := f.backend.Calls(); got != 1 {
		t.Errorf("backend calls = %d, want 1", got)
	}
	if got := f.view.Snapshot().History; len(got) != 2 {
		t.Errorf("history = %v, want one turn", got)
	}
	if got := len(f.speaker.Calls()); got != 1 {
		t.Errorf("speaker calls = %d, want 1", got)
	}
}

func TestExchangeFailure(t *testing.T) {
	f := newFixture(t, audio.NewMockDevice(), conversation.Failing(errors.New("connection refused")))
	f.view.Mount(french())
	ctx := context.Background()

	f.view.StartRecording(ctx)
	f.stt.Say("bonjour")
	f.view.StopRecording(ctx)
	f.view.Wait()

	s := f.view.Snapshot()
	if len(s.History) != 0 {
		t.Errorf("history = %v, want unchanged", s.History)
	}
	if s.Recording {
		t.Error("still recording")
	}
	if len(f.speaker.Calls()) != 0 {
		t.Error("speaker called after failure")
	}
}

func TestReplyWithoutLocale(t *testing.T) {
	f := newFixture(t, audio.NewMockDevice(), conversation.Replying("Salut!"))
	f.view.Mount(nil)
	ctx := context.Background()

	f.view.StartRecording(ctx)
	f.stt.Say("bonjour")
	f.view.StopRecording(ctx)
	f.view.Wait()

	calls := f.speaker.Calls()
	if len(calls) != 1 || calls[0].locale != "" {
		t.Errorf("speaker calls = %+v, want one call with the unset locale", calls)
	}
}

func TestEndConversation(t *testing.T) {
	f := newFixture(t, audio.NewMockDevice(), conversation.Replying("Salut!"))
	f.view.Mount(french())
	ctx := context.Background()

	f.view.StartRecording(ctx)
	f.stt.Say("bonjour")
	f.view.StopRecording(ctx)
	f.view.Wait()

	f.view.EndConversation()

	s := f.view.Snapshot()
	if s.Transcript != "" {
		t.Errorf("transcript = %q, want empty", s.Transcript)
	}
	if len(s.History) != 2 {
		t.Errorf("history = %v, want kept", s.History)
	}
}

func TestToggleTranscript(t *testing.T) {
	f := newFixture(t, audio.NewMockDevice(), conversation.NewMock())
	f.view.Mount(french())

	if !f.view.ToggleTranscript() {
		t.Fatal("first toggle should show")
	}
	if got := f.view.Snapshot().TranscriptLabel; got != LabelHideTranscript {
		t.Errorf("label = %q", got)
	}
	if f.view.ToggleTranscript() {
		t.Fatal("second toggle should hide")
	}
	if got := f.view.Snapshot().TranscriptLabel; got != LabelShowTranscript {
		t.Errorf("label = %q", got)
	}
}

func TestUnmount(t *testing.T) {
	t.Run("releases active session", func(t *testing.T) {
		f := newFixture(t, audio.NewMockDevice(), conversation.NewMock())
		f.view.Mount(french())
		f.view.StartRecording(context.Background())
		if f.sched.Pending() != 1 {
			t.Fatalf("pending frames = %d, want 1", f.sched.Pending())
		}

		f.view.Unmount()

		if !f.device.Last().Closed() {
			t.Error("capture stream not released")
		}
		if f.sched.Pending() != 0 {
			t.Errorf("pending frames = %d, want 0", f.sched.Pending())
		}
		s := f.view.Snapshot()
		if s.Mounted || s.Recording {
			t.Errorf("mounted=%v recording=%v", s.Mounted, s.Recording)
		}
		if err := f.device.Last().Push(make([]byte, 320)); !errors.Is(err, audio.ErrStreamClosed) {
			t.Errorf("Push() after unmount error = %v, want ErrStreamClosed", err)
		}
		f.view.Unmount()
	})

	t.Run("during device acquisition", func(t *testing.T) {
		entered := make(chan struct{})
		release := make(chan struct{})
		stream := audio.NewMockStream(4)
		device := &audio.MockDevice{
			OpenFunc: func(ctx context.Context, format audio.Format) (audio.Stream, error) {
				close(entered)
				<-release
				return stream, nil
			},
		}
		f := newFixture(t, device, conversation.NewMock())
		f.view.Mount(french())

		errc := make(chan error, 1)
		go func() { errc <- f.view.StartRecording(context.Background()) }()
		<-entered
		f.view.Unmount()
		close(release)

		if err := <-errc; err == nil {
			t.Error("StartRecording should fail when unmounted mid-acquisition")
		}
		if !stream.Closed() {
			t.Error("late stream not released")
		}
		if f.view.Snapshot().Recording {
			t.Error("recording after unmount")
		}
	})

	t.Run("during session setup", func(t *testing.T) {
		device := audio.NewMockDevice()
		sched := visual.NewManualScheduler()
		tr := &hookedTranscriber{Mock: stt.NewMock()}
		v := New(Deps{Device: device, Transcriber: tr, Exchanger: conversation.NewMock()},
			WithScheduler(sched),
			WithLogger(log.Discard()),
			WithRecordingsDir(t.TempDir()),
		)
		defer v.Close()
		v.Mount(french())

		unmounted := make(chan struct{})
		tr.onStart = func() {
			go func() {
				v.Unmount()
				close(unmounted)
			}()
			time.Sleep(20 * time.Millisecond)
		}

		if err := v.StartRecording(context.Background()); !errors.Is(err, ErrNotMounted) {
			t.Errorf("StartRecording() error = %v, want ErrNotMounted", err)
		}
		<-unmounted

		if !device.Last().Closed() {
			t.Error("device held after unmount")
		}
		if sched.Pending() != 0 {
			t.Errorf("pending frames = %d, want 0", sched.Pending())
		}
		if s := v.Snapshot(); s.Mounted || s.Recording {
			t.Errorf("mounted=%v recording=%v", s.Mounted, s.Recording)
		}

		tr.onStart = nil
		v.Mount(french())
		if err := v.StartRecording(context.Background()); err != nil {
			t.Fatalf("StartRecording() after remount error = %v", err)
		}
		if device.Opens() != 2 {
			t.Errorf("Opens() = %d, want 2", device.Opens())
		}
	})

	t.Run("drops late response", func(t *testing.T) {
		release := make(chan struct{})
		backend := &conversation.Mock{
			ExchangeFunc: func(ctx context.Context, req conversation.Request) (*conversation.Response, error) {
				<-release
				return conversation.AppendTurn(req, "trop tard"), nil
			},
		}
		f := newFixture(t, audio.NewMockDevice(), backend)
		f.view.Mount(french())
		ctx := context.Background()

		f.view.StartRecording(ctx)
		f.stt.Say("bonjour")
		f.view.StopRecording(ctx)
		if got := f.view.Snapshot().Pending; got != 1 {
			t.Errorf("pending = %d, want 1", got)
		}

		f.view.Unmount()
		close(release)
		f.view.Wait()

		if len(f.speaker.Calls()) != 0 {
			t.Error("late reply was spoken")
		}
		if got := f.view.Snapshot().History; len(got) != 0 {
			t.Errorf("history = %v, want empty", got)
		}
	})
}

func TestBack(t *testing.T) {
	f := newFixture(t, audio.NewMockDevice(), conversation.NewMock())
	f.view.Mount(french())
	f.view.StartRecording(context.Background())

	if got := f.view.Back(); got != HomePath {
		t.Errorf("Back() = %q", got)
	}
	if len(f.nav) != 1 || f.nav[0] != "/" {
		t.Errorf("navigations = %v", f.nav)
	}
	if !f.device.Last().Closed() {
		t.Error("capture stream not released")
	}
}

func TestSubscribe(t *testing.T) {
	f := newFixture(t, audio.NewMockDevice(), conversation.NewMock())

	var mu sync.Mutex
	kinds := map[ChangeKind]int{}
	cancel := f.view.Subscribe(func(c Change) {
		mu.Lock()
		kinds[c.Kind]++
		mu.Unlock()
	})

	f.view.Mount(french())
	f.view.StartRecording(context.Background())
	f.sched.Step()

	mu.Lock()
	states, amps := kinds[ChangeState], kinds[ChangeAmplitude]
	mu.Unlock()
	if states == 0 {
		t.Error("no state changes delivered")
	}
	if amps < 2 {
		t.Errorf("amplitude changes = %d, want at least 2", amps)
	}

	cancel()
	mu.Lock()
	before := kinds[ChangeState]
	mu.Unlock()
	f.view.ToggleTranscript()
	mu.Lock()
	after := kinds[ChangeState]
	mu.Unlock()
	if before != after {
		t.Error("change delivered after unsubscribe")
	}
}

func TestOnChange(t *testing.T) {
	var mu sync.Mutex
	var last State
	v := New(Deps{Device: audio.NewMockDevice(), Exchanger: conversation.NewMock()},
		WithScheduler(visual.NewManualScheduler()),
		WithLogger(log.Discard()),
		WithRecordingsDir(t.TempDir()),
		OnChange(func(s State) {
			mu.Lock()
			last = s
			mu.Unlock()
		}),
	)
	defer v.Close()

	v.Mount(french())
	v.ToggleTranscript()

	mu.Lock()
	defer mu.Unlock()
	if !last.Mounted || !last.ShowTranscript {
		t.Errorf("last state = %+v", last)
	}
}
