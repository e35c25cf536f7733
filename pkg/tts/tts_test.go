package tts_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/teslashibe/go-lingua/internal/log"
	"github.com/teslashibe/go-lingua/pkg/audio"
	"github.com/teslashibe/go-lingua/pkg/tts"
)

func TestMockProvider(t *testing.T) {
	mock := tts.NewMock()
	ctx := context.Background()

	t.Run("Synthesize returns audio", func(t *testing.T) {
		result, err := mock.Synthesize(ctx, "Salut!", "fr-FR")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if len(result.Audio) == 0 {
			t.Error("expected audio data")
		}
		if result.CharCount != 6 {
			t.Errorf("expected 6 chars, got %d", result.CharCount)
		}
		if result.Format.SampleRate != 24000 {
			t.Errorf("expected 24000 sample rate, got %d", result.Format.SampleRate)
		}
		if result.Locale != "fr-FR" {
			t.Errorf("expected locale fr-FR, got %s", result.Locale)
		}
	})

	t.Run("Calls are tracked", func(t *testing.T) {
		_ = mock.Health(ctx)
		if mock.CallCount("Synthesize") != 1 {
			t.Errorf("expected 1 Synthesize call, got %d", mock.CallCount("Synthesize"))
		}
		last := mock.LastCall()
		if last == nil || last.Method != "Health" {
			t.Errorf("unexpected last call: %+v", last)
		}
	})
}

func TestChain(t *testing.T) {
	ctx := context.Background()

	t.Run("falls back to next provider", func(t *testing.T) {
		failing := tts.FailingMock(errors.New("primary down"))
		backup := tts.NewMock()

		chain, err := tts.NewChainWithLogger(log.Discard(), failing, backup)
		if err != nil {
			t.Fatalf("NewChain: %v", err)
		}

		result, err := chain.Synthesize(ctx, "Hola", "es-US")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if result == nil {
			t.Fatal("expected result")
		}
		if backup.LastCall().Locale != "es-US" {
			t.Errorf("locale not forwarded: %+v", backup.LastCall())
		}
	})

	t.Run("all providers fail", func(t *testing.T) {
		first := errors.New("first")
		second := errors.New("second")
		chain, _ := tts.NewChainWithLogger(log.Discard(), tts.FailingMock(first), tts.FailingMock(second))

		_, err := chain.Synthesize(ctx, "Hello", "en-US")
		var chainErr *tts.ChainError
		if !errors.As(err, &chainErr) {
			t.Fatalf("expected ChainError, got %v", err)
		}
		if len(chainErr.Errors) != 2 {
			t.Errorf("expected 2 errors, got %d", len(chainErr.Errors))
		}
		if !errors.Is(err, first) || !errors.Is(err, second) {
			t.Error("chain error should wrap every provider error")
		}
	})

	t.Run("requires a provider", func(t *testing.T) {
		if _, err := tts.NewChain(); !errors.Is(err, tts.ErrProviderUnavailable) {
			t.Errorf("expected ErrProviderUnavailable, got %v", err)
		}
	})

	t.Run("health passes with one healthy provider", func(t *testing.T) {
		chain, _ := tts.NewChain(tts.FailingMock(errors.New("down")), tts.NewMock())
		if err := chain.Health(ctx); err != nil {
			t.Errorf("unexpected error: %v", err)
		}
	})
}

func TestAPIError(t *testing.T) {
	tests := []struct {
		status       int
		rateLimited  bool
		unauthorized bool
		server       bool
		retryable    bool
	}{
		{429, true, false, false, true},
		{401, false, true, false, false},
		{403, false, true, false, false},
		{500, false, false, true, true},
		{503, false, false, true, true},
		{400, false, false, false, false},
	}

	for _, tt := range tests {
		err := &tts.APIError{StatusCode: tt.status, Message: "x", Provider: "test"}
		if err.IsRateLimited() != tt.rateLimited {
			t.Errorf("%d: IsRateLimited() = %v", tt.status, err.IsRateLimited())
		}
		if err.IsUnauthorized() != tt.unauthorized {
			t.Errorf("%d: IsUnauthorized() = %v", tt.status, err.IsUnauthorized())
		}
		if err.IsServerError() != tt.server {
			t.Errorf("%d: IsServerError() = %v", tt.status, err.IsServerError())
		}
		if tts.IsRetryable(tts.WrapError("test", err)) != tt.retryable {
			t.Errorf("%d: IsRetryable() through wrap = %v", tt.status, !tt.retryable)
		}
	}
}

func TestLanguageCode(t *testing.T) {
	tests := map[string]string{
		"fr-FR": "fr",
		"es-US": "es",
		"en_US": "en",
		"de":    "de",
		"":      "",
	}
	for in, want := range tests {
		if got := tts.LanguageCode(in); got != want {
			t.Errorf("LanguageCode(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestSpeaker(t *testing.T) {
	t.Run("speaks in order with default locale", func(t *testing.T) {
		provider := tts.NewMock()
		sink := tts.NewMockSink()
		speaker := tts.NewSpeaker(provider, sink, tts.WithSpeakerLogger(log.Discard()))
		defer speaker.Close()

		speaker.Speak("Salut!", "")
		speaker.Speak("Hola", "es-US")
		speaker.Speak("   ", "en-US")
		speaker.Wait()

		calls := provider.Calls()
		if len(calls) != 2 {
			t.Fatalf("expected 2 synth calls, got %d", len(calls))
		}
		if calls[0].Text != "Salut!" || calls[0].Locale != tts.DefaultLocale {
			t.Errorf("first call = %+v", calls[0])
		}
		if calls[1].Text != "Hola" || calls[1].Locale != "es-US" {
			t.Errorf("second call = %+v", calls[1])
		}
		if len(sink.Plays()) != 2 {
			t.Errorf("expected 2 plays, got %d", len(sink.Plays()))
		}
	})

	t.Run("synthesis failure does not play", func(t *testing.T) {
		sink := tts.NewMockSink()
		speaker := tts.NewSpeaker(tts.FailingMock(errors.New("boom")), sink, tts.WithSpeakerLogger(log.Discard()))
		defer speaker.Close()

		speaker.Speak("Hello", "en-US")
		speaker.Wait()
		if len(sink.Plays()) != 0 {
			t.Error("nothing should play after a failed synthesis")
		}
	})

	t.Run("close cancels playback", func(t *testing.T) {
		started := make(chan struct{})
		var once sync.Once
		sink := tts.NewMockSink()
		sink.PlayFunc = func(ctx context.Context, pcm []byte, format audio.Format) error {
			once.Do(func() { close(started) })
			<-ctx.Done()
			return ctx.Err()
		}
		speaker := tts.NewSpeaker(tts.NewMock(), sink, tts.WithSpeakerLogger(log.Discard()))

		speaker.Speak("long reply", "en-US")
		<-started

		done := make(chan struct{})
		go func() {
			_ = speaker.Close()
			close(done)
		}()
		select {
		case <-done:
		case <-time.After(2 * time.Second):
			t.Fatal("Close did not cancel playback")
		}

		// Speak after Close is ignored.
		speaker.Speak("ignored", "en-US")
		if len(sink.Plays()) != 1 {
			t.Errorf("expected 1 play, got %d", len(sink.Plays()))
		}
	})
}
