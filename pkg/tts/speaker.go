package tts

import (
	"context"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/teslashibe/go-lingua/pkg/audio"
)

// Sink plays PCM16 audio. audio.Player satisfies it.
type Sink interface {
	Play(ctx context.Context, pcm []byte, format audio.Format) error
}

// SpeakerOption configures a Speaker.
type SpeakerOption func(*Speaker)

// WithSpeakerLogger sets the structured logger.
func WithSpeakerLogger(logger *slog.Logger) SpeakerOption {
	return func(s *Speaker) {
		s.logger = logger
	}
}

// WithSpeakTimeout bounds synthesis plus playback of one utterance.
func WithSpeakTimeout(d time.Duration) SpeakerOption {
	return func(s *Speaker) {
		s.timeout = d
	}
}

// Speaker speaks replies without blocking the caller. Utterances are played
// one at a time in the order requested.
type Speaker struct {
	provider Provider
	sink     Sink
	logger   *slog.Logger
	timeout  time.Duration

	ctx    context.Context
	cancel context.CancelFunc
	queue  chan utterance
	wg     sync.WaitGroup
	worker sync.WaitGroup

	mu     sync.Mutex
	closed bool
}

type utterance struct {
	text   string
	locale string
}

// NewSpeaker creates a speaker. sink may be nil, in which case audio is
// synthesized and discarded.
func NewSpeaker(provider Provider, sink Sink, opts ...SpeakerOption) *Speaker {
	ctx, cancel := context.WithCancel(context.Background())
	s := &Speaker{
		provider: provider,
		sink:     sink,
		logger:   slog.Default(),
		timeout:  time.Minute,
		ctx:      ctx,
		cancel:   cancel,
		queue:    make(chan utterance, 16),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.logger = s.logger.With("component", "tts.speaker")

	s.worker.Add(1)
	go s.run()
	return s
}

// Speak queues text for synthesis and playback in locale. An empty locale
// falls back to DefaultLocale. Failures are logged.
func (s *Speaker) Speak(text, locale string) {
	if strings.TrimSpace(text) == "" {
		return
	}
	u := utterance{text: text, locale: localeOrDefault(locale)}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	s.wg.Add(1)
	select {
	case s.queue <- u:
	default:
		s.wg.Done()
		s.logger.Warn("speech queue full, dropping reply", "locale", u.locale)
	}
}

func (s *Speaker) run() {
	defer s.worker.Done()
	for u := range s.queue {
		s.say(u)
		s.wg.Done()
	}
}

func (s *Speaker) say(u utterance) {
	if s.ctx.Err() != nil {
		return
	}
	ctx, cancel := context.WithTimeout(s.ctx, s.timeout)
	defer cancel()

	result, err := s.provider.Synthesize(ctx, u.text, u.locale)
	if err != nil {
		s.logger.Error("speech synthesis failed", "error", err, "locale", u.locale)
		return
	}
	if s.sink == nil {
		return
	}
	if err := s.sink.Play(ctx, result.Audio, result.Format); err != nil {
		s.logger.Error("speech playback failed", "error", err)
		return
	}
	s.logger.Debug("spoke reply", "locale", u.locale, "duration", result.Duration)
}

// Wait blocks until queued utterances finish.
func (s *Speaker) Wait() {
	s.wg.Wait()
}

// Close cancels pending speech and stops the worker.
func (s *Speaker) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	s.cancel()
	close(s.queue)
	s.mu.Unlock()

	s.worker.Wait()
	return nil
}
