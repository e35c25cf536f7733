package tts

import (
	"bytes"
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/go-audio/wav"
	"golang.org/x/oauth2/google"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"
	texttospeech "google.golang.org/api/texttospeech/v1"

	"github.com/teslashibe/go-lingua/pkg/audio"
)

const providerGoogle = "google"

// Google implements Provider for Cloud Text-to-Speech. It authenticates with
// an API key when one is configured and Application Default Credentials
// otherwise.
type Google struct {
	config *Config
	svc    *texttospeech.Service
	logger *slog.Logger
}

// NewGoogle creates a Cloud Text-to-Speech provider.
func NewGoogle(ctx context.Context, opts ...Option) (*Google, error) {
	cfg := DefaultConfig()
	cfg.Apply(opts...)

	var clientOpts []option.ClientOption
	if cfg.APIKey != "" {
		clientOpts = append(clientOpts, option.WithAPIKey(cfg.APIKey))
	} else {
		creds, err := google.FindDefaultCredentials(ctx, texttospeech.CloudPlatformScope)
		if err != nil {
			return nil, WrapError(providerGoogle, fmt.Errorf("%w: %v", ErrNoAPIKey, err))
		}
		clientOpts = append(clientOpts, option.WithTokenSource(creds.TokenSource))
	}
	if cfg.BaseURL != "" {
		clientOpts = append(clientOpts, option.WithEndpoint(cfg.BaseURL))
	}

	svc, err := texttospeech.NewService(ctx, clientOpts...)
	if err != nil {
		return nil, WrapError(providerGoogle, fmt.Errorf("create service: %w", err))
	}

	return &Google{
		config: cfg,
		svc:    svc,
		logger: cfg.Logger.With("component", "tts.google"),
	}, nil
}

// Synthesize requests LINEAR16 audio in locale. An empty locale falls back to
// DefaultLocale.
func (g *Google) Synthesize(ctx context.Context, text, locale string) (*AudioResult, error) {
	if strings.TrimSpace(text) == "" {
		return nil, WrapError(providerGoogle, ErrEmptyText)
	}
	locale = localeOrDefault(locale)
	start := time.Now()

	if g.config.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, g.config.Timeout)
		defer cancel()
	}

	req := &texttospeech.SynthesizeSpeechRequest{
		Input: &texttospeech.SynthesisInput{Text: text},
		Voice: &texttospeech.VoiceSelectionParams{
			LanguageCode: locale,
			Name:         g.config.VoiceID,
		},
		AudioConfig: &texttospeech.AudioConfig{
			AudioEncoding:   "LINEAR16",
			SampleRateHertz: int64(g.config.SampleRate),
		},
	}

	resp, err := g.svc.Text.Synthesize(req).Context(ctx).Do()
	if err != nil {
		return nil, g.mapError(err)
	}

	raw, err := base64.StdEncoding.DecodeString(resp.AudioContent)
	if err != nil {
		return nil, WrapError(providerGoogle, fmt.Errorf("%w: %v", ErrInvalidAudio, err))
	}
	pcm, format, err := decodeLinear16(raw, g.config.SampleRate)
	if err != nil {
		return nil, WrapError(providerGoogle, err)
	}

	result := newResult(pcm, format, text, locale, start)
	g.logger.Debug("synthesized audio",
		"chars", result.CharCount,
		"bytes", len(pcm),
		"latency_ms", result.LatencyMs,
		"locale", locale,
	)
	return result, nil
}

// Health lists the voices of the default locale.
func (g *Google) Health(ctx context.Context) error {
	_, err := g.svc.Voices.List().LanguageCode(DefaultLocale).Context(ctx).Do()
	if err != nil {
		return g.mapError(err)
	}
	return nil
}

// Close is a no-op; the service holds no dedicated resources.
func (g *Google) Close() error {
	return nil
}

func (g *Google) mapError(err error) error {
	var gErr *googleapi.Error
	if errors.As(err, &gErr) {
		return &APIError{
			StatusCode: gErr.Code,
			Message:    gErr.Message,
			Provider:   providerGoogle,
		}
	}
	return WrapError(providerGoogle, err)
}

// decodeLinear16 strips the WAV header Cloud TTS wraps around LINEAR16 audio.
// Headerless input is taken as mono PCM16 at fallbackRate.
func decodeLinear16(raw []byte, fallbackRate int) ([]byte, audio.Format, error) {
	dec := wav.NewDecoder(bytes.NewReader(raw))
	if !dec.IsValidFile() {
		if len(raw)%2 != 0 {
			return nil, audio.Format{}, ErrInvalidAudio
		}
		return raw, audio.Format{SampleRate: fallbackRate, Channels: 1}, nil
	}

	buf, err := dec.FullPCMBuffer()
	if err != nil {
		return nil, audio.Format{}, fmt.Errorf("%w: %v", ErrInvalidAudio, err)
	}
	samples := make([]int16, len(buf.Data))
	for i, s := range buf.Data {
		samples[i] = int16(s)
	}
	format := audio.Format{SampleRate: int(dec.SampleRate), Channels: int(dec.NumChans)}
	return audio.Int16ToBytes(samples), format, nil
}

var _ Provider = (*Google)(nil)
