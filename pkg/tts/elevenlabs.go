package tts

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/teslashibe/go-lingua/internal/httpc"
	"github.com/teslashibe/go-lingua/pkg/audio"
)

const (
	elevenLabsBaseURL  = "https://api.elevenlabs.io/v1"
	providerElevenLabs = "elevenlabs"
)

// ElevenLabs multilingual models. Only these accept a language_code.
const (
	ModelFlashV2_5      = "eleven_flash_v2_5"
	ModelMultilingualV2 = "eleven_multilingual_v2"
)

// VoiceSettings controls ElevenLabs voice characteristics.
type VoiceSettings struct {
	Stability       float64 `json:"stability"`
	SimilarityBoost float64 `json:"similarity_boost"`
	Style           float64 `json:"style"`
	SpeakerBoost    bool    `json:"use_speaker_boost"`
}

// DefaultVoiceSettings favours a calm, clear delivery for learners.
func DefaultVoiceSettings() VoiceSettings {
	return VoiceSettings{
		Stability:       0.6,
		SimilarityBoost: 0.75,
		SpeakerBoost:    true,
	}
}

// ElevenLabs implements Provider for ElevenLabs multilingual voices.
type ElevenLabs struct {
	config   *Config
	settings VoiceSettings
	client   *http.Client
	logger   *slog.Logger
	baseURL  string
}

// NewElevenLabs creates an ElevenLabs provider. A voice ID is required.
func NewElevenLabs(opts ...Option) (*ElevenLabs, error) {
	cfg := DefaultConfig()
	cfg.ModelID = ModelFlashV2_5
	cfg.Apply(opts...)

	if err := cfg.ValidateWithVoice(); err != nil {
		return nil, err
	}

	baseURL := strings.TrimSuffix(cfg.BaseURL, "/")
	if baseURL == "" {
		baseURL = elevenLabsBaseURL
	}

	return &ElevenLabs{
		config:   cfg,
		settings: DefaultVoiceSettings(),
		client:   httpc.NewClient(cfg.Timeout),
		logger:   cfg.Logger.With("component", "tts.elevenlabs"),
		baseURL:  baseURL,
	}, nil
}

// Synthesize requests raw PCM at the configured sample rate in locale.
func (e *ElevenLabs) Synthesize(ctx context.Context, text, locale string) (*AudioResult, error) {
	if strings.TrimSpace(text) == "" {
		return nil, WrapError(providerElevenLabs, ErrEmptyText)
	}
	start := time.Now()

	q := url.Values{}
	q.Set("output_format", fmt.Sprintf("pcm_%d", e.config.SampleRate))
	endpoint := fmt.Sprintf("%s/text-to-speech/%s?%s", e.baseURL, url.PathEscape(e.config.VoiceID), q.Encode())

	payload := map[string]any{
		"text":           text,
		"model_id":       e.config.ModelID,
		"voice_settings": e.settings,
	}
	if code := LanguageCode(locale); code != "" {
		payload["language_code"] = code
	}

	pcm, err := postJSON(ctx, e.client, e.config, e.logger, providerElevenLabs, endpoint, e.headers(), payload)
	if err != nil {
		return nil, err
	}

	result := newResult(pcm, audio.Format{SampleRate: e.config.SampleRate, Channels: 1}, text, locale, start)
	e.logger.Debug("synthesized audio",
		"chars", result.CharCount,
		"bytes", len(pcm),
		"latency_ms", result.LatencyMs,
		"model", e.config.ModelID,
	)
	return result, nil
}

// Health checks the key against the user endpoint.
func (e *ElevenLabs) Health(ctx context.Context) error {
	return getOK(ctx, e.client, providerElevenLabs, e.baseURL+"/user", e.headers())
}

// Close releases idle connections.
func (e *ElevenLabs) Close() error {
	e.client.CloseIdleConnections()
	return nil
}

// VoiceID returns the configured voice.
func (e *ElevenLabs) VoiceID() string {
	return e.config.VoiceID
}

func (e *ElevenLabs) headers() map[string]string {
	return map[string]string{"xi-api-key": e.config.APIKey}
}

var _ Provider = (*ElevenLabs)(nil)
