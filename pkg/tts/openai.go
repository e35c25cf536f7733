package tts

import (
	"context"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/teslashibe/go-lingua/internal/httpc"
	"github.com/teslashibe/go-lingua/pkg/audio"
)

const (
	openAIBaseURL  = "https://api.openai.com/v1"
	providerOpenAI = "openai"
)

// OpenAI voices. All of them speak every supported language; the language
// follows the input text.
const (
	VoiceAlloy   = "alloy"
	VoiceNova    = "nova"
	VoiceShimmer = "shimmer"
)

// OpenAI models.
const (
	ModelTTS1       = "tts-1"
	ModelGPT4oMini  = "gpt-4o-mini-tts"
	openAIPCMRate   = 24000
	openAIPCMFormat = "pcm"
)

// OpenAI implements Provider for the OpenAI speech endpoint.
type OpenAI struct {
	config  *Config
	client  *http.Client
	logger  *slog.Logger
	baseURL string
}

// NewOpenAI creates an OpenAI provider.
func NewOpenAI(opts ...Option) (*OpenAI, error) {
	cfg := DefaultConfig()
	cfg.ModelID = ModelTTS1
	cfg.VoiceID = VoiceNova
	cfg.Apply(opts...)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	baseURL := strings.TrimSuffix(cfg.BaseURL, "/")
	if baseURL == "" {
		baseURL = openAIBaseURL
	}

	return &OpenAI{
		config:  cfg,
		client:  httpc.NewClient(cfg.Timeout),
		logger:  cfg.Logger.With("component", "tts.openai"),
		baseURL: baseURL,
	}, nil
}

// Synthesize requests raw 24 kHz PCM. The locale is not sent; the model
// detects the language from text.
func (o *OpenAI) Synthesize(ctx context.Context, text, locale string) (*AudioResult, error) {
	if strings.TrimSpace(text) == "" {
		return nil, WrapError(providerOpenAI, ErrEmptyText)
	}
	start := time.Now()

	payload := map[string]any{
		"model":           o.config.ModelID,
		"voice":           o.config.VoiceID,
		"input":           text,
		"response_format": openAIPCMFormat,
	}
	pcm, err := postJSON(ctx, o.client, o.config, o.logger, providerOpenAI,
		o.baseURL+"/audio/speech", o.headers(), payload)
	if err != nil {
		return nil, err
	}

	result := newResult(pcm, audio.Format{SampleRate: openAIPCMRate, Channels: 1}, text, locale, start)
	o.logger.Debug("synthesized audio",
		"chars", result.CharCount,
		"bytes", len(pcm),
		"latency_ms", result.LatencyMs,
		"voice", o.config.VoiceID,
	)
	return result, nil
}

// Health checks the key against the models endpoint.
func (o *OpenAI) Health(ctx context.Context) error {
	return getOK(ctx, o.client, providerOpenAI, o.baseURL+"/models", o.headers())
}

// Close releases idle connections.
func (o *OpenAI) Close() error {
	o.client.CloseIdleConnections()
	return nil
}

func (o *OpenAI) headers() map[string]string {
	return map[string]string{"Authorization": "Bearer " + o.config.APIKey}
}

var _ Provider = (*OpenAI)(nil)
