// Package setup builds runtime components from the command configuration.
package setup

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/teslashibe/go-lingua/internal/config"
	"github.com/teslashibe/go-lingua/pkg/tts"
)

// NewTTS builds the provider selected by cfg.TTS. It returns nil for "none".
// In chain mode every provider that can be built joins, in the order google,
// openai, elevenlabs.
func NewTTS(ctx context.Context, cfg config.Config, logger *slog.Logger) (tts.Provider, error) {
	if logger == nil {
		logger = slog.Default()
	}

	builders := map[string]func() (tts.Provider, error){
		config.TTSGoogle: func() (tts.Provider, error) {
			return asProvider(tts.NewGoogle(ctx, tts.WithAPIKey(cfg.GoogleAPIKey), tts.WithLogger(logger)))
		},
		config.TTSOpenAI: func() (tts.Provider, error) {
			return asProvider(tts.NewOpenAI(tts.WithAPIKey(cfg.OpenAIKey), tts.WithLogger(logger)))
		},
		config.TTSElevenLabs: func() (tts.Provider, error) {
			return asProvider(tts.NewElevenLabs(
				tts.WithAPIKey(cfg.ElevenLabsKey),
				tts.WithVoice(cfg.ElevenLabsVoiceID),
				tts.WithLogger(logger),
			))
		},
	}

	switch cfg.TTS {
	case config.TTSNone:
		return nil, nil
	case config.TTSChain:
		var providers []tts.Provider
		for _, name := range []string{config.TTSGoogle, config.TTSOpenAI, config.TTSElevenLabs} {
			p, err := builders[name]()
			if err != nil {
				logger.Info("tts provider skipped", "provider", name, "error", err)
				continue
			}
			providers = append(providers, p)
		}
		return asProvider(tts.NewChainWithLogger(logger, providers...))
	default:
		build, ok := builders[cfg.TTS]
		if !ok {
			return nil, fmt.Errorf("unknown tts mode %q", cfg.TTS)
		}
		return build()
	}
}

// OptionalTTS is NewTTS for servers that keep running without speech
// output: a provider that cannot be built is logged and nil is returned.
func OptionalTTS(ctx context.Context, cfg config.Config, logger *slog.Logger) tts.Provider {
	if logger == nil {
		logger = slog.Default()
	}
	p, err := NewTTS(ctx, cfg, logger)
	if err != nil {
		logger.Warn("speech output disabled", "tts", cfg.TTS, "error", err)
		return nil
	}
	return p
}

// asProvider drops the typed nil a failed constructor returns.
func asProvider[P tts.Provider](p P, err error) (tts.Provider, error) {
	if err != nil {
		return nil, err
	}
	return p, nil
}
