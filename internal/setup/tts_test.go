package setup

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/teslashibe/go-lingua/internal/config"
	"github.com/teslashibe/go-lingua/internal/log"
	"github.com/teslashibe/go-lingua/pkg/tts"
)

func TestNewTTS(t *testing.T) {
	ctx := context.Background()
	logger := log.Discard()

	t.Run("none", func(t *testing.T) {
		cfg := config.DefaultConfig()
		cfg.TTS = config.TTSNone
		p, err := NewTTS(ctx, cfg, logger)
		if err != nil || p != nil {
			t.Errorf("got %v, %v; want nil, nil", p, err)
		}
	})

	t.Run("openai", func(t *testing.T) {
		cfg := config.DefaultConfig()
		cfg.TTS = config.TTSOpenAI
		cfg.OpenAIKey = "sk-test"
		p, err := NewTTS(ctx, cfg, logger)
		if err != nil {
			t.Fatalf("NewTTS: %v", err)
		}
		if _, ok := p.(*tts.OpenAI); !ok {
			t.Errorf("provider = %T, want *tts.OpenAI", p)
		}
	})

	t.Run("openai without key", func(t *testing.T) {
		cfg := config.DefaultConfig()
		cfg.TTS = config.TTSOpenAI
		p, err := NewTTS(ctx, cfg, logger)
		if !errors.Is(err, tts.ErrNoAPIKey) {
			t.Errorf("err = %v, want ErrNoAPIKey", err)
		}
		if p != nil {
			t.Errorf("provider = %#v, want untyped nil", p)
		}
	})

	t.Run("chain keeps buildable providers", func(t *testing.T) {
		cfg := config.DefaultConfig()
		cfg.TTS = config.TTSChain
		cfg.GoogleAPIKey = "g-test"
		cfg.OpenAIKey = "sk-test"
		p, err := NewTTS(ctx, cfg, logger)
		if err != nil {
			t.Fatalf("NewTTS: %v", err)
		}
		chain, ok := p.(*tts.Chain)
		if !ok {
			t.Fatalf("provider = %T, want *tts.Chain", p)
		}
		if n := len(chain.Providers()); n != 2 {
			t.Errorf("providers = %d, want 2", n)
		}
	})

	t.Run("unknown mode", func(t *testing.T) {
		cfg := config.DefaultConfig()
		cfg.TTS = "festival"
		if _, err := NewTTS(ctx, cfg, logger); err == nil {
			t.Error("expected error")
		}
	})
}

func TestOptionalTTS(t *testing.T) {
	ctx := context.Background()
	logger := log.Discard()

	t.Run("default google without credentials", func(t *testing.T) {
		t.Setenv("GOOGLE_APPLICATION_CREDENTIALS", filepath.Join(t.TempDir(), "missing.json"))
		cfg := config.DefaultConfig()
		if cfg.TTS != config.TTSGoogle || cfg.GoogleAPIKey != "" {
			t.Fatalf("unexpected defaults: tts=%q key=%q", cfg.TTS, cfg.GoogleAPIKey)
		}
		if _, err := NewTTS(ctx, cfg, logger); err == nil {
			t.Fatal("NewTTS should fail without credentials")
		}
		if p := OptionalTTS(ctx, cfg, logger); p != nil {
			t.Errorf("provider = %#v, want nil", p)
		}
	})

	t.Run("openai without key", func(t *testing.T) {
		cfg := config.DefaultConfig()
		cfg.TTS = config.TTSOpenAI
		if p := OptionalTTS(ctx, cfg, logger); p != nil {
			t.Errorf("provider = %#v, want nil", p)
		}
	})

	t.Run("buildable provider", func(t *testing.T) {
		cfg := config.DefaultConfig()
		cfg.TTS = config.TTSOpenAI
		cfg.OpenAIKey = "sk-test"
		p := OptionalTTS(ctx, cfg, logger)
		if _, ok := p.(*tts.OpenAI); !ok {
			t.Errorf("provider = %T, want *tts.OpenAI", p)
		}
	})
}
