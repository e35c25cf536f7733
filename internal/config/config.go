// Package config holds the runtime configuration of the go-lingua commands.
// Values come from defaults, then an optional YAML file, then the
// environment. Flag parsing is done in cmd/lingua; this struct is data only.
package config

import (
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/teslashibe/go-lingua/pkg/conversation"
)

// Speech synthesis modes.
const (
	TTSGoogle     = "google"
	TTSOpenAI     = "openai"
	TTSElevenLabs = "elevenlabs"
	TTSChain      = "chain"
	TTSNone       = "none"
)

// Default configuration values.
const (
	DefaultPort            = "8080"
	DefaultLogLevel        = "info"
	DefaultExchangeTimeout = 30 * time.Second
)

// Config holds all configuration for the lingua server.
type Config struct {
	// Port is the view server listen port.
	Port string `yaml:"port"`

	// BackendURL is the conversation backend endpoint.
	BackendURL string `yaml:"backend_url"`

	// ExchangeTimeout bounds one backend round trip.
	ExchangeTimeout time.Duration `yaml:"exchange_timeout"`

	// ExchangeAttempts is how many times a failed exchange is tried.
	ExchangeAttempts int `yaml:"exchange_attempts"`

	// RecordingsDir is where finished recordings are written.
	RecordingsDir string `yaml:"recordings_dir"`

	// CatalogPath overrides the built-in language tables.
	CatalogPath string `yaml:"catalog"`

	// StaticDir serves the browser shell when set.
	StaticDir string `yaml:"static_dir"`

	LogLevel string `yaml:"log_level"`

	// TTS selects the speech synthesis provider.
	TTS string `yaml:"tts"`

	// API keys, normally from the environment.
	DeepgramKey       string `yaml:"-"`
	GoogleAPIKey      string `yaml:"-"`
	OpenAIKey         string `yaml:"-"`
	ElevenLabsKey     string `yaml:"-"`
	ElevenLabsVoiceID string `yaml:"elevenlabs_voice_id"`
}

// DefaultConfig returns sensible defaults.
func DefaultConfig() Config {
	return Config{
		Port:             DefaultPort,
		BackendURL:       conversation.DefaultEndpoint,
		ExchangeTimeout:  DefaultExchangeTimeout,
		ExchangeAttempts: 1,
		RecordingsDir:    filepath.Join(os.TempDir(), "go-lingua", "recordings"),
		LogLevel:         DefaultLogLevel,
		TTS:              TTSGoogle,
	}
}

// Load returns the defaults overlaid with the YAML file at path (when not
// empty) and then the environment.
func Load(path string) (Config, error) {
	cfg := DefaultConfig()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return cfg, fmt.Errorf("config: read %s: %w", path, err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return cfg, fmt.Errorf("config: parse %s: %w", path, err)
		}
	}
	cfg.LoadEnvConfig()
	return cfg, nil
}

// LoadEnvConfig applies environment overrides.
func (c *Config) LoadEnvConfig() {
	setString(&c.Port, "LINGUA_PORT")
	setString(&c.BackendURL, "LINGUA_BACKEND_URL")
	setString(&c.RecordingsDir, "LINGUA_RECORDINGS_DIR")
	setString(&c.CatalogPath, "LINGUA_CATALOG")
	setString(&c.StaticDir, "LINGUA_STATIC_DIR")
	setString(&c.LogLevel, "LINGUA_LOG_LEVEL")
	setString(&c.TTS, "LINGUA_TTS")
	setString(&c.DeepgramKey, "DEEPGRAM_API_KEY")
	setString(&c.GoogleAPIKey, "GOOGLE_API_KEY")
	setString(&c.OpenAIKey, "OPENAI_API_KEY")
	setString(&c.ElevenLabsKey, "ELEVENLABS_API_KEY")
	setString(&c.ElevenLabsVoiceID, "ELEVENLABS_VOICE_ID")

	c.TTS = strings.ToLower(strings.TrimSpace(c.TTS))
}

func setString(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

// Addr returns the listen address for Port.
func (c *Config) Addr() string {
	if strings.Contains(c.Port, ":") {
		return c.Port
	}
	return ":" + c.Port
}

// Validate checks that required configuration is present.
func (c *Config) Validate() error {
	if c.Port == "" {
		return &ConfigError{Field: "Port", Message: "port must not be empty"}
	}

	u, err := url.Parse(c.BackendURL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return &ConfigError{Field: "BackendURL", Message: fmt.Sprintf("backend url %q must be an absolute http(s) url", c.BackendURL)}
	}

	if c.ExchangeTimeout < 0 {
		return &ConfigError{Field: "ExchangeTimeout", Message: "exchange timeout must not be negative"}
	}
	if c.ExchangeAttempts < 1 {
		return &ConfigError{Field: "ExchangeAttempts", Message: "exchange attempts must be at least 1"}
	}
	if c.RecordingsDir == "" {
		return &ConfigError{Field: "RecordingsDir", Message: "recordings dir must not be empty"}
	}

	switch c.TTS {
	case TTSGoogle, TTSChain, TTSNone:
	case TTSOpenAI:
		if c.OpenAIKey == "" {
			return &ConfigError{Field: "OpenAIKey", Message: "OPENAI_API_KEY environment variable is required for OpenAI TTS"}
		}
	case TTSElevenLabs:
		if c.ElevenLabsKey == "" {
			return &ConfigError{Field: "ElevenLabsKey", Message: "ELEVENLABS_API_KEY environment variable is required for ElevenLabs TTS"}
		}
		if c.ElevenLabsVoiceID == "" {
			return &ConfigError{Field: "ElevenLabsVoiceID", Message: "ELEVENLABS_VOICE_ID environment variable is required for ElevenLabs TTS"}
		}
	default:
		return &ConfigError{Field: "TTS", Message: fmt.Sprintf("unknown tts mode %q", c.TTS)}
	}
	return nil
}

// ConfigError represents a configuration validation error.
type ConfigError struct {
	Field   string
	Message string
}

func (e *ConfigError) Error() string {
	return e.Message
}
