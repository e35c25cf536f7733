// Package tts turns conversation replies into speech.
//
// Every Provider returns raw PCM16 audio so the result can be handed straight
// to an audio sink. The locale selects the voice language:
//
//	provider, _ := tts.NewGoogle(ctx, tts.WithAPIKey(os.Getenv("GOOGLE_API_KEY")))
//	defer provider.Close()
//
//	result, _ := provider.Synthesize(ctx, "Salut !", "fr-FR")
//	// result.Audio holds PCM16 at result.Format
//
// Speaker wraps a Provider and a Sink for fire-and-forget playback.
package tts

import (
	"context"
	"strings"
	"time"

	"github.com/teslashibe/go-lingua/pkg/audio"
)

// DefaultLocale is used when a caller does not name one.
const DefaultLocale = "fr-FR"

// Provider synthesizes speech.
type Provider interface {
	// Synthesize converts text to PCM16 audio spoken in locale.
	Synthesize(ctx context.Context, text, locale string) (*AudioResult, error)

	// Health checks provider connectivity and credentials.
	Health(ctx context.Context) error

	// Close releases any resources held by the provider.
	Close() error
}

// AudioResult is a complete synthesis result.
type AudioResult struct {
	// Audio is little-endian PCM16.
	Audio []byte

	Format    audio.Format
	Duration  time.Duration
	Locale    string
	CharCount int
	LatencyMs int64
}

func newResult(pcm []byte, format audio.Format, text, locale string, start time.Time) *AudioResult {
	return &AudioResult{
		Audio:     pcm,
		Format:    format,
		Duration:  format.Duration(len(pcm)),
		Locale:    locale,
		CharCount: len([]rune(text)),
		LatencyMs: time.Since(start).Milliseconds(),
	}
}

// LanguageCode returns the ISO 639-1 part of a BCP-47 locale ("fr-FR" -> "fr").
func LanguageCode(locale string) string {
	if i := strings.IndexAny(locale, "-_"); i > 0 {
		locale = locale[:i]
	}
	return strings.ToLower(locale)
}

func localeOrDefault(locale string) string {
	if locale == "" {
		return DefaultLocale
	}
	return locale
}
