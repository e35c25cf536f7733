// Command tts-check synthesizes a phrase with the configured speech provider
// and reports latency, so credentials and voices can be checked without the
// full view.
//
// Usage:
//
//	GOOGLE_API_KEY=... go run ./cmd/tts-check/ -text "Bonjour !" -locale fr-FR
//	OPENAI_API_KEY=... go run ./cmd/tts-check/ -tts openai -play
//
// Flags:
//
//	-tts      Provider: google, openai, elevenlabs, chain
//	-text     Phrase to synthesize
//	-locale   BCP-47 locale (default fr-FR)
//	-out      Write the audio to this WAV file
//	-play     Play the audio on the default output device
//	-n        Number of runs for the latency summary
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/teslashibe/go-lingua/internal/config"
	"github.com/teslashibe/go-lingua/internal/log"
	"github.com/teslashibe/go-lingua/internal/setup"
	"github.com/teslashibe/go-lingua/pkg/audio"
	"github.com/teslashibe/go-lingua/pkg/tts"
)

var (
	ttsMode = flag.String("tts", "", "Provider: google, openai, elevenlabs, chain")
	text    = flag.String("text", "Bonjour ! Comment ça va aujourd'hui ?", "Phrase to synthesize")
	locale  = flag.String("locale", tts.DefaultLocale, "BCP-47 locale")
	out     = flag.String("out", "", "Write the audio to this WAV file")
	play    = flag.Bool("play", false, "Play the audio on the default output device")
	runs    = flag.Int("n", 1, "Number of runs for the latency summary")
	timeout = flag.Duration("timeout", 30*time.Second, "Per-request timeout")
)

func main() {
	flag.Parse()
	log.Init("warn")

	cfg, err := config.Load(os.Getenv("LINGUA_CONFIG"))
	if err != nil {
		fail(err)
	}
	if *ttsMode != "" {
		cfg.TTS = *ttsMode
	}
	if cfg.TTS == config.TTSNone {
		fail(fmt.Errorf("tts is disabled"))
	}
	if err := cfg.Validate(); err != nil {
		fail(err)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	provider, err := setup.NewTTS(ctx, cfg, log.L())
	if err != nil {
		fail(err)
	}
	defer provider.Close()

	fmt.Printf("🔊 Provider: %s\n", cfg.TTS)
	fmt.Printf("   Locale:   %s\n", *locale)
	fmt.Printf("   Text:     %q\n\n", *text)

	var (
		last      *tts.AudioResult
		latencies []time.Duration
	)
	for i := 0; i < *runs; i++ {
		rctx, rcancel := context.WithTimeout(ctx, *timeout)
		start := time.Now()
		result, err := provider.Synthesize(rctx, *text, *locale)
		elapsed := time.Since(start)
		rcancel()
		if err != nil {
			fail(fmt.Errorf("synthesize: %w", err))
		}

		latencies = append(latencies, elapsed)
		last = result
		fmt.Printf("   run %d: %v (%d bytes, %v of audio)\n", i+1, elapsed.Round(time.Millisecond), len(result.Audio), result.Duration.Round(time.Millisecond))
	}

	min, max, avg := summarize(latencies)
	fmt.Printf("\n⚡ Latency: min %v, avg %v, max %v\n", min, avg, max)

	if *out != "" {
		size, err := audio.WriteWAV(*out, last.Format, [][]byte{last.Audio})
		if err != nil {
			fail(err)
		}
		fmt.Printf("💾 Wrote %s (%d bytes)\n", *out, size)
	}

	if *play {
		dev, err := audio.NewMalgoDevice(log.L())
		if err != nil {
			fail(err)
		}
		defer dev.Close()
		if err := dev.Player().Play(ctx, last.Audio, last.Format); err != nil {
			fail(fmt.Errorf("play: %w", err))
		}
	}
}

// summarize returns the minimum, maximum and mean of ds.
func summarize(ds []time.Duration) (min, max, avg time.Duration) {
	if len(ds) == 0 {
		return 0, 0, 0
	}
	min, max = ds[0], ds[0]
	var total time.Duration
	for _, d := range ds {
		if d < min {
			min = d
		}
		if d > max {
			max = d
		}
		total += d
	}
	avg = total / time.Duration(len(ds))
	return min.Round(time.Millisecond), max.Round(time.Millisecond), avg.Round(time.Millisecond)
}

func fail(err error) {
	fmt.Fprintf(os.Stderr, "❌ %v\n", err)
	os.Exit(1)
}
