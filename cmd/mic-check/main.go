// Command mic-check records from the default microphone, draws the live
// amplitude meter in the terminal and writes the take to a WAV file. With
// DEEPGRAM_API_KEY set it also prints the live transcript.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/teslashibe/go-lingua/internal/config"
	"github.com/teslashibe/go-lingua/internal/log"
	"github.com/teslashibe/go-lingua/pkg/audio"
	"github.com/teslashibe/go-lingua/pkg/stt"
	"github.com/teslashibe/go-lingua/pkg/visual"
)

const meterWidth = 40

var (
	seconds = flag.Duration("d", 5*time.Second, "Recording length")
	locale  = flag.String("locale", "fr-FR", "Transcription locale")
	fps     = flag.Int("fps", 20, "Meter refresh rate")
	dir     = flag.String("dir", "", "Recordings directory (default from config)")
)

func main() {
	flag.Parse()
	log.Init("warn")

	cfg, err := config.Load(os.Getenv("LINGUA_CONFIG"))
	if err != nil {
		fail(err)
	}
	if *dir != "" {
		cfg.RecordingsDir = *dir
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	dev, err := audio.NewMalgoDevice(log.L())
	if err != nil {
		fail(err)
	}
	defer dev.Close()

	var transcriber audio.Transcriber
	var live *stt.Live
	if cfg.DeepgramKey != "" {
		live = stt.NewLive(stt.NewDeepgram(cfg.DeepgramKey, stt.WithDeepgramLogger(log.L())), stt.WithLogger(log.L()))
		transcriber = live
	}

	meter := visual.New(
		visual.WithScheduler(visual.NewTickerScheduler(*fps)),
		visual.WithLogger(log.L()),
		visual.OnAmplitude(func(a float64) {
			fmt.Printf("\r🎤 %s %5.1f", bar(a, visual.MaxAmplitude, meterWidth), a)
		}),
	)

	rec := audio.NewRecorder(dev, transcriber, meter,
		audio.WithRecordingsDir(cfg.RecordingsDir),
		audio.WithLogger(log.L()),
	)

	fmt.Printf("Recording %v from the default microphone (Ctrl+C to stop early)\n", *seconds)
	if err := rec.Start(ctx, *locale); err != nil {
		fail(err)
	}

	select {
	case <-time.After(*seconds):
	case <-ctx.Done():
	}

	artifact, err := rec.Stop()
	fmt.Println()
	if err != nil {
		fail(err)
	}

	fmt.Printf("💾 %s (%v, %d bytes)\n", artifact.Path, artifact.Duration.Round(time.Millisecond), artifact.Size)
	if live != nil {
		fmt.Printf("📝 %q\n", live.Transcript())
	}
}

// bar renders value on a width-wide gauge scaled to max.
func bar(value, max float64, width int) string {
	if max <= 0 || width <= 0 {
		return ""
	}
	n := int(value / max * float64(width))
	if n < 0 {
		n = 0
	}
	if n > width {
		n = width
	}
	return "[" + strings.Repeat("#", n) + strings.Repeat(" ", width-n) + "]"
}

func fail(err error) {
	fmt.Fprintf(os.Stderr, "\n❌ %v\n", err)
	os.Exit(1)
}
