// lingua serves the language-learning conversation view: it records the
// microphone, transcribes live, sends each turn to the conversation backend
// and speaks the reply.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/teslashibe/go-lingua/internal/config"
	"github.com/teslashibe/go-lingua/internal/log"
	"github.com/teslashibe/go-lingua/internal/setup"
	"github.com/teslashibe/go-lingua/pkg/audio"
	"github.com/teslashibe/go-lingua/pkg/catalog"
	"github.com/teslashibe/go-lingua/pkg/conversation"
	"github.com/teslashibe/go-lingua/pkg/stt"
	"github.com/teslashibe/go-lingua/pkg/tts"
	"github.com/teslashibe/go-lingua/pkg/view"
	"github.com/teslashibe/go-lingua/pkg/web"
)

const healthTimeout = 10 * time.Second

func main() {
	cfg, err := parseFlags()
	if err != nil {
		fmt.Fprintf(os.Stderr, "configuration error: %v\n", err)
		os.Exit(2)
	}
	log.Init(cfg.LogLevel)

	if err := cfg.Validate(); err != nil {
		log.Error("invalid configuration", "error", err)
		os.Exit(2)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if err := run(ctx, cfg); err != nil {
		log.Error("lingua stopped", "error", err)
		os.Exit(1)
	}
}

// parseFlags loads the config file and environment, then applies flags.
func parseFlags() (config.Config, error) {
	path := flag.String("config", os.Getenv("LINGUA_CONFIG"), "YAML config file")
	port := flag.String("port", "", "Listen port (overrides LINGUA_PORT)")
	backend := flag.String("backend", "", "Conversation backend URL (overrides LINGUA_BACKEND_URL)")
	ttsMode := flag.String("tts", "", "TTS provider: google, openai, elevenlabs, chain, none")
	static := flag.String("static", "", "Directory of the browser shell")
	logLevel := flag.String("log-level", "", "Log level: debug, info, warn, error")
	debug := flag.Bool("debug", false, "Enable debug logging")
	flag.Parse()

	cfg, err := config.Load(*path)
	if err != nil {
		return cfg, err
	}
	if *port != "" {
		cfg.Port = *port
	}
	if *backend != "" {
		cfg.BackendURL = *backend
	}
	if *ttsMode != "" {
		cfg.TTS = *ttsMode
	}
	if *static != "" {
		cfg.StaticDir = *static
	}
	if *logLevel != "" {
		cfg.LogLevel = *logLevel
	}
	if *debug {
		cfg.LogLevel = "debug"
	}
	return cfg, nil
}

func run(ctx context.Context, cfg config.Config) error {
	logger := log.L()

	cat := catalog.Default()
	if cfg.CatalogPath != "" {
		var err error
		if cat, err = catalog.Load(cfg.CatalogPath); err != nil {
			return err
		}
	}

	var (
		device audio.Device
		sink   tts.Sink
	)
	if mic, err := audio.NewMalgoDevice(logger); err != nil {
		logger.Warn("audio capture unavailable, recording disabled", "error", err)
	} else {
		defer mic.Close()
		device = mic
		sink = mic.Player()
	}

	var v *view.View

	var transcriber stt.Transcriber
	if cfg.DeepgramKey != "" {
		transcriber = stt.NewLive(
			stt.NewDeepgram(cfg.DeepgramKey, stt.WithDeepgramLogger(logger)),
			stt.WithSampleRate(audio.DefaultFormat.SampleRate),
			stt.WithChannels(audio.DefaultFormat.Channels),
			stt.WithLogger(logger),
			stt.OnUpdate(func(string) {
				if v != nil {
					v.Refresh()
				}
			}),
		)
	} else {
		logger.Warn("DEEPGRAM_API_KEY not set, live transcription disabled")
	}

	var exchanger conversation.Exchanger = conversation.NewClient(
		conversation.WithEndpoint(cfg.BackendURL),
		conversation.WithTimeout(cfg.ExchangeTimeout),
		conversation.WithLogger(logger),
	)
	exchangeBound := cfg.ExchangeTimeout
	if cfg.ExchangeAttempts > 1 {
		retry := conversation.NewRetry(exchanger,
			conversation.WithAttempts(cfg.ExchangeAttempts),
			conversation.WithAttemptTimeout(cfg.ExchangeTimeout),
			conversation.WithRetryLogger(logger),
		)
		exchangeBound = retry.Budget()
		exchanger = retry
	}

	provider := setup.OptionalTTS(ctx, cfg, logger)

	var speaker view.Speaker
	if provider != nil {
		defer provider.Close()
		sp := tts.NewSpeaker(provider, sink, tts.WithSpeakerLogger(logger))
		defer sp.Close()
		speaker = sp
	}

	v = view.New(view.Deps{
		Catalog:     cat,
		Device:      device,
		Transcriber: transcriber,
		Exchanger:   exchanger,
		Speaker:     speaker,
	},
		view.WithLogger(logger),
		view.WithRecordingsDir(cfg.RecordingsDir),
		view.WithExchangeTimeout(exchangeBound),
	)

	srv := web.NewServer(v,
		web.WithAddr(cfg.Addr()),
		web.WithStaticDir(cfg.StaticDir),
		web.WithLogger(logger),
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return srv.Run(gctx)
	})
	g.Go(func() error {
		<-gctx.Done()
		return v.Close()
	})
	if provider != nil {
		g.Go(func() error {
			hctx, cancel := context.WithTimeout(gctx, healthTimeout)
			defer cancel()
			if err := provider.Health(hctx); err != nil {
				logger.Warn("speech synthesis unhealthy", "tts", cfg.TTS, "error", err)
			}
			return nil
		})
	}

	logger.Info("lingua started",
		"addr", cfg.Addr(),
		"backend", cfg.BackendURL,
		"tts", cfg.TTS,
		"capture", device != nil,
		"transcription", transcriber != nil,
	)

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}
