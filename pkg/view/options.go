package view

import (
	"log/slog"
	"time"

	"github.com/teslashibe/go-lingua/pkg/audio"
	"github.com/teslashibe/go-lingua/pkg/visual"
)

// DefaultExchangeTimeout bounds one backend round trip.
const DefaultExchangeTimeout = 30 * time.Second

type options struct {
	scheduler       visual.Scheduler
	logger          *slog.Logger
	recordingsDir   string
	format          audio.Format
	exchangeTimeout time.Duration
	onChange        func(State)
}

func defaultOptions() options {
	return options{
		logger:          slog.Default(),
		format:          audio.DefaultFormat,
		exchangeTimeout: DefaultExchangeTimeout,
	}
}

// Option configures a View.
type Option func(*options)

// WithScheduler sets the frame scheduler driving the visualizer.
func WithScheduler(s visual.Scheduler) Option {
	return func(o *options) {
		o.scheduler = s
	}
}

// WithLogger sets the structured logger.
func WithLogger(logger *slog.Logger) Option {
	return func(o *options) {
		if logger != nil {
			o.logger = logger
		}
	}
}

// WithRecordingsDir sets where finished recordings are written.
func WithRecordingsDir(dir string) Option {
	return func(o *options) {
		o.recordingsDir = dir
	}
}

// WithFormat sets the capture format.
func WithFormat(f audio.Format) Option {
	return func(o *options) {
		o.format = f
	}
}

// WithExchangeTimeout bounds each backend request. Zero disables the bound.
func WithExchangeTimeout(d time.Duration) Option {
	return func(o *options) {
		o.exchangeTimeout = d
	}
}

// OnChange registers a callback invoked with a snapshot after every change,
// visualizer frames included.
func OnChange(fn func(State)) Option {
	return func(o *options) {
		o.onChange = fn
	}
}
