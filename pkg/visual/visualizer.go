// Package visual drives the live amplitude indicator of the conversation view.
//
// A Visualizer samples frequency data from an attached Source once per frame,
// reduces it to its arithmetic mean and publishes the result. Frames come from
// a Scheduler, so the loop can run on wall-clock timers in production and be
// stepped by hand in tests.
package visual

import (
	"log/slog"
	"sync"
	"time"
)

// MaxAmplitude is the upper bound of published amplitude values.
const MaxAmplitude = 255

// Source provides byte frequency data, one value in [0,255] per bin.
type Source interface {
	FrequencyBinCount() int
	ByteFrequencyData(dst []byte)
}

// Option configures a Visualizer.
type Option func(*Visualizer)

// WithScheduler sets the frame scheduler. Defaults to a 60 fps TickerScheduler.
func WithScheduler(s Scheduler) Option {
	return func(v *Visualizer) {
		v.scheduler = s
	}
}

// WithLogger sets the structured logger.
func WithLogger(logger *slog.Logger) Option {
	return func(v *Visualizer) {
		v.logger = logger
	}
}

// OnAmplitude registers a callback invoked with every recomputed amplitude.
func OnAmplitude(fn func(float64)) Option {
	return func(v *Visualizer) {
		v.onAmplitude = fn
	}
}

// Visualizer runs the per-frame amplitude loop.
type Visualizer struct {
	scheduler   Scheduler
	logger      *slog.Logger
	onAmplitude func(float64)

	mu        sync.Mutex
	source    Source
	buf       []byte
	frame     FrameID
	gen       uint64
	amplitude float64
}

// New creates a Visualizer.
func New(opts ...Option) *Visualizer {
	v := &Visualizer{
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(v)
	}
	if v.scheduler == nil {
		v.scheduler = NewTickerScheduler(DefaultFrameRate)
	}
	v.logger = v.logger.With("component", "visual")
	return v
}

// Attach starts the loop against src, replacing any previous source.
// The first sample is taken synchronously.
func (v *Visualizer) Attach(src Source) {
	if src == nil {
		v.Detach()
		return
	}

	v.mu.Lock()
	v.cancelLocked()
	v.source = src
	v.buf = make([]byte, src.FrequencyBinCount())
	bins := len(v.buf)
	gen := v.gen
	v.mu.Unlock()

	v.logger.Debug("visualizer attached", "bins", bins)
	v.tick(gen)
}

// Detach cancels the pending frame and drops the source. The amplitude is
// reset to zero and published once.
func (v *Visualizer) Detach() {
	v.mu.Lock()
	had := v.source != nil
	v.cancelLocked()
	v.source = nil
	v.buf = nil
	v.amplitude = 0
	v.mu.Unlock()

	if had {
		v.logger.Debug("visualizer detached")
		v.publish(0)
	}
}

// Active reports whether a source is attached.
func (v *Visualizer) Active() bool {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.source != nil
}

// Amplitude returns the most recent amplitude.
func (v *Visualizer) Amplitude() float64 {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.amplitude
}

// Scheduler returns the frame scheduler in use.
func (v *Visualizer) Scheduler() Scheduler {
	return v.scheduler
}

// cancelLocked invalidates the running loop. Callers hold v.mu.
func (v *Visualizer) cancelLocked() {
	v.gen++
	if v.frame != 0 {
		v.scheduler.CancelFrame(v.frame)
		v.frame = 0
	}
}

// tick samples one frame for generation gen and schedules the next one.
func (v *Visualizer) tick(gen uint64) {
	v.mu.Lock()
	if gen != v.gen || v.source == nil {
		v.mu.Unlock()
		return
	}
	src, buf := v.source, v.buf
	v.mu.Unlock()

	src.ByteFrequencyData(buf)
	amp := Mean(buf)

	v.mu.Lock()
	if gen != v.gen {
		// Detached while sampling.
		v.mu.Unlock()
		return
	}
	v.amplitude = amp
	v.frame = v.scheduler.RequestFrame(func(time.Time) { v.tick(gen) })
	v.mu.Unlock()

	v.publish(amp)
}

func (v *Visualizer) publish(amp float64) {
	if v.onAmplitude != nil {
		v.onAmplitude(amp)
	}
}

// Mean returns the arithmetic mean of data, or 0 for an empty slice.
func Mean(data []byte) float64 {
	if len(data) == 0 {
		return 0
	}
	var sum int
	for _, b := range data {
		sum += int(b)
	}
	return float64(sum) / float64(len(data))
}
