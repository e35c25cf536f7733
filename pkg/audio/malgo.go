package audio

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/gen2brain/malgo"
)

// MalgoDevice captures from the default system microphone through miniaudio.
type MalgoDevice struct {
	ctx    *malgo.AllocatedContext
	logger *slog.Logger
	buffer int
}

// NewMalgoDevice initializes the audio backend. A failure here means the host
// has no usable capture capability and is reported as ErrUnsupported.
func NewMalgoDevice(logger *slog.Logger) (*MalgoDevice, error) {
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With("component", "audio.malgo")

	ctx, err := malgo.InitContext(nil, malgo.ContextConfig{}, func(msg string) {
		logger.Debug("miniaudio", "msg", msg)
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnsupported, err)
	}

	return &MalgoDevice{ctx: ctx, logger: logger, buffer: 256}, nil
}

// Open acquires the default capture device and starts it.
func (d *MalgoDevice) Open(ctx context.Context, format Format) (Stream, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s := &malgoStream{ch: make(chan []byte, d.buffer), logger: d.logger}

	cfg := malgo.DefaultDeviceConfig(malgo.Capture)
	cfg.Capture.Format = malgo.FormatS16
	cfg.Capture.Channels = uint32(format.Channels)
	cfg.SampleRate = uint32(format.SampleRate)
	cfg.Alsa.NoMMap = 1

	dev, err := malgo.InitDevice(d.ctx.Context, cfg, malgo.DeviceCallbacks{Data: s.onData})
	if err != nil {
		return nil, fmt.Errorf("%w: init capture: %v", ErrDeviceUnavailable, err)
	}
	if err := dev.Start(); err != nil {
		dev.Uninit()
		return nil, fmt.Errorf("%w: start capture: %v", ErrDeviceUnavailable, err)
	}
	s.dev = dev

	d.logger.Info("capture device opened", "sample_rate", format.SampleRate, "channels", format.Channels)
	return s, nil
}

// Player returns a playback sink sharing this backend context.
func (d *MalgoDevice) Player() *Player {
	return &Player{ctx: d.ctx, logger: d.logger}
}

// Close releases the backend context.
func (d *MalgoDevice) Close() error {
	if d.ctx == nil {
		return nil
	}
	err := d.ctx.Uninit()
	d.ctx.Free()
	d.ctx = nil
	return err
}

type malgoStream struct {
	dev    *malgo.Device
	logger *slog.Logger

	mu      sync.Mutex
	ch      chan []byte
	closed  bool
	dropped int
}

func (s *malgoStream) onData(_, input []byte, frames uint32) {
	if frames == 0 || len(input) == 0 {
		return
	}
	chunk := make([]byte, len(input))
	copy(chunk, input)

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	select {
	case s.ch <- chunk:
	default:
		// Consumer is behind; drop rather than stall the audio thread.
		s.dropped++
	}
}

func (s *malgoStream) Chunks() <-chan []byte {
	return s.ch
}

func (s *malgoStream) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	dropped := s.dropped
	s.mu.Unlock()

	var err error
	if s.dev != nil {
		err = s.dev.Stop()
		s.dev.Uninit()
	}

	s.mu.Lock()
	close(s.ch)
	s.mu.Unlock()

	if dropped > 0 {
		s.logger.Warn("capture dropped chunks", "count", dropped)
	}
	return err
}

// Player plays PCM16 audio on the default output device.
type Player struct {
	ctx    *malgo.AllocatedContext
	logger *slog.Logger
}

// Play blocks until pcm has been played or ctx is done.
func (p *Player) Play(ctx context.Context, pcm []byte, format Format) error {
	if len(pcm) == 0 {
		return nil
	}

	done := make(chan struct{})
	var once sync.Once
	var mu sync.Mutex
	offset := 0

	cfg := malgo.DefaultDeviceConfig(malgo.Playback)
	cfg.Playback.Format = malgo.FormatS16
	cfg.Playback.Channels = uint32(format.Channels)
	cfg.SampleRate = uint32(format.SampleRate)
	cfg.Alsa.NoMMap = 1

	onData := func(output, _ []byte, frames uint32) {
		mu.Lock()
		n := copy(output, pcm[offset:])
		offset += n
		finished := offset >= len(pcm)
		mu.Unlock()

		for i := n; i < len(output); i++ {
			output[i] = 0
		}
		if finished {
			once.Do(func() { close(done) })
		}
	}

	dev, err := malgo.InitDevice(p.ctx.Context, cfg, malgo.DeviceCallbacks{Data: onData})
	if err != nil {
		return fmt.Errorf("%w: init playback: %v", ErrDeviceUnavailable, err)
	}
	defer dev.Uninit()

	if err := dev.Start(); err != nil {
		return fmt.Errorf("%w: start playback: %v", ErrDeviceUnavailable, err)
	}
	defer dev.Stop()

	select {
	case <-done:
		p.logger.Debug("playback finished", "duration", format.Duration(len(pcm)))
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

var _ Device = (*MalgoDevice)(nil)
