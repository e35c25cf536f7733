package audio

import (
	"math"
	"sync"

	"gonum.org/v1/gonum/dsp/fourier"
)

// Analyzer defaults, matching the browser AnalyserNode.
const (
	DefaultFFTSize     = 2048
	DefaultSmoothing   = 0.8
	DefaultMinDecibels = -100.0
	DefaultMaxDecibels = -30.0
)

// Analyzer computes live frequency-domain data from the most recent window of
// captured samples. It is safe for one writer and concurrent readers.
type Analyzer struct {
	channels    int
	smoothing   float64
	minDecibels float64
	maxDecibels float64

	mu       sync.Mutex
	fft      *fourier.FFT
	window   []float64
	ring     []float64
	pos      int
	frame    []float64
	coeffs   []complex128
	smoothed []float64
}

// NewAnalyzer creates an analyzer for interleaved PCM16 with the given channel
// count. fftSize must be a power of two; other values fall back to the default.
func NewAnalyzer(fftSize, channels int) *Analyzer {
	if fftSize < 32 || fftSize&(fftSize-1) != 0 {
		fftSize = DefaultFFTSize
	}
	if channels < 1 {
		channels = 1
	}

	window := make([]float64, fftSize)
	for n := range window {
		x := 2 * math.Pi * float64(n) / float64(fftSize)
		window[n] = 0.42 - 0.5*math.Cos(x) + 0.08*math.Cos(2*x)
	}

	return &Analyzer{
		channels:    channels,
		smoothing:   DefaultSmoothing,
		minDecibels: DefaultMinDecibels,
		maxDecibels: DefaultMaxDecibels,
		fft:         fourier.NewFFT(fftSize),
		window:      window,
		ring:        make([]float64, fftSize),
		frame:       make([]float64, fftSize),
		smoothed:    make([]float64, fftSize/2),
	}
}

// FFTSize returns the analysis window length.
func (a *Analyzer) FFTSize() int {
	return len(a.ring)
}

// FrequencyBinCount returns half the FFT size.
func (a *Analyzer) FrequencyBinCount() int {
	return len(a.ring) / 2
}

// Write appends interleaved PCM16 bytes, downmixed to mono.
func (a *Analyzer) Write(pcm []byte) {
	samples := BytesToInt16(pcm)

	a.mu.Lock()
	defer a.mu.Unlock()

	for i := 0; i+a.channels <= len(samples); i += a.channels {
		var sum float64
		for c := 0; c < a.channels; c++ {
			sum += float64(samples[i+c])
		}
		a.ring[a.pos] = sum / float64(a.channels) / 32768.0
		a.pos = (a.pos + 1) % len(a.ring)
	}
}

// ByteFrequencyData fills dst with the current spectrum scaled to [0,255].
// Each call advances the smoothing state, as the browser analyser does.
func (a *Analyzer) ByteFrequencyData(dst []byte) {
	a.mu.Lock()
	defer a.mu.Unlock()

	n := len(a.ring)
	for i := 0; i < n; i++ {
		a.frame[i] = a.ring[(a.pos+i)%n] * a.window[i]
	}
	a.coeffs = a.fft.Coefficients(a.coeffs, a.frame)

	span := a.maxDecibels - a.minDecibels
	bins := len(a.smoothed)
	for k := 0; k < bins && k < len(dst); k++ {
		re, im := real(a.coeffs[k]), imag(a.coeffs[k])
		mag := math.Sqrt(re*re+im*im) / float64(n)
		a.smoothed[k] = a.smoothing*a.smoothed[k] + (1-a.smoothing)*mag

		db := 20 * math.Log10(a.smoothed[k])
		scaled := 255 * (db - a.minDecibels) / span
		switch {
		case math.IsNaN(scaled) || scaled < 0:
			dst[k] = 0
		case scaled > 255:
			dst[k] = 255
		default:
			dst[k] = byte(scaled)
		}
	}
}
