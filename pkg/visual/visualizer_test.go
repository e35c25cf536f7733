package visual

import (
	"sync"
	"testing"
	"time"
)

type fixedSource struct {
	mu   sync.Mutex
	bins []byte
}

func (s *fixedSource) FrequencyBinCount() int { return len(s.bins) }

func (s *fixedSource) ByteFrequencyData(dst []byte) {
	s.mu.Lock()
	defer s.mu.Unlock()
	copy(dst, s.bins)
}

func (s *fixedSource) set(bins ...byte) {
	s.mu.Lock()
	defer s.mu.Unlock()
	copy(s.bins, bins)
}

func TestMean(t *testing.T) {
	tests := []struct {
		name string
		data []byte
		want float64
	}{
		{"empty", nil, 0},
		{"silence", []byte{0, 0, 0, 0}, 0},
		{"full scale", []byte{255, 255}, 255},
		{"mixed", []byte{10, 20, 30, 40}, 25},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Mean(tt.data); got != tt.want {
				t.Errorf("Mean = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestVisualizerLoop(t *testing.T) {
	sched := NewManualScheduler()
	var mu sync.Mutex
	var published []float64
	v := New(WithScheduler(sched), OnAmplitude(func(a float64) {
		mu.Lock()
		published = append(published, a)
		mu.Unlock()
	}))

	src := &fixedSource{bins: []byte{100, 100, 100, 100}}

	t.Run("attach samples immediately and schedules a frame", func(t *testing.T) {
		v.Attach(src)
		if !v.Active() {
			t.Fatal("expected active visualizer")
		}
		if v.Amplitude() != 100 {
			t.Errorf("amplitude = %v, want 100", v.Amplitude())
		}
		if sched.Pending() != 1 {
			t.Errorf("pending = %d, want 1", sched.Pending())
		}
	})

	t.Run("each frame recomputes and reschedules", func(t *testing.T) {
		src.set(0, 0, 200, 200)
		if n := sched.Step(); n != 1 {
			t.Fatalf("fired %d frames, want 1", n)
		}
		if v.Amplitude() != 100 {
			t.Errorf("amplitude = %v, want 100", v.Amplitude())
		}

		src.set(255, 255, 255, 255)
		sched.Step()
		if v.Amplitude() != 255 {
			t.Errorf("amplitude = %v, want 255", v.Amplitude())
		}
		if sched.Pending() != 1 {
			t.Errorf("pending = %d, want exactly one frame in flight", sched.Pending())
		}
	})

	t.Run("detach cancels the pending frame", func(t *testing.T) {
		v.Detach()
		if v.Active() {
			t.Error("expected inactive visualizer")
		}
		if sched.Pending() != 0 {
			t.Errorf("pending = %d, want 0", sched.Pending())
		}
		if v.Amplitude() != 0 {
			t.Errorf("amplitude = %v, want 0 after detach", v.Amplitude())
		}
		if sched.Step() != 0 {
			t.Error("no frame should fire after detach")
		}
	})

	mu.Lock()
	defer mu.Unlock()
	if len(published) != 4 || published[len(published)-1] != 0 {
		t.Errorf("published = %v", published)
	}
}

func TestVisualizerReattachReplacesLoop(t *testing.T) {
	sched := NewManualScheduler()
	v := New(WithScheduler(sched))

	v.Attach(&fixedSource{bins: []byte{10}})
	v.Attach(&fixedSource{bins: []byte{50}})

	if sched.Pending() != 1 {
		t.Fatalf("pending = %d, want 1", sched.Pending())
	}
	sched.Step()
	if v.Amplitude() != 50 {
		t.Errorf("amplitude = %v, want 50", v.Amplitude())
	}
}

func TestVisualizerDetachIdle(t *testing.T) {
	calls := 0
	v := New(WithScheduler(NewManualScheduler()), OnAmplitude(func(float64) { calls++ }))
	v.Detach()
	v.Detach()
	if calls != 0 {
		t.Errorf("detach on idle visualizer published %d times", calls)
	}
}

func TestTickerScheduler(t *testing.T) {
	s := NewTickerScheduler(100)
	if s.Interval() != 10*time.Millisecond {
		t.Errorf("interval = %v", s.Interval())
	}

	fired := make(chan struct{}, 1)
	s.RequestFrame(func(time.Time) { fired <- struct{}{} })

	select {
	case <-fired:
	case <-time.After(time.Second):
		t.Fatal("frame never fired")
	}
	if s.Pending() != 0 {
		t.Errorf("pending = %d after fire", s.Pending())
	}

	id := s.RequestFrame(func(time.Time) { t.Error("cancelled frame fired") })
	s.CancelFrame(id)
	if s.Pending() != 0 {
		t.Errorf("pending = %d after cancel", s.Pending())
	}
	time.Sleep(30 * time.Millisecond)
}

func TestVisualizerWithTicker(t *testing.T) {
	sched := NewTickerScheduler(200)
	v := New(WithScheduler(sched))
	src := &fixedSource{bins: []byte{0, 0}}
	v.Attach(src)

	src.set(80, 120)
	deadline := time.Now().Add(time.Second)
	for v.Amplitude() != 100 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	if v.Amplitude() != 100 {
		t.Fatalf("amplitude = %v, want 100", v.Amplitude())
	}

	v.Detach()
	time.Sleep(20 * time.Millisecond)
	if sched.Pending() != 0 {
		t.Errorf("pending = %d after detach", sched.Pending())
	}
}
