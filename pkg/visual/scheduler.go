package visual

import (
	"sync"
	"time"
)

// FrameID identifies a scheduled frame callback. Zero is never issued.
type FrameID uint64

// FrameFunc is invoked once per requested frame with the frame timestamp.
type FrameFunc func(now time.Time)

// Scheduler schedules one-shot frame callbacks, like requestAnimationFrame.
type Scheduler interface {
	// RequestFrame schedules fn for the next frame and returns its ID.
	RequestFrame(fn FrameFunc) FrameID

	// CancelFrame cancels a pending frame. Unknown or fired IDs are ignored.
	CancelFrame(id FrameID)

	// Pending returns the number of scheduled frames that have not fired.
	Pending() int
}

// DefaultFrameRate is the frame rate of TickerScheduler when none is given.
const DefaultFrameRate = 60

// TickerScheduler fires frames on wall-clock timers at a fixed rate.
type TickerScheduler struct {
	interval time.Duration

	mu      sync.Mutex
	nextID  FrameID
	pending map[FrameID]*time.Timer
}

// NewTickerScheduler creates a scheduler running at fps frames per second.
func NewTickerScheduler(fps int) *TickerScheduler {
	if fps <= 0 {
		fps = DefaultFrameRate
	}
	return &TickerScheduler{
		interval: time.Second / time.Duration(fps),
		pending:  make(map[FrameID]*time.Timer),
	}
}

// RequestFrame implements Scheduler.
func (s *TickerScheduler) RequestFrame(fn FrameFunc) FrameID {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.nextID++
	id := s.nextID
	s.pending[id] = time.AfterFunc(s.interval, func() {
		s.mu.Lock()
		_, live := s.pending[id]
		delete(s.pending, id)
		s.mu.Unlock()

		if live {
			fn(time.Now())
		}
	})
	return id
}

// CancelFrame implements Scheduler.
func (s *TickerScheduler) CancelFrame(id FrameID) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if t, ok := s.pending[id]; ok {
		t.Stop()
		delete(s.pending, id)
	}
}

// Pending implements Scheduler.
func (s *TickerScheduler) Pending() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.pending)
}

// Interval returns the delay between frames.
func (s *TickerScheduler) Interval() time.Duration {
	return s.interval
}

var _ Scheduler = (*TickerScheduler)(nil)
