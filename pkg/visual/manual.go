package visual

import (
	"sort"
	"sync"
	"time"
)

// ManualScheduler is a Scheduler driven explicitly by Step. It is meant for
// tests that need deterministic frame delivery.
type ManualScheduler struct {
	mu      sync.Mutex
	nextID  FrameID
	pending map[FrameID]FrameFunc
	now     time.Time
}

// NewManualScheduler creates an empty manual scheduler.
func NewManualScheduler() *ManualScheduler {
	return &ManualScheduler{
		pending: make(map[FrameID]FrameFunc),
		now:     time.Unix(0, 0),
	}
}

// RequestFrame implements Scheduler.
func (s *ManualScheduler) RequestFrame(fn FrameFunc) FrameID {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.nextID++
	s.pending[s.nextID] = fn
	return s.nextID
}

// CancelFrame implements Scheduler.
func (s *ManualScheduler) CancelFrame(id FrameID) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.pending, id)
}

// Pending implements Scheduler.
func (s *ManualScheduler) Pending() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.pending)
}

// Step fires every frame pending at call time, in request order, and returns
// how many fired. Frames requested by the callbacks wait for the next Step.
func (s *ManualScheduler) Step() int {
	s.mu.Lock()
	s.now = s.now.Add(time.Second / DefaultFrameRate)
	now := s.now
	ids := make([]FrameID, 0, len(s.pending))
	for id := range s.pending {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	fns := make([]FrameFunc, 0, len(ids))
	for _, id := range ids {
		fns = append(fns, s.pending[id])
		delete(s.pending, id)
	}
	s.mu.Unlock()

	for _, fn := range fns {
		fn(now)
	}
	return len(fns)
}

var _ Scheduler = (*ManualScheduler)(nil)
