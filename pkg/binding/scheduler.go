package binding

import (
	"sync"
	"time"
)

// FrameScheduler runs a callback at the next frame boundary.
type FrameScheduler interface {
	Schedule(fn func())
}

// TimerScheduler approximates animation frames with a fixed interval.
type TimerScheduler struct {
	interval time.Duration
}

// NewTimerScheduler creates a scheduler firing interval after each
// Schedule call.
func NewTimerScheduler(interval time.Duration) *TimerScheduler {
	if interval <= 0 {
		interval = 16 * time.Millisecond
	}
	return &TimerScheduler{interval: interval}
}

func (s *TimerScheduler) Schedule(fn func()) {
	time.AfterFunc(s.interval, fn)
}

// ManualScheduler holds callbacks until RunFrame.
type ManualScheduler struct {
	mu      sync.Mutex
	pending []func()
}

func (s *ManualScheduler) Schedule(fn func()) {
	s.mu.Lock()
	s.pending = append(s.pending, fn)
	s.mu.Unlock()
}

// RunFrame runs the callbacks scheduled so far and reports how many ran.
func (s *ManualScheduler) RunFrame() int {
	s.mu.Lock()
	fns := s.pending
	s.pending = nil
	s.mu.Unlock()

	for _, fn := range fns {
		fn()
	}
	return len(fns)
}

// Pending returns the number of scheduled callbacks.
func (s *ManualScheduler) Pending() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.pending)
}

// Clock is the time source for debounce and throttle.
type Clock interface {
	Now() time.Time
	AfterFunc(d time.Duration, fn func()) Timer
}

// Timer is a stoppable pending call.
type Timer interface {
	Stop() bool
}

type realClock struct{}

func (realClock) Now() time.Time { return time.Now() }

func (realClock) AfterFunc(d time.Duration, fn func()) Timer {
	return time.AfterFunc(d, fn)
}
