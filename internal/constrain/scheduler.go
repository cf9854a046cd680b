package constrain

import (
	"sync"
	"time"
)

// Scheduler runs a callback once after a delay.
//
// Schedule must cancel any pending firing before arming the new one, so that
// a callback armed by an earlier Schedule never runs after a later Schedule
// returns. Cancel drops any pending firing.
type Scheduler interface {
	Schedule(d time.Duration, fn func())
	Cancel()
}

// TimerScheduler is a Scheduler backed by time.AfterFunc.
type TimerScheduler struct {
	mu    sync.Mutex
	timer *time.Timer
	gen   uint64
}

// NewTimerScheduler creates an idle TimerScheduler.
func NewTimerScheduler() *TimerScheduler {
	return &TimerScheduler{}
}

// Schedule arms fn to run after d, replacing any pending firing.
func (s *TimerScheduler) Schedule(d time.Duration, fn func()) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.scheduleLocked(d, fn)
}

func (s *TimerScheduler) scheduleLocked(d time.Duration, fn func()) {
	if s.timer != nil {
		s.timer.Stop()
	}
	s.gen++
	gen := s.gen
	s.timer = time.AfterFunc(d, func() {
		// Stop cannot recall a timer that already fired; the generation
		// check discards those stale firings.
		s.mu.Lock()
		current := gen == s.gen
		if current {
			s.timer = nil
		}
		s.mu.Unlock()
		if current {
			fn()
		}
	})
}

// Cancel drops any pending firing.
func (s *TimerScheduler) Cancel() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.timer != nil {
		s.timer.Stop()
		s.timer = nil
	}
	s.gen++
}

// Pending reports whether a firing is armed.
func (s *TimerScheduler) Pending() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.timer != nil
}
