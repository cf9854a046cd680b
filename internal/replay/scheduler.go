package replay

import (
	"sync"
	"time"

	"axisconstrain/internal/constrain"
)

var _ constrain.Scheduler = (*VirtualScheduler)(nil)

// VirtualScheduler is a constrain.Scheduler driven by an explicit clock.
// Like the timer-backed scheduler it holds at most one pending callback and
// each Schedule replaces it.
type VirtualScheduler struct {
	mu    sync.Mutex
	epoch time.Time
	now   time.Duration
	due   time.Duration
	fn    func()
}

// NewVirtualScheduler returns a scheduler at virtual time zero.
func NewVirtualScheduler() *VirtualScheduler {
	return &VirtualScheduler{epoch: time.Unix(0, 0).UTC()}
}

// Schedule implements constrain.Scheduler.
func (s *VirtualScheduler) Schedule(d time.Duration, fn func()) {
	s.mu.Lock()
	s.due = s.now + d
	s.fn = fn
	s.mu.Unlock()
}

// Cancel implements constrain.Scheduler.
func (s *VirtualScheduler) Cancel() {
	s.mu.Lock()
	s.fn = nil
	s.mu.Unlock()
}

// Now returns the elapsed virtual time.
func (s *VirtualScheduler) Now() time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.now
}

// Epoch is the wall time corresponding to virtual time zero.
func (s *VirtualScheduler) Epoch() time.Time {
	return s.epoch
}

// Pending reports whether a callback is armed and when it is due.
func (s *VirtualScheduler) Pending() (time.Duration, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.due, s.fn != nil
}

// AdvanceTo moves the clock forward to t, running the pending callback if it
// falls due on the way. Moving backwards is a no-op. It returns the number
// of callbacks run.
func (s *VirtualScheduler) AdvanceTo(t time.Duration) int {
	fired := 0
	for {
		s.mu.Lock()
		if t < s.now {
			s.mu.Unlock()
			return fired
		}
		if s.fn == nil || s.due > t {
			s.now = t
			s.mu.Unlock()
			return fired
		}
		fn := s.fn
		s.now = s.due
		s.fn = nil
		s.mu.Unlock()

		// fn may call Schedule again.
		fn()
		fired++
	}
}

// Advance moves the clock forward by d.
func (s *VirtualScheduler) Advance(d time.Duration) int {
	return s.AdvanceTo(s.Now() + d)
}
