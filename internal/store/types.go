// Package store provides SQLite-backed lock history for axisconstrain.
package store

import "time"

// Session is one daemon run against one device.
type Session struct {
	ID             int64
	StartedNs      int64
	EndedNs        *int64
	Device         string
	Threshold      int
	Sticky         bool
	ReleaseAfterMs int
	Events         int64
	Suppressed     int64
}

// Started returns the session start time.
func (s *Session) Started() time.Time {
	return time.Unix(0, s.StartedNs)
}

// Duration returns how long the session ran, or zero if it is still open.
func (s *Session) Duration() time.Duration {
	if s.EndedNs == nil {
		return 0
	}
	return time.Duration(*s.EndedNs - s.StartedNs)
}

// Lock is one period during which an axis was dominant.
type Lock struct {
	ID         int64
	SessionID  int64
	Axis       string
	LockedNs   int64
	ReleasedNs int64
	Events     int64
	Suppressed int64
}

// Held returns how long the lock was held.
func (l *Lock) Held() time.Duration {
	return time.Duration(l.ReleasedNs - l.LockedNs)
}

// Reload records a configuration change applied while running.
type Reload struct {
	ID             int64
	SessionID      int64
	TimestampNs    int64
	Threshold      int
	Sticky         bool
	ReleaseAfterMs int
}

// AxisSummary aggregates the locks of one axis.
type AxisSummary struct {
	Axis       string
	Locks      int64
	Held       time.Duration
	Events     int64
	Suppressed int64
}

// Summary aggregates a session's lock history.
type Summary struct {
	Session Session
	Axes    []AxisSummary
	Reloads int64
}

func durationNs(ns int64) time.Duration {
	return time.Duration(ns)
}
