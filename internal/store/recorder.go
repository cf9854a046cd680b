package store

import (
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"axisconstrain/internal/constrain"
)

var _ constrain.Observer = (*Recorder)(nil)

// Recorder turns processor outcomes into lock history rows. Observer calls
// only touch memory; closed locks are written by a background goroutine in
// batches.
type Recorder struct {
	store   *Store
	session int64
	logger  *slog.Logger
	now     func() time.Time

	// mu guards current and closed, and orders sends on queue with its close.
	mu      sync.Mutex
	current *Lock
	closed  bool

	events     atomic.Int64
	suppressed atomic.Int64
	dropped    atomic.Int64

	queue     chan Lock
	done      chan struct{}
	closeOnce sync.Once
}

// RecorderOption configures a Recorder.
type RecorderOption func(*Recorder)

// WithClock replaces time.Now.
func WithClock(now func() time.Time) RecorderOption {
	return func(r *Recorder) {
		r.now = now
	}
}

// WithRecorderLogger sets the logger for write failures.
func WithRecorderLogger(l *slog.Logger) RecorderOption {
	return func(r *Recorder) {
		if l != nil {
			r.logger = l
		}
	}
}

// NewRecorder starts a session and returns a Recorder writing to it.
func NewRecorder(s *Store, sess Session, opts ...RecorderOption) (*Recorder, error) {
	r := &Recorder{
		store:  s,
		logger: slog.New(slog.DiscardHandler),
		now:    time.Now,
		queue:  make(chan Lock, 256),
		done:   make(chan struct{}),
	}
	for _, opt := range opts {
		opt(r)
	}

	if sess.StartedNs == 0 {
		sess.StartedNs = r.now().UnixNano()
	}
	id, err := s.StartSession(&sess)
	if err != nil {
		return nil, err
	}
	r.session = id

	go r.writeLoop()
	return r, nil
}

// SessionID returns the session being recorded.
func (r *Recorder) SessionID() int64 {
	return r.session
}

// Dropped returns how many lock rows were discarded because the writer fell
// behind.
func (r *Recorder) Dropped() int64 {
	return r.dropped.Load()
}

// ObserveEvent implements constrain.Observer.
func (r *Recorder) ObserveEvent(_ constrain.Axis, suppressed bool) {
	r.events.Add(1)
	if suppressed {
		r.suppressed.Add(1)
	}

	r.mu.Lock()
	if r.current != nil {
		r.current.Events++
		if suppressed {
			r.current.Suppressed++
		}
	}
	r.mu.Unlock()
}

// ObserveLock implements constrain.Observer. A lock on a new axis closes the
// previous one.
func (r *Recorder) ObserveLock(axis constrain.Axis) {
	now := r.now().UnixNano()

	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return
	}
	r.enqueueLocked(r.finishLocked(now))
	r.current = &Lock{
		SessionID: r.session,
		Axis:      axis.String(),
		LockedNs:  now,
	}
}

// ObserveUnlock implements constrain.Observer. The lock period ends without
// a release.
func (r *Recorder) ObserveUnlock() {
	r.ObserveRelease()
}

// ObserveRelease implements constrain.Observer.
func (r *Recorder) ObserveRelease() {
	now := r.now().UnixNano()

	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return
	}
	r.enqueueLocked(r.finishLocked(now))
}

// RecordReload stores a configuration change for the session.
func (r *Recorder) RecordReload(c constrain.Config) error {
	_, err := r.store.InsertReload(&Reload{
		SessionID:      r.session,
		TimestampNs:    r.now().UnixNano(),
		Threshold:      int(c.Threshold),
		Sticky:         c.Sticky,
		ReleaseAfterMs: int(c.ReleaseAfter / time.Millisecond),
	})
	return err
}

// Close flushes pending locks and ends the session.
func (r *Recorder) Close() error {
	var err error
	r.closeOnce.Do(func() {
		now := r.now().UnixNano()

		r.mu.Lock()
		r.enqueueLocked(r.finishLocked(now))
		r.closed = true
		close(r.queue)
		r.mu.Unlock()

		<-r.done

		err = r.store.EndSession(r.session, now, r.events.Load(), r.suppressed.Load())
	})
	return err
}

// finishLocked closes the current lock. Must be called with r.mu held.
func (r *Recorder) finishLocked(now int64) *Lock {
	l := r.current
	if l == nil {
		return nil
	}
	r.current = nil
	l.ReleasedNs = now
	return l
}

// enqueueLocked hands a closed lock to the writer without blocking.
// Must be called with r.mu held.
func (r *Recorder) enqueueLocked(l *Lock) {
	if l == nil {
		return
	}
	select {
	case r.queue <- *l:
	default:
		r.dropped.Add(1)
	}
}

func (r *Recorder) writeLoop() {
	defer close(r.done)

	batch := make([]Lock, 0, 32)
	for l := range r.queue {
		batch = append(batch[:0], l)
	drain:
		for len(batch) < cap(batch) {
			select {
			case more, ok := <-r.queue:
				if !ok {
					break drain
				}
				batch = append(batch, more)
			default:
				break drain
			}
		}
		if err := r.store.InsertLocks(batch); err != nil {
			r.logger.Warn("write lock history", "error", err, "locks", len(batch))
		}
	}
}
