package constrain

import (
	"log/slog"
	"sync"
)

// Observer receives processing outcomes. Calls happen outside the
// processor's critical section, one at a time, and must neither block nor
// call back into the processor. Lock, unlock and release transitions arrive
// in the order they were decided; one overtaken by a later transition is
// not delivered.
type Observer interface {
	ObserveEvent(axis Axis, suppressed bool)
	ObserveLock(axis Axis)
	// ObserveUnlock reports that arbitration found no dominant axis after a
	// lock (non-sticky mode). Accumulators are kept.
	ObserveUnlock()
	ObserveRelease()
}

// Observers fans each outcome out to every member in order.
type Observers []Observer

func (o Observers) ObserveEvent(axis Axis, suppressed bool) {
	for _, ob := range o {
		ob.ObserveEvent(axis, suppressed)
	}
}

func (o Observers) ObserveLock(axis Axis) {
	for _, ob := range o {
		ob.ObserveLock(axis)
	}
}

func (o Observers) ObserveUnlock() {
	for _, ob := range o {
		ob.ObserveUnlock()
	}
}

func (o Observers) ObserveRelease() {
	for _, ob := range o {
		ob.ObserveRelease()
	}
}

// State is a point-in-time copy of a processor's mutable state.
// In non-sticky mode Lock is the result of the most recent arbitration.
type State struct {
	Lock       Axis         `json:"lock"`
	Accum      Accumulators `json:"accum"`
	RemainderX int32        `json:"remainder_x"`
	RemainderY int32        `json:"remainder_y"`
}

// Option configures a Processor.
type Option func(*Processor)

// WithScheduler injects the release timer. Defaults to a TimerScheduler.
func WithScheduler(s Scheduler) Option {
	return func(p *Processor) {
		p.sched = s
	}
}

// WithLogger sets the logger used for lock and release transitions.
func WithLogger(l *slog.Logger) Option {
	return func(p *Processor) {
		if l != nil {
			p.logger = l
		}
	}
}

// WithObserver registers an Observer.
func WithObserver(o Observer) Option {
	return func(p *Processor) {
		p.observer = o
	}
}

// Processor constrains motion events to one dominant axis.
// It is safe for concurrent use by the event path and the release timer.
type Processor struct {
	cfg      Config
	sched    Scheduler
	logger   *slog.Logger
	observer Observer

	// mu guards everything below for the whole read-decide-mutate sequence.
	mu         sync.Mutex
	lock       Axis
	acc        Accumulators
	remainderX int32
	remainderY int32
	epoch      uint64
	seq        uint64

	// notifyMu serializes observer calls; delivered is the seq of the last
	// transition handed out.
	notifyMu  sync.Mutex
	delivered uint64
}

// New validates cfg and returns a processor in the unlocked state.
func New(cfg Config, opts ...Option) (*Processor, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	p := &Processor{
		cfg:    cfg,
		logger: slog.New(slog.DiscardHandler),
	}
	for _, opt := range opts {
		opt(p)
	}
	if p.sched == nil && cfg.Sticky {
		p.sched = NewTimerScheduler()
	}
	return p, nil
}

// Config returns the processor configuration.
func (p *Processor) Config() Config {
	return p.cfg
}

// outcome carries what happened inside the critical section out to logging
// and observers.
type outcome struct {
	axis       Axis
	suppressed bool
	locked     Axis
	unlocked   bool
	value      int32
	seq        uint64
}

// Handle filters a single event. Events other than REL_X / REL_Y pass
// through untouched. For motion events the value may be set to zero in
// place; callers must forward ev as modified. Handle never fails.
func (p *Processor) Handle(ev *Event) error {
	axis, ok := axisOf(ev)
	if !ok {
		return nil
	}

	var out outcome
	p.mu.Lock()
	if p.cfg.Sticky {
		out = p.handleSticky(axis, ev)
	} else {
		out = p.handleNonSticky(axis, ev)
	}
	p.seq++
	out.seq = p.seq
	p.mu.Unlock()

	p.report(out)
	return nil
}

// suppress zeroes the event value, recording the dropped motion if enabled.
// Must be called with p.mu held.
func (p *Processor) suppress(axis Axis, ev *Event) {
	if p.cfg.TrackRemainders {
		switch axis {
		case AxisX:
			p.remainderX = saturatingAdd(p.remainderX, ev.Value)
		case AxisY:
			p.remainderY = saturatingAdd(p.remainderY, ev.Value)
		}
	}
	ev.Value = 0
}

func (p *Processor) report(out outcome) {
	if out.locked != AxisNone {
		p.logger.Debug("axis locked", "axis", out.locked.String())
	}
	if out.unlocked {
		p.logger.Debug("axis unlocked")
	}
	if out.suppressed {
		p.logger.Debug("motion suppressed", "axis", out.axis.String(), "value", out.value)
	}
	if p.observer == nil {
		return
	}

	p.notifyMu.Lock()
	defer p.notifyMu.Unlock()
	switch {
	case out.locked != AxisNone:
		if p.deliverable(out.seq) {
			p.observer.ObserveLock(out.locked)
		}
	case out.unlocked:
		if p.deliverable(out.seq) {
			p.observer.ObserveUnlock()
		}
	}
	p.observer.ObserveEvent(out.axis, out.suppressed)
}

// notifyRelease delivers a release stamped seq.
func (p *Processor) notifyRelease(seq uint64) {
	if p.observer == nil {
		return
	}
	p.notifyMu.Lock()
	defer p.notifyMu.Unlock()
	if p.deliverable(seq) {
		p.observer.ObserveRelease()
	}
}

// deliverable reports whether the transition stamped seq is newer than the
// last one delivered, and records it if so. Must be called with p.notifyMu
// held.
func (p *Processor) deliverable(seq uint64) bool {
	if seq < p.delivered {
		return false
	}
	p.delivered = seq
	return true
}

// Release unlocks the axis and clears all accumulated state. It is the
// callback invoked by the release timer and may also be called directly.
func (p *Processor) Release() {
	p.mu.Lock()
	p.resetLocked()
	p.seq++
	seq := p.seq
	p.mu.Unlock()

	p.logger.Debug("axis lock released")
	p.notifyRelease(seq)
}

// expire is the timer callback for the rearm identified by epoch. A firing
// that lost the race with a newer event is ignored.
func (p *Processor) expire(epoch uint64) {
	p.mu.Lock()
	if epoch != p.epoch {
		p.mu.Unlock()
		return
	}
	p.resetLocked()
	p.seq++
	seq := p.seq
	p.mu.Unlock()

	p.logger.Debug("axis lock released", "reason", "idle")
	p.notifyRelease(seq)
}

func (p *Processor) resetLocked() {
	p.lock = AxisNone
	p.acc.Reset()
	p.remainderX = 0
	p.remainderY = 0
}

// Snapshot returns a consistent copy of the current state.
func (p *Processor) Snapshot() State {
	p.mu.Lock()
	defer p.mu.Unlock()
	return State{
		Lock:       p.lock,
		Accum:      p.acc,
		RemainderX: p.remainderX,
		RemainderY: p.remainderY,
	}
}

// Close cancels any pending release. The processor must not be used after.
func (p *Processor) Close() error {
	if p.sched != nil {
		p.sched.Cancel()
	}
	return nil
}
