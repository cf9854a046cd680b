// Package pipeline moves events from an input source through a filter to an
// output sink.
//
// The daemon wires an evdev reader, a constrain.Processor, and a uinput
// writer together with it. The filter can be swapped while events are
// flowing, which is how configuration reloads take effect.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"axisconstrain/internal/constrain"
)

// ErrRunning is returned when Run is called on a pipeline that is already running.
var ErrRunning = errors.New("pipeline: already running")

// Source produces input events.
type Source interface {
	ReadEvent(ctx context.Context) (constrain.Event, error)
}

// Sink consumes filtered events.
type Sink interface {
	WriteEvent(ev constrain.Event) error
}

// Filter may modify an event in place before it reaches the sink.
type Filter interface {
	Handle(ev *constrain.Event) error
}

// LatencyObserver receives the time spent on each event.
type LatencyObserver interface {
	ObserveLatency(d time.Duration)
}

// Config configures a Pipeline.
type Config struct {
	Logger  *slog.Logger
	Latency LatencyObserver
}

// Stats counts pipeline activity since creation.
type Stats struct {
	Read       uint64 `json:"read"`
	Written    uint64 `json:"written"`
	Suppressed uint64 `json:"suppressed"`
	Swaps      uint64 `json:"swaps"`
}

type filterBox struct {
	f Filter
}

// Pipeline copies events from a Source to a Sink through a Filter.
type Pipeline struct {
	src     Source
	sink    Sink
	filter  atomic.Pointer[filterBox]
	logger  *slog.Logger
	latency LatencyObserver
	running atomic.Bool

	read       atomic.Uint64
	written    atomic.Uint64
	suppressed atomic.Uint64
	swaps      atomic.Uint64

	// swapMu serializes SetFilter so each replaced filter is closed once.
	swapMu sync.Mutex
}

// New creates a pipeline. A nil filter passes events through unchanged.
func New(src Source, filter Filter, sink Sink, cfg Config) *Pipeline {
	if cfg.Logger == nil {
		cfg.Logger = slog.New(slog.DiscardHandler)
	}
	p := &Pipeline{
		src:     src,
		sink:    sink,
		logger:  cfg.Logger,
		latency: cfg.Latency,
	}
	p.filter.Store(&filterBox{f: filter})
	return p
}

// SetFilter replaces the filter. Events already inside the old filter finish
// there; later events use the new one. The old filter is closed if it
// implements io.Closer.
func (p *Pipeline) SetFilter(f Filter) {
	p.swapMu.Lock()
	defer p.swapMu.Unlock()

	old := p.filter.Swap(&filterBox{f: f})
	p.swaps.Add(1)
	if c, ok := old.f.(io.Closer); ok {
		if err := c.Close(); err != nil {
			p.logger.Warn("close replaced filter", "error", err)
		}
	}
}

// Filter returns the active filter.
func (p *Pipeline) Filter() Filter {
	return p.filter.Load().f
}

// Stats returns a snapshot of the counters.
func (p *Pipeline) Stats() Stats {
	return Stats{
		Read:       p.read.Load(),
		Written:    p.written.Load(),
		Suppressed: p.suppressed.Load(),
		Swaps:      p.swaps.Load(),
	}
}

// Running reports whether Run is active.
func (p *Pipeline) Running() bool {
	return p.running.Load()
}

// Run processes events until ctx is done or the source or sink fails.
// Cancellation is a clean stop and returns nil.
func (p *Pipeline) Run(ctx context.Context) error {
	if !p.running.CompareAndSwap(false, true) {
		return ErrRunning
	}
	defer p.running.Store(false)

	p.logger.Info("pipeline started")
	defer func() {
		s := p.Stats()
		p.logger.Info("pipeline stopped", "read", s.Read, "written", s.Written, "suppressed", s.Suppressed)
	}()

	for {
		ev, err := p.src.ReadEvent(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return fmt.Errorf("read event: %w", err)
		}
		start := time.Now()
		p.read.Add(1)

		if err := p.step(&ev); err != nil {
			return err
		}

		if p.latency != nil {
			p.latency.ObserveLatency(time.Since(start))
		}
	}
}

func (p *Pipeline) step(ev *constrain.Event) error {
	before := ev.Value
	if f := p.filter.Load().f; f != nil {
		if err := f.Handle(ev); err != nil {
			return fmt.Errorf("filter event: %w", err)
		}
	}
	if ev.Type == constrain.EvRel && before != 0 && ev.Value == 0 {
		p.suppressed.Add(1)
	}

	if err := p.sink.WriteEvent(*ev); err != nil {
		return fmt.Errorf("write event: %w", err)
	}
	p.written.Add(1)
	return nil
}
