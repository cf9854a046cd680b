// Package internal provides integration tests for the axisconstrain core.
//
// These tests drive the same pieces the daemon wires together:
// 1. Load processor settings from a config file
// 2. Feed scripted events through a pipeline and processor
// 3. Record outcomes in metrics and the lock history
// 4. Hot-swap the processor when the config file changes
package internal

import (
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"axisconstrain/internal/config"
	"axisconstrain/internal/constrain"
	"axisconstrain/internal/metrics"
	"axisconstrain/internal/pipeline"
	"axisconstrain/internal/replay"
	"axisconstrain/internal/store"
)

// scriptSource replays script steps, advancing a virtual clock to each
// step's time before handing the event out.
type scriptSource struct {
	steps []replay.Step
	clock *replay.VirtualScheduler
	next  int
}

func (s *scriptSource) ReadEvent(ctx context.Context) (constrain.Event, error) {
	if err := ctx.Err(); err != nil {
		return constrain.Event{}, err
	}
	if s.next >= len(s.steps) {
		return constrain.Event{}, io.EOF
	}
	st := s.steps[s.next]
	s.next++
	s.clock.AdvanceTo(time.Duration(st.AtMs) * time.Millisecond)
	return st.Event()
}

type collectSink struct {
	mu     sync.Mutex
	values []int32
}

func (s *collectSink) WriteEvent(ev constrain.Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.values = append(s.values, ev.Value)
	return nil
}

func (s *collectSink) Values() []int32 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]int32(nil), s.values...)
}

// =============================================================================
// INTEGRATION: Live pipeline agrees with replay
// =============================================================================

// TestPipelineMatchesReplay runs each script both through replay.Run and
// through a pipeline with a virtual clock and checks the outputs agree.
func TestPipelineMatchesReplay(t *testing.T) {
	for _, name := range []string{"release.yaml", "nonsticky.json"} {
		t.Run(name, func(t *testing.T) {
			script, err := replay.LoadScript(filepath.Join("..", "testdata", name))
			if err != nil {
				t.Fatalf("LoadScript failed: %v", err)
			}

			want, err := replay.Run(script)
			if err != nil {
				t.Fatalf("replay.Run failed: %v", err)
			}

			clock := replay.NewVirtualScheduler()
			m := metrics.NewConstrainMetrics(metrics.NewRegistry("test", ""))
			proc, err := constrain.New(script.Config.ProcessorConfig(),
				constrain.WithScheduler(clock), constrain.WithObserver(m))
			if err != nil {
				t.Fatalf("constrain.New failed: %v", err)
			}
			defer proc.Close()

			sink := &collectSink{}
			pl := pipeline.New(&scriptSource{steps: script.Steps, clock: clock}, proc, sink, pipeline.Config{Latency: m})

			if err := pl.Run(context.Background()); !errors.Is(err, io.EOF) {
				t.Fatalf("expected EOF at end of script, got %v", err)
			}

			got := sink.Values()
			if len(got) != len(want) {
				t.Fatalf("expected %d events, got %d", len(want), len(got))
			}
			var suppressed uint64
			for i := range want {
				if got[i] != want[i].Out {
					t.Errorf("step %d: pipeline wrote %d, replay %d", i, got[i], want[i].Out)
				}
				if want[i].In != 0 && want[i].Out == 0 {
					suppressed++
				}
			}

			stats := pl.Stats()
			if stats.Read != uint64(len(want)) || stats.Suppressed != suppressed {
				t.Errorf("unexpected stats %+v, want %d suppressed", stats, suppressed)
			}
			if m.SuppressedTotal.Value() != suppressed {
				t.Errorf("metrics counted %d suppressed, want %d", m.SuppressedTotal.Value(), suppressed)
			}
			if m.PipelineLatency.Count() != uint64(len(want)) {
				t.Errorf("expected %d latency samples, got %d", len(want), m.PipelineLatency.Count())
			}
		})
	}
}

// =============================================================================
// INTEGRATION: Lock history
// =============================================================================

// TestLockHistoryFromPipeline records a sticky session and reads it back.
func TestLockHistoryFromPipeline(t *testing.T) {
	script, err := replay.LoadScript(filepath.Join("..", "testdata", "release.yaml"))
	if err != nil {
		t.Fatalf("LoadScript failed: %v", err)
	}

	db, err := store.Open(filepath.Join(t.TempDir(), "history.db"))
	if err != nil {
		t.Fatalf("store.Open failed: %v", err)
	}
	defer db.Close()

	clock := replay.NewVirtualScheduler()
	rec, err := store.NewRecorder(db, store.Session{
		Device:         "script",
		Threshold:      script.Config.Threshold,
		Sticky:         script.Config.Sticky,
		ReleaseAfterMs: script.Config.ReleaseAfterMs,
	}, store.WithClock(func() time.Time { return clock.Epoch().Add(clock.Now()) }))
	if err != nil {
		t.Fatalf("NewRecorder failed: %v", err)
	}

	proc, err := constrain.New(script.Config.ProcessorConfig(),
		constrain.WithScheduler(clock), constrain.WithObserver(rec))
	if err != nil {
		t.Fatalf("constrain.New failed: %v", err)
	}

	pl := pipeline.New(&scriptSource{steps: script.Steps, clock: clock}, proc, &collectSink{}, pipeline.Config{})
	if err := pl.Run(context.Background()); !errors.Is(err, io.EOF) {
		t.Fatalf("expected EOF, got %v", err)
	}
	// Let any pending release fire before shutting down.
	clock.Advance(time.Hour)
	proc.Close()
	if err := rec.Close(); err != nil {
		t.Fatalf("recorder Close failed: %v", err)
	}

	want, err := replay.Run(script)
	if err != nil {
		t.Fatalf("replay.Run failed: %v", err)
	}
	var lockChanges, motion int
	prev := "none"
	for _, r := range want {
		if r.Fired {
			prev = "none"
		}
		if r.Lock != "none" && r.Lock != prev {
			lockChanges++
		}
		prev = r.Lock
		if r.Axis == "x" || r.Axis == "y" {
			motion++
		}
	}

	locks, err := db.GetLocks(rec.SessionID())
	if err != nil {
		t.Fatalf("GetLocks failed: %v", err)
	}
	if len(locks) != lockChanges {
		t.Fatalf("expected %d locks, got %d: %+v", lockChanges, len(locks), locks)
	}
	for _, l := range locks {
		if l.Held() <= 0 {
			t.Errorf("lock %s held for %v", l.Axis, l.Held())
		}
	}

	sum, err := db.Summarize(rec.SessionID())
	if err != nil {
		t.Fatalf("Summarize failed: %v", err)
	}
	// Wheel events bypass the processor and are not observed.
	if sum.Session.Events != int64(motion) {
		t.Errorf("expected %d motion events, got %d", motion, sum.Session.Events)
	}
}

// =============================================================================
// INTEGRATION: Hot reload
// =============================================================================

// TestConfigReloadSwapsProcessor edits the config file under a running
// pipeline and checks the new threshold takes effect.
func TestConfigReloadSwapsProcessor(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")

	cfg := config.DefaultConfig()
	cfg.Constrain.Threshold = 5
	cfg.Constrain.Sticky = false
	if err := config.SaveConfig(cfg, path); err != nil {
		t.Fatalf("SaveConfig failed: %v", err)
	}

	loader := config.NewLoader(path)
	loaded, err := loader.Load()
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	defer loader.Close()

	proc, err := constrain.New(loaded.Constrain.ProcessorConfig())
	if err != nil {
		t.Fatalf("constrain.New failed: %v", err)
	}

	src := make(chan constrain.Event)
	sink := &collectSink{}
	pl := pipeline.New(chanSource(src), proc, sink, pipeline.Config{})

	loader.OnChange(func(_, next *config.Config) {
		p, err := constrain.New(next.Constrain.ProcessorConfig())
		if err != nil {
			t.Errorf("rebuild processor: %v", err)
			return
		}
		pl.SetFilter(p)
	})
	if err := loader.Watch(); err != nil {
		t.Skipf("file watching unavailable: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- pl.Run(ctx) }()

	src <- constrain.Motion(constrain.AxisX, 6)

	cfg.Constrain.Threshold = 50
	if err := config.SaveConfig(cfg, path); err != nil {
		t.Fatalf("SaveConfig failed: %v", err)
	}

	deadline := time.Now().Add(5 * time.Second)
	for pl.Filter().(*constrain.Processor).Config().Threshold != 50 {
		if time.Now().After(deadline) {
			t.Fatal("processor was not swapped after config change")
		}
		time.Sleep(10 * time.Millisecond)
	}

	// The fresh processor starts with empty accumulators.
	src <- constrain.Motion(constrain.AxisX, 6)

	cancel()
	if err := <-done; err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	got := sink.Values()
	if len(got) != 2 || got[0] != 6 || got[1] != 0 {
		t.Errorf("expected [6 0], got %v", got)
	}
	if pl.Stats().Swaps == 0 {
		t.Error("expected a recorded filter swap")
	}
	if _, err := os.Stat(path); err != nil {
		t.Errorf("config file missing: %v", err)
	}
}

type chanSource chan constrain.Event

func (c chanSource) ReadEvent(ctx context.Context) (constrain.Event, error) {
	select {
	case <-ctx.Done():
		return constrain.Event{}, ctx.Err()
	case ev := <-c:
		return ev, nil
	}
}
