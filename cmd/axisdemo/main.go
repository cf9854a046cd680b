// Command axisdemo shows axis constraining on terminal mouse motion.
//
// Mouse movement in the terminal is converted to relative X and Y motion and
// run through the same processor the daemon uses. The grey cross follows the
// mouse; the solid block only moves along the locked axis.
//
// Usage:
//
//	axisdemo [-threshold N] [-sticky] [-release-after 300ms]
package main

import (
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/gdamore/tcell/v2"

	"axisconstrain/internal/config"
	"axisconstrain/internal/constrain"
)

func main() {
	defaults := config.DefaultConfig().Constrain.ProcessorConfig()

	threshold := flag.Int("threshold", int(defaults.Threshold), "dominance threshold in pointer counts")
	sticky := flag.Bool("sticky", defaults.Sticky, "latch the first dominant axis")
	releaseAfter := flag.Duration("release-after", defaults.ReleaseAfter, "idle period before a sticky lock releases")
	flag.Parse()

	cfg := constrain.Config{
		Threshold:    int32(*threshold),
		Sticky:       *sticky,
		ReleaseAfter: *releaseAfter,
	}
	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(2)
	}

	if err := run(cfg); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run(cfg constrain.Config) error {
	screen, err := tcell.NewScreen()
	if err != nil {
		return fmt.Errorf("create screen: %w", err)
	}
	if err := screen.Init(); err != nil {
		return fmt.Errorf("init screen: %w", err)
	}
	defer screen.Fini()

	screen.EnableMouse(tcell.MouseMotionEvents)
	screen.HideCursor()

	w, h := screen.Size()
	d, err := newDemo(cfg, w, h)
	if err != nil {
		return err
	}
	defer d.close()

	eventChan := make(chan tcell.Event, 100)
	go func() {
		for {
			ev := screen.PollEvent()
			if ev == nil {
				return
			}
			eventChan <- ev
		}
	}()

	ticker := time.NewTicker(16 * time.Millisecond)
	defer ticker.Stop()

	for {
		select {
		case ev := <-eventChan:
			if !handleEvent(d, screen, ev) {
				return nil
			}
		case <-ticker.C:
			d.draw(screen)
		}
	}
}

// handleEvent applies one terminal event. It returns false when the demo
// should exit.
func handleEvent(d *demo, screen tcell.Screen, ev tcell.Event) bool {
	switch ev := ev.(type) {
	case *tcell.EventKey:
		return handleKey(d, ev)
	case *tcell.EventResize:
		d.resize(ev.Size())
		screen.Sync()
	case *tcell.EventMouse:
		d.mouseAt(ev.Position())
	}
	return true
}

func handleKey(d *demo, ev *tcell.EventKey) bool {
	switch ev.Key() {
	case tcell.KeyEscape, tcell.KeyCtrlC:
		return false
	case tcell.KeyLeft:
		d.move(-1, 0)
	case tcell.KeyRight:
		d.move(1, 0)
	case tcell.KeyUp:
		d.move(0, -1)
	case tcell.KeyDown:
		d.move(0, 1)
	case tcell.KeyRune:
		cfg := d.cfg
		switch ev.Rune() {
		case 'q':
			return false
		case 's':
			cfg.Sticky = !cfg.Sticky
			if cfg.ReleaseAfter <= 0 {
				cfg.ReleaseAfter = 300 * time.Millisecond
			}
		case '+', '=':
			cfg.Threshold++
		case '-':
			if cfg.Threshold > 1 {
				cfg.Threshold--
			}
		case 'r':
			d.proc.Release()
			return true
		case 'c':
			d.center()
			return true
		default:
			return true
		}
		_ = d.reconfigure(cfg)
	}
	return true
}
