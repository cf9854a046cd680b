package main

import (
	"fmt"
	"time"

	"github.com/gdamore/tcell/v2"

	"axisconstrain/internal/constrain"
)

// unitsPerCell scales terminal cells to pointer counts so the default
// threshold needs a couple of cells of travel.
const unitsPerCell = 3

type point struct{ x, y int }

// demo holds the state shown on screen: a raw cursor that follows the mouse
// and a constrained cursor that only moves by what the processor lets
// through.
type demo struct {
	proc     *constrain.Processor
	cfg      constrain.Config
	last     point
	haveLast bool
	raw      point
	out      point
	// sub-cell remainder of constrained motion
	fracX, fracY int32
	width        int
	height       int
	trail        []point
	events       int
	suppressed   int
}

func newDemo(cfg constrain.Config, width, height int) (*demo, error) {
	p, err := constrain.New(cfg)
	if err != nil {
		return nil, err
	}
	d := &demo{proc: p, cfg: cfg, width: width, height: height}
	d.center()
	return d, nil
}

func (d *demo) center() {
	d.raw = point{d.width / 2, d.height / 2}
	d.out = d.raw
	d.trail = d.trail[:0]
	d.fracX, d.fracY = 0, 0
}

// reconfigure swaps in a processor with new settings.
func (d *demo) reconfigure(cfg constrain.Config) error {
	p, err := constrain.New(cfg)
	if err != nil {
		return err
	}
	d.proc.Close()
	d.proc = p
	d.cfg = cfg
	return nil
}

func (d *demo) close() {
	d.proc.Close()
}

// mouseAt feeds the movement since the previous mouse position through the
// processor.
func (d *demo) mouseAt(x, y int) {
	if !d.haveLast {
		d.last = point{x, y}
		d.haveLast = true
		return
	}
	dx, dy := x-d.last.x, y-d.last.y
	d.last = point{x, y}
	if dx == 0 && dy == 0 {
		return
	}
	d.move(dx, dy)
}

func (d *demo) move(dx, dy int) {
	d.raw = d.clamp(point{d.raw.x + dx, d.raw.y + dy})

	var outX, outY int32
	if dx != 0 {
		outX = d.feed(constrain.AxisX, int32(dx*unitsPerCell))
	}
	if dy != 0 {
		outY = d.feed(constrain.AxisY, int32(dy*unitsPerCell))
	}

	d.fracX += outX
	d.fracY += outY
	stepX, stepY := int(d.fracX/unitsPerCell), int(d.fracY/unitsPerCell)
	d.fracX -= int32(stepX * unitsPerCell)
	d.fracY -= int32(stepY * unitsPerCell)

	if stepX != 0 || stepY != 0 {
		d.trail = append(d.trail, d.out)
		if len(d.trail) > 40 {
			d.trail = d.trail[len(d.trail)-40:]
		}
		d.out = d.clamp(point{d.out.x + stepX, d.out.y + stepY})
	}
}

func (d *demo) feed(axis constrain.Axis, v int32) int32 {
	ev := constrain.Motion(axis, v)
	d.proc.Handle(&ev)
	d.events++
	if ev.Value == 0 {
		d.suppressed++
	}
	return ev.Value
}

func (d *demo) clamp(p point) point {
	p.x = max(0, min(p.x, d.width-1))
	p.y = max(2, min(p.y, d.height-2))
	return p
}

func (d *demo) resize(w, h int) {
	d.width, d.height = w, h
	d.raw = d.clamp(d.raw)
	d.out = d.clamp(d.out)
}

func (d *demo) status() string {
	st := d.proc.Snapshot()
	mode := "non-sticky"
	if d.cfg.Sticky {
		mode = fmt.Sprintf("sticky %v", d.cfg.ReleaseAfter.Round(time.Millisecond))
	}
	return fmt.Sprintf(" %s  threshold %d  lock %-4s  acc x=%d y=%d  events %d  suppressed %d ",
		mode, d.cfg.Threshold, st.Lock, st.Accum.X, st.Accum.Y, d.events, d.suppressed)
}

func (d *demo) draw(s tcell.Screen) {
	s.Clear()

	title := tcell.StyleDefault.Foreground(tcell.ColorWhite).Background(tcell.ColorNavy).Bold(true)
	drawText(s, 0, 0, d.width, title, " axisdemo  move the mouse  s: sticky  +/-: threshold  r: release  c: center  q: quit")

	for i, p := range d.trail {
		shade := int32(60 + i*4)
		s.SetContent(p.x, p.y, '·', nil, tcell.StyleDefault.Foreground(tcell.NewRGBColor(shade, shade, shade+40)))
	}

	s.SetContent(d.raw.x, d.raw.y, '+', nil, tcell.StyleDefault.Foreground(tcell.ColorGray))

	cursor := tcell.StyleDefault.Foreground(tcell.ColorGreen).Bold(true)
	switch d.proc.Snapshot().Lock {
	case constrain.AxisX:
		cursor = tcell.StyleDefault.Foreground(tcell.ColorYellow).Bold(true)
	case constrain.AxisY:
		cursor = tcell.StyleDefault.Foreground(tcell.ColorAqua).Bold(true)
	}
	s.SetContent(d.out.x, d.out.y, '█', nil, cursor)

	bar := tcell.StyleDefault.Foreground(tcell.ColorBlack).Background(tcell.ColorSilver)
	drawText(s, 0, d.height-1, d.width, bar, d.status())

	s.Show()
}

func drawText(s tcell.Screen, x, y, width int, style tcell.Style, text string) {
	col := x
	for _, r := range text {
		if col >= width {
			return
		}
		s.SetContent(col, y, r, nil, style)
		col++
	}
	for ; col < width; col++ {
		s.SetContent(col, y, ' ', nil, style)
	}
}
