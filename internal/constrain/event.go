// Package constrain locks relative pointer motion to a single dominant axis.
//
// A Processor sits in an input pipeline between a pointing device (typically a
// trackball) and its consumers. Every REL_X / REL_Y event updates per-axis
// accumulators; once one axis has clearly dominated, motion on the other axis
// is forced to zero so downstream consumers see movement along one axis only.
//
// Two policies are available:
//   - Sticky: the first axis to dominate is latched until the device has been
//     idle for Config.ReleaseAfter.
//   - Non-sticky: dominance is re-evaluated on every event, with the dominant
//     accumulator decayed back to the threshold so direction changes stay quick.
package constrain

import "time"

// Event types and codes, matching linux/input-event-codes.h.
const (
	EvSyn uint16 = 0x00
	EvKey uint16 = 0x01
	EvRel uint16 = 0x02
	EvAbs uint16 = 0x03

	RelX      uint16 = 0x00
	RelY      uint16 = 0x01
	RelHWheel uint16 = 0x06
	RelWheel  uint16 = 0x08

	SynReport uint16 = 0x00
)

// Event is a single input event as delivered by the device layer.
type Event struct {
	Time  time.Time `json:"time"`
	Type  uint16    `json:"type"`
	Code  uint16    `json:"code"`
	Value int32     `json:"value"`
}

// Axis identifies one of the two tracked motion axes.
type Axis int

const (
	AxisNone Axis = iota // undetermined
	AxisX
	AxisY
)

// String returns the axis name.
func (a Axis) String() string {
	switch a {
	case AxisX:
		return "x"
	case AxisY:
		return "y"
	default:
		return "none"
	}
}

// axisOf reports the tracked axis an event belongs to.
func axisOf(ev *Event) (Axis, bool) {
	if ev.Type != EvRel {
		return AxisNone, false
	}
	switch ev.Code {
	case RelX:
		return AxisX, true
	case RelY:
		return AxisY, true
	default:
		return AxisNone, false
	}
}

// Motion builds a relative motion event for the given axis.
func Motion(axis Axis, value int32) Event {
	code := RelX
	if axis == AxisY {
		code = RelY
	}
	return Event{Time: time.Now(), Type: EvRel, Code: code, Value: value}
}
