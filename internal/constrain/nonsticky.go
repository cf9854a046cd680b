package constrain

// handleNonSticky re-evaluates dominance on every event.
// Must be called with p.mu held.
func (p *Processor) handleNonSticky(axis Axis, ev *Event) outcome {
	out := outcome{axis: axis, value: ev.Value}

	p.acc.Update(axis, ev.Value)

	dom := Dominant(p.acc, p.cfg.Threshold)
	switch {
	case dom == AxisNone:
		p.suppress(axis, ev)
		out.suppressed = true
	case dom == axis:
		// Keep the dominant axis near threshold so a reversal does not have
		// to unwind a long run of motion first.
		p.acc.Decay(dom, p.cfg.Threshold)
	default:
		// The suppressed axis keeps its accumulation so it can overtake.
		p.suppress(axis, ev)
		out.suppressed = true
	}
	// lock is informational here: it mirrors the latest arbitration and
	// never feeds back into the decision.
	if dom != p.lock {
		if dom == AxisNone {
			out.unlocked = true
		} else {
			out.locked = dom
		}
	}
	p.lock = dom
	return out
}
