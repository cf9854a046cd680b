package constrain

// handleSticky latches the first dominant axis until the release timer fires.
// Must be called with p.mu held.
func (p *Processor) handleSticky(axis Axis, ev *Event) outcome {
	out := outcome{axis: axis, value: ev.Value}

	p.acc.Update(axis, ev.Value)

	p.epoch++
	epoch := p.epoch
	p.sched.Schedule(p.cfg.ReleaseAfter, func() { p.expire(epoch) })

	if p.lock == AxisNone {
		if dom := Dominant(p.acc, p.cfg.Threshold); dom != AxisNone {
			p.lock = dom
			out.locked = dom
		}
	}

	// Nothing passes until an axis is committed, and only that axis after.
	if p.lock != axis {
		p.suppress(axis, ev)
		out.suppressed = true
	}
	return out
}
