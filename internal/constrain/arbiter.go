package constrain

// Dominant returns the axis carrying the intended motion, or AxisNone when
// neither axis has reached threshold. Exact ties at or above threshold
// resolve to AxisX.
func Dominant(acc Accumulators, threshold int32) Axis {
	switch {
	case acc.AbsX >= threshold && acc.AbsX >= acc.AbsY:
		return AxisX
	case acc.AbsY >= threshold && acc.AbsY > acc.AbsX:
		return AxisY
	default:
		return AxisNone
	}
}
