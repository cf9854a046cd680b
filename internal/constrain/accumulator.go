package constrain

import "math"

// MaxAccum bounds accumulator magnitude so that the sum of two accumulated
// values always fits in an int32.
const MaxAccum int32 = math.MaxInt32 / 2

// Accumulators tracks net displacement per axis since the last reset.
// AbsX and AbsY always equal the saturating absolute value of X and Y.
type Accumulators struct {
	X    int32 `json:"x"`
	Y    int32 `json:"y"`
	AbsX int32 `json:"abs_x"`
	AbsY int32 `json:"abs_y"`
}

// Update adds delta to the accumulator for axis, saturating at ±MaxAccum.
// Any int32 delta is accepted, including math.MinInt32.
func (a *Accumulators) Update(axis Axis, delta int32) {
	switch axis {
	case AxisX:
		a.X = saturatingAdd(a.X, delta)
		a.AbsX = saturatingAbs(a.X)
	case AxisY:
		a.Y = saturatingAdd(a.Y, delta)
		a.AbsY = saturatingAbs(a.Y)
	}
}

// Reset zeroes both axes.
func (a *Accumulators) Reset() {
	*a = Accumulators{}
}

// Decay zeroes the axis opposite to dominant and clamps the dominant axis
// magnitude down to threshold, keeping its sign.
func (a *Accumulators) Decay(dominant Axis, threshold int32) {
	switch dominant {
	case AxisX:
		a.Y, a.AbsY = 0, 0
		if a.AbsX > threshold {
			a.X = withSign(threshold, a.X)
			a.AbsX = threshold
		}
	case AxisY:
		a.X, a.AbsX = 0, 0
		if a.AbsY > threshold {
			a.Y = withSign(threshold, a.Y)
			a.AbsY = threshold
		}
	}
}

// saturatingAdd sums in 64 bits and clamps the result to ±MaxAccum.
func saturatingAdd(acc, delta int32) int32 {
	sum := int64(acc) + int64(delta)
	if sum > int64(MaxAccum) {
		return MaxAccum
	}
	if sum < -int64(MaxAccum) {
		return -MaxAccum
	}
	return int32(sum)
}

// saturatingAbs maps math.MinInt32 to math.MaxInt32 instead of overflowing.
func saturatingAbs(v int32) int32 {
	if v == math.MinInt32 {
		return math.MaxInt32
	}
	if v < 0 {
		return -v
	}
	return v
}

func withSign(mag, sign int32) int32 {
	if sign < 0 {
		return -mag
	}
	return mag
}
