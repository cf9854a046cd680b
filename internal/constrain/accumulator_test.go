package constrain

import (
	"math"
	"math/rand"
	"testing"
)

func checkAccumInvariant(t *testing.T, a Accumulators) {
	t.Helper()
	if a.AbsX > MaxAccum || a.AbsY > MaxAccum {
		t.Errorf("magnitude above MaxAccum: %+v", a)
	}
	if a.AbsX != saturatingAbs(a.X) || a.AbsY != saturatingAbs(a.Y) {
		t.Errorf("abs out of sync with signed value: %+v", a)
	}
}

func TestSaturatingAbs(t *testing.T) {
	tests := []struct {
		in   int32
		want int32
	}{
		{0, 0},
		{7, 7},
		{-7, 7},
		{math.MaxInt32, math.MaxInt32},
		{math.MinInt32, math.MaxInt32},
		{math.MinInt32 + 1, math.MaxInt32},
	}
	for _, tt := range tests {
		if got := saturatingAbs(tt.in); got != tt.want {
			t.Errorf("saturatingAbs(%d) = %d, want %d", tt.in, got, tt.want)
		}
	}
}

func TestAccumulators_UpdateSaturates(t *testing.T) {
	var a Accumulators

	a.Update(AxisX, math.MinInt32)
	if a.X != -MaxAccum || a.AbsX != MaxAccum {
		t.Errorf("expected x clamped to -MaxAccum, got %+v", a)
	}

	a.Update(AxisX, math.MinInt32)
	if a.X != -MaxAccum {
		t.Errorf("repeated minimum delta should stay clamped, got %d", a.X)
	}

	a.Update(AxisY, math.MaxInt32)
	a.Update(AxisY, math.MaxInt32)
	if a.Y != MaxAccum || a.AbsY != MaxAccum {
		t.Errorf("expected y clamped to MaxAccum, got %+v", a)
	}

	// Swinging from one bound past the other needs no intermediate overflow.
	a.Update(AxisY, math.MinInt32)
	if a.Y != -MaxAccum {
		t.Errorf("expected y at -MaxAccum, got %d", a.Y)
	}
	a.Update(AxisY, 100)
	if a.Y != -MaxAccum+100 {
		t.Errorf("expected y at -MaxAccum+100, got %d", a.Y)
	}
	checkAccumInvariant(t, a)
}

func TestAccumulators_InvariantUnderRandomDeltas(t *testing.T) {
	rng := rand.New(rand.NewSource(42))
	extremes := []int32{math.MinInt32, math.MaxInt32, -MaxAccum, MaxAccum, 0, -1, 1}

	var a Accumulators
	for i := 0; i < 10000; i++ {
		axis := AxisX
		if rng.Intn(2) == 1 {
			axis = AxisY
		}
		var delta int32
		if rng.Intn(10) == 0 {
			delta = extremes[rng.Intn(len(extremes))]
		} else {
			delta = int32(rng.Uint32())
		}
		a.Update(axis, delta)
		checkAccumInvariant(t, a)
		if t.Failed() {
			t.Fatalf("invariant broken after %d updates (delta %d)", i, delta)
		}
	}
}

func TestAccumulators_Decay(t *testing.T) {
	tests := []struct {
		name      string
		start     Accumulators
		dominant  Axis
		threshold int32
		want      Accumulators
	}{
		{
			name:      "x above threshold clamps and clears y",
			start:     Accumulators{X: 50, AbsX: 50, Y: -3, AbsY: 3},
			dominant:  AxisX,
			threshold: 5,
			want:      Accumulators{X: 5, AbsX: 5},
		},
		{
			name:      "negative x keeps sign",
			start:     Accumulators{X: -40, AbsX: 40, Y: 2, AbsY: 2},
			dominant:  AxisX,
			threshold: 10,
			want:      Accumulators{X: -10, AbsX: 10},
		},
		{
			name:      "y at threshold unchanged",
			start:     Accumulators{X: 4, AbsX: 4, Y: 10, AbsY: 10},
			dominant:  AxisY,
			threshold: 10,
			want:      Accumulators{Y: 10, AbsY: 10},
		},
		{
			name:      "none is a no-op",
			start:     Accumulators{X: 4, AbsX: 4, Y: 9, AbsY: 9},
			dominant:  AxisNone,
			threshold: 1,
			want:      Accumulators{X: 4, AbsX: 4, Y: 9, AbsY: 9},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			a := tt.start
			a.Decay(tt.dominant, tt.threshold)
			if a != tt.want {
				t.Errorf("Decay(%v, %d) = %+v, want %+v", tt.dominant, tt.threshold, a, tt.want)
			}
		})
	}
}

func TestAccumulators_Reset(t *testing.T) {
	a := Accumulators{X: 1, Y: -2, AbsX: 1, AbsY: 2}
	a.Reset()
	if a != (Accumulators{}) {
		t.Errorf("expected zero accumulators after Reset, got %+v", a)
	}
}
