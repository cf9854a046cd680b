package constrain

import "testing"

func TestDominant(t *testing.T) {
	tests := []struct {
		name      string
		absX      int32
		absY      int32
		threshold int32
		want      Axis
	}{
		{"both below threshold", 4, 3, 5, AxisNone},
		{"x reaches threshold", 5, 0, 5, AxisX},
		{"y reaches threshold", 2, 7, 5, AxisY},
		{"x above but y larger and below", 6, 4, 5, AxisX},
		{"y larger than x", 6, 9, 5, AxisY},
		{"tie at threshold prefers x", 5, 5, 5, AxisX},
		{"tie above threshold prefers x", 100, 100, 5, AxisX},
		{"tie below threshold is none", 4, 4, 5, AxisNone},
		{"y below threshold never wins", 0, 4, 5, AxisNone},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			acc := Accumulators{X: tt.absX, AbsX: tt.absX, Y: -tt.absY, AbsY: tt.absY}
			if got := Dominant(acc, tt.threshold); got != tt.want {
				t.Errorf("Dominant(x=%d, y=%d, t=%d) = %v, want %v", tt.absX, tt.absY, tt.threshold, got, tt.want)
			}
		})
	}
}

func TestDominantIgnoresSign(t *testing.T) {
	acc := Accumulators{X: -8, AbsX: 8, Y: 3, AbsY: 3}
	if got := Dominant(acc, 5); got != AxisX {
		t.Errorf("expected x for negative displacement, got %v", got)
	}
}
