package replay

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const releaseScript = `
config:
  threshold: 5
  sticky: true
  release_after_ms: 100
steps:
  - {at_ms: 0, axis: x, value: 6}
  - {at_ms: 50, axis: y, value: 6}
  - {at_ms: 140, axis: y, value: 3}
  - {at_ms: 300, axis: y, value: 6}
  - {at_ms: 310, axis: x, value: 9}
`

func outs(results []Result) []int32 {
	v := make([]int32, len(results))
	for i, r := range results {
		v[i] = r.Out
	}
	return v
}

func locks(results []Result) []string {
	v := make([]string, len(results))
	for i, r := range results {
		v[i] = r.Lock
	}
	return v
}

func TestRunStickyRelease(t *testing.T) {
	s, err := ParseScript([]byte(releaseScript), "yaml")
	require.NoError(t, err)

	results, err := Run(s)
	require.NoError(t, err)
	require.Len(t, results, 5)

	// Each Y event rearms the release, so X stays locked through 140ms.
	assert.Equal(t, []int32{6, 0, 0, 6, 0}, outs(results))
	assert.Equal(t, []string{"x", "x", "x", "y", "y"}, locks(results))
	assert.False(t, results[2].Fired)
	assert.True(t, results[3].Fired, "release due at 240ms fires before the 300ms step")
}

func TestRunStickyLockIgnoresLaterAccumulation(t *testing.T) {
	s, err := ParseScript([]byte(`{
		"config": {"threshold": 10, "sticky": true, "release_after_ms": 300},
		"steps": [
			{"at_ms": 0, "axis": "x", "value": 6},
			{"at_ms": 5, "axis": "x", "value": 6},
			{"at_ms": 10, "axis": "y", "value": 20}
		]
	}`), "json")
	require.NoError(t, err)

	results, err := Run(s)
	require.NoError(t, err)
	assert.Equal(t, []int32{0, 6, 0}, outs(results))
	assert.Equal(t, []string{"none", "x", "x"}, locks(results))
}

func TestRunNonStickySwitchesQuickly(t *testing.T) {
	s, err := ParseScript([]byte(`
config: {threshold: 5, sticky: false}
steps:
  - {at_ms: 0, axis: x, value: 50}
  - {at_ms: 1, axis: x, value: 50}
  - {at_ms: 2, axis: x, value: 50}
  - {at_ms: 3, axis: y, value: 6}
`), "yaml")
	require.NoError(t, err)

	results, err := Run(s)
	require.NoError(t, err)
	assert.Equal(t, []int32{50, 50, 50, 6}, outs(results))
	assert.Equal(t, []string{"x", "x", "x", "y"}, locks(results))
}

func TestRunWheelPassesThrough(t *testing.T) {
	s, err := ParseScript([]byte(`
config: {threshold: 5, sticky: true, release_after_ms: 100}
steps:
  - {at_ms: 0, axis: x, value: 6}
  - {at_ms: 10, axis: wheel, value: -1}
  - {at_ms: 20, axis: hwheel, value: 1}
`), "yaml")
	require.NoError(t, err)

	results, err := Run(s)
	require.NoError(t, err)
	assert.Equal(t, []int32{6, -1, 1}, outs(results))
}

func TestParseScriptDefaults(t *testing.T) {
	s, err := ParseScript([]byte("steps: []\n"), "yaml")
	require.NoError(t, err)
	assert.Equal(t, 5, s.Config.Threshold)
	assert.True(t, s.Config.Sticky)
}

func TestParseScriptErrors(t *testing.T) {
	tests := []struct {
		name   string
		data   string
		format string
	}{
		{"unknown axis", "steps: [{at_ms: 0, axis: z, value: 1}]", "yaml"},
		{"out of order", "steps: [{at_ms: 10, axis: x, value: 1}, {at_ms: 5, axis: x, value: 1}]", "yaml"},
		{"bad yaml", "steps: [", "yaml"},
		{"bad format", "steps: []", "toml"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseScript([]byte(tt.data), tt.format)
			assert.ErrorIs(t, err, ErrInvalidScript)
		})
	}
}

func TestRunRejectsInvalidConfig(t *testing.T) {
	s, err := ParseScript([]byte("config: {threshold: 0}\nsteps: []\n"), "yaml")
	require.NoError(t, err)
	_, err = Run(s)
	assert.Error(t, err)
}

func TestLoadScript(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "release.yaml")
	require.NoError(t, os.WriteFile(path, []byte(releaseScript), 0o600))

	s, err := LoadScript(path)
	require.NoError(t, err)
	assert.Len(t, s.Steps, 5)

	_, err = LoadScript(filepath.Join(dir, "missing.json"))
	assert.Error(t, err)
}

func TestWriteText(t *testing.T) {
	results := []Result{
		{AtMs: 0, Axis: "x", In: 6, Out: 6, Lock: "x"},
		{AtMs: 150, Axis: "y", In: 6, Out: 6, Lock: "y", Fired: true},
	}
	var buf bytes.Buffer
	require.NoError(t, WriteText(&buf, results))

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 3)
	assert.Contains(t, lines[0], "lock")
	assert.Contains(t, lines[2], "y *")
}

func TestWriteJSON(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteJSON(&buf, []Result{{AtMs: 1, Axis: "x", In: 2, Out: 0, Lock: "none"}}))

	var decoded []map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &decoded))
	require.Len(t, decoded, 1)
	assert.EqualValues(t, 2, decoded[0]["in"])
	assert.NotContains(t, decoded[0], "released_before")
}

func TestVirtualScheduler(t *testing.T) {
	s := NewVirtualScheduler()
	fired := 0
	s.Schedule(100*time.Millisecond, func() { fired++ })

	assert.Zero(t, s.AdvanceTo(99*time.Millisecond))
	assert.Equal(t, 1, s.AdvanceTo(100*time.Millisecond))
	assert.Equal(t, 1, fired)

	_, pending := s.Pending()
	assert.False(t, pending)

	// Reschedule replaces.
	s.Schedule(10*time.Millisecond, func() { fired += 10 })
	s.Schedule(20*time.Millisecond, func() { fired += 100 })
	s.Advance(time.Second)
	assert.Equal(t, 101, fired)

	// Cancel drops.
	s.Schedule(time.Millisecond, func() { fired = -1 })
	s.Cancel()
	s.Advance(time.Second)
	assert.Equal(t, 101, fired)

	// The clock never runs backwards.
	now := s.Now()
	s.AdvanceTo(0)
	assert.Equal(t, now, s.Now())
}

func TestVirtualSchedulerCallbackReschedules(t *testing.T) {
	s := NewVirtualScheduler()
	var at []time.Duration
	var tick func()
	tick = func() {
		at = append(at, s.Now())
		if len(at) < 3 {
			s.Schedule(10*time.Millisecond, tick)
		}
	}
	s.Schedule(10*time.Millisecond, tick)

	assert.Equal(t, 3, s.AdvanceTo(time.Second))
	assert.Equal(t, []time.Duration{10 * time.Millisecond, 20 * time.Millisecond, 30 * time.Millisecond}, at)
}
