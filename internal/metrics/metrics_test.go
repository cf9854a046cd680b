package metrics

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"axisconstrain/internal/constrain"
)

func TestRegistryReturnsSameMetric(t *testing.T) {
	r := NewRegistry("test", "sub")
	a := r.Counter("hits_total", "hits", nil)
	b := r.Counter("hits_total", "hits", nil)
	assert.Same(t, a, b)
	assert.Equal(t, "test_sub_hits_total", a.Name())

	x := r.Counter("moves_total", "moves", Labels{"axis": "x"})
	y := r.Counter("moves_total", "moves", Labels{"axis": "y"})
	assert.NotSame(t, x, y)
}

func TestHistogramBuckets(t *testing.T) {
	h := NewHistogram("lat", "latency", nil, []float64{1, 2, 5})
	for _, v := range []float64{0.5, 1, 1.5, 4, 10} {
		h.Observe(v)
	}

	cumulative, sum, count := h.snapshot()
	assert.Equal(t, []uint64{2, 3, 4, 5}, cumulative)
	assert.InDelta(t, 17.0, sum, 1e-9)
	assert.Equal(t, uint64(5), count)
}

func TestHistogramQuantile(t *testing.T) {
	h := NewHistogram("lat", "latency", nil, []float64{1, 2, 4})
	assert.Zero(t, h.Quantile(0.5))

	for i := 0; i < 10; i++ {
		h.Observe(1.5)
	}
	q := h.Quantile(0.5)
	assert.True(t, q > 1 && q <= 2, "median %v outside (1,2]", q)

	h.Observe(100)
	assert.Equal(t, 4.0, h.Quantile(1))
}

func TestWritePrometheus(t *testing.T) {
	r := NewRegistry("axisconstrain", "")
	r.Counter("events_total", "events", nil).Add(3)
	r.Gauge("locked_axis", "axis", nil).Set(2)
	h := r.Histogram("latency_seconds", "lat", Labels{"stage": "filter"}, []float64{0.001})
	h.Observe(0.0005)

	var buf bytes.Buffer
	require.NoError(t, r.WritePrometheus(&buf))
	out := buf.String()

	assert.Contains(t, out, "# TYPE axisconstrain_events_total counter\n")
	assert.Contains(t, out, "axisconstrain_events_total 3\n")
	assert.Contains(t, out, "axisconstrain_locked_axis 2\n")
	assert.Contains(t, out, `axisconstrain_latency_seconds_bucket{stage="filter",le="0.001"} 1`)
	assert.Contains(t, out, `axisconstrain_latency_seconds_bucket{stage="filter",le="+Inf"} 1`)
	assert.Contains(t, out, `axisconstrain_latency_seconds_count{stage="filter"} 1`)
	assert.Equal(t, 1, strings.Count(out, "# HELP axisconstrain_events_total"))
}

func TestHTTPHandler(t *testing.T) {
	r := NewRegistry("axisconstrain", "")
	r.Counter("events_total", "events", nil).Inc()
	srv := httptest.NewServer(r.HTTPHandler())
	defer srv.Close()

	resp, err := http.Get(srv.URL)
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Contains(t, resp.Header.Get("Content-Type"), "text/plain")

	req, err := http.NewRequest(http.MethodGet, srv.URL, nil)
	require.NoError(t, err)
	req.Header.Set("Accept", "application/json")
	resp2, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp2.Body.Close()

	var snap map[string]any
	require.NoError(t, json.NewDecoder(resp2.Body).Decode(&snap))
	assert.EqualValues(t, 1, snap["axisconstrain_events_total"])
}

func TestReset(t *testing.T) {
	r := NewRegistry("", "")
	c := r.Counter("c", "c", nil)
	h := r.Histogram("h", "h", nil, nil)
	c.Add(5)
	h.Observe(0.001)

	r.Reset()
	assert.Zero(t, c.Value())
	assert.Zero(t, h.Count())
}

func TestConstrainMetricsObserveProcessor(t *testing.T) {
	m := NewConstrainMetrics(NewRegistry("axisconstrain", ""))

	p, err := constrain.New(constrain.Config{Threshold: 5, Sticky: false}, constrain.WithObserver(m))
	require.NoError(t, err)
	defer p.Close()

	for _, v := range []int32{3, 3, 3} {
		ev := constrain.Motion(constrain.AxisX, v)
		require.NoError(t, p.Handle(&ev))
	}
	ev := constrain.Motion(constrain.AxisY, 2)
	require.NoError(t, p.Handle(&ev))

	assert.Equal(t, uint64(4), m.EventsTotal.Value())
	// First X event is under threshold, the Y event loses to the X lock.
	assert.Equal(t, uint64(2), m.SuppressedTotal.Value())
	assert.Equal(t, uint64(1), m.LocksX.Value())
	assert.Zero(t, m.LocksY.Value())
	assert.Equal(t, int64(constrain.AxisX), m.LockedAxis.Value())

	m.ObserveRelease()
	assert.Equal(t, uint64(1), m.ReleasesTotal.Value())
	assert.Equal(t, int64(constrain.AxisNone), m.LockedAxis.Value())

	m.ObserveLatency(3 * time.Microsecond)
	assert.Equal(t, uint64(1), m.PipelineLatency.Count())
}

func TestConstrainMetricsNonStickyUnlock(t *testing.T) {
	m := NewConstrainMetrics(NewRegistry("axisconstrain", ""))

	p, err := constrain.New(constrain.Config{Threshold: 5}, constrain.WithObserver(m))
	require.NoError(t, err)
	defer p.Close()

	send := func(v int32) {
		ev := constrain.Motion(constrain.AxisX, v)
		require.NoError(t, p.Handle(&ev))
	}

	send(6)
	assert.Equal(t, int64(constrain.AxisX), m.LockedAxis.Value())

	send(-4)
	assert.Equal(t, constrain.AxisNone, p.Snapshot().Lock)
	assert.Equal(t, int64(constrain.AxisNone), m.LockedAxis.Value())

	send(4)
	assert.Equal(t, int64(constrain.AxisX), m.LockedAxis.Value())
	assert.Equal(t, uint64(2), m.LocksX.Value(), "x became dominant twice")
	assert.Zero(t, m.ReleasesTotal.Value())
}
