package metrics

import (
	"time"

	"axisconstrain/internal/constrain"
)

// ConstrainMetrics records processor and pipeline activity. It implements
// constrain.Observer.
type ConstrainMetrics struct {
	registry *Registry

	EventsTotal      *Counter
	SuppressedTotal  *Counter
	LocksX           *Counter
	LocksY           *Counter
	ReleasesTotal    *Counter
	LockedAxis       *Gauge
	PipelineLatency  *Histogram
	DevicesConnected *Gauge
}

var _ constrain.Observer = (*ConstrainMetrics)(nil)

// NewConstrainMetrics registers the axisconstrain metrics on registry, or on
// the default registry when nil.
func NewConstrainMetrics(registry *Registry) *ConstrainMetrics {
	if registry == nil {
		registry = Default()
	}

	return &ConstrainMetrics{
		registry: registry,
		EventsTotal: registry.Counter("events_total",
			"Relative X/Y motion events seen by the processor", nil),
		SuppressedTotal: registry.Counter("events_suppressed_total",
			"Motion events whose value was zeroed", nil),
		LocksX: registry.Counter("locks_x_total",
			"Times the X axis became dominant", nil),
		LocksY: registry.Counter("locks_y_total",
			"Times the Y axis became dominant", nil),
		ReleasesTotal: registry.Counter("releases_total",
			"Sticky locks released by timeout or request", nil),
		LockedAxis: registry.Gauge("locked_axis",
			"Currently locked axis (0 none, 1 x, 2 y)", nil),
		PipelineLatency: registry.Histogram("pipeline_latency_seconds",
			"Time from reading an event to writing it out", nil, LatencyBuckets),
		DevicesConnected: registry.Gauge("devices_connected",
			"Input devices currently grabbed by the daemon", nil),
	}
}

// Registry returns the registry the metrics live in.
func (m *ConstrainMetrics) Registry() *Registry {
	return m.registry
}

// ObserveEvent implements constrain.Observer.
func (m *ConstrainMetrics) ObserveEvent(axis constrain.Axis, suppressed bool) {
	m.EventsTotal.Inc()
	if suppressed {
		m.SuppressedTotal.Inc()
	}
}

// ObserveLock implements constrain.Observer.
func (m *ConstrainMetrics) ObserveLock(axis constrain.Axis) {
	switch axis {
	case constrain.AxisX:
		m.LocksX.Inc()
	case constrain.AxisY:
		m.LocksY.Inc()
	}
	m.LockedAxis.Set(int64(axis))
}

// ObserveUnlock implements constrain.Observer.
func (m *ConstrainMetrics) ObserveUnlock() {
	m.LockedAxis.Set(int64(constrain.AxisNone))
}

// ObserveRelease implements constrain.Observer.
func (m *ConstrainMetrics) ObserveRelease() {
	m.ReleasesTotal.Inc()
	m.LockedAxis.Set(int64(constrain.AxisNone))
}

// ObserveLatency records the time spent moving one event through the pipeline.
func (m *ConstrainMetrics) ObserveLatency(d time.Duration) {
	m.PipelineLatency.ObserveDuration(d)
}
