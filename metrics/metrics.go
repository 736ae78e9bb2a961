package metrics

import (
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all application metrics
type Metrics struct {
	// Frame counters
	FramesRead    atomic.Uint64
	FramesDropped atomic.Uint64
	FramesTracked atomic.Uint64

	// Selection outcomes
	SelectionsCommitted atomic.Uint64
	SelectionsRejected  atomic.Uint64

	// Telemetry
	TelemetryLines  atomic.Uint64
	TelemetryErrors atomic.Uint64

	// Tracking mode, 0 = idle, 1 = tracking
	Mode atomic.Int64

	// FPS sampling
	mu         sync.Mutex
	lastSample time.Time
	lastFrames uint64

	// Prometheus collectors
	registry *prometheus.Registry
}

// New creates a new Metrics instance with Prometheus collectors
func New() *Metrics {
	m := &Metrics{
		registry:   prometheus.NewRegistry(),
		lastSample: time.Now(),
	}
	m.registerPrometheusMetrics()
	return m
}

func (m *Metrics) registerPrometheusMetrics() {
	counters := []struct {
		name, help string
		value      *atomic.Uint64
	}{
		{"espvision_frames_read_total", "Frames read from the camera", &m.FramesRead},
		{"espvision_frames_dropped_total", "Failed or empty camera reads", &m.FramesDropped},
		{"espvision_frames_tracked_total", "Frames for which CAMShift produced a centroid", &m.FramesTracked},
		{"espvision_selections_committed_total", "Selections adopted as a tracking window", &m.SelectionsCommitted},
		{"espvision_selections_rejected_total", "Selections discarded for non-positive extent", &m.SelectionsRejected},
		{"espvision_telemetry_lines_total", "Centroid lines written to the telemetry sink", &m.TelemetryLines},
		{"espvision_telemetry_errors_total", "Failed telemetry writes", &m.TelemetryErrors},
	}
	for _, c := range counters {
		v := c.value
		m.registry.MustRegister(prometheus.NewCounterFunc(
			prometheus.CounterOpts{Name: c.name, Help: c.help},
			func() float64 { return float64(v.Load()) },
		))
	}

	m.registry.MustRegister(prometheus.NewGaugeFunc(
		prometheus.GaugeOpts{
			Name: "espvision_tracking_mode",
			Help: "Tracking mode (0 = idle, 1 = tracking)",
		},
		func() float64 { return float64(m.Mode.Load()) },
	))
}

// Registry returns the Prometheus registry
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler returns an HTTP handler for the Prometheus metrics endpoint
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func (m *Metrics) FrameRead()    { m.FramesRead.Add(1) }
func (m *Metrics) FrameDropped() { m.FramesDropped.Add(1) }
func (m *Metrics) FrameTracked() { m.FramesTracked.Add(1) }

func (m *Metrics) SelectionCommitted() { m.SelectionsCommitted.Add(1) }
func (m *Metrics) SelectionRejected()  { m.SelectionsRejected.Add(1) }

func (m *Metrics) LineSent()   { m.TelemetryLines.Add(1) }
func (m *Metrics) WriteError() { m.TelemetryErrors.Add(1) }

func (m *Metrics) SetMode(mode int) { m.Mode.Store(int64(mode)) }

// FPS returns frames read per second since the previous call
func (m *Metrics) FPS() float64 {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := time.Now()
	frames := m.FramesRead.Load()
	elapsed := now.Sub(m.lastSample).Seconds()
	delta := frames - m.lastFrames
	m.lastSample = now
	m.lastFrames = frames
	if elapsed <= 0 {
		return 0
	}
	return float64(delta) / elapsed
}
