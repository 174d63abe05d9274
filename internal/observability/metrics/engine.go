// Package metrics provides Prometheus collectors for the audio engine
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// EngineMetrics contains Prometheus metrics for transport, graph, rendering
// and recovery
type EngineMetrics struct {
	registry *prometheus.Registry

	// Transport metrics
	transportTransitions *prometheus.CounterVec
	transportState       *prometheus.GaugeVec
	engineStarts         *prometheus.CounterVec

	// Graph metrics
	graphNodes        prometheus.Gauge
	graphConnections  prometheus.Gauge
	workaroundDummies *prometheus.CounterVec

	// Render metrics
	renderBuffers  *prometheus.CounterVec
	renderFrames   *prometheus.CounterVec
	renderDuration *prometheus.HistogramVec

	// Recovery metrics
	recoveryAttempts *prometheus.CounterVec

	// collectors is a slice of all collectors for easier iteration
	collectors []prometheus.Collector
}

// NewEngineMetrics creates and registers engine metrics
func NewEngineMetrics(registry *prometheus.Registry) (*EngineMetrics, error) {
	m := &EngineMetrics{registry: registry}
	m.initMetrics()
	if err := registry.Register(m); err != nil {
		return nil, err
	}
	return m, nil
}

// initMetrics initializes all Prometheus metrics
func (m *EngineMetrics) initMetrics() {
	m.transportTransitions = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "audiograph_transport_transitions_total",
			Help: "Total number of transport state transitions",
		},
		[]string{"from", "to"},
	)

	m.transportState = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "audiograph_transport_state",
			Help: "Current transport state (1 for the active state, 0 otherwise)",
		},
		[]string{"state"},
	)

	m.engineStarts = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "audiograph_engine_starts_total",
			Help: "Total number of engine start attempts",
		},
		[]string{"status"},
	)

	m.graphNodes = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "audiograph_graph_nodes",
			Help: "Number of attached nodes",
		},
	)

	m.graphConnections = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "audiograph_graph_connections",
			Help: "Number of bus connections",
		},
	)

	m.workaroundDummies = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "audiograph_workaround_dummies_total",
			Help: "Total number of temporary dummy nodes used while mutating a running graph",
		},
		[]string{"procedure"}, // ensure_bus_capacity, prime_mixer
	)

	m.renderBuffers = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "audiograph_render_buffers_total",
			Help: "Total number of render calls by result status",
		},
		[]string{"mode", "status"}, // mode: live, offline
	)

	m.renderFrames = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "audiograph_render_frames_total",
			Help: "Total number of frames produced",
		},
		[]string{"mode"},
	)

	m.renderDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "audiograph_render_duration_seconds",
			Help:    "Time taken by a single render call",
			Buckets: prometheus.ExponentialBuckets(BucketStart10us, BucketFactor2, BucketCount15),
		},
		[]string{"mode"},
	)

	m.recoveryAttempts = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "audiograph_recovery_attempts_total",
			Help: "Total number of recovery decisions by trigger and outcome",
		},
		[]string{"trigger", "outcome"}, // outcome: restarted, failed, skipped, suppressed
	)

	m.collectors = []prometheus.Collector{
		m.transportTransitions,
		m.transportState,
		m.engineStarts,
		m.graphNodes,
		m.graphConnections,
		m.workaroundDummies,
		m.renderBuffers,
		m.renderFrames,
		m.renderDuration,
		m.recoveryAttempts,
	}
}

// Describe implements the Collector interface
func (m *EngineMetrics) Describe(ch chan<- *prometheus.Desc) {
	for _, collector := range m.collectors {
		collector.Describe(ch)
	}
}

// Collect implements the Collector interface
func (m *EngineMetrics) Collect(ch chan<- prometheus.Metric) {
	for _, collector := range m.collectors {
		collector.Collect(ch)
	}
}

// RecordTransportTransition counts a state change and updates the state gauge
func (m *EngineMetrics) RecordTransportTransition(from, to string) {
	m.transportTransitions.WithLabelValues(from, to).Inc()
	m.transportState.WithLabelValues(from).Set(0)
	m.transportState.WithLabelValues(to).Set(1)
}

// RecordEngineStart records a start attempt
func (m *EngineMetrics) RecordEngineStart(success bool) {
	m.engineStarts.WithLabelValues(statusLabel(success)).Inc()
}

// UpdateGraphSize sets the node and connection gauges
func (m *EngineMetrics) UpdateGraphSize(nodes, connections int) {
	m.graphNodes.Set(float64(nodes))
	m.graphConnections.Set(float64(connections))
}

// RecordWorkaroundDummies counts dummy nodes used by a workaround procedure
func (m *EngineMetrics) RecordWorkaroundDummies(procedure string, count int) {
	if count <= 0 {
		return
	}
	m.workaroundDummies.WithLabelValues(procedure).Add(float64(count))
}

// RecordRender records one render call
func (m *EngineMetrics) RecordRender(mode, status string, frames int, seconds float64) {
	m.renderBuffers.WithLabelValues(mode, status).Inc()
	if frames > 0 {
		m.renderFrames.WithLabelValues(mode).Add(float64(frames))
	}
	if seconds > 0 {
		m.renderDuration.WithLabelValues(mode).Observe(seconds)
	}
}

// RecordRecoveryAttempt records the outcome of a recovery decision
func (m *EngineMetrics) RecordRecoveryAttempt(trigger, outcome string) {
	m.recoveryAttempts.WithLabelValues(trigger, outcome).Inc()
}

func statusLabel(success bool) string {
	if success {
		return LabelSuccess
	}
	return LabelFailure
}
