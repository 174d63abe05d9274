package audiocore

import (
	"sync/atomic"
	"time"

	"github.com/tphakala/audiograph/internal/logger"
	"github.com/tphakala/audiograph/internal/observability/metrics"
)

// MetricsCollector provides metrics collection for audiocore components. A
// collector without an EngineMetrics instance records nothing.
type MetricsCollector struct {
	metrics *metrics.EngineMetrics
	enabled bool
}

var globalMetrics atomic.Pointer[MetricsCollector]

// InitMetrics installs the global metrics collector
func InitMetrics(engineMetrics *metrics.EngineMetrics) {
	mc := &MetricsCollector{
		metrics: engineMetrics,
		enabled: engineMetrics != nil,
	}
	globalMetrics.Store(mc)

	log := logger.Global().Module("audiocore").Module("metrics")
	if mc.enabled {
		log.Info("metrics collector initialized")
	} else {
		log.Debug("metrics collector disabled")
	}
}

// GetMetrics returns the global metrics collector
func GetMetrics() *MetricsCollector {
	mc := globalMetrics.Load()
	if mc == nil {
		return &MetricsCollector{enabled: false}
	}
	return mc
}

// RecordTransportTransition records a transport state change
func (mc *MetricsCollector) RecordTransportTransition(from, to TransportState) {
	if !mc.enabled {
		return
	}
	mc.metrics.RecordTransportTransition(from.String(), to.String())
}

// RecordEngineStart records a live start attempt
func (mc *MetricsCollector) RecordEngineStart(success bool) {
	if !mc.enabled {
		return
	}
	mc.metrics.RecordEngineStart(success)
}

// UpdateGraphSize records the attached node and connection counts
func (mc *MetricsCollector) UpdateGraphSize(nodes, connections int) {
	if !mc.enabled {
		return
	}
	mc.metrics.UpdateGraphSize(nodes, connections)
}

// RecordWorkaroundDummies records dummy nodes used by a running-graph workaround
func (mc *MetricsCollector) RecordWorkaroundDummies(procedure string, count int) {
	if !mc.enabled || count == 0 {
		return
	}
	mc.metrics.RecordWorkaroundDummies(procedure, count)
}

// RecordRender records one graph render
func (mc *MetricsCollector) RecordRender(mode string, status RenderStatus, frames int, duration time.Duration) {
	if !mc.enabled {
		return
	}
	mc.metrics.RecordRender(mode, status.String(), frames, duration.Seconds())
}

// RecordRecoveryAttempt records the outcome of a recovery event
func (mc *MetricsCollector) RecordRecoveryAttempt(trigger ChangeKind, outcome string) {
	if !mc.enabled {
		return
	}
	mc.metrics.RecordRecoveryAttempt(trigger.String(), outcome)
}
