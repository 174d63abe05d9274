package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestMetrics(t *testing.T) *EngineMetrics {
	t.Helper()
	m, err := NewEngineMetrics(prometheus.NewRegistry())
	require.NoError(t, err)
	return m
}

func TestDoubleRegistrationFails(t *testing.T) {
	t.Parallel()

	registry := prometheus.NewRegistry()
	_, err := NewEngineMetrics(registry)
	require.NoError(t, err)
	_, err = NewEngineMetrics(registry)
	require.Error(t, err)
}

func TestTransportTransitionUpdatesStateGauge(t *testing.T) {
	t.Parallel()

	m := newTestMetrics(t)
	m.RecordTransportTransition("stopped", "preparing")
	m.RecordTransportTransition("preparing", "running")

	assert.InDelta(t, 1, testutil.ToFloat64(m.transportState.WithLabelValues("running")), 0)
	assert.InDelta(t, 0, testutil.ToFloat64(m.transportState.WithLabelValues("preparing")), 0)
	assert.InDelta(t, 1, testutil.ToFloat64(m.transportTransitions.WithLabelValues("stopped", "preparing")), 0)
}

func TestWorkaroundDummiesIgnoresZero(t *testing.T) {
	t.Parallel()

	m := newTestMetrics(t)
	m.RecordWorkaroundDummies("ensure_bus_capacity", 3)
	m.RecordWorkaroundDummies("ensure_bus_capacity", 0)
	m.RecordWorkaroundDummies("prime_mixer", 1)

	assert.InDelta(t, 3, testutil.ToFloat64(m.workaroundDummies.WithLabelValues("ensure_bus_capacity")), 0)
	assert.InDelta(t, 1, testutil.ToFloat64(m.workaroundDummies.WithLabelValues("prime_mixer")), 0)
}

func TestRecordRender(t *testing.T) {
	t.Parallel()

	m := newTestMetrics(t)
	m.RecordRender("offline", "success", 512, 0.001)
	m.RecordRender("offline", "cannot_render", 0, 0)

	assert.InDelta(t, 1, testutil.ToFloat64(m.renderBuffers.WithLabelValues("offline", "success")), 0)
	assert.InDelta(t, 1, testutil.ToFloat64(m.renderBuffers.WithLabelValues("offline", "cannot_render")), 0)
	assert.InDelta(t, 512, testutil.ToFloat64(m.renderFrames.WithLabelValues("offline")), 0)
}

func TestRecoveryAndStarts(t *testing.T) {
	t.Parallel()

	m := newTestMetrics(t)
	m.RecordRecoveryAttempt("route_change", "restarted")
	m.RecordEngineStart(true)
	m.RecordEngineStart(false)
	m.UpdateGraphSize(4, 3)

	assert.InDelta(t, 1, testutil.ToFloat64(m.recoveryAttempts.WithLabelValues("route_change", "restarted")), 0)
	assert.InDelta(t, 1, testutil.ToFloat64(m.engineStarts.WithLabelValues(LabelFailure)), 0)
	assert.InDelta(t, 4, testutil.ToFloat64(m.graphNodes), 0)
	assert.InDelta(t, 3, testutil.ToFloat64(m.graphConnections), 0)
}
