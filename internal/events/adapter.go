package events

import (
	"github.com/tphakala/audiograph/internal/errors"
)

// InitializeErrorsIntegration routes errors built by the errors package
// through the bus. Call it after the telemetry consumer is registered.
func InitializeErrorsIntegration(eb *EventBus) {
	if eb == nil {
		return
	}
	errors.SetEventPublisher(eb)
}

// TelemetryConsumer forwards error events to the configured telemetry reporter
type TelemetryConsumer struct{}

// Name returns the consumer name
func (TelemetryConsumer) Name() string { return "telemetry" }

// ProcessEvent reports error events and ignores everything else
func (TelemetryConsumer) ProcessEvent(event Event) error {
	ee, ok := AsErrorEvent(event)
	if !ok {
		return nil
	}
	if enhanced, ok := ee.(*errors.EnhancedError); ok && !enhanced.IsReported() {
		errors.ReportNow(enhanced)
	}
	return nil
}
