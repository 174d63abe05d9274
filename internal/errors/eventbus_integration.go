// Package errors - event bus integration
package errors

import (
	"sync/atomic"
)

// EventPublisher is an interface for publishing error events.
// It lets this package publish events without importing the events package.
type EventPublisher interface {
	TryPublishError(ee *EnhancedError) bool
}

var globalEventPublisher atomic.Pointer[EventPublisher]

// SetEventPublisher sets the global event publisher. Passing nil removes it.
func SetEventPublisher(publisher EventPublisher) {
	if publisher == nil {
		globalEventPublisher.Store(nil)
	} else {
		globalEventPublisher.Store(&publisher)
	}
	updateReportingState()
}

// reportToTelemetry hands the error to the event bus when one is installed and
// falls back to synchronous reporting otherwise.
func reportToTelemetry(ee *EnhancedError) {
	if !hasActiveReporting.Load() {
		return
	}

	if publisherPtr := globalEventPublisher.Load(); publisherPtr != nil && *publisherPtr != nil {
		if (*publisherPtr).TryPublishError(ee) {
			return
		}
	}

	reportToTelemetryDirect(ee)
}

// ReportNow synchronously reports an error to telemetry. Event bus consumers
// use it to forward errors they receive.
func ReportNow(ee *EnhancedError) {
	reportToTelemetryDirect(ee)
}
