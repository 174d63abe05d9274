package errors

import (
	"sync"
	"sync/atomic"
)

// ErrorHook is called for every error built while reporting is active
type ErrorHook func(ee *EnhancedError)

var (
	errorHooks   []ErrorHook
	errorHooksMu sync.RWMutex

	// hasActiveReporting gates the slow path in Build. It is true while a
	// telemetry reporter, an event publisher or at least one hook is installed.
	hasActiveReporting atomic.Bool
)

// AddErrorHook registers a hook that observes built errors
func AddErrorHook(hook ErrorHook) {
	if hook == nil {
		return
	}
	errorHooksMu.Lock()
	errorHooks = append(errorHooks, hook)
	errorHooksMu.Unlock()
	updateReportingState()
}

// ClearErrorHooks removes all registered hooks
func ClearErrorHooks() {
	errorHooksMu.Lock()
	errorHooks = nil
	errorHooksMu.Unlock()
	updateReportingState()
}

func runErrorHooks(ee *EnhancedError) {
	errorHooksMu.RLock()
	hooks := errorHooks
	errorHooksMu.RUnlock()

	for _, hook := range hooks {
		hook(ee)
	}
}

// updateReportingState recomputes whether Build has to take the slow path
func updateReportingState() {
	errorHooksMu.RLock()
	hooks := len(errorHooks)
	errorHooksMu.RUnlock()

	reporter := GetTelemetryReporter()
	active := hooks > 0 ||
		(reporter != nil && reporter.IsEnabled()) ||
		globalEventPublisher.Load() != nil
	hasActiveReporting.Store(active)
}
