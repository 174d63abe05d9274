package audiocore

import (
	"github.com/tphakala/audiograph/internal/errors"
)

// ComponentAudioCore identifies audiocore errors
const ComponentAudioCore = "audiocore"

// Core engine errors
var (
	// ErrConfiguration is returned when session configuration or driver preparation fails
	ErrConfiguration = errors.New(errors.NewStd("engine configuration failed")).
				Component(ComponentAudioCore).
				Category(errors.CategoryConfiguration).
				Context("operation", "prepare").
				Build()

	// ErrEngineStart is returned when the driver stream fails to begin
	ErrEngineStart = errors.New(errors.NewStd("engine failed to start")).
			Component(ComponentAudioCore).
			Category(errors.CategoryEngine).
			Context("operation", "start").
			Build()

	// ErrNodeNotFound is returned when a node is not attached to the graph
	ErrNodeNotFound = errors.New(errors.NewStd("node not attached")).
			Component(ComponentAudioCore).
			Category(errors.CategoryNotFound).
			Context("resource", "node").
			Build()

	// ErrInvalidDuration is returned for negative or NaN render durations
	ErrInvalidDuration = errors.New(errors.NewStd("invalid render duration")).
				Component(ComponentAudioCore).
				Category(errors.CategoryValidation).
				Context("resource", "duration").
				Build()

	// ErrRenderFatal is returned when a render reports a hard failure
	ErrRenderFatal = errors.New(errors.NewStd("render failed")).
			Component(ComponentAudioCore).
			Category(errors.CategoryRender).
			Build()

	// ErrTransientRender marks a render that could not run now or lacked input.
	// The offline loop retries or skips instead of failing.
	ErrTransientRender = errors.New(errors.NewStd("render temporarily unavailable")).
				Component(ComponentAudioCore).
				Category(errors.CategoryRender).
				Build()
)

// Graph and transport errors
var (
	// ErrBusOutOfRange is returned when a bus index is invalid for the node
	ErrBusOutOfRange = errors.New(errors.NewStd("bus index out of range")).
				Component(ComponentAudioCore).
				Category(errors.CategoryGraph).
				Build()

	// ErrFormatMismatch is returned when connection sample rates disagree
	ErrFormatMismatch = errors.New(errors.NewStd("format mismatch")).
				Component(ComponentAudioCore).
				Category(errors.CategoryGraph).
				Build()

	// ErrCycleDetected is returned when a connection would create a cycle
	ErrCycleDetected = errors.New(errors.NewStd("connection would create a cycle")).
				Component(ComponentAudioCore).
				Category(errors.CategoryGraph).
				Build()

	// ErrProtectedNode is returned when detaching the main mixer
	ErrProtectedNode = errors.New(errors.NewStd("node cannot be detached")).
				Component(ComponentAudioCore).
				Category(errors.CategoryGraph).
				Build()

	// ErrOfflineActive is returned when starting live while rendering offline
	ErrOfflineActive = errors.New(errors.NewStd("offline rendering is active")).
				Component(ComponentAudioCore).
				Category(errors.CategoryState).
				Build()

	// ErrRenderStalled is returned when the offline loop makes no progress
	ErrRenderStalled = errors.New(errors.NewStd("render stalled")).
				Component(ComponentAudioCore).
				Category(errors.CategoryRender).
				Build()

	// ErrRenderCancelled is returned when the offline render context ends
	ErrRenderCancelled = errors.New(errors.NewStd("render cancelled")).
				Component(ComponentAudioCore).
				Category(errors.CategoryCancellation).
				Build()

	// ErrInsufficientInput is returned by nodes that cannot produce the requested frames
	ErrInsufficientInput = errors.New(errors.NewStd("insufficient input data")).
				Component(ComponentAudioCore).
				Category(errors.CategoryRender).
				Build()

	// ErrDeviceNotFound is returned when a device ID matches no device
	ErrDeviceNotFound = errors.New(errors.NewStd("audio device not found")).
				Component(ComponentAudioCore).
				Category(errors.CategoryNotFound).
				Context("resource", "device").
				Build()
)

// newError wraps a sentinel with a formatted detail message. The result
// matches the sentinel with errors.Is and keeps its category.
func newError(sentinel *errors.EnhancedError, format string, args ...any) error {
	return errors.Newf("%w: "+format, append([]any{sentinel}, args...)...).
		Component(ComponentAudioCore).
		Category(sentinel.Category).
		Build()
}

// wrapError wraps a sentinel around a cause, keeping both matchable
func wrapError(sentinel *errors.EnhancedError, cause error, operation string) error {
	return errors.Newf("%w: %w", sentinel, cause).
		Component(ComponentAudioCore).
		Category(sentinel.Category).
		Context("operation", operation).
		Build()
}
