// Package events provides an asynchronous event bus that decouples engine
// notifications and error reporting from their consumers, so publishers never
// block on slow handlers.
package events

import (
	"time"
)

// Event is anything that travels on the bus
type Event interface {
	// GetKind returns the dotted event name, e.g. "engine.restarted.route_change"
	GetKind() string

	// GetTimestamp returns when the event occurred
	GetTimestamp() time.Time

	// GetMessage returns a human-readable description
	GetMessage() string

	// GetMetadata returns additional context data
	GetMetadata() map[string]any
}

// ErrorEvent represents an error that can be processed asynchronously. This
// interface lets the errors package push events without a circular import.
type ErrorEvent interface {
	GetComponent() string
	GetCategory() string
	GetContext() map[string]any
	GetTimestamp() time.Time
	GetError() error
	GetMessage() string
	IsReported() bool
	MarkReported()
}

// EventConsumer processes events delivered by the bus
type EventConsumer interface {
	// Name returns the consumer name for identification
	Name() string

	// ProcessEvent processes a single event
	ProcessEvent(event Event) error
}

// ConsumerFunc adapts a function to EventConsumer
type ConsumerFunc struct {
	ConsumerName string
	Fn           func(Event) error
}

// Name returns the consumer name
func (c ConsumerFunc) Name() string { return c.ConsumerName }

// ProcessEvent calls Fn
func (c ConsumerFunc) ProcessEvent(event Event) error { return c.Fn(event) }

// EventBusStats contains runtime statistics for monitoring
type EventBusStats struct {
	EventsReceived   uint64
	EventsSuppressed uint64
	EventsProcessed  uint64
	EventsDropped    uint64
	ConsumerErrors   uint64
	FastPathHits     uint64 // publishes skipped because no consumer was registered
}
