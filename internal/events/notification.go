package events

import (
	"maps"
	"time"
)

// Notification is a plain named event, used for engine lifecycle signals
type Notification struct {
	Kind      string
	Message   string
	Timestamp time.Time
	Metadata  map[string]any
}

// NewNotification creates a notification stamped with the current time
func NewNotification(kind, message string) *Notification {
	return &Notification{
		Kind:      kind,
		Message:   message,
		Timestamp: time.Now(),
		Metadata:  make(map[string]any),
	}
}

// WithMetadata adds a key/value pair and returns the notification
func (n *Notification) WithMetadata(key string, value any) *Notification {
	if n.Metadata == nil {
		n.Metadata = make(map[string]any)
	}
	n.Metadata[key] = value
	return n
}

func (n *Notification) GetKind() string         { return n.Kind }
func (n *Notification) GetTimestamp() time.Time { return n.Timestamp }
func (n *Notification) GetMessage() string      { return n.Message }

// GetMetadata returns a copy of the metadata
func (n *Notification) GetMetadata() map[string]any {
	return maps.Clone(n.Metadata)
}

// errorEnvelope carries an ErrorEvent on the bus
type errorEnvelope struct {
	err ErrorEvent
}

// KindErrorPrefix prefixes the kind of every error event, followed by its category
const KindErrorPrefix = "error."

func (e errorEnvelope) GetKind() string             { return KindErrorPrefix + e.err.GetCategory() }
func (e errorEnvelope) GetTimestamp() time.Time     { return e.err.GetTimestamp() }
func (e errorEnvelope) GetMessage() string          { return e.err.GetMessage() }
func (e errorEnvelope) GetMetadata() map[string]any { return e.err.GetContext() }

// AsErrorEvent returns the ErrorEvent carried by an event published through
// TryPublishError
func AsErrorEvent(event Event) (ErrorEvent, bool) {
	env, ok := event.(errorEnvelope)
	if !ok {
		return nil, false
	}
	return env.err, true
}
