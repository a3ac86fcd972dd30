package gate

// Event represents a gate lifecycle event.
// Minimal and stable: name + cycle ID and optional fields via key/values.
type Event struct {
	Name    string
	CycleID string
	Fields  map[string]any
}

// Event names published by Gate.
const (
	EventSubscribed        = "listener_subscribed"
	EventUnsubscribed      = "listener_unsubscribed"
	EventNoListener        = "emit_no_listener"
	EventArmed             = "emit_armed"
	EventResolved          = "emit_resolved"
	EventTimeout           = "emit_timeout"
	EventCanceled          = "emit_canceled"
	EventDispatchFailed    = "emit_dispatch_failed"
	EventProtocolViolation = "protocol_violation"
)

// EventPublisher receives events from the gate. Implementations should be
// lightweight and non-blocking; Publish must not panic. Publish is never
// called with the gate mutex held.
type EventPublisher interface {
	Publish(Event)
}

// noopPublisher is the default; it drops events.
type noopPublisher struct{}

func (noopPublisher) Publish(Event) {}
