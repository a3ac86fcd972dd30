// Package bridge supplies the dispatch facilities an Event Gate forwards
// payloads through: Hub attaches a single listener over WebSocket, Local
// attaches one in-process, and Listen is the listener side of Hub.
package bridge

import (
	"errors"

	"ingestd/internal/gate"
)

// Binding is what a bridge drives when a listener attaches, detaches or
// replies. *gate.Gate satisfies it.
type Binding interface {
	OnSubscribe()
	OnUnsubscribe()
	ResolveCycle(id string, outcome gate.Outcome) error
}

var (
	// ErrNoConsumer is returned by Dispatch when no listener is attached.
	ErrNoConsumer = errors.New("bridge: no consumer attached")
	// ErrAttached is returned when a second listener tries to attach.
	ErrAttached = errors.New("bridge: a consumer is already attached")
	// ErrNotBound is returned when the bridge has no Binding yet.
	ErrNotBound = errors.New("bridge: not bound to a gate")
)
