package gate

import (
	"context"
	"errors"
	"fmt"
)

// Failures surfaced to the producer by Emit.
var (
	// ErrNoListener is returned without blocking when nobody is subscribed.
	ErrNoListener = errors.New("gate: no listener subscribed")
	// ErrTimeout is returned when no resolution arrived within EmitTimeout.
	ErrTimeout = errors.New("gate: timed out waiting for resolution")
	// ErrBusy is returned when another Emit holds the in-flight slot.
	ErrBusy = errors.New("gate: emit already in flight")
	// ErrRejected is returned when the consumer resolved with Failure.
	ErrRejected = errors.New("gate: consumer reported failure")
	// ErrUnresolved is returned when the gate released while still Waiting.
	ErrUnresolved = errors.New("gate: released without an outcome")
	// ErrUnsubscribed is returned when the listener detached mid-cycle.
	ErrUnsubscribed = errors.New("gate: listener unsubscribed while armed")
	// ErrDispatch wraps failures of the Dispatcher.
	ErrDispatch = errors.New("gate: dispatch failed")

	errNoDispatcher = errors.New("no dispatcher configured")
)

// Misuse by the consumer. These are reported to the resolver and the
// operational log, never to the producer.
var (
	ErrProtocolViolation = errors.New("gate: protocol violation")
	ErrNotArmed          = fmt.Errorf("%w: no emit in flight", ErrProtocolViolation)
	ErrAlreadyResolved   = fmt.Errorf("%w: cycle already resolved", ErrProtocolViolation)
	ErrStaleCycle        = fmt.Errorf("%w: cycle is not the armed one", ErrProtocolViolation)
	ErrInvalidOutcome    = errors.New("gate: outcome must be success or failure")
)

// IsNoListener reports whether err came from an Emit with nobody subscribed.
func IsNoListener(err error) bool { return errors.Is(err, ErrNoListener) }

// IsTimeout reports whether err indicates an emit timeout.
func IsTimeout(err error) bool { return errors.Is(err, ErrTimeout) }

// IsBusy reports whether err indicates a concurrent Emit was rejected.
func IsBusy(err error) bool { return errors.Is(err, ErrBusy) }

// IsRejected reports whether the consumer itself reported failure.
func IsRejected(err error) bool { return errors.Is(err, ErrRejected) }

// IsProtocolViolation reports whether err describes consumer misuse.
func IsProtocolViolation(err error) bool { return errors.Is(err, ErrProtocolViolation) }

// Reason maps an Emit error to a short machine-readable code.
func Reason(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, ErrNoListener):
		return "no_listener"
	case errors.Is(err, ErrTimeout):
		return "timeout"
	case errors.Is(err, ErrBusy):
		return "busy"
	case errors.Is(err, ErrRejected):
		return "rejected"
	case errors.Is(err, ErrUnresolved):
		return "unresolved"
	case errors.Is(err, ErrUnsubscribed):
		return "unsubscribed"
	case errors.Is(err, ErrDispatch):
		return "dispatch"
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return "canceled"
	default:
		return "error"
	}
}
