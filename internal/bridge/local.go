package bridge

import (
	"context"
	"sync"

	"ingestd/internal/gate"
)

// Local is an in-process gate.Dispatcher with at most one attached
// consumer. It drives the same subscribe/unsubscribe hooks as Hub.
type Local struct {
	mu      sync.Mutex
	binding Binding
	ch      chan gate.Delivery
	gone    chan struct{}
}

func NewLocal() *Local { return &Local{} }

// Bind installs the gate the dispatcher reports to.
func (l *Local) Bind(b Binding) {
	l.mu.Lock()
	l.binding = b
	l.mu.Unlock()
}

// Attach subscribes a consumer. Deliveries arrive on the returned channel,
// which is never closed; detach unsubscribes and is safe to call twice.
func (l *Local) Attach(buffer int) (<-chan gate.Delivery, func(), error) {
	if buffer < 0 {
		buffer = 0
	}
	l.mu.Lock()
	if l.ch != nil {
		l.mu.Unlock()
		return nil, nil, ErrAttached
	}
	ch := make(chan gate.Delivery, buffer)
	gone := make(chan struct{})
	l.ch, l.gone = ch, gone
	b := l.binding
	l.mu.Unlock()
	if b != nil {
		b.OnSubscribe()
	}

	var once sync.Once
	detach := func() {
		once.Do(func() {
			close(gone)
			l.mu.Lock()
			b := l.binding
			l.mu.Unlock()
			if b != nil {
				b.OnUnsubscribe()
			}
			l.mu.Lock()
			l.ch, l.gone = nil, nil
			l.mu.Unlock()
		})
	}
	return ch, detach, nil
}

// Dispatch hands d to the attached consumer, waiting for buffer space until
// the consumer detaches or ctx is done.
func (l *Local) Dispatch(ctx context.Context, d gate.Delivery) error {
	l.mu.Lock()
	ch, gone := l.ch, l.gone
	l.mu.Unlock()
	if ch == nil {
		return ErrNoConsumer
	}
	select {
	case ch <- d:
		return nil
	case <-gone:
		return ErrNoConsumer
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Resolve forwards a consumer's outcome to the bound gate.
func (l *Local) Resolve(id string, outcome gate.Outcome) error {
	l.mu.Lock()
	b := l.binding
	l.mu.Unlock()
	if b == nil {
		return ErrNotBound
	}
	return b.ResolveCycle(id, outcome)
}
