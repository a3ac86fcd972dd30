// Package gate provides the Event Gate: a synchronous handoff between a
// producer that raises an event and a consumer that later reports whether
// the event was handled. It is structured into small files by concern:
//
//   - gate.go: Gate type, Emit, Resolve/ResolveCycle and listener hooks.
//   - config.go: Config and package defaults applied by New.
//   - outcome.go: the tri-state Outcome (Waiting, Success, Failure).
//   - errors.go: sentinel errors and helpers (IsNoListener, IsTimeout, ...).
//   - events.go: lifecycle EventPublisher; eventpub_memory.go for tests.
//   - metrics.go: Prometheus collectors for emit results and violations.
//
// A Gate holds at most one armed cycle. Emit arms it, forwards the payload
// through a Dispatcher and blocks until the consumer resolves the cycle, the
// listener detaches, the emit timeout fires or the context is done. Emit
// never blocks when no listener is subscribed.
//
// External packages drive the listener flag through OnSubscribe and
// OnUnsubscribe; the bridge package does this for WebSocket and in-process
// consumers.
package gate
