package gate

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// Delivery is what the Dispatcher forwards to the consumer for one cycle.
type Delivery struct {
	ID      string
	Payload string
	ArmedAt time.Time
}

// Dispatcher forwards a delivery to the currently subscribed consumer.
// Delivery is fire-and-forget: the only acknowledgement is a later Resolve.
type Dispatcher interface {
	Dispatch(ctx context.Context, d Delivery) error
}

// DispatcherFunc adapts a plain function to Dispatcher.
type DispatcherFunc func(ctx context.Context, d Delivery) error

func (f DispatcherFunc) Dispatch(ctx context.Context, d Delivery) error { return f(ctx, d) }

// cycle is one arming of the gate. All fields after armedAt are guarded by
// Gate.mu; done is closed exactly once, by release.
type cycle struct {
	id      string
	payload string
	armedAt time.Time

	outcome      Outcome
	released     bool
	unsubscribed bool
	expired      bool
	done         chan struct{}
}

func (c *cycle) release(o Outcome) {
	c.outcome = o
	c.released = true
	close(c.done)
}

func (c *cycle) result() (bool, error) {
	switch {
	case c.unsubscribed:
		return false, ErrUnsubscribed
	case c.outcome == Success:
		return true, nil
	case c.outcome == Failure:
		return false, ErrRejected
	default:
		return false, ErrUnresolved
	}
}

// Gate is the Event Gate. The zero value is not usable; construct with New.
type Gate struct {
	dispatcher Dispatcher
	cfg        Config
	log        zerolog.Logger
	pub        EventPublisher
	now        func() time.Time
	newID      func() string

	listening atomic.Bool // written under mu, with the listener gauge
	slot      chan struct{} // size 1: single in-flight emit

	mu   sync.Mutex
	cur  *cycle // armed cycle, nil when unarmed
	last *cycle // most recently finished cycle

	stats stats
}

type stats struct {
	emits      atomic.Uint64
	successes  atomic.Uint64
	failures   atomic.Uint64
	timeouts   atomic.Uint64
	noListener atomic.Uint64
	busy       atomic.Uint64
	violations atomic.Uint64
}

// Snapshot is a read-only projection of the gate state.
type Snapshot struct {
	Listening   bool
	Armed       bool
	CycleID     string
	LastCycleID string
	LastOutcome Outcome

	Emits              uint64
	Successes          uint64
	Failures           uint64
	Timeouts           uint64
	NoListener         uint64
	Busy               uint64
	ProtocolViolations uint64
}

// Option configures a Gate.
type Option func(*Gate)

// WithLogger sets the structured logger. Defaults to zerolog.Nop().
func WithLogger(l zerolog.Logger) Option {
	return func(g *Gate) { g.log = l }
}

// WithEventPublisher installs a lifecycle event sink. nil restores the no-op.
func WithEventPublisher(p EventPublisher) Option {
	return func(g *Gate) {
		if p == nil {
			p = noopPublisher{}
		}
		g.pub = p
	}
}

// WithClock overrides the time source used for Delivery.ArmedAt and wait
// durations.
func WithClock(now func() time.Time) Option {
	return func(g *Gate) {
		if now != nil {
			g.now = now
		}
	}
}

// WithIDGenerator overrides cycle id generation (UUIDv4 by default).
func WithIDGenerator(fn func() string) Option {
	return func(g *Gate) {
		if fn != nil {
			g.newID = fn
		}
	}
}

// New constructs a Gate forwarding payloads through d.
func New(d Dispatcher, cfg Config, opts ...Option) *Gate {
	if d == nil {
		d = DispatcherFunc(func(context.Context, Delivery) error { return errNoDispatcher })
	}
	g := &Gate{
		dispatcher: d,
		cfg:        cfg.withDefaults(),
		log:        zerolog.Nop(),
		pub:        noopPublisher{},
		now:        time.Now,
		newID:      uuid.NewString,
		slot:       make(chan struct{}, 1),
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// Config returns the effective configuration after defaults.
func (g *Gate) Config() Config { return g.cfg }

// Listening reports whether a consumer is currently subscribed.
func (g *Gate) Listening() bool { return g.listening.Load() }

// Emit forwards payload to the subscribed consumer and blocks until the
// cycle is resolved. It returns true only for a Success resolution; every
// other path returns false with a reason error. With no listener it returns
// ErrNoListener immediately.
func (g *Gate) Emit(ctx context.Context, payload string) (bool, error) {
	g.stats.emits.Add(1)
	if !g.listening.Load() {
		return g.reject(ErrNoListener)
	}
	release, err := g.acquire(ctx)
	if err != nil {
		return g.reject(err)
	}
	defer release()

	c := g.arm(payload)
	if c == nil {
		return g.reject(ErrNoListener)
	}
	g.log.Debug().Str("cycle", c.id).Int("payload_bytes", len(payload)).Msg("gate armed")
	g.pub.Publish(Event{Name: EventArmed, CycleID: c.id})

	// One deadline bounds the whole cycle, dispatch included.
	wctx, cancel := context.WithTimeoutCause(ctx, g.cfg.EmitTimeout, ErrTimeout)
	defer cancel()
	if err := g.dispatcher.Dispatch(wctx, Delivery{ID: c.id, Payload: payload, ArmedAt: c.armedAt}); err != nil {
		if werr := waitErr(ctx, wctx); werr != nil {
			return g.finish(c, werr)
		}
		return g.finish(c, fmt.Errorf("%w: %w", ErrDispatch, err))
	}

	select {
	case <-c.done:
		return g.finish(c, nil)
	case <-wctx.Done():
		return g.finish(c, waitErr(ctx, wctx))
	}
}

// waitErr reports why wctx ended: the caller's context error when ctx is
// done, ErrTimeout when only the emit deadline fired, nil otherwise.
func waitErr(ctx, wctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if errors.Is(context.Cause(wctx), ErrTimeout) {
		return ErrTimeout
	}
	return nil
}

// acquire reserves the single in-flight slot. Returns a release func to be
// deferred.
func (g *Gate) acquire(ctx context.Context) (func(), error) {
	select {
	case g.slot <- struct{}{}:
		return func() { <-g.slot }, nil
	default:
	}
	if g.cfg.AcquireTimeout <= 0 {
		return nil, ErrBusy
	}
	select {
	case g.slot <- struct{}{}:
		return func() { <-g.slot }, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-time.After(g.cfg.AcquireTimeout):
		return nil, ErrBusy
	}
}

// arm resets the outcome to Waiting with a fresh cycle. The listener flag is
// re-checked under the mutex so an OnUnsubscribe racing with arm either
// prevents arming or releases the new cycle.
func (g *Gate) arm(payload string) *cycle {
	g.mu.Lock()
	defer g.mu.Unlock()
	if !g.listening.Load() {
		return nil
	}
	c := &cycle{
		id:      g.newID(),
		payload: payload,
		armedAt: g.now(),
		outcome: Waiting,
		done:    make(chan struct{}),
	}
	g.cur = c
	return c
}

// finish disarms c and converts its state into Emit's result. A resolution
// recorded before finish took the lock wins over waitErr.
func (g *Gate) finish(c *cycle, waitErr error) (bool, error) {
	g.mu.Lock()
	if g.cur == c {
		g.cur = nil
	}
	g.last = c
	var (
		ok  bool
		err error
	)
	if c.released {
		ok, err = c.result()
	} else {
		c.expired = true
		err = waitErr
	}
	g.mu.Unlock()

	waited := g.now().Sub(c.armedAt)
	emitWaitSeconds.Observe(waited.Seconds())
	g.record(c.id, err, waited)
	return ok, err
}

// reject accounts for an Emit that never armed the gate.
func (g *Gate) reject(err error) (bool, error) {
	g.record("", err, 0)
	return false, err
}

func (g *Gate) record(id string, err error, waited time.Duration) {
	reason := Reason(err)
	emitsTotal.WithLabelValues(reason).Inc()

	name := EventResolved
	switch {
	case err == nil:
		g.stats.successes.Add(1)
	case IsNoListener(err):
		g.stats.noListener.Add(1)
		name = EventNoListener
	case IsBusy(err):
		g.stats.busy.Add(1)
	case IsTimeout(err):
		g.stats.timeouts.Add(1)
		name = EventTimeout
	case reason == "dispatch":
		g.stats.failures.Add(1)
		name = EventDispatchFailed
	case reason == "canceled":
		g.stats.failures.Add(1)
		name = EventCanceled
	default:
		g.stats.failures.Add(1)
	}

	ev := g.log.Debug()
	if err != nil && !IsRejected(err) {
		ev = g.log.Warn().Err(err)
	}
	if id != "" {
		ev = ev.Str("cycle", id).Dur("waited", waited)
	}
	ev.Str("reason", reason).Msg("emit done")

	if IsBusy(err) {
		return
	}
	g.pub.Publish(Event{Name: name, CycleID: id, Fields: map[string]any{"reason": reason}})
}

// Resolve stores outcome for the armed cycle and releases the producer.
// Only Success and Failure are accepted. Calling it with nothing armed, or a
// second time for the same arming, returns a protocol violation and changes
// nothing.
func (g *Gate) Resolve(outcome Outcome) error { return g.resolve("", outcome) }

// ResolveCycle is Resolve restricted to the cycle named by id. An empty id
// resolves whatever cycle is armed.
func (g *Gate) ResolveCycle(id string, outcome Outcome) error { return g.resolve(id, outcome) }

func (g *Gate) resolve(id string, outcome Outcome) error {
	if !outcome.Resolvable() {
		return fmt.Errorf("%w: %s", ErrInvalidOutcome, outcome)
	}
	g.mu.Lock()
	c, err := g.target(id)
	if err == nil {
		c.release(outcome)
	}
	g.mu.Unlock()

	if err != nil {
		g.violation(id, outcome, err)
		return err
	}
	g.log.Debug().Str("cycle", c.id).Stringer("outcome", outcome).Msg("gate resolved")
	return nil
}

// target picks the cycle a resolution applies to. Caller holds g.mu.
func (g *Gate) target(id string) (*cycle, error) {
	cur := g.cur
	switch {
	case id == "" && cur == nil:
		return nil, ErrNotArmed
	case id == "" || (cur != nil && cur.id == id):
		if cur.released {
			return nil, ErrAlreadyResolved
		}
		return cur, nil
	case g.last != nil && g.last.id == id:
		if g.last.expired {
			return nil, ErrNotArmed
		}
		return nil, ErrAlreadyResolved
	case cur != nil:
		return nil, ErrStaleCycle
	default:
		return nil, ErrNotArmed
	}
}

func (g *Gate) violation(id string, outcome Outcome, err error) {
	g.stats.violations.Add(1)
	kind := violationKind(err)
	protocolViolationsTotal.WithLabelValues(kind).Inc()
	g.log.Warn().Str("cycle", id).Stringer("outcome", outcome).Str("kind", kind).Msg("resolve rejected")
	g.pub.Publish(Event{Name: EventProtocolViolation, CycleID: id, Fields: map[string]any{
		"kind":    kind,
		"outcome": outcome.String(),
	}})
}

// OnSubscribe marks a consumer as attached.
func (g *Gate) OnSubscribe() {
	g.mu.Lock()
	was := g.listening.Swap(true)
	listenerPresent.Set(1)
	g.mu.Unlock()
	if was {
		return
	}
	g.log.Info().Msg("listener subscribed")
	g.pub.Publish(Event{Name: EventSubscribed})
}

// OnUnsubscribe marks the consumer as detached. An armed cycle is released
// at once with Failure and its producer gets ErrUnsubscribed.
func (g *Gate) OnUnsubscribe() {
	var released string
	g.mu.Lock()
	was := g.listening.Swap(false)
	listenerPresent.Set(0)
	if c := g.cur; c != nil && !c.released {
		c.unsubscribed = true
		c.release(Failure)
		released = c.id
	}
	g.mu.Unlock()

	if !was && released == "" {
		return
	}
	g.log.Info().Str("released_cycle", released).Msg("listener unsubscribed")
	g.pub.Publish(Event{Name: EventUnsubscribed, CycleID: released})
}

// Snapshot returns the current state and counters.
func (g *Gate) Snapshot() Snapshot {
	s := Snapshot{
		Listening:          g.listening.Load(),
		Emits:              g.stats.emits.Load(),
		Successes:          g.stats.successes.Load(),
		Failures:           g.stats.failures.Load(),
		Timeouts:           g.stats.timeouts.Load(),
		NoListener:         g.stats.noListener.Load(),
		Busy:               g.stats.busy.Load(),
		ProtocolViolations: g.stats.violations.Load(),
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.cur != nil {
		s.Armed = true
		s.CycleID = g.cur.id
	}
	if g.last != nil {
		s.LastCycleID = g.last.id
		s.LastOutcome = g.last.outcome
	}
	return s
}
