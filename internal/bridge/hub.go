package bridge

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"ingestd/internal/gate"
	"ingestd/pkg/types"
)

const (
	defaultWriteWait    = 10 * time.Second
	defaultPongWait     = 60 * time.Second
	defaultPingInterval = (defaultPongWait * 9) / 10
	defaultReadLimit    = 1 << 20
)

// Hub is a gate.Dispatcher that delivers payloads to at most one listener
// attached over WebSocket. Its ServeHTTP is the listener endpoint.
type Hub struct {
	upgrader     websocket.Upgrader
	log          zerolog.Logger
	writeWait    time.Duration
	pongWait     time.Duration
	pingInterval time.Duration
	readLimit    int64

	mu       sync.Mutex
	binding  Binding
	reserved bool // set from the start of an upgrade until detach
	cur      *peer
}

type peer struct {
	conn    *websocket.Conn
	remote  string
	writeMu sync.Mutex // gorilla allows one concurrent writer
	done    chan struct{}
	once    sync.Once
}

func (p *peer) write(f types.Frame, wait time.Duration) error {
	return p.writeBy(f, time.Now().Add(wait))
}

func (p *peer) writeBy(f types.Frame, deadline time.Time) error {
	p.writeMu.Lock()
	defer p.writeMu.Unlock()
	_ = p.conn.SetWriteDeadline(deadline)
	return p.conn.WriteJSON(f)
}

func (p *peer) close() {
	p.once.Do(func() {
		close(p.done)
		_ = p.conn.Close()
	})
}

// HubOption configures a Hub.
type HubOption func(*Hub)

func WithHubLogger(l zerolog.Logger) HubOption {
	return func(h *Hub) { h.log = l }
}

// WithPingInterval sets the keepalive ping period; the read deadline is
// derived from it.
func WithPingInterval(d time.Duration) HubOption {
	return func(h *Hub) {
		if d > 0 {
			h.pingInterval = d
			h.pongWait = (d * 10) / 9
		}
	}
}

func WithWriteWait(d time.Duration) HubOption {
	return func(h *Hub) {
		if d > 0 {
			h.writeWait = d
		}
	}
}

func WithReadLimit(n int64) HubOption {
	return func(h *Hub) {
		if n > 0 {
			h.readLimit = n
		}
	}
}

func WithOriginCheck(fn func(r *http.Request) bool) HubOption {
	return func(h *Hub) { h.upgrader.CheckOrigin = fn }
}

func WithAllowAnyOrigin() HubOption {
	return func(h *Hub) {
		h.upgrader.CheckOrigin = func(r *http.Request) bool { return true }
	}
}

// NewHub constructs an unbound Hub. Call Bind before serving.
func NewHub(opts ...HubOption) *Hub {
	h := &Hub{
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
		},
		log:          zerolog.Nop(),
		writeWait:    defaultWriteWait,
		pongWait:     defaultPongWait,
		pingInterval: defaultPingInterval,
		readLimit:    defaultReadLimit,
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Bind installs the gate the hub reports to.
func (h *Hub) Bind(b Binding) {
	h.mu.Lock()
	h.binding = b
	h.mu.Unlock()
}

// Attached reports whether a listener is connected.
func (h *Hub) Attached() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.cur != nil
}

// ServeHTTP upgrades the request and serves the listener until it detaches.
// A second listener is refused with 409 before the upgrade.
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	h.mu.Lock()
	b := h.binding
	switch {
	case b == nil:
		h.mu.Unlock()
		http.Error(w, ErrNotBound.Error(), http.StatusServiceUnavailable)
		return
	case h.reserved:
		h.mu.Unlock()
		http.Error(w, ErrAttached.Error(), http.StatusConflict)
		return
	}
	h.reserved = true
	h.mu.Unlock()

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade already replied to the client.
		h.mu.Lock()
		h.reserved = false
		h.mu.Unlock()
		h.log.Warn().Err(err).Str("remote", r.RemoteAddr).Msg("listener upgrade failed")
		return
	}
	p := &peer{conn: conn, remote: r.RemoteAddr, done: make(chan struct{})}
	h.mu.Lock()
	h.cur = p
	h.mu.Unlock()
	b.OnSubscribe()
	h.log.Info().Str("remote", p.remote).Msg("listener attached")

	go h.pingLoop(p)
	h.readLoop(p, b)

	p.close()
	b.OnUnsubscribe()
	h.mu.Lock()
	h.cur = nil
	h.reserved = false
	h.mu.Unlock()
	h.log.Info().Str("remote", p.remote).Msg("listener detached")
}

func (h *Hub) readLoop(p *peer, b Binding) {
	p.conn.SetReadLimit(h.readLimit)
	_ = p.conn.SetReadDeadline(time.Now().Add(h.pongWait))
	p.conn.SetPongHandler(func(string) error {
		return p.conn.SetReadDeadline(time.Now().Add(h.pongWait))
	})
	for {
		_, data, err := p.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				h.log.Warn().Err(err).Str("remote", p.remote).Msg("listener read failed")
			}
			return
		}
		id, err := h.handle(b, data)
		if err == nil {
			continue
		}
		h.log.Warn().Err(err).Str("cycle", id).Msg("listener frame rejected")
		if werr := p.write(types.Frame{Type: types.FrameError, ID: id, Error: err.Error()}, h.writeWait); werr != nil {
			return
		}
	}
}

// handle applies one listener frame. Only resolve frames are accepted.
func (h *Hub) handle(b Binding, data []byte) (string, error) {
	var f types.Frame
	if err := json.Unmarshal(data, &f); err != nil {
		return "", fmt.Errorf("invalid frame: %w", err)
	}
	if f.Type != types.FrameResolve {
		return f.ID, fmt.Errorf("unsupported frame type %q", f.Type)
	}
	outcome, err := gate.ParseOutcome(f.Outcome)
	if err != nil {
		return f.ID, err
	}
	return f.ID, b.ResolveCycle(f.ID, outcome)
}

func (h *Hub) pingLoop(p *peer) {
	t := time.NewTicker(h.pingInterval)
	defer t.Stop()
	for {
		select {
		case <-p.done:
			return
		case <-t.C:
			if err := p.conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(h.writeWait)); err != nil {
				h.log.Warn().Err(err).Str("remote", p.remote).Msg("listener ping failed")
				p.close()
				return
			}
		}
	}
}

// Dispatch writes an ingest frame to the attached listener. The write
// deadline is the earlier of the hub's write wait and ctx's deadline.
func (h *Hub) Dispatch(ctx context.Context, d gate.Delivery) error {
	h.mu.Lock()
	p := h.cur
	h.mu.Unlock()
	if p == nil {
		return ErrNoConsumer
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	deadline := time.Now().Add(h.writeWait)
	if dl, ok := ctx.Deadline(); ok && dl.Before(deadline) {
		deadline = dl
	}
	if err := p.writeBy(types.Frame{Type: types.FrameIngest, ID: d.ID, Payload: d.Payload}, deadline); err != nil {
		p.close()
		return fmt.Errorf("write ingest frame: %w", err)
	}
	return nil
}

// Close sends a close frame to the attached listener and drops it. The
// listener's ServeHTTP then runs the detach path.
func (h *Hub) Close() error {
	h.mu.Lock()
	p := h.cur
	h.mu.Unlock()
	if p == nil {
		return nil
	}
	msg := websocket.FormatCloseMessage(websocket.CloseGoingAway, "server shutdown")
	_ = p.conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(h.writeWait))
	p.close()
	return nil
}
