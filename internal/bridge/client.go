package bridge

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"ingestd/internal/gate"
	"ingestd/pkg/types"
)

// Handler decides the outcome of one delivery. Returning Waiting sends no
// reply and leaves the cycle to the gate's timeout.
type Handler func(ctx context.Context, d gate.Delivery) gate.Outcome

type clientConfig struct {
	dialer *websocket.Dialer
	header http.Header
	log    zerolog.Logger
}

// ClientOption configures Listen.
type ClientOption func(*clientConfig)

func WithClientLogger(l zerolog.Logger) ClientOption {
	return func(c *clientConfig) { c.log = l }
}

func WithDialer(d *websocket.Dialer) ClientOption {
	return func(c *clientConfig) {
		if d != nil {
			c.dialer = d
		}
	}
}

func WithHeader(h http.Header) ClientOption {
	return func(c *clientConfig) { c.header = h }
}

// Listen attaches to a Hub at url as its listener and answers every ingest
// frame with the outcome chosen by h. It returns nil when ctx is done or
// the hub closes the connection normally.
func Listen(ctx context.Context, url string, h Handler, opts ...ClientOption) error {
	cfg := &clientConfig{dialer: websocket.DefaultDialer, log: zerolog.Nop()}
	for _, opt := range opts {
		opt(cfg)
	}

	conn, resp, err := cfg.dialer.DialContext(ctx, url, cfg.header)
	if err != nil {
		if resp != nil && resp.StatusCode == http.StatusConflict {
			return fmt.Errorf("dial %s: %w", url, ErrAttached)
		}
		return fmt.Errorf("dial %s: %w", url, err)
	}
	defer conn.Close()
	stop := context.AfterFunc(ctx, func() {
		msg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "")
		_ = conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(defaultWriteWait))
		_ = conn.Close()
	})
	defer stop()
	cfg.log.Info().Str("url", url).Msg("attached as listener")

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			if ctx.Err() != nil || websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				return nil
			}
			return fmt.Errorf("read: %w", err)
		}
		var f types.Frame
		if err := json.Unmarshal(data, &f); err != nil {
			cfg.log.Warn().Err(err).Msg("ignoring malformed frame")
			continue
		}
		switch f.Type {
		case types.FrameIngest:
			outcome := h(ctx, gate.Delivery{ID: f.ID, Payload: f.Payload})
			if !outcome.Resolvable() {
				cfg.log.Debug().Str("cycle", f.ID).Msg("handler left cycle unresolved")
				continue
			}
			reply := types.Frame{Type: types.FrameResolve, ID: f.ID, Outcome: outcome.String()}
			if err := conn.WriteJSON(reply); err != nil {
				if ctx.Err() != nil || errors.Is(err, websocket.ErrCloseSent) {
					return nil
				}
				return fmt.Errorf("write: %w", err)
			}
		case types.FrameError:
			cfg.log.Warn().Str("cycle", f.ID).Str("error", f.Error).Msg("hub rejected frame")
		default:
			cfg.log.Debug().Str("type", f.Type).Msg("ignoring frame")
		}
	}
}
