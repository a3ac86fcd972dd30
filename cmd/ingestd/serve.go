package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os/signal"
	"slices"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"ingestd/internal/bridge"
	"ingestd/internal/config"
	"ingestd/internal/gate"
	"ingestd/internal/httpapi"
)

var errShuttingDown = errors.New("server shutting down")

const shutdownTimeout = 5 * time.Second

// serveSettings is the merged result of defaults, config file and flags.
type serveSettings struct {
	Addr           string
	EmitTimeout    time.Duration
	AcquireTimeout time.Duration
	PingInterval   time.Duration
	MaxBodyBytes   int64

	CORSEnabled bool
	CORSOrigins []string
	CORSMethods []string
	CORSHeaders []string
}

type serveFlags struct {
	addr           string
	emitTimeout    time.Duration
	acquireTimeout time.Duration
	pingInterval   time.Duration
	maxBodyBytes   int64
	corsEnabled    bool
	corsOrigins    string
	corsMethods    string
	corsHeaders    string
}

func newServeCmd(opts *rootOptions) *cobra.Command {
	f := &serveFlags{}
	cmd := &cobra.Command{
		Use:     "serve",
		Short:   "Run the HTTP API and listener endpoint",
		Example: "  ingestd serve --addr :8080 --emit-timeout 10s",
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := resolveServeSettings(cmd, opts.file, f)
			if err != nil {
				return err
			}
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			return runServe(ctx, s, opts.log)
		},
	}
	fl := cmd.Flags()
	fl.StringVar(&f.addr, "addr", envStr("INGESTD_ADDR", defaultAddr), "HTTP listen address (defaults INGESTD_ADDR or :8080)")
	fl.DurationVar(&f.emitTimeout, "emit-timeout", 0, "Maximum time an emit waits for its outcome (0 = 30s)")
	fl.DurationVar(&f.acquireTimeout, "acquire-timeout", 0, "Time a concurrent emit waits for the gate before failing busy (0 = fail at once)")
	fl.DurationVar(&f.pingInterval, "ping-interval", 0, "Listener keepalive ping period (0 = 54s)")
	fl.Int64Var(&f.maxBodyBytes, "max-body-bytes", 0, "Maximum JSON request body size (0 = 1MiB)")
	fl.BoolVar(&f.corsEnabled, "cors-enabled", false, "Enable CORS")
	fl.StringVar(&f.corsOrigins, "cors-origins", "", "Comma separated allowed origins")
	fl.StringVar(&f.corsMethods, "cors-methods", "", "Comma separated allowed methods")
	fl.StringVar(&f.corsHeaders, "cors-headers", "", "Comma separated allowed headers")
	return cmd
}

// resolveServeSettings applies the config file over defaults and then any
// flag set explicitly on the command line.
func resolveServeSettings(cmd *cobra.Command, file config.Config, f *serveFlags) (serveSettings, error) {
	s := serveSettings{Addr: f.addr}
	var err error
	if file.Addr != "" {
		s.Addr = file.Addr
	}
	if s.EmitTimeout, err = config.Duration(file.EmitTimeout); err != nil {
		return s, fmt.Errorf("emit_timeout: %w", err)
	}
	if s.AcquireTimeout, err = config.Duration(file.AcquireTimeout); err != nil {
		return s, fmt.Errorf("acquire_timeout: %w", err)
	}
	if s.PingInterval, err = config.Duration(file.PingInterval); err != nil {
		return s, fmt.Errorf("ping_interval: %w", err)
	}
	s.MaxBodyBytes = file.MaxBodyBytes
	s.CORSEnabled = file.CORSEnabled
	s.CORSOrigins = file.CORSAllowedOrigins
	s.CORSMethods = file.CORSAllowedMethods
	s.CORSHeaders = file.CORSAllowedHeaders

	changed := cmd.Flags().Changed
	if changed("addr") {
		s.Addr = f.addr
	}
	if changed("emit-timeout") {
		s.EmitTimeout = f.emitTimeout
	}
	if changed("acquire-timeout") {
		s.AcquireTimeout = f.acquireTimeout
	}
	if changed("ping-interval") {
		s.PingInterval = f.pingInterval
	}
	if changed("max-body-bytes") {
		s.MaxBodyBytes = f.maxBodyBytes
	}
	if changed("cors-enabled") {
		s.CORSEnabled = f.corsEnabled
	}
	if changed("cors-origins") {
		s.CORSOrigins = splitCSV(f.corsOrigins)
	}
	if changed("cors-methods") {
		s.CORSMethods = splitCSV(f.corsMethods)
	}
	if changed("cors-headers") {
		s.CORSHeaders = splitCSV(f.corsHeaders)
	}
	return s, nil
}

// hubOptions derives the listener endpoint options; browser listeners are
// accepted only from origins CORS allows.
func hubOptions(s serveSettings, log zerolog.Logger) []bridge.HubOption {
	opts := []bridge.HubOption{bridge.WithHubLogger(log), bridge.WithPingInterval(s.PingInterval)}
	if s.MaxBodyBytes > 0 {
		opts = append(opts, bridge.WithReadLimit(s.MaxBodyBytes))
	}
	if s.CORSEnabled {
		if len(s.CORSOrigins) == 0 || slices.Contains(s.CORSOrigins, "*") {
			opts = append(opts, bridge.WithAllowAnyOrigin())
		} else {
			allowed := s.CORSOrigins
			opts = append(opts, bridge.WithOriginCheck(func(r *http.Request) bool {
				o := r.Header.Get("Origin")
				return o == "" || slices.Contains(allowed, o)
			}))
		}
	}
	return opts
}

func runServe(ctx context.Context, s serveSettings, log zerolog.Logger) error {
	hub := bridge.NewHub(hubOptions(s, log)...)
	g := gate.New(hub, gate.Config{EmitTimeout: s.EmitTimeout, AcquireTimeout: s.AcquireTimeout}, gate.WithLogger(log))
	hub.Bind(g)

	httpapi.SetLogger(log)
	httpapi.SetMaxBodyBytes(s.MaxBodyBytes)
	httpapi.SetCORSOptions(s.CORSEnabled, s.CORSOrigins, s.CORSMethods, s.CORSHeaders)
	baseCtx, cancelBase := context.WithCancelCause(context.Background())
	defer cancelBase(nil)
	httpapi.SetBaseContext(baseCtx)

	ln, err := net.Listen("tcp", s.Addr)
	if err != nil {
		return fmt.Errorf("listen %s: %w", s.Addr, err)
	}
	// No WriteTimeout: emit responses block until the cycle resolves.
	srv := &http.Server{
		Handler:           httpapi.NewMux(g, hub),
		ReadHeaderTimeout: 10 * time.Second,
		IdleTimeout:       2 * time.Minute,
	}
	errCh := make(chan error, 1)
	go func() {
		log.Info().Str("addr", ln.Addr().String()).Dur("emit_timeout", g.Config().EmitTimeout).Msg("ingestd listening")
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("server error: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	log.Info().Msg("shutting down")
	cancelBase(errShuttingDown)
	if err := hub.Close(); err != nil {
		log.Warn().Err(err).Msg("close listener")
	}
	sctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(sctx); err != nil {
		log.Error().Err(err).Msg("graceful shutdown error")
		return err
	}
	return nil
}
