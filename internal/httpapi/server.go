package httpapi

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"ingestd/internal/gate"
	"ingestd/pkg/types"
)

// Service defines the methods required by the HTTP API layer. *gate.Gate
// satisfies it.
type Service interface {
	Emit(ctx context.Context, payload string) (bool, error)
	ResolveCycle(id string, outcome gate.Outcome) error
	Snapshot() gate.Snapshot
	Listening() bool
	Config() gate.Config
}

var startTime = time.Now()

// NewMux builds the API router. listener serves GET /listen (the listener
// WebSocket) and may be nil when no remote listener is offered.
func NewMux(svc Service, listener http.Handler) http.Handler {
	r := chi.NewRouter()
	// Basic middlewares: request id, real ip, recoverer
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	if corsEnabled {
		r.Use(cors.Handler(cors.Options{
			AllowedOrigins: corsOrDefault(corsAllowedOrigins, "*"),
			AllowedMethods: corsOrDefault(corsAllowedMethods, http.MethodGet, http.MethodPost, http.MethodOptions),
			AllowedHeaders: corsOrDefault(corsAllowedHeaders, "Content-Type", "X-Request-Id", "X-Log-Level"),
			MaxAge:         300,
		}))
	}
	r.Use(MetricsMiddleware)
	// Security headers
	r.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("X-Content-Type-Options", "nosniff")
			next.ServeHTTP(w, r)
		})
	})

	r.Group(func(r chi.Router) {
		// Compression for JSON endpoints; the WebSocket route stays outside.
		r.Use(middleware.Compress(5))

		r.Post("/emit", func(w http.ResponseWriter, r *http.Request) { handleEmit(svc, w, r) })
		r.Post("/resolve", func(w http.ResponseWriter, r *http.Request) { handleResolve(svc, w, r) })

		r.Get("/status", func(w http.ResponseWriter, r *http.Request) {
			writeJSON(w, http.StatusOK, statusResponse(svc))
		})

		r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusOK)
			w.Write([]byte("ok"))
		})

		r.Get("/readyz", func(w http.ResponseWriter, r *http.Request) {
			if svc.Listening() {
				w.WriteHeader(http.StatusOK)
				w.Write([]byte("ready"))
				return
			}
			w.WriteHeader(http.StatusServiceUnavailable)
			w.Write([]byte("no listener"))
		})
	})

	if listener != nil {
		r.Method(http.MethodGet, "/listen", listener)
	}

	// Prometheus metrics endpoint
	r.Get("/metrics", promhttp.Handler().ServeHTTP)
	MountSwagger(r)

	return r
}

// decodeJSON enforces the content type and body limit shared by the JSON
// endpoints. It writes the error response itself and reports false then.
func decodeJSON(w http.ResponseWriter, r *http.Request, v any) bool {
	ct := r.Header.Get("Content-Type")
	if ct == "" || !strings.HasPrefix(strings.ToLower(ct), "application/json") {
		writeJSONError(w, http.StatusUnsupportedMediaType, "Content-Type must be application/json")
		return false
	}
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		// If exceeded size, MaxBytesReader may cause an error; still return 400 to avoid size leak details
		writeJSONError(w, http.StatusBadRequest, "invalid JSON body")
		return false
	}
	return true
}

func handleEmit(svc Service, w http.ResponseWriter, r *http.Request) {
	// Payloads are opaque and may be empty; only a missing field is rejected.
	var req struct {
		Payload *string `json:"payload"`
	}
	if !decodeJSON(w, r, &req) {
		return
	}
	if req.Payload == nil {
		writeJSONError(w, http.StatusBadRequest, "payload is required")
		return
	}
	payload := *req.Payload

	lvl := requestLogLevel(r)
	start := time.Now()
	if lvl >= LevelDebug && zlog != nil {
		zlog.Debug().Int("payload_bytes", len(payload)).Str("request_id", middleware.GetReqID(r.Context())).Msg("emit start")
	}

	// Join the request with the server base context so shutdown releases
	// blocked producers too.
	ctx, cancel := joinContexts(r.Context(), serverBaseCtx)
	defer cancel()
	ok, err := svc.Emit(ctx, payload)
	if err != nil && r.Context().Err() != nil {
		// Client went away; nobody to answer.
		return
	}

	status := emitStatus(err)
	if err != nil && serverBaseCtx.Err() != nil {
		status = http.StatusServiceUnavailable
	}
	if status == http.StatusTooManyRequests {
		IncrementBackpressure("emit_in_flight")
	}
	logRequest(r, lvl, "emit end", status, start, err)

	resp := types.EmitResponse{OK: ok, Reason: gate.Reason(err)}
	if err != nil {
		resp.Error = err.Error()
	}
	writeJSON(w, status, resp)
}

func handleResolve(svc Service, w http.ResponseWriter, r *http.Request) {
	var req types.ResolveRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	outcome, err := gate.ParseOutcome(req.Outcome)
	if err != nil {
		writeJSONError(w, http.StatusBadRequest, err.Error())
		return
	}
	start := time.Now()
	err = svc.ResolveCycle(req.ID, outcome)
	status := resolveStatus(err)
	logRequest(r, requestLogLevel(r), "resolve end", status, start, err)
	if err != nil {
		writeJSONError(w, status, err.Error())
		return
	}
	w.WriteHeader(status)
}

func statusResponse(svc Service) types.StatusResponse {
	s := svc.Snapshot()
	now := time.Now()
	return types.StatusResponse{
		Listening:               s.Listening,
		Armed:                   s.Armed,
		CycleID:                 s.CycleID,
		LastCycleID:             s.LastCycleID,
		LastOutcome:             s.LastOutcome.String(),
		EmitsTotal:              s.Emits,
		SuccessesTotal:          s.Successes,
		FailuresTotal:           s.Failures,
		TimeoutsTotal:           s.Timeouts,
		NoListenerTotal:         s.NoListener,
		BusyTotal:               s.Busy,
		ProtocolViolationsTotal: s.ProtocolViolations,
		EmitTimeoutMS:           svc.Config().EmitTimeout.Milliseconds(),
		UptimeSeconds:           int64(now.Sub(startTime).Seconds()),
		ServerTimeUnix:          now.Unix(),
	}
}
