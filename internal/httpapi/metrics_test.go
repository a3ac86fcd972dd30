package httpapi

import (
	"bytes"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/prometheus/client_golang/prometheus/testutil"

	"ingestd/internal/gate"
)

func scrape(t *testing.T) []byte {
	t.Helper()
	mrr := httptest.NewRecorder()
	promhttp.Handler().ServeHTTP(mrr, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	if mrr.Code != http.StatusOK {
		t.Fatalf("/metrics status=%d", mrr.Code)
	}
	return mrr.Body.Bytes()
}

// TestMetricsMiddleware_UsesRoutePattern ensures the metrics middleware labels
// by the chi route pattern instead of the raw URL path.
func TestMetricsMiddleware_UsesRoutePattern(t *testing.T) {
	r := chi.NewRouter()
	r.Use(MetricsMiddleware)
	r.Post("/cycles/{id}", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusAccepted)
	})

	rr := httptest.NewRecorder()
	r.ServeHTTP(rr, httptest.NewRequest(http.MethodPost, "/cycles/abc-123", nil))
	if rr.Code != http.StatusAccepted {
		t.Fatalf("expected 202, got %d", rr.Code)
	}

	body := scrape(t)
	if !bytes.Contains(body, []byte("ingestd_http_requests_total")) || !bytes.Contains(body, []byte(`path="/cycles/{id}"`)) {
		t.Fatalf("expected route pattern label in metrics; got: %q", string(body[:min(len(body), 400)]))
	}
	if bytes.Contains(body, []byte("abc-123")) {
		t.Fatal("raw path leaked into metric labels")
	}
}

func TestStatusRecorder_Hijack(t *testing.T) {
	// httptest.ResponseRecorder cannot be hijacked.
	sr := &statusRecorder{ResponseWriter: httptest.NewRecorder(), status: 200}
	if _, _, err := sr.Hijack(); err == nil {
		t.Fatal("expected hijack error for non-hijackable writer")
	}
	if sr.Unwrap() == nil {
		t.Fatal("Unwrap returned nil")
	}
}

func TestIncrementBackpressure_IncrementsCounter(t *testing.T) {
	baseline := testutil.ToFloat64(backpressureTotal.WithLabelValues("emit_in_flight"))
	IncrementBackpressure("emit_in_flight")
	IncrementBackpressure("emit_in_flight")
	if got := testutil.ToFloat64(backpressureTotal.WithLabelValues("emit_in_flight")); got < baseline+2 {
		t.Fatalf("expected backpressure counter >= %v, got %v", baseline+2, got)
	}

	before := testutil.ToFloat64(backpressureTotal.WithLabelValues("unspecified"))
	IncrementBackpressure("")
	if after := testutil.ToFloat64(backpressureTotal.WithLabelValues("unspecified")); after < before+1 {
		t.Fatalf("expected unspecified reason to increment: before=%v after=%v", before, after)
	}
}

func TestEmitBusy_CountsBackpressure(t *testing.T) {
	before := testutil.ToFloat64(backpressureTotal.WithLabelValues("emit_in_flight"))
	svc := &mockService{emitErr: gate.ErrBusy}
	if w := postJSON(NewMux(svc, nil), "/emit", `{"payload":"p"}`); w.Code != http.StatusTooManyRequests {
		t.Fatalf("status=%d", w.Code)
	}
	if after := testutil.ToFloat64(backpressureTotal.WithLabelValues("emit_in_flight")); after < before+1 {
		t.Fatalf("busy emit not counted: before=%v after=%v", before, after)
	}
}
