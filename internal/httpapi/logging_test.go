package httpapi

import (
	"bytes"
	"errors"
	"log"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"
)

func TestParseLevel(t *testing.T) {
	cases := map[string]LogLevel{
		"":      LevelOff,
		"off":   LevelOff,
		"error": LevelError,
		"info":  LevelInfo,
		"debug": LevelDebug,
		"weird": LevelInfo, // default
	}
	for in, want := range cases {
		if got := parseLevel(in); got != want {
			t.Fatalf("parseLevel(%q) = %v, want %v", in, got, want)
		}
	}
}

func TestRequestLogLevel_Overrides(t *testing.T) {
	r := httptest.NewRequest("GET", "/x?log=debug", nil)
	if got := requestLogLevel(r); got != LevelDebug {
		t.Fatalf("query override failed: %v", got)
	}
	r = httptest.NewRequest("GET", "/x?log=1", nil)
	if got := requestLogLevel(r); got != LevelDebug {
		t.Fatalf("shorthand query override failed: %v", got)
	}
	r = httptest.NewRequest("GET", "/x", nil)
	r.Header.Set("X-Log-Level", "error")
	if got := requestLogLevel(r); got != LevelError {
		t.Fatalf("header override failed: %v", got)
	}
}

func TestLogRequest_StdlibFallback(t *testing.T) {
	var buf bytes.Buffer
	orig := log.Writer()
	defer log.SetOutput(orig)
	log.SetOutput(&buf)

	r := httptest.NewRequest(http.MethodPost, "/emit", nil)
	logRequest(r, LevelInfo, "emit end", http.StatusGatewayTimeout, time.Now(), errors.New("timed out"))
	logRequest(r, LevelOff, "emit end", http.StatusOK, time.Now(), nil)

	out := buf.String()
	if !strings.Contains(out, "emit end path=/emit status=504") || !strings.Contains(out, "err=timed out") {
		t.Fatalf("missing logged line: %q", out)
	}
	if strings.Count(out, "emit end") != 1 {
		t.Fatalf("LevelOff request was logged: %q", out)
	}
}

func TestLogRequest_ErrorsLoggedAtErrorLevel(t *testing.T) {
	var buf bytes.Buffer
	SetLogger(zerolog.New(&buf))
	defer func() { zlog = nil }()

	r := httptest.NewRequest(http.MethodPost, "/emit", nil)
	logRequest(r, LevelError, "emit end", http.StatusOK, time.Now(), nil)
	if buf.Len() != 0 {
		t.Fatalf("2xx logged at LevelError: %q", buf.String())
	}
	logRequest(r, LevelError, "emit end", http.StatusBadGateway, time.Now(), errors.New("listener gone"))
	out := buf.String()
	if !strings.Contains(out, `"level":"error"`) || !strings.Contains(out, `"status":502`) || !strings.Contains(out, "listener gone") {
		t.Fatalf("unexpected log: %q", out)
	}
}
