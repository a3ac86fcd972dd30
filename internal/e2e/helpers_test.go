package e2e

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"ingestd/internal/bridge"
	"ingestd/internal/gate"
	"ingestd/internal/httpapi"
	"ingestd/pkg/types"
)

// newServer wires a gate to an in-process Local dispatcher and serves the
// HTTP API over httptest.
func newServer(t *testing.T, cfg gate.Config) (*httptest.Server, *gate.Gate, *bridge.Local) {
	t.Helper()
	local := bridge.NewLocal()
	g := gate.New(local, cfg)
	local.Bind(g)
	srv := httptest.NewServer(httpapi.NewMux(g, nil))
	t.Cleanup(srv.Close)
	return srv, g, local
}

// attach subscribes a local consumer and detaches it at cleanup.
func attach(t *testing.T, local *bridge.Local) (<-chan gate.Delivery, func()) {
	t.Helper()
	ch, detach, err := local.Attach(1)
	if err != nil {
		t.Fatalf("attach: %v", err)
	}
	t.Cleanup(detach)
	return ch, detach
}

func nextDelivery(t *testing.T, ch <-chan gate.Delivery) gate.Delivery {
	t.Helper()
	select {
	case d := <-ch:
		return d
	case <-time.After(2 * time.Second):
		t.Fatal("no delivery")
		return gate.Delivery{}
	}
}

func httpGet(t *testing.T, url string) (*http.Response, []byte) {
	t.Helper()
	req, err := http.NewRequestWithContext(context.Background(), http.MethodGet, url, nil)
	if err != nil {
		t.Fatalf("new req: %v", err)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("do req: %v", err)
	}
	body, _ := io.ReadAll(resp.Body)
	_ = resp.Body.Close()
	return resp, body
}

// httpPostJSON is safe to call from goroutines; failures come back as a
// zero status.
func httpPostJSON(url string, payload []byte) (int, []byte) {
	req, err := http.NewRequestWithContext(context.Background(), http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return 0, nil
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return 0, nil
	}
	body, _ := io.ReadAll(resp.Body)
	_ = resp.Body.Close()
	return resp.StatusCode, body
}

type emitReply struct {
	status int
	resp   types.EmitResponse
}

// emitAsync posts /emit in the background.
func emitAsync(base, payload string) <-chan emitReply {
	out := make(chan emitReply, 1)
	go func() {
		b, _ := json.Marshal(types.EmitRequest{Payload: payload})
		status, body := httpPostJSON(base+"/emit", b)
		var er types.EmitResponse
		_ = json.Unmarshal(body, &er)
		out <- emitReply{status: status, resp: er}
	}()
	return out
}

func waitReply(t *testing.T, ch <-chan emitReply) emitReply {
	t.Helper()
	select {
	case r := <-ch:
		return r
	case <-time.After(3 * time.Second):
		t.Fatal("emit did not return")
		return emitReply{}
	}
}

func resolve(t *testing.T, base, id, outcome string) int {
	t.Helper()
	b, _ := json.Marshal(types.ResolveRequest{ID: id, Outcome: outcome})
	status, _ := httpPostJSON(base+"/resolve", b)
	return status
}
