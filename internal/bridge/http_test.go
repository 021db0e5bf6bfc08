package bridge

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/formlab/modelbridge/internal/commands"
	"github.com/formlab/modelbridge/internal/host"
	"github.com/formlab/modelbridge/internal/protocol"
	"github.com/formlab/modelbridge/internal/testutil/testlog"
)

// startHTTPTransport wires the transport around a bridge whose scheduler
// is drained by a background loop. The TCP listener uses an ephemeral
// port so the process-wide guard stays satisfied.
func startHTTPTransport(t *testing.T) *HTTPTransport {
	t.Helper()
	doc := host.NewDocument()
	b := New(Config{ListenAddr: "127.0.0.1:0"}, commands.NewRegistry(doc))
	if err := b.Start(); err != nil {
		t.Fatalf("start bridge: %v", err)
	}
	t.Cleanup(func() { _ = b.Stop() })

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	loop := host.NewLoop(5 * time.Millisecond)
	loop.OnTurn(b.Tick)
	go func() { _ = loop.Run(ctx) }()

	return NewHTTPTransport(b, nil)
}

func TestHTTPHealthAndReady(t *testing.T) {
	testlog.Start(t)
	transport := startHTTPTransport(t)

	w := httptest.NewRecorder()
	transport.Router().ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/health", nil))
	if w.Code != http.StatusOK {
		t.Fatalf("health returned %d", w.Code)
	}

	w = httptest.NewRecorder()
	transport.Router().ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/ready", nil))
	if w.Code != http.StatusOK {
		t.Fatalf("ready returned %d", w.Code)
	}
}

func TestHTTPCommandRoundTrip(t *testing.T) {
	testlog.Start(t)
	transport := startHTTPTransport(t)

	body := `{"name": "get_layers"}`
	req := httptest.NewRequest(http.MethodPost, "/command", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	transport.Router().ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("command returned %d: %s", w.Code, w.Body.String())
	}
	var resp protocol.ResponseEnv
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp.Status != protocol.StatusSuccess {
		t.Fatalf("expected success, got %+v", resp)
	}
}

func TestHTTPCommandRejectsMalformedBody(t *testing.T) {
	testlog.Start(t)
	transport := startHTTPTransport(t)

	req := httptest.NewRequest(http.MethodPost, "/command", strings.NewReader("not json"))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	transport.Router().ServeHTTP(w, req)

	if w.Code != http.StatusBadRequest {
		t.Fatalf("malformed body returned %d", w.Code)
	}
	var resp protocol.ResponseEnv
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp.Error == nil || resp.Error.Kind != protocol.KindDecode {
		t.Fatalf("expected DecodeError, got %+v", resp)
	}
}

func TestHTTPCommandRejectsNamelessEnvelope(t *testing.T) {
	testlog.Start(t)
	transport := startHTTPTransport(t)

	req := httptest.NewRequest(http.MethodPost, "/command", strings.NewReader(`{"params": {}}`))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	transport.Router().ServeHTTP(w, req)

	if w.Code != http.StatusBadRequest {
		t.Fatalf("nameless envelope returned %d", w.Code)
	}
}
