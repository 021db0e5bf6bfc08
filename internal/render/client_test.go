package render

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/formlab/modelbridge/internal/backoff"
	"github.com/formlab/modelbridge/internal/testutil/testlog"
)

func fastConfig(token, baseURL string) Config {
	return Config{
		Token:       token,
		BaseURL:     baseURL,
		PollTimeout: 2 * time.Second,
		Backoff: backoff.Config{
			InitialDelay: 5 * time.Millisecond,
			Multiplier:   1.0,
			MaxDelay:     5 * time.Millisecond,
		},
	}
}

// fakeAPI serves a prediction that stays "processing" for polls-1 gets,
// then lands on the terminal payload.
func fakeAPI(t *testing.T, polls int32, terminal map[string]any) *httptest.Server {
	t.Helper()
	var gets int32
	var srv *httptest.Server
	srv = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.Header.Get("Authorization"); got != "Bearer test-token" {
			t.Errorf("unexpected auth header: %q", got)
		}
		switch {
		case r.Method == http.MethodPost && r.URL.Path == "/predictions":
			_ = json.NewEncoder(w).Encode(map[string]any{
				"id":     "pred-1",
				"status": "starting",
				"urls":   map[string]any{"get": srv.URL + "/predictions/pred-1"},
			})
		case r.Method == http.MethodGet:
			if atomic.AddInt32(&gets, 1) < polls {
				_ = json.NewEncoder(w).Encode(map[string]any{
					"id":     "pred-1",
					"status": "processing",
					"urls":   map[string]any{"get": srv.URL + "/predictions/pred-1"},
				})
				return
			}
			_ = json.NewEncoder(w).Encode(terminal)
		default:
			http.NotFound(w, r)
		}
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestNewClientRequiresToken(t *testing.T) {
	testlog.Start(t)
	if _, err := NewClient(Config{}); !errors.Is(err, ErrNoToken) {
		t.Fatalf("tokenless client accepted: %v", err)
	}
	if _, err := NewClient(Config{Token: "   "}); !errors.Is(err, ErrNoToken) {
		t.Fatalf("blank token accepted: %v", err)
	}
}

func TestRenderPollsToSuccess(t *testing.T) {
	testlog.Start(t)
	srv := fakeAPI(t, 3, map[string]any{
		"id":     "pred-1",
		"status": "succeeded",
		"output": []string{"https://example.com/out.png"},
	})

	client, err := NewClient(fastConfig("test-token", srv.URL))
	if err != nil {
		t.Fatalf("new client: %v", err)
	}
	result, err := client.Render(context.Background(), Request{
		Prompt: "warm sketch",
		Image:  "data:image/png;base64,xxxx",
	})
	if err != nil {
		t.Fatalf("render: %v", err)
	}
	if result.URL() != "https://example.com/out.png" {
		t.Fatalf("unexpected url: %q", result.URL())
	}
	if result.ID != "pred-1" {
		t.Fatalf("unexpected id: %q", result.ID)
	}
}

func TestRenderSingleStringOutput(t *testing.T) {
	testlog.Start(t)
	srv := fakeAPI(t, 1, map[string]any{
		"id":     "pred-1",
		"status": "succeeded",
		"output": "https://example.com/single.png",
	})

	client, err := NewClient(fastConfig("test-token", srv.URL))
	if err != nil {
		t.Fatalf("new client: %v", err)
	}
	result, err := client.Render(context.Background(), Request{Prompt: "p", Image: "i"})
	if err != nil {
		t.Fatalf("render: %v", err)
	}
	if result.URL() != "https://example.com/single.png" {
		t.Fatalf("unexpected url: %q", result.URL())
	}
}

func TestRenderSurfacesFailure(t *testing.T) {
	testlog.Start(t)
	msg := "NSFW content detected"
	srv := fakeAPI(t, 1, map[string]any{
		"id":     "pred-1",
		"status": "failed",
		"error":  msg,
	})

	client, err := NewClient(fastConfig("test-token", srv.URL))
	if err != nil {
		t.Fatalf("new client: %v", err)
	}
	_, err = client.Render(context.Background(), Request{Prompt: "p", Image: "i"})
	if !errors.Is(err, ErrRenderFailed) {
		t.Fatalf("expected ErrRenderFailed, got %v", err)
	}
	if !strings.Contains(err.Error(), msg) {
		t.Fatalf("api error message lost: %v", err)
	}
}

func TestRenderValidatesRequest(t *testing.T) {
	testlog.Start(t)
	client, err := NewClient(fastConfig("test-token", "http://127.0.0.1:1"))
	if err != nil {
		t.Fatalf("new client: %v", err)
	}
	if _, err := client.Render(context.Background(), Request{Image: "i"}); err == nil {
		t.Fatalf("empty prompt accepted")
	}
	if _, err := client.Render(context.Background(), Request{Prompt: "p"}); err == nil {
		t.Fatalf("empty image accepted")
	}
}

func TestRenderAPIRejection(t *testing.T) {
	testlog.Start(t)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"detail": "invalid token"}`, http.StatusUnauthorized)
	}))
	t.Cleanup(srv.Close)

	client, err := NewClient(fastConfig("test-token", srv.URL))
	if err != nil {
		t.Fatalf("new client: %v", err)
	}
	_, err = client.Render(context.Background(), Request{Prompt: "p", Image: "i"})
	if err == nil || !strings.Contains(err.Error(), "401") {
		t.Fatalf("expected status error, got %v", err)
	}
}
