package flux

import (
	"context"
	"encoding/json"
	"errors"
	"math"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"fluxgen/internal/domain"
)

func TestNormalizeDimension(t *testing.T) {
	tests := []struct {
		in   int
		want int
	}{
		{in: 250, want: 256},
		{in: 2000, want: 1440},
		{in: 1024, want: 1024},
		{in: 300, want: 288},
		{in: 0, want: 256},
		{in: -500, want: 256},
		{in: 1441, want: 1440},
		{in: 1000, want: 992},
		{in: 1008, want: 1024},
		{in: math.MaxInt, want: 1440},
		{in: math.MaxInt - 5, want: 1440},
		{in: math.MinInt, want: 256},
	}
	for _, tc := range tests {
		got := NormalizeDimension(tc.in)
		if got != tc.want {
			t.Fatalf("NormalizeDimension(%d) = %d, want %d", tc.in, got, tc.want)
		}
		if got%32 != 0 || got < 256 || got > 1440 {
			t.Fatalf("NormalizeDimension(%d) = %d outside contract", tc.in, got)
		}
	}
}

func TestNewClientRequiresAPIKey(t *testing.T) {
	if _, err := NewClient(Options{}); err == nil {
		t.Fatalf("expected error when api key missing")
	}
}

type fakeProvider struct {
	t        *testing.T
	polls    atomic.Int32
	readyAt  int32
	status   string
	submitFn func(w http.ResponseWriter, r *http.Request)
	server   *httptest.Server
}

func newFakeProvider(t *testing.T, readyAt int32) *fakeProvider {
	t.Helper()
	p := &fakeProvider{t: t, readyAt: readyAt, status: "Pending"}
	mux := http.NewServeMux()
	mux.HandleFunc("POST /v1/{model}", func(w http.ResponseWriter, r *http.Request) {
		if p.submitFn != nil {
			p.submitFn(w, r)
			return
		}
		if got := r.Header.Get("x-key"); got != "test-key" {
			t.Errorf("unexpected x-key header: %q", got)
		}
		var payload submitRequest
		if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
			t.Errorf("decode submit: %v", err)
		}
		if payload.Width%32 != 0 || payload.Height%32 != 0 {
			t.Errorf("dimensions not normalized: %dx%d", payload.Width, payload.Height)
		}
		_ = json.NewEncoder(w).Encode(map[string]string{"id": "req-" + r.PathValue("model")})
	})
	mux.HandleFunc("GET /v1/get_result", func(w http.ResponseWriter, r *http.Request) {
		if got := r.Header.Get("x-key"); got != "test-key" {
			t.Errorf("unexpected x-key header: %q", got)
		}
		n := p.polls.Add(1)
		if p.readyAt > 0 && n >= p.readyAt {
			_ = json.NewEncoder(w).Encode(map[string]any{
				"id":     r.URL.Query().Get("id"),
				"status": "Ready",
				"result": map[string]string{"sample": p.server.URL + "/assets/out.jpg"},
			})
			return
		}
		_ = json.NewEncoder(w).Encode(map[string]any{"id": r.URL.Query().Get("id"), "status": p.status})
	})
	mux.HandleFunc("GET /assets/out.jpg", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "image/jpeg")
		_, _ = w.Write([]byte{0xff, 0xd8, 0xff, 0xe0})
	})
	p.server = httptest.NewServer(mux)
	t.Cleanup(p.server.Close)
	return p
}

func newTestClient(t *testing.T, baseURL string, timeout time.Duration) *Client {
	t.Helper()
	client, err := NewClient(Options{
		APIKey:       "test-key",
		BaseURL:      baseURL,
		PollInterval: 5 * time.Millisecond,
		PollTimeout:  timeout,
	})
	if err != nil {
		t.Fatalf("new client: %v", err)
	}
	return client
}

func TestGenerateSubmitsPollsAndFetches(t *testing.T) {
	provider := newFakeProvider(t, 3)
	client := newTestClient(t, provider.server.URL, 0)

	asset, err := client.Generate(context.Background(), Request{Model: "flux-pro-1.1", Prompt: "a cat", Width: 300, Height: 300})
	if err != nil {
		t.Fatalf("Generate error: %v", err)
	}
	if asset.ContentType != "image/jpeg" {
		t.Fatalf("content type = %q", asset.ContentType)
	}
	if len(asset.Data) != 4 {
		t.Fatalf("unexpected data length %d", len(asset.Data))
	}
	if got := provider.polls.Load(); got != 3 {
		t.Fatalf("polls = %d, want 3", got)
	}
}

func TestSubmitUsesModelInPath(t *testing.T) {
	provider := newFakeProvider(t, 1)
	client := newTestClient(t, provider.server.URL, 0)

	handle, err := client.Submit(context.Background(), Request{Model: "flux-dev", Prompt: "x", Width: 1024, Height: 1024})
	if err != nil {
		t.Fatalf("Submit error: %v", err)
	}
	if handle != "req-flux-dev" {
		t.Fatalf("handle = %q", handle)
	}
}

func TestSubmitMissingIDIsProtocolError(t *testing.T) {
	provider := newFakeProvider(t, 1)
	provider.submitFn = func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{}`))
	}
	client := newTestClient(t, provider.server.URL, 0)

	_, err := client.Submit(context.Background(), Request{Model: "flux-pro", Prompt: "x"})
	if !errors.Is(err, domain.ErrProtocol) {
		t.Fatalf("expected protocol error, got %v", err)
	}
}

func TestSubmitHTTPErrorIsRemoteRequestError(t *testing.T) {
	provider := newFakeProvider(t, 1)
	provider.submitFn = func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"detail":"bad key"}`, http.StatusForbidden)
	}
	client := newTestClient(t, provider.server.URL, 0)

	_, err := client.Submit(context.Background(), Request{Model: "flux-pro", Prompt: "x"})
	if !errors.Is(err, domain.ErrRemoteRequest) {
		t.Fatalf("expected remote request error, got %v", err)
	}
}

func TestAwaitResultPollFailureIsTerminal(t *testing.T) {
	var polls atomic.Int32
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		polls.Add(1)
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer ts.Close()
	client := newTestClient(t, ts.URL, 0)

	_, err := client.AwaitResult(context.Background(), "req-1")
	if !errors.Is(err, domain.ErrRemoteRequest) {
		t.Fatalf("expected remote request error, got %v", err)
	}
	if got := polls.Load(); got != 1 {
		t.Fatalf("polls = %d, want exactly 1", got)
	}
}

func TestAwaitResultProviderFailureStatus(t *testing.T) {
	provider := newFakeProvider(t, 0)
	provider.status = "Content Moderated"
	client := newTestClient(t, provider.server.URL, 0)

	_, err := client.AwaitResult(context.Background(), "req-1")
	if !errors.Is(err, domain.ErrProtocol) {
		t.Fatalf("expected protocol error, got %v", err)
	}
}

func TestAwaitResultTimeout(t *testing.T) {
	provider := newFakeProvider(t, 0)
	client := newTestClient(t, provider.server.URL, 50*time.Millisecond)

	_, err := client.AwaitResult(context.Background(), "req-1")
	if !errors.Is(err, domain.ErrRemoteRequest) {
		t.Fatalf("expected remote request error, got %v", err)
	}
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected deadline exceeded cause, got %v", err)
	}
	if provider.polls.Load() < 2 {
		t.Fatalf("expected repeated polling before timeout")
	}
}

func TestFetchAssetStatusError(t *testing.T) {
	ts := httptest.NewServer(http.NotFoundHandler())
	defer ts.Close()
	client := newTestClient(t, ts.URL, 0)

	_, _, err := client.FetchAsset(context.Background(), ts.URL+"/missing.jpg")
	if !errors.Is(err, domain.ErrRemoteRequest) {
		t.Fatalf("expected remote request error, got %v", err)
	}
}
