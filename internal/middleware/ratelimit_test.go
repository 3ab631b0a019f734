package middleware

import (
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

func TestClientIPForRateLimit(t *testing.T) {
	v6 := net.JoinHostPort("2001:db8::2", "443")
	tests := map[string]struct {
		forwarded, remote, want string
	}{
		"first valid forwarded ip": {" 203.0.113.1 , 198.51.100.2 ", "198.51.100.10:1234", "203.0.113.1"},
		"skips garbage entries":    {"unknown, 203.0.113.9", "198.51.100.10:1234", "203.0.113.9"},
		"no forwarded header":      {"", "198.51.100.10:1234", "198.51.100.10"},
		"ipv6 remote host":         {"bogus", v6, "2001:db8::2"},
		"remote without port":      {"", "203.0.113.1", "203.0.113.1"},
	}
	for name, tc := range tests {
		t.Run(name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPost, "/generate", nil)
			req.RemoteAddr = tc.remote
			if tc.forwarded != "" {
				req.Header.Set("X-Forwarded-For", tc.forwarded)
			}
			if got := clientIPForRateLimit(req); got != tc.want {
				t.Fatalf("got %q, want %q", got, tc.want)
			}
		})
	}
}

func TestRateLimitPerClient(t *testing.T) {
	handler := RateLimit(2, time.Minute)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusAccepted)
	}))

	send := func(remote string) int {
		req := httptest.NewRequest(http.MethodPost, "/generate", nil)
		req.RemoteAddr = remote
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)
		return rec.Code
	}

	for i := 0; i < 2; i++ {
		if code := send("198.51.100.10:1234"); code != http.StatusAccepted {
			t.Fatalf("request %d: status %d, want 202", i, code)
		}
	}
	req := httptest.NewRequest(http.MethodPost, "/generate", nil)
	req.RemoteAddr = "198.51.100.10:5678"
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	if rec.Code != http.StatusTooManyRequests {
		t.Fatalf("third request: status %d, want 429", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), `"rate_limited"`) || rec.Header().Get("Content-Type") != "application/json" {
		t.Fatalf("unexpected 429 response: %q", rec.Body.String())
	}
	if code := send("203.0.113.7:1234"); code != http.StatusAccepted {
		t.Fatalf("other client: status %d, want 202", code)
	}
}

func TestRateLimitDisabled(t *testing.T) {
	handler := RateLimit(0, time.Minute)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	for i := 0; i < 10; i++ {
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
		if rec.Code != http.StatusOK {
			t.Fatalf("status %d with limiting disabled", rec.Code)
		}
	}
}
