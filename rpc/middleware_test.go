package rpc

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func okHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
}

func TestRateLimiterBlocksAfterBurst(t *testing.T) {
	limiter := NewRateLimiter(RateLimit{RequestsPerSecond: 1, Burst: 1})
	handler := limiter.middleware(okHandler())

	req := httptest.NewRequest(http.MethodGet, "/v1/accounts/x", nil)
	res := httptest.NewRecorder()
	handler.ServeHTTP(res, req)
	if res.Code != http.StatusOK {
		t.Fatalf("expected first request to succeed, got %d", res.Code)
	}

	res = httptest.NewRecorder()
	handler.ServeHTTP(res, req)
	if res.Code != http.StatusTooManyRequests {
		t.Fatalf("expected second request to be rate limited, got %d", res.Code)
	}
}

func TestRateLimiterSeparatesClients(t *testing.T) {
	limiter := NewRateLimiter(RateLimit{RequestsPerSecond: 1, Burst: 1})
	handler := limiter.middleware(okHandler())

	first := httptest.NewRequest(http.MethodGet, "/v1/accounts/x", nil)
	first.RemoteAddr = "10.0.0.1:4000"
	second := httptest.NewRequest(http.MethodGet, "/v1/accounts/x", nil)
	second.RemoteAddr = "10.0.0.2:4000"

	for _, req := range []*http.Request{first, second} {
		res := httptest.NewRecorder()
		handler.ServeHTTP(res, req)
		if res.Code != http.StatusOK {
			t.Fatalf("expected %s to be admitted, got %d", req.RemoteAddr, res.Code)
		}
	}
}

func TestRateLimiterRefillsAndEvicts(t *testing.T) {
	now := time.Unix(1_700_000_000, 0)
	limiter := NewRateLimiter(RateLimit{RequestsPerSecond: 1, Burst: 1})
	limiter.clockNow = func() time.Time { return now }

	if !limiter.allow("a") {
		t.Fatalf("expected first token")
	}
	if limiter.allow("a") {
		t.Fatalf("expected bucket to be empty")
	}
	now = now.Add(time.Second)
	if !limiter.allow("a") {
		t.Fatalf("expected bucket to refill after one second")
	}
	now = now.Add(limiter.idleTTL + time.Second)
	limiter.allow("b")
	if _, ok := limiter.visitors["a"]; ok {
		t.Fatalf("expected idle client to be evicted")
	}
}

func TestRateLimiterDisabled(t *testing.T) {
	handler := NewRateLimiter(RateLimit{}).middleware(okHandler())
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	for i := 0; i < 10; i++ {
		res := httptest.NewRecorder()
		handler.ServeHTTP(res, req)
		if res.Code != http.StatusOK {
			t.Fatalf("request %d: expected no limiting, got %d", i, res.Code)
		}
	}
}

func TestClientIDIgnoresForwardedHeadersByDefault(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.RemoteAddr = "192.0.2.7:1234"
	req.Header.Set("X-Forwarded-For", "203.0.113.9")
	req.Header.Set("X-Real-IP", "198.51.100.3")
	if got := clientID(req, false); got != "192.0.2.7" {
		t.Fatalf("untrusted headers: got %q", got)
	}
}

func TestClientIDBehindProxy(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.RemoteAddr = "192.0.2.7:1234"
	if got := clientID(req, true); got != "192.0.2.7" {
		t.Fatalf("remote addr: got %q", got)
	}
	req.Header.Set("X-Forwarded-For", "203.0.113.9, 10.0.0.1")
	if got := clientID(req, true); got != "203.0.113.9" {
		t.Fatalf("forwarded: got %q", got)
	}
	req.Header.Set("X-Real-IP", "198.51.100.3")
	if got := clientID(req, true); got != "198.51.100.3" {
		t.Fatalf("real ip: got %q", got)
	}
}

func TestRateLimiterSpoofedHeaderSharesBucket(t *testing.T) {
	limiter := NewRateLimiter(RateLimit{RequestsPerSecond: 1, Burst: 1})
	handler := limiter.middleware(okHandler())

	for i, fwd := range []string{"203.0.113.1", "203.0.113.2"} {
		req := httptest.NewRequest(http.MethodGet, "/v1/accounts/x", nil)
		req.RemoteAddr = "10.0.0.1:4000"
		req.Header.Set("X-Forwarded-For", fwd)
		res := httptest.NewRecorder()
		handler.ServeHTTP(res, req)
		want := http.StatusOK
		if i == 1 {
			want = http.StatusTooManyRequests
		}
		if res.Code != want {
			t.Fatalf("request %d from %s: got %d, want %d", i, fwd, res.Code, want)
		}
	}
}
