package middleware

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

type mockLimiter struct {
	allow bool
	retry time.Duration
	err   error
}

func (m mockLimiter) Allow(context.Context, string, int, time.Duration) (bool, time.Duration, error) {
	return m.allow, m.retry, m.err
}

type recordingLimiter struct {
	lastKey string
}

func (r *recordingLimiter) Allow(_ context.Context, key string, _ int, _ time.Duration) (bool, time.Duration, error) {
	r.lastKey = key
	return true, 0, nil
}

func serveLimited(t *testing.T, rl *RateLimiter, remoteAddr string) *httptest.ResponseRecorder {
	t.Helper()
	h := rl.Middleware()(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	req := httptest.NewRequest(http.MethodPost, "/auth/v1/token", nil)
	req.RemoteAddr = remoteAddr
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	return rr
}

func TestDistributedRateLimiterFailOpenOnBackendError(t *testing.T) {
	rl := NewDistributedRateLimiter(mockLimiter{err: errors.New("redis down")}, 10, time.Minute, FailOpen, "auth")
	if rr := serveLimited(t, rl, "10.0.0.1:1111"); rr.Code != http.StatusOK {
		t.Fatalf("expected fail-open to allow request, got %d", rr.Code)
	}
}

func TestDistributedRateLimiterFailClosedOnBackendError(t *testing.T) {
	rl := NewDistributedRateLimiter(mockLimiter{err: errors.New("redis down")}, 10, time.Minute, FailClosed, "auth")
	rr := serveLimited(t, rl, "10.0.0.1:1111")
	if rr.Code != http.StatusTooManyRequests {
		t.Fatalf("expected fail-closed to reject request, got %d", rr.Code)
	}
	if rr.Header().Get("Retry-After") != "60" {
		t.Fatalf("expected Retry-After 60, got %q", rr.Header().Get("Retry-After"))
	}
}

func TestRateLimiterRejectionUsesIdentityErrorEnvelope(t *testing.T) {
	rl := NewDistributedRateLimiter(mockLimiter{allow: false, retry: 1500 * time.Millisecond}, 1, time.Minute, FailClosed, "auth")
	rr := serveLimited(t, rl, "10.0.0.1:1111")
	if rr.Code != http.StatusTooManyRequests {
		t.Fatalf("expected 429, got %d", rr.Code)
	}
	var body map[string]any
	if err := json.Unmarshal(rr.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body["error_code"] != "over_request_rate_limit" {
		t.Fatalf("unexpected body %v", body)
	}
	if rr.Header().Get("Retry-After") != "2" {
		t.Fatalf("expected Retry-After 2, got %q", rr.Header().Get("Retry-After"))
	}
}

func TestRateLimiterKeysByScopeAndClientIP(t *testing.T) {
	rec := &recordingLimiter{}
	rl := NewDistributedRateLimiter(rec, 10, time.Minute, FailClosed, "")
	serveLimited(t, rl, "192.0.2.7:5555")
	if rec.lastKey != "auth:192.0.2.7" {
		t.Fatalf("unexpected limiter key %q", rec.lastKey)
	}
}

func TestLocalFixedWindowLimiter(t *testing.T) {
	rl := NewRateLimiter(2, time.Minute)
	for i := 0; i < 2; i++ {
		if rr := serveLimited(t, rl, "10.0.0.9:1"); rr.Code != http.StatusOK {
			t.Fatalf("request %d: expected 200, got %d", i, rr.Code)
		}
	}
	if rr := serveLimited(t, rl, "10.0.0.9:1"); rr.Code != http.StatusTooManyRequests {
		t.Fatalf("expected third request limited, got %d", rr.Code)
	}
	if rr := serveLimited(t, rl, "10.0.0.10:1"); rr.Code != http.StatusOK {
		t.Fatalf("expected other client allowed, got %d", rr.Code)
	}
}

func TestRetryAfterHeader(t *testing.T) {
	cases := map[time.Duration]string{
		0:                       "1",
		-time.Second:            "1",
		200 * time.Millisecond:  "1",
		1500 * time.Millisecond: "2",
		30 * time.Second:        "30",
	}
	for d, want := range cases {
		if got := retryAfterHeader(d); got != want {
			t.Fatalf("retryAfterHeader(%v) = %q, want %q", d, got, want)
		}
	}
}
