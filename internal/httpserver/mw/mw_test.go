package mw

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/MrSnakeDoc/together/internal/logger"
)

var ok = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusNoContent) })

func TestLimiterRefill(t *testing.T) {
	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	l := newLimiter(RateLimitConfig{Limit: 3, Window: time.Minute, now: func() time.Time { return start }})

	for i := 0; i < 3; i++ {
		if allowed, _ := l.allow("1.2.3.4", start); !allowed {
			t.Fatalf("attempt %d should be allowed", i+1)
		}
	}
	allowed, retry := l.allow("1.2.3.4", start)
	if allowed {
		t.Fatal("fourth attempt should be rejected")
	}
	if retry != 20 {
		t.Errorf("retry = %d, want 20 (one token every 20s)", retry)
	}

	if allowed, _ := l.allow("5.6.7.8", start); !allowed {
		t.Error("other clients have their own bucket")
	}
	if allowed, _ := l.allow("1.2.3.4", start.Add(20*time.Second)); !allowed {
		t.Error("one token should be back after 20s")
	}
}

func TestLimiterSweep(t *testing.T) {
	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	l := newLimiter(RateLimitConfig{Limit: 1, Window: time.Minute, now: func() time.Time { return start }})

	l.allow("1.2.3.4", start)
	l.allow("5.6.7.8", start.Add(2*time.Minute))
	if len(l.buckets) != 1 {
		t.Errorf("idle client should be swept, %d buckets left", len(l.buckets))
	}
}

func TestRateLimitMiddleware(t *testing.T) {
	rejected := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	})
	h := RateLimit(RateLimitConfig{Limit: 1, Window: time.Hour, Rejected: rejected})(ok)

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/login", nil))
	if rec.Code != http.StatusNoContent {
		t.Fatalf("first request: got %d", rec.Code)
	}

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/login", nil))
	if rec.Code != http.StatusTeapot {
		t.Errorf("second request should use the rejection handler, got %d", rec.Code)
	}
	if rec.Header().Get("Retry-After") == "" {
		t.Error("Retry-After should be set before the rejection handler runs")
	}
}

func TestMatchHost(t *testing.T) {
	tests := []struct {
		host, pattern string
		expected      bool
	}{
		{"together.example.com", "together.example.com", true},
		{"a.example.com", "*.example.com", true},
		{"example.com", "*.example.com", false},
		{"badexample.com", "*.example.com", false},
		{"other.test", "together.example.com", false},
	}
	for _, tt := range tests {
		if got := matchHost(tt.host, tt.pattern); got != tt.expected {
			t.Errorf("matchHost(%q, %q) = %v, want %v", tt.host, tt.pattern, got, tt.expected)
		}
	}
}

type staticSessions bool

func (s staticSessions) Valid(*http.Request) bool { return bool(s) }

func TestRequireLogin(t *testing.T) {
	rec := httptest.NewRecorder()
	RequireLogin(staticSessions(false), "/login", logger.NewNop())(ok).
		ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/journal", nil))
	if rec.Code != http.StatusSeeOther || rec.Header().Get("Location") != "/login" {
		t.Errorf("anonymous: got %d -> %q", rec.Code, rec.Header().Get("Location"))
	}

	rec = httptest.NewRecorder()
	RequireLogin(staticSessions(true), "/login", logger.NewNop())(ok).
		ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/journal", nil))
	if rec.Code != http.StatusNoContent {
		t.Errorf("logged in: got %d", rec.Code)
	}
}

func TestAllowOnlyCIDRSPassthrough(t *testing.T) {
	rec := httptest.NewRecorder()
	AllowOnlyCIDRS(nil, false, logger.NewNop())(ok).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	if rec.Code != http.StatusNoContent {
		t.Errorf("empty allow-list should pass through, got %d", rec.Code)
	}
}
