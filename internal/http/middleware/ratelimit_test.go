package middleware

import (
	"encoding/json"
	"net"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"golang.org/x/time/rate"
)

func TestKeyFuncs(t *testing.T) {
	gin.SetMode(gin.TestMode)
	c, _ := gin.CreateTestContext(httptest.NewRecorder())
	c.Request = httptest.NewRequest(http.MethodGet, "/", nil)
	c.Request.RemoteAddr = net.JoinHostPort("203.0.113.9", "12345")

	if got := KeyByIP()(c); got != "ip:203.0.113.9" {
		t.Fatalf("KeyByIP = %q", got)
	}
	if got := KeyByUserOrIP()(c); got != "ip:203.0.113.9" {
		t.Fatalf("KeyByUserOrIP without user = %q", got)
	}

	c.Set(userIDKey, "u123")
	if got := KeyByUserOrIP()(c); got != "user:u123" {
		t.Fatalf("KeyByUserOrIP with user = %q", got)
	}
	if got := KeyByIP()(c); got != "ip:203.0.113.9" {
		t.Fatalf("KeyByIP must ignore the user, got %q", got)
	}
}

func TestRateLimiter_BucketReuseAndSweep(t *testing.T) {
	rl := NewRateLimiter("test", 2, 0, KeyByIP())
	if rl.burst != 1 {
		t.Fatalf("burst coercion failed, got %d", rl.burst)
	}

	clock := time.Unix(1_700_000_000, 0)
	rl.now = func() time.Time { return clock }
	rl.ttl = time.Minute

	first := rl.limiter("k1")
	if rl.limiter("k1") != first {
		t.Fatalf("expected the same bucket for a live key")
	}

	clock = clock.Add(30 * time.Second)
	_ = rl.limiter("k2")

	// k1 idle for 61s, k2 for 31s: only k1 goes.
	clock = clock.Add(31 * time.Second)
	_ = rl.limiter("k3")

	rl.mu.Lock()
	_, k1 := rl.buckets["k1"]
	_, k2 := rl.buckets["k2"]
	rl.mu.Unlock()
	if k1 || !k2 {
		t.Fatalf("sweep kept k1=%v k2=%v", k1, k2)
	}
	if rl.limiter("k1") == first {
		t.Fatalf("expired key should get a fresh bucket")
	}
}

func TestRateLimiter_Handler_AllowDenyAndExempt(t *testing.T) {
	gin.SetMode(gin.TestMode)

	rl := NewRateLimiter("edge", 0.5, 1, KeyByIP()).Exempt("/health")
	base := testutil.ToFloat64(rateLimited.WithLabelValues("edge"))

	r := gin.New()
	r.Use(func(c *gin.Context) { c.Header(requestIDHeader, "rid-1"); c.Next() })
	r.Use(rl.Handler())
	r.GET("/ok", func(c *gin.Context) { c.String(http.StatusOK, "ok") })
	r.GET("/health", func(c *gin.Context) { c.String(http.StatusOK, "up") })

	w1 := httptest.NewRecorder()
	r.ServeHTTP(w1, httptest.NewRequest(http.MethodGet, "/ok", nil))
	if w1.Code != http.StatusOK {
		t.Fatalf("first request should be allowed, got %d", w1.Code)
	}

	w2 := httptest.NewRecorder()
	r.ServeHTTP(w2, httptest.NewRequest(http.MethodGet, "/ok", nil))
	if w2.Code != http.StatusTooManyRequests {
		t.Fatalf("second request should be rate-limited, got %d", w2.Code)
	}
	// one token every two seconds
	if got := w2.Header().Get("Retry-After"); got != "2" {
		t.Fatalf("expected Retry-After=2, got %q", got)
	}
	var body map[string]any
	if err := json.Unmarshal(w2.Body.Bytes(), &body); err != nil {
		t.Fatalf("invalid JSON body: %v", err)
	}
	if body["code"] != "rate_limited" || body["request_id"] != "rid-1" {
		t.Fatalf("unexpected JSON body: %v", body)
	}
	if got := testutil.ToFloat64(rateLimited.WithLabelValues("edge")); got != base+1 {
		t.Fatalf("rate_limited_total = %v, want %v", got, base+1)
	}

	for i := 0; i < 3; i++ {
		w := httptest.NewRecorder()
		r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/health", nil))
		if w.Code != http.StatusOK {
			t.Fatalf("exempt route limited on attempt %d: %d", i, w.Code)
		}
	}
}

func TestRetryAfter_ZeroRate(t *testing.T) {
	lim := rate.NewLimiter(0, 1)
	lim.Allow()
	if got := retryAfter(lim); got != "1" {
		t.Fatalf("retryAfter = %q", got)
	}
}
