package middleware

import (
	"math"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"golang.org/x/time/rate"
)

// defaultBucketTTL is how long an idle bucket is kept before a sweep drops it.
const defaultBucketTTL = 10 * time.Minute

var rateLimited = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: metricsNamespace,
		Subsystem: metricsSubsystem,
		Name:      "rate_limited_total",
		Help:      "Requests rejected with 429, by limiter scope.",
	},
	[]string{"scope"},
)

func init() { prometheus.MustRegister(rateLimited) }

// keyFunc maps a request to its bucket identity.
type keyFunc func(*gin.Context) string

// KeyByIP buckets by client address. It is the edge limiter's key: it runs
// before authentication, so no user is known yet.
func KeyByIP() keyFunc {
	return func(c *gin.Context) string { return "ip:" + c.ClientIP() }
}

// KeyByUserOrIP buckets by the authenticated user stored by BearerAuth and
// falls back to the client address. Prefixes keep the namespaces apart.
func KeyByUserOrIP() keyFunc {
	return func(c *gin.Context) string {
		if uid := UserID(c); uid != "" {
			return "user:" + uid
		}
		return "ip:" + c.ClientIP()
	}
}

type bucket struct {
	lim      *rate.Limiter
	lastSeen time.Time
}

// RateLimiter is a process-local, per-key token bucket limiter. Idle buckets
// are swept lazily, at most once per TTL, on the request path. It is safe
// for concurrent use.
type RateLimiter struct {
	scope string
	rps   rate.Limit
	burst int
	keyFn keyFunc
	ttl   time.Duration
	now   func() time.Time

	mu        sync.Mutex
	buckets   map[string]*bucket
	lastSweep time.Time
	exempt    map[string]struct{}
}

// NewRateLimiter builds a limiter granting rps tokens per second with the
// given burst (coerced to at least 1). scope labels the rejection metric.
func NewRateLimiter(scope string, rps float64, burst int, keyFn keyFunc) *RateLimiter {
	if burst <= 0 {
		burst = 1
	}
	return &RateLimiter{
		scope:   scope,
		rps:     rate.Limit(rps),
		burst:   burst,
		keyFn:   keyFn,
		ttl:     defaultBucketTTL,
		now:     time.Now,
		buckets: make(map[string]*bucket),
		exempt:  make(map[string]struct{}),
	}
}

// Exempt excludes registered route patterns, such as probes and the metrics
// scrape. It returns rl for chaining.
func (rl *RateLimiter) Exempt(paths ...string) *RateLimiter {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	for _, p := range paths {
		rl.exempt[p] = struct{}{}
	}
	return rl
}

// limiter returns the bucket for key, creating it on first use. Stale
// buckets are swept before the lookup so an expired key starts fresh.
func (rl *RateLimiter) limiter(key string) *rate.Limiter {
	now := rl.now()

	rl.mu.Lock()
	defer rl.mu.Unlock()

	if now.Sub(rl.lastSweep) >= rl.ttl {
		for k, b := range rl.buckets {
			if now.Sub(b.lastSeen) >= rl.ttl {
				delete(rl.buckets, k)
			}
		}
		rl.lastSweep = now
	}

	b, ok := rl.buckets[key]
	if !ok {
		b = &bucket{lim: rate.NewLimiter(rl.rps, rl.burst)}
		rl.buckets[key] = b
	}
	b.lastSeen = now
	return b.lim
}

func (rl *RateLimiter) isExempt(path string) bool {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	_, ok := rl.exempt[path]
	return ok
}

// retryAfter returns the whole seconds until lim grants a token, at least 1.
func retryAfter(lim *rate.Limiter) string {
	r := lim.Reserve()
	defer r.Cancel()
	if !r.OK() {
		return "1"
	}
	secs := int(math.Ceil(r.Delay().Seconds()))
	if secs < 1 {
		secs = 1
	}
	return strconv.Itoa(secs)
}

// Handler enforces the limit. Rejections answer 429 with Retry-After and the
// standard error envelope. A websocket upgrade costs one token; frames on an
// open socket are throttled per session by the gateway.
func (rl *RateLimiter) Handler() gin.HandlerFunc {
	return func(c *gin.Context) {
		if rl.isExempt(c.FullPath()) {
			c.Next()
			return
		}

		lim := rl.limiter(rl.keyFn(c))
		if lim.Allow() {
			c.Next()
			return
		}

		rateLimited.WithLabelValues(rl.scope).Inc()
		c.Header("Retry-After", retryAfter(lim))
		c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{
			"request_id": c.Writer.Header().Get(requestIDHeader),
			"code":       "rate_limited",
			"message":    "rate limit exceeded",
		})
	}
}
