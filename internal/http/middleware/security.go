package middleware

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
)

// defaultHSTSMaxAge is used when HSTS is on and no max-age was configured.
const defaultHSTSMaxAge = 180 * 24 * time.Hour

// SecurityOptions configures SecurityHeaders.
//
// HSTS is only emitted for requests that arrived over TLS, directly or as
// reported by X-Forwarded-Proto (https or wss). NoStore is for private
// responses such as message history and the notification inbox. Expose lists
// response headers browsers may read in addition to X-Request-ID.
type SecurityOptions struct {
	EnableHSTS   bool          // set true only when traffic is HTTPS end-to-end
	HSTSMaxAge   time.Duration // defaults to 180 days
	NoStore      bool          // Cache-Control: no-store plus legacy Pragma/Expires
	EnablePolicy bool          // Permissions-Policy and a deny-all CSP
	Expose       []string      // extra Access-Control-Expose-Headers entries
}

type header struct{ key, value string }

// SecurityHeaders returns a middleware that hardens JSON and upgrade
// responses. The static part of the header set is computed once.
func SecurityHeaders(opt SecurityOptions) gin.HandlerFunc {
	static := []header{
		{"X-Content-Type-Options", "nosniff"},
		{"X-Frame-Options", "DENY"},
		{"Referrer-Policy", "no-referrer"},
	}
	if opt.EnablePolicy {
		static = append(static,
			header{"Permissions-Policy", "geolocation=(), microphone=(), camera=(), payment=()"},
			header{"X-Permitted-Cross-Domain-Policies", "none"},
			header{"Content-Security-Policy", "default-src 'none'; frame-ancestors 'none'"},
		)
	}
	if opt.NoStore {
		static = append(static,
			header{"Cache-Control", "no-store"},
			header{"Pragma", "no-cache"},
			header{"Expires", "0"},
		)
	}

	maxAge := opt.HSTSMaxAge
	if maxAge <= 0 {
		maxAge = defaultHSTSMaxAge
	}
	hsts := "max-age=" + strconv.Itoa(int(maxAge.Seconds())) + "; includeSubDomains; preload"

	expose := append([]string{requestIDHeader}, opt.Expose...)

	return func(c *gin.Context) {
		h := c.Writer.Header()
		for _, kv := range static {
			h.Set(kv.key, kv.value)
		}
		if opt.EnableHSTS && isHTTPS(c.Request) {
			h.Set("Strict-Transport-Security", hsts)
		}
		if h.Get(requestIDHeader) != "" {
			mergeExpose(h, expose)
		}
		c.Next()
	}
}

// mergeExpose appends names missing from Access-Control-Expose-Headers,
// keeping whatever CORS or earlier middleware already put there.
func mergeExpose(h http.Header, names []string) {
	const key = "Access-Control-Expose-Headers"
	cur := h.Get(key)
	have := make(map[string]bool)
	for _, p := range strings.Split(cur, ",") {
		if p = strings.TrimSpace(p); p != "" {
			have[strings.ToLower(p)] = true
		}
	}
	for _, n := range names {
		if have[strings.ToLower(n)] {
			continue
		}
		have[strings.ToLower(n)] = true
		if cur == "" {
			cur = n
		} else {
			cur += ", " + n
		}
	}
	if cur != "" {
		h.Set(key, cur)
	}
}

// isHTTPS reports whether r used TLS directly or behind a proxy that set
// X-Forwarded-Proto.
func isHTTPS(r *http.Request) bool {
	if r.TLS != nil {
		return true
	}
	switch strings.ToLower(r.Header.Get("X-Forwarded-Proto")) {
	case "https", "wss":
		return true
	}
	return false
}
