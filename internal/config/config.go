// Package config provides application configuration loaded from environment
// variables with defaults and validation. It centralizes application settings
// such as server timeouts, logging, the store, credentials, websocket sessions
// and observability.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// CORSConfig defines Cross-Origin Resource Sharing settings.
type CORSConfig struct {
	AllowedOrigins []string
}

// SecurityConfig defines security-related settings such as HSTS.
type SecurityConfig struct {
	EnableHSTS bool
	HSTSMaxAge time.Duration
}

// DBConfig selects the store. DSN wins over Path for sqlite.
type DBConfig struct {
	Driver string // DB_DRIVER: sqlite|postgres|mysql
	DSN    string // DB_DSN
	Path   string // DB_PATH (sqlite file)
}

// JWTConfig defines how bearer credentials are verified.
type JWTConfig struct {
	Secret string        // JWT_SECRET (HS256)
	Issuer string        // JWT_ISSUER, optional
	Leeway time.Duration // JWT_LEEWAY clock skew allowance
}

// WSConfig tunes websocket sessions.
type WSConfig struct {
	HandshakeTimeout   time.Duration // time allowed for the authenticate frame
	WriteTimeout       time.Duration
	EventTimeout       time.Duration // bound on handling one inbound event
	PingInterval       time.Duration // 0 disables keepalive pings
	SendBuffer         int           // queued outbound frames per session
	ReadLimit          int64         // max inbound frame size in bytes
	EventRPS           float64       // inbound events per second per session
	EventBurst         int
	AllowedOrigins     []string // extra Origin patterns accepted on upgrade
	InsecureSkipVerify bool     // accept any Origin (dev only)
	CloseSuperseded    bool     // close the older session when a user reconnects
}

// OTELConfig defines OpenTelemetry observability settings.
type OTELConfig struct {
	Enabled     bool    // OTEL_ENABLED
	Endpoint    string  // OTEL_EXPORTER_OTLP_ENDPOINT (e.g. "otel:4317")
	Insecure    bool    // OTEL_EXPORTER_OTLP_INSECURE (true if no TLS)
	ServiceName string  // OTEL_SERVICE_NAME (e.g. "go-chat-gateway")
	SampleRatio float64 // OTEL_TRACES_SAMPLER_ARG in [0..1]
}

// Config holds all configuration values for the application.
type Config struct {
	// Server
	Port              string        // just the number
	ReadTimeout       time.Duration // e.g. 15s
	ReadHeaderTimeout time.Duration // e.g. 10s
	WriteTimeout      time.Duration // e.g. 20s
	IdleTimeout       time.Duration // e.g. 60s
	MaxHeaderBytes    int           // bytes
	GinMode           string        // debug|release|test

	// Logging / Docs
	LogLevel       string // debug|info|warn|error|fatal|panic
	LogPretty      bool   // pretty console logs in dev
	SwaggerEnabled bool   // enable Swagger UI route
	APIBasePath    string // base path for API routes

	// Store / auth / sessions
	DB  DBConfig
	JWT JWTConfig
	WS  WSConfig

	// Messages
	MaxContentRunes int // upper bound on message content length

	// Rate limiting
	RateRPS   float64 // tokens per second (>= 0)
	RateBurst int     // bucket size (>= 1)

	// Web protection
	CORS     CORSConfig
	Security SecurityConfig

	// Observability
	OTEL OTELConfig
}

// MustLoad loads the configuration and panics if validation fails.
func MustLoad() Config {
	cfg, err := Load()
	if err != nil {
		panic(err)
	}
	return cfg
}

// Load reads the environment, fills defaults, normalizes a few values and
// validates the result. The returned Config is populated even on error.
func Load() (Config, error) {
	cfg := Config{
		// Server
		Port:              getenv("PORT", "8080"),
		ReadTimeout:       getdur("READ_TIMEOUT", 15*time.Second),
		ReadHeaderTimeout: getdur("READ_HEADER_TIMEOUT", 10*time.Second),
		WriteTimeout:      getdur("WRITE_TIMEOUT", 20*time.Second),
		IdleTimeout:       getdur("IDLE_TIMEOUT", 60*time.Second),
		MaxHeaderBytes:    getint("MAX_HEADER_BYTES", 1<<20),
		GinMode:           strings.ToLower(getenv("GIN_MODE", "release")),

		// Logging / Docs
		LogLevel:       strings.ToLower(getenv("LOG_LEVEL", "info")),
		LogPretty:      getbool("LOG_PRETTY", false),
		SwaggerEnabled: getbool("SWAGGER_ENABLED", false),
		APIBasePath:    normalizeBasePath(getenv("API_BASE_PATH", "/api/v1")),

		// Store
		DB: DBConfig{
			Driver: strings.ToLower(getenv("DB_DRIVER", "sqlite")),
			DSN:    getenv("DB_DSN", ""),
			Path:   getenv("DB_PATH", "gateway.db"),
		},

		// Auth
		JWT: JWTConfig{
			Secret: getenv("JWT_SECRET", ""),
			Issuer: getenv("JWT_ISSUER", ""),
			Leeway: getdur("JWT_LEEWAY", 30*time.Second),
		},

		// Websocket
		WS: WSConfig{
			HandshakeTimeout:   getdur("WS_HANDSHAKE_TIMEOUT", 10*time.Second),
			WriteTimeout:       getdur("WS_WRITE_TIMEOUT", 10*time.Second),
			EventTimeout:       getdur("WS_EVENT_TIMEOUT", 15*time.Second),
			PingInterval:       getdur("WS_PING_INTERVAL", 25*time.Second),
			SendBuffer:         getint("WS_SEND_BUFFER", 64),
			ReadLimit:          int64(getint("WS_READ_LIMIT", 64<<10)),
			EventRPS:           getfloat("WS_EVENT_RPS", 20),
			EventBurst:         getint("WS_EVENT_BURST", 40),
			AllowedOrigins:     splitCSV(getenv("WS_ALLOWED_ORIGINS", "")),
			InsecureSkipVerify: getbool("WS_INSECURE_SKIP_VERIFY", false),
			CloseSuperseded:    getbool("WS_CLOSE_SUPERSEDED", true),
		},

		MaxContentRunes: getint("MAX_CONTENT_RUNES", 4000),

		// Rate limiting
		RateRPS:   getfloat("RATE_RPS", 5.0),
		RateBurst: getint("RATE_BURST", 10),

		// Web protection
		CORS: CORSConfig{
			AllowedOrigins: splitCSV(getenv("CORS_ALLOWED_ORIGINS", "")),
		},
		Security: SecurityConfig{
			EnableHSTS: getbool("ENABLE_HSTS", false),
			HSTSMaxAge: getdur("HSTS_MAX_AGE", 180*24*time.Hour),
		},

		// Observability (OpenTelemetry)
		OTEL: OTELConfig{
			Enabled:     getbool("OTEL_ENABLED", false),
			Endpoint:    getenv("OTEL_EXPORTER_OTLP_ENDPOINT", "localhost:4317"),
			Insecure:    getbool("OTEL_EXPORTER_OTLP_INSECURE", true),
			ServiceName: getenv("OTEL_SERVICE_NAME", "go-chat-gateway"),
			SampleRatio: getfloat("OTEL_TRACES_SAMPLER_ARG", 1.0),
		},
	}

	// normalization
	if cfg.LogLevel == "warning" {
		cfg.LogLevel = "warn"
	}
	switch cfg.GinMode {
	case "debug", "release", "test":
	default:
		cfg.GinMode = "release"
	}

	return cfg, cfg.Validate()
}

// Validate reports every invalid setting at once, joined.
func (c Config) Validate() error {
	var errs []error
	check := func(bad bool, msg string) {
		if bad {
			errs = append(errs, errors.New(msg))
		}
	}
	blank := func(s string) bool { return strings.TrimSpace(s) == "" }

	switch c.LogLevel {
	case "debug", "info", "warn", "error", "fatal", "panic":
	default:
		check(true, "LOG_LEVEL must be one of: debug, info, warn, error, fatal, panic")
	}
	check(blank(c.Port), "PORT must not be empty")
	check(c.ReadTimeout <= 0 || c.ReadHeaderTimeout <= 0 || c.WriteTimeout <= 0 || c.IdleTimeout <= 0,
		"server timeouts must be positive durations")
	check(c.MaxHeaderBytes <= 0, "MAX_HEADER_BYTES must be > 0")

	switch c.DB.Driver {
	case "sqlite":
		check(blank(c.DB.DSN) && blank(c.DB.Path), "DB_PATH or DB_DSN must be set for sqlite")
	case "postgres", "mysql":
		if blank(c.DB.DSN) {
			errs = append(errs, fmt.Errorf("DB_DSN is required for DB_DRIVER=%s", c.DB.Driver))
		}
	default:
		check(true, "DB_DRIVER must be one of: sqlite, postgres, mysql")
	}

	check(blank(c.JWT.Secret), "JWT_SECRET must not be empty")
	check(c.JWT.Leeway < 0, "JWT_LEEWAY must be >= 0")

	check(c.WS.HandshakeTimeout <= 0, "WS_HANDSHAKE_TIMEOUT must be a positive duration")
	check(c.WS.WriteTimeout <= 0, "WS_WRITE_TIMEOUT must be a positive duration")
	check(c.WS.EventTimeout <= 0, "WS_EVENT_TIMEOUT must be a positive duration")
	check(c.WS.PingInterval < 0, "WS_PING_INTERVAL must be >= 0")
	check(c.WS.SendBuffer < 1, "WS_SEND_BUFFER must be >= 1")
	check(c.WS.ReadLimit < 1024, "WS_READ_LIMIT must be >= 1024")
	check(c.WS.EventRPS <= 0, "WS_EVENT_RPS must be > 0")
	check(c.WS.EventBurst < 1, "WS_EVENT_BURST must be >= 1")
	check(c.MaxContentRunes < 1, "MAX_CONTENT_RUNES must be >= 1")

	check(c.RateRPS < 0, "RATE_RPS must be >= 0")
	check(c.RateBurst < 1, "RATE_BURST must be >= 1")
	check(c.Security.HSTSMaxAge < 0, "HSTS_MAX_AGE must be >= 0")
	check(c.OTEL.SampleRatio < 0 || c.OTEL.SampleRatio > 1, "OTEL_TRACES_SAMPLER_ARG must be in [0,1]")

	return errors.Join(errs...)
}

// lookup parses a non-empty env var, keeping def when unset or unparseable.
func lookup[T any](k string, def T, parse func(string) (T, error)) T {
	v, ok := os.LookupEnv(k)
	if !ok || v == "" {
		return def
	}
	if out, err := parse(v); err == nil {
		return out
	}
	return def
}

func getenv(k, def string) string {
	return lookup(k, def, func(v string) (string, error) { return v, nil })
}

func getint(k string, def int) int { return lookup(k, def, strconv.Atoi) }

func getdur(k string, def time.Duration) time.Duration {
	return lookup(k, def, time.ParseDuration)
}

func getfloat(k string, def float64) float64 {
	return lookup(k, def, func(v string) (float64, error) { return strconv.ParseFloat(v, 64) })
}

func getbool(k string, def bool) bool {
	return lookup(k, def, func(v string) (bool, error) {
		switch strings.ToLower(strings.TrimSpace(v)) {
		case "1", "true", "yes", "y", "on":
			return true, nil
		case "0", "false", "no", "n", "off":
			return false, nil
		}
		return false, fmt.Errorf("not a bool: %q", v)
	})
}

func splitCSV(s string) []string {
	if s == "" {
		return nil
	}
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		t := strings.TrimSpace(p)
		if t != "" {
			out = append(out, t)
		}
	}
	return out
}

// normalizeBasePath ensures leading '/' and strips trailing '/' (except root).
func normalizeBasePath(p string) string {
	p = strings.TrimSpace(p)
	if p == "" {
		return "/"
	}
	if !strings.HasPrefix(p, "/") {
		p = "/" + p
	}
	if len(p) > 1 && strings.HasSuffix(p, "/") {
		p = strings.TrimRight(p, "/")
	}
	return p
}
