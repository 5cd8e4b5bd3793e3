// Package httpapi wires the HTTP transport (Gin) to the gateway, the REST
// handlers and the shared middleware: tracing, correlation IDs, scrubbed
// logging, panic recovery, metrics, rate limiting, CORS, security headers and
// compression.
//
// The websocket endpoint lives at /ws outside the versioned API group; it
// authenticates on its own (bearer header, token query parameter, or a first
// authenticate frame). Everything under API_BASE_PATH requires a bearer token.
package httpapi

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-contrib/gzip"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
	"gorm.io/gorm"

	"github.com/tbourn/go-chat-gateway/docs"
	"github.com/tbourn/go-chat-gateway/internal/auth"
	"github.com/tbourn/go-chat-gateway/internal/config"
	"github.com/tbourn/go-chat-gateway/internal/domain"
	"github.com/tbourn/go-chat-gateway/internal/gateway"
	"github.com/tbourn/go-chat-gateway/internal/http/handlers"
	"github.com/tbourn/go-chat-gateway/internal/http/middleware"
	"github.com/tbourn/go-chat-gateway/internal/presence"
	"github.com/tbourn/go-chat-gateway/internal/repo"
	"github.com/tbourn/go-chat-gateway/internal/services"
)

// wsPath is where clients open their websocket session.
const wsPath = "/ws"

// conversationRepoShim adapts the repository free functions to the
// services.ConversationRepo interface.
type conversationRepoShim struct{}

// GetConversation proxies repo.GetConversation.
func (conversationRepoShim) GetConversation(ctx context.Context, db *gorm.DB, id string) (*domain.Conversation, error) {
	return repo.GetConversation(ctx, db, id)
}

// UpdateConversationPreview proxies repo.UpdateConversationPreview.
func (conversationRepoShim) UpdateConversationPreview(ctx context.Context, db *gorm.DB, id, preview string, at time.Time) error {
	return repo.UpdateConversationPreview(ctx, db, id, preview, at)
}

// HubOptions maps the websocket configuration onto gateway options.
func HubOptions(ws config.WSConfig) gateway.Options {
	return gateway.Options{
		HandshakeTimeout:   ws.HandshakeTimeout,
		WriteTimeout:       ws.WriteTimeout,
		EventTimeout:       ws.EventTimeout,
		PingInterval:       ws.PingInterval,
		SendBuffer:         ws.SendBuffer,
		ReadLimit:          ws.ReadLimit,
		EventRPS:           ws.EventRPS,
		EventBurst:         ws.EventBurst,
		AllowedOrigins:     ws.AllowedOrigins,
		InsecureSkipVerify: ws.InsecureSkipVerify,
		CloseSuperseded:    ws.CloseSuperseded,
	}
}

// RegisterRoutes attaches all middleware and endpoints to r and returns the
// websocket hub so the caller can drain it on shutdown.
//
// Middleware order matters:
//  1. OpenTelemetry: trace everything
//  2. RequestID: generate/propagate correlation id
//  3. Logger: request-scoped logger with scrubbed query and headers
//  4. Recovery: capture panics after logger
//  5. Body size limiter
//  6. Metrics
//  7. Edge rate limiter per client IP (probes exempt); the API group adds
//     a per-user limiter after authentication
//  8. CORS and security headers
//  9. Compression (REST only; /ws is excluded)
func RegisterRoutes(r *gin.Engine, db *gorm.DB, cfg config.Config) *gateway.Hub {
	r.HandleMethodNotAllowed = true

	r.Use(otelgin.Middleware(cfg.OTEL.ServiceName))
	r.Use(middleware.RequestID())
	r.Use(middleware.Logger(middleware.RedactOptions{}))
	r.Use(middleware.Recovery())
	r.Use(limitBody(1 << 20))

	r.Use(middleware.Metrics())
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	edge := middleware.NewRateLimiter("edge", cfg.RateRPS, cfg.RateBurst, middleware.KeyByIP()).
		Exempt("/health", "/metrics")
	r.Use(edge.Handler())

	corsCfg := cors.Config{
		AllowMethods:     []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Accept", "Authorization", "If-None-Match"},
		ExposeHeaders:    []string{"X-Request-ID", "Content-Length", "ETag", "Retry-After"},
		AllowCredentials: false,
		MaxAge:           12 * time.Hour,
	}
	if len(cfg.CORS.AllowedOrigins) == 0 {
		// ACAO: * even without an Origin header, so probes see the posture too
		r.Use(func(c *gin.Context) {
			c.Writer.Header().Set("Access-Control-Allow-Origin", "*")
			c.Next()
		})
		corsCfg.AllowAllOrigins = true
	} else {
		corsCfg.AllowOrigins = cfg.CORS.AllowedOrigins
	}
	r.Use(cors.New(corsCfg))

	r.Use(middleware.SecurityHeaders(middleware.SecurityOptions{
		EnableHSTS:   cfg.Security.EnableHSTS,
		HSTSMaxAge:   cfg.Security.HSTSMaxAge,
		EnablePolicy: true,
	}))
	r.Use(gzip.Gzip(gzip.DefaultCompression, gzip.WithExcludedPaths([]string{wsPath})))

	r.NoRoute(func(c *gin.Context) {
		handlers.Fail(c, http.StatusNotFound, handlers.ErrCodeNotFound, "route not found")
	})
	r.NoMethod(func(c *gin.Context) {
		handlers.Fail(c, http.StatusMethodNotAllowed, handlers.ErrCodeMethodNotAllowed, "method not allowed")
	})

	r.GET("/health", func(c *gin.Context) { c.JSON(http.StatusOK, gin.H{"status": "ok"}) })

	if cfg.SwaggerEnabled {
		docs.SwaggerInfo.BasePath = cfg.APIBasePath
		r.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	// Dependency injection: services ← repo/db/presence
	reg := presence.New()
	gate := &auth.Gate{
		Verifier: auth.NewJWTVerifier(cfg.JWT.Secret, cfg.JWT.Issuer, cfg.JWT.Leeway),
		DB:       db,
	}
	convSvc := services.NewConversationService(db, conversationRepoShim{})
	notifySvc := &services.NotificationService{DB: db, Presence: reg}
	msgSvc := &services.MessageService{
		DB:              db,
		Conversations:   convSvc,
		Presence:        reg,
		Notifier:        notifySvc,
		MaxContentRunes: cfg.MaxContentRunes,
	}
	presenceSvc := &services.PresenceService{DB: db, Presence: reg}
	reactionSvc := &services.ReactionService{DB: db, Conversations: convSvc, Presence: reg, Notifier: notifySvc}

	hub := gateway.NewHub(gateway.Deps{
		Gate:          gate,
		Registry:      reg,
		Conversations: convSvc,
		Messages:      msgSvc,
		Presence:      presenceSvc,
		Reactions:     reactionSvc,
	}, HubOptions(cfg.WS))
	r.GET(wsPath, hub.Handle)

	h := handlers.New(convSvc, msgSvc, notifySvc, presenceSvc)

	api := groupWithPrefix(r, cfg.APIBasePath)
	api.Use(middleware.SecurityHeaders(middleware.SecurityOptions{NoStore: true, Expose: []string{"ETag", "Retry-After"}}))
	api.Use(middleware.BearerAuth(gate))
	api.Use(middleware.NewRateLimiter("user", cfg.RateRPS, cfg.RateBurst, middleware.KeyByUserOrIP()).Handler())
	{
		// Conversations
		api.GET("/conversations/:id/messages", h.ListMessages)
		api.POST("/conversations/:id/read", h.MarkRead)

		// Notifications
		api.GET("/notifications", h.ListNotifications)
		api.PUT("/notifications/read-all", h.MarkAllNotificationsRead)
		api.PUT("/notifications/:id/read", h.MarkNotificationRead)
		api.DELETE("/notifications/:id", h.DeleteNotification)
		api.DELETE("/notifications", h.DeleteAllNotifications)

		// Presence
		api.GET("/users/:id/presence", h.GetPresence)
	}

	return hub
}

// Handler wraps r for http.Server. Upgrade requests on the websocket path
// have the server read/write deadlines cleared: a hijacked connection keeps
// them otherwise, and sessions would be cut after WRITE_TIMEOUT. The gateway
// enforces its own per-frame write timeout and keepalive instead.
func Handler(r *gin.Engine) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		if req.URL.Path == wsPath {
			rc := http.NewResponseController(w)
			_ = rc.SetReadDeadline(time.Time{})
			_ = rc.SetWriteDeadline(time.Time{})
		}
		r.ServeHTTP(w, req)
	})
}

// limitBody caps the request body size to maxBytes using http.MaxBytesReader.
func limitBody(maxBytes int64) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxBytes)
		c.Next()
	}
}

// groupWithPrefix mounts a group at prefix, treating "/" (or empty) as root.
func groupWithPrefix(r *gin.Engine, prefix string) *gin.RouterGroup {
	if prefix == "" || prefix == "/" {
		return r.Group("")
	}
	return r.Group(prefix)
}
