package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	sqlite "github.com/glebarez/sqlite"
	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/tbourn/go-chat-gateway/internal/auth"
	"github.com/tbourn/go-chat-gateway/internal/config"
	"github.com/tbourn/go-chat-gateway/internal/domain"
	"github.com/tbourn/go-chat-gateway/internal/repo"
)

const testSecret = "router-test-secret"

// --- test DB helper (pure-Go sqlite, no CGO) ---
func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:routerdb_%s?mode=memory&cache=shared", uuid.NewString())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	if err := repo.AutoMigrate(db); err != nil {
		t.Fatalf("automigrate: %v", err)
	}
	return db
}

func testConfig() config.Config {
	return config.Config{
		APIBasePath:     "/api/v1",
		RateRPS:         100,
		RateBurst:       10,
		OTEL:            config.OTELConfig{ServiceName: "test-svc"},
		JWT:             config.JWTConfig{Secret: testSecret},
		WS:              config.WSConfig{HandshakeTimeout: time.Second, WriteTimeout: time.Second, SendBuffer: 8, ReadLimit: 4096, EventRPS: 10, EventBurst: 10},
		MaxContentRunes: 100,
	}
}

func newRouter(t *testing.T, cfg config.Config) (*gin.Engine, *gorm.DB) {
	t.Helper()
	gin.SetMode(gin.TestMode)
	r := gin.New()
	db := newTestDB(t)
	hub := RegisterRoutes(r, db, cfg)
	t.Cleanup(func() { _ = hub.Shutdown(context.Background()) })
	return r, db
}

func TestRegisterRoutes_CORSAllowAll_Health_Metrics_Fallbacks(t *testing.T) {
	r, _ := newRouter(t, testConfig())

	// /health works
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	r.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Fatalf("GET /health = %d", w.Code)
	}
	if got := w.Header().Get("Access-Control-Allow-Origin"); got != "*" {
		t.Fatalf("AllowAllOrigins expected '*', got %q", got)
	}

	// /metrics is wired
	w = httptest.NewRecorder()
	req = httptest.NewRequest(http.MethodGet, "/metrics", nil)
	r.ServeHTTP(w, req)
	if w.Code != http.StatusOK || len(w.Body.Bytes()) == 0 {
		t.Fatalf("GET /metrics bad: code=%d len=%d", w.Code, w.Body.Len())
	}

	// NoRoute → 404
	w = httptest.NewRecorder()
	req = httptest.NewRequest(http.MethodGet, "/nope", nil)
	r.ServeHTTP(w, req)
	if w.Code != http.StatusNotFound {
		t.Fatalf("GET /nope expected 404, got %d", w.Code)
	}

	// NoMethod → 405 (POST /health)
	w = httptest.NewRecorder()
	req = httptest.NewRequest(http.MethodPost, "/health", nil)
	r.ServeHTTP(w, req)
	if w.Code != http.StatusMethodNotAllowed {
		t.Fatalf("POST /health expected 405, got %d", w.Code)
	}
}

func TestRegisterRoutes_CORSWithOrigins_HeaderEcho(t *testing.T) {
	cfg := testConfig()
	cfg.APIBasePath = "/api/v2"
	cfg.CORS = config.CORSConfig{AllowedOrigins: []string{"http://example.com"}}
	r, _ := newRouter(t, cfg)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	req.Header.Set("Origin", "http://example.com")
	r.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Fatalf("GET /health = %d", w.Code)
	}
	if got := w.Header().Get("Access-Control-Allow-Origin"); got != "http://example.com" {
		t.Fatalf("expected ACAO echo, got %q", got)
	}
}

func TestRegisterRoutes_APIRequiresBearer(t *testing.T) {
	r, db := newRouter(t, testConfig())

	u := &domain.User{ID: "u-" + uuid.NewString(), Username: "alice-" + uuid.NewString()[:8]}
	if err := repo.CreateUser(context.Background(), db, u); err != nil {
		t.Fatalf("create user: %v", err)
	}
	tok, err := auth.NewJWTVerifier(testSecret, "", 0).Issue(u.ID, true, time.Hour)
	if err != nil {
		t.Fatalf("issue: %v", err)
	}

	cases := []struct {
		name     string
		header   string
		wantCode int
		wantErr  string
	}{
		{"missing", "", http.StatusUnauthorized, "missing_credential"},
		{"malformed", "Token abc", http.StatusUnauthorized, "malformed_credential"},
		{"invalid", "Bearer not-a-jwt", http.StatusUnauthorized, "invalid_credential"},
		{"valid", "Bearer " + tok, http.StatusOK, ""},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			w := httptest.NewRecorder()
			req := httptest.NewRequest(http.MethodGet, "/api/v1/notifications", nil)
			if tc.header != "" {
				req.Header.Set("Authorization", tc.header)
			}
			r.ServeHTTP(w, req)
			if w.Code != tc.wantCode {
				t.Fatalf("status = %d, want %d (body=%s)", w.Code, tc.wantCode, w.Body.String())
			}
			if tc.wantErr == "" {
				if cc := w.Header().Get("Cache-Control"); cc == "" {
					t.Fatalf("API responses should carry no-store cache headers")
				}
				return
			}
			var body struct {
				Code string `json:"code"`
			}
			if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
				t.Fatalf("decode: %v", err)
			}
			if body.Code != tc.wantErr {
				t.Fatalf("code = %q, want %q", body.Code, tc.wantErr)
			}
		})
	}
}

func TestRegisterRoutes_WebsocketRejectsBadQueryToken(t *testing.T) {
	r, _ := newRouter(t, testConfig())

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/ws?token=bogus", nil)
	req.Header.Set("Accept-Encoding", "gzip")
	r.ServeHTTP(w, req)
	if w.Code != http.StatusUnauthorized {
		t.Fatalf("GET /ws = %d, want 401", w.Code)
	}
	if enc := w.Header().Get("Content-Encoding"); enc != "" {
		t.Fatalf("/ws must not be compressed, got Content-Encoding %q", enc)
	}
}

func TestHubOptions_MapsConfig(t *testing.T) {
	ws := config.WSConfig{
		HandshakeTimeout:   3 * time.Second,
		WriteTimeout:       4 * time.Second,
		EventTimeout:       2 * time.Second,
		PingInterval:       5 * time.Second,
		SendBuffer:         6,
		ReadLimit:          7000,
		EventRPS:           8,
		EventBurst:         9,
		AllowedOrigins:     []string{"chat.example.com"},
		InsecureSkipVerify: true,
		CloseSuperseded:    true,
	}
	o := HubOptions(ws)
	if o.HandshakeTimeout != ws.HandshakeTimeout || o.WriteTimeout != ws.WriteTimeout ||
		o.EventTimeout != ws.EventTimeout || o.PingInterval != ws.PingInterval {
		t.Fatalf("timeouts not mapped: %+v", o)
	}
	if o.SendBuffer != 6 || o.ReadLimit != 7000 || o.EventRPS != 8 || o.EventBurst != 9 {
		t.Fatalf("limits not mapped: %+v", o)
	}
	if len(o.AllowedOrigins) != 1 || !o.InsecureSkipVerify || !o.CloseSuperseded {
		t.Fatalf("flags not mapped: %+v", o)
	}
}

func Test_limitBody_Middleware(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	// tiny cap to trigger MaxBytesReader
	r.Use(limitBody(10))
	r.POST("/echo", func(c *gin.Context) {
		_, err := io.ReadAll(c.Request.Body)
		if err != nil {
			c.String(http.StatusRequestEntityTooLarge, "too big")
			return
		}
		c.String(http.StatusOK, "ok")
	})

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/echo", bytes.NewBufferString("0123456789AB")) // 12 bytes
	r.ServeHTTP(w, req)
	if w.Code != http.StatusRequestEntityTooLarge {
		t.Fatalf("expected 413 from limitBody, got %d", w.Code)
	}
}

func Test_groupWithPrefix(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()

	// "/" and "" should mount at root
	groupWithPrefix(r, "/").GET("/one", func(c *gin.Context) { c.String(http.StatusOK, "one") })
	groupWithPrefix(r, "").GET("/two", func(c *gin.Context) { c.String(http.StatusOK, "two") })
	groupWithPrefix(r, "/api").GET("/ping", func(c *gin.Context) { c.String(http.StatusOK, "pong") })

	for path, want := range map[string]string{"/one": "one", "/two": "two", "/api/ping": "pong"} {
		rec := httptest.NewRecorder()
		r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
		if rec.Code != http.StatusOK || rec.Body.String() != want {
			t.Fatalf("GET %s got %d %q", path, rec.Code, rec.Body.String())
		}
	}
}

func TestPipeline_Smoke(t *testing.T) {
	cfg := testConfig()
	cfg.Security = config.SecurityConfig{EnableHSTS: true, HSTSMaxAge: time.Hour}
	r, _ := newRouter(t, cfg)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/health?token=secret", nil)
	r.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("pipeline GET /health = %d", w.Code)
	}
	if rid := w.Header().Get("X-Request-ID"); rid == "" {
		t.Fatalf("expected X-Request-ID header to be set")
	}
	if w.Header().Get("X-Content-Type-Options") != "nosniff" {
		t.Fatalf("security headers missing")
	}
}

func Test_conversationRepoShim_Proxies(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	shim := conversationRepoShim{}

	conv, err := repo.CreateConversation(ctx, db, domain.ConversationPrivate, "", []string{"a", "b"})
	if err != nil {
		t.Fatalf("CreateConversation: %v", err)
	}
	at := time.Now().UTC().Truncate(time.Second)
	if err := shim.UpdateConversationPreview(ctx, db, conv.ID, "hello", at); err != nil {
		t.Fatalf("UpdateConversationPreview: %v", err)
	}
	got, err := shim.GetConversation(ctx, db, conv.ID)
	if err != nil {
		t.Fatalf("GetConversation: %v", err)
	}
	if got.LastMessage != "hello" {
		t.Fatalf("preview = %q, want hello", got.LastMessage)
	}
}

func TestHandler_PassesThrough(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.GET(wsPath, func(c *gin.Context) { c.String(http.StatusTeapot, "ws") })
	r.GET("/x", func(c *gin.Context) { c.String(http.StatusOK, "x") })

	h := Handler(r)
	for path, want := range map[string]int{wsPath: http.StatusTeapot, "/x": http.StatusOK} {
		w := httptest.NewRecorder()
		h.ServeHTTP(w, httptest.NewRequest(http.MethodGet, path, nil))
		if w.Code != want {
			t.Fatalf("GET %s = %d, want %d", path, w.Code, want)
		}
	}
}
