// Package handlers implements the REST companion of the websocket gateway:
// message history, read state, the notification inbox and presence lookups.
//
// Every failure leaves through fail(), which writes the envelope
//
//	{"request_id": "...", "code": "not_found", "message": "conversation not found"}
//
// with a stable code so clients can branch on it. Successful calls write the
// typed response structs declared next to each handler.
package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/tbourn/go-chat-gateway/internal/http/middleware"
)

// ErrorResponse is the error envelope shared by REST and the websocket
// handshake.
type ErrorResponse struct {
	// Correlates server logs and client errors
	RequestID string `json:"request_id,omitempty" example:"123e4567-e89b-12d3-a456-426614174000"`
	// Stable, machine-readable code (see errors.go constants)
	Code string `json:"code" example:"not_found"`
	// Human-readable message (safe to show to users)
	Message string `json:"message" example:"resource not found"`
}

// unavailableRetryAfter is the Retry-After hint sent with 503s, in seconds.
const unavailableRetryAfter = "1"

// fail aborts the request with an ErrorResponse. 401s carry a bearer
// challenge and 503s a short Retry-After. 5xx responses are logged with the
// request-scoped logger; a 503 is a store or verifier hiccup and logs at warn.
func fail(c *gin.Context, status int, code, msg string) {
	switch status {
	case http.StatusUnauthorized:
		c.Header("WWW-Authenticate", `Bearer realm="chat", error="invalid_token"`)
	case http.StatusServiceUnavailable:
		c.Header("Retry-After", unavailableRetryAfter)
	}

	if status >= http.StatusInternalServerError {
		lg := middleware.LoggerFrom(c)
		ev := lg.Error()
		if status == http.StatusServiceUnavailable {
			ev = lg.Warn()
		}
		if last := c.Errors.Last(); last != nil {
			ev = ev.Err(last.Err)
		}
		ev.Int("status", status).Str("code", code).Str("message", msg).Msg("api error")
	}

	c.AbortWithStatusJSON(status, ErrorResponse{
		RequestID: c.Writer.Header().Get("X-Request-ID"),
		Code:      code,
		Message:   msg,
	})
}

// Fail lets the router and the websocket handshake answer with the same
// envelope as the handlers.
func Fail(c *gin.Context, status int, code, msg string) { fail(c, status, code, msg) }

func ok(c *gin.Context, status int, body any) { c.JSON(status, body) }

func noContent(c *gin.Context) { c.Status(http.StatusNoContent) }
