package middleware

import (
	"context"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/tbourn/go-chat-gateway/internal/auth"
)

// userIDKey is the Gin context key holding the authenticated user id.
const userIDKey = "userID"

// Authenticator resolves a bearer token to a principal. *auth.Gate
// satisfies it.
type Authenticator interface {
	Authenticate(ctx context.Context, token string) (auth.Principal, error)
}

// BearerAuth rejects requests without a valid "Authorization: Bearer" token
// and stores the principal's user id under "userID". Credential problems
// answer 401; a failing principal lookup answers 503.
func BearerAuth(a Authenticator) gin.HandlerFunc {
	return func(c *gin.Context) {
		tok, err := auth.BearerToken(c.GetHeader("Authorization"))
		var p auth.Principal
		if err == nil {
			p, err = a.Authenticate(c.Request.Context(), tok)
		}
		if err != nil {
			status, code, msg := http.StatusUnauthorized, auth.Code(err), err.Error()
			if !errors.Is(err, auth.ErrAuthFailure) {
				LoggerFrom(c).Error().Err(err).Msg("authentication unavailable")
				status, code, msg = http.StatusServiceUnavailable, "auth_unavailable", "authentication unavailable"
			}
			c.Header("WWW-Authenticate", `Bearer realm="chat"`)
			c.AbortWithStatusJSON(status, gin.H{
				"request_id": c.Writer.Header().Get(requestIDHeader),
				"code":       code,
				"message":    msg,
			})
			return
		}

		c.Set(userIDKey, p.UserID)
		l := LoggerFrom(c).With().Str("user_id", p.UserID).Logger()
		setLogger(c, &l)
		c.Next()
	}
}

// UserID returns the id stored by BearerAuth, or "".
func UserID(c *gin.Context) string {
	v, _ := c.Get(userIDKey)
	return asString(v)
}
