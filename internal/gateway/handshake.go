package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"nhooyr.io/websocket"
	"nhooyr.io/websocket/wsjson"

	"github.com/tbourn/go-chat-gateway/internal/auth"
	"github.com/tbourn/go-chat-gateway/internal/domain"
	"github.com/tbourn/go-chat-gateway/internal/http/handlers"
)

// Handle is the gin handler for the websocket endpoint.
//
// A credential supplied as an Authorization bearer header or a token query
// parameter is verified before the upgrade; a bad one gets a 401 JSON body.
// Without either, the socket is upgraded and the first frame must be an
// authenticate event within HandshakeTimeout, otherwise a connect_error
// frame is written and the socket is closed with 4401. No event is processed
// before a principal is attached.
func (h *Hub) Handle(c *gin.Context) {
	ctx := c.Request.Context()

	var (
		principal *auth.Principal
		token     string
		err       error
	)
	if hdr := c.GetHeader("Authorization"); hdr != "" {
		token, err = auth.BearerToken(hdr)
	} else {
		token = strings.TrimSpace(c.Query("token"))
	}
	if err == nil && token != "" {
		var p auth.Principal
		p, err = h.deps.Gate.Authenticate(ctx, token)
		principal = &p
	}
	if err != nil {
		handshakes.WithLabelValues(resultCode(err)).Inc()
		if errors.Is(err, auth.ErrAuthFailure) {
			handlers.Fail(c, http.StatusUnauthorized, auth.Code(err), err.Error())
			return
		}
		handlers.Fail(c, http.StatusServiceUnavailable, handlers.ErrCodeAuthUnavailable, "authentication unavailable")
		return
	}

	conn, err := websocket.Accept(c.Writer, c.Request, &websocket.AcceptOptions{
		OriginPatterns:     h.opts.AllowedOrigins,
		InsecureSkipVerify: h.opts.InsecureSkipVerify,
	})
	if err != nil {
		// Accept already wrote the HTTP error.
		handshakes.WithLabelValues("upgrade_failed").Inc()
		return
	}
	conn.SetReadLimit(h.opts.ReadLimit)

	if principal == nil {
		p, err := h.authenticateFirstFrame(ctx, conn)
		if err != nil {
			handshakes.WithLabelValues(resultCode(err)).Inc()
			rejectSocket(conn, err, h.opts.WriteTimeout)
			return
		}
		principal = &p
	}
	handshakes.WithLabelValues("ok").Inc()

	h.serve(ctx, conn, *principal)
}

// authenticateFirstFrame reads the authenticate event of a socket that did
// not present a credential at upgrade time.
func (h *Hub) authenticateFirstFrame(ctx context.Context, conn *websocket.Conn) (auth.Principal, error) {
	hctx, cancel := context.WithTimeout(ctx, h.opts.HandshakeTimeout)
	defer cancel()

	_, data, err := conn.Read(hctx)
	if err != nil {
		return auth.Principal{}, auth.ErrMissingCredential
	}
	var f inFrame
	if err := json.Unmarshal(data, &f); err != nil {
		return auth.Principal{}, auth.ErrMalformedCredential
	}
	if f.Event != domain.EventAuthenticate {
		return auth.Principal{}, auth.ErrMissingCredential
	}
	var p authenticatePayload
	if len(f.Data) > 0 {
		if err := json.Unmarshal(f.Data, &p); err != nil {
			return auth.Principal{}, auth.ErrMalformedCredential
		}
	}
	tok := strings.TrimSpace(p.Token)
	if strings.HasPrefix(strings.ToLower(tok), "bearer ") {
		if tok, err = auth.BearerToken(tok); err != nil {
			return auth.Principal{}, err
		}
	}
	return h.deps.Gate.Authenticate(hctx, tok)
}

// rejectSocket writes connect_error and closes with 4401. The write is best
// effort: a handshake that timed out has already lost its socket.
func rejectSocket(conn *websocket.Conn, err error, timeout time.Duration) {
	code := auth.Code(err)
	msg := err.Error()
	if !errors.Is(err, auth.ErrAuthFailure) {
		code, msg = "auth_unavailable", "authentication unavailable"
	}
	wctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	_ = wsjson.Write(wctx, conn, outFrame{
		Event: domain.EventConnectError,
		Data:  ErrorPayload{Code: code, Message: msg},
	})
	_ = conn.Close(StatusUnauthorized, code)
}

// serve runs an authenticated session until the socket ends.
func (h *Hub) serve(ctx context.Context, conn *websocket.Conn, p auth.Principal) {
	sessionID := uuid.NewString()
	lg := log.With().
		Str("user_id", p.UserID).
		Str("session_id", sessionID).
		Logger()

	c := newClient(lg.WithContext(ctx), sessionID, p.UserID, conn, h.opts, lg)
	if !h.track(c) {
		_ = conn.Close(websocket.StatusGoingAway, "server shutting down")
		return
	}
	defer h.untrack(c)

	go c.writeLoop()
	go c.keepAliveLoop()

	h.attach(c)
	lg.Info().Msg("session opened")

	h.readLoop(c)

	h.detach(c)
	c.close(websocket.StatusNormalClosure, "")
	<-c.writeDone
	lg.Info().Msg("session closed")
}

func resultCode(err error) string {
	if errors.Is(err, auth.ErrAuthFailure) {
		return auth.Code(err)
	}
	return "error"
}
