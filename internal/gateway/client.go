package gateway

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/time/rate"
	"nhooyr.io/websocket"
	"nhooyr.io/websocket/wsjson"
)

var (
	// ErrConnClosed is returned by Push after the session ended.
	ErrConnClosed = errors.New("connection closed")
	// ErrSendBufferFull is returned by Push when the frame was dropped.
	ErrSendBufferFull = errors.New("send buffer full")
)

// Client is one authenticated websocket session. It implements
// presence.Conn. Outbound frames go through a bounded queue drained by a
// single writer goroutine; inbound frames are read and handled sequentially
// by the session goroutine, which gives per-connection ordering.
type Client struct {
	id     string
	userID string
	conn   *websocket.Conn
	opts   Options
	log    zerolog.Logger

	send    chan outFrame
	limiter *rate.Limiter

	ctx    context.Context
	cancel context.CancelFunc

	closing   sync.Once
	writeDone chan struct{}
}

func newClient(parent context.Context, id, userID string, conn *websocket.Conn, opts Options, lg zerolog.Logger) *Client {
	ctx, cancel := context.WithCancel(parent)
	return &Client{
		id:        id,
		userID:    userID,
		conn:      conn,
		opts:      opts,
		log:       lg,
		send:      make(chan outFrame, opts.SendBuffer),
		limiter:   rate.NewLimiter(rate.Limit(opts.EventRPS), opts.EventBurst),
		ctx:       ctx,
		cancel:    cancel,
		writeDone: make(chan struct{}),
	}
}

// ID returns the session id.
func (c *Client) ID() string { return c.id }

// UserID returns the authenticated principal.
func (c *Client) UserID() string { return c.userID }

// Push enqueues a frame without blocking. A full queue drops the frame.
func (c *Client) Push(event string, payload any) error {
	return c.enqueue(outFrame{Event: event, Data: payload})
}

func (c *Client) enqueue(f outFrame) error {
	if c.ctx.Err() != nil {
		return ErrConnClosed
	}
	select {
	case c.send <- f:
		return nil
	default:
		pushDropped.Inc()
		c.log.Warn().Str("event", f.Event).Msg("send buffer full, frame dropped")
		return ErrSendBufferFull
	}
}

// closeAfter queues a close so frames already queued are flushed first. If
// the queue is full the socket is closed immediately.
func (c *Client) closeAfter(code websocket.StatusCode, reason string) {
	if err := c.enqueue(outFrame{closeCode: int(code), closeReason: reason}); err != nil {
		c.close(code, reason)
	}
}

// close ends the session once. Safe to call from any goroutine.
func (c *Client) close(code websocket.StatusCode, reason string) {
	c.closing.Do(func() {
		c.cancel()
		_ = c.conn.Close(code, reason)
	})
}

func (c *Client) writeLoop() {
	defer close(c.writeDone)
	for {
		select {
		case <-c.ctx.Done():
			return
		case f := <-c.send:
			if f.closeCode != 0 {
				c.close(websocket.StatusCode(f.closeCode), f.closeReason)
				return
			}
			writeCtx, cancel := context.WithTimeout(c.ctx, c.opts.WriteTimeout)
			err := wsjson.Write(writeCtx, c.conn, f)
			cancel()
			if err != nil {
				c.log.Debug().Err(err).Str("event", f.Event).Msg("write failed")
				c.close(websocket.StatusInternalError, "write failed")
				return
			}
		}
	}
}

func (c *Client) keepAliveLoop() {
	if c.opts.PingInterval <= 0 {
		return
	}
	ticker := time.NewTicker(c.opts.PingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-c.ctx.Done():
			return
		case <-ticker.C:
			pingCtx, cancel := context.WithTimeout(c.ctx, c.opts.WriteTimeout)
			err := c.conn.Ping(pingCtx)
			cancel()
			if err != nil && c.ctx.Err() == nil {
				c.log.Debug().Err(err).Msg("ping failed")
				c.close(websocket.StatusGoingAway, "ping timeout")
				return
			}
		}
	}
}
