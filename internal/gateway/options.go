// Package gateway is the websocket transport of the messaging gateway. It
// authenticates connections, keeps one session goroutine pair per
// connection, routes inbound events to the services, and owns the
// per-conversation channels used by the typing relay.
package gateway

import "time"

// Options tunes the websocket transport.
type Options struct {
	// HandshakeTimeout bounds how long an unauthenticated socket may wait
	// before sending its authenticate frame.
	HandshakeTimeout time.Duration
	// WriteTimeout bounds a single frame write.
	WriteTimeout time.Duration
	// EventTimeout bounds the handling of one inbound event, store calls
	// included.
	EventTimeout time.Duration
	// PingInterval is the keepalive period; zero disables pings.
	PingInterval time.Duration
	// SendBuffer is the per-connection outbound queue length.
	SendBuffer int
	// ReadLimit caps a single inbound frame in bytes.
	ReadLimit int64
	// EventRPS and EventBurst throttle inbound events per connection.
	EventRPS   float64
	EventBurst int
	// AllowedOrigins are host patterns accepted for cross-origin upgrades.
	AllowedOrigins []string
	// InsecureSkipVerify disables origin checks (development only).
	InsecureSkipVerify bool
	// CloseSuperseded closes the previous connection of a user who
	// reconnects. When false the old socket is only dropped from presence.
	CloseSuperseded bool
}

// DefaultOptions returns production defaults.
func DefaultOptions() Options {
	return Options{
		HandshakeTimeout: 10 * time.Second,
		WriteTimeout:     10 * time.Second,
		EventTimeout:     15 * time.Second,
		PingInterval:     25 * time.Second,
		SendBuffer:       64,
		ReadLimit:        64 << 10,
		EventRPS:         20,
		EventBurst:       40,
		CloseSuperseded:  true,
	}
}

func (o Options) withDefaults() Options {
	d := DefaultOptions()
	if o.HandshakeTimeout <= 0 {
		o.HandshakeTimeout = d.HandshakeTimeout
	}
	if o.WriteTimeout <= 0 {
		o.WriteTimeout = d.WriteTimeout
	}
	if o.EventTimeout <= 0 {
		o.EventTimeout = d.EventTimeout
	}
	if o.SendBuffer <= 0 {
		o.SendBuffer = d.SendBuffer
	}
	if o.ReadLimit <= 0 {
		o.ReadLimit = d.ReadLimit
	}
	if o.EventRPS <= 0 {
		o.EventRPS = d.EventRPS
	}
	if o.EventBurst <= 0 {
		o.EventBurst = d.EventBurst
	}
	return o
}
