package gateway

import "encoding/json"

// Close codes in the private 4000-4999 range.
const (
	StatusUnauthorized = 4401
	StatusSuperseded   = 4409
)

// inFrame is a client->server frame.
type inFrame struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data,omitempty"`
}

// outFrame is a server->client frame. A non-zero closeCode makes the writer
// close the socket after everything queued before it has been written.
type outFrame struct {
	Event string `json:"event"`
	Data  any    `json:"data,omitempty"`

	closeCode   int
	closeReason string
}

// ErrorPayload is the data of an error frame.
type ErrorPayload struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Event   string `json:"event,omitempty"`
}

// ConnectPayload acknowledges a successful handshake.
type ConnectPayload struct {
	UserID    string `json:"user_id"`
	SessionID string `json:"session_id"`
}

// UserTyping is relayed to a conversation channel.
type UserTyping struct {
	UserID         string `json:"user_id"`
	ConversationID string `json:"conversation_id"`
	Typing         bool   `json:"typing"`
}

// ConversationRef is the payload shape of events that only name a
// conversation.
type ConversationRef struct {
	ConversationID string `json:"conversation_id"`
}

type authenticatePayload struct {
	Token string `json:"token"`
}

type statusPayload struct {
	Status string `json:"status"`
}
