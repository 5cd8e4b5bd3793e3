package gateway

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
	"nhooyr.io/websocket"

	"github.com/tbourn/go-chat-gateway/internal/auth"
	"github.com/tbourn/go-chat-gateway/internal/domain"
	"github.com/tbourn/go-chat-gateway/internal/presence"
	"github.com/tbourn/go-chat-gateway/internal/services"
)

// disconnectTimeout bounds the offline broadcast after a session ends; it
// runs on a fresh context because the session context is already done.
const disconnectTimeout = 5 * time.Second

// Deps are the collaborators a Hub routes events to.
type Deps struct {
	Gate          *auth.Gate
	Registry      *presence.Registry
	Conversations *services.ConversationService
	Messages      *services.MessageService
	Presence      *services.PresenceService
	Reactions     *services.ReactionService
}

// Hub owns live sessions and conversation channels.
type Hub struct {
	deps Deps
	opts Options

	mu       sync.Mutex
	sessions map[*Client]struct{}
	draining bool
	wg       sync.WaitGroup

	roomsMu sync.RWMutex
	rooms   map[string]map[*Client]struct{}
	joined  map[*Client]map[string]struct{}
}

// NewHub constructs a Hub. Zero-valued options take their defaults.
func NewHub(deps Deps, opts Options) *Hub {
	return &Hub{
		deps:     deps,
		opts:     opts.withDefaults(),
		sessions: make(map[*Client]struct{}),
		rooms:    make(map[string]map[*Client]struct{}),
		joined:   make(map[*Client]map[string]struct{}),
	}
}

// Online reports whether userID has a live session.
func (h *Hub) Online(userID string) bool { return h.deps.Registry.IsOnline(userID) }

// track adds c to the session set; it fails once Shutdown has begun.
func (h *Hub) track(c *Client) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.draining {
		return false
	}
	h.sessions[c] = struct{}{}
	h.wg.Add(1)
	return true
}

func (h *Hub) untrack(c *Client) {
	h.mu.Lock()
	delete(h.sessions, c)
	h.mu.Unlock()
	h.wg.Done()
}

// attach registers c in presence and announces it. A superseded session of
// the same user is told and closed when configured.
func (h *Hub) attach(c *Client) {
	prev := h.deps.Registry.Register(c.userID, c)
	connsActive.Inc()
	if prev != nil {
		superseded.Inc()
		c.log.Info().Str("superseded_session", prev.ID()).Msg("session superseded")
		if old, ok := prev.(*Client); ok && h.opts.CloseSuperseded {
			_ = old.Push(domain.EventError, ErrorPayload{
				Code:    "session_superseded",
				Message: "a newer connection for this user was opened",
			})
			old.closeAfter(StatusSuperseded, "session superseded")
		}
	}

	_ = c.Push(domain.EventConnect, ConnectPayload{UserID: c.userID, SessionID: c.id})

	if h.deps.Presence != nil {
		if _, err := h.deps.Presence.Connected(c.ctx, c.userID); err != nil {
			c.log.Error().Err(err).Msg("online broadcast failed")
		}
	}
}

// detach undoes attach. Only the current session of a user broadcasts
// offline; a stale one leaves presence untouched.
func (h *Hub) detach(c *Client) {
	h.leaveAll(c)
	connsActive.Dec()
	if !h.deps.Registry.Unregister(c.userID, c) {
		return
	}
	if h.deps.Presence == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), disconnectTimeout)
	defer cancel()
	ctx = c.log.WithContext(ctx)
	if _, err := h.deps.Presence.Disconnected(ctx, c.userID); err != nil {
		c.log.Error().Err(err).Msg("offline broadcast failed")
	}
}

// join adds c to a conversation channel.
func (h *Hub) join(c *Client, conversationID string) {
	h.roomsMu.Lock()
	defer h.roomsMu.Unlock()
	members := h.rooms[conversationID]
	if members == nil {
		members = make(map[*Client]struct{})
		h.rooms[conversationID] = members
	}
	members[c] = struct{}{}
	set := h.joined[c]
	if set == nil {
		set = make(map[string]struct{})
		h.joined[c] = set
	}
	set[conversationID] = struct{}{}
}

// leave removes c from a conversation channel. It reports whether c was a
// member.
func (h *Hub) leave(c *Client, conversationID string) bool {
	h.roomsMu.Lock()
	defer h.roomsMu.Unlock()
	return h.leaveLocked(c, conversationID)
}

func (h *Hub) leaveLocked(c *Client, conversationID string) bool {
	members, ok := h.rooms[conversationID]
	if !ok {
		return false
	}
	if _, ok := members[c]; !ok {
		return false
	}
	delete(members, c)
	if len(members) == 0 {
		delete(h.rooms, conversationID)
	}
	if set := h.joined[c]; set != nil {
		delete(set, conversationID)
		if len(set) == 0 {
			delete(h.joined, c)
		}
	}
	return true
}

func (h *Hub) leaveAll(c *Client) {
	h.roomsMu.Lock()
	defer h.roomsMu.Unlock()
	for conv := range h.joined[c] {
		h.leaveLocked(c, conv)
	}
	delete(h.joined, c)
}

func (h *Hub) isMember(c *Client, conversationID string) bool {
	h.roomsMu.RLock()
	defer h.roomsMu.RUnlock()
	_, ok := h.rooms[conversationID][c]
	return ok
}

// relayTyping pushes a typing signal to every other member of the channel.
// The signal is never persisted and is dropped when the sender has not
// joined the channel.
func (h *Hub) relayTyping(from *Client, conversationID string, typing bool) int {
	h.roomsMu.RLock()
	members := h.rooms[conversationID]
	if _, ok := members[from]; !ok {
		h.roomsMu.RUnlock()
		return 0
	}
	targets := make([]*Client, 0, len(members))
	for m := range members {
		if m.userID != from.userID {
			targets = append(targets, m)
		}
	}
	h.roomsMu.RUnlock()

	ev := UserTyping{UserID: from.userID, ConversationID: conversationID, Typing: typing}
	sent := 0
	for _, m := range targets {
		if m.Push(domain.EventUserTyping, ev) == nil {
			sent++
		}
	}
	return sent
}

// Shutdown closes every live session with StatusGoingAway and waits for the
// session goroutines to finish or ctx to expire. New upgrades are refused
// once it starts.
func (h *Hub) Shutdown(ctx context.Context) error {
	h.mu.Lock()
	h.draining = true
	live := make([]*Client, 0, len(h.sessions))
	for c := range h.sessions {
		live = append(live, c)
	}
	h.mu.Unlock()

	log.Info().Int("sessions", len(live)).Msg("closing websocket sessions")
	for _, c := range live {
		c.closeAfter(websocket.StatusGoingAway, "server shutting down")
	}

	done := make(chan struct{})
	go func() {
		h.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
