package gateway

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/rs/zerolog"
	"nhooyr.io/websocket"

	"github.com/tbourn/go-chat-gateway/internal/domain"
	"github.com/tbourn/go-chat-gateway/internal/observability"
	"github.com/tbourn/go-chat-gateway/internal/services"
)

var errUnknownEvent = errors.New("unknown event")

// eventContext derives the context for one inbound event. A disconnect must
// not abort an event already being handled, but a stuck store call is cut
// off after EventTimeout.
func (h *Hub) eventContext(c *Client) (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.WithoutCancel(c.ctx), h.opts.EventTimeout)
}

// readLoop reads and handles frames one at a time until the socket closes.
func (h *Hub) readLoop(c *Client) {
	for {
		typ, data, err := c.conn.Read(c.ctx)
		if err != nil {
			if status := websocket.CloseStatus(err); status == -1 && c.ctx.Err() == nil {
				c.log.Debug().Err(err).Msg("read ended")
			}
			return
		}
		if typ != websocket.MessageText {
			c.pushError("", services.ErrValidation, "text frames only")
			continue
		}

		var f inFrame
		if err := json.Unmarshal(data, &f); err != nil || f.Event == "" {
			eventsTotal.WithLabelValues("invalid", "error").Inc()
			c.pushError("", services.ErrValidation, "malformed frame")
			continue
		}
		label := eventLabel(f.Event)

		if !c.limiter.Allow() {
			eventsTotal.WithLabelValues(label, "rate_limited").Inc()
			_ = c.Push(domain.EventError, ErrorPayload{Code: "rate_limited", Message: "too many events", Event: f.Event})
			continue
		}

		ctx, cancel := h.eventContext(c)
		ctx, span := observability.StartEventSpan(ctx, f.Event, c.userID, c.id)
		err = h.handle(ctx, c, f)
		observability.EndSpan(span, err)
		cancel()
		if err != nil {
			eventsTotal.WithLabelValues(label, "error").Inc()
			logEventError(c.log, f.Event, err)
			c.pushError(f.Event, err, "")
			continue
		}
		eventsTotal.WithLabelValues(label, "ok").Inc()
	}
}

// handle routes one inbound event to its service.
func (h *Hub) handle(ctx context.Context, c *Client, f inFrame) error {
	switch f.Event {
	case domain.EventSendMessage:
		var in services.SendInput
		if err := decode(f.Data, &in); err != nil {
			return err
		}
		_, err := h.deps.Messages.Send(ctx, c.userID, c, in)
		return err

	case domain.EventMarkMessageRead:
		var in ConversationRef
		if err := decode(f.Data, &in); err != nil {
			return err
		}
		_, err := h.deps.Messages.MarkRead(ctx, c.userID, in.ConversationID)
		return err

	case domain.EventTypingStart, domain.EventTypingStop:
		var in ConversationRef
		if err := decode(f.Data, &in); err != nil {
			return err
		}
		h.relayTyping(c, in.ConversationID, f.Event == domain.EventTypingStart)
		return nil

	case domain.EventJoinConversation:
		var in ConversationRef
		if err := decode(f.Data, &in); err != nil {
			return err
		}
		conv, err := h.deps.Conversations.Authorize(ctx, in.ConversationID, c.userID)
		if err != nil {
			return err
		}
		h.join(c, conv.ID)
		_ = c.Push(domain.EventJoinedConversation, ConversationRef{ConversationID: conv.ID})
		return nil

	case domain.EventLeaveConversation:
		var in ConversationRef
		if err := decode(f.Data, &in); err != nil {
			return err
		}
		h.leave(c, in.ConversationID)
		_ = c.Push(domain.EventLeftConversation, ConversationRef{ConversationID: in.ConversationID})
		return nil

	case domain.EventAddReaction:
		var in services.ReactionInput
		if err := decode(f.Data, &in); err != nil {
			return err
		}
		_, err := h.deps.Reactions.Add(ctx, c.userID, in)
		return err

	case domain.EventStatusChange:
		var in statusPayload
		if err := decode(f.Data, &in); err != nil {
			return err
		}
		_, err := h.deps.Presence.SetStatus(ctx, c.userID, domain.ActivityStatus(in.Status))
		return err

	case domain.EventAuthenticate:
		return validationError("already authenticated")

	default:
		return validationError(errUnknownEvent.Error() + ": " + f.Event)
	}
}

// pushError reports err to this connection only. msg overrides the public
// message when non-empty.
func (c *Client) pushError(event string, err error, msg string) {
	if msg == "" {
		msg = services.PublicMessage(err)
	}
	_ = c.Push(domain.EventError, ErrorPayload{
		Code:    services.ErrorCode(err),
		Message: msg,
		Event:   event,
	})
}

type validationErr struct{ msg string }

func (e *validationErr) Error() string { return e.msg }
func (e *validationErr) Unwrap() error { return services.ErrValidation }

func validationError(msg string) error { return &validationErr{msg: msg} }

func decode(data json.RawMessage, v any) error {
	if len(data) == 0 {
		return validationError("missing data")
	}
	if err := json.Unmarshal(data, v); err != nil {
		return validationError("invalid data: " + err.Error())
	}
	return nil
}

func logEventError(lg zerolog.Logger, event string, err error) {
	switch {
	case errors.Is(err, services.ErrStoreFailure):
		lg.Error().Err(err).Str("event", event).Msg("event failed")
	case errors.Is(err, services.ErrValidation), errors.Is(err, services.ErrNotFound), errors.Is(err, services.ErrForbidden):
		lg.Debug().Err(err).Str("event", event).Msg("event rejected")
	default:
		lg.Warn().Err(err).Str("event", event).Msg("event failed")
	}
}

// eventLabel bounds metric label cardinality to known event names.
func eventLabel(event string) string {
	switch event {
	case domain.EventAuthenticate, domain.EventSendMessage, domain.EventMarkMessageRead,
		domain.EventTypingStart, domain.EventTypingStop, domain.EventJoinConversation,
		domain.EventLeaveConversation, domain.EventAddReaction, domain.EventStatusChange:
		return event
	default:
		return "unknown"
	}
}
