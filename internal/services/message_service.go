// Package services – MessageService
//
// This file implements the message ingestion and fan-out pipeline together
// with the delivery/read state transitions it drives. Send validates and
// persists a message, updates the conversation preview, acknowledges the
// sender, pushes the message to online peers, advances it to delivered when
// anyone received it, and dispatches a durable notification per peer.
//
// Only resolution, authorization and the message insert can fail a send.
// Everything after the insert is best-effort: failures are logged and never
// roll the message back.
//
// Observability: all public methods are OpenTelemetry-instrumented; spans
// include conversation/user identifiers where applicable.

package services

import (
	"context"
	"errors"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/rs/zerolog/log"
	"golang.org/x/text/unicode/norm"
	"gorm.io/gorm"

	"github.com/tbourn/go-chat-gateway/internal/domain"
	"github.com/tbourn/go-chat-gateway/internal/presence"
	"github.com/tbourn/go-chat-gateway/internal/repo"
	"github.com/tbourn/go-chat-gateway/internal/utils"

	// OpenTelemetry
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

const (
	previewMaxRunes = 100

	defaultMaxContentRunes = 4000

	notifyTitleMessage = "New message"
	targetConversation = "conversation"
)

// SendInput is the client payload of a send-message event. The sender is
// never part of it; it always comes from the authenticated session.
type SendInput struct {
	ConversationID string             `json:"conversation_id"`
	Content        string             `json:"content"`
	Type           domain.MessageType `json:"message_type,omitempty"`
	Medias         []domain.Media     `json:"medias,omitempty"`
	ReplyTo        *string            `json:"reply_to,omitempty"`
}

// MessageService coordinates message persistence, fan-out and status.
type MessageService struct {
	DB            *gorm.DB
	Conversations *ConversationService
	Presence      *presence.Registry
	Notifier      *NotificationService

	// MaxContentRunes caps message content; defaults to 4000 when zero.
	MaxContentRunes int
}

// Send runs the full pipeline for one message. origin is the connection the
// request arrived on and receives the acknowledgement; when nil the sender's
// registered connection, if any, is used.
func (s *MessageService) Send(ctx context.Context, senderID string, origin presence.Conn, in SendInput) (*MessageView, error) {
	tr := otel.Tracer("services/MessageService")
	ctx, span := tr.Start(ctx, "Send",
		trace.WithAttributes(
			attribute.String("conversation.id", in.ConversationID),
			attribute.String("user.id", senderID),
		),
	)
	defer span.End()

	// 1-2) resolve + authorize
	conv, err := s.Conversations.Authorize(ctx, in.ConversationID, senderID)
	if err != nil {
		return nil, err
	}

	// 3) validate + persist
	msg, err := s.buildMessage(ctx, conv.ID, senderID, in)
	if err != nil {
		return nil, err
	}
	if err := repo.CreateMessage(ctx, s.DB, msg); err != nil {
		return nil, storeErr(err)
	}
	span.SetAttributes(attribute.String("message.id", msg.ID))

	lg := log.Ctx(ctx).With().
		Str("conversation_id", conv.ID).
		Str("message_id", msg.ID).
		Logger()

	// 4) preview
	preview := previewOf(msg)
	if err := s.Conversations.UpdatePreview(ctx, conv.ID, preview, msg.CreatedAt); err != nil {
		lg.Warn().Err(err).Msg("conversation preview update failed")
	}

	view := &MessageView{Message: *msg, Sender: s.senderInfo(ctx, senderID)}
	// Pushes are serialized later by the writer, so they get a snapshot.
	snapshot := *view

	// 5) ack to sender
	ack := origin
	if ack == nil && s.Presence != nil {
		ack, _ = s.Presence.Lookup(senderID)
	}
	if ack != nil {
		if err := ack.Push(domain.EventMessageSent, snapshot); err != nil {
			lg.Warn().Err(err).Msg("message-sent push failed")
		}
	}

	// 6) fan-out to online peers
	delivered := 0
	peers := otherParticipants(conv, senderID)
	if s.Presence != nil {
		for _, uid := range peers {
			online, err := s.Presence.Push(uid, domain.EventReceiveMessage, snapshot)
			if !online {
				continue
			}
			if err != nil {
				lg.Warn().Err(err).Str("recipient_id", uid).Msg("receive-message push failed")
				continue
			}
			delivered++
		}
	}
	span.SetAttributes(attribute.Int("fanout.delivered", delivered))

	// 7) sent -> delivered when anyone got it
	if delivered > 0 {
		changed, err := repo.AdvanceMessageStatus(ctx, s.DB, msg.ID, domain.StatusDelivered)
		switch {
		case err != nil:
			lg.Error().Err(err).Msg("delivered status advance failed")
		case changed:
			view.Status = domain.StatusDelivered
			if ack != nil {
				if err := ack.Push(domain.EventMessageDelivered, MessageDelivered{
					MessageID:      msg.ID,
					ConversationID: conv.ID,
					Status:         domain.StatusDelivered,
				}); err != nil {
					lg.Warn().Err(err).Msg("message-delivered push failed")
				}
			}
		}
	}

	// 8) durable notification per peer
	if s.Notifier != nil {
		name := view.Sender.DisplayName
		if name == "" {
			name = view.Sender.Username
		}
		if name == "" {
			name = senderID
		}
		target, targetType := conv.ID, targetConversation
		for _, uid := range peers {
			_, err := s.Notifier.Dispatch(ctx, Notification{
				RecipientID: uid,
				SenderID:    senderID,
				Type:        domain.NotifyMessage,
				Title:       notifyTitleMessage,
				Message:     name + ": " + preview,
				TargetID:    &target,
				TargetType:  &targetType,
			})
			if err != nil {
				lg.Error().Err(err).Str("recipient_id", uid).Msg("message notification failed")
			}
		}
	}

	return view, nil
}

// MarkRead moves every message in the conversation not authored by readerID
// to read. When anything changed, other online participants receive
// messages-read. A conversation with nothing unread is a no-op.
func (s *MessageService) MarkRead(ctx context.Context, readerID, conversationID string) (int64, error) {
	tr := otel.Tracer("services/MessageService")
	ctx, span := tr.Start(ctx, "MarkRead",
		trace.WithAttributes(
			attribute.String("conversation.id", conversationID),
			attribute.String("user.id", readerID),
		),
	)
	defer span.End()

	conv, err := s.Conversations.Authorize(ctx, conversationID, readerID)
	if err != nil {
		return 0, err
	}

	n, err := repo.MarkConversationRead(ctx, s.DB, conv.ID, readerID)
	if err != nil {
		return 0, storeErr(err)
	}
	span.SetAttributes(attribute.Int64("messages.read", n))
	if n == 0 || s.Presence == nil {
		return n, nil
	}

	ev := MessagesRead{ConversationID: conv.ID, ReadBy: readerID}
	for _, uid := range otherParticipants(conv, readerID) {
		if _, err := s.Presence.Push(uid, domain.EventMessagesRead, ev); err != nil {
			log.Ctx(ctx).Warn().Err(err).Str("recipient_id", uid).Msg("messages-read push failed")
		}
	}
	return n, nil
}

// ListPage returns paginated messages of a conversation the user belongs to.
func (s *MessageService) ListPage(ctx context.Context, userID, conversationID string, page, pageSize int) ([]domain.Message, int64, error) {
	tr := otel.Tracer("services/MessageService")
	ctx, span := tr.Start(ctx, "ListPage",
		trace.WithAttributes(
			attribute.String("conversation.id", conversationID),
			attribute.Int("page", page),
			attribute.Int("page_size", pageSize),
		),
	)
	defer span.End()

	if page < 1 {
		page = 1
	}
	if pageSize <= 0 {
		pageSize = 20
	}
	offset := utils.PageOffset(page, pageSize)

	if _, err := s.Conversations.Authorize(ctx, conversationID, userID); err != nil {
		return nil, 0, err
	}

	total, err := repo.CountMessages(ctx, s.DB, conversationID)
	if err != nil {
		return nil, 0, storeErr(err)
	}
	if total == 0 {
		return []domain.Message{}, 0, nil
	}

	items, err := repo.ListMessagesPage(ctx, s.DB, conversationID, offset, pageSize)
	if err != nil {
		return nil, 0, storeErr(err)
	}
	return items, total, nil
}

// Stats returns (count, newest UpdatedAt) for ETag generation.
func (s *MessageService) Stats(ctx context.Context, conversationID string) (int64, *time.Time, error) {
	return repo.MessagesStats(ctx, s.DB, conversationID)
}

func (s *MessageService) buildMessage(ctx context.Context, conversationID, senderID string, in SendInput) (*domain.Message, error) {
	typ := in.Type
	if typ == "" {
		typ = domain.MessageText
	}
	if !typ.Valid() {
		return nil, ErrInvalidMessageType
	}

	content := sanitizeContent(in.Content)
	limit := s.MaxContentRunes
	if limit <= 0 {
		limit = defaultMaxContentRunes
	}
	if utf8.RuneCountInString(content) > limit {
		return nil, ErrContentTooLong
	}

	medias := make([]domain.Media, 0, len(in.Medias))
	for _, m := range in.Medias {
		if strings.TrimSpace(m.URL) == "" {
			continue
		}
		medias = append(medias, m)
	}
	if content == "" && (typ == domain.MessageText || len(medias) == 0) {
		return nil, ErrEmptyContent
	}

	var replyTo *string
	if in.ReplyTo != nil && strings.TrimSpace(*in.ReplyTo) != "" {
		id := strings.TrimSpace(*in.ReplyTo)
		parent, err := repo.GetMessage(ctx, s.DB, id)
		if err != nil {
			if errors.Is(err, repo.ErrNotFound) {
				return nil, ErrReplyNotFound
			}
			return nil, storeErr(err)
		}
		if parent.ConversationID != conversationID {
			return nil, ErrReplyNotFound
		}
		replyTo = &id
	}

	return &domain.Message{
		ConversationID: conversationID,
		SenderID:       senderID,
		Content:        content,
		Type:           typ,
		Medias:         medias,
		ReplyTo:        replyTo,
	}, nil
}

// senderInfo enriches pushes with display info. A lookup failure degrades to
// the bare id.
func (s *MessageService) senderInfo(ctx context.Context, userID string) SenderInfo {
	info := SenderInfo{ID: userID}
	u, err := repo.GetUser(ctx, s.DB, userID)
	if err != nil {
		log.Ctx(ctx).Warn().Err(err).Str("user_id", userID).Msg("sender lookup failed")
		return info
	}
	info.Username = u.Username
	info.DisplayName = u.DisplayName
	info.AvatarURL = u.AvatarURL
	return info
}

// sanitizeContent normalizes newlines and Unicode form, then trims.
func sanitizeContent(s string) string {
	s = strings.ReplaceAll(s, "\r\n", "\n")
	s = strings.ReplaceAll(s, "\r", "\n")
	s = norm.NFC.String(s)
	return strings.TrimSpace(s)
}

// previewOf returns the conversation preview for m: its first 100 runes, or
// a bracketed type tag for media-only messages.
func previewOf(m *domain.Message) string {
	if m.Content == "" {
		return "[" + string(m.Type) + "]"
	}
	if utf8.RuneCountInString(m.Content) <= previewMaxRunes {
		return m.Content
	}
	r := []rune(m.Content)
	return string(r[:previewMaxRunes])
}

func otherParticipants(c *domain.Conversation, self string) []string {
	out := make([]string, 0, len(c.Participants))
	seen := make(map[string]struct{}, len(c.Participants))
	for _, p := range c.Participants {
		if p == self || p == "" {
			continue
		}
		if _, dup := seen[p]; dup {
			continue
		}
		seen[p] = struct{}{}
		out = append(out, p)
	}
	return out
}
