// Package services – ReactionService
//
// This file implements add-reaction: a participant of a message's
// conversation reacts to it, every online participant is told, and the
// message author gets a notification through the dispatcher.
package services

import (
	"context"
	"errors"
	"strings"

	"github.com/rs/zerolog/log"
	"gorm.io/gorm"

	"github.com/tbourn/go-chat-gateway/internal/domain"
	"github.com/tbourn/go-chat-gateway/internal/presence"
	"github.com/tbourn/go-chat-gateway/internal/repo"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

const notifyTitleReaction = "New reaction"

// ReactionInput is the client payload of an add-reaction event.
type ReactionInput struct {
	TargetID     string              `json:"target_id"`
	TargetType   domain.TargetType   `json:"target_type"`
	ReactionType domain.ReactionType `json:"reaction_type"`
}

// ReactionService records reactions on messages.
type ReactionService struct {
	DB            *gorm.DB
	Conversations *ConversationService
	Presence      *presence.Registry
	Notifier      *NotificationService
}

// Add upserts userID's reaction and fans it out.
func (s *ReactionService) Add(ctx context.Context, userID string, in ReactionInput) (*domain.Reaction, error) {
	tr := otel.Tracer("services/ReactionService")
	ctx, span := tr.Start(ctx, "Add",
		trace.WithAttributes(
			attribute.String("user.id", userID),
			attribute.String("target.id", in.TargetID),
			attribute.String("reaction.type", string(in.ReactionType)),
		),
	)
	defer span.End()

	in.TargetID = strings.TrimSpace(in.TargetID)
	if in.TargetType == "" {
		in.TargetType = domain.TargetMessage
	}
	if in.TargetID == "" || in.TargetType != domain.TargetMessage {
		return nil, ErrInvalidTarget
	}
	if !in.ReactionType.Valid() {
		return nil, ErrInvalidReaction
	}

	msg, err := repo.GetMessage(ctx, s.DB, in.TargetID)
	if err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return nil, ErrMessageNotFound
		}
		return nil, storeErr(err)
	}
	conv, err := s.Conversations.Authorize(ctx, msg.ConversationID, userID)
	if err != nil {
		return nil, err
	}

	r, err := repo.UpsertReaction(ctx, s.DB, userID, msg.ID, in.TargetType, in.ReactionType)
	if err != nil {
		return nil, storeErr(err)
	}

	if s.Presence != nil {
		ev := ReactionAdded{
			TargetID:     msg.ID,
			TargetType:   in.TargetType,
			ReactionType: in.ReactionType,
			UserID:       userID,
		}
		for _, uid := range otherParticipants(conv, "") {
			if _, err := s.Presence.Push(uid, domain.EventReactionAdded, ev); err != nil {
				log.Ctx(ctx).Warn().Err(err).Str("recipient_id", uid).Msg("reaction-added push failed")
			}
		}
	}

	if s.Notifier != nil {
		name := userID
		if u, err := repo.GetUser(ctx, s.DB, userID); err == nil && u.DisplayName != "" {
			name = u.DisplayName
		}
		target, targetType := msg.ID, string(domain.TargetMessage)
		if _, err := s.Notifier.Dispatch(ctx, Notification{
			RecipientID: msg.SenderID,
			SenderID:    userID,
			Type:        domain.NotifyReaction,
			Title:       notifyTitleReaction,
			Message:     name + " reacted " + string(in.ReactionType) + " to your message",
			TargetID:    &target,
			TargetType:  &targetType,
		}); err != nil {
			log.Ctx(ctx).Error().Err(err).Str("recipient_id", msg.SenderID).Msg("reaction notification failed")
		}
	}

	return r, nil
}
