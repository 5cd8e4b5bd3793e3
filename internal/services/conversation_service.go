// Package services – ConversationService
//
// This file implements the conversation resolver: the single place that turns
// a conversation id into its participant set and decides membership. Every
// component that computes a fan-out audience goes through it.
package services

import (
	"context"
	"errors"
	"strings"
	"time"

	"gorm.io/gorm"

	"github.com/tbourn/go-chat-gateway/internal/domain"
	"github.com/tbourn/go-chat-gateway/internal/repo"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// ConversationRepo defines the repository contract required by
// ConversationService.
type ConversationRepo interface {
	// GetConversation fetches a conversation with its participants.
	GetConversation(ctx context.Context, db *gorm.DB, id string) (*domain.Conversation, error)

	// UpdateConversationPreview overwrites the last-message preview.
	UpdateConversationPreview(ctx context.Context, db *gorm.DB, id, preview string, at time.Time) error
}

// ConversationService resolves conversations and their participants.
type ConversationService struct {
	// DB is the GORM handle used for persistence.
	DB *gorm.DB
	// Repo is optional; the repo package functions are used when nil.
	Repo ConversationRepo
}

// NewConversationService constructs a ConversationService.
func NewConversationService(db *gorm.DB, r ConversationRepo) *ConversationService {
	return &ConversationService{DB: db, Repo: r}
}

// Resolve loads the conversation with a single store read.
func (s *ConversationService) Resolve(ctx context.Context, conversationID string) (*domain.Conversation, error) {
	tr := otel.Tracer("services/ConversationService")
	ctx, span := tr.Start(ctx, "Resolve",
		trace.WithAttributes(attribute.String("conversation.id", conversationID)),
	)
	defer span.End()

	conversationID = strings.TrimSpace(conversationID)
	if conversationID == "" {
		return nil, ErrMissingConversationID
	}

	var (
		c   *domain.Conversation
		err error
	)
	if s.Repo != nil {
		c, err = s.Repo.GetConversation(ctx, s.DB, conversationID)
	} else {
		c, err = repo.GetConversation(ctx, s.DB, conversationID)
	}
	if err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return nil, ErrConversationNotFound
		}
		return nil, storeErr(err)
	}
	span.SetAttributes(attribute.Int("conversation.participants", len(c.Participants)))
	return c, nil
}

// ParticipantsOf returns the participant ids of a conversation.
func (s *ConversationService) ParticipantsOf(ctx context.Context, conversationID string) ([]string, error) {
	c, err := s.Resolve(ctx, conversationID)
	if err != nil {
		return nil, err
	}
	out := make([]string, len(c.Participants))
	copy(out, c.Participants)
	return out, nil
}

// IsParticipant reports whether userID belongs to the conversation.
func (s *ConversationService) IsParticipant(ctx context.Context, conversationID, userID string) (bool, error) {
	c, err := s.Resolve(ctx, conversationID)
	if err != nil {
		return false, err
	}
	return c.HasParticipant(userID), nil
}

// Authorize resolves the conversation and fails with ErrNotParticipant when
// userID is not a member.
func (s *ConversationService) Authorize(ctx context.Context, conversationID, userID string) (*domain.Conversation, error) {
	c, err := s.Resolve(ctx, conversationID)
	if err != nil {
		return nil, err
	}
	if !c.HasParticipant(userID) {
		return nil, ErrNotParticipant
	}
	return c, nil
}

// UpdatePreview writes the advisory last-message preview. Last writer wins.
func (s *ConversationService) UpdatePreview(ctx context.Context, conversationID, preview string, at time.Time) error {
	if s.Repo != nil {
		return s.Repo.UpdateConversationPreview(ctx, s.DB, conversationID, preview, at)
	}
	return repo.UpdateConversationPreview(ctx, s.DB, conversationID, preview, at)
}
