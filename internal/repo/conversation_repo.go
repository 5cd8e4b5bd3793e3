// Package repo implements the data persistence layer for domain entities,
// backed by GORM. This file provides repository functions for the
// Conversation model.
//
// All functions are context-aware and accept a *gorm.DB handle, making them
// safe for use within transactions or connection-scoped operations.
// They follow the "thin repository" approach: no business logic, only CRUD
// persistence and query composition.
//
// Error semantics:
//   - When a conversation is not found, functions return gorm.ErrRecordNotFound
//     (also exported here as ErrNotFound for convenience).
//   - On DB errors (constraint violations, connectivity issues, etc.),
//     the raw gorm error is propagated.
package repo

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/tbourn/go-chat-gateway/internal/domain"
)

// ErrNotFound is returned when a requested record does not exist.
// It aliases gorm.ErrRecordNotFound for convenience and consistency
// across the service layer and handlers.
var ErrNotFound = gorm.ErrRecordNotFound

// CreateConversation inserts a conversation with the given participant set.
// Conversations are created by the REST side of the product; the gateway
// only uses this for seeding and tests.
func CreateConversation(ctx context.Context, db *gorm.DB, typ domain.ConversationType, name string, participants []string) (*domain.Conversation, error) {
	c := &domain.Conversation{
		ID:           uuid.NewString(),
		Type:         typ,
		Name:         name,
		Participants: datatypes.JSONSlice[string](participants),
		CreatedAt:    time.Now().UTC(),
	}
	if err := db.WithContext(ctx).Create(c).Error; err != nil {
		return nil, err
	}
	return c, nil
}

// GetConversation fetches a conversation, including its participant set,
// in a single read. Returns ErrNotFound when the id does not resolve.
func GetConversation(ctx context.Context, db *gorm.DB, id string) (*domain.Conversation, error) {
	var c domain.Conversation
	if err := db.WithContext(ctx).Where("id = ?", id).First(&c).Error; err != nil {
		return nil, err
	}
	return &c, nil
}

// UpdateConversationPreview overwrites the last-message preview fields.
// There is no concurrency check: the preview is advisory and the last
// writer wins. Returns ErrNotFound if no row matched.
func UpdateConversationPreview(ctx context.Context, db *gorm.DB, id, preview string, at time.Time) error {
	res := db.WithContext(ctx).
		Model(&domain.Conversation{}).
		Where("id = ?", id).
		Updates(map[string]any{
			"last_message":    preview,
			"last_message_at": at,
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}
