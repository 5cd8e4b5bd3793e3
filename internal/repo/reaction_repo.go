// Package repo implements the data persistence layer for domain entities,
// backed by GORM. This file provides repository functions for the Reaction
// model.
package repo

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/tbourn/go-chat-gateway/internal/domain"
)

// UpsertReaction records userID's reaction on a target. An existing reaction
// by the same user on the same target has its type replaced. The stored row
// is returned.
func UpsertReaction(ctx context.Context, db *gorm.DB, userID, targetID string, targetType domain.TargetType, typ domain.ReactionType) (*domain.Reaction, error) {
	now := time.Now().UTC()
	r := &domain.Reaction{
		ID:         uuid.NewString(),
		UserID:     userID,
		TargetID:   targetID,
		TargetType: targetType,
		Type:       typ,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	err := db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "user_id"}, {Name: "target_id"}, {Name: "target_type"}},
			DoUpdates: clause.AssignmentColumns([]string{"type", "updated_at"}),
		}).
		Create(r).Error
	if err != nil {
		return nil, err
	}

	var stored domain.Reaction
	if err := db.WithContext(ctx).
		Where("user_id = ? AND target_id = ? AND target_type = ?", userID, targetID, string(targetType)).
		First(&stored).Error; err != nil {
		return nil, err
	}
	return &stored, nil
}

// CountReactions returns how many reactions a target has.
func CountReactions(ctx context.Context, db *gorm.DB, targetID string, targetType domain.TargetType) (int64, error) {
	var total int64
	err := db.WithContext(ctx).
		Model(&domain.Reaction{}).
		Where("target_id = ? AND target_type = ?", targetID, string(targetType)).
		Count(&total).Error
	return total, err
}
