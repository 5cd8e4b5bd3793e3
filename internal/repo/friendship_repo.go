// Package repo implements the data persistence layer for domain entities,
// backed by GORM. This file provides repository functions for the
// Friendship model used by presence broadcasting.
package repo

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/tbourn/go-chat-gateway/internal/domain"
)

// CreateFriendship inserts a directed friendship edge. Friend requests are
// handled outside the gateway; this exists for seeding and tests.
func CreateFriendship(ctx context.Context, db *gorm.DB, userID, friendID string, status domain.FriendshipStatus) (*domain.Friendship, error) {
	f := &domain.Friendship{
		ID:             uuid.NewString(),
		UserID:         userID,
		FriendID:       friendID,
		Status:         status,
		ActivityStatus: domain.ActivityOffline,
		CreatedAt:      time.Now().UTC(),
	}
	if err := db.WithContext(ctx).Create(f).Error; err != nil {
		return nil, err
	}
	return f, nil
}

// SetActivityStatus writes status onto every friendship row whose subject is
// userID and returns the number of rows touched.
func SetActivityStatus(ctx context.Context, db *gorm.DB, userID string, status domain.ActivityStatus, at time.Time) (int64, error) {
	res := db.WithContext(ctx).
		Model(&domain.Friendship{}).
		Where("user_id = ?", userID).
		Updates(map[string]any{
			"activity_status": string(status),
			"last_active_at":  at,
		})
	return res.RowsAffected, res.Error
}

// ListFriendIDs returns the ids of accepted friends of userID.
func ListFriendIDs(ctx context.Context, db *gorm.DB, userID string) ([]string, error) {
	var ids []string
	err := db.WithContext(ctx).
		Model(&domain.Friendship{}).
		Where("user_id = ? AND status = ?", userID, string(domain.FriendshipAccepted)).
		Order("friend_id ASC").
		Pluck("friend_id", &ids).Error
	return ids, err
}
