package repo

import (
	"context"
	"time"

	"gorm.io/gorm"

	"github.com/tbourn/go-chat-gateway/internal/domain"
)

// Stats is the (row count, newest updated_at) pair the REST layer hashes into
// weak ETags. Delivery and read transitions bump updated_at, so the pair moves
// whenever a list would render differently.
type Stats struct {
	Count     int64
	UpdatedAt *time.Time
}

// MessagesStats reports Stats for one conversation's messages.
func MessagesStats(ctx context.Context, db *gorm.DB, conversationID string) (int64, *time.Time, error) {
	s, err := scopeStats(db.WithContext(ctx).Model(&domain.Message{}).
		Where("conversation_id = ?", conversationID))
	return s.Count, s.UpdatedAt, err
}

// NotificationsStats reports Stats for one recipient's notifications.
func NotificationsStats(ctx context.Context, db *gorm.DB, recipientID string) (int64, *time.Time, error) {
	s, err := scopeStats(db.WithContext(ctx).Model(&domain.Notification{}).
		Where("recipient_id = ?", recipientID))
	return s.Count, s.UpdatedAt, err
}

// scopeStats runs COUNT then fetches the newest row's updated_at. MAX() is
// avoided because SQLite hands the aggregate back as TEXT.
func scopeStats(q *gorm.DB) (Stats, error) {
	var s Stats
	if err := q.Session(&gorm.Session{}).Count(&s.Count).Error; err != nil {
		return Stats{}, err
	}
	if s.Count == 0 {
		return s, nil
	}
	var row struct{ UpdatedAt time.Time }
	if err := q.Session(&gorm.Session{}).Select("updated_at").
		Order("updated_at DESC").Limit(1).Scan(&row).Error; err != nil {
		return Stats{}, err
	}
	s.UpdatedAt = &row.UpdatedAt
	return s, nil
}
