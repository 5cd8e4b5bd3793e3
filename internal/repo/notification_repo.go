// Package repo implements the data persistence layer for domain entities,
// backed by GORM. This file provides repository functions for the
// Notification model. Every query is scoped to the recipient so one user can
// never read or mutate another user's notifications.
package repo

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/tbourn/go-chat-gateway/internal/domain"
)

// CreateNotification inserts an unread notification.
func CreateNotification(ctx context.Context, db *gorm.DB, n *domain.Notification) error {
	if n.ID == "" {
		n.ID = uuid.NewString()
	}
	if n.CreatedAt.IsZero() {
		n.CreatedAt = time.Now().UTC()
	}
	n.Status = domain.NotificationUnread
	return db.WithContext(ctx).Create(n).Error
}

// CountNotifications returns the total notifications held for recipientID.
func CountNotifications(ctx context.Context, db *gorm.DB, recipientID string) (int64, error) {
	var total int64
	err := db.WithContext(ctx).
		Model(&domain.Notification{}).
		Where("recipient_id = ?", recipientID).
		Count(&total).Error
	return total, err
}

// CountUnread returns how many notifications recipientID has not read.
func CountUnread(ctx context.Context, db *gorm.DB, recipientID string) (int64, error) {
	var total int64
	err := db.WithContext(ctx).
		Model(&domain.Notification{}).
		Where("recipient_id = ? AND status = ?", recipientID, string(domain.NotificationUnread)).
		Count(&total).Error
	return total, err
}

// ListNotificationsPage returns a page of notifications, newest first.
func ListNotificationsPage(ctx context.Context, db *gorm.DB, recipientID string, offset, limit int) ([]domain.Notification, error) {
	var out []domain.Notification
	err := db.WithContext(ctx).
		Where("recipient_id = ?", recipientID).
		Order("created_at DESC, id DESC").
		Offset(offset).
		Limit(limit).
		Find(&out).Error
	return out, err
}

// MarkNotificationRead flips a single notification to read. Returns
// ErrNotFound if the notification does not exist for recipientID.
func MarkNotificationRead(ctx context.Context, db *gorm.DB, id, recipientID string) error {
	res := db.WithContext(ctx).
		Model(&domain.Notification{}).
		Where("id = ? AND recipient_id = ?", id, recipientID).
		Update("status", string(domain.NotificationRead))
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

// MarkAllNotificationsRead flips every unread notification of recipientID.
func MarkAllNotificationsRead(ctx context.Context, db *gorm.DB, recipientID string) (int64, error) {
	res := db.WithContext(ctx).
		Model(&domain.Notification{}).
		Where("recipient_id = ? AND status = ?", recipientID, string(domain.NotificationUnread)).
		Update("status", string(domain.NotificationRead))
	return res.RowsAffected, res.Error
}

// DeleteNotification removes one notification. Returns ErrNotFound if it
// does not exist for recipientID.
func DeleteNotification(ctx context.Context, db *gorm.DB, id, recipientID string) error {
	res := db.WithContext(ctx).
		Where("id = ? AND recipient_id = ?", id, recipientID).
		Delete(&domain.Notification{})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

// DeleteAllNotifications removes every notification of recipientID.
func DeleteAllNotifications(ctx context.Context, db *gorm.DB, recipientID string) (int64, error) {
	res := db.WithContext(ctx).
		Where("recipient_id = ?", recipientID).
		Delete(&domain.Notification{})
	return res.RowsAffected, res.Error
}
