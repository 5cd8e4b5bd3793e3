// Package services – NotificationService
//
// This file implements the notification dispatcher. Every producing event
// (message received, reaction, friend request, group invite, ...) goes
// through Dispatch so the stored shape and the real-time push policy stay
// uniform. It also backs the notification inbox REST endpoints.
package services

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog/log"
	"gorm.io/gorm"

	"github.com/tbourn/go-chat-gateway/internal/domain"
	"github.com/tbourn/go-chat-gateway/internal/presence"
	"github.com/tbourn/go-chat-gateway/internal/repo"
	"github.com/tbourn/go-chat-gateway/internal/utils"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// Notification is the dispatch request. TargetID and TargetType are
// optional.
type Notification struct {
	RecipientID string
	SenderID    string
	Type        domain.NotificationType
	Title       string
	Message     string
	TargetID    *string
	TargetType  *string
}

// NotificationService persists notifications and pushes a best-effort copy
// to online recipients.
type NotificationService struct {
	DB       *gorm.DB
	Presence *presence.Registry
}

// Dispatch records n and, if the recipient is online, pushes a real-time
// copy. It returns (nil, nil) without doing any work when the recipient is
// the sender. Push failures are logged and swallowed; the stored record is
// the durable copy.
func (s *NotificationService) Dispatch(ctx context.Context, n Notification) (*domain.Notification, error) {
	if n.RecipientID == "" || n.RecipientID == n.SenderID {
		return nil, nil
	}

	tr := otel.Tracer("services/NotificationService")
	ctx, span := tr.Start(ctx, "Dispatch",
		trace.WithAttributes(
			attribute.String("notification.type", string(n.Type)),
			attribute.String("recipient.id", n.RecipientID),
		),
	)
	defer span.End()

	rec := &domain.Notification{
		RecipientID: n.RecipientID,
		SenderID:    n.SenderID,
		Type:        n.Type,
		Title:       n.Title,
		Message:     n.Message,
		TargetID:    n.TargetID,
		TargetType:  n.TargetType,
	}
	if err := repo.CreateNotification(ctx, s.DB, rec); err != nil {
		return nil, storeErr(err)
	}

	if s.Presence != nil {
		payload := NotificationPush{
			Type:       n.Type,
			Title:      n.Title,
			Message:    n.Message,
			TargetID:   n.TargetID,
			TargetType: n.TargetType,
			SenderID:   n.SenderID,
			CreatedAt:  rec.CreatedAt,
		}
		online, err := s.Presence.Push(n.RecipientID, domain.EventNewNotification, payload)
		span.SetAttributes(attribute.Bool("recipient.online", online))
		if err != nil {
			log.Ctx(ctx).Warn().Err(err).
				Str("recipient_id", n.RecipientID).
				Msg("notification push failed")
		}
	}
	return rec, nil
}

// ListPage returns a page of the user's notifications (newest first), the
// total count, and the unread count.
func (s *NotificationService) ListPage(ctx context.Context, userID string, page, pageSize int) ([]domain.Notification, int64, int64, error) {
	tr := otel.Tracer("services/NotificationService")
	ctx, span := tr.Start(ctx, "ListPage",
		trace.WithAttributes(
			attribute.String("user.id", userID),
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

	total, err := repo.CountNotifications(ctx, s.DB, userID)
	if err != nil {
		return nil, 0, 0, storeErr(err)
	}
	unread, err := repo.CountUnread(ctx, s.DB, userID)
	if err != nil {
		return nil, 0, 0, storeErr(err)
	}
	if total == 0 {
		return []domain.Notification{}, 0, 0, nil
	}
	items, err := repo.ListNotificationsPage(ctx, s.DB, userID, offset, pageSize)
	if err != nil {
		return nil, 0, 0, storeErr(err)
	}
	return items, total, unread, nil
}

// Stats returns (count, newest UpdatedAt) for ETag generation.
func (s *NotificationService) Stats(ctx context.Context, userID string) (int64, *time.Time, error) {
	return repo.NotificationsStats(ctx, s.DB, userID)
}

// MarkRead flips one notification to read.
func (s *NotificationService) MarkRead(ctx context.Context, userID, id string) error {
	if err := repo.MarkNotificationRead(ctx, s.DB, id, userID); err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return ErrNotificationNotFound
		}
		return storeErr(err)
	}
	return nil
}

// MarkAllRead flips every unread notification of userID and returns how many
// changed.
func (s *NotificationService) MarkAllRead(ctx context.Context, userID string) (int64, error) {
	n, err := repo.MarkAllNotificationsRead(ctx, s.DB, userID)
	if err != nil {
		return 0, storeErr(err)
	}
	return n, nil
}

// Delete removes one notification.
func (s *NotificationService) Delete(ctx context.Context, userID, id string) error {
	if err := repo.DeleteNotification(ctx, s.DB, id, userID); err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return ErrNotificationNotFound
		}
		return storeErr(err)
	}
	return nil
}

// DeleteAll clears the user's inbox and returns how many rows were removed.
func (s *NotificationService) DeleteAll(ctx context.Context, userID string) (int64, error) {
	n, err := repo.DeleteAllNotifications(ctx, s.DB, userID)
	if err != nil {
		return 0, storeErr(err)
	}
	return n, nil
}
