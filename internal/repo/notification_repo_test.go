package repo

import (
	"context"
	"testing"
	"time"

	"gorm.io/gorm"

	"github.com/tbourn/go-chat-gateway/internal/domain"
)

func seedNotif(t *testing.T, db *gorm.DB, recipient string, at time.Time) *domain.Notification {
	t.Helper()
	n := &domain.Notification{
		RecipientID: recipient,
		SenderID:    "sender",
		Type:        domain.NotifyMessage,
		Title:       "New message",
		Message:     "Alice: hi",
		Status:      domain.NotificationRead, // forced back to unread
		CreatedAt:   at,
	}
	if err := CreateNotification(context.Background(), db, n); err != nil {
		t.Fatalf("seed notification: %v", err)
	}
	return n
}

func TestCreateNotification_DefaultsUnread(t *testing.T) {
	db := newTestDB(t, &domain.Notification{})
	n := seedNotif(t, db, "u1", time.Now().UTC())
	if n.ID == "" || n.Status != domain.NotificationUnread {
		t.Fatalf("unexpected notification: %+v", n)
	}
	unread, err := CountUnread(context.Background(), db, "u1")
	if err != nil || unread != 1 {
		t.Fatalf("CountUnread: n=%d err=%v", unread, err)
	}
}

func TestListNotificationsPage_NewestFirst(t *testing.T) {
	db := newTestDB(t, &domain.Notification{})
	base := time.Date(2025, 8, 1, 9, 0, 0, 0, time.UTC)
	var ids []string
	for i := 0; i < 3; i++ {
		ids = append(ids, seedNotif(t, db, "u1", base.Add(time.Duration(i)*time.Minute)).ID)
	}
	seedNotif(t, db, "u2", base)

	total, err := CountNotifications(context.Background(), db, "u1")
	if err != nil || total != 3 {
		t.Fatalf("CountNotifications: n=%d err=%v", total, err)
	}
	page, err := ListNotificationsPage(context.Background(), db, "u1", 0, 2)
	if err != nil {
		t.Fatalf("ListNotificationsPage: %v", err)
	}
	if len(page) != 2 || page[0].ID != ids[2] || page[1].ID != ids[1] {
		t.Fatalf("unexpected page: %+v", page)
	}
}

func TestMarkNotificationRead_ScopedToRecipient(t *testing.T) {
	db := newTestDB(t, &domain.Notification{})
	ctx := context.Background()
	n := seedNotif(t, db, "u1", time.Now().UTC())

	if err := MarkNotificationRead(ctx, db, n.ID, "intruder"); err != ErrNotFound {
		t.Fatalf("expected ErrNotFound for foreign recipient, got %v", err)
	}
	if err := MarkNotificationRead(ctx, db, n.ID, "u1"); err != nil {
		t.Fatalf("MarkNotificationRead: %v", err)
	}
	if unread, _ := CountUnread(ctx, db, "u1"); unread != 0 {
		t.Fatalf("expected 0 unread, got %d", unread)
	}
}

func TestMarkAllAndDelete(t *testing.T) {
	db := newTestDB(t, &domain.Notification{})
	ctx := context.Background()
	now := time.Now().UTC()
	a := seedNotif(t, db, "u1", now)
	seedNotif(t, db, "u1", now.Add(time.Second))
	seedNotif(t, db, "u2", now)

	n, err := MarkAllNotificationsRead(ctx, db, "u1")
	if err != nil || n != 2 {
		t.Fatalf("MarkAllNotificationsRead: n=%d err=%v", n, err)
	}
	if unread, _ := CountUnread(ctx, db, "u2"); unread != 1 {
		t.Fatalf("other recipient must be untouched, got %d unread", unread)
	}

	if err := DeleteNotification(ctx, db, a.ID, "u2"); err != ErrNotFound {
		t.Fatalf("expected ErrNotFound deleting foreign notification, got %v", err)
	}
	if err := DeleteNotification(ctx, db, a.ID, "u1"); err != nil {
		t.Fatalf("DeleteNotification: %v", err)
	}
	left, err := DeleteAllNotifications(ctx, db, "u1")
	if err != nil || left != 1 {
		t.Fatalf("DeleteAllNotifications: n=%d err=%v", left, err)
	}
	if total, _ := CountNotifications(ctx, db, "u1"); total != 0 {
		t.Fatalf("expected empty inbox, got %d", total)
	}
}
