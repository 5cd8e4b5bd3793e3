package services

import (
	"context"
	"errors"
	"testing"

	"github.com/tbourn/go-chat-gateway/internal/domain"
)

func TestDispatch_SelfIsNoop(t *testing.T) {
	f := newFixture(t)
	a := f.online("alice")

	n, err := f.notifier.Dispatch(context.Background(), Notification{
		RecipientID: "alice", SenderID: "alice", Type: domain.NotifyMessage, Title: "t",
	})
	if err != nil || n != nil {
		t.Fatalf("self dispatch should return (nil, nil), got (%v, %v)", n, err)
	}
	if rows := f.countRows(t, &domain.Notification{}); rows != 0 {
		t.Fatalf("no row expected, got %d", rows)
	}
	if len(a.order()) != 0 {
		t.Fatalf("no push expected, got %v", a.order())
	}
}

func TestDispatch_OnlineAndOffline(t *testing.T) {
	f := newFixture(t)
	b := f.online("bob")
	target, tt := "c1", "conversation"

	n, err := f.notifier.Dispatch(context.Background(), Notification{
		RecipientID: "bob", SenderID: "alice", Type: domain.NotifyFriendRequest,
		Title: "Friend request", Message: "Alice wants to be friends", TargetID: &target, TargetType: &tt,
	})
	if err != nil || n == nil || n.Status != domain.NotificationUnread {
		t.Fatalf("Dispatch online: n=%+v err=%v", n, err)
	}
	got := b.named(domain.EventNewNotification)
	if len(got) != 1 {
		t.Fatalf("expected one push, got %d", len(got))
	}
	p := got[0].(NotificationPush)
	if p.SenderID != "alice" || p.TargetID == nil || *p.TargetID != "c1" || p.Type != domain.NotifyFriendRequest {
		t.Fatalf("unexpected push payload: %+v", p)
	}

	// offline recipient still gets the durable record
	if _, err := f.notifier.Dispatch(context.Background(), Notification{
		RecipientID: "carol", SenderID: "alice", Type: domain.NotifyGroupInvite, Title: "Invite",
	}); err != nil {
		t.Fatalf("Dispatch offline: %v", err)
	}
	if rows := f.countRows(t, &domain.Notification{}); rows != 2 {
		t.Fatalf("expected 2 rows, got %d", rows)
	}
}

func TestDispatch_StoreFailure(t *testing.T) {
	f := newFixture(t)
	_ = f.db.Migrator().DropTable(&domain.Notification{})
	_, err := f.notifier.Dispatch(context.Background(), Notification{RecipientID: "bob", SenderID: "alice", Title: "x"})
	if !errors.Is(err, ErrStoreFailure) {
		t.Fatalf("expected ErrStoreFailure, got %v", err)
	}
}

func TestNotificationInbox(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	var ids []string
	for i := 0; i < 3; i++ {
		n, err := f.notifier.Dispatch(ctx, Notification{RecipientID: "bob", SenderID: "alice", Type: domain.NotifyMessage, Title: "New message"})
		if err != nil {
			t.Fatalf("seed: %v", err)
		}
		ids = append(ids, n.ID)
	}

	items, total, unread, err := f.notifier.ListPage(ctx, "bob", 1, 2)
	if err != nil || total != 3 || unread != 3 || len(items) != 2 {
		t.Fatalf("ListPage: items=%d total=%d unread=%d err=%v", len(items), total, unread, err)
	}

	if err := f.notifier.MarkRead(ctx, "alice", ids[0]); !errors.Is(err, ErrNotificationNotFound) {
		t.Fatalf("foreign MarkRead should be not found, got %v", err)
	}
	if err := f.notifier.MarkRead(ctx, "bob", ids[0]); err != nil {
		t.Fatalf("MarkRead: %v", err)
	}
	if n, err := f.notifier.MarkAllRead(ctx, "bob"); err != nil || n != 2 {
		t.Fatalf("MarkAllRead: n=%d err=%v", n, err)
	}
	if err := f.notifier.Delete(ctx, "bob", ids[1]); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if err := f.notifier.Delete(ctx, "bob", ids[1]); !errors.Is(err, ErrNotFound) {
		t.Fatalf("second Delete should be not found, got %v", err)
	}
	if n, err := f.notifier.DeleteAll(ctx, "bob"); err != nil || n != 2 {
		t.Fatalf("DeleteAll: n=%d err=%v", n, err)
	}
	_, total, unread, _ = f.notifier.ListPage(ctx, "bob", 1, 20)
	if total != 0 || unread != 0 {
		t.Fatalf("inbox should be empty, total=%d unread=%d", total, unread)
	}
}
