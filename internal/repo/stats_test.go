package repo

import (
	"context"
	"fmt"
	"testing"
	"time"

	sqlite "github.com/glebarez/sqlite"
	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/tbourn/go-chat-gateway/internal/domain"
)

// newTestDB opens a private in-memory database and migrates the given models.
func newTestDB(t *testing.T, migrate ...any) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:repo_%s?mode=memory&cache=shared", uuid.NewString())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	if len(migrate) > 0 {
		if err := db.AutoMigrate(migrate...); err != nil {
			t.Fatalf("automigrate: %v", err)
		}
	}
	return db
}

func TestMessagesStats(t *testing.T) {
	ctx := context.Background()

	t.Run("missing table", func(t *testing.T) {
		if _, _, err := MessagesStats(ctx, newTestDB(t), "c1"); err == nil {
			t.Fatal("want error without a messages table")
		}
	})

	t.Run("empty conversation", func(t *testing.T) {
		n, at, err := MessagesStats(ctx, newTestDB(t, &domain.Message{}), "c1")
		if err != nil || n != 0 || at != nil {
			t.Fatalf("got (%d, %v, %v), want (0, nil, nil)", n, at, err)
		}
	})

	t.Run("scoped to conversation", func(t *testing.T) {
		db := newTestDB(t, &domain.Message{})
		base := time.Date(2025, 4, 1, 12, 0, 0, 0, time.UTC)
		seedMsg(t, db, "m1", "cX", "u1", domain.StatusSent, base)
		seedMsg(t, db, "m2", "cX", "u2", domain.StatusRead, base.Add(5*time.Minute))
		seedMsg(t, db, "m3", "cY", "u1", domain.StatusSent, base.Add(time.Hour))

		n, at, err := MessagesStats(ctx, db, "cX")
		if err != nil {
			t.Fatalf("MessagesStats: %v", err)
		}
		if n != 2 || at == nil || !at.Equal(base.Add(5*time.Minute)) {
			t.Fatalf("got (%d, %v)", n, at)
		}
	})

	t.Run("status change moves the stamp", func(t *testing.T) {
		db := newTestDB(t, &domain.Message{})
		base := time.Date(2025, 4, 1, 12, 0, 0, 0, time.UTC)
		seedMsg(t, db, "m1", "cX", "u1", domain.StatusSent, base)
		_, before, _ := MessagesStats(ctx, db, "cX")

		later := base.Add(time.Minute)
		if err := db.Model(&domain.Message{}).Where("id = ?", "m1").
			Updates(map[string]any{"status": domain.StatusDelivered, "updated_at": later}).Error; err != nil {
			t.Fatalf("update: %v", err)
		}
		_, after, _ := MessagesStats(ctx, db, "cX")
		if before == nil || after == nil || !after.After(*before) {
			t.Fatalf("stamp did not advance: %v -> %v", before, after)
		}
	})

	t.Run("latest select fails", func(t *testing.T) {
		db := newTestDB(t, &domain.Message{})
		seedMsg(t, db, "m1", "cerr", "u1", domain.StatusSent, time.Now().UTC())
		if err := db.Exec(`ALTER TABLE messages RENAME COLUMN updated_at TO updated_at_old`).Error; err != nil {
			t.Fatalf("rename column: %v", err)
		}
		if _, _, err := MessagesStats(ctx, db, "cerr"); err == nil {
			t.Fatal("want error after column rename")
		}
	})
}

func TestNotificationsStats(t *testing.T) {
	ctx := context.Background()
	db := newTestDB(t, &domain.Notification{})

	if n, at, err := NotificationsStats(ctx, db, "u1"); err != nil || n != 0 || at != nil {
		t.Fatalf("empty: got (%d, %v, %v)", n, at, err)
	}

	t1 := time.Date(2025, 5, 1, 8, 0, 0, 0, time.UTC)
	t2 := t1.Add(time.Hour)
	for i, row := range []struct {
		to string
		at time.Time
	}{{"u1", t1}, {"u1", t2}, {"u2", t2.Add(time.Hour)}} {
		n := &domain.Notification{
			ID: fmt.Sprintf("n%d", i), RecipientID: row.to, Type: domain.NotifyMessage,
			Title: "New message", Status: domain.NotificationUnread,
			CreatedAt: row.at, UpdatedAt: row.at,
		}
		if err := db.Create(n).Error; err != nil {
			t.Fatalf("seed: %v", err)
		}
	}

	n, at, err := NotificationsStats(ctx, db, "u1")
	if err != nil {
		t.Fatalf("NotificationsStats: %v", err)
	}
	if n != 2 || at == nil || !at.Equal(t2) {
		t.Fatalf("got (%d, %v), want (2, %v)", n, at, t2)
	}
}
