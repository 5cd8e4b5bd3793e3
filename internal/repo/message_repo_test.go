package repo

import (
	"context"
	"fmt"
	"path/filepath"
	"testing"
	"time"

	sqlite "github.com/glebarez/sqlite" // pure-Go SQLite (no CGO)
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/tbourn/go-chat-gateway/internal/domain"
)

// test DB helper
func newMsgRepoDB(t *testing.T, migrate ...any) *gorm.DB {
	t.Helper()

	dsn := filepath.Join(t.TempDir(), fmt.Sprintf("msg_repo_%d.db", time.Now().UnixNano()))
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			_ = sqlDB.Close()
		}
	})
	if len(migrate) > 0 {
		if err := db.AutoMigrate(migrate...); err != nil {
			t.Fatalf("automigrate: %v", err)
		}
	}
	return db
}

func seedMsg(t *testing.T, db *gorm.DB, id, conv, sender string, status domain.MessageStatus, at time.Time) {
	t.Helper()
	m := &domain.Message{ID: id, ConversationID: conv, SenderID: sender, Content: "x", Type: domain.MessageText, Status: status, CreatedAt: at, UpdatedAt: at}
	if err := db.Create(m).Error; err != nil {
		t.Fatalf("seed %s: %v", id, err)
	}
}

func statusOf(t *testing.T, db *gorm.DB, id string) domain.MessageStatus {
	t.Helper()
	m, err := GetMessage(context.Background(), db, id)
	if err != nil {
		t.Fatalf("GetMessage(%s): %v", id, err)
	}
	return m.Status
}

func TestCreateMessage_AssignsIDAndForcesSent(t *testing.T) {
	db := newMsgRepoDB(t, &domain.Message{})

	msg := &domain.Message{
		ConversationID: "c1",
		SenderID:       "u1",
		Content:        "hello",
		Type:           domain.MessageText,
		Status:         domain.StatusRead, // ignored
		Medias:         []domain.Media{{URL: "https://cdn/x.png", Type: "image"}},
	}
	if err := CreateMessage(context.Background(), db, msg); err != nil {
		t.Fatalf("CreateMessage error: %v", err)
	}
	if msg.ID == "" || msg.Status != domain.StatusSent {
		t.Fatalf("unexpected message: %+v", msg)
	}
	if msg.CreatedAt.IsZero() || time.Since(msg.CreatedAt) > time.Minute {
		t.Fatalf("CreatedAt not set reasonably: %v", msg.CreatedAt)
	}

	got, err := GetMessage(context.Background(), db, msg.ID)
	if err != nil {
		t.Fatalf("GetMessage: %v", err)
	}
	if got.Status != domain.StatusSent || len(got.Medias) != 1 || got.Medias[0].URL != "https://cdn/x.png" {
		t.Fatalf("roundtrip mismatch: %+v", got)
	}
}

func TestGetMessage_NotFound(t *testing.T) {
	db := newMsgRepoDB(t, &domain.Message{})
	if _, err := GetMessage(context.Background(), db, "nope"); err != ErrNotFound {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestAdvanceMessageStatus_Monotonic(t *testing.T) {
	db := newMsgRepoDB(t, &domain.Message{})
	ctx := context.Background()
	now := time.Now().UTC()
	seedMsg(t, db, "m1", "c1", "u1", domain.StatusSent, now)

	ok, err := AdvanceMessageStatus(ctx, db, "m1", domain.StatusDelivered)
	if err != nil || !ok {
		t.Fatalf("sent->delivered: ok=%v err=%v", ok, err)
	}
	if s := statusOf(t, db, "m1"); s != domain.StatusDelivered {
		t.Fatalf("want delivered, got %s", s)
	}

	// repeat is a no-op
	ok, err = AdvanceMessageStatus(ctx, db, "m1", domain.StatusDelivered)
	if err != nil || ok {
		t.Fatalf("delivered->delivered should not change: ok=%v err=%v", ok, err)
	}

	ok, err = AdvanceMessageStatus(ctx, db, "m1", domain.StatusRead)
	if err != nil || !ok {
		t.Fatalf("delivered->read: ok=%v err=%v", ok, err)
	}

	// never regresses
	ok, err = AdvanceMessageStatus(ctx, db, "m1", domain.StatusDelivered)
	if err != nil || ok {
		t.Fatalf("read->delivered must not apply: ok=%v err=%v", ok, err)
	}
	if s := statusOf(t, db, "m1"); s != domain.StatusRead {
		t.Fatalf("want read, got %s", s)
	}

	// sent has no predecessors
	if ok, _ := AdvanceMessageStatus(ctx, db, "m1", domain.StatusSent); ok {
		t.Fatalf("advancing to sent must never apply")
	}
}

func TestMarkConversationRead_SkipsOwnAndAlreadyRead(t *testing.T) {
	db := newMsgRepoDB(t, &domain.Message{})
	ctx := context.Background()
	now := time.Now().UTC()

	seedMsg(t, db, "a", "c1", "alice", domain.StatusSent, now)
	seedMsg(t, db, "b", "c1", "alice", domain.StatusDelivered, now.Add(time.Second))
	seedMsg(t, db, "c", "c1", "alice", domain.StatusRead, now.Add(2*time.Second))
	seedMsg(t, db, "d", "c1", "bob", domain.StatusSent, now.Add(3*time.Second))
	seedMsg(t, db, "e", "c2", "alice", domain.StatusSent, now.Add(4*time.Second))

	n, err := MarkConversationRead(ctx, db, "c1", "bob")
	if err != nil {
		t.Fatalf("MarkConversationRead: %v", err)
	}
	if n != 2 {
		t.Fatalf("expected 2 rows, got %d", n)
	}
	if s := statusOf(t, db, "d"); s != domain.StatusSent {
		t.Fatalf("reader's own message must be untouched, got %s", s)
	}
	if s := statusOf(t, db, "e"); s != domain.StatusSent {
		t.Fatalf("other conversation must be untouched, got %s", s)
	}

	// second pass finds nothing
	n, err = MarkConversationRead(ctx, db, "c1", "bob")
	if err != nil || n != 0 {
		t.Fatalf("expected 0 rows on repeat, got n=%d err=%v", n, err)
	}
}

func TestCountMessages_Error_NoTable(t *testing.T) {
	db := newMsgRepoDB(t /* no migration for Message */)
	if _, err := CountMessages(context.Background(), db, "cx"); err == nil {
		t.Fatalf("expected error due to missing messages table")
	}
}

func TestCountMessages_Success(t *testing.T) {
	db := newMsgRepoDB(t, &domain.Message{})
	now := time.Now().UTC()
	seedMsg(t, db, "m1", "cx", "u1", domain.StatusSent, now)
	seedMsg(t, db, "m2", "cx", "u2", domain.StatusSent, now)
	seedMsg(t, db, "m3", "cy", "u1", domain.StatusSent, now)

	total, err := CountMessages(context.Background(), db, "cx")
	if err != nil {
		t.Fatalf("CountMessages error: %v", err)
	}
	if total != 2 {
		t.Fatalf("expected 2, got %d", total)
	}
}

func TestListMessagesPage_Pagination(t *testing.T) {
	db := newMsgRepoDB(t, &domain.Message{})

	// five messages with ascending CreatedAt + IDs
	base := time.Date(2025, 7, 1, 11, 0, 0, 0, time.UTC)
	for i := 1; i <= 5; i++ {
		seedMsg(t, db, string(rune('a'+i-1)), "c3", "u1", domain.StatusSent, base.Add(time.Duration(i)*time.Second))
	}

	out, err := ListMessagesPage(context.Background(), db, "c3", 1, 2) // expect 2nd and 3rd in order
	if err != nil {
		t.Fatalf("ListMessagesPage error: %v", err)
	}
	if len(out) != 2 || out[0].ID != "b" || out[1].ID != "c" {
		t.Fatalf("unexpected page slice: %+v", out)
	}
}
