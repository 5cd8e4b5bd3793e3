package services

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"

	sqlite "github.com/glebarez/sqlite"
	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/tbourn/go-chat-gateway/internal/domain"
	"github.com/tbourn/go-chat-gateway/internal/presence"
	"github.com/tbourn/go-chat-gateway/internal/repo"
)

// ---------- test helpers ----------

func newSvcDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:svc_%s?mode=memory&cache=shared", uuid.NewString())

	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	if err := repo.AutoMigrate(db); err != nil {
		t.Fatalf("automigrate: %v", err)
	}
	return db
}

type pushed struct {
	event   string
	payload any
}

type fakeConn struct {
	id     string
	failOn string // event whose Push returns errPushFailed

	mu     sync.Mutex
	events []pushed
}

var errPushFailed = errors.New("push failed")

func newFakeConn(id string) *fakeConn { return &fakeConn{id: id} }

func (f *fakeConn) ID() string { return f.id }

func (f *fakeConn) Push(event string, payload any) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if event == f.failOn {
		return errPushFailed
	}
	f.events = append(f.events, pushed{event: event, payload: payload})
	return nil
}

func (f *fakeConn) named(event string) []any {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []any
	for _, e := range f.events {
		if e.event == event {
			out = append(out, e.payload)
		}
	}
	return out
}

func (f *fakeConn) order() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]string, len(f.events))
	for i, e := range f.events {
		out[i] = e.event
	}
	return out
}

// fixture wires every service over one DB and registry.
type fixture struct {
	db       *gorm.DB
	reg      *presence.Registry
	convs    *ConversationService
	notifier *NotificationService
	msgs     *MessageService
	presence *PresenceService
	reacts   *ReactionService
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	db := newSvcDB(t)
	reg := presence.New()
	convs := NewConversationService(db, nil)
	notifier := &NotificationService{DB: db, Presence: reg}
	return &fixture{
		db:       db,
		reg:      reg,
		convs:    convs,
		notifier: notifier,
		msgs:     &MessageService{DB: db, Conversations: convs, Presence: reg, Notifier: notifier},
		presence: &PresenceService{DB: db, Presence: reg},
		reacts:   &ReactionService{DB: db, Conversations: convs, Presence: reg, Notifier: notifier},
	}
}

func (f *fixture) user(t *testing.T, id, name string) {
	t.Helper()
	if err := repo.CreateUser(context.Background(), f.db, &domain.User{ID: id, Username: id, DisplayName: name}); err != nil {
		t.Fatalf("seed user %s: %v", id, err)
	}
}

func (f *fixture) conversation(t *testing.T, participants ...string) *domain.Conversation {
	t.Helper()
	typ := domain.ConversationPrivate
	if len(participants) > 2 {
		typ = domain.ConversationGroup
	}
	c, err := repo.CreateConversation(context.Background(), f.db, typ, "", participants)
	if err != nil {
		t.Fatalf("seed conversation: %v", err)
	}
	return c
}

func (f *fixture) online(id string) *fakeConn {
	c := newFakeConn(id + "-conn")
	f.reg.Register(id, c)
	return c
}

func (f *fixture) countRows(t *testing.T, model any) int64 {
	t.Helper()
	var n int64
	if err := f.db.Model(model).Count(&n).Error; err != nil {
		t.Fatalf("count: %v", err)
	}
	return n
}
