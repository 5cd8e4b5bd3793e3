// Package services – PresenceService
//
// This file implements the presence change broadcaster. On connect,
// disconnect and explicit status changes it records the user's activity
// status on every friendship row where the user is the subject, then pushes
// a friend-status-change event to each friend that is currently online.
// Offline friends are skipped; nothing is queued for them.
package services

import (
	"context"
	"hash/fnv"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
	"gorm.io/gorm"

	"github.com/tbourn/go-chat-gateway/internal/domain"
	"github.com/tbourn/go-chat-gateway/internal/presence"
	"github.com/tbourn/go-chat-gateway/internal/repo"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// PresenceService broadcasts activity changes to friends.
type PresenceService struct {
	DB       *gorm.DB
	Presence *presence.Registry

	// Now is overridable in tests.
	Now func() time.Time

	// stripes serialize broadcasts per user so a reconnect's online can
	// never be overtaken by the previous session's offline.
	stripes [64]sync.Mutex
}

func (s *PresenceService) lock(userID string) func() {
	h := fnv.New32a()
	_, _ = h.Write([]byte(userID))
	mu := &s.stripes[h.Sum32()%uint32(len(s.stripes))]
	mu.Lock()
	return mu.Unlock
}

// Connected marks userID online for its friends.
func (s *PresenceService) Connected(ctx context.Context, userID string) (int, error) {
	unlock := s.lock(userID)
	defer unlock()
	return s.broadcast(ctx, userID, domain.ActivityOnline)
}

// Disconnected marks userID offline for its friends. It is a no-op when the
// registry already holds a newer session for userID: that session's online
// broadcast stands.
func (s *PresenceService) Disconnected(ctx context.Context, userID string) (int, error) {
	unlock := s.lock(userID)
	defer unlock()
	if s.IsOnline(userID) {
		log.Ctx(ctx).Debug().Str("user_id", userID).Msg("offline broadcast skipped, user reconnected")
		return 0, nil
	}
	return s.broadcast(ctx, userID, domain.ActivityOffline)
}

// SetStatus handles an explicit status-change from a connected client. The
// registry is not touched: a user may appear offline while still connected.
func (s *PresenceService) SetStatus(ctx context.Context, userID string, status domain.ActivityStatus) (int, error) {
	if !status.Valid() {
		return 0, ErrInvalidStatus
	}
	unlock := s.lock(userID)
	defer unlock()
	return s.broadcast(ctx, userID, status)
}

// IsOnline reports registry presence for userID.
func (s *PresenceService) IsOnline(userID string) bool {
	return s.Presence != nil && s.Presence.IsOnline(userID)
}

// broadcast returns the number of friends that were pushed the change. The
// caller holds the user's stripe.
func (s *PresenceService) broadcast(ctx context.Context, userID string, status domain.ActivityStatus) (int, error) {
	tr := otel.Tracer("services/PresenceService")
	ctx, span := tr.Start(ctx, "Broadcast",
		trace.WithAttributes(
			attribute.String("user.id", userID),
			attribute.String("presence.status", string(status)),
		),
	)
	defer span.End()

	now := time.Now().UTC()
	if s.Now != nil {
		now = s.Now()
	}
	if _, err := repo.SetActivityStatus(ctx, s.DB, userID, status, now); err != nil {
		return 0, storeErr(err)
	}

	friends, err := repo.ListFriendIDs(ctx, s.DB, userID)
	if err != nil {
		return 0, storeErr(err)
	}
	if s.Presence == nil {
		return 0, nil
	}

	ev := FriendStatusChange{UserID: userID, Status: status}
	pushed := 0
	for _, fid := range friends {
		online, err := s.Presence.Push(fid, domain.EventFriendStatusChange, ev)
		if !online {
			continue
		}
		if err != nil {
			log.Ctx(ctx).Warn().Err(err).Str("friend_id", fid).Msg("friend-status-change push failed")
			continue
		}
		pushed++
	}
	span.SetAttributes(attribute.Int("friends.notified", pushed))
	return pushed, nil
}
