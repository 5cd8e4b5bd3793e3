// Package repo implements the data persistence layer for domain entities,
// backed by GORM. This file provides repository functions for the Message
// model, including the conditional updates that drive the delivery/read
// state machine.
package repo

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/tbourn/go-chat-gateway/internal/domain"
)

// CreateMessage inserts a new message row with status sent. ID and
// CreatedAt are assigned here when unset.
func CreateMessage(ctx context.Context, db *gorm.DB, m *domain.Message) error {
	if m.ID == "" {
		m.ID = uuid.NewString()
	}
	if m.CreatedAt.IsZero() {
		m.CreatedAt = time.Now().UTC()
	}
	m.Status = domain.StatusSent
	return db.WithContext(ctx).Create(m).Error
}

// GetMessage fetches a message by ID.
func GetMessage(ctx context.Context, db *gorm.DB, id string) (*domain.Message, error) {
	var m domain.Message
	if err := db.WithContext(ctx).Where("id = ?", id).First(&m).Error; err != nil {
		return nil, err
	}
	return &m, nil
}

// AdvanceMessageStatus moves a single message to `to` only if its current
// status is a predecessor of `to`. It reports whether a row changed; a
// message already at or past `to` is left untouched.
func AdvanceMessageStatus(ctx context.Context, db *gorm.DB, id string, to domain.MessageStatus) (bool, error) {
	from := to.Predecessors()
	if len(from) == 0 {
		return false, nil
	}
	res := db.WithContext(ctx).
		Model(&domain.Message{}).
		Where("id = ? AND status IN ?", id, statusStrings(from)).
		Update("status", string(to))
	return res.RowsAffected > 0, res.Error
}

// MarkConversationRead moves every message in the conversation that was not
// authored by readerID and is not yet read to read. It returns the number of
// rows changed; zero means there was nothing unread for this reader.
func MarkConversationRead(ctx context.Context, db *gorm.DB, conversationID, readerID string) (int64, error) {
	res := db.WithContext(ctx).
		Model(&domain.Message{}).
		Where("conversation_id = ? AND sender_id <> ? AND status IN ?", conversationID, readerID, statusStrings(domain.StatusRead.Predecessors())).
		Update("status", string(domain.StatusRead))
	return res.RowsAffected, res.Error
}

// CountMessages uses a raw COUNT so a missing table surfaces as an error.
func CountMessages(ctx context.Context, db *gorm.DB, conversationID string) (int64, error) {
	var total int64
	err := db.WithContext(ctx).
		Raw("SELECT COUNT(*) FROM messages WHERE conversation_id = ? AND deleted_at IS NULL", conversationID).
		Scan(&total).Error
	return total, err
}

// ListMessagesPage returns a paginated slice ordered (CreatedAt ASC, ID ASC).
func ListMessagesPage(ctx context.Context, db *gorm.DB, conversationID string, offset, limit int) ([]domain.Message, error) {
	var out []domain.Message
	err := db.WithContext(ctx).
		Where("conversation_id = ?", conversationID).
		Order("created_at ASC, id ASC").
		Offset(offset).
		Limit(limit).
		Find(&out).Error
	return out, err
}

func statusStrings(in []domain.MessageStatus) []string {
	out := make([]string, len(in))
	for i, s := range in {
		out[i] = string(s)
	}
	return out
}
