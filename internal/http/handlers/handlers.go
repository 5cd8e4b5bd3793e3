// Package handlers provides HTTP handler implementations for the public API.
//
// The REST surface complements the websocket gateway: history, read marking
// for clients that are not connected, the notification inbox, and presence
// lookups. Every route runs behind BearerAuth, so the caller is always
// middleware.UserID(c).
package handlers

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/tbourn/go-chat-gateway/internal/domain"
	"github.com/tbourn/go-chat-gateway/internal/http/middleware"
	"github.com/tbourn/go-chat-gateway/internal/utils"
)

//
// Service contracts (context-aware)
//

// ConversationService authorizes access to a conversation.
type ConversationService interface {
	Authorize(ctx context.Context, conversationID, userID string) (*domain.Conversation, error)
}

// MessageService serves conversation history and read marking.
type MessageService interface {
	ListPage(ctx context.Context, userID, conversationID string, page, pageSize int) ([]domain.Message, int64, error)
	Stats(ctx context.Context, conversationID string) (int64, *time.Time, error)
	MarkRead(ctx context.Context, readerID, conversationID string) (int64, error)
}

// NotificationService manages a user's notification inbox.
type NotificationService interface {
	ListPage(ctx context.Context, userID string, page, pageSize int) ([]domain.Notification, int64, int64, error)
	Stats(ctx context.Context, userID string) (int64, *time.Time, error)
	MarkRead(ctx context.Context, userID, id string) error
	MarkAllRead(ctx context.Context, userID string) (int64, error)
	Delete(ctx context.Context, userID, id string) error
	DeleteAll(ctx context.Context, userID string) (int64, error)
}

// PresenceService answers whether a user currently has a live session.
type PresenceService interface {
	IsOnline(userID string) bool
}

// Handlers groups the REST endpoints.
type Handlers struct {
	convSvc     ConversationService
	msgSvc      MessageService
	notifySvc   NotificationService
	presenceSvc PresenceService
}

// New constructs a Handlers bound to the given services.
func New(conv ConversationService, msg MessageService, notify NotificationService, presence PresenceService) *Handlers {
	return &Handlers{convSvc: conv, msgSvc: msg, notifySvc: notify, presenceSvc: presence}
}

// Pagination carries pagination metadata for list responses.
type Pagination struct {
	Page       int   `json:"page"`
	PageSize   int   `json:"page_size"`
	Total      int64 `json:"total"`
	TotalPages int   `json:"total_pages"`
	HasNext    bool  `json:"has_next"`
}

func newPagination(page, pageSize int, total int64) Pagination {
	totalPages := int((total + int64(pageSize) - 1) / int64(pageSize))
	return Pagination{
		Page:       page,
		PageSize:   pageSize,
		Total:      total,
		TotalPages: totalPages,
		HasNext:    page < totalPages,
	}
}

// clampPagination parses page/page_size with defaults 1/20 and a cap of 100.
func clampPagination(c *gin.Context) (page, pageSize int) {
	const (
		defaultPage     = 1
		defaultPageSize = 20
		maxPageSize     = 100
	)
	page = utils.AtoiDefault(c.Query("page"), defaultPage)
	if page < 1 {
		page = 1
	}
	pageSize = utils.Clamp(utils.AtoiDefault(c.Query("page_size"), defaultPageSize), 1, maxPageSize)
	return
}

// weakETag builds W/"<kind>:<id>:<count>:<unix>" and answers 304 when the
// client already holds it. It reports whether the response was written.
func weakETag(c *gin.Context, kind, id string, count int64, newest *time.Time) bool {
	var ts int64
	if newest != nil {
		ts = newest.UnixNano()
	}
	etag := fmt.Sprintf(`W/"%s:%s:%d:%d"`, kind, id, count, ts)
	c.Header("ETag", etag)
	if inm := c.GetHeader("If-None-Match"); inm != "" && inm == etag {
		c.Status(http.StatusNotModified)
		return true
	}
	return false
}

// currentUser is the principal stored by BearerAuth.
func currentUser(c *gin.Context) string { return middleware.UserID(c) }
