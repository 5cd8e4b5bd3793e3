package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/tbourn/go-chat-gateway/internal/domain"
)

// ListMessagesResponse contains a page of messages and pagination metadata.
type ListMessagesResponse struct {
	Messages   []domain.Message `json:"messages"`
	Pagination Pagination       `json:"pagination"`
}

// MarkReadResponse reports how many messages moved to read.
type MarkReadResponse struct {
	ConversationID string `json:"conversation_id" example:"9b2f0d8e-8d3c-4c1e-9a55-2b1f3f0e7c11"`
	Updated        int64  `json:"updated" example:"3"`
}

// ListMessages godoc
// @ID          listConversationMessages
// @Summary     List messages in a conversation
// @Description Returns a page of messages, oldest first. Only participants may read.
// @Description Supports conditional requests through a weak ETag.
// @Tags        Conversations
// @Produce     json
// @Security    BearerAuth
//
// @Param       id         path   string  true  "Conversation ID"
// @Param       page       query  int     false "Page number"     minimum(1) default(1)
// @Param       page_size  query  int     false "Items per page"  minimum(1) maximum(100) default(20)
//
// @Success     200  {object} handlers.ListMessagesResponse
// @Success     304  "Not modified"
// @Failure     401  {object} handlers.ErrorResponse "Unauthorized"
// @Failure     403  {object} handlers.ErrorResponse "Not a participant"
// @Failure     404  {object} handlers.ErrorResponse "Conversation not found"
// @Failure     503  {object} handlers.ErrorResponse "Store unavailable"
// @Router      /conversations/{id}/messages [get]
func (h *Handlers) ListMessages(c *gin.Context) {
	ctx := c.Request.Context()
	uid := currentUser(c)

	conv, err := h.convSvc.Authorize(ctx, c.Param("id"), uid)
	if err != nil {
		failErr(c, err)
		return
	}

	// best effort: a stats failure only loses the conditional response
	if count, newest, err := h.msgSvc.Stats(ctx, conv.ID); err == nil {
		if weakETag(c, "messages", conv.ID, count, newest) {
			return
		}
	}

	page, pageSize := clampPagination(c)
	items, total, err := h.msgSvc.ListPage(ctx, uid, conv.ID, page, pageSize)
	if err != nil {
		failErr(c, err)
		return
	}
	ok(c, http.StatusOK, ListMessagesResponse{
		Messages:   items,
		Pagination: newPagination(page, pageSize, total),
	})
}

// MarkRead godoc
// @ID          markConversationRead
// @Summary     Mark a conversation as read
// @Description Moves every message not sent by the caller to read and notifies online participants.
// @Description Calling it again is a no-op.
// @Tags        Conversations
// @Produce     json
// @Security    BearerAuth
//
// @Param       id   path  string  true  "Conversation ID"
//
// @Success     200  {object} handlers.MarkReadResponse
// @Failure     401  {object} handlers.ErrorResponse "Unauthorized"
// @Failure     403  {object} handlers.ErrorResponse "Not a participant"
// @Failure     404  {object} handlers.ErrorResponse "Conversation not found"
// @Failure     503  {object} handlers.ErrorResponse "Store unavailable"
// @Router      /conversations/{id}/read [post]
func (h *Handlers) MarkRead(c *gin.Context) {
	id := c.Param("id")
	n, err := h.msgSvc.MarkRead(c.Request.Context(), currentUser(c), id)
	if err != nil {
		failErr(c, err)
		return
	}
	ok(c, http.StatusOK, MarkReadResponse{ConversationID: id, Updated: n})
}
