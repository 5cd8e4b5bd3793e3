package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/tbourn/go-chat-gateway/internal/domain"
)

// ListNotificationsResponse is a page of the inbox, newest first.
type ListNotificationsResponse struct {
	Notifications []domain.Notification `json:"notifications"`
	Unread        int64                 `json:"unread" example:"2"`
	Pagination    Pagination            `json:"pagination"`
}

// BulkResponse reports how many notifications a bulk call changed.
type BulkResponse struct {
	Updated int64 `json:"updated" example:"5"`
}

// ListNotifications godoc
// @ID          listNotifications
// @Summary     List notifications
// @Description Returns the caller's notifications, newest first, with the unread count.
// @Tags        Notifications
// @Produce     json
// @Security    BearerAuth
//
// @Param       page       query  int  false "Page number"     minimum(1) default(1)
// @Param       page_size  query  int  false "Items per page"  minimum(1) maximum(100) default(20)
//
// @Success     200  {object} handlers.ListNotificationsResponse
// @Success     304  "Not modified"
// @Failure     401  {object} handlers.ErrorResponse "Unauthorized"
// @Failure     503  {object} handlers.ErrorResponse "Store unavailable"
// @Router      /notifications [get]
func (h *Handlers) ListNotifications(c *gin.Context) {
	ctx := c.Request.Context()
	uid := currentUser(c)

	if count, newest, err := h.notifySvc.Stats(ctx, uid); err == nil {
		if weakETag(c, "notifications", uid, count, newest) {
			return
		}
	}

	page, pageSize := clampPagination(c)
	items, total, unread, err := h.notifySvc.ListPage(ctx, uid, page, pageSize)
	if err != nil {
		failErr(c, err)
		return
	}
	ok(c, http.StatusOK, ListNotificationsResponse{
		Notifications: items,
		Unread:        unread,
		Pagination:    newPagination(page, pageSize, total),
	})
}

// MarkNotificationRead godoc
// @ID          markNotificationRead
// @Summary     Mark one notification as read
// @Tags        Notifications
// @Security    BearerAuth
// @Param       id   path  string  true  "Notification ID"
// @Success     204  "Marked"
// @Failure     401  {object} handlers.ErrorResponse "Unauthorized"
// @Failure     404  {object} handlers.ErrorResponse "Notification not found"
// @Router      /notifications/{id}/read [put]
func (h *Handlers) MarkNotificationRead(c *gin.Context) {
	if err := h.notifySvc.MarkRead(c.Request.Context(), currentUser(c), c.Param("id")); err != nil {
		failErr(c, err)
		return
	}
	noContent(c)
}

// MarkAllNotificationsRead godoc
// @ID          markAllNotificationsRead
// @Summary     Mark every notification as read
// @Tags        Notifications
// @Produce     json
// @Security    BearerAuth
// @Success     200  {object} handlers.BulkResponse
// @Failure     401  {object} handlers.ErrorResponse "Unauthorized"
// @Router      /notifications/read-all [put]
func (h *Handlers) MarkAllNotificationsRead(c *gin.Context) {
	n, err := h.notifySvc.MarkAllRead(c.Request.Context(), currentUser(c))
	if err != nil {
		failErr(c, err)
		return
	}
	ok(c, http.StatusOK, BulkResponse{Updated: n})
}

// DeleteNotification godoc
// @ID          deleteNotification
// @Summary     Delete one notification
// @Tags        Notifications
// @Security    BearerAuth
// @Param       id   path  string  true  "Notification ID"
// @Success     204  "Deleted"
// @Failure     401  {object} handlers.ErrorResponse "Unauthorized"
// @Failure     404  {object} handlers.ErrorResponse "Notification not found"
// @Router      /notifications/{id} [delete]
func (h *Handlers) DeleteNotification(c *gin.Context) {
	if err := h.notifySvc.Delete(c.Request.Context(), currentUser(c), c.Param("id")); err != nil {
		failErr(c, err)
		return
	}
	noContent(c)
}

// DeleteAllNotifications godoc
// @ID          deleteAllNotifications
// @Summary     Clear the inbox
// @Tags        Notifications
// @Produce     json
// @Security    BearerAuth
// @Success     200  {object} handlers.BulkResponse
// @Failure     401  {object} handlers.ErrorResponse "Unauthorized"
// @Router      /notifications [delete]
func (h *Handlers) DeleteAllNotifications(c *gin.Context) {
	n, err := h.notifySvc.DeleteAll(c.Request.Context(), currentUser(c))
	if err != nil {
		failErr(c, err)
		return
	}
	ok(c, http.StatusOK, BulkResponse{Updated: n})
}
