package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// PresenceResponse tells whether a user has a live session on this node.
type PresenceResponse struct {
	UserID string `json:"user_id" example:"u-42"`
	Online bool   `json:"online" example:"true"`
}

// GetPresence godoc
// @ID          getPresence
// @Summary     Look up a user's presence
// @Tags        Presence
// @Produce     json
// @Security    BearerAuth
// @Param       id   path  string  true  "User ID"
// @Success     200  {object} handlers.PresenceResponse
// @Failure     401  {object} handlers.ErrorResponse "Unauthorized"
// @Router      /users/{id}/presence [get]
func (h *Handlers) GetPresence(c *gin.Context) {
	id := c.Param("id")
	ok(c, http.StatusOK, PresenceResponse{UserID: id, Online: h.presenceSvc.IsOnline(id)})
}
