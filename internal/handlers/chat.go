package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/zfogg/paddock/internal/chat"
	"github.com/zfogg/paddock/internal/errors"
	"github.com/zfogg/paddock/internal/util"
)

// chatReady answers 503 when the server runs without chat
func (h *Handlers) chatReady(c *gin.Context) bool {
	if h.chat == nil {
		util.RespondWithAPIError(c, errors.ServiceUnavailable("chat"))
		return false
	}
	return true
}

// GetChatStatus reports whether chat is on
// GET /api/v1/chat/status
func (h *Handlers) GetChatStatus(c *gin.Context) {
	if !h.chatReady(c) {
		return
	}
	enabled, err := h.chat.Enabled(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"enabled": enabled})
}

// GetChatHistory returns recent messages in a room, oldest first
// GET /api/v1/chat/rooms/:room/messages?limit=
func (h *Handlers) GetChatHistory(c *gin.Context) {
	if !h.chatReady(c) {
		return
	}
	room := c.Param("room")
	limit := util.ParseInt(c.Query("limit"), chat.DefaultHistory)

	messages, err := h.chat.History(c.Request.Context(), room, limit)
	if err != nil {
		respondError(c, err)
		return
	}
	if messages == nil {
		messages = []chat.Message{}
	}
	c.JSON(http.StatusOK, gin.H{"room": room, "messages": messages})
}

// SendChatMessage posts to a room over HTTP for clients without a socket
// POST /api/v1/chat/rooms/:room/messages
func (h *Handlers) SendChatMessage(c *gin.Context) {
	user, ok := util.GetUserFromContext(c)
	if !ok {
		return
	}
	if !h.chatReady(c) {
		return
	}
	var req struct {
		Body string `json:"body" binding:"required"`
	}
	if !util.BindJSON(c, &req) {
		return
	}

	msg, err := h.chat.Send(c.Request.Context(), user, c.Param("room"), req.Body)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"message": msg})
}

// DeleteChatMessage removes a message. Authors and admins may delete.
// DELETE /api/v1/chat/messages/:id
func (h *Handlers) DeleteChatMessage(c *gin.Context) {
	user, ok := util.GetUserFromContext(c)
	if !ok {
		return
	}
	if !h.chatReady(c) {
		return
	}
	if err := h.chat.Delete(c.Request.Context(), user, c.Param("id")); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"deleted": true})
}
