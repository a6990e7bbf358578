package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/zfogg/paddock/internal/notifications"
	"github.com/zfogg/paddock/internal/util"
)

// GetNotifications lists the inbox, newest first
// GET /api/v1/notifications?unread=true
func (h *Handlers) GetNotifications(c *gin.Context) {
	userID, ok := util.GetUserIDFromContext(c)
	if !ok {
		return
	}
	limit, offset := util.ParsePagination(c)
	unreadOnly := util.ParseBool(c.Query("unread"), false)

	list, total, err := h.notifications.List(c.Request.Context(), userID, unreadOnly, limit, offset)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"notifications": list,
		"meta": gin.H{
			"total":    total,
			"limit":    limit,
			"offset":   offset,
			"has_more": int64(offset+len(list)) < total,
		},
	})
}

// GetNotificationCounts returns the badge counts
// GET /api/v1/notifications/counts
func (h *Handlers) GetNotificationCounts(c *gin.Context) {
	userID, ok := util.GetUserIDFromContext(c)
	if !ok {
		return
	}

	counts, err := h.notifications.Counts(c.Request.Context(), userID)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, counts)
}

// MarkNotificationsRead marks the given notifications read; no ids means all
// POST /api/v1/notifications/read
func (h *Handlers) MarkNotificationsRead(c *gin.Context) {
	userID, ok := util.GetUserIDFromContext(c)
	if !ok {
		return
	}
	var req struct {
		IDs []string `json:"ids"`
	}
	// An empty body is the same as no ids
	if c.Request.ContentLength > 0 && !util.BindJSON(c, &req) {
		return
	}

	marked, err := h.notifications.MarkRead(c.Request.Context(), userID, req.IDs)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"marked": marked})
}

// GetNotificationPreferences returns the per-kind toggles
// GET /api/v1/notifications/preferences
func (h *Handlers) GetNotificationPreferences(c *gin.Context) {
	userID, ok := util.GetUserIDFromContext(c)
	if !ok {
		return
	}

	prefs, err := h.notifications.Preferences(c.Request.Context(), userID)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"preferences": prefs})
}

// UpdateNotificationPreferences flips individual toggles
// PUT /api/v1/notifications/preferences
func (h *Handlers) UpdateNotificationPreferences(c *gin.Context) {
	userID, ok := util.GetUserIDFromContext(c)
	if !ok {
		return
	}
	var req notifications.PreferencesUpdate
	if !util.BindJSON(c, &req) {
		return
	}

	prefs, err := h.notifications.UpdatePreferences(c.Request.Context(), userID, req)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"preferences": prefs})
}
