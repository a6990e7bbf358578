package handlers

import (
	stderrors "errors"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/zfogg/paddock/internal/errors"
	"github.com/zfogg/paddock/internal/logger"
	"github.com/zfogg/paddock/internal/models"
	"github.com/zfogg/paddock/internal/util"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// AdminUserView is a user as moderators see it
type AdminUserView struct {
	models.User
	Email string `json:"email"`
}

// GetDashboard returns the latest site counters
// GET /api/v1/admin/dashboard?refresh=true
func (h *Handlers) GetDashboard(c *gin.Context) {
	if h.dashboard == nil {
		util.RespondWithAPIError(c, errors.ServiceUnavailable("dashboard"))
		return
	}

	ctx := c.Request.Context()
	snapshot, err := h.dashboard.Latest(ctx)
	if util.ParseBool(c.Query("refresh"), false) {
		snapshot, err = h.dashboard.Refresh(ctx)
	}
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, snapshot)
}

// AdminSearchUsers finds accounts by username, display name or email
// GET /api/v1/admin/users?q=&banned=true
func (h *Handlers) AdminSearchUsers(c *gin.Context) {
	limit, offset := util.ParsePagination(c)
	q := h.db.WithContext(c.Request.Context()).Model(&models.User{})

	if term := strings.ToLower(strings.TrimSpace(c.Query("q"))); term != "" {
		like := "%" + term + "%"
		q = q.Where("LOWER(username) LIKE ? OR LOWER(display_name) LIKE ? OR LOWER(email) LIKE ?", like, like, like)
	}
	if util.ParseBool(c.Query("banned"), false) {
		q = q.Where("is_banned = ?", true)
	}

	var total int64
	if err := q.Session(&gorm.Session{}).Count(&total).Error; err != nil {
		respondError(c, err)
		return
	}
	var users []models.User
	if err := q.Session(&gorm.Session{}).
		Order("created_at DESC").Limit(limit).Offset(offset).
		Find(&users).Error; err != nil {
		respondError(c, err)
		return
	}

	views := make([]AdminUserView, len(users))
	for i, u := range users {
		views[i] = AdminUserView{User: u, Email: u.Email}
	}
	c.JSON(http.StatusOK, gin.H{
		"users": views,
		"meta":  gin.H{"total": total, "limit": limit, "offset": offset},
	})
}

// loadManagedUser loads the user named by :id for an admin action on them
func (h *Handlers) loadManagedUser(c *gin.Context) (*models.User, bool) {
	var user models.User
	err := h.db.WithContext(c.Request.Context()).First(&user, "id = ?", c.Param("id")).Error
	if stderrors.Is(err, gorm.ErrRecordNotFound) {
		util.RespondNotFound(c, "user")
		return nil, false
	}
	if err != nil {
		respondError(c, err)
		return nil, false
	}
	return &user, true
}

// BanUser bans an account. Admins cannot ban themselves or other admins.
// POST /api/v1/admin/users/:id/ban
func (h *Handlers) BanUser(c *gin.Context) {
	admin, ok := util.GetUserFromContext(c)
	if !ok {
		return
	}
	var req struct {
		Reason string `json:"reason" binding:"max=500"`
	}
	if c.Request.ContentLength > 0 && !util.BindJSON(c, &req) {
		return
	}

	user, ok := h.loadManagedUser(c)
	if !ok {
		return
	}
	if user.ID == admin.ID {
		util.RespondBadRequest(c, "you cannot ban yourself")
		return
	}
	if user.IsAdmin {
		util.RespondForbidden(c, "admins cannot be banned")
		return
	}

	now := time.Now().UTC()
	reason := strings.TrimSpace(req.Reason)
	if err := h.db.WithContext(c.Request.Context()).Model(user).Updates(map[string]interface{}{
		"is_banned":     true,
		"banned_reason": reason,
		"banned_at":     now,
	}).Error; err != nil {
		respondError(c, err)
		return
	}
	user.IsBanned, user.BannedReason, user.BannedAt = true, reason, &now

	logger.Log.Info("User banned",
		logger.WithUserID(user.ID),
		zap.String("admin_id", admin.ID),
		zap.String("reason", reason))
	c.JSON(http.StatusOK, gin.H{"user": AdminUserView{User: *user, Email: user.Email}})
}

// UnbanUser lifts a ban
// DELETE /api/v1/admin/users/:id/ban
func (h *Handlers) UnbanUser(c *gin.Context) {
	admin, ok := util.GetUserFromContext(c)
	if !ok {
		return
	}
	user, ok := h.loadManagedUser(c)
	if !ok {
		return
	}

	if err := h.db.WithContext(c.Request.Context()).Model(user).Updates(map[string]interface{}{
		"is_banned":     false,
		"banned_reason": "",
		"banned_at":     nil,
	}).Error; err != nil {
		respondError(c, err)
		return
	}
	user.IsBanned, user.BannedReason, user.BannedAt = false, "", nil

	logger.Log.Info("User unbanned", logger.WithUserID(user.ID), zap.String("admin_id", admin.ID))
	c.JSON(http.StatusOK, gin.H{"user": AdminUserView{User: *user, Email: user.Email}})
}

// SetAdmin grants or revokes admin. Admins cannot demote themselves.
// PUT /api/v1/admin/users/:id/admin
func (h *Handlers) SetAdmin(c *gin.Context) {
	admin, ok := util.GetUserFromContext(c)
	if !ok {
		return
	}
	var req struct {
		IsAdmin *bool `json:"is_admin" binding:"required"`
	}
	if !util.BindJSON(c, &req) {
		return
	}

	user, ok := h.loadManagedUser(c)
	if !ok {
		return
	}
	if user.ID == admin.ID && !*req.IsAdmin {
		util.RespondBadRequest(c, "you cannot remove your own admin role")
		return
	}

	if err := h.db.WithContext(c.Request.Context()).Model(user).
		UpdateColumn("is_admin", *req.IsAdmin).Error; err != nil {
		respondError(c, err)
		return
	}
	user.IsAdmin = *req.IsAdmin

	logger.Log.Info("Admin role changed",
		logger.WithUserID(user.ID),
		zap.String("admin_id", admin.ID),
		zap.Bool("is_admin", user.IsAdmin))
	c.JSON(http.StatusOK, gin.H{"user": AdminUserView{User: *user, Email: user.Email}})
}

// ListContactMessages lists contact-form submissions, newest first
// GET /api/v1/admin/contact?handled=false
func (h *Handlers) ListContactMessages(c *gin.Context) {
	limit, offset := util.ParsePagination(c)
	q := h.db.WithContext(c.Request.Context()).Model(&models.ContactMessage{})
	if handled := c.Query("handled"); handled != "" {
		if util.ParseBool(handled, false) {
			q = q.Where("handled_at IS NOT NULL")
		} else {
			q = q.Where("handled_at IS NULL")
		}
	}

	var total int64
	if err := q.Session(&gorm.Session{}).Count(&total).Error; err != nil {
		respondError(c, err)
		return
	}
	messages := []models.ContactMessage{}
	if err := q.Session(&gorm.Session{}).
		Order("created_at DESC").Limit(limit).Offset(offset).
		Find(&messages).Error; err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"messages": messages,
		"meta":     gin.H{"total": total, "limit": limit, "offset": offset},
	})
}

// HandleContactMessage marks a submission as dealt with
// POST /api/v1/admin/contact/:id/handled
func (h *Handlers) HandleContactMessage(c *gin.Context) {
	now := time.Now().UTC()
	res := h.db.WithContext(c.Request.Context()).Model(&models.ContactMessage{}).
		Where("id = ? AND handled_at IS NULL", c.Param("id")).
		UpdateColumn("handled_at", now)
	if res.Error != nil {
		respondError(c, res.Error)
		return
	}
	if res.RowsAffected == 0 {
		util.RespondNotFound(c, "contact message")
		return
	}
	c.JSON(http.StatusOK, gin.H{"handled_at": now})
}

// ToggleChat turns live chat on or off for everyone
// PUT /api/v1/admin/chat
func (h *Handlers) ToggleChat(c *gin.Context) {
	admin, ok := util.GetUserFromContext(c)
	if !ok {
		return
	}
	var req struct {
		Enabled *bool `json:"enabled" binding:"required"`
	}
	if !util.BindJSON(c, &req) {
		return
	}
	if h.chat == nil {
		util.RespondWithAPIError(c, errors.ServiceUnavailable("chat"))
		return
	}

	status, err := h.chat.SetEnabled(c.Request.Context(), admin.ID, *req.Enabled)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"chat": status})
}
