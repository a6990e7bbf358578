package handlers

import (
	"context"
	stderrors "errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/zfogg/paddock/internal/chat"
	"github.com/zfogg/paddock/internal/errors"
	"github.com/zfogg/paddock/internal/grids"
	"github.com/zfogg/paddock/internal/logger"
	"github.com/zfogg/paddock/internal/models"
	"github.com/zfogg/paddock/internal/polls"
	"github.com/zfogg/paddock/internal/util"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

var errUserTarget = stderrors.New("users are banned, not removed")

// ReportRequest flags content for moderators
type ReportRequest struct {
	TargetType string `json:"target_type" binding:"required"`
	TargetID   string `json:"target_id" binding:"required"`
	Reason     string `json:"reason" binding:"required,max=500"`
}

// CreateReport files a report. A reporter has at most one open report per
// target.
// POST /api/v1/reports
func (h *Handlers) CreateReport(c *gin.Context) {
	userID, ok := util.GetUserIDFromContext(c)
	if !ok {
		return
	}
	var req ReportRequest
	if !util.BindJSON(c, &req) {
		return
	}
	tt, err := models.ParseTargetType(req.TargetType)
	if err != nil {
		respondValidation(c, "target_type", "unknown target_type")
		return
	}
	reason, ok := checkText(c, "reason", req.Reason, 1, 500)
	if !ok {
		return
	}
	if tt == models.TargetUser && req.TargetID == userID {
		util.RespondBadRequest(c, "you cannot report yourself")
		return
	}

	ctx := c.Request.Context()
	if _, err := h.loadTarget(ctx, tt, req.TargetID); err != nil {
		respondTargetError(c, tt, err)
		return
	}

	report := models.Report{
		ReporterID: userID,
		TargetType: tt,
		TargetID:   req.TargetID,
		Reason:     reason,
		CreatedAt:  time.Now().UTC(),
	}
	duplicate := false
	err = h.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var open int64
		if err := tx.Model(&models.Report{}).
			Where("reporter_id = ? AND target_type = ? AND target_id = ? AND status = ?",
				userID, tt, req.TargetID, models.ReportOpen).
			Count(&open).Error; err != nil {
			return err
		}
		if open > 0 {
			duplicate = true
			return nil
		}
		if err := tx.Create(&report).Error; err != nil {
			return err
		}
		if hasCounter(tt, "report_count") {
			return bump(tx, tt.Table(), req.TargetID, "report_count", 1)
		}
		return nil
	})
	if err != nil {
		respondError(c, err)
		return
	}
	if duplicate {
		util.RespondWithAPIError(c, errors.New(errors.ErrConflict, "you already reported this"))
		return
	}

	logger.Log.Info("Content reported",
		logger.WithUserID(userID),
		logger.WithTarget(string(tt), req.TargetID))
	c.JSON(http.StatusCreated, gin.H{"report": report})
}

// removeContent takes a piece of content down on behalf of actor
func (h *Handlers) removeContent(ctx context.Context, actor *models.User, tt models.TargetType, id string) error {
	switch tt {
	case models.TargetPost:
		var post models.Post
		if err := h.db.WithContext(ctx).First(&post, "id = ?", id).Error; err != nil {
			return err
		}
		return h.deletePost(ctx, &post)
	case models.TargetComment:
		var comment models.Comment
		if err := h.db.WithContext(ctx).
			Where("id = ? AND is_deleted = ?", id, false).
			First(&comment).Error; err != nil {
			return err
		}
		return h.removeComment(ctx, &comment)
	case models.TargetPoll:
		return h.polls.Delete(ctx, actor, id)
	case models.TargetGrid:
		return h.grids.Delete(ctx, actor, id)
	case models.TargetChat:
		return h.chat.Delete(ctx, actor, id)
	case models.TargetUser:
		return errUserTarget
	}
	return gorm.ErrRecordNotFound
}

// ListReports lists reports for moderators, oldest open first
// GET /api/v1/admin/reports?status=open|dismissed|removed
func (h *Handlers) ListReports(c *gin.Context) {
	limit, offset := util.ParsePagination(c)
	status := models.ReportStatus(c.DefaultQuery("status", string(models.ReportOpen)))
	switch status {
	case models.ReportOpen, models.ReportDismissed, models.ReportRemoved:
	default:
		respondValidation(c, "status", "status must be open, dismissed or removed")
		return
	}

	base := h.db.WithContext(c.Request.Context()).Model(&models.Report{}).Where("status = ?", status)
	var total int64
	if err := base.Session(&gorm.Session{}).Count(&total).Error; err != nil {
		respondError(c, err)
		return
	}

	order := "created_at ASC"
	if status != models.ReportOpen {
		order = "resolved_at DESC"
	}
	reports := []models.Report{}
	if err := base.Session(&gorm.Session{}).
		Order(order).Limit(limit).Offset(offset).
		Find(&reports).Error; err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"reports": reports,
		"meta":    gin.H{"total": total, "limit": limit, "offset": offset},
	})
}

// ResolveReport dismisses a report or removes the reported content. Removing
// closes every open report on the same target.
// POST /api/v1/admin/reports/:id/resolve
func (h *Handlers) ResolveReport(c *gin.Context) {
	admin, ok := util.GetUserFromContext(c)
	if !ok {
		return
	}
	var req struct {
		Action string `json:"action" binding:"required,oneof=dismiss remove"`
	}
	if !util.BindJSON(c, &req) {
		return
	}

	ctx := c.Request.Context()
	var report models.Report
	err := h.db.WithContext(ctx).First(&report, "id = ?", c.Param("id")).Error
	if stderrors.Is(err, gorm.ErrRecordNotFound) {
		util.RespondNotFound(c, "report")
		return
	}
	if err != nil {
		respondError(c, err)
		return
	}
	if report.Status != models.ReportOpen {
		util.RespondWithAPIError(c, errors.New(errors.ErrConflict, "report is already resolved"))
		return
	}

	now := time.Now().UTC()
	resolved := map[string]interface{}{"resolved_by": admin.ID, "resolved_at": now}
	q := h.db.WithContext(ctx).Model(&models.Report{})

	if req.Action == "remove" {
		if err := h.removeContent(ctx, admin, report.TargetType, report.TargetID); err != nil &&
			!isGone(err) {
			respondError(c, err)
			return
		}
		resolved["status"] = models.ReportRemoved
		q = q.Where("target_type = ? AND target_id = ? AND status = ?",
			report.TargetType, report.TargetID, models.ReportOpen)
	} else {
		resolved["status"] = models.ReportDismissed
		q = q.Where("id = ?", report.ID)
	}

	res := q.Updates(resolved)
	if res.Error != nil {
		respondError(c, res.Error)
		return
	}

	logger.Log.Info("Report resolved",
		logger.WithUserID(admin.ID),
		zap.String("report_id", report.ID),
		zap.String("action", req.Action),
		logger.WithTarget(string(report.TargetType), report.TargetID))
	c.JSON(http.StatusOK, gin.H{"status": resolved["status"], "resolved": res.RowsAffected})
}

// isGone reports whether removal failed only because the content is
// already gone
func isGone(err error) bool {
	return stderrors.Is(err, gorm.ErrRecordNotFound) ||
		stderrors.Is(err, polls.ErrNotFound) ||
		stderrors.Is(err, grids.ErrNotFound) ||
		stderrors.Is(err, chat.ErrNotFound)
}

// AdminDeleteContent removes any content by type and ID
// DELETE /api/v1/admin/content/:target_type/:id
func (h *Handlers) AdminDeleteContent(c *gin.Context) {
	admin, ok := util.GetUserFromContext(c)
	if !ok {
		return
	}
	tt, err := models.ParseTargetType(c.Param("target_type"))
	if err != nil {
		respondValidation(c, "target_type", "unknown target_type")
		return
	}
	id := c.Param("id")

	err = h.removeContent(c.Request.Context(), admin, tt, id)
	switch {
	case stderrors.Is(err, errUserTarget):
		util.RespondBadRequest(c, err.Error())
		return
	case err != nil && isGone(err):
		util.RespondNotFound(c, string(tt))
		return
	case err != nil:
		respondError(c, err)
		return
	}

	logger.Log.Info("Content removed by admin",
		logger.WithUserID(admin.ID),
		logger.WithTarget(string(tt), id))
	c.JSON(http.StatusOK, gin.H{"deleted": true})
}
