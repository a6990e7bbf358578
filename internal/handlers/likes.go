package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/zfogg/paddock/internal/metrics"
	"github.com/zfogg/paddock/internal/models"
	"github.com/zfogg/paddock/internal/notifications"
	"github.com/zfogg/paddock/internal/util"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// LikeRequest names the liked content
type LikeRequest struct {
	TargetType string `json:"target_type" binding:"required"`
	TargetID   string `json:"target_id" binding:"required"`
}

func (h *Handlers) bindLike(c *gin.Context) (models.TargetType, string, bool) {
	var req LikeRequest
	if !util.BindJSON(c, &req) {
		return "", "", false
	}
	tt, err := models.ParseTargetType(req.TargetType)
	if err != nil || !tt.Likeable() {
		respondValidation(c, "target_type", "target_type must be post, comment, poll or grid")
		return "", "", false
	}
	return tt, req.TargetID, true
}

// Like likes a post, comment, poll or grid. Liking twice is a no-op.
// POST /api/v1/likes
func (h *Handlers) Like(c *gin.Context) {
	user, ok := util.GetUserFromContext(c)
	if !ok {
		return
	}
	tt, id, ok := h.bindLike(c)
	if !ok {
		return
	}

	ctx := c.Request.Context()
	t, err := h.loadTarget(ctx, tt, id)
	if err != nil {
		respondTargetError(c, tt, err)
		return
	}

	created := false
	err = h.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Clauses(clause.OnConflict{DoNothing: true}).
			Create(&models.Like{UserID: user.ID, TargetType: tt, TargetID: id})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return nil
		}
		created = true
		return bump(tx, tt.Table(), id, "like_count", 1)
	})
	if err != nil {
		respondError(c, err)
		return
	}

	if created {
		metrics.Get().LikesTotal.WithLabelValues(string(tt)).Inc()
		h.notifications.NotifyAsync(ctx, notifications.Event{
			Kind:        models.NotifyLike,
			RecipientID: t.OwnerID,
			ActorID:     user.ID,
			TargetType:  tt,
			TargetID:    id,
			Preview:     t.Preview,
		})
	}
	h.respondLikeState(c, tt, id, true)
}

// Unlike removes a like. Unliking twice is a no-op.
// DELETE /api/v1/likes
func (h *Handlers) Unlike(c *gin.Context) {
	userID, ok := util.GetUserIDFromContext(c)
	if !ok {
		return
	}
	tt, id, ok := h.bindLike(c)
	if !ok {
		return
	}

	err := h.db.WithContext(c.Request.Context()).Transaction(func(tx *gorm.DB) error {
		res := tx.Where("user_id = ? AND target_type = ? AND target_id = ?", userID, tt, id).
			Delete(&models.Like{})
		if res.Error != nil || res.RowsAffected == 0 {
			return res.Error
		}
		return bump(tx, tt.Table(), id, "like_count", -1)
	})
	if err != nil {
		respondError(c, err)
		return
	}
	h.respondLikeState(c, tt, id, false)
}

func (h *Handlers) respondLikeState(c *gin.Context, tt models.TargetType, id string, liked bool) {
	var count int64
	if err := h.db.WithContext(c.Request.Context()).Model(&models.Like{}).
		Where("target_type = ? AND target_id = ?", tt, id).
		Count(&count).Error; err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"liked": liked, "like_count": count})
}
