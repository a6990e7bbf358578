package handlers

import (
	stderrors "errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/zfogg/paddock/internal/logger"
	"github.com/zfogg/paddock/internal/metrics"
	"github.com/zfogg/paddock/internal/models"
	"github.com/zfogg/paddock/internal/notifications"
	"github.com/zfogg/paddock/internal/util"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// FollowUser follows :id. Following twice is a no-op.
// POST /api/v1/users/:id/follow
func (h *Handlers) FollowUser(c *gin.Context) {
	user, ok := util.GetUserFromContext(c)
	if !ok {
		return
	}
	followeeID := c.Param("id")
	if followeeID == user.ID {
		util.RespondBadRequest(c, "you cannot follow yourself")
		return
	}

	ctx := c.Request.Context()
	if _, err := h.loadTarget(ctx, models.TargetUser, followeeID); err != nil {
		respondTargetError(c, models.TargetUser, err)
		return
	}

	created := false
	err := h.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Clauses(clause.OnConflict{DoNothing: true}).
			Create(&models.Follow{FollowerID: user.ID, FolloweeID: followeeID})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return nil
		}
		created = true
		if err := bump(tx, "users", user.ID, "following_count", 1); err != nil {
			return err
		}
		return bump(tx, "users", followeeID, "follower_count", 1)
	})
	if err != nil {
		respondError(c, err)
		return
	}

	if created {
		metrics.Get().FollowsTotal.Inc()
		h.notifications.NotifyAsync(ctx, notifications.Event{
			Kind:        models.NotifyFollow,
			RecipientID: followeeID,
			ActorID:     user.ID,
			TargetType:  models.TargetUser,
			TargetID:    user.ID,
			Preview:     user.Username,
		})
		logger.Log.Debug("User followed", logger.WithUserID(user.ID), logger.WithTarget("user", followeeID))
	}
	c.JSON(http.StatusOK, gin.H{"following": true})
}

// UnfollowUser stops following :id. Unfollowing twice is a no-op.
// DELETE /api/v1/users/:id/follow
func (h *Handlers) UnfollowUser(c *gin.Context) {
	userID, ok := util.GetUserIDFromContext(c)
	if !ok {
		return
	}

	err := h.db.WithContext(c.Request.Context()).Transaction(func(tx *gorm.DB) error {
		_, err := unfollow(tx, userID, c.Param("id"))
		return err
	})
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"following": false})
}

// unfollow drops one edge and its counters, reporting whether it existed
func unfollow(tx *gorm.DB, followerID, followeeID string) (bool, error) {
	res := tx.Where("follower_id = ? AND followee_id = ?", followerID, followeeID).Delete(&models.Follow{})
	if res.Error != nil {
		return false, res.Error
	}
	if res.RowsAffected == 0 {
		return false, nil
	}
	if err := bump(tx, "users", followerID, "following_count", -1); err != nil {
		return false, err
	}
	return true, bump(tx, "users", followeeID, "follower_count", -1)
}

// GetFollowers lists who follows :id, newest first
// GET /api/v1/users/:id/followers
func (h *Handlers) GetFollowers(c *gin.Context) {
	h.listFollows(c, "followee_id", "follower_id")
}

// GetFollowing lists who :id follows, newest first
// GET /api/v1/users/:id/following
func (h *Handlers) GetFollowing(c *gin.Context) {
	h.listFollows(c, "follower_id", "followee_id")
}

func (h *Handlers) listFollows(c *gin.Context, matchColumn, userColumn string) {
	limit, offset := util.ParsePagination(c)
	userID := c.Param("id")
	db := h.db.WithContext(c.Request.Context())

	if _, err := h.loadTarget(c.Request.Context(), models.TargetUser, userID); err != nil {
		respondTargetError(c, models.TargetUser, err)
		return
	}

	base := db.Model(&models.Follow{}).Where(matchColumn+" = ?", userID)
	var total int64
	if err := base.Session(&gorm.Session{}).Count(&total).Error; err != nil {
		respondError(c, err)
		return
	}

	var ids []string
	if err := base.Session(&gorm.Session{}).
		Order("created_at DESC").
		Limit(limit).Offset(offset).
		Pluck(userColumn, &ids).Error; err != nil {
		respondError(c, err)
		return
	}

	users := make([]models.PublicUser, 0, len(ids))
	if len(ids) > 0 {
		var rows []models.User
		if err := db.Where("id IN ?", ids).Find(&rows).Error; err != nil {
			respondError(c, err)
			return
		}
		byID := make(map[string]*models.User, len(rows))
		for i := range rows {
			byID[rows[i].ID] = &rows[i]
		}
		for _, id := range ids {
			if u, ok := byID[id]; ok {
				users = append(users, u.Public())
			}
		}
	}

	c.JSON(http.StatusOK, gin.H{
		"users": users,
		"meta":  gin.H{"total": total, "limit": limit, "offset": offset},
	})
}

// BlockUser hides :id from the signed-in user and drops follows both ways
// POST /api/v1/users/:id/block
func (h *Handlers) BlockUser(c *gin.Context) {
	userID, ok := util.GetUserIDFromContext(c)
	if !ok {
		return
	}
	blockedID := c.Param("id")
	if blockedID == userID {
		util.RespondBadRequest(c, "you cannot block yourself")
		return
	}

	ctx := c.Request.Context()
	if _, err := h.loadTarget(ctx, models.TargetUser, blockedID); err != nil {
		respondTargetError(c, models.TargetUser, err)
		return
	}

	err := h.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Clauses(clause.OnConflict{DoNothing: true}).
			Create(&models.Block{BlockerID: userID, BlockedID: blockedID}).Error; err != nil {
			return err
		}
		if _, err := unfollow(tx, userID, blockedID); err != nil {
			return err
		}
		_, err := unfollow(tx, blockedID, userID)
		return err
	})
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"blocked": true})
}

// UnblockUser lifts a block
// DELETE /api/v1/users/:id/block
func (h *Handlers) UnblockUser(c *gin.Context) {
	userID, ok := util.GetUserIDFromContext(c)
	if !ok {
		return
	}

	err := h.db.WithContext(c.Request.Context()).
		Where("blocker_id = ? AND blocked_id = ?", userID, c.Param("id")).
		Delete(&models.Block{}).Error
	if err != nil && !stderrors.Is(err, gorm.ErrRecordNotFound) {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"blocked": false})
}
