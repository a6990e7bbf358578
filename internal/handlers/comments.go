package handlers

import (
	"context"
	stderrors "errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/zfogg/paddock/internal/logger"
	"github.com/zfogg/paddock/internal/metrics"
	"github.com/zfogg/paddock/internal/models"
	"github.com/zfogg/paddock/internal/notifications"
	"github.com/zfogg/paddock/internal/ranking"
	"github.com/zfogg/paddock/internal/util"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const (
	// MaxCommentLength is counted in runes after trimming
	MaxCommentLength = 2000
	// maxThreadRoots caps the roots ranked in memory per listing
	maxThreadRoots = 500
	// RemovedBody replaces the text of deleted comments
	RemovedBody = "[removed]"
)

// CommentRequest is the comment form
type CommentRequest struct {
	Body     string  `json:"body" binding:"required"`
	ParentID *string `json:"parent_id"`
}

// CreateComment returns a handler commenting on tt. Replies to replies
// attach to the thread root so threads are one level deep.
// POST /api/v1/{posts,polls,grids}/:id/comments
func (h *Handlers) CreateComment(tt models.TargetType) gin.HandlerFunc {
	return func(c *gin.Context) {
		user, ok := util.GetUserFromContext(c)
		if !ok {
			return
		}
		var req CommentRequest
		if !util.BindJSON(c, &req) {
			return
		}
		body, ok := checkText(c, "body", req.Body, 1, MaxCommentLength)
		if !ok {
			return
		}

		ctx := c.Request.Context()
		t, err := h.loadTarget(ctx, tt, c.Param("id"))
		if err != nil {
			respondTargetError(c, tt, err)
			return
		}

		var parent *models.Comment
		if req.ParentID != nil && *req.ParentID != "" {
			parent, err = h.threadRoot(ctx, tt, t.ID, *req.ParentID)
			if err != nil {
				if stderrors.Is(err, gorm.ErrRecordNotFound) {
					respondValidation(c, "parent_id", "parent comment not found")
					return
				}
				respondError(c, err)
				return
			}
		}

		comment := models.Comment{
			TargetType: tt,
			TargetID:   t.ID,
			UserID:     user.ID,
			Body:       body,
			CreatedAt:  time.Now().UTC(),
		}
		if parent != nil {
			comment.ParentID = &parent.ID
		}

		mentioned, err := h.mentionedUsers(ctx, body, user.ID)
		if err != nil {
			respondError(c, err)
			return
		}

		err = h.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
			if err := tx.Create(&comment).Error; err != nil {
				return err
			}
			if err := bump(tx, tt.Table(), t.ID, "comment_count", 1); err != nil {
				return err
			}
			if parent != nil {
				if err := bump(tx, "comments", parent.ID, "reply_count", 1); err != nil {
					return err
				}
			}
			for _, m := range mentioned {
				if err := tx.Create(&models.CommentMention{
					CommentID:       comment.ID,
					MentionedUserID: m.ID,
				}).Error; err != nil {
					return err
				}
			}
			return nil
		})
		if err != nil {
			respondError(c, err)
			return
		}

		comment.User = *user
		metrics.Get().CommentsTotal.WithLabelValues(string(tt)).Inc()
		h.notifyComment(ctx, user, t, parent, &comment, mentioned)
		c.JSON(http.StatusCreated, gin.H{"comment": comment})
	}
}

// threadRoot loads the comment a reply attaches to, following a reply up
// to its root
func (h *Handlers) threadRoot(ctx context.Context, tt models.TargetType, targetID, parentID string) (*models.Comment, error) {
	db := h.db.WithContext(ctx)
	var parent models.Comment
	if err := db.Where("id = ? AND target_type = ? AND target_id = ?", parentID, tt, targetID).
		First(&parent).Error; err != nil {
		return nil, err
	}
	if parent.ParentID == nil {
		return &parent, nil
	}
	var root models.Comment
	if err := db.First(&root, "id = ?", *parent.ParentID).Error; err != nil {
		return nil, err
	}
	return &root, nil
}

// mentionedUsers resolves @mentions in body, skipping the author
func (h *Handlers) mentionedUsers(ctx context.Context, body, authorID string) ([]models.User, error) {
	names := util.ExtractMentions(body)
	if len(names) == 0 {
		return nil, nil
	}
	var users []models.User
	err := h.db.WithContext(ctx).
		Where("username IN ? AND id <> ? AND is_banned = ?", names, authorID, false).
		Find(&users).Error
	return users, err
}

// notifyComment tells the content owner, the parent author and anyone
// mentioned. Each person hears about a comment once.
func (h *Handlers) notifyComment(ctx context.Context, author *models.User, t *target, parent *models.Comment, comment *models.Comment, mentioned []models.User) {
	told := map[string]bool{author.ID: true}
	send := func(kind models.NotificationKind, recipientID string) {
		if told[recipientID] {
			return
		}
		told[recipientID] = true
		h.notifications.NotifyAsync(ctx, notifications.Event{
			Kind:        kind,
			RecipientID: recipientID,
			ActorID:     author.ID,
			TargetType:  t.Type,
			TargetID:    t.ID,
			Preview:     comment.Body,
		})
	}

	if parent != nil {
		send(models.NotifyReply, parent.UserID)
	}
	for _, m := range mentioned {
		send(models.NotifyMention, m.ID)
	}
	send(models.NotifyComment, t.OwnerID)
}

// CommentView is a comment as listed; removed comments keep their place
// in the thread with the text blanked
type CommentView struct {
	models.Comment
	Liked bool `json:"liked"`
}

// ListComments returns a handler listing root comments on tt, ranked
// GET /api/v1/{posts,polls,grids}/:id/comments?sort=hot|top|new|old
func (h *Handlers) ListComments(tt models.TargetType) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx := c.Request.Context()
		targetID := c.Param("id")
		if _, err := h.loadTarget(ctx, tt, targetID); err != nil {
			respondTargetError(c, tt, err)
			return
		}

		limit, offset := util.ParsePagination(c)
		mode := ranking.ParseMode(c.Query("sort"))
		viewerID := util.OptionalUserID(c)

		roots := []models.Comment{}
		err := h.visibleComments(ctx).
			Where("target_type = ? AND target_id = ? AND parent_id IS NULL", tt, targetID).
			Order("created_at DESC").
			Limit(maxThreadRoots).
			Find(&roots).Error
		if err != nil {
			respondError(c, err)
			return
		}

		roots, err = h.dropBlocked(ctx, viewerID, roots)
		if err != nil {
			respondError(c, err)
			return
		}
		// Removed roots with no replies have nothing left to show
		kept := roots[:0]
		for _, r := range roots {
			if !r.IsDeleted || r.ReplyCount > 0 {
				kept = append(kept, r)
			}
		}
		roots = kept

		ranking.Sort(roots, mode, time.Now(), h.weights)
		total := len(roots)
		roots = pageComments(roots, limit, offset)

		views, err := h.commentViews(ctx, viewerID, roots)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{
			"comments": views,
			"meta": gin.H{
				"sort":     mode,
				"total":    total,
				"limit":    limit,
				"offset":   offset,
				"has_more": offset+len(views) < total,
			},
		})
	}
}

// GetReplies lists a thread's replies, oldest first
// GET /api/v1/comments/:id/replies
func (h *Handlers) GetReplies(c *gin.Context) {
	ctx := c.Request.Context()
	limit, offset := util.ParsePagination(c)
	viewerID := util.OptionalUserID(c)

	replies := []models.Comment{}
	err := h.visibleComments(ctx).
		Where("parent_id = ?", c.Param("id")).
		Order("created_at ASC, id ASC").
		Limit(limit).Offset(offset).
		Find(&replies).Error
	if err != nil {
		respondError(c, err)
		return
	}

	replies, err = h.dropBlocked(ctx, viewerID, replies)
	if err != nil {
		respondError(c, err)
		return
	}
	views, err := h.commentViews(ctx, viewerID, replies)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"replies": views})
}

// visibleComments excludes comments by banned users
func (h *Handlers) visibleComments(ctx context.Context) *gorm.DB {
	return h.db.WithContext(ctx).Preload("User").
		Where("user_id NOT IN (?)", h.bannedUsers())
}

func (h *Handlers) dropBlocked(ctx context.Context, viewerID string, comments []models.Comment) ([]models.Comment, error) {
	blocked, err := h.blockedBy(ctx, viewerID)
	if err != nil || len(blocked) == 0 {
		return comments, err
	}
	kept := comments[:0]
	for _, cm := range comments {
		if !blocked[cm.UserID] {
			kept = append(kept, cm)
		}
	}
	return kept, nil
}

func (h *Handlers) commentViews(ctx context.Context, viewerID string, comments []models.Comment) ([]CommentView, error) {
	liked := map[string]bool{}
	if viewerID != "" && len(comments) > 0 {
		ids := make([]string, len(comments))
		for i, cm := range comments {
			ids[i] = cm.ID
		}
		var likedIDs []string
		if err := h.db.WithContext(ctx).Model(&models.Like{}).
			Where("user_id = ? AND target_type = ? AND target_id IN ?", viewerID, models.TargetComment, ids).
			Pluck("target_id", &likedIDs).Error; err != nil {
			return nil, err
		}
		for _, id := range likedIDs {
			liked[id] = true
		}
	}

	views := make([]CommentView, 0, len(comments))
	for _, cm := range comments {
		if cm.IsDeleted {
			cm.Body = RemovedBody
			cm.User = models.User{}
		}
		views = append(views, CommentView{Comment: cm, Liked: liked[cm.ID]})
	}
	return views, nil
}

func pageComments(items []models.Comment, limit, offset int) []models.Comment {
	if offset >= len(items) {
		return []models.Comment{}
	}
	end := offset + limit
	if end > len(items) {
		end = len(items)
	}
	return items[offset:end]
}

// UpdateComment edits a comment's text. Only the author may edit.
// PUT /api/v1/comments/:id
func (h *Handlers) UpdateComment(c *gin.Context) {
	user, ok := util.GetUserFromContext(c)
	if !ok {
		return
	}
	var req struct {
		Body string `json:"body" binding:"required"`
	}
	if !util.BindJSON(c, &req) {
		return
	}
	body, ok := checkText(c, "body", req.Body, 1, MaxCommentLength)
	if !ok {
		return
	}

	comment, ok := h.loadComment(c)
	if !ok {
		return
	}
	if comment.UserID != user.ID {
		util.RespondForbidden(c, "only the author can edit a comment")
		return
	}

	now := time.Now().UTC()
	if err := h.db.WithContext(c.Request.Context()).Model(comment).Updates(map[string]interface{}{
		"body":      body,
		"is_edited": true,
		"edited_at": now,
	}).Error; err != nil {
		respondError(c, err)
		return
	}
	comment.Body = body
	comment.IsEdited = true
	comment.EditedAt = &now
	comment.User = *user
	c.JSON(http.StatusOK, gin.H{"comment": comment})
}

// DeleteComment soft-deletes a comment. Authors and admins may delete.
// DELETE /api/v1/comments/:id
func (h *Handlers) DeleteComment(c *gin.Context) {
	user, ok := util.GetUserFromContext(c)
	if !ok {
		return
	}
	comment, ok := h.loadComment(c)
	if !ok {
		return
	}
	if comment.UserID != user.ID && !user.IsAdmin {
		util.RespondForbidden(c, "not allowed to delete this comment")
		return
	}

	if err := h.removeComment(c.Request.Context(), comment); err != nil {
		respondError(c, err)
		return
	}
	logger.Log.Debug("Comment removed", logger.WithUserID(user.ID), zap.String("comment_id", comment.ID))
	c.JSON(http.StatusOK, gin.H{"deleted": true})
}

func (h *Handlers) loadComment(c *gin.Context) (*models.Comment, bool) {
	var comment models.Comment
	err := h.db.WithContext(c.Request.Context()).
		Where("id = ? AND is_deleted = ?", c.Param("id"), false).
		First(&comment).Error
	if stderrors.Is(err, gorm.ErrRecordNotFound) {
		util.RespondNotFound(c, "comment")
		return nil, false
	}
	if err != nil {
		respondError(c, err)
		return nil, false
	}
	return &comment, true
}

// removeComment blanks a comment and takes it out of the counters
func (h *Handlers) removeComment(ctx context.Context, comment *models.Comment) error {
	return h.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Model(comment).Updates(map[string]interface{}{
			"is_deleted": true,
			"body":       RemovedBody,
		}).Error; err != nil {
			return err
		}
		if err := bump(tx, comment.TargetType.Table(), comment.TargetID, "comment_count", -1); err != nil {
			return err
		}
		if comment.ParentID != nil {
			return bump(tx, "comments", *comment.ParentID, "reply_count", -1)
		}
		return nil
	})
}
