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
	"github.com/zfogg/paddock/internal/storage"
	"github.com/zfogg/paddock/internal/timeline"
	"github.com/zfogg/paddock/internal/util"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// MaxPostLength is counted in runes after trimming
const MaxPostLength = 1000

// CreatePostRequest is the post form
type CreatePostRequest struct {
	Body     string `json:"body" binding:"required"`
	ImageURL string `json:"image_url" binding:"omitempty,url,max=2048"`
}

// CreatePost publishes a post
// POST /api/v1/posts
func (h *Handlers) CreatePost(c *gin.Context) {
	user, ok := util.GetUserFromContext(c)
	if !ok {
		return
	}
	var req CreatePostRequest
	if !util.BindJSON(c, &req) {
		return
	}
	body, ok := checkText(c, "body", req.Body, 1, MaxPostLength)
	if !ok {
		return
	}

	post := models.Post{
		UserID:    user.ID,
		Body:      body,
		ImageURL:  req.ImageURL,
		CreatedAt: time.Now().UTC(),
	}
	err := h.db.WithContext(c.Request.Context()).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(&post).Error; err != nil {
			return err
		}
		return bump(tx, "users", user.ID, "post_count", 1)
	})
	if err != nil {
		respondError(c, err)
		return
	}

	post.User = *user
	metrics.Get().PostsCreated.Inc()
	logger.Log.Debug("Post created", logger.WithUserID(user.ID), zap.String("post_id", post.ID))
	c.JSON(http.StatusCreated, gin.H{"post": post})
}

// GetPost returns one post and counts the view
// GET /api/v1/posts/:id
func (h *Handlers) GetPost(c *gin.Context) {
	db := h.db.WithContext(c.Request.Context())

	var post models.Post
	err := db.Preload("User").First(&post, "id = ?", c.Param("id")).Error
	if stderrors.Is(err, gorm.ErrRecordNotFound) {
		util.RespondNotFound(c, "post")
		return
	}
	if err != nil {
		respondError(c, err)
		return
	}

	if err := bump(db, "posts", post.ID, "view_count", 1); err != nil {
		logger.Log.Debug("Failed to count post view", zap.Error(err))
	} else {
		post.ViewCount++
	}

	resp := gin.H{"post": post}
	if viewerID := util.OptionalUserID(c); viewerID != "" {
		var liked int64
		db.Model(&models.Like{}).
			Where("user_id = ? AND target_type = ? AND target_id = ?", viewerID, models.TargetPost, post.ID).
			Count(&liked)
		resp["liked"] = liked > 0
	}
	c.JSON(http.StatusOK, resp)
}

// DeletePost removes a post. Authors and admins may delete.
// DELETE /api/v1/posts/:id
func (h *Handlers) DeletePost(c *gin.Context) {
	user, ok := util.GetUserFromContext(c)
	if !ok {
		return
	}

	var post models.Post
	err := h.db.WithContext(c.Request.Context()).First(&post, "id = ?", c.Param("id")).Error
	if stderrors.Is(err, gorm.ErrRecordNotFound) {
		util.RespondNotFound(c, "post")
		return
	}
	if err != nil {
		respondError(c, err)
		return
	}
	if post.UserID != user.ID && !user.IsAdmin {
		util.RespondForbidden(c, "not allowed to delete this post")
		return
	}

	if err := h.deletePost(c.Request.Context(), &post); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"deleted": true})
}

func (h *Handlers) deletePost(ctx context.Context, post *models.Post) error {
	return h.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Delete(post).Error; err != nil {
			return err
		}
		return bump(tx, "users", post.UserID, "post_count", -1)
	})
}

// UploadPostImage stores an image for a post about to be written
// POST /api/v1/posts/image
func (h *Handlers) UploadPostImage(c *gin.Context) {
	userID, ok := util.GetUserIDFromContext(c)
	if !ok {
		return
	}
	result, ok := h.uploadImage(c, "image", storage.ImageKindPost, userID)
	if !ok {
		return
	}
	c.JSON(http.StatusCreated, gin.H{"image_url": result.URL, "content_type": result.ContentType, "size": result.Size})
}

// GetFeed returns the home feed. following needs a signed-in viewer; hot
// and new work signed out.
// GET /api/v1/feed?mode=following|hot|new
func (h *Handlers) GetFeed(c *gin.Context) {
	limit, offset := util.ParsePagination(c)
	viewerID := util.OptionalUserID(c)
	mode := c.DefaultQuery("mode", timeline.ModeFollowing)

	switch mode {
	case timeline.ModeFollowing:
		if viewerID == "" {
			util.RespondUnauthorized(c, "sign in to see your following feed")
			return
		}
	case timeline.ModeHot, timeline.ModeNew:
	default:
		respondValidation(c, "mode", "mode must be following, hot or new")
		return
	}

	resp, err := h.timeline.GetFeed(c.Request.Context(), viewerID, mode, limit, offset)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

// TrendingQuery selects a trending listing
type TrendingQuery struct {
	Kind   string `form:"kind" binding:"omitempty,oneof=posts polls grids"`
	Window string `form:"window" binding:"omitempty,oneof=24h 7d"`
}

// GetTrending ranks recent posts, polls or grids
// GET /api/v1/trending?kind=posts|polls|grids&window=24h|7d
func (h *Handlers) GetTrending(c *gin.Context) {
	var query TrendingQuery
	if !util.BindQuery(c, &query) {
		return
	}
	kind, err := timeline.ParseTrendingKind(query.Kind)
	if err != nil {
		respondError(c, err)
		return
	}
	window, err := timeline.ParseWindow(query.Window)
	if err != nil {
		respondError(c, err)
		return
	}
	limit, _ := util.ParsePagination(c)

	resp, err := h.timeline.Trending(c.Request.Context(), kind, window, limit)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}
