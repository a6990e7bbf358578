package handlers

import (
	"context"
	stderrors "errors"
	"net/http"
	"strings"
	"sync"

	"github.com/gin-gonic/gin"
	"github.com/zfogg/paddock/internal/auth"
	"github.com/zfogg/paddock/internal/errors"
	"github.com/zfogg/paddock/internal/grids"
	"github.com/zfogg/paddock/internal/logger"
	"github.com/zfogg/paddock/internal/models"
	"github.com/zfogg/paddock/internal/polls"
	"github.com/zfogg/paddock/internal/ranking"
	"github.com/zfogg/paddock/internal/storage"
	"github.com/zfogg/paddock/internal/util"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"gorm.io/gorm"
)

// profileSectionSize caps each list on the profile page
const profileSectionSize = 10

// FollowState is the follow box on a profile
type FollowState struct {
	Followers   int64 `json:"followers"`
	Following   int64 `json:"following"`
	IsFollowing bool  `json:"is_following"`
	FollowsYou  bool  `json:"follows_you"`
}

// ProfileResponse is the public profile page. A section that failed to
// load is null and named in Errors.
type ProfileResponse struct {
	User    *models.User      `json:"user"`
	Posts   []models.Post     `json:"posts"`
	Grids   []models.Grid     `json:"grids"`
	Polls   []*polls.View     `json:"polls"`
	Follows *FollowState      `json:"follows"`
	Online  bool              `json:"online"`
	Errors  map[string]string `json:"errors,omitempty"`
}

// GetUserProfile aggregates a profile page. Sections load in parallel and
// one failing does not fail the page.
// GET /api/v1/users/:id
func (h *Handlers) GetUserProfile(c *gin.Context) {
	ctx := c.Request.Context()
	viewerID := util.OptionalUserID(c)

	user, err := h.findUser(ctx, c.Param("id"))
	if err != nil {
		if stderrors.Is(err, gorm.ErrRecordNotFound) {
			util.RespondNotFound(c, "user")
			return
		}
		respondError(c, err)
		return
	}

	resp := &ProfileResponse{User: user}
	if h.wsHandler != nil {
		resp.Online = h.wsHandler.IsUserOnline(user.ID)
	}
	var mu sync.Mutex
	fail := func(section string, err error) {
		logger.Log.Warn("Profile section failed",
			zap.String("section", section),
			logger.WithUserID(user.ID),
			zap.Error(err))
		mu.Lock()
		defer mu.Unlock()
		if resp.Errors == nil {
			resp.Errors = map[string]string{}
		}
		resp.Errors[section] = err.Error()
	}

	var g errgroup.Group
	g.Go(func() error {
		posts, err := h.recentPosts(ctx, user.ID)
		if err != nil {
			fail("posts", err)
			return nil
		}
		resp.Posts = posts
		return nil
	})
	g.Go(func() error {
		if h.grids == nil {
			fail("grids", stderrors.New("grids unavailable"))
			return nil
		}
		list, _, err := h.grids.List(ctx, grids.ListOptions{UserID: user.ID, Limit: profileSectionSize})
		if err != nil {
			fail("grids", err)
			return nil
		}
		resp.Grids = list
		return nil
	})
	g.Go(func() error {
		if h.polls == nil {
			fail("polls", stderrors.New("polls unavailable"))
			return nil
		}
		list, _, err := h.polls.List(ctx, viewerID, polls.ListOptions{
			UserID: user.ID,
			Sort:   ranking.ModeNew,
			Limit:  profileSectionSize,
		})
		if err != nil {
			fail("polls", err)
			return nil
		}
		resp.Polls = list
		return nil
	})
	g.Go(func() error {
		state, err := h.followState(ctx, viewerID, user.ID)
		if err != nil {
			fail("follows", err)
			return nil
		}
		resp.Follows = state
		return nil
	})
	_ = g.Wait()

	c.JSON(http.StatusOK, resp)
}

// findUser looks a user up by username, falling back to ID
func (h *Handlers) findUser(ctx context.Context, key string) (*models.User, error) {
	var user models.User
	err := h.db.WithContext(ctx).Where("username = ?", strings.ToLower(key)).First(&user).Error
	if stderrors.Is(err, gorm.ErrRecordNotFound) {
		err = h.db.WithContext(ctx).Where("id = ?", key).First(&user).Error
	}
	if err != nil {
		return nil, err
	}
	return &user, nil
}

func (h *Handlers) recentPosts(ctx context.Context, userID string) ([]models.Post, error) {
	posts := []models.Post{}
	err := h.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("created_at DESC").
		Limit(profileSectionSize).
		Find(&posts).Error
	return posts, err
}

func (h *Handlers) followState(ctx context.Context, viewerID, userID string) (*FollowState, error) {
	db := h.db.WithContext(ctx)
	state := &FollowState{}
	if err := db.Model(&models.Follow{}).Where("followee_id = ?", userID).Count(&state.Followers).Error; err != nil {
		return nil, err
	}
	if err := db.Model(&models.Follow{}).Where("follower_id = ?", userID).Count(&state.Following).Error; err != nil {
		return nil, err
	}
	if viewerID == "" || viewerID == userID {
		return state, nil
	}

	var n int64
	if err := db.Model(&models.Follow{}).
		Where("follower_id = ? AND followee_id = ?", viewerID, userID).
		Count(&n).Error; err != nil {
		return nil, err
	}
	state.IsFollowing = n > 0
	if err := db.Model(&models.Follow{}).
		Where("follower_id = ? AND followee_id = ?", userID, viewerID).
		Count(&n).Error; err != nil {
		return nil, err
	}
	state.FollowsYou = n > 0
	return state, nil
}

// UpdateProfileRequest edits the profile; nil fields are left alone and
// empty favorites clear the pick
type UpdateProfileRequest struct {
	DisplayName      *string `json:"display_name" binding:"omitempty,max=50"`
	Bio              *string `json:"bio" binding:"omitempty,max=300"`
	Country          *string `json:"country" binding:"omitempty,iso3166_1_alpha2"`
	FavoriteTeamID   *string `json:"favorite_team_id"`
	FavoriteDriverID *string `json:"favorite_driver_id"`
}

// profileUpdates validates req into a column map. It responds and returns
// false on failure.
func (h *Handlers) profileUpdates(c *gin.Context, req UpdateProfileRequest) (map[string]interface{}, bool) {
	updates := map[string]interface{}{}

	if req.DisplayName != nil {
		name, ok := checkText(c, "display_name", *req.DisplayName, 1, 50)
		if !ok {
			return nil, false
		}
		updates["display_name"] = name
	}
	if req.Bio != nil {
		updates["bio"] = strings.TrimSpace(*req.Bio)
	}
	if req.Country != nil {
		updates["country"] = strings.ToUpper(*req.Country)
	}
	if req.FavoriteTeamID != nil {
		id, ok := h.checkFavorite(c, "favorite_team_id", &models.Team{}, *req.FavoriteTeamID)
		if !ok {
			return nil, false
		}
		updates["favorite_team_id"] = id
	}
	if req.FavoriteDriverID != nil {
		id, ok := h.checkFavorite(c, "favorite_driver_id", &models.Driver{}, *req.FavoriteDriverID)
		if !ok {
			return nil, false
		}
		updates["favorite_driver_id"] = id
	}
	return updates, true
}

// checkFavorite resolves a favorite pick. An empty id clears it.
func (h *Handlers) checkFavorite(c *gin.Context, field string, model interface{}, id string) (*string, bool) {
	id = strings.TrimSpace(id)
	if id == "" {
		return nil, true
	}
	var n int64
	if err := h.db.WithContext(c.Request.Context()).Model(model).Where("id = ?", id).Count(&n).Error; err != nil {
		respondError(c, err)
		return nil, false
	}
	if n == 0 {
		respondValidation(c, field, "unknown "+strings.TrimPrefix(field, "favorite_"))
		return nil, false
	}
	return &id, true
}

// UpdateMyProfile edits the signed-in user's profile
// PUT /api/v1/users/me
func (h *Handlers) UpdateMyProfile(c *gin.Context) {
	user, ok := util.GetUserFromContext(c)
	if !ok {
		return
	}
	var req UpdateProfileRequest
	if !util.BindJSON(c, &req) {
		return
	}

	updates, ok := h.profileUpdates(c, req)
	if !ok {
		return
	}
	if len(updates) > 0 {
		if err := h.db.WithContext(c.Request.Context()).Model(user).Updates(updates).Error; err != nil {
			respondError(c, err)
			return
		}
	}

	fresh, err := h.reloadUser(c.Request.Context(), user.ID)
	if err != nil {
		respondError(c, err)
		return
	}
	h.search.IndexUser(fresh)
	c.JSON(http.StatusOK, gin.H{"user": fresh})
}

func (h *Handlers) reloadUser(ctx context.Context, id string) (*models.User, error) {
	var user models.User
	if err := h.db.WithContext(ctx).First(&user, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &user, nil
}

// ChangeUsername renames the signed-in user
// PUT /api/v1/users/me/username
func (h *Handlers) ChangeUsername(c *gin.Context) {
	user, ok := util.GetUserFromContext(c)
	if !ok {
		return
	}
	var req struct {
		Username string `json:"username" binding:"required,username"`
	}
	if !util.BindJSON(c, &req) {
		return
	}
	if req.Username == user.Username {
		c.JSON(http.StatusOK, gin.H{"user": user})
		return
	}

	ctx := c.Request.Context()
	var taken int64
	if err := h.db.WithContext(ctx).Unscoped().Model(&models.User{}).
		Where("username = ? AND id <> ?", req.Username, user.ID).
		Count(&taken).Error; err != nil {
		respondError(c, err)
		return
	}
	if taken > 0 {
		respondError(c, auth.ErrUsernameExists)
		return
	}

	if err := h.db.WithContext(ctx).Model(user).Update("username", req.Username).Error; err != nil {
		if util.IsUniqueViolation(err) {
			respondError(c, auth.ErrUsernameExists)
			return
		}
		respondError(c, err)
		return
	}

	user.Username = req.Username
	logger.Log.Info("Username changed", logger.WithUserID(user.ID), zap.String("username", req.Username))
	h.search.IndexUser(user)
	c.JSON(http.StatusOK, gin.H{"user": user})
}

// UploadAvatar stores a profile picture and points the user at it
// POST /api/v1/users/me/avatar
func (h *Handlers) UploadAvatar(c *gin.Context) {
	user, ok := util.GetUserFromContext(c)
	if !ok {
		return
	}

	result, ok := h.uploadImage(c, "avatar", storage.ImageKindAvatar, user.ID)
	if !ok {
		return
	}

	if err := h.db.WithContext(c.Request.Context()).Model(user).
		Update("avatar_url", result.URL).Error; err != nil {
		respondError(c, err)
		return
	}
	user.AvatarURL = result.URL
	h.search.IndexUser(user)
	c.JSON(http.StatusOK, gin.H{"avatar_url": result.URL})
}

// uploadImage reads a multipart image field and stores it
func (h *Handlers) uploadImage(c *gin.Context, field string, kind storage.ImageKind, userID string) (*storage.UploadResult, bool) {
	if h.uploader == nil {
		util.RespondWithAPIError(c, errors.ServiceUnavailable("image storage"))
		return nil, false
	}

	header, err := c.FormFile(field)
	if err != nil {
		respondValidation(c, field, "an image file is required")
		return nil, false
	}
	data, err := storage.ReadImage(header)
	if err != nil {
		respondError(c, err)
		return nil, false
	}

	result, err := h.uploader.UploadImage(c.Request.Context(), data, kind, userID)
	if err != nil {
		respondError(c, err)
		return nil, false
	}
	return result, true
}
