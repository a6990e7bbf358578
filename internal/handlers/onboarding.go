package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/zfogg/paddock/internal/logger"
	"github.com/zfogg/paddock/internal/models"
	"github.com/zfogg/paddock/internal/notifications"
	"github.com/zfogg/paddock/internal/util"
)

const (
	StepProfile       = "profile"
	StepFavorites     = "favorites"
	StepNotifications = "notifications"
	StepDone          = "done"
)

// onboardingSteps is the order new accounts walk through
var onboardingSteps = []string{StepProfile, StepFavorites, StepNotifications}

func stepIndex(step string) int {
	for i, s := range onboardingSteps {
		if s == step {
			return i
		}
	}
	return len(onboardingSteps)
}

// OnboardingState is where a user is in onboarding
type OnboardingState struct {
	Step      string   `json:"step"`
	Completed bool     `json:"completed"`
	Steps     []string `json:"steps"`
}

func onboardingState(u *models.User) OnboardingState {
	step := u.OnboardingStep
	if u.OnboardingCompleted {
		step = StepDone
	} else if step == "" {
		step = StepProfile
	}
	return OnboardingState{Step: step, Completed: u.OnboardingCompleted, Steps: onboardingSteps}
}

// OnboardingRequest submits one step. Profile fields apply to the profile
// step, favorites to the favorites step, preferences to the last.
type OnboardingRequest struct {
	Step string `json:"step" binding:"required,oneof=profile favorites notifications"`
	UpdateProfileRequest
	Notifications *notifications.PreferencesUpdate `json:"notifications"`
}

// GetOnboarding returns the current step
// GET /api/v1/onboarding
func (h *Handlers) GetOnboarding(c *gin.Context) {
	user, ok := util.GetUserFromContext(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, onboardingState(user))
}

// UpdateOnboarding applies a step and advances. Steps may be revisited but
// not skipped.
// PUT /api/v1/onboarding
func (h *Handlers) UpdateOnboarding(c *gin.Context) {
	user, ok := util.GetUserFromContext(c)
	if !ok {
		return
	}
	var req OnboardingRequest
	if !util.BindJSON(c, &req) {
		return
	}

	current := onboardingState(user).Step
	if !user.OnboardingCompleted && stepIndex(req.Step) > stepIndex(current) {
		respondValidation(c, "step", "finish the "+current+" step first")
		return
	}

	ctx := c.Request.Context()
	var updates map[string]interface{}
	switch req.Step {
	case StepProfile:
		if req.DisplayName == nil {
			respondValidation(c, "display_name", "display_name is required")
			return
		}
		u, ok := h.profileUpdates(c, UpdateProfileRequest{
			DisplayName: req.DisplayName,
			Bio:         req.Bio,
			Country:     req.Country,
		})
		if !ok {
			return
		}
		updates = u
	case StepFavorites:
		u, ok := h.profileUpdates(c, UpdateProfileRequest{
			FavoriteTeamID:   req.FavoriteTeamID,
			FavoriteDriverID: req.FavoriteDriverID,
		})
		if !ok {
			return
		}
		updates = u
	case StepNotifications:
		updates = map[string]interface{}{}
		if req.Notifications != nil && h.notifications != nil {
			if _, err := h.notifications.UpdatePreferences(ctx, user.ID, *req.Notifications); err != nil {
				respondError(c, err)
				return
			}
		}
	}

	if !user.OnboardingCompleted && req.Step == current {
		next := stepIndex(current) + 1
		if next >= len(onboardingSteps) {
			updates["onboarding_step"] = StepDone
			updates["onboarding_completed"] = true
			logger.Log.Info("Onboarding completed", logger.WithUserID(user.ID))
		} else {
			updates["onboarding_step"] = onboardingSteps[next]
		}
	}

	if len(updates) > 0 {
		if err := h.db.WithContext(ctx).Model(user).Updates(updates).Error; err != nil {
			respondError(c, err)
			return
		}
	}

	fresh, err := h.reloadUser(ctx, user.ID)
	if err != nil {
		respondError(c, err)
		return
	}
	h.search.IndexUser(fresh)
	c.JSON(http.StatusOK, gin.H{"onboarding": onboardingState(fresh), "user": fresh})
}
