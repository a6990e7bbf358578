package handlers

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"sync"

	"github.com/gin-gonic/gin"
	"github.com/zfogg/paddock/internal/email"
	"github.com/zfogg/paddock/internal/models"
)

type fakeMailer struct {
	mu      sync.Mutex
	contact []email.ContactMessage
	fail    bool
}

func (f *fakeMailer) SendPasswordResetEmail(ctx context.Context, toEmail, resetToken string) error {
	return nil
}

func (f *fakeMailer) SendContactMessage(ctx context.Context, msg email.ContactMessage) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.fail {
		return errors.New("ses unavailable")
	}
	f.contact = append(f.contact, msg)
	return nil
}

// =============================================================================
// PROFILE
// =============================================================================

func (suite *HandlersTestSuite) TestGetUserProfileByUsernameOrID() {
	suite.createPost(suite.alice, "Hello paddock")
	suite.requireStatus(suite.request("POST", "/api/v1/users/"+suite.alice.ID+"/follow", suite.bob, nil), http.StatusOK)

	for _, key := range []string{"alice", suite.alice.ID} {
		body := suite.requireStatus(suite.request("GET", "/api/v1/users/"+key, suite.bob, nil), http.StatusOK)
		suite.Equal("alice", body["user"].(map[string]interface{})["username"])
		suite.Len(body["posts"], 1)
		suite.NotNil(body["grids"])
		suite.NotNil(body["polls"])
		follows := body["follows"].(map[string]interface{})
		suite.EqualValues(1, follows["followers"])
		suite.Equal(true, follows["is_following"])
		suite.Equal(false, follows["follows_you"])
		suite.Equal(false, body["online"])
		_, failed := body["errors"]
		suite.False(failed)
	}
}

func (suite *HandlersTestSuite) TestGetUserProfileDegradesPerSection() {
	suite.handlers.SetGrids(nil)
	body := suite.requireStatus(suite.request("GET", "/api/v1/users/alice", nil, nil), http.StatusOK)
	suite.Nil(body["grids"])
	suite.Contains(body["errors"], "grids")
	suite.NotNil(body["posts"])
}

func (suite *HandlersTestSuite) TestGetUserProfileHidesEmail() {
	w := suite.request("GET", "/api/v1/users/alice", nil, nil)
	suite.requireStatus(w, http.StatusOK)
	suite.NotContains(w.Body.String(), "alice@example.com")
}

func (suite *HandlersTestSuite) TestGetUserProfileNotFound() {
	suite.requireError(suite.request("GET", "/api/v1/users/nobody", nil, nil), http.StatusNotFound, "NOT_FOUND", "")
}

func (suite *HandlersTestSuite) TestUpdateMyProfile() {
	team := models.Team{Slug: "ferrari", Name: "Ferrari", Active: true}
	suite.Require().NoError(suite.db.Create(&team).Error)

	body := suite.requireStatus(suite.request("PUT", "/api/v1/users/me", suite.alice, gin.H{
		"display_name":     "  Alice R  ",
		"bio":              "Tifosi",
		"country":          "IT",
		"favorite_team_id": team.ID,
	}), http.StatusOK)
	user := body["user"].(map[string]interface{})
	suite.Equal("Alice R", user["display_name"])
	suite.Equal("IT", user["country"])
	suite.Equal(team.ID, user["favorite_team_id"])

	// Empty clears the pick
	body = suite.requireStatus(suite.request("PUT", "/api/v1/users/me", suite.alice, gin.H{
		"favorite_team_id": "",
	}), http.StatusOK)
	_, hasTeam := body["user"].(map[string]interface{})["favorite_team_id"]
	suite.False(hasTeam)
	suite.Equal("Tifosi", suite.reload(suite.alice).Bio)
}

func (suite *HandlersTestSuite) TestUpdateMyProfileValidation() {
	w := suite.request("PUT", "/api/v1/users/me", suite.alice, gin.H{"country": "XX"})
	suite.requireError(w, http.StatusUnprocessableEntity, "VALIDATION_ERROR", "country")

	w = suite.request("PUT", "/api/v1/users/me", suite.alice, gin.H{"bio": strings.Repeat("b", 301)})
	suite.requireError(w, http.StatusUnprocessableEntity, "VALIDATION_ERROR", "bio")

	w = suite.request("PUT", "/api/v1/users/me", suite.alice, gin.H{"favorite_driver_id": "00000000-0000-0000-0000-000000000000"})
	suite.requireError(w, http.StatusUnprocessableEntity, "VALIDATION_ERROR", "favorite_driver_id")

	w = suite.request("PUT", "/api/v1/users/me", suite.alice, gin.H{"display_name": "   "})
	suite.requireError(w, http.StatusUnprocessableEntity, "VALIDATION_ERROR", "display_name")
}

func (suite *HandlersTestSuite) TestChangeUsername() {
	body := suite.requireStatus(suite.request("PUT", "/api/v1/users/me/username", suite.alice,
		gin.H{"username": "alice_f1"}), http.StatusOK)
	suite.Equal("alice_f1", body["user"].(map[string]interface{})["username"])
	suite.Equal("alice_f1", suite.reload(suite.alice).Username)

	w := suite.request("PUT", "/api/v1/users/me/username", suite.alice, gin.H{"username": "bob"})
	suite.requireError(w, http.StatusConflict, "ALREADY_EXISTS", "username")

	w = suite.request("PUT", "/api/v1/users/me/username", suite.alice, gin.H{"username": "Not Valid!"})
	suite.requireError(w, http.StatusUnprocessableEntity, "VALIDATION_ERROR", "username")
}

func (suite *HandlersTestSuite) TestUploadAvatarWithoutStorage() {
	suite.router.POST("/api/v1/users/me/avatar", suite.loadUser(true), suite.handlers.UploadAvatar)
	w := suite.request("POST", "/api/v1/users/me/avatar", suite.alice, nil)
	suite.requireError(w, http.StatusServiceUnavailable, "SERVICE_UNAVAILABLE", "")
}

// =============================================================================
// ONBOARDING
// =============================================================================

func (suite *HandlersTestSuite) TestOnboardingWalkthrough() {
	body := suite.requireStatus(suite.request("GET", "/api/v1/onboarding", suite.alice, nil), http.StatusOK)
	suite.Equal(StepProfile, body["step"])
	suite.Equal(false, body["completed"])

	// No skipping ahead
	w := suite.request("PUT", "/api/v1/onboarding", suite.alice, gin.H{"step": "favorites"})
	suite.requireError(w, http.StatusUnprocessableEntity, "VALIDATION_ERROR", "step")

	w = suite.request("PUT", "/api/v1/onboarding", suite.alice, gin.H{"step": "profile"})
	suite.requireError(w, http.StatusUnprocessableEntity, "VALIDATION_ERROR", "display_name")

	body = suite.requireStatus(suite.request("PUT", "/api/v1/onboarding", suite.alice,
		gin.H{"step": "profile", "display_name": "Alice", "country": "GB"}), http.StatusOK)
	suite.Equal(StepFavorites, body["onboarding"].(map[string]interface{})["step"])

	suite.requireStatus(suite.request("PUT", "/api/v1/onboarding", suite.alice,
		gin.H{"step": "favorites"}), http.StatusOK)

	off := false
	body = suite.requireStatus(suite.request("PUT", "/api/v1/onboarding", suite.alice,
		gin.H{"step": "notifications", "notifications": gin.H{"likes": off}}), http.StatusOK)
	state := body["onboarding"].(map[string]interface{})
	suite.Equal(StepDone, state["step"])
	suite.Equal(true, state["completed"])
	suite.True(suite.reload(suite.alice).OnboardingCompleted)

	prefs := suite.requireStatus(suite.request("GET", "/api/v1/notifications/preferences", suite.alice, nil), http.StatusOK)
	suite.Equal(false, prefs["preferences"].(map[string]interface{})["likes"])

	// Revisiting a step after completion is allowed and changes nothing else
	body = suite.requireStatus(suite.request("PUT", "/api/v1/onboarding", suite.alice,
		gin.H{"step": "profile", "display_name": "Alice Again"}), http.StatusOK)
	suite.Equal(StepDone, body["onboarding"].(map[string]interface{})["step"])
}

// =============================================================================
// NOTIFICATIONS
// =============================================================================

func (suite *HandlersTestSuite) TestNotificationInbox() {
	suite.requireStatus(suite.request("POST", "/api/v1/users/"+suite.alice.ID+"/follow", suite.bob, nil), http.StatusOK)
	post := suite.createPost(suite.alice, "Inbox test")
	suite.requireStatus(suite.request("POST", "/api/v1/likes", suite.bob,
		gin.H{"target_type": "post", "target_id": post.ID}), http.StatusOK)

	counts := suite.requireStatus(suite.request("GET", "/api/v1/notifications/counts", suite.alice, nil), http.StatusOK)
	suite.EqualValues(2, counts["unread"])

	body := suite.requireStatus(suite.request("GET", "/api/v1/notifications", suite.alice, nil), http.StatusOK)
	list := body["notifications"].([]interface{})
	suite.Require().Len(list, 2)
	firstID := list[0].(map[string]interface{})["id"].(string)

	body = suite.requireStatus(suite.request("POST", "/api/v1/notifications/read", suite.alice,
		gin.H{"ids": []string{firstID}}), http.StatusOK)
	suite.EqualValues(1, body["marked"])

	body = suite.requireStatus(suite.request("GET", "/api/v1/notifications?unread=true", suite.alice, nil), http.StatusOK)
	suite.Len(body["notifications"], 1)

	// No body marks everything
	body = suite.requireStatus(suite.request("POST", "/api/v1/notifications/read", suite.alice, nil), http.StatusOK)
	suite.EqualValues(1, body["marked"])
	counts = suite.requireStatus(suite.request("GET", "/api/v1/notifications/counts", suite.alice, nil), http.StatusOK)
	suite.EqualValues(0, counts["unread"])
}

func (suite *HandlersTestSuite) TestNotificationPreferencesSuppress() {
	off := false
	suite.requireStatus(suite.request("PUT", "/api/v1/notifications/preferences", suite.alice,
		gin.H{"follows": off}), http.StatusOK)
	suite.requireStatus(suite.request("POST", "/api/v1/users/"+suite.alice.ID+"/follow", suite.bob, nil), http.StatusOK)
	suite.EqualValues(0, suite.count(&models.Notification{}, "recipient_id = ?", suite.alice.ID))
}

// =============================================================================
// CONTACT
// =============================================================================

func (suite *HandlersTestSuite) TestSubmitContactForwards() {
	body := suite.requireStatus(suite.request("POST", "/api/v1/contact", nil, gin.H{
		"name":    "Fan",
		"email":   "Fan@Example.com",
		"subject": "Feature request",
		"message": "Please add sprint race polls",
	}), http.StatusCreated)
	suite.Equal(true, body["received"])

	var stored models.ContactMessage
	suite.Require().NoError(suite.db.First(&stored, "id = ?", body["id"]).Error)
	suite.Equal("fan@example.com", stored.Email)
	suite.True(stored.Forwarded)
	suite.Nil(stored.UserID)
	suite.Require().Len(suite.mailer.contact, 1)
	suite.Equal("Feature request", suite.mailer.contact[0].Subject)
}

func (suite *HandlersTestSuite) TestSubmitContactKeepsMessageWhenMailFails() {
	suite.mailer.fail = true
	body := suite.requireStatus(suite.request("POST", "/api/v1/contact", suite.alice, gin.H{
		"name":    "Alice",
		"email":   "alice@example.com",
		"subject": "Bug",
		"message": "The grid page is blank",
	}), http.StatusCreated)

	var stored models.ContactMessage
	suite.Require().NoError(suite.db.First(&stored, "id = ?", body["id"]).Error)
	suite.False(stored.Forwarded)
	suite.Require().NotNil(stored.UserID)
	suite.Equal(suite.alice.ID, *stored.UserID)

	list := suite.requireStatus(suite.request("GET", "/api/v1/admin/contact?handled=false", suite.admin, nil), http.StatusOK)
	suite.Len(list["messages"], 1)
	suite.requireStatus(suite.request("POST", "/api/v1/admin/contact/"+stored.ID+"/handled", suite.admin, nil), http.StatusOK)
	suite.Equal(http.StatusNotFound, suite.request("POST", "/api/v1/admin/contact/"+stored.ID+"/handled", suite.admin, nil).Code)
	list = suite.requireStatus(suite.request("GET", "/api/v1/admin/contact?handled=false", suite.admin, nil), http.StatusOK)
	suite.Empty(list["messages"])
}

func (suite *HandlersTestSuite) TestSubmitContactValidation() {
	base := gin.H{"name": "Fan", "email": "fan@example.com", "subject": "Hi", "message": "Long enough message"}

	bad := gin.H{}
	for k, v := range base {
		bad[k] = v
	}
	bad["message"] = "short"
	suite.requireError(suite.request("POST", "/api/v1/contact", nil, bad),
		http.StatusUnprocessableEntity, "VALIDATION_ERROR", "message")

	bad["message"] = base["message"]
	bad["email"] = "not-an-email"
	suite.requireError(suite.request("POST", "/api/v1/contact", nil, bad),
		http.StatusUnprocessableEntity, "VALIDATION_ERROR", "email")

	bad["email"] = base["email"]
	bad["subject"] = strings.Repeat("s", 151)
	suite.requireError(suite.request("POST", "/api/v1/contact", nil, bad),
		http.StatusUnprocessableEntity, "VALIDATION_ERROR", "subject")
}

// =============================================================================
// SEARCH AND REFERENCE DATA
// =============================================================================

func (suite *HandlersTestSuite) TestSearchUsers() {
	body := suite.requireStatus(suite.request("GET", "/api/v1/search?q=ali", nil, nil), http.StatusOK)
	suite.Equal("users", body["type"])
	suite.EqualValues(1, body["total"])

	body = suite.requireStatus(suite.request("GET", "/api/v1/search", nil, nil), http.StatusOK)
	suite.EqualValues(0, body["total"])

	w := suite.request("GET", "/api/v1/search?q=x&type=tracks", nil, nil)
	suite.requireError(w, http.StatusUnprocessableEntity, "VALIDATION_ERROR", "type")
}

func (suite *HandlersTestSuite) TestReferenceData() {
	body := suite.requireStatus(suite.request("POST", "/api/v1/admin/teams", suite.admin, gin.H{
		"slug": "McLaren", "name": "McLaren", "color": "#FF8000", "active": true,
	}), http.StatusCreated)
	team := body["team"].(map[string]interface{})
	suite.Equal("mclaren", team["slug"])

	w := suite.request("POST", "/api/v1/admin/teams", suite.admin, gin.H{"slug": "mclaren", "name": "Copy"})
	suite.Equal(http.StatusConflict, w.Code)

	body = suite.requireStatus(suite.request("POST", "/api/v1/admin/drivers", suite.admin, gin.H{
		"slug": "norris", "first_name": "Lando", "last_name": "Norris", "code": "nor",
		"number": 4, "team_id": team["id"], "season": 2026, "active": true,
	}), http.StatusCreated)
	suite.Equal("NOR", body["driver"].(map[string]interface{})["code"])

	w = suite.request("POST", "/api/v1/admin/drivers", suite.admin, gin.H{
		"slug": "ghost", "first_name": "No", "last_name": "Team",
		"team_id": "00000000-0000-0000-0000-000000000000", "season": 2026,
	})
	suite.requireError(w, http.StatusUnprocessableEntity, "VALIDATION_ERROR", "team_id")

	body = suite.requireStatus(suite.request("GET", "/api/v1/drivers?team_id="+team["id"].(string), nil, nil), http.StatusOK)
	drivers := body["drivers"].([]interface{})
	suite.Require().Len(drivers, 1)
	suite.Equal("McLaren", drivers[0].(map[string]interface{})["team"].(map[string]interface{})["name"])

	body = suite.requireStatus(suite.request("PUT", "/api/v1/admin/teams/"+team["id"].(string), suite.admin, gin.H{
		"slug": "mclaren", "name": "McLaren F1 Team", "active": false,
	}), http.StatusOK)
	suite.Equal("McLaren F1 Team", body["team"].(map[string]interface{})["name"])

	body = suite.requireStatus(suite.request("GET", "/api/v1/teams?active=true", nil, nil), http.StatusOK)
	suite.Empty(body["teams"])

	suite.Equal(http.StatusForbidden, suite.request("POST", "/api/v1/admin/tracks", suite.alice,
		gin.H{"slug": "monza", "name": "Monza"}).Code)
	suite.requireStatus(suite.request("POST", "/api/v1/admin/tracks", suite.admin,
		gin.H{"slug": "monza", "name": "Autodromo Nazionale Monza", "turns": 11}), http.StatusCreated)
	body = suite.requireStatus(suite.request("GET", "/api/v1/tracks", nil, nil), http.StatusOK)
	suite.Len(body["tracks"], 1)
}
