package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/zfogg/paddock/internal/alerts"
	"github.com/zfogg/paddock/internal/models"
	"github.com/zfogg/paddock/internal/testutil"
)

// =============================================================================
// REPORTS
// =============================================================================

func (suite *HandlersTestSuite) report(reporter *models.User, tt, id string) map[string]interface{} {
	w := suite.request("POST", "/api/v1/reports", reporter, gin.H{
		"target_type": tt,
		"target_id":   id,
		"reason":      "Abusive",
	})
	return suite.requireStatus(w, http.StatusCreated)["report"].(map[string]interface{})
}

func (suite *HandlersTestSuite) TestCreateReport() {
	post := suite.createPost(suite.alice, "Controversial")
	r := suite.report(suite.bob, "post", post.ID)
	suite.Equal("open", r["status"])

	var stored models.Post
	suite.Require().NoError(suite.db.First(&stored, "id = ?", post.ID).Error)
	suite.Equal(1, stored.ReportCount)

	// One open report per reporter and target
	w := suite.request("POST", "/api/v1/reports", suite.bob, gin.H{
		"target_type": "post", "target_id": post.ID, "reason": "Again",
	})
	suite.requireError(w, http.StatusConflict, "CONFLICT", "")
}

func (suite *HandlersTestSuite) TestReportValidation() {
	w := suite.request("POST", "/api/v1/reports", suite.bob, gin.H{
		"target_type": "planet", "target_id": "x", "reason": "Why",
	})
	suite.requireError(w, http.StatusUnprocessableEntity, "VALIDATION_ERROR", "target_type")

	w = suite.request("POST", "/api/v1/reports", suite.bob, gin.H{
		"target_type": "user", "target_id": suite.bob.ID, "reason": "Me",
	})
	suite.Equal(http.StatusBadRequest, w.Code)

	w = suite.request("POST", "/api/v1/reports", suite.bob, gin.H{
		"target_type": "post", "target_id": "00000000-0000-0000-0000-000000000000", "reason": "Gone",
	})
	suite.requireError(w, http.StatusNotFound, "NOT_FOUND", "")
}

func (suite *HandlersTestSuite) TestReportUser() {
	r := suite.report(suite.bob, "user", suite.alice.ID)
	suite.Equal("user", r["target_type"])
}

func (suite *HandlersTestSuite) TestResolveReportRemovesContent() {
	carol := testutil.CreateUser(suite.T(), suite.db, "carol")
	post := suite.createPost(suite.alice, "Spam spam spam")
	first := suite.report(suite.bob, "post", post.ID)
	suite.report(carol, "post", post.ID)

	body := suite.requireStatus(suite.request("GET", "/api/v1/admin/reports", suite.admin, nil), http.StatusOK)
	suite.Len(body["reports"], 2)

	body = suite.requireStatus(suite.request("POST", "/api/v1/admin/reports/"+first["id"].(string)+"/resolve",
		suite.admin, gin.H{"action": "remove"}), http.StatusOK)
	suite.Equal("removed", body["status"])
	suite.EqualValues(2, body["resolved"])

	suite.EqualValues(0, suite.count(&models.Report{}, "status = ?", models.ReportOpen))
	suite.EqualValues(0, suite.count(&models.Post{}, "id = ?", post.ID))
	suite.Equal(0, suite.reload(suite.alice).PostCount)

	// Already resolved
	w := suite.request("POST", "/api/v1/admin/reports/"+first["id"].(string)+"/resolve",
		suite.admin, gin.H{"action": "dismiss"})
	suite.requireError(w, http.StatusConflict, "CONFLICT", "")
}

func (suite *HandlersTestSuite) TestDismissReportKeepsContent() {
	post := suite.createPost(suite.alice, "Perfectly fine")
	r := suite.report(suite.bob, "post", post.ID)

	body := suite.requireStatus(suite.request("POST", "/api/v1/admin/reports/"+r["id"].(string)+"/resolve",
		suite.admin, gin.H{"action": "dismiss"}), http.StatusOK)
	suite.Equal("dismissed", body["status"])
	suite.EqualValues(1, suite.count(&models.Post{}, "id = ?", post.ID))

	var stored models.Report
	suite.Require().NoError(suite.db.First(&stored, "id = ?", r["id"]).Error)
	suite.Require().NotNil(stored.ResolvedBy)
	suite.Equal(suite.admin.ID, *stored.ResolvedBy)
	suite.NotNil(stored.ResolvedAt)

	body = suite.requireStatus(suite.request("GET", "/api/v1/admin/reports?status=dismissed", suite.admin, nil), http.StatusOK)
	suite.Len(body["reports"], 1)
}

func (suite *HandlersTestSuite) TestResolveRemovedComment() {
	post := suite.createPost(suite.alice, "Post")
	c := suite.comment(suite.bob, post.ID, "Nasty", "")
	r := suite.report(suite.alice, "comment", c["id"].(string))

	suite.requireStatus(suite.request("POST", "/api/v1/admin/reports/"+r["id"].(string)+"/resolve",
		suite.admin, gin.H{"action": "remove"}), http.StatusOK)

	var stored models.Comment
	suite.Require().NoError(suite.db.First(&stored, "id = ?", c["id"]).Error)
	suite.True(stored.IsDeleted)
	suite.Equal(RemovedBody, stored.Body)
}

// =============================================================================
// ADMIN
// =============================================================================

func (suite *HandlersTestSuite) TestAdminRoutesRequireAdmin() {
	w := suite.request("GET", "/api/v1/admin/reports", suite.alice, nil)
	suite.Equal(http.StatusForbidden, w.Code)
	w = suite.request("GET", "/api/v1/admin/reports", nil, nil)
	suite.Equal(http.StatusUnauthorized, w.Code)
}

func (suite *HandlersTestSuite) TestBanAndUnban() {
	path := "/api/v1/admin/users/" + suite.bob.ID + "/ban"
	body := suite.requireStatus(suite.request("POST", path, suite.admin, gin.H{"reason": "spam"}), http.StatusOK)
	user := body["user"].(map[string]interface{})
	suite.Equal(true, user["is_banned"])
	suite.Equal("bob@example.com", user["email"])

	bob := suite.reload(suite.bob)
	suite.True(bob.IsBanned)
	suite.Equal("spam", bob.BannedReason)

	w := suite.request("POST", "/api/v1/posts", bob, gin.H{"body": "let me back"})
	suite.requireError(w, http.StatusForbidden, "BANNED", "")
	// Reads still work
	suite.requireStatus(suite.request("GET", "/api/v1/notifications", bob, nil), http.StatusOK)

	suite.requireStatus(suite.request("DELETE", path, suite.admin, nil), http.StatusOK)
	suite.False(suite.reload(suite.bob).IsBanned)
}

func (suite *HandlersTestSuite) TestBanGuards() {
	w := suite.request("POST", "/api/v1/admin/users/"+suite.admin.ID+"/ban", suite.admin, nil)
	suite.Equal(http.StatusBadRequest, w.Code)

	other := testutil.CreateUser(suite.T(), suite.db, "clerk", testutil.Admin)
	w = suite.request("POST", "/api/v1/admin/users/"+other.ID+"/ban", suite.admin, nil)
	suite.Equal(http.StatusForbidden, w.Code)

	w = suite.request("POST", "/api/v1/admin/users/00000000-0000-0000-0000-000000000000/ban", suite.admin, nil)
	suite.Equal(http.StatusNotFound, w.Code)
}

func (suite *HandlersTestSuite) TestBannedUsersDropOutOfComments() {
	post := suite.createPost(suite.alice, "Thread")
	suite.comment(suite.bob, post.ID, "Soon to be banned", "")
	suite.requireStatus(suite.request("POST", "/api/v1/admin/users/"+suite.bob.ID+"/ban", suite.admin, nil), http.StatusOK)

	body := suite.requireStatus(suite.request("GET", "/api/v1/posts/"+post.ID+"/comments", nil, nil), http.StatusOK)
	suite.Empty(body["comments"])
}

func (suite *HandlersTestSuite) TestSetAdmin() {
	path := "/api/v1/admin/users/" + suite.alice.ID + "/admin"
	body := suite.requireStatus(suite.request("POST", path, suite.admin, gin.H{"is_admin": true}), http.StatusOK)
	suite.Equal(true, body["user"].(map[string]interface{})["is_admin"])
	suite.True(suite.reload(suite.alice).IsAdmin)

	w := suite.request("POST", "/api/v1/admin/users/"+suite.admin.ID+"/admin", suite.admin, gin.H{"is_admin": false})
	suite.Equal(http.StatusBadRequest, w.Code)

	w = suite.request("POST", path, suite.admin, gin.H{})
	suite.requireError(w, http.StatusUnprocessableEntity, "VALIDATION_ERROR", "is_admin")
}

func (suite *HandlersTestSuite) TestAdminSearchUsers() {
	body := suite.requireStatus(suite.request("GET", "/api/v1/admin/users?q=BOB@", suite.admin, nil), http.StatusOK)
	users := body["users"].([]interface{})
	suite.Require().Len(users, 1)
	suite.Equal("bob", users[0].(map[string]interface{})["username"])
}

func (suite *HandlersTestSuite) TestAdminDeleteContent() {
	post := suite.createPost(suite.alice, "Takedown")
	suite.requireStatus(suite.request("DELETE", "/api/v1/admin/content/post/"+post.ID, suite.admin, nil), http.StatusOK)
	suite.EqualValues(0, suite.count(&models.Post{}, "id = ?", post.ID))

	w := suite.request("DELETE", "/api/v1/admin/content/post/"+post.ID, suite.admin, nil)
	suite.Equal(http.StatusNotFound, w.Code)

	w = suite.request("DELETE", "/api/v1/admin/content/user/"+suite.bob.ID, suite.admin, nil)
	suite.Equal(http.StatusBadRequest, w.Code)

	poll := suite.createPoll(suite.alice, "A", "B")
	suite.requireStatus(suite.request("DELETE", "/api/v1/admin/content/poll/"+poll["id"].(string), suite.admin, nil), http.StatusOK)
	suite.Equal(http.StatusNotFound, suite.request("GET", "/api/v1/polls/"+poll["id"].(string), nil, nil).Code)
}

func (suite *HandlersTestSuite) TestDashboard() {
	suite.createPost(suite.alice, "One")
	body := suite.requireStatus(suite.request("GET", "/api/v1/admin/dashboard?refresh=true", suite.admin, nil), http.StatusOK)
	counts := body["counts"].(map[string]interface{})
	suite.EqualValues(3, counts["users"])
	suite.EqualValues(1, counts["posts"])
}

func (suite *HandlersTestSuite) TestDashboardAlerts() {
	suite.alerts.AddRule(&alerts.AlertRule{
		ID:         "crowd",
		Name:       "Crowd",
		Metric:     "users",
		Comparison: alerts.AtLeast,
		Threshold:  3,
		Level:      alerts.AlertLevelInfo,
		Enabled:    true,
	})

	body := suite.requireStatus(suite.request("GET", "/api/v1/admin/alerts", suite.admin, nil), http.StatusOK)
	suite.Empty(body["alerts"])
	suite.NotEmpty(body["rules"])

	// A refresh evaluates the rules
	suite.requireStatus(suite.request("GET", "/api/v1/admin/dashboard?refresh=true", suite.admin, nil), http.StatusOK)
	body = suite.requireStatus(suite.request("GET", "/api/v1/admin/alerts", suite.admin, nil), http.StatusOK)
	list := body["alerts"].([]interface{})
	suite.Require().Len(list, 1)
	alert := list[0].(map[string]interface{})
	suite.Equal("crowd", alert["rule_id"])
	suite.EqualValues(3, alert["value"])

	body = suite.requireStatus(suite.request("POST", "/api/v1/admin/alerts/"+alert["id"].(string)+"/resolve", suite.admin, nil), http.StatusOK)
	resolved := body["alert"].(map[string]interface{})
	suite.Equal(true, resolved["is_resolved"])
	suite.Equal(suite.admin.ID, resolved["resolved_by"])

	body = suite.requireStatus(suite.request("GET", "/api/v1/admin/alerts?all=true", suite.admin, nil), http.StatusOK)
	suite.Len(body["alerts"], 1)

	suite.requireError(suite.request("POST", "/api/v1/admin/alerts/nope/resolve", suite.admin, nil),
		http.StatusNotFound, "NOT_FOUND", "")
	suite.Equal(http.StatusForbidden, suite.request("GET", "/api/v1/admin/alerts", suite.alice, nil).Code)
}

func (suite *HandlersTestSuite) TestUpdateAlertRule() {
	body := suite.requireStatus(suite.request("PUT", "/api/v1/admin/alerts/rules/moderation_backlog", suite.admin,
		gin.H{"threshold": 5, "enabled": false}), http.StatusOK)
	rule := body["rule"].(map[string]interface{})
	suite.EqualValues(5, rule["threshold"])
	suite.Equal(false, rule["enabled"])

	suite.requireError(suite.request("PUT", "/api/v1/admin/alerts/rules/moderation_backlog", suite.admin,
		gin.H{"threshold": -1}), http.StatusUnprocessableEntity, "VALIDATION_ERROR", "threshold")
	suite.requireError(suite.request("PUT", "/api/v1/admin/alerts/rules/missing", suite.admin,
		gin.H{"enabled": true}), http.StatusNotFound, "NOT_FOUND", "")
}

// =============================================================================
// CHAT
// =============================================================================

func (suite *HandlersTestSuite) TestChatToggleAndSend() {
	body := suite.requireStatus(suite.request("GET", "/api/v1/chat/status", nil, nil), http.StatusOK)
	suite.Equal(true, body["enabled"])

	body = suite.requireStatus(suite.request("POST", "/api/v1/chat/rooms/race-monza/messages", suite.alice,
		gin.H{"body": "Forza Ferrari"}), http.StatusCreated)
	msg := body["message"].(map[string]interface{})
	suite.Equal("race-monza", msg["room_id"])

	suite.requireStatus(suite.request("POST", "/api/v1/admin/chat/toggle", suite.admin, gin.H{"enabled": false}), http.StatusOK)
	body = suite.requireStatus(suite.request("GET", "/api/v1/chat/status", nil, nil), http.StatusOK)
	suite.Equal(false, body["enabled"])

	w := suite.request("POST", "/api/v1/chat/rooms/race-monza/messages", suite.alice, gin.H{"body": "Hello?"})
	suite.requireError(w, http.StatusServiceUnavailable, "CHAT_DISABLED", "")

	suite.Equal(http.StatusForbidden, suite.request("POST", "/api/v1/admin/chat/toggle", suite.alice, gin.H{"enabled": true}).Code)
}

func (suite *HandlersTestSuite) TestChatDeletePermissions() {
	body := suite.requireStatus(suite.request("POST", "/api/v1/chat/rooms/paddock/messages", suite.alice,
		gin.H{"body": "Mine"}), http.StatusCreated)
	id := body["message"].(map[string]interface{})["id"].(string)

	suite.requireError(suite.request("DELETE", "/api/v1/chat/messages/"+id, suite.bob, nil),
		http.StatusForbidden, "FORBIDDEN", "")
	suite.requireStatus(suite.request("DELETE", "/api/v1/chat/messages/"+id, suite.admin, nil), http.StatusOK)
	suite.requireError(suite.request("DELETE", "/api/v1/chat/messages/"+id, suite.admin, nil),
		http.StatusNotFound, "NOT_FOUND", "")
}

func (suite *HandlersTestSuite) TestChatRoomValidation() {
	w := suite.request("GET", "/api/v1/chat/rooms/Not%20A%20Room/messages", nil, nil)
	suite.requireError(w, http.StatusUnprocessableEntity, "VALIDATION_ERROR", "room")
}
