package handlers

import (
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/zfogg/paddock/internal/models"
)

// =============================================================================
// POSTS AND FEED
// =============================================================================

func (suite *HandlersTestSuite) TestCreatePost() {
	post := suite.createPost(suite.alice, "  Lights out  ")
	suite.Equal(1, suite.reload(suite.alice).PostCount)

	var stored models.Post
	suite.Require().NoError(suite.db.First(&stored, "id = ?", post.ID).Error)
	suite.Equal("Lights out", stored.Body)
}

func (suite *HandlersTestSuite) TestCreatePostValidation() {
	w := suite.request("POST", "/api/v1/posts", suite.alice, gin.H{"body": strings.Repeat("a", MaxPostLength+1)})
	suite.requireError(w, http.StatusUnprocessableEntity, "VALIDATION_ERROR", "body")

	w = suite.request("POST", "/api/v1/posts", suite.alice, gin.H{"body": "ok", "image_url": "not a url"})
	suite.requireError(w, http.StatusUnprocessableEntity, "VALIDATION_ERROR", "image_url")
}

func (suite *HandlersTestSuite) TestGetPostCountsViewsAndLikes() {
	post := suite.createPost(suite.alice, "Count me")
	suite.requireStatus(suite.request("POST", "/api/v1/likes", suite.bob,
		gin.H{"target_type": "post", "target_id": post.ID}), http.StatusOK)

	body := suite.requireStatus(suite.request("GET", "/api/v1/posts/"+post.ID, suite.bob, nil), http.StatusOK)
	suite.Equal(true, body["liked"])
	suite.EqualValues(1, body["post"].(map[string]interface{})["view_count"])

	body = suite.requireStatus(suite.request("GET", "/api/v1/posts/"+post.ID, nil, nil), http.StatusOK)
	_, hasLiked := body["liked"]
	suite.False(hasLiked)
	suite.EqualValues(2, body["post"].(map[string]interface{})["view_count"])
}

func (suite *HandlersTestSuite) TestDeletePostPermissions() {
	post := suite.createPost(suite.alice, "Mine")
	path := "/api/v1/posts/" + post.ID

	suite.requireError(suite.request("DELETE", path, suite.bob, nil), http.StatusForbidden, "FORBIDDEN", "")
	suite.requireStatus(suite.request("DELETE", path, suite.admin, nil), http.StatusOK)
	suite.Equal(0, suite.reload(suite.alice).PostCount)
	suite.Equal(http.StatusNotFound, suite.request("GET", path, nil, nil).Code)
}

func (suite *HandlersTestSuite) TestFeedModes() {
	suite.createPost(suite.bob, "From bob")

	w := suite.request("GET", "/api/v1/feed", nil, nil)
	suite.Equal(http.StatusUnauthorized, w.Code)

	w = suite.request("GET", "/api/v1/feed?mode=sideways", suite.alice, nil)
	suite.requireError(w, http.StatusUnprocessableEntity, "VALIDATION_ERROR", "mode")

	suite.requireStatus(suite.request("GET", "/api/v1/feed?mode=new", nil, nil), http.StatusOK)
	suite.requireStatus(suite.request("GET", "/api/v1/feed", suite.alice, nil), http.StatusOK)
}

func (suite *HandlersTestSuite) TestTrendingValidation() {
	w := suite.request("GET", "/api/v1/trending?kind=drivers", nil, nil)
	suite.requireError(w, http.StatusUnprocessableEntity, "VALIDATION_ERROR", "kind")

	w = suite.request("GET", "/api/v1/trending?window=1y", nil, nil)
	suite.requireError(w, http.StatusUnprocessableEntity, "VALIDATION_ERROR", "window")

	suite.requireStatus(suite.request("GET", "/api/v1/trending?kind=polls&window=7d", nil, nil), http.StatusOK)
}

// =============================================================================
// POLLS
// =============================================================================

func (suite *HandlersTestSuite) createPoll(author *models.User, options ...string) map[string]interface{} {
	w := suite.request("POST", "/api/v1/polls", author, gin.H{
		"question": "Who takes the title?",
		"options":  options,
	})
	return suite.requireStatus(w, http.StatusCreated)["poll"].(map[string]interface{})
}

func optionIDs(poll map[string]interface{}) []string {
	var ids []string
	for _, o := range poll["options"].([]interface{}) {
		ids = append(ids, o.(map[string]interface{})["id"].(string))
	}
	return ids
}

func (suite *HandlersTestSuite) TestPollLifecycle() {
	poll := suite.createPoll(suite.alice, "Verstappen", "Norris", "Leclerc")
	id := poll["id"].(string)
	options := optionIDs(poll)

	body := suite.requireStatus(suite.request("POST", "/api/v1/polls/"+id+"/vote", suite.bob,
		gin.H{"option_ids": []string{options[1]}}), http.StatusOK)
	voted := body["poll"].(map[string]interface{})
	suite.Equal([]interface{}{options[1]}, voted["my_votes"])

	suite.requireError(suite.request("POST", "/api/v1/polls/"+id+"/close", suite.bob, nil),
		http.StatusForbidden, "FORBIDDEN", "")
	body = suite.requireStatus(suite.request("POST", "/api/v1/polls/"+id+"/close", suite.alice, nil), http.StatusOK)
	suite.Equal(true, body["poll"].(map[string]interface{})["is_closed"])

	suite.requireError(suite.request("POST", "/api/v1/polls/"+id+"/vote", suite.admin,
		gin.H{"option_ids": []string{options[0]}}), http.StatusConflict, "POLL_CLOSED", "")
	suite.requireError(suite.request("DELETE", "/api/v1/polls/"+id+"/vote", suite.bob, nil),
		http.StatusConflict, "POLL_CLOSED", "")
	suite.requireError(suite.request("POST", "/api/v1/polls/"+id+"/close", suite.alice, nil),
		http.StatusConflict, "CONFLICT", "")
}

func (suite *HandlersTestSuite) TestRetractVote() {
	poll := suite.createPoll(suite.alice, "Soft", "Medium", "Hard")
	id := poll["id"].(string)

	suite.requireError(suite.request("DELETE", "/api/v1/polls/"+id+"/vote", suite.bob, nil),
		http.StatusNotFound, "NOT_FOUND", "")

	suite.requireStatus(suite.request("POST", "/api/v1/polls/"+id+"/vote", suite.bob,
		gin.H{"option_ids": []string{optionIDs(poll)[0]}}), http.StatusOK)
	body := suite.requireStatus(suite.request("DELETE", "/api/v1/polls/"+id+"/vote", suite.bob, nil), http.StatusOK)
	suite.Empty(body["poll"].(map[string]interface{})["my_votes"])
}

func (suite *HandlersTestSuite) TestCreatePollValidation() {
	w := suite.request("POST", "/api/v1/polls", suite.alice, gin.H{
		"question": "Only one choice?",
		"options":  []string{"Yes"},
	})
	suite.requireError(w, http.StatusUnprocessableEntity, "VALIDATION_ERROR", "options")

	w = suite.request("POST", "/api/v1/polls", suite.alice, gin.H{
		"question":  "Closed already?",
		"options":   []string{"Yes", "No"},
		"closes_at": time.Now().Add(-time.Hour),
	})
	suite.requireError(w, http.StatusUnprocessableEntity, "VALIDATION_ERROR", "closes_at")
}

func (suite *HandlersTestSuite) TestListPolls() {
	suite.createPoll(suite.alice, "A", "B")
	suite.createPoll(suite.bob, "C", "D")

	body := suite.requireStatus(suite.request("GET", "/api/v1/polls?user_id="+suite.bob.ID, nil, nil), http.StatusOK)
	suite.Len(body["polls"], 1)
	suite.EqualValues(1, body["meta"].(map[string]interface{})["total"])

	w := suite.request("GET", "/api/v1/polls?status=archived", nil, nil)
	suite.requireError(w, http.StatusUnprocessableEntity, "VALIDATION_ERROR", "status")
}

func (suite *HandlersTestSuite) TestPollComments() {
	poll := suite.createPoll(suite.alice, "Yes", "No")
	id := poll["id"].(string)

	suite.requireStatus(suite.request("POST", "/api/v1/polls/"+id+"/comments", suite.bob,
		gin.H{"body": "Definitely yes"}), http.StatusCreated)

	var stored models.Poll
	suite.Require().NoError(suite.db.First(&stored, "id = ?", id).Error)
	suite.Equal(1, stored.CommentCount)

	body := suite.requireStatus(suite.request("GET", "/api/v1/polls/"+id+"/comments", nil, nil), http.StatusOK)
	suite.Len(body["comments"], 1)
}

// =============================================================================
// GRIDS
// =============================================================================

func (suite *HandlersTestSuite) seedDrivers(codes ...string) []string {
	var ids []string
	for i, code := range codes {
		d := models.Driver{
			Slug:      strings.ToLower(code),
			FirstName: code,
			LastName:  code,
			Code:      code,
			Number:    i + 1,
			Season:    time.Now().Year(),
			Active:    true,
		}
		suite.Require().NoError(suite.db.Create(&d).Error)
		ids = append(ids, d.ID)
	}
	return ids
}

func (suite *HandlersTestSuite) TestDriverQuery() {
	suite.seedDrivers("VER", "NOR")
	season := time.Now().Year()

	body := suite.requireStatus(suite.request("GET", fmt.Sprintf("/api/v1/drivers?season=%d", season), nil, nil), http.StatusOK)
	suite.Len(body["drivers"], 2)

	body = suite.requireStatus(suite.request("GET", fmt.Sprintf("/api/v1/drivers?season=%d", season-1), nil, nil), http.StatusOK)
	suite.Empty(body["drivers"])

	suite.requireError(suite.request("GET", "/api/v1/drivers?season=1800", nil, nil),
		http.StatusUnprocessableEntity, "VALIDATION_ERROR", "season")
	suite.requireError(suite.request("GET", "/api/v1/drivers?season=soon", nil, nil),
		http.StatusBadRequest, "BAD_REQUEST", "")
}

func (suite *HandlersTestSuite) TestGridLifecycle() {
	drivers := suite.seedDrivers("VER", "NOR", "LEC", "HAM")
	season := time.Now().Year()

	body := suite.requireStatus(suite.request("POST", "/api/v1/grids", suite.alice, gin.H{
		"title":   "My top three",
		"kind":    "drivers",
		"season":  season,
		"entries": drivers[:3],
	}), http.StatusCreated)
	grid := body["grid"].(map[string]interface{})
	id := grid["id"].(string)
	suite.Len(grid["entries"], 3)

	update := gin.H{"title": "Revised", "kind": "drivers", "season": season, "entries": drivers[1:]}
	suite.requireError(suite.request("PUT", "/api/v1/grids/"+id, suite.bob, update),
		http.StatusForbidden, "FORBIDDEN", "")
	body = suite.requireStatus(suite.request("PUT", "/api/v1/grids/"+id, suite.alice, update), http.StatusOK)
	suite.Equal("Revised", body["grid"].(map[string]interface{})["title"])

	body = suite.requireStatus(suite.request("GET", "/api/v1/grids/consensus", nil, nil), http.StatusOK)
	suite.EqualValues(1, body["grid_count"])
	suite.Len(body["standings"], 3)

	suite.requireStatus(suite.request("DELETE", "/api/v1/grids/"+id, suite.alice, nil), http.StatusOK)
	suite.requireError(suite.request("GET", "/api/v1/grids/"+id, nil, nil), http.StatusNotFound, "NOT_FOUND", "")
}

func (suite *HandlersTestSuite) TestGridValidation() {
	drivers := suite.seedDrivers("PIA", "RUS", "SAI")

	w := suite.request("POST", "/api/v1/grids", suite.alice, gin.H{
		"title":   "Too short",
		"kind":    "drivers",
		"season":  time.Now().Year(),
		"entries": drivers[:2],
	})
	suite.requireError(w, http.StatusUnprocessableEntity, "VALIDATION_ERROR", "entries")

	w = suite.request("GET", "/api/v1/grids?kind=circuits", nil, nil)
	suite.requireError(w, http.StatusUnprocessableEntity, "VALIDATION_ERROR", "kind")

	w = suite.request("GET", "/api/v1/grids/consensus?kind=circuits", nil, nil)
	suite.requireError(w, http.StatusUnprocessableEntity, "VALIDATION_ERROR", "kind")
}
