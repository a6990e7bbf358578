package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/zfogg/paddock/internal/models"
	"github.com/zfogg/paddock/internal/testutil"
)

// =============================================================================
// FOLLOWS
// =============================================================================

func (suite *HandlersTestSuite) TestFollowUpdatesCountersAndNotifies() {
	w := suite.request("POST", "/api/v1/users/"+suite.bob.ID+"/follow", suite.alice, nil)
	body := suite.requireStatus(w, http.StatusOK)
	suite.Equal(true, body["following"])

	suite.Equal(1, suite.reload(suite.alice).FollowingCount)
	suite.Equal(1, suite.reload(suite.bob).FollowerCount)
	suite.EqualValues(1, suite.count(&models.Notification{},
		"recipient_id = ? AND kind = ?", suite.bob.ID, models.NotifyFollow))
}

func (suite *HandlersTestSuite) TestFollowTwiceIsNoop() {
	path := "/api/v1/users/" + suite.bob.ID + "/follow"
	suite.requireStatus(suite.request("POST", path, suite.alice, nil), http.StatusOK)
	suite.requireStatus(suite.request("POST", path, suite.alice, nil), http.StatusOK)

	suite.Equal(1, suite.reload(suite.bob).FollowerCount)
	suite.EqualValues(1, suite.count(&models.Follow{}, "follower_id = ?", suite.alice.ID))
	suite.EqualValues(1, suite.count(&models.Notification{}, "recipient_id = ?", suite.bob.ID))
}

func (suite *HandlersTestSuite) TestFollowSelf() {
	w := suite.request("POST", "/api/v1/users/"+suite.alice.ID+"/follow", suite.alice, nil)
	suite.requireError(w, http.StatusBadRequest, "BAD_REQUEST", "")
}

func (suite *HandlersTestSuite) TestFollowUnknownUser() {
	w := suite.request("POST", "/api/v1/users/00000000-0000-0000-0000-000000000000/follow", suite.alice, nil)
	suite.requireError(w, http.StatusNotFound, "NOT_FOUND", "")
}

func (suite *HandlersTestSuite) TestFollowRequiresAuth() {
	w := suite.request("POST", "/api/v1/users/"+suite.bob.ID+"/follow", nil, nil)
	suite.Equal(http.StatusUnauthorized, w.Code)
}

func (suite *HandlersTestSuite) TestUnfollowRestoresCounters() {
	path := "/api/v1/users/" + suite.bob.ID + "/follow"
	suite.requireStatus(suite.request("POST", path, suite.alice, nil), http.StatusOK)
	body := suite.requireStatus(suite.request("DELETE", path, suite.alice, nil), http.StatusOK)
	suite.Equal(false, body["following"])

	suite.Equal(0, suite.reload(suite.alice).FollowingCount)
	suite.Equal(0, suite.reload(suite.bob).FollowerCount)

	// Unfollowing again must not drive counters negative
	suite.requireStatus(suite.request("DELETE", path, suite.alice, nil), http.StatusOK)
	suite.Equal(0, suite.reload(suite.bob).FollowerCount)
}

func (suite *HandlersTestSuite) TestFollowerLists() {
	carol := testutil.CreateUser(suite.T(), suite.db, "carol")
	suite.requireStatus(suite.request("POST", "/api/v1/users/"+suite.bob.ID+"/follow", suite.alice, nil), http.StatusOK)
	suite.requireStatus(suite.request("POST", "/api/v1/users/"+suite.bob.ID+"/follow", carol, nil), http.StatusOK)

	body := suite.requireStatus(suite.request("GET", "/api/v1/users/"+suite.bob.ID+"/followers", nil, nil), http.StatusOK)
	users := body["users"].([]interface{})
	suite.Len(users, 2)
	suite.EqualValues(2, body["meta"].(map[string]interface{})["total"])

	body = suite.requireStatus(suite.request("GET", "/api/v1/users/"+suite.alice.ID+"/following", nil, nil), http.StatusOK)
	users = body["users"].([]interface{})
	suite.Require().Len(users, 1)
	suite.Equal("bob", users[0].(map[string]interface{})["username"])
}

func (suite *HandlersTestSuite) TestBlockDropsFollowsBothWays() {
	suite.requireStatus(suite.request("POST", "/api/v1/users/"+suite.bob.ID+"/follow", suite.alice, nil), http.StatusOK)
	suite.requireStatus(suite.request("POST", "/api/v1/users/"+suite.alice.ID+"/follow", suite.bob, nil), http.StatusOK)

	body := suite.requireStatus(suite.request("POST", "/api/v1/users/"+suite.bob.ID+"/block", suite.alice, nil), http.StatusOK)
	suite.Equal(true, body["blocked"])

	suite.EqualValues(0, suite.count(&models.Follow{}, "1 = 1"))
	alice := suite.reload(suite.alice)
	suite.Equal(0, alice.FollowerCount)
	suite.Equal(0, alice.FollowingCount)

	// A blocked user's likes no longer notify the blocker
	post := suite.createPost(suite.alice, "Lights out and away we go")
	suite.requireStatus(suite.request("POST", "/api/v1/likes", suite.bob,
		gin.H{"target_type": "post", "target_id": post.ID}), http.StatusOK)
	suite.EqualValues(0, suite.count(&models.Notification{},
		"recipient_id = ? AND kind = ?", suite.alice.ID, models.NotifyLike))

	suite.requireStatus(suite.request("DELETE", "/api/v1/users/"+suite.bob.ID+"/block", suite.alice, nil), http.StatusOK)
	suite.EqualValues(0, suite.count(&models.Block{}, "blocker_id = ?", suite.alice.ID))
}

func (suite *HandlersTestSuite) TestBlockSelf() {
	w := suite.request("POST", "/api/v1/users/"+suite.alice.ID+"/block", suite.alice, nil)
	suite.Equal(http.StatusBadRequest, w.Code)
}

// =============================================================================
// LIKES
// =============================================================================

func (suite *HandlersTestSuite) TestLikePost() {
	post := suite.createPost(suite.alice, "Box box")
	like := gin.H{"target_type": "post", "target_id": post.ID}

	body := suite.requireStatus(suite.request("POST", "/api/v1/likes", suite.bob, like), http.StatusOK)
	suite.Equal(true, body["liked"])
	suite.EqualValues(1, body["like_count"])

	// Idempotent
	body = suite.requireStatus(suite.request("POST", "/api/v1/likes", suite.bob, like), http.StatusOK)
	suite.EqualValues(1, body["like_count"])

	var stored models.Post
	suite.Require().NoError(suite.db.First(&stored, "id = ?", post.ID).Error)
	suite.Equal(1, stored.LikeCount)
	suite.EqualValues(1, suite.count(&models.Notification{},
		"recipient_id = ? AND kind = ?", suite.alice.ID, models.NotifyLike))

	body = suite.requireStatus(suite.request("DELETE", "/api/v1/likes", suite.bob, like), http.StatusOK)
	suite.Equal(false, body["liked"])
	suite.EqualValues(0, body["like_count"])
	suite.Require().NoError(suite.db.First(&stored, "id = ?", post.ID).Error)
	suite.Equal(0, stored.LikeCount)
}

func (suite *HandlersTestSuite) TestLikeOwnPostDoesNotNotify() {
	post := suite.createPost(suite.alice, "Talking to myself")
	suite.requireStatus(suite.request("POST", "/api/v1/likes", suite.alice,
		gin.H{"target_type": "post", "target_id": post.ID}), http.StatusOK)
	suite.EqualValues(0, suite.count(&models.Notification{}, "recipient_id = ?", suite.alice.ID))
}

func (suite *HandlersTestSuite) TestLikeRejectsUnlikeableTarget() {
	w := suite.request("POST", "/api/v1/likes", suite.alice,
		gin.H{"target_type": "user", "target_id": suite.bob.ID})
	suite.requireError(w, http.StatusUnprocessableEntity, "VALIDATION_ERROR", "target_type")
}

func (suite *HandlersTestSuite) TestLikeMissingTarget() {
	w := suite.request("POST", "/api/v1/likes", suite.alice,
		gin.H{"target_type": "post", "target_id": "00000000-0000-0000-0000-000000000000"})
	suite.requireError(w, http.StatusNotFound, "NOT_FOUND", "")
}

func (suite *HandlersTestSuite) TestBannedUserCannotLike() {
	villain := testutil.CreateUser(suite.T(), suite.db, "villain", testutil.Banned)
	post := suite.createPost(suite.alice, "Fair racing only")

	w := suite.request("POST", "/api/v1/likes", villain, gin.H{"target_type": "post", "target_id": post.ID})
	suite.requireError(w, http.StatusForbidden, "BANNED", "")
}
