package handlers

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/zfogg/paddock/internal/models"
	"github.com/zfogg/paddock/internal/testutil"
)

func (suite *HandlersTestSuite) comment(user *models.User, postID, body string, parentID string) map[string]interface{} {
	req := gin.H{"body": body}
	if parentID != "" {
		req["parent_id"] = parentID
	}
	w := suite.request("POST", "/api/v1/posts/"+postID+"/comments", user, req)
	return suite.requireStatus(w, http.StatusCreated)["comment"].(map[string]interface{})
}

func (suite *HandlersTestSuite) TestCreateCommentCountsAndNotifies() {
	post := suite.createPost(suite.alice, "Who wins Monaco?")
	c := suite.comment(suite.bob, post.ID, "Whoever qualifies on pole", "")
	suite.Equal("Whoever qualifies on pole", c["body"])

	var stored models.Post
	suite.Require().NoError(suite.db.First(&stored, "id = ?", post.ID).Error)
	suite.Equal(1, stored.CommentCount)
	suite.EqualValues(1, suite.count(&models.Notification{},
		"recipient_id = ? AND kind = ?", suite.alice.ID, models.NotifyComment))
}

func (suite *HandlersTestSuite) TestReplyToReplyAttachesToRoot() {
	post := suite.createPost(suite.alice, "Undercut or overcut?")
	root := suite.comment(suite.bob, post.ID, "Undercut every time", "")
	reply := suite.comment(suite.alice, post.ID, "Not on hards", root["id"].(string))
	nested := suite.comment(suite.bob, post.ID, "Even on hards", reply["id"].(string))

	suite.Equal(root["id"], nested["parent_id"])

	var stored models.Comment
	suite.Require().NoError(suite.db.First(&stored, "id = ?", root["id"]).Error)
	suite.Equal(2, stored.ReplyCount)

	// bob hears about alice's reply once, as a reply rather than a comment
	suite.EqualValues(1, suite.count(&models.Notification{},
		"recipient_id = ? AND kind = ?", suite.bob.ID, models.NotifyReply))

	body := suite.requireStatus(suite.request("GET", "/api/v1/comments/"+root["id"].(string)+"/replies", nil, nil), http.StatusOK)
	replies := body["replies"].([]interface{})
	suite.Require().Len(replies, 2)
	suite.Equal("Not on hards", replies[0].(map[string]interface{})["body"])
}

func (suite *HandlersTestSuite) TestCommentParentOnOtherTarget() {
	first := suite.createPost(suite.alice, "Post one")
	second := suite.createPost(suite.alice, "Post two")
	root := suite.comment(suite.bob, first.ID, "On the first post", "")

	w := suite.request("POST", "/api/v1/posts/"+second.ID+"/comments", suite.bob,
		gin.H{"body": "Wrong thread", "parent_id": root["id"]})
	suite.requireError(w, http.StatusUnprocessableEntity, "VALIDATION_ERROR", "parent_id")
}

func (suite *HandlersTestSuite) TestCommentMentions() {
	carol := testutil.CreateUser(suite.T(), suite.db, "carol")
	post := suite.createPost(suite.alice, "Best overtake of the season")
	c := suite.comment(suite.bob, post.ID, "@carol @Alice you saw that?", "")

	suite.EqualValues(1, suite.count(&models.CommentMention{}, "comment_id = ? AND mentioned_user_id = ?", c["id"], carol.ID))
	suite.EqualValues(1, suite.count(&models.Notification{},
		"recipient_id = ? AND kind = ?", carol.ID, models.NotifyMention))
	// alice is both owner and mentioned and hears about it once
	suite.EqualValues(1, suite.count(&models.Notification{}, "recipient_id = ?", suite.alice.ID))
}

func (suite *HandlersTestSuite) TestCommentLength() {
	post := suite.createPost(suite.alice, "Say something")

	w := suite.request("POST", "/api/v1/posts/"+post.ID+"/comments", suite.bob, gin.H{"body": "   "})
	suite.requireError(w, http.StatusUnprocessableEntity, "VALIDATION_ERROR", "body")

	w = suite.request("POST", "/api/v1/posts/"+post.ID+"/comments", suite.bob,
		gin.H{"body": strings.Repeat("x", MaxCommentLength+1)})
	suite.requireError(w, http.StatusUnprocessableEntity, "VALIDATION_ERROR", "body")
}

func (suite *HandlersTestSuite) TestCommentOnMissingPost() {
	w := suite.request("POST", "/api/v1/posts/00000000-0000-0000-0000-000000000000/comments", suite.bob,
		gin.H{"body": "Hello?"})
	suite.requireError(w, http.StatusNotFound, "NOT_FOUND", "")
}

func (suite *HandlersTestSuite) TestListCommentsSortsAndHidesRemoved() {
	post := suite.createPost(suite.alice, "Rate the race")
	older := suite.comment(suite.bob, post.ID, "Ten out of ten", "")
	newer := suite.comment(suite.alice, post.ID, "Seven at best", "")
	gone := suite.comment(suite.bob, post.ID, "Delete me", "")

	suite.requireStatus(suite.request("DELETE", "/api/v1/comments/"+gone["id"].(string), suite.bob, nil), http.StatusOK)

	body := suite.requireStatus(suite.request("GET", "/api/v1/posts/"+post.ID+"/comments?sort=new", nil, nil), http.StatusOK)
	list := body["comments"].([]interface{})
	suite.Require().Len(list, 2)
	suite.Equal(newer["id"], list[0].(map[string]interface{})["id"])
	suite.Equal(older["id"], list[1].(map[string]interface{})["id"])
	suite.Equal("new", body["meta"].(map[string]interface{})["sort"])

	body = suite.requireStatus(suite.request("GET", "/api/v1/posts/"+post.ID+"/comments?sort=old", nil, nil), http.StatusOK)
	list = body["comments"].([]interface{})
	suite.Equal(older["id"], list[0].(map[string]interface{})["id"])
}

func (suite *HandlersTestSuite) TestRemovedRootWithRepliesStaysBlank() {
	post := suite.createPost(suite.alice, "Thread")
	root := suite.comment(suite.bob, post.ID, "Something rude", "")
	suite.comment(suite.alice, post.ID, "Steady on", root["id"].(string))

	suite.requireStatus(suite.request("DELETE", "/api/v1/comments/"+root["id"].(string), suite.admin, nil), http.StatusOK)

	body := suite.requireStatus(suite.request("GET", "/api/v1/posts/"+post.ID+"/comments", nil, nil), http.StatusOK)
	list := body["comments"].([]interface{})
	suite.Require().Len(list, 1)
	suite.Equal(RemovedBody, list[0].(map[string]interface{})["body"])

	var stored models.Post
	suite.Require().NoError(suite.db.First(&stored, "id = ?", post.ID).Error)
	suite.Equal(1, stored.CommentCount)
}

func (suite *HandlersTestSuite) TestListCommentsHidesBlockedAuthors() {
	post := suite.createPost(suite.alice, "Hot takes")
	suite.comment(suite.bob, post.ID, "Very hot take", "")
	suite.requireStatus(suite.request("POST", "/api/v1/users/"+suite.bob.ID+"/block", suite.alice, nil), http.StatusOK)

	body := suite.requireStatus(suite.request("GET", "/api/v1/posts/"+post.ID+"/comments", suite.alice, nil), http.StatusOK)
	suite.Empty(body["comments"])

	body = suite.requireStatus(suite.request("GET", "/api/v1/posts/"+post.ID+"/comments", nil, nil), http.StatusOK)
	suite.Len(body["comments"], 1)
}

func (suite *HandlersTestSuite) TestUpdateCommentAuthorOnly() {
	post := suite.createPost(suite.alice, "Edit test")
	c := suite.comment(suite.bob, post.ID, "Typo hree", "")
	path := "/api/v1/comments/" + c["id"].(string)

	w := suite.request("PUT", path, suite.alice, gin.H{"body": "Hijacked"})
	suite.requireError(w, http.StatusForbidden, "FORBIDDEN", "")

	// Admins may delete but not rewrite
	w = suite.request("PUT", path, suite.admin, gin.H{"body": "Hijacked"})
	suite.Equal(http.StatusForbidden, w.Code)

	body := suite.requireStatus(suite.request("PUT", path, suite.bob, gin.H{"body": "Typo here"}), http.StatusOK)
	updated := body["comment"].(map[string]interface{})
	suite.Equal("Typo here", updated["body"])
	suite.Equal(true, updated["is_edited"])
}

func (suite *HandlersTestSuite) TestDeleteCommentPermissions() {
	post := suite.createPost(suite.alice, "Delete test")
	c := suite.comment(suite.bob, post.ID, "Mine", "")
	path := "/api/v1/comments/" + c["id"].(string)

	suite.Equal(http.StatusForbidden, suite.request("DELETE", path, suite.alice, nil).Code)
	suite.requireStatus(suite.request("DELETE", path, suite.bob, nil), http.StatusOK)
	suite.Equal(http.StatusNotFound, suite.request("DELETE", path, suite.bob, nil).Code)
}
