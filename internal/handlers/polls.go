package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/zfogg/paddock/internal/polls"
	"github.com/zfogg/paddock/internal/ranking"
	"github.com/zfogg/paddock/internal/util"
)

// CreatePoll opens a poll
// POST /api/v1/polls
func (h *Handlers) CreatePoll(c *gin.Context) {
	user, ok := util.GetUserFromContext(c)
	if !ok {
		return
	}
	var req polls.CreateInput
	if !util.BindJSON(c, &req) {
		return
	}

	view, err := h.polls.Create(c.Request.Context(), user, req)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"poll": view})
}

// PollListQuery filters the poll listing
type PollListQuery struct {
	Status string `form:"status" binding:"omitempty,oneof=open closed"`
	Sort   string `form:"sort"`
	UserID string `form:"user_id"`
}

// ListPolls lists polls
// GET /api/v1/polls?status=open|closed&sort=hot|new|top&user_id=
func (h *Handlers) ListPolls(c *gin.Context) {
	var query PollListQuery
	if !util.BindQuery(c, &query) {
		return
	}
	limit, offset := util.ParsePagination(c)

	list, total, err := h.polls.List(c.Request.Context(), util.OptionalUserID(c), polls.ListOptions{
		Status: polls.Status(query.Status),
		Sort:   ranking.ParseMode(query.Sort),
		UserID: query.UserID,
		Limit:  limit,
		Offset: offset,
	})
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"polls": list,
		"meta": gin.H{
			"total":    total,
			"limit":    limit,
			"offset":   offset,
			"has_more": int64(offset+len(list)) < total,
		},
	})
}

// GetPoll returns one poll; results are included when the viewer may see them
// GET /api/v1/polls/:id
func (h *Handlers) GetPoll(c *gin.Context) {
	view, err := h.polls.Get(c.Request.Context(), util.OptionalUserID(c), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"poll": view})
}

// VotePoll casts or replaces the caller's vote
// POST /api/v1/polls/:id/vote
func (h *Handlers) VotePoll(c *gin.Context) {
	user, ok := util.GetUserFromContext(c)
	if !ok {
		return
	}
	var req struct {
		OptionIDs []string `json:"option_ids" binding:"required,min=1"`
	}
	if !util.BindJSON(c, &req) {
		return
	}

	view, err := h.polls.Vote(c.Request.Context(), user, c.Param("id"), req.OptionIDs)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"poll": view})
}

// RetractVote removes the caller's vote from an open poll
// DELETE /api/v1/polls/:id/vote
func (h *Handlers) RetractVote(c *gin.Context) {
	userID, ok := util.GetUserIDFromContext(c)
	if !ok {
		return
	}

	view, err := h.polls.Retract(c.Request.Context(), userID, c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"poll": view})
}

// ClosePoll closes a poll early. Authors and admins may close.
// POST /api/v1/polls/:id/close
func (h *Handlers) ClosePoll(c *gin.Context) {
	user, ok := util.GetUserFromContext(c)
	if !ok {
		return
	}

	view, err := h.polls.Close(c.Request.Context(), user, c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"poll": view})
}

// DeletePoll removes a poll. Authors and admins may delete.
// DELETE /api/v1/polls/:id
func (h *Handlers) DeletePoll(c *gin.Context) {
	user, ok := util.GetUserFromContext(c)
	if !ok {
		return
	}

	if err := h.polls.Delete(c.Request.Context(), user, c.Param("id")); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"deleted": true})
}
