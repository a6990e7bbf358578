package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/zfogg/paddock/internal/grids"
	"github.com/zfogg/paddock/internal/models"
	"github.com/zfogg/paddock/internal/util"
)

// CreateGrid saves a ranked grid
// POST /api/v1/grids
func (h *Handlers) CreateGrid(c *gin.Context) {
	user, ok := util.GetUserFromContext(c)
	if !ok {
		return
	}
	var req grids.Input
	if !util.BindJSON(c, &req) {
		return
	}

	grid, err := h.grids.Create(c.Request.Context(), user, req)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"grid": grid})
}

// UpdateGrid replaces a grid. Only its author may edit.
// PUT /api/v1/grids/:id
func (h *Handlers) UpdateGrid(c *gin.Context) {
	user, ok := util.GetUserFromContext(c)
	if !ok {
		return
	}
	var req grids.Input
	if !util.BindJSON(c, &req) {
		return
	}

	grid, err := h.grids.Update(c.Request.Context(), user, c.Param("id"), req)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"grid": grid})
}

// DeleteGrid removes a grid. Authors and admins may delete.
// DELETE /api/v1/grids/:id
func (h *Handlers) DeleteGrid(c *gin.Context) {
	user, ok := util.GetUserFromContext(c)
	if !ok {
		return
	}

	if err := h.grids.Delete(c.Request.Context(), user, c.Param("id")); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"deleted": true})
}

// GetGrid returns one grid with its entries in order
// GET /api/v1/grids/:id
func (h *Handlers) GetGrid(c *gin.Context) {
	grid, err := h.grids.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"grid": grid})
}

// ListGrids lists grids, newest first
// GET /api/v1/grids?kind=&season=&user_id=
func (h *Handlers) ListGrids(c *gin.Context) {
	limit, offset := util.ParsePagination(c)
	kind := models.GridKind(c.Query("kind"))
	if kind != "" && !kind.Valid() {
		respondValidation(c, "kind", "kind must be drivers or teams")
		return
	}

	list, total, err := h.grids.List(c.Request.Context(), grids.ListOptions{
		Kind:   kind,
		Season: util.ParseInt(c.Query("season"), 0),
		UserID: c.Query("user_id"),
		Limit:  limit,
		Offset: offset,
	})
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"grids": list,
		"meta": gin.H{
			"total":    total,
			"limit":    limit,
			"offset":   offset,
			"has_more": int64(offset+len(list)) < total,
		},
	})
}

// GetConsensus ranks subjects across every grid for a kind and season
// GET /api/v1/grids/consensus?kind=drivers&season=2026
func (h *Handlers) GetConsensus(c *gin.Context) {
	kind := models.GridKind(c.DefaultQuery("kind", string(models.GridDrivers)))
	if !kind.Valid() {
		respondValidation(c, "kind", "kind must be drivers or teams")
		return
	}
	season := util.ParseInt(c.Query("season"), time.Now().Year())

	result, err := h.grids.Consensus(c.Request.Context(), kind, season)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}
