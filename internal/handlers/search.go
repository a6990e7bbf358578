package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/zfogg/paddock/internal/errors"
	"github.com/zfogg/paddock/internal/search"
	"github.com/zfogg/paddock/internal/util"
)

// Search finds users, polls or grids
// GET /api/v1/search?q=&type=users|polls|grids
func (h *Handlers) Search(c *gin.Context) {
	if h.search == nil {
		util.RespondWithAPIError(c, errors.ServiceUnavailable("search"))
		return
	}
	kind, err := search.ParseKind(c.Query("type"))
	if err != nil {
		respondError(c, err)
		return
	}
	limit, offset := util.ParsePagination(c)

	results, err := h.search.Search(c.Request.Context(), c.Query("q"), kind, limit, offset)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, results)
}
