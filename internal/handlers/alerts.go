package handlers

import (
	stderrors "errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/zfogg/paddock/internal/alerts"
	"github.com/zfogg/paddock/internal/errors"
	"github.com/zfogg/paddock/internal/util"
)

// ListAlerts returns open alerts and the rules behind them
// GET /api/v1/admin/alerts?all=true
func (h *Handlers) ListAlerts(c *gin.Context) {
	if h.alerts == nil {
		util.RespondWithAPIError(c, errors.ServiceUnavailable("alerts"))
		return
	}

	list := h.alerts.GetActiveAlerts()
	if util.ParseBool(c.Query("all"), false) {
		list = h.alerts.GetAllAlerts()
	}
	c.JSON(http.StatusOK, gin.H{
		"alerts": list,
		"rules":  h.alerts.GetAllRules(),
	})
}

// ResolveAlert closes an alert by hand
// POST /api/v1/admin/alerts/:id/resolve
func (h *Handlers) ResolveAlert(c *gin.Context) {
	if h.alerts == nil {
		util.RespondWithAPIError(c, errors.ServiceUnavailable("alerts"))
		return
	}
	admin, ok := util.GetUserFromContext(c)
	if !ok {
		return
	}

	alert, err := h.alerts.ResolveAlert(c.Param("id"), admin.ID)
	if stderrors.Is(err, alerts.ErrAlertNotFound) {
		util.RespondNotFound(c, "alert")
		return
	}
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"alert": alert})
}

// UpdateAlertRule enables, disables or retunes a rule
// PUT /api/v1/admin/alerts/rules/:id
func (h *Handlers) UpdateAlertRule(c *gin.Context) {
	if h.alerts == nil {
		util.RespondWithAPIError(c, errors.ServiceUnavailable("alerts"))
		return
	}
	admin, ok := util.GetUserFromContext(c)
	if !ok {
		return
	}
	var req alerts.RuleUpdate
	if !util.BindJSON(c, &req) {
		return
	}

	rule, err := h.alerts.UpdateRule(c.Param("id"), req, admin.ID)
	if stderrors.Is(err, alerts.ErrRuleNotFound) {
		util.RespondNotFound(c, "alert rule")
		return
	}
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"rule": rule})
}
