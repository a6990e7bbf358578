// Package handlers contains the gin handlers behind every /api/v1 route.
// Handlers do request parsing and response shaping; domain rules live in
// the service packages they call.
package handlers

import (
	"github.com/zfogg/paddock/internal/alerts"
	"github.com/zfogg/paddock/internal/chat"
	"github.com/zfogg/paddock/internal/email"
	"github.com/zfogg/paddock/internal/grids"
	"github.com/zfogg/paddock/internal/jobs"
	"github.com/zfogg/paddock/internal/notifications"
	"github.com/zfogg/paddock/internal/polls"
	"github.com/zfogg/paddock/internal/ranking"
	"github.com/zfogg/paddock/internal/search"
	"github.com/zfogg/paddock/internal/storage"
	"github.com/zfogg/paddock/internal/timeline"
	"github.com/zfogg/paddock/internal/websocket"
	"gorm.io/gorm"
)

// Handlers contains all HTTP handlers for the API
type Handlers struct {
	db            *gorm.DB
	chat          *chat.Service
	polls         *polls.Service
	grids         *grids.Service
	notifications *notifications.Service
	search        *search.Service
	timeline      *timeline.Service
	uploader      storage.ImageUploader
	mailer        email.Sender
	dashboard     *jobs.DashboardCollector
	alerts        *alerts.AlertManager
	wsHandler     *websocket.Handler
	weights       ranking.Weights
}

// NewHandlers creates a handlers instance over db. Optional collaborators
// are attached with the setters; a nil one disables the routes that need it.
func NewHandlers(db *gorm.DB) *Handlers {
	return &Handlers{
		db:      db,
		weights: ranking.DefaultWeights(),
	}
}

// SetChat sets the live chat service
func (h *Handlers) SetChat(svc *chat.Service) {
	h.chat = svc
}

// SetPolls sets the poll service
func (h *Handlers) SetPolls(svc *polls.Service) {
	h.polls = svc
}

// SetGrids sets the grid service
func (h *Handlers) SetGrids(svc *grids.Service) {
	h.grids = svc
}

// SetNotifications sets the notifier used by follows, likes and comments
func (h *Handlers) SetNotifications(svc *notifications.Service) {
	h.notifications = svc
}

// SetSearch sets the search service
func (h *Handlers) SetSearch(svc *search.Service) {
	h.search = svc
}

// SetTimeline sets the feed and trending service
func (h *Handlers) SetTimeline(svc *timeline.Service) {
	h.timeline = svc
}

// SetUploader sets where avatars and post images go
func (h *Handlers) SetUploader(u storage.ImageUploader) {
	h.uploader = u
}

// SetMailer sets the SES sender used for contact forwarding
func (h *Handlers) SetMailer(m email.Sender) {
	h.mailer = m
}

// SetDashboard sets the admin metrics collector
func (h *Handlers) SetDashboard(d *jobs.DashboardCollector) {
	h.dashboard = d
}

// SetAlerts sets the dashboard alert manager
func (h *Handlers) SetAlerts(am *alerts.AlertManager) {
	h.alerts = am
}

// SetWebSocketHandler sets the WebSocket handler for presence lookups
func (h *Handlers) SetWebSocketHandler(ws *websocket.Handler) {
	h.wsHandler = ws
}
