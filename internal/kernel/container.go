// Package kernel holds the Paddock service graph and its lifecycle.
package kernel

import (
	"context"
	"sync"

	"github.com/zfogg/paddock/internal/alerts"
	"github.com/zfogg/paddock/internal/auth"
	"github.com/zfogg/paddock/internal/cache"
	"github.com/zfogg/paddock/internal/chat"
	"github.com/zfogg/paddock/internal/email"
	"github.com/zfogg/paddock/internal/grids"
	"github.com/zfogg/paddock/internal/jobs"
	"github.com/zfogg/paddock/internal/logger"
	"github.com/zfogg/paddock/internal/notifications"
	"github.com/zfogg/paddock/internal/polls"
	"github.com/zfogg/paddock/internal/pubsub"
	"github.com/zfogg/paddock/internal/search"
	"github.com/zfogg/paddock/internal/storage"
	"github.com/zfogg/paddock/internal/timeline"
	"github.com/zfogg/paddock/internal/websocket"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// Kernel holds every long-lived dependency. Optional backends (Redis,
// Elasticsearch, S3, SES) are nil when unconfigured and the services that
// use them degrade.
type Kernel struct {
	// Core infrastructure
	db    *gorm.DB
	cache *cache.RedisClient
	bus   pubsub.Bus

	// External clients
	es       *search.Client
	uploader storage.ImageUploader
	mailer   email.Sender

	// Domain services
	auth          *auth.Service
	notifications *notifications.Service
	search        *search.Service
	polls         *polls.Service
	grids         *grids.Service
	timeline      *timeline.Service
	chat          *chat.Service
	wsHandler     *websocket.Handler

	// Background jobs
	dashboard  *jobs.DashboardCollector
	alerts     *alerts.AlertManager
	pollCloser *jobs.PollCloser

	cleanupFuncs []func(context.Context) error
	mu           sync.RWMutex
}

// New creates an empty kernel. Register services with the Set methods.
func New() *Kernel {
	return &Kernel{
		cleanupFuncs: make([]func(context.Context) error, 0),
	}
}

// ============================================================================
// CORE INFRASTRUCTURE
// ============================================================================

func (k *Kernel) SetDB(db *gorm.DB) *Kernel {
	k.mu.Lock()
	defer k.mu.Unlock()
	k.db = db
	return k
}

func (k *Kernel) DB() *gorm.DB {
	k.mu.RLock()
	defer k.mu.RUnlock()
	return k.db
}

func (k *Kernel) SetCache(client *cache.RedisClient) *Kernel {
	k.mu.Lock()
	defer k.mu.Unlock()
	k.cache = client
	return k
}

// Cache returns the Redis client, nil when Redis is disabled
func (k *Kernel) Cache() *cache.RedisClient {
	k.mu.RLock()
	defer k.mu.RUnlock()
	return k.cache
}

func (k *Kernel) SetBus(bus pubsub.Bus) *Kernel {
	k.mu.Lock()
	defer k.mu.Unlock()
	k.bus = bus
	return k
}

func (k *Kernel) Bus() pubsub.Bus {
	k.mu.RLock()
	defer k.mu.RUnlock()
	return k.bus
}

// ============================================================================
// EXTERNAL CLIENTS
// ============================================================================

func (k *Kernel) SetSearchClient(client *search.Client) *Kernel {
	k.mu.Lock()
	defer k.mu.Unlock()
	k.es = client
	return k
}

// SearchClient returns the Elasticsearch client, nil when unconfigured
func (k *Kernel) SearchClient() *search.Client {
	k.mu.RLock()
	defer k.mu.RUnlock()
	return k.es
}

func (k *Kernel) SetUploader(u storage.ImageUploader) *Kernel {
	k.mu.Lock()
	defer k.mu.Unlock()
	k.uploader = u
	return k
}

func (k *Kernel) Uploader() storage.ImageUploader {
	k.mu.RLock()
	defer k.mu.RUnlock()
	return k.uploader
}

func (k *Kernel) SetMailer(m email.Sender) *Kernel {
	k.mu.Lock()
	defer k.mu.Unlock()
	k.mailer = m
	return k
}

func (k *Kernel) Mailer() email.Sender {
	k.mu.RLock()
	defer k.mu.RUnlock()
	return k.mailer
}

// ============================================================================
// DOMAIN SERVICES
// ============================================================================

func (k *Kernel) SetAuthService(svc *auth.Service) *Kernel {
	k.mu.Lock()
	defer k.mu.Unlock()
	k.auth = svc
	return k
}

func (k *Kernel) Auth() *auth.Service {
	k.mu.RLock()
	defer k.mu.RUnlock()
	return k.auth
}

func (k *Kernel) SetNotifications(svc *notifications.Service) *Kernel {
	k.mu.Lock()
	defer k.mu.Unlock()
	k.notifications = svc
	return k
}

func (k *Kernel) Notifications() *notifications.Service {
	k.mu.RLock()
	defer k.mu.RUnlock()
	return k.notifications
}

func (k *Kernel) SetSearch(svc *search.Service) *Kernel {
	k.mu.Lock()
	defer k.mu.Unlock()
	k.search = svc
	return k
}

func (k *Kernel) Search() *search.Service {
	k.mu.RLock()
	defer k.mu.RUnlock()
	return k.search
}

func (k *Kernel) SetPolls(svc *polls.Service) *Kernel {
	k.mu.Lock()
	defer k.mu.Unlock()
	k.polls = svc
	return k
}

func (k *Kernel) Polls() *polls.Service {
	k.mu.RLock()
	defer k.mu.RUnlock()
	return k.polls
}

func (k *Kernel) SetGrids(svc *grids.Service) *Kernel {
	k.mu.Lock()
	defer k.mu.Unlock()
	k.grids = svc
	return k
}

func (k *Kernel) Grids() *grids.Service {
	k.mu.RLock()
	defer k.mu.RUnlock()
	return k.grids
}

func (k *Kernel) SetTimeline(svc *timeline.Service) *Kernel {
	k.mu.Lock()
	defer k.mu.Unlock()
	k.timeline = svc
	return k
}

func (k *Kernel) Timeline() *timeline.Service {
	k.mu.RLock()
	defer k.mu.RUnlock()
	return k.timeline
}

func (k *Kernel) SetChat(svc *chat.Service) *Kernel {
	k.mu.Lock()
	defer k.mu.Unlock()
	k.chat = svc
	return k
}

func (k *Kernel) Chat() *chat.Service {
	k.mu.RLock()
	defer k.mu.RUnlock()
	return k.chat
}

func (k *Kernel) SetWebSocketHandler(h *websocket.Handler) *Kernel {
	k.mu.Lock()
	defer k.mu.Unlock()
	k.wsHandler = h
	return k
}

func (k *Kernel) WebSocket() *websocket.Handler {
	k.mu.RLock()
	defer k.mu.RUnlock()
	return k.wsHandler
}

// ============================================================================
// BACKGROUND JOBS
// ============================================================================

func (k *Kernel) SetDashboard(d *jobs.DashboardCollector) *Kernel {
	k.mu.Lock()
	defer k.mu.Unlock()
	k.dashboard = d
	return k
}

func (k *Kernel) Dashboard() *jobs.DashboardCollector {
	k.mu.RLock()
	defer k.mu.RUnlock()
	return k.dashboard
}

func (k *Kernel) SetAlerts(am *alerts.AlertManager) *Kernel {
	k.mu.Lock()
	defer k.mu.Unlock()
	k.alerts = am
	return k
}

func (k *Kernel) Alerts() *alerts.AlertManager {
	k.mu.RLock()
	defer k.mu.RUnlock()
	return k.alerts
}

func (k *Kernel) SetPollCloser(pc *jobs.PollCloser) *Kernel {
	k.mu.Lock()
	defer k.mu.Unlock()
	k.pollCloser = pc
	return k
}

func (k *Kernel) PollCloser() *jobs.PollCloser {
	k.mu.RLock()
	defer k.mu.RUnlock()
	return k.pollCloser
}

// ============================================================================
// LIFECYCLE
// ============================================================================

// OnCleanup registers fn to run at shutdown. Cleanups run last registered
// first, so dependents stop before what they depend on.
func (k *Kernel) OnCleanup(fn func(context.Context) error) *Kernel {
	k.mu.Lock()
	defer k.mu.Unlock()
	k.cleanupFuncs = append(k.cleanupFuncs, fn)
	return k
}

// Cleanup runs every registered cleanup and returns the first error.
// A failing cleanup does not stop the rest.
func (k *Kernel) Cleanup(ctx context.Context) error {
	k.mu.Lock()
	fns := k.cleanupFuncs
	k.cleanupFuncs = nil
	k.mu.Unlock()

	var first error
	for i := len(fns) - 1; i >= 0; i-- {
		if err := fns[i](ctx); err != nil {
			logger.Log.Error("Cleanup function failed", zap.Int("index", i), zap.Error(err))
			if first == nil {
				first = err
			}
		}
	}
	return first
}

// Validate checks the dependencies every entry point needs
func (k *Kernel) Validate() error {
	k.mu.RLock()
	defer k.mu.RUnlock()

	var missing []string
	if k.db == nil {
		missing = append(missing, "database")
	}
	if k.bus == nil {
		missing = append(missing, "event bus")
	}
	if k.auth == nil {
		missing = append(missing, "auth service")
	}
	if k.notifications == nil {
		missing = append(missing, "notifications")
	}
	if k.search == nil {
		missing = append(missing, "search")
	}
	if len(missing) > 0 {
		return NewInitializationError("missing required dependencies", missing)
	}
	return nil
}
