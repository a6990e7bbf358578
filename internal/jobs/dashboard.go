package jobs

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/zfogg/paddock/internal/cache"
	"github.com/zfogg/paddock/internal/logger"
	"github.com/zfogg/paddock/internal/metrics"
	"github.com/zfogg/paddock/internal/models"
	"github.com/zfogg/paddock/internal/telemetry"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"gorm.io/gorm"
)

// Dashboard metric names
const (
	MetricUsers              = "users"
	MetricNewUsers24h        = "new_users_24h"
	MetricPosts              = "posts"
	MetricPolls              = "polls"
	MetricOpenPolls          = "open_polls"
	MetricGrids              = "grids"
	MetricComments           = "comments"
	MetricOpenReports        = "open_reports"
	MetricChatMessages24h    = "chat_messages_24h"
	MetricWebsocketConnected = "websocket_connections"
)

// ConnectionCounter reports live websocket connections
type ConnectionCounter interface {
	ActiveConnections() int64
}

// Snapshot is one refresh of the admin dashboard. A metric that failed is
// absent from Counts and present in Errors.
type Snapshot struct {
	Counts      map[string]int64  `json:"counts"`
	Errors      map[string]string `json:"errors,omitempty"`
	RefreshedAt time.Time         `json:"refreshed_at"`
	DurationMS  int64             `json:"duration_ms"`
}

// SnapshotObserver sees every refreshed snapshot
type SnapshotObserver interface {
	ObserveSnapshot(snap *Snapshot)
}

type countFunc func(ctx context.Context) (int64, error)

// DashboardCollector refreshes the admin counts on an interval
type DashboardCollector struct {
	db    *gorm.DB
	redis *cache.RedisClient
	conns ConnectionCounter
	now   func() time.Time
	loop  *loop

	mu       sync.RWMutex
	latest   *Snapshot
	observer SnapshotObserver
}

// NewDashboardCollector creates a collector. redis and conns may be nil.
func NewDashboardCollector(db *gorm.DB, redis *cache.RedisClient, conns ConnectionCounter, interval time.Duration) *DashboardCollector {
	if interval <= 0 {
		interval = 30 * time.Second
	}
	dc := &DashboardCollector{db: db, redis: redis, conns: conns, now: time.Now}
	dc.loop = newLoop("dashboard", interval, func(ctx context.Context) {
		if _, err := dc.Refresh(ctx); err != nil && ctx.Err() == nil {
			logger.Log.Warn("Dashboard refresh failed", zap.Error(err))
		}
	})
	return dc
}

// SetObserver registers o to run after each refresh
func (dc *DashboardCollector) SetObserver(o SnapshotObserver) {
	dc.mu.Lock()
	dc.observer = o
	dc.mu.Unlock()
}

// Start begins refreshing in the background
func (dc *DashboardCollector) Start() {
	logger.Log.Info("Starting dashboard collector", zap.Duration("interval", dc.loop.interval))
	dc.loop.start()
}

// Stop ends the loop and waits for an in-flight refresh
func (dc *DashboardCollector) Stop() {
	dc.loop.stop()
	logger.Log.Info("Dashboard collector stopped")
}

// Latest returns the newest snapshot: in memory, then Redis, then a fresh
// refresh.
func (dc *DashboardCollector) Latest(ctx context.Context) (*Snapshot, error) {
	dc.mu.RLock()
	snap := dc.latest
	dc.mu.RUnlock()
	if snap != nil {
		return snap, nil
	}

	var cached Snapshot
	if err := dc.redis.GetJSON(ctx, "dashboard", cache.KeyDashboardSnapshot, &cached); err == nil {
		return &cached, nil
	}
	return dc.Refresh(ctx)
}

// Refresh runs every count in parallel. One failing count is recorded in
// Errors and never blocks the others.
func (dc *DashboardCollector) Refresh(ctx context.Context) (*Snapshot, error) {
	ctx, span := telemetry.GetBusinessEvents().TraceDashboardRefresh(ctx)
	start := time.Now()
	now := dc.now().UTC()

	snap := &Snapshot{
		Counts: make(map[string]int64),
		Errors: make(map[string]string),
	}
	var mu sync.Mutex

	var g errgroup.Group
	g.SetLimit(4)
	for name, fn := range dc.counts(now) {
		g.Go(func() error {
			n, err := fn(ctx)
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				snap.Errors[name] = err.Error()
				metrics.Get().DashboardRefreshErrors.WithLabelValues(name).Inc()
				logger.Log.Warn("Dashboard count failed", zap.String("metric", name), zap.Error(err))
				return nil
			}
			snap.Counts[name] = n
			return nil
		})
	}
	_ = g.Wait()

	elapsed := time.Since(start)
	snap.RefreshedAt = now
	snap.DurationMS = elapsed.Milliseconds()
	if len(snap.Errors) == 0 {
		snap.Errors = nil
	}
	metrics.Get().DashboardRefreshDuration.Observe(elapsed.Seconds())
	telemetry.EndSpan(span, nil)

	dc.mu.Lock()
	dc.latest = snap
	observer := dc.observer
	dc.mu.Unlock()

	if observer != nil {
		observer.ObserveSnapshot(snap)
	}

	if err := dc.redis.SetJSON(ctx, cache.KeyDashboardSnapshot, snap, 10*time.Minute); err != nil {
		logger.Log.Warn("Failed to cache dashboard snapshot", zap.Error(err))
	}

	logger.Log.Debug("Dashboard refreshed",
		zap.Int("metrics", len(snap.Counts)),
		zap.Strings("failed", failedNames(snap.Errors)),
		logger.WithDuration(elapsed))
	return snap, nil
}

func (dc *DashboardCollector) counts(now time.Time) map[string]countFunc {
	dayAgo := now.Add(-24 * time.Hour)
	count := func(model interface{}, query string, args ...interface{}) countFunc {
		return func(ctx context.Context) (int64, error) {
			var n int64
			q := dc.db.WithContext(ctx).Model(model)
			if query != "" {
				q = q.Where(query, args...)
			}
			err := q.Count(&n).Error
			return n, err
		}
	}

	fns := map[string]countFunc{
		MetricUsers:           count(&models.User{}, ""),
		MetricNewUsers24h:     count(&models.User{}, "created_at >= ?", dayAgo),
		MetricPosts:           count(&models.Post{}, ""),
		MetricPolls:           count(&models.Poll{}, ""),
		MetricOpenPolls:       count(&models.Poll{}, "closed_at IS NULL AND (closes_at IS NULL OR closes_at > ?)", now),
		MetricGrids:           count(&models.Grid{}, ""),
		MetricComments:        count(&models.Comment{}, "is_deleted = ?", false),
		MetricOpenReports:     count(&models.Report{}, "status = ?", models.ReportOpen),
		MetricChatMessages24h: count(&models.ChatMessage{}, "created_at >= ? AND deleted_at IS NULL", dayAgo),
	}
	if dc.conns != nil {
		fns[MetricWebsocketConnected] = func(ctx context.Context) (int64, error) {
			return dc.conns.ActiveConnections(), nil
		}
	}
	return fns
}

func failedNames(errs map[string]string) []string {
	names := make([]string, 0, len(errs))
	for name := range errs {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
