package kernel

import (
	"context"

	"github.com/zfogg/paddock/internal/alerts"
	"github.com/zfogg/paddock/internal/auth"
	"github.com/zfogg/paddock/internal/chat"
	"github.com/zfogg/paddock/internal/email"
	"github.com/zfogg/paddock/internal/grids"
	"github.com/zfogg/paddock/internal/jobs"
	"github.com/zfogg/paddock/internal/notifications"
	"github.com/zfogg/paddock/internal/polls"
	"github.com/zfogg/paddock/internal/pubsub"
	"github.com/zfogg/paddock/internal/search"
	"github.com/zfogg/paddock/internal/storage"
	"github.com/zfogg/paddock/internal/timeline"
	"github.com/zfogg/paddock/internal/websocket"
	"gorm.io/gorm"
)

// MockJWTSecret signs tokens minted by mock kernels
var MockJWTSecret = []byte("paddock-test-secret")

// MockKernel is a kernel for tests. Every service runs in-process against
// db with no Redis, Elasticsearch, S3 or SES.
type MockKernel struct {
	*Kernel
}

// NewMock wires the full service graph on db
func NewMock(db *gorm.DB) *MockKernel {
	k := New()
	bus := pubsub.NewWatermillBus(busBuffer)
	notifier := notifications.NewService(db, nil)
	searchSvc := search.NewService(db, nil, nil)
	pollSvc := polls.NewService(db, notifier, searchSvc)
	authSvc := auth.NewService(db, MockJWTSecret, nil, nil)
	hub := websocket.NewHub()
	dashboard := jobs.NewDashboardCollector(db, nil, hub, 0)
	alertManager := alerts.NewAlertManager(alerts.DefaultRules()...)
	dashboard.SetObserver(alertManager)

	k.SetDB(db).
		SetBus(bus).
		SetAuthService(authSvc).
		SetNotifications(notifier).
		SetSearch(searchSvc).
		SetPolls(pollSvc).
		SetGrids(grids.NewService(db, searchSvc)).
		SetTimeline(timeline.NewService(db, nil)).
		SetChat(chat.NewService(db, nil, bus, chat.DefaultConfig())).
		SetWebSocketHandler(websocket.NewHandler(hub, authSvc, nil)).
		SetDashboard(dashboard).
		SetAlerts(alertManager).
		SetPollCloser(jobs.NewPollCloser(pollSvc, 0))

	k.OnCleanup(func(context.Context) error { return bus.Close() })
	k.OnCleanup(func(context.Context) error {
		searchSvc.Close()
		return nil
	})
	return &MockKernel{Kernel: k}
}

// WithMailer swaps in a test mailer
func (m *MockKernel) WithMailer(sender email.Sender) *MockKernel {
	m.SetMailer(sender)
	return m
}

// WithUploader swaps in a test image store
func (m *MockKernel) WithUploader(u storage.ImageUploader) *MockKernel {
	m.SetUploader(u)
	return m
}

// Clean shuts the mock down after a test
func (m *MockKernel) Clean(ctx context.Context) error {
	return m.Cleanup(ctx)
}
