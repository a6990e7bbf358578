package kernel

import (
	"context"
	"fmt"
	"slices"
	"time"

	"github.com/zfogg/paddock/internal/alerts"
	"github.com/zfogg/paddock/internal/auth"
	"github.com/zfogg/paddock/internal/cache"
	"github.com/zfogg/paddock/internal/chat"
	"github.com/zfogg/paddock/internal/config"
	"github.com/zfogg/paddock/internal/database"
	"github.com/zfogg/paddock/internal/email"
	"github.com/zfogg/paddock/internal/grids"
	"github.com/zfogg/paddock/internal/jobs"
	"github.com/zfogg/paddock/internal/logger"
	"github.com/zfogg/paddock/internal/notifications"
	"github.com/zfogg/paddock/internal/polls"
	"github.com/zfogg/paddock/internal/pubsub"
	"github.com/zfogg/paddock/internal/search"
	"github.com/zfogg/paddock/internal/storage"
	"github.com/zfogg/paddock/internal/telemetry"
	"github.com/zfogg/paddock/internal/timeline"
	"github.com/zfogg/paddock/internal/websocket"
	"go.uber.org/zap"
)

// busBuffer is the per-subscriber buffer of the in-process event bus
const busBuffer = 256

// probeTimeout bounds each startup connectivity check
const probeTimeout = 5 * time.Second

// Boot connects every configured backend and wires the domain services.
// Nothing is started: the server calls Start, one-shot commands do not.
// An optional backend that fails its probe is logged and left out unless
// REQUIRED_SERVICES names it.
func Boot(ctx context.Context, cfg *config.Config) (*Kernel, error) {
	k := New()
	required := func(name string) bool { return slices.Contains(cfg.RequiredServices, name) }

	if err := database.Initialize(database.Options{
		Driver:  cfg.DatabaseDriver,
		URL:     cfg.DatabaseURL,
		Tracing: cfg.OTLPEndpoint != "",
	}); err != nil {
		return nil, fmt.Errorf("database: %w", err)
	}
	k.SetDB(database.DB)
	k.OnCleanup(func(context.Context) error { return database.Close() })

	if cfg.RedisHost != "" {
		redis, err := cache.NewRedisClient(cfg.RedisHost, cfg.RedisPort, cfg.RedisPassword)
		switch {
		case err == nil:
			k.SetCache(redis)
			k.OnCleanup(func(context.Context) error { return redis.Close() })
		case required("redis"):
			_ = k.Cleanup(ctx)
			return nil, fmt.Errorf("redis: %w", err)
		default:
			logger.Log.Warn("Redis unavailable, caching and shared rate limits disabled", zap.Error(err))
		}
	}

	if cfg.ElasticsearchURL != "" {
		es, err := connectElasticsearch(ctx, cfg.ElasticsearchURL)
		switch {
		case err == nil:
			k.SetSearchClient(es)
		case required("elasticsearch"):
			_ = k.Cleanup(ctx)
			return nil, fmt.Errorf("elasticsearch: %w", err)
		default:
			logger.Log.Warn("Elasticsearch unavailable, search falls back to the database", zap.Error(err))
		}
	}

	if cfg.AWSBucket != "" {
		uploader, err := connectS3(ctx, cfg)
		switch {
		case err == nil:
			k.SetUploader(uploader)
		case required("s3"):
			_ = k.Cleanup(ctx)
			return nil, fmt.Errorf("s3: %w", err)
		default:
			logger.Log.Warn("S3 unavailable, image uploads disabled", zap.Error(err))
		}
	}

	// mailer stays a nil interface when SES is off
	var mailer email.Sender
	if cfg.SESFromEmail != "" {
		ses, err := email.NewEmailService(cfg.AWSRegion, cfg.SESFromEmail, cfg.SESFromName, cfg.WebBaseURL, cfg.SupportInbox)
		switch {
		case err == nil:
			mailer = ses
			k.SetMailer(ses)
		case required("ses"):
			_ = k.Cleanup(ctx)
			return nil, fmt.Errorf("ses: %w", err)
		default:
			logger.Log.Warn("SES unavailable, email disabled", zap.Error(err))
		}
	}

	bus := pubsub.NewWatermillBus(busBuffer)
	k.SetBus(bus)
	k.OnCleanup(func(context.Context) error { return bus.Close() })

	db, redis := k.DB(), k.Cache()
	notifier := notifications.NewService(db, nil)
	searchSvc := search.NewService(db, k.SearchClient(), redis)
	k.OnCleanup(func(context.Context) error {
		searchSvc.Close()
		return nil
	})
	pollSvc := polls.NewService(db, notifier, searchSvc)

	chatCfg := chat.DefaultConfig()
	chatCfg.HistorySize = cfg.ChatHistorySize
	chatCfg.Batcher.FlushInterval = cfg.ChatFlushInterval
	chatCfg.Batcher.MaxBatchSize = cfg.ChatMaxBatch

	authSvc := auth.NewService(db, cfg.JWTSecret, cfg.GoogleOAuth(), mailer)
	hub := websocket.NewHub()
	hub.SetRateLimitConfig(websocket.RateLimitConfig{
		MaxMessagesPerSecond: cfg.WSMessagesPerSecond,
		BurstSize:            cfg.WSBurst,
	})
	dashboard := jobs.NewDashboardCollector(db, redis, hub, cfg.DashboardRefresh)
	alertManager := alerts.NewAlertManager(alerts.DefaultRules()...)
	dashboard.SetObserver(alertManager)

	k.SetAuthService(authSvc).
		SetNotifications(notifier).
		SetSearch(searchSvc).
		SetPolls(pollSvc).
		SetGrids(grids.NewService(db, searchSvc)).
		SetTimeline(timeline.NewService(db, redis)).
		SetChat(chat.NewService(db, redis, bus, chatCfg)).
		SetWebSocketHandler(websocket.NewHandler(hub, authSvc, cfg.CORSOrigins)).
		SetDashboard(dashboard).
		SetAlerts(alertManager).
		SetPollCloser(jobs.NewPollCloser(pollSvc, cfg.PollCloseInterval))

	if err := k.Validate(); err != nil {
		_ = k.Cleanup(ctx)
		return nil, err
	}
	return k, nil
}

// Start runs the realtime hub, live chat and the periodic jobs. Their
// shutdown is registered with Cleanup.
func (k *Kernel) Start(ctx context.Context) error {
	ws := k.WebSocket()
	hub := ws.GetHub()
	ws.RegisterDefaultHandlers()
	go hub.Run()
	k.OnCleanup(ws.Shutdown)

	k.Notifications().SetPusher(ws)

	chatSvc := k.Chat()
	chatSvc.SetBroadcaster(hub)
	if err := chatSvc.Start(ctx); err != nil {
		return fmt.Errorf("chat: %w", err)
	}
	k.OnCleanup(func(context.Context) error {
		chatSvc.Stop()
		return nil
	})

	dashboard, closer := k.Dashboard(), k.PollCloser()
	dashboard.Start()
	closer.Start()
	k.OnCleanup(func(context.Context) error {
		closer.Stop()
		dashboard.Stop()
		return nil
	})

	logger.Log.Info("Background services started")
	return nil
}

func connectElasticsearch(ctx context.Context, url string) (*search.Client, error) {
	es, err := search.NewClient(url, telemetry.NewInstrumentedTransport("elasticsearch"))
	if err != nil {
		return nil, err
	}
	pingCtx, cancel := context.WithTimeout(ctx, probeTimeout)
	defer cancel()
	if err := es.Ping(pingCtx); err != nil {
		return nil, err
	}
	if err := es.InitializeIndices(ctx); err != nil {
		return nil, err
	}
	return es, nil
}

func connectS3(ctx context.Context, cfg *config.Config) (*storage.S3Uploader, error) {
	uploader, err := storage.NewS3Uploader(ctx, cfg.AWSRegion, cfg.AWSBucket, cfg.CDNBaseURL)
	if err != nil {
		return nil, err
	}
	probeCtx, cancel := context.WithTimeout(ctx, probeTimeout)
	defer cancel()
	if err := uploader.CheckBucketAccess(probeCtx); err != nil {
		return nil, err
	}
	return uploader, nil
}
