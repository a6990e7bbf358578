package validation

import (
	"context"
	"fmt"
	"time"

	"github.com/zfogg/paddock/internal/cache"
	"github.com/zfogg/paddock/internal/config"
	"github.com/zfogg/paddock/internal/logger"
	"github.com/zfogg/paddock/internal/search"
	"github.com/zfogg/paddock/internal/storage"
	"github.com/zfogg/paddock/internal/telemetry"
	"go.uber.org/zap"
)

const serviceCheckTimeout = 10 * time.Second

// ServiceValidator probes the services listed in REQUIRED_SERVICES
type ServiceValidator struct {
	cfg              *config.Config
	requiredServices []string
	checks           map[string]func(ctx context.Context) error
}

// NewServiceValidator creates a validator for cfg.RequiredServices
func NewServiceValidator(cfg *config.Config) *ServiceValidator {
	sv := &ServiceValidator{cfg: cfg, requiredServices: cfg.RequiredServices}
	sv.checks = map[string]func(ctx context.Context) error{
		"elasticsearch": sv.validateElasticsearch,
		"s3":            sv.validateS3,
		"redis":         sv.validateRedis,
	}
	return sv
}

// ValidateServices checks every required service in order and stops at the
// first failure
func (sv *ServiceValidator) ValidateServices(ctx context.Context) error {
	if len(sv.requiredServices) == 0 {
		logger.Log.Info("No required services configured for validation")
		return nil
	}

	logger.Log.Info("Validating required services", zap.Strings("services", sv.requiredServices))

	for _, name := range sv.requiredServices {
		check, ok := sv.checks[name]
		if !ok {
			logger.Log.Warn("Unknown service type in validation", zap.String("service", name))
			continue
		}

		timeoutCtx, cancel := context.WithTimeout(ctx, serviceCheckTimeout)
		err := check(timeoutCtx)
		cancel()
		if err != nil {
			logger.Log.Error("Required service validation failed", zap.String("service", name), zap.Error(err))
			return fmt.Errorf("required service %q validation failed: %w", name, err)
		}

		logger.Log.Info("Service validated", zap.String("service", name))
	}
	return nil
}

func (sv *ServiceValidator) validateElasticsearch(ctx context.Context) error {
	if sv.cfg.ElasticsearchURL == "" {
		return fmt.Errorf("ELASTICSEARCH_URL is not set")
	}
	client, err := search.NewClient(sv.cfg.ElasticsearchURL, telemetry.NewInstrumentedTransport("elasticsearch"))
	if err != nil {
		return fmt.Errorf("failed to create Elasticsearch client: %w", err)
	}
	return client.Ping(ctx)
}

func (sv *ServiceValidator) validateS3(ctx context.Context) error {
	if sv.cfg.AWSRegion == "" || sv.cfg.AWSBucket == "" {
		return fmt.Errorf("AWS_REGION and AWS_BUCKET are required")
	}
	uploader, err := storage.NewS3Uploader(ctx, sv.cfg.AWSRegion, sv.cfg.AWSBucket, sv.cfg.CDNBaseURL)
	if err != nil {
		return fmt.Errorf("failed to initialize S3 client: %w", err)
	}
	return uploader.CheckBucketAccess(ctx)
}

func (sv *ServiceValidator) validateRedis(ctx context.Context) error {
	if sv.cfg.RedisHost == "" {
		return fmt.Errorf("REDIS_HOST is not set")
	}
	client, err := cache.NewRedisClient(sv.cfg.RedisHost, sv.cfg.RedisPort, sv.cfg.RedisPassword)
	if err != nil {
		return fmt.Errorf("failed to connect to Redis: %w", err)
	}
	defer client.Close()
	return client.Ping(ctx)
}
