// Package cache wraps the Redis client used for rate limiting, the
// trending cache, the admin dashboard snapshot and the chat toggle.
// A nil *RedisClient is valid and behaves as an always-missing cache.
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/zfogg/paddock/internal/logger"
	"github.com/zfogg/paddock/internal/metrics"
	"go.uber.org/zap"
)

// ErrMiss is returned for absent keys and by a nil client
var ErrMiss = redis.Nil

// Key prefixes
const (
	KeyChatEnabled       = "paddock:chat:enabled"
	KeyDashboardSnapshot = "paddock:admin:dashboard"
	KeyTrendingPrefix    = "paddock:trending:"
	KeyRateLimitPrefix   = "paddock:ratelimit:"
)

// RedisClient wraps the redis.Client with centralized connection pooling
type RedisClient struct {
	client *redis.Client
}

// NewRedisClient connects and pings. An empty host is an error; callers
// treat that as "Redis disabled".
func NewRedisClient(host string, port string, password string) (*RedisClient, error) {
	if host == "" {
		return nil, fmt.Errorf("REDIS_HOST not set")
	}
	if port == "" {
		port = "6379"
	}

	addr := fmt.Sprintf("%s:%s", host, port)

	client := redis.NewClient(&redis.Options{
		Addr:         addr,
		Password:     password,
		DB:           0,
		MaxRetries:   3,
		PoolSize:     10,
		MinIdleConns: 5,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
		DialTimeout:  5 * time.Second,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		logger.ErrorWithFields("Failed to connect to Redis", err)
		_ = client.Close()
		return nil, err
	}

	rc := &RedisClient{client: client}

	logger.Log.Info("Redis client connected", zap.String("address", addr))
	return rc, nil
}

// NewFromClient wraps an existing client
func NewFromClient(client *redis.Client) *RedisClient {
	return &RedisClient{client: client}
}

// Raw exposes the underlying client for pipelines and scripts
func (rc *RedisClient) Raw() *redis.Client {
	if rc == nil {
		return nil
	}
	return rc.client
}

// Close closes the Redis connection gracefully
func (rc *RedisClient) Close() error {
	if rc == nil || rc.client == nil {
		return nil
	}
	return rc.client.Close()
}

func (rc *RedisClient) Get(ctx context.Context, key string) (string, error) {
	if rc == nil {
		return "", ErrMiss
	}
	return rc.client.Get(ctx, key).Result()
}

// SetEx stores a value with expiration; zero ttl keeps it forever
func (rc *RedisClient) SetEx(ctx context.Context, key string, value interface{}, ttl time.Duration) error {
	if rc == nil {
		return nil
	}
	return rc.client.Set(ctx, key, value, ttl).Err()
}

func (rc *RedisClient) Del(ctx context.Context, keys ...string) error {
	if rc == nil {
		return nil
	}
	return rc.client.Del(ctx, keys...).Err()
}

func (rc *RedisClient) Ping(ctx context.Context) error {
	if rc == nil {
		return fmt.Errorf("redis not configured")
	}
	return rc.client.Ping(ctx).Err()
}

// GetJSON decodes a cached JSON value into dst, recording hit/miss under
// cacheName
func (rc *RedisClient) GetJSON(ctx context.Context, cacheName, key string, dst interface{}) error {
	raw, err := rc.Get(ctx, key)
	if err != nil {
		metrics.Get().CacheMissesTotal.WithLabelValues(cacheName).Inc()
		if !errors.Is(err, ErrMiss) {
			logger.Log.Warn("Cache read failed", zap.String("key", key), zap.Error(err))
		}
		return ErrMiss
	}
	if err := json.Unmarshal([]byte(raw), dst); err != nil {
		metrics.Get().CacheMissesTotal.WithLabelValues(cacheName).Inc()
		return ErrMiss
	}
	metrics.Get().CacheHitsTotal.WithLabelValues(cacheName).Inc()
	return nil
}

// SetJSON caches value as JSON for ttl
func (rc *RedisClient) SetJSON(ctx context.Context, key string, value interface{}, ttl time.Duration) error {
	if rc == nil {
		return nil
	}
	data, err := json.Marshal(value)
	if err != nil {
		return err
	}
	return rc.SetEx(ctx, key, data, ttl)
}
