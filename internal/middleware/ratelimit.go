package middleware

import (
	"context"
	"math"
	"strconv"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/zfogg/paddock/internal/cache"
	apierrors "github.com/zfogg/paddock/internal/errors"
	"github.com/zfogg/paddock/internal/logger"
	"github.com/zfogg/paddock/internal/util"
	"go.uber.org/zap"
)

// RateLimitConfig holds configuration for rate limiting
type RateLimitConfig struct {
	// Name namespaces the counters so routes don't share a budget
	Name string
	// Requests per window
	Limit int
	// Window duration
	Window time.Duration
	// KeyFunc picks the caller identity; client IP when nil
	KeyFunc func(c *gin.Context) string
}

func clientIPKey(c *gin.Context) string {
	return c.ClientIP()
}

// DefaultRateLimitConfig applies to the whole API
func DefaultRateLimitConfig() RateLimitConfig {
	return RateLimitConfig{Name: "api", Limit: 100, Window: time.Minute, KeyFunc: clientIPKey}
}

// AuthRateLimitConfig covers login, register, password reset and 2FA verify
func AuthRateLimitConfig() RateLimitConfig {
	return RateLimitConfig{Name: "auth", Limit: 10, Window: time.Minute, KeyFunc: clientIPKey}
}

// UploadRateLimitConfig covers avatar and post image uploads
func UploadRateLimitConfig() RateLimitConfig {
	return RateLimitConfig{Name: "upload", Limit: 20, Window: time.Minute, KeyFunc: clientIPKey}
}

// SearchRateLimitConfig covers /search
func SearchRateLimitConfig() RateLimitConfig {
	return RateLimitConfig{Name: "search", Limit: 60, Window: time.Minute, KeyFunc: clientIPKey}
}

// ContactRateLimitConfig allows five contact-form submissions an hour
func ContactRateLimitConfig() RateLimitConfig {
	return RateLimitConfig{Name: "contact", Limit: 5, Window: time.Hour, KeyFunc: clientIPKey}
}

// TokenBucket for rate limiting
type TokenBucket struct {
	tokens     float64
	maxTokens  float64
	refillRate float64 // tokens per second
	lastRefill time.Time
	mu         sync.Mutex
}

// NewTokenBucket creates a new token bucket
func NewTokenBucket(maxTokens float64, refillRate float64) *TokenBucket {
	return &TokenBucket{
		tokens:     maxTokens,
		maxTokens:  maxTokens,
		refillRate: refillRate,
		lastRefill: time.Now(),
	}
}

// Allow checks if a request is allowed based on token availability
func (tb *TokenBucket) Allow() bool {
	tb.mu.Lock()
	defer tb.mu.Unlock()

	now := time.Now()
	elapsed := now.Sub(tb.lastRefill).Seconds()
	tb.tokens = math.Min(tb.maxTokens, tb.tokens+elapsed*tb.refillRate)
	tb.lastRefill = now

	if tb.tokens >= 1 {
		tb.tokens--
		return true
	}
	return false
}

// GetRetryAfter returns seconds to wait before next request
func (tb *TokenBucket) GetRetryAfter() int {
	tb.mu.Lock()
	defer tb.mu.Unlock()

	if tb.tokens < 1 {
		timeToToken := (1 - tb.tokens) / tb.refillRate
		return int(timeToToken) + 1
	}
	return 0
}

// full reports whether the bucket has refilled completely
func (tb *TokenBucket) full(now time.Time) bool {
	tb.mu.Lock()
	defer tb.mu.Unlock()
	return tb.tokens+now.Sub(tb.lastRefill).Seconds()*tb.refillRate >= tb.maxTokens
}

// RateLimiter counts requests per key in Redis when it is available and
// in per-process token buckets otherwise
type RateLimiter struct {
	config RateLimitConfig
	redis  *cache.RedisClient

	buckets map[string]*TokenBucket
	mu      sync.Mutex

	stop     chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup
}

// NewRateLimiter creates a limiter. redis may be nil.
func NewRateLimiter(config RateLimitConfig, redis *cache.RedisClient) *RateLimiter {
	if config.KeyFunc == nil {
		config.KeyFunc = clientIPKey
	}
	if config.Name == "" {
		config.Name = "api"
	}
	rl := &RateLimiter{
		config:  config,
		redis:   redis,
		buckets: make(map[string]*TokenBucket),
		stop:    make(chan struct{}),
	}
	rl.wg.Add(1)
	go rl.cleanupRoutine()
	return rl
}

// Middleware rejects callers over budget with 429 RATE_LIMITED
func (rl *RateLimiter) Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		key := rl.config.KeyFunc(c)
		allowed, retryAfter := rl.Allow(c.Request.Context(), key)
		if !allowed {
			RecordRateLimitExceeded(rl.config.Name, c.Request.Method)
			logger.Log.Warn("Rate limit exceeded",
				zap.String("limiter", rl.config.Name),
				logger.WithIP(c.ClientIP()),
				zap.Int("limit", rl.config.Limit))
			c.Header("Retry-After", strconv.Itoa(retryAfter))
			c.Header("X-RateLimit-Limit", strconv.Itoa(rl.config.Limit))
			c.Header("X-RateLimit-Remaining", "0")
			util.RespondWithAPIError(c, apierrors.RateLimited("rate limit exceeded"))
			c.Abort()
			return
		}
		c.Next()
	}
}

// Allow reports whether key may make another request and, when it may
// not, how many seconds to wait
func (rl *RateLimiter) Allow(ctx context.Context, key string) (bool, int) {
	if rl.redis != nil {
		allowed, retryAfter, err := rl.allowRedis(ctx, key)
		if err == nil {
			return allowed, retryAfter
		}
		logger.Log.Warn("Redis rate limiter unavailable, using in-memory buckets",
			zap.String("limiter", rl.config.Name),
			zap.Error(err))
	}
	return rl.allowLocal(key)
}

func (rl *RateLimiter) allowLocal(key string) (bool, int) {
	rl.mu.Lock()
	bucket, exists := rl.buckets[key]
	if !exists {
		refillRate := float64(rl.config.Limit) / rl.config.Window.Seconds()
		bucket = NewTokenBucket(float64(rl.config.Limit), refillRate)
		rl.buckets[key] = bucket
	}
	rl.mu.Unlock()

	if bucket.Allow() {
		return true, 0
	}
	return false, bucket.GetRetryAfter()
}

// Stop ends the idle-bucket cleanup goroutine
func (rl *RateLimiter) Stop() {
	rl.stopOnce.Do(func() { close(rl.stop) })
	rl.wg.Wait()
}

// cleanupRoutine drops buckets that have refilled, since a fresh bucket
// behaves the same
func (rl *RateLimiter) cleanupRoutine() {
	defer rl.wg.Done()
	ticker := time.NewTicker(time.Minute)
	defer ticker.Stop()

	for {
		select {
		case <-rl.stop:
			return
		case now := <-ticker.C:
			rl.sweep(now)
		}
	}
}

func (rl *RateLimiter) sweep(now time.Time) {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	for key, bucket := range rl.buckets {
		if bucket.full(now) {
			delete(rl.buckets, key)
		}
	}
}
