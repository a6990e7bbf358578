package middleware

import (
	"context"
	"time"

	"github.com/zfogg/paddock/internal/cache"
)

// allowRedis is a fixed-window counter shared by every API instance. The
// first request in a window sets the key's expiry.
func (rl *RateLimiter) allowRedis(ctx context.Context, key string) (bool, int, error) {
	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()

	redisKey := cache.KeyRateLimitPrefix + rl.config.Name + ":" + key
	pipe := rl.redis.Raw().TxPipeline()
	incr := pipe.Incr(ctx, redisKey)
	pipe.ExpireNX(ctx, redisKey, rl.config.Window)
	ttl := pipe.PTTL(ctx, redisKey)
	if _, err := pipe.Exec(ctx); err != nil {
		return false, 0, err
	}

	if incr.Val() <= int64(rl.config.Limit) {
		return true, 0, nil
	}

	retryAfter := int(ttl.Val().Seconds()) + 1
	if ttl.Val() <= 0 {
		retryAfter = int(rl.config.Window.Seconds())
	}
	return false, retryAfter, nil
}
