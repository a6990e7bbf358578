package middleware

import (
	"bytes"
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/zfogg/paddock/internal/cache"
	"github.com/zfogg/paddock/internal/logger"
	"go.uber.org/zap"
)

const responseCachePrefix = "paddock:response:"

// ResponseCacheMiddleware caches successful GET responses in Redis for ttl.
// It is for public, viewer-independent routes (reference data); the key is
// the path and query. X-Cache reports HIT or MISS. A nil client disables it.
func ResponseCacheMiddleware(redisClient *cache.RedisClient, ttl time.Duration) gin.HandlerFunc {
	return func(c *gin.Context) {
		if redisClient == nil || c.Request.Method != http.MethodGet {
			c.Next()
			return
		}

		cacheKey := generateCacheKey(c.Request.URL.Path, c.Request.URL.RawQuery)
		ctx := c.Request.Context()
		maxAge := fmt.Sprintf("public, max-age=%d", int(ttl.Seconds()))

		if cached, err := redisClient.Get(ctx, cacheKey); err == nil {
			RecordCacheHit("response_cache")
			c.Header("X-Cache", "HIT")
			c.Header("Cache-Control", maxAge)
			c.Data(http.StatusOK, "application/json; charset=utf-8", []byte(cached))
			c.Abort()
			return
		}
		RecordCacheMiss("response_cache")

		writer := &cachedResponseWriter{ResponseWriter: c.Writer, body: &bytes.Buffer{}}
		c.Writer = writer
		c.Header("X-Cache", "MISS")
		c.Header("Cache-Control", maxAge)

		c.Next()

		status := writer.Status()
		if status < 200 || status >= 300 || writer.body.Len() == 0 {
			return
		}
		if err := redisClient.SetEx(ctx, cacheKey, writer.body.String(), ttl); err != nil {
			logger.Log.Debug("Failed to write response to cache", zap.String("key", cacheKey), zap.Error(err))
		}
	}
}

// CacheInvalidationMiddleware drops cached responses under the given path
// prefixes after a successful mutation
func CacheInvalidationMiddleware(redisClient *cache.RedisClient, pathPrefixes ...string) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		if redisClient == nil || c.Request.Method == http.MethodGet {
			return
		}
		if c.Writer.Status() < 200 || c.Writer.Status() >= 400 {
			return
		}

		for _, prefix := range pathPrefixes {
			if err := invalidatePrefix(c.Request.Context(), redisClient, responseCachePrefix+prefix); err != nil {
				logger.Log.Warn("Failed to invalidate cache", zap.String("prefix", prefix), zap.Error(err))
			}
		}
	}
}

func invalidatePrefix(ctx context.Context, redisClient *cache.RedisClient, prefix string) error {
	iter := redisClient.Raw().Scan(ctx, 0, prefix+"*", 100).Iterator()
	var keys []string
	for iter.Next(ctx) {
		keys = append(keys, iter.Val())
	}
	if err := iter.Err(); err != nil {
		return err
	}
	if len(keys) == 0 {
		return nil
	}
	return redisClient.Del(ctx, keys...)
}

func generateCacheKey(path, query string) string {
	if query == "" {
		return responseCachePrefix + path
	}
	return responseCachePrefix + path + "?" + query
}

// cachedResponseWriter copies the body while writing it through
type cachedResponseWriter struct {
	gin.ResponseWriter
	body *bytes.Buffer
}

func (w *cachedResponseWriter) Write(data []byte) (int, error) {
	w.body.Write(data)
	return w.ResponseWriter.Write(data)
}

func (w *cachedResponseWriter) WriteString(s string) (int, error) {
	w.body.WriteString(s)
	return w.ResponseWriter.WriteString(s)
}
