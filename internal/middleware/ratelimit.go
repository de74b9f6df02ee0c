package middleware

import (
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
)

// RateLimitMiddleware is a fixed-window limiter backed by Redis, keyed by
// client IP and path. With a nil Redis client it is a no-op, and Redis errors
// fail open so an outage never blocks emergency traffic.
type RateLimitMiddleware struct {
	redis  *redis.Client
	limit  int
	window time.Duration
}

// NewRateLimitMiddleware creates a limiter allowing limit requests per window.
func NewRateLimitMiddleware(redisClient *redis.Client, limit int, window time.Duration) *RateLimitMiddleware {
	return &RateLimitMiddleware{redis: redisClient, limit: limit, window: window}
}

// Lua keeps INCR+EXPIRE atomic so a crashed request can't leave a counter
// without a TTL.
var fixedWindowScript = redis.NewScript(`
	local current = redis.call('INCR', KEYS[1])
	if current == 1 then
		redis.call('EXPIRE', KEYS[1], ARGV[1])
	end
	return current
`)

// Handler returns the Gin middleware function.
func (m *RateLimitMiddleware) Handler() gin.HandlerFunc {
	return func(c *gin.Context) {
		if m.redis == nil || m.limit <= 0 {
			c.Next()
			return
		}

		now := time.Now().Unix()
		windowSecs := int64(m.window.Seconds())
		if windowSecs < 1 {
			// Sub-second windows round to a one-second bucket.
			windowSecs = 1
		}
		bucket := now / windowSecs
		key := fmt.Sprintf("pravha:ratelimit:%s:%s:%d", c.ClientIP(), c.Request.URL.Path, bucket)

		current, err := fixedWindowScript.Run(c.Request.Context(), m.redis, []string{key}, windowSecs).Int()
		if err != nil {
			c.Next()
			return
		}

		remaining := m.limit - current
		if remaining < 0 {
			remaining = 0
		}
		resetAt := (bucket + 1) * windowSecs
		c.Header("X-RateLimit-Limit", strconv.Itoa(m.limit))
		c.Header("X-RateLimit-Remaining", strconv.Itoa(remaining))
		c.Header("X-RateLimit-Reset", strconv.FormatInt(resetAt, 10))

		if current > m.limit {
			c.JSON(http.StatusTooManyRequests, gin.H{
				"error":       "rate limit exceeded",
				"retry_after": resetAt - now,
			})
			c.Abort()
			return
		}

		c.Next()
	}
}
