package middleware

import (
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"

	"github.com/smallplates/internal/logger"
)

// RateLimiter is a fixed-window counter per client IP and route, shared by
// every instance through Redis.
type RateLimiter struct {
	client redis.Cmdable
	limit  int
	window time.Duration
	prefix string
	log    *slog.Logger
	now    func() time.Time
}

// NewRateLimiter counts limit requests per window. A non-positive window
// defaults to one minute; anything shorter than a second is raised to one
// second, the granularity of Retry-After.
func NewRateLimiter(client redis.Cmdable, limit int, window time.Duration) *RateLimiter {
	switch {
	case window <= 0:
		window = time.Minute
	case window < time.Second:
		window = time.Second
	}
	return &RateLimiter{
		client: client,
		limit:  limit,
		window: window,
		prefix: "smallplates:ratelimit",
		log:    logger.WithComponent("ratelimit"),
		now:    time.Now,
	}
}

// Limit returns the gin middleware. A nil limiter, a nil client or a
// non-positive limit disables limiting. Redis errors let the request through.
func (rl *RateLimiter) Limit() gin.HandlerFunc {
	return func(c *gin.Context) {
		if rl == nil || rl.client == nil || rl.limit <= 0 {
			c.Next()
			return
		}

		route := c.FullPath()
		if route == "" {
			route = c.Request.URL.Path
		}
		windowStart := rl.now().UnixNano() / int64(rl.window)
		key := fmt.Sprintf("%s:%s:%s:%d", rl.prefix, route, c.ClientIP(), windowStart)

		ctx := c.Request.Context()
		count, err := rl.client.Incr(ctx, key).Result()
		if err != nil {
			rl.log.Warn("rate limiter unavailable", "error", err)
			c.Next()
			return
		}
		if count == 1 {
			if err := rl.client.Expire(ctx, key, rl.window+time.Second).Err(); err != nil {
				rl.log.Warn("set rate limit ttl", "key", key, "error", err)
			}
		}

		if count > int64(rl.limit) {
			c.Header("Retry-After", strconv.Itoa(int(rl.window.Seconds())))
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{"error": "too many requests, please try again later"})
			return
		}
		c.Next()
	}
}
