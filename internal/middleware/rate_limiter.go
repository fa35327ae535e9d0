package middleware

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/JackBerck/guyub-rukun-sub001/pkg/logger"
	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// RateLimiterConfig defines rate limiting rules
type RateLimiterConfig struct {
	Scope       string        // Key namespace, one per limited route group
	MaxRequests int           // Maximum requests allowed in the window
	Window      time.Duration // Time window (e.g., 1 minute)
	BlockTime   time.Duration // How long to block after exceeding limit
}

// RateLimiter is a fixed window counter in Redis. Authenticated requests
// are limited per user, anonymous ones per client IP.
type RateLimiter struct {
	redis  *redis.Client
	config RateLimiterConfig
}

func NewRateLimiter(redisClient *redis.Client, config RateLimiterConfig) *RateLimiter {
	if config.Scope == "" {
		config.Scope = "default"
	}
	return &RateLimiter{
		redis:  redisClient,
		config: config,
	}
}

func (rl *RateLimiter) Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		subject := "ip:" + c.ClientIP()
		if userID, ok := UserIDFrom(c); ok {
			subject = "user:" + userID.String()
		}

		allowed, retryAfter, err := rl.CheckLimit(c.Request.Context(), subject)
		if err != nil {
			// Fail open: Redis trouble must not take the API down
			logger.Log.Warn("Rate limit check failed",
				zap.String("scope", rl.config.Scope),
				zap.String("subject", subject),
				zap.Error(err),
			)
			c.Next()
			return
		}

		if !allowed {
			seconds := int(retryAfter.Round(time.Second).Seconds())
			logger.Log.Warn("Rate limit exceeded",
				zap.String("scope", rl.config.Scope),
				zap.String("subject", subject),
				zap.Int("retry_after", seconds),
			)
			c.Header("Retry-After", fmt.Sprintf("%d", seconds))
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{
				"error":       "Too many requests. Please try again later.",
				"retry_after": seconds,
			})
			return
		}

		c.Next()
	}
}

func (rl *RateLimiter) counterKey(subject string) string {
	return fmt.Sprintf("ratelimit:%s:%s", rl.config.Scope, subject)
}

func (rl *RateLimiter) blockKey(subject string) string {
	return fmt.Sprintf("ratelimit:%s:block:%s", rl.config.Scope, subject)
}

// CheckLimit counts one request for subject.
// Returns: (allowed bool, retryAfter duration, error)
func (rl *RateLimiter) CheckLimit(ctx context.Context, subject string) (bool, time.Duration, error) {
	blockTTL, err := rl.redis.TTL(ctx, rl.blockKey(subject)).Result()
	if err != nil {
		return false, 0, err
	}
	if blockTTL > 0 {
		return false, blockTTL, nil
	}

	key := rl.counterKey(subject)
	count, err := rl.redis.Incr(ctx, key).Result()
	if err != nil {
		return false, 0, err
	}
	if count == 1 {
		if err := rl.redis.Expire(ctx, key, rl.config.Window).Err(); err != nil {
			return false, 0, err
		}
	}

	if count <= int64(rl.config.MaxRequests) {
		return true, 0, nil
	}

	if rl.config.BlockTime > 0 {
		if err := rl.redis.Set(ctx, rl.blockKey(subject), 1, rl.config.BlockTime).Err(); err != nil {
			return false, 0, err
		}
		return false, rl.config.BlockTime, nil
	}

	ttl, err := rl.redis.TTL(ctx, key).Result()
	if err != nil || ttl <= 0 {
		ttl = rl.config.Window
	}
	return false, ttl, nil
}
