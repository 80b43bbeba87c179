package middleware

import (
	"context"
	"net/http"
	"sync"
	"time"

	"facility-uptime-monitor/internal/logger"
	"facility-uptime-monitor/pkg/utils"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

const limiterCleanupInterval = 10 * time.Minute

// RateLimiter keeps one token bucket per client. Devices behind the same NAT
// share an IP, so a request carrying an API key is limited per key instead.
type RateLimiter struct {
	limiters map[string]*rate.Limiter
	mu       sync.RWMutex
	rate     rate.Limit
	burst    int
}

func NewRateLimiter(rps float64, burst int) *RateLimiter {
	return &RateLimiter{
		limiters: make(map[string]*rate.Limiter),
		rate:     rate.Limit(rps),
		burst:    burst,
	}
}

func (rl *RateLimiter) getLimiter(client string) *rate.Limiter {
	rl.mu.RLock()
	limiter, exists := rl.limiters[client]
	rl.mu.RUnlock()

	if exists {
		return limiter
	}

	rl.mu.Lock()
	defer rl.mu.Unlock()

	limiter, exists = rl.limiters[client]
	if exists {
		return limiter
	}

	limiter = rate.NewLimiter(rl.rate, rl.burst)
	rl.limiters[client] = limiter
	return limiter
}

// Run evicts idle limiters until ctx is done.
func (rl *RateLimiter) Run(ctx context.Context) {
	ticker := time.NewTicker(limiterCleanupInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			rl.evictIdle(time.Now())
		case <-ctx.Done():
			return
		}
	}
}

// A limiter whose bucket has refilled has been idle long enough to forget.
func (rl *RateLimiter) evictIdle(now time.Time) {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	evicted := 0
	for client, limiter := range rl.limiters {
		if limiter.TokensAt(now) >= float64(rl.burst) {
			delete(rl.limiters, client)
			evicted++
		}
	}
	if evicted > 0 {
		logger.Debug("Evicted idle rate limiters", zap.Int("evicted", evicted), zap.Int("remaining", len(rl.limiters)))
	}
}

func (rl *RateLimiter) Len() int {
	rl.mu.RLock()
	defer rl.mu.RUnlock()
	return len(rl.limiters)
}

func clientKey(c *gin.Context) string {
	if key := c.GetHeader(APIKeyHeader); key != "" {
		return "key:" + key
	}
	return "ip:" + c.ClientIP()
}

// RateLimitMiddleware rejects clients that exceed the limiter's rate with 429.
func RateLimitMiddleware(limiter *RateLimiter) gin.HandlerFunc {
	return func(c *gin.Context) {
		if !limiter.getLimiter(clientKey(c)).Allow() {
			logger.WithRequestID(GetRequestID(c)).Warn("Rate limit exceeded",
				zap.String("ip", c.ClientIP()),
				zap.String("path", c.Request.URL.Path),
				zap.String("method", c.Request.Method),
			)

			utils.AbortWithError(c, http.StatusTooManyRequests, "rate limit exceeded, please try again later")
			return
		}

		c.Next()
	}
}
