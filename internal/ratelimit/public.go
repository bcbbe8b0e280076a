package ratelimit

import (
	"fmt"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/pagescope/pagescope/internal/config"
	"go.uber.org/zap"
)

// PublicLimiter throttles the unauthenticated endpoints (waitlist, survey,
// consent) by client IP.
type PublicLimiter struct {
	bucket *TokenBucket
	log    *zap.Logger
	rate   float64
	burst  int
}

func NewPublicLimiter(bucket *TokenBucket, log *zap.Logger, cfg config.Config) *PublicLimiter {
	return &PublicLimiter{
		bucket: bucket,
		log:    log.Named("ratelimit.public"),
		rate:   cfg.RateLimit.PublicRate,
		burst:  cfg.RateLimit.PublicBurst,
	}
}

// Middleware degrades open: a redis failure logs and lets the request
// through rather than taking the public endpoints down with it.
func (p *PublicLimiter) Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		if p == nil || p.bucket == nil {
			c.Next()
			return
		}

		key := fmt.Sprintf("ratelimit:public:%s:%s", c.FullPath(), c.ClientIP())
		result, err := p.bucket.Allow(c.Request.Context(), key, p.rate, p.burst)
		if err != nil {
			p.log.Warn("rate limit check failed", zap.Error(err))
			c.Next()
			return
		}
		if !result.Allowed {
			if result.RetryAfter > 0 {
				c.Header("Retry-After", strconv.Itoa(int(result.RetryAfter.Seconds())+1))
			}
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{
				"error": gin.H{"type": "rate_limited", "message": "too many requests"},
			})
			return
		}
		c.Next()
	}
}
