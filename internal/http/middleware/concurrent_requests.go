package middleware

import (
	"net/http"
	"sync/atomic"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// LimitConcurrentRequests rejects requests with 429 and Retry-After once
// limit requests are in flight. Rejected requests never queue. limit <= 0
// disables the limit.
func LimitConcurrentRequests(log *zap.Logger, limit int) gin.HandlerFunc {
	if limit <= 0 {
		return func(c *gin.Context) { c.Next() }
	}
	log = log.Named("limiter")
	tokens := make(chan struct{}, limit)
	var rejected atomic.Int64

	return func(c *gin.Context) {
		select {
		case tokens <- struct{}{}:
			defer func() { <-tokens }()
			c.Next()
		default:
			n := rejected.Add(1)
			log.Warn("request rejected: concurrency limit",
				zap.String("request_id", GetRequestID(c)),
				zap.String("path", c.FullPath()),
				zap.Int("limit", limit),
				zap.Int64("rejected_total", n))
			c.Header("Retry-After", "1")
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{
				"message": "too many concurrent requests",
			})
		}
	}
}
