package ratelimit

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"memestats-backend/internal/observability"
)

// Limit configures the fixed-window limit applied per client IP.
type Limit struct {
	Requests int64
	Window   time.Duration
}

// Middleware returns a gin middleware enforcing limit via counter. A counter
// failure lets the request through; the limiter must not take the API down
// with it.
func Middleware(counter Counter, limit Limit, log logrus.FieldLogger) gin.HandlerFunc {
	return func(c *gin.Context) {
		key := "ratelimit:" + c.ClientIP()

		count, err := counter.Incr(c.Request.Context(), key, limit.Window)
		if err != nil {
			log.WithError(err).Warn("rate limit counter unavailable, allowing request")
			c.Next()
			return
		}

		if count > limit.Requests {
			observability.RecordThrottled()
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{
				"error":      "rate_limited",
				"retryAfter": int(limit.Window.Seconds()),
			})
			return
		}

		c.Next()
	}
}
