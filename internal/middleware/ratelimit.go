package middleware

import (
	"math"
	"strconv"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/charlesng35/tenantcrm/internal/ratelimit"
	"github.com/charlesng35/tenantcrm/pkg/errors"
	"github.com/charlesng35/tenantcrm/pkg/logger"
	"github.com/charlesng35/tenantcrm/pkg/response"
)

// RateLimit throttles requests per (client IP, route) with the supplied
// limiter. The limiter's store decides whether counters are process-local or
// shared. When the store is unreachable the request is let through and the
// failure logged; the password flows keep their own limiters regardless.
func RateLimit(limiter *ratelimit.Limiter) gin.HandlerFunc {
	policy := limiter.Policy()
	limit := strconv.Itoa(policy.Max)

	return func(c *gin.Context) {
		route := c.FullPath()
		if route == "" {
			route = c.Request.URL.Path
		}

		decision, err := limiter.Allow(c.Request.Context(), c.ClientIP()+"|"+route)
		if err != nil {
			logger.WithModule("http").Warn("rate limit store unavailable",
				zap.String("path", route),
				zap.Error(err),
			)
			c.Next()
			return
		}

		c.Header("X-RateLimit-Limit", limit)
		c.Header("X-RateLimit-Remaining", strconv.Itoa(decision.Remaining))
		if !decision.Allowed {
			seconds := strconv.Itoa(int(math.Ceil(decision.RetryAfter.Seconds())))
			c.Header("X-RateLimit-Reset", seconds)
			c.Header("Retry-After", seconds)
			response.Error(c, errors.ErrRateLimit)
			c.Abort()
			return
		}

		c.Next()
	}
}
