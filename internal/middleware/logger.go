package middleware

import (
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/charlesng35/tenantcrm/pkg/logger"
)

// Logger writes a concise structured access log for each request. Query
// strings are left out because reset and invitation tokens travel there.
func Logger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		path := c.Request.URL.Path
		method := c.Request.Method

		c.Next()

		fields := []zap.Field{
			zap.String("method", method),
			zap.String("path", path),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("duration", time.Since(start)),
			zap.String("client_ip", c.ClientIP()),
		}
		if userID := UserID(c); userID != "" {
			fields = append(fields, zap.String("user_id", userID))
		}
		if wc := Workspace(c); wc != nil {
			fields = append(fields, zap.String("workspace_id", wc.WorkspaceID))
		}

		logger.WithModule("http").Info("request", fields...)
	}
}
