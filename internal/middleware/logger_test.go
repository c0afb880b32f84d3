package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"github.com/charlesng35/tenantcrm/internal/models"
	"github.com/charlesng35/tenantcrm/internal/services"
	"github.com/charlesng35/tenantcrm/pkg/logger"
)

func TestLoggerOmitsQueryAndTagsTenant(t *testing.T) {
	gin.SetMode(gin.TestMode)
	core, recorded := observer.New(zap.InfoLevel)
	t.Cleanup(logger.Replace(zap.New(core)))

	r := gin.New()
	r.Use(Logger())
	r.GET("/reset-password", func(c *gin.Context) {
		c.Set(CtxUserIDKey, "user-1")
		c.Set(CtxWorkspaceKey, &services.WorkspaceContext{UserID: "user-1", WorkspaceID: "ws-1", Role: models.RoleMember})
		c.Status(http.StatusNoContent)
	})

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/reset-password?token=secret-token", nil))
	require.Equal(t, http.StatusNoContent, w.Code)

	entries := recorded.FilterMessage("request").All()
	require.Len(t, entries, 1)
	fields := entries[0].ContextMap()
	require.Equal(t, "/reset-password", fields["path"])
	require.Equal(t, "user-1", fields["user_id"])
	require.Equal(t, "ws-1", fields["workspace_id"])
	require.EqualValues(t, http.StatusNoContent, fields["status"])
	for _, value := range fields {
		if s, ok := value.(string); ok {
			require.NotContains(t, s, "secret-token")
		}
	}
}

func TestLoggerAnonymousRequest(t *testing.T) {
	gin.SetMode(gin.TestMode)
	core, recorded := observer.New(zap.InfoLevel)
	t.Cleanup(logger.Replace(zap.New(core)))

	r := gin.New()
	r.Use(Logger())
	r.GET("/health", func(c *gin.Context) { c.Status(http.StatusOK) })

	r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/health", nil))

	entries := recorded.All()
	require.Len(t, entries, 1)
	require.NotContains(t, entries[0].ContextMap(), "user_id")
	require.NotContains(t, entries[0].ContextMap(), "workspace_id")
}
