package middleware

import (
	"github.com/gin-gonic/gin"

	iauth "github.com/charlesng35/tenantcrm/internal/auth"
	"github.com/charlesng35/tenantcrm/internal/models"
	"github.com/charlesng35/tenantcrm/internal/services"
	"github.com/charlesng35/tenantcrm/pkg/errors"
	"github.com/charlesng35/tenantcrm/pkg/response"
)

// PreferenceCookie carries the signed workspace preference.
const PreferenceCookie = iauth.PreferenceCookieName

// WorkspaceScope resolves the caller's current workspace and stores it on the
// context. Callers without any membership get ErrNoWorkspace so clients can
// send them to onboarding. Must run after Auth.
func WorkspaceScope(resolver *services.WorkspaceResolver) gin.HandlerFunc {
	return func(c *gin.Context) {
		userID := UserID(c)
		if userID == "" {
			response.Error(c, errors.ErrUnauthorized)
			c.Abort()
			return
		}

		preference, _ := c.Cookie(PreferenceCookie)
		wc, err := resolver.Resolve(c.Request.Context(), userID, preference)
		if err != nil {
			response.Error(c, errors.ErrInternalServer.WithInternal(err))
			c.Abort()
			return
		}
		if wc == nil {
			response.Error(c, errors.ErrNoWorkspace)
			c.Abort()
			return
		}

		c.Set(CtxWorkspaceKey, wc)
		c.Next()
	}
}

// RequireRole admits only callers whose resolved role equals role. Must run
// after WorkspaceScope.
func RequireRole(role models.Role) gin.HandlerFunc {
	return func(c *gin.Context) {
		if err := services.RequireRole(Workspace(c), role); err != nil {
			response.Error(c, errors.ErrForbidden)
			c.Abort()
			return
		}
		c.Next()
	}
}

// Workspace returns the workspace context resolved by WorkspaceScope.
func Workspace(c *gin.Context) *services.WorkspaceContext {
	value, ok := c.Get(CtxWorkspaceKey)
	if !ok {
		return nil
	}
	wc, _ := value.(*services.WorkspaceContext)
	return wc
}
