package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/charlesng35/tenantcrm/internal/middleware"
	"github.com/charlesng35/tenantcrm/internal/services"
)

// requestContext safely returns the request context with a background fallback for tests.
func requestContext(c *gin.Context) context.Context {
	if c == nil {
		return context.Background()
	}
	if req := c.Request; req != nil {
		return req.Context()
	}
	return context.Background()
}

// CookieSettings controls how the workspace preference cookie is written.
type CookieSettings struct {
	Secure bool
	Domain string
}

// writePreference stores a signed workspace preference on the client.
func (s CookieSettings) writePreference(c *gin.Context, pref *services.Preference, now time.Time) {
	if pref == nil || pref.Token == "" {
		return
	}
	maxAge := int(pref.ExpiresAt.Sub(now).Seconds())
	if maxAge <= 0 {
		return
	}
	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(middleware.PreferenceCookie, pref.Token, maxAge, "/", s.Domain, s.Secure, true)
}
