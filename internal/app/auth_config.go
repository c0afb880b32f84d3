package app

import (
	"time"

	"github.com/charlesng35/tenantcrm/internal/auth"
	"github.com/charlesng35/tenantcrm/internal/ratelimit"
)

const day = 24 * time.Hour

// JWTServiceConfig converts AuthConfig into the parameters expected by the JWT service.
func (c AuthConfig) JWTServiceConfig() auth.JWTConfig {
	ttl := c.JWT.TTL
	if ttl <= 0 {
		ttl = auth.DefaultAccessTokenTTL
	}

	return auth.JWTConfig{
		Secret:         c.JWT.Secret,
		Issuer:         c.JWT.Issuer,
		AccessTokenTTL: ttl,
	}
}

// PreferenceMaxAge is the lifetime of the signed workspace preference.
func (c WorkspaceConfig) PreferenceMaxAge() time.Duration {
	return time.Duration(c.PreferenceMaxAgeDays) * day
}

// Expiry is the lifetime of a generated invitation.
func (c InvitationConfig) Expiry() time.Duration {
	return time.Duration(c.ExpiryDays) * day
}

// Expiry is the lifetime of a password reset token.
func (c PasswordResetConfig) Expiry() time.Duration {
	return time.Duration(c.ExpiryMinutes) * time.Minute
}

// Policy converts a window setting into a limiter policy.
func (c WindowConfig) Policy() ratelimit.Policy {
	return ratelimit.Policy{Window: c.Window, Max: c.Max}
}
