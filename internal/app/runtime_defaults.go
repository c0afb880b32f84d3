package app

import (
	"errors"
	"fmt"
	"strings"

	"github.com/charlesng35/tenantcrm/pkg/crypto"
)

const (
	jwtSecretBytes        = 48
	preferenceSecretBytes = 32
)

// ApplyRuntimeDefaults ensures signing secrets are populated outside
// production so a fresh checkout starts without a configuration file. It
// returns a map describing which keys were generated so callers can log the
// event without exposing values. Production secrets are never generated.
func ApplyRuntimeDefaults(cfg *Config) (map[string]bool, error) {
	if cfg == nil {
		return nil, errors.New("config is nil")
	}

	generated := make(map[string]bool)
	if cfg.Server.IsProduction() {
		return generated, nil
	}

	if strings.TrimSpace(cfg.Auth.JWT.Secret) == "" {
		secret, err := crypto.GenerateToken(jwtSecretBytes)
		if err != nil {
			return nil, fmt.Errorf("generate jwt secret: %w", err)
		}
		cfg.Auth.JWT.Secret = secret
		generated["auth.jwt.secret"] = true
	}

	if strings.TrimSpace(cfg.Auth.PreferenceSecret) == "" {
		secret, err := crypto.GenerateToken(preferenceSecretBytes)
		if err != nil {
			return nil, fmt.Errorf("generate preference secret: %w", err)
		}
		cfg.Auth.PreferenceSecret = secret
		generated["auth.preference_secret"] = true
	}

	return generated, nil
}
