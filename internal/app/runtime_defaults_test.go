package app

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestApplyRuntimeDefaultsGeneratesMissingSecrets(t *testing.T) {
	cfg := &Config{Server: ServerConfig{Environment: EnvDevelopment}}

	generated, err := ApplyRuntimeDefaults(cfg)
	require.NoError(t, err)

	require.NotEmpty(t, cfg.Auth.JWT.Secret)
	require.NotEmpty(t, cfg.Auth.PreferenceSecret)
	require.NotEqual(t, cfg.Auth.JWT.Secret, cfg.Auth.PreferenceSecret)
	require.True(t, generated["auth.jwt.secret"])
	require.True(t, generated["auth.preference_secret"])
}

func TestApplyRuntimeDefaultsPreservesExistingSecrets(t *testing.T) {
	cfg := &Config{Server: ServerConfig{Environment: EnvTest}}
	cfg.Auth.JWT.Secret = "jwt"
	cfg.Auth.PreferenceSecret = "pref"

	generated, err := ApplyRuntimeDefaults(cfg)
	require.NoError(t, err)
	require.Empty(t, generated)
	require.Equal(t, "jwt", cfg.Auth.JWT.Secret)
	require.Equal(t, "pref", cfg.Auth.PreferenceSecret)
}

func TestApplyRuntimeDefaultsNeverGeneratesProductionSecrets(t *testing.T) {
	cfg := &Config{Server: ServerConfig{Environment: EnvProduction}}

	generated, err := ApplyRuntimeDefaults(cfg)
	require.NoError(t, err)
	require.Empty(t, generated)
	require.Empty(t, cfg.Auth.JWT.Secret)
}

func TestApplyRuntimeDefaultsNilConfig(t *testing.T) {
	_, err := ApplyRuntimeDefaults(nil)
	require.ErrorContains(t, err, "config is nil")
}
