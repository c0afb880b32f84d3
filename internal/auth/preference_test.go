package auth

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestPreferenceSignerRoundTrip(t *testing.T) {
	current := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)
	signer, err := NewPreferenceSigner("pref-secret", 365*24*time.Hour, func() time.Time { return current })
	require.NoError(t, err)

	token, expiresAt, err := signer.Sign("user-1", "ws-1")
	require.NoError(t, err)
	require.Equal(t, current.Add(365*24*time.Hour), expiresAt)

	require.Equal(t, "ws-1", signer.WorkspaceFor(token, "user-1"))
	require.Empty(t, signer.WorkspaceFor(token, "user-2"), "preference of another user must be ignored")
	require.Empty(t, signer.WorkspaceFor(token+"x", "user-1"))
	require.Empty(t, signer.WorkspaceFor("", "user-1"))

	current = current.Add(366 * 24 * time.Hour)
	require.Empty(t, signer.WorkspaceFor(token, "user-1"))
}

func TestPreferenceSignerRejectsTamperedSecret(t *testing.T) {
	a, err := NewPreferenceSigner("secret-a", time.Hour, nil)
	require.NoError(t, err)
	b, err := NewPreferenceSigner("secret-b", time.Hour, nil)
	require.NoError(t, err)

	token, _, err := a.Sign("user-1", "ws-1")
	require.NoError(t, err)
	require.Empty(t, b.WorkspaceFor(token, "user-1"))
}

func TestNewPreferenceSignerValidates(t *testing.T) {
	_, err := NewPreferenceSigner("", time.Hour, nil)
	require.Error(t, err)
	_, err = NewPreferenceSigner("s", 0, nil)
	require.Error(t, err)

	signer, err := NewPreferenceSigner("s", time.Hour, nil)
	require.NoError(t, err)
	_, _, err = signer.Sign("", "ws")
	require.Error(t, err)
}
