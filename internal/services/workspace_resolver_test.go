package services

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/charlesng35/tenantcrm/internal/auth"
	"github.com/charlesng35/tenantcrm/internal/models"
)

func TestResolverFallsBackToOldestMembership(t *testing.T) {
	db := openServiceDB(t)
	clock := newTestClock()
	resolver := testResolver(t, db, clock)
	ctx := context.Background()

	user := seedUser(t, db, "multi@example.com", "Secret123")
	older := seedWorkspace(t, db, "Older", "older")
	newer := seedWorkspace(t, db, "Newer", "newer")
	seedMembership(t, db, user.ID, newer.ID, models.RoleOwner, fixtureEpoch.Add(time.Hour))
	seedMembership(t, db, user.ID, older.ID, models.RoleMember, fixtureEpoch)

	wc, err := resolver.Resolve(ctx, user.ID, "")
	require.NoError(t, err)
	require.NotNil(t, wc)
	require.Equal(t, older.ID, wc.WorkspaceID)
	require.Equal(t, "Older", wc.WorkspaceName)
	require.Equal(t, "older", wc.WorkspaceSlug)
	require.Equal(t, models.RoleMember, wc.Role)
}

func TestResolverHonoursSignedPreference(t *testing.T) {
	db := openServiceDB(t)
	clock := newTestClock()
	resolver := testResolver(t, db, clock)
	ctx := context.Background()

	user := seedUser(t, db, "pref@example.com", "Secret123")
	first := seedWorkspace(t, db, "First", "first")
	second := seedWorkspace(t, db, "Second", "second")
	seedMembership(t, db, user.ID, first.ID, models.RoleOwner, fixtureEpoch)
	seedMembership(t, db, user.ID, second.ID, models.RoleMember, fixtureEpoch.Add(time.Minute))

	wc, pref, err := resolver.SetCurrent(ctx, user.ID, second.ID)
	require.NoError(t, err)
	require.Equal(t, second.ID, wc.WorkspaceID)
	require.NotNil(t, pref)
	require.Equal(t, fixtureEpoch.Add(365*24*time.Hour), pref.ExpiresAt)
	require.Equal(t, second.ID, *selectedWorkspace(t, db, user.ID))

	// Clear the persisted pointer so only the signed token can select.
	require.NoError(t, db.Model(&models.User{}).Where("id = ?", user.ID).Update("selected_workspace_id", nil).Error)

	resolved, err := resolver.Resolve(ctx, user.ID, pref.Token)
	require.NoError(t, err)
	require.Equal(t, second.ID, resolved.WorkspaceID)
	require.Equal(t, models.RoleMember, resolved.Role)
}

func TestResolverIgnoresStaleOrForeignPreference(t *testing.T) {
	db := openServiceDB(t)
	clock := newTestClock()
	resolver := testResolver(t, db, clock)
	ctx := context.Background()

	alice := seedUser(t, db, "alice@example.com", "Secret123")
	bob := seedUser(t, db, "bob@example.com", "Secret123")
	home := seedWorkspace(t, db, "Home", "home")
	other := seedWorkspace(t, db, "Other", "other")
	seedMembership(t, db, alice.ID, home.ID, models.RoleOwner, fixtureEpoch)
	seedMembership(t, db, bob.ID, other.ID, models.RoleOwner, fixtureEpoch)

	signer, err := auth.NewPreferenceSigner("preference-secret", time.Hour, clock.Now)
	require.NoError(t, err)

	// A preference naming a workspace alice does not belong to.
	stale, _, err := signer.Sign(alice.ID, other.ID)
	require.NoError(t, err)
	wc, err := resolver.Resolve(ctx, alice.ID, stale)
	require.NoError(t, err)
	require.Equal(t, home.ID, wc.WorkspaceID)

	// Bob's own preference presented by alice.
	foreign, _, err := signer.Sign(bob.ID, other.ID)
	require.NoError(t, err)
	wc, err = resolver.Resolve(ctx, alice.ID, foreign)
	require.NoError(t, err)
	require.Equal(t, home.ID, wc.WorkspaceID)

	// Garbage is tolerated.
	wc, err = resolver.Resolve(ctx, alice.ID, "not-a-token")
	require.NoError(t, err)
	require.Equal(t, home.ID, wc.WorkspaceID)
}

func TestResolverUsesPersistedSelection(t *testing.T) {
	db := openServiceDB(t)
	resolver := testResolver(t, db, newTestClock())
	ctx := context.Background()

	user := seedUser(t, db, "persisted@example.com", "Secret123")
	first := seedWorkspace(t, db, "First", "first")
	second := seedWorkspace(t, db, "Second", "second")
	seedMembership(t, db, user.ID, first.ID, models.RoleOwner, fixtureEpoch)
	seedMembership(t, db, user.ID, second.ID, models.RoleMember, fixtureEpoch.Add(time.Minute))
	require.NoError(t, db.Model(&models.User{}).Where("id = ?", user.ID).Update("selected_workspace_id", second.ID).Error)

	wc, err := resolver.Resolve(ctx, user.ID, "")
	require.NoError(t, err)
	require.Equal(t, second.ID, wc.WorkspaceID)
}

func TestResolverWithoutMembershipReturnsNil(t *testing.T) {
	db := openServiceDB(t)
	resolver := testResolver(t, db, newTestClock())

	user := seedUser(t, db, "lonely@example.com", "Secret123")

	wc, err := resolver.Resolve(context.Background(), user.ID, "")
	require.NoError(t, err)
	require.Nil(t, wc)

	wc, err = resolver.Resolve(context.Background(), "missing-user", "")
	require.NoError(t, err)
	require.Nil(t, wc)
}

func TestSetCurrentRequiresMembership(t *testing.T) {
	db := openServiceDB(t)
	resolver := testResolver(t, db, newTestClock())

	user := seedUser(t, db, "outsider@example.com", "Secret123")
	ws := seedWorkspace(t, db, "Closed", "closed")

	_, _, err := resolver.SetCurrent(context.Background(), user.ID, ws.ID)
	require.ErrorIs(t, err, ErrNotFound)
	require.Nil(t, selectedWorkspace(t, db, user.ID))
}

func TestListForUser(t *testing.T) {
	db := openServiceDB(t)
	resolver := testResolver(t, db, newTestClock())

	user := seedUser(t, db, "list@example.com", "Secret123")
	first := seedWorkspace(t, db, "First", "first")
	second := seedWorkspace(t, db, "Second", "second")
	seedMembership(t, db, user.ID, first.ID, models.RoleOwner, fixtureEpoch)
	seedMembership(t, db, user.ID, second.ID, models.RoleMember, fixtureEpoch.Add(time.Minute))

	list, err := resolver.ListForUser(context.Background(), user.ID, second.ID)
	require.NoError(t, err)
	require.Len(t, list, 2)
	require.Equal(t, "first", list[0].Slug)
	require.False(t, list[0].Selected)
	require.Equal(t, models.RoleMember, list[1].Role)
	require.True(t, list[1].Selected)
}
