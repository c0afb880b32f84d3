package services

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/charlesng35/tenantcrm/internal/auth"
	"github.com/charlesng35/tenantcrm/internal/database/testutil"
	"github.com/charlesng35/tenantcrm/internal/models"
	"github.com/charlesng35/tenantcrm/pkg/crypto"
)

var fixtureEpoch = time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)

type testClock struct {
	mu  sync.Mutex
	now time.Time
}

func newTestClock() *testClock {
	return &testClock{now: fixtureEpoch}
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func openServiceDB(t *testing.T) *gorm.DB {
	t.Helper()
	return testutil.MustOpenTestDB(t, testutil.WithAutoMigrate())
}

func testHasher(t *testing.T) *crypto.PasswordHasher {
	t.Helper()
	hasher, err := crypto.NewPasswordHasher(crypto.MinPasswordCost)
	require.NoError(t, err)
	return hasher
}

func testIssuer(t *testing.T) *crypto.SecretIssuer {
	t.Helper()
	issuer, err := crypto.NewSecretIssuer()
	require.NoError(t, err)
	return issuer
}

func testLinks(t *testing.T) *LinkBuilder {
	t.Helper()
	links, err := NewLinkBuilder("https://crm.example.com")
	require.NoError(t, err)
	return links
}

func testResolver(t *testing.T, db *gorm.DB, clock *testClock) *WorkspaceResolver {
	t.Helper()
	signer, err := auth.NewPreferenceSigner("preference-secret", 365*24*time.Hour, clock.Now)
	require.NoError(t, err)
	resolver, err := NewWorkspaceResolver(db, signer)
	require.NoError(t, err)
	return resolver
}

// seedUser stores a user. An empty password leaves the account without a
// local password.
func seedUser(t *testing.T, db *gorm.DB, email, password string) *models.User {
	t.Helper()
	user := &models.User{Email: models.NormalizeEmail(email)}
	if password != "" {
		hash, err := testHasher(t).Hash(password)
		require.NoError(t, err)
		user.PasswordHash = &hash
	}
	require.NoError(t, db.Create(user).Error)
	return user
}

func seedWorkspace(t *testing.T, db *gorm.DB, name, slug string) *models.Workspace {
	t.Helper()
	ws := &models.Workspace{Name: name, Slug: slug}
	require.NoError(t, db.Create(ws).Error)
	return ws
}

// seedMembership stores a membership with an explicit creation time so that
// oldest-first ordering is deterministic.
func seedMembership(t *testing.T, db *gorm.DB, userID, workspaceID string, role models.Role, createdAt time.Time) *models.Membership {
	t.Helper()
	m := &models.Membership{UserID: userID, WorkspaceID: workspaceID, Role: role}
	m.CreatedAt = createdAt
	require.NoError(t, db.Create(m).Error)
	return m
}

func ownerContext(user *models.User, ws *models.Workspace) *WorkspaceContext {
	return &WorkspaceContext{UserID: user.ID, WorkspaceID: ws.ID, WorkspaceName: ws.Name, WorkspaceSlug: ws.Slug, Role: models.RoleOwner}
}

func memberContext(user *models.User, ws *models.Workspace) *WorkspaceContext {
	return &WorkspaceContext{UserID: user.ID, WorkspaceID: ws.ID, WorkspaceName: ws.Name, WorkspaceSlug: ws.Slug, Role: models.RoleMember}
}

func selectedWorkspace(t *testing.T, db *gorm.DB, userID string) *string {
	t.Helper()
	var user models.User
	require.NoError(t, db.Where("id = ?", userID).Take(&user).Error)
	return user.SelectedWorkspaceID
}
