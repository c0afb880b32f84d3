package database

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/charlesng35/tenantcrm/internal/models"
)

func TestOpenSQLiteFileAndMigrate(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "crm.sqlite")
	db, err := Open(Config{Driver: "sqlite", Path: path})
	require.NoError(t, err)
	t.Cleanup(func() { _ = Close(db) })

	require.NoError(t, Ping(db))
	require.NoError(t, AutoMigrate(db))

	migrator := db.Migrator()
	for _, model := range Models() {
		require.True(t, migrator.HasTable(model))
	}
	require.True(t, migrator.HasIndex(&models.Membership{}, "idx_membership_user_workspace"))
}

func TestOpenRejectsUnknownDriver(t *testing.T) {
	_, err := Open(Config{Driver: "oracle"})
	require.ErrorContains(t, err, "unsupported database driver")
}

func TestAutoMigrateNilHandle(t *testing.T) {
	require.Error(t, AutoMigrate(nil))
}
