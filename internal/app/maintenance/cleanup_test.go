package maintenance

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/charlesng35/tenantcrm/internal/cache"
	testutil "github.com/charlesng35/tenantcrm/internal/database/testutil"
	"github.com/charlesng35/tenantcrm/internal/models"
)

func seedResetToken(t *testing.T, db *gorm.DB, userID, hash string, expires time.Time, used *time.Time) models.PasswordResetToken {
	t.Helper()
	token := models.PasswordResetToken{UserID: userID, TokenHash: hash, ExpiresAt: expires, UsedAt: used}
	require.NoError(t, db.Create(&token).Error)
	return token
}

func tokenExists(t *testing.T, db *gorm.DB, id string) bool {
	t.Helper()
	var count int64
	require.NoError(t, db.Model(&models.PasswordResetToken{}).Where("id = ?", id).Count(&count).Error)
	return count > 0
}

func TestPruneResetTokens(t *testing.T) {
	db := testutil.MustOpenTestDB(t, testutil.WithAutoMigrate())
	now := time.Date(2024, 2, 10, 15, 0, 0, 0, time.UTC)
	cutoff := now.Add(-24 * time.Hour)

	user := models.User{Email: "owner@example.com"}
	require.NoError(t, db.Create(&user).Error)

	longUsed := now.Add(-48 * time.Hour)
	recentUsed := now.Add(-time.Hour)

	oldExpired := seedResetToken(t, db, user.ID, "old-expired", now.Add(-72*time.Hour), nil)
	oldSpent := seedResetToken(t, db, user.ID, "old-spent", now.Add(time.Hour), &longUsed)
	recentSpent := seedResetToken(t, db, user.ID, "recent-spent", now.Add(time.Hour), &recentUsed)
	recentExpired := seedResetToken(t, db, user.ID, "recent-expired", now.Add(-time.Hour), nil)
	usable := seedResetToken(t, db, user.ID, "usable", now.Add(time.Hour), nil)

	removed, err := PruneResetTokens(context.Background(), db, cutoff)
	require.NoError(t, err)
	require.EqualValues(t, 2, removed)

	require.False(t, tokenExists(t, db, oldExpired.ID))
	require.False(t, tokenExists(t, db, oldSpent.ID))
	require.True(t, tokenExists(t, db, recentSpent.ID))
	require.True(t, tokenExists(t, db, recentExpired.ID))
	require.True(t, tokenExists(t, db, usable.ID))
}

func TestPruneResetTokensRequiresDB(t *testing.T) {
	_, err := PruneResetTokens(context.Background(), nil, time.Now())
	require.Error(t, err)
}

func TestCleanerRunOncePurgesCountersAndTokens(t *testing.T) {
	db := testutil.MustOpenTestDB(t, testutil.WithAutoMigrate())
	now := time.Date(2024, 2, 10, 15, 0, 0, 0, time.UTC)
	clock := now.Add(-time.Hour)

	store := cache.NewDatabaseStore(db, cache.WithDatabaseClock(func() time.Time { return clock }))
	_, _, err := store.IncrementWithTTL(context.Background(), "rl:reset:a@example.com", time.Minute)
	require.NoError(t, err)
	_, _, err = store.IncrementWithTTL(context.Background(), "rl:reset:b@example.com", 3*time.Hour)
	require.NoError(t, err)
	clock = now

	user := models.User{Email: "owner@example.com"}
	require.NoError(t, db.Create(&user).Error)
	stale := seedResetToken(t, db, user.ID, "stale", now.Add(-30*24*time.Hour), nil)

	cleaner, err := NewCleaner(db, store, WithNow(func() time.Time { return now }), WithTokenRetention(24*time.Hour))
	require.NoError(t, err)
	require.NoError(t, cleaner.RunOnce(context.Background()))

	var remaining []models.CacheEntry
	require.NoError(t, db.Find(&remaining).Error)
	require.Len(t, remaining, 1)
	require.Equal(t, "rl:reset:b@example.com", remaining[0].Key)
	require.False(t, tokenExists(t, db, stale.ID))
}

type failingStore struct{}

func (failingStore) PurgeExpired(context.Context) (int64, error) {
	return 0, errors.New("store offline")
}

func TestCleanerRunOnceCombinesErrors(t *testing.T) {
	db := testutil.MustOpenTestDB(t)

	cleaner, err := NewCleaner(db, failingStore{})
	require.NoError(t, err)

	err = cleaner.RunOnce(context.Background())
	require.Error(t, err)
	require.ErrorContains(t, err, "store offline")
	// Reset tokens table is missing without migrations, so both jobs fail.
	require.ErrorContains(t, err, "prune reset tokens")
}

func TestCleanerStartRegistersJobs(t *testing.T) {
	db := testutil.MustOpenTestDB(t, testutil.WithAutoMigrate())
	scheduler := cron.New(cron.WithLogger(cron.DiscardLogger))

	cleaner, err := NewCleaner(db, failingStore{}, WithCron(scheduler), WithSchedule("@every 1h"))
	require.NoError(t, err)
	require.NoError(t, cleaner.Start())
	t.Cleanup(func() { <-cleaner.Stop().Done() })

	require.Len(t, scheduler.Entries(), 2)
}

func TestCleanerStartRejectsBadSchedule(t *testing.T) {
	db := testutil.MustOpenTestDB(t)

	cleaner, err := NewCleaner(db, nil, WithSchedule("not a schedule"))
	require.NoError(t, err)
	require.Error(t, cleaner.Start())
}

func TestNewCleanerRequiresDB(t *testing.T) {
	_, err := NewCleaner(nil, nil)
	require.Error(t, err)
}
