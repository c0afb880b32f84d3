package maintenance

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/multierr"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/charlesng35/tenantcrm/internal/models"
	"github.com/charlesng35/tenantcrm/pkg/logger"
	"github.com/charlesng35/tenantcrm/pkg/metrics"
)

const (
	defaultSchedule       = "@hourly"
	defaultTokenRetention = 7 * 24 * time.Hour

	jobCounters    = "counters"
	jobResetTokens = "reset_tokens"
)

// ExpiringStore is a key/value store that can drop its expired entries.
type ExpiringStore interface {
	PurgeExpired(ctx context.Context) (int64, error)
}

// Cleaner runs the periodic cleanup of expired limiter counters and spent
// password reset tokens.
type Cleaner struct {
	db        *gorm.DB
	counters  ExpiringStore
	cron      *cron.Cron
	now       func() time.Time
	log       *zap.Logger
	schedule  string
	retention time.Duration
}

// Option customises the Cleaner.
type Option func(*Cleaner)

// WithCron injects a preconfigured cron instance, primarily for testing.
func WithCron(c *cron.Cron) Option {
	return func(cleaner *Cleaner) {
		if c != nil {
			cleaner.cron = c
		}
	}
}

// WithNow overrides the clock used for cleanup comparisons.
func WithNow(now func() time.Time) Option {
	return func(cleaner *Cleaner) {
		if now != nil {
			cleaner.now = now
		}
	}
}

// WithSchedule overrides the cron specification shared by every job.
func WithSchedule(spec string) Option {
	return func(cleaner *Cleaner) {
		if spec != "" {
			cleaner.schedule = spec
		}
	}
}

// WithTokenRetention sets how long spent or expired reset tokens are kept.
func WithTokenRetention(d time.Duration) Option {
	return func(cleaner *Cleaner) {
		if d > 0 {
			cleaner.retention = d
		}
	}
}

// NewCleaner constructs a Cleaner. A nil counters store skips the counter
// job; the database is required because reset tokens always live there.
func NewCleaner(db *gorm.DB, counters ExpiringStore, opts ...Option) (*Cleaner, error) {
	if db == nil {
		return nil, errors.New("maintenance: db is required")
	}
	cleaner := &Cleaner{
		db:        db,
		counters:  counters,
		now:       time.Now,
		schedule:  defaultSchedule,
		retention: defaultTokenRetention,
		log:       logger.WithModule("maintenance"),
	}

	for _, opt := range opts {
		opt(cleaner)
	}

	if cleaner.cron == nil {
		cleaner.cron = cron.New(cron.WithLogger(cron.DiscardLogger))
	}
	return cleaner, nil
}

// Start registers the cleanup jobs and launches the scheduler.
func (c *Cleaner) Start() error {
	if c.counters != nil {
		if _, err := c.cron.AddFunc(c.schedule, func() {
			_ = c.purgeCounters(context.Background())
		}); err != nil {
			return fmt.Errorf("maintenance: schedule %s: %w", jobCounters, err)
		}
	}

	if _, err := c.cron.AddFunc(c.schedule, func() {
		_ = c.pruneResetTokens(context.Background())
	}); err != nil {
		return fmt.Errorf("maintenance: schedule %s: %w", jobResetTokens, err)
	}

	c.cron.Start()
	return nil
}

// Stop halts the underlying scheduler. The returned context is done once any
// running job has finished.
func (c *Cleaner) Stop() context.Context {
	if c.cron == nil {
		return context.Background()
	}
	return c.cron.Stop()
}

// RunOnce executes every cleanup routine sequentially and combines their errors.
func (c *Cleaner) RunOnce(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}

	var errs error
	if c.counters != nil {
		errs = multierr.Append(errs, c.purgeCounters(ctx))
	}
	errs = multierr.Append(errs, c.pruneResetTokens(ctx))
	return errs
}

func (c *Cleaner) purgeCounters(ctx context.Context) error {
	removed, err := c.counters.PurgeExpired(ctx)
	c.record(jobCounters, removed, err)
	return err
}

func (c *Cleaner) pruneResetTokens(ctx context.Context) error {
	removed, err := PruneResetTokens(ctx, c.db, c.now().UTC().Add(-c.retention))
	c.record(jobResetTokens, removed, err)
	return err
}

func (c *Cleaner) record(job string, removed int64, err error) {
	if err != nil {
		metrics.MaintenanceRuns.WithLabelValues(job, "error").Inc()
		c.log.Warn("cleanup failed", zap.String("job", job), zap.Error(err))
		return
	}
	metrics.MaintenanceRuns.WithLabelValues(job, "success").Inc()
	if removed > 0 {
		c.log.Info("cleanup removed rows", zap.String("job", job), zap.Int64("removed", removed))
	}
}

// PruneResetTokens deletes reset tokens that were spent or expired before
// cutoff. Usable tokens are never touched.
func PruneResetTokens(ctx context.Context, db *gorm.DB, cutoff time.Time) (int64, error) {
	if db == nil {
		return 0, errors.New("prune reset tokens: db is required")
	}
	if ctx == nil {
		ctx = context.Background()
	}

	result := db.WithContext(ctx).
		Where("(used_at IS NOT NULL AND used_at < ?) OR expires_at < ?", cutoff, cutoff).
		Delete(&models.PasswordResetToken{})
	if result.Error != nil {
		return 0, fmt.Errorf("prune reset tokens: %w", result.Error)
	}
	return result.RowsAffected, nil
}
