package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"go.uber.org/multierr"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/charlesng35/tenantcrm/internal/api"
	"github.com/charlesng35/tenantcrm/internal/app"
	"github.com/charlesng35/tenantcrm/internal/app/maintenance"
	iauth "github.com/charlesng35/tenantcrm/internal/auth"
	"github.com/charlesng35/tenantcrm/internal/cache"
	"github.com/charlesng35/tenantcrm/internal/database"
	"github.com/charlesng35/tenantcrm/internal/handlers"
	"github.com/charlesng35/tenantcrm/internal/ratelimit"
	"github.com/charlesng35/tenantcrm/pkg/mail"
)

const memorySweepInterval = time.Minute

// runtimeStack bundles long-lived services used by the HTTP server.
type runtimeStack struct {
	DB       *gorm.DB
	Redis    *redis.Client
	Memory   *ratelimit.MemoryStore
	Counters ratelimit.CounterStore
	Cleaner  *maintenance.Cleaner
	Router   *gin.Engine
}

// bootstrapRuntime initialises the database, the counter store, background
// jobs and the HTTP router.
func bootstrapRuntime(ctx context.Context, cfg *app.Config, log *zap.Logger) (*runtimeStack, error) {
	stack := &runtimeStack{}
	var err error
	success := false

	defer func() {
		if !success {
			_ = stack.Shutdown(context.Background(), log)
		}
	}()

	// enable gin debug mode
	if debug, _ := os.LookupEnv("GIN_DEBUG"); debug != "true" {
		gin.SetMode(gin.ReleaseMode)
	}

	stack.DB, err = initialiseDatabase(cfg, log)
	if err != nil {
		return nil, err
	}
	dbStore := cache.NewDatabaseStore(stack.DB)

	if cfg.Cache.Redis.Enabled {
		if stack.Redis, err = cache.NewRedisClient(ctx, cfg.Cache.RedisClientConfig()); err != nil {
			log.Warn("redis unavailable; falling back to local counters", zap.Error(err))
			stack.Redis = nil
		} else {
			log.Info("redis connected", zap.String("addr", cfg.Cache.Redis.Address))
		}
	}

	stack.Counters = stack.selectCounters(cfg, dbStore)

	jwtSvc, err := iauth.NewJWTService(cfg.Auth.JWTServiceConfig())
	if err != nil {
		return nil, fmt.Errorf("initialise jwt service: %w", err)
	}

	mailer, err := mail.New(cfg.Email.MailSettings())
	if err != nil {
		return nil, fmt.Errorf("initialise mailer: %w", err)
	}

	if cfg.Maintenance.Enabled {
		stack.Cleaner, err = maintenance.NewCleaner(stack.DB, dbStore,
			maintenance.WithSchedule(cfg.Maintenance.Schedule),
			maintenance.WithTokenRetention(cfg.Maintenance.ResetTokenRetention),
		)
		if err != nil {
			return nil, fmt.Errorf("initialise maintenance: %w", err)
		}
		if err := stack.Cleaner.Start(); err != nil {
			return nil, fmt.Errorf("start maintenance jobs: %w", err)
		}
	}

	stack.Router, err = api.NewRouter(stack.DB, jwtSvc, cfg, stack.Counters, mailer, stack.healthChecks()...)
	if err != nil {
		return nil, fmt.Errorf("build api router: %w", err)
	}

	success = true
	return stack, nil
}

// selectCounters prefers Redis so limits hold across instances, then the
// database when configured, and otherwise process-local memory.
func (s *runtimeStack) selectCounters(cfg *app.Config, dbStore *cache.DatabaseStore) ratelimit.CounterStore {
	switch {
	case s.Redis != nil:
		return cache.NewRedisStore(s.Redis)
	case cfg.RateLimits.Backend == "database":
		return dbStore
	default:
		s.Memory = ratelimit.NewMemoryStore(memorySweepInterval)
		return s.Memory
	}
}

func (s *runtimeStack) healthChecks() []handlers.HealthCheck {
	checks := []handlers.HealthCheck{handlers.DatabaseCheck(s.DB)}
	// Process-local counters have nothing to reach.
	if shared, ok := s.Counters.(cache.Store); ok {
		checks = append(checks, handlers.HealthCheck{
			Name:     "rate_limit_store",
			Optional: true,
			Ping:     shared.Ping,
		})
	}
	return checks
}

// Shutdown stops background jobs and releases resources, returning every
// failure encountered along the way.
func (s *runtimeStack) Shutdown(ctx context.Context, log *zap.Logger) error {
	if s == nil {
		return nil
	}

	var errs error
	if s.Cleaner != nil {
		<-s.Cleaner.Stop().Done()
		if err := s.Cleaner.RunOnce(ctx); err != nil {
			log.Warn("maintenance shutdown cleanup failed", zap.Error(err))
		}
	}
	if s.Memory != nil {
		errs = multierr.Append(errs, s.Memory.Close())
	}
	if s.Redis != nil {
		errs = multierr.Append(errs, s.Redis.Close())
	}
	if s.DB != nil {
		errs = multierr.Append(errs, database.Close(s.DB))
	}
	return errs
}

func initialiseDatabase(cfg *app.Config, log *zap.Logger) (*gorm.DB, error) {
	dbCfg := cfg.Database.ConnectionConfig()
	db, err := database.Open(dbCfg)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	if err := database.AutoMigrate(db); err != nil {
		_ = database.Close(db)
		return nil, fmt.Errorf("auto-migrate database: %w", err)
	}

	log.Info("database connected", zap.String("driver", dbCfg.Driver))
	return db, nil
}
