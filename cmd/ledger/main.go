// Package main is the entry point of the progress ledger process.
//
// The process hosts the progression service: it owns the record store, the
// unlock view cache, the event bus and the timer checkpoint schedule. A
// presentation layer embeds the service or sits in front of this process.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/alem-hub/progress-ledger/config"
	"github.com/alem-hub/progress-ledger/internal/application/progression"
	"github.com/alem-hub/progress-ledger/internal/domain/course"
	"github.com/alem-hub/progress-ledger/internal/domain/progress"
	"github.com/alem-hub/progress-ledger/internal/domain/reward"
	"github.com/alem-hub/progress-ledger/internal/domain/shared"
	"github.com/alem-hub/progress-ledger/internal/domain/wallet"
	"github.com/alem-hub/progress-ledger/internal/infrastructure/messaging"
	"github.com/alem-hub/progress-ledger/internal/infrastructure/persistence/lrucache"
	"github.com/alem-hub/progress-ledger/internal/infrastructure/persistence/memory"
	"github.com/alem-hub/progress-ledger/internal/infrastructure/persistence/postgres"
	"github.com/alem-hub/progress-ledger/internal/infrastructure/persistence/redis"
	"github.com/alem-hub/progress-ledger/internal/infrastructure/scheduler"
	"github.com/alem-hub/progress-ledger/internal/infrastructure/scheduler/jobs"
	"github.com/alem-hub/progress-ledger/pkg/logger"
	"github.com/alem-hub/progress-ledger/pkg/retry"
)

const catalogCacheSize = 256

// flags select a one-shot migration command instead of serving.
type flags struct {
	migrateDown   bool
	migrateStatus bool
}

func main() {
	var fl flags
	flag.BoolVar(&fl.migrateDown, "migrate-down", false, "revert the last applied migration and exit")
	flag.BoolVar(&fl.migrateStatus, "migrate-status", false, "print the migration status and exit")
	flag.Parse()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := run(ctx, fl); err != nil {
		fmt.Fprintf(os.Stderr, "fatal error: %v\n", err)
		os.Exit(1)
	}
}

// stores bundles the record store behind the domain interfaces.
type stores struct {
	catalog     course.Catalog
	seeder      courseSeeder
	enrollments progress.EnrollmentRepository
	progress    progress.ProgressRepository
	timers      progress.TimerRepository
	wallet      wallet.Store
	claims      reward.Store
	close       func()
}

type courseSeeder interface {
	SaveCourse(ctx context.Context, c *course.Course) error
}

func run(ctx context.Context, fl flags) error {
	// ─────────────────────────────────────────────────────────────────────────
	// 1. CONFIGURATION AND LOGGING
	// ─────────────────────────────────────────────────────────────────────────
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	log, err := logger.New(logger.Options{Mode: cfg.Observability.LogMode, Level: cfg.Observability.LogLevel})
	if err != nil {
		return err
	}
	defer log.Sync()

	log.Info("starting progress ledger",
		logger.String("env", string(cfg.App.Environment)),
		logger.String("version", cfg.App.Version),
		logger.String("timezone", cfg.App.Timezone),
	)

	if fl.migrateDown || fl.migrateStatus {
		return runMigrationCommand(ctx, cfg, log, fl)
	}

	// ─────────────────────────────────────────────────────────────────────────
	// 2. RECORD STORE
	// ─────────────────────────────────────────────────────────────────────────
	st, err := openStores(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer st.close()

	if err := seedCourses(ctx, st.seeder, cfg.Courses); err != nil {
		return fmt.Errorf("failed to seed courses: %w", err)
	}
	if len(cfg.Courses) > 0 {
		log.Info("catalog seeded", logger.Int("courses", len(cfg.Courses)))
	}

	catalog := st.catalog
	if cfg.Features.IsEnabled(config.FeatureCatalogLRU) {
		cached, err := lrucache.NewCatalog(st.catalog, catalogCacheSize)
		if err != nil {
			return fmt.Errorf("failed to build catalog cache: %w", err)
		}
		catalog = cached
	}

	// ─────────────────────────────────────────────────────────────────────────
	// 3. UNLOCK VIEW CACHE (optional)
	// ─────────────────────────────────────────────────────────────────────────
	var views *redis.GuardedViewCache
	if !cfg.Redis.Disabled && cfg.Features.IsEnabled(config.FeatureUnlockViewCache) {
		cache, err := redis.NewCache(redis.Config{
			Addr:         cfg.Redis.Addr,
			Password:     cfg.Redis.Password,
			DB:           cfg.Redis.DB,
			PoolSize:     cfg.Redis.PoolSize,
			MinIdleConns: cfg.Redis.MinIdleConns,
			MaxRetries:   3,
			DialTimeout:  cfg.Redis.DialTimeout,
			ReadTimeout:  cfg.Redis.ReadTimeout,
			WriteTimeout: cfg.Redis.WriteTimeout,
		})
		if err != nil {
			log.Warn("failed to connect to Redis, view cache disabled", logger.Err(err))
		} else {
			defer cache.Close()
			views = redis.NewGuardedViewCache(redis.NewUnlockViewCache(cache, cfg.Redis.ViewTTL), log)
			log.Info("Redis view cache enabled", logger.Duration("ttl", cfg.Redis.ViewTTL))
		}
	}

	// ─────────────────────────────────────────────────────────────────────────
	// 4. EVENT BUS
	// ─────────────────────────────────────────────────────────────────────────
	busCfg := messaging.DefaultInMemoryEventBusConfig()
	busCfg.Logger = log
	busCfg.AsyncMode = cfg.Features.IsEnabled(config.FeatureAsyncEvents)
	bus := messaging.NewInMemoryEventBus(busCfg)
	bus.Use(messaging.RecoveryMiddleware(), messaging.TimingMiddleware(log, 100*time.Millisecond))

	if views != nil {
		if err := messaging.SubscribeViewInvalidation(bus, views, 2*time.Second); err != nil {
			return err
		}
	}
	if cfg.Features.IsEnabled(config.FeatureAuditLog) {
		if err := messaging.SubscribeAuditLog(bus, log); err != nil {
			return err
		}
	}

	// ─────────────────────────────────────────────────────────────────────────
	// 5. PROGRESSION SERVICE
	// ─────────────────────────────────────────────────────────────────────────
	deps := progression.Dependencies{
		Catalog:     catalog,
		Enrollments: st.enrollments,
		Progress:    st.progress,
		Timers:      st.timers,
		Wallet:      st.wallet,
		Claims:      st.claims,
		Events:      bus,
		Logger:      log,
	}
	if views != nil {
		deps.Views = views
	}
	svc := progression.NewService(deps, progression.Config{
		Rewards: course.RewardDefaults{
			Completion: shared.Coins(cfg.Rewards.CompletionDefault),
			Timed:      shared.Coins(cfg.Rewards.TimedDefault),
		},
		DailyLoginAmount: shared.Coins(cfg.Rewards.DailyLogin),
		Location:         cfg.App.Location,
		Retrier: retry.New(
			retry.WithMaxAttempts(cfg.Retry.MaxAttempts),
			retry.WithInitialDelay(cfg.Retry.InitialDelay),
			retry.WithMaxDelay(cfg.Retry.MaxDelay),
			retry.WithRetryIf(shared.IsRetryable),
			retry.WithOnRetry(progression.RetryLogger(log.With(logger.Component("progression")))),
		),
	})

	// ─────────────────────────────────────────────────────────────────────────
	// 6. SCHEDULER
	// ─────────────────────────────────────────────────────────────────────────
	sched := scheduler.New(scheduler.Config{
		Logger:     log,
		Timezone:   cfg.App.Location,
		JobTimeout: cfg.Timer.JobTimeout,
	})
	if cfg.Features.IsEnabled(config.FeatureTimerCheckpoint) {
		if err := sched.Register(jobs.NewCheckpointTimersJob(svc, log), cfg.Timer.CheckpointSpec); err != nil {
			return fmt.Errorf("failed to register checkpoint job: %w", err)
		}
	}
	if err := sched.Start(); err != nil {
		return fmt.Errorf("failed to start scheduler: %w", err)
	}

	// ─────────────────────────────────────────────────────────────────────────
	// 7. GRACEFUL SHUTDOWN
	// ─────────────────────────────────────────────────────────────────────────
	log.Info("progress ledger is running")

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	select {
	case sig := <-sigCh:
		log.Info("received shutdown signal", logger.String("signal", sig.String()))
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.App.ShutdownTimeout)
	defer cancel()

	if err := sched.Stop(shutdownCtx); err != nil {
		log.Warn("scheduler did not stop cleanly", logger.Err(err))
	}
	// Sessions must be flushed before the store closes or unsaved time is lost.
	if n, err := svc.FlushAll(shutdownCtx); err != nil {
		log.Error("failed to flush study sessions", logger.Err(err))
	} else {
		log.Info("study sessions flushed", logger.Int("sessions", n))
	}
	if err := bus.Close(); err != nil {
		log.Warn("event bus did not close cleanly", logger.Err(err))
	}

	m := bus.Metrics()
	log.Info("shutdown completed",
		logger.Int64("events_published", m.Published),
		logger.Int64("handler_failures", m.HandlerFailures),
	)
	return nil
}

// openStores connects to PostgreSQL when a URL is configured and falls back
// to the in-memory store otherwise.
func openStores(ctx context.Context, cfg *config.Config, log *logger.Logger) (*stores, error) {
	if cfg.Database.URL == "" {
		log.Warn("DATABASE_URL not set, using in-memory store")
		mem := memory.New()
		return &stores{
			catalog:     mem,
			seeder:      mem,
			enrollments: mem,
			progress:    mem,
			timers:      mem,
			wallet:      mem,
			claims:      mem,
			close:       func() {},
		}, nil
	}

	opts := postgres.DefaultPoolOptions()
	opts.MaxConns = int32(cfg.Database.MaxConns)
	opts.MinConns = int32(cfg.Database.MinConns)
	opts.MaxConnLifetime = cfg.Database.ConnMaxLifetime
	opts.MaxConnIdleTime = cfg.Database.ConnMaxIdleTime

	log.Info("connecting to database...")
	conn, err := postgres.Connect(ctx, cfg.Database.URL, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	if h, err := conn.Health(ctx); err == nil {
		log.Info("database connected",
			logger.Bool("healthy", h.Healthy),
			logger.Duration("ping", h.PingLatency),
			logger.Int("conns", int(h.TotalConns)),
		)
	}
	if cfg.Database.Migrate {
		if err := postgres.NewMigrator(conn).Migrate(ctx); err != nil {
			conn.Close()
			return nil, fmt.Errorf("failed to migrate database: %w", err)
		}
	}

	catalog := postgres.NewCatalogRepository(conn)
	prog := postgres.NewProgressRepository(conn)
	ledger := postgres.NewLedgerRepository(conn)
	return &stores{
		catalog:     catalog,
		seeder:      catalog,
		enrollments: prog,
		progress:    prog,
		timers:      prog,
		wallet:      ledger,
		claims:      ledger,
		close: func() {
			log.Info("closing database connection...")
			conn.Close()
		},
	}, nil
}

// runMigrationCommand reverts the last migration or prints the status.
func runMigrationCommand(ctx context.Context, cfg *config.Config, log *logger.Logger, fl flags) error {
	if cfg.Database.URL == "" {
		return fmt.Errorf("DATABASE_URL is required for migration commands")
	}
	conn, err := postgres.Connect(ctx, cfg.Database.URL, postgres.DefaultPoolOptions())
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	defer conn.Close()

	m := postgres.NewMigrator(conn)
	if fl.migrateDown {
		if err := m.Rollback(ctx); err != nil {
			return fmt.Errorf("failed to roll back migration: %w", err)
		}
		log.Info("last migration rolled back")
	}

	status, err := m.Status(ctx)
	if err != nil {
		return fmt.Errorf("failed to read migration status: %w", err)
	}
	for _, mig := range status {
		log.Info("migration",
			logger.Int("version", mig.Version),
			logger.String("name", mig.Name),
			logger.Bool("applied", mig.IsApplied),
		)
	}
	return nil
}

// seedCourses upserts the courses declared in the reward policy file.
func seedCourses(ctx context.Context, dst courseSeeder, seeds []config.CourseSeed) error {
	for _, s := range seeds {
		modules := make([]course.Module, 0, len(s.Modules))
		for _, m := range s.Modules {
			modules = append(modules, course.Module{
				ID:         shared.ModuleID(m.ID),
				Title:      m.Title,
				Position:   m.Position,
				IsBonus:    m.Bonus,
				UnlockCost: shared.Coins(m.UnlockCost),
			})
		}
		c, err := course.New(shared.CourseID(s.ID), s.Title, s.TimeLimitSeconds,
			shared.Coins(s.CompletionReward), shared.Coins(s.TimedReward), modules)
		if err != nil {
			return fmt.Errorf("course %d: %w", s.ID, err)
		}
		if err := dst.SaveCourse(ctx, c); err != nil {
			return fmt.Errorf("course %d: %w", s.ID, err)
		}
	}
	return nil
}
