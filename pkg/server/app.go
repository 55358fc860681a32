package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/arnavshah/staff-scheduler-api/pkg/attendance"
	"github.com/arnavshah/staff-scheduler-api/pkg/auth"
	"github.com/arnavshah/staff-scheduler-api/pkg/config"
	"github.com/arnavshah/staff-scheduler-api/pkg/database"
	"github.com/arnavshah/staff-scheduler-api/pkg/handlers"
	"github.com/arnavshah/staff-scheduler-api/pkg/ledger"
	"github.com/arnavshah/staff-scheduler-api/pkg/models"
	"github.com/arnavshah/staff-scheduler-api/pkg/scheduler"
	"github.com/arnavshah/staff-scheduler-api/pkg/seed"
	"github.com/arnavshah/staff-scheduler-api/pkg/store/memory"
	"github.com/arnavshah/staff-scheduler-api/pkg/store/sqlstore"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"
)

const demoDays = 7

// App is a fully wired service
type App struct {
	Engine *gin.Engine
	DB     *gorm.DB
	Ledger *ledger.Ledger

	redis redis.UniversalClient
}

type rosterStore interface {
	handlers.Roster
	ledger.Store
	attendance.Store
}

// Build opens storage, ensures the admin account, applies seed data and
// returns the router with every dependency attached.
func Build(ctx context.Context, cfg config.Config, logger *slog.Logger) (*App, error) {
	if logger == nil {
		logger = slog.Default()
	}

	db, err := database.InitDB(cfg.DatabaseURL, cfg.DataPath, logger)
	if err != nil {
		return nil, err
	}
	app := &App{DB: db}

	if err := auth.EnsureAdminExists(ctx, db, cfg.AdminUsername, cfg.AdminPassword); err != nil {
		app.Close()
		return nil, fmt.Errorf("ensure admin: %w", err)
	}

	var store rosterStore
	switch cfg.StoreDriver {
	case config.DriverMemory:
		store = memory.NewStore()
		logger.Warn("roster is held in memory and will not survive a restart")
	default:
		store = sqlstore.New(db, logger)
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	opts := []ledger.Option{
		ledger.WithRules(ledger.Rules{DailyHourCap: cfg.DailyHourCap, OneShiftPerDay: cfg.OneShiftPerDay}),
		ledger.WithLogger(logger),
		ledger.WithMetrics(ledger.NewMetrics(registry)),
	}
	pingers := map[string]handlers.Pinger{}
	if sqlDB, err := db.DB(); err == nil {
		pingers["database"] = sqlDB
	}
	if cfg.RedisAddr != "" {
		app.redis = redis.NewClient(&redis.Options{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		})
		opts = append(opts, ledger.WithLocker(ledger.NewRedisLocker(app.redis, cfg.LockTTL)))
		pingers["redis"] = RedisPinger{Client: app.redis}
		logger.Info("using redis locks", "addr", cfg.RedisAddr)
	}
	app.Ledger = ledger.New(store, opts...)

	if err := seedRoster(ctx, cfg, store, logger); err != nil {
		app.Close()
		return nil, err
	}

	h := &handlers.Handler{
		Ledger:     app.Ledger,
		Roster:     store,
		Attendance: attendance.NewLog(store, app.Ledger, logger),
		Planner:    scheduler.NewPlanner(store, store, app.Ledger, logger),
		DB:         db,
		Tokens:     auth.NewTokens(cfg.JWTSecret, cfg.TokenTTL),
		APISecret:  cfg.APIMasterSecret,
		Limiter:    handlers.NewLimiter(cfg.RateLimitRPS, cfg.RateLimitBurst),
		Pingers:    pingers,
		Logger:     logger,
	}
	app.Engine = NewRouter(h, Options{CORSOrigins: cfg.CORSOrigins, Gatherer: registry})
	return app, nil
}

func seedRoster(ctx context.Context, cfg config.Config, store seed.Target, logger *slog.Logger) error {
	if cfg.SeedFile != "" {
		r, err := seed.LoadFile(cfg.SeedFile)
		if err != nil {
			return err
		}
		stats, err := seed.Apply(ctx, store, r)
		if err != nil {
			return fmt.Errorf("apply seed file: %w", err)
		}
		logger.Info("seed file applied",
			"path", cfg.SeedFile,
			"staff_created", stats.StaffCreated,
			"shifts_created", stats.ShiftsCreated,
		)
	}

	if !cfg.SeedDemo {
		return nil
	}
	existing, err := store.ListShifts(ctx, models.ShiftFilter{})
	if err != nil {
		return err
	}
	if len(existing) > 0 {
		return nil
	}
	stats, err := seed.Apply(ctx, store, seed.Roster{Shifts: seed.DemoShifts(time.Now().UTC(), demoDays)})
	if err != nil {
		return fmt.Errorf("seed demo shifts: %w", err)
	}
	logger.Info("demo shifts created", "count", stats.ShiftsCreated)
	return nil
}

// Close releases the database and redis connections
func (a *App) Close() error {
	var errs []error
	if a.redis != nil {
		errs = append(errs, a.redis.Close())
	}
	errs = append(errs, database.Close(a.DB))
	return errors.Join(errs...)
}
