// Package main provides the main entry point for the Kitsune lead attribution service
package main

import (
	"context"
	"database/sql"
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/amirphl/Kitsune/app/handlers"
	"github.com/amirphl/Kitsune/app/middleware"
	"github.com/amirphl/Kitsune/app/router"
	"github.com/amirphl/Kitsune/app/scheduler"
	"github.com/amirphl/Kitsune/app/services"
	businessflow "github.com/amirphl/Kitsune/business_flow"
	"github.com/amirphl/Kitsune/config"
	"github.com/amirphl/Kitsune/models"
	"github.com/amirphl/Kitsune/repository"
	"github.com/amirphl/Kitsune/utils"
	_ "github.com/lib/pq"
	"github.com/redis/go-redis/v9"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
	_ "modernc.org/sqlite"
)

// Application represents the main application structure
type Application struct {
	router    router.Router
	config    *config.ProductionConfig
	stopFuncs []func()
}

func main() {
	cfg, err := config.LoadProductionConfig()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	_, logCloser, err := config.ApplyLogging(cfg.Logging)
	if err != nil {
		log.Fatalf("Failed to configure logging: %v", err)
	}
	defer logCloser.Close()

	log.Printf("Starting Kitsune %s (%s, commit %s)...", cfg.Deployment.Version, cfg.Deployment.Environment, cfg.Deployment.CommitHash)

	app, err := initializeApplication(cfg)
	if err != nil {
		log.Fatalf("Failed to initialize application: %v", err)
	}

	app.router.SetupRoutes()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		address := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
		if err := app.router.Start(address); err != nil {
			log.Fatalf("Failed to start server: %v", err)
		}
	}()

	<-sigChan
	log.Println("Shutting down gracefully...")

	if err := app.router.Shutdown(); err != nil {
		log.Printf("Error during shutdown: %v", err)
	}

	for _, fn := range app.stopFuncs {
		fn()
	}

	log.Println("Server stopped")
}

// initializeDatabase opens the configured database and applies connection pooling
func initializeDatabase(cfg config.DatabaseConfig) (*gorm.DB, error) {
	gormCfg := &gorm.Config{
		Logger: logger.New(log.Default(), logger.Config{
			SlowThreshold:             cfg.SlowQueryTime,
			LogLevel:                  logger.Warn,
			IgnoreRecordNotFoundError: true,
		}),
		NowFunc: utils.UTCNow,
	}

	var (
		db  *gorm.DB
		err error
	)
	switch cfg.Driver {
	case "sqlite":
		db, err = gorm.Open(sqlite.Dialector{
			DriverName: "sqlite",
			DSN:        fmt.Sprintf("file:%s?_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)", cfg.SQLitePath),
		}, gormCfg)
	default:
		if err := preflightPostgres(cfg); err != nil {
			return nil, err
		}
		db, err = gorm.Open(postgres.Open(cfg.PostgresDSN()), gormCfg)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get underlying sql.DB: %w", err)
	}

	if cfg.Driver == "sqlite" {
		// a single writer avoids SQLITE_BUSY under concurrent submissions
		sqlDB.SetMaxOpenConns(1)
	} else {
		sqlDB.SetMaxOpenConns(cfg.MaxOpenConns)
		sqlDB.SetMaxIdleConns(cfg.MaxIdleConns)
		sqlDB.SetConnMaxLifetime(cfg.ConnMaxLifetime)
		sqlDB.SetConnMaxIdleTime(cfg.ConnMaxIdleTime)
	}

	if err := sqlDB.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	log.Printf("Database connection established (driver=%s, max_open=%d, max_idle=%d)",
		cfg.Driver, cfg.MaxOpenConns, cfg.MaxIdleConns)

	return db, nil
}

// preflightPostgres checks credentials through lib/pq so a bad DSN fails before the pool is built
func preflightPostgres(cfg config.DatabaseConfig) error {
	raw, err := sql.Open("postgres", cfg.PostgresDSN())
	if err != nil {
		return fmt.Errorf("invalid postgres dsn: %w", err)
	}
	defer raw.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := raw.PingContext(ctx); err != nil {
		return fmt.Errorf("postgres preflight failed for %s:%d/%s: %w", cfg.Host, cfg.Port, cfg.Name, err)
	}
	return nil
}

// initializeCache initializes the Cache client and verifies connectivity
func initializeCache(cfg config.CacheConfig) (*redis.Client, error) {
	if !cfg.Enabled || cfg.Provider != "redis" {
		return nil, nil
	}

	opt, err := redis.ParseURL(cfg.RedisURL)
	if err != nil {
		return nil, fmt.Errorf("invalid redis url: %w", err)
	}
	opt.DB = cfg.RedisDB

	rc := redis.NewClient(opt)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := rc.Ping(ctx).Err(); err != nil {
		_ = rc.Close()
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	log.Printf("Redis connection established (db=%d)", cfg.RedisDB)
	return rc, nil
}

func startCacheHealthMonitor(parent context.Context, client *redis.Client, interval time.Duration) func() {
	monitorCtx, cancel := context.WithCancel(parent)
	if interval <= 0 {
		interval = 30 * time.Second
	}
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-monitorCtx.Done():
				return
			case <-ticker.C:
				ctx, c := context.WithTimeout(context.Background(), 3*time.Second)
				if err := client.Ping(ctx).Err(); err != nil {
					log.Printf("Redis healthcheck failed: %v", err)
				}
				c()
			}
		}
	}()
	return cancel
}

// ensureAdminUser creates the bootstrap admin once; an existing username is left untouched
func ensureAdminUser(ctx context.Context, userRepo repository.UserRepository, cfg config.BootstrapConfig, cost int) error {
	if cfg.AdminUsername == "" {
		return nil
	}
	existing, err := userRepo.ByUsername(ctx, cfg.AdminUsername)
	if err != nil {
		return fmt.Errorf("failed to look up bootstrap admin: %w", err)
	}
	if existing != nil {
		return nil
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(cfg.AdminPassword), cost)
	if err != nil {
		return fmt.Errorf("failed to hash bootstrap admin password: %w", err)
	}
	admin := &models.User{
		Username:     cfg.AdminUsername,
		Email:        cfg.AdminEmail,
		PasswordHash: string(hash),
		Role:         models.UserRoleAdmin,
		IsActive:     utils.ToPtr(true),
	}
	if err := userRepo.Save(ctx, admin); err != nil {
		return fmt.Errorf("failed to create bootstrap admin: %w", err)
	}
	log.Printf("Bootstrap admin %q created", cfg.AdminUsername)
	return nil
}

func initializeApplication(cfg *config.ProductionConfig) (*Application, error) {
	var stopFuncs []func()

	db, err := initializeDatabase(cfg.Database)
	if err != nil {
		return nil, err
	}
	if sqlDB, err := db.DB(); err == nil {
		stopFuncs = append(stopFuncs, closeFunc("database", sqlDB))
	}

	if cfg.Database.AutoMigrate {
		if err := db.AutoMigrate(models.All()...); err != nil {
			return nil, fmt.Errorf("failed to migrate database: %w", err)
		}
	}

	rc, err := initializeCache(cfg.Cache)
	if err != nil {
		return nil, err
	}
	if rc != nil {
		stopFuncs = append(stopFuncs, startCacheHealthMonitor(context.Background(), rc, cfg.Cache.HealthInterval))
		stopFuncs = append(stopFuncs, closeFunc("redis", rc))
	}

	userRepo := repository.NewUserRepository(db)
	formRepo := repository.NewFormRepository(db)
	affiliateRepo := repository.NewAffiliateRepository(db)
	assignmentRepo := repository.NewAffiliateFormAssignmentRepository(db)
	leadRepo := repository.NewLeadRepository(db)
	noteRepo := repository.NewLeadNoteRepository(db)
	statusChangeRepo := repository.NewLeadStatusChangeRepository(db)
	settingRepo := repository.NewSettingRepository(db)

	bootCtx, bootCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer bootCancel()
	if err := ensureAdminUser(bootCtx, userRepo, cfg.Bootstrap, cfg.Security.BcryptCost); err != nil {
		return nil, err
	}

	tokenService, err := services.NewTokenService(
		cfg.JWT.AccessTokenTTL,
		cfg.JWT.RefreshTokenTTL,
		cfg.JWT.Issuer,
		cfg.JWT.Audience,
		cfg.JWT.UseRSAKeys,
		cfg.JWT.PrivateKey,
		cfg.JWT.PublicKey,
		cfg.JWT.SecretKey,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize token service: %w", err)
	}

	log.Printf("Token service initialized with issuer: %s, audience: %s", cfg.JWT.Issuer, cfg.JWT.Audience)

	// Both fall back to in-process implementations when rc is nil
	statsCache := businessflow.NewStatsCache(rc, cfg.Cache.RedisPrefix, cfg.Stats.CacheTTL)
	locker := businessflow.NewLocker(rc, cfg.Cache.RedisPrefix, cfg.Cache.RecomputeLockTTL)

	counters := businessflow.NewCounterMaintainer(affiliateRepo, assignmentRepo, leadRepo, db)
	aggregator := businessflow.NewStatsAggregator(leadRepo, formRepo, affiliateRepo, statsCache, cfg.Stats)

	attributionFlow := businessflow.NewAttributionFlow(formRepo, affiliateRepo, leadRepo, counters, db)
	authFlow := businessflow.NewAuthFlow(userRepo, affiliateRepo, tokenService)
	dashboardFlow := businessflow.NewDashboardFlow(formRepo, affiliateRepo, leadRepo)
	statsFlow := businessflow.NewStatsFlow(aggregator, formRepo, cfg.Stats)
	leadFlow := businessflow.NewLeadFlow(leadRepo, formRepo, noteRepo, statusChangeRepo, counters, db, cfg.Stats)
	exportFlow := businessflow.NewExportFlow(leadRepo, formRepo, cfg.Stats)
	formFlow := businessflow.NewFormFlow(formRepo, leadRepo)
	affiliateFlow := businessflow.NewAffiliateFlow(userRepo, affiliateRepo, assignmentRepo, formRepo, counters, locker, db, cfg.Security.BcryptCost)
	userFlow := businessflow.NewUserFlow(userRepo, cfg.Security.BcryptCost)
	settingFlow := businessflow.NewSettingFlow(settingRepo, db)

	if cfg.Scheduler.CounterReconcileEnabled {
		reconciler := scheduler.NewCounterScheduler(affiliateFlow, nil, cfg.Scheduler.CounterReconcileInterval, cfg.Scheduler.CounterReconcileTimeout)
		stopFuncs = append([]func(){reconciler.Start(context.Background())}, stopFuncs...)
		log.Printf("Counter reconciliation scheduled every %s", cfg.Scheduler.CounterReconcileInterval)
	}

	authMiddleware := middleware.NewAuthMiddleware(tokenService)

	checks := map[string]router.HealthChecker{
		"database": func() error {
			sqlDB, err := db.DB()
			if err != nil {
				return err
			}
			ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
			defer cancel()
			return sqlDB.PingContext(ctx)
		},
	}
	if rc != nil {
		checks["redis"] = func() error {
			ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
			defer cancel()
			return rc.Ping(ctx).Err()
		}
	}

	appRouter := router.NewFiberRouter(cfg, router.Handlers{
		Submission: handlers.NewSubmissionHandler(attributionFlow),
		Auth:       handlers.NewAuthHandler(authFlow),
		Dashboard:  handlers.NewDashboardHandler(dashboardFlow),
		Stats:      handlers.NewStatsHandler(statsFlow),
		Lead:       handlers.NewLeadHandler(leadFlow, exportFlow),
		FormAdmin:  handlers.NewFormAdminHandler(formFlow),
		Affiliate:  handlers.NewAffiliateAdminHandler(affiliateFlow),
		Setting:    handlers.NewSettingHandler(settingFlow),
		Users:      handlers.NewUserAdminHandler(userFlow),
	}, authMiddleware, checks)

	return &Application{
		router:    appRouter,
		config:    cfg,
		stopFuncs: stopFuncs,
	}, nil
}

func closeFunc(name string, c io.Closer) func() {
	return func() {
		if err := c.Close(); err != nil {
			log.Printf("Error closing %s: %v", name, err)
		}
	}
}
