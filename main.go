// Package main provides the main entry point for the shortlink service
package main

import (
	"context"
	"errors"
	"fmt"
	"os/signal"
	"syscall"
	"time"

	"github.com/amirphl/shortlink/app/handlers"
	"github.com/amirphl/shortlink/app/middleware"
	"github.com/amirphl/shortlink/app/router"
	"github.com/amirphl/shortlink/app/scheduler"
	"github.com/amirphl/shortlink/app/services"
	businessflow "github.com/amirphl/shortlink/business_flow"
	"github.com/amirphl/shortlink/config"
	"github.com/amirphl/shortlink/logging"
	"github.com/amirphl/shortlink/migrations"
	"github.com/amirphl/shortlink/repository"
	"github.com/gofiber/fiber/v3"
	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/errgroup"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

// Application represents the main application structure
type Application struct {
	router    *router.FiberRouter
	config    *config.ProductionConfig
	server    *fiber.App
	dashboard *handlers.DashboardHandler
	stopFuncs []func()
	closers   []func() error
}

func main() {
	// Load production configuration
	cfg, err := config.LoadProductionConfig()
	if err != nil {
		logging.Fatal().Err(err).Msg("Failed to load configuration")
	}

	logging.Init(logging.Config{
		Level:      cfg.Logging.Level,
		Format:     cfg.Logging.Format,
		Caller:     cfg.Logging.EnableCaller,
		FilePath:   cfg.Logging.FilePath,
		MaxSize:    cfg.Logging.MaxSize,
		MaxBackups: cfg.Logging.MaxBackups,
		MaxAge:     cfg.Logging.MaxAge,
		Compress:   cfg.Logging.Compress,
	})
	logging.Info().
		Str("app", cfg.App.Name).
		Str("version", cfg.App.Version).
		Str("environment", cfg.App.Environment).
		Msg("Starting shortlink application")

	// Initialize application
	app, err := initializeApplication(cfg)
	if err != nil {
		logging.Fatal().Err(err).Msg("Failed to initialize application")
	}

	// Setup routes
	app.router.SetupRoutes()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	g, gctx := errgroup.WithContext(ctx)

	// Start server
	g.Go(func() error {
		address := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
		if err := app.router.Start(address); err != nil {
			return fmt.Errorf("server stopped: %w", err)
		}
		return nil
	})

	// Wait for shutdown signal or a listener failure
	g.Go(func() error {
		<-gctx.Done()
		logging.Info().Msg("Shutting down gracefully...")

		// Stop background workers
		for _, fn := range app.stopFuncs {
			fn()
		}

		// Live streams never finish on their own
		app.dashboard.CloseStreams()

		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer shutdownCancel()

		if err := app.server.ShutdownWithContext(shutdownCtx); err != nil {
			logging.Error().Err(err).Msg("Error during shutdown")
		}
		return nil
	})

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		logging.Error().Err(err).Msg("Server exited with error")
	}

	for _, closeFn := range app.closers {
		if err := closeFn(); err != nil {
			logging.Warn().Err(err).Msg("Error releasing resource")
		}
	}

	logging.Info().Msg("Server stopped")
}

// initializeDatabase initializes the database connection with connection pooling
func initializeDatabase(cfg config.DatabaseConfig, logLevel string) (*gorm.DB, error) {
	db, err := gorm.Open(postgres.Open(cfg.DSN()), &gorm.Config{
		Logger:         logging.GormLogger(logLevel, cfg.SlowQueryTime),
		TranslateError: true,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	// Get underlying sql.DB for connection pooling configuration
	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get underlying sql.DB: %w", err)
	}

	// Configure connection pooling
	sqlDB.SetMaxOpenConns(cfg.MaxOpenConns)
	sqlDB.SetMaxIdleConns(cfg.MaxIdleConns)
	sqlDB.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	sqlDB.SetConnMaxIdleTime(cfg.ConnMaxIdleTime)

	// Test the connection
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := sqlDB.PingContext(ctx); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	if cfg.AutoMigrate {
		applied, err := migrations.Apply(ctx, sqlDB)
		if err != nil {
			return nil, fmt.Errorf("failed to apply migrations: %w", err)
		}
		logging.Info().Int("applied", applied).Msg("Database migrations up to date")
	}

	logging.Info().
		Int("max_open_conns", cfg.MaxOpenConns).
		Int("max_idle_conns", cfg.MaxIdleConns).
		Msg("Database connection established")

	return db, nil
}

// initializeCache initializes the Redis client and verifies connectivity.
// A nil client means the in-process implementations are used instead.
func initializeCache(cfg config.CacheConfig) (*redis.Client, error) {
	if !cfg.Enabled {
		return nil, nil
	}

	opt, err := redis.ParseURL(cfg.RedisURL)
	if err != nil {
		return nil, fmt.Errorf("invalid redis url: %w", err)
	}

	rc := redis.NewClient(opt)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := rc.Ping(ctx).Err(); err != nil {
		_ = rc.Close()
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	logging.Info().Str("addr", opt.Addr).Int("db", opt.DB).Msg("Redis connection established")
	return rc, nil
}

// startCacheHealthMonitor starts a background goroutine that periodically pings Redis
// to detect connectivity issues. The returned cancel function stops the monitor.
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
				ctx, c := context.WithTimeout(monitorCtx, 3*time.Second)
				if err := client.Ping(ctx).Err(); err != nil {
					logging.Warn().Err(err).Msg("Redis healthcheck failed")
				}
				c()
			}
		}
	}()
	return cancel
}

// sharedState holds the stores that are shared between instances when redis is available
type sharedState struct {
	revocations services.RevocationStore
	linkCache   services.LinkCache
	notifier    services.ChangeNotifier
}

func initializeSharedState(cfg config.CacheConfig, rc *redis.Client) sharedState {
	if rc == nil {
		logging.Warn().Msg("Redis disabled; revocations, link cache and live updates are local to this instance")
		return sharedState{
			revocations: services.NewMemoryRevocationStore(),
			linkCache:   services.NewBoundedMemoryLinkCache(cfg.LinkTTL, cfg.MemoryMaxEntries),
			notifier:    services.NewMemoryChangeNotifier(),
		}
	}

	breaker := services.BreakerSettings{
		MaxFailures: cfg.BreakerMaxFailures,
		OpenTimeout: cfg.BreakerOpenTimeout,
	}
	return sharedState{
		revocations: services.NewRedisRevocationStore(rc, cfg.RedisPrefix, breaker),
		linkCache:   services.NewRedisLinkCache(rc, cfg.RedisPrefix, cfg.LinkTTL, breaker),
		notifier:    services.NewRedisChangeNotifier(rc, cfg.RedisPrefix, breaker),
	}
}

// initializeApplication initializes the main application components
func initializeApplication(cfg *config.ProductionConfig) (*Application, error) {
	var stopFuncs []func()
	var closers []func() error

	// Initialize database
	db, err := initializeDatabase(cfg.Database, cfg.Logging.Level)
	if err != nil {
		return nil, err
	}
	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}
	closers = append(closers, sqlDB.Close)

	// Redis only carries shared state; the service still works on one instance without it
	rc, err := initializeCache(cfg.Cache)
	if err != nil {
		logging.Error().Err(err).Msg("Redis unavailable, falling back to in-process stores")
		rc = nil
	}
	if rc != nil {
		stopFuncs = append(stopFuncs, startCacheHealthMonitor(context.Background(), rc, cfg.Cache.HealthInterval))
		closers = append(closers, rc.Close)
	}
	shared := initializeSharedState(cfg.Cache, rc)

	// Initialize repositories
	tx := repository.NewGormTransactor(db)
	userRepo := repository.NewUserRepository(db)
	sessionRepo := repository.NewUserSessionRepository(db)
	auditRepo := repository.NewAuditLogRepository(db)
	linkRepo := repository.NewLinkRepository(db)
	clickRepo := repository.NewLinkClickRepository(db)

	// Initialize token service
	tokenService, err := services.NewTokenService(
		cfg.JWT.AccessTokenTTL,
		cfg.JWT.RefreshTokenTTL,
		cfg.JWT.Issuer,
		cfg.JWT.Audience,
		cfg.JWT.UseRSAKeys,
		cfg.JWT.PrivateKey,
		cfg.JWT.PublicKey,
		cfg.JWT.SecretKey,
		shared.revocations,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize token service: %w", err)
	}
	logging.Info().Str("issuer", cfg.JWT.Issuer).Str("audience", cfg.JWT.Audience).Msg("Token service initialized")

	var captchaSvc services.CaptchaService
	if cfg.Captcha.SignupEnabled {
		captchaSvc = services.NewCaptchaService(cfg.Captcha.TTL, cfg.Captcha.Padding)
	}

	// Initialize flows
	signupFlow := businessflow.NewSignupFlow(
		tx,
		userRepo,
		sessionRepo,
		auditRepo,
		tokenService,
		captchaSvc,
		businessflow.PasswordSettings{
			MinLength:  cfg.Security.PasswordMinLength,
			BcryptCost: cfg.Security.BcryptCost,
		},
	)

	loginFlow := businessflow.NewLoginFlow(
		tx,
		userRepo,
		sessionRepo,
		auditRepo,
		tokenService,
	)

	linkFlow := businessflow.NewLinkFlow(
		tx,
		linkRepo,
		auditRepo,
		shared.linkCache,
		shared.notifier,
		businessflow.LinkSettings{
			MaxLinksPerUser:   cfg.Links.MaxLinksPerUser,
			MaxURLLength:      cfg.Links.MaxURLLength,
			ShortCodeLength:   cfg.Links.ShortCodeLength,
			ShortCodeAttempts: cfg.Links.ShortCodeAttempts,
		},
	)

	clickFlow := businessflow.NewClickFlow(tx, linkRepo, clickRepo, shared.linkCache, shared.notifier)
	analyticsFlow := businessflow.NewAnalyticsFlow(linkRepo, clickRepo, cfg.Analytics.Mode, cfg.Analytics.Timezone)
	dashboardFlow := businessflow.NewDashboardFlow(linkFlow, analyticsFlow, cfg.Dashboard.FetchTimeout)
	resolver := businessflow.NewRedirectResolver(clickFlow)

	// Initialize handlers
	timeout := cfg.Server.RequestTimeout
	authHandler := handlers.NewAuthHandler(signupFlow, loginFlow, captchaSvc, handlers.CookieSettings{
		Name:     cfg.Security.SessionCookieName,
		Secure:   cfg.Security.SessionCookieSecure,
		HTTPOnly: cfg.Security.SessionCookieHTTPOnly,
		SameSite: cfg.Security.SessionCookieSameSite,
	}, timeout)
	linkHandler := handlers.NewLinkHandler(linkFlow, cfg.App.BaseURL, timeout)
	dashboardHandler := handlers.NewDashboardHandler(dashboardFlow, shared.notifier, handlers.DashboardSettings{
		RefetchInterval:   cfg.Dashboard.RefetchInterval,
		HeartbeatInterval: cfg.Dashboard.HeartbeatInterval,
	}, cfg.App.BaseURL, timeout)
	redirectHandler := handlers.NewRedirectHandler(resolver, cfg.App.Name, timeout)
	spaHandler := handlers.NewSPAHandler(tokenService, cfg.Server.StaticDir, cfg.Security.SessionCookieName, timeout)

	checks := map[string]handlers.HealthCheck{
		"database": sqlDB.PingContext,
	}
	if rc != nil {
		checks["redis"] = func(ctx context.Context) error {
			return rc.Ping(ctx).Err()
		}
	}
	systemHandler := handlers.NewSystemHandler(cfg.App.Name, cfg.App.Version, checks)

	// Initialize auth middleware
	authMiddleware := middleware.NewAuthMiddleware(tokenService, cfg.Security.SessionCookieName)

	// Initialize router
	appRouter := router.NewFiberRouter(cfg, router.Handlers{
		Auth:      authHandler,
		Link:      linkHandler,
		Dashboard: dashboardHandler,
		Redirect:  redirectHandler,
		SPA:       spaHandler,
		System:    systemHandler,
		AuthMW:    authMiddleware,
	})

	if cfg.Security.SessionCleanupInterval > 0 {
		sched := scheduler.NewSessionCleanupScheduler(sessionRepo, cfg.Security.SessionCleanupInterval)
		stopFuncs = append(stopFuncs, sched.Start(context.Background()))
	}

	return &Application{
		router:    appRouter,
		config:    cfg,
		server:    appRouter.GetApp(),
		dashboard: dashboardHandler,
		stopFuncs: stopFuncs,
		closers:   closers,
	}, nil
}
