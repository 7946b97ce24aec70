package main

import (
	"context"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"learnhub-engine/config"
	"learnhub-engine/handlers"
	"learnhub-engine/logger"
	"learnhub-engine/metrics"
	"learnhub-engine/middleware"
	"learnhub-engine/services"
	"learnhub-engine/store"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/prometheus/client_golang/prometheus"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		logger.Development("learnhub-engine").Fatal("Invalid configuration", "error", err)
	}

	log := logger.New(logger.Config{
		Level:       cfg.Log.Level,
		Format:      cfg.Log.Format,
		ServiceName: "learnhub-engine",
	})
	defer func() { _ = log.Sync() }()

	db, err := gorm.Open(postgres.Open(cfg.Database.URL), &gorm.Config{
		TranslateError: true,
		NowFunc:        func() time.Time { return time.Now().UTC() },
		Logger:         gormlogger.Default.LogMode(gormlogger.Warn),
	})
	if err != nil {
		log.Fatal("Failed to connect to database", "error", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		log.Fatal("Failed to get database handle", "error", err)
	}
	sqlDB.SetMaxOpenConns(cfg.Database.MaxOpenConns)
	sqlDB.SetMaxIdleConns(cfg.Database.MaxIdleConns)
	sqlDB.SetConnMaxLifetime(cfg.Database.ConnMaxLifetime)

	if err := services.AutoMigrate(db); err != nil {
		log.Fatal("Failed to migrate database", "error", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := services.SeedCatalog(ctx, db); err != nil {
		log.Fatal("Failed to seed catalog", "error", err)
	}

	var ttlStore store.Store
	switch cfg.Store.Backend {
	case "redis":
		rs, err := store.NewRedisStore(store.RedisConfig{
			Address:  cfg.Store.RedisAddr,
			Password: cfg.Store.RedisPassword,
			DB:       cfg.Store.RedisDB,
			Prefix:   "learnhub:",
		})
		if err != nil {
			log.Fatal("Failed to connect to Redis", "error", err)
		}
		defer rs.Close()
		ttlStore = rs
	default:
		ttlStore = store.NewMemoryStore()
	}
	log.Info("TTL store ready", "backend", cfg.Store.Backend)

	m := metrics.New(prometheus.DefaultRegisterer)

	hackathons := services.NewHackathonService(db, log, m)
	events := services.NewGamificationService(db, ttlStore, services.AntiAbuseConfig{
		VelocityMaxEvents: cfg.Gamification.VelocityMaxEvents,
		VelocityWindow:    cfg.Gamification.VelocityWindow,
		DedupTTL:          cfg.Gamification.DedupTTL,
	}, log, m)

	sched, err := services.StartPhaseReconciler(hackathons, cfg.Scheduler.ReconcileInterval)
	if err != nil {
		log.Fatal("Failed to start phase reconciler", "error", err)
	}

	limiter := middleware.NewRateLimiter(cfg.RateLimit.RPS, cfg.RateLimit.Burst, cfg.RateLimit.ClientTTL)
	go limiter.CleanupVisitors(ctx)

	app := fiber.New(fiber.Config{
		BodyLimit:               cfg.Server.BodyLimit,
		ProxyHeader:             fiber.HeaderXForwardedFor,
		EnableTrustedProxyCheck: true,
		TrustedProxies:          cfg.Server.Proxies(),
		EnableIPValidation:      true,
	})

	app.Use(recover.New())
	app.Use(middleware.RequestID())
	app.Use(middleware.MetricsMiddleware(m))
	app.Use(cors.New(cors.Config{
		AllowOrigins:     strings.Join(cfg.Server.Origins(), ","),
		AllowMethods:     "GET,POST,PUT,DELETE,OPTIONS,PATCH,HEAD",
		AllowHeaders:     "Origin, Content-Type, Accept, Authorization, X-Requested-With, X-Request-ID, X-User-ID, X-User-Roles",
		ExposeHeaders:    "Content-Length, Content-Type, X-Request-ID",
		AllowCredentials: true,
		MaxAge:           86400,
	}))

	// Probes and scrapers do not carry the gateway token.
	handlers.SetupSystemRoutes(app, db, prometheus.DefaultGatherer)

	// GLOBAL: only gateway requests past this point.
	app.Use(middleware.GatewayAuthMiddleware(cfg.Server.ServiceToken, log))
	app.Use(limiter.Handler())

	handlers.SetupRoutes(app, &handlers.Handler{
		Hackathons:  hackathons,
		Events:      events,
		Badges:      services.NewBadgeService(db, log),
		Leaderboard: services.NewLeaderboardService(db, cfg.Gamification.LeaderboardLimit),
		Rewards:     services.NewRewardService(db, log, m),
		Quests:      services.NewQuestService(db, log, m),
		Log:         log,
	})

	go func() {
		if err := app.Listen(cfg.Server.Addr()); err != nil {
			log.Error("Server error", "error", err)
			stop()
		}
	}()

	log.Info("Server running",
		"addr", cfg.Server.Addr(),
		"origins", cfg.Server.Origins(),
		"reconcile_interval", cfg.Scheduler.ReconcileInterval.String())

	<-ctx.Done()
	log.Info("Shutting down server...")

	if err := sched.Shutdown(); err != nil {
		log.Warn("Scheduler shutdown failed", "error", err)
	}
	if err := app.ShutdownWithTimeout(10 * time.Second); err != nil {
		log.Warn("HTTP shutdown failed", "error", err)
	}
	if err := sqlDB.Close(); err != nil {
		log.Warn("Database close failed", "error", err)
	}
}
