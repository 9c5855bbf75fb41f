package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"

	config "github.com/avatarctic/brandhub/configs"
	"github.com/avatarctic/brandhub/internal/application/services"
	"github.com/avatarctic/brandhub/internal/infrastructure/breaker"
	"github.com/avatarctic/brandhub/internal/infrastructure/db"
	"github.com/avatarctic/brandhub/internal/infrastructure/envelope"
	"github.com/avatarctic/brandhub/internal/infrastructure/health"
	"github.com/avatarctic/brandhub/internal/infrastructure/httpserver"
	"github.com/avatarctic/brandhub/internal/infrastructure/redis"
	"github.com/avatarctic/brandhub/internal/infrastructure/repositories"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		log.Fatal("Failed to load configuration:", err)
	}

	logger := newLogger(cfg.Log)
	logger.WithField("environment", cfg.Environment).Info("Starting brandhub...")

	// Primary database and migrations
	database, err := db.NewDatabaseWithConfig(&cfg.Database)
	if err != nil {
		logger.Fatal("Failed to connect to database:", err)
	}
	logger.Info("Connected to database successfully")

	if err := database.Migrate(cfg.Database.MigrationsPath); err != nil {
		logger.Warn("Failed to run migrations:", err)
	}

	breakers := breaker.NewRegistry(breaker.Settings{
		FailureThreshold: cfg.Breaker.FailureThreshold,
		SuccessThreshold: cfg.Breaker.SuccessThreshold,
		ResetTimeout:     cfg.Breaker.ResetTimeout,
		Timeout:          cfg.Breaker.Timeout,
	}, logger)

	// Read replicas
	replicas, err := db.OpenReplicas(context.Background(), cfg.Replicas.Nodes, &cfg.Database, logger)
	if err != nil {
		logger.Fatal("Failed to open read replicas:", err)
	}
	router := db.NewRouter(database.DB, replicas, breakers, db.RouterOptions{
		QueryTimeout: cfg.Replicas.QueryTimeout,
		Retries:      cfg.Replicas.Retries,
		MaxErrors:    cfg.Replicas.MaxErrors,
	}, logger)
	logger.WithField("replicas", len(replicas)).Info("Replica router ready")

	// Cache
	cacheManager, err := redis.NewManager(&cfg.Cache, cfg.IsProductionLike(), logger)
	if err != nil {
		logger.Fatal("Failed to configure cache:", err)
	}
	cacheManager.OnStatusChange(func(from, to redis.Status) {
		logger.WithFields(logrus.Fields{"from": from, "to": to}).Info("cache connection status changed")
	})
	if err := cacheManager.Connect(context.Background()); err != nil {
		// the store degrades to the database until the backend answers
		logger.WithError(err).Warn("Cache unreachable at startup")
	}

	keyring, err := envelope.NewKeyring(cfg.Encryption.Keys)
	if err != nil {
		logger.Fatal("Failed to load cache encryption keys:", err)
	}
	if !keyring.Enabled() {
		logger.Warn("No cache encryption key configured; values with sensitive fields will not be cached")
	}

	store := redis.NewStore(cacheManager, keyring, breakers, redis.StoreOptions{
		Prefix:          cfg.Cache.KeyPrefix,
		DefaultTTL:      cfg.Cache.DefaultTTL,
		TagTTL:          cfg.Cache.TagTTL,
		OpTimeout:       cfg.Cache.OpTimeout,
		SensitiveFields: cfg.Cache.SensitiveFields,
	}, logger)

	// Repositories, decorated with caching
	businessRepo := repositories.NewCachingBusinessRepository(repositories.NewBusinessRepository(database, logger), store, cfg.Cache.EntityTTL)
	brandRepo := repositories.NewCachingBrandRepository(repositories.NewBrandRepository(database), store, cfg.Cache.EntityTTL)
	analyticsRepo := repositories.NewCachingAnalyticsRepository(repositories.NewAnalyticsRepository(router, logger), store, cfg.Cache.ReportTTL, logger)
	rateLimitRepo := repositories.NewRateLimitRepository(store)

	// Services
	businessService := services.NewBusinessService(businessRepo, logger)
	brandService := services.NewBrandService(brandRepo, businessRepo, logger)
	analyticsService := services.NewAnalyticsService(analyticsRepo, brandRepo)
	rateLimiterService := services.NewRateLimiterService(rateLimitRepo, businessRepo, &services.RateLimiterConfig{
		DefaultRequestsPerMinute: cfg.RateLimit.DefaultRequestsPerMinute,
		BurstMultiplier:          cfg.RateLimit.BurstMultiplier,
		Window:                   cfg.RateLimit.Window,
		KeyPrefix:                cfg.Cache.KeyPrefix + ":" + cfg.RateLimit.KeyPrefix,
	}, logger)

	// Health monitor
	monitor := health.NewMonitor(cfg.Health.Interval, cfg.Health.Timeout, logger,
		health.Check{Checker: health.NewDBHealthChecker(database), Critical: true},
		health.Check{Checker: health.NewCacheHealthChecker(store)},
		health.Check{Checker: health.NewReplicaHealthChecker(router)},
	)
	monitorCtx, stopMonitor := context.WithCancel(context.Background())
	monitor.Start(monitorCtx)

	serverConfig := &httpserver.ServerConfig{
		Host:           cfg.Server.Host,
		Port:           cfg.Server.Port,
		ReadTimeout:    cfg.Server.ReadTimeout,
		WriteTimeout:   cfg.Server.WriteTimeout,
		IdleTimeout:    cfg.Server.IdleTimeout,
		TLSCertFile:    cfg.Server.TLSCertFile,
		TLSKeyFile:     cfg.Server.TLSKeyFile,
		AllowedOrigins: cfg.Server.AllowedOrigins,
		Environment:    cfg.Environment,
	}

	server := httpserver.NewServer(serverConfig, logger, httpserver.ServerDeps{
		BusinessService:    businessService,
		BrandService:       brandService,
		AnalyticsService:   analyticsService,
		RateLimiterService: rateLimiterService,
		Cache:              store,
		Router:             router,
		Monitor:            monitor,
	})

	go func() {
		if err := server.Start(); err != nil {
			logger.Fatal("Failed to start server:", err)
		}
	}()

	logger.Infof("Server started on %s:%s", cfg.Server.Host, cfg.Server.Port)

	// Wait for interrupt signal to gracefully shutdown the server
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		logger.WithError(err).Error("Server forced to shutdown")
	}
	stopMonitor()
	monitor.Stop()
	if err := router.Close(); err != nil {
		logger.WithError(err).Warn("Failed to close read replicas")
	}
	if err := cacheManager.Close(); err != nil {
		logger.WithError(err).Warn("Failed to close cache connection")
	}
	if err := database.Close(); err != nil {
		logger.WithError(err).Warn("Failed to close database")
	}

	logger.Info("Server exited")
}

func newLogger(cfg config.LogConfig) *logrus.Logger {
	logger := logrus.New()
	if cfg.Format == "text" {
		logger.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	} else {
		logger.SetFormatter(&logrus.JSONFormatter{})
	}
	level, err := logrus.ParseLevel(cfg.Level)
	if err != nil {
		logger.SetLevel(logrus.InfoLevel)
	} else {
		logger.SetLevel(level)
	}
	return logger
}
