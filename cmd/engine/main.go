package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"estate_lifecycle_engine/internal/app"
	"estate_lifecycle_engine/internal/infra/config"
	idb "estate_lifecycle_engine/internal/infra/database"
	"estate_lifecycle_engine/internal/infra/httpapi"
	"estate_lifecycle_engine/internal/infra/logger"
	"estate_lifecycle_engine/internal/infra/notify"
	"estate_lifecycle_engine/internal/infra/scheduler"
	"estate_lifecycle_engine/internal/infra/storage"
	"estate_lifecycle_engine/internal/infra/subscription"

	"github.com/labstack/echo/v4"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		logger.Log.Fatalf("Could not load application configuration: %v", err)
	}
	logger.Init(cfg)
	log := logger.Get()
	log.Infof("Lifecycle engine starting. Environment: %s, LogLevel: %s", cfg.Environment, cfg.LogLevel)

	// Datastore
	db, err := idb.NewPostgresConnection(cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("Could not connect to database: %v", err)
	}
	defer db.Close()
	log.Info("Database connection established.")

	// Subscription gate: Redis read-through cache over Postgres. A missing
	// cache only degrades lookups, it never blocks startup.
	redisClient := subscription.NewRedisClient(cfg.RedisAddr, cfg.RedisPass)
	if redisClient == nil {
		log.Warnf("Redis unavailable at %s; subscription gate will hit Postgres directly", cfg.RedisAddr)
	}
	gate := subscription.NewCachedGate(db, redisClient, log)

	// Notifier
	notifier, err := notify.NewAMQPNotifier(cfg.AMQPURL, cfg.NotifyQueue, log)
	if err != nil {
		log.Fatalf("Could not connect to AMQP broker: %v", err)
	}
	defer notifier.Close()
	log.Infof("Notification queue '%s' ready.", cfg.NotifyQueue)

	// Repositories
	livenessRepo := idb.NewPostgresLivenessRepository(db)
	verifRepo := idb.NewPostgresVerificationRepository(db)
	contactRepo := idb.NewPostgresContactRepository(db)
	unlockRepo := idb.NewPostgresUnlockRepository(db)
	retentionRepo := idb.NewPostgresRetentionRepository(db)

	// Services
	unlockSvc := app.NewUnlockServiceImpl(verifRepo, unlockRepo, contactRepo, retentionRepo, notifier, log, cfg.QuorumSize, cfg.CodeTTL)
	verifSvc := app.NewVerificationServiceImpl(livenessRepo, verifRepo, contactRepo, unlockSvc, notifier, gate, log, cfg.VerificationTTL, cfg.ContactNotifyDelay)
	retainSvc := app.NewRetentionServiceImpl(retentionRepo, notifier, gate, log)
	deleteSvc := app.NewDeletionServiceImpl(retentionRepo, storage.NewFilesystemStorage(cfg.StorageRoot), notifier, gate, log)
	log.Info("Engine services initialized.")

	// Scheduler
	engineScheduler := scheduler.NewEngineScheduler(verifSvc, retainSvc, deleteSvc, log, cfg.CronSpecScan, cfg.CronSpecExpiry, cfg.CronSpecDeletion)
	engineScheduler.Start()

	// HTTP surface for the exposed operations
	e := echo.New()
	e.HideBanner = true
	httpapi.RegisterRoutes(e,
		httpapi.NewLivenessHandler(verifSvc, log),
		httpapi.NewUnlockHandler(unlockSvc, log),
	)
	go func() {
		if err := e.Start(cfg.HTTPListen); err != nil {
			log.Infof("HTTP server stopped: %v", err)
		}
	}()
	log.Infof("HTTP API listening on %s", cfg.HTTPListen)

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("Shutting down lifecycle engine...")
	engineScheduler.Stop()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := e.Shutdown(shutdownCtx); err != nil {
		log.Errorf("HTTP server shutdown error: %v", err)
	}
	log.Info("Lifecycle engine shut down gracefully.")
}
