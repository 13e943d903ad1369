package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	catalogapp "github.com/catalogd/backend/internal/application/catalog"
	"github.com/catalogd/backend/internal/application/importer"
	uploadapp "github.com/catalogd/backend/internal/application/upload"
	webhookapp "github.com/catalogd/backend/internal/application/webhook"
	"github.com/catalogd/backend/internal/infrastructure/cache"
	"github.com/catalogd/backend/internal/infrastructure/config"
	"github.com/catalogd/backend/internal/infrastructure/logger"
	"github.com/catalogd/backend/internal/infrastructure/persistence"
	"github.com/catalogd/backend/internal/infrastructure/queue"
	"github.com/catalogd/backend/internal/infrastructure/scheduler"
	"github.com/catalogd/backend/internal/interfaces/http/handler"
	"github.com/catalogd/backend/internal/interfaces/http/middleware"
	"github.com/catalogd/backend/internal/interfaces/http/router"
	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		panic("Failed to load configuration: " + err.Error())
	}

	// Initialize logger
	log, err := logger.New(&logger.Config{
		Level:  cfg.Log.Level,
		Format: cfg.Log.Format,
		Output: cfg.Log.Output,
	})
	if err != nil {
		panic("Failed to initialize logger: " + err.Error())
	}
	defer func() {
		_ = log.Sync()
	}()

	log.Info("Starting catalogd",
		zap.String("app", cfg.App.Name),
		zap.String("env", cfg.App.Env),
		zap.String("port", cfg.App.Port),
	)

	// Database with zap-backed GORM logger
	gormLog := logger.NewGormLogger(log, logger.MapGormLogLevel(cfg.Log.Level))
	db, err := persistence.NewDatabaseWithLogger(&cfg.Database, gormLog)
	if err != nil {
		log.Fatal("Failed to connect to database", zap.Error(err))
	}
	defer func() {
		if err := db.Close(); err != nil {
			log.Error("Error closing database", zap.Error(err))
		}
	}()
	log.Info("Database connected successfully")

	// Redis client shared by progress cache, stats cache and task queue
	redisClient := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr(),
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	defer func() {
		if err := redisClient.Close(); err != nil {
			log.Error("Error closing redis client", zap.Error(err))
		}
	}()

	pingCtx, cancelPing := context.WithTimeout(context.Background(), 5*time.Second)
	if err := redisClient.Ping(pingCtx).Err(); err != nil {
		cancelPing()
		log.Fatal("Failed to connect to redis", zap.Error(err))
	}
	cancelPing()
	log.Info("Redis connected successfully")

	// Repositories
	productRepo := persistence.NewGormProductRepository(db.DB)
	auditLogRepo := persistence.NewGormAuditLogRepository(db.DB)
	uploadJobRepo := persistence.NewGormUploadJobRepository(db.DB)
	webhookRepo := persistence.NewGormWebhookRepository(db.DB)
	webhookLogRepo := persistence.NewGormWebhookLogRepository(db.DB)

	// Redis-backed stores
	progressStore := cache.NewRedisProgressStore(redisClient)
	statsCache := cache.NewRedisStatsCache(redisClient)

	// Background task queue. Webhook delivery retries are handled by
	// the dispatcher, so the queue itself does not retry.
	taskQueue := queue.NewRedisTaskQueue(redisClient, log, queue.Config{
		Workers:     cfg.Queue.Workers,
		PollTimeout: cfg.Queue.PollTimeout,
		StuckSweep:  cfg.Queue.StuckSweep,
		StuckAge:    cfg.Queue.StuckAge,
	})

	// Webhook delivery stack. The router doubles as the domain event
	// publisher: every published event fans out to subscribed endpoints
	// through the queue.
	dispatcher := webhookapp.NewDispatcher(webhookRepo, webhookLogRepo, log, webhookapp.Config{
		DeliveryTimeout: cfg.Webhook.DeliveryTimeout,
		TestTimeout:     cfg.Webhook.TestTimeout,
		MaxRetries:      cfg.Webhook.MaxRetries,
		RetryDelay:      cfg.Webhook.RetryDelay,
		UserAgent:       cfg.Webhook.UserAgent,
	})
	eventRouter := webhookapp.NewRouter(webhookRepo, taskQueue, log)

	// Application services
	productService := catalogapp.NewProductService(productRepo, auditLogRepo, eventRouter, statsCache, log)
	importService := importer.NewService(productRepo, uploadJobRepo, progressStore, log, importer.Config{
		ChunkSize:   cfg.Import.ChunkSize,
		ProgressTTL: cfg.Import.ProgressTTL,
	})
	uploadService := uploadapp.NewService(uploadJobRepo, progressStore, taskQueue, log, uploadapp.Config{
		UploadDir:     cfg.Import.UploadDir,
		MaxUploadSize: cfg.Import.MaxUploadSize,
		ProgressTTL:   cfg.Import.ProgressTTL,
	})
	webhookService := webhookapp.NewService(webhookRepo, webhookLogRepo, dispatcher, log)
	cleaner := uploadapp.NewCleaner(uploadJobRepo, webhookLogRepo, log, uploadapp.CleanupConfig{
		FileRetention: cfg.Cleanup.FileRetention,
		LogRetention:  cfg.Cleanup.LogRetention,
	})

	// Task handlers
	importer.NewTaskHandler(importService, uploadJobRepo, eventRouter, log).Register(taskQueue)
	webhookapp.NewTaskHandler(dispatcher, webhookRepo, log).Register(taskQueue)
	cleaner.Register(taskQueue)

	taskQueue.Start()
	defer taskQueue.Stop()
	log.Info("Task queue started", zap.Int("workers", cfg.Queue.Workers))

	// Periodic cleanup of expired upload files and old delivery logs
	sched := scheduler.New(taskQueue, log)
	if cfg.Cleanup.Enabled {
		sched.AddJob(scheduler.IntervalJob{
			TaskType: uploadapp.TaskTypeCleanup,
			Interval: cfg.Cleanup.Interval,
		})
		sched.Start()
		defer sched.Stop()
		log.Info("Cleanup scheduler started", zap.Duration("interval", cfg.Cleanup.Interval))
	}

	// HTTP engine and middleware
	if cfg.App.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}
	engine := gin.New()
	if len(cfg.HTTP.TrustedProxies) > 0 {
		if err := engine.SetTrustedProxies(cfg.HTTP.TrustedProxies); err != nil {
			log.Fatal("Invalid trusted proxies", zap.Error(err))
		}
	}

	engine.Use(middleware.RequestID())
	engine.Use(logger.Recovery(log))
	engine.Use(logger.GinMiddleware(log))

	corsConfig := middleware.DefaultCORSConfig()
	corsConfig.AllowOrigins = cfg.HTTP.CORSAllowOrigins
	if len(cfg.HTTP.CORSAllowMethods) > 0 {
		corsConfig.AllowMethods = cfg.HTTP.CORSAllowMethods
	}
	if len(cfg.HTTP.CORSAllowHeaders) > 0 {
		corsConfig.AllowHeaders = cfg.HTTP.CORSAllowHeaders
	}
	engine.Use(middleware.CORSWithConfig(corsConfig))

	// Health check endpoint (outside API versioning)
	engine.GET("/health", healthHandler(db, redisClient))

	// API routes
	r := router.NewRouter(engine, router.WithAPIVersion("v1"))
	r.Register(handler.NewProductHandler(productService)).
		Register(handler.NewUploadHandler(uploadService, log)).
		Register(handler.NewWebhookHandler(webhookService))
	r.Setup()

	srv := &http.Server{
		Addr:           ":" + cfg.App.Port,
		Handler:        engine,
		ReadTimeout:    cfg.HTTP.ReadTimeout,
		WriteTimeout:   cfg.HTTP.WriteTimeout,
		IdleTimeout:    cfg.HTTP.IdleTimeout,
		MaxHeaderBytes: cfg.HTTP.MaxHeaderBytes,
	}

	go func() {
		log.Info("Server starting", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal("Failed to start server", zap.Error(err))
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		log.Fatal("Server forced to shutdown", zap.Error(err))
	}

	log.Info("Server exited gracefully")
}

// healthHandler reports database and redis connectivity
func healthHandler(db *persistence.Database, redisClient *redis.Client) gin.HandlerFunc {
	return func(c *gin.Context) {
		status := http.StatusOK
		dbStatus := "ok"
		redisStatus := "ok"

		if err := db.Ping(); err != nil {
			status = http.StatusServiceUnavailable
			dbStatus = "error"
		}
		if err := redisClient.Ping(c.Request.Context()).Err(); err != nil {
			status = http.StatusServiceUnavailable
			redisStatus = "error"
		}

		body := gin.H{
			"status":   "healthy",
			"time":     time.Now().Format(time.RFC3339),
			"database": dbStatus,
			"redis":    redisStatus,
		}
		if status != http.StatusOK {
			body["status"] = "unhealthy"
		}
		c.JSON(status, body)
	}
}
