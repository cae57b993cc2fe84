package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"

	_ "github.com/davmuu/curriculum-tracking-api/api/swagger"
	"github.com/davmuu/curriculum-tracking-api/internal/handler"
	"github.com/davmuu/curriculum-tracking-api/internal/repository"
	"github.com/davmuu/curriculum-tracking-api/internal/service"
	"github.com/davmuu/curriculum-tracking-api/internal/workflow"
	"github.com/davmuu/curriculum-tracking-api/pkg/cache"
	"github.com/davmuu/curriculum-tracking-api/pkg/config"
	"github.com/davmuu/curriculum-tracking-api/pkg/database"
	"github.com/davmuu/curriculum-tracking-api/pkg/jobs"
	"github.com/davmuu/curriculum-tracking-api/pkg/logger"
	corsmiddleware "github.com/davmuu/curriculum-tracking-api/pkg/middleware/cors"
	reqidmiddleware "github.com/davmuu/curriculum-tracking-api/pkg/middleware/requestid"
	"github.com/davmuu/curriculum-tracking-api/pkg/storage"
)

// @title Curriculum Tracking API
// @version 1.0.0
// @description Workflow engine for university curriculum approval tracking
// @BasePath /api/v1
// @schemes http

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logr, err := logger.New(cfg)
	if err != nil {
		log.Fatalf("failed to init logger: %v", err)
	}
	defer logr.Sync() //nolint:errcheck

	if cfg.Env == config.EnvProduction {
		gin.SetMode(gin.ReleaseMode)
	}

	db, err := database.NewPostgres(cfg.Database)
	if err != nil {
		logr.Sugar().Fatalw("failed to connect to postgres", "error", err)
	}
	defer db.Close() //nolint:errcheck

	metricsSvc := service.NewMetricsService()

	cacheSvc := service.NewCacheService(nil, metricsSvc, cfg.Tracking.CacheTTL, logr, false)
	if redisClient, err := cache.NewRedis(cfg.Redis); err != nil {
		logr.Sugar().Warnw("redis unavailable, caching disabled", "error", err)
	} else {
		cacheRepo := repository.NewCacheRepository(redisClient, logr)
		cacheSvc = service.NewCacheService(cacheRepo, metricsSvc, cfg.Tracking.CacheTTL, logr, true)
	}

	trackingRepo := repository.NewTrackingRepository(db)
	documentRepo := repository.NewDocumentRepository(db)
	userRepo := repository.NewUserRepository(db)
	exportRepo := repository.NewExportJobRepository(db)

	validate := validator.New()
	authSvc := service.NewAuthService(userRepo, validate, logr, service.AuthConfig{
		AccessTokenSecret:  cfg.JWT.Secret,
		AccessTokenExpiry:  cfg.JWT.Expiration,
		RefreshTokenExpiry: cfg.JWT.RefreshExpiration,
		Issuer:             "curriculum-tracking-api",
	})

	engine := workflow.NewEngine(time.Now)
	trackingSvc := service.NewTrackingService(
		trackingRepo, userRepo, engine, cacheSvc, metricsSvc,
		logr, time.Now, cfg.Tracking.CacheTTL,
	)

	docStorage, err := storage.NewLocalStorage(cfg.Documents.StorageDir)
	if err != nil {
		logr.Sugar().Fatalw("failed to init document storage", "error", err)
	}
	docSigner := storage.NewSignedURLSigner(cfg.Documents.SignedURLSecret, cfg.Documents.SignedURLTTL)
	documentSvc := service.NewDocumentService(documentRepo, trackingSvc, docStorage, docSigner, logr, service.DocumentServiceConfig{
		MaxFileSize:  cfg.Documents.MaxFileSizeBytes,
		AllowedMIMEs: cfg.Documents.AllowedMIMEs,
		APIPrefix:    cfg.APIPrefix,
	})

	statsSvc := service.NewStatsService(
		trackingRepo, cacheSvc, logr, time.Now,
		cfg.Statistics.CacheTTL, cfg.Statistics.FallbackLimit,
	)

	ctx := context.Background()

	var exportHandler *handler.ExportHandler
	if cfg.Exports.Enabled {
		exportStorage, err := storage.NewLocalStorage(cfg.Exports.StorageDir)
		if err != nil {
			logr.Sugar().Fatalw("failed to init export storage", "error", err)
		}
		exportSigner := storage.NewSignedURLSigner(cfg.Exports.SignedURLSecret, cfg.Exports.SignedURLTTL)
		generator := service.NewExportGenerator(trackingRepo, exportStorage, exportSigner, service.ExportGeneratorConfig{
			APIPrefix: cfg.APIPrefix,
			ResultTTL: cfg.Exports.SignedURLTTL,
		}, logr, time.Now, nil, nil)

		worker := service.NewExportWorker(exportRepo, generator, logr, time.Now, cfg.Exports.WorkerRetries)
		queue := jobs.NewQueue("exports", worker.Handle, jobs.QueueConfig{
			Workers:    cfg.Exports.WorkerConcurrency,
			MaxRetries: cfg.Exports.WorkerRetries,
			Logger:     logr,
		})
		queue.Start(ctx)
		defer queue.Stop()

		exportSvc := service.NewExportService(exportRepo, queue, generator, service.ExportServiceConfig{
			ResultTTL:       cfg.Exports.SignedURLTTL,
			CleanupInterval: cfg.Exports.CleanupInterval,
		}, logr, time.Now)

		if err := exportSvc.RecoverPendingJobs(ctx); err != nil {
			logr.Sugar().Warnw("export job recovery failed", "error", err)
		}
		exportSvc.StartCleanup(ctx)

		exportHandler = handler.NewExportHandler(exportSvc)
	}

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(reqidmiddleware.Middleware())
	r.Use(logger.GinMiddleware(logr))
	r.Use(corsmiddleware.New(cfg.CORS.AllowedOrigins))

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	r.GET("/ready", func(c *gin.Context) {
		if err := db.PingContext(c.Request.Context()); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unavailable"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "ready"})
	})

	if cfg.Env != config.EnvProduction {
		r.GET("/docs/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	router := &handler.Router{
		Auth:           handler.NewAuthHandler(authSvc),
		Tracking:       handler.NewTrackingHandler(trackingSvc, statsSvc, documentSvc),
		Documents:      handler.NewDocumentHandler(documentSvc, trackingSvc),
		Exports:        exportHandler,
		Metrics:        handler.NewMetricsHandler(metricsSvc),
		AuthService:    authSvc,
		MetricsService: metricsSvc,
		Users:          userRepo,
	}
	router.Register(r, cfg.APIPrefix)

	addr := fmt.Sprintf(":%d", cfg.Port)
	logr.Sugar().Infow("server starting", "addr", addr, "env", cfg.Env)
	if err := r.Run(addr); err != nil {
		logr.Sugar().Fatalw("server failed", "error", err)
	}
}
