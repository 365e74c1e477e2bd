package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/noah-isme/rd-studio-media-api/internal/handler"
	"github.com/noah-isme/rd-studio-media-api/internal/repository"
	"github.com/noah-isme/rd-studio-media-api/internal/service"
	"github.com/noah-isme/rd-studio-media-api/pkg/cache"
	"github.com/noah-isme/rd-studio-media-api/pkg/compressor"
	"github.com/noah-isme/rd-studio-media-api/pkg/config"
	"github.com/noah-isme/rd-studio-media-api/pkg/database"
	"github.com/noah-isme/rd-studio-media-api/pkg/events"
	"github.com/noah-isme/rd-studio-media-api/pkg/export"
	"github.com/noah-isme/rd-studio-media-api/pkg/logger"
	"github.com/noah-isme/rd-studio-media-api/pkg/middleware/ratelimit"
	"github.com/noah-isme/rd-studio-media-api/pkg/storage"
)

// @title RD Studio Media API
// @version 1.0.0
// @description Media library ingestion, storage and public lookup.
// @BasePath /api/v1
// @schemes http https
// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization

const shutdownTimeout = 15 * time.Second

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

	if err := run(cfg, logr); err != nil {
		logr.Fatal("server failed", zap.Error(err))
	}
}

func run(cfg *config.Config, logr *zap.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if cfg.Env == config.EnvProduction {
		gin.SetMode(gin.ReleaseMode)
	}

	if cfg.Database.AutoMigrate {
		if err := database.Migrate(cfg.Database.URL(), logr); err != nil {
			return fmt.Errorf("migrate database: %w", err)
		}
	}
	db, err := database.NewPostgres(ctx, cfg.Database)
	if err != nil {
		return fmt.Errorf("connect database: %w", err)
	}
	defer db.Close()

	var redisClient *redis.Client
	if cfg.Redis.Enabled {
		redisClient, err = cache.NewRedis(ctx, cfg.Redis)
		if err != nil {
			logr.Warn("redis unavailable, public cache disabled", zap.Error(err))
			redisClient = nil
		}
	}
	cacheRepo := repository.NewCacheRepository(redisClient, logr)
	defer cacheRepo.Close() //nolint:errcheck

	metricsSvc := service.NewMetricsService()
	cacheSvc := service.NewCacheService(cacheRepo, metricsSvc, cfg.Media.PublicCacheTTL, logr, redisClient != nil)

	store, err := storage.New(ctx, cfg, logr)
	if err != nil {
		return fmt.Errorf("init object store: %w", err)
	}

	comp := compressor.New(compressor.Options{
		TargetBytes:    cfg.Compression.TargetBytes,
		MaxWidth:       cfg.Compression.MaxWidth,
		InitialQuality: cfg.Compression.InitialQuality,
		QualityStep:    cfg.Compression.QualityStep,
		MinQuality:     cfg.Compression.MinQuality,
	})
	orchestrator := service.NewUploadOrchestrator(store, comp, cfg.Media.UploadWorkers, metricsSvc, logr)

	janitor := service.NewBlobJanitor(store, service.BlobJanitorConfig{
		Enabled:    cfg.Media.PurgeReplacedBlobs,
		Workers:    cfg.Media.JanitorWorkers,
		Retries:    cfg.Media.JanitorRetries,
		RetryDelay: cfg.Media.JanitorRetryDelay,
	}, metricsSvc, logr)
	janitor.Start(ctx)
	defer janitor.Stop()

	var publisher events.Publisher = events.NoopPublisher{}
	if cfg.Events.Enabled {
		publisher = events.NewKafkaPublisher(events.KafkaConfig{
			Brokers:      cfg.Events.Brokers,
			Topic:        cfg.Events.Topic,
			BatchTimeout: cfg.Events.BatchTimeout,
		}, logr)
	}
	defer func() {
		if err := publisher.Close(); err != nil {
			logr.Warn("close event publisher", zap.Error(err))
		}
	}()

	mediaSvc := service.NewMediaService(service.MediaServiceDeps{
		Repo:      repository.NewMediaRepository(db),
		Uploader:  orchestrator,
		Objects:   store,
		Renderer:  export.NewPDFExporter(),
		Cache:     cacheSvc,
		Janitor:   janitor,
		Publisher: publisher,
		Validator: validator.New(),
		Logger:    logr,
	}, service.MediaServiceConfig{
		KeyPrefix:      cfg.Media.KeyPrefix,
		MaxFiles:       cfg.Media.MaxFiles,
		MaxFileBytes:   cfg.Media.MaxFileBytes,
		PublicCacheTTL: cfg.Media.PublicCacheTTL,
	})
	authSvc := service.NewAuthService(logr, service.AuthConfig{
		AccessTokenSecret: cfg.JWT.Secret,
		Issuer:            cfg.JWT.Issuer,
	})

	limiter := ratelimit.NewIPRateLimiter(cfg.Media.PublicRateLimit, cfg.Media.PublicRateBurst, logr)
	go limiter.Run(ctx)

	checks := map[string]handler.ReadinessCheck{"postgres": db.PingContext}
	if redisClient != nil {
		checks["redis"] = cacheRepo.Ping
	}

	router := newRouter(cfg, logr, routerDeps{
		media: handler.NewMediaHandler(mediaSvc, handler.MediaHandlerConfig{
			MaxRequestBytes: cfg.Media.MaxRequestBytes,
			PublicMaxAge:    int(cfg.Media.PublicCacheTTL.Seconds()),
		}),
		metrics:    handler.NewMetricsHandler(metricsSvc, checks),
		metricsSvc: metricsSvc,
		auth:       authSvc,
		limiter:    limiter,
		localDir:   localMediaDir(cfg),
	})

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	serveErr := make(chan error, 1)
	go func() {
		logr.Info("server starting", zap.String("addr", srv.Addr), zap.String("env", cfg.Env), zap.String("storage", cfg.Storage.Driver))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	select {
	case err := <-serveErr:
		if err != nil {
			return err
		}
	case <-ctx.Done():
		logr.Info("shutdown signal received")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown server: %w", err)
	}
	logr.Info("server stopped")
	return nil
}
