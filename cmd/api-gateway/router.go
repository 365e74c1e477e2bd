package main

import (
	"github.com/gin-gonic/gin"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.uber.org/zap"

	_ "github.com/noah-isme/rd-studio-media-api/api/swagger"
	"github.com/noah-isme/rd-studio-media-api/internal/handler"
	"github.com/noah-isme/rd-studio-media-api/internal/middleware"
	"github.com/noah-isme/rd-studio-media-api/internal/service"
	"github.com/noah-isme/rd-studio-media-api/pkg/config"
	"github.com/noah-isme/rd-studio-media-api/pkg/logger"
	corsmiddleware "github.com/noah-isme/rd-studio-media-api/pkg/middleware/cors"
	"github.com/noah-isme/rd-studio-media-api/pkg/middleware/ratelimit"
	reqidmiddleware "github.com/noah-isme/rd-studio-media-api/pkg/middleware/requestid"
)

const localMediaRoute = "/media-files"

type routerDeps struct {
	media      *handler.MediaHandler
	metrics    *handler.MetricsHandler
	metricsSvc *service.MetricsService
	auth       *service.AuthService
	limiter    *ratelimit.IPRateLimiter
	localDir   string
}

func newRouter(cfg *config.Config, logr *zap.Logger, deps routerDeps) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(reqidmiddleware.Middleware())
	r.Use(logger.GinMiddleware(logr, "/health", "/ready", "/metrics"))
	r.Use(corsmiddleware.New(corsmiddleware.Options{AllowedOrigins: cfg.CORS.AllowedOrigins}))
	r.Use(middleware.Metrics(deps.metricsSvc))

	r.GET("/health", deps.metrics.Health)
	r.GET("/ready", deps.metrics.Ready)
	r.GET("/metrics", deps.metrics.Prometheus)

	if cfg.Env != config.EnvProduction {
		r.GET("/docs/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}
	if deps.localDir != "" {
		r.Static(localMediaRoute, deps.localDir)
	}

	api := r.Group(cfg.APIPrefix)

	media := api.Group("/media")
	media.GET("/external/:externalId", deps.limiter.Middleware(), deps.media.GetPublic)

	secured := media.Group("")
	secured.Use(middleware.JWT(deps.auth))
	secured.GET("", deps.media.List)
	secured.GET("/:id", deps.media.Get)
	secured.GET("/:id/flipbook.pdf", deps.media.Flipbook)
	secured.PATCH("/:id/favorite", deps.media.SetFavorite)

	writers := secured.Group("")
	writers.Use(middleware.RequireMediaWriter())
	writers.POST("", deps.media.Create)
	writers.PUT("/:id", deps.media.Update)
	writers.DELETE("/:id", deps.media.Delete)

	return r
}

func localMediaDir(cfg *config.Config) string {
	if cfg.Storage.Driver != config.StorageDriverLocal {
		return ""
	}
	return cfg.Storage.LocalDir
}
