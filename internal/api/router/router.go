package router

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/denisAlshanov/mediagrab/internal/api/handlers"
	"github.com/denisAlshanov/mediagrab/internal/api/middleware"
	"github.com/denisAlshanov/mediagrab/internal/config"
)

type Router struct {
	engine *gin.Engine
	config *config.Config
	server *http.Server
	stop   chan struct{}
}

func NewRouter(cfg *config.Config, mediaHandler *handlers.MediaHandler, healthHandler *handlers.HealthHandler) *Router {
	// Set Gin mode
	if cfg.Server.Host == "0.0.0.0" {
		gin.SetMode(gin.ReleaseMode)
	}

	engine := gin.New()
	stop := make(chan struct{})

	engine.Use(gin.Recovery())
	engine.Use(middleware.CorrelationIDMiddleware())
	engine.Use(middleware.CORSMiddleware(&cfg.CORS))

	// Health endpoints (no auth required)
	health := engine.Group("/")
	{
		health.GET("/health", healthHandler.Health)
		health.GET("/ready", healthHandler.Readiness)
		health.GET("/live", healthHandler.Liveness)
	}

	api := engine.Group("/api/v1")
	api.Use(middleware.AuthMiddleware(&cfg.API))
	api.Use(middleware.RateLimitMiddleware(&cfg.API, stop))
	{
		media := api.Group("/media")
		{
			media.POST("/acquire", mediaHandler.Acquire) // /api/v1/media/acquire
			media.GET("/formats", mediaHandler.Formats)  // /api/v1/media/formats?link=
			media.GET("", mediaHandler.List)             // /api/v1/media
			media.GET("/:id", mediaHandler.Get)          // /api/v1/media/{id}
			media.GET("/:id/file", mediaHandler.File)    // /api/v1/media/{id}/file
			media.DELETE("/:id", mediaHandler.Delete)    // /api/v1/media/{id}
		}
	}

	return &Router{
		engine: engine,
		config: cfg,
		stop:   stop,
		server: &http.Server{
			Addr:              cfg.Server.Host + ":" + cfg.Server.Port,
			Handler:           engine,
			ReadHeaderTimeout: 10 * time.Second,
		},
	}
}

// Start serves until Shutdown is called. It returns nil on a clean shutdown.
func (r *Router) Start() error {
	if err := r.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown stops accepting requests and waits for in-flight acquisitions
// until ctx expires.
func (r *Router) Shutdown(ctx context.Context) error {
	close(r.stop)
	return r.server.Shutdown(ctx)
}

func (r *Router) Engine() *gin.Engine {
	return r.engine
}
