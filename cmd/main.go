// Package main runs the media acquisition HTTP service.
package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/denisAlshanov/mediagrab/internal/api/handlers"
	"github.com/denisAlshanov/mediagrab/internal/api/router"
	"github.com/denisAlshanov/mediagrab/internal/app"
	"github.com/denisAlshanov/mediagrab/internal/config"
	"github.com/denisAlshanov/mediagrab/internal/utils"
)

// version is set at build time with -ldflags "-X main.version=..."
var version = "dev"

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	logger := utils.GetLogger()
	logger.WithField("version", version).Info("Starting media acquisition service")

	ctx := context.Background()

	service, err := app.New(ctx, cfg)
	if err != nil {
		logger.Fatalf("Failed to initialize service: %v", err)
	}

	mediaHandler := handlers.NewMediaHandler(service.Downloader)
	healthHandler := handlers.NewHealthHandler(service.DB, service.Storage, version)

	r := router.NewRouter(cfg, mediaHandler, healthHandler)

	go func() {
		logger.Infof("Starting server on %s:%s", cfg.Server.Host, cfg.Server.Port)
		if err := r.Start(); err != nil {
			logger.Fatalf("Failed to start server: %v", err)
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("Shutting down server...")

	// In-flight acquisitions get the same deadline as the HTTP server.
	shutdownCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	if err := r.Shutdown(shutdownCtx); err != nil {
		logger.Errorf("Failed to shut down server: %v", err)
	}

	if err := service.Close(shutdownCtx); err != nil {
		logger.Errorf("Failed to close service: %v", err)
	}

	logger.Info("Server shutdown complete")
}
