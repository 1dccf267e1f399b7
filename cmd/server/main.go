package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"

	"github.com/thyroid-risk-assessor/internal/api"
	"github.com/thyroid-risk-assessor/internal/app"
	"github.com/thyroid-risk-assessor/internal/config"
	"github.com/thyroid-risk-assessor/internal/logging"
)

func main() {
	// Optional .env for local development
	_ = godotenv.Load()

	// Load configuration
	configManager, err := config.NewManager()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	// Validate configuration
	if err := configManager.Validate(); err != nil {
		log.Fatalf("Configuration validation failed: %v", err)
	}

	cfg := configManager.GetConfig()
	logger, err := logging.New(cfg.Logging)
	if err != nil {
		log.Fatalf("Failed to configure logging: %v", err)
	}

	if configManager.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}

	// Setup graceful shutdown
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	runtime, err := app.New(ctx, cfg, logger)
	if err != nil {
		logger.WithError(err).Fatal("Failed to initialize assessment runtime")
	}
	defer runtime.Close()

	server, err := api.NewServer(cfg.Server, api.Dependencies{
		Assessor: runtime.Assessor,
		Parser:   runtime.Parser,
		Schema:   runtime.Schema,
		Feedback: runtime.Feedback,
		Logger:   logger,
	})
	if err != nil {
		logger.WithError(err).Fatal("Failed to create HTTP server")
	}

	logger.WithField("port", cfg.Server.Port).Info("Starting thyroid risk assessment API")
	if err := server.Start(ctx); err != nil {
		logger.WithError(err).Error("Server failed")
		runtime.Close()
		os.Exit(1)
	}

	logger.Info("Server stopped")
}
