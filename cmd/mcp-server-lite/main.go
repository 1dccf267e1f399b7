// Package main runs the assessment tools as a standalone MCP server over stdio. It needs only a
// model bundle on disk; feedback goes to SQLite under the data directory.
package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"github.com/thyroid-risk-assessor/internal/app"
	"github.com/thyroid-risk-assessor/internal/config"
	"github.com/thyroid-risk-assessor/internal/logging"
	"github.com/thyroid-risk-assessor/internal/mcp"
)

func main() {
	_ = godotenv.Load()

	// Load lightweight configuration
	lite := config.LoadLiteConfig()
	if err := lite.EnsureDataDir(); err != nil {
		log.Fatalf("Failed to create data directory: %v", err)
	}
	cfg := lite.ToConfig()

	// stdout carries the protocol, so logs go to stderr
	logger, err := logging.New(cfg.Logging)
	if err != nil {
		log.Fatalf("Failed to configure logging: %v", err)
	}
	logger.WithField("data_dir", lite.DataDir).Info("Starting thyroid risk MCP server (lite)")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	runtime, err := app.New(ctx, cfg, logger)
	if err != nil {
		logger.WithError(err).Fatal("Failed to initialize assessment runtime")
	}
	defer runtime.Close()

	server, err := mcp.NewServer(cfg.MCP, mcp.Dependencies{
		Assessor:  runtime.Assessor,
		Parser:    runtime.Parser,
		Schema:    runtime.Schema,
		Feedback:  runtime.Feedback,
		ExportDir: lite.ExportDir(),
		Logger:    logger,
	})
	if err != nil {
		logger.WithError(err).Fatal("Failed to create MCP server")
	}

	if err := server.Run(ctx); err != nil {
		logger.WithError(err).Error("MCP server failed")
		runtime.Close()
		os.Exit(1)
	}

	logger.Info("MCP server stopped")
}
