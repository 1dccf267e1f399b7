// Package config provides configuration management for the assessment services.
// This file contains the lightweight configuration for standalone operation.
package config

import (
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/thyroid-risk-assessor/internal/domain"
)

// LiteConfig is a simplified configuration for standalone operation.
// It requires no external databases and uses sensible defaults.
type LiteConfig struct {
	// Data storage
	DataDir   string // Base directory for the feedback database and exports
	BundleDir string // Trained model bundle

	// Cache settings
	CacheMaxItems int           // Maximum reports in memory cache
	CacheTTL      time.Duration // Default cache TTL

	// Logging
	LogLevel  string // Log level: debug, info, warn, error
	LogFormat string // Log format: json, text
}

// DefaultLiteConfig returns a configuration with sensible defaults.
func DefaultLiteConfig() *LiteConfig {
	homeDir, _ := os.UserHomeDir()
	dataDir := filepath.Join(homeDir, ".thyrisk")

	return &LiteConfig{
		DataDir:       dataDir,
		BundleDir:     filepath.Join(dataDir, "artifacts"),
		CacheMaxItems: 1000,
		CacheTTL:      time.Hour,
		LogLevel:      "info",
		LogFormat:     "json",
	}
}

// LoadLiteConfig loads configuration from environment variables.
// Falls back to defaults if not set.
func LoadLiteConfig() *LiteConfig {
	cfg := DefaultLiteConfig()

	if v := os.Getenv("THYRISK_DATA_DIR"); v != "" {
		cfg.DataDir = v
		cfg.BundleDir = filepath.Join(v, "artifacts")
	}
	if v := os.Getenv("THYRISK_BUNDLE_DIR"); v != "" {
		cfg.BundleDir = v
	}

	if v := os.Getenv("THYRISK_CACHE_MAX_ITEMS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cfg.CacheMaxItems = n
		}
	}
	if v := os.Getenv("THYRISK_CACHE_TTL"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.CacheTTL = d
		}
	}

	if v := os.Getenv("THYRISK_LOG_LEVEL"); v != "" {
		cfg.LogLevel = v
	}
	if v := os.Getenv("THYRISK_LOG_FORMAT"); v != "" {
		cfg.LogFormat = v
	}

	return cfg
}

// FeedbackDBPath returns the path to the feedback SQLite database.
func (c *LiteConfig) FeedbackDBPath() string {
	return filepath.Join(c.DataDir, "feedback.db")
}

// ExportDir returns the directory for JSON exports.
func (c *LiteConfig) ExportDir() string {
	return filepath.Join(c.DataDir, "exports")
}

// EnsureDataDir creates the data directory if it doesn't exist.
func (c *LiteConfig) EnsureDataDir() error {
	if err := os.MkdirAll(c.DataDir, 0755); err != nil {
		return err
	}
	return os.MkdirAll(c.ExportDir(), 0755)
}

// ToConfig expands the lite settings into a full configuration: local inference, in-memory
// cache, SQLite feedback and logs on stderr so stdout stays free for the MCP transport.
func (c *LiteConfig) ToConfig() *domain.Config {
	return &domain.Config{
		Environment: "development",
		Artifacts:   domain.ArtifactsConfig{BundleDir: c.BundleDir},
		Inference:   domain.InferenceConfig{Mode: "local"},
		Feedback: domain.FeedbackConfig{
			Backend:    "sqlite",
			SQLitePath: c.FeedbackDBPath(),
		},
		Cache: domain.CacheConfig{
			Backend:    "memory",
			MaxItems:   c.CacheMaxItems,
			DefaultTTL: c.CacheTTL,
		},
		Logging: domain.LoggingConfig{
			Level:  c.LogLevel,
			Format: c.LogFormat,
			Output: "stderr",
		},
		MCP: domain.MCPConfig{
			ServerName:     "thyroid-risk-assessor-lite",
			ServerVersion:  "1.0.0",
			RequestTimeout: 30 * time.Second,
		},
	}
}
