// Package config provides configuration management for the risk service.
// This file contains the lightweight configuration for the standalone MCP
// server, which requires no external databases.
package config

import (
	"os"
	"path/filepath"
	"strconv"
	"time"
)

// LiteConfig is a simplified configuration for standalone MCP operation.
// It uses SQLite for the patient registry and an in-memory result cache.
type LiteConfig struct {
	// Data storage
	DataDir string // Base directory for data files

	// Optional PostgreSQL registry; when set, it replaces SQLite.
	DatabaseURL string

	// Cache settings
	CacheMaxItems int           // Maximum items in memory cache
	CacheTTL      time.Duration // Default cache TTL

	// Logging
	LogLevel  string // Log level: debug, info, warn, error
	LogFormat string // Log format: json, text
}

// DefaultLiteConfig returns a configuration with sensible defaults.
func DefaultLiteConfig() *LiteConfig {
	homeDir, _ := os.UserHomeDir()
	dataDir := filepath.Join(homeDir, ".ascvd-risk-server")

	return &LiteConfig{
		DataDir:       dataDir,
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

	if v := os.Getenv("ASCVD_DATA_DIR"); v != "" {
		cfg.DataDir = v
	}

	cfg.DatabaseURL = os.Getenv("ASCVD_DATABASE_URL")

	if v := os.Getenv("ASCVD_CACHE_MAX_ITEMS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cfg.CacheMaxItems = n
		}
	}
	if v := os.Getenv("ASCVD_CACHE_TTL"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.CacheTTL = d
		}
	}

	if v := os.Getenv("ASCVD_LOG_LEVEL"); v != "" {
		cfg.LogLevel = v
	}
	if v := os.Getenv("ASCVD_LOG_FORMAT"); v != "" {
		cfg.LogFormat = v
	}

	return cfg
}

// RegistryDBPath returns the path to the SQLite patient registry.
func (c *LiteConfig) RegistryDBPath() string {
	return filepath.Join(c.DataDir, "registry.db")
}

// EnsureDataDir creates the data directory if it doesn't exist.
func (c *LiteConfig) EnsureDataDir() error {
	return os.MkdirAll(c.DataDir, 0755)
}
