// This file contains the lightweight configuration for standalone operation.

package config

import (
	"os"
	"path/filepath"
	"strconv"
	"time"
)

// LiteConfig is a simplified configuration for standalone operation.
// It requires no external databases and uses sensible defaults.
type LiteConfig struct {
	// Data storage
	DataDir string // Base directory for the history database and exports

	// Cache settings
	CacheMaxItems int           // Maximum items in memory cache
	CacheTTL      time.Duration // Default cache TTL

	// Engine settings
	CatalogFile    string // Optional YAML/JSON catalog file
	DefaultCatalog string // Catalog used when a request names none
	DefaultTrials  int    // Simulation trials when a request names none
	MaxTrials      int    // Upper bound on requested trials
	Workers        int    // Simulation workers; 0 uses GOMAXPROCS

	// Logging
	LogLevel  string // Log level: debug, info, warn, error
	LogFormat string // Log format: json, text
}

// DefaultLiteConfig returns a configuration with sensible defaults.
func DefaultLiteConfig() *LiteConfig {
	homeDir, _ := os.UserHomeDir()
	dataDir := filepath.Join(homeDir, ".ngs-reimbursement-mcp")

	return &LiteConfig{
		DataDir:       dataDir,
		CacheMaxItems: 1000,
		CacheTTL:      time.Hour,
		DefaultTrials: 1000,
		MaxTrials:     100000,
		LogLevel:      "info",
		LogFormat:     "json",
	}
}

// LoadLiteConfig loads configuration from environment variables.
// Falls back to defaults if not set.
func LoadLiteConfig() *LiteConfig {
	cfg := DefaultLiteConfig()

	// Data directory
	if v := os.Getenv("NGS_DATA_DIR"); v != "" {
		cfg.DataDir = v
	}

	// Cache settings
	if n, ok := positiveEnv("NGS_CACHE_MAX_ITEMS"); ok {
		cfg.CacheMaxItems = n
	}
	if v := os.Getenv("NGS_CACHE_TTL"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.CacheTTL = d
		}
	}

	// Engine
	cfg.CatalogFile = os.Getenv("NGS_CATALOG_FILE")
	cfg.DefaultCatalog = os.Getenv("NGS_DEFAULT_CATALOG")
	if n, ok := positiveEnv("NGS_DEFAULT_TRIALS"); ok {
		cfg.DefaultTrials = n
	}
	if n, ok := positiveEnv("NGS_MAX_TRIALS"); ok {
		cfg.MaxTrials = n
	}
	if n, ok := positiveEnv("NGS_WORKERS"); ok {
		cfg.Workers = n
	}

	// Logging
	if v := os.Getenv("NGS_LOG_LEVEL"); v != "" {
		cfg.LogLevel = v
	}
	if v := os.Getenv("NGS_LOG_FORMAT"); v != "" {
		cfg.LogFormat = v
	}

	return cfg
}

func positiveEnv(key string) (int, bool) {
	v := os.Getenv(key)
	if v == "" {
		return 0, false
	}
	n, err := strconv.Atoi(v)
	if err != nil || n <= 0 {
		return 0, false
	}
	return n, true
}

// HistoryDBPath returns the path to the analysis history SQLite database.
func (c *LiteConfig) HistoryDBPath() string {
	return filepath.Join(c.DataDir, "history.db")
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
