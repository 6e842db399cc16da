// Package config loads server configuration with Viper and the environment-only
// configuration used by the lite MCP server.
package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/viper"

	"github.com/ngs-reimbursement-mcp-server/internal/domain"
)

// Manager loads configuration from files, the environment and defaults using Viper
type Manager struct {
	configFile string
	config     *domain.Config
}

// NewManager creates a new configuration manager
func NewManager() (*Manager, error) {
	return NewManagerWithFile("")
}

// NewManagerWithFile creates a manager that reads an explicit config file instead
// of searching the default locations.
func NewManagerWithFile(path string) (*Manager, error) {
	m := &Manager{configFile: path}
	if err := m.loadConfig(); err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}
	return m, nil
}

// loadConfig loads configuration from various sources
func (m *Manager) loadConfig() error {
	if m.configFile != "" {
		viper.SetConfigFile(m.configFile)
	} else {
		viper.SetConfigName("config")
		viper.SetConfigType("yaml")
		viper.AddConfigPath(".")
		viper.AddConfigPath("./config")
		viper.AddConfigPath("/etc/ngs-reimbursement/")
	}

	viper.SetEnvPrefix("NGS_REIMB")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	m.setDefaults()

	// The config file is optional; defaults and environment variables apply without it.
	if err := viper.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return fmt.Errorf("error reading config file: %w", err)
		}
	}

	config := &domain.Config{}
	if err := viper.Unmarshal(config); err != nil {
		return fmt.Errorf("error unmarshaling config: %w", err)
	}

	m.config = config
	return nil
}

// setDefaults sets default configuration values
func (m *Manager) setDefaults() {
	// Server defaults
	viper.SetDefault("server.host", "0.0.0.0")
	viper.SetDefault("server.port", 8080)
	viper.SetDefault("server.read_timeout", "30s")
	viper.SetDefault("server.write_timeout", "60s")
	viper.SetDefault("server.idle_timeout", "120s")
	viper.SetDefault("server.request_timeout", "30s")
	viper.SetDefault("server.shutdown_timeout", "30s")
	viper.SetDefault("server.mode", "release")

	// Database defaults
	viper.SetDefault("database.driver", domain.DriverSQLite)
	viper.SetDefault("database.url", "")
	viper.SetDefault("database.sqlite_path", "./data/history.db")
	viper.SetDefault("database.max_open_conns", 25)
	viper.SetDefault("database.max_idle_conns", 5)
	viper.SetDefault("database.conn_max_lifetime", "5m")
	viper.SetDefault("database.migrate_on_start", true)

	// Cache defaults
	viper.SetDefault("cache.enabled", true)
	viper.SetDefault("cache.max_items", 1024)
	viper.SetDefault("cache.default_ttl", "15m")
	viper.SetDefault("cache.redis_url", "")
	viper.SetDefault("cache.pool_size", 10)
	viper.SetDefault("cache.pool_timeout", "4s")
	viper.SetDefault("cache.max_retries", 3)

	// Logging defaults
	viper.SetDefault("logging.level", "info")
	viper.SetDefault("logging.format", "json")
	viper.SetDefault("logging.output", "stdout")

	// MCP defaults
	viper.SetDefault("mcp.server_name", "ngs-reimbursement-mcp-server")
	viper.SetDefault("mcp.server_version", "v0.1.0")
	viper.SetDefault("mcp.request_timeout", "30s")

	// Engine defaults
	viper.SetDefault("engine.catalog_file", "")
	viper.SetDefault("engine.default_catalog", "")
	viper.SetDefault("engine.default_trials", 1000)
	viper.SetDefault("engine.max_trials", 100000)
	viper.SetDefault("engine.workers", 0)

	// Rate limit defaults
	viper.SetDefault("rate_limit.enabled", true)
	viper.SetDefault("rate_limit.requests_per_second", 10)
	viper.SetDefault("rate_limit.burst", 20)
}

// GetConfig returns the complete configuration
func (m *Manager) GetConfig() *domain.Config {
	return m.config
}

// Validate validates the configuration
func (m *Manager) Validate() error {
	return ValidateConfig(m.config)
}

// ValidateConfig checks a configuration for values the server cannot start with.
func ValidateConfig(config *domain.Config) error {
	if config.Server.Port <= 0 || config.Server.Port > 65535 {
		return fmt.Errorf("invalid server port: %d", config.Server.Port)
	}

	switch config.Database.Driver {
	case domain.DriverSQLite:
		if config.Database.SQLitePath == "" {
			return fmt.Errorf("database sqlite_path is required for the sqlite driver")
		}
	case domain.DriverPostgres:
		if config.Database.URL == "" {
			return fmt.Errorf("database url is required for the postgres driver")
		}
	default:
		return fmt.Errorf("unsupported database driver: %q", config.Database.Driver)
	}

	validLogLevels := map[string]bool{
		"debug": true, "info": true, "warn": true, "error": true,
	}
	if !validLogLevels[strings.ToLower(config.Logging.Level)] {
		return fmt.Errorf("invalid log level: %s", config.Logging.Level)
	}

	engine := config.Engine
	if engine.MaxTrials <= 0 {
		return fmt.Errorf("engine max_trials must be positive: %d", engine.MaxTrials)
	}
	if engine.DefaultTrials < 1 || engine.DefaultTrials > engine.MaxTrials {
		return fmt.Errorf("engine default_trials must be within [1, %d]: %d", engine.MaxTrials, engine.DefaultTrials)
	}
	if engine.Workers < 0 {
		return fmt.Errorf("engine workers must not be negative: %d", engine.Workers)
	}

	if config.Cache.MaxItems < 0 {
		return fmt.Errorf("cache max_items must not be negative: %d", config.Cache.MaxItems)
	}

	if config.RateLimit.Enabled {
		if config.RateLimit.RequestsPerSecond <= 0 {
			return fmt.Errorf("rate_limit requests_per_second must be positive")
		}
		if config.RateLimit.Burst <= 0 {
			return fmt.Errorf("rate_limit burst must be positive")
		}
	}

	return nil
}

// IsProduction returns true if running in production mode
func (m *Manager) IsProduction() bool {
	return strings.ToLower(viper.GetString("environment")) == "production"
}
