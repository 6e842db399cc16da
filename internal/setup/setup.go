// Package setup registers the lite MCP server with desktop MCP clients.
package setup

import (
	"encoding/json"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
)

const (
	// ServerName is the key the server is registered under in the client config.
	ServerName = "ngs-reimbursement"

	// DataDirEnv is read by the lite server to locate its data directory.
	DataDirEnv = "NGS_DATA_DIR"

	liteBinary = "mcp-server-lite"
)

// ClientConfig represents the desktop client configuration file structure.
type ClientConfig struct {
	MCPServers map[string]MCPServerConfig `json:"mcpServers"`

	// other top-level keys are preserved on save
	extra map[string]json.RawMessage
}

// MCPServerConfig represents a single MCP server configuration.
type MCPServerConfig struct {
	Command string            `json:"command"`
	Args    []string          `json:"args,omitempty"`
	Env     map[string]string `json:"env,omitempty"`
}

// Options contains options for the setup process.
type Options struct {
	ConfigPath  string // Client config file; the platform default when empty
	BinaryPath  string // Path to the server binary
	DataDir     string // Data directory for the lite server
	CatalogFile string // Optional catalog file passed to the server
	AutoConfirm bool   // Skip confirmation prompts
}

// DefaultConfigPath returns the platform location of the desktop client config.
func DefaultConfigPath() (string, error) {
	var configDir string

	switch runtime.GOOS {
	case "darwin":
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("failed to get home directory: %w", err)
		}
		configDir = filepath.Join(home, "Library", "Application Support", "Claude")
	case "linux":
		if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
			configDir = filepath.Join(xdg, "Claude")
		} else {
			home, err := os.UserHomeDir()
			if err != nil {
				return "", fmt.Errorf("failed to get home directory: %w", err)
			}
			configDir = filepath.Join(home, ".config", "Claude")
		}
	case "windows":
		appData := os.Getenv("APPDATA")
		if appData == "" {
			return "", fmt.Errorf("APPDATA environment variable not set")
		}
		configDir = filepath.Join(appData, "Claude")
	default:
		return "", fmt.Errorf("unsupported operating system: %s", runtime.GOOS)
	}

	return filepath.Join(configDir, "claude_desktop_config.json"), nil
}

func resolveConfigPath(path string) (string, error) {
	if path != "" {
		return path, nil
	}
	return DefaultConfigPath()
}

// LoadConfig loads the client configuration. A missing file yields an empty one.
func LoadConfig(configPath string) (*ClientConfig, error) {
	config := &ClientConfig{MCPServers: make(map[string]MCPServerConfig)}

	data, err := os.ReadFile(configPath)
	if err != nil {
		if os.IsNotExist(err) {
			return config, nil
		}
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	if err := json.Unmarshal(data, &config.extra); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}
	if raw, ok := config.extra["mcpServers"]; ok {
		if err := json.Unmarshal(raw, &config.MCPServers); err != nil {
			return nil, fmt.Errorf("failed to parse mcpServers: %w", err)
		}
		delete(config.extra, "mcpServers")
	}
	if config.MCPServers == nil {
		config.MCPServers = make(map[string]MCPServerConfig)
	}

	return config, nil
}

// SaveConfig writes the client configuration, creating its directory.
func SaveConfig(configPath string, config *ClientConfig) error {
	if err := os.MkdirAll(filepath.Dir(configPath), 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	out := make(map[string]any, len(config.extra)+1)
	for k, v := range config.extra {
		out[k] = v
	}
	out["mcpServers"] = config.MCPServers

	data, err := json.MarshalIndent(out, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}
	if err := os.WriteFile(configPath, data, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}

// Configure adds or updates the server entry and returns the config path written.
func Configure(opts Options) (string, error) {
	configPath, err := resolveConfigPath(opts.ConfigPath)
	if err != nil {
		return "", err
	}

	config, err := LoadConfig(configPath)
	if err != nil {
		return "", err
	}

	binaryPath := opts.BinaryPath
	if binaryPath == "" {
		if binaryPath, err = findBinary(); err != nil {
			return "", fmt.Errorf("could not find server binary: %w", err)
		}
	}

	entry := MCPServerConfig{
		Command: binaryPath,
		Env:     make(map[string]string),
	}
	if opts.DataDir != "" {
		entry.Env[DataDirEnv] = opts.DataDir
	}
	if opts.CatalogFile != "" {
		entry.Env["NGS_CATALOG_FILE"] = opts.CatalogFile
	}
	config.MCPServers[ServerName] = entry

	if err := SaveConfig(configPath, config); err != nil {
		return "", err
	}
	return configPath, nil
}

// findBinary looks for the lite server on PATH and in common locations.
func findBinary() (string, error) {
	if path, err := exec.LookPath(liteBinary); err == nil {
		return path, nil
	}

	home, _ := os.UserHomeDir()
	locations := []string{
		"./" + liteBinary,
		"./build/" + liteBinary,
		filepath.Join(home, ".local", "bin", liteBinary),
		"/usr/local/bin/" + liteBinary,
	}
	for _, loc := range locations {
		if _, err := os.Stat(loc); err == nil {
			if abs, err := filepath.Abs(loc); err == nil {
				return abs, nil
			}
			return loc, nil
		}
	}

	return "", fmt.Errorf("binary '%s' not found in common locations", liteBinary)
}

// Status represents the current setup status.
type Status struct {
	ConfigPath       string   `json:"config_path"`
	ServerConfigured bool     `json:"server_configured"`
	ServerPath       string   `json:"server_path,omitempty"`
	DataDir          string   `json:"data_dir"`
	HistoryDBPresent bool     `json:"history_db_present"`
	Issues           []string `json:"issues,omitempty"`
	Warnings         []string `json:"warnings,omitempty"`
}

// Valid reports whether the setup has no blocking issues.
func (s *Status) Valid() bool {
	return s.ServerConfigured && len(s.Issues) == 0
}

// GetStatus inspects the client config and the server's data directory.
func GetStatus(configPath string) (*Status, error) {
	configPath, err := resolveConfigPath(configPath)
	if err != nil {
		return nil, err
	}
	status := &Status{ConfigPath: configPath}

	config, err := LoadConfig(configPath)
	if err != nil {
		status.Issues = append(status.Issues, fmt.Sprintf("Could not load client config: %v", err))
	} else if entry, ok := config.MCPServers[ServerName]; ok {
		status.ServerConfigured = true
		status.ServerPath = entry.Command
		status.DataDir = entry.Env[DataDirEnv]

		if info, err := os.Stat(entry.Command); err != nil {
			status.Issues = append(status.Issues, fmt.Sprintf("Server binary not found: %s", entry.Command))
		} else if info.Mode()&0111 == 0 {
			status.Issues = append(status.Issues, fmt.Sprintf("Server binary is not executable: %s", entry.Command))
		}
	} else {
		status.Issues = append(status.Issues, "NGS reimbursement server is not configured")
	}

	if status.DataDir == "" {
		status.DataDir = DefaultDataDir()
	}
	if _, err := os.Stat(status.DataDir); os.IsNotExist(err) {
		status.Warnings = append(status.Warnings, fmt.Sprintf("Data directory will be created on first run: %s", status.DataDir))
	}
	if _, err := os.Stat(filepath.Join(status.DataDir, "history.db")); err == nil {
		status.HistoryDBPresent = true
	}

	return status, nil
}

// DefaultDataDir returns the default data directory path.
func DefaultDataDir() string {
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".ngs-reimbursement-mcp")
}

// EnsureDataDir creates the data directory and its exports subdirectory.
func EnsureDataDir(dataDir string) error {
	if dataDir == "" {
		dataDir = DefaultDataDir()
	}
	if err := os.MkdirAll(filepath.Join(dataDir, "exports"), 0755); err != nil {
		return fmt.Errorf("failed to create data directory: %w", err)
	}
	return nil
}
