// Package config provides application configuration with multi-source
// priority.
//
// Sources, highest to lowest:
//  1. Environment variables (FACT_* plus GITHUB_TOKEN)
//  2. Config file (~/.fact-tools/config.yaml)
//  3. Defaults
//
// Categories:
//   - Storage: backend selection, storage root, file-backend JSON mode
//   - GitHub: API endpoints, token, request timeout
//   - Log: level and format
//
// The GitHub token is never written to the config file by this package and
// never logged.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/viper"
)

// Backend names accepted by storage.backend.
const (
	BackendBadger = "badger"
	BackendFile   = "file"
)

// Sentinel errors for configuration validation. Check with errors.Is().
var (
	// ErrInvalidBackend indicates an unknown storage.backend value.
	ErrInvalidBackend = errors.New("invalid storage backend")

	// ErrInvalidTimeout indicates a non-positive github.timeout_seconds.
	ErrInvalidTimeout = errors.New("invalid github timeout")
)

// Config is the resolved application configuration.
type Config struct {
	// Storage
	StorageBackend string `mapstructure:"storage_backend"`
	StoragePath    string `mapstructure:"storage_path"`
	ProjectLocal   bool   `mapstructure:"project_local"`
	JSONMode       bool   `mapstructure:"json_mode"`

	// GitHub
	GitHubGraphQLURL    string `mapstructure:"github_graphql_url"`
	GitHubRESTURL       string `mapstructure:"github_rest_url"`
	GitHubToken         string `mapstructure:"github_token"`
	GitHubTimeoutSecond int    `mapstructure:"github_timeout_seconds"`

	// Log
	LogLevel string `mapstructure:"log_level"`
	LogJSON  bool   `mapstructure:"log_json"`
}

// Load reads configuration from defaults, the config file and the
// environment, then validates the result.
func Load() (*Config, error) {
	v := viper.New()

	v.SetDefault("storage_backend", BackendBadger)
	v.SetDefault("storage_path", "")
	v.SetDefault("project_local", false)
	v.SetDefault("json_mode", false)
	v.SetDefault("github_graphql_url", "https://api.github.com/graphql")
	v.SetDefault("github_rest_url", "https://api.github.com")
	v.SetDefault("github_token", "")
	v.SetDefault("github_timeout_seconds", 30)
	v.SetDefault("log_level", "info")
	v.SetDefault("log_json", false)

	if dir, err := configDir(); err == nil {
		v.AddConfigPath(dir)
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		if err := v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) {
				return nil, fmt.Errorf("read config file: %w", err)
			}
		}
	}

	v.SetEnvPrefix("FACT")
	v.AutomaticEnv()

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	// GITHUB_TOKEN is the conventional variable; FACT_GITHUB_TOKEN wins
	// when both are set.
	if cfg.GitHubToken == "" {
		cfg.GitHubToken = os.Getenv("GITHUB_TOKEN")
	}

	if cfg.StoragePath == "" {
		path, err := defaultStoragePath(cfg.ProjectLocal)
		if err != nil {
			return nil, err
		}
		cfg.StoragePath = path
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate performs range and enum checks.
func (c *Config) Validate() error {
	if c.StorageBackend != BackendBadger && c.StorageBackend != BackendFile {
		return fmt.Errorf("%w: %q (want %q or %q)", ErrInvalidBackend, c.StorageBackend, BackendBadger, BackendFile)
	}
	if c.GitHubTimeoutSecond <= 0 {
		return fmt.Errorf("%w: %d seconds", ErrInvalidTimeout, c.GitHubTimeoutSecond)
	}
	return nil
}

// GitHubTimeout returns the request timeout as a duration.
func (c *Config) GitHubTimeout() time.Duration {
	return time.Duration(c.GitHubTimeoutSecond) * time.Second
}

// configDir is ~/.fact-tools, created with owner-only group permissions.
func configDir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("resolve home directory: %w", err)
	}
	dir := filepath.Join(home, ".fact-tools")
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return "", fmt.Errorf("create config directory: %w", err)
	}
	return dir, nil
}

// defaultStoragePath resolves the storage root. Project-local storage lives
// under the working directory; the user-global default lives under the
// platform data directory (XDG_DATA_HOME or ~/.local/share on Linux).
func defaultStoragePath(projectLocal bool) (string, error) {
	if projectLocal {
		return filepath.Join(".fact-tools", "storage"), nil
	}

	dataDir := os.Getenv("XDG_DATA_HOME")
	if dataDir == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home directory: %w", err)
		}
		dataDir = filepath.Join(home, ".local", "share")
	}
	return filepath.Join(dataDir, "fact-tools", "storage"), nil
}
