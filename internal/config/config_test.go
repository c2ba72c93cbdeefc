package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"
)

// isolate points HOME and the data directory at temp space so tests never
// read the developer's real config file.
func isolate(t *testing.T) string {
	t.Helper()
	home := t.TempDir()
	t.Setenv("HOME", home)
	t.Setenv("XDG_DATA_HOME", filepath.Join(home, "data"))
	t.Setenv("GITHUB_TOKEN", "")
	return home
}

func TestLoadDefaults(t *testing.T) {
	home := isolate(t)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}

	if cfg.StorageBackend != BackendBadger {
		t.Errorf("StorageBackend = %q, want %q", cfg.StorageBackend, BackendBadger)
	}
	want := filepath.Join(home, "data", "fact-tools", "storage")
	if cfg.StoragePath != want {
		t.Errorf("StoragePath = %q, want %q", cfg.StoragePath, want)
	}
	if cfg.JSONMode {
		t.Error("JSONMode defaults to true, want false")
	}
	if cfg.GitHubGraphQLURL != "https://api.github.com/graphql" {
		t.Errorf("GitHubGraphQLURL = %q", cfg.GitHubGraphQLURL)
	}
	if cfg.GitHubTimeout() != 30*time.Second {
		t.Errorf("GitHubTimeout() = %v, want 30s", cfg.GitHubTimeout())
	}
	if cfg.GitHubToken != "" {
		t.Errorf("GitHubToken = %q, want empty", cfg.GitHubToken)
	}
	if cfg.LogLevel != "info" {
		t.Errorf("LogLevel = %q, want info", cfg.LogLevel)
	}
}

func TestLoadEnvOverrides(t *testing.T) {
	isolate(t)
	t.Setenv("FACT_STORAGE_BACKEND", BackendFile)
	t.Setenv("FACT_JSON_MODE", "true")
	t.Setenv("FACT_GITHUB_TIMEOUT_SECONDS", "5")
	t.Setenv("FACT_LOG_LEVEL", "debug")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}

	if cfg.StorageBackend != BackendFile {
		t.Errorf("StorageBackend = %q, want %q", cfg.StorageBackend, BackendFile)
	}
	if !cfg.JSONMode {
		t.Error("JSONMode not taken from the environment")
	}
	if cfg.GitHubTimeout() != 5*time.Second {
		t.Errorf("GitHubTimeout() = %v, want 5s", cfg.GitHubTimeout())
	}
	if cfg.LogLevel != "debug" {
		t.Errorf("LogLevel = %q, want debug", cfg.LogLevel)
	}
}

func TestLoadTokenFallback(t *testing.T) {
	isolate(t)
	t.Setenv("GITHUB_TOKEN", "ghp_conventional")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	if cfg.GitHubToken != "ghp_conventional" {
		t.Errorf("GitHubToken = %q, want the conventional variable", cfg.GitHubToken)
	}

	// FACT_GITHUB_TOKEN wins over GITHUB_TOKEN.
	t.Setenv("FACT_GITHUB_TOKEN", "ghp_prefixed")
	cfg, err = Load()
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	if cfg.GitHubToken != "ghp_prefixed" {
		t.Errorf("GitHubToken = %q, want the prefixed variable to win", cfg.GitHubToken)
	}
}

func TestLoadConfigFile(t *testing.T) {
	home := isolate(t)

	dir := filepath.Join(home, ".fact-tools")
	if err := os.MkdirAll(dir, 0o750); err != nil {
		t.Fatalf("create config directory: %v", err)
	}
	content := "storage_backend: file\nlog_level: warn\n"
	if err := os.WriteFile(filepath.Join(dir, "config.yaml"), []byte(content), 0o600); err != nil {
		t.Fatalf("write config file: %v", err)
	}

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	if cfg.StorageBackend != BackendFile {
		t.Errorf("StorageBackend = %q, want the config file value", cfg.StorageBackend)
	}
	if cfg.LogLevel != "warn" {
		t.Errorf("LogLevel = %q, want warn", cfg.LogLevel)
	}

	// Environment still outranks the file.
	t.Setenv("FACT_LOG_LEVEL", "error")
	cfg, err = Load()
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	if cfg.LogLevel != "error" {
		t.Errorf("LogLevel = %q, want the environment to win", cfg.LogLevel)
	}
}

func TestLoadProjectLocalStorage(t *testing.T) {
	isolate(t)
	t.Setenv("FACT_PROJECT_LOCAL", "true")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	want := filepath.Join(".fact-tools", "storage")
	if cfg.StoragePath != want {
		t.Errorf("StoragePath = %q, want project-local %q", cfg.StoragePath, want)
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr error
	}{
		{
			name:   "valid",
			mutate: func(c *Config) {},
		},
		{
			name:    "unknown backend",
			mutate:  func(c *Config) { c.StorageBackend = "sled" },
			wantErr: ErrInvalidBackend,
		},
		{
			name:    "zero timeout",
			mutate:  func(c *Config) { c.GitHubTimeoutSecond = 0 },
			wantErr: ErrInvalidTimeout,
		},
		{
			name:    "negative timeout",
			mutate:  func(c *Config) { c.GitHubTimeoutSecond = -1 },
			wantErr: ErrInvalidTimeout,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := &Config{
				StorageBackend:      BackendBadger,
				GitHubTimeoutSecond: 30,
			}
			tt.mutate(cfg)

			err := cfg.Validate()
			if tt.wantErr == nil {
				if err != nil {
					t.Fatalf("Validate() error: %v", err)
				}
				return
			}
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("Validate() error = %v, want %v", err, tt.wantErr)
			}
		})
	}
}

func TestLoadRejectsInvalidBackend(t *testing.T) {
	isolate(t)
	t.Setenv("FACT_STORAGE_BACKEND", "sled")

	if _, err := Load(); !errors.Is(err, ErrInvalidBackend) {
		t.Fatalf("Load() error = %v, want ErrInvalidBackend", err)
	}
}
