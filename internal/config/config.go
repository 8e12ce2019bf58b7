// Package config provides configuration loading and structs for jikan.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds all configuration for the application.
type Config struct {
	Debug     bool            `yaml:"debug"`
	Server    ServerConfig    `yaml:"server"`
	Storage   StorageConfig   `yaml:"storage"`
	Sheet     SheetConfig     `yaml:"sheet"`
	Transform TransformConfig `yaml:"transform"`
	Watch     WatchConfig     `yaml:"watch"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Host           string   `yaml:"host"`
	Port           int      `yaml:"port"`
	MaxUploadMB    int64    `yaml:"max_upload_mb"`
	AllowedOrigins []string `yaml:"allowed_origins"`
}

// MaxUploadBytes returns the upload limit in bytes.
func (s *ServerConfig) MaxUploadBytes() int64 {
	return s.MaxUploadMB << 20
}

// StorageConfig holds the transient result store settings.
type StorageConfig struct {
	DatabasePath string        `yaml:"database_path"`
	ResultTTL    time.Duration `yaml:"result_ttl"`
}

// SheetConfig describes how source spreadsheets are laid out.
type SheetConfig struct {
	// IdentifierHeader is the header label of the short name column.
	IdentifierHeader string `yaml:"identifier_header"`
	// SheetName selects a sheet by name; empty means the first sheet.
	SheetName string `yaml:"sheet_name"`
	// DataStartColumn is the zero-based index of the first measurement column.
	DataStartColumn *int     `yaml:"data_start_column"`
	Extensions      []string `yaml:"extensions"`
}

// StartColumn returns the first measurement column index; defaults to 2 when unset.
func (s *SheetConfig) StartColumn() int {
	if s.DataStartColumn != nil {
		return *s.DataStartColumn
	}
	return 2
}

// TransformConfig holds reshape settings.
type TransformConfig struct {
	Concurrency int `yaml:"concurrency"`
}

// WatchConfig holds inbox watch settings.
type WatchConfig struct {
	Inbox      string   `yaml:"inbox"`
	Outbox     string   `yaml:"outbox"`
	ShortNames []string `yaml:"short_names"`
	Recursive  *bool    `yaml:"recursive"`
}

// RecursiveOrDefault returns whether to watch recursively; defaults to false when unset.
func (w *WatchConfig) RecursiveOrDefault() bool {
	if w.Recursive != nil {
		return *w.Recursive
	}
	return false
}

// Load reads and parses the config file at path, expands paths, and applies defaults.
// Returns an error if the file cannot be read or parsed.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	ApplyDefaults(&cfg)

	configDir := filepath.Dir(path)
	cfg.Storage.DatabasePath = expandPath(cfg.Storage.DatabasePath, configDir)
	cfg.Watch.Inbox = expandPath(cfg.Watch.Inbox, configDir)
	cfg.Watch.Outbox = expandPath(cfg.Watch.Outbox, configDir)

	return &cfg, nil
}

// Default returns a config with all defaults applied, for running without a config file.
func Default() *Config {
	cfg := &Config{}
	ApplyDefaults(cfg)
	return cfg
}

// Save writes the config to path.
func Save(path string, cfg *Config) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}
	if err := os.WriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}
	return nil
}

// expandPath converts a path to absolute. Paths starting with "./" are relative to configDir;
// "~/" is relative to the home directory. Empty paths stay empty.
func expandPath(path string, configDir string) string {
	if path == "" || filepath.IsAbs(path) {
		return path
	}
	if strings.HasPrefix(path, "./") || path == "." {
		return filepath.Join(configDir, path)
	}
	if strings.HasPrefix(path, "~/") {
		if home, err := os.UserHomeDir(); err == nil {
			return filepath.Join(home, path[2:])
		}
	}
	return path
}
