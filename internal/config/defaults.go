package config

import (
	"os"
	"path/filepath"
	"time"
)

// DefaultIdentifierHeader is the header of the short name column in meter exports.
const DefaultIdentifierHeader = "Short name"

// ApplyDefaults sets default values for any zero values in cfg.
func ApplyDefaults(cfg *Config) {
	if cfg.Server.Host == "" {
		cfg.Server.Host = "localhost"
	}
	if cfg.Server.Port == 0 {
		cfg.Server.Port = 8080
	}
	if cfg.Server.MaxUploadMB == 0 {
		cfg.Server.MaxUploadMB = 64
	}
	if cfg.Storage.DatabasePath == "" {
		cfg.Storage.DatabasePath = filepath.Join(os.TempDir(), "jikan", "results.db")
	}
	if cfg.Storage.ResultTTL == 0 {
		cfg.Storage.ResultTTL = time.Hour
	}
	if cfg.Sheet.IdentifierHeader == "" {
		cfg.Sheet.IdentifierHeader = DefaultIdentifierHeader
	}
	if cfg.Sheet.DataStartColumn == nil {
		n := 2
		cfg.Sheet.DataStartColumn = &n
	}
	if cfg.Sheet.Extensions == nil {
		cfg.Sheet.Extensions = []string{".xlsx", ".xlsm", ".ods", ".csv", ".zip"}
	}
	if cfg.Transform.Concurrency <= 0 {
		cfg.Transform.Concurrency = 4
	}
}
