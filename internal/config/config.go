// Package config loads runtime configuration from the environment.
// Flags layered on top of it by the CLI take precedence.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/kdbartholomew/flowzero-orders-cli/internal/logging"
	"github.com/kdbartholomew/flowzero-orders-cli/internal/storage"
)

// Config is the full runtime configuration.
type Config struct {
	Planet  PlanetConfig
	Search  SearchConfig
	Storage storage.Config
	Ledger  LedgerConfig
	Bundle  BundleConfig
	Logging logging.Config
}

// PlanetConfig holds credentials and client tuning for the imagery API.
type PlanetConfig struct {
	APIKey      string
	BaseURL     string
	PageDelay   time.Duration
	MaxAttempts int
}

// SearchConfig holds default search and selection parameters.
type SearchConfig struct {
	CloudCoverMax  float64
	MinCoveragePct float64
}

// LedgerConfig locates the order ledger file.
type LedgerConfig struct {
	Path string
}

// BundleConfig optionally points at an external bundle catalog. Empty
// means the embedded catalog.
type BundleConfig struct {
	CatalogPath string
}

// Load reads configuration from the environment.
func Load() Config {
	return Config{
		Planet: PlanetConfig{
			APIKey:      os.Getenv("PL_API_KEY"),
			BaseURL:     os.Getenv("FLOWZERO_PLANET_URL"),
			PageDelay:   parseDuration(os.Getenv("FLOWZERO_PAGE_DELAY"), time.Second),
			MaxAttempts: parseInt(os.Getenv("FLOWZERO_MAX_ATTEMPTS"), 3),
		},
		Search: SearchConfig{
			CloudCoverMax:  parseFloat(os.Getenv("FLOWZERO_CLOUD_COVER_MAX"), 0.1),
			MinCoveragePct: parseFloat(os.Getenv("FLOWZERO_MIN_COVERAGE"), 99.0),
		},
		Storage: storage.Config{
			Backend:    getenvDefault("FLOWZERO_STORAGE_BACKEND", "local"),
			LocalDir:   getenvDefault("FLOWZERO_LOCAL_DIR", "./data"),
			Bucket:     os.Getenv("FLOWZERO_STORAGE_BUCKET"),
			S3Endpoint: os.Getenv("FLOWZERO_S3_ENDPOINT"),
			S3Region:   os.Getenv("FLOWZERO_S3_REGION"),
			Prefix:     os.Getenv("FLOWZERO_STORAGE_PREFIX"),
		},
		Ledger: LedgerConfig{
			Path: getenvDefault("FLOWZERO_LEDGER_PATH", "orders.json"),
		},
		Bundle: BundleConfig{
			CatalogPath: os.Getenv("FLOWZERO_BUNDLE_CATALOG"),
		},
		Logging: logging.Config{
			Format: getenvDefault("FLOWZERO_LOG_FORMAT", "text"),
			Level:  getenvDefault("FLOWZERO_LOG_LEVEL", "info"),
		},
	}
}

// ValidateForAPI checks everything a network-touching command needs
// before any request goes out.
func (c Config) ValidateForAPI() error {
	if c.Planet.APIKey == "" {
		return fmt.Errorf("PL_API_KEY is not set")
	}
	return nil
}

// ValidateForStorage checks the storage backend settings.
func (c Config) ValidateForStorage() error {
	switch c.Storage.Backend {
	case "local":
		if c.Storage.LocalDir == "" {
			return fmt.Errorf("FLOWZERO_LOCAL_DIR is not set")
		}
	case "gcs", "s3":
		if c.Storage.Bucket == "" {
			return fmt.Errorf("FLOWZERO_STORAGE_BUCKET is not set")
		}
	default:
		return fmt.Errorf("unknown storage backend %q", c.Storage.Backend)
	}
	return nil
}

func getenvDefault(key, def string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return def
}

func parseInt(v string, def int) int {
	if v == "" {
		return def
	}
	parsed, err := strconv.Atoi(v)
	if err != nil {
		return def
	}
	return parsed
}

func parseFloat(v string, def float64) float64 {
	if v == "" {
		return def
	}
	parsed, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return def
	}
	return parsed
}

func parseDuration(v string, def time.Duration) time.Duration {
	if v == "" {
		return def
	}
	parsed, err := time.ParseDuration(v)
	if err != nil {
		return def
	}
	return parsed
}
