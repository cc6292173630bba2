package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Config represents the application configuration
type Config struct {
	Database  DatabaseConfig  `yaml:"database"`
	Search    SearchConfig    `yaml:"search"`
	Assets    AssetsConfig    `yaml:"assets"`
	Reconcile ReconcileConfig `yaml:"reconcile"`
	RateLimit RateLimitConfig `yaml:"rate_limit"`
	Logging   LoggingConfig   `yaml:"logging"`
	Timezone  string          `yaml:"timezone"`
}

// DatabaseConfig contains database settings
type DatabaseConfig struct {
	MySQL  MySQLConfig  `yaml:"mysql"`
	Legacy LegacyConfig `yaml:"legacy"`
}

// MySQLConfig contains connection settings for the canonical store
type MySQLConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	Database string `yaml:"database"`
}

// LegacyConfig contains connection settings for the old Postgres schema.
// The legacy import endpoint is disabled when Enabled is false.
type LegacyConfig struct {
	Enabled  bool   `yaml:"enabled"`
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	Database string `yaml:"database"`
	SSLMode  string `yaml:"sslmode"`
}

// SearchConfig contains search engine settings
type SearchConfig struct {
	Meilisearch MeilisearchConfig `yaml:"meilisearch"`
}

// MeilisearchConfig contains Meilisearch connection settings
type MeilisearchConfig struct {
	Host   string `yaml:"host"`
	APIKey string `yaml:"api_key"`
}

// AssetsConfig describes the public asset root and optional placeholder
// sources used by the reconciliation sweep.
type AssetsConfig struct {
	Root string `yaml:"root"`
	// Placeholders maps asset kind (building_image, floor_image,
	// profile_photo) to a source file copied in when neither a file nor a
	// DB reference exists. Kinds without a placeholder are reported as
	// missing instead.
	Placeholders map[string]string `yaml:"placeholders"`
}

// ReconcileConfig contains reconciliation sweep settings
type ReconcileConfig struct {
	Workers         int    `yaml:"workers"`
	NightlyEnabled  bool   `yaml:"nightly_enabled"`
	NightlyRunTime  string `yaml:"nightly_run_time"`
	NightlyDryRun   bool   `yaml:"nightly_dry_run"`
}

// RateLimitConfig contains rate limiting settings for mutating endpoints
type RateLimitConfig struct {
	Enabled           bool `yaml:"enabled"`
	RequestsPerMinute int  `yaml:"requests_per_minute"`
	RequestsPerHour   int  `yaml:"requests_per_hour"`
}

// LoggingConfig contains logging settings
type LoggingConfig struct {
	Level       string `yaml:"level"`
	LogRequests bool   `yaml:"log_requests"`
}

// DefaultConfig returns default configuration
func DefaultConfig() *Config {
	return &Config{
		Assets: AssetsConfig{
			Root: "./public",
		},
		Reconcile: ReconcileConfig{
			Workers:        4,
			NightlyEnabled: false,
			NightlyRunTime: "03:00",
			NightlyDryRun:  false,
		},
		RateLimit: RateLimitConfig{
			Enabled:           true,
			RequestsPerMinute: 60,
			RequestsPerHour:   1000,
		},
		Logging: LoggingConfig{
			Level:       "info",
			LogRequests: true,
		},
		Timezone: "America/Mexico_City",
	}
}

// LoadConfig loads configuration from a YAML file
func LoadConfig(filepath string) (*Config, error) {
	// Start with default config
	config := DefaultConfig()

	// If file doesn't exist, return default config
	if _, err := os.Stat(filepath); os.IsNotExist(err) {
		return config, nil
	}

	data, err := os.ReadFile(filepath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	if err := yaml.Unmarshal(data, config); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	return config, nil
}
