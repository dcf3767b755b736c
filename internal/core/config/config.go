package config

import (
	"time"

	redisclient "github.com/vietddude/tokenkeeper/internal/infra/redis"
	"github.com/vietddude/tokenkeeper/internal/infra/storage/postgres"
)

// AppConfig represents the top-level configuration.
type AppConfig struct {
	Server     ServerConfig       `yaml:"server"`
	Database   postgres.Config    `yaml:"database"`
	Redis      redisclient.Config `yaml:"redis"`
	Logging    LoggingConfig      `yaml:"logging"`
	Refresh    RefreshConfig      `yaml:"refresh"`
	Monitoring MonitoringConfig   `yaml:"monitoring"`
	Providers  []ProviderConfig   `yaml:"providers"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Port int `yaml:"port"`
}

// LoggingConfig holds logging configuration.
type LoggingConfig struct {
	Level  string `yaml:"level"`  // debug, info, warn, error
	Format string `yaml:"format"` // json, text
}

// RefreshConfig holds retry, rate-limit and bulk execution settings.
type RefreshConfig struct {
	MaxRetries      int           `yaml:"max_retries"`
	BaseDelay       time.Duration `yaml:"base_delay"`
	RateLimitMax    int           `yaml:"rate_limit_max"`
	RateLimitWindow time.Duration `yaml:"rate_limit_window"`
	BatchSize       int           `yaml:"batch_size"`
	BatchPause      time.Duration `yaml:"batch_pause"`
	ExpiryWindow    time.Duration `yaml:"expiry_window"`
	Interval        time.Duration `yaml:"interval"` // bulk refresh cadence
}

// MonitoringConfig holds the monitoring cadence and retention windows.
type MonitoringConfig struct {
	Interval         time.Duration `yaml:"interval"`
	AttemptRetention time.Duration `yaml:"attempt_retention"`
	MetricsRetention time.Duration `yaml:"metrics_retention"`
	AlertRetention   time.Duration `yaml:"alert_retention"`
}

// ProviderConfig holds OAuth credentials for one provider.
type ProviderConfig struct {
	Name         string `yaml:"name"`
	ClientID     string `yaml:"client_id"`
	ClientSecret string `yaml:"client_secret"`
	TokenURL     string `yaml:"token_url"`
}
