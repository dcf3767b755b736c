package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v2"
)

// Load reads configuration from a YAML file.
func Load(path string) (*AppConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var cfg AppConfig
	// Expand environment variables in the YAML content
	expandedData := os.ExpandEnv(string(data))
	if err := yaml.Unmarshal([]byte(expandedData), &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	// Set defaults if necessary
	if cfg.Server.Port == 0 {
		cfg.Server.Port = 8080
	}

	if cfg.Refresh.MaxRetries == 0 {
		cfg.Refresh.MaxRetries = 5
	}
	if cfg.Refresh.BaseDelay == 0 {
		cfg.Refresh.BaseDelay = 1 * time.Second
	}
	if cfg.Refresh.RateLimitMax == 0 {
		cfg.Refresh.RateLimitMax = 10
	}
	if cfg.Refresh.RateLimitWindow == 0 {
		cfg.Refresh.RateLimitWindow = 1 * time.Hour
	}
	if cfg.Refresh.BatchSize == 0 {
		cfg.Refresh.BatchSize = 10
	}
	if cfg.Refresh.BatchPause == 0 {
		cfg.Refresh.BatchPause = 1 * time.Second
	}
	if cfg.Refresh.ExpiryWindow == 0 {
		cfg.Refresh.ExpiryWindow = 1 * time.Hour
	}
	if cfg.Refresh.Interval == 0 {
		cfg.Refresh.Interval = 15 * time.Minute
	}

	if cfg.Monitoring.Interval == 0 {
		cfg.Monitoring.Interval = 5 * time.Minute
	}
	if cfg.Monitoring.AttemptRetention == 0 {
		cfg.Monitoring.AttemptRetention = 30 * 24 * time.Hour
	}
	if cfg.Monitoring.MetricsRetention == 0 {
		cfg.Monitoring.MetricsRetention = 7 * 24 * time.Hour
	}
	if cfg.Monitoring.AlertRetention == 0 {
		cfg.Monitoring.AlertRetention = 90 * 24 * time.Hour
	}

	for _, p := range cfg.Providers {
		if p.Name == "" || p.TokenURL == "" {
			return nil, fmt.Errorf("provider config missing name or token_url")
		}
	}

	return &cfg, nil
}
