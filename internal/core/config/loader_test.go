package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("failed to write config: %v", err)
	}
	return path
}

func TestLoad_Defaults(t *testing.T) {
	path := writeConfig(t, `
server:
  port: 0
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if cfg.Server.Port != 8080 {
		t.Errorf("expected default port 8080, got %d", cfg.Server.Port)
	}
	if cfg.Refresh.MaxRetries != 5 {
		t.Errorf("expected default max retries 5, got %d", cfg.Refresh.MaxRetries)
	}
	if cfg.Refresh.RateLimitMax != 10 {
		t.Errorf("expected default rate limit 10, got %d", cfg.Refresh.RateLimitMax)
	}
	if cfg.Refresh.RateLimitWindow != time.Hour {
		t.Errorf("expected default window 1h, got %v", cfg.Refresh.RateLimitWindow)
	}
	if cfg.Monitoring.Interval != 5*time.Minute {
		t.Errorf("expected default monitoring interval 5m, got %v", cfg.Monitoring.Interval)
	}
	if cfg.Monitoring.AttemptRetention != 30*24*time.Hour {
		t.Errorf("expected default attempt retention 30d, got %v", cfg.Monitoring.AttemptRetention)
	}
}

func TestLoad_Providers(t *testing.T) {
	path := writeConfig(t, `
providers:
  - name: google
    client_id: cid
    client_secret: secret
    token_url: https://oauth2.googleapis.com/token
  - name: github
    client_id: cid2
    client_secret: secret2
    token_url: https://github.com/login/oauth/access_token
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if len(cfg.Providers) != 2 {
		t.Fatalf("expected 2 providers, got %d", len(cfg.Providers))
	}
	if cfg.Providers[0].Name != "google" || cfg.Providers[0].ClientID != "cid" {
		t.Errorf("unexpected first provider: %+v", cfg.Providers[0])
	}
}

func TestLoad_ProviderValidation(t *testing.T) {
	path := writeConfig(t, `
providers:
  - name: google
`)

	if _, err := Load(path); err == nil {
		t.Fatal("expected error for provider without token_url")
	}
}

func TestLoad_EnvExpansion(t *testing.T) {
	t.Setenv("TEST_CLIENT_SECRET", "from-env")

	path := writeConfig(t, `
providers:
  - name: google
    client_id: cid
    client_secret: ${TEST_CLIENT_SECRET}
    token_url: https://oauth2.googleapis.com/token
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if cfg.Providers[0].ClientSecret != "from-env" {
		t.Errorf("expected env expansion, got %q", cfg.Providers[0].ClientSecret)
	}
}

func TestLoad_MissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "nope.yaml")); err == nil {
		t.Fatal("expected error for missing file")
	}
}
