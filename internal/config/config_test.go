package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("CONFIG_FILE", "")
	t.Setenv("PORT", "")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.Server.Port != "8080" {
		t.Errorf("Expected default port 8080, got %s", cfg.Server.Port)
	}
	if cfg.Dispatcher.HealthRetries != 10 {
		t.Errorf("Expected 10 health retries, got %d", cfg.Dispatcher.HealthRetries)
	}
	if cfg.Dispatcher.HealthInterval != time.Second {
		t.Errorf("Expected 1s health interval, got %v", cfg.Dispatcher.HealthInterval)
	}
}

func TestLoad_FileThenEnv(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	content := `
server:
  port: "9090"
dispatcher:
  scraperUrl: http://scraper.internal:5000
  scrapeTimeout: 3s
quota:
  timezone: Asia/Ho_Chi_Minh
`
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	t.Setenv("CONFIG_FILE", path)
	t.Setenv("PORT", "7070")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.Server.Port != "7070" {
		t.Errorf("Expected env to win over file, got port %s", cfg.Server.Port)
	}
	if cfg.Dispatcher.ScraperURL != "http://scraper.internal:5000" {
		t.Errorf("Expected scraper URL from file, got %s", cfg.Dispatcher.ScraperURL)
	}
	if cfg.Dispatcher.ScrapeTimeout != 3*time.Second {
		t.Errorf("Expected 3s scrape timeout, got %v", cfg.Dispatcher.ScrapeTimeout)
	}
	if cfg.Quota.Location().String() != "Asia/Ho_Chi_Minh" {
		t.Errorf("Expected quota timezone from file, got %s", cfg.Quota.Location())
	}
	// Untouched sections keep their defaults.
	if cfg.Database.Name != "magazine" {
		t.Errorf("Expected default database name, got %s", cfg.Database.Name)
	}
}

func TestLoad_MissingFile(t *testing.T) {
	t.Setenv("CONFIG_FILE", filepath.Join(t.TempDir(), "missing.yaml"))

	if _, err := Load(); err == nil {
		t.Fatal("Expected error for missing config file")
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr bool
	}{
		{name: "defaults", mutate: func(*Config) {}},
		{name: "missing host", mutate: func(c *Config) { c.Database.Host = "" }, wantErr: true},
		{name: "zero health retries", mutate: func(c *Config) { c.Dispatcher.HealthRetries = 0 }, wantErr: true},
		{name: "zero workers", mutate: func(c *Config) { c.Jobs.MaxWorkers = 0 }, wantErr: true},
		{name: "bad timezone", mutate: func(c *Config) { c.Quota.Timezone = "Mars/Olympus" }, wantErr: true},
		{name: "write timeout equals rewrite timeout", mutate: func(c *Config) {
			c.AI.RewriteTimeout = 5 * time.Minute
			c.Server.WriteTimeout = 5 * time.Minute
		}, wantErr: true},
		{name: "write timeout below dispatch budget", mutate: func(c *Config) { c.Server.WriteTimeout = 60 * time.Second }, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.wantErr && err == nil {
				t.Error("Expected validation error")
			}
			if !tt.wantErr && err != nil {
				t.Errorf("Unexpected error: %v", err)
			}
		})
	}
}

func TestSyncBudget(t *testing.T) {
	cfg := Default()

	// 11 health checks of 2s, 10 intervals of 1s, then 30s and 60s HTTP tiers.
	if got, want := cfg.SyncBudget(), 122*time.Second; got != want {
		t.Errorf("Expected budget %v, got %v", want, got)
	}
	if cfg.Server.WriteTimeout <= cfg.SyncBudget() {
		t.Errorf("Default write timeout %v does not cover %v", cfg.Server.WriteTimeout, cfg.SyncBudget())
	}

	cfg.AI.RewriteTimeout = 10 * time.Minute
	if cfg.SyncBudget() != 10*time.Minute {
		t.Errorf("Expected rewrite timeout to dominate, got %v", cfg.SyncBudget())
	}
}
