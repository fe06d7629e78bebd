package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Server.Port != 8080 {
		t.Fatalf("expected port 8080, got %d", cfg.Server.Port)
	}
	if cfg.Refresh.Interval != 24*time.Hour || !cfg.Refresh.OnStartup {
		t.Fatalf("unexpected refresh defaults: %+v", cfg.Refresh)
	}
	if cfg.Store.Provider != ProviderMemory || cfg.Channel.Provider != ProviderMemory {
		t.Fatalf("expected memory providers, got %q/%q", cfg.Store.Provider, cfg.Channel.Provider)
	}
	if got := cfg.ScrapeTimeout(); got != 10*time.Second {
		t.Fatalf("expected scrape timeout 10s, got %v", got)
	}
	if cfg.Store.Postgres.Table != "tracked_bots" {
		t.Fatalf("expected default table, got %q", cfg.Store.Postgres.Table)
	}
	if cfg.Channel.Webhook.LedgerPath != "webhook_messages.json" {
		t.Fatalf("expected default webhook ledger path, got %q", cfg.Channel.Webhook.LedgerPath)
	}
}

func TestLoadWithFileOverrides(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	configYAML := `
server:
  port: 9090
  api_key: secret
logging:
  development: false
scraper:
  user_agent: real-agent
  timeout_seconds: 5
  headless: true
  nav_timeout_seconds: 30
  requests_per_second: 0.5
  burst: 2
  refresh_concurrency: 8
store:
  provider: postgres
  postgres:
    dsn: postgres://localhost/bots
    table: bots
    max_conns: 10
channel:
  provider: webhook
  webhook:
    url: https://discord.example/api/webhooks/1/abc
    ledger_path: /var/lib/botboard/messages.json
refresh:
  interval: 6h
  on_startup: false
  rescrape: true
commands:
  allowed_channels: ["111", "222"]
  admin_ids: ["42"]
`
	if err := os.WriteFile(path, []byte(configYAML), 0o600); err != nil {
		t.Fatalf("failed to write config: %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Server.Port != 9090 || cfg.Server.APIKey != "secret" {
		t.Fatalf("unexpected server config: %+v", cfg.Server)
	}
	if cfg.Logging.Development {
		t.Fatal("expected production logging")
	}
	if !cfg.Scraper.Headless || cfg.NavTimeout() != 30*time.Second || cfg.Scraper.RequestsPerSecond != 0.5 {
		t.Fatalf("unexpected scraper config: %+v", cfg.Scraper)
	}
	if cfg.Store.Provider != ProviderPostgres || cfg.Store.Postgres.Table != "bots" || cfg.Store.Postgres.MaxConns != 10 {
		t.Fatalf("unexpected store config: %+v", cfg.Store)
	}
	if cfg.Channel.Webhook.URL == "" || cfg.Channel.Webhook.LedgerPath != "/var/lib/botboard/messages.json" {
		t.Fatalf("unexpected webhook config: %+v", cfg.Channel.Webhook)
	}
	if cfg.Refresh.Interval != 6*time.Hour || cfg.Refresh.OnStartup || !cfg.Refresh.Rescrape {
		t.Fatalf("unexpected refresh config: %+v", cfg.Refresh)
	}
	if len(cfg.Commands.AllowedChannels) != 2 || cfg.Commands.AdminIDs[0] != "42" {
		t.Fatalf("unexpected commands config: %+v", cfg.Commands)
	}
}

func TestLoadEnvOverrides(t *testing.T) {
	t.Setenv("BOTBOARD_SERVER_PORT", "7070")
	t.Setenv("BOTBOARD_STORE_PROVIDER", "sqlite")
	t.Setenv("BOTBOARD_STORE_SQLITE_PATH", "/tmp/bots.db")

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Server.Port != 7070 {
		t.Fatalf("expected env port 7070, got %d", cfg.Server.Port)
	}
	if cfg.Store.Provider != ProviderSQLite || cfg.Store.SQLite.Path != "/tmp/bots.db" {
		t.Fatalf("unexpected store config: %+v", cfg.Store)
	}
}

func TestLoadMissingFile(t *testing.T) {
	t.Parallel()

	if _, err := Load(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Fatal("expected error for missing config file")
	}
}

func TestConfigValidateErrors(t *testing.T) {
	t.Parallel()

	base := Config{
		Server:  ServerConfig{Port: 8080},
		Scraper: ScraperConfig{TimeoutSeconds: 10, RefreshConcurrency: 1},
		Store:   StoreConfig{Provider: ProviderMemory},
		Channel: ChannelConfig{Provider: ProviderMemory},
		Refresh: RefreshConfig{Interval: time.Hour},
	}
	if err := base.Validate(); err != nil {
		t.Fatalf("base config should validate: %v", err)
	}

	tests := []struct {
		name   string
		mutate func(*Config)
		want   string
	}{
		{"invalid port", func(c *Config) { c.Server.Port = 0 }, "server.port"},
		{"invalid timeout", func(c *Config) { c.Scraper.TimeoutSeconds = 0 }, "scraper.timeout_seconds"},
		{"headless without nav timeout", func(c *Config) { c.Scraper.Headless = true }, "scraper.nav_timeout_seconds"},
		{"negative rate", func(c *Config) { c.Scraper.RequestsPerSecond = -1 }, "scraper.requests_per_second"},
		{"invalid concurrency", func(c *Config) { c.Scraper.RefreshConcurrency = 0 }, "scraper.refresh_concurrency"},
		{"invalid interval", func(c *Config) { c.Refresh.Interval = 0 }, "refresh.interval"},
		{"postgres without dsn", func(c *Config) { c.Store.Provider = ProviderPostgres }, "store.postgres.dsn"},
		{"sqlite without path", func(c *Config) { c.Store.Provider = ProviderSQLite }, "store.sqlite.path"},
		{"unknown store", func(c *Config) { c.Store.Provider = "redis" }, "store.provider"},
		{"webhook without url", func(c *Config) { c.Channel.Provider = ProviderWebhook }, "channel.webhook.url"},
		{"pubsub without topic", func(c *Config) {
			c.Channel.Provider = ProviderPubSub
			c.Channel.PubSub.ProjectID = "p"
		}, "channel.pubsub"},
		{"unknown channel", func(c *Config) { c.Channel.Provider = "slack" }, "channel.provider"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			cfg := base
			tt.mutate(&cfg)
			err := cfg.Validate()
			if err == nil || !strings.Contains(err.Error(), tt.want) {
				t.Fatalf("expected error containing %q, got %v", tt.want, err)
			}
		})
	}
}
