// Package config loads and validates leaderboard configuration via Viper.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Store and channel providers.
const (
	ProviderMemory   = "memory"
	ProviderPostgres = "postgres"
	ProviderSQLite   = "sqlite"
	ProviderWebhook  = "webhook"
	ProviderPubSub   = "pubsub"
)

// Config captures all service configuration knobs loaded via Viper.
type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	Logging  LoggingConfig  `mapstructure:"logging"`
	Scraper  ScraperConfig  `mapstructure:"scraper"`
	Store    StoreConfig    `mapstructure:"store"`
	Channel  ChannelConfig  `mapstructure:"channel"`
	Refresh  RefreshConfig  `mapstructure:"refresh"`
	Commands CommandsConfig `mapstructure:"commands"`
}

// ServerConfig controls HTTP server behavior.
type ServerConfig struct {
	Port int `mapstructure:"port"`
	// APIKey guards the /v1 routes when set.
	APIKey string `mapstructure:"api_key"`
}

// LoggingConfig selects the zap encoder and level.
type LoggingConfig struct {
	Development bool   `mapstructure:"development"`
	Level       string `mapstructure:"level"`
}

// ScraperConfig governs page fetching.
type ScraperConfig struct {
	UserAgent          string   `mapstructure:"user_agent"`
	TimeoutSeconds     int      `mapstructure:"timeout_seconds"`
	RespectRobots      bool     `mapstructure:"respect_robots"`
	AllowedDomains     []string `mapstructure:"allowed_domains"`
	MaxBodyBytes       int      `mapstructure:"max_body_bytes"`
	Headless           bool     `mapstructure:"headless"`
	PromoteHeadless    bool     `mapstructure:"promote_headless"`
	NavTimeoutSeconds  int      `mapstructure:"nav_timeout_seconds"`
	RequestsPerSecond  float64  `mapstructure:"requests_per_second"`
	Burst              int      `mapstructure:"burst"`
	RefreshConcurrency int      `mapstructure:"refresh_concurrency"`
}

// StoreConfig selects and configures the entry store.
type StoreConfig struct {
	Provider string         `mapstructure:"provider"`
	Postgres PostgresConfig `mapstructure:"postgres"`
	SQLite   SQLiteConfig   `mapstructure:"sqlite"`
}

// PostgresConfig controls access to the Postgres entry table.
type PostgresConfig struct {
	DSN      string `mapstructure:"dsn"`
	Table    string `mapstructure:"table"`
	MaxConns int32  `mapstructure:"max_conns"`
	Migrate  bool   `mapstructure:"migrate"`
}

// SQLiteConfig points at the embedded database file.
type SQLiteConfig struct {
	Path string `mapstructure:"path"`
}

// ChannelConfig selects where panels are published.
type ChannelConfig struct {
	Provider string        `mapstructure:"provider"`
	Webhook  WebhookConfig `mapstructure:"webhook"`
	PubSub   PubSubConfig  `mapstructure:"pubsub"`
}

// WebhookConfig holds the Discord-compatible webhook URL and where posted
// message ids are kept between restarts. An empty LedgerPath keeps them in
// memory only.
type WebhookConfig struct {
	URL        string `mapstructure:"url"`
	LedgerPath string `mapstructure:"ledger_path"`
}

// PubSubConfig holds metadata for publish-subscribe notifications.
type PubSubConfig struct {
	ProjectID string `mapstructure:"project_id"`
	TopicID   string `mapstructure:"topic_id"`
}

// RefreshConfig schedules the republish cycle.
type RefreshConfig struct {
	Interval  time.Duration `mapstructure:"interval"`
	OnStartup bool          `mapstructure:"on_startup"`
	Rescrape  bool          `mapstructure:"rescrape"`
}

// CommandsConfig holds the command allow-lists. Empty lists allow everyone.
type CommandsConfig struct {
	AllowedChannels []string `mapstructure:"allowed_channels"`
	AdminIDs        []string `mapstructure:"admin_ids"`
}

// Load builds a Config from disk/environment.
func Load(path string) (Config, error) {
	v := viper.New()
	v.SetEnvPrefix("BOTBOARD")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.api_key", "")
	v.SetDefault("logging.development", true)
	v.SetDefault("logging.level", "info")
	v.SetDefault("scraper.user_agent", "robot-leaderboard/0.1")
	v.SetDefault("scraper.timeout_seconds", 10)
	v.SetDefault("scraper.respect_robots", false)
	v.SetDefault("scraper.allowed_domains", []string{})
	v.SetDefault("scraper.max_body_bytes", 4<<20)
	v.SetDefault("scraper.headless", false)
	v.SetDefault("scraper.promote_headless", false)
	v.SetDefault("scraper.nav_timeout_seconds", 25)
	v.SetDefault("scraper.requests_per_second", 1.0)
	v.SetDefault("scraper.burst", 1)
	v.SetDefault("scraper.refresh_concurrency", 4)
	v.SetDefault("store.provider", ProviderMemory)
	v.SetDefault("store.postgres.dsn", "")
	v.SetDefault("store.postgres.table", "tracked_bots")
	v.SetDefault("store.postgres.max_conns", 4)
	v.SetDefault("store.postgres.migrate", true)
	v.SetDefault("store.sqlite.path", "leaderboard.db")
	v.SetDefault("channel.provider", ProviderMemory)
	v.SetDefault("channel.webhook.url", "")
	v.SetDefault("channel.webhook.ledger_path", "webhook_messages.json")
	v.SetDefault("channel.pubsub.project_id", "")
	v.SetDefault("channel.pubsub.topic_id", "")
	v.SetDefault("refresh.interval", "24h")
	v.SetDefault("refresh.on_startup", true)
	v.SetDefault("refresh.rescrape", false)
	v.SetDefault("commands.allowed_channels", []string{})
	v.SetDefault("commands.admin_ids", []string{})
}

// Validate enforces required values and reasonable limits.
func (c Config) Validate() error {
	if c.Server.Port <= 0 {
		return fmt.Errorf("server.port must be > 0")
	}
	if c.Scraper.TimeoutSeconds <= 0 {
		return fmt.Errorf("scraper.timeout_seconds must be > 0")
	}
	if (c.Scraper.Headless || c.Scraper.PromoteHeadless) && c.Scraper.NavTimeoutSeconds <= 0 {
		return fmt.Errorf("scraper.nav_timeout_seconds must be > 0 when headless is enabled")
	}
	if c.Scraper.RequestsPerSecond < 0 {
		return fmt.Errorf("scraper.requests_per_second must be >= 0")
	}
	if c.Scraper.RefreshConcurrency <= 0 {
		return fmt.Errorf("scraper.refresh_concurrency must be > 0")
	}
	if c.Refresh.Interval <= 0 {
		return fmt.Errorf("refresh.interval must be > 0")
	}
	switch c.Store.Provider {
	case ProviderMemory:
	case ProviderPostgres:
		if c.Store.Postgres.DSN == "" {
			return fmt.Errorf("store.postgres.dsn is required for the postgres store")
		}
	case ProviderSQLite:
		if c.Store.SQLite.Path == "" {
			return fmt.Errorf("store.sqlite.path is required for the sqlite store")
		}
	default:
		return fmt.Errorf("store.provider %q is not supported", c.Store.Provider)
	}
	switch c.Channel.Provider {
	case ProviderMemory:
	case ProviderWebhook:
		if c.Channel.Webhook.URL == "" {
			return fmt.Errorf("channel.webhook.url is required for the webhook channel")
		}
	case ProviderPubSub:
		if c.Channel.PubSub.ProjectID == "" || c.Channel.PubSub.TopicID == "" {
			return fmt.Errorf("channel.pubsub.project_id and channel.pubsub.topic_id are required for the pubsub channel")
		}
	default:
		return fmt.Errorf("channel.provider %q is not supported", c.Channel.Provider)
	}
	return nil
}

// ScrapeTimeout converts the per-request timeout into a duration.
func (c Config) ScrapeTimeout() time.Duration {
	return time.Duration(c.Scraper.TimeoutSeconds) * time.Second
}

// NavTimeout converts the headless navigation timeout into a duration.
func (c Config) NavTimeout() time.Duration {
	return time.Duration(c.Scraper.NavTimeoutSeconds) * time.Second
}
