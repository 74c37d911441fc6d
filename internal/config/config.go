// Package config assembles the bot configuration from an optional YAML file
// and the process environment. Environment variables win over the file.
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// DefaultPath is the config file read when CONFIG_FILE is not set.
const DefaultPath = "config.yaml"

type Config struct {
	TelegramToken string         `yaml:"telegram_token"`
	Database      DatabaseConfig `yaml:"database"`
	Log           LogConfig      `yaml:"log"`
	Invites       InviteConfig   `yaml:"invites"`
	HTTP          HTTPConfig     `yaml:"http"`
}

type DatabaseConfig struct {
	Driver          string        `yaml:"driver"`
	URL             string        `yaml:"url"`
	MaxOpenConns    int           `yaml:"max_open_conns"`
	MaxIdleConns    int           `yaml:"max_idle_conns"`
	ConnMaxLifetime time.Duration `yaml:"conn_max_lifetime"`
}

type LogConfig struct {
	Level      string `yaml:"level"`
	Format     string `yaml:"format"`
	File       string `yaml:"file"`
	MaxSizeMB  int    `yaml:"max_size_mb"`
	MaxBackups int    `yaml:"max_backups"`
	MaxAgeDays int    `yaml:"max_age_days"`
}

// InviteConfig holds the defaults of invites created from chat. A zero TTL
// creates invites that never expire.
type InviteConfig struct {
	TTL     time.Duration `yaml:"ttl"`
	MaxUses int64         `yaml:"max_uses"`
}

// HTTPConfig tunes the transport used for Bot API calls.
type HTTPConfig struct {
	Timeout          time.Duration `yaml:"timeout"`
	RetryCount       int           `yaml:"retry_count"`
	RetryWaitTime    time.Duration `yaml:"retry_wait_time"`
	MaxRetryWaitTime time.Duration `yaml:"max_retry_wait_time"`
}

func defaults() Config {
	return Config{
		Database: DatabaseConfig{
			Driver:          "postgres",
			MaxOpenConns:    10,
			MaxIdleConns:    5,
			ConnMaxLifetime: 5 * time.Minute,
		},
		Log: LogConfig{
			Level:      "info",
			Format:     "text",
			MaxSizeMB:  50,
			MaxBackups: 3,
			MaxAgeDays: 28,
		},
		Invites: InviteConfig{
			TTL: 7 * 24 * time.Hour,
		},
		HTTP: HTTPConfig{
			Timeout:          90 * time.Second,
			RetryCount:       3,
			RetryWaitTime:    time.Second,
			MaxRetryWaitTime: 30 * time.Second,
		},
	}
}

// Load reads path on top of the defaults and applies environment overrides.
// A missing file is not an error.
func Load(path string) (*Config, error) {
	cfg := defaults()

	b, err := os.ReadFile(path)
	switch {
	case errors.Is(err, os.ErrNotExist):
	case err != nil:
		return nil, fmt.Errorf("read config: %w", err)
	default:
		if err := yaml.Unmarshal(b, &cfg); err != nil {
			return nil, fmt.Errorf("unmarshal config: %w", err)
		}
	}

	cfg.applyEnv()
	return &cfg, nil
}

// Path returns the config file location from CONFIG_FILE or DefaultPath.
func Path() string {
	if p := os.Getenv("CONFIG_FILE"); p != "" {
		return p
	}
	return DefaultPath
}

func (c *Config) applyEnv() {
	override := func(dst *string, key string) {
		if v, ok := os.LookupEnv(key); ok && v != "" {
			*dst = v
		}
	}
	override(&c.TelegramToken, "TELEGRAM_BOT_TOKEN")
	override(&c.Database.URL, "DATABASE_URL")
	override(&c.Database.Driver, "DATABASE_DRIVER")
	override(&c.Log.Level, "LOG_LEVEL")
	override(&c.Log.Format, "LOG_FORMAT")
	override(&c.Log.File, "LOG_FILE")

	c.Database.Driver = strings.ToLower(c.Database.Driver)
}

// Validate checks the settings every subcommand needs. The bot token is
// checked separately by the commands that talk to Telegram.
func (c *Config) Validate() error {
	if c.Database.URL == "" {
		return errors.New("DATABASE_URL is required")
	}
	switch c.Database.Driver {
	case "postgres", "sqlite":
	default:
		return fmt.Errorf("unsupported DATABASE_DRIVER %q", c.Database.Driver)
	}
	if c.Invites.TTL < 0 {
		return errors.New("invites.ttl must not be negative")
	}
	if c.Invites.MaxUses < 0 {
		return errors.New("invites.max_uses must not be negative")
	}
	if c.HTTP.RetryCount < 0 {
		return errors.New("http.retry_count must not be negative")
	}
	return nil
}
