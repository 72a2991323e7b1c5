// Package config provides YAML-based configuration loading for netlog.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/zulandar/netlog/internal/schedule"
	"gopkg.in/yaml.v3"
)

// Config is the top-level netlog configuration, loaded from netlog.yaml.
type Config struct {
	Net      NetConfig      `yaml:"net"`
	Database DatabaseConfig `yaml:"database"`
	Server   ServerConfig   `yaml:"server"`
	Announce AnnounceConfig `yaml:"announce"`
	Log      LogConfig      `yaml:"log"`
}

// NetConfig describes the net this instance logs.
type NetConfig struct {
	Name     string `yaml:"name"`
	Schedule string `yaml:"schedule"` // 5-field cron, e.g. "0 19 * * 2"
	Timezone string `yaml:"timezone"`
}

// DatabaseConfig selects and addresses the backing relational store.
type DatabaseConfig struct {
	Driver   string        `yaml:"driver"` // sqlite, mysql, postgres
	Path     string        `yaml:"path"`   // sqlite only
	Host     string        `yaml:"host"`
	Port     int           `yaml:"port"`
	Name     string        `yaml:"name"`
	User     string        `yaml:"user"`
	Password string        `yaml:"password"`
	Timeout  time.Duration `yaml:"timeout"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Port             int           `yaml:"port"`
	KeepAlive        time.Duration `yaml:"keepalive"`
	SubscriberBuffer int           `yaml:"subscriber_buffer"`
	ActorHeader      string        `yaml:"actor_header"`
	RoleHeader       string        `yaml:"role_header"`
}

// AnnounceConfig holds chat webhooks notified when a net opens.
type AnnounceConfig struct {
	DiscordWebhook string        `yaml:"discord_webhook"`
	SlackWebhook   string        `yaml:"slack_webhook"`
	Timeout        time.Duration `yaml:"timeout"`
}

// LogConfig controls the process logger.
type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"` // text or json
}

// Load reads a YAML config file from path and returns a validated Config.
// A .env file next to the config is loaded into the environment first, and
// ${VAR} references in the YAML are expanded before parsing.
func Load(path string) (*Config, error) {
	envPath := filepath.Join(filepath.Dir(path), ".env")
	if err := godotenv.Load(envPath); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("config: load %s: %w", envPath, err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: read %s: %w", path, err)
	}
	return Parse([]byte(os.ExpandEnv(string(data))))
}

// Parse unmarshals YAML bytes into a validated Config.
func Parse(data []byte) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("config: parse: %w", err)
	}
	cfg.applyDefaults()
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Default returns the configuration used when no file is present.
func Default() *Config {
	var cfg Config
	cfg.applyDefaults()
	return &cfg
}

// Location returns the net's configured time zone, or UTC.
func (c *Config) Location() *time.Location {
	if c.Net.Timezone == "" {
		return time.UTC
	}
	loc, err := time.LoadLocation(c.Net.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}

// applyDefaults fills in derived and default values.
func (c *Config) applyDefaults() {
	if c.Net.Name == "" {
		c.Net.Name = "Net"
	}
	if c.Database.Driver == "" {
		c.Database.Driver = "sqlite"
	}
	switch c.Database.Driver {
	case "sqlite":
		if c.Database.Path == "" {
			c.Database.Path = "netlog.db"
		}
	case "mysql":
		if c.Database.Port == 0 {
			c.Database.Port = 3306
		}
		if c.Database.User == "" {
			c.Database.User = "root"
		}
	case "postgres":
		if c.Database.Port == 0 {
			c.Database.Port = 5432
		}
		if c.Database.User == "" {
			c.Database.User = "postgres"
		}
	}
	if c.Database.Host == "" {
		c.Database.Host = "127.0.0.1"
	}
	if c.Database.Name == "" {
		c.Database.Name = "netlog"
	}
	if c.Database.Timeout == 0 {
		c.Database.Timeout = 5 * time.Second
	}
	if c.Server.Port == 0 {
		c.Server.Port = 8080
	}
	if c.Server.KeepAlive == 0 {
		c.Server.KeepAlive = 30 * time.Second
	}
	if c.Server.SubscriberBuffer == 0 {
		c.Server.SubscriberBuffer = 64
	}
	if c.Server.ActorHeader == "" {
		c.Server.ActorHeader = "X-Netlog-User"
	}
	if c.Server.RoleHeader == "" {
		c.Server.RoleHeader = "X-Netlog-Role"
	}
	if c.Announce.Timeout == 0 {
		c.Announce.Timeout = 10 * time.Second
	}
	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
	if c.Log.Format == "" {
		c.Log.Format = "text"
	}
}

// validate checks that all fields are present and consistent.
func (c *Config) validate() error {
	var errs []string
	switch c.Database.Driver {
	case "sqlite", "mysql", "postgres":
	default:
		errs = append(errs, fmt.Sprintf("database.driver %q is not one of sqlite, mysql, postgres", c.Database.Driver))
	}
	if c.Database.Timeout < 0 {
		errs = append(errs, "database.timeout must be positive")
	}
	if c.Net.Schedule != "" {
		if _, err := schedule.Parse(c.Net.Schedule); err != nil {
			errs = append(errs, fmt.Sprintf("net.schedule: %v", err))
		}
	}
	if c.Net.Timezone != "" {
		if _, err := time.LoadLocation(c.Net.Timezone); err != nil {
			errs = append(errs, fmt.Sprintf("net.timezone %q: %v", c.Net.Timezone, err))
		}
	}
	if c.Server.Port < 0 || c.Server.Port > 65535 {
		errs = append(errs, fmt.Sprintf("server.port %d out of range", c.Server.Port))
	}
	if c.Server.KeepAlive < time.Second {
		errs = append(errs, "server.keepalive must be at least 1s")
	}
	if c.Server.SubscriberBuffer < 1 {
		errs = append(errs, "server.subscriber_buffer must be at least 1")
	}
	switch c.Log.Format {
	case "text", "json":
	default:
		errs = append(errs, fmt.Sprintf("log.format %q is not one of text, json", c.Log.Format))
	}
	if len(errs) > 0 {
		return fmt.Errorf("config: validation failed: %s", strings.Join(errs, "; "))
	}
	return nil
}
