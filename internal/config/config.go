// Package config loads and validates pipeline configuration via Viper.
package config

import (
	"fmt"
	"strings"
	"time"
	_ "time/tzdata" // Asia/Kolkata must resolve on minimal images.

	"github.com/spf13/viper"

	"github.com/JakeFAU/govjobs-pipeline/internal/jobs"
)

// Storage drivers.
const (
	DriverMemory   = "memory"
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite"
)

// Config captures all service configuration knobs loaded via Viper.
type Config struct {
	Server    ServerConfig    `mapstructure:"server"`
	Auth      AuthConfig      `mapstructure:"auth"`
	Pipeline  PipelineConfig  `mapstructure:"pipeline"`
	HTTP      HTTPConfig      `mapstructure:"http"`
	Storage   StorageConfig   `mapstructure:"storage"`
	Redis     RedisConfig     `mapstructure:"redis"`
	Templates TemplatesConfig `mapstructure:"templates"`
	Logging   LoggingConfig   `mapstructure:"logging"`
	Sources   []jobs.Source   `mapstructure:"sources"`
}

// ServerConfig controls the admin HTTP server.
type ServerConfig struct {
	Port                  int `mapstructure:"port"`
	RequestTimeoutSeconds int `mapstructure:"request_timeout_seconds"`
}

// AuthConfig defines API authentication toggles.
type AuthConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	APIKey  string `mapstructure:"api_key"`
}

// PipelineConfig governs scheduling and publication policy.
type PipelineConfig struct {
	SchedulerEnabled     bool    `mapstructure:"scheduler_enabled"`
	ScheduleHoursLocal   []int   `mapstructure:"schedule_hours_local"`
	Timezone             string  `mapstructure:"timezone"`
	StartupDelaySeconds  int     `mapstructure:"startup_delay_seconds"`
	AutoPublishThreshold float64 `mapstructure:"auto_publish_threshold"`
	MaxLinksPerSource    int     `mapstructure:"max_links_per_source"`
	PolitenessDelayMs    int     `mapstructure:"politeness_delay_ms"`
}

// HTTPConfig configures page fetching.
type HTTPConfig struct {
	TimeoutSeconds   int    `mapstructure:"timeout_seconds"`
	UserAgent        string `mapstructure:"user_agent"`
	RespectRobots    bool   `mapstructure:"respect_robots"`
	MaxBodyBytes     int    `mapstructure:"max_body_bytes"`
	MaxRetries       int    `mapstructure:"max_retries"`
	BackoffInitialMs int    `mapstructure:"backoff_initial_ms"`
	BackoffMaxMs     int    `mapstructure:"backoff_max_ms"`
}

// StorageConfig selects and configures the persistence backend.
type StorageConfig struct {
	Driver   string `mapstructure:"driver"`
	DSN      string `mapstructure:"dsn"`
	Path     string `mapstructure:"path"`
	MaxConns int32  `mapstructure:"max_conns"`
}

// RedisConfig enables the cross-replica run guard.
type RedisConfig struct {
	Enabled        bool   `mapstructure:"enabled"`
	URL            string `mapstructure:"url"`
	LockKey        string `mapstructure:"lock_key"`
	LockTTLSeconds int    `mapstructure:"lock_ttl_seconds"`
}

// TemplatesConfig points at an optional YAML file of extraction templates.
// File templates are inserted only when their ID is not stored yet; once
// stored, the admin API is the way to change them.
type TemplatesConfig struct {
	File string `mapstructure:"file"`
}

// LoggingConfig toggles zap development features.
type LoggingConfig struct {
	Development bool   `mapstructure:"development"`
	Level       string `mapstructure:"level"`
}

// Load builds a Config from disk/environment.
func Load(path string) (Config, error) {
	v := viper.New()
	v.SetEnvPrefix("JOBPIPE")
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
	v.SetDefault("server.request_timeout_seconds", 120)
	v.SetDefault("auth.enabled", false)
	v.SetDefault("auth.api_key", "")
	v.SetDefault("pipeline.scheduler_enabled", true)
	v.SetDefault("pipeline.schedule_hours_local", []int{6, 14, 22})
	v.SetDefault("pipeline.timezone", "Asia/Kolkata")
	v.SetDefault("pipeline.startup_delay_seconds", 30)
	v.SetDefault("pipeline.auto_publish_threshold", 0.8)
	v.SetDefault("pipeline.max_links_per_source", 10)
	v.SetDefault("pipeline.politeness_delay_ms", 1000)
	v.SetDefault("http.timeout_seconds", 30)
	v.SetDefault("http.user_agent", "")
	v.SetDefault("http.respect_robots", false)
	v.SetDefault("http.max_body_bytes", 10<<20)
	v.SetDefault("http.max_retries", 2)
	v.SetDefault("http.backoff_initial_ms", 500)
	v.SetDefault("http.backoff_max_ms", 5000)
	v.SetDefault("storage.driver", DriverMemory)
	v.SetDefault("storage.dsn", "")
	v.SetDefault("storage.path", "govjobs.db")
	v.SetDefault("storage.max_conns", 0)
	v.SetDefault("redis.enabled", false)
	v.SetDefault("redis.url", "")
	v.SetDefault("redis.lock_key", "govjobs:scheduler:run")
	v.SetDefault("redis.lock_ttl_seconds", 7200)
	v.SetDefault("templates.file", "")
	v.SetDefault("logging.development", true)
	v.SetDefault("logging.level", "info")
}

// Validate enforces required values and reasonable limits.
func (c Config) Validate() error {
	if c.Server.Port <= 0 {
		return fmt.Errorf("server.port must be > 0")
	}
	if c.Auth.Enabled && c.Auth.APIKey == "" {
		return fmt.Errorf("auth.api_key must be set when auth is enabled")
	}
	if len(c.Pipeline.ScheduleHoursLocal) == 0 {
		return fmt.Errorf("pipeline.schedule_hours_local must not be empty")
	}
	for _, h := range c.Pipeline.ScheduleHoursLocal {
		if h < 0 || h > 23 {
			return fmt.Errorf("pipeline.schedule_hours_local: hour %d out of range", h)
		}
	}
	if _, err := c.Location(); err != nil {
		return err
	}
	if c.Pipeline.AutoPublishThreshold <= 0 || c.Pipeline.AutoPublishThreshold > 1 {
		return fmt.Errorf("pipeline.auto_publish_threshold must be in (0, 1]")
	}
	if c.Pipeline.MaxLinksPerSource <= 0 {
		return fmt.Errorf("pipeline.max_links_per_source must be > 0")
	}
	if c.Pipeline.PolitenessDelayMs < 0 {
		return fmt.Errorf("pipeline.politeness_delay_ms must be >= 0")
	}
	if c.HTTP.TimeoutSeconds <= 0 {
		return fmt.Errorf("http.timeout_seconds must be > 0")
	}
	if c.HTTP.MaxRetries < 0 {
		return fmt.Errorf("http.max_retries must be >= 0")
	}
	switch c.Storage.Driver {
	case DriverMemory:
	case DriverPostgres:
		if c.Storage.DSN == "" {
			return fmt.Errorf("storage.dsn must be set for the postgres driver")
		}
	case DriverSQLite:
		if c.Storage.Path == "" {
			return fmt.Errorf("storage.path must be set for the sqlite driver")
		}
	default:
		return fmt.Errorf("storage.driver %q is not supported", c.Storage.Driver)
	}
	if c.Redis.Enabled && c.Redis.URL == "" {
		return fmt.Errorf("redis.url must be set when redis is enabled")
	}
	for i, src := range c.Sources {
		if err := jobs.ValidateURL(src.BaseURL); err != nil {
			return fmt.Errorf("sources[%d]: %w", i, err)
		}
	}
	return nil
}

// Location resolves the scheduling time zone.
func (c Config) Location() (*time.Location, error) {
	if c.Pipeline.Timezone == "" {
		return time.UTC, nil
	}
	loc, err := time.LoadLocation(c.Pipeline.Timezone)
	if err != nil {
		return nil, fmt.Errorf("pipeline.timezone: %w", err)
	}
	return loc, nil
}

// FetchTimeout is the per-request fetch budget.
func (c Config) FetchTimeout() time.Duration {
	return time.Duration(c.HTTP.TimeoutSeconds) * time.Second
}

// PolitenessDelay is the minimum gap between requests of a scheduled run.
func (c Config) PolitenessDelay() time.Duration {
	return time.Duration(c.Pipeline.PolitenessDelayMs) * time.Millisecond
}

// StartupDelay is the wait before the run that follows process start.
func (c Config) StartupDelay() time.Duration {
	return time.Duration(c.Pipeline.StartupDelaySeconds) * time.Second
}

// RequestTimeout bounds a single admin API request.
func (c Config) RequestTimeout() time.Duration {
	return time.Duration(c.Server.RequestTimeoutSeconds) * time.Second
}

// LockTTL is the expiry of the Redis run lock.
func (c Config) LockTTL() time.Duration {
	return time.Duration(c.Redis.LockTTLSeconds) * time.Second
}
