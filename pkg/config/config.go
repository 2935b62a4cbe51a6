// Package config loads service configuration from defaults, an optional
// YAML file, and environment variables.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/mutua-muvevi/kenix-commodities-sales-app-sub005/pkg/cache"
	"github.com/mutua-muvevi/kenix-commodities-sales-app-sub005/pkg/logging"
	"github.com/mutua-muvevi/kenix-commodities-sales-app-sub005/pkg/upstream"
	"github.com/spf13/viper"
)

// Config stores all configuration of the service.
// The values are read by viper from a config file or environment variables.
type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	Redis    RedisConfig    `mapstructure:"redis"`
	Cache    CacheConfig    `mapstructure:"cache"`
	Upstream UpstreamConfig `mapstructure:"upstream"`
	Log      LogConfig      `mapstructure:"log"`
}

// ServerConfig configures the HTTP listener.
type ServerConfig struct {
	Port            string        `mapstructure:"port"`
	SlowThreshold   time.Duration `mapstructure:"slow_threshold"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
}

// RedisConfig configures the optional shared backend. An empty URL selects
// the in-process store.
type RedisConfig struct {
	URL             string        `mapstructure:"url"`
	DialTimeout     time.Duration `mapstructure:"dial_timeout"`
	ConnectAttempts int           `mapstructure:"connect_attempts"`
}

// CacheConfig sizes the in-process store and sets per-group TTLs.
type CacheConfig struct {
	MaxSize       int           `mapstructure:"max_size"`
	DefaultTTL    time.Duration `mapstructure:"default_ttl"`
	GeneralTTL    time.Duration `mapstructure:"general_ttl"`
	AdminTTL      time.Duration `mapstructure:"admin_ttl"`
	SweepInterval time.Duration `mapstructure:"sweep_interval"`
}

// UpstreamConfig points at the API behind the cache.
type UpstreamConfig struct {
	URL        string        `mapstructure:"url"`
	Timeout    time.Duration `mapstructure:"timeout"`
	MaxRetries int           `mapstructure:"max_retries"`
	UserAgent  string        `mapstructure:"user_agent"`
}

// LogConfig configures zerolog.
type LogConfig struct {
	Level  string `mapstructure:"level"`
	Pretty bool   `mapstructure:"pretty"`
}

// envAliases binds keys whose environment name does not follow the
// dotted-key convention.
var envAliases = map[string]string{
	"server.port":           "PORT",
	"server.slow_threshold": "SLOW_THRESHOLD",
}

// Load reads configuration. path may name a YAML file; when empty, a
// config.yaml in the working directory is used if present.
// Environment variables override both, e.g. cache.max_size <- CACHE_MAX_SIZE.
func Load(path string) (*Config, error) {
	v := viper.New()

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.AddConfigPath(".")
		v.SetConfigName("config")
		v.SetConfigType("yaml")
	}

	setDefaults(v)

	v.AutomaticEnv()
	// Replace dots with underscores in env var names e.g. cache.general_ttl becomes CACHE_GENERAL_TTL
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	for key, env := range envAliases {
		if err := v.BindEnv(key, env); err != nil {
			return nil, fmt.Errorf("bind %s: %w", env, err)
		}
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unable to decode into struct: %w", err)
	}

	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", "8080")
	v.SetDefault("server.slow_threshold", time.Second)
	v.SetDefault("server.shutdown_timeout", 10*time.Second)

	v.SetDefault("redis.url", "")
	v.SetDefault("redis.dial_timeout", 2*time.Second)
	v.SetDefault("redis.connect_attempts", 3)

	v.SetDefault("cache.max_size", cache.DefaultMaxSize)
	v.SetDefault("cache.default_ttl", cache.DefaultStoreTTL)
	v.SetDefault("cache.general_ttl", 5*time.Minute)
	v.SetDefault("cache.admin_ttl", 2*time.Minute)
	v.SetDefault("cache.sweep_interval", cache.DefaultSweepInterval)

	v.SetDefault("upstream.url", "http://localhost:3000")
	v.SetDefault("upstream.timeout", 30*time.Second)
	v.SetDefault("upstream.max_retries", 2)
	v.SetDefault("upstream.user_agent", "")

	v.SetDefault("log.level", "info")
	v.SetDefault("log.pretty", false)
}

// Validate rejects values the service cannot start with.
func (c *Config) Validate() error {
	var errs []error

	if c.Server.Port == "" {
		errs = append(errs, errors.New("server.port is required"))
	}
	if c.Upstream.URL == "" {
		errs = append(errs, errors.New("upstream.url is required"))
	}
	if c.Cache.MaxSize < 0 {
		errs = append(errs, fmt.Errorf("cache.max_size must be >= 0 (got %d)", c.Cache.MaxSize))
	}
	if c.Upstream.MaxRetries < 0 {
		errs = append(errs, fmt.Errorf("upstream.max_retries must be >= 0 (got %d)", c.Upstream.MaxRetries))
	}

	durations := map[string]time.Duration{
		"server.slow_threshold":   c.Server.SlowThreshold,
		"server.shutdown_timeout": c.Server.ShutdownTimeout,
		"redis.dial_timeout":      c.Redis.DialTimeout,
		"cache.default_ttl":       c.Cache.DefaultTTL,
		"cache.general_ttl":       c.Cache.GeneralTTL,
		"cache.admin_ttl":         c.Cache.AdminTTL,
		"cache.sweep_interval":    c.Cache.SweepInterval,
		"upstream.timeout":        c.Upstream.Timeout,
	}
	for name, d := range durations {
		if d < 0 {
			errs = append(errs, fmt.Errorf("%s must not be negative (got %s)", name, d))
		}
	}

	return errors.Join(errs...)
}

// StoreConfig returns the in-process store settings.
func (c *Config) StoreConfig() cache.StoreConfig {
	return cache.StoreConfig{
		MaxSize:       c.Cache.MaxSize,
		DefaultTTL:    c.Cache.DefaultTTL,
		SweepInterval: c.Cache.SweepInterval,
	}
}

// SelectorConfig returns the backend selection settings.
func (c *Config) SelectorConfig() cache.SelectorConfig {
	return cache.SelectorConfig{
		RedisURL:        c.Redis.URL,
		DialTimeout:     c.Redis.DialTimeout,
		ConnectAttempts: c.Redis.ConnectAttempts,
		Store:           c.StoreConfig(),
	}
}

// UpstreamClientConfig returns the upstream client settings.
func (c *Config) UpstreamClientConfig() upstream.Config {
	cfg := upstream.DefaultConfig(c.Upstream.URL)
	cfg.UserAgent = c.Upstream.UserAgent
	if c.Upstream.Timeout > 0 {
		cfg.Timeout = c.Upstream.Timeout
	}
	cfg.Retry.MaxAttempts = c.Upstream.MaxRetries + 1
	return cfg
}

// LoggingConfig returns the logger settings. Output is left to logging.Setup.
func (c *Config) LoggingConfig() logging.Config {
	return logging.Config{
		Level:  logging.LogLevel(c.Log.Level),
		Pretty: c.Log.Pretty,
	}
}
