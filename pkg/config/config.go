// Package config loads Kelly's settings from an optional YAML file and KELLY_* environment variables.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/abdhe/kelly-poet/pkg/completion"
	"github.com/abdhe/kelly-poet/pkg/provider"
)

// EnvPrefix is prepended to every environment override, e.g. KELLY_MAX_RETRIES.
const EnvPrefix = "KELLY"

// Config stores all configuration of the application.
// The values are read by viper from a config file or environment variables.
type Config struct {
	Provider          string        `mapstructure:"provider"`           // "openai" or "gemini"
	Model             string        `mapstructure:"model"`              // empty selects the provider default
	BaseURL           string        `mapstructure:"base_url"`           // override the provider API root
	Temperature       float64       `mapstructure:"temperature"`        // sampling temperature, 0-2
	MaxOutputTokens   int           `mapstructure:"max_output_tokens"`  // reply length cap
	MaxRetries        int           `mapstructure:"max_retries"`        // total attempts when throttled
	InitialDelay      time.Duration `mapstructure:"initial_delay"`      // first backoff wait
	BackoffMultiplier float64       `mapstructure:"backoff_multiplier"` // backoff growth factor
	RequestTimeout    time.Duration `mapstructure:"request_timeout"`    // bound across all attempts
	KeyCooldown       time.Duration `mapstructure:"key_cooldown"`       // how long an exhausted key is skipped

	Store  StoreConfig  `mapstructure:"store"`
	Server ServerConfig `mapstructure:"server"`
	Log    LogConfig    `mapstructure:"log"`
}

// StoreConfig selects where session history lives.
type StoreConfig struct {
	Backend    string        `mapstructure:"backend"`     // "memory" or "redis"
	SessionTTL time.Duration `mapstructure:"session_ttl"` // idle expiry for redis sessions
	Redis      RedisConfig   `mapstructure:"redis"`
}

// RedisConfig stores Redis connection details.
type RedisConfig struct {
	Addr     string `mapstructure:"addr"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

// ServerConfig stores listen addresses for `kelly serve`.
type ServerConfig struct {
	GRPCAddr    string `mapstructure:"grpc_addr"`
	MetricsAddr string `mapstructure:"metrics_addr"`
}

// LogConfig stores logger settings.
type LogConfig struct {
	Level  string `mapstructure:"level"`
	Pretty bool   `mapstructure:"pretty"`
}

func setDefaults(v *viper.Viper) {
	d := completion.DefaultConfig()

	v.SetDefault("provider", "openai")
	v.SetDefault("model", "")
	v.SetDefault("base_url", "")
	v.SetDefault("temperature", d.Temperature)
	v.SetDefault("max_output_tokens", d.MaxOutputTokens)
	v.SetDefault("max_retries", d.MaxRetries)
	v.SetDefault("initial_delay", d.InitialDelay)
	v.SetDefault("backoff_multiplier", d.BackoffMultiplier)
	v.SetDefault("request_timeout", d.RequestTimeout)
	v.SetDefault("key_cooldown", time.Minute)

	v.SetDefault("store.backend", "memory")
	v.SetDefault("store.session_ttl", 24*time.Hour)
	v.SetDefault("store.redis.addr", "localhost:6379")
	v.SetDefault("store.redis.password", "")
	v.SetDefault("store.redis.db", 0)

	v.SetDefault("server.grpc_addr", ":50051")
	v.SetDefault("server.metrics_addr", ":9090")

	v.SetDefault("log.level", "info")
	v.SetDefault("log.pretty", false)
}

// LoadConfig reads configuration from configFile, or from ./kelly.yaml when
// configFile is empty and that file exists, then applies KELLY_* overrides.
func LoadConfig(configFile string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if configFile != "" {
		v.SetConfigFile(configFile)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("config: read %s: %w", configFile, err)
		}
	} else {
		v.SetConfigName("kelly")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		if err := v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) {
				return nil, fmt.Errorf("config: read kelly.yaml: %w", err)
			}
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("config: unmarshal: %w", err)
	}

	cfg.Provider = strings.ToLower(strings.TrimSpace(cfg.Provider))
	if cfg.Model == "" {
		cfg.Model = provider.DefaultModel(cfg.Provider)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks cross-field constraints.
func (c *Config) Validate() error {
	switch c.Provider {
	case "openai", "gemini":
	default:
		return fmt.Errorf("config: provider must be openai or gemini, got %q", c.Provider)
	}
	switch c.Store.Backend {
	case "memory", "redis":
	default:
		return fmt.Errorf("config: store.backend must be memory or redis, got %q", c.Store.Backend)
	}
	if err := c.Completion().Validate(); err != nil {
		return fmt.Errorf("config: %w", err)
	}
	return nil
}

// Completion returns the completion call configuration.
func (c *Config) Completion() completion.Config {
	return completion.Config{
		Model:             c.Model,
		Temperature:       c.Temperature,
		MaxOutputTokens:   c.MaxOutputTokens,
		MaxRetries:        c.MaxRetries,
		InitialDelay:      c.InitialDelay,
		BackoffMultiplier: c.BackoffMultiplier,
		RequestTimeout:    c.RequestTimeout,
	}
}
