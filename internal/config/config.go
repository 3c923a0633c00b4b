// Package config provides configuration loading for the Dangwar community service.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds all configuration for the application.
type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	Platform PlatformConfig `mapstructure:"platform"`
	Redis    RedisConfig    `mapstructure:"redis"`
	Session  SessionConfig  `mapstructure:"session"`
	Feed     FeedConfig     `mapstructure:"feed"`
}

// ServerConfig holds HTTP server configuration.
type ServerConfig struct {
	Port         int           `mapstructure:"port"`
	Host         string        `mapstructure:"host"`
	ReadTimeout  time.Duration `mapstructure:"read_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
	Environment  string        `mapstructure:"environment"` // dev, staging, prod
}

// PlatformConfig holds the backend platform endpoints and project credentials.
// These are the fixed project identifiers embedded at build/deploy time; the
// platform owns the wire protocol behind them.
type PlatformConfig struct {
	IdentityURL string        `mapstructure:"identity_url"`
	RecordsURL  string        `mapstructure:"records_url"`
	FilesURL    string        `mapstructure:"files_url"`
	ProjectID   string        `mapstructure:"project_id"`
	APIKey      string        `mapstructure:"api_key"`
	Timeout     time.Duration `mapstructure:"timeout"`
}

// RedisConfig holds Redis configuration for the reconcile queue and rate limiter.
type RedisConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

// Addr returns the Redis address string.
func (c RedisConfig) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// SessionConfig holds browser session cookie configuration.
type SessionConfig struct {
	CookieName   string        `mapstructure:"cookie_name"`
	CookieSecret string        `mapstructure:"cookie_secret"`
	Expiry       time.Duration `mapstructure:"expiry"`
}

// FeedConfig holds feed and image policy knobs.
type FeedConfig struct {
	DefaultLimit     int           `mapstructure:"default_limit"`
	MaxCaptionLen    int           `mapstructure:"max_caption_len"`
	MaxImageBytes    int64         `mapstructure:"max_image_bytes"`
	ReconcileEvery   time.Duration `mapstructure:"reconcile_every"`
	ReconcileMaxAge  time.Duration `mapstructure:"reconcile_max_age"`
	SearchLimit      int           `mapstructure:"search_limit"`
	SearchRatePerMin int           `mapstructure:"search_rate_per_min"`
}

// Load reads configuration from files and environment variables.
func Load() (*Config, error) {
	v := viper.New()

	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("./config")
	v.AddConfigPath("/etc/dangwar")

	v.SetEnvPrefix("DANGWAR")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	// Explicitly bind platform environment variables (nested struct issue with viper)
	v.BindEnv("platform.identity_url", "DANGWAR_PLATFORM_IDENTITY_URL")
	v.BindEnv("platform.records_url", "DANGWAR_PLATFORM_RECORDS_URL")
	v.BindEnv("platform.files_url", "DANGWAR_PLATFORM_FILES_URL")
	v.BindEnv("platform.project_id", "DANGWAR_PLATFORM_PROJECT_ID")
	v.BindEnv("platform.api_key", "DANGWAR_PLATFORM_API_KEY")
	v.BindEnv("session.cookie_secret", "DANGWAR_SESSION_COOKIE_SECRET")

	// Read config file (optional)
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		// Config file not found is OK, we use defaults and env vars
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	return &cfg, nil
}

// setDefaults configures default values for all settings.
func setDefaults(v *viper.Viper) {
	// Server defaults
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.read_timeout", "30s")
	v.SetDefault("server.write_timeout", "30s")
	v.SetDefault("server.environment", "dev")

	// Platform defaults
	v.SetDefault("platform.identity_url", "http://localhost:9091")
	v.SetDefault("platform.records_url", "http://localhost:9092")
	v.SetDefault("platform.files_url", "http://localhost:9093")
	v.SetDefault("platform.project_id", "village-dangwar")
	v.SetDefault("platform.timeout", "30s")

	// Redis defaults
	v.SetDefault("redis.host", "localhost")
	v.SetDefault("redis.port", 6379)
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)

	// Session defaults
	v.SetDefault("session.cookie_name", "dangwar_session")
	v.SetDefault("session.expiry", "168h") // 7 days

	// Feed defaults
	v.SetDefault("feed.default_limit", 10)
	v.SetDefault("feed.max_caption_len", 500)
	v.SetDefault("feed.max_image_bytes", 5242880) // 5 MiB
	v.SetDefault("feed.reconcile_every", "30s")
	v.SetDefault("feed.reconcile_max_age", "1m")
	v.SetDefault("feed.search_limit", 20)
	v.SetDefault("feed.search_rate_per_min", 120)
}
