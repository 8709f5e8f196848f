// Package config loads the application configuration from a YAML file and the
// environment, with defaults for every knob.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds the application configuration.
type Config struct {
	ServerURL string `mapstructure:"server_url"`
	PushURL   string `mapstructure:"push_url"`

	StatusIntervalSeconds  int `mapstructure:"status_interval_seconds"`
	HistoryIntervalSeconds int `mapstructure:"history_interval_seconds"`
	ConsoleIntervalSeconds int `mapstructure:"console_interval_seconds"`
	RequestTimeoutSeconds  int `mapstructure:"request_timeout_seconds"`

	RetentionHours        int `mapstructure:"retention_hours"`
	MaxRetainedSamples    int `mapstructure:"max_retained_samples"`
	DebounceWindowSeconds int `mapstructure:"debounce_window_seconds"`
	BucketCount           int `mapstructure:"bucket_count"`

	PushMaxReconnects         int `mapstructure:"push_max_reconnects"`
	PushInitialBackoffSeconds int `mapstructure:"push_initial_backoff_seconds"`
	PushMaxBackoffSeconds     int `mapstructure:"push_max_backoff_seconds"`

	RedisAddr     string `mapstructure:"redis_addr"`
	RedisPassword string `mapstructure:"redis_password"`
	RedisDB       int    `mapstructure:"redis_db"`
	CacheKey      string `mapstructure:"cache_key"`

	LogLevel string `mapstructure:"log_level"`
}

// Load reads the configuration from fleetpulse.yaml (searched in ".",
// "./config", and "/etc/fleetpulse/"), overridden by FLEETPULSE_* environment
// variables. A missing config file is not an error; a missing server URL is.
func Load() (*Config, error) {
	return load(func(v *viper.Viper) {
		v.SetConfigName("fleetpulse")
		v.AddConfigPath(".")
		v.AddConfigPath("./config")
		v.AddConfigPath("/etc/fleetpulse/")
	})
}

// LoadFile reads the configuration from an explicit file path.
func LoadFile(path string) (*Config, error) {
	return load(func(v *viper.Viper) {
		v.SetConfigFile(path)
	})
}

func load(locate func(*viper.Viper)) (*Config, error) {
	v := viper.New()
	v.SetConfigType("yaml")
	locate(v)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("reading config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("decoding config: %w", err)
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	// Default-less keys still need registering or AutomaticEnv never
	// surfaces them to Unmarshal.
	v.SetDefault(KeyServerURL, "")
	v.SetDefault(KeyPushURL, "")
	v.SetDefault(KeyRedisPassword, "")
	v.SetDefault(KeyStatusIntervalSeconds, DefaultStatusIntervalSeconds)
	v.SetDefault(KeyHistoryIntervalSeconds, DefaultHistoryIntervalSeconds)
	v.SetDefault(KeyConsoleIntervalSeconds, DefaultConsoleIntervalSeconds)
	v.SetDefault(KeyRequestTimeoutSeconds, DefaultRequestTimeoutSeconds)
	v.SetDefault(KeyRetentionHours, DefaultRetentionHours)
	v.SetDefault(KeyMaxRetainedSamples, DefaultMaxRetainedSamples)
	v.SetDefault(KeyDebounceWindowSeconds, DefaultDebounceWindowSeconds)
	v.SetDefault(KeyBucketCount, DefaultBucketCount)
	v.SetDefault(KeyPushMaxReconnects, DefaultPushMaxReconnects)
	v.SetDefault(KeyPushInitialBackoffSeconds, DefaultPushInitialBackoffSeconds)
	v.SetDefault(KeyPushMaxBackoffSeconds, DefaultPushMaxBackoffSeconds)
	v.SetDefault(KeyRedisAddr, DefaultRedisAddr)
	v.SetDefault(KeyRedisDB, DefaultRedisDB)
	v.SetDefault(KeyCacheKey, DefaultCacheKey)
	v.SetDefault(KeyLogLevel, DefaultLogLevel)
}

// Duration accessors; the file stores plain integers to keep env overrides
// trivial.

func (c *Config) StatusInterval() time.Duration {
	return time.Duration(c.StatusIntervalSeconds) * time.Second
}

func (c *Config) HistoryInterval() time.Duration {
	return time.Duration(c.HistoryIntervalSeconds) * time.Second
}

func (c *Config) ConsoleInterval() time.Duration {
	return time.Duration(c.ConsoleIntervalSeconds) * time.Second
}

func (c *Config) RequestTimeout() time.Duration {
	return time.Duration(c.RequestTimeoutSeconds) * time.Second
}

func (c *Config) RetentionWindow() time.Duration {
	return time.Duration(c.RetentionHours) * time.Hour
}

func (c *Config) DebounceWindow() time.Duration {
	return time.Duration(c.DebounceWindowSeconds) * time.Second
}

func (c *Config) PushInitialBackoff() time.Duration {
	return time.Duration(c.PushInitialBackoffSeconds) * time.Second
}

func (c *Config) PushMaxBackoff() time.Duration {
	return time.Duration(c.PushMaxBackoffSeconds) * time.Second
}
