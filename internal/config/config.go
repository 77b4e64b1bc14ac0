// Package config loads dispatcher configuration from file and environment.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds all application configuration.
type Config struct {
	Providers ProvidersConfig `mapstructure:"providers"`
	Delivery  DeliveryConfig  `mapstructure:"delivery"`
	Tracking  TrackingConfig  `mapstructure:"tracking"`
	Store     StoreConfig     `mapstructure:"store"`
	Schedule  ScheduleConfig  `mapstructure:"schedule"`
	API       APIConfig       `mapstructure:"api"`
	Logging   LoggingConfig   `mapstructure:"logging"`
}

// ProvidersConfig selects the primary transport and carries credentials.
type ProvidersConfig struct {
	// Primary names the provider tried first: "sendgrid", "resend" or "smtp".
	Primary     string        `mapstructure:"primary"`
	SendgridKey string        `mapstructure:"sendgrid_key"`
	ResendKey   string        `mapstructure:"resend_key"`
	FromAddress string        `mapstructure:"from_address"`
	RelayURL    string        `mapstructure:"relay_url"` // host:port of the SMTP relay
	Timeout     time.Duration `mapstructure:"timeout"`
}

// DeliveryConfig controls batching and pacing within one campaign.
type DeliveryConfig struct {
	BatchSize    int           `mapstructure:"batch_size"`
	BatchDelay   time.Duration `mapstructure:"batch_delay"`
	MaxAttempts  int           `mapstructure:"max_attempts"`
	SegmentTTL   time.Duration `mapstructure:"segment_cache_ttl"`
	Unsubscribed string        `mapstructure:"unsubscribe_label"`
}

// TrackingConfig holds the base origin for open/click/unsubscribe endpoints.
// An empty BaseURL produces relative tracking paths.
type TrackingConfig struct {
	BaseURL string `mapstructure:"base_url"`
}

// StoreConfig locates campaign and event persistence.
type StoreConfig struct {
	// Backend is "file" (default) or "postgres".
	Backend     string `mapstructure:"backend"`
	DataDir     string `mapstructure:"data_dir"`
	DatabaseURL string `mapstructure:"database_url"`
}

// ScheduleConfig holds cron descriptors for the periodic loops.
type ScheduleConfig struct {
	Sweep     string `mapstructure:"sweep"`
	StatsSync string `mapstructure:"stats_sync"`
}

// APIConfig holds the webhook/metrics HTTP listener configuration.
type APIConfig struct {
	Addr         string        `mapstructure:"addr"`
	ReadTimeout  time.Duration `mapstructure:"read_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
}

// LoggingConfig holds logging configuration.
type LoggingConfig struct {
	Level     string `mapstructure:"level"`
	Output    string `mapstructure:"output"`
	FilePath  string `mapstructure:"file_path"`
	MaxSizeMB int    `mapstructure:"max_size_mb"`
	MaxFiles  int    `mapstructure:"max_files"`
}

// Load reads configuration from the given config directory path.
// It looks for a file named "config.yaml" in that directory.
// Environment variables with prefix MAILCAST_ override file values,
// e.g. MAILCAST_PROVIDERS_PRIMARY overrides providers.primary.
func Load(configPath string) (*Config, error) {
	v := viper.New()

	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(configPath)

	v.SetEnvPrefix("MAILCAST")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		// Config file is optional; environment plus defaults may be enough.
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("read config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("providers.primary", "sendgrid")
	v.SetDefault("providers.timeout", 30*time.Second)
	v.SetDefault("delivery.batch_size", 50)
	v.SetDefault("delivery.batch_delay", 0)
	v.SetDefault("delivery.max_attempts", 3)
	v.SetDefault("delivery.segment_cache_ttl", time.Minute)
	v.SetDefault("delivery.unsubscribe_label", "Unsubscribe")
	v.SetDefault("store.backend", "file")
	v.SetDefault("store.data_dir", "data")
	v.SetDefault("schedule.sweep", "@every 1m")
	v.SetDefault("schedule.stats_sync", "@every 15m")
	v.SetDefault("api.addr", ":8085")
	v.SetDefault("api.read_timeout", 10*time.Second)
	v.SetDefault("api.write_timeout", 10*time.Second)
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.output", "stdout")
}
