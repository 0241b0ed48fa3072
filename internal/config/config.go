// Package config loads application configuration from file and environment.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config is the full application configuration.
type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	Gemini   GeminiConfig   `mapstructure:"gemini"`
	Database DatabaseConfig `mapstructure:"database"`
	Tasks    TasksConfig    `mapstructure:"tasks"`
	Uploads  UploadsConfig  `mapstructure:"uploads"`
	Logging  LoggingConfig  `mapstructure:"logging"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Addr            string        `mapstructure:"addr"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
}

// GeminiConfig holds model collaborator settings.
type GeminiConfig struct {
	APIKey     string        `mapstructure:"api_key"`
	Model      string        `mapstructure:"model"`
	Timeout    time.Duration `mapstructure:"timeout"`
	RateLimit  int           `mapstructure:"rate_limit"`
	MaxRetries int           `mapstructure:"max_retries"`
	CacheTTL   time.Duration `mapstructure:"cache_ttl"`
}

// DatabaseConfig holds record store settings.
type DatabaseConfig struct {
	Path string `mapstructure:"path"`
}

// TasksConfig holds task registry settings.
type TasksConfig struct {
	MaxAgeHours int `mapstructure:"max_age_hours"`
}

// UploadsConfig holds transport-boundary upload limits.
type UploadsConfig struct {
	MaxSizeMB int `mapstructure:"max_size_mb"`
}

// LoggingConfig holds logger settings.
type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// Load reads configuration from the given file (optional), the working
// directory, and BILLSENSE_* environment variables, applying defaults for
// everything left unset.
func Load(cfgFile string) (*Config, error) {
	v := viper.New()

	v.SetDefault("server.addr", ":8080")
	v.SetDefault("server.shutdown_timeout", 10*time.Second)
	// api_key defaults to empty so the key is known to viper and the
	// BILLSENSE_GEMINI_API_KEY environment variable is picked up.
	v.SetDefault("gemini.api_key", "")
	v.SetDefault("gemini.model", "gemini-2.0-flash")
	v.SetDefault("gemini.timeout", 60*time.Second)
	v.SetDefault("gemini.rate_limit", 60)
	v.SetDefault("gemini.max_retries", 3)
	v.SetDefault("gemini.cache_ttl", 15*time.Minute)
	v.SetDefault("database.path", "data/billsense.db")
	v.SetDefault("tasks.max_age_hours", 24)
	v.SetDefault("uploads.max_size_mb", 10)
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "console")

	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
	} else {
		v.AddConfigPath(".")
		v.SetConfigName("config")
		v.SetConfigType("yaml")
	}

	v.SetEnvPrefix("BILLSENSE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	cfg.Database.Path = ExpandPath(cfg.Database.Path)

	return &cfg, nil
}
