// Package config loads glided's configuration from environment variables
// and an optional YAML file, in that order of precedence, over built-in
// defaults, and validates the result. Command-line flag overrides are
// applied by the caller after Load returns.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/viper"
)

// Config is glided's full runtime configuration.
type Config struct {
	// Addr is the TCP address the server listens on.
	Addr string `mapstructure:"addr" validate:"required"`

	// StagingRoot is the directory staged files are written under.
	StagingRoot string `mapstructure:"staging_root" validate:"required"`

	// ShutdownTimeout bounds how long graceful shutdown waits for
	// in-flight sessions to finish before forcing a close.
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout" validate:"required,gt=0"`

	// ChunkSize is the number of bytes per Chunk frame the server emits
	// when relaying a download.
	ChunkSize int `mapstructure:"chunk_size" validate:"required,gt=0"`

	Logging LoggingConfig `mapstructure:"logging"`
	Metrics MetricsConfig `mapstructure:"metrics"`
}

// LoggingConfig controls the slog handler glided builds at startup.
type LoggingConfig struct {
	// Level is one of debug, info, warn, error.
	Level string `mapstructure:"level" validate:"omitempty,oneof=debug info warn error"`
	// Format is text or json.
	Format string `mapstructure:"format" validate:"omitempty,oneof=text json"`
}

// MetricsConfig controls the optional Prometheus exporter.
type MetricsConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Addr    string `mapstructure:"addr" validate:"required_if=Enabled true"`
}

// Defaults returns a Config with every field set to its documented
// default, before flags/env/file overrides are applied.
func Defaults() Config {
	return Config{
		Addr:            ":7878",
		StagingRoot:     "./staging",
		ShutdownTimeout: 10 * time.Second,
		ChunkSize:       1024,
		Logging: LoggingConfig{
			Level:  "info",
			Format: "text",
		},
		Metrics: MetricsConfig{
			Enabled: false,
			Addr:    ":9090",
		},
	}
}

// Load reads configuration from configPath (if non-empty) and the GLIDE_*
// environment, layered over Defaults(), then validates the result.
func Load(configPath string) (*Config, error) {
	v := viper.New()
	setDefaults(v, Defaults())

	v.SetEnvPrefix("GLIDE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if configPath != "" {
		v.SetConfigFile(configPath)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("config: read %s: %w", configPath, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("config: unmarshal: %w", err)
	}

	if err := Validate(&cfg); err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}
	return &cfg, nil
}

func setDefaults(v *viper.Viper, d Config) {
	v.SetDefault("addr", d.Addr)
	v.SetDefault("staging_root", d.StagingRoot)
	v.SetDefault("shutdown_timeout", d.ShutdownTimeout)
	v.SetDefault("chunk_size", d.ChunkSize)
	v.SetDefault("logging.level", d.Logging.Level)
	v.SetDefault("logging.format", d.Logging.Format)
	v.SetDefault("metrics.enabled", d.Metrics.Enabled)
	v.SetDefault("metrics.addr", d.Metrics.Addr)
}

var validate = validator.New()

// Validate runs struct-tag validation over cfg.
func Validate(cfg *Config) error {
	if err := validate.Struct(cfg); err != nil {
		return fmt.Errorf("validation: %w", err)
	}
	return nil
}
