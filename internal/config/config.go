// Package config provides configuration management for bunker using Viper.
// It supports configuration from files, environment variables, and defaults.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Default configuration values.
const (
	defaultMetricsPort     = 9090
	defaultShutdownTimeout = 10 * time.Second
	defaultJobHistoryDSN   = "bunker-jobs.db"
)

// Config holds all configuration for the application.
type Config struct {
	Pipeline   PipelineConfig   `mapstructure:"pipeline"`
	Logging    LoggingConfig    `mapstructure:"logging"`
	Metrics    MetricsConfig    `mapstructure:"metrics"`
	JobHistory JobHistoryConfig `mapstructure:"job_history"`
}

// PipelineConfig holds pipeline execution configuration.
type PipelineConfig struct {
	// DevicePolicy is one of "auto", "cpu_only", "gpu_preferred".
	DevicePolicy string `mapstructure:"device_policy"`
	// OutputDirectory is the default output directory used when a recipe
	// does not specify one of its own.
	OutputDirectory string `mapstructure:"output_directory"`
	// ShutdownTimeout bounds the metrics HTTP server's graceful shutdown;
	// the pipeline executor does not read it.
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
}

// LoggingConfig holds logging configuration.
type LoggingConfig struct {
	Level      string `mapstructure:"level"`  // debug, info, warn, error
	Format     string `mapstructure:"format"` // json, text
	AddSource  bool   `mapstructure:"add_source"`
	TimeFormat string `mapstructure:"time_format"`
}

// MetricsConfig holds the metrics HTTP server configuration.
type MetricsConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Address string `mapstructure:"address"` // host:port
}

// JobHistoryConfig holds the job history store configuration.
type JobHistoryConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	DSN     string `mapstructure:"dsn"` // sqlite file path
}

// Load reads configuration from file and environment variables.
// Environment variables take precedence over file configuration.
// Environment variables are prefixed with BUNKER_ and use underscores for
// nesting. Example: BUNKER_METRICS_ADDRESS=:9090.
func Load(configPath string) (*Config, error) {
	v := viper.New()

	SetDefaults(v)

	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("./configs")
		v.AddConfigPath("/etc/bunker")
		v.AddConfigPath("$HOME/.bunker")
	}

	v.SetEnvPrefix("BUNKER")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var configFileNotFoundError viper.ConfigFileNotFoundError
		if !errors.As(err, &configFileNotFoundError) {
			return nil, fmt.Errorf("reading config file: %w", err)
		}
		// Config file not found is OK - we'll use defaults and env vars.
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshaling config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return &cfg, nil
}

// SetDefaults configures default values for all configuration options.
// This should be called before reading the config file to ensure defaults
// are in place.
func SetDefaults(v *viper.Viper) {
	// Pipeline defaults
	v.SetDefault("pipeline.device_policy", "auto")
	v.SetDefault("pipeline.output_directory", "./output")
	v.SetDefault("pipeline.shutdown_timeout", defaultShutdownTimeout)

	// Logging defaults
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")
	v.SetDefault("logging.add_source", false)
	v.SetDefault("logging.time_format", time.RFC3339)

	// Metrics defaults
	v.SetDefault("metrics.enabled", true)
	v.SetDefault("metrics.address", fmt.Sprintf(":%d", defaultMetricsPort))

	// Job history defaults
	v.SetDefault("job_history.enabled", true)
	v.SetDefault("job_history.dsn", defaultJobHistoryDSN)
}

// Validate checks the configuration for errors.
func (c *Config) Validate() error {
	validPolicies := map[string]bool{"auto": true, "cpu_only": true, "gpu_preferred": true}
	if !validPolicies[c.Pipeline.DevicePolicy] {
		return fmt.Errorf("pipeline.device_policy must be one of: auto, cpu_only, gpu_preferred")
	}
	if c.Pipeline.OutputDirectory == "" {
		return fmt.Errorf("pipeline.output_directory is required")
	}

	validLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLevels[c.Logging.Level] {
		return fmt.Errorf("logging.level must be one of: debug, info, warn, error")
	}
	validFormats := map[string]bool{"json": true, "text": true}
	if !validFormats[c.Logging.Format] {
		return fmt.Errorf("logging.format must be one of: json, text")
	}

	if c.Metrics.Enabled && c.Metrics.Address == "" {
		return fmt.Errorf("metrics.address is required when metrics.enabled is true")
	}
	if c.JobHistory.Enabled && c.JobHistory.DSN == "" {
		return fmt.Errorf("job_history.dsn is required when job_history.enabled is true")
	}

	return nil
}
