// Package config loads ifacemap settings from .ifacemap.yaml, IFACEMAP_*
// environment variables, and built-in defaults, in that order of precedence
// (environment first).
package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/spf13/viper"
)

const (
	// FileName is the config file name (without extension) searched in the root.
	FileName = ".ifacemap"
	// EnvPrefix is the prefix for environment overrides, e.g. IFACEMAP_CONCURRENCY.
	EnvPrefix = "IFACEMAP"
)

// Config holds all user-tunable settings.
type Config struct {
	Patterns    []string      `mapstructure:"patterns"`
	Ignore      []string      `mapstructure:"ignore"`
	UseGit      bool          `mapstructure:"use_git"`
	Concurrency int           `mapstructure:"concurrency"`
	Debounce    time.Duration `mapstructure:"debounce"`
	LogLevel    string        `mapstructure:"log_level"`
	MetricsAddr string        `mapstructure:"metrics_addr"`
}

// Default returns the configuration used when nothing is set.
func Default() *Config {
	return &Config{
		Patterns:    []string{"**/*.go"},
		Ignore:      []string{},
		UseGit:      true,
		Concurrency: 10,
		Debounce:    200 * time.Millisecond,
		LogLevel:    "warn",
		MetricsAddr: "",
	}
}

// Load reads configuration for root. When path is non-empty that file is
// used and must exist; otherwise .ifacemap.yaml in root is read if present.
func Load(root, path string) (*Config, error) {
	v := viper.New()

	d := Default()
	v.SetDefault("patterns", d.Patterns)
	v.SetDefault("ignore", d.Ignore)
	v.SetDefault("use_git", d.UseGit)
	v.SetDefault("concurrency", d.Concurrency)
	v.SetDefault("debounce", d.Debounce)
	v.SetDefault("log_level", d.LogLevel)
	v.SetDefault("metrics_addr", d.MetricsAddr)

	v.SetEnvPrefix(EnvPrefix)
	v.AutomaticEnv()

	if path != "" {
		if _, err := os.Stat(path); err != nil {
			return nil, fmt.Errorf("config: %w", err)
		}
		v.SetConfigFile(path)
	} else {
		v.SetConfigName(FileName)
		v.SetConfigType("yaml")
		v.AddConfigPath(root)
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("config: read: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("config: parse: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate rejects settings the engine cannot run with.
func (c *Config) Validate() error {
	if c.Concurrency < 1 {
		return fmt.Errorf("config: concurrency must be at least 1, got %d", c.Concurrency)
	}
	if len(c.Patterns) == 0 {
		return fmt.Errorf("config: at least one pattern is required")
	}
	if c.Debounce < 0 {
		return fmt.Errorf("config: debounce must not be negative")
	}
	return nil
}
