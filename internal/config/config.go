// Package config loads contentq settings from an optional config file and
// CONTENTQ_* environment variables.
package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/viper"
)

// EnvPrefix is prepended to every environment variable:
// database.path is read from CONTENTQ_DATABASE_PATH.
const EnvPrefix = "CONTENTQ"

// Config is the resolved configuration.
type Config struct {
	Database  DatabaseConfig  `mapstructure:"database"`
	Manifest  ManifestConfig  `mapstructure:"manifest"`
	Dumps     DumpsConfig     `mapstructure:"dumps"`
	Integrity IntegrityConfig `mapstructure:"integrity"`
	Log       LogConfig       `mapstructure:"log"`
}

// DatabaseConfig locates the SQLite content database.
type DatabaseConfig struct {
	Path string `mapstructure:"path"`
}

// ManifestConfig locates the collection manifest.
type ManifestConfig struct {
	Path string `mapstructure:"path"`
}

// DumpsConfig locates the directory of collection dumps.
type DumpsConfig struct {
	Dir string `mapstructure:"dir"`
}

// IntegrityConfig controls the integrity gate.
type IntegrityConfig struct {
	// ServerMode enables verification for requests that carry a request handle.
	ServerMode bool `mapstructure:"server_mode"`

	// RetryOnFailure leaves a failed collection unchecked so the next
	// request verifies it again, instead of marking it invalid.
	RetryOnFailure bool `mapstructure:"retry_on_failure"`
}

// LogConfig selects the log level and handler format.
type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

var defaults = map[string]any{
	"database.path":              "contentq.db",
	"manifest.path":              "manifest.yaml",
	"dumps.dir":                  "dumps",
	"integrity.server_mode":      true,
	"integrity.retry_on_failure": false,
	"log.level":                  "info",
	"log.format":                 "text",
}

// Load resolves the configuration.
//
// Precedence, highest first: environment variables, the config file,
// defaults. When path is empty, contentq.yaml in the working directory is
// read if it exists; an explicit path must exist.
func Load(path string) (*Config, error) {
	v := viper.New()

	for key, value := range defaults {
		v.SetDefault(key, value)
	}

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("contentq")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if path != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks enumerated settings.
func (c *Config) Validate() error {
	var errs []error
	switch strings.ToLower(c.Log.Level) {
	case "debug", "info", "warn", "warning", "error":
	default:
		errs = append(errs, fmt.Errorf("invalid log.level %q", c.Log.Level))
	}
	switch strings.ToLower(c.Log.Format) {
	case "text", "json":
	default:
		errs = append(errs, fmt.Errorf("invalid log.format %q", c.Log.Format))
	}
	if c.Database.Path == "" {
		errs = append(errs, errors.New("database.path is required"))
	}
	return errors.Join(errs...)
}
