// Package config loads the srujan configuration file and supplies
// defaults for anything it omits.
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the top-level srujan configuration.
type Config struct {
	// DBPath is the SQLite database file.
	DBPath string `json:"db_path" yaml:"db_path"`

	// DryRun disables external enforcement calls; batches still
	// report would-be applications as applied.
	DryRun bool `json:"dry_run" yaml:"dry_run"`

	// LogLevel sets the log level (debug, info, warn, error).
	LogLevel string `json:"log_level" yaml:"log_level"`

	// EnforceTimeout bounds each enforcement call.
	EnforceTimeout time.Duration `json:"enforce_timeout" yaml:"enforce_timeout"`

	API APIConfig `json:"api" yaml:"api"`
}

// APIConfig holds the HTTP server settings.
type APIConfig struct {
	// Enabled starts the REST API server.
	Enabled bool `json:"enabled" yaml:"enabled"`

	// Host is the address to bind the API server to.
	Host string `json:"host" yaml:"host"`

	// Port is the HTTP port to listen on.
	Port int `json:"port" yaml:"port"`

	// ReadTimeout is the maximum duration for reading the entire request.
	ReadTimeout time.Duration `json:"read_timeout" yaml:"read_timeout"`

	// WriteTimeout is the maximum duration before timing out writes.
	WriteTimeout time.Duration `json:"write_timeout" yaml:"write_timeout"`

	// IdleTimeout is the maximum amount of time to wait for the next request.
	IdleTimeout time.Duration `json:"idle_timeout" yaml:"idle_timeout"`

	// EnableCORS enables Cross-Origin Resource Sharing.
	EnableCORS bool `json:"enable_cors" yaml:"enable_cors"`
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		DBPath:         "data/policies.db",
		DryRun:         false,
		LogLevel:       "info",
		EnforceTimeout: 5 * time.Second,
		API: APIConfig{
			Enabled:      true,
			Host:         "127.0.0.1",
			Port:         8080,
			ReadTimeout:  10 * time.Second,
			WriteTimeout: 10 * time.Second,
			IdleTimeout:  60 * time.Second,
			EnableCORS:   true,
		},
	}
}

// Load reads a yaml config file over the defaults. An empty path
// returns the defaults unchanged.
func Load(path string) (*Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}
	return cfg, nil
}
