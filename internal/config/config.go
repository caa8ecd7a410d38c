// Package config loads the process configuration. All settings have
// working defaults; an empty config path is not an error, but a named
// file that does not exist is.
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the top-level process configuration.
type Config struct {
	Logging LoggingOpts `yaml:"logging" json:"logging"`
	Store   StoreOpts   `yaml:"store" json:"store"`
	Catalog CatalogOpts `yaml:"catalog" json:"catalog"`
	Authz   AuthzOpts   `yaml:"authz" json:"authz"`
}

// LoggingOpts controls the structured logger and its rotation.
type LoggingOpts struct {
	Level      string `yaml:"level" json:"level"`   // debug, info, warn, error
	Format     string `yaml:"format" json:"format"` // json, text
	File       string `yaml:"file,omitempty" json:"file,omitempty"`
	MaxSizeMB  int    `yaml:"max_size_mb,omitempty" json:"max_size_mb,omitempty"`
	MaxBackups int    `yaml:"max_backups,omitempty" json:"max_backups,omitempty"`
	MaxAgeDays int    `yaml:"max_age_days,omitempty" json:"max_age_days,omitempty"`
}

// StoreOpts locates the result database.
type StoreOpts struct {
	Path string `yaml:"path" json:"path"`
}

// CatalogOpts locates the signature catalog file. Empty means the built-in
// catalog.
type CatalogOpts struct {
	Path string `yaml:"path,omitempty" json:"path,omitempty"`
}

// AuthzOpts configures the authorization gate.
type AuthzOpts struct {
	AllowLocal        bool `yaml:"allow_local" json:"allow_local"`
	ResolveHostnames  bool `yaml:"resolve_hostnames" json:"resolve_hostnames"`
	MaxScansPerWindow int  `yaml:"max_scans_per_window" json:"max_scans_per_window"`
	WindowSeconds     int  `yaml:"window_seconds" json:"window_seconds"`
}

// Window returns the rate-limit window as a duration.
func (a AuthzOpts) Window() time.Duration {
	return time.Duration(a.WindowSeconds) * time.Second
}

// Default returns the configuration used when no file is supplied.
func Default() *Config {
	return &Config{
		Logging: LoggingOpts{
			Level:      "info",
			Format:     "json",
			MaxSizeMB:  50,
			MaxBackups: 3,
			MaxAgeDays: 30,
		},
		Store: StoreOpts{Path: "iotscan.db"},
		Authz: AuthzOpts{
			ResolveHostnames:  true,
			MaxScansPerWindow: 10,
			WindowSeconds:     300,
		},
	}
}

// Load reads a YAML config file, expands ${ENV_VAR} references, applies
// defaults for unset fields, and validates the result. An empty path
// returns the defaults.
func Load(path string) (*Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config %s: %w", path, err)
	}
	data = []byte(os.ExpandEnv(string(data)))

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config %s: %w", path, err)
	}

	cfg.applyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config %s: %w", path, err)
	}
	return cfg, nil
}

func (c *Config) applyDefaults() {
	def := Default()
	if c.Logging.Level == "" {
		c.Logging.Level = def.Logging.Level
	}
	if c.Logging.Format == "" {
		c.Logging.Format = def.Logging.Format
	}
	if c.Logging.MaxSizeMB <= 0 {
		c.Logging.MaxSizeMB = def.Logging.MaxSizeMB
	}
	if c.Logging.MaxBackups <= 0 {
		c.Logging.MaxBackups = def.Logging.MaxBackups
	}
	if c.Logging.MaxAgeDays <= 0 {
		c.Logging.MaxAgeDays = def.Logging.MaxAgeDays
	}
	if c.Store.Path == "" {
		c.Store.Path = def.Store.Path
	}
	if c.Authz.MaxScansPerWindow <= 0 {
		c.Authz.MaxScansPerWindow = def.Authz.MaxScansPerWindow
	}
	if c.Authz.WindowSeconds <= 0 {
		c.Authz.WindowSeconds = def.Authz.WindowSeconds
	}
}

// Validate rejects values the rest of the process cannot work with.
func (c *Config) Validate() error {
	switch c.Logging.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("unknown log level %q", c.Logging.Level)
	}
	switch c.Logging.Format {
	case "json", "text":
	default:
		return fmt.Errorf("unknown log format %q", c.Logging.Format)
	}
	return nil
}
