// Package config handles TOML configuration for shotty.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"github.com/BurntSushi/toml"
)

// Defaults match the acloud.guru course account.
const (
	DefaultProfile             = "acloudguru"
	DefaultProject             = "acloud.guru"
	DefaultTagKey              = "Project"
	DefaultSnapshotDescription = "Created by shotty"
	DefaultWaitTimeout         = 15 * time.Minute
	DefaultPushJob             = "shotty"
)

// Config is the root configuration structure.
type Config struct {
	AWS      AWSConfig      `toml:"aws"`
	Project  ProjectConfig  `toml:"project"`
	Snapshot SnapshotConfig `toml:"snapshot"`
	OTEL     OTELConfig     `toml:"otel"`
	Metrics  MetricsConfig  `toml:"metrics"`
	Policy   PolicyConfig   `toml:"policy"`
	Log      LogConfig      `toml:"log"`
}

// AWSConfig holds AWS session settings.
type AWSConfig struct {
	Profile  string `toml:"profile"`
	Region   string `toml:"region"`
	Endpoint string `toml:"endpoint"`
}

// ProjectConfig controls the default project filter.
type ProjectConfig struct {
	Default string `toml:"default"`
	TagKey  string `toml:"tag_key"`
}

// SnapshotConfig holds settings for `instances snapshot`.
type SnapshotConfig struct {
	Description    string `toml:"description"`
	WaitTimeoutStr string `toml:"wait_timeout"`
	WaitTimeout    time.Duration
}

// OTELConfig holds OpenTelemetry settings.
type OTELConfig struct {
	Endpoint    string       `toml:"endpoint"`
	Insecure    bool         `toml:"insecure"`
	ServiceName string       `toml:"service_name"`
	Traces      TracesConfig `toml:"traces"`
	Metrics     OTLPMetrics  `toml:"metrics"`
}

// TracesConfig holds tracing settings.
type TracesConfig struct {
	Enabled    bool    `toml:"enabled"`
	SampleRate float64 `toml:"sample_rate"`
}

// OTLPMetrics holds OTLP metric export settings.
type OTLPMetrics struct {
	Enabled bool `toml:"enabled"`
}

// MetricsConfig holds Prometheus Pushgateway settings.
type MetricsConfig struct {
	Pushgateway string `toml:"pushgateway"`
	Job         string `toml:"job"`
}

// PolicyConfig points at an optional Rego policy guarding instance actions.
type PolicyConfig struct {
	File string `toml:"file"`
}

// LogConfig holds logging settings.
type LogConfig struct {
	Level string `toml:"level"`
}

// DefaultPath returns $XDG_CONFIG_HOME/shotty/config.toml (or the OS equivalent).
func DefaultPath() (string, error) {
	dir, err := os.UserConfigDir()
	if err != nil {
		return "", fmt.Errorf("user config dir: %w", err)
	}
	return filepath.Join(dir, "shotty", "config.toml"), nil
}

// Default returns a configuration with every default applied.
func Default() *Config {
	cfg := &Config{}
	applyDefaults(cfg)
	cfg.Snapshot.WaitTimeout = DefaultWaitTimeout
	return cfg
}

// Load reads and parses a TOML config file.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config file: %w", err)
	}

	cfg := &Config{}
	if err := toml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	applyDefaults(cfg)

	if err := parseWaitTimeout(cfg); err != nil {
		return nil, err
	}

	return cfg, nil
}

// LoadOrDefault loads path. When the path was not given explicitly and the
// file does not exist, defaults are returned instead of an error.
func LoadOrDefault(path string, explicit bool) (*Config, error) {
	cfg, err := Load(path)
	if err == nil {
		return cfg, nil
	}
	if !explicit && errors.Is(err, fs.ErrNotExist) {
		return Default(), nil
	}
	return nil, err
}

func applyDefaults(cfg *Config) {
	if cfg.AWS.Profile == "" {
		cfg.AWS.Profile = DefaultProfile
	}
	if cfg.Project.Default == "" {
		cfg.Project.Default = DefaultProject
	}
	if cfg.Project.TagKey == "" {
		cfg.Project.TagKey = DefaultTagKey
	}
	if cfg.Snapshot.Description == "" {
		cfg.Snapshot.Description = DefaultSnapshotDescription
	}
	if cfg.Snapshot.WaitTimeoutStr == "" {
		cfg.Snapshot.WaitTimeoutStr = DefaultWaitTimeout.String()
	}
	if cfg.OTEL.Traces.Enabled && cfg.OTEL.Traces.SampleRate == 0 {
		cfg.OTEL.Traces.SampleRate = 1.0
	}
	if cfg.OTEL.ServiceName == "" {
		cfg.OTEL.ServiceName = "shotty"
	}
	if cfg.Metrics.Job == "" {
		cfg.Metrics.Job = DefaultPushJob
	}
	if cfg.Log.Level == "" {
		cfg.Log.Level = "info"
	}
}

func parseWaitTimeout(cfg *Config) error {
	d, err := time.ParseDuration(cfg.Snapshot.WaitTimeoutStr)
	if err != nil {
		return fmt.Errorf("parse wait_timeout %q: %w", cfg.Snapshot.WaitTimeoutStr, err)
	}
	cfg.Snapshot.WaitTimeout = d
	return nil
}

// Validate checks the configuration is valid.
func (c *Config) Validate() error {
	if c.Project.TagKey == "" {
		return fmt.Errorf("project: tag_key must not be empty")
	}
	if c.Snapshot.WaitTimeout <= 0 {
		return fmt.Errorf("snapshot: wait_timeout must be positive (got %v)", c.Snapshot.WaitTimeout)
	}
	if c.OTEL.Traces.SampleRate < 0.0 || c.OTEL.Traces.SampleRate > 1.0 {
		return fmt.Errorf("otel: traces.sample_rate must be between 0.0 and 1.0 (got %v)", c.OTEL.Traces.SampleRate)
	}
	return nil
}
