// Package config handles TOML configuration for autotag.
package config

import (
	"fmt"
	"os"
	"time"

	"github.com/BurntSushi/toml"

	"github.com/yairfalse/autotag/pkg/resource"
)

// Config is the root configuration structure.
type Config struct {
	AWS     AWSConfig     `toml:"aws"`
	Store   StoreConfig   `toml:"store"`
	Tagging TaggingConfig `toml:"tagging"`
	HTTP    HTTPConfig    `toml:"http"`
	OTEL    OTELConfig    `toml:"otel"`
	Log     LogConfig     `toml:"log"`
}

// AWSConfig holds settings for the service's own AWS identity.
type AWSConfig struct {
	Region  string   `toml:"region"`
	Regions []string `toml:"regions"`
	Profile string   `toml:"profile"`

	SessionDurationStr string `toml:"session_duration"`
	SessionDuration    time.Duration
}

// Store drivers.
const (
	StoreBolt     = "bolt"
	StoreDynamoDB = "dynamodb"
	StoreMemory   = "memory"
)

// StoreConfig selects the account-record store.
type StoreConfig struct {
	Driver string `toml:"driver"`
	Path   string `toml:"path"`
	Stage  string `toml:"stage"`
}

// TaggingConfig holds tag-write settings.
type TaggingConfig struct {
	Key    string `toml:"key"`
	Policy string `toml:"policy"`
}

// HTTPConfig holds API server settings.
type HTTPConfig struct {
	Addr           string `toml:"addr"`
	JWTSecret      string `toml:"jwt_secret"`
	JWTIssuer      string `toml:"jwt_issuer"`
	PrincipalClaim string `toml:"principal_claim"`
}

// OTELConfig holds OpenTelemetry settings.
type OTELConfig struct {
	Endpoint    string        `toml:"endpoint"`
	Insecure    bool          `toml:"insecure"`
	ServiceName string        `toml:"service_name"`
	Traces      TracesConfig  `toml:"traces"`
	Metrics     MetricsConfig `toml:"metrics"`
}

// TracesConfig holds tracing settings.
type TracesConfig struct {
	Enabled    bool    `toml:"enabled"`
	SampleRate float64 `toml:"sample_rate"`
}

// MetricsConfig holds metrics settings.
type MetricsConfig struct {
	Enabled    bool `toml:"enabled"`
	Prometheus bool `toml:"prometheus"`
}

// LogConfig holds logging settings.
type LogConfig struct {
	Level string `toml:"level"`
}

// Default returns a configuration with every default applied.
func Default() *Config {
	cfg := &Config{}
	applyDefaults(cfg)
	// defaults always parse
	_ = parseDurations(cfg)
	return cfg
}

// Load reads and parses a TOML config file.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path) // #nosec G304 -- path is operator input
	if err != nil {
		return nil, fmt.Errorf("read config file: %w", err)
	}

	cfg := &Config{}
	if err := toml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	applyDefaults(cfg)

	if err := parseDurations(cfg); err != nil {
		return nil, err
	}

	return cfg, nil
}

func applyDefaults(cfg *Config) {
	if cfg.AWS.Region == "" {
		cfg.AWS.Region = "us-east-1"
	}
	if cfg.AWS.SessionDurationStr == "" {
		cfg.AWS.SessionDurationStr = "1h"
	}
	if cfg.Store.Driver == "" {
		cfg.Store.Driver = StoreBolt
	}
	if cfg.Store.Path == "" {
		cfg.Store.Path = "autotag.db"
	}
	if cfg.Tagging.Key == "" {
		cfg.Tagging.Key = "environment"
	}
	if cfg.HTTP.Addr == "" {
		cfg.HTTP.Addr = ":8080"
	}
	if cfg.HTTP.PrincipalClaim == "" {
		cfg.HTTP.PrincipalClaim = "email"
	}
	if secret := os.Getenv("AUTOTAG_JWT_SECRET"); secret != "" {
		cfg.HTTP.JWTSecret = secret
	}
	if cfg.OTEL.ServiceName == "" {
		cfg.OTEL.ServiceName = "autotag"
	}
	if cfg.Log.Level == "" {
		cfg.Log.Level = "info"
	}
}

func parseDurations(cfg *Config) error {
	d, err := time.ParseDuration(cfg.AWS.SessionDurationStr)
	if err != nil {
		return fmt.Errorf("parse session_duration %q: %w", cfg.AWS.SessionDurationStr, err)
	}
	cfg.AWS.SessionDuration = d
	return nil
}

// Validate checks the configuration is valid.
func (c *Config) Validate() error {
	if c.AWS.SessionDuration < 15*time.Minute || c.AWS.SessionDuration > 12*time.Hour {
		return fmt.Errorf("aws: session_duration must be between 15m and 12h (got %v)", c.AWS.SessionDuration)
	}
	if err := validateRegions(c.AWS.Regions); err != nil {
		return err
	}
	switch c.Store.Driver {
	case StoreBolt:
		if c.Store.Path == "" {
			return fmt.Errorf("store: path required for bolt driver")
		}
	case StoreDynamoDB, StoreMemory:
	default:
		return fmt.Errorf("store: unknown driver %q", c.Store.Driver)
	}
	if c.Tagging.Key == "" {
		return fmt.Errorf("tagging: key must not be empty")
	}
	if c.OTEL.Traces.SampleRate < 0.0 || c.OTEL.Traces.SampleRate > 1.0 {
		return fmt.Errorf("otel: traces.sample_rate must be between 0.0 and 1.0 (got %v)", c.OTEL.Traces.SampleRate)
	}
	return nil
}

func validateRegions(regions []string) error {
	seen := make(map[string]bool, len(regions))
	for _, r := range regions {
		switch {
		case r == "":
			return fmt.Errorf("aws: regions must not contain an empty entry")
		case r == resource.GlobalRegion:
			return fmt.Errorf("aws: %q is not a region", r)
		case seen[r]:
			return fmt.Errorf("aws: region %q listed twice", r)
		}
		seen[r] = true
	}
	return nil
}
