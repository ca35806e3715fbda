// Package config provides YAML configuration with environment overrides.
package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/labstack/gommon/bytes"
	"gopkg.in/yaml.v3"
)

// AppConfig represents the root configuration structure
type AppConfig struct {
	// Backend is the material analysis service
	Backend BackendConfig `yaml:"backend"`

	// Server configuration
	Server ServerConfig `yaml:"server"`

	// Session and preview storage
	Sessions SessionConfig `yaml:"sessions"`

	// Logging options
	Logging LoggingConfig `yaml:"logging"`
}

// BackendConfig points at the external analysis/generation API
type BackendConfig struct {
	APIURL         string        `yaml:"apiUrl" env:"API_URL"`
	RequestTimeout time.Duration `yaml:"requestTimeout" env:"REQUEST_TIMEOUT"`
	Debug          bool          `yaml:"debug" env:"API_DEBUG"`
}

// ServerConfig contains HTTP server settings
type ServerConfig struct {
	Port         int           `yaml:"port" env:"PORT"`
	BindAddress  string        `yaml:"bindAddress" env:"BIND_ADDRESS"`
	AllowOrigins []string      `yaml:"allowOrigins" env:"ALLOW_ORIGINS" envSeparator:","`
	ReadTimeout  time.Duration `yaml:"readTimeout" env:"READ_TIMEOUT"`
	WriteTimeout time.Duration `yaml:"writeTimeout" env:"WRITE_TIMEOUT"`
	IdleTimeout  time.Duration `yaml:"idleTimeout" env:"IDLE_TIMEOUT"`
	BodyLimit    string        `yaml:"bodyLimit" env:"BODY_LIMIT"`
	EnableGzip   bool          `yaml:"enableGzip" env:"ENABLE_GZIP"`
}

// SessionConfig bounds the in-memory workflow sessions
type SessionConfig struct {
	Timeout         time.Duration `yaml:"timeout" env:"SESSION_TIMEOUT"`
	CleanupInterval time.Duration `yaml:"cleanupInterval" env:"CLEANUP_INTERVAL"`
	MaxSessions     int           `yaml:"maxSessions" env:"MAX_SESSIONS"`
	MaxImageBytes   int64         `yaml:"maxImageBytes" env:"MAX_IMAGE_BYTES"`
}

// LoggingConfig selects level and output format
type LoggingConfig struct {
	Level          string `yaml:"level" env:"LOG_LEVEL"`
	Format         string `yaml:"format" env:"LOG_FORMAT"` // "console" or "json"
	RequestLogging bool   `yaml:"requestLogging" env:"REQUEST_LOGGING"`
}

// dropFramingBytes covers the JSON around a dropped file's base64 data.
const dropFramingBytes = 64 << 10

// DefaultConfig returns the default configuration
func DefaultConfig() *AppConfig {
	return &AppConfig{
		Backend: BackendConfig{
			APIURL: "http://127.0.0.1:8000",
		},
		Server: ServerConfig{
			Port:        8090,
			BindAddress: "0.0.0.0",
			AllowOrigins: []string{
				"http://localhost:5173", "http://127.0.0.1:5173",
			},
			ReadTimeout:  30 * time.Second,
			WriteTimeout: 0, // generation can take minutes
			IdleTimeout:  120 * time.Second,
			BodyLimit:    "32M", // base64 drops of MaxImageBytes plus JSON framing
			EnableGzip:   true,
		},
		Sessions: SessionConfig{
			Timeout:         30 * time.Minute,
			CleanupInterval: 5 * time.Minute,
			MaxSessions:     200,
			MaxImageBytes:   20 << 20,
		},
		Logging: LoggingConfig{
			Level:          "info",
			Format:         "console",
			RequestLogging: true,
		},
	}
}

// Load reads the YAML file at path when it exists, then applies
// environment overrides. An empty path skips the file.
func Load(path string) (*AppConfig, error) {
	cfg := DefaultConfig()

	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case errors.Is(err, os.ErrNotExist):
		case err != nil:
			return nil, fmt.Errorf("failed to read config file: %w", err)
		default:
			if err := yaml.Unmarshal(data, cfg); err != nil {
				return nil, fmt.Errorf("failed to parse config file: %w", err)
			}
		}
	}

	if err := cfg.applyEnvironmentOverrides(); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// applyEnvironmentOverrides lets environment variables override file values
func (c *AppConfig) applyEnvironmentOverrides() error {
	if err := env.Parse(c); err != nil {
		return fmt.Errorf("failed to parse environment: %w", err)
	}
	return nil
}

// Validate checks the fields the server cannot start without
func (c *AppConfig) Validate() error {
	u, err := url.Parse(c.Backend.APIURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return fmt.Errorf("invalid backend.apiUrl %q", c.Backend.APIURL)
	}
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server.port %d", c.Server.Port)
	}
	if c.Sessions.Timeout <= 0 {
		return fmt.Errorf("invalid sessions.timeout %s", c.Sessions.Timeout)
	}
	if c.Sessions.CleanupInterval <= 0 {
		return fmt.Errorf("invalid sessions.cleanupInterval %s", c.Sessions.CleanupInterval)
	}
	if c.Server.BodyLimit != "" {
		limit, err := bytes.Parse(c.Server.BodyLimit)
		if err != nil {
			return fmt.Errorf("invalid server.bodyLimit %q: %w", c.Server.BodyLimit, err)
		}
		if need := c.MinBodyLimit(); limit < need {
			return fmt.Errorf("server.bodyLimit %s is below %s needed for a base64 drop of sessions.maxImageBytes",
				c.Server.BodyLimit, bytes.Format(need))
		}
	}
	switch strings.ToLower(c.Logging.Format) {
	case "console", "json":
	default:
		return fmt.Errorf("invalid logging.format %q", c.Logging.Format)
	}
	return nil
}

// MinBodyLimit is the smallest request body that still carries a
// base64-encoded drop of MaxImageBytes. Zero when images are unbounded.
func (c *AppConfig) MinBodyLimit() int64 {
	if c.Sessions.MaxImageBytes <= 0 {
		return 0
	}
	return (c.Sessions.MaxImageBytes+2)/3*4 + dropFramingBytes
}

// GetServerAddr returns the server bind address
func (c *AppConfig) GetServerAddr() string {
	return fmt.Sprintf("%s:%d", c.Server.BindAddress, c.Server.Port)
}
