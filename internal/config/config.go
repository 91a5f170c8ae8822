// Package config handles configuration management with validation
package config

import (
	"fmt"
	"net/url"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// Config represents the complete configuration structure
type Config struct {
	Gateway   GatewayConfig   `yaml:"gateway"`
	Session   SessionConfig   `yaml:"session"`
	Sync      SyncConfig      `yaml:"sync"`
	Server    ServerConfig    `yaml:"server"`
	Telemetry TelemetryConfig `yaml:"telemetry"`
	System    SystemConfig    `yaml:"system"`
}

// GatewayConfig describes the remote order service
type GatewayConfig struct {
	BaseURL                 string `yaml:"base_url" validate:"required,url"`
	TimeoutSeconds          int    `yaml:"timeout_seconds" validate:"min=0,max=300"` // 0 means no client timeout
	BreakerFailureThreshold int    `yaml:"breaker_failure_threshold" validate:"min=0"`
	BreakerFailureWindow    int    `yaml:"breaker_failure_window" validate:"min=0"`
	BreakerDelaySeconds     int    `yaml:"breaker_delay_seconds" validate:"min=0,max=3600"`
}

// SessionConfig selects the durable session slot
type SessionConfig struct {
	Store string `yaml:"store" validate:"oneof=sqlite memory"`
	Path  string `yaml:"path"` // SQLite database file
	Key   string `yaml:"key"`  // Slot name inside the store
}

// SyncConfig sizes the fire-and-forget dispatcher
type SyncConfig struct {
	Workers       int `yaml:"workers" validate:"min=1,max=100"`
	QueueCapacity int `yaml:"queue_capacity" validate:"min=1,max=10000"`
}

// ServerConfig contains the local consumer-facing live server settings
type ServerConfig struct {
	Addr           string   `yaml:"addr"`
	AllowedOrigins []string `yaml:"allowed_origins"`
	Production     bool     `yaml:"production"`
	MaxConnections int      `yaml:"max_connections" validate:"min=1"`
	RateLimit      float64  `yaml:"rate_limit" validate:"min=0"`
	RateBurst      int      `yaml:"rate_burst" validate:"min=0"`
	StaticDir      string   `yaml:"static_dir"`
}

// TelemetryConfig contains telemetry settings
type TelemetryConfig struct {
	MetricsPort     int  `yaml:"metrics_port"`
	EnableMetrics   bool `yaml:"enable_metrics"`
	EnableTracing   bool `yaml:"enable_tracing"`
	EnableLogExport bool `yaml:"enable_log_export"`
}

// SystemConfig contains system settings
type SystemConfig struct {
	LogLevel  string `yaml:"log_level" validate:"required,oneof=DEBUG INFO WARN ERROR FATAL"`
	LogFormat string `yaml:"log_format" validate:"oneof=console json"`
}

// ValidationError represents a configuration validation error
type ValidationError struct {
	Field   string
	Value   interface{}
	Message string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("validation error for field '%s' (value: %v): %s", e.Field, e.Value, e.Message)
}

// LoadConfig loads configuration from a YAML file with environment variable
// expansion. Missing keys keep their DefaultConfig values.
func LoadConfig(filename string) (*Config, error) {
	data, err := os.ReadFile(filename)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	return Parse(data)
}

// Parse decodes and validates YAML configuration content
func Parse(data []byte) (*Config, error) {
	expandedData := expandEnvVars(string(data))

	config := DefaultConfig()
	if err := yaml.Unmarshal([]byte(expandedData), config); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return config, nil
}

// Validate performs comprehensive validation of the configuration
func (c *Config) Validate() error {
	var errors []string

	for _, check := range []func() error{
		c.validateGatewayConfig,
		c.validateSessionConfig,
		c.validateSyncConfig,
		c.validateServerConfig,
		c.validateSystemConfig,
	} {
		if err := check(); err != nil {
			errors = append(errors, err.Error())
		}
	}

	if len(errors) > 0 {
		return fmt.Errorf("configuration validation failed:\n%s", strings.Join(errors, "\n"))
	}

	return nil
}

func (c *Config) validateGatewayConfig() error {
	if c.Gateway.BaseURL == "" {
		return ValidationError{
			Field:   "gateway.base_url",
			Message: "order service base URL is required",
		}
	}

	u, err := url.Parse(c.Gateway.BaseURL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return ValidationError{
			Field:   "gateway.base_url",
			Value:   c.Gateway.BaseURL,
			Message: "must be an absolute http(s) URL",
		}
	}

	if c.Gateway.TimeoutSeconds < 0 {
		return ValidationError{
			Field:   "gateway.timeout_seconds",
			Value:   c.Gateway.TimeoutSeconds,
			Message: "timeout must not be negative",
		}
	}

	if c.Gateway.BreakerFailureThreshold < 0 {
		return ValidationError{
			Field:   "gateway.breaker_failure_threshold",
			Value:   c.Gateway.BreakerFailureThreshold,
			Message: "threshold must not be negative",
		}
	}

	if c.Gateway.BreakerFailureThreshold > 0 && c.Gateway.BreakerFailureWindow > 0 &&
		c.Gateway.BreakerFailureWindow < c.Gateway.BreakerFailureThreshold {
		return ValidationError{
			Field:   "gateway.breaker_failure_window",
			Value:   c.Gateway.BreakerFailureWindow,
			Message: "window must be at least the failure threshold",
		}
	}

	return nil
}

func (c *Config) validateSessionConfig() error {
	validStores := []string{"sqlite", "memory"}
	if !contains(validStores, c.Session.Store) {
		return ValidationError{
			Field:   "session.store",
			Value:   c.Session.Store,
			Message: fmt.Sprintf("must be one of: %s", strings.Join(validStores, ", ")),
		}
	}

	if c.Session.Store == "sqlite" && c.Session.Path == "" {
		return ValidationError{
			Field:   "session.path",
			Message: "a database path is required for the sqlite store",
		}
	}

	if c.Session.Key == "" {
		return ValidationError{
			Field:   "session.key",
			Message: "slot key must not be empty",
		}
	}

	return nil
}

func (c *Config) validateSyncConfig() error {
	if c.Sync.Workers < 1 {
		return ValidationError{
			Field:   "sync.workers",
			Value:   c.Sync.Workers,
			Message: "at least one worker is required",
		}
	}
	if c.Sync.QueueCapacity < 1 {
		return ValidationError{
			Field:   "sync.queue_capacity",
			Value:   c.Sync.QueueCapacity,
			Message: "queue capacity must be positive",
		}
	}
	return nil
}

func (c *Config) validateServerConfig() error {
	if c.Server.MaxConnections < 1 {
		return ValidationError{
			Field:   "server.max_connections",
			Value:   c.Server.MaxConnections,
			Message: "must be positive",
		}
	}

	if c.Server.Production {
		for _, origin := range c.Server.AllowedOrigins {
			if origin == "*" {
				return ValidationError{
					Field:   "server.allowed_origins",
					Value:   origin,
					Message: "wildcard origin is not allowed in production",
				}
			}
		}
	}

	return nil
}

func (c *Config) validateSystemConfig() error {
	validLevels := []string{"DEBUG", "INFO", "WARN", "ERROR", "FATAL"}
	if !contains(validLevels, strings.ToUpper(c.System.LogLevel)) {
		return ValidationError{
			Field:   "system.log_level",
			Value:   c.System.LogLevel,
			Message: fmt.Sprintf("must be one of: %s", strings.Join(validLevels, ", ")),
		}
	}

	validFormats := []string{"console", "json"}
	if !contains(validFormats, c.System.LogFormat) {
		return ValidationError{
			Field:   "system.log_format",
			Value:   c.System.LogFormat,
			Message: fmt.Sprintf("must be one of: %s", strings.Join(validFormats, ", ")),
		}
	}
	return nil
}

// String returns a YAML representation of the configuration with
// credentials embedded in the gateway URL masked
func (c *Config) String() string {
	configCopy := *c
	configCopy.Gateway.BaseURL = maskURL(c.Gateway.BaseURL)

	data, _ := yaml.Marshal(configCopy)
	return string(data)
}

// Helper functions

func expandEnvVars(s string) string {
	return os.Expand(s, os.Getenv)
}

func contains(slice []string, item string) bool {
	for _, s := range slice {
		if s == item {
			return true
		}
	}
	return false
}

func maskURL(raw string) string {
	u, err := url.Parse(raw)
	if err != nil || u.User == nil {
		return raw
	}
	u.User = url.User("********")
	return u.String()
}

// DefaultConfig returns the default configuration
func DefaultConfig() *Config {
	return &Config{
		Gateway: GatewayConfig{
			BaseURL:                 "http://localhost:4000",
			TimeoutSeconds:          30,
			BreakerFailureThreshold: 5,
			BreakerFailureWindow:    10,
			BreakerDelaySeconds:     10,
		},
		Session: SessionConfig{
			Store: "sqlite",
			Path:  "cartsync.db",
			Key:   "token",
		},
		Sync: SyncConfig{
			Workers:       4,
			QueueCapacity: 256,
		},
		Server: ServerConfig{
			Addr:           ":8080",
			AllowedOrigins: []string{"http://localhost:5173"},
			MaxConnections: 100,
			RateLimit:      10,
			RateBurst:      20,
		},
		Telemetry: TelemetryConfig{
			MetricsPort:   9090,
			EnableMetrics: true,
		},
		System: SystemConfig{
			LogLevel:  "INFO",
			LogFormat: "console",
		},
	}
}
