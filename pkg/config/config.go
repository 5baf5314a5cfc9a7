package config

import (
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/pulseofpeople/sessionkit/pkg/observability"
	"github.com/pulseofpeople/sessionkit/pkg/storage"
)

// ConfigFileEnv names the optional YAML file applied before environment overrides
const ConfigFileEnv = "PULSE_CONFIG_FILE"

// Config holds all application configuration
type Config struct {
	// Auth service client configuration
	API APIConfig `yaml:"api"`

	// Token store configuration
	Storage storage.Config `yaml:"storage"`

	// Observability configuration
	Observability ObservabilityConfig `yaml:"observability"`

	// Mock auth service configuration
	Mock MockConfig `yaml:"mock"`
}

// APIConfig holds auth service client settings
type APIConfig struct {
	URL        string        `yaml:"url"`
	LoginRoute string        `yaml:"login_route"`
	Timeout    time.Duration `yaml:"timeout"` // zero means no timeout
}

// ObservabilityConfig holds observability settings
type ObservabilityConfig struct {
	// Logging
	LogLevel string `yaml:"log_level"`

	// Metrics
	MetricsEnabled bool `yaml:"metrics_enabled"`

	// OpenTelemetry
	OTelEnabled        bool   `yaml:"otel_enabled"`
	OTelEndpoint       string `yaml:"otel_endpoint"`
	OTelServiceName    string `yaml:"otel_service_name"`
	OTelServiceVersion string `yaml:"otel_service_version"`
	OTelInsecure       bool   `yaml:"otel_insecure"` // Use insecure gRPC connection
}

// Level returns the parsed log level
func (o ObservabilityConfig) Level() observability.LogLevel {
	return observability.ParseLogLevel(o.LogLevel)
}

// Tracing converts the OTel settings for observability.InitTracing
func (o ObservabilityConfig) Tracing() observability.TracingConfig {
	return observability.TracingConfig{
		Enabled:        o.OTelEnabled,
		Endpoint:       o.OTelEndpoint,
		ServiceName:    o.OTelServiceName,
		ServiceVersion: o.OTelServiceVersion,
		Insecure:       o.OTelInsecure,
	}
}

// MockConfig holds settings for the local mock auth service
type MockConfig struct {
	Addr     string        `yaml:"addr"`
	Prefix   string        `yaml:"prefix"` // path prefix the API is mounted under
	Accounts []MockAccount `yaml:"accounts"`
}

// MockAccount seeds an account into the mock auth service
type MockAccount struct {
	Username     string   `yaml:"username"`
	Email        string   `yaml:"email"`
	Password     string   `yaml:"password"`
	Role         string   `yaml:"role"`
	Permissions  []string `yaml:"permissions"`
	Organization int      `yaml:"organization"`
	Ward         string   `yaml:"ward"`
	Constituency string   `yaml:"constituency"`
}

// Default returns the built-in configuration
func Default() *Config {
	return &Config{
		API: APIConfig{
			URL:        "http://127.0.0.1:8000/api",
			LoginRoute: "/login",
		},
		Storage: storage.DefaultConfig(defaultDataDir()),
		Observability: ObservabilityConfig{
			LogLevel:           "info",
			MetricsEnabled:     true,
			OTelEndpoint:       "localhost:4317",
			OTelServiceName:    "pulse-session",
			OTelServiceVersion: "1.0.0",
			OTelInsecure:       true,
		},
		Mock: MockConfig{
			Addr:   "127.0.0.1:8000",
			Prefix: "/api",
		},
	}
}

func defaultDataDir() string {
	home, err := os.UserHomeDir()
	if err != nil || home == "" {
		home = "."
	}
	return filepath.Join(home, ".pulseofpeople")
}

// LoadConfig loads configuration from the optional YAML file named by
// PULSE_CONFIG_FILE, then applies environment variables on top
func LoadConfig() (*Config, error) {
	cfg := Default()

	if path := getEnv(ConfigFileEnv, ""); path != "" {
		if err := cfg.LoadFile(path); err != nil {
			return nil, err
		}
	}

	cfg.applyEnv()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return cfg, nil
}

// LoadFile merges a YAML file into the configuration. Keys absent from the
// file keep their current values.
func (c *Config) LoadFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}
	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("failed to parse config file %s: %w", path, err)
	}
	return nil
}

func (c *Config) applyEnv() {
	c.API.URL = getEnv("PULSE_API_URL", c.API.URL)
	c.API.LoginRoute = getEnv("PULSE_LOGIN_ROUTE", c.API.LoginRoute)
	c.API.Timeout = getEnvDuration("PULSE_HTTP_TIMEOUT", c.API.Timeout)

	c.Storage.Type = getEnv("PULSE_TOKEN_STORE", c.Storage.Type)
	c.Storage.FilePath = getEnv("PULSE_TOKEN_FILE", c.Storage.FilePath)
	c.Storage.RedisURL = getEnv("PULSE_REDIS_URL", c.Storage.RedisURL)
	c.Storage.RedisPrefix = getEnv("PULSE_REDIS_PREFIX", c.Storage.RedisPrefix)
	c.Storage.SQLitePath = getEnv("PULSE_SQLITE_PATH", c.Storage.SQLitePath)

	o := &c.Observability
	o.LogLevel = getEnv("PULSE_LOG_LEVEL", o.LogLevel)
	o.MetricsEnabled = getEnvBool("PULSE_METRICS_ENABLED", o.MetricsEnabled)
	o.OTelEnabled = getEnvBool("PULSE_OTEL_ENABLED", o.OTelEnabled)
	o.OTelEndpoint = getEnv("PULSE_OTEL_ENDPOINT", o.OTelEndpoint)
	o.OTelServiceName = getEnv("PULSE_OTEL_SERVICE_NAME", o.OTelServiceName)
	o.OTelServiceVersion = getEnv("PULSE_OTEL_SERVICE_VERSION", o.OTelServiceVersion)
	o.OTelInsecure = getEnvBool("PULSE_OTEL_INSECURE", o.OTelInsecure)

	c.Mock.Addr = getEnv("PULSE_AUTHMOCK_ADDR", c.Mock.Addr)
	c.Mock.Prefix = getEnv("PULSE_AUTHMOCK_PREFIX", c.Mock.Prefix)
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	// Validate API config
	u, err := url.Parse(c.API.URL)
	if err != nil {
		return fmt.Errorf("invalid API URL: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("API URL must use http or https: %s", c.API.URL)
	}
	if u.Host == "" {
		return fmt.Errorf("API URL must include a host: %s", c.API.URL)
	}
	if c.API.LoginRoute == "" {
		return fmt.Errorf("login route is required")
	}
	if c.API.Timeout < 0 {
		return fmt.Errorf("HTTP timeout must not be negative")
	}

	// Validate storage config based on type
	switch c.Storage.Type {
	case "memory":
	case "file", "":
		if c.Storage.FilePath == "" {
			return fmt.Errorf("token file path is required for file storage")
		}
	case "redis":
		if c.Storage.RedisURL == "" {
			return fmt.Errorf("redis URL is required for redis storage")
		}
	case "sqlite":
		if c.Storage.SQLitePath == "" {
			return fmt.Errorf("sqlite path is required for sqlite storage")
		}
	default:
		return fmt.Errorf("invalid token store type: %s (must be memory, file, redis, or sqlite)", c.Storage.Type)
	}

	// Validate OpenTelemetry config
	if c.Observability.OTelEnabled {
		if c.Observability.OTelEndpoint == "" {
			return fmt.Errorf("OpenTelemetry endpoint is required when OTel is enabled")
		}
		if c.Observability.OTelServiceName == "" {
			return fmt.Errorf("OpenTelemetry service name is required when OTel is enabled")
		}
	}

	if c.Mock.Prefix != "" && !strings.HasPrefix(c.Mock.Prefix, "/") {
		return fmt.Errorf("mock prefix must start with '/': %s", c.Mock.Prefix)
	}

	return nil
}

// getEnv returns an environment variable value or a default
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvBool returns a boolean environment variable or a default
func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		return strings.ToLower(value) == "true" || value == "1"
	}
	return defaultValue
}

// getEnvDuration returns a duration environment variable or a default
func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}
