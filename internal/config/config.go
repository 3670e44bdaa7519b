// Package config provides configuration management for the agent URI
// resolver daemon.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds all configuration for the resolver daemon.
type Config struct {
	// Server configuration
	Server ServerConfig `yaml:"server" json:"server"`

	// Registry configuration
	Registry RegistryConfig `yaml:"registry" json:"registry"`

	// Logging configuration
	Logging LoggingConfig `yaml:"logging" json:"logging"`

	// Security configuration
	Security SecurityConfig `yaml:"security" json:"security"`
}

// ServerConfig holds server-specific configuration.
type ServerConfig struct {
	// Address to listen on (e.g., ":8472" or "0.0.0.0:8472")
	Address string `yaml:"address" json:"address"`

	// ReadTimeout is loaded and validated; the daemon does not pass it to
	// the transport, and no read deadline is applied
	ReadTimeout time.Duration `yaml:"read_timeout" json:"read_timeout"`

	// WriteTimeout is loaded and validated; the daemon does not pass it to
	// the transport, and no write deadline is applied
	WriteTimeout time.Duration `yaml:"write_timeout" json:"write_timeout"`

	// MaxPayloadSize is the maximum allowed message size in bytes
	MaxPayloadSize int64 `yaml:"max_payload_size" json:"max_payload_size"`
}

// RegistryConfig holds registry-specific configuration.
type RegistryConfig struct {
	// DefaultTTL is applied to registrations that don't request one
	DefaultTTL time.Duration `yaml:"default_ttl" json:"default_ttl"`

	// KeyCapacity is the maximum registrations per DHT key
	KeyCapacity int `yaml:"key_capacity" json:"key_capacity"`

	// SweepInterval is the interval between expiry sweeps
	SweepInterval time.Duration `yaml:"sweep_interval" json:"sweep_interval"`

	// SnapshotPath persists registrations across restarts; empty
	// disables persistence
	SnapshotPath string `yaml:"snapshot_path" json:"snapshot_path"`
}

// LoggingConfig holds logging-specific configuration.
type LoggingConfig struct {
	// Level is the log level (debug, info, warn, error)
	Level string `yaml:"level" json:"level"`

	// Format is the log format (text, json)
	Format string `yaml:"format" json:"format"`

	// Output is the log output (stdout, stderr, or file path)
	Output string `yaml:"output" json:"output"`
}

// SecurityConfig holds security-specific configuration.
type SecurityConfig struct {
	// RequireAttestation is loaded but not read by the daemon; the server
	// it starts has no attestation verifier, so registrations are accepted
	// without a token
	RequireAttestation bool `yaml:"require_attestation" json:"require_attestation"`

	// AllowedOrigins is a list of allowed WebSocket origins
	AllowedOrigins []string `yaml:"allowed_origins" json:"allowed_origins"`

	// RateLimitPerMinute is loaded and validated but not read by the
	// daemon; no per-client rate limit is applied
	RateLimitPerMinute int `yaml:"rate_limit_per_minute" json:"rate_limit_per_minute"`
}

// DefaultConfig returns a configuration with default values.
func DefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Address:        ":8472",
			ReadTimeout:    30 * time.Second,
			WriteTimeout:   30 * time.Second,
			MaxPayloadSize: 64 * 1024, // 64KB
		},
		Registry: RegistryConfig{
			DefaultTTL:    time.Hour,
			KeyCapacity:   64,
			SweepInterval: time.Minute,
			SnapshotPath:  "",
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "text",
			Output: "stdout",
		},
		Security: SecurityConfig{
			RequireAttestation: false,
			AllowedOrigins:     []string{"*"},
			RateLimitPerMinute: 120,
		},
	}
}

// Load loads configuration from file and environment variables.
// Environment variables take precedence over file configuration.
func Load(configPath string) (*Config, error) {
	config := DefaultConfig()

	if configPath != "" {
		if err := loadFromFile(config, configPath); err != nil {
			return nil, fmt.Errorf("failed to load config file: %w", err)
		}
	}

	loadFromEnv(config)

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return config, nil
}

// loadFromFile loads configuration from a YAML or JSON file.
func loadFromFile(config *Config, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}

	ext := strings.ToLower(filepath.Ext(path))
	switch ext {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(data, config); err != nil {
			return fmt.Errorf("failed to parse YAML: %w", err)
		}
	case ".json":
		if err := json.Unmarshal(data, config); err != nil {
			return fmt.Errorf("failed to parse JSON: %w", err)
		}
	default:
		return fmt.Errorf("unsupported config file format: %s (use .yaml, .yml, or .json)", ext)
	}

	return nil
}

// loadFromEnv overrides configuration with environment variables.
// Environment variables use the prefix "AGENTURI_" and follow the pattern:
// AGENTURI_SERVER_ADDRESS, AGENTURI_REGISTRY_DEFAULT_TTL, etc.
func loadFromEnv(config *Config) {
	if v := os.Getenv("AGENTURI_SERVER_ADDRESS"); v != "" {
		config.Server.Address = v
	}
	if v := os.Getenv("AGENTURI_SERVER_READ_TIMEOUT"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			config.Server.ReadTimeout = d
		}
	}
	if v := os.Getenv("AGENTURI_SERVER_WRITE_TIMEOUT"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			config.Server.WriteTimeout = d
		}
	}
	if v := os.Getenv("AGENTURI_SERVER_MAX_PAYLOAD_SIZE"); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil {
			config.Server.MaxPayloadSize = n
		}
	}

	if v := os.Getenv("AGENTURI_REGISTRY_DEFAULT_TTL"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			config.Registry.DefaultTTL = d
		}
	}
	if v := os.Getenv("AGENTURI_REGISTRY_KEY_CAPACITY"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			config.Registry.KeyCapacity = n
		}
	}
	if v := os.Getenv("AGENTURI_REGISTRY_SWEEP_INTERVAL"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			config.Registry.SweepInterval = d
		}
	}
	if v := os.Getenv("AGENTURI_REGISTRY_SNAPSHOT_PATH"); v != "" {
		config.Registry.SnapshotPath = v
	}

	if v := os.Getenv("AGENTURI_LOG_LEVEL"); v != "" {
		config.Logging.Level = v
	}
	if v := os.Getenv("AGENTURI_LOG_FORMAT"); v != "" {
		config.Logging.Format = v
	}
	if v := os.Getenv("AGENTURI_LOG_OUTPUT"); v != "" {
		config.Logging.Output = v
	}

	if v := os.Getenv("AGENTURI_SECURITY_REQUIRE_ATTESTATION"); v != "" {
		config.Security.RequireAttestation = parseBool(v)
	}
	if v := os.Getenv("AGENTURI_SECURITY_ALLOWED_ORIGINS"); v != "" {
		config.Security.AllowedOrigins = strings.Split(v, ",")
	}
	if v := os.Getenv("AGENTURI_SECURITY_RATE_LIMIT"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			config.Security.RateLimitPerMinute = n
		}
	}
}

// parseBool parses a string as a boolean value.
func parseBool(s string) bool {
	s = strings.ToLower(strings.TrimSpace(s))
	return s == "true" || s == "1" || s == "yes" || s == "on"
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	if c.Server.Address == "" {
		return fmt.Errorf("server address cannot be empty")
	}
	if c.Server.MaxPayloadSize <= 0 {
		return fmt.Errorf("max payload size must be positive")
	}
	if c.Server.ReadTimeout <= 0 {
		return fmt.Errorf("read timeout must be positive")
	}
	if c.Server.WriteTimeout <= 0 {
		return fmt.Errorf("write timeout must be positive")
	}

	if c.Registry.DefaultTTL <= 0 {
		return fmt.Errorf("default TTL must be positive")
	}
	if c.Registry.KeyCapacity <= 0 {
		return fmt.Errorf("key capacity must be positive")
	}
	if c.Registry.SweepInterval <= 0 {
		return fmt.Errorf("sweep interval must be positive")
	}

	validLogLevels := []string{"debug", "info", "warn", "error"}
	if !contains(validLogLevels, strings.ToLower(c.Logging.Level)) {
		return fmt.Errorf("invalid log level: %s (must be one of: %v)", c.Logging.Level, validLogLevels)
	}
	validLogFormats := []string{"text", "json"}
	if !contains(validLogFormats, strings.ToLower(c.Logging.Format)) {
		return fmt.Errorf("invalid log format: %s (must be one of: %v)", c.Logging.Format, validLogFormats)
	}

	if c.Security.RateLimitPerMinute < 0 {
		return fmt.Errorf("rate limit cannot be negative")
	}

	return nil
}

// contains checks if a string slice contains a specific string.
func contains(slice []string, item string) bool {
	item = strings.ToLower(item)
	for _, s := range slice {
		if strings.ToLower(s) == item {
			return true
		}
	}
	return false
}

// SaveToFile saves the current configuration to a file.
func (c *Config) SaveToFile(path string) error {
	ext := strings.ToLower(filepath.Ext(path))

	var data []byte
	var err error

	switch ext {
	case ".yaml", ".yml":
		data, err = yaml.Marshal(c)
	case ".json":
		data, err = json.MarshalIndent(c, "", "  ")
	default:
		return fmt.Errorf("unsupported config file format: %s", ext)
	}

	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// IsDebug returns true if log level is debug.
func (c *Config) IsDebug() bool {
	return strings.ToLower(c.Logging.Level) == "debug"
}
