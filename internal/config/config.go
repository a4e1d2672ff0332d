// ABOUTME: Configuration loading and parsing for the assistants service
// ABOUTME: Supports YAML or TOML files with environment variable expansion and duration parsing

package config

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"slices"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"gopkg.in/yaml.v3"
)

// Config represents the complete service configuration
type Config struct {
	Server        ServerConfig        `yaml:"server" toml:"server"`
	Database      DatabaseConfig      `yaml:"database" toml:"database"`
	Conversations ConversationsConfig `yaml:"conversations" toml:"conversations"`
	Memory        MemoryConfig        `yaml:"memory" toml:"memory"`
	Idempotency   IdempotencyConfig   `yaml:"idempotency" toml:"idempotency"`
	Router        RouterConfig        `yaml:"router" toml:"router"`
	Jobs          JobsConfig          `yaml:"jobs" toml:"jobs"`
	Callback      CallbackConfig      `yaml:"callback" toml:"callback"`
	Auth          AuthConfig          `yaml:"auth" toml:"auth"`
	Logging       LoggingConfig       `yaml:"logging" toml:"logging"`
}

// ServerConfig holds server address configuration
type ServerConfig struct {
	HTTPAddr string `yaml:"http_addr" toml:"http_addr"`
}

// DatabaseConfig holds the embedded SQLite configuration
type DatabaseConfig struct {
	// Driver is "sqlite" (pure Go) or "sqlite3" (cgo).
	Driver string `yaml:"driver" toml:"driver"`
	Path   string `yaml:"path" toml:"path"`
}

// ConversationsConfig selects where conversation state lives
type ConversationsConfig struct {
	// Backend is "sqlite" or "dynamodb".
	Backend       string `yaml:"backend" toml:"backend"`
	DynamoDBTable string `yaml:"dynamodb_table" toml:"dynamodb_table"`
	AWSRegion     string `yaml:"aws_region" toml:"aws_region"`
}

// MemoryConfig holds long-term customer memory configuration
type MemoryConfig struct {
	Enabled          bool          `yaml:"enabled" toml:"enabled"`
	TTL              time.Duration `yaml:"-" toml:"-"`
	DefaultProjectID string        `yaml:"default_project_id" toml:"default_project_id"`

	// Raw string values for unmarshaling
	TTLRaw string `yaml:"ttl" toml:"ttl"`
}

// IdempotencyConfig bounds the processed event ids kept per conversation
type IdempotencyConfig struct {
	MaxEventIDs int `yaml:"max_event_ids" toml:"max_event_ids"`
}

// RouterConfig holds routing configuration
type RouterConfig struct {
	AutonomousMode bool `yaml:"autonomous_mode" toml:"autonomous_mode"`
}

// JobsConfig sizes the asynchronous worker pool
type JobsConfig struct {
	Workers   int `yaml:"workers" toml:"workers"`
	QueueSize int `yaml:"queue_size" toml:"queue_size"`
}

// CallbackConfig holds job callback delivery configuration
type CallbackConfig struct {
	URL         string        `yaml:"url" toml:"url"`
	Secret      string        `yaml:"secret" toml:"secret"`
	MaxRetries  int           `yaml:"max_retries" toml:"max_retries"`
	Timeout     time.Duration `yaml:"-" toml:"-"`
	BaseBackoff time.Duration `yaml:"-" toml:"-"`

	// Raw string values for unmarshaling
	TimeoutRaw     string `yaml:"timeout" toml:"timeout"`
	BaseBackoffRaw string `yaml:"base_backoff" toml:"base_backoff"`
}

// AuthConfig holds authentication configuration
type AuthConfig struct {
	// JWTSecret enables bearer auth on the HTTP API when set.
	JWTSecret string `yaml:"jwt_secret" toml:"jwt_secret"`
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level  string `yaml:"level" toml:"level"`
	Format string `yaml:"format" toml:"format"`
}

// MinJWTSecretLength is the shortest accepted HS256 secret.
const MinJWTSecretLength = 32

// Default returns a configuration that runs locally with no file.
func Default() *Config {
	return &Config{
		Server:        ServerConfig{HTTPAddr: "127.0.0.1:8080"},
		Database:      DatabaseConfig{Driver: "sqlite", Path: "./data/assistants.db"},
		Conversations: ConversationsConfig{Backend: "sqlite"},
		Memory: MemoryConfig{
			Enabled:          true,
			TTLRaw:           "720h",
			DefaultProjectID: "dev",
		},
		Idempotency: IdempotencyConfig{MaxEventIDs: 200},
		Jobs:        JobsConfig{Workers: 4, QueueSize: 64},
		Callback: CallbackConfig{
			MaxRetries:     3,
			TimeoutRaw:     "5s",
			BaseBackoffRaw: "200ms",
		},
		Logging: LoggingConfig{Level: "info", Format: "text"},
	}
}

// Load reads a configuration file from the given path and returns a parsed Config.
// Files ending in .toml are decoded as TOML, anything else as YAML. Keys
// missing from the file keep their Default values.
// Environment variables in the format ${VAR_NAME} are expanded.
// Duration strings are parsed into time.Duration values.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	// Expand environment variables in the raw content
	expandedData := expandEnvVars(string(data))

	cfg := Default()
	if strings.EqualFold(filepath.Ext(path), ".toml") {
		if _, err := toml.Decode(expandedData, cfg); err != nil {
			return nil, fmt.Errorf("parsing config file: %w", err)
		}
	} else if err := yaml.Unmarshal([]byte(expandedData), cfg); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}

	if err := cfg.finish(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// LoadDefault returns Default with durations parsed and validated.
func LoadDefault() (*Config, error) {
	cfg := Default()
	if err := cfg.finish(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) finish() error {
	// Parse duration fields
	if err := parseDurations(c); err != nil {
		return fmt.Errorf("parsing durations: %w", err)
	}

	// Validate required fields
	if err := c.Validate(); err != nil {
		return fmt.Errorf("validating config: %w", err)
	}
	return nil
}

var envVarPattern = regexp.MustCompile(`\$\{([^}]+)\}`)

// expandEnvVars replaces ${VAR_NAME} patterns with the corresponding environment variable values.
// If the environment variable is not set, it is replaced with an empty string.
func expandEnvVars(s string) string {
	return envVarPattern.ReplaceAllStringFunc(s, func(match string) string {
		// Extract variable name from ${VAR_NAME}
		varName := envVarPattern.FindStringSubmatch(match)[1]
		return os.Getenv(varName)
	})
}

// Validate checks that all required configuration fields are present and valid.
// Returns an error describing the first validation failure encountered.
func (c *Config) Validate() error {
	if c.Server.HTTPAddr == "" {
		return fmt.Errorf("server.http_addr is required")
	}

	if !slices.Contains([]string{"sqlite", "sqlite3"}, c.Database.Driver) {
		return fmt.Errorf("database.driver must be sqlite or sqlite3, got %q", c.Database.Driver)
	}
	if c.Database.Path == "" {
		return fmt.Errorf("database.path is required")
	}

	switch c.Conversations.Backend {
	case "sqlite":
	case "dynamodb":
		if c.Conversations.DynamoDBTable == "" {
			return fmt.Errorf("conversations.dynamodb_table is required when backend is dynamodb")
		}
	default:
		return fmt.Errorf("conversations.backend must be sqlite or dynamodb, got %q", c.Conversations.Backend)
	}

	if c.Memory.Enabled && c.Memory.TTL <= 0 {
		return fmt.Errorf("memory.ttl must be positive")
	}
	if c.Idempotency.MaxEventIDs <= 0 {
		return fmt.Errorf("idempotency.max_event_ids must be positive")
	}
	if c.Jobs.Workers <= 0 {
		return fmt.Errorf("jobs.workers must be positive")
	}
	if c.Jobs.QueueSize <= 0 {
		return fmt.Errorf("jobs.queue_size must be positive")
	}

	if c.Callback.MaxRetries < 0 {
		return fmt.Errorf("callback.max_retries must not be negative")
	}
	if c.Callback.URL != "" && !strings.HasPrefix(c.Callback.URL, "http://") && !strings.HasPrefix(c.Callback.URL, "https://") {
		return fmt.Errorf("callback.url must be an http(s) URL")
	}

	if c.Auth.JWTSecret != "" && len(c.Auth.JWTSecret) < MinJWTSecretLength {
		return fmt.Errorf("auth.jwt_secret must be at least %d bytes", MinJWTSecretLength)
	}

	if !slices.Contains([]string{"debug", "info", "warn", "error"}, strings.ToLower(c.Logging.Level)) {
		return fmt.Errorf("logging.level must be debug, info, warn or error, got %q", c.Logging.Level)
	}
	if !slices.Contains([]string{"text", "json"}, strings.ToLower(c.Logging.Format)) {
		return fmt.Errorf("logging.format must be text or json, got %q", c.Logging.Format)
	}

	return nil
}

// parseDurations converts the raw duration strings into time.Duration values
func parseDurations(cfg *Config) error {
	var err error

	if cfg.Memory.TTLRaw != "" {
		cfg.Memory.TTL, err = time.ParseDuration(cfg.Memory.TTLRaw)
		if err != nil {
			return fmt.Errorf("parsing memory.ttl %q: %w", cfg.Memory.TTLRaw, err)
		}
	}

	if cfg.Callback.TimeoutRaw != "" {
		cfg.Callback.Timeout, err = time.ParseDuration(cfg.Callback.TimeoutRaw)
		if err != nil {
			return fmt.Errorf("parsing callback.timeout %q: %w", cfg.Callback.TimeoutRaw, err)
		}
	}

	if cfg.Callback.BaseBackoffRaw != "" {
		cfg.Callback.BaseBackoff, err = time.ParseDuration(cfg.Callback.BaseBackoffRaw)
		if err != nil {
			return fmt.Errorf("parsing callback.base_backoff %q: %w", cfg.Callback.BaseBackoffRaw, err)
		}
	}

	return nil
}
