// ABOUTME: Tests for configuration loading and parsing
// ABOUTME: Covers YAML and TOML loading, defaults, env var expansion, duration parsing and validation

package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func writeConfig(t *testing.T, name, content string) string {
	t.Helper()
	configPath := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(configPath, []byte(content), 0644); err != nil {
		t.Fatalf("failed to write test config: %v", err)
	}
	return configPath
}

func TestLoad_ValidConfig(t *testing.T) {
	configPath := writeConfig(t, "config.yaml", `
server:
  http_addr: "0.0.0.0:8080"

database:
  driver: "sqlite3"
  path: "./test.db"

conversations:
  backend: "dynamodb"
  dynamodb_table: "conversations"
  aws_region: "us-east-1"

memory:
  enabled: true
  ttl: "168h"
  default_project_id: "acme"

idempotency:
  max_event_ids: 50

router:
  autonomous_mode: true

jobs:
  workers: 8
  queue_size: 32

callback:
  url: "https://hooks.example.com/jobs"
  secret: "hook-secret"
  max_retries: 5
  timeout: "2s"
  base_backoff: "100ms"

logging:
  level: "debug"
  format: "json"
`)

	cfg, err := Load(configPath)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Server.HTTPAddr != "0.0.0.0:8080" {
		t.Errorf("Server.HTTPAddr = %q, want %q", cfg.Server.HTTPAddr, "0.0.0.0:8080")
	}
	if cfg.Database.Driver != "sqlite3" {
		t.Errorf("Database.Driver = %q, want %q", cfg.Database.Driver, "sqlite3")
	}
	if cfg.Database.Path != "./test.db" {
		t.Errorf("Database.Path = %q, want %q", cfg.Database.Path, "./test.db")
	}
	if cfg.Conversations.Backend != "dynamodb" || cfg.Conversations.DynamoDBTable != "conversations" {
		t.Errorf("Conversations = %+v, want dynamodb/conversations", cfg.Conversations)
	}
	if cfg.Conversations.AWSRegion != "us-east-1" {
		t.Errorf("Conversations.AWSRegion = %q, want %q", cfg.Conversations.AWSRegion, "us-east-1")
	}
	if cfg.Memory.TTL != 7*24*time.Hour {
		t.Errorf("Memory.TTL = %v, want %v", cfg.Memory.TTL, 7*24*time.Hour)
	}
	if cfg.Memory.DefaultProjectID != "acme" {
		t.Errorf("Memory.DefaultProjectID = %q, want %q", cfg.Memory.DefaultProjectID, "acme")
	}
	if cfg.Idempotency.MaxEventIDs != 50 {
		t.Errorf("Idempotency.MaxEventIDs = %d, want 50", cfg.Idempotency.MaxEventIDs)
	}
	if !cfg.Router.AutonomousMode {
		t.Error("Router.AutonomousMode = false, want true")
	}
	if cfg.Jobs.Workers != 8 || cfg.Jobs.QueueSize != 32 {
		t.Errorf("Jobs = %+v, want workers 8 queue 32", cfg.Jobs)
	}
	if cfg.Callback.URL != "https://hooks.example.com/jobs" {
		t.Errorf("Callback.URL = %q", cfg.Callback.URL)
	}
	if cfg.Callback.MaxRetries != 5 {
		t.Errorf("Callback.MaxRetries = %d, want 5", cfg.Callback.MaxRetries)
	}
	if cfg.Callback.Timeout != 2*time.Second {
		t.Errorf("Callback.Timeout = %v, want %v", cfg.Callback.Timeout, 2*time.Second)
	}
	if cfg.Callback.BaseBackoff != 100*time.Millisecond {
		t.Errorf("Callback.BaseBackoff = %v, want %v", cfg.Callback.BaseBackoff, 100*time.Millisecond)
	}
	if cfg.Logging.Level != "debug" {
		t.Errorf("Logging.Level = %q, want %q", cfg.Logging.Level, "debug")
	}
	if cfg.Logging.Format != "json" {
		t.Errorf("Logging.Format = %q, want %q", cfg.Logging.Format, "json")
	}
}

func TestLoad_DefaultsFillMissingKeys(t *testing.T) {
	configPath := writeConfig(t, "config.yaml", `
database:
  path: "./only-path.db"
`)

	cfg, err := Load(configPath)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Database.Path != "./only-path.db" {
		t.Errorf("Database.Path = %q, want %q", cfg.Database.Path, "./only-path.db")
	}
	if cfg.Database.Driver != "sqlite" {
		t.Errorf("Database.Driver = %q, want default %q", cfg.Database.Driver, "sqlite")
	}
	if !cfg.Memory.Enabled {
		t.Error("Memory.Enabled = false, want default true")
	}
	if cfg.Memory.TTL != 30*24*time.Hour {
		t.Errorf("Memory.TTL = %v, want default 30 days", cfg.Memory.TTL)
	}
	if cfg.Idempotency.MaxEventIDs != 200 {
		t.Errorf("Idempotency.MaxEventIDs = %d, want default 200", cfg.Idempotency.MaxEventIDs)
	}
	if cfg.Jobs.Workers != 4 {
		t.Errorf("Jobs.Workers = %d, want default 4", cfg.Jobs.Workers)
	}
	if cfg.Callback.MaxRetries != 3 {
		t.Errorf("Callback.MaxRetries = %d, want default 3", cfg.Callback.MaxRetries)
	}
	if cfg.Callback.BaseBackoff != 200*time.Millisecond {
		t.Errorf("Callback.BaseBackoff = %v, want default 200ms", cfg.Callback.BaseBackoff)
	}
}

func TestLoad_ExplicitZeroOverridesDefault(t *testing.T) {
	configPath := writeConfig(t, "config.yaml", `
memory:
  enabled: false
callback:
  max_retries: 0
`)

	cfg, err := Load(configPath)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Memory.Enabled {
		t.Error("Memory.Enabled = true, want false")
	}
	if cfg.Callback.MaxRetries != 0 {
		t.Errorf("Callback.MaxRetries = %d, want 0", cfg.Callback.MaxRetries)
	}
}

func TestLoad_TOML(t *testing.T) {
	configPath := writeConfig(t, "config.toml", `
[server]
http_addr = "0.0.0.0:9090"

[database]
path = "./toml.db"

[memory]
ttl = "48h"

[jobs]
workers = 2

[callback]
url = "http://localhost:9999/cb"
timeout = "1s"
`)

	cfg, err := Load(configPath)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Server.HTTPAddr != "0.0.0.0:9090" {
		t.Errorf("Server.HTTPAddr = %q, want %q", cfg.Server.HTTPAddr, "0.0.0.0:9090")
	}
	if cfg.Database.Path != "./toml.db" {
		t.Errorf("Database.Path = %q, want %q", cfg.Database.Path, "./toml.db")
	}
	if cfg.Memory.TTL != 48*time.Hour {
		t.Errorf("Memory.TTL = %v, want 48h", cfg.Memory.TTL)
	}
	if cfg.Jobs.Workers != 2 {
		t.Errorf("Jobs.Workers = %d, want 2", cfg.Jobs.Workers)
	}
	if cfg.Jobs.QueueSize != 64 {
		t.Errorf("Jobs.QueueSize = %d, want default 64", cfg.Jobs.QueueSize)
	}
	if cfg.Callback.Timeout != time.Second {
		t.Errorf("Callback.Timeout = %v, want 1s", cfg.Callback.Timeout)
	}
}

func TestLoad_EnvVarExpansion(t *testing.T) {
	t.Setenv("TEST_CALLBACK_SECRET", "secret-from-env")
	t.Setenv("TEST_DB_PATH", "/var/lib/assistants/env.db")

	configPath := writeConfig(t, "config.yaml", `
database:
  path: "${TEST_DB_PATH}"
callback:
  url: "https://hooks.example.com"
  secret: "${TEST_CALLBACK_SECRET}"
`)

	cfg, err := Load(configPath)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Callback.Secret != "secret-from-env" {
		t.Errorf("Callback.Secret = %q, want %q", cfg.Callback.Secret, "secret-from-env")
	}
	if cfg.Database.Path != "/var/lib/assistants/env.db" {
		t.Errorf("Database.Path = %q, want %q", cfg.Database.Path, "/var/lib/assistants/env.db")
	}
}

func TestLoad_EnvVarExpansion_UnsetVar(t *testing.T) {
	// Ensure the env var is NOT set
	os.Unsetenv("UNSET_VAR_FOR_TEST")

	configPath := writeConfig(t, "config.yaml", `
callback:
  secret: "${UNSET_VAR_FOR_TEST}"
`)

	cfg, err := Load(configPath)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	// Unset env vars should expand to empty string
	if cfg.Callback.Secret != "" {
		t.Errorf("Callback.Secret = %q, want empty string for unset env var", cfg.Callback.Secret)
	}
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load("/nonexistent/path/config.yaml")
	if err == nil {
		t.Error("Load() expected error for missing file, got nil")
	}
}

func TestLoad_InvalidYAML(t *testing.T) {
	configPath := writeConfig(t, "config.yaml", `
server:
  http_addr "missing colon"
`)

	_, err := Load(configPath)
	if err == nil {
		t.Error("Load() expected error for invalid YAML, got nil")
	}
}

func TestLoad_InvalidDuration(t *testing.T) {
	tests := []struct {
		name    string
		content string
	}{
		{"memory ttl", "memory:\n  ttl: \"thirty days\"\n"},
		{"callback timeout", "callback:\n  timeout: \"soon\"\n"},
		{"callback backoff", "callback:\n  base_backoff: \"1x\"\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load(writeConfig(t, "config.yaml", tt.content))
			if err == nil {
				t.Error("Load() expected error for invalid duration, got nil")
			}
		})
	}
}

func TestLoad_InvalidValues(t *testing.T) {
	tests := []struct {
		name          string
		configContent string
		wantErrSubstr string
	}{
		{
			name:          "missing http_addr",
			configContent: "server:\n  http_addr: \"\"\n",
			wantErrSubstr: "server.http_addr is required",
		},
		{
			name:          "missing database path",
			configContent: "database:\n  path: \"\"\n",
			wantErrSubstr: "database.path is required",
		},
		{
			name:          "unknown driver",
			configContent: "database:\n  driver: \"postgres\"\n",
			wantErrSubstr: "database.driver",
		},
		{
			name:          "dynamodb without table",
			configContent: "conversations:\n  backend: \"dynamodb\"\n",
			wantErrSubstr: "conversations.dynamodb_table is required",
		},
		{
			name:          "unknown backend",
			configContent: "conversations:\n  backend: \"redis\"\n",
			wantErrSubstr: "conversations.backend",
		},
		{
			name:          "zero workers",
			configContent: "jobs:\n  workers: 0\n",
			wantErrSubstr: "jobs.workers must be positive",
		},
		{
			name:          "negative retries",
			configContent: "callback:\n  max_retries: -1\n",
			wantErrSubstr: "callback.max_retries",
		},
		{
			name:          "callback url scheme",
			configContent: "callback:\n  url: \"ftp://example.com\"\n",
			wantErrSubstr: "callback.url",
		},
		{
			name:          "short jwt secret",
			configContent: "auth:\n  jwt_secret: \"short\"\n",
			wantErrSubstr: "auth.jwt_secret",
		},
		{
			name:          "bad log level",
			configContent: "logging:\n  level: \"verbose\"\n",
			wantErrSubstr: "logging.level",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load(writeConfig(t, "config.yaml", tt.configContent))
			if err == nil {
				t.Errorf("Load() expected error containing %q, got nil", tt.wantErrSubstr)
				return
			}

			if !strings.Contains(err.Error(), tt.wantErrSubstr) {
				t.Errorf("Load() error = %q, want error containing %q", err.Error(), tt.wantErrSubstr)
			}
		})
	}
}

func TestLoadDefault(t *testing.T) {
	cfg, err := LoadDefault()
	if err != nil {
		t.Fatalf("LoadDefault() error = %v", err)
	}
	if cfg.Memory.TTL != 720*time.Hour {
		t.Errorf("Memory.TTL = %v, want 720h", cfg.Memory.TTL)
	}
	if cfg.Callback.Timeout != 5*time.Second {
		t.Errorf("Callback.Timeout = %v, want 5s", cfg.Callback.Timeout)
	}
}

func TestExpandEnvVars(t *testing.T) {
	t.Setenv("FOO", "bar")
	t.Setenv("BAZ", "qux")

	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{
			name:     "single env var",
			input:    "${FOO}",
			expected: "bar",
		},
		{
			name:     "env var with surrounding text",
			input:    "prefix-${FOO}-suffix",
			expected: "prefix-bar-suffix",
		},
		{
			name:     "multiple env vars",
			input:    "${FOO}/${BAZ}",
			expected: "bar/qux",
		},
		{
			name:     "no env vars",
			input:    "no-vars-here",
			expected: "no-vars-here",
		},
		{
			name:     "unset env var",
			input:    "${UNSET_VAR}",
			expected: "",
		},
		{
			name:     "empty string",
			input:    "",
			expected: "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := expandEnvVars(tt.input)
			if result != tt.expected {
				t.Errorf("expandEnvVars(%q) = %q, want %q", tt.input, result, tt.expected)
			}
		})
	}
}
