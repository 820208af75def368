package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestLoad(t *testing.T) {
	yaml := `
instance:
  id: test-feed
stream:
  service: pricing
  transport: tcp
  tier: 1
  locations: [us-east-1a, us-east-1b]
  auto_reconnect: false
  max_attempts: 7
  reconnect_base_delay: 250ms
discovery:
  root: https://discovery.example.com/streaming
  paths:
    pricing: pricing/chain
auth:
  user: alice
  application_id: "256"
database:
  host: localhost
  port: 5433
  name: test_db
  user: testuser
  password: testpass
`
	path := writeTempFile(t, yaml)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if cfg.Instance.ID != "test-feed" {
		t.Errorf("Instance.ID = %q, want %q", cfg.Instance.ID, "test-feed")
	}
	if cfg.Stream.Service != "pricing" {
		t.Errorf("Stream.Service = %q, want %q", cfg.Stream.Service, "pricing")
	}
	if cfg.Stream.Tier == nil || *cfg.Stream.Tier != 1 {
		t.Errorf("Stream.Tier = %v, want 1", cfg.Stream.Tier)
	}
	if len(cfg.Stream.Locations) != 2 || cfg.Stream.Locations[1] != "us-east-1b" {
		t.Errorf("Stream.Locations = %v", cfg.Stream.Locations)
	}
	if cfg.Stream.Reconnect() {
		t.Error("Stream.Reconnect() = true, want false")
	}
	if cfg.Stream.ReconnectBaseDelay != 250*time.Millisecond {
		t.Errorf("Stream.ReconnectBaseDelay = %v, want 250ms", cfg.Stream.ReconnectBaseDelay)
	}
	if cfg.Discovery.Paths["pricing"] != "pricing/chain" {
		t.Errorf("Discovery.Paths[pricing] = %q", cfg.Discovery.Paths["pricing"])
	}
	if cfg.Auth.ApplicationID != "256" {
		t.Errorf("Auth.ApplicationID = %q, want %q", cfg.Auth.ApplicationID, "256")
	}
	if cfg.Database.Port != 5433 {
		t.Errorf("Database.Port = %d, want 5433", cfg.Database.Port)
	}
}

func TestLoadWithEnvSubstitution(t *testing.T) {
	t.Setenv("TEST_DB_PASSWORD", "secret123")
	t.Setenv("TEST_FEED_USER", "bob")

	yaml := `
instance:
  id: test-feed
auth:
  user: ${TEST_FEED_USER}
database:
  host: localhost
  name: test_db
  user: testuser
  password: ${TEST_DB_PASSWORD}
`
	path := writeTempFile(t, yaml)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if cfg.Database.Password != "secret123" {
		t.Errorf("Database.Password = %q, want %q", cfg.Database.Password, "secret123")
	}
	if cfg.Auth.User != "bob" {
		t.Errorf("Auth.User = %q, want %q", cfg.Auth.User, "bob")
	}
}

func TestLoad_Errors(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Error("Load of missing file should fail")
	}

	path := writeTempFile(t, "instance: [unterminated")
	if _, err := Load(path); err == nil || !strings.Contains(err.Error(), "parse config yaml") {
		t.Errorf("Load of bad yaml error = %v, want parse error", err)
	}
}

func TestLoadWithDefaults(t *testing.T) {
	yaml := `
instance:
  id: test-feed
stream:
  service: pricing
auth:
  user: alice
`
	path := writeTempFile(t, yaml)

	cfg, err := LoadWithDefaults(path)
	if err != nil {
		t.Fatalf("LoadWithDefaults failed: %v", err)
	}

	// Check defaults were applied
	if cfg.Stream.Transport != DefaultTransport {
		t.Errorf("Stream.Transport = %q, want default %q", cfg.Stream.Transport, DefaultTransport)
	}
	if cfg.Stream.Path != DefaultWebSocketPath {
		t.Errorf("Stream.Path = %q, want default %q", cfg.Stream.Path, DefaultWebSocketPath)
	}
	if cfg.Stream.MaxAttempts != DefaultMaxAttempts {
		t.Errorf("Stream.MaxAttempts = %d, want default %d", cfg.Stream.MaxAttempts, DefaultMaxAttempts)
	}
	if cfg.Stream.ReconnectMaxDelay != DefaultReconnectMaxDelay {
		t.Errorf("Stream.ReconnectMaxDelay = %v, want default %v", cfg.Stream.ReconnectMaxDelay, DefaultReconnectMaxDelay)
	}
	if cfg.Stream.QueueSize != DefaultQueueSize {
		t.Errorf("Stream.QueueSize = %d, want default %d", cfg.Stream.QueueSize, DefaultQueueSize)
	}
	if !cfg.Stream.Reconnect() {
		t.Error("Stream.Reconnect() = false, want default true")
	}
	if cfg.Discovery.CacheTTL != DefaultDiscoveryCacheTTL {
		t.Errorf("Discovery.CacheTTL = %v, want default %v", cfg.Discovery.CacheTTL, DefaultDiscoveryCacheTTL)
	}
	if cfg.Database.Port != DefaultDBPort {
		t.Errorf("Database.Port = %d, want default %d", cfg.Database.Port, DefaultDBPort)
	}
	if cfg.Database.MaxConns != DefaultMaxConns {
		t.Errorf("Database.MaxConns = %d, want default %d", cfg.Database.MaxConns, DefaultMaxConns)
	}
	if cfg.Recorder.Table != DefaultRecorderTable {
		t.Errorf("Recorder.Table = %q, want default %q", cfg.Recorder.Table, DefaultRecorderTable)
	}
	if cfg.Metrics.Port != DefaultMetricsPort {
		t.Errorf("Metrics.Port = %d, want default %d", cfg.Metrics.Port, DefaultMetricsPort)
	}
	if cfg.Logging.Level != DefaultLogLevel {
		t.Errorf("Logging.Level = %q, want default %q", cfg.Logging.Level, DefaultLogLevel)
	}
}

func TestLoadAndValidate(t *testing.T) {
	yaml := `
instance:
  id: test-feed
stream:
  service: pricing
  direct_urls:
    pricing: wss://stream.example.com:443/WebSocket
auth:
  user: alice
`
	cfg, err := LoadAndValidate(writeTempFile(t, yaml))
	if err != nil {
		t.Fatalf("LoadAndValidate failed: %v", err)
	}
	if cfg.Stream.DirectURLs["pricing"] == "" {
		t.Error("direct url not loaded")
	}

	// No direct url and no discovery root.
	bad := `
instance:
  id: test-feed
stream:
  service: pricing
auth:
  user: alice
`
	_, err = LoadAndValidate(writeTempFile(t, bad))
	if err == nil || !strings.HasPrefix(err.Error(), "validate config: ") {
		t.Errorf("LoadAndValidate error = %v, want validation error", err)
	}
}

func validConfig() Config {
	cfg := Config{
		Instance: InstanceConfig{ID: "test"},
		Stream:   StreamConfig{Service: "pricing"},
		Discovery: DiscoveryConfig{
			Root:  "https://discovery.example.com",
			Paths: map[string]string{"pricing": "pricing"},
		},
		Auth: AuthConfig{User: "alice"},
	}
	cfg.applyDefaults()
	return cfg
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(c *Config)
		wantErr string
	}{
		{
			name:    "missing instance id",
			mutate:  func(c *Config) { c.Instance.ID = "" },
			wantErr: "instance.id is required",
		},
		{
			name:    "missing service",
			mutate:  func(c *Config) { c.Stream.Service = "" },
			wantErr: "stream.service is required",
		},
		{
			name:    "unknown transport",
			mutate:  func(c *Config) { c.Stream.Transport = "carrier-pigeon" },
			wantErr: `stream.transport: unknown transport "carrier-pigeon"`,
		},
		{
			name:    "no source of endpoints",
			mutate:  func(c *Config) { c.Discovery.Root = "" },
			wantErr: "stream.direct_urls.pricing or discovery.root is required",
		},
		{
			name:    "no discovery path for service",
			mutate:  func(c *Config) { c.Discovery.Paths = map[string]string{"quotes": "quotes"} },
			wantErr: "discovery.paths.pricing is required when stream.direct_urls.pricing is not set",
		},
		{
			name: "direct url replaces discovery",
			mutate: func(c *Config) {
				c.Discovery.Root = ""
				c.Stream.DirectURLs = map[string]string{"pricing": "ws://localhost:15000/WebSocket"}
			},
		},
		{
			name: "negative tier",
			mutate: func(c *Config) {
				tier := -1
				c.Stream.Tier = &tier
			},
			wantErr: "stream.tier must be >= 0, got -1",
		},
		{
			name:    "zero attempts",
			mutate:  func(c *Config) { c.Stream.MaxAttempts = -1 },
			wantErr: "stream.max_attempts must be >= 1",
		},
		{
			name: "zero attempts in server mode",
			mutate: func(c *Config) {
				c.Stream.MaxAttempts = -1
				c.Stream.ServerMode = true
			},
		},
		{
			name:    "max delay below base",
			mutate:  func(c *Config) { c.Stream.ReconnectMaxDelay = 500 * time.Millisecond },
			wantErr: "stream.reconnect_max_delay (500ms) cannot be less than reconnect_base_delay (1s)",
		},
		{
			name:    "multiplier below one",
			mutate:  func(c *Config) { c.Stream.ReconnectMultiplier = 0.5 },
			wantErr: "stream.reconnect_multiplier must be >= 1",
		},
		{
			name:    "negative queue",
			mutate:  func(c *Config) { c.Stream.QueueSize = -5 },
			wantErr: "stream.queue_size must be >= 1",
		},
		{
			name:    "ping timeout below interval",
			mutate:  func(c *Config) { c.Stream.PingTimeout = 10 * time.Second },
			wantErr: "stream.ping_timeout (10s) cannot be less than ping_interval (30s)",
		},
		{
			name:    "missing user",
			mutate:  func(c *Config) { c.Auth.User = "" },
			wantErr: "auth.user is required",
		},
		{
			name:    "key id without key",
			mutate:  func(c *Config) { c.Auth.KeyID = "k1" },
			wantErr: "auth.private_key_path is required when auth.key_id is set",
		},
		{
			name:    "recorder without database",
			mutate:  func(c *Config) { c.Recorder.Enabled = true },
			wantErr: "database.host is required",
		},
		{
			name: "recorder missing password",
			mutate: func(c *Config) {
				c.Recorder.Enabled = true
				c.Database = DBConfig{Host: "localhost", Name: "db", User: "user", MaxConns: 10}
			},
			wantErr: "database.password is required",
		},
		{
			name: "min_conns exceeds max_conns",
			mutate: func(c *Config) {
				c.Recorder.Enabled = true
				c.Database = DBConfig{Host: "localhost", Name: "db", User: "user", Password: "pass", MaxConns: 5, MinConns: 10}
			},
			wantErr: "database.min_conns (10) cannot exceed max_conns (5)",
		},
		{
			name: "bad recorder table",
			mutate: func(c *Config) {
				c.Recorder.Enabled = true
				c.Database = DBConfig{Host: "localhost", Name: "db", User: "user", Password: "pass", MaxConns: 5}
				c.Recorder.Table = "stream; drop table x"
			},
			wantErr: `recorder.table "stream; drop table x" is not a valid table name`,
		},
		{
			name: "recorder enabled",
			mutate: func(c *Config) {
				c.Recorder.Enabled = true
				c.Database = DBConfig{Host: "localhost", Name: "db", User: "user", Password: "pass", MaxConns: 5, MinConns: 1}
				c.Recorder.Table = "feed.stream_messages"
			},
		},
		{
			name:    "metrics port out of range",
			mutate:  func(c *Config) { c.Metrics.Port = 70000 },
			wantErr: "metrics.port must be between 1 and 65535, got 70000",
		},
		{
			name:    "bad log level",
			mutate:  func(c *Config) { c.Logging.Level = "trace" },
			wantErr: `logging.level must be one of debug, info, warn, error, got "trace"`,
		},
		{
			name:    "bad log format",
			mutate:  func(c *Config) { c.Logging.Format = "xml" },
			wantErr: `logging.format must be text or json, got "xml"`,
		},
		{
			name:   "valid config",
			mutate: func(c *Config) {},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			tt.mutate(&cfg)
			err := cfg.Validate()
			if tt.wantErr == "" {
				if err != nil {
					t.Errorf("Validate() unexpected error: %v", err)
				}
			} else {
				if err == nil {
					t.Errorf("Validate() expected error containing %q, got nil", tt.wantErr)
				} else if err.Error() != tt.wantErr {
					t.Errorf("Validate() error = %q, want %q", err.Error(), tt.wantErr)
				}
			}
		})
	}
}

func writeTempFile(t *testing.T, content string) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("write temp file: %v", err)
	}
	return path
}
