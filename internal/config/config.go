package config

import "time"

// Config is the root configuration for a streamfeed instance.
type Config struct {
	Instance  InstanceConfig  `yaml:"instance"`
	Stream    StreamConfig    `yaml:"stream"`
	Discovery DiscoveryConfig `yaml:"discovery"`
	Auth      AuthConfig      `yaml:"auth"`
	Database  DBConfig        `yaml:"database"`
	Recorder  RecorderConfig  `yaml:"recorder"`
	Metrics   MetricsConfig   `yaml:"metrics"`
	Logging   LoggingConfig   `yaml:"logging"`
}

// InstanceConfig identifies this instance.
type InstanceConfig struct {
	ID string `yaml:"id"`
}

// StreamConfig holds endpoint selection and connection behaviour.
type StreamConfig struct {
	Service    string            `yaml:"service"`     // key resolved to endpoints
	DirectURLs map[string]string `yaml:"direct_urls"` // service key -> static url, skips discovery
	Transport  string            `yaml:"transport"`   // websocket or tcp
	Tier       *int              `yaml:"tier"`
	Locations  []string          `yaml:"locations"` // preferred locations, in order
	Protocols  []string          `yaml:"protocols"` // websocket subprotocols
	Path       string            `yaml:"path"`      // default websocket path

	AutoReconnect       *bool         `yaml:"auto_reconnect"`
	ServerMode          bool          `yaml:"server_mode"` // retry forever
	MaxAttempts         int           `yaml:"max_attempts"`
	ReconnectBaseDelay  time.Duration `yaml:"reconnect_base_delay"`
	ReconnectMaxDelay   time.Duration `yaml:"reconnect_max_delay"`
	ReconnectMultiplier float64       `yaml:"reconnect_multiplier"`
	LinearBackoff       bool          `yaml:"linear_backoff"`
	CursorDelay         time.Duration `yaml:"cursor_delay"` // extra wait per endpoint step

	LoginTimeout     time.Duration `yaml:"login_timeout"`
	QueueSize        int           `yaml:"queue_size"`
	HandshakeTimeout time.Duration `yaml:"handshake_timeout"`
	WriteTimeout     time.Duration `yaml:"write_timeout"`
	PingInterval     time.Duration `yaml:"ping_interval"`
	PingTimeout      time.Duration `yaml:"ping_timeout"`
	ReadLimit        int64         `yaml:"read_limit"`

	Proxy         ProxyConfig `yaml:"proxy"`
	SessionHeader string      `yaml:"session_header"`
}

// ProxyConfig selects an outbound proxy. Explicit values win over the
// environment.
type ProxyConfig struct {
	HTTP    string `yaml:"http"`
	HTTPS   string `yaml:"https"` // also used for tcp; must be socks5 there
	NoProxy string `yaml:"no_proxy"`
	FromEnv bool   `yaml:"from_env"`
}

// DiscoveryConfig holds HTTP service discovery settings.
type DiscoveryConfig struct {
	Root         string            `yaml:"root"`
	Paths        map[string]string `yaml:"paths"` // service key -> path under root
	Timeout      time.Duration     `yaml:"timeout"`
	MaxRetries   int               `yaml:"max_retries"`
	RetryBackoff time.Duration     `yaml:"retry_backoff"`
	CacheTTL     time.Duration     `yaml:"cache_ttl"`
	CacheSize    int               `yaml:"cache_size"`
}

// AuthConfig holds the login identity. KeyID and PrivateKeyPath are
// optional; without them the login is unsigned.
type AuthConfig struct {
	User           string `yaml:"user"`
	ApplicationID  string `yaml:"application_id"`
	Position       string `yaml:"position"`
	KeyID          string `yaml:"key_id"`
	PrivateKeyPath string `yaml:"private_key_path"` // Path to RSA private key PEM file
}

// DBConfig holds the TimescaleDB connection used by the recorder.
type DBConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	Name     string `yaml:"name"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	SSLMode  string `yaml:"ssl_mode"`
	MaxConns int    `yaml:"max_conns"`
	MinConns int    `yaml:"min_conns"`
}

// RecorderConfig holds batch writer settings.
type RecorderConfig struct {
	Enabled       bool          `yaml:"enabled"`
	Table         string        `yaml:"table"`
	BatchSize     int           `yaml:"batch_size"`
	FlushInterval time.Duration `yaml:"flush_interval"`
	BufferSize    int           `yaml:"buffer_size"`
}

// MetricsConfig holds Prometheus metrics settings.
type MetricsConfig struct {
	Enabled bool   `yaml:"enabled"`
	Port    int    `yaml:"port"`
	Path    string `yaml:"path"`
}

// LoggingConfig holds log output settings.
type LoggingConfig struct {
	Level      string `yaml:"level"`  // debug, info, warn, error
	Format     string `yaml:"format"` // text or json
	File       string `yaml:"file"`   // rotate into this file instead of stderr
	MaxSizeMB  int    `yaml:"max_size_mb"`
	MaxBackups int    `yaml:"max_backups"`
	MaxAgeDays int    `yaml:"max_age_days"`
	Compress   bool   `yaml:"compress"`
}

// Reconnect reports whether auto-reconnect is on. It defaults to true.
func (s StreamConfig) Reconnect() bool {
	return s.AutoReconnect == nil || *s.AutoReconnect
}
