package config

import "time"

// Default values for optional configuration fields.
const (
	DefaultTransport           = "websocket"
	DefaultWebSocketPath       = "WebSocket"
	DefaultMaxAttempts         = 5
	DefaultReconnectBaseDelay  = 1 * time.Second
	DefaultReconnectMaxDelay   = 60 * time.Second
	DefaultReconnectMultiplier = 2.0
	DefaultCursorDelay         = 500 * time.Millisecond
	DefaultLoginTimeout        = 10 * time.Second
	DefaultQueueSize           = 100000
	DefaultHandshakeTimeout    = 10 * time.Second
	DefaultWriteTimeout        = 5 * time.Second
	DefaultPingInterval        = 30 * time.Second
	DefaultPingTimeout         = 60 * time.Second
	DefaultReadLimit           = 4 << 20
	DefaultDiscoveryTimeout    = 30 * time.Second
	DefaultDiscoveryRetries    = 3
	DefaultDiscoveryBackoff    = 500 * time.Millisecond
	DefaultDiscoveryCacheTTL   = 5 * time.Minute
	DefaultDiscoveryCacheSize  = 64
	DefaultDBPort              = 5432
	DefaultDBSSLMode           = "prefer"
	DefaultMaxConns            = 10
	DefaultMinConns            = 2
	DefaultRecorderTable       = "stream_messages"
	DefaultBatchSize           = 1000
	DefaultFlushInterval       = 1 * time.Second
	DefaultBufferSize          = 10000
	DefaultMetricsPort         = 9090
	DefaultMetricsPath         = "/metrics"
	DefaultLogLevel            = "info"
	DefaultLogFormat           = "text"
	DefaultLogMaxSizeMB        = 100
	DefaultLogMaxBackups       = 5
	DefaultLogMaxAgeDays       = 28
)

func (c *Config) applyDefaults() {
	// Stream defaults
	s := &c.Stream
	if s.Transport == "" {
		s.Transport = DefaultTransport
	}
	if s.Path == "" {
		s.Path = DefaultWebSocketPath
	}
	if s.MaxAttempts == 0 {
		s.MaxAttempts = DefaultMaxAttempts
	}
	if s.ReconnectBaseDelay == 0 {
		s.ReconnectBaseDelay = DefaultReconnectBaseDelay
	}
	if s.ReconnectMaxDelay == 0 {
		s.ReconnectMaxDelay = DefaultReconnectMaxDelay
	}
	if s.ReconnectMultiplier == 0 {
		s.ReconnectMultiplier = DefaultReconnectMultiplier
	}
	if s.CursorDelay == 0 {
		s.CursorDelay = DefaultCursorDelay
	}
	if s.LoginTimeout == 0 {
		s.LoginTimeout = DefaultLoginTimeout
	}
	if s.QueueSize == 0 {
		s.QueueSize = DefaultQueueSize
	}
	if s.HandshakeTimeout == 0 {
		s.HandshakeTimeout = DefaultHandshakeTimeout
	}
	if s.WriteTimeout == 0 {
		s.WriteTimeout = DefaultWriteTimeout
	}
	if s.PingInterval == 0 {
		s.PingInterval = DefaultPingInterval
	}
	if s.PingTimeout == 0 {
		s.PingTimeout = DefaultPingTimeout
	}
	if s.ReadLimit == 0 {
		s.ReadLimit = DefaultReadLimit
	}

	// Discovery defaults
	d := &c.Discovery
	if d.Timeout == 0 {
		d.Timeout = DefaultDiscoveryTimeout
	}
	if d.MaxRetries == 0 {
		d.MaxRetries = DefaultDiscoveryRetries
	}
	if d.RetryBackoff == 0 {
		d.RetryBackoff = DefaultDiscoveryBackoff
	}
	if d.CacheTTL == 0 {
		d.CacheTTL = DefaultDiscoveryCacheTTL
	}
	if d.CacheSize == 0 {
		d.CacheSize = DefaultDiscoveryCacheSize
	}

	// Database defaults
	applyDBDefaults(&c.Database)

	// Recorder defaults
	if c.Recorder.Table == "" {
		c.Recorder.Table = DefaultRecorderTable
	}
	if c.Recorder.BatchSize == 0 {
		c.Recorder.BatchSize = DefaultBatchSize
	}
	if c.Recorder.FlushInterval == 0 {
		c.Recorder.FlushInterval = DefaultFlushInterval
	}
	if c.Recorder.BufferSize == 0 {
		c.Recorder.BufferSize = DefaultBufferSize
	}

	// Metrics defaults
	if c.Metrics.Port == 0 {
		c.Metrics.Port = DefaultMetricsPort
	}
	if c.Metrics.Path == "" {
		c.Metrics.Path = DefaultMetricsPath
	}

	// Logging defaults
	if c.Logging.Level == "" {
		c.Logging.Level = DefaultLogLevel
	}
	if c.Logging.Format == "" {
		c.Logging.Format = DefaultLogFormat
	}
	if c.Logging.MaxSizeMB == 0 {
		c.Logging.MaxSizeMB = DefaultLogMaxSizeMB
	}
	if c.Logging.MaxBackups == 0 {
		c.Logging.MaxBackups = DefaultLogMaxBackups
	}
	if c.Logging.MaxAgeDays == 0 {
		c.Logging.MaxAgeDays = DefaultLogMaxAgeDays
	}
}

func applyDBDefaults(db *DBConfig) {
	if db.Port == 0 {
		db.Port = DefaultDBPort
	}
	if db.SSLMode == "" {
		db.SSLMode = DefaultDBSSLMode
	}
	if db.MaxConns == 0 {
		db.MaxConns = DefaultMaxConns
	}
	if db.MinConns == 0 {
		db.MinConns = DefaultMinConns
	}
}
