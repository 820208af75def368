package config

import (
	"errors"
	"fmt"
	"regexp"

	"github.com/rickgao/streamfeed/internal/endpoint"
)

var tableName = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*(\.[A-Za-z_][A-Za-z0-9_]*)?$`)

// Validate checks that all required fields are set and values are valid.
func (c *Config) Validate() error {
	if c.Instance.ID == "" {
		return errors.New("instance.id is required")
	}

	if err := c.Stream.validate(c.Discovery); err != nil {
		return err
	}

	if c.Discovery.MaxRetries < 0 {
		return errors.New("discovery.max_retries must be >= 0")
	}
	if c.Discovery.CacheSize < 0 {
		return errors.New("discovery.cache_size must be >= 0")
	}

	if c.Auth.User == "" {
		return errors.New("auth.user is required")
	}
	if c.Auth.KeyID != "" && c.Auth.PrivateKeyPath == "" {
		return errors.New("auth.private_key_path is required when auth.key_id is set")
	}

	if c.Recorder.Enabled {
		if err := c.Database.validate("database"); err != nil {
			return err
		}
		if !tableName.MatchString(c.Recorder.Table) {
			return fmt.Errorf("recorder.table %q is not a valid table name", c.Recorder.Table)
		}
		if c.Recorder.BatchSize < 1 {
			return errors.New("recorder.batch_size must be >= 1")
		}
		if c.Recorder.BufferSize < 1 {
			return errors.New("recorder.buffer_size must be >= 1")
		}
	}

	if c.Metrics.Port < 1 || c.Metrics.Port > 65535 {
		return fmt.Errorf("metrics.port must be between 1 and 65535, got %d", c.Metrics.Port)
	}

	switch c.Logging.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("logging.level must be one of debug, info, warn, error, got %q", c.Logging.Level)
	}
	switch c.Logging.Format {
	case "text", "json":
	default:
		return fmt.Errorf("logging.format must be text or json, got %q", c.Logging.Format)
	}

	return nil
}

func (s *StreamConfig) validate(d DiscoveryConfig) error {
	if s.Service == "" {
		return errors.New("stream.service is required")
	}
	if _, err := endpoint.ParseTransport(s.Transport); err != nil {
		return fmt.Errorf("stream.transport: %w", err)
	}
	if s.DirectURLs[s.Service] == "" && d.Root == "" {
		return fmt.Errorf("stream.direct_urls.%s or discovery.root is required", s.Service)
	}
	if s.DirectURLs[s.Service] == "" && d.Paths[s.Service] == "" {
		return fmt.Errorf("discovery.paths.%s is required when stream.direct_urls.%s is not set", s.Service, s.Service)
	}
	if s.Tier != nil && *s.Tier < 0 {
		return fmt.Errorf("stream.tier must be >= 0, got %d", *s.Tier)
	}
	if !s.ServerMode && s.MaxAttempts < 1 {
		return errors.New("stream.max_attempts must be >= 1")
	}
	if s.ReconnectMaxDelay < s.ReconnectBaseDelay {
		return fmt.Errorf("stream.reconnect_max_delay (%s) cannot be less than reconnect_base_delay (%s)",
			s.ReconnectMaxDelay, s.ReconnectBaseDelay)
	}
	if s.ReconnectMultiplier < 1 {
		return errors.New("stream.reconnect_multiplier must be >= 1")
	}
	if s.QueueSize < 1 {
		return errors.New("stream.queue_size must be >= 1")
	}
	if s.LoginTimeout <= 0 {
		return errors.New("stream.login_timeout must be > 0")
	}
	if s.PingInterval > 0 && s.PingTimeout < s.PingInterval {
		return fmt.Errorf("stream.ping_timeout (%s) cannot be less than ping_interval (%s)",
			s.PingTimeout, s.PingInterval)
	}
	return nil
}

func (db *DBConfig) validate(prefix string) error {
	if db.Host == "" {
		return fmt.Errorf("%s.host is required", prefix)
	}
	if db.Name == "" {
		return fmt.Errorf("%s.name is required", prefix)
	}
	if db.User == "" {
		return fmt.Errorf("%s.user is required", prefix)
	}
	if db.Password == "" {
		return fmt.Errorf("%s.password is required", prefix)
	}
	if db.MaxConns < 1 {
		return fmt.Errorf("%s.max_conns must be >= 1", prefix)
	}
	if db.MinConns < 0 {
		return fmt.Errorf("%s.min_conns must be >= 0", prefix)
	}
	if db.MinConns > db.MaxConns {
		return fmt.Errorf("%s.min_conns (%d) cannot exceed max_conns (%d)", prefix, db.MinConns, db.MaxConns)
	}
	return nil
}
