package connection

import (
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/rickgao/streamfeed/internal/endpoint"
)

// DefaultWebSocketPath is appended to websocket endpoints that carry no path.
const DefaultWebSocketPath = "WebSocket"

// DefaultBaseDelay is the per-cursor-step reconnect delay.
const DefaultBaseDelay = 500 * time.Millisecond

// Config is the connection configuration: an ordered list of candidate
// endpoints with a round-robin cursor. The cursor is only moved by the
// connection's supervisor.
type Config struct {
	endpoints   []endpoint.Info
	protocols   []string
	transport   endpoint.Transport
	header      http.Header
	proxy       *ProxySettings
	baseDelay   time.Duration
	defaultPath string

	mu     sync.Mutex
	cursor int
}

// ConfigOption configures a Config.
type ConfigOption func(*Config)

// WithProtocols sets the websocket subprotocols offered on dial.
func WithProtocols(protocols ...string) ConfigOption {
	return func(c *Config) {
		c.protocols = append([]string(nil), protocols...)
	}
}

// WithHeader sets extra handshake headers.
func WithHeader(h http.Header) ConfigOption {
	return func(c *Config) {
		c.header = h.Clone()
	}
}

// WithProxy sets the proxy used for every dial.
func WithProxy(p *ProxySettings) ConfigOption {
	return func(c *Config) {
		c.proxy = p
	}
}

// WithBaseDelay sets the per-cursor-step reconnect delay.
func WithBaseDelay(d time.Duration) ConfigOption {
	return func(c *Config) {
		c.baseDelay = d
	}
}

// WithDefaultPath overrides DefaultWebSocketPath.
func WithDefaultPath(path string) ConfigOption {
	return func(c *Config) {
		c.defaultPath = path
	}
}

// NewConfig validates endpoints and returns a Config positioned at the
// first endpoint. All endpoints must share one transport.
func NewConfig(endpoints []endpoint.Info, opts ...ConfigOption) (*Config, error) {
	if len(endpoints) == 0 {
		return nil, &ConfigError{Field: "endpoints", Reason: "at least one endpoint is required"}
	}

	c := &Config{
		endpoints:   append([]endpoint.Info(nil), endpoints...),
		transport:   endpoints[0].Transport,
		header:      http.Header{},
		baseDelay:   DefaultBaseDelay,
		defaultPath: DefaultWebSocketPath,
	}
	if c.transport == "" {
		c.transport = endpoint.TransportWebSocket
	}

	for _, opt := range opts {
		opt(c)
	}

	for i, ep := range c.endpoints {
		field := fmt.Sprintf("endpoints[%d]", i)
		if ep.Host == "" {
			return nil, &ConfigError{Field: field + ".host", Reason: "is required"}
		}
		if ep.Port <= 0 || ep.Port > 65535 {
			return nil, &ConfigError{Field: field + ".port", Reason: fmt.Sprintf("%d out of range", ep.Port)}
		}
		if ep.Transport != "" && ep.Transport != c.transport {
			return nil, &ConfigError{
				Field:  field + ".transport",
				Reason: fmt.Sprintf("%s does not match %s", ep.Transport, c.transport),
			}
		}
	}
	if c.baseDelay < 0 {
		return nil, &ConfigError{Field: "base_delay", Reason: "must not be negative"}
	}

	return c, nil
}

// Current returns the endpoint under the cursor.
func (c *Config) Current() endpoint.Info {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.endpoints[c.cursor]
}

// URL returns the dial address of the current endpoint.
func (c *Config) URL() string {
	return c.urlFor(c.Current())
}

func (c *Config) urlFor(ep endpoint.Info) string {
	if c.transport == endpoint.TransportTCP {
		return ep.Address()
	}
	scheme := ep.Scheme
	if scheme == "" {
		scheme = endpoint.SchemeSecure
		if ep.Port != 443 {
			scheme = endpoint.SchemePlain
		}
	}
	path := ep.Path
	if path == "" {
		path = c.defaultPath
	}
	return scheme + "://" + ep.Address() + "/" + path
}

// Advance moves the cursor to the next endpoint, wrapping around.
func (c *Config) Advance() {
	c.mu.Lock()
	c.cursor = (c.cursor + 1) % len(c.endpoints)
	c.mu.Unlock()
}

// Reset moves the cursor back to the first endpoint.
func (c *Config) Reset() {
	c.mu.Lock()
	c.cursor = 0
	c.mu.Unlock()
}

// Cursor returns the current cursor position.
func (c *Config) Cursor() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.cursor
}

// ReconnectDelay grows with the cursor so that later candidates in a round
// wait longer.
func (c *Config) ReconnectDelay() time.Duration {
	return time.Duration(c.Cursor()) * c.baseDelay
}

// Len returns the number of candidate endpoints.
func (c *Config) Len() int { return len(c.endpoints) }

// Endpoints returns a copy of the candidate list.
func (c *Config) Endpoints() []endpoint.Info {
	return append([]endpoint.Info(nil), c.endpoints...)
}

// Protocols returns the websocket subprotocols.
func (c *Config) Protocols() []string {
	return append([]string(nil), c.protocols...)
}

// Transport returns the transport shared by all endpoints.
func (c *Config) Transport() endpoint.Transport { return c.transport }

// Header returns a copy of the handshake headers.
func (c *Config) Header() http.Header { return c.header.Clone() }

// Proxy returns the proxy settings, or nil for a direct dial.
func (c *Config) Proxy() *ProxySettings { return c.proxy }

// Target bundles everything a transport needs to dial the current endpoint.
func (c *Config) Target() Target {
	ep := c.Current()
	return Target{
		URL:       c.urlFor(ep),
		Endpoint:  ep,
		Header:    c.Header(),
		Protocols: c.Protocols(),
		Proxy:     c.proxy,
	}
}
