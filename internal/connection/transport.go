package connection

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/rickgao/streamfeed/internal/endpoint"
)

// Transport defaults.
const (
	DefaultHandshakeTimeout = 10 * time.Second
	DefaultWriteTimeout     = 5 * time.Second
	DefaultPingInterval     = 30 * time.Second
	DefaultPingTimeout      = 60 * time.Second
	DefaultReadLimit        = 4 << 20
)

// TransportOptions tunes the built-in transports.
type TransportOptions struct {
	HandshakeTimeout time.Duration
	WriteTimeout     time.Duration
	PingInterval     time.Duration // websocket only; 0 disables heartbeats
	PingTimeout      time.Duration // max time without ping/pong before the link is stale
	ReadLimit        int64         // largest accepted frame in bytes
	Logger           *slog.Logger
}

// DefaultTransportOptions returns sensible defaults.
func DefaultTransportOptions() TransportOptions {
	return TransportOptions{
		HandshakeTimeout: DefaultHandshakeTimeout,
		WriteTimeout:     DefaultWriteTimeout,
		PingInterval:     DefaultPingInterval,
		PingTimeout:      DefaultPingTimeout,
		ReadLimit:        DefaultReadLimit,
	}
}

func (o TransportOptions) withDefaults() TransportOptions {
	d := DefaultTransportOptions()
	if o.HandshakeTimeout <= 0 {
		o.HandshakeTimeout = d.HandshakeTimeout
	}
	if o.WriteTimeout <= 0 {
		o.WriteTimeout = d.WriteTimeout
	}
	if o.PingInterval > 0 && o.PingTimeout <= 0 {
		o.PingTimeout = d.PingTimeout
	}
	if o.ReadLimit <= 0 {
		o.ReadLimit = d.ReadLimit
	}
	if o.Logger == nil {
		o.Logger = slog.Default()
	}
	return o
}

// TransportFactory creates a fresh, unopened transport for each connect
// cycle.
type TransportFactory func(kind endpoint.Transport) (Transport, error)

// DefaultTransportFactory builds websocket and TCP transports.
func DefaultTransportFactory(opts TransportOptions) TransportFactory {
	opts = opts.withDefaults()
	return func(kind endpoint.Transport) (Transport, error) {
		switch kind {
		case endpoint.TransportWebSocket, "":
			return NewWebSocketTransport(opts), nil
		case endpoint.TransportTCP:
			return NewTCPTransport(opts), nil
		}
		return nil, fmt.Errorf("unsupported transport %q", kind)
	}
}
