package connection

import (
	"errors"
	"fmt"
)

// Errors
var (
	ErrNotConnected     = errors.New("not connected")
	ErrStaleConnection  = errors.New("connection stale (no ping)")
	ErrAlreadyClosed    = errors.New("already closed")
	ErrDisposed         = errors.New("connection disposed")
	ErrQueueFull        = errors.New("message queue full")
	ErrQueueClosed      = errors.New("message queue closed")
	ErrTooManyListeners = errors.New("too many listeners")
	ErrLoginTimeout     = errors.New("login acknowledgement timeout")
)

// ConfigError reports malformed or empty connection configuration.
type ConfigError struct {
	Field  string
	Reason string
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("invalid connection config: %s: %s", e.Field, e.Reason)
}

// ProtocolError reports a message that violates handshake sequencing. The
// connection closes the transport and runs the reconnect decision.
type ProtocolError struct {
	Reason string
	Err    error
}

func (e *ProtocolError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("protocol error: %s: %v", e.Reason, e.Err)
	}
	return "protocol error: " + e.Reason
}

func (e *ProtocolError) Unwrap() error {
	return e.Err
}

// SendError is returned when a frame cannot be handed to the transport.
// Sends are never retried automatically.
type SendError struct {
	State State
	Err   error
}

func (e *SendError) Error() string {
	return fmt.Sprintf("send in state %s: %v", e.State, e.Err)
}

func (e *SendError) Unwrap() error {
	return e.Err
}
