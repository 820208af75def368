package connection

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"net"
	"sync"
	"time"
)

// TCPTransport is a Transport over a raw TCP stream carrying
// newline-delimited frames.
type TCPTransport struct {
	opts   TransportOptions
	logger *slog.Logger

	conn    net.Conn
	handler Handler

	writeMu sync.Mutex

	mu      sync.RWMutex
	open    bool
	closing bool

	closeOnce sync.Once
}

// NewTCPTransport creates an unopened TCP transport.
func NewTCPTransport(opts TransportOptions) *TCPTransport {
	opts = opts.withDefaults()
	return &TCPTransport{
		opts:   opts,
		logger: opts.Logger,
	}
}

// Open dials target.URL (host:port), through a socks5 proxy when the
// target's proxy settings select one.
func (t *TCPTransport) Open(ctx context.Context, target Target, h Handler) error {
	t.mu.Lock()
	if t.closing || t.conn != nil {
		t.mu.Unlock()
		return ErrAlreadyClosed
	}
	t.mu.Unlock()

	forward := &net.Dialer{Timeout: t.opts.HandshakeTimeout}
	dialer, err := target.Proxy.TCPDialer(target.URL, forward)
	if err != nil {
		return err
	}

	dialCtx, cancel := context.WithTimeout(ctx, t.opts.HandshakeTimeout)
	defer cancel()

	conn, err := dialer.DialContext(dialCtx, "tcp", target.URL)
	if err != nil {
		return fmt.Errorf("dial %s: %w", target.URL, err)
	}

	t.mu.Lock()
	if t.closing {
		t.mu.Unlock()
		conn.Close()
		return ErrAlreadyClosed
	}
	t.conn = conn
	t.handler = h
	t.open = true
	t.mu.Unlock()

	go t.readLoop()

	t.logger.Debug("tcp connected", "addr", target.URL, "proxy", target.Proxy)

	return nil
}

// Send writes data followed by a newline.
func (t *TCPTransport) Send(data []byte) error {
	t.mu.RLock()
	conn := t.conn
	open := t.open
	t.mu.RUnlock()
	if !open {
		return ErrNotConnected
	}

	frame := make([]byte, 0, len(data)+1)
	frame = append(frame, data...)
	frame = append(frame, '\n')

	t.writeMu.Lock()
	defer t.writeMu.Unlock()

	conn.SetWriteDeadline(time.Now().Add(t.opts.WriteTimeout))
	_, err := conn.Write(frame)
	return err
}

// Close closes the socket. The read loop then reports HandleClose(nil).
func (t *TCPTransport) Close() error {
	t.mu.Lock()
	if t.closing {
		t.mu.Unlock()
		return nil
	}
	t.closing = true
	t.open = false
	conn := t.conn
	t.mu.Unlock()

	if conn == nil {
		return nil
	}
	return conn.Close()
}

func (t *TCPTransport) finish(err error) {
	t.closeOnce.Do(func() {
		t.mu.Lock()
		t.open = false
		if t.closing {
			err = nil
		}
		t.closing = true
		t.mu.Unlock()

		t.conn.Close()
		t.handler.HandleClose(err)
	})
}

func (t *TCPTransport) readLoop() {
	scanner := bufio.NewScanner(t.conn)
	scanner.Buffer(make([]byte, 0, 64*1024), int(t.opts.ReadLimit))

	for scanner.Scan() {
		receivedAt := time.Now()
		line := bytes.TrimSuffix(scanner.Bytes(), []byte{'\r'})
		if len(line) == 0 {
			continue
		}
		// Scanner reuses its buffer
		data := make([]byte, len(line))
		copy(data, line)
		t.handler.HandleMessage(data, receivedAt)
	}

	err := scanner.Err()
	if err == nil {
		err = io.EOF
	}
	t.finish(err)
}
