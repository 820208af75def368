package connection

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

// WebSocketTransport is a Transport over a gorilla websocket connection.
type WebSocketTransport struct {
	opts   TransportOptions
	logger *slog.Logger

	conn    *websocket.Conn
	handler Handler

	// Data frames are serialized; control frames may be written concurrently.
	writeMu sync.Mutex

	// State
	mu         sync.RWMutex
	open       bool
	closing    bool
	lastPingAt time.Time

	done      chan struct{}
	closeOnce sync.Once
}

// NewWebSocketTransport creates an unopened websocket transport.
func NewWebSocketTransport(opts TransportOptions) *WebSocketTransport {
	opts = opts.withDefaults()
	return &WebSocketTransport{
		opts:   opts,
		logger: opts.Logger,
		done:   make(chan struct{}),
	}
}

// Open dials the target and starts the read and heartbeat loops.
func (t *WebSocketTransport) Open(ctx context.Context, target Target, h Handler) error {
	t.mu.Lock()
	if t.closing || t.conn != nil {
		t.mu.Unlock()
		return ErrAlreadyClosed
	}
	t.mu.Unlock()

	dialer := websocket.Dialer{
		HandshakeTimeout: t.opts.HandshakeTimeout,
		Subprotocols:     target.Protocols,
		Proxy:            target.Proxy.HTTPProxyFunc(),
	}

	conn, _, err := dialer.DialContext(ctx, target.URL, target.Header)
	if err != nil {
		return err
	}
	conn.SetReadLimit(t.opts.ReadLimit)

	t.mu.Lock()
	if t.closing {
		t.mu.Unlock()
		conn.Close()
		return ErrAlreadyClosed
	}
	t.conn = conn
	t.handler = h
	t.open = true
	t.lastPingAt = time.Now()
	t.mu.Unlock()

	// Server sends ping, we respond with pong
	conn.SetPingHandler(func(data string) error {
		t.touch()
		return conn.WriteControl(
			websocket.PongMessage,
			[]byte(data),
			time.Now().Add(time.Second),
		)
	})

	// Server responds to our ping
	conn.SetPongHandler(func(string) error {
		t.touch()
		return nil
	})

	go t.readLoop()
	if t.opts.PingInterval > 0 {
		go t.heartbeatLoop()
	}

	t.logger.Debug("websocket connected", "url", target.URL, "subprotocol", conn.Subprotocol())

	return nil
}

// Send writes one text frame.
func (t *WebSocketTransport) Send(data []byte) error {
	t.mu.RLock()
	conn := t.conn
	open := t.open
	t.mu.RUnlock()
	if !open {
		return ErrNotConnected
	}

	t.writeMu.Lock()
	defer t.writeMu.Unlock()

	conn.SetWriteDeadline(time.Now().Add(t.opts.WriteTimeout))
	return conn.WriteMessage(websocket.TextMessage, data)
}

// Close sends a close frame and closes the socket. The read loop then
// reports HandleClose(nil).
func (t *WebSocketTransport) Close() error {
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

	// Send close message
	conn.WriteControl(
		websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
		time.Now().Add(time.Second),
	)

	return conn.Close()
}

func (t *WebSocketTransport) touch() {
	t.mu.Lock()
	t.lastPingAt = time.Now()
	t.mu.Unlock()
}

// finish reports the close to the handler once.
func (t *WebSocketTransport) finish(err error) {
	t.closeOnce.Do(func() {
		t.mu.Lock()
		t.open = false
		if t.closing {
			err = nil
		}
		t.closing = true
		conn := t.conn
		t.mu.Unlock()

		close(t.done)
		conn.Close()
		t.handler.HandleClose(err)
	})
}

// readLoop reads frames and hands them to the handler.
func (t *WebSocketTransport) readLoop() {
	for {
		_, data, err := t.conn.ReadMessage()
		receivedAt := time.Now() // Capture timestamp immediately

		if err != nil {
			t.finish(err)
			return
		}

		t.handler.HandleMessage(data, receivedAt)
	}
}

// heartbeatLoop pings the server and closes a stale connection.
func (t *WebSocketTransport) heartbeatLoop() {
	ticker := time.NewTicker(t.opts.PingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-t.done:
			return
		case <-ticker.C:
			deadline := time.Now().Add(t.opts.WriteTimeout)
			if err := t.conn.WriteControl(websocket.PingMessage, []byte("keepalive"), deadline); err != nil {
				t.logger.Debug("failed to send ping", "error", err)
			}

			t.mu.RLock()
			lastPing := t.lastPingAt
			t.mu.RUnlock()

			if time.Since(lastPing) > t.opts.PingTimeout {
				t.logger.Warn("no ping received, connection stale",
					"last_ping", lastPing,
					"timeout", t.opts.PingTimeout,
				)
				t.finish(ErrStaleConnection)
				return
			}
		}
	}
}
