package connection

import (
	"context"
	"net/http"
	"time"

	"github.com/rickgao/streamfeed/internal/endpoint"
)

// Message is one inbound frame accepted after the login handshake.
type Message struct {
	Data       []byte    // Raw frame bytes
	ReceivedAt time.Time // Local timestamp when the transport read returned
	Seq        uint64    // Per-connection arrival counter
}

// MessageHandler consumes dispatched messages in arrival order. Errors are
// logged and counted; they never stop dispatch.
type MessageHandler func(msg Message) error

// Session supplies the opaque login and close payloads and recognises the
// login acknowledgement.
type Session interface {
	// LoginMessage is sent as the first frame after the transport opens.
	LoginMessage() ([]byte, error)

	// CloseMessage is sent best-effort before teardown. A nil payload sends
	// nothing.
	CloseMessage() ([]byte, error)

	// LoginAck inspects a frame received before acknowledgement. It returns
	// true when the frame acknowledges the login and an error when the
	// frame rejects it.
	LoginAck(frame []byte) (bool, error)
}

// RequestTracker is implemented by sessions that tag each login frame
// with a request id. The id of the last login is logged once it is sent.
type RequestTracker interface {
	RequestID() string
}

// Target is everything a transport needs to dial one endpoint.
type Target struct {
	URL       string
	Endpoint  endpoint.Info
	Header    http.Header
	Protocols []string
	Proxy     *ProxySettings
}

// Handler receives transport callbacks. Both methods run on the
// transport's read goroutine.
type Handler interface {
	HandleMessage(data []byte, receivedAt time.Time)

	// HandleClose is called exactly once per successfully opened
	// transport. err is nil when the close was requested locally.
	HandleClose(err error)
}

// Transport is a single physical connection.
type Transport interface {
	// Open dials target and starts delivering frames to h.
	Open(ctx context.Context, target Target, h Handler) error

	// Send writes one frame.
	Send(data []byte) error

	// Close tears the connection down. It is safe to call more than once.
	Close() error
}

// Stats is a snapshot of connection counters.
type Stats struct {
	State          State
	Endpoint       string
	Received       int64
	Dropped        int64
	Reconnects     int64
	ProtocolErrors int64
	HandlerErrors  int64
	Queue          QueueStats
}
