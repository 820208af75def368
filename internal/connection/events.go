package connection

import (
	"fmt"
	"log/slog"
	"sync"
)

// Event is a lifecycle notification emitted by a StreamConnection.
type Event string

const (
	EventConnecting    Event = "CONNECTING"
	EventConnected     Event = "CONNECTED"
	EventReconnected   Event = "RECONNECTED"
	EventDisconnecting Event = "DISCONNECTING"
	EventDisconnected  Event = "DISCONNECTED"
	EventDisposed      Event = "DISPOSED"
)

// DefaultMaxListeners bounds listeners per event.
const DefaultMaxListeners = 16

// Listener receives lifecycle events. It runs on the goroutine that caused
// the transition and must not block for long.
type Listener func(event Event, conn *StreamConnection)

// ListenerID identifies a registered listener for removal.
type ListenerID uint64

type listenerEntry struct {
	id ListenerID
	fn Listener
}

// Emitter is a typed, synchronous broadcaster owned by one connection.
type Emitter struct {
	logger       *slog.Logger
	maxListeners int

	mu        sync.Mutex
	nextID    ListenerID
	listeners map[Event][]listenerEntry
}

// NewEmitter creates an Emitter allowing at most maxListeners per event.
func NewEmitter(maxListeners int, logger *slog.Logger) *Emitter {
	if logger == nil {
		logger = slog.Default()
	}
	if maxListeners <= 0 {
		maxListeners = DefaultMaxListeners
	}
	return &Emitter{
		logger:       logger,
		maxListeners: maxListeners,
		listeners:    make(map[Event][]listenerEntry),
	}
}

// On registers fn for event. Exceeding the listener bound fails with
// ErrTooManyListeners.
func (e *Emitter) On(event Event, fn Listener) (ListenerID, error) {
	if fn == nil {
		return 0, fmt.Errorf("listener for %s is nil", event)
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	if len(e.listeners[event]) >= e.maxListeners {
		return 0, fmt.Errorf("%s: %w (max %d)", event, ErrTooManyListeners, e.maxListeners)
	}

	e.nextID++
	id := e.nextID
	e.listeners[event] = append(e.listeners[event], listenerEntry{id: id, fn: fn})
	return id, nil
}

// RemoveListener unregisters a listener. It reports whether one was removed.
func (e *Emitter) RemoveListener(event Event, id ListenerID) bool {
	e.mu.Lock()
	defer e.mu.Unlock()

	entries := e.listeners[event]
	for i, entry := range entries {
		if entry.id == id {
			e.listeners[event] = append(entries[:i:i], entries[i+1:]...)
			return true
		}
	}
	return false
}

// Emit calls every listener for event in registration order. A panicking
// listener is logged and skipped.
func (e *Emitter) Emit(event Event, conn *StreamConnection) {
	e.mu.Lock()
	entries := append([]listenerEntry(nil), e.listeners[event]...)
	e.mu.Unlock()

	for _, entry := range entries {
		e.call(event, conn, entry)
	}
}

func (e *Emitter) call(event Event, conn *StreamConnection, entry listenerEntry) {
	defer func() {
		if r := recover(); r != nil {
			e.logger.Error("event listener panicked",
				"event", event,
				"listener", entry.id,
				"panic", r,
			)
		}
	}()
	entry.fn(event, conn)
}
