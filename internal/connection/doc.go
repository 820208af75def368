// Package connection manages one long-lived streaming link.
//
// A StreamConnection:
//   - Dials the current candidate endpoint over websocket or raw TCP
//   - Sends the session login frame and waits for its acknowledgement
//   - Queues inbound frames for a dispatcher goroutine in arrival order
//   - Rotates through candidate endpoints with a capped backoff on failure
//   - Emits lifecycle events to registered listeners
//
// All state changes go through a fixed transition table. Call Dispose to
// release the connection's goroutines.
package connection
