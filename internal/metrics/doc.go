// Package metrics provides Prometheus metrics for monitoring.
//
// Key metrics:
//   - Stream connection state, transitions and reconnects
//   - Received, dropped and failed messages
//   - Dispatch queue depth
//   - Discovery request outcomes
//   - Recorder flushes and insert errors
package metrics
