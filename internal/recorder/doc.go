// Package recorder persists dispatched stream messages into TimescaleDB.
//
// A Recorder is installed as the connection's message handler. Messages are
// buffered, accumulated into batches and written with pgx batches. Inserts
// are append-only and keyed by (conn_id, seq), so replays of a batch are
// ignored.
package recorder
