// Package database opens the PostgreSQL/TimescaleDB pool used by the
// recorder.
package database
