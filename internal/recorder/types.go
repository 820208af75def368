package recorder

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// Config contains configuration for the recorder.
type Config struct {
	// Table receives the rows. It may be schema qualified.
	Table string

	// BatchSize is the number of rows to accumulate before flushing.
	BatchSize int

	// FlushInterval is the maximum time between flushes.
	FlushInterval time.Duration

	// BufferSize bounds messages waiting to be batched.
	BufferSize int
}

// DefaultConfig returns sensible defaults.
func DefaultConfig() Config {
	return Config{
		Table:         "stream_messages",
		BatchSize:     1000,
		FlushInterval: time.Second,
		BufferSize:    10000,
	}
}

// DB is the subset of *pgxpool.Pool used by the recorder.
type DB interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	SendBatch(ctx context.Context, b *pgx.Batch) pgx.BatchResults
}

// Source reports which connection and endpoint a message arrived on.
type Source interface {
	ID() string
	Endpoint() string
}

// messageRow represents a row in the messages table.
type messageRow struct {
	ConnID     string
	Endpoint   string
	Seq        int64
	ReceivedAt int64 // Microseconds
	Payload    []byte
}

// Stats holds counters for a recorder.
type Stats struct {
	Inserts   int64
	Conflicts int64
	Errors    int64
	Flushes   int64
	Dropped   int64
}
