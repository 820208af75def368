package recorder

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/jackc/pgx/v5"
	"go.uber.org/multierr"

	"github.com/rickgao/streamfeed/internal/connection"
)

// ErrStopTimeout is returned by Stop when goroutines outlive its context.
var ErrStopTimeout = errors.New("recorder stop timed out")

// Recorder consumes dispatched messages and writes them in batches.
type Recorder struct {
	cfg    Config
	logger *slog.Logger
	table  string // sanitized identifier

	// Input from the connection dispatcher
	input *connection.Queue[messageRow]

	// Database
	db DB

	// Batching
	batch       []messageRow
	batchMu     sync.Mutex
	flushTicker *time.Ticker

	// Lifecycle
	ctx    context.Context
	cancel context.CancelFunc
	quit   chan struct{}
	wg     sync.WaitGroup

	// Metrics
	stats Stats
}

// New creates a Recorder. Zero config fields take DefaultConfig values.
func New(cfg Config, db DB, logger *slog.Logger) *Recorder {
	if logger == nil {
		logger = slog.Default()
	}
	d := DefaultConfig()
	if cfg.Table == "" {
		cfg.Table = d.Table
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = d.BatchSize
	}
	if cfg.FlushInterval <= 0 {
		cfg.FlushInterval = d.FlushInterval
	}
	if cfg.BufferSize <= 0 {
		cfg.BufferSize = d.BufferSize
	}
	return &Recorder{
		cfg:    cfg,
		db:     db,
		logger: logger,
		table:  pgx.Identifier(strings.Split(cfg.Table, ".")).Sanitize(),
		input:  connection.NewQueue[messageRow](cfg.BufferSize),
		batch:  make([]messageRow, 0, cfg.BatchSize),
		quit:   make(chan struct{}),
	}
}

// EnsureSchema creates the messages table when it does not exist.
func (r *Recorder) EnsureSchema(ctx context.Context) error {
	_, err := r.db.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS `+r.table+` (
			conn_id     TEXT   NOT NULL,
			endpoint    TEXT   NOT NULL,
			seq         BIGINT NOT NULL,
			received_at BIGINT NOT NULL,
			payload     BYTEA  NOT NULL,
			PRIMARY KEY (conn_id, seq)
		)
	`)
	if err != nil {
		return fmt.Errorf("create table %s: %w", r.table, err)
	}
	return nil
}

// Handler returns a connection.MessageHandler that records messages
// from src. Messages arriving while the buffer is full are dropped and
// counted.
func (r *Recorder) Handler(src Source) connection.MessageHandler {
	return func(msg connection.Message) error {
		err := r.input.Offer(r.transform(src.ID(), src.Endpoint(), msg))
		if errors.Is(err, connection.ErrQueueFull) {
			r.batchMu.Lock()
			r.stats.Dropped++
			r.batchMu.Unlock()
			return nil
		}
		return err
	}
}

// Start begins consuming messages and writing to the database. Writes
// keep the values of ctx but not its cancellation; only Stop ends them.
func (r *Recorder) Start(ctx context.Context) error {
	r.ctx, r.cancel = context.WithCancel(context.WithoutCancel(ctx))
	r.flushTicker = time.NewTicker(r.cfg.FlushInterval)

	// Consumer goroutine
	r.wg.Add(1)
	go r.consumeLoop()

	// Flush ticker goroutine
	r.wg.Add(1)
	go r.flushLoop()

	r.logger.Info("recorder started",
		"table", r.cfg.Table,
		"batch_size", r.cfg.BatchSize,
		"flush_interval", r.cfg.FlushInterval,
	)
	return nil
}

// Stop drains buffered messages and writes the final batch. It must be
// called at most once.
func (r *Recorder) Stop(ctx context.Context) error {
	r.logger.Info("stopping recorder")

	// Closing the input lets consumeLoop drain what is buffered.
	r.input.Close()
	close(r.quit)

	if r.flushTicker != nil {
		r.flushTicker.Stop()
	}

	// Wait for goroutines
	done := make(chan struct{})
	go func() {
		r.wg.Wait()
		close(done)
	}()

	var err error
	select {
	case <-done:
		r.logger.Info("recorder stopped")
	case <-ctx.Done():
		r.logger.Warn("recorder stop timed out")
		err = ErrStopTimeout
	}

	if r.cancel != nil {
		r.cancel()
	}

	// Final flush
	return multierr.Append(err, r.flush(ctx))
}

// Stats returns current metrics.
func (r *Recorder) Stats() Stats {
	r.batchMu.Lock()
	defer r.batchMu.Unlock()
	return r.stats
}

// consumeLoop reads from the input queue until it is closed and drained.
func (r *Recorder) consumeLoop() {
	defer r.wg.Done()

	for {
		row, ok := r.input.Receive()
		if !ok {
			return
		}
		r.handleRow(row)
	}
}

// flushLoop periodically flushes the batch.
func (r *Recorder) flushLoop() {
	defer r.wg.Done()

	for {
		select {
		case <-r.quit:
			return
		case <-r.ctx.Done():
			return
		case <-r.flushTicker.C:
			if err := r.flush(r.ctx); err != nil {
				r.logger.Error("periodic flush failed", "error", err)
			}
		}
	}
}

// handleRow adds a row to the batch and flushes when it is full.
func (r *Recorder) handleRow(row messageRow) {
	r.batchMu.Lock()
	r.batch = append(r.batch, row)
	shouldFlush := len(r.batch) >= r.cfg.BatchSize
	r.batchMu.Unlock()

	if shouldFlush {
		if err := r.flush(r.ctx); err != nil {
			r.logger.Error("batch flush failed", "error", err)
		}
	}
}

// transform converts a dispatched message to a messageRow.
func (r *Recorder) transform(connID, endpoint string, msg connection.Message) messageRow {
	return messageRow{
		ConnID:     connID,
		Endpoint:   endpoint,
		Seq:        int64(msg.Seq),
		ReceivedAt: msg.ReceivedAt.UnixMicro(),
		Payload:    msg.Data,
	}
}

// flush writes the current batch to the database.
func (r *Recorder) flush(ctx context.Context) error {
	r.batchMu.Lock()
	if len(r.batch) == 0 {
		r.batchMu.Unlock()
		return nil
	}

	// Take ownership of current batch
	batch := r.batch
	r.batch = make([]messageRow, 0, r.cfg.BatchSize)
	r.batchMu.Unlock()

	start := time.Now()

	conflicts, err := r.batchInsert(ctx, batch)
	if err != nil {
		r.batchMu.Lock()
		r.stats.Errors++
		r.batchMu.Unlock()
		return fmt.Errorf("insert %d rows: %w", len(batch), err)
	}

	r.batchMu.Lock()
	r.stats.Inserts += int64(len(batch) - conflicts)
	r.stats.Conflicts += int64(conflicts)
	r.stats.Flushes++
	r.batchMu.Unlock()

	r.logger.Debug("flushed messages",
		"count", len(batch),
		"conflicts", conflicts,
		"duration", time.Since(start),
	)
	return nil
}

// batchInsert inserts rows using pgx.Batch with ON CONFLICT DO NOTHING.
func (r *Recorder) batchInsert(ctx context.Context, rows []messageRow) (conflicts int, err error) {
	if r.db == nil {
		return 0, errors.New("no database")
	}

	query := `
		INSERT INTO ` + r.table + ` (conn_id, endpoint, seq, received_at, payload)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (conn_id, seq) DO NOTHING
	`
	batch := &pgx.Batch{}
	for _, row := range rows {
		batch.Queue(query, row.ConnID, row.Endpoint, row.Seq, row.ReceivedAt, row.Payload)
	}

	results := r.db.SendBatch(ctx, batch)
	defer results.Close()

	for range rows {
		ct, err := results.Exec()
		if err != nil {
			return 0, err
		}
		if ct.RowsAffected() == 0 {
			conflicts++
		}
	}

	return conflicts, nil
}
