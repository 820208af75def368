package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/rotisserie/eris"
	"golang.org/x/sync/errgroup"

	"github.com/rickgao/streamfeed/internal/connection"
	"github.com/rickgao/streamfeed/internal/database"
	"github.com/rickgao/streamfeed/internal/metrics"
	"github.com/rickgao/streamfeed/internal/recorder"
)

const shutdownTimeout = 30 * time.Second

// errStreamClosed reports that the connection gave up reconnecting.
var errStreamClosed = errors.New("stream disconnected")

// runStream connects and delivers messages until a signal arrives or the
// connection ends in Disconnected.
func runStream(path string, verbose bool, out io.Writer) error {
	a, err := newApp(path)
	if err != nil {
		return err
	}
	defer a.Close()
	logger := a.logger

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	a.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	r, err := a.resolver()
	if err != nil {
		return eris.Wrap(err, "build resolver")
	}
	endpoints, err := r.Resolve(ctx, a.cfg.Stream.Service)
	if err != nil {
		return eris.Wrapf(err, "resolve %s", a.cfg.Stream.Service)
	}

	session, err := a.session()
	if err != nil {
		return eris.Wrap(err, "create session")
	}

	// Optional recorder
	var pool *pgxpool.Pool
	var rec *recorder.Recorder
	if a.cfg.Recorder.Enabled {
		logger.Info("connecting to database",
			"host", a.cfg.Database.Host,
			"port", a.cfg.Database.Port,
			"database", a.cfg.Database.Name,
		)
		pool, err = database.Connect(ctx, a.cfg.Database)
		if err != nil {
			return eris.Wrap(err, "connect database")
		}
		defer pool.Close()

		rec = recorder.New(recorder.Config{
			Table:         a.cfg.Recorder.Table,
			BatchSize:     a.cfg.Recorder.BatchSize,
			FlushInterval: a.cfg.Recorder.FlushInterval,
			BufferSize:    a.cfg.Recorder.BufferSize,
		}, pool, logger)
		if err := rec.EnsureSchema(ctx); err != nil {
			return eris.Wrap(err, "prepare recorder table")
		}
		if err := metrics.RegisterRecorder(a.registry, func() metrics.RecorderStats {
			s := rec.Stats()
			return metrics.RecorderStats{
				Inserts:   s.Inserts,
				Conflicts: s.Conflicts,
				Flushes:   s.Flushes,
				Errors:    s.Errors,
				Dropped:   s.Dropped,
			}
		}); err != nil {
			return eris.Wrap(err, "register recorder metrics")
		}
	}

	var record connection.MessageHandler
	handler := func(msg connection.Message) error {
		if verbose {
			fmt.Fprintf(out, "%d\t%s\t%s\n", msg.Seq, msg.ReceivedAt.Format(time.RFC3339Nano), msg.Data)
		}
		if record != nil {
			return record(msg)
		}
		return nil
	}

	conn, err := a.newConnection(endpoints, session, handler)
	if err != nil {
		return eris.Wrap(err, "create connection")
	}
	defer conn.Dispose()
	if rec != nil {
		record = rec.Handler(conn)
		// Not tied to the signal context; only Stop ends recorder writes.
		if err := rec.Start(context.Background()); err != nil {
			return eris.Wrap(err, "start recorder")
		}
	}

	closed := make(chan struct{})
	var closeOnce sync.Once
	for _, ev := range []connection.Event{
		connection.EventConnecting,
		connection.EventConnected,
		connection.EventReconnected,
		connection.EventDisconnecting,
		connection.EventDisconnected,
	} {
		if _, err := conn.On(ev, func(event connection.Event, c *connection.StreamConnection) {
			logger.Info("stream event", "event", event, "endpoint", c.Endpoint())
			if event == connection.EventDisconnected {
				closeOnce.Do(func() { close(closed) })
			}
		}); err != nil {
			return eris.Wrap(err, "register listener")
		}
	}

	g, gctx := errgroup.WithContext(ctx)

	if a.cfg.Metrics.Enabled {
		server := &http.Server{
			Addr:    fmt.Sprintf(":%d", a.cfg.Metrics.Port),
			Handler: newHealthHandler(a.cfg.Metrics.Path, a.registry, conn, pool),
		}
		g.Go(func() error {
			logger.Info("starting metrics server", "port", a.cfg.Metrics.Port, "path", a.cfg.Metrics.Path)
			if err := server.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
				return eris.Wrap(err, "metrics server")
			}
			return nil
		})
		g.Go(func() error {
			<-gctx.Done()
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			return server.Shutdown(shutdownCtx)
		})
	}

	g.Go(func() error {
		if err := conn.Connect(gctx); err != nil {
			return eris.Wrap(err, "connect")
		}
		select {
		case <-gctx.Done():
			return nil
		case <-closed:
			return eris.Wrap(errStreamClosed, conn.Endpoint())
		}
	})

	runErr := g.Wait()

	logger.Info("shutting down...", "stats", fmt.Sprintf("%+v", conn.Stats()))
	conn.Dispose()

	drainTimer := time.NewTimer(shutdownTimeout)
	defer drainTimer.Stop()
	select {
	case <-conn.Done():
	case <-drainTimer.C:
		logger.Warn("dispatcher still running after shutdown timeout")
	}

	if rec != nil {
		stopCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := rec.Stop(stopCtx); err != nil {
			logger.Error("recorder stop failed", "error", err)
		}
	}

	logger.Info("streamfeed stopped")
	return runErr
}
