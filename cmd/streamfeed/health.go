package main

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/rickgao/streamfeed/internal/connection"
)

// streamStatus is the part of a StreamConnection the health check reads.
type streamStatus interface {
	State() connection.State
	Stats() connection.Stats
}

// newHealthHandler serves /health and the Prometheus metrics path.
func newHealthHandler(metricsPath string, reg *prometheus.Registry, conn streamStatus, pool *pgxpool.Pool) http.Handler {
	mux := http.NewServeMux()
	mux.Handle(metricsPath, promhttp.HandlerFor(reg, promhttp.HandlerOpts{Registry: reg}))

	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
		defer cancel()

		health := struct {
			Status     string         `json:"status"`
			Components map[string]any `json:"components"`
		}{
			Status:     "healthy",
			Components: make(map[string]any),
		}

		stats := conn.Stats()
		health.Components["stream"] = map[string]any{
			"state":      stats.State.String(),
			"endpoint":   stats.Endpoint,
			"received":   stats.Received,
			"dropped":    stats.Dropped,
			"reconnects": stats.Reconnects,
			"queued":     stats.Queue.Count,
		}
		switch stats.State {
		case connection.StateReady:
		case connection.StateConnecting, connection.StateConnected, connection.StateReconnecting:
			health.Status = "degraded"
		default:
			health.Status = "unhealthy"
		}

		// Check database
		if pool != nil {
			if err := pool.Ping(ctx); err != nil {
				health.Status = "unhealthy"
				health.Components["timescaledb"] = map[string]string{
					"status": "disconnected",
					"error":  err.Error(),
				}
			} else {
				health.Components["timescaledb"] = "connected"
			}
		}

		// Set response
		w.Header().Set("Content-Type", "application/json")
		if health.Status == "unhealthy" {
			w.WriteHeader(http.StatusServiceUnavailable)
		}
		json.NewEncoder(w).Encode(health)
	})

	return mux
}
