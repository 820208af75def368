package metrics

import "github.com/prometheus/client_golang/prometheus"

// DiscoveryMetrics counts discovery lookups by outcome.
type DiscoveryMetrics struct {
	requests *prometheus.CounterVec // by outcome (ok/error)
}

// NewDiscoveryMetrics creates and registers discovery metrics. A nil
// registerer disables metrics.
func NewDiscoveryMetrics(reg prometheus.Registerer) (*DiscoveryMetrics, error) {
	if reg == nil {
		return nil, nil
	}
	m := &DiscoveryMetrics{
		requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "discovery",
			Name:      "requests_total",
			Help:      "Total number of discovery lookups",
		}, []string{"outcome"}),
	}
	if err := reg.Register(m.requests); err != nil {
		return nil, err
	}
	return m, nil
}

// Observe records one lookup. It matches discovery.WithObserver.
func (m *DiscoveryMetrics) Observe(outcome string) {
	if m == nil {
		return
	}
	m.requests.WithLabelValues(outcome).Inc()
}
