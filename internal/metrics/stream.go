package metrics

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/rickgao/streamfeed/internal/connection"
)

const namespace = "streamfeed"

var allStates = []connection.State{
	connection.StateInitial,
	connection.StateConnecting,
	connection.StateConnected,
	connection.StateReady,
	connection.StateDisconnecting,
	connection.StateReconnecting,
	connection.StateDisconnected,
	connection.StateDisposed,
}

// StreamMetrics implements connection.Observer on Prometheus collectors.
// A nil *StreamMetrics is valid and records nothing.
type StreamMetrics struct {
	state          *prometheus.GaugeVec   // 1 for the current state, 0 otherwise
	transitions    *prometheus.CounterVec // by from, to
	refused        *prometheus.CounterVec // by from
	received       prometheus.Counter
	dropped        prometheus.Counter
	reconnects     prometheus.Counter
	protocolErrors prometheus.Counter
	handlerErrors  prometheus.Counter
	queueDepth     prometheus.Gauge
}

// NewStreamMetrics creates and registers stream metrics for one service.
// A nil registerer disables metrics.
func NewStreamMetrics(reg prometheus.Registerer, service string) (*StreamMetrics, error) {
	if reg == nil {
		return nil, nil
	}

	labels := prometheus.Labels{"service": service}
	m := &StreamMetrics{
		state: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace:   namespace,
			Subsystem:   "stream",
			Name:        "state",
			Help:        "Current connection state (1 = active)",
			ConstLabels: labels,
		}, []string{"state"}),

		transitions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace:   namespace,
			Subsystem:   "stream",
			Name:        "transitions_total",
			Help:        "Total number of state transitions",
			ConstLabels: labels,
		}, []string{"from", "to"}),

		refused: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace:   namespace,
			Subsystem:   "stream",
			Name:        "refused_transitions_total",
			Help:        "Total number of transitions refused by the state table",
			ConstLabels: labels,
		}, []string{"from"}),

		received: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace:   namespace,
			Subsystem:   "stream",
			Name:        "messages_received_total",
			Help:        "Total number of frames accepted into the dispatch queue",
			ConstLabels: labels,
		}),

		dropped: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace:   namespace,
			Subsystem:   "stream",
			Name:        "messages_dropped_total",
			Help:        "Total number of frames dropped because the queue was full",
			ConstLabels: labels,
		}),

		reconnects: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace:   namespace,
			Subsystem:   "stream",
			Name:        "reconnects_total",
			Help:        "Total number of reconnect attempts",
			ConstLabels: labels,
		}),

		protocolErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace:   namespace,
			Subsystem:   "stream",
			Name:        "protocol_errors_total",
			Help:        "Total number of handshake protocol errors",
			ConstLabels: labels,
		}),

		handlerErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace:   namespace,
			Subsystem:   "stream",
			Name:        "handler_errors_total",
			Help:        "Total number of message handler failures",
			ConstLabels: labels,
		}),

		queueDepth: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace:   namespace,
			Subsystem:   "stream",
			Name:        "queue_depth",
			Help:        "Messages waiting for dispatch",
			ConstLabels: labels,
		}),
	}

	collectors := []prometheus.Collector{
		m.state, m.transitions, m.refused, m.received, m.dropped,
		m.reconnects, m.protocolErrors, m.handlerErrors, m.queueDepth,
	}
	for _, c := range collectors {
		if err := reg.Register(c); err != nil {
			return nil, err
		}
	}

	m.setState(connection.StateInitial)
	return m, nil
}

func (m *StreamMetrics) setState(current connection.State) {
	for _, s := range allStates {
		v := 0.0
		if s == current {
			v = 1
		}
		m.state.WithLabelValues(s.String()).Set(v)
	}
}

// ObserveTransition records an applied transition.
func (m *StreamMetrics) ObserveTransition(from, to connection.State) {
	if m == nil {
		return
	}
	m.transitions.WithLabelValues(from.String(), to.String()).Inc()
	m.setState(to)
}

// ObserveRefusedTransition records a transition rejected by the table.
func (m *StreamMetrics) ObserveRefusedTransition(from connection.State) {
	if m == nil {
		return
	}
	m.refused.WithLabelValues(from.String()).Inc()
}

func (m *StreamMetrics) ObserveReceived() {
	if m == nil {
		return
	}
	m.received.Inc()
}

func (m *StreamMetrics) ObserveDropped() {
	if m == nil {
		return
	}
	m.dropped.Inc()
}

func (m *StreamMetrics) ObserveReconnect() {
	if m == nil {
		return
	}
	m.reconnects.Inc()
}

func (m *StreamMetrics) ObserveProtocolError() {
	if m == nil {
		return
	}
	m.protocolErrors.Inc()
}

func (m *StreamMetrics) ObserveHandlerError() {
	if m == nil {
		return
	}
	m.handlerErrors.Inc()
}

func (m *StreamMetrics) ObserveQueueDepth(depth int) {
	if m == nil {
		return
	}
	m.queueDepth.Set(float64(depth))
}

var _ connection.Observer = (*StreamMetrics)(nil)
