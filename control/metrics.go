// control/metrics.go
// Author: momentics <momentics@gmail.com>
//
// Prometheus instrumentation for processors. All methods are nil-safe
// so the reactor can run unmetered.

package control

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/momentics/hioload-mux/api"
)

// Metrics aggregates the processor-level collectors.
type Metrics struct {
	sessionsActive   prometheus.Gauge
	bytesRead        prometheus.Counter
	bytesWritten     prometheus.Counter
	eventsDispatched prometheus.Counter
	sessionsClosed   *prometheus.CounterVec
}

// NewMetrics builds and registers the collectors with reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		sessionsActive: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "hioload_mux",
			Name:      "sessions_active",
			Help:      "Number of sessions currently open.",
		}),
		bytesRead: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "hioload_mux",
			Name:      "bytes_read_total",
			Help:      "Total bytes read from session channels.",
		}),
		bytesWritten: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "hioload_mux",
			Name:      "bytes_written_total",
			Help:      "Total bytes flushed to session channels.",
		}),
		eventsDispatched: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "hioload_mux",
			Name:      "events_dispatched_total",
			Help:      "Total events handed to the executor.",
		}),
		sessionsClosed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "hioload_mux",
			Name:      "sessions_closed_total",
			Help:      "Sessions closed, partitioned by reason.",
		}, []string{"reason"}),
	}
	reg.MustRegister(m.sessionsActive, m.bytesRead, m.bytesWritten,
		m.eventsDispatched, m.sessionsClosed)
	return m
}

// SessionOpened records a Preparing -> Open transition.
func (m *Metrics) SessionOpened() {
	if m == nil {
		return
	}
	m.sessionsActive.Inc()
}

// SessionClosed records a terminal transition with its reason.
func (m *Metrics) SessionClosed(reason api.CloseReason) {
	if m == nil {
		return
	}
	m.sessionsActive.Dec()
	m.sessionsClosed.WithLabelValues(reason.String()).Inc()
}

// BytesRead accumulates inbound traffic.
func (m *Metrics) BytesRead(n int) {
	if m == nil {
		return
	}
	m.bytesRead.Add(float64(n))
}

// BytesWritten accumulates outbound traffic.
func (m *Metrics) BytesWritten(n int) {
	if m == nil {
		return
	}
	m.bytesWritten.Add(float64(n))
}

// EventDispatched counts one event submitted to the executor.
func (m *Metrics) EventDispatched() {
	if m == nil {
		return
	}
	m.eventsDispatched.Inc()
}
