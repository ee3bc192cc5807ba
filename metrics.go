package mq

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// connectionMetrics is the prometheus instrumentation surface for a
// single ConnectionCore. It is registered once at construction and
// labeled by connection id so multiple cores sharing a registerer
// remain distinguishable.
type connectionMetrics struct {
	inFlight      prometheus.Gauge
	overflowDepth prometheus.Gauge
	packetsSent   *prometheus.CounterVec
	packetsRecv   *prometheus.CounterVec
	pingRTT       prometheus.Histogram
}

func newConnectionMetrics(reg prometheus.Registerer, connectionID string) *connectionMetrics {
	labels := prometheus.Labels{"connection_id": connectionID}

	m := &connectionMetrics{
		inFlight: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace:   "mqcore",
			Name:        "in_flight_requests",
			Help:        "Number of requests awaiting a terminal ack.",
			ConstLabels: labels,
		}),
		overflowDepth: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace:   "mqcore",
			Name:        "outbound_overflow_depth",
			Help:        "Number of frames queued because the transport refused an offer.",
			ConstLabels: labels,
		}),
		packetsSent: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace:   "mqcore",
			Name:        "packets_sent_total",
			Help:        "Control packets handed to the transport, by type.",
			ConstLabels: labels,
		}, []string{"type"}),
		packetsRecv: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace:   "mqcore",
			Name:        "packets_received_total",
			Help:        "Control packets received from the transport, by type.",
			ConstLabels: labels,
		}, []string{"type"}),
		pingRTT: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace:   "mqcore",
			Name:        "ping_round_trip_seconds",
			Help:        "Time between PINGREQ send and the matching PINGRESP.",
			ConstLabels: labels,
			Buckets:     prometheus.DefBuckets,
		}),
	}

	if reg != nil {
		// Registration failures (a collector with the same connection id
		// already on a shared registerer) are non-fatal: metrics are an
		// observability aid, not a correctness dependency, so a core whose
		// connection id is already registered simply runs unmetered rather
		// than failing construction.
		_ = reg.Register(m.inFlight)
		_ = reg.Register(m.overflowDepth)
		_ = reg.Register(m.packetsSent)
		_ = reg.Register(m.packetsRecv)
		_ = reg.Register(m.pingRTT)
	}

	return m
}

func (m *connectionMetrics) observeSent(name string) {
	m.packetsSent.WithLabelValues(name).Inc()
}

func (m *connectionMetrics) observeReceived(name string) {
	m.packetsRecv.WithLabelValues(name).Inc()
}

func (m *connectionMetrics) setInFlight(n int) {
	m.inFlight.Set(float64(n))
}

func (m *connectionMetrics) setOverflowDepth(n int) {
	m.overflowDepth.Set(float64(n))
}

func (m *connectionMetrics) observePingRTT(d time.Duration) {
	m.pingRTT.Observe(d.Seconds())
}
