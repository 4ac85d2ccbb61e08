package core

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "echoping"

// Metrics contains the Prometheus metrics updated by sessions.
type Metrics struct {
	SessionsActive   prometheus.Gauge
	EchoRequests     prometheus.Counter
	EchoResponses    *prometheus.CounterVec
	RoundTripSeconds prometheus.Histogram
}

// NewMetrics creates a Metrics instance registered on reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)

	return &Metrics{
		SessionsActive: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "sessions_active",
			Help:      "Number of ping sessions currently running",
		}),
		EchoRequests: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "echo_requests_total",
			Help:      "Total number of echo requests sent",
		}),
		EchoResponses: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "echo_responses_total",
			Help:      "Total number of echo request outcomes by result",
		}, []string{"result"}),
		RoundTripSeconds: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "round_trip_seconds",
			Help:      "Round-trip time of successful echo requests",
			Buckets:   prometheus.ExponentialBuckets(0.0005, 2, 14),
		}),
	}
}

// observe records the outcome of one request.
func (m *Metrics) observe(r *Response) {
	switch {
	case r.Success():
		m.EchoResponses.WithLabelValues("reply").Inc()
		m.RoundTripSeconds.Observe(r.Elapsed.Seconds())
	case r.Message == nil:
		m.EchoResponses.WithLabelValues("timeout").Inc()
	default:
		m.EchoResponses.WithLabelValues("error").Inc()
	}
}
