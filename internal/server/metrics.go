package server

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metric label values for request outcomes.
const (
	outcomeIssued      = "issued"
	outcomeInUse       = "already_in_use"
	outcomeNotFound    = "not_found"
	outcomeInvalidKey  = "invalid_key"
	outcomeStop        = "stop"
	outcomeDecodeError = "decode_error"
)

// Metrics holds the server's Prometheus instruments.
type Metrics struct {
	Requests *prometheus.CounterVec
	InFlight prometheus.Gauge
}

// NewMetrics builds and registers the server metrics on reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		Requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "leasegate",
			Name:      "requests_total",
			Help:      "Lease requests handled, by outcome.",
		}, []string{"outcome"}),
		InFlight: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "leasegate",
			Name:      "inflight_workers",
			Help:      "Connections currently being handled.",
		}),
	}
	reg.MustRegister(m.Requests, m.InFlight)

	// Pre-seed outcome series so dashboards see zeros, not gaps.
	for _, outcome := range []string{
		outcomeIssued, outcomeInUse, outcomeNotFound,
		outcomeInvalidKey, outcomeStop, outcomeDecodeError,
	} {
		m.Requests.WithLabelValues(outcome)
	}
	return m
}
