// Package metrics exposes Prometheus metrics for the HTTP client.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Outcome labels.
const (
	OutcomeOK        = "ok"
	OutcomeCancelled = "cancelled"
	OutcomeTransport = "transport"
	OutcomeInvalid   = "invalid"
)

// Collector records the request lifecycle. A nil Collector records nothing.
// It is safe for concurrent use.
type Collector struct {
	sendsTotal   *prometheus.CounterVec
	sendDuration *prometheus.HistogramVec
	inFlight     prometheus.Gauge
	abortsTotal  prometheus.Counter
}

func New(registerer prometheus.Registerer) *Collector {
	factory := promauto.With(registerer)

	return &Collector{
		sendsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "browser_http_sends_total",
				Help: "Total number of settled sends",
			},
			[]string{"method", "outcome"},
		),
		sendDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "browser_http_send_duration_seconds",
				Help:    "Duration of sends in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"method", "outcome"},
		),
		inFlight: factory.NewGauge(
			prometheus.GaugeOpts{
				Name: "browser_http_sends_in_flight",
				Help: "Number of sends tracked for cancellation",
			},
		),
		abortsTotal: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "browser_http_close_aborts_total",
				Help: "Total number of sends cancelled by closing the client",
			},
		),
	}
}

func (c *Collector) RecordSend(method, outcome string, d time.Duration) {
	if c == nil {
		return
	}

	c.sendsTotal.WithLabelValues(method, outcome).Inc()
	c.sendDuration.WithLabelValues(method, outcome).Observe(d.Seconds())
}

func (c *Collector) RecordTracked() {
	if c == nil {
		return
	}
	c.inFlight.Inc()
}

func (c *Collector) RecordUntracked() {
	if c == nil {
		return
	}
	c.inFlight.Dec()
}

func (c *Collector) RecordCloseAborts(n int) {
	if c == nil {
		return
	}
	c.abortsTotal.Add(float64(n))
}
