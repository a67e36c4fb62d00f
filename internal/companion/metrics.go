package companion

import (
	"strconv"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	globalMetrics *Metrics
	metricsOnce   sync.Once
)

// Metrics holds Prometheus metrics for the companion service.
type Metrics struct {
	RequestsTotal   *prometheus.CounterVec
	RequestDuration *prometheus.HistogramVec
	FinishedTotal   *prometheus.CounterVec
}

// NewMetrics creates and registers the companion metrics once per process.
//
// Metrics:
//   - companion_requests_total{route,status} - handled requests
//   - companion_request_duration_seconds{route} - handler latency
//   - companion_timers_finished_total{type} - mirrors that counted down to zero
func NewMetrics() *Metrics {
	metricsOnce.Do(func() {
		globalMetrics = &Metrics{
			RequestsTotal: promauto.NewCounterVec(
				prometheus.CounterOpts{
					Name: "companion_requests_total",
					Help: "Total number of companion requests by route and status",
				},
				[]string{"route", "status"},
			),
			RequestDuration: promauto.NewHistogramVec(
				prometheus.HistogramOpts{
					Name:    "companion_request_duration_seconds",
					Help:    "Duration of companion requests in seconds",
					Buckets: prometheus.ExponentialBuckets(0.0005, 2, 12), // 0.5ms to ~1s
				},
				[]string{"route"},
			),
			FinishedTotal: promauto.NewCounterVec(
				prometheus.CounterOpts{
					Name: "companion_timers_finished_total",
					Help: "Total number of mirrored timers that reached zero",
				},
				[]string{"type"},
			),
		}
	})
	return globalMetrics
}

// RecordRequest records a handled request.
func (m *Metrics) RecordRequest(route string, status int, seconds float64) {
	m.RequestsTotal.WithLabelValues(route, strconv.Itoa(status)).Inc()
	m.RequestDuration.WithLabelValues(route).Observe(seconds)
}

// RecordFinished records a mirror that counted down to zero.
func (m *Metrics) RecordFinished(sessionType string) {
	m.FinishedTotal.WithLabelValues(sessionType).Inc()
}
