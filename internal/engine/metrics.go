package engine

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	globalMetrics *Metrics
	metricsOnce   sync.Once
)

// Metrics holds Prometheus metrics for the focus engine.
type Metrics struct {
	SessionsTotal        *prometheus.CounterVec
	SleepDetectionsTotal *prometheus.CounterVec
	SyncFailuresTotal    *prometheus.CounterVec
	NotificationsTotal   *prometheus.CounterVec
	SuggestionsTotal     *prometheus.CounterVec
	Recoveries           *prometheus.CounterVec
}

// NewMetrics creates and registers the engine metrics once per process.
//
// Metrics:
//   - focus_sessions_total{type,outcome} - sessions that left the running state
//   - focus_sleep_detections_total{source} - tick or focus-return sleep detections
//   - focus_sync_failures_total{verb} - best-effort mirror calls that failed
//   - focus_notifications_total{family,result} - gated notifications, shown or suppressed
//   - focus_break_suggestions_total{type,action} - suggestion lifecycle events
//   - focus_recoveries_total{outcome} - startup recovery outcomes
func NewMetrics() *Metrics {
	metricsOnce.Do(func() {
		globalMetrics = &Metrics{
			SessionsTotal: promauto.NewCounterVec(
				prometheus.CounterOpts{
					Name: "focus_sessions_total",
					Help: "Total number of focus sessions that completed or were abandoned",
				},
				[]string{"type", "outcome"},
			),
			SleepDetectionsTotal: promauto.NewCounterVec(
				prometheus.CounterOpts{
					Name: "focus_sleep_detections_total",
					Help: "Total number of detected host sleeps",
				},
				[]string{"source"}, // "tick" or "focus"
			),
			SyncFailuresTotal: promauto.NewCounterVec(
				prometheus.CounterOpts{
					Name: "focus_sync_failures_total",
					Help: "Total number of failed best-effort sync calls",
				},
				[]string{"verb"},
			),
			NotificationsTotal: promauto.NewCounterVec(
				prometheus.CounterOpts{
					Name: "focus_notifications_total",
					Help: "Total number of notifications evaluated by the gate",
				},
				[]string{"family", "result"},
			),
			SuggestionsTotal: promauto.NewCounterVec(
				prometheus.CounterOpts{
					Name: "focus_break_suggestions_total",
					Help: "Total number of break suggestion events",
				},
				[]string{"type", "action"},
			),
			Recoveries: promauto.NewCounterVec(
				prometheus.CounterOpts{
					Name: "focus_recoveries_total",
					Help: "Startup timer recovery outcomes",
				},
				[]string{"outcome"},
			),
		}
	})
	return globalMetrics
}

// RecordSession records a session leaving the running state.
func (m *Metrics) RecordSession(sessionType string, completed bool) {
	outcome := "abandoned"
	if completed {
		outcome = "completed"
	}
	m.SessionsTotal.WithLabelValues(sessionType, outcome).Inc()
}

// RecordSleep records a sleep detection.
func (m *Metrics) RecordSleep(source string) {
	m.SleepDetectionsTotal.WithLabelValues(source).Inc()
}

// RecordSyncFailure records a failed mirror call.
func (m *Metrics) RecordSyncFailure(verb string) {
	m.SyncFailuresTotal.WithLabelValues(verb).Inc()
}

// RecordNotification records a gate decision.
func (m *Metrics) RecordNotification(family string, shown bool) {
	result := "suppressed"
	if shown {
		result = "shown"
	}
	m.NotificationsTotal.WithLabelValues(family, result).Inc()
}

// RecordSuggestion records a suggestion event.
func (m *Metrics) RecordSuggestion(suggestionType, action string) {
	m.SuggestionsTotal.WithLabelValues(suggestionType, action).Inc()
}

// RecordRecovery records a startup recovery outcome.
func (m *Metrics) RecordRecovery(outcome string) {
	m.Recoveries.WithLabelValues(outcome).Inc()
}
