// Package metrics holds the Prometheus instruments for the task pipeline.
//
// Metrics are registered on the Registerer passed to New so tests can use a
// private registry. The HTTP server exposes the registry on /metrics.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "taskpilot"

// Outcome labels for AnalysesTotal.
const (
	OutcomeOracle       = "oracle"
	OutcomeFallback     = "fallback"
	OutcomeUnconfigured = "unconfigured"
)

type Metrics struct {
	// AnalysesTotal counts analyses by outcome (oracle, fallback, unconfigured).
	AnalysesTotal *prometheus.CounterVec

	// OracleLatencySeconds measures suggestion calls, successful or not.
	OracleLatencySeconds prometheus.Histogram

	// DiscardedValuesTotal counts parsed or override values dropped by
	// validation. Labels: source (oracle, override), field.
	DiscardedValuesTotal *prometheus.CounterVec

	TasksCreatedTotal *prometheus.CounterVec

	// NotificationsTotal counts notifier calls by status (success, failure).
	NotificationsTotal *prometheus.CounterVec

	TimeLoggedHoursTotal prometheus.Counter

	// HTTPRequestsTotal counts API requests by method, route and status code.
	HTTPRequestsTotal *prometheus.CounterVec

	// OverdueTasks is the number of open tasks past their due date at the
	// last sweep.
	OverdueTasks prometheus.Gauge
}

// New registers the instruments on reg. Passing nil uses a fresh private
// registry, which keeps repeated construction in tests from panicking.
func New(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.NewRegistry()
	}
	f := promauto.With(reg)
	return &Metrics{
		AnalysesTotal: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "analysis",
			Name:      "analyses_total",
			Help:      "Task analyses by outcome",
		}, []string{"outcome"}),
		OracleLatencySeconds: f.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "analysis",
			Name:      "oracle_latency_seconds",
			Help:      "Latency of suggestion oracle calls",
			Buckets:   []float64{0.1, 0.25, 0.5, 1, 2, 5, 10, 30, 60},
		}),
		DiscardedValuesTotal: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "analysis",
			Name:      "discarded_values_total",
			Help:      "Suggested or overridden values discarded by validation",
		}, []string{"source", "field"}),
		TasksCreatedTotal: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "tasks",
			Name:      "created_total",
			Help:      "Tasks persisted, by category",
		}, []string{"category"}),
		NotificationsTotal: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "tasks",
			Name:      "notifications_total",
			Help:      "Notifier calls by status",
		}, []string{"status"}),
		TimeLoggedHoursTotal: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "tasks",
			Name:      "time_logged_hours_total",
			Help:      "Hours logged against tasks",
		}),
		HTTPRequestsTotal: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "API requests by method, route and status code",
		}, []string{"method", "route", "code"}),
		OverdueTasks: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "tasks",
			Name:      "overdue",
			Help:      "Open tasks past their due date at the last sweep",
		}),
	}
}
