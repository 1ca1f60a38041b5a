package observability

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const (
	OutcomeAlert   = "alert"
	OutcomeNoAlert = "no_alert"
	OutcomeError   = "error"
)

var (
	RuleRuns = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "dashboard_alert_rule_runs_total",
		Help: "Alert rule evaluations by rule and outcome.",
	}, []string{"rule", "outcome"})

	RuleDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "dashboard_alert_rule_duration_seconds",
		Help:    "Time spent evaluating one alert rule.",
		Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5},
	}, []string{"rule"})

	AlertsEmitted = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "dashboard_alerts_emitted_total",
		Help: "Alerts produced by the detector by type and severity.",
	}, []string{"type", "severity"})

	ImportRecords = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "dashboard_import_records_total",
		Help: "Rows written by the CSV importer per collection.",
	}, []string{"collection"})

	HTTPRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "dashboard_http_requests_total",
		Help: "HTTP requests served by method and status code.",
	}, []string{"method", "status"})

	HTTPDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "dashboard_http_request_duration_seconds",
		Help:    "HTTP request latency by method.",
		Buckets: prometheus.DefBuckets,
	}, []string{"method"})
)

func ObserveRule(rule, outcome string, elapsed time.Duration) {
	RuleRuns.WithLabelValues(rule, outcome).Inc()
	RuleDuration.WithLabelValues(rule).Observe(elapsed.Seconds())
}

func ObserveRequest(method string, status int, elapsed time.Duration) {
	HTTPRequests.WithLabelValues(method, strconv.Itoa(status)).Inc()
	HTTPDuration.WithLabelValues(method).Observe(elapsed.Seconds())
}
