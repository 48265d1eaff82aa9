// Package metrics provides Prometheus instrumentation for veriforge.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	enabled     bool
	serviceName string

	// HTTP metrics
	httpRequestsTotal *prometheus.CounterVec
	httpDuration      *prometheus.HistogramVec

	// Verification domain metrics
	runsTotal          prometheus.Counter
	outcomesTotal      *prometheus.CounterVec
	runDuration        prometheus.Histogram
	buildsTotal        *prometheus.CounterVec
	fetchAttemptsTotal *prometheus.CounterVec
)

// Init initializes the metrics system.
func Init(enabledFlag bool, svcName string) {
	enabled = enabledFlag
	serviceName = svcName

	if !enabled {
		return
	}

	// HTTP request counter
	httpRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	// HTTP request duration histogram
	httpDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "HTTP request latency in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path"},
	)

	// Verification run counter
	runsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "verification_runs_total",
			Help: "Total number of verification runs",
		},
	)

	// Per-contract outcome counter, labelled with "verified", "skipped", or
	// the failure kind
	outcomesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "verification_outcomes_total",
			Help: "Total number of per-contract verification outcomes",
		},
		[]string{"result"},
	)

	// Run duration histogram; builds dominate, so buckets reach into minutes
	runDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "verification_run_duration_seconds",
			Help:    "Verification run duration in seconds",
			Buckets: []float64{1, 5, 15, 60, 180, 600, 1800},
		},
	)

	// Build counter, labelled "persistent" (pinned checkout reuse) or
	// "ephemeral" (fresh shallow clone)
	buildsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "verification_builds_total",
			Help: "Total number of build attempts by checkout mode",
		},
		[]string{"mode"},
	)

	// Bytecode fetch attempts, labelled with the source tier
	fetchAttemptsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "verification_fetch_attempts_total",
			Help: "Total number of bytecode fetch attempts by source tier",
		},
		[]string{"tier"},
	)

	// Note: Go runtime metrics (goroutines, memory, GC) are automatically
	// collected by prometheus/client_golang - no custom collector needed
}

// Handler returns the Prometheus metrics HTTP handler.
func Handler() http.Handler {
	if !enabled {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusNotFound)
		})
	}
	return promhttp.Handler()
}

// Enabled returns whether metrics are enabled.
func Enabled() bool {
	return enabled
}

// ServiceName returns the configured service name for metric labels.
func ServiceName() string {
	return serviceName
}
