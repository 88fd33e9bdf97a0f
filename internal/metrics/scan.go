// Package metrics holds the Prometheus collectors for scans, runs and the
// HTTP API.
package metrics

import "github.com/prometheus/client_golang/prometheus"

// Namespace prefixes every collector.
const Namespace = "edgescan"

// Scan metrics.
var (
	SamplesTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: Namespace,
			Name:      "samples_total",
			Help:      "Total number of probe samples recorded",
		},
	)

	LinearScansTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: Namespace,
			Name:      "linear_scans_total",
			Help:      "Linear scans by outcome",
		},
		[]string{"result"}, // "break" / "complete" / "error"
	)

	FeaturesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: Namespace,
			Name:      "features_total",
			Help:      "Features found by kind",
		},
		[]string{"kind"},
	)

	TraceDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: Namespace,
			Name:      "trace_duration_seconds",
			Help:      "Boundary trace wall time in seconds",
			Buckets:   []float64{0.1, 0.5, 1, 5, 15, 60, 300, 900},
		},
		[]string{"kind"},
	)

	FitTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: Namespace,
			Name:      "fit_total",
			Help:      "Geometry fits by status",
		},
		[]string{"status"}, // "ok" / "failed"
	)

	RunsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: Namespace,
			Name:      "runs_total",
			Help:      "Jobs run by mode and status",
		},
		[]string{"mode", "status"},
	)
)

// Linear scan results.
const (
	ScanBreak    = "break"
	ScanComplete = "complete"
	ScanError    = "error"
)

var scanMetricsRegistered bool

// RegisterScanMetrics registers the scan collectors with the default
// registry. Safe to call more than once.
func RegisterScanMetrics() {
	if scanMetricsRegistered {
		return
	}
	prometheus.MustRegister(SamplesTotal)
	prometheus.MustRegister(LinearScansTotal)
	prometheus.MustRegister(FeaturesTotal)
	prometheus.MustRegister(TraceDuration)
	prometheus.MustRegister(FitTotal)
	prometheus.MustRegister(RunsTotal)
	scanMetricsRegistered = true
}
