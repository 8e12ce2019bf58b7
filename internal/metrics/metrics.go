// Package metrics exposes Prometheus metrics for source loading and reshaping.
package metrics

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const (
	metricPrefix = "jikan_"

	// ResultSuccess labels a completed operation.
	ResultSuccess = "success"
	// ResultError labels a failed operation.
	ResultError = "error"
)

var (
	registerOnce sync.Once

	sourcesTotal     *prometheus.CounterVec
	rowsTotal        prometheus.Counter
	warningsTotal    *prometheus.CounterVec
	transformTotal   *prometheus.CounterVec
	transformLatency *prometheus.HistogramVec
)

// Init registers jikan metrics with the default registry. storedResults, when non-nil,
// backs a gauge of results held in the transient store.
func Init(storedResults func() float64) {
	registerOnce.Do(func() {
		sourcesTotal = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "sources_total",
				Help: "Total sources processed by result",
			},
			[]string{"result"},
		)
		rowsTotal = prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: metricPrefix + "rows_total",
				Help: "Total long-format rows produced",
			},
		)
		warningsTotal = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "warnings_total",
				Help: "Total recoverable warnings by kind",
			},
			[]string{"kind"},
		)
		transformTotal = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "transform_total",
				Help: "Total transform runs by result",
			},
			[]string{"result"},
		)
		transformLatency = prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    metricPrefix + "transform_latency_seconds",
				Help:    "Transform latency in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"result"},
		)

		prometheus.MustRegister(
			sourcesTotal,
			rowsTotal,
			warningsTotal,
			transformTotal,
			transformLatency,
		)

		if storedResults != nil {
			prometheus.MustRegister(prometheus.NewGaugeFunc(
				prometheus.GaugeOpts{
					Name: metricPrefix + "stored_results",
					Help: "Results currently held for download",
				},
				storedResults,
			))
		}
	})
}

// IncSource counts one processed source.
func IncSource(result string) {
	if result == "" {
		result = ResultSuccess
	}
	if sourcesTotal != nil {
		sourcesTotal.WithLabelValues(result).Inc()
	}
}

// AddRows counts produced output rows.
func AddRows(n int) {
	if rowsTotal != nil && n > 0 {
		rowsTotal.Add(float64(n))
	}
}

// IncWarning counts one warning of the given kind.
func IncWarning(kind string) {
	if kind == "" {
		kind = "unknown"
	}
	if warningsTotal != nil {
		warningsTotal.WithLabelValues(kind).Inc()
	}
}

// ObserveTransform records a transform run duration and result.
func ObserveTransform(result string, duration time.Duration) {
	if result == "" {
		result = ResultSuccess
	}
	if transformTotal != nil {
		transformTotal.WithLabelValues(result).Inc()
	}
	if transformLatency != nil {
		transformLatency.WithLabelValues(result).Observe(duration.Seconds())
	}
}
