package observability

import (
	"time"

	"github.com/boddenberg/ynab-shared-report/internal/domain"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	dto "github.com/prometheus/client_model/go"
)

// Metrics holds all Prometheus metrics for the report runner.
type Metrics struct {
	// Registry is the Prometheus registry that owns these metrics.
	// Exposed so the /metrics endpoint can use it.
	Registry *prometheus.Registry

	stageDuration  *prometheus.HistogramVec
	runsTotal      *prometheus.CounterVec
	externalErrors *prometheus.CounterVec
	rowsTotal      *prometheus.CounterVec
	deliveries     *prometheus.CounterVec
	cacheHits      *prometheus.CounterVec
	cacheMisses    *prometheus.CounterVec
}

// NewMetrics creates a dedicated Prometheus registry and registers all
// application metrics in it. Using a private registry avoids "duplicate
// collector" panics when NewMetrics is called more than once (e.g. in tests).
func NewMetrics() *Metrics {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)

	return &Metrics{
		Registry: reg,

		stageDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "ynab_report_stage_duration_seconds",
				Help:    "Duration of report run stages.",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"stage"},
		),
		runsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "ynab_report_runs_total",
				Help: "Total report runs by outcome.",
			},
			[]string{"status"},
		),
		externalErrors: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "ynab_report_external_errors_total",
				Help: "Total errors from external services.",
			},
			[]string{"service"},
		),
		rowsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "ynab_report_rows_total",
				Help: "Total normalized rows by report section.",
			},
			[]string{"section"},
		),
		deliveries: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "ynab_report_deliveries_total",
				Help: "Total report deliveries by sink and outcome.",
			},
			[]string{"sink", "status"},
		),
		cacheHits: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "ynab_report_cache_hits_total",
				Help: "Total cache hits.",
			},
			[]string{"cache"},
		),
		cacheMisses: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "ynab_report_cache_misses_total",
				Help: "Total cache misses.",
			},
			[]string{"cache"},
		),
	}
}

// RecordStageDuration records the duration of a run stage.
func (m *Metrics) RecordStageDuration(stage string, d time.Duration) {
	m.stageDuration.WithLabelValues(stage).Observe(d.Seconds())
}

// IncrRun increments the run counter with an outcome label.
func (m *Metrics) IncrRun(status string) {
	m.runsTotal.WithLabelValues(status).Inc()
}

// IncrExternalError increments the external error counter.
func (m *Metrics) IncrExternalError(service string) {
	m.externalErrors.WithLabelValues(service).Inc()
}

// AddRows adds rows rendered in a report section.
func (m *Metrics) AddRows(section string, n int) {
	m.rowsTotal.WithLabelValues(section).Add(float64(n))
}

// IncrDelivery increments the delivery counter.
func (m *Metrics) IncrDelivery(sink, status string) {
	m.deliveries.WithLabelValues(sink, status).Inc()
}

// IncrCacheHit increments the cache hit counter.
func (m *Metrics) IncrCacheHit(cache string) {
	m.cacheHits.WithLabelValues(cache).Inc()
}

// IncrCacheMiss increments the cache miss counter.
func (m *Metrics) IncrCacheMiss(cache string) {
	m.cacheMisses.WithLabelValues(cache).Inc()
}

// GetReportSnapshot returns a snapshot of run metrics for the
// GET /v1/metrics/report endpoint. sinks lists the configured delivery
// channels, since counters only exist per label once touched.
func (m *Metrics) GetReportSnapshot(sinks []string) *domain.ReportMetrics {
	success := getCounterValue(m.runsTotal, "success")
	failed := getCounterValue(m.runsTotal, "config_error") +
		getCounterValue(m.runsTotal, "fetch_error") +
		getCounterValue(m.runsTotal, "data_error") +
		getCounterValue(m.runsTotal, "render_error")
	total := success + failed

	rows := getCounterValue(m.rowsTotal, "categorized") +
		getCounterValue(m.rowsTotal, "uncategorized")
	external := getCounterValue(m.externalErrors, "categories") +
		getCounterValue(m.externalErrors, "transactions")

	var delivered, deliveryFailed float64
	for _, sink := range sinks {
		delivered += getCounterValue(m.deliveries, sink, "success")
		deliveryFailed += getCounterValue(m.deliveries, sink, "error")
	}

	hits := getCounterValue(m.cacheHits, "report")
	misses := getCounterValue(m.cacheMisses, "report")

	errorRate := float64(0)
	cacheHitRate := float64(0)
	if total > 0 {
		errorRate = failed / total
	}
	if hits+misses > 0 {
		cacheHitRate = hits / (hits + misses)
	}

	return &domain.ReportMetrics{
		TotalRuns:      int64(total),
		FailedRuns:     int64(failed),
		ErrorRate:      errorRate,
		RowsNormalized: int64(rows),
		Deliveries:     int64(delivered),
		FailedDelivery: int64(deliveryFailed),
		CacheHitRate:   cacheHitRate,
		ExternalErrors: int64(external),
		Period:         "all_time",
	}
}

// getCounterValue extracts the current float64 value from a CounterVec for the given labels.
func getCounterValue(cv *prometheus.CounterVec, labels ...string) float64 {
	counter := cv.WithLabelValues(labels...)
	m := &dto.Metric{}
	if err := counter.(prometheus.Metric).Write(m); err != nil {
		return 0
	}
	if m.Counter != nil && m.Counter.Value != nil {
		return *m.Counter.Value
	}
	return 0
}
