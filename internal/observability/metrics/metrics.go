package metrics

import (
	"database/sql"
	"log"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const (
	metricPrefix = "twin_"

	resultSuccess = "success"
	resultError   = "error"
)

var (
	registerOnce sync.Once

	ingestReadings *prometheus.CounterVec
	ingestErrors   *prometheus.CounterVec
	ingestLatency  prometheus.Histogram

	entityQueries    *prometheus.CounterVec
	entityQueryTimes *prometheus.HistogramVec
	catalogMutations *prometheus.CounterVec
	exportDownloads  *prometheus.CounterVec
)

// Init registers observability metrics and DB-backed gauges.
func Init(db *sql.DB, logger *log.Logger) {
	registerOnce.Do(func() {
		ingestReadings = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "ingest_readings_total",
				Help: "Total reading rows ingested by result",
			},
			[]string{"result"},
		)
		ingestErrors = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "ingest_errors_total",
				Help: "Total ingest errors by reason",
			},
			[]string{"reason"},
		)
		ingestLatency = prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    metricPrefix + "ingest_latency_seconds",
				Help:    "Reading ingest latency",
				Buckets: prometheus.DefBuckets,
			},
		)
		entityQueries = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "entity_queries_total",
				Help: "Total dynamic entity queries by family and result",
			},
			[]string{"family", "result"},
		)
		entityQueryTimes = prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    metricPrefix + "entity_query_latency_seconds",
				Help:    "Dynamic entity query latency by family",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"family"},
		)
		catalogMutations = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "catalog_mutations_total",
				Help: "Total administrative catalog mutations by resource",
			},
			[]string{"resource"},
		)
		exportDownloads = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: metricPrefix + "export_downloads_total",
				Help: "Total export downloads by kind",
			},
			[]string{"kind"},
		)

		prometheus.MustRegister(
			ingestReadings,
			ingestErrors,
			ingestLatency,
			entityQueries,
			entityQueryTimes,
			catalogMutations,
			exportDownloads,
		)

		registerDBMetrics(db, logger)
	})
}

// ObserveIngest records an ingest attempt of n reading rows.
func ObserveIngest(n int, err error, elapsed time.Duration) {
	if ingestReadings == nil {
		return
	}
	result := resultSuccess
	if err != nil {
		result = resultError
	}
	ingestReadings.WithLabelValues(result).Add(float64(n))
	ingestLatency.Observe(elapsed.Seconds())
}

// CountIngestError records an ingest error by reason.
func CountIngestError(reason string) {
	if ingestErrors == nil {
		return
	}
	ingestErrors.WithLabelValues(reason).Inc()
}

// ObserveEntityQuery starts timing a dynamic entity query; call the returned
// func with the query error when done.
func ObserveEntityQuery(family string) func(error) {
	start := time.Now()
	return func(err error) {
		if entityQueries == nil {
			return
		}
		result := resultSuccess
		if err != nil {
			result = resultError
		}
		entityQueries.WithLabelValues(family, result).Inc()
		entityQueryTimes.WithLabelValues(family).Observe(time.Since(start).Seconds())
	}
}

// CountCatalogMutation records an administrative catalog mutation.
func CountCatalogMutation(resource string) {
	if catalogMutations == nil {
		return
	}
	catalogMutations.WithLabelValues(resource).Inc()
}

// CountExport records an export download.
func CountExport(kind string) {
	if exportDownloads == nil {
		return
	}
	exportDownloads.WithLabelValues(kind).Inc()
}
