package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Prometheus metrics for the sync agent

var (
	// Search API metrics
	APICallsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "recon_sync_api_calls_total",
			Help: "Total number of search index requests",
		},
		[]string{"index", "status"},
	)

	APICallDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "recon_sync_api_call_duration_seconds",
			Help:    "Duration of search index requests in seconds",
			Buckets: []float64{.1, .5, 1, 2.5, 5, 10, 30, 60},
		},
		[]string{"index"},
	)

	// Database metrics
	DBQueriesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "recon_sync_db_queries_total",
			Help: "Total number of database statements",
		},
		[]string{"operation", "table", "status"},
	)

	DBQueryDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "recon_sync_db_query_duration_seconds",
			Help:    "Duration of database statements in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"operation", "table"},
	)

	DBConnectionsActive = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "recon_sync_db_connections_active",
			Help: "Number of active database connections",
		},
	)

	DBConnectionsIdle = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "recon_sync_db_connections_idle",
			Help: "Number of idle database connections",
		},
	)

	// Cache metrics
	CacheOperationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "recon_sync_cache_operations_total",
			Help: "Total number of status cache operations",
		},
		[]string{"operation", "status"},
	)

	// Cycle metrics
	CyclesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "recon_sync_cycles_total",
			Help: "Total number of sync cycles by outcome",
		},
		[]string{"outcome"},
	)

	CycleDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "recon_sync_cycle_duration_seconds",
			Help:    "Duration of sync cycles in seconds",
			Buckets: []float64{1, 5, 10, 30, 60, 120, 300, 600},
		},
	)

	CyclePhase = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "recon_sync_cycle_phase",
			Help: "1 for the phase the sync cycle is currently in, 0 otherwise",
		},
		[]string{"phase"},
	)

	RecordsPersisted = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "recon_sync_records_persisted_total",
			Help: "Total number of records written per table and status",
		},
		[]string{"table", "status"},
	)

	RecordsInTable = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "recon_sync_records_in_table",
			Help: "Number of rows in each synchronized table",
		},
		[]string{"table"},
	)

	// Error metrics
	ErrorsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "recon_sync_errors_total",
			Help: "Total number of errors",
		},
		[]string{"component", "error_type"},
	)

	// System metrics
	SystemUptime = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "recon_sync_system_uptime_seconds",
			Help: "System uptime in seconds",
		},
	)

	LastSuccessfulSync = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "recon_sync_last_successful_sync_timestamp",
			Help: "Timestamp of last successful sync cycle",
		},
	)
)

// RecordAPICall records a search index request
func RecordAPICall(index, status string, duration float64) {
	APICallsTotal.WithLabelValues(index, status).Inc()
	APICallDuration.WithLabelValues(index).Observe(duration)
}

// RecordDBQuery records a database statement
func RecordDBQuery(operation, table, status string, duration float64) {
	DBQueriesTotal.WithLabelValues(operation, table, status).Inc()
	DBQueryDuration.WithLabelValues(operation, table).Observe(duration)
}

// RecordCacheOperation records a status cache operation
func RecordCacheOperation(operation, status string) {
	CacheOperationsTotal.WithLabelValues(operation, status).Inc()
}

// RecordCycle records a settled sync cycle
func RecordCycle(outcome string, duration float64) {
	CyclesTotal.WithLabelValues(outcome).Inc()
	CycleDuration.Observe(duration)

	if outcome == "success" {
		LastSuccessfulSync.SetToCurrentTime()
	}
}

// SetPhase marks phase as the current cycle phase
func SetPhase(phase string, all []string) {
	for _, p := range all {
		if p == phase {
			CyclePhase.WithLabelValues(p).Set(1)
		} else {
			CyclePhase.WithLabelValues(p).Set(0)
		}
	}
}

// RecordBatch records the per-record outcome of a persisted batch
func RecordBatch(table string, succeeded, failed int) {
	RecordsPersisted.WithLabelValues(table, "success").Add(float64(succeeded))
	RecordsPersisted.WithLabelValues(table, "error").Add(float64(failed))
}

// RecordError records an error
func RecordError(component, errorType string) {
	ErrorsTotal.WithLabelValues(component, errorType).Inc()
}

// UpdateDBConnectionStats updates database connection pool statistics
func UpdateDBConnectionStats(active, idle int32) {
	DBConnectionsActive.Set(float64(active))
	DBConnectionsIdle.Set(float64(idle))
}

// UpdateTableCount updates the row count gauge of a table
func UpdateTableCount(table string, count int64) {
	RecordsInTable.WithLabelValues(table).Set(float64(count))
}
