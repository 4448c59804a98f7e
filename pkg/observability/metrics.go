package observability

import (
	"context"
	"database/sql"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus metrics
type Metrics struct {
	// HTTP metrics
	HTTPRequestsTotal   *prometheus.CounterVec
	HTTPRequestDuration *prometheus.HistogramVec
	HTTPResponseSize    *prometheus.HistogramVec

	// Search metrics
	SearchExecutionsTotal *prometheus.CounterVec
	SearchDuration        *prometheus.HistogramVec
	SearchRowsReturned    *prometheus.HistogramVec

	// Extension metrics
	ExtensionMutationsTotal *prometheus.CounterVec

	// Export metrics
	ExportFilesTotal  *prometheus.CounterVec
	ExportFilesPurged prometheus.Counter

	// Cache metrics
	CacheHitsTotal   *prometheus.GaugeVec
	CacheMissesTotal *prometheus.GaugeVec
	CacheEntries     *prometheus.GaugeVec

	// Database metrics
	DBConnectionsOpen  prometheus.Gauge
	DBConnectionsInUse prometheus.Gauge
	DBConnectionsIdle  prometheus.Gauge
	DBWaitCount        prometheus.Gauge

	otel *OTelMetrics
}

// NewMetrics creates and registers all Prometheus metrics
func NewMetrics(registry *prometheus.Registry) *Metrics {
	m := &Metrics{
		HTTPRequestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "adminkit_http_requests_total",
				Help: "Total number of HTTP requests",
			},
			[]string{"method", "path", "status"},
		),
		HTTPRequestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "adminkit_http_request_duration_seconds",
				Help:    "HTTP request duration in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"method", "path"},
		),
		HTTPResponseSize: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "adminkit_http_response_size_bytes",
				Help:    "HTTP response size in bytes",
				Buckets: prometheus.ExponentialBuckets(100, 10, 8),
			},
			[]string{"method", "path"},
		),

		SearchExecutionsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "adminkit_search_executions_total",
				Help: "Total number of search executions",
			},
			[]string{"query", "status"},
		),
		SearchDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "adminkit_search_duration_seconds",
				Help:    "Search duration in seconds",
				Buckets: []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5},
			},
			[]string{"query"},
		),
		SearchRowsReturned: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "adminkit_search_rows_returned",
				Help:    "Rows returned per search",
				Buckets: prometheus.ExponentialBuckets(1, 4, 7),
			},
			[]string{"query"},
		),

		ExtensionMutationsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "adminkit_extension_mutations_total",
				Help: "Total number of extension metadata mutations",
			},
			[]string{"operation"},
		),

		ExportFilesTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "adminkit_export_files_total",
				Help: "Total number of export files written",
			},
			[]string{"query", "destination"},
		),
		ExportFilesPurged: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "adminkit_export_files_purged_total",
				Help: "Total number of expired export files removed",
			},
		),

		CacheHitsTotal: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "adminkit_cache_hits",
				Help: "Cache hits since start",
			},
			[]string{"cache"},
		),
		CacheMissesTotal: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "adminkit_cache_misses",
				Help: "Cache misses since start",
			},
			[]string{"cache"},
		),
		CacheEntries: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "adminkit_cache_entries",
				Help: "Current number of cache entries",
			},
			[]string{"cache"},
		),

		DBConnectionsOpen: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "adminkit_db_connections_open",
				Help: "Number of open database connections",
			},
		),
		DBConnectionsInUse: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "adminkit_db_connections_in_use",
				Help: "Number of database connections in use",
			},
		),
		DBConnectionsIdle: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "adminkit_db_connections_idle",
				Help: "Number of idle database connections",
			},
		),
		DBWaitCount: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "adminkit_db_connections_wait_count",
				Help: "Total number of connections waited for",
			},
		),
	}

	registry.MustRegister(
		m.HTTPRequestsTotal,
		m.HTTPRequestDuration,
		m.HTTPResponseSize,
		m.SearchExecutionsTotal,
		m.SearchDuration,
		m.SearchRowsReturned,
		m.ExtensionMutationsTotal,
		m.ExportFilesTotal,
		m.ExportFilesPurged,
		m.CacheHitsTotal,
		m.CacheMissesTotal,
		m.CacheEntries,
		m.DBConnectionsOpen,
		m.DBConnectionsInUse,
		m.DBConnectionsIdle,
		m.DBWaitCount,
	)

	return m
}

// WithOTel mirrors search recordings to OpenTelemetry instruments
func (m *Metrics) WithOTel(o *OTelMetrics) *Metrics {
	if m != nil {
		m.otel = o
	}
	return m
}

// RecordSearch records one search execution. A nil Metrics records nothing.
func (m *Metrics) RecordSearch(query, status string, duration time.Duration, rows int) {
	if m == nil {
		return
	}
	m.SearchExecutionsTotal.WithLabelValues(query, status).Inc()
	m.SearchDuration.WithLabelValues(query).Observe(duration.Seconds())
	if status == "success" {
		m.SearchRowsReturned.WithLabelValues(query).Observe(float64(rows))
	}
	m.otel.recordSearch(query, status, duration)
}

// RecordExtensionMutation counts an extension metadata change
func (m *Metrics) RecordExtensionMutation(operation string) {
	if m == nil {
		return
	}
	m.ExtensionMutationsTotal.WithLabelValues(operation).Inc()
}

// RecordExport counts an export file written to destination
func (m *Metrics) RecordExport(query, destination string) {
	if m == nil {
		return
	}
	m.ExportFilesTotal.WithLabelValues(query, destination).Inc()
}

// RecordExportBytes mirrors an export file's size to OpenTelemetry
func (m *Metrics) RecordExportBytes(ctx context.Context, query string, size int64) {
	if m == nil {
		return
	}
	m.otel.RecordExportBytes(ctx, query, size)
}

// RecordPurge counts removed export files
func (m *Metrics) RecordPurge(n int) {
	if m == nil || n <= 0 {
		return
	}
	m.ExportFilesPurged.Add(float64(n))
}

// UpdateCacheStats publishes a cache's counters
func (m *Metrics) UpdateCacheStats(name string, hits, misses, entries int64) {
	if m == nil {
		return
	}
	m.CacheHitsTotal.WithLabelValues(name).Set(float64(hits))
	m.CacheMissesTotal.WithLabelValues(name).Set(float64(misses))
	m.CacheEntries.WithLabelValues(name).Set(float64(entries))
}

// UpdateDBStats publishes connection pool statistics
func (m *Metrics) UpdateDBStats(stats sql.DBStats) {
	if m == nil {
		return
	}
	m.DBConnectionsOpen.Set(float64(stats.OpenConnections))
	m.DBConnectionsInUse.Set(float64(stats.InUse))
	m.DBConnectionsIdle.Set(float64(stats.Idle))
	m.DBWaitCount.Set(float64(stats.WaitCount))
}

// responseWriter wraps http.ResponseWriter to capture status code and size
type responseWriter struct {
	http.ResponseWriter
	statusCode   int
	bytesWritten int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}

func (rw *responseWriter) Write(b []byte) (int, error) {
	n, err := rw.ResponseWriter.Write(b)
	rw.bytesWritten += n
	return n, err
}

// routeTemplate labels requests by mux route template to keep label
// cardinality bounded
func routeTemplate(r *http.Request) string {
	if route := mux.CurrentRoute(r); route != nil {
		if tpl, err := route.GetPathTemplate(); err == nil {
			return tpl
		}
	}
	return r.URL.Path
}

// HTTPMetricsMiddleware instruments HTTP requests with Prometheus metrics
func HTTPMetricsMiddleware(metrics *Metrics) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			rw := &responseWriter{
				ResponseWriter: w,
				statusCode:     http.StatusOK,
			}

			next.ServeHTTP(rw, r)

			path := routeTemplate(r)
			status := strconv.Itoa(rw.statusCode)
			metrics.HTTPRequestsTotal.WithLabelValues(r.Method, path, status).Inc()
			metrics.HTTPRequestDuration.WithLabelValues(r.Method, path).Observe(time.Since(start).Seconds())
			metrics.HTTPResponseSize.WithLabelValues(r.Method, path).Observe(float64(rw.bytesWritten))
		})
	}
}

// MetricsHandler serves the registry in the Prometheus exposition format
func MetricsHandler(registry *prometheus.Registry) http.Handler {
	return promhttp.HandlerFor(registry, promhttp.HandlerOpts{})
}
