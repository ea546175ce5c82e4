package observability

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Histogram bucket definitions.
var (
	httpDurationBuckets  = []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10}
	queryDurationBuckets = []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5}
	bodySizeBuckets      = []float64{100, 1024, 10240, 102400, 1048576}
	pageSizeBuckets      = []float64{0, 1, 5, 10, 25, 50, 100, 250, 500}
)

// Metrics holds all Prometheus metric instruments for the monitor.
type Metrics struct {
	// HTTP metrics
	HTTPRequestsTotal     *prometheus.CounterVec
	HTTPRequestDuration   *prometheus.HistogramVec
	HTTPResponseSizeBytes *prometheus.HistogramVec

	// Audit store metrics
	AuditQueriesTotal   *prometheus.CounterVec
	AuditQueryDuration  *prometheus.HistogramVec
	AuditRowsScanned    *prometheus.CounterVec
	DebugCountFailures  *prometheus.CounterVec

	// History metrics
	InstancesResolvedTotal *prometheus.CounterVec
	HistoryPageSize        prometheus.Histogram
	MalformedEventsTotal   prometheus.Counter
}

// InitMetrics creates and registers all Prometheus metric instruments.
func InitMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		// HTTP
		HTTPRequestsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "bpmonitor_http_requests_total",
			Help: "Total number of HTTP requests.",
		}, []string{"method", "path_pattern", "status"}),
		HTTPRequestDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "bpmonitor_http_request_duration_seconds",
			Help:    "HTTP request duration in seconds.",
			Buckets: httpDurationBuckets,
		}, []string{"method", "path_pattern"}),
		HTTPResponseSizeBytes: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "bpmonitor_http_response_size_bytes",
			Help:    "HTTP response body size in bytes.",
			Buckets: bodySizeBuckets,
		}, []string{"method", "path_pattern"}),

		// Audit store
		AuditQueriesTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "bpmonitor_audit_queries_total",
			Help: "Total number of audit store queries.",
		}, []string{"operation", "status"}),
		AuditQueryDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "bpmonitor_audit_query_duration_seconds",
			Help:    "Audit store query duration in seconds.",
			Buckets: queryDurationBuckets,
		}, []string{"operation"}),
		AuditRowsScanned: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "bpmonitor_audit_rows_scanned_total",
			Help: "Total number of rows read from the audit store.",
		}, []string{"operation"}),
		DebugCountFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "bpmonitor_debug_count_failures_total",
			Help: "Total number of failed debug table counts.",
		}, []string{"table"}),

		// History
		InstancesResolvedTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "bpmonitor_instances_resolved_total",
			Help: "Total number of instance summaries by consolidated status.",
		}, []string{"status"}),
		HistoryPageSize: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "bpmonitor_history_page_size",
			Help:    "Number of summaries returned per history page.",
			Buckets: pageSizeBuckets,
		}),
		MalformedEventsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "bpmonitor_malformed_events_total",
			Help: "Total number of packed tracking segments skipped as malformed.",
		}),
	}

	reg.MustRegister(
		// HTTP
		m.HTTPRequestsTotal,
		m.HTTPRequestDuration,
		m.HTTPResponseSizeBytes,
		// Audit store
		m.AuditQueriesTotal,
		m.AuditQueryDuration,
		m.AuditRowsScanned,
		m.DebugCountFailures,
		// History
		m.InstancesResolvedTotal,
		m.HistoryPageSize,
		m.MalformedEventsTotal,
	)

	return m
}

// --- Recording helpers ---

// RecordHTTPRequest records HTTP request metrics.
func (m *Metrics) RecordHTTPRequest(method, pathPattern string, status int, duration time.Duration, respSize int) {
	statusStr := strconv.Itoa(status)
	m.HTTPRequestsTotal.WithLabelValues(method, pathPattern, statusStr).Inc()
	m.HTTPRequestDuration.WithLabelValues(method, pathPattern).Observe(duration.Seconds())
	m.HTTPResponseSizeBytes.WithLabelValues(method, pathPattern).Observe(float64(respSize))
}

// RecordAuditQuery records one audit store round trip. A nil receiver is a
// no-op so stores can be used without metrics.
func (m *Metrics) RecordAuditQuery(operation string, rows int, duration time.Duration, err error) {
	if m == nil {
		return
	}
	status := "ok"
	if err != nil {
		status = "error"
	}
	m.AuditQueriesTotal.WithLabelValues(operation, status).Inc()
	m.AuditQueryDuration.WithLabelValues(operation).Observe(duration.Seconds())
	if rows > 0 {
		m.AuditRowsScanned.WithLabelValues(operation).Add(float64(rows))
	}
}

// RecordDebugCountFailure records a table that could not be counted.
func (m *Metrics) RecordDebugCountFailure(table string) {
	if m == nil {
		return
	}
	m.DebugCountFailures.WithLabelValues(table).Inc()
}

// RecordHistoryPage records the statuses of a served page.
func (m *Metrics) RecordHistoryPage(statuses []string) {
	if m == nil {
		return
	}
	m.HistoryPageSize.Observe(float64(len(statuses)))
	for _, s := range statuses {
		m.InstancesResolvedTotal.WithLabelValues(s).Inc()
	}
}

// RecordMalformedEvents records packed segments that were skipped.
func (m *Metrics) RecordMalformedEvents(n int) {
	if m == nil || n <= 0 {
		return
	}
	m.MalformedEventsTotal.Add(float64(n))
}

// --- HTTP Middleware ---

// MetricsMiddleware returns HTTP middleware that records request metrics using
// chi's route pattern (not the actual URL path) to avoid label cardinality
// explosion.
func (m *Metrics) MetricsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		sw := &metricsResponseWriter{ResponseWriter: w, status: http.StatusOK}

		next.ServeHTTP(sw, r)

		m.RecordHTTPRequest(r.Method, routePattern(r), sw.status, time.Since(start), sw.bytes)
	})
}

// Handler returns the Prometheus HTTP handler for the metrics endpoint,
// serving the given gatherer.
func Handler(g prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(g, promhttp.HandlerOpts{})
}

// routePattern extracts chi's route pattern from the request context.
// Falls back to the raw URL path if no pattern is found.
func routePattern(r *http.Request) string {
	rctx := chi.RouteContext(r.Context())
	if rctx == nil {
		return r.URL.Path
	}
	pattern := strings.Join(rctx.RoutePatterns, "")
	// chi route patterns have trailing /*, remove it.
	pattern = strings.TrimSuffix(pattern, "/*")
	if pattern == "" {
		return r.URL.Path
	}
	return pattern
}

// metricsResponseWriter wraps http.ResponseWriter to capture status and bytes.
type metricsResponseWriter struct {
	http.ResponseWriter
	status  int
	bytes   int
	written bool
}

func (w *metricsResponseWriter) WriteHeader(code int) {
	if !w.written {
		w.status = code
		w.written = true
	}
	w.ResponseWriter.WriteHeader(code)
}

func (w *metricsResponseWriter) Write(b []byte) (int, error) {
	if !w.written {
		w.written = true
	}
	n, err := w.ResponseWriter.Write(b)
	w.bytes += n
	return n, err
}
