package metrics

import (
	"regexp"
	"strconv"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	// RequestDuration tracks HTTP request duration in seconds by method, path, status.
	RequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path", "status"},
	)

	// RequestTotal counts HTTP requests by method, path, status.
	RequestTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	// AuditEventsTotal counts audit writes by action and result (ok, error, rejected).
	AuditEventsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "audit_events_total",
			Help: "Total number of audit event writes by action and result",
		},
		[]string{"action", "result"},
	)

	// AuditEventsDeleted counts events removed by retention cleanup.
	AuditEventsDeleted = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "audit_events_deleted_total",
			Help: "Total number of audit events removed by retention cleanup",
		},
	)

	// SuspiciousLoginsTotal counts logins rejected by the brute-force heuristic.
	SuspiciousLoginsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "audit_suspicious_logins_total",
			Help: "Total number of login attempts flagged as suspicious",
		},
	)
)

var (
	numericPathSegment = regexp.MustCompile(`/[0-9]+(/|$)`)
	initOnce           sync.Once
)

func init() {
	initOnce.Do(func() {
		prometheus.MustRegister(RequestDuration, RequestTotal, AuditEventsTotal, AuditEventsDeleted, SuspiciousLoginsTotal)
	})
}

// NormalizePath reduces cardinality by replacing numeric path segments with {id}.
// E.g. /audit/users/123/history -> /audit/users/{id}/history.
func NormalizePath(path string) string {
	return numericPathSegment.ReplaceAllString(path, "/{id}$1")
}

// RecordRequest records duration and count for an HTTP request. Call from middleware with method, path, statusCode, duration.
func RecordRequest(method, path string, statusCode int, durationSeconds float64) {
	path = NormalizePath(path)
	status := strconv.Itoa(statusCode)
	RequestDuration.WithLabelValues(method, path, status).Observe(durationSeconds)
	RequestTotal.WithLabelValues(method, path, status).Inc()
}

// IncAuditEvent increments the audit write counter for action and result.
func IncAuditEvent(action, result string) {
	AuditEventsTotal.WithLabelValues(action, result).Inc()
}

// AddAuditDeleted adds n to the retention cleanup counter.
func AddAuditDeleted(n int64) {
	if n > 0 {
		AuditEventsDeleted.Add(float64(n))
	}
}

// IncSuspiciousLogin increments the suspicious login counter.
func IncSuspiciousLogin() {
	SuspiciousLoginsTotal.Inc()
}
