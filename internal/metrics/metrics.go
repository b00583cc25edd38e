package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics groups the tracker's prometheus collectors. A nil *Metrics is
// valid and records nothing.
type Metrics struct {
	HTTPRequests         *prometheus.CounterVec
	HTTPDuration         *prometheus.HistogramVec
	AuditWriteFailures   prometheus.Counter
	LicenseStatusChanges *prometheus.CounterVec
	LoginAttempts        *prometheus.CounterVec
	UploadsRejected      prometheus.Counter
}

// New registers all collectors on reg.
func New(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		HTTPRequests: f.NewCounterVec(prometheus.CounterOpts{
			Name: "compliance_http_requests_total",
			Help: "HTTP requests by method, route and status code",
		}, []string{"method", "route", "status"}),
		HTTPDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "compliance_http_request_duration_seconds",
			Help:    "HTTP request latency by route",
			Buckets: []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5},
		}, []string{"method", "route"}),
		AuditWriteFailures: f.NewCounter(prometheus.CounterOpts{
			Name: "compliance_audit_write_failures_total",
			Help: "Audit log rows that could not be written",
		}),
		LicenseStatusChanges: f.NewCounterVec(prometheus.CounterOpts{
			Name: "compliance_license_status_changes_total",
			Help: "License status transitions persisted by a refresh, by new status",
		}, []string{"status"}),
		LoginAttempts: f.NewCounterVec(prometheus.CounterOpts{
			Name: "compliance_login_attempts_total",
			Help: "Login attempts by outcome",
		}, []string{"outcome"}),
		UploadsRejected: f.NewCounter(prometheus.CounterOpts{
			Name: "compliance_uploads_rejected_total",
			Help: "Uploaded documents refused for extension or size",
		}),
	}
}

// ObserveRequest records one finished HTTP request.
func (m *Metrics) ObserveRequest(method, route string, status int, start time.Time) {
	if m == nil {
		return
	}
	m.HTTPRequests.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
	m.HTTPDuration.WithLabelValues(method, route).Observe(time.Since(start).Seconds())
}

func (m *Metrics) IncAuditWriteFailure() {
	if m == nil {
		return
	}
	m.AuditWriteFailures.Inc()
}

func (m *Metrics) IncLicenseStatusChange(status string) {
	if m == nil {
		return
	}
	m.LicenseStatusChanges.WithLabelValues(status).Inc()
}

// IncLogin records a login outcome: success, invalid or disabled.
func (m *Metrics) IncLogin(outcome string) {
	if m == nil {
		return
	}
	m.LoginAttempts.WithLabelValues(outcome).Inc()
}

func (m *Metrics) IncUploadRejected() {
	if m == nil {
		return
	}
	m.UploadsRejected.Inc()
}
