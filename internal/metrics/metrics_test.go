package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestMetrics(t *testing.T) {
	m := New(prometheus.NewRegistry())

	m.IncAuditWriteFailure()
	m.IncAuditWriteFailure()
	assert.Equal(t, 2.0, testutil.ToFloat64(m.AuditWriteFailures))

	m.IncLicenseStatusChange("expired")
	assert.Equal(t, 1.0, testutil.ToFloat64(m.LicenseStatusChanges.WithLabelValues("expired")))

	m.ObserveRequest("GET", "/api/licenses", 200, time.Now())
	assert.Equal(t, 1.0, testutil.ToFloat64(m.HTTPRequests.WithLabelValues("GET", "/api/licenses", "200")))

	m.IncLogin("invalid")
	assert.Equal(t, 1.0, testutil.ToFloat64(m.LoginAttempts.WithLabelValues("invalid")))
}

func TestNilMetricsIsNoop(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() {
		m.IncAuditWriteFailure()
		m.IncLicenseStatusChange("active")
		m.ObserveRequest("GET", "/", 200, time.Now())
		m.IncLogin("success")
		m.IncUploadRejected()
	})
}

func TestNewOnSeparateRegistries(t *testing.T) {
	assert.NotPanics(t, func() {
		New(prometheus.NewRegistry())
		New(prometheus.NewRegistry())
	})
}
