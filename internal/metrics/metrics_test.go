package metrics_test

import (
	"testing"
	"time"

	"clubsite/internal/metrics"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCollector_Counters(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := metrics.NewCollector(reg)

	c.RecordRegistration(metrics.OutcomeSuccess)
	c.RecordRegistration(metrics.OutcomeDuplicateEmail)
	c.RecordRegistration(metrics.OutcomeSuccess)
	c.RecordLogin(metrics.OutcomeInvalidCredentials)

	families, err := reg.Gather()
	require.NoError(t, err)

	values := map[string]float64{}
	for _, mf := range families {
		for _, m := range mf.GetMetric() {
			if m.GetCounter() == nil {
				continue
			}
			key := mf.GetName()
			for _, lp := range m.GetLabel() {
				key += "|" + lp.GetValue()
			}
			values[key] = m.GetCounter().GetValue()
		}
	}

	assert.Equal(t, 2.0, values["clubsite_register_total|success"])
	assert.Equal(t, 1.0, values["clubsite_register_total|duplicate_email"])
	assert.Equal(t, 1.0, values["clubsite_login_total|invalid_credentials"])
}

func TestCollector_HTTPRequests(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := metrics.NewCollector(reg)

	c.RecordHTTPRequest("POST", "/login", 401, 15*time.Millisecond)
	c.RecordHTTPRequest("POST", "/login", 200, 5*time.Millisecond)

	assert.Equal(t, 2, testutil.CollectAndCount(reg, "clubsite_http_requests_total"))
	assert.Equal(t, 1, testutil.CollectAndCount(reg, "clubsite_http_request_duration_seconds"))
}

func TestCollector_DuplicateRegistrationPanics(t *testing.T) {
	reg := prometheus.NewRegistry()
	metrics.NewCollector(reg)

	assert.Panics(t, func() { metrics.NewCollector(reg) })
}

func TestNop(t *testing.T) {
	var rec metrics.Recorder = metrics.Nop{}
	assert.NotPanics(t, func() {
		rec.RecordRegistration(metrics.OutcomeSuccess)
		rec.RecordLogin(metrics.OutcomeStorageError)
		rec.RecordHTTPRequest("GET", "/health", 200, time.Millisecond)
	})
}
