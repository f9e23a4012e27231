package metrics

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCountersAndGauges(t *testing.T) {
	m := NewMetrics()

	m.IncAlertsCreated("critical", "remote")
	m.IncAlertsCreated("critical", "remote")
	m.IncDuplicatesDropped("remote")
	m.IncStatusTransition("pending", "acknowledged")
	m.IncPollFailures("remote")
	m.IncAckRelayFailures()
	m.SetPendingAlerts(3)
	m.SetWebcamFPS(10)

	assert.Equal(t, 2.0, testutil.ToFloat64(m.alertsCreated.WithLabelValues("critical", "remote")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.duplicatesDropped.WithLabelValues("remote")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.ackRelayFailures))
	assert.Equal(t, 3.0, testutil.ToFloat64(m.pendingAlerts))
	assert.Equal(t, 10.0, testutil.ToFloat64(m.webcamFPS))
}

func TestSeparateInstancesDoNotCollide(t *testing.T) {
	a := NewMetrics()
	b := NewMetrics()
	a.IncPollFailures("remote")

	n, err := testutil.GatherAndCount(b.Registry(), "weaponwatch_poll_failures_total")
	require.NoError(t, err)
	assert.Equal(t, 0, n)

	assert.Equal(t, 1.0, testutil.ToFloat64(a.pollFailures.WithLabelValues("remote")))
	assert.Equal(t, 0.0, testutil.ToFloat64(b.pollFailures.WithLabelValues("remote")))

	n, err = testutil.GatherAndCount(a.Registry(), "weaponwatch_poll_failures_total")
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestNilMetricsIsSafe(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() {
		m.IncAlertsCreated("warning", "simulator")
		m.SetCircuitBreakerState(1)
		m.SetAlertProcessingTime(0.01)
	})
}

func TestHandlerExposesMetrics(t *testing.T) {
	m := NewMetrics()
	m.IncAlertsCreated("warning", "webcam")

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, strings.Contains(rec.Body.String(), "weaponwatch_alerts_created_total"))
}
