package observability

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMetricsHandlerExposesRelayCounters(t *testing.T) {
	m := NewMetrics()
	m.RecordRouted("group", "delivered")
	m.RecordTransition("open", "in_progress", "responder_reply")
	m.RecordSweep(3)
	m.RecordDeliveryFailure("requester", "blocked")
	m.RecordRequest("/admin/tickets", http.MethodGet, http.StatusOK, 5*time.Millisecond)

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	body := rec.Body.String()
	assert.Contains(t, body, `relay_routed_messages_total{outcome="delivered",side="group"} 1`)
	assert.Contains(t, body, `relay_sweeper_closed_total 3`)
	assert.Contains(t, body, `relay_delivery_failures_total{reason="blocked",side="requester"} 1`)
}

func TestNilMetricsIsSafe(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() {
		m.RecordRouted("group", "ignored")
		m.RecordSweep(1)
		m.RecordDeliveryFailure("group", "timeout")
		m.RecordError("/", http.MethodGet, "X")
	})
}
