package metrics

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCollector_Counts(t *testing.T) {
	c := NewCollector("scheduling", prometheus.NewRegistry())

	c.Reservation("ok")
	c.Reservation("ok")
	c.Reservation("slot_taken")
	c.Transition("confirmed")
	c.Lapsed(3)
	c.Lapsed(0)

	assert.Equal(t, 2.0, testutil.ToFloat64(c.BookingsTotal.WithLabelValues("ok")))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.BookingsTotal.WithLabelValues("slot_taken")))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.TransitionsTotal.WithLabelValues("confirmed")))
	assert.Equal(t, 3.0, testutil.ToFloat64(c.LapsedTotal))
}

func TestCollector_NilSafe(t *testing.T) {
	var c *Collector
	assert.NotPanics(t, func() {
		c.Reservation("ok")
		c.Transition("cancelled")
		c.Lapsed(1)
		c.ObserveRequest(http.MethodGet, "/grid", 200, time.Millisecond)
		c.InFlight(1)
	})
}

func TestCollector_Handler(t *testing.T) {
	c := NewCollector("scheduling", prometheus.NewRegistry())
	c.ObserveRequest(http.MethodPost, "/appointments", 201, 5*time.Millisecond)

	rec := httptest.NewRecorder()
	c.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `scheduling_http_requests_total{method="POST",route="/appointments",status="201"} 1`)
}
