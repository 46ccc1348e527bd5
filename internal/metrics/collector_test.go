package metrics

import (
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestCollectorRecords(t *testing.T) {
	c := NewCollector("fitroom", zap.NewNop())

	c.RecordLoad("avatar", "ok", 120*time.Millisecond)
	c.RecordLoad("avatar", "ok", 80*time.Millisecond)
	c.RecordLoad("wearable", "error", time.Millisecond)
	assert.Equal(t, 2.0, testutil.ToFloat64(c.loadsTotal.WithLabelValues("avatar", "ok")))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.loadsTotal.WithLabelValues("wearable", "error")))

	c.RecordMerge("ok", 5*time.Millisecond)
	c.RecordMerge("Already merged", 0)
	assert.Equal(t, 1.0, testutil.ToFloat64(c.mergesTotal.WithLabelValues("ok")))
	assert.Equal(t, 1, testutil.CollectAndCount(c.mergeDuration))

	c.SetLiveResources("geometry", 7)
	assert.Equal(t, 7.0, testutil.ToFloat64(c.liveResources.WithLabelValues("geometry")))

	c.SetRooms(3)
	assert.Equal(t, 3.0, testutil.ToFloat64(c.rooms))
}

func TestNilCollectorIsNoop(t *testing.T) {
	var c *Collector
	assert.NotPanics(t, func() {
		c.RecordHTTPRequest("GET", "/health", 200, time.Millisecond)
		c.RecordLoad("avatar", "ok", 0)
		c.RecordMerge("ok", 0)
		c.SetLiveResources("geometry", 1)
		c.SetRooms(1)
	})
}

func TestHandlerServesOwnRegistry(t *testing.T) {
	a := NewCollector("fitroom", zap.NewNop())
	b := NewCollector("fitroom", zap.NewNop())
	a.RecordHTTPRequest("GET", "/health", 200, time.Millisecond)

	rec := httptest.NewRecorder()
	a.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))
	require.Equal(t, 200, rec.Code)
	assert.True(t, strings.Contains(rec.Body.String(), `fitroom_http_requests_total{method="GET",route="/health",status="200"} 1`))

	rec = httptest.NewRecorder()
	b.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))
	assert.False(t, strings.Contains(rec.Body.String(), `route="/health"`))
}
