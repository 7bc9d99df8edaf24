package monitoring

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func TestNewMetricsIsolated(t *testing.T) {
	// private registries: creating two must not panic on duplicate registration
	a := NewMetrics()
	b := NewMetrics()

	a.RecordAttempt("retry")
	assert.Equal(t, 1.0, testutil.ToFloat64(a.UpstreamAttempts.WithLabelValues("retry")))
	assert.Equal(t, 0.0, testutil.ToFloat64(b.UpstreamAttempts.WithLabelValues("retry")))
}

func TestMiddlewareUsesKind(t *testing.T) {
	m := NewMetrics()
	router := gin.New()
	router.Use(Middleware(m))
	router.NoRoute(func(c *gin.Context) {
		c.Set(KindKey, "create")
		c.Status(http.StatusOK)
	})
	router.GET("/_proxy/ping", func(c *gin.Context) { c.Status(http.StatusNoContent) })

	req := httptest.NewRequest(http.MethodPost, "/wd/hub/session", strings.NewReader("{}"))
	router.ServeHTTP(httptest.NewRecorder(), req)
	router.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/_proxy/ping", nil))

	assert.Equal(t, 1.0, testutil.ToFloat64(m.RequestsTotal.WithLabelValues("POST", "create", "200")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.RequestsTotal.WithLabelValues("GET", "/_proxy/ping", "204")))
	assert.Equal(t, 0.0, testutil.ToFloat64(m.InFlight))
}

func TestSnapshot(t *testing.T) {
	m := NewMetrics()

	m.RecordHTTPRequest("GET", "other", "200", 0, 0, 0)
	m.RecordHTTPRequest("GET", "other", "502", 0, 0, 0)
	m.RecordAttempt("retry")
	m.RecordAttempt("success")
	m.RecordUpstreamError("transport")
	m.IncSessionsCreated()

	s := m.Snapshot()
	assert.Equal(t, int64(2), s.TotalRequests)
	assert.Equal(t, int64(1), s.TotalErrors)
	assert.Equal(t, int64(1), s.UpstreamRetries)
	assert.Equal(t, int64(1), s.UpstreamFailed)
	assert.Equal(t, int64(1), s.SessionsCreated)
	assert.GreaterOrEqual(t, s.UptimeSeconds, 0.0)
}

func TestTimer(t *testing.T) {
	m := NewMetrics()

	NewTimer(m, "redis", "put").StopErr(nil, "write")
	NewTimer(m, "redis", "put").StopErr(errors.New("down"), "write")

	assert.Equal(t, 1.0, testutil.ToFloat64(m.DependencyCalls.WithLabelValues("redis", "put", "success")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.DependencyCalls.WithLabelValues("redis", "put", "error")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.DependencyErrors.WithLabelValues("redis", "put", "write")))

	var nilTimer *Timer
	nilTimer.Stop("success")
}

func TestHandlerExposition(t *testing.T) {
	m := NewMetrics()
	m.SetBreakerOpen(true)

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	body := rec.Body.String()
	assert.Contains(t, body, "gridproxy_breaker_open 1")
	assert.Contains(t, body, "gridproxy_uptime_seconds")
}
