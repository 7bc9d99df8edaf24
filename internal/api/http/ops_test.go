package http

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tidwall/gjson"

	"github.com/GriffinCanCode/gridproxy/internal/infrastructure/monitoring"
	"github.com/GriffinCanCode/gridproxy/internal/infrastructure/resilience"
	"github.com/GriffinCanCode/gridproxy/internal/providers/hub"
	"github.com/GriffinCanCode/gridproxy/internal/providers/sessionstore"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func hubAddr(t *testing.T, status int, body string) string {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(status)
		_, _ = w.Write([]byte(body))
	}))
	t.Cleanup(srv.Close)
	return strings.TrimPrefix(srv.URL, "http://")
}

func newOpsRouter(t *testing.T, forward string, store sessionstore.Store, breaker *resilience.Breaker) *gin.Engine {
	t.Helper()
	metrics := monitoring.NewMetrics()
	probe := hub.NewProbe(forward, "/wd/hub/status", time.Second, metrics)

	r := gin.New()
	NewOps(probe, metrics, store, breaker).Register(r.Group(Prefix))
	return r
}

func get(r *gin.Engine, path string) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
	return rec
}

func TestHealthzReady(t *testing.T) {
	forward := hubAddr(t, http.StatusOK, `{"value":{"ready":true,"message":"Selenium Grid ready."}}`)
	breaker := resilience.New("hub", resilience.Settings{})
	r := newOpsRouter(t, forward, nil, breaker)

	rec := get(r, "/_proxy/healthz")

	require.Equal(t, http.StatusOK, rec.Code)
	body := rec.Body.String()
	assert.Equal(t, "ok", gjson.Get(body, "status").String())
	assert.True(t, gjson.Get(body, "hub.ready").Bool())
	assert.Equal(t, "Selenium Grid ready.", gjson.Get(body, "hub.message").String())
	assert.Equal(t, "closed", gjson.Get(body, "breaker").String())
	assert.True(t, gjson.Get(body, "metrics.uptime_seconds").Exists())
}

func TestHealthzHubDown(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	forward := strings.TrimPrefix(srv.URL, "http://")
	srv.Close()

	r := newOpsRouter(t, forward, nil, nil)
	rec := get(r, "/_proxy/healthz")

	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Equal(t, "degraded", gjson.Get(rec.Body.String(), "status").String())
	assert.False(t, gjson.Get(rec.Body.String(), "hub.reachable").Bool())
	assert.False(t, gjson.Get(rec.Body.String(), "breaker").Exists())
}

func TestMetricsEndpoint(t *testing.T) {
	r := newOpsRouter(t, "127.0.0.1:1", nil, nil)
	rec := get(r, "/_proxy/metrics")

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "gridproxy_uptime_seconds")
}

func TestSessionOwner(t *testing.T) {
	store := sessionstore.NewMemory(time.Hour)
	require.NoError(t, store.Put(context.Background(), "u1", "hub-42"))

	r := newOpsRouter(t, "127.0.0.1:1", store, nil)

	rec := get(r, "/_proxy/sessions/hub-42")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "u1", gjson.Get(rec.Body.String(), "user").String())
	assert.Equal(t, "hub-42", gjson.Get(rec.Body.String(), "session_id").String())

	rec = get(r, "/_proxy/sessions/unknown")
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = get(r, "/_proxy/sessions")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "u1", gjson.Get(rec.Body.String(), "user").String())
}

func TestSessionOwnerWithoutStore(t *testing.T) {
	r := newOpsRouter(t, "127.0.0.1:1", nil, nil)

	assert.Equal(t, http.StatusNotFound, get(r, "/_proxy/sessions/hub-42").Code)
	assert.Equal(t, http.StatusNotFound, get(r, "/_proxy/sessions").Code)
}
