package hub

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/GriffinCanCode/gridproxy/internal/infrastructure/monitoring"
)

func hubServer(t *testing.T, status int, body string) string {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/wd/hub/status", r.URL.Path)
		w.WriteHeader(status)
		_, _ = w.Write([]byte(body))
	}))
	t.Cleanup(srv.Close)
	return strings.TrimPrefix(srv.URL, "http://")
}

func TestProbeCheck(t *testing.T) {
	tests := []struct {
		name      string
		status    int
		body      string
		wantReady bool
		wantMsg   string
	}{
		{
			name:      "grid 4 ready",
			status:    http.StatusOK,
			body:      `{"value":{"ready":true,"message":"Selenium Grid ready."}}`,
			wantReady: true,
			wantMsg:   "Selenium Grid ready.",
		},
		{
			name:      "grid 4 not ready",
			status:    http.StatusOK,
			body:      `{"value":{"ready":false,"message":"no nodes"}}`,
			wantReady: false,
			wantMsg:   "no nodes",
		},
		{
			name:      "legacy status",
			status:    http.StatusOK,
			body:      `{"status":0,"value":{}}`,
			wantReady: true,
		},
		{
			name:      "server error",
			status:    http.StatusInternalServerError,
			body:      `{"value":{"ready":true}}`,
			wantReady: false,
		},
		{
			name:      "not json",
			status:    http.StatusOK,
			body:      `<html>`,
			wantReady: false,
			wantMsg:   "status payload is not JSON",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			addr := hubServer(t, tt.status, tt.body)
			probe := NewProbe(addr, "/wd/hub/status", time.Second, monitoring.NewMetrics())

			status := probe.Check(context.Background())

			assert.True(t, status.Reachable)
			assert.Equal(t, tt.status, status.StatusCode)
			assert.Equal(t, tt.wantReady, status.Ready)
			if tt.wantMsg != "" {
				assert.Equal(t, tt.wantMsg, status.Message)
			}
		})
	}
}

func TestProbeUnreachable(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	addr := strings.TrimPrefix(srv.URL, "http://")
	srv.Close()

	status := NewProbe(addr, "/wd/hub/status", time.Second, nil).Check(context.Background())

	assert.False(t, status.Reachable)
	assert.False(t, status.Ready)
	assert.NotEmpty(t, status.Message)
}
