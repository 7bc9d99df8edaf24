package tracing

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/GriffinCanCode/gridproxy/internal/infrastructure/logging"
	"github.com/GriffinCanCode/gridproxy/internal/shared/id"
)

func newObservedTracer(t *testing.T) (*Tracer, *observer.ObservedLogs) {
	t.Helper()
	core, logs := observer.New(zapcore.DebugLevel)
	tracer := New(logging.Wrap(zap.New(core)), 16)
	t.Cleanup(tracer.Close)
	return tracer, logs
}

func TestStartSpanMintsRequestID(t *testing.T) {
	tracer, _ := newObservedTracer(t)

	span, ctx := tracer.StartSpan(context.Background(), "root")

	assert.True(t, id.IsRequestID(span.RequestID.String()))
	assert.Equal(t, span.RequestID, RequestID(ctx))
	assert.Equal(t, span.SpanID, SpanID(ctx))
	assert.Empty(t, span.ParentID)
}

func TestNestedSpanInheritsRequestID(t *testing.T) {
	tracer, _ := newObservedTracer(t)

	root, ctx := tracer.StartSpan(context.Background(), "root")
	child, childCtx := tracer.StartSpan(ctx, "dispatch")

	assert.Equal(t, root.RequestID, child.RequestID)
	assert.Equal(t, root.SpanID, child.ParentID)
	assert.Equal(t, child.SpanID, SpanID(childCtx))
}

func TestSubmitLogsSpan(t *testing.T) {
	tracer, logs := newObservedTracer(t)

	span, _ := tracer.StartSpan(context.Background(), "dispatch")
	span.SetTag("target", "http://hub/wd/hub/session")
	span.SetError(errors.New("connection refused"))
	tracer.Submit(span)
	tracer.Close()

	entries := logs.FilterMessage("span completed with error").All()
	require.Len(t, entries, 1)
	fields := entries[0].ContextMap()
	assert.Equal(t, span.RequestID.String(), fields[logging.FieldRequestID])
	assert.Equal(t, "dispatch", fields["operation"])
	assert.Equal(t, "http://hub/wd/hub/session", fields["target"])
}

func TestSpanLoggerKeepsCallerName(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	tracer := New(logging.Wrap(zap.New(core).Named("gridproxy")).Component("trace"), 16)

	span, _ := tracer.StartSpan(context.Background(), "http.request")
	tracer.Submit(span)
	tracer.Close()

	entries := logs.FilterMessage("span completed").All()
	require.Len(t, entries, 1)
	assert.Equal(t, "gridproxy.trace", entries[0].LoggerName)
}

func TestSubmitAfterCloseIsDropped(t *testing.T) {
	tracer, logs := newObservedTracer(t)
	tracer.Close()

	span, _ := tracer.StartSpan(context.Background(), "late")
	tracer.Submit(span)

	assert.Equal(t, 0, logs.Len())
}

func TestHTTPMiddlewareFreshIDPerRequest(t *testing.T) {
	gin.SetMode(gin.TestMode)
	tracer, _ := newObservedTracer(t)

	var seen []id.RequestID
	router := gin.New()
	router.Use(HTTPMiddleware(tracer))
	router.NoRoute(func(c *gin.Context) {
		reqID := RequestID(c.Request.Context())
		assert.Equal(t, reqID.String(), c.GetString(ContextKey))
		seen = append(seen, reqID)
		c.Status(http.StatusOK)
	})

	for i := 0; i < 2; i++ {
		rec := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodGet, "/wd/hub/session/abc/url", nil)
		req.Header.Set("X-Trace-ID", "client-supplied")
		router.ServeHTTP(rec, req)

		assert.Empty(t, rec.Header().Get("X-Trace-ID"), "no trace headers leak to the client")
	}

	require.Len(t, seen, 2)
	assert.NotEqual(t, seen[0], seen[1])
	for _, reqID := range seen {
		assert.True(t, id.IsRequestID(reqID.String()))
	}
}
