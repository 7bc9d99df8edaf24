package tracing

import (
	"strconv"

	"github.com/gin-gonic/gin"
)

// ContextKey is the gin context key holding the request's correlation id
const ContextKey = "request_id"

// HTTPMiddleware starts a root span for every request. The span's request
// id becomes the correlation id for all logs of the request. Nothing is
// read from or written to the HTTP headers, so the hub and the client see
// the exchange unchanged.
func HTTPMiddleware(tracer *Tracer) gin.HandlerFunc {
	return func(c *gin.Context) {
		// Detach from any id an earlier middleware may have set
		ctx := WithRequestID(c.Request.Context(), "")

		span, ctx := tracer.StartSpan(ctx, "http.request")
		span.SetTag("http.method", c.Request.Method)
		span.SetTag("http.path", c.Request.URL.Path)

		c.Request = c.Request.WithContext(ctx)
		c.Set(ContextKey, span.RequestID.String())

		c.Next()

		span.SetStatus(c.Writer.Status())
		span.SetTag("http.status", strconv.Itoa(c.Writer.Status()))
		if len(c.Errors) > 0 {
			span.SetError(c.Errors.Last())
		}

		tracer.Submit(span)
	}
}
