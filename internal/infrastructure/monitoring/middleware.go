package monitoring

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
)

// KindKey is the gin context key handlers set to label a request with its
// WebDriver kind. Requests without it are labelled by route.
const KindKey = "gridproxy.kind"

// Middleware creates a Gin middleware for metrics collection
func Middleware(metrics *Metrics) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		method := c.Request.Method

		reqSize := c.Request.ContentLength
		if reqSize < 0 {
			reqSize = 0
		}

		metrics.InFlight.Inc()
		defer metrics.InFlight.Dec()

		c.Next()

		duration := time.Since(start)
		status := strconv.Itoa(c.Writer.Status())
		respSize := int64(c.Writer.Size())
		if respSize < 0 {
			respSize = 0
		}

		metrics.RecordHTTPRequest(method, requestKind(c), status, duration, reqSize, respSize)
	}
}

func requestKind(c *gin.Context) string {
	if kind := c.GetString(KindKey); kind != "" {
		return kind
	}
	if route := c.FullPath(); route != "" {
		return route
	}
	return "unmatched"
}

// Timer measures dependency call duration
type Timer struct {
	start      time.Time
	metrics    *Metrics
	dependency string
	method     string
}

// NewTimer creates a new timer
func NewTimer(metrics *Metrics, dependency, method string) *Timer {
	return &Timer{
		start:      time.Now(),
		metrics:    metrics,
		dependency: dependency,
		method:     method,
	}
}

// Stop stops the timer and records the duration
func (t *Timer) Stop(status string) {
	if t == nil || t.metrics == nil {
		return
	}
	t.metrics.RecordDependencyCall(t.dependency, t.method, status, time.Since(t.start))
}

// StopErr records success or failure from err, tagging failures with errorType.
func (t *Timer) StopErr(err error, errorType string) {
	if t == nil || t.metrics == nil {
		return
	}
	if err != nil {
		t.Stop("error")
		t.metrics.RecordDependencyError(t.dependency, t.method, errorType)
		return
	}
	t.Stop("success")
}
