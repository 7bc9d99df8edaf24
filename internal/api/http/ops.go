package http

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/GriffinCanCode/gridproxy/internal/infrastructure/monitoring"
	"github.com/GriffinCanCode/gridproxy/internal/infrastructure/resilience"
	"github.com/GriffinCanCode/gridproxy/internal/providers/hub"
	"github.com/GriffinCanCode/gridproxy/internal/providers/sessionstore"
)

// Prefix is where the proxy's own endpoints live. Everything else belongs
// to the hub.
const Prefix = "/_proxy"

// Ops serves health, metrics and session-owner lookups.
type Ops struct {
	probe   *hub.Probe
	metrics *monitoring.Metrics
	store   sessionstore.Store
	breaker *resilience.Breaker
}

// NewOps creates the ops handlers. store and breaker may be nil.
func NewOps(probe *hub.Probe, metrics *monitoring.Metrics, store sessionstore.Store, breaker *resilience.Breaker) *Ops {
	return &Ops{
		probe:   probe,
		metrics: metrics,
		store:   store,
		breaker: breaker,
	}
}

// Register mounts the handlers on group.
func (o *Ops) Register(group *gin.RouterGroup) {
	group.GET("/healthz", o.Healthz)
	group.GET("/metrics", gin.WrapH(o.metrics.Handler()))
	group.GET("/sessions", o.LatestOwner)
	group.GET("/sessions/:id", o.SessionOwner)
}

// HealthResponse is the body of GET /_proxy/healthz.
type HealthResponse struct {
	Status    string                     `json:"status"`
	Timestamp time.Time                  `json:"timestamp"`
	Hub       hub.Status                 `json:"hub"`
	Breaker   string                     `json:"breaker,omitempty"`
	Metrics   monitoring.MetricsSnapshot `json:"metrics"`
}

// Healthz probes the hub. It answers 503 while the hub is unreachable or
// not ready, so load balancers stop routing to a proxy with a dead hub.
func (o *Ops) Healthz(c *gin.Context) {
	status := o.probe.Check(c.Request.Context())

	resp := HealthResponse{
		Status:    "ok",
		Timestamp: time.Now(),
		Hub:       status,
		Metrics:   o.metrics.Snapshot(),
	}
	if o.breaker != nil {
		resp.Breaker = o.breaker.State().String()
	}

	code := http.StatusOK
	if !status.Ready {
		resp.Status = "degraded"
		code = http.StatusServiceUnavailable
	}
	c.JSON(code, resp)
}

// SessionOwner returns the user who created a session.
func (o *Ops) SessionOwner(c *gin.Context) {
	if o.store == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "session store disabled"})
		return
	}

	owner, err := o.store.Owner(c.Request.Context(), c.Param("id"))
	o.writeOwner(c, owner, err)
}

// LatestOwner returns the most recently recorded owner.
func (o *Ops) LatestOwner(c *gin.Context) {
	if o.store == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "session store disabled"})
		return
	}

	owner, err := o.store.Latest(c.Request.Context())
	o.writeOwner(c, owner, err)
}

func (o *Ops) writeOwner(c *gin.Context, owner sessionstore.Owner, err error) {
	switch {
	case errors.Is(err, sessionstore.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
	case err != nil:
		_ = c.Error(err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "session store unavailable"})
	default:
		c.JSON(http.StatusOK, owner)
	}
}
