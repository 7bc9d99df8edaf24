package hub

import (
	"context"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/tidwall/gjson"

	"github.com/GriffinCanCode/gridproxy/internal/infrastructure/monitoring"
)

// Status is the result of one hub status probe.
type Status struct {
	Reachable  bool          `json:"reachable"`
	Ready      bool          `json:"ready"`
	StatusCode int           `json:"status_code,omitempty"`
	Message    string        `json:"message,omitempty"`
	Latency    time.Duration `json:"latency_ns"`
}

// Probe queries the hub's status endpoint. It is independent of the proxy
// data path and never retries.
type Probe struct {
	client     *resty.Client
	statusPath string
	metrics    *monitoring.Metrics
}

// NewProbe creates a probe for the hub at forward (HOST:PORT).
func NewProbe(forward, statusPath string, timeout time.Duration, metrics *monitoring.Metrics) *Probe {
	client := resty.New().
		SetBaseURL("http://"+forward).
		SetTimeout(timeout).
		SetHeader("User-Agent", "gridproxy-probe/1.0").
		SetHeader("Accept", "application/json")

	return &Probe{
		client:     client,
		statusPath: statusPath,
		metrics:    metrics,
	}
}

// Check performs a single GET on the status endpoint.
func (p *Probe) Check(ctx context.Context) Status {
	timer := monitoring.NewTimer(p.metrics, "hub", "status")
	start := time.Now()

	resp, err := p.client.R().SetContext(ctx).Get(p.statusPath)
	status := Status{Latency: time.Since(start)}
	if err != nil {
		status.Message = err.Error()
		timer.StopErr(err, "unreachable")
		return status
	}
	timer.Stop("success")

	status.Reachable = true
	status.StatusCode = resp.StatusCode()
	status.Ready, status.Message = readiness(resp.Body())
	if !resp.IsSuccess() {
		status.Ready = false
	}
	return status
}

// readiness understands Grid 3/4 ({"value":{"ready":..}}) and legacy
// ({"status":0}) status payloads.
func readiness(body []byte) (bool, string) {
	if !gjson.ValidBytes(body) {
		return false, "status payload is not JSON"
	}

	parsed := gjson.ParseBytes(body)
	message := parsed.Get("value.message").String()

	if ready := parsed.Get("value.ready"); ready.Exists() {
		return ready.Bool(), message
	}
	if legacy := parsed.Get("status"); legacy.Exists() {
		return legacy.Int() == 0, message
	}
	return false, message
}
