package proxy

import (
	"context"
	"errors"
	"net"
	"net/http"
	"time"

	"github.com/hashicorp/go-retryablehttp"
	"go.uber.org/zap"

	"github.com/GriffinCanCode/gridproxy/internal/infrastructure/config"
	"github.com/GriffinCanCode/gridproxy/internal/infrastructure/logging"
	"github.com/GriffinCanCode/gridproxy/internal/infrastructure/monitoring"
	"github.com/GriffinCanCode/gridproxy/internal/infrastructure/resilience"
)

// NewTransport builds the connection pool shared by every dispatch.
// Compression is left to the client and hub so bodies pass through as-is.
func NewTransport(cfg config.UpstreamConfig) *http.Transport {
	dialer := &net.Dialer{
		Timeout:   cfg.DialTimeout.Duration,
		KeepAlive: 30 * time.Second,
	}

	return &http.Transport{
		Proxy:                 nil,
		DialContext:           dialer.DialContext,
		MaxIdleConns:          cfg.MaxIdleConns,
		MaxIdleConnsPerHost:   cfg.MaxIdleConnsPerHost,
		IdleConnTimeout:       cfg.IdleConnTimeout.Duration,
		ExpectContinueTimeout: time.Second,
		DisableCompression:    true,
		ForceAttemptHTTP2:     false,
	}
}

// sharedTransport hides CloseIdleConnections from retryablehttp, which
// calls it after every failed dispatch and would otherwise flush the pool
// for all in-flight requests.
type sharedTransport struct {
	rt http.RoundTripper
}

func (t sharedTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	return t.rt.RoundTrip(req)
}

// Dispatcher sends requests to the hub under a Policy.
type Dispatcher struct {
	transport http.RoundTripper
	breaker   *resilience.Breaker
	metrics   *monitoring.Metrics
	logger    *logging.Logger
}

// DispatcherOption configures a Dispatcher.
type DispatcherOption func(*Dispatcher)

// WithBreaker guards every dispatch with b.
func WithBreaker(b *resilience.Breaker) DispatcherOption {
	return func(d *Dispatcher) { d.breaker = b }
}

// WithDispatcherMetrics records attempts and failures on m.
func WithDispatcherMetrics(m *monitoring.Metrics) DispatcherOption {
	return func(d *Dispatcher) {
		if m != nil {
			d.metrics = m
		}
	}
}

// WithDispatcherLogger sets the logger for retries and failures.
func WithDispatcherLogger(l *logging.Logger) DispatcherOption {
	return func(d *Dispatcher) {
		if l != nil {
			d.logger = l
		}
	}
}

// NewDispatcher creates a dispatcher over a shared transport.
func NewDispatcher(transport http.RoundTripper, opts ...DispatcherOption) *Dispatcher {
	if transport == nil {
		transport = http.DefaultTransport
	}
	d := &Dispatcher{
		transport: sharedTransport{rt: transport},
		logger:    logging.NewNop(),
	}
	for _, opt := range opts {
		opt(d)
	}
	if d.metrics == nil {
		d.metrics = monitoring.NewMetrics()
	}
	return d
}

// call is the per-dispatch state: a retryablehttp client configured for
// one policy plus the attempt counter its hooks maintain.
type call struct {
	client   *retryablehttp.Client
	attempts int
}

func (d *Dispatcher) newCall(rc *RequestContext, policy Policy, log *logging.Logger) *call {
	c := &call{}
	retry := policy.retry()

	c.client = &retryablehttp.Client{
		HTTPClient: &http.Client{
			Transport: d.transport,
			Timeout:   policy.Timeout,
			// Redirects belong to the client, not to us.
			CheckRedirect: func(*http.Request, []*http.Request) error {
				return http.ErrUseLastResponse
			},
		},
		Logger:       nil,
		RetryMax:     retry.retries(),
		RetryWaitMin: retry.delay(),
		RetryWaitMax: retry.delay(),
		Backoff: func(min, _ time.Duration, _ int, _ *http.Response) time.Duration {
			return min
		},
		RequestLogHook: func(_ retryablehttp.Logger, _ *http.Request, _ int) {
			c.attempts++
		},
		CheckRetry: func(ctx context.Context, _ *http.Response, err error) (bool, error) {
			outcome := policy.Decide(ctx, c.attempts, err)
			d.metrics.RecordAttempt(outcome.String())

			if outcome == OutcomeRetry {
				log.Warn("upstream attempt failed, retrying",
					zap.String("target", rc.TargetURL),
					zap.Int("attempt", c.attempts),
					zap.Int("max_attempts", policy.MaxAttempts()),
					zap.Duration("delay", retry.delay()),
					zap.Error(err),
				)
			}
			if ctxErr := ctx.Err(); ctxErr != nil {
				return false, ctxErr
			}
			return outcome == OutcomeRetry, nil
		},
		ErrorHandler: func(resp *http.Response, err error, numTries int) (*http.Response, error) {
			if resp != nil {
				resp.Body.Close()
			}
			return nil, upstreamError(rc.TargetURL, numTries, err)
		},
	}
	return c
}

// Dispatch sends rc upstream and returns the hub's response, whatever its
// status. It fails with *UpstreamError when no response was obtained.
func (d *Dispatcher) Dispatch(ctx context.Context, rc *RequestContext, policy Policy) (*http.Response, error) {
	start := time.Now()
	defer func() { d.metrics.RecordDispatch(policy.Name, time.Since(start)) }()

	log := d.logger.ForRequest(rc.ID.String())

	req, err := rc.upstreamRequest(ctx)
	if err != nil {
		return nil, d.fail(log, upstreamError(rc.TargetURL, 0, err), "request")
	}

	c := d.newCall(rc, policy, log)

	var resp *http.Response
	send := func() error {
		var sendErr error
		resp, sendErr = c.client.Do(req)
		return sendErr
	}

	if d.breaker != nil {
		err = d.breaker.Do(send)
	} else {
		err = send()
	}

	if err != nil {
		return nil, d.fail(log, upstreamError(rc.TargetURL, c.attempts, err), failureReason(err))
	}
	return resp, nil
}

func failureReason(err error) string {
	var netErr net.Error
	switch {
	case errors.Is(err, resilience.ErrCircuitOpen), errors.Is(err, resilience.ErrTooManyProbes):
		return "breaker_open"
	case errors.Is(err, context.Canceled):
		return "canceled"
	case errors.Is(err, context.DeadlineExceeded):
		return "timeout"
	case errors.As(err, &netErr) && netErr.Timeout():
		return "timeout"
	default:
		return "transport"
	}
}

func (d *Dispatcher) fail(log *logging.Logger, err *UpstreamError, reason string) error {
	d.metrics.RecordUpstreamError(reason)

	fields := []zap.Field{
		zap.String("target", err.Target),
		zap.Int("attempts", err.Attempts),
		zap.String("reason", reason),
		zap.Error(err.Err),
	}
	if reason == "canceled" {
		log.Info("upstream dispatch abandoned, client went away", fields...)
	} else {
		log.Error("upstream dispatch failed", fields...)
	}
	return err
}
