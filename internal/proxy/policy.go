package proxy

import (
	"context"
	"net/http"
	"time"

	"github.com/GriffinCanCode/gridproxy/internal/domain/session"
)

// RetryPolicy is either NoRetry or FixedRetry.
type RetryPolicy interface {
	retries() int
	delay() time.Duration
}

// NoRetry sends a request exactly once.
type NoRetry struct{}

func (NoRetry) retries() int         { return 0 }
func (NoRetry) delay() time.Duration { return 0 }

// FixedRetry resends a request up to MaxRetries more times, Delay apart.
type FixedRetry struct {
	MaxRetries int
	Delay      time.Duration
}

func (f FixedRetry) retries() int         { return max(f.MaxRetries, 0) }
func (f FixedRetry) delay() time.Duration { return max(f.Delay, 0) }

// Policy is the timeout and retry behaviour for one dispatch.
type Policy struct {
	Name string
	// Timeout bounds each attempt, response body included. Zero means none.
	Timeout time.Duration
	Retry   RetryPolicy
}

// MaxAttempts is the total number of tries the policy allows.
func (p Policy) MaxAttempts() int {
	return p.retry().retries() + 1
}

func (p Policy) retry() RetryPolicy {
	if p.Retry == nil {
		return NoRetry{}
	}
	return p.Retry
}

// Outcome is the dispatcher's decision after an attempt.
type Outcome int

const (
	OutcomeSuccess Outcome = iota
	OutcomeRetry
	OutcomeGiveUp
)

// String returns the metric label for the outcome.
func (o Outcome) String() string {
	switch o {
	case OutcomeSuccess:
		return "success"
	case OutcomeRetry:
		return "retry"
	case OutcomeGiveUp:
		return "give_up"
	default:
		return "unknown"
	}
}

// Decide classifies attempt (1-based) given its transport error. Any HTTP
// response is a success; only transport failures are retried, and never
// once ctx is done.
func (p Policy) Decide(ctx context.Context, attempt int, err error) Outcome {
	switch {
	case err == nil:
		return OutcomeSuccess
	case ctx.Err() != nil:
		return OutcomeGiveUp
	case attempt < p.MaxAttempts():
		return OutcomeRetry
	default:
		return OutcomeGiveUp
	}
}

// Policies selects between the create-session and the ordinary policy.
type Policies struct {
	Route   session.Route
	Create  Policy
	Default Policy
}

// NewPolicies builds the standard pair: session creation may queue on the
// hub indefinitely and must never be replayed, everything else gets the
// per-attempt timeout and a fixed retry budget.
func NewPolicies(route session.Route, timeout time.Duration, retries int, delay time.Duration) Policies {
	return Policies{
		Route: route,
		Create: Policy{
			Name:  "create",
			Retry: NoRetry{},
		},
		Default: Policy{
			Name:    "default",
			Timeout: timeout,
			Retry:   FixedRetry{MaxRetries: retries, Delay: delay},
		},
	}
}

// IsCreate reports whether a request asks the hub for a new session.
func (p Policies) IsCreate(method, path string) bool {
	return method == http.MethodPost && p.Route.IsNewSession(path)
}

// For returns the policy for a request.
func (p Policies) For(method, path string) Policy {
	if p.IsCreate(method, path) {
		return p.Create
	}
	return p.Default
}
