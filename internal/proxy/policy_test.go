package proxy

import (
	"context"
	"errors"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/GriffinCanCode/gridproxy/internal/domain/session"
)

const testRoute = "/wd/hub/session"

func TestMaxAttempts(t *testing.T) {
	assert.Equal(t, 1, Policy{}.MaxAttempts())
	assert.Equal(t, 1, Policy{Retry: NoRetry{}}.MaxAttempts())
	assert.Equal(t, 4, Policy{Retry: FixedRetry{MaxRetries: 3}}.MaxAttempts())
	assert.Equal(t, 1, Policy{Retry: FixedRetry{MaxRetries: -2}}.MaxAttempts())
}

func TestDecide(t *testing.T) {
	errReset := errors.New("connection reset")
	policy := Policy{Retry: FixedRetry{MaxRetries: 3, Delay: time.Millisecond}}

	canceled, cancel := context.WithCancel(context.Background())
	cancel()

	tests := []struct {
		name    string
		ctx     context.Context
		attempt int
		err     error
		want    Outcome
	}{
		{"response", context.Background(), 1, nil, OutcomeSuccess},
		{"response after retries", context.Background(), 4, nil, OutcomeSuccess},
		{"first failure", context.Background(), 1, errReset, OutcomeRetry},
		{"third failure", context.Background(), 3, errReset, OutcomeRetry},
		{"budget spent", context.Background(), 4, errReset, OutcomeGiveUp},
		{"client gone", canceled, 1, errReset, OutcomeGiveUp},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, policy.Decide(tt.ctx, tt.attempt, tt.err))
		})
	}
}

func TestDecideNoRetry(t *testing.T) {
	policy := Policy{Retry: NoRetry{}}
	assert.Equal(t, OutcomeGiveUp, policy.Decide(context.Background(), 1, errors.New("refused")))
}

func TestOutcomeString(t *testing.T) {
	assert.Equal(t, "success", OutcomeSuccess.String())
	assert.Equal(t, "retry", OutcomeRetry.String())
	assert.Equal(t, "give_up", OutcomeGiveUp.String())
	assert.Equal(t, "unknown", Outcome(42).String())
}

func TestPoliciesFor(t *testing.T) {
	policies := NewPolicies(session.NewRoute(testRoute), 60*time.Second, 3, 100*time.Millisecond)

	tests := []struct {
		method string
		path   string
		create bool
	}{
		{http.MethodPost, testRoute, true},
		{http.MethodPost, testRoute + "/", true},
		{http.MethodPost, testRoute + "?trace=1", true},
		{http.MethodGet, testRoute, false},
		{http.MethodPost, testRoute + "/abc/url", false},
		{http.MethodDelete, testRoute + "/abc", false},
		{http.MethodPost, "/other/wd/hub/session", false},
	}

	for _, tt := range tests {
		t.Run(tt.method+" "+tt.path, func(t *testing.T) {
			assert.Equal(t, tt.create, policies.IsCreate(tt.method, tt.path))

			policy := policies.For(tt.method, tt.path)
			if tt.create {
				assert.Equal(t, "create", policy.Name)
				assert.Zero(t, policy.Timeout, "session creation may queue on the hub")
				assert.Equal(t, 1, policy.MaxAttempts())
				return
			}
			assert.Equal(t, "default", policy.Name)
			assert.Equal(t, 60*time.Second, policy.Timeout)
			assert.Equal(t, 4, policy.MaxAttempts())
		})
	}
}
