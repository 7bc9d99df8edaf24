package resilience

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var errHubDown = errors.New("dial tcp: connection refused")

type fakeClock struct{ t time.Time }

func (c *fakeClock) Now() time.Time          { return c.t }
func (c *fakeClock) Advance(d time.Duration) { c.t = c.t.Add(d) }

func newTestBreaker(settings Settings) (*Breaker, *fakeClock) {
	clock := &fakeClock{t: time.Unix(1_700_000_000, 0)}
	b := New("hub", settings)
	b.now = clock.Now
	b.resetWindow(clock.Now())
	return b, clock
}

func fail() error    { return errHubDown }
func succeed() error { return nil }

func TestBreakerStateTransitions(t *testing.T) {
	tests := []struct {
		name          string
		settings      Settings
		calls         []func() error
		expectedState State
	}{
		{
			name:          "stays closed on successes",
			settings:      Settings{},
			calls:         []func() error{succeed, succeed, succeed},
			expectedState: StateClosed,
		},
		{
			name:          "opens after consecutive failures",
			settings:      Settings{ReadyToTrip: ConsecutiveFailures(3)},
			calls:         []func() error{fail, fail, fail},
			expectedState: StateOpen,
		},
		{
			name:          "success resets the streak",
			settings:      Settings{ReadyToTrip: ConsecutiveFailures(3)},
			calls:         []func() error{fail, fail, succeed, fail, fail},
			expectedState: StateClosed,
		},
		{
			name:     "cancellation is not a hub failure",
			settings: Settings{ReadyToTrip: ConsecutiveFailures(2)},
			calls: []func() error{
				func() error { return context.Canceled },
				func() error { return context.Canceled },
			},
			expectedState: StateClosed,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			breaker, _ := newTestBreaker(tt.settings)

			for _, call := range tt.calls {
				_ = breaker.Do(call)
			}

			assert.Equal(t, tt.expectedState, breaker.State())
		})
	}
}

func TestBreakerCounts(t *testing.T) {
	breaker, _ := newTestBreaker(Settings{})

	require.NoError(t, breaker.Do(succeed))

	counts := breaker.Counts()
	assert.Equal(t, uint32(1), counts.Requests)
	assert.Equal(t, uint32(1), counts.TotalSuccesses)
	assert.Equal(t, uint32(1), counts.ConsecutiveSuccesses)
	assert.Equal(t, uint32(0), counts.TotalFailures)

	assert.ErrorIs(t, breaker.Do(fail), errHubDown)

	counts = breaker.Counts()
	assert.Equal(t, uint32(2), counts.Requests)
	assert.Equal(t, uint32(1), counts.TotalFailures)
	assert.Equal(t, uint32(1), counts.ConsecutiveFailures)
	assert.Equal(t, uint32(0), counts.ConsecutiveSuccesses)
}

func TestBreakerOpenRejects(t *testing.T) {
	breaker, _ := newTestBreaker(Settings{ReadyToTrip: ConsecutiveFailures(2)})

	_ = breaker.Do(fail)
	_ = breaker.Do(fail)
	require.Equal(t, StateOpen, breaker.State())

	called := false
	err := breaker.Do(func() error {
		called = true
		return nil
	})
	assert.ErrorIs(t, err, ErrCircuitOpen)
	assert.False(t, called, "open breaker must not call the hub")
}

func TestBreakerHalfOpenRecovers(t *testing.T) {
	breaker, clock := newTestBreaker(Settings{
		Probes:      2,
		OpenTimeout: 5 * time.Second,
		ReadyToTrip: ConsecutiveFailures(2),
	})

	_ = breaker.Do(fail)
	_ = breaker.Do(fail)
	require.Equal(t, StateOpen, breaker.State())

	clock.Advance(6 * time.Second)
	assert.Equal(t, StateHalfOpen, breaker.State())

	require.NoError(t, breaker.Do(succeed))
	assert.Equal(t, StateHalfOpen, breaker.State())
	require.NoError(t, breaker.Do(succeed))
	assert.Equal(t, StateClosed, breaker.State())
}

func TestBreakerHalfOpenFailureReopens(t *testing.T) {
	breaker, clock := newTestBreaker(Settings{
		OpenTimeout: time.Second,
		ReadyToTrip: ConsecutiveFailures(1),
	})

	_ = breaker.Do(fail)
	clock.Advance(2 * time.Second)
	require.Equal(t, StateHalfOpen, breaker.State())

	_ = breaker.Do(fail)
	assert.Equal(t, StateOpen, breaker.State())
}

func TestBreakerHalfOpenProbeQuota(t *testing.T) {
	breaker, clock := newTestBreaker(Settings{
		Probes:      1,
		OpenTimeout: time.Second,
		ReadyToTrip: ConsecutiveFailures(1),
	})

	_ = breaker.Do(fail)
	clock.Advance(2 * time.Second)

	err := breaker.Do(func() error {
		// a second caller arrives while the probe is still in flight
		assert.ErrorIs(t, breaker.Do(succeed), ErrTooManyProbes)
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, StateClosed, breaker.State())
}

func TestBreakerWindowClearsCounts(t *testing.T) {
	breaker, clock := newTestBreaker(Settings{
		Window:      time.Minute,
		ReadyToTrip: ConsecutiveFailures(2),
	})

	_ = breaker.Do(fail)
	clock.Advance(2 * time.Minute)
	_ = breaker.Do(fail)

	assert.Equal(t, StateClosed, breaker.State())
	assert.Equal(t, uint32(1), breaker.Counts().ConsecutiveFailures)
}

func TestBreakerCallbacks(t *testing.T) {
	var transitions []string

	breaker, clock := newTestBreaker(Settings{
		OpenTimeout: 10 * time.Millisecond,
		ReadyToTrip: ConsecutiveFailures(2),
		OnStateChange: func(name string, from State, to State) {
			assert.Equal(t, "hub", name)
			transitions = append(transitions, from.String()+"->"+to.String())
		},
	})

	_ = breaker.Do(fail)
	_ = breaker.Do(fail)
	clock.Advance(20 * time.Millisecond)
	assert.Equal(t, StateHalfOpen, breaker.State())

	assert.Equal(t, []string{"closed->open", "open->half-open"}, transitions)
}

func TestBreakerPanicCountsAsFailure(t *testing.T) {
	breaker, _ := newTestBreaker(Settings{ReadyToTrip: ConsecutiveFailures(1)})

	assert.Panics(t, func() {
		_ = breaker.Do(func() error { panic("boom") })
	})
	assert.Equal(t, StateOpen, breaker.State())
}
