package resilience

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var errBoom = errors.New("boom")

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func run(b *Breaker, fail bool) error {
	return b.Do(context.Background(), func(context.Context) error {
		if fail {
			return errBoom
		}
		return nil
	})
}

func TestBreakerStateTransitions(t *testing.T) {
	tests := []struct {
		name          string
		requests      []bool // true = success
		expectedState State
	}{
		{name: "stays closed on successes", requests: []bool{true, true, true}, expectedState: StateClosed},
		{name: "stays closed below threshold", requests: []bool{false, false, true, false}, expectedState: StateClosed},
		{name: "opens after consecutive failures", requests: []bool{false, false, false}, expectedState: StateOpen},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			breaker := New("test", Settings{
				ReadyToTrip: func(counts Counts) bool { return counts.ConsecutiveFailures >= 3 },
			})

			for _, success := range tt.requests {
				_ = run(breaker, !success)
			}

			assert.Equal(t, tt.expectedState, breaker.State())
		})
	}
}

func TestBreakerCounts(t *testing.T) {
	breaker := New("test", Settings{})

	require.NoError(t, run(breaker, false))
	assert.ErrorIs(t, run(breaker, true), errBoom)

	counts := breaker.Counts()
	assert.Equal(t, uint32(2), counts.Requests)
	assert.Equal(t, uint32(1), counts.TotalSuccesses)
	assert.Equal(t, uint32(1), counts.TotalFailures)
	assert.Equal(t, uint32(1), counts.ConsecutiveFailures)
	assert.Equal(t, uint32(0), counts.ConsecutiveSuccesses)
}

func TestBreakerOpenFailsFast(t *testing.T) {
	breaker := New("test", Settings{
		ReadyToTrip: func(counts Counts) bool { return counts.ConsecutiveFailures >= 2 },
	})
	_ = run(breaker, true)
	_ = run(breaker, true)

	called := false
	err := breaker.Do(context.Background(), func(context.Context) error {
		called = true
		return nil
	})

	assert.ErrorIs(t, err, ErrCircuitOpen)
	assert.False(t, called)
}

func TestBreakerHalfOpenRecovery(t *testing.T) {
	clock := newFakeClock()
	var transitions []string

	breaker := New("test", Settings{
		MaxRequests: 2,
		Timeout:     time.Minute,
		ReadyToTrip: func(counts Counts) bool { return counts.ConsecutiveFailures >= 2 },
		OnStateChange: func(_ string, from, to State) {
			transitions = append(transitions, from.String()+"->"+to.String())
		},
		Now: clock.Now,
	})

	_ = run(breaker, true)
	_ = run(breaker, true)
	require.Equal(t, StateOpen, breaker.State())

	clock.Advance(time.Minute + time.Second)
	require.Equal(t, StateHalfOpen, breaker.State())

	require.NoError(t, run(breaker, false))
	require.NoError(t, run(breaker, false))

	assert.Equal(t, StateClosed, breaker.State())
	assert.Equal(t, []string{"closed->open", "open->half-open", "half-open->closed"}, transitions)
}

func TestBreakerHalfOpenFailureReopens(t *testing.T) {
	clock := newFakeClock()
	breaker := New("test", Settings{
		Timeout:     time.Minute,
		ReadyToTrip: func(counts Counts) bool { return counts.ConsecutiveFailures >= 1 },
		Now:         clock.Now,
	})

	_ = run(breaker, true)
	clock.Advance(2 * time.Minute)
	require.Equal(t, StateHalfOpen, breaker.State())

	_ = run(breaker, true)
	assert.Equal(t, StateOpen, breaker.State())
}

func TestBreakerHalfOpenLimitsTrialCalls(t *testing.T) {
	clock := newFakeClock()
	breaker := New("test", Settings{
		MaxRequests: 1,
		Timeout:     time.Minute,
		ReadyToTrip: func(counts Counts) bool { return counts.ConsecutiveFailures >= 1 },
		Now:         clock.Now,
	})

	_ = run(breaker, true)
	clock.Advance(2 * time.Minute)

	release := make(chan struct{})
	done := make(chan error)
	go func() {
		done <- breaker.Do(context.Background(), func(context.Context) error {
			<-release
			return nil
		})
	}()

	require.Eventually(t, func() bool { return breaker.Counts().Requests == 1 }, time.Second, time.Millisecond)
	assert.ErrorIs(t, run(breaker, false), ErrTooManyRequests)

	close(release)
	require.NoError(t, <-done)
	assert.Equal(t, StateClosed, breaker.State())
}

func TestBreakerIsSuccessfulClassifier(t *testing.T) {
	errDenied := errors.New("denied")
	breaker := New("test", Settings{
		ReadyToTrip:  func(counts Counts) bool { return counts.ConsecutiveFailures >= 1 },
		IsSuccessful: func(err error) bool { return err == nil || errors.Is(err, errDenied) },
	})

	err := breaker.Do(context.Background(), func(context.Context) error { return errDenied })

	assert.ErrorIs(t, err, errDenied)
	assert.Equal(t, StateClosed, breaker.State())
}

func TestBreakerCancelledContext(t *testing.T) {
	breaker := New("test", Settings{
		ReadyToTrip: func(counts Counts) bool { return counts.ConsecutiveFailures >= 1 },
	})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := breaker.Do(ctx, func(context.Context) error { return nil })
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, uint32(0), breaker.Counts().Requests)

	ctx, cancel = context.WithCancel(context.Background())
	err = breaker.Do(ctx, func(ctx context.Context) error {
		cancel()
		return ctx.Err()
	})
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, StateClosed, breaker.State(), "cancellation must not trip the breaker")
}

func TestExecuteReturnsTypedResult(t *testing.T) {
	breaker := New("test", Settings{})

	got, err := Execute(context.Background(), breaker, func(context.Context) ([]string, error) {
		return []string{"acme/agent"}, nil
	})

	require.NoError(t, err)
	assert.Equal(t, []string{"acme/agent"}, got)
}

func TestBreakerPanicCountsAsFailure(t *testing.T) {
	breaker := New("test", Settings{
		ReadyToTrip: func(counts Counts) bool { return counts.ConsecutiveFailures >= 1 },
	})

	assert.Panics(t, func() {
		_ = breaker.Do(context.Background(), func(context.Context) error { panic("boom") })
	})
	assert.Equal(t, StateOpen, breaker.State())
}
