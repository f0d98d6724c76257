// Package ratelimit implements §4.6's rate-limit guard: shared backoff
// state across every REST call issued by the core through an adapter.
// Grounded on the teacher's pkg/retry (jittered exponential backoff,
// ctx-aware sleep) generalized from "retry this one call N times" to "hold
// a shared blocked_until deadline across all callers", and on the
// teacher's pkg/http.Client's failsafe-go circuitbreaker for tripping
// once 5 of the last 10 calls have failed, on top of the 429-specific guard.
package ratelimit

import (
	"context"
	"math/rand"
	"sync"
	"time"

	"github.com/failsafe-go/failsafe-go"
	"github.com/failsafe-go/failsafe-go/circuitbreaker"

	"gridbot/pkg/telemetry"
)

// breakerLabel is the attribute value the guard's metrics are reported
// under: the breaker's state is shared across every call issued through
// this Guard, not scoped to a single symbol (§9).
const breakerLabel = "global"

const (
	initialBackoff = 1 * time.Second
	maxBackoff     = 60 * time.Second
	jitterWindow   = 250 * time.Millisecond
)

// RateLimitedError is the error shape a REST call returns on a
// 429-equivalent response. RetryAfter, if HasRetryAfter, is honored
// verbatim as the blocked_until deadline; otherwise the guard falls back
// to its own exponentially increasing backoff.
type RateLimitedError struct {
	HasRetryAfter bool
	RetryAfter    time.Duration
}

func (e *RateLimitedError) Error() string { return "rate limited" }

// Guard is global to one exchange client (§9: "rate-limit state... global
// to the exchange client, not to a specific operation"). Its internal
// state is guarded by a mutex that is never held across the actual sleep.
type Guard struct {
	mu           sync.Mutex
	blockedUntil time.Time
	backoff      time.Duration

	breaker circuitbreaker.CircuitBreaker[any]
}

// New builds a Guard with a failsafe-go circuit breaker that opens once 5
// of the last 10 calls have failed and stays open for 10s, independent of
// (and in addition to) the 429-specific blocked_until mechanism below.
func New() *Guard {
	breaker := circuitbreaker.NewBuilder[any]().
		HandleIf(func(_ any, err error) bool { return err != nil }).
		WithFailureThresholdRatio(5, 10).
		WithDelay(10 * time.Second).
		Build()
	return &Guard{breaker: breaker}
}

// Wait blocks until any outstanding blocked_until deadline has passed, or
// the context is cancelled. It must be called before issuing a REST call
// through this guard.
func (g *Guard) Wait(ctx context.Context) error {
	g.mu.Lock()
	until := g.blockedUntil
	g.mu.Unlock()

	if until.IsZero() {
		return nil
	}
	d := time.Until(until)
	if d <= 0 {
		return nil
	}
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(d):
		return nil
	}
}

// OnRateLimited records a 429-equivalent response and computes the next
// blocked_until deadline: Retry-After if present, else an exponential
// backoff from 1s capped at 60s with +/-250ms jitter.
func (g *Guard) OnRateLimited(rle *RateLimitedError) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if rle != nil && rle.HasRetryAfter {
		g.blockedUntil = time.Now().Add(rle.RetryAfter)
		g.backoff = 0
		telemetry.GetGlobalMetrics().RateLimitBackoff.Add(context.Background(), 1)
		return
	}

	if g.backoff == 0 {
		g.backoff = initialBackoff
	} else {
		g.backoff = minDuration(g.backoff*2, maxBackoff)
	}
	jitter := time.Duration(rand.Int63n(int64(2*jitterWindow))) - jitterWindow
	g.blockedUntil = time.Now().Add(g.backoff + jitter)

	telemetry.GetGlobalMetrics().RateLimitBackoff.Add(context.Background(), 1)
}

// OnSuccess resets the backoff (§4.6: "On success, reset the backoff").
func (g *Guard) OnSuccess() {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.backoff = 0
	g.blockedUntil = time.Time{}
}

// Do waits out any pending blocked_until deadline, then runs fn through
// the circuit breaker. A *RateLimitedError result updates the guard's
// backoff state; any other error trips the breaker's failure count; a nil
// error resets both.
func (g *Guard) Do(ctx context.Context, fn func(ctx context.Context) error) error {
	if err := g.Wait(ctx); err != nil {
		return err
	}

	start := time.Now()
	_, err := failsafe.Get[any](func() (any, error) {
		return nil, fn(ctx)
	}, g.breaker)
	telemetry.GetGlobalMetrics().LatencyExchange.Record(ctx, float64(time.Since(start).Milliseconds()))
	telemetry.GetGlobalMetrics().SetCircuitBreakerOpen(breakerLabel, g.breaker.IsOpen())

	if rle, ok := err.(*RateLimitedError); ok {
		g.OnRateLimited(rle)
		return err
	}
	if err != nil {
		return err
	}
	g.OnSuccess()
	return nil
}

// BlockedUntil reports the current blocked_until deadline, zero if none.
func (g *Guard) BlockedUntil() time.Time {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.blockedUntil
}

func minDuration(a, b time.Duration) time.Duration {
	if a < b {
		return a
	}
	return b
}
