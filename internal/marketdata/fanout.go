// Package marketdata implements §4.7's market-data fan-out: a
// process-wide aggregator holding the last quote per exchange, dispatching
// synchronously to subscribers filtered by their exchange list. Grounded
// on the teacher's market-data dispatch pattern in internal/trading/monitor
// (single aggregator, synchronous callback fan-out) generalized from a
// single exchange to §4.7's multi-exchange "latest: map<exchange,Quote>"
// snapshot shape, and on golang.org/x/time/rate for the defensive
// subscriber-dispatch throttle named in the domain stack.
package marketdata

import (
	"sync"

	"golang.org/x/time/rate"

	"gridbot/internal/core"
)

// Snapshot is what subscribers receive on each quote (§4.7):
// {source_quote, latest: map<exchange, Quote>}.
type Snapshot struct {
	SourceQuote core.Quote
	Latest      map[string]core.Quote
}

// Subscriber receives a Snapshot whenever a quote arrives from an exchange
// in its Exchanges list.
type Subscriber struct {
	Exchanges []string
	OnQuote   func(Snapshot)
}

func (s Subscriber) wants(exchangeName string) bool {
	for _, e := range s.Exchanges {
		if e == exchangeName {
			return true
		}
	}
	return false
}

// FanOut is the single process-wide aggregator. Dispatch is synchronous on
// the calling goroutine (typically the adapter's stream callback), with no
// buffering beyond "last value per exchange" (§4.7).
type FanOut struct {
	mu      sync.RWMutex
	latest  map[string]core.Quote
	subs    []Subscriber
	limiter *rate.Limiter
}

// DefaultDispatchRate and DefaultDispatchBurst are the design-value token-
// bucket parameters NewDefaultLimiter builds from. A healthy order-book
// stream (single-digit to low tens of ticks per second per exchange) never
// touches the bucket; a stream gone wrong (a reconnect storm replaying a
// backlog, an adapter bug re-publishing the same quote in a tight loop)
// is capped well below what a subscriber's OnQuote callback chain can be
// expected to keep up with.
const (
	DefaultDispatchRate  rate.Limit = 100
	DefaultDispatchBurst int        = 200
)

// NewDefaultLimiter builds the token bucket the process wires into New for
// production use (§11 domain stack: golang.org/x/time/rate as the
// defensive dispatch throttle).
func NewDefaultLimiter() *rate.Limiter {
	return rate.NewLimiter(DefaultDispatchRate, DefaultDispatchBurst)
}

// New builds a FanOut. limiter, if non-nil, bounds how often a single
// OnPublish call is allowed to actually dispatch to subscribers — a
// defensive guard against a misbehaving adapter flooding the fan-out; the
// quote is always cached regardless of whether dispatch is throttled, so
// GetLatestQuote/GetLatestSnapshot stay correct even when dispatch is
// skipped. Pass nil to disable throttling entirely (tests exercising
// dispatch without timing concerns).
func New(limiter *rate.Limiter) *FanOut {
	return &FanOut{
		latest:  make(map[string]core.Quote),
		limiter: limiter,
	}
}

// Subscribe registers a subscriber. Not safe to call concurrently with
// OnPublish in a way that requires happens-before ordering beyond the
// mutex; subscriptions are expected to be set up before streaming starts.
func (f *FanOut) Subscribe(sub Subscriber) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.subs = append(f.subs, sub)
}

// OnPublish is the adapter stream callback entry point. Per the resolved
// open question on quote dedup (§9), the quote is cached under
// quote.Exchange first; only then is delivery filtered per-subscriber —
// so GetLatestQuote/GetLatestSnapshot always reflect it even for a
// subscriber that never observes it directly.
func (f *FanOut) OnPublish(quote core.Quote) {
	f.mu.Lock()
	f.latest[quote.Exchange] = quote
	latestCopy := make(map[string]core.Quote, len(f.latest))
	for k, v := range f.latest {
		latestCopy[k] = v
	}
	subs := make([]Subscriber, len(f.subs))
	copy(subs, f.subs)
	f.mu.Unlock()

	if f.limiter != nil && !f.limiter.Allow() {
		return
	}

	snapshot := Snapshot{SourceQuote: quote, Latest: latestCopy}
	for _, sub := range subs {
		if sub.wants(quote.Exchange) && sub.OnQuote != nil {
			sub.OnQuote(snapshot)
		}
	}
}

// GetLatestQuote returns the last quote cached for exchangeName.
func (f *FanOut) GetLatestQuote(exchangeName string) (core.Quote, bool) {
	f.mu.RLock()
	defer f.mu.RUnlock()
	q, ok := f.latest[exchangeName]
	return q, ok
}

// GetLatestSnapshot returns a copy of the full per-exchange latest map.
func (f *FanOut) GetLatestSnapshot() map[string]core.Quote {
	f.mu.RLock()
	defer f.mu.RUnlock()
	out := make(map[string]core.Quote, len(f.latest))
	for k, v := range f.latest {
		out[k] = v
	}
	return out
}
