package ordermanager

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"gridbot/internal/clientid"
	"gridbot/internal/core"
	"gridbot/internal/exchange/mock"
	"gridbot/internal/grid"
	"gridbot/internal/ratelimit"
	"gridbot/internal/sink"
)

func dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func newTestManager(t *testing.T, maxPosition, qty string, maxOpenOrders int) (*Manager, *mock.Adapter) {
	t.Helper()
	adapter := mock.New("mock", core.Capabilities{MarkPrice: true, Orderbook: true, MassCancel: true})
	cfg := DefaultTimings(Config{
		StrategyID:    "grid-default",
		Symbol:        "BTC",
		ExchangeName:  "mock",
		PostOnly:      false,
		OrderQuantity: dec(qty),
		MaxPosition:   dec(maxPosition),
		MaxOpenOrders: maxOpenOrders,
		CancelTimeout: time.Minute,
	})
	gcfg := grid.Config{Levels: 3, SpacingMode: grid.SpacingABS, Spacing: dec("10")}
	m := New(cfg, gcfg, adapter, ratelimit.New(), sink.NopSink{}, core.NopLogger{})
	return m, adapter
}

func quote(bid, ask, mark string) core.Quote {
	return core.Quote{Exchange: "mock", Bid: dec(bid), Ask: dec(ask), Mark: dec(mark), Ts: time.Now()}
}

// Scenario 1: cold start, one quote.
func TestScenarioColdStart(t *testing.T) {
	m, adapter := newTestManager(t, "10", "1", 10)
	ctx := context.Background()

	m.processQuote(ctx, quote("99", "101", "100"))

	require.True(t, m.grid.HasCenter())
	assert.True(t, m.grid.CenterPrice().Equal(dec("100")))
	assert.Equal(t, 6, m.grid.ActiveOrderCount())

	placements := adapter.Placements()
	require.Len(t, placements, 6)
	for _, p := range placements {
		assert.True(t, p.Quantity.Equal(dec("1")))
	}

	for _, price := range []string{"90", "80", "70"} {
		o, ok := findOrderByPrice(m, price, core.Buy)
		require.True(t, ok, "expected BUY at %s", price)
		assert.Equal(t, core.Acked, o.Status)
	}
	for _, price := range []string{"110", "120", "130"} {
		o, ok := findOrderByPrice(m, price, core.Sell)
		require.True(t, ok, "expected SELL at %s", price)
		assert.Equal(t, core.Acked, o.Status)
	}
}

// Scenario 2: jitter — steps=0 produces no shift, no cancellations, no new
// placements since every level is already bound.
func TestScenarioJitter(t *testing.T) {
	m, adapter := newTestManager(t, "10", "1", 10)
	ctx := context.Background()
	m.processQuote(ctx, quote("99", "101", "100"))

	before := len(adapter.Placements())
	center := m.grid.CenterPrice()

	m.processQuote(ctx, quote("103", "105", "104"))

	assert.True(t, m.grid.CenterPrice().Equal(center))
	assert.Empty(t, adapter.Cancels())
	assert.Len(t, adapter.Placements(), before)
}

// Scenario 3: confirmed shift by 2 after the mark-shift confirmation
// window elapses.
func TestScenarioConfirmedShift(t *testing.T) {
	m, _ := newTestManager(t, "10", "1", 10)
	ctx := context.Background()
	m.processQuote(ctx, quote("99", "101", "100"))

	m.processQuote(ctx, quote("120", "122", "121"))
	assert.True(t, m.grid.CenterPrice().Equal(dec("100")), "should not shift before confirmation window")

	m.shiftPendingSince = time.Now().Add(-3 * time.Second)
	m.processQuote(ctx, quote("120", "122", "121"))

	assert.True(t, m.grid.CenterPrice().Equal(dec("120")))
}

// Scenario 4: full rebuild when |steps| >= N.
func TestScenarioFullRebuild(t *testing.T) {
	m, adapter := newTestManager(t, "10", "1", 10)
	ctx := context.Background()
	m.processQuote(ctx, quote("99", "101", "100"))
	placedBefore := len(adapter.Placements())

	m.processQuote(ctx, quote("199", "201", "200"))

	assert.True(t, m.grid.CenterPrice().Equal(dec("200")))
	assert.Equal(t, 6, m.grid.ActiveOrderCount())
	assert.True(t, len(adapter.Placements()) > placedBefore)
}

// Scenario 5: a fill at a nonzero level shifts immediately, with no
// confirmation window.
func TestScenarioFillDrivenShift(t *testing.T) {
	m, _ := newTestManager(t, "100", "1", 10)
	ctx := context.Background()
	m.processQuote(ctx, quote("99", "101", "100"))

	buyOrder, ok := findOrderByPrice(m, "90", core.Buy)
	require.True(t, ok)

	m.processOrderEvent(ctx, core.OrderUpdateEvent{
		ClientOrderID: buyOrder.ClientOrderID,
		Status:        core.Filled,
		Side:          core.Buy,
		Price:         dec("90"),
		Quantity:      dec("1"),
		UpdatedAt:     time.Now(),
	})

	require.Len(t, m.pendingFillShifts, 1)
	assert.Equal(t, -1, m.pendingFillShifts[0])

	m.processFillShift(ctx, m.pendingFillShifts[0])
	assert.True(t, m.grid.CenterPrice().Equal(dec("90")))
}

// Scenario 6: the max-position guard caps admission at the configured
// ceiling for both sides.
func TestScenarioMaxPositionCap(t *testing.T) {
	m, adapter := newTestManager(t, "2", "1", 10)
	ctx := context.Background()

	m.processQuote(ctx, quote("99", "101", "100"))

	buys := countPlacementsBySide(adapter, core.Buy)
	sells := countPlacementsBySide(adapter, core.Sell)
	assert.Equal(t, 2, buys, "only 2 of 3 BUY levels should be admitted")
	assert.Equal(t, 2, sells, "only 2 of 3 SELL levels should be admitted")
}

func findOrderByPrice(m *Manager, price string, side core.Side) (core.GridOrderState, bool) {
	for _, o := range m.grid.Orders() {
		if o.Side == side && o.Price.Equal(dec(price)) {
			return o, true
		}
	}
	return core.GridOrderState{}, false
}

func countPlacementsBySide(adapter *mock.Adapter, side core.Side) int {
	n := 0
	for _, p := range adapter.Placements() {
		if p.Side == side {
			n++
		}
	}
	return n
}

func TestClientOrderIDRoundTripThroughOrderEvent(t *testing.T) {
	gen := clientid.NewGenerator("grid-default", "BTC")
	id := gen.Next(core.Buy, -2)
	parsed, err := clientid.Parse(id)
	require.NoError(t, err)
	assert.Equal(t, -2, parsed.LevelIndex)
	assert.True(t, parsed.Owns("grid-default", "BTC"))
}
