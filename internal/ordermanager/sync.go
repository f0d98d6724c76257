package ordermanager

import (
	"context"
	"sort"
	"time"

	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"gridbot/internal/core"
	"gridbot/internal/risk"
	"gridbot/pkg/telemetry"
)

// runSyncPass implements §4.5.2. It requires a center to exist and a
// usable net-position value: without a center it returns at once; without
// a usable net position it warns and skips the pass entirely rather than
// placing anything against unknown risk inputs.
func (m *Manager) runSyncPass(ctx context.Context) {
	if !m.grid.HasCenter() {
		return
	}

	netPosition, usable := m.loadNetPosition(ctx)
	if !usable {
		m.logger.Warn("sync pass skipped: no usable net position")
		return
	}

	pendingBuy, pendingSell := m.grid.PendingTotals()

	levels := m.grid.Levels()
	indices := make([]int, 0, len(levels))
	for i, lvl := range levels {
		if lvl.HasTarget() {
			indices = append(indices, i)
		}
	}
	sort.Ints(indices)

	for _, idx := range indices {
		if m.grid.ActiveOrderCount() >= m.cfg.MaxOpenOrders {
			return
		}

		level := levels[idx]
		if _, bound := m.grid.OrderAtLevel(idx, level.TargetSide); bound {
			continue
		}

		if !risk.AdmitPlacement(level.TargetSide, netPosition, pendingBuy, pendingSell, m.cfg.OrderQuantity, m.cfg.MaxPosition) {
			continue
		}

		if m.crossoverGuardFires(level.TargetSide, level.Price) {
			continue
		}

		placed, ok := m.placeOrder(ctx, level)
		if !ok {
			continue
		}
		switch level.TargetSide {
		case core.Buy:
			pendingBuy = pendingBuy.Add(placed)
		case core.Sell:
			pendingSell = pendingSell.Add(placed)
		}
	}
}

// placeOrder implements §4.5.2's four-step placement: a local
// PENDING_SEND record, the adapter call, an upsert of the result, and (if
// non-terminal) returns the quantity to tentatively add to the pending
// total so subsequent levels in this pass see the worst-case exposure.
func (m *Manager) placeOrder(ctx context.Context, level core.Level) (placedQty decimal.Decimal, accounted bool) {
	clientOrderID := m.idGen.Next(level.TargetSide, level.Index)
	now := time.Now()

	pending := core.GridOrderState{
		ClientOrderID: clientOrderID,
		Status:        core.PendingSend,
		Side:          level.TargetSide,
		Price:         level.Price,
		Quantity:      m.cfg.OrderQuantity,
		LevelIndex:    level.Index,
		PlacedAt:      now,
		UpdatedAt:     now,
	}
	m.grid.UpsertOrder(pending)

	req := core.PlaceOrderRequest{
		Symbol:        m.cfg.Symbol,
		ClientOrderID: clientOrderID,
		Side:          level.TargetSide,
		Price:         level.Price,
		Quantity:      m.cfg.OrderQuantity,
		PostOnly:      m.cfg.PostOnly,
		ExpireTimeMs:  now.Add(m.cfg.CancelTimeout).UnixMilli(),
	}

	sideAttr := attribute.String("side", string(level.TargetSide))
	symbolAttr := attribute.String("symbol", m.cfg.Symbol)

	var result core.PlaceOrderResult
	err := m.guard.Do(ctx, func(ctx context.Context) error {
		var err error
		result, err = m.adapter.PlaceOrder(ctx, req)
		return err
	})
	if err != nil {
		m.logger.Warn("place_order failed", "client_order_id", clientOrderID, "error", err)
		pending.Status = core.Rejected
		pending.UpdatedAt = time.Now()
		m.grid.UpsertOrder(pending)
		m.sinkD.Record(ctx, toOrderRecord(m.cfg.ExchangeName, m.cfg.Symbol, pending))
		telemetry.GetGlobalMetrics().OrdersRejectedTotal.Add(ctx, 1, metric.WithAttributes(symbolAttr, sideAttr))
		return decimal.Zero, false
	}

	pending.Status = result.Status
	pending.ExchangeOrderID = result.ExchangeOrderID
	pending.UpdatedAt = time.Now()
	m.grid.UpsertOrder(pending)
	m.sinkD.Record(ctx, toOrderRecordWithExchangeStatus(m.cfg.ExchangeName, m.cfg.Symbol, pending, result.ExchangeStatus))

	if pending.Status == core.Rejected {
		telemetry.GetGlobalMetrics().OrdersRejectedTotal.Add(ctx, 1, metric.WithAttributes(symbolAttr, sideAttr))
	} else {
		telemetry.GetGlobalMetrics().OrdersPlacedTotal.Add(ctx, 1, metric.WithAttributes(symbolAttr, sideAttr))
	}

	if pending.Status.IsTerminal() {
		return decimal.Zero, false
	}
	return m.cfg.OrderQuantity, true
}

// crossoverGuardFires implements §4.5.5: when post_only is configured, a
// would-be BUY at price >= ask or SELL at price <= bid is suppressed. If
// no recent quote is known, placement is also suppressed.
func (m *Manager) crossoverGuardFires(side core.Side, price decimal.Decimal) bool {
	if !m.cfg.PostOnly {
		return false
	}

	m.mu.Lock()
	q := m.latestQuote
	known := m.hasLatestQuote
	m.mu.Unlock()

	if !known {
		return true
	}

	switch side {
	case core.Buy:
		return price.GreaterThanOrEqual(q.Ask)
	case core.Sell:
		return price.LessThanOrEqual(q.Bid)
	default:
		return true
	}
}
