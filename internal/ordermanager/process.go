package ordermanager

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"gridbot/internal/clientid"
	"gridbot/internal/core"
	"gridbot/internal/grid"
	"gridbot/pkg/telemetry"
)

// resolveLevelIndex finds the grid level an incoming order-update event
// belongs to: the locally tracked order's level if known, otherwise the
// level recovered from the client-order-id itself (§4.5.6). ok is false
// when the id is malformed or not owned by this strategy instance, in
// which case the event is not ours to apply.
func (m *Manager) resolveLevelIndex(ev core.OrderUpdateEvent) (int, bool) {
	if existing, ok := m.grid.Order(ev.ClientOrderID); ok {
		return existing.LevelIndex, true
	}
	parsed, err := clientid.Parse(ev.ClientOrderID)
	if err != nil || !parsed.Owns(m.cfg.StrategyID, m.cfg.Symbol) {
		return 0, false
	}
	return parsed.LevelIndex, true
}

// processOrderEvent merges an account-stream update into grid state,
// dispatches it to the order sink, invalidates the position cache on a
// fill, and enqueues a fill-shift request for a fill at a nonzero level
// (§4.5's "fill-driven processing").
func (m *Manager) processOrderEvent(ctx context.Context, ev core.OrderUpdateEvent) {
	levelIndex, ok := m.resolveLevelIndex(ev)
	if !ok {
		return
	}

	existing, hadExisting := m.grid.Order(ev.ClientOrderID)
	placedAt := ev.UpdatedAt
	if hadExisting && !existing.PlacedAt.IsZero() {
		placedAt = existing.PlacedAt
	}

	updated := core.GridOrderState{
		ClientOrderID:   ev.ClientOrderID,
		ExchangeOrderID: ev.ExchangeOrderID,
		Status:          ev.Status,
		Side:            ev.Side,
		Price:           ev.Price,
		Quantity:        ev.Quantity,
		LevelIndex:      levelIndex,
		PlacedAt:        placedAt,
		UpdatedAt:       ev.UpdatedAt,
	}

	m.mu.Lock()
	m.grid.UpsertOrder(updated)
	m.lastOrderUpdateAt = time.Now()
	if ev.Status == core.Filled || ev.Status == core.PartiallyFilled {
		m.positionSnapshotReady = false
	}
	m.mu.Unlock()

	m.sinkD.Record(ctx, core.OrderRecord{
		Exchange:        m.cfg.ExchangeName,
		ClientOrderID:   updated.ClientOrderID,
		ExchangeOrderID: updated.ExchangeOrderID,
		Symbol:          m.cfg.Symbol,
		Side:            updated.Side,
		Price:           updated.Price,
		Quantity:        updated.Quantity,
		Status:          updated.Status,
		ExchangeStatus:  ev.ExchangeStatus,
		LevelIndex:      updated.LevelIndex,
		CreatedAt:       updated.PlacedAt,
		UpdatedAt:       updated.UpdatedAt,
	})

	if ev.Status == core.Filled {
		telemetry.GetGlobalMetrics().OrdersFilledTotal.Add(ctx, 1, metric.WithAttributes(
			attribute.String("symbol", m.cfg.Symbol), attribute.String("side", string(updated.Side))))
		if levelIndex != 0 {
			m.enqueueFillShift(levelIndex)
		}
	}
}

// processFillShift implements §4.5's fill-driven processing: an
// unconditional shift by levelIndex steps, cancellation of whatever falls
// out of range, and a sync pass. No confirmation window applies.
func (m *Manager) processFillShift(ctx context.Context, levelIndex int) {
	now := time.Now()
	result, err := m.grid.ShiftCenter(levelIndex, now)
	if err != nil {
		m.logger.Error("fill-driven shift_center failed", "level_index", levelIndex, "error", err)
		return
	}
	m.clearShiftConfirm()
	telemetry.GetGlobalMetrics().ShiftEventsTotal.Add(ctx, 1, metric.WithAttributes(attribute.String("symbol", m.cfg.Symbol), attribute.String("reason", "fill")))
	m.cancelOutOfRange(ctx, result.OutOfRangeOrders)
	m.refreshPositionAfterShift(ctx)
	m.runSyncPass(ctx)
}

// processQuote implements §4.5's 8-step quote processing procedure.
func (m *Manager) processQuote(ctx context.Context, q core.Quote) {
	m.mu.Lock()
	m.latestQuote = q
	m.hasLatestQuote = true
	m.mu.Unlock()

	m.grid.UpdateMark(q.Mark, q.Ts)

	if !m.grid.HasCenter() {
		m.firstQuoteHandler(ctx, q.Mark)
		return
	}

	m.expireOverdueOrders(ctx, time.Now())

	steps, err := grid.Steps(m.grid.CenterPrice(), q.Mark, m.gridCfg)
	if err != nil {
		m.logger.Error("steps computation failed", "error", err)
		return
	}

	switch {
	case steps == 0:
		m.clearShiftConfirm()
		m.runSyncPass(ctx)
		return
	case absInt(steps) >= m.gridCfg.Levels:
		m.fullRebuild(ctx, q.Mark)
		return
	case absInt(steps) < 2:
		m.clearShiftConfirm()
		m.runSyncPass(ctx)
		return
	}

	if !m.applyShiftConfirmWindow(steps) {
		m.runSyncPass(ctx)
		return
	}

	now := time.Now()
	result, err := m.grid.ShiftCenter(steps, now)
	if err != nil {
		m.logger.Error("shift_center failed", "steps", steps, "error", err)
		return
	}
	m.clearShiftConfirm()
	telemetry.GetGlobalMetrics().ShiftEventsTotal.Add(ctx, 1, metric.WithAttributes(attribute.String("symbol", m.cfg.Symbol), attribute.String("reason", "confirmed")))
	m.cancelOutOfRange(ctx, result.OutOfRangeOrders)
	m.refreshPositionAfterShift(ctx)
	m.runSyncPass(ctx)
}

// applyShiftConfirmWindow implements §4.5.1: on the first cross-step
// signal of a given sign it records (sign, started_at) and returns false
// (not yet confirmed). Subsequent same-signed signals confirm once
// now-started_at >= MarkShiftConfirm. A sign flip restarts the window.
func (m *Manager) applyShiftConfirmWindow(steps int) bool {
	sign := 1
	if steps < 0 {
		sign = -1
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if m.shiftPendingSign != sign {
		m.shiftPendingSign = sign
		m.shiftPendingSince = time.Now()
		return false
	}
	return time.Since(m.shiftPendingSince) >= m.cfg.MarkShiftConfirm
}

// clearShiftConfirm resets the mark-shift confirmation window.
func (m *Manager) clearShiftConfirm() {
	m.mu.Lock()
	m.shiftPendingSign = 0
	m.shiftPendingSince = time.Time{}
	m.mu.Unlock()
}

// firstQuoteHandler implements §4.5 step 2: establish the first center,
// cancel any pre-existing managed open orders found on the exchange (left
// over from a prior process lifetime), then sync.
func (m *Manager) firstQuoteHandler(ctx context.Context, mark decimal.Decimal) {
	if err := m.grid.Reset(mark, time.Now()); err != nil {
		m.logger.Error("first-quote reset failed", "error", err)
		return
	}

	var opens []core.ExchangeOrder
	err := m.guard.Do(ctx, func(ctx context.Context) error {
		var err error
		opens, err = m.adapter.GetOpenOrders(ctx, m.cfg.Symbol)
		return err
	})
	if err != nil {
		m.logger.Warn("first-quote open-orders lookup failed", "error", err)
	}

	for _, o := range opens {
		parsed, perr := clientid.Parse(o.ClientOrderID)
		if perr != nil || !parsed.Owns(m.cfg.StrategyID, m.cfg.Symbol) {
			continue
		}
		// Reset has just cleared the local order table, and cancelOrder only
		// acts on locally tracked orders, so the cancel goes to the adapter
		// directly.
		if err := m.guard.Do(ctx, func(ctx context.Context) error {
			return m.adapter.CancelOrderByExternalID(ctx, o.ClientOrderID)
		}); err != nil {
			m.logger.Warn("first-quote cancel of leftover order failed", "client_order_id", o.ClientOrderID, "error", err)
		}
	}

	m.runSyncPass(ctx)
}

// fullRebuild implements §4.5 step 5: a full reset discarding the entire
// level structure, cancelling whatever was locally tracked as open before
// the reset, then sync.
func (m *Manager) fullRebuild(ctx context.Context, mark decimal.Decimal) {
	prior := m.grid.Orders()

	// Cancels are issued before Reset: cancelOrder only acts on orders
	// still present in the local order table.
	if m.adapter.Capabilities().MassCancel {
		if err := m.guard.Do(ctx, func(ctx context.Context) error {
			return m.adapter.MassCancel(ctx, m.cfg.Symbol)
		}); err != nil {
			m.logger.Warn("mass cancel failed during full rebuild", "error", err)
		}
	} else {
		for id, o := range prior {
			if o.Status.IsTerminal() {
				continue
			}
			m.cancelOrder(ctx, id)
		}
	}

	if err := m.grid.Reset(mark, time.Now()); err != nil {
		m.logger.Error("full rebuild reset failed", "error", err)
		return
	}
	m.clearShiftConfirm()
	telemetry.GetGlobalMetrics().ShiftEventsTotal.Add(ctx, 1, metric.WithAttributes(attribute.String("symbol", m.cfg.Symbol), attribute.String("reason", "full_rebuild")))

	m.runSyncPass(ctx)
}

func absInt(i int) int {
	if i < 0 {
		return -i
	}
	return i
}
