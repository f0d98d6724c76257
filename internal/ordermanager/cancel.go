package ordermanager

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"gridbot/internal/core"
	"gridbot/pkg/telemetry"
)

// expireOverdueOrders implements §4.5.3: any ACKED/PARTIALLY_FILLED order
// whose placed_at is older than cancel_timeout_ms is a cancellation
// candidate.
func (m *Manager) expireOverdueOrders(ctx context.Context, now time.Time) {
	for id, o := range m.grid.Orders() {
		if o.Status != core.Acked && o.Status != core.PartiallyFilled {
			continue
		}
		if now.Sub(o.PlacedAt) < m.cfg.CancelTimeout {
			continue
		}
		m.cancelOrder(ctx, id)
	}
}

// cancelOutOfRange cancels every order a shift_center call reported as
// out of range (§4.3/§4.5: cancellation is the caller's responsibility).
func (m *Manager) cancelOutOfRange(ctx context.Context, orders []core.GridOrderState) {
	for _, o := range orders {
		m.cancelOrder(ctx, o.ClientOrderID)
	}
}

// cancelOrder issues an idempotent cancel for clientOrderID, guarded by
// the per-client-id pending-cancel set (§4.5.3). On adapter success the
// local state is marked CANCELLED; on failure a cancel-failure
// reconciliation is performed instead of ever assuming CANCELLED (§4.6).
func (m *Manager) cancelOrder(ctx context.Context, clientOrderID string) {
	m.mu.Lock()
	if m.pendingCancel[clientOrderID] {
		m.mu.Unlock()
		return
	}
	m.pendingCancel[clientOrderID] = true
	m.mu.Unlock()

	defer func() {
		m.mu.Lock()
		delete(m.pendingCancel, clientOrderID)
		m.mu.Unlock()
	}()

	existing, ok := m.grid.Order(clientOrderID)
	if !ok {
		return
	}

	err := m.guard.Do(ctx, func(ctx context.Context) error {
		return m.adapter.CancelOrderByExternalID(ctx, clientOrderID)
	})
	if err != nil {
		m.logger.Warn("cancel failed, reconciling", "client_order_id", clientOrderID, "error", err)
		m.reconcileSingleOrder(ctx, clientOrderID)
		return
	}

	existing.Status = core.Cancelled
	existing.UpdatedAt = time.Now()
	m.grid.UpsertOrder(existing)

	m.sinkD.Record(ctx, core.OrderRecord{
		Exchange:        m.cfg.ExchangeName,
		ClientOrderID:   existing.ClientOrderID,
		ExchangeOrderID: existing.ExchangeOrderID,
		Symbol:          m.cfg.Symbol,
		Side:            existing.Side,
		Price:           existing.Price,
		Quantity:        existing.Quantity,
		Status:          existing.Status,
		LevelIndex:      existing.LevelIndex,
		CreatedAt:       existing.PlacedAt,
		UpdatedAt:       existing.UpdatedAt,
	})

	telemetry.GetGlobalMetrics().OrdersCancelledTotal.Add(ctx, 1, metric.WithAttributes(
		attribute.String("symbol", m.cfg.Symbol), attribute.String("side", string(existing.Side))))
}

// reconcileSingleOrder implements §4.6's cancel-failure reconciliation and
// the per-order leg of the periodic reconcile pass: look the order up by
// client id; adopt its returned state if found, else mark UNKNOWN. Never
// assumes CANCELLED on failure.
func (m *Manager) reconcileSingleOrder(ctx context.Context, clientOrderID string) {
	existing, ok := m.grid.Order(clientOrderID)
	if !ok {
		return
	}

	var remote *core.ExchangeOrder
	err := m.guard.Do(ctx, func(ctx context.Context) error {
		var err error
		remote, err = m.adapter.GetOrderByClientOrderID(ctx, clientOrderID)
		return err
	})
	if err != nil {
		m.logger.Warn("reconcile lookup failed", "client_order_id", clientOrderID, "error", err)
		return
	}

	now := time.Now()
	if remote == nil {
		existing.Status = core.Unknown
		existing.UpdatedAt = now
		m.grid.UpsertOrder(existing)
		m.sinkD.Record(ctx, toOrderRecord(m.cfg.ExchangeName, m.cfg.Symbol, existing))
		telemetry.GetGlobalMetrics().ReconcileDivergence.Add(ctx, 1, metric.WithAttributes(attribute.String("symbol", m.cfg.Symbol)))
		return
	}

	existing.Status = remote.Status
	existing.ExchangeOrderID = remote.ExchangeOrderID
	existing.Price = remote.Price
	existing.Quantity = remote.Quantity
	existing.UpdatedAt = remote.UpdatedAt
	m.grid.UpsertOrder(existing)
	m.sinkD.Record(ctx, toOrderRecordWithExchangeStatus(m.cfg.ExchangeName, m.cfg.Symbol, existing, remote.ExchangeStatus))
	telemetry.GetGlobalMetrics().ReconcileDivergence.Add(ctx, 1, metric.WithAttributes(attribute.String("symbol", m.cfg.Symbol)))
}

// processMaintenance runs the cancel-on-timeout sweep and a sync pass,
// driven by the tick driver (§4.8/§4.5.3).
func (m *Manager) processMaintenance(ctx context.Context) {
	m.expireOverdueOrders(ctx, time.Now())
	m.runSyncPass(ctx)
	m.mu.Lock()
	m.lastMaintenanceAt = time.Now()
	m.mu.Unlock()
}

func toOrderRecord(exchangeName, symbol string, o core.GridOrderState) core.OrderRecord {
	return core.OrderRecord{
		Exchange:        exchangeName,
		ClientOrderID:   o.ClientOrderID,
		ExchangeOrderID: o.ExchangeOrderID,
		Symbol:          symbol,
		Side:            o.Side,
		Price:           o.Price,
		Quantity:        o.Quantity,
		Status:          o.Status,
		LevelIndex:      o.LevelIndex,
		CreatedAt:       o.PlacedAt,
		UpdatedAt:       o.UpdatedAt,
	}
}

func toOrderRecordWithExchangeStatus(exchangeName, symbol string, o core.GridOrderState, exchangeStatus string) core.OrderRecord {
	rec := toOrderRecord(exchangeName, symbol, o)
	rec.ExchangeStatus = exchangeStatus
	return rec
}
