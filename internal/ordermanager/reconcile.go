package ordermanager

import (
	"context"
	"time"

	"gridbot/internal/core"
)

// processReconcile implements §4.6's periodic reconcile pass: fetch open
// orders for the symbol; merge exchange fields into every managed order
// the exchange still lists (preserving local level_index and placed_at);
// for every locally-non-terminal managed order the exchange did not list,
// perform a single-order reconciliation.
func (m *Manager) processReconcile(ctx context.Context) {
	var remoteOpens []core.ExchangeOrder
	err := m.guard.Do(ctx, func(ctx context.Context) error {
		var err error
		remoteOpens, err = m.adapter.GetOpenOrders(ctx, m.cfg.Symbol)
		return err
	})
	if err != nil {
		m.logger.Warn("reconcile: get_open_orders failed", "error", err)
		return
	}

	seen := make(map[string]bool, len(remoteOpens))
	for _, ro := range remoteOpens {
		local, ok := m.grid.Order(ro.ClientOrderID)
		if !ok {
			// Not a managed order (or already terminal locally); the
			// periodic pass only reconciles orders we are tracking.
			continue
		}
		seen[ro.ClientOrderID] = true

		local.Status = ro.Status
		local.ExchangeOrderID = ro.ExchangeOrderID
		local.Price = ro.Price
		local.Quantity = ro.Quantity
		local.UpdatedAt = ro.UpdatedAt
		m.grid.UpsertOrder(local)
		m.sinkD.Record(ctx, toOrderRecordWithExchangeStatus(m.cfg.ExchangeName, m.cfg.Symbol, local, ro.ExchangeStatus))
	}

	for id, o := range m.grid.Orders() {
		if o.Status.IsTerminal() || seen[id] {
			continue
		}
		m.reconcileSingleOrder(ctx, id)
	}

	m.mu.Lock()
	m.lastReconcileAt = time.Now()
	m.mu.Unlock()
}
