// Package sink defines the §4.10 order sink contract: a fire-and-forget
// upsert the order manager calls on every observed state mutation. The
// core never awaits it on the hot path (§5); it logs only on failure. The
// interface is intentionally tiny — persistence is an external
// collaborator per spec.md §1 — so the order manager can depend on it
// without depending on *how* records are stored.
package sink

import (
	"context"

	"gridbot/internal/core"
)

// OrderSink is expected to be idempotent keyed on (exchange,
// client_order_id): RecordOrder may be called many times for the same
// order as its status evolves, each call a full upsert of current fields.
type OrderSink interface {
	RecordOrder(ctx context.Context, record core.OrderRecord) error
}

// Dispatcher wraps an OrderSink so the order manager can call it without
// blocking its own critical section: RecordOrder is fired on a separate
// goroutine, with failures logged (never propagated, never retried — the
// next upsert for the same order will simply carry forward the current
// state).
type Dispatcher struct {
	sink   OrderSink
	logger core.Logger
}

// NewDispatcher wraps sink for non-blocking dispatch.
func NewDispatcher(sink OrderSink, logger core.Logger) *Dispatcher {
	return &Dispatcher{sink: sink, logger: logger.With("component", "order_sink_dispatcher")}
}

// Record fires record_order in a new goroutine and returns immediately.
func (d *Dispatcher) Record(ctx context.Context, record core.OrderRecord) {
	go func() {
		if err := d.sink.RecordOrder(ctx, record); err != nil {
			d.logger.Warn("order sink write failed", "client_order_id", record.ClientOrderID, "error", err)
		}
	}()
}

// NopSink discards every record; useful where no persistence is wired
// (tests, or a deployment that relies solely on exchange history).
type NopSink struct{}

func (NopSink) RecordOrder(ctx context.Context, record core.OrderRecord) error { return nil }
