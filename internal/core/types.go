// Package core holds the data model shared by every component of the grid
// engine: sides, order status, quotes, levels, and the grid state
// aggregate. Nothing in this package talks to an exchange or a database;
// it is pure types and the small amount of logic that mutates them
// (internal/grid owns the heavier state transitions).
package core

import (
	"time"

	"github.com/shopspring/decimal"
)

// Side is a trading side.
type Side string

const (
	Buy  Side = "BUY"
	Sell Side = "SELL"
)

func (s Side) Opposite() Side {
	if s == Buy {
		return Sell
	}
	return Buy
}

// PositionSide describes the sign of a net position.
type PositionSide string

const (
	Long  PositionSide = "LONG"
	Short PositionSide = "SHORT"
)

// OrderStatus is the engine's unified status, independent of any exchange's
// native vocabulary.
type OrderStatus string

const (
	PendingSend      OrderStatus = "PENDING_SEND"
	Sent             OrderStatus = "SENT"
	Acked            OrderStatus = "ACKED"
	PartiallyFilled  OrderStatus = "PARTIALLY_FILLED"
	Filled           OrderStatus = "FILLED"
	Cancelled        OrderStatus = "CANCELLED"
	Rejected         OrderStatus = "REJECTED"
	Expired          OrderStatus = "EXPIRED"
	Unknown          OrderStatus = "UNKNOWN"
)

// terminalStatuses backs IsTerminal; a terminal order never occupies a
// level (§3 invariant).
var terminalStatuses = map[OrderStatus]bool{
	Filled:    true,
	Cancelled: true,
	Rejected:  true,
	Expired:   true,
}

// IsTerminal reports whether the status is one of {FILLED, CANCELLED,
// REJECTED, EXPIRED}.
func (s OrderStatus) IsTerminal() bool { return terminalStatuses[s] }

// Quote is a single exchange's market snapshot. Invariant: Bid <= Ask,
// Mark > 0 (enforced by the producer, not by this type).
type Quote struct {
	Exchange string
	Bid      decimal.Decimal
	Ask      decimal.Decimal
	Mark     decimal.Decimal
	Ts       time.Time
}

// Level is one discrete price tier of the grid, keyed by a signed integer
// offset from the center. Index 0 is reference-only (TargetSide NONE);
// negative indices are BUY, positive are SELL.
type Level struct {
	Index      int
	TargetSide Side // "" for index 0 (no target side)
	Price      decimal.Decimal
}

// HasTarget reports whether the level is an actionable BUY/SELL tier
// (index != 0).
func (l Level) HasTarget() bool { return l.TargetSide == Buy || l.TargetSide == Sell }

// GridOrderState is the local record of one managed order bound (or
// formerly bound) to a grid level.
type GridOrderState struct {
	ClientOrderID   string
	ExchangeOrderID string
	Status          OrderStatus
	Side            Side
	Price           decimal.Decimal
	Quantity        decimal.Decimal
	LevelIndex      int
	PlacedAt        time.Time
	UpdatedAt       time.Time

	// PendingCancel marks that a cancel request for this order is in
	// flight, so a second timeout sweep does not re-issue it.
	PendingCancel bool
}

// ShiftResult is the outcome of GridState.ShiftCenter.
type ShiftResult struct {
	NewCenterPrice    decimal.Decimal
	Steps             int
	OutOfRangeOrders  []GridOrderState
}

// StatusSnapshot is the tuple the order manager publishes for the health
// checker (§4.5.7).
type StatusSnapshot struct {
	CenterPrice          decimal.Decimal
	HasCenterPrice       bool
	LastOrderUpdateAt    time.Time
	LastPositionUpdateAt time.Time
	LastMaintenanceAt    time.Time
	LastReconcileAt      time.Time
}

// OrderRecord is what the core hands to the order sink: enough fields to
// replay order history end to end (§4.10).
type OrderRecord struct {
	Exchange          string
	ClientOrderID     string
	ExchangeOrderID   string
	Symbol            string
	Side              Side
	Price             decimal.Decimal
	Quantity          decimal.Decimal
	Status            OrderStatus
	ExchangeStatus    string
	LevelIndex        int
	CreatedAt         time.Time
	UpdatedAt         time.Time
}

// MarketConfig is the adapter's reported tick/lot/fee configuration for a
// symbol (§4.11).
type MarketConfig struct {
	MinPriceChange      decimal.Decimal
	MinOrderSizeChange  decimal.Decimal
	MakerFee            decimal.Decimal
	TakerFee            decimal.Decimal
}

// Capabilities describes what an adapter supports (§4.11). The engine
// refuses to start without MarkPrice and Orderbook.
type Capabilities struct {
	MarkPrice  bool
	Orderbook  bool
	PostOnly   bool
	MassCancel bool
}

// PlaceOrderRequest is what the order manager submits to an adapter.
type PlaceOrderRequest struct {
	Symbol        string
	ClientOrderID string
	Side          Side
	Price         decimal.Decimal
	Quantity      decimal.Decimal
	PostOnly      bool
	ExpireTimeMs  int64
}

// PlaceOrderResult is the adapter's synchronous response to a place call.
// It may already carry a terminal outcome (FILLED/REJECTED).
type PlaceOrderResult struct {
	Status          OrderStatus
	ExchangeOrderID string
	ExchangeStatus  string
}

// ExchangeOrder is an order as reported back by an adapter query
// (get_open_orders, get_order_by_client_order_id, get_orders_history).
type ExchangeOrder struct {
	ClientOrderID   string
	ExchangeOrderID string
	Status          OrderStatus
	ExchangeStatus  string
	Side            Side
	Price           decimal.Decimal
	Quantity        decimal.Decimal
	FilledQuantity  decimal.Decimal
	UpdatedAt       time.Time
}

// OrderUpdateEvent is what an adapter's account stream delivers per order
// change.
type OrderUpdateEvent struct {
	ClientOrderID   string
	ExchangeOrderID string
	Status          OrderStatus
	ExchangeStatus  string
	Side            Side
	Price           decimal.Decimal
	Quantity        decimal.Decimal
	FilledQuantity  decimal.Decimal
	UpdatedAt       time.Time
}

// PositionSnapshot is what an adapter's account stream or REST query
// reports for net position.
type PositionSnapshot struct {
	Symbol       string
	NetPosition  decimal.Decimal
	HasSymbol    bool
	Ts           time.Time
}

// HealthReport is what the health checker publishes (§4.9).
type HealthReport struct {
	OK        bool
	Warnings  []string
	MarketAge time.Duration
	PositionAge time.Duration
	MaintenanceAge time.Duration
	ReconcileAge time.Duration
}
