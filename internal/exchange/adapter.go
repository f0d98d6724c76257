// Package exchange declares the Exchange Adapter contract of §4.11: the
// capability-typed interface the order manager depends on. Adapters are
// external collaborators (per spec.md §1's "out of scope" list) — this
// package only defines the boundary, grounded on the teacher's
// internal/core.IExchange interface shape and internal/exchange/base's
// BaseAdapter plumbing, generalized from the teacher's many concrete
// venues down to the one abstraction the core actually needs.
package exchange

import (
	"context"

	"gridbot/internal/core"
)

// Unsubscribe cancels a stream subscription. Idempotent.
type Unsubscribe func()

// Adapter is the uniform interface the core depends on (§4.11). Adapters
// are responsible for price/size rounding to tick/lot, their own or
// shared rate-limit backoff, and mapping exchange-native status strings
// into core.OrderStatus.
type Adapter interface {
	// Name returns the adapter's identifying venue tag (matches the
	// EXCHANGE config value that selected it).
	Name() string

	// Capabilities reports what this adapter supports. The engine refuses
	// to start without MarkPrice and Orderbook (CapabilityUnmet, §7).
	Capabilities() core.Capabilities

	// ResolveExchangeSymbol maps a canonical symbol to this venue's
	// representation.
	ResolveExchangeSymbol(symbol string) (string, error)

	// Connect and Disconnect are idempotent. Connect must succeed before
	// any other operation is called.
	Connect(ctx context.Context) error
	Disconnect(ctx context.Context) error

	// SubscribeOrderbook emits Quote (including Mark) via onQuote.
	SubscribeOrderbook(ctx context.Context, symbol string, onQuote func(core.Quote)) (Unsubscribe, error)

	// SubscribeAccount emits order updates and, if the adapter supports
	// it, position snapshots. The adapter resubscribes automatically on
	// transient disconnect.
	SubscribeAccount(ctx context.Context, onOrderUpdate func(core.OrderUpdateEvent), onPositionUpdate func(core.PositionSnapshot)) (Unsubscribe, error)

	// GetMarketConfig returns tick/lot/fee configuration for symbol.
	GetMarketConfig(ctx context.Context, symbol string) (core.MarketConfig, error)

	// GetNetPosition returns the signed net size (LONG positive, SHORT
	// negative).
	GetNetPosition(ctx context.Context, symbol string) (core.PositionSnapshot, error)

	// GetOrderByClientOrderID is used for reconciliation; a nil result
	// with no error means the order was not found.
	GetOrderByClientOrderID(ctx context.Context, clientOrderID string) (*core.ExchangeOrder, error)

	// GetOpenOrders is used for periodic reconciliation.
	GetOpenOrders(ctx context.Context, symbol string) ([]core.ExchangeOrder, error)

	// GetOrdersHistory is used for auditing.
	GetOrdersHistory(ctx context.Context, symbol string, sinceMs int64) ([]core.ExchangeOrder, error)

	// PlaceOrder may complete synchronously ACKED, or reveal a
	// FILLED/REJECTED terminal outcome immediately.
	PlaceOrder(ctx context.Context, req core.PlaceOrderRequest) (core.PlaceOrderResult, error)

	// CancelOrderByExternalID cancels by client id.
	CancelOrderByExternalID(ctx context.Context, clientOrderID string) error

	// MassCancel is only called when Capabilities().MassCancel is true.
	MassCancel(ctx context.Context, symbol string) error
}
