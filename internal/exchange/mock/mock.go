// Package mock provides a hand-written fake Adapter for order-manager and
// reconciler tests, in the style of the teacher's internal/mock package
// (plain structs with scriptable function fields) rather than a generated
// mocking framework, per §10.4's test-tooling stance.
package mock

import (
	"context"
	"sync"

	"gridbot/internal/core"
	"gridbot/internal/exchange"
)

// Adapter is a fully in-memory, scriptable exchange.Adapter. Every
// behavior defaults to a harmless success; tests override the function
// fields they care about.
type Adapter struct {
	mu sync.Mutex

	name         string
	capabilities core.Capabilities

	PlaceOrderFunc      func(ctx context.Context, req core.PlaceOrderRequest) (core.PlaceOrderResult, error)
	CancelFunc          func(ctx context.Context, clientOrderID string) error
	MassCancelFunc      func(ctx context.Context, symbol string) error
	GetOpenOrdersFunc   func(ctx context.Context, symbol string) ([]core.ExchangeOrder, error)
	GetOrderFunc        func(ctx context.Context, clientOrderID string) (*core.ExchangeOrder, error)
	GetNetPositionFunc  func(ctx context.Context, symbol string) (core.PositionSnapshot, error)
	GetMarketConfigFunc func(ctx context.Context, symbol string) (core.MarketConfig, error)

	openOrders map[string]core.ExchangeOrder
	cancels    []string
	placements []core.PlaceOrderRequest
}

// New builds a mock adapter with the given name and capabilities.
func New(name string, caps core.Capabilities) *Adapter {
	return &Adapter{
		name:         name,
		capabilities: caps,
		openOrders:   make(map[string]core.ExchangeOrder),
	}
}

func (a *Adapter) Name() string                    { return a.name }
func (a *Adapter) Capabilities() core.Capabilities { return a.capabilities }

func (a *Adapter) ResolveExchangeSymbol(symbol string) (string, error) { return symbol, nil }

func (a *Adapter) Connect(ctx context.Context) error    { return nil }
func (a *Adapter) Disconnect(ctx context.Context) error { return nil }

func (a *Adapter) SubscribeOrderbook(ctx context.Context, symbol string, onQuote func(core.Quote)) (exchange.Unsubscribe, error) {
	return func() {}, nil
}

func (a *Adapter) SubscribeAccount(ctx context.Context, onOrderUpdate func(core.OrderUpdateEvent), onPositionUpdate func(core.PositionSnapshot)) (exchange.Unsubscribe, error) {
	return func() {}, nil
}

func (a *Adapter) GetMarketConfig(ctx context.Context, symbol string) (core.MarketConfig, error) {
	if a.GetMarketConfigFunc != nil {
		return a.GetMarketConfigFunc(ctx, symbol)
	}
	return core.MarketConfig{}, nil
}

func (a *Adapter) GetNetPosition(ctx context.Context, symbol string) (core.PositionSnapshot, error) {
	if a.GetNetPositionFunc != nil {
		return a.GetNetPositionFunc(ctx, symbol)
	}
	return core.PositionSnapshot{Symbol: symbol, HasSymbol: true}, nil
}

func (a *Adapter) GetOrderByClientOrderID(ctx context.Context, clientOrderID string) (*core.ExchangeOrder, error) {
	if a.GetOrderFunc != nil {
		return a.GetOrderFunc(ctx, clientOrderID)
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	o, ok := a.openOrders[clientOrderID]
	if !ok {
		return nil, nil
	}
	return &o, nil
}

func (a *Adapter) GetOpenOrders(ctx context.Context, symbol string) ([]core.ExchangeOrder, error) {
	if a.GetOpenOrdersFunc != nil {
		return a.GetOpenOrdersFunc(ctx, symbol)
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	out := make([]core.ExchangeOrder, 0, len(a.openOrders))
	for _, o := range a.openOrders {
		out = append(out, o)
	}
	return out, nil
}

func (a *Adapter) GetOrdersHistory(ctx context.Context, symbol string, sinceMs int64) ([]core.ExchangeOrder, error) {
	return nil, nil
}

func (a *Adapter) PlaceOrder(ctx context.Context, req core.PlaceOrderRequest) (core.PlaceOrderResult, error) {
	a.mu.Lock()
	a.placements = append(a.placements, req)
	a.mu.Unlock()

	if a.PlaceOrderFunc != nil {
		return a.PlaceOrderFunc(ctx, req)
	}

	result := core.PlaceOrderResult{Status: core.Acked, ExchangeOrderID: "x-" + req.ClientOrderID}
	a.mu.Lock()
	a.openOrders[req.ClientOrderID] = core.ExchangeOrder{
		ClientOrderID:   req.ClientOrderID,
		ExchangeOrderID: result.ExchangeOrderID,
		Status:          result.Status,
		Side:            req.Side,
		Price:           req.Price,
		Quantity:        req.Quantity,
	}
	a.mu.Unlock()
	return result, nil
}

func (a *Adapter) CancelOrderByExternalID(ctx context.Context, clientOrderID string) error {
	a.mu.Lock()
	a.cancels = append(a.cancels, clientOrderID)
	delete(a.openOrders, clientOrderID)
	a.mu.Unlock()

	if a.CancelFunc != nil {
		return a.CancelFunc(ctx, clientOrderID)
	}
	return nil
}

func (a *Adapter) MassCancel(ctx context.Context, symbol string) error {
	a.mu.Lock()
	a.openOrders = make(map[string]core.ExchangeOrder)
	a.mu.Unlock()

	if a.MassCancelFunc != nil {
		return a.MassCancelFunc(ctx, symbol)
	}
	return nil
}

// Placements returns every PlaceOrder request observed so far, for test
// assertions.
func (a *Adapter) Placements() []core.PlaceOrderRequest {
	a.mu.Lock()
	defer a.mu.Unlock()
	out := make([]core.PlaceOrderRequest, len(a.placements))
	copy(out, a.placements)
	return out
}

// Cancels returns every cancel request observed so far, for test
// assertions.
func (a *Adapter) Cancels() []string {
	a.mu.Lock()
	defer a.mu.Unlock()
	out := make([]string, len(a.cancels))
	copy(out, a.cancels)
	return out
}

// SeedOpenOrder injects an order as if already resting on the exchange
// (for reconciliation tests).
func (a *Adapter) SeedOpenOrder(o core.ExchangeOrder) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.openOrders[o.ClientOrderID] = o
}

var _ exchange.Adapter = (*Adapter)(nil)
