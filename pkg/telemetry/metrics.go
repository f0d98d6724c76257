package telemetry

import (
	"context"
	"sync"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/metric/noop"
)

// Metric names
const (
	MetricOrdersPlacedTotal    = "gridbot_orders_placed_total"
	MetricOrdersFilledTotal    = "gridbot_orders_filled_total"
	MetricOrdersCancelledTotal = "gridbot_orders_cancelled_total"
	MetricOrdersRejectedTotal  = "gridbot_orders_rejected_total"
	MetricOrdersActive         = "gridbot_orders_active"
	MetricShiftEventsTotal     = "gridbot_shift_events_total"
	MetricCenterPrice          = "gridbot_center_price"
	MetricPositionSize         = "gridbot_position_size"
	MetricLatencyExchange      = "gridbot_latency_exchange_ms"
	MetricReconcileDivergence  = "gridbot_reconcile_divergence_total"
	MetricRateLimitBackoff     = "gridbot_rate_limit_backoff_total"
	MetricCircuitBreakerOpen   = "gridbot_circuit_breaker_open"
)

// MetricsHolder holds initialized instruments for the order manager and
// its collaborators to report through.
type MetricsHolder struct {
	OrdersPlacedTotal    metric.Int64Counter
	OrdersFilledTotal    metric.Int64Counter
	OrdersCancelledTotal metric.Int64Counter
	OrdersRejectedTotal  metric.Int64Counter
	OrdersActive         metric.Int64ObservableGauge
	ShiftEventsTotal      metric.Int64Counter
	CenterPrice           metric.Float64ObservableGauge
	PositionSize          metric.Float64ObservableGauge
	LatencyExchange       metric.Float64Histogram
	ReconcileDivergence   metric.Int64Counter
	RateLimitBackoff      metric.Int64Counter
	CircuitBreakerOpen    metric.Int64ObservableGauge

	mu              sync.RWMutex
	activeOrdersMap map[string]int64
	centerPriceMap  map[string]float64
	positionSizeMap map[string]float64
	cbOpenMap       map[string]int64
}

var (
	globalMetrics *MetricsHolder
	initOnce      sync.Once
)

// GetGlobalMetrics returns the singleton metrics holder. Domain code
// (internal/ordermanager, internal/ratelimit) calls through this singleton
// unconditionally, including before Setup runs or when Setup failed (main.go
// logs a warning and keeps running without telemetry rather than refusing to
// start) — so the holder is seeded with noop instruments up front. InitMetrics
// later overwrites them with the real, Prometheus-backed ones once a meter
// provider exists.
func GetGlobalMetrics() *MetricsHolder {
	initOnce.Do(func() {
		globalMetrics = &MetricsHolder{
			activeOrdersMap: make(map[string]int64),
			centerPriceMap:  make(map[string]float64),
			positionSizeMap: make(map[string]float64),
			cbOpenMap:       make(map[string]int64),
		}
		_ = globalMetrics.InitMetrics(noop.Meter{})
	})
	return globalMetrics
}

// InitMetrics initializes instruments using the meter.
func (m *MetricsHolder) InitMetrics(meter metric.Meter) error {
	var err error

	m.OrdersPlacedTotal, err = meter.Int64Counter(MetricOrdersPlacedTotal, metric.WithDescription("Total orders placed"))
	if err != nil {
		return err
	}
	m.OrdersFilledTotal, err = meter.Int64Counter(MetricOrdersFilledTotal, metric.WithDescription("Total orders filled"))
	if err != nil {
		return err
	}
	m.OrdersCancelledTotal, err = meter.Int64Counter(MetricOrdersCancelledTotal, metric.WithDescription("Total orders cancelled"))
	if err != nil {
		return err
	}
	m.OrdersRejectedTotal, err = meter.Int64Counter(MetricOrdersRejectedTotal, metric.WithDescription("Total orders rejected by the adapter"))
	if err != nil {
		return err
	}
	m.ShiftEventsTotal, err = meter.Int64Counter(MetricShiftEventsTotal, metric.WithDescription("Total grid center shifts, confirmed or fill-driven"))
	if err != nil {
		return err
	}
	m.ReconcileDivergence, err = meter.Int64Counter(MetricReconcileDivergence, metric.WithDescription("Orders adopting a remote-reported state during reconciliation"))
	if err != nil {
		return err
	}
	m.RateLimitBackoff, err = meter.Int64Counter(MetricRateLimitBackoff, metric.WithDescription("Rate-limit guard backoff activations"))
	if err != nil {
		return err
	}
	m.LatencyExchange, err = meter.Float64Histogram(MetricLatencyExchange, metric.WithDescription("Latency of exchange adapter calls"), metric.WithUnit("ms"))
	if err != nil {
		return err
	}

	m.OrdersActive, err = meter.Int64ObservableGauge(MetricOrdersActive, metric.WithDescription("Number of currently open managed orders"),
		metric.WithInt64Callback(func(ctx context.Context, obs metric.Int64Observer) error {
			m.mu.RLock()
			defer m.mu.RUnlock()
			for sym, val := range m.activeOrdersMap {
				obs.Observe(val, metric.WithAttributes(attribute.String("symbol", sym)))
			}
			return nil
		}))
	if err != nil {
		return err
	}

	m.CenterPrice, err = meter.Float64ObservableGauge(MetricCenterPrice, metric.WithDescription("Current grid center price"),
		metric.WithFloat64Callback(func(ctx context.Context, obs metric.Float64Observer) error {
			m.mu.RLock()
			defer m.mu.RUnlock()
			for sym, val := range m.centerPriceMap {
				obs.Observe(val, metric.WithAttributes(attribute.String("symbol", sym)))
			}
			return nil
		}))
	if err != nil {
		return err
	}

	m.PositionSize, err = meter.Float64ObservableGauge(MetricPositionSize, metric.WithDescription("Current net position size"),
		metric.WithFloat64Callback(func(ctx context.Context, obs metric.Float64Observer) error {
			m.mu.RLock()
			defer m.mu.RUnlock()
			for sym, val := range m.positionSizeMap {
				obs.Observe(val, metric.WithAttributes(attribute.String("symbol", sym)))
			}
			return nil
		}))
	if err != nil {
		return err
	}

	m.CircuitBreakerOpen, err = meter.Int64ObservableGauge(MetricCircuitBreakerOpen, metric.WithDescription("Rate-limit circuit breaker open state (1=open, 0=closed)"),
		metric.WithInt64Callback(func(ctx context.Context, obs metric.Int64Observer) error {
			m.mu.RLock()
			defer m.mu.RUnlock()
			for sym, val := range m.cbOpenMap {
				obs.Observe(val, metric.WithAttributes(attribute.String("symbol", sym)))
			}
			return nil
		}))
	if err != nil {
		return err
	}

	return nil
}

// Helpers to update observable state.

func (m *MetricsHolder) SetActiveOrders(symbol string, count int64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.activeOrdersMap[symbol] = count
}

func (m *MetricsHolder) SetCenterPrice(symbol string, price float64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.centerPriceMap[symbol] = price
}

func (m *MetricsHolder) SetPositionSize(symbol string, size float64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.positionSizeMap[symbol] = size
}

func (m *MetricsHolder) SetCircuitBreakerOpen(symbol string, open bool) {
	val := int64(0)
	if open {
		val = 1
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.cbOpenMap[symbol] = val
}

func (m *MetricsHolder) GetActiveOrders() map[string]int64 {
	m.mu.RLock()
	defer m.mu.RUnlock()
	res := make(map[string]int64, len(m.activeOrdersMap))
	for k, v := range m.activeOrdersMap {
		res[k] = v
	}
	return res
}

func (m *MetricsHolder) GetPositionSize() map[string]float64 {
	m.mu.RLock()
	defer m.mu.RUnlock()
	res := make(map[string]float64, len(m.positionSizeMap))
	for k, v := range m.positionSizeMap {
		res[k] = v
	}
	return res
}
