package orchestrator

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"gridbot/internal/core"
	"gridbot/internal/exchange/mock"
	"gridbot/internal/grid"
	"gridbot/internal/health"
	"gridbot/internal/marketdata"
	"gridbot/internal/ordermanager"
	"gridbot/internal/ratelimit"
	"gridbot/internal/sink"
	"gridbot/internal/tickdriver"
)

func decimalOne() decimal.Decimal { return decimal.NewFromInt(1) }

func buildOrchestrator(t *testing.T) (*Orchestrator, *mock.Adapter) {
	t.Helper()

	adapter := mock.New("mock", core.Capabilities{MarkPrice: true, Orderbook: true})
	fanout := marketdata.New(nil)
	logger := core.NopLogger{}

	gcfg := grid.Config{Levels: 2, SpacingMode: grid.SpacingABS, Spacing: decimalOne()}
	mcfg := ordermanager.DefaultTimings(ordermanager.Config{
		StrategyID:    "test",
		Symbol:        "BTC",
		ExchangeName:  "mock",
		OrderQuantity: decimalOne(),
		MaxPosition:   decimalOne(),
		MaxOpenOrders: 10,
		CancelTimeout: time.Minute,
	})
	manager := ordermanager.New(mcfg, gcfg, adapter, ratelimit.New(), sink.NopSink{}, logger)

	checker := health.New(manager, fanout, "mock", health.DefaultThresholds(), time.Minute)
	server := health.NewServer(":0", logger, checker)

	cfg := DefaultConfig("BTC", ":0")
	cfg.MaintenanceTick = 50 * time.Millisecond
	cfg.ReconcileTick = 50 * time.Millisecond
	driver := tickdriver.New(MaintenanceAndReconcileTasks(cfg, manager), logger, nil)

	o := New(cfg, adapter, fanout, manager, driver, checker, server, logger)
	return o, adapter
}

func TestOrchestratorNewAssignsRunID(t *testing.T) {
	o, _ := buildOrchestrator(t)
	assert.NotEmpty(t, o.RunID())
}

func TestOrchestratorRunStopsOnContextCancel(t *testing.T) {
	o, _ := buildOrchestrator(t)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- o.Run(ctx) }()

	time.Sleep(100 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("orchestrator did not stop after context cancel")
	}
}

func TestOrchestratorRefusesAdapterMissingCapabilities(t *testing.T) {
	adapter := mock.New("mock", core.Capabilities{MarkPrice: false, Orderbook: true})
	fanout := marketdata.New(nil)
	logger := core.NopLogger{}
	gcfg := grid.Config{Levels: 1, SpacingMode: grid.SpacingABS, Spacing: decimalOne()}
	mcfg := ordermanager.DefaultTimings(ordermanager.Config{Symbol: "BTC", OrderQuantity: decimalOne(), MaxOpenOrders: 1, CancelTimeout: time.Second})
	manager := ordermanager.New(mcfg, gcfg, adapter, ratelimit.New(), sink.NopSink{}, logger)
	checker := health.New(manager, fanout, "mock", health.DefaultThresholds(), time.Minute)
	server := health.NewServer(":0", logger, checker)
	cfg := DefaultConfig("BTC", ":0")
	driver := tickdriver.New(nil, logger, nil)

	o := New(cfg, adapter, fanout, manager, driver, checker, server, logger)

	err := o.Run(context.Background())
	assert.Error(t, err)
}
