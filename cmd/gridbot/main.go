// Command gridbot is the engine's process entrypoint, grounded on the
// teacher's cmd/live_server/main.go: load config, build the logger and
// telemetry, wire collaborators, run until signaled, exit 0 on signal and
// nonzero on fatal initialization failure (§6).
package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"gridbot/internal/config"
	"gridbot/internal/core"
	"gridbot/internal/exchange"
	"gridbot/internal/exchange/mock"
	"gridbot/internal/health"
	"gridbot/internal/marketdata"
	"gridbot/internal/orchestrator"
	"gridbot/internal/ordermanager"
	"gridbot/internal/ratelimit"
	"gridbot/internal/sink"
	"gridbot/internal/tickdriver"
	"gridbot/pkg/concurrency"
	"gridbot/pkg/logging"
	"gridbot/pkg/telemetry"
)

var (
	version   = "dev"
	buildTime = "unknown"
)

func main() {
	os.Exit(run())
}

func run() int {
	logger, err := logging.NewLoggerFromString(envOr("GRID_LOG_LEVEL", "info"))
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to create logger: %v\n", err)
		return 1
	}

	cfg, err := config.Load()
	if err != nil {
		logger.Error("invalid configuration", "error", err)
		return 1
	}

	logger.Info("starting gridbot", "version", version, "built", buildTime,
		"exchange", cfg.Exchange, "symbol", cfg.Manager.Symbol)
	logger.Debug("effective configuration", "config", cfg.String())

	telem, err := telemetry.Setup("gridbot")
	if err != nil {
		logger.Warn("telemetry setup failed, continuing without it", "error", err)
	} else {
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := telem.Shutdown(shutdownCtx); err != nil {
				logger.Warn("telemetry shutdown error", "error", err)
			}
		}()
	}

	adapter, err := buildAdapter(cfg.Exchange)
	if err != nil {
		logger.Error("failed to build exchange adapter", "error", err)
		return 1
	}

	orderSink, closeSink, err := buildSink(envOr("DB_PATH", "gridbot.db"), logger)
	if err != nil {
		logger.Error("failed to open order sink", "error", err)
		return 1
	}
	defer closeSink()

	fanout := marketdata.New(marketdata.NewDefaultLimiter())
	guard := ratelimit.New()
	manager := ordermanager.New(cfg.Manager, cfg.Grid, adapter, guard, orderSink, logger)

	healthAddr := envOr("HEALTH_ADDR", ":8080")
	checker := health.New(manager, fanout, cfg.Exchange, health.DefaultThresholds(), 30*time.Second)
	server := health.NewServer(healthAddr, logger, checker)

	tickPool := concurrency.NewWorkerPool(concurrency.PoolConfig{
		Name:        "tick_driver",
		MaxWorkers:  4,
		MaxCapacity: 64,
	}, logger)
	defer tickPool.Stop()

	ocfg := orchestrator.DefaultConfig(cfg.Manager.Symbol, healthAddr)
	driver := tickdriver.New(orchestrator.MaintenanceAndReconcileTasks(ocfg, manager), logger, tickPool)

	o := orchestrator.New(ocfg, adapter, fanout, manager, driver, checker, server, logger)

	if err := o.Run(context.Background()); err != nil {
		logger.Error("engine stopped with error", "error", err)
		return 1
	}
	return 0
}

func buildAdapter(exchangeName string) (exchange.Adapter, error) {
	switch exchangeName {
	case "mock":
		return mock.New("mock", core.Capabilities{MarkPrice: true, Orderbook: true, PostOnly: true, MassCancel: true}), nil
	default:
		return nil, fmt.Errorf("no adapter registered for EXCHANGE=%q (adapters are external collaborators, wired by the embedding deployment)", exchangeName)
	}
}

func buildSink(dbPath string, logger core.Logger) (sink.OrderSink, func(), error) {
	s, err := sink.NewSQLiteSink(dbPath)
	if err != nil {
		return nil, nil, err
	}
	return s, func() {
		if err := s.Close(); err != nil {
			logger.Warn("order sink close error", "error", err)
		}
	}, nil
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
