// Package orchestrator wires the engine's components together and owns
// the process lifecycle: connect, subscribe, run, and a reverse-order
// shutdown on signal. Grounded on the teacher's internal/bootstrap.App
// (a Runner interface driven through golang.org/x/sync/errgroup plus
// signal.NotifyContext, with a final Shutdown cleanup pass), generalized
// from the teacher's DB/cache dependency list to this engine's
// adapter/fan-out/order-manager/tick-driver/health set, and using the
// teacher's pkg/retry for the initial adapter Connect (a connection
// attempt is the one place in this engine's startup where a transient
// failure should retry rather than fail the process outright).
package orchestrator

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"gridbot/internal/core"
	"gridbot/internal/exchange"
	"gridbot/internal/health"
	"gridbot/internal/marketdata"
	"gridbot/internal/ordermanager"
	"gridbot/internal/tickdriver"
	"gridbot/pkg/apperrors"
	"gridbot/pkg/retry"
)

// Runner is a component the orchestrator drives through its lifecycle
// inside the errgroup, in the teacher's Runner shape.
type Runner interface {
	Run(ctx context.Context) error
}

// Config holds the Orchestrator's plain settings: the symbol, the health
// address, the retry policy for the initial Connect, and the two tick
// intervals. The collaborators themselves are passed to New already built.
type Config struct {
	Symbol          string
	HealthAddr      string
	ConnectRetry    retry.RetryPolicy
	MaintenanceTick time.Duration
	ReconcileTick   time.Duration
}

// DefaultConfig fills in the spec's design-value cadences (§4.6: 5s
// reconcile) and a maintenance sweep frequent enough to catch
// cancel-timeout expirations promptly.
func DefaultConfig(symbol, healthAddr string) Config {
	return Config{
		Symbol:          symbol,
		HealthAddr:      healthAddr,
		ConnectRetry:    retry.DefaultPolicy,
		MaintenanceTick: 1 * time.Second,
		ReconcileTick:   5 * time.Second,
	}
}

// Orchestrator owns startup ordering, the running component set, and
// reverse-order shutdown.
type Orchestrator struct {
	cfg     Config
	adapter exchange.Adapter
	fanout  *marketdata.FanOut
	manager *ordermanager.Manager
	driver  *tickdriver.Driver
	checker *health.Checker
	server  *health.Server
	logger  core.Logger

	unsubOrderbook exchange.Unsubscribe
	unsubAccount   exchange.Unsubscribe

	runID string
}

// New builds an Orchestrator from already-constructed collaborators; it
// does not call Connect or Subscribe itself (Run does, so that retry and
// ordering stay in one place). It generates a run id (grounded on the
// teacher's internal/auth request-id pattern, generalized from
// per-request to per-process-run) and tags every log line this
// orchestrator emits with it, so restarts are distinguishable in
// aggregated logs.
func New(cfg Config, adapter exchange.Adapter, fanout *marketdata.FanOut, manager *ordermanager.Manager, driver *tickdriver.Driver, checker *health.Checker, server *health.Server, logger core.Logger) *Orchestrator {
	runID := uuid.New().String()
	return &Orchestrator{
		cfg:     cfg,
		adapter: adapter,
		fanout:  fanout,
		manager: manager,
		driver:  driver,
		checker: checker,
		server:  server,
		logger:  logger.With("component", "orchestrator", "run_id", runID),
		runID:   runID,
	}
}

// RunID returns the generated identifier for this orchestrator instance.
func (o *Orchestrator) RunID() string { return o.runID }

// Run blocks until a termination signal arrives or a fatal error occurs.
// It connects the adapter (retrying transient failures), subscribes
// orderbook and account streams into the fan-out and order manager,
// starts the tick driver, the order manager loop, and the health server,
// then waits. On return every resource has been closed in reverse order
// of initialization (§6: "unsubscribe -> cancel in-flight timers ->
// disconnect adapters -> close sink").
func (o *Orchestrator) Run(parent context.Context) error {
	ctx, stop := signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := o.connect(ctx); err != nil {
		return err
	}

	if err := o.subscribe(ctx); err != nil {
		o.shutdown(context.Background())
		return err
	}

	o.server.Start()
	o.driver.Start(ctx)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		o.manager.Run(gctx)
		return nil
	})

	o.logger.Info("orchestrator running", "symbol", o.cfg.Symbol, "exchange", o.adapter.Name())

	err := g.Wait()
	o.shutdown(context.Background())

	if err != nil && ctx.Err() == nil {
		o.logger.Error("orchestrator stopped with error", "error", err)
		return err
	}
	o.logger.Info("orchestrator shut down gracefully")
	return nil
}

func (o *Orchestrator) connect(ctx context.Context) error {
	caps := o.adapter.Capabilities()
	if !caps.MarkPrice || !caps.Orderbook {
		return apperrors.New(apperrors.ErrCapabilityUnmet, "adapter lacks mark_price or orderbook capability")
	}

	isTransient := func(err error) bool { return err != nil }
	err := retry.Do(ctx, o.cfg.ConnectRetry, isTransient, func() error {
		return o.adapter.Connect(ctx)
	})
	if err != nil {
		return apperrors.Wrap(apperrors.ErrAdapterTransient, "adapter connect failed after retries", err)
	}
	return nil
}

func (o *Orchestrator) subscribe(ctx context.Context) error {
	unsubOB, err := o.adapter.SubscribeOrderbook(ctx, o.cfg.Symbol, func(q core.Quote) {
		o.fanout.OnPublish(q)
		o.manager.OnQuote(q)
	})
	if err != nil {
		return apperrors.Wrap(apperrors.ErrAdapterTransient, "subscribe orderbook failed", err)
	}
	o.unsubOrderbook = unsubOB

	unsubAcct, err := o.adapter.SubscribeAccount(ctx, o.manager.OnOrderUpdate, o.manager.OnPositionUpdate)
	if err != nil {
		unsubOB()
		return apperrors.Wrap(apperrors.ErrAdapterTransient, "subscribe account failed", err)
	}
	o.unsubAccount = unsubAcct

	return nil
}

func (o *Orchestrator) shutdown(ctx context.Context) {
	if o.unsubOrderbook != nil {
		o.unsubOrderbook()
	}
	if o.unsubAccount != nil {
		o.unsubAccount()
	}

	o.driver.Stop()

	shutdownCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	if err := o.server.Stop(shutdownCtx); err != nil {
		o.logger.Warn("health server shutdown error", "error", err)
	}

	if err := o.adapter.Disconnect(shutdownCtx); err != nil {
		o.logger.Warn("adapter disconnect error", "error", err)
	}
}

// MaintenanceAndReconcileTasks returns the two periodic Tasks the caller
// should add to the tick driver alongside any adapter-specific tasks
// (e.g. a position-cache warm-up poll). Split out from New/Run so the
// caller can assemble the full Task list before constructing the Driver.
func MaintenanceAndReconcileTasks(cfg Config, manager *ordermanager.Manager) []tickdriver.Task {
	return []tickdriver.Task{
		{
			Name:     "maintenance",
			Interval: cfg.MaintenanceTick,
			Handler:  func(ctx context.Context) { manager.RequestMaintenance() },
		},
		{
			Name:     "reconcile",
			Interval: cfg.ReconcileTick,
			Handler:  func(ctx context.Context) { manager.RequestReconcile() },
		},
	}
}
