// Package tickdriver implements §4.8's tick driver: a list of
// interval-based tasks with per-task re-entrancy suppression — a missed
// tick is dropped, never queued (§9's explicit warning against a naive
// periodic timer that would bombard the adapter after a stall). Grounded
// on the teacher's pkg/concurrency worker pool (alitto/pond) for running
// each fired tick off of the ticker goroutine, so a slow handler cannot
// delay the ticker itself.
package tickdriver

import (
	"context"
	"sync/atomic"
	"time"

	"gridbot/internal/core"
	"gridbot/pkg/concurrency"
)

// Task is one entry in the driver's list (§4.8).
type Task struct {
	Name       string
	Interval   time.Duration
	Handler    func(ctx context.Context)
	RunOnStart bool
}

// Driver runs a fixed list of Tasks, each on its own ticker, with a
// per-task in-flight flag that drops (does not queue) a tick that arrives
// while the previous invocation of the same task is still running.
type Driver struct {
	tasks  []Task
	logger core.Logger
	pool   *concurrency.WorkerPool

	cancel context.CancelFunc
	done   chan struct{}
}

// New builds a Driver. pool, if non-nil, is used to dispatch each fired
// tick so a slow handler does not block the ticker goroutines feeding it;
// if nil, handlers run directly on their own ticker goroutine.
func New(tasks []Task, logger core.Logger, pool *concurrency.WorkerPool) *Driver {
	return &Driver{tasks: tasks, logger: logger.With("component", "tick_driver"), pool: pool}
}

// Start launches one goroutine per task. It returns immediately; call Stop
// to terminate all of them.
func (d *Driver) Start(ctx context.Context) {
	ctx, cancel := context.WithCancel(ctx)
	d.cancel = cancel
	d.done = make(chan struct{}, len(d.tasks))

	for _, task := range d.tasks {
		go d.run(ctx, task)
	}
}

// Stop cancels every task goroutine and waits for them to exit.
func (d *Driver) Stop() {
	if d.cancel == nil {
		return
	}
	d.cancel()
	for range d.tasks {
		<-d.done
	}
}

func (d *Driver) run(ctx context.Context, task Task) {
	defer func() { d.done <- struct{}{} }()

	var inFlight atomic.Bool

	fire := func() {
		if !inFlight.CompareAndSwap(false, true) {
			// Previous invocation still running: drop this tick, never
			// queue it (§4.8, §9).
			d.logger.Warn("tick dropped, handler still running", "task", task.Name)
			return
		}
		invoke := func() {
			defer inFlight.Store(false)
			defer func() {
				if r := recover(); r != nil {
					d.logger.Error("tick handler panic recovered", "task", task.Name, "panic", r)
				}
			}()
			task.Handler(ctx)
		}
		if d.pool != nil {
			if err := d.pool.Submit(invoke); err != nil {
				d.logger.Error("tick dispatch failed", "task", task.Name, "error", err)
				inFlight.Store(false)
			}
		} else {
			invoke()
		}
	}

	if task.RunOnStart {
		fire()
	}

	ticker := time.NewTicker(task.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			fire()
		}
	}
}
