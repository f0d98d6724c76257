package tickdriver

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"gridbot/internal/core"
	"gridbot/pkg/concurrency"
)

func TestDriverFiresOnInterval(t *testing.T) {
	var count atomic.Int64
	d := New([]Task{{
		Name:     "t1",
		Interval: 10 * time.Millisecond,
		Handler:  func(ctx context.Context) { count.Add(1) },
	}}, core.NopLogger{}, nil)

	d.Start(context.Background())
	time.Sleep(55 * time.Millisecond)
	d.Stop()

	assert.GreaterOrEqual(t, count.Load(), int64(3))
}

func TestDriverRunOnStart(t *testing.T) {
	var count atomic.Int64
	d := New([]Task{{
		Name:       "t1",
		Interval:   time.Hour,
		RunOnStart: true,
		Handler:    func(ctx context.Context) { count.Add(1) },
	}}, core.NopLogger{}, nil)

	d.Start(context.Background())
	time.Sleep(20 * time.Millisecond)
	d.Stop()

	assert.Equal(t, int64(1), count.Load())
}

func TestDriverDropsMissedTickWhileHandlerRunning(t *testing.T) {
	// Dispatch through a worker pool so ticks keep arriving on the
	// driver's own goroutine while the handler runs concurrently on a
	// pool worker; only then does the in-flight CAS actually have
	// something to suppress.
	pool := concurrency.NewWorkerPool(concurrency.PoolConfig{Name: "test", MaxWorkers: 4, MaxCapacity: 16}, core.NopLogger{})
	defer pool.Stop()

	var invocations atomic.Int64
	started := make(chan struct{}, 10)
	release := make(chan struct{})

	d := New([]Task{{
		Name:     "slow",
		Interval: 5 * time.Millisecond,
		Handler: func(ctx context.Context) {
			invocations.Add(1)
			started <- struct{}{}
			<-release
		},
	}}, core.NopLogger{}, pool)

	d.Start(context.Background())
	<-started // first invocation in flight

	time.Sleep(30 * time.Millisecond) // several ticks should be dropped
	d.Stop()                          // stop the ticker before releasing the handler
	close(release)

	// Exactly one invocation ran; the rest were dropped, not queued.
	assert.Equal(t, int64(1), invocations.Load())
}
