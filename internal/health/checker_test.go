package health

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"gridbot/internal/core"
)

type fakeStatus struct{ snap core.StatusSnapshot }

func (f fakeStatus) StatusSnapshot() core.StatusSnapshot { return f.snap }

type fakeMarket struct {
	quote core.Quote
	ok    bool
}

func (f fakeMarket) GetLatestQuote(exchange string) (core.Quote, bool) { return f.quote, f.ok }

func TestCheckerOKWhenEverythingFresh(t *testing.T) {
	now := time.Now()
	status := fakeStatus{snap: core.StatusSnapshot{
		LastPositionUpdateAt: now,
		LastMaintenanceAt:    now,
		LastReconcileAt:      now,
	}}
	market := fakeMarket{quote: core.Quote{Exchange: "mock", Ts: now}, ok: true}

	c := New(status, market, "mock", DefaultThresholds(), time.Minute)
	report := c.Check()

	assert.True(t, report.OK)
	assert.Empty(t, report.Warnings)
}

func TestCheckerWarnsOnStaleMarketData(t *testing.T) {
	status := fakeStatus{}
	market := fakeMarket{quote: core.Quote{Exchange: "mock", Ts: time.Now().Add(-30 * time.Second)}, ok: true}

	c := New(status, market, "mock", DefaultThresholds(), time.Minute)
	report := c.Check()

	assert.False(t, report.OK)
	assert.Contains(t, report.Warnings, "market data stale")
}

func TestCheckerNoQuoteWithinGraceWindowIsNotAWarning(t *testing.T) {
	status := fakeStatus{}
	market := fakeMarket{ok: false}

	c := New(status, market, "mock", DefaultThresholds(), time.Minute)
	report := c.Check()

	assert.True(t, report.OK)
}

func TestCheckerNoQuoteAfterGraceWindowWarns(t *testing.T) {
	status := fakeStatus{}
	market := fakeMarket{ok: false}

	c := New(status, market, "mock", DefaultThresholds(), time.Minute)
	c.startedAt = time.Now().Add(-2 * time.Minute)
	report := c.Check()

	assert.False(t, report.OK)
	assert.Contains(t, report.Warnings, "no market quote received")
}

func TestCheckerWarnsOnOverdueMaintenanceAndReconcile(t *testing.T) {
	now := time.Now()
	status := fakeStatus{snap: core.StatusSnapshot{
		LastMaintenanceAt: now.Add(-10 * time.Second),
		LastReconcileAt:   now.Add(-20 * time.Second),
	}}
	market := fakeMarket{quote: core.Quote{Exchange: "mock", Ts: now}, ok: true}

	c := New(status, market, "mock", DefaultThresholds(), time.Minute)
	report := c.Check()

	assert.False(t, report.OK)
	assert.Contains(t, report.Warnings, "maintenance pass overdue")
	assert.Contains(t, report.Warnings, "reconcile pass overdue")
}
