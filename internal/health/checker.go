// Package health implements §4.9: the health checker reads the order
// manager's status snapshot and the market-data fan-out's latest
// snapshot, compares timestamp ages against configured thresholds, and
// emits a report. Grounded on the teacher's
// internal/infrastructure/health.HealthManager (a registry of named
// checks aggregated into an overall healthy/unhealthy verdict), adapted
// from arbitrary check functions to the spec's fixed set of staleness
// comparisons.
package health

import (
	"time"

	"gridbot/internal/core"
)

// Thresholds holds the staleness design defaults of §4.9.
type Thresholds struct {
	Market      time.Duration
	Position    time.Duration
	Maintenance time.Duration
	Reconcile   time.Duration
}

// DefaultThresholds returns the spec's design-value staleness thresholds.
func DefaultThresholds() Thresholds {
	return Thresholds{
		Market:      15 * time.Second,
		Position:    60 * time.Second,
		Maintenance: 5 * time.Second,
		Reconcile:   15 * time.Second,
	}
}

// StatusSource is the order manager's published surface.
type StatusSource interface {
	StatusSnapshot() core.StatusSnapshot
}

// MarketSource is the market-data fan-out's published surface, narrowed
// to what the health checker needs.
type MarketSource interface {
	GetLatestQuote(exchange string) (core.Quote, bool)
}

// Checker evaluates health on demand; it holds no background goroutine of
// its own (Check runs each time Server's /health handler is called).
type Checker struct {
	status     StatusSource
	market     MarketSource
	exchange   string
	thresholds Thresholds
	startedAt  time.Time
	graceWindow time.Duration
}

// New builds a Checker. graceWindow suppresses the "no market quote yet"
// warning for that long after startup, per §4.9's grace-period allowance.
func New(status StatusSource, market MarketSource, exchange string, thresholds Thresholds, graceWindow time.Duration) *Checker {
	return &Checker{
		status:      status,
		market:      market,
		exchange:    exchange,
		thresholds:  thresholds,
		startedAt:   time.Now(),
		graceWindow: graceWindow,
	}
}

// Check produces a core.HealthReport comparing current timestamp ages
// against thresholds. An absent timestamp prior to first data is "no
// warning" except for the market quote, which must arrive within the
// grace window.
func (c *Checker) Check() core.HealthReport {
	now := time.Now()
	snap := c.status.StatusSnapshot()

	report := core.HealthReport{OK: true}

	quote, haveQuote := c.market.GetLatestQuote(c.exchange)
	switch {
	case haveQuote:
		report.MarketAge = now.Sub(quote.Ts)
		if report.MarketAge >= c.thresholds.Market {
			report.OK = false
			report.Warnings = append(report.Warnings, "market data stale")
		}
	case now.Sub(c.startedAt) >= c.graceWindow:
		report.OK = false
		report.Warnings = append(report.Warnings, "no market quote received")
	}

	if !snap.LastPositionUpdateAt.IsZero() {
		report.PositionAge = now.Sub(snap.LastPositionUpdateAt)
		if report.PositionAge >= c.thresholds.Position {
			report.OK = false
			report.Warnings = append(report.Warnings, "position cache stale")
		}
	}

	if !snap.LastMaintenanceAt.IsZero() {
		report.MaintenanceAge = now.Sub(snap.LastMaintenanceAt)
		if report.MaintenanceAge >= c.thresholds.Maintenance {
			report.OK = false
			report.Warnings = append(report.Warnings, "maintenance pass overdue")
		}
	}

	if !snap.LastReconcileAt.IsZero() {
		report.ReconcileAge = now.Sub(snap.LastReconcileAt)
		if report.ReconcileAge >= c.thresholds.Reconcile {
			report.OK = false
			report.Warnings = append(report.Warnings, "reconcile pass overdue")
		}
	}

	return report
}
