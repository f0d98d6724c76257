package ordermanager

import (
	"time"

	"github.com/shopspring/decimal"
)

// Config bundles everything the order manager needs beyond the grid
// geometry (which lives in grid.Config and is threaded through
// separately, since Steps/Price need it too).
type Config struct {
	StrategyID    string
	Symbol        string
	ExchangeName  string
	PostOnly      bool
	OrderQuantity decimal.Decimal
	MaxPosition   decimal.Decimal
	MaxOpenOrders int

	CancelTimeout time.Duration

	// MarkShiftConfirm is the §4.5.1 confirmation window; design value
	// 2000ms.
	MarkShiftConfirm time.Duration

	// PositionFreshWindow is §4.5.4's freshness threshold; design value
	// 15s.
	PositionFreshWindow time.Duration

	// PositionRefreshMinInterval rate-limits REST position refresh;
	// design value 2s.
	PositionRefreshMinInterval time.Duration
}

// DefaultTimings fills in the spec's design-value durations onto a Config
// that only set the required fields.
func DefaultTimings(cfg Config) Config {
	if cfg.MarkShiftConfirm == 0 {
		cfg.MarkShiftConfirm = 2000 * time.Millisecond
	}
	if cfg.PositionFreshWindow == 0 {
		cfg.PositionFreshWindow = 15 * time.Second
	}
	if cfg.PositionRefreshMinInterval == 0 {
		cfg.PositionRefreshMinInterval = 2 * time.Second
	}
	return cfg
}
