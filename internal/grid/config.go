package grid

import "github.com/shopspring/decimal"

// SpacingMode selects between the two geometries of §4.2.
type SpacingMode string

const (
	SpacingABS     SpacingMode = "ABS"
	SpacingPercent SpacingMode = "PERCENT"
)

// Config is the immutable grid geometry configuration derived from
// GRID_LEVELS / GRID_SPACING_MODE / GRID_SPACING / GRID_SPACING_PERCENT.
type Config struct {
	Levels        int // N: levels per side
	SpacingMode   SpacingMode
	Spacing       decimal.Decimal // s, ABS mode, s > 0
	SpacingPercent decimal.Decimal // p, PERCENT mode, p > 0
}
