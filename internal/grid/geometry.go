// Package grid implements §4.2 grid geometry and §4.3 grid state
// operations: level-price computation, cross-step calculation, and the
// reset/update_mark/upsert_order/shift_center state transitions. It is
// grounded on the teacher's pkg/tradingutils.CalculatePriceLevels and
// FindNearestGridPrice, generalized from a single fixed spacing to the two
// spacing modes the spec requires and from float64 to decimal throughout
// (except the log-ratio tolerated by §4.2/§9).
package grid

import (
	"math"

	"github.com/shopspring/decimal"

	"gridbot/internal/core"
	"gridbot/internal/decimalx"
	"gridbot/pkg/apperrors"
)

// Price computes price(i) for the configured spacing mode (§4.2).
//
//   ABS:     price(i) = center + i*s
//   PERCENT: price(i) = center*(1+p)^|i|   for i > 0
//            price(i) = center/(1+p)^|i|   for i < 0
//            price(0) = center
func Price(center decimal.Decimal, i int, cfg Config) (decimal.Decimal, error) {
	switch cfg.SpacingMode {
	case SpacingABS:
		if cfg.Spacing.Sign() <= 0 {
			return decimal.Decimal{}, apperrors.New(apperrors.ErrPreconditionViolation, "ABS spacing must be > 0")
		}
		return center.Add(cfg.Spacing.Mul(decimal.NewFromInt(int64(i)))), nil
	case SpacingPercent:
		if cfg.SpacingPercent.Sign() <= 0 {
			return decimal.Decimal{}, apperrors.New(apperrors.ErrPreconditionViolation, "PERCENT spacing must be > 0")
		}
		if i == 0 {
			return center, nil
		}
		factor := decimalx.PowInt(decimal.NewFromInt(1).Add(cfg.SpacingPercent), absInt(i))
		if i > 0 {
			return center.Mul(factor), nil
		}
		return center.Div(factor), nil
	default:
		return decimal.Decimal{}, apperrors.Newf(apperrors.ErrPreconditionViolation, "unknown spacing mode %q", cfg.SpacingMode)
	}
}

// Steps computes steps(center, mark, cfg) per §4.2. Preconditions:
// center > 0, mark > 0.
func Steps(center, mark decimal.Decimal, cfg Config) (int, error) {
	if center.Sign() <= 0 {
		return 0, apperrors.New(apperrors.ErrPreconditionViolation, "steps: center must be > 0")
	}
	if mark.Sign() <= 0 {
		return 0, apperrors.New(apperrors.ErrPreconditionViolation, "steps: mark must be > 0")
	}

	switch cfg.SpacingMode {
	case SpacingABS:
		if cfg.Spacing.Sign() <= 0 {
			return 0, apperrors.New(apperrors.ErrPreconditionViolation, "ABS spacing must be > 0")
		}
		diff := mark.Sub(center)
		sign := diff.Sign()
		if sign == 0 {
			return 0, nil
		}
		n := decimalx.FloorDiv(diff.Abs(), cfg.Spacing)
		return sign * int(n), nil
	case SpacingPercent:
		if cfg.SpacingPercent.Sign() <= 0 {
			return 0, apperrors.New(apperrors.ErrPreconditionViolation, "PERCENT spacing must be > 0")
		}
		r := mark.Div(center)
		switch {
		case r.Equal(decimal.NewFromInt(1)):
			return 0, nil
		case r.GreaterThan(decimal.NewFromInt(1)):
			logBase := decimalx.LogRatio(decimal.NewFromInt(1).Add(cfg.SpacingPercent))
			return int(math.Floor(decimalx.LogRatio(r) / logBase)), nil
		default:
			logBase := decimalx.LogRatio(decimal.NewFromInt(1).Add(cfg.SpacingPercent))
			inv := decimal.NewFromInt(1).Div(r)
			return -int(math.Floor(decimalx.LogRatio(inv) / logBase)), nil
		}
	default:
		return 0, apperrors.Newf(apperrors.ErrPreconditionViolation, "unknown spacing mode %q", cfg.SpacingMode)
	}
}

// BuildLevels constructs the symmetric {-N...0...+N} level table around
// center for the given config (used by reset and full rebuild).
func BuildLevels(center decimal.Decimal, cfg Config) (map[int]core.Level, error) {
	levels := make(map[int]core.Level, 2*cfg.Levels+1)
	for i := -cfg.Levels; i <= cfg.Levels; i++ {
		price, err := Price(center, i, cfg)
		if err != nil {
			return nil, err
		}
		side := core.Side("")
		switch {
		case i < 0:
			side = core.Buy
		case i > 0:
			side = core.Sell
		}
		levels[i] = core.Level{Index: i, TargetSide: side, Price: price}
	}
	return levels, nil
}

func absInt(i int) int {
	if i < 0 {
		return -i
	}
	return i
}
