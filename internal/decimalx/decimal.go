// Package decimalx adapts github.com/shopspring/decimal to the rounding
// and step-alignment contract the grid engine needs: §4.1's round-down,
// the percent-mode cross-step count, and tick/lot alignment in the style
// of the teacher's pkg/tradingutils (RoundPrice/RoundQuantity), but with
// floor-toward-zero-or-below semantics instead of half-up rounding.
package decimalx

import (
	"math"

	"github.com/shopspring/decimal"

	"gridbot/pkg/apperrors"
)

// Zero is decimal.Decimal's zero value, re-exported for readability at call
// sites that compare against "no value yet".
var Zero = decimal.Zero

// RoundDown implements §4.1's rounding contract: floor(value/step) * step.
// step must be > 0; violating that is a PreconditionViolation, not a panic,
// per §7.
func RoundDown(value, step decimal.Decimal) (decimal.Decimal, error) {
	if step.Sign() <= 0 {
		return decimal.Decimal{}, apperrors.Newf(apperrors.ErrPreconditionViolation,
			"round_down: step must be > 0, got %s", step.String())
	}
	quotient := value.Div(step)
	floored := quotient.Floor()
	return floored.Mul(step), nil
}

// PowInt raises base to a non-negative integer exponent using repeated
// squaring, avoiding the precision loss of float exponentiation on the
// trading path.
func PowInt(base decimal.Decimal, exp int) decimal.Decimal {
	if exp < 0 {
		// Only non-negative integer powers are needed by grid geometry;
		// negative exponents invert afterward at the call site (§4.2
		// PERCENT mode divides by Pow(1+p, |i|) for i < 0).
		return decimal.Decimal{}
	}
	result := decimal.NewFromInt(1)
	b := base
	for exp > 0 {
		if exp&1 == 1 {
			result = result.Mul(b)
		}
		b = b.Mul(b)
		exp >>= 1
	}
	return result
}

// LogRatio computes log(r) using float64, the one tolerated floating-point
// operation on the trading path (§4.2, §9): the result feeds into an
// integer floor, and the decision boundary is a whole number of grid
// spacings apart, so float error near the boundary misclassifies by at
// most one step — a case the mark-shift confirmation window already
// absorbs.
func LogRatio(r decimal.Decimal) float64 {
	f, _ := r.Float64()
	return math.Log(f)
}

// FloorDiv returns floor(a/b) as an int, used by §4.2's ABS-mode step
// count: sign(mark-center) * floor(|mark-center| / s).
func FloorDiv(a, b decimal.Decimal) int64 {
	q := a.Div(b).Floor()
	return q.IntPart()
}
