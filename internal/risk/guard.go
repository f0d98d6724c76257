// Package risk implements §4.4's max-position admission rule, the single
// check gating every candidate placement in the sync pass. Grounded on the
// teacher's internal/safety.SafetyChecker in spirit (a pure, stateless
// check fed live inputs by the caller) but reduced to exactly the
// worst-case position rule the spec defines; the teacher's leverage,
// balance, and profitability checks belong to the adapter's own risk
// surface, not the core engine's.
package risk

import (
	"github.com/shopspring/decimal"

	"gridbot/internal/core"
)

// AdmitPlacement evaluates §4.4's worst-case rule for a candidate
// placement. pendingBuy/pendingSell are the sums of non-terminal same-side
// orders already accounted for in this sync pass.
//
//	BUY:  admit iff netPosition + pendingBuy + orderQty <= maxPosition
//	SELL: admit iff netPosition - pendingSell - orderQty >= -maxPosition
func AdmitPlacement(side core.Side, netPosition, pendingBuy, pendingSell, orderQty, maxPosition decimal.Decimal) bool {
	switch side {
	case core.Buy:
		worstCase := netPosition.Add(pendingBuy).Add(orderQty)
		return worstCase.LessThanOrEqual(maxPosition)
	case core.Sell:
		worstCase := netPosition.Sub(pendingSell).Sub(orderQty)
		return worstCase.GreaterThanOrEqual(maxPosition.Neg())
	default:
		return false
	}
}
