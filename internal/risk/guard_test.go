package risk

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"

	"gridbot/internal/core"
)

func d(s string) decimal.Decimal {
	v, _ := decimal.NewFromString(s)
	return v
}

func TestAdmitPlacementMaxPositionCap(t *testing.T) {
	maxPos := d("2")
	qty := d("1")
	net := d("0")

	// Scenario 6: first two BUYs admitted, third rejected.
	pendingBuy := d("0")
	assert.True(t, AdmitPlacement(core.Buy, net, pendingBuy, d("0"), qty, maxPos))
	pendingBuy = pendingBuy.Add(qty)

	assert.True(t, AdmitPlacement(core.Buy, net, pendingBuy, d("0"), qty, maxPos))
	pendingBuy = pendingBuy.Add(qty)

	assert.False(t, AdmitPlacement(core.Buy, net, pendingBuy, d("0"), qty, maxPos))
}

func TestAdmitPlacementSellSymmetric(t *testing.T) {
	maxPos := d("2")
	qty := d("1")
	net := d("0")

	pendingSell := d("0")
	assert.True(t, AdmitPlacement(core.Sell, net, d("0"), pendingSell, qty, maxPos))
	pendingSell = pendingSell.Add(qty)

	assert.True(t, AdmitPlacement(core.Sell, net, d("0"), pendingSell, qty, maxPos))
	pendingSell = pendingSell.Add(qty)

	assert.False(t, AdmitPlacement(core.Sell, net, d("0"), pendingSell, qty, maxPos))
}

func TestAdmitPlacementBoundaryEquality(t *testing.T) {
	// Exactly at max_position is admitted (rule uses <=, >=).
	assert.True(t, AdmitPlacement(core.Buy, d("0"), d("1"), d("0"), d("1"), d("2")))
	assert.True(t, AdmitPlacement(core.Sell, d("0"), d("0"), d("1"), d("1"), d("2")))
}
