package grid

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"gridbot/internal/core"
)

func newOrder(id string, side core.Side, idx int, status core.OrderStatus) core.GridOrderState {
	return core.GridOrderState{
		ClientOrderID: id,
		Side:          side,
		LevelIndex:    idx,
		Status:        status,
		Quantity:      d("1"),
	}
}

func TestResetBuildsSymmetricLevelsAndClearsOrders(t *testing.T) {
	s := New(absCfg(3, "10"))
	require.NoError(t, s.Reset(d("100"), time.Now()))
	assert.True(t, s.HasCenter())
	assert.True(t, s.CenterPrice().Equal(d("100")))
	assert.Len(t, s.Levels(), 7)

	s.UpsertOrder(newOrder("o1", core.Buy, -1, core.Acked))
	require.NoError(t, s.Reset(d("200"), time.Now()))
	assert.Empty(t, s.Orders())
}

func TestUpdateMarkDoesNotAlterLevels(t *testing.T) {
	s := New(absCfg(3, "10"))
	require.NoError(t, s.Reset(d("100"), time.Now()))
	before := s.Levels()
	s.UpdateMark(d("105"), time.Now())
	assert.Equal(t, before, s.Levels())
	mark, ok := s.LastMark()
	assert.True(t, ok)
	assert.True(t, mark.Equal(d("105")))
}

func TestUpsertOrderTerminalRemoves(t *testing.T) {
	s := New(absCfg(3, "10"))
	require.NoError(t, s.Reset(d("100"), time.Now()))

	o := newOrder("o1", core.Buy, -1, core.Acked)
	s.UpsertOrder(o)
	_, ok := s.Order("o1")
	assert.True(t, ok)

	o.Status = core.Filled
	s.UpsertOrder(o)
	_, ok = s.Order("o1")
	assert.False(t, ok)
}

func TestUpsertOrderIdempotent(t *testing.T) {
	s := New(absCfg(3, "10"))
	require.NoError(t, s.Reset(d("100"), time.Now()))

	o := newOrder("o1", core.Buy, -1, core.Acked)
	s.UpsertOrder(o)
	first := s.Orders()
	s.UpsertOrder(o)
	second := s.Orders()
	assert.Equal(t, first, second)
}

func TestUpsertOrderOrphanWhenSideMismatchesLevel(t *testing.T) {
	s := New(absCfg(3, "10"))
	require.NoError(t, s.Reset(d("100"), time.Now()))

	// level -1 is a BUY level; binding a SELL there is the orphan case.
	o := newOrder("o1", core.Sell, -1, core.Acked)
	s.UpsertOrder(o)
	got, ok := s.Order("o1")
	require.True(t, ok)
	assert.False(t, s.IsBound(got))
}

func TestShiftCenterZeroIsNoOp(t *testing.T) {
	s := New(absCfg(3, "10"))
	require.NoError(t, s.Reset(d("100"), time.Now()))
	s.UpsertOrder(newOrder("o1", core.Buy, -1, core.Acked))
	before := s.Levels()
	beforeOrders := s.Orders()

	result, err := s.ShiftCenter(0, time.Now())
	require.NoError(t, err)
	assert.Equal(t, 0, result.Steps)
	assert.Empty(t, result.OutOfRangeOrders)
	assert.Equal(t, before, s.Levels())
	assert.Equal(t, beforeOrders, s.Orders())
}

func TestShiftCenterRemapsAndFlagsOutOfRange(t *testing.T) {
	s := New(absCfg(3, "10"))
	require.NoError(t, s.Reset(d("100"), time.Now()))

	// Level -3 (BUY @ 70) will shift out of range when steps=2: new index
	// -3-2=-5, outside [-3,3].
	s.UpsertOrder(newOrder("edge", core.Buy, -3, core.Acked))
	// Level -1 (BUY @ 90) remains in range: new index -1-2=-3.
	s.UpsertOrder(newOrder("stays", core.Buy, -1, core.Acked))

	result, err := s.ShiftCenter(2, time.Now())
	require.NoError(t, err)
	assert.Equal(t, 2, result.Steps)
	assert.True(t, result.NewCenterPrice.Equal(d("120")))

	require.Len(t, result.OutOfRangeOrders, 1)
	assert.Equal(t, "edge", result.OutOfRangeOrders[0].ClientOrderID)

	stayed, ok := s.Order("stays")
	require.True(t, ok)
	assert.Equal(t, -3, stayed.LevelIndex)
}

func TestPendingTotalsIgnoresTerminal(t *testing.T) {
	s := New(absCfg(3, "10"))
	require.NoError(t, s.Reset(d("100"), time.Now()))
	s.UpsertOrder(newOrder("o1", core.Buy, -1, core.Acked))
	s.UpsertOrder(newOrder("o2", core.Sell, 1, core.Acked))

	buy, sell := s.PendingTotals()
	assert.True(t, buy.Equal(d("1")))
	assert.True(t, sell.Equal(d("1")))

	assert.Equal(t, 2, s.ActiveOrderCount())
}
