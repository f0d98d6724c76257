package grid

import (
	"time"

	"github.com/shopspring/decimal"

	"gridbot/internal/core"
)

// State is the §3 grid state aggregate: the in-memory level table plus the
// order table. The order manager is its sole writer (§5); everyone else
// reads published snapshots.
type State struct {
	Config Config

	hasCenter     bool
	centerPrice   decimal.Decimal
	hasMark       bool
	lastMark      decimal.Decimal
	lastQuoteTs   time.Time
	lastRebuildAt time.Time

	levels map[int]core.Level
	orders map[string]core.GridOrderState
}

// New builds an empty grid state for the given geometry config. No center
// exists until Reset is called (normally from the first-quote handler).
func New(cfg Config) *State {
	return &State{
		Config: cfg,
		levels: make(map[int]core.Level),
		orders: make(map[string]core.GridOrderState),
	}
}

// HasCenter reports whether a center price has been established.
func (s *State) HasCenter() bool { return s.hasCenter }

// CenterPrice returns the current center; only meaningful if HasCenter.
func (s *State) CenterPrice() decimal.Decimal { return s.centerPrice }

// LastMark returns the last mark recorded by UpdateMark.
func (s *State) LastMark() (decimal.Decimal, bool) { return s.lastMark, s.hasMark }

// LastQuoteTs returns the timestamp of the last UpdateMark call.
func (s *State) LastQuoteTs() time.Time { return s.lastQuoteTs }

// LastRebuildAt returns the timestamp of the last Reset or ShiftCenter.
func (s *State) LastRebuildAt() time.Time { return s.lastRebuildAt }

// Levels returns a copy of the level table, keyed by index.
func (s *State) Levels() map[int]core.Level {
	out := make(map[int]core.Level, len(s.levels))
	for k, v := range s.levels {
		out[k] = v
	}
	return out
}

// Level looks up a single level by index.
func (s *State) Level(index int) (core.Level, bool) {
	l, ok := s.levels[index]
	return l, ok
}

// Orders returns a copy of the order table, keyed by client order id.
func (s *State) Orders() map[string]core.GridOrderState {
	out := make(map[string]core.GridOrderState, len(s.orders))
	for k, v := range s.orders {
		out[k] = v
	}
	return out
}

// Order looks up a single order by client order id.
func (s *State) Order(clientOrderID string) (core.GridOrderState, bool) {
	o, ok := s.orders[clientOrderID]
	return o, ok
}

// OrderAtLevel returns the non-terminal order bound to (index, side), if
// any (§8 invariant: at most one such order exists).
func (s *State) OrderAtLevel(index int, side core.Side) (core.GridOrderState, bool) {
	for _, o := range s.orders {
		if o.Status.IsTerminal() {
			continue
		}
		if o.LevelIndex == index && o.Side == side {
			return o, true
		}
	}
	return core.GridOrderState{}, false
}

// Reset rebuilds the symmetric levels from scratch around center, clears
// all orders, and stamps last_rebuild_at (§4.3).
func (s *State) Reset(center decimal.Decimal, now time.Time) error {
	levels, err := BuildLevels(center, s.Config)
	if err != nil {
		return err
	}
	s.hasCenter = true
	s.centerPrice = center
	s.levels = levels
	s.orders = make(map[string]core.GridOrderState)
	s.lastRebuildAt = now
	return nil
}

// UpdateMark records last_mark/last_quote_ts; it never alters levels
// (§4.3).
func (s *State) UpdateMark(mark decimal.Decimal, ts time.Time) {
	s.hasMark = true
	s.lastMark = mark
	s.lastQuoteTs = ts
}

// UpsertOrder applies §4.3's upsert_order contract: a terminal order is
// removed and detached from its level; a non-terminal order is
// inserted/replaced and bound to its level iff the level's target side
// matches the order's side (otherwise it is left unbound — the defensive
// orphan case used by reconciliation).
func (s *State) UpsertOrder(order core.GridOrderState) {
	if order.Status.IsTerminal() {
		delete(s.orders, order.ClientOrderID)
		return
	}
	s.orders[order.ClientOrderID] = order
}

// IsBound reports whether order o is currently bound to a level matching
// its side (used by callers that need to distinguish orphans after
// UpsertOrder, since State itself stores orders keyed by id regardless of
// binding).
func (s *State) IsBound(o core.GridOrderState) bool {
	level, ok := s.levels[o.LevelIndex]
	return ok && level.TargetSide == o.Side
}

// ShiftCenter implements §4.3's shift_center: computes the new center via
// geometry, rebuilds levels, remaps every existing order's level_index by
// subtracting steps, and collects into OutOfRangeOrders every order whose
// new index falls outside [-N,+N] or whose side now disagrees with the new
// level's target side. Order status is not mutated here; cancellation is
// the caller's responsibility (§4.3).
func (s *State) ShiftCenter(steps int, now time.Time) (core.ShiftResult, error) {
	if steps == 0 {
		return core.ShiftResult{NewCenterPrice: s.centerPrice, Steps: 0}, nil
	}
	newCenter, err := Price(s.centerPrice, steps, s.Config)
	if err != nil {
		return core.ShiftResult{}, err
	}

	newLevels, err := BuildLevels(newCenter, s.Config)
	if err != nil {
		return core.ShiftResult{}, err
	}

	remapped := make(map[string]core.GridOrderState, len(s.orders))
	var outOfRange []core.GridOrderState

	for id, o := range s.orders {
		o.LevelIndex -= steps
		if newLevel, ok := newLevels[o.LevelIndex]; !ok || newLevel.TargetSide != o.Side {
			outOfRange = append(outOfRange, o)
		}
		remapped[id] = o
	}

	s.centerPrice = newCenter
	s.levels = newLevels
	s.orders = remapped
	s.lastRebuildAt = now

	return core.ShiftResult{NewCenterPrice: newCenter, Steps: steps, OutOfRangeOrders: outOfRange}, nil
}

// PendingTotals sums quantity of non-terminal orders per side, the
// (pending_buy, pending_sell) inputs to §4.4's risk guard and §4.5.2's
// sync procedure.
func (s *State) PendingTotals() (pendingBuy, pendingSell decimal.Decimal) {
	pendingBuy, pendingSell = decimal.Zero, decimal.Zero
	for _, o := range s.orders {
		if o.Status.IsTerminal() {
			continue
		}
		switch o.Side {
		case core.Buy:
			pendingBuy = pendingBuy.Add(o.Quantity)
		case core.Sell:
			pendingSell = pendingSell.Add(o.Quantity)
		}
	}
	return pendingBuy, pendingSell
}

// ActiveOrderCount returns the number of non-terminal managed orders, the
// quantity §8 bounds by max_open_orders.
func (s *State) ActiveOrderCount() int {
	n := 0
	for _, o := range s.orders {
		if !o.Status.IsTerminal() {
			n++
		}
	}
	return n
}
