// Package clientid formats and parses the managed client-order-id of
// §4.5.6, grounded on the teacher's pkg/pbu.GenerateCompactOrderID /
// ParseCompactOrderID (a mutex-guarded monotonic sequence counter feeding
// a delimited id string) but reshaped to the spec's exact field order and
// delimiter, and with side/level recovery for ownership checks during
// reconciliation instead of price-bucket recovery.
package clientid

import (
	"fmt"
	"regexp"
	"strconv"
	"sync/atomic"

	"gridbot/internal/core"
	"gridbot/pkg/apperrors"
)

// idPattern recovers the trailing "-SIDE-levelIndex-sequence" suffix with a
// greedy prefix match, so a negative level_index's own leading '-' is
// captured as part of the level group rather than mistaken for a field
// delimiter (plain strings.Split on "-" cannot tell those apart).
var idPattern = regexp.MustCompile(`^(.+)-(BUY|SELL)-(-?\d+)-(\d+)$`)

// Generator produces client-order-ids of the form
// "<strategy_id>-<symbol>-<SIDE>-<level_index>-<sequence>", where sequence
// is a monotonically increasing per-process counter.
type Generator struct {
	strategyID string
	symbol     string
	seq        atomic.Uint64
}

// NewGenerator builds a Generator scoped to one strategy instance and
// symbol.
func NewGenerator(strategyID, symbol string) *Generator {
	return &Generator{strategyID: strategyID, symbol: symbol}
}

// Next formats the next client-order-id for the given side and level.
func (g *Generator) Next(side core.Side, levelIndex int) string {
	seq := g.seq.Add(1)
	return Format(g.strategyID, g.symbol, side, levelIndex, seq)
}

// Format builds a client-order-id string from its components.
func Format(strategyID, symbol string, side core.Side, levelIndex int, sequence uint64) string {
	return fmt.Sprintf("%s-%s-%s-%d-%d", strategyID, symbol, side, levelIndex, sequence)
}

// Parsed is the recovered structure of a client-order-id. Prefix is the
// "<strategy_id>-<symbol>" portion verbatim; strategy_id and symbol are
// themselves dash-free in practice, but since either could legally contain
// a dash, ownership is checked by reconstructing the same prefix string
// rather than by re-splitting it (see Owns).
type Parsed struct {
	Prefix     string
	Side       core.Side
	LevelIndex int
	Sequence   uint64
}

// Parse recovers the (side, level_index) components of a client-order-id
// previously produced by Format/Next (§4.5.6, §8's round-trip law:
// parse_level_index(format_client_order_id(side, i, n)) == i). A
// non-matching prefix (wrong strategy id or symbol) identifies an order
// that is not owned by this instance; callers must treat that as "ignore",
// not as an error — Parse still succeeds in that case so the caller can
// inspect Prefix and decide ownership itself via Owns.
func Parse(id string) (Parsed, error) {
	m := idPattern.FindStringSubmatch(id)
	if m == nil {
		return Parsed{}, apperrors.Newf(apperrors.ErrPreconditionViolation, "clientid: malformed id %q", id)
	}
	side := core.Side(m[2])
	levelIndex, err := strconv.Atoi(m[3])
	if err != nil {
		return Parsed{}, apperrors.Wrap(apperrors.ErrPreconditionViolation, "clientid: bad level index in "+id, err)
	}
	sequence, err := strconv.ParseUint(m[4], 10, 64)
	if err != nil {
		return Parsed{}, apperrors.Wrap(apperrors.ErrPreconditionViolation, "clientid: bad sequence in "+id, err)
	}

	return Parsed{
		Prefix:     m[1],
		Side:       side,
		LevelIndex: levelIndex,
		Sequence:   sequence,
	}, nil
}

// Owns reports whether a parsed id belongs to the given strategy instance
// and symbol.
func (p Parsed) Owns(strategyID, symbol string) bool {
	return p.Prefix == strategyID+"-"+symbol
}
