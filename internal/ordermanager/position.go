package ordermanager

import (
	"context"
	"time"

	"github.com/shopspring/decimal"

	"gridbot/internal/core"
)

// loadNetPosition implements §4.5.4's position-cache strategy: a fresh
// cached value is returned as-is; a stale one triggers a rate-limited REST
// refresh and falls back to the stale value if that refresh fails. usable
// is false when no snapshot is ready (none has been established yet, or a
// fill invalidated the cache) and this call did not complete a refresh,
// either because the refresh failed or because the rate limit held it
// back — the sync pass must skip entirely in that case.
func (m *Manager) loadNetPosition(ctx context.Context) (net decimal.Decimal, usable bool) {
	m.mu.Lock()
	ready := m.positionSnapshotReady
	cached := m.netPosition
	fresh := ready && time.Since(m.lastPositionUpdateAt) < m.cfg.PositionFreshWindow
	shouldRefresh := !fresh && time.Since(m.lastPositionRefreshAttempt) >= m.cfg.PositionRefreshMinInterval
	if shouldRefresh {
		m.lastPositionRefreshAttempt = time.Now()
	}
	m.mu.Unlock()

	if fresh {
		return cached, true
	}
	if !shouldRefresh {
		return cached, ready
	}

	var snap core.PositionSnapshot
	err := m.guard.Do(ctx, func(ctx context.Context) error {
		var err error
		snap, err = m.adapter.GetNetPosition(ctx, m.cfg.Symbol)
		return err
	})
	if err != nil {
		m.logger.Warn("position refresh failed, falling back to cached value", "error", err)
		return cached, ready
	}

	net = decimal.Zero
	if snap.HasSymbol {
		net = snap.NetPosition
	}

	m.mu.Lock()
	m.netPosition = net
	m.positionSnapshotReady = true
	m.lastPositionUpdateAt = time.Now()
	m.mu.Unlock()

	return net, true
}

// refreshPositionAfterShift best-effort warms the position cache right
// after a center shift so the sync pass that follows sees the latest
// value rather than waiting out the freshness window; it defers entirely
// to loadNetPosition's existing freshness/rate-limit rules and never
// blocks on failure.
func (m *Manager) refreshPositionAfterShift(ctx context.Context) {
	m.loadNetPosition(ctx)
}
