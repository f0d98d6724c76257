package sink

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"gridbot/internal/core"
)

func TestSQLiteSinkUpsertIsKeyedOnExchangeAndClientOrderID(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "orders.db")
	s, err := NewSQLiteSink(dbPath)
	require.NoError(t, err)
	defer s.Close()

	created := time.Now()
	rec := core.OrderRecord{
		Exchange:      "binance",
		ClientOrderID: "grid-default-BTC-BUY--1-1",
		Symbol:        "BTC",
		Side:          core.Buy,
		Price:         decimal.RequireFromString("90"),
		Quantity:      decimal.RequireFromString("1"),
		Status:        core.Acked,
		LevelIndex:    -1,
		CreatedAt:     created,
		UpdatedAt:     created,
	}
	require.NoError(t, s.RecordOrder(context.Background(), rec))

	rec.Status = core.Filled
	rec.UpdatedAt = created.Add(time.Second)
	require.NoError(t, s.RecordOrder(context.Background(), rec))

	var count int
	var status string
	row := s.db.QueryRow(`SELECT COUNT(*), status FROM order_records WHERE exchange=? AND client_order_id=? GROUP BY status`,
		rec.Exchange, rec.ClientOrderID)
	require.NoError(t, row.Scan(&count, &status))
	assert.Equal(t, 1, count)
	assert.Equal(t, string(core.Filled), status)
}
