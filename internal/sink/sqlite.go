package sink

import (
	"context"
	"database/sql"
	"fmt"

	_ "github.com/mattn/go-sqlite3"

	"gridbot/internal/core"
)

// SQLiteSink is the default OrderSink (§4.10), grounded on the teacher's
// internal/engine/simple.SQLiteStore: WAL mode for crash recovery, one row
// per key rather than the teacher's single-row-of-serialized-state design,
// since the sink's schema is a plain keyed upsert table, not a full engine
// snapshot.
type SQLiteSink struct {
	db *sql.DB
}

// NewSQLiteSink opens (creating if absent) the sink database at dbPath and
// ensures its schema exists.
func NewSQLiteSink(dbPath string) (*SQLiteSink, error) {
	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		return nil, fmt.Errorf("failed to enable WAL mode: %w", err)
	}

	const schema = `
CREATE TABLE IF NOT EXISTS order_records (
	exchange          TEXT NOT NULL,
	client_order_id   TEXT NOT NULL,
	exchange_order_id TEXT,
	symbol            TEXT NOT NULL,
	side              TEXT NOT NULL,
	price             TEXT NOT NULL,
	quantity          TEXT NOT NULL,
	status            TEXT NOT NULL,
	exchange_status   TEXT,
	level_index       INTEGER NOT NULL,
	created_at        INTEGER NOT NULL,
	updated_at        INTEGER NOT NULL,
	PRIMARY KEY (exchange, client_order_id)
);`
	if _, err := db.Exec(schema); err != nil {
		return nil, fmt.Errorf("failed to create schema: %w", err)
	}

	return &SQLiteSink{db: db}, nil
}

// RecordOrder upserts record keyed on (exchange, client_order_id).
// created_at is set only on first insert; on conflict, updated_at and the
// mutable state fields take this record's values. The stored updated_at is
// not compared, so it moves forward only as far as callers pass later
// UpdatedAt values.
func (s *SQLiteSink) RecordOrder(ctx context.Context, record core.OrderRecord) error {
	const query = `
INSERT INTO order_records (
	exchange, client_order_id, exchange_order_id, symbol, side, price,
	quantity, status, exchange_status, level_index, created_at, updated_at
) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
ON CONFLICT (exchange, client_order_id) DO UPDATE SET
	exchange_order_id = excluded.exchange_order_id,
	status            = excluded.status,
	exchange_status   = excluded.exchange_status,
	price             = excluded.price,
	quantity          = excluded.quantity,
	updated_at        = excluded.updated_at;`

	_, err := s.db.ExecContext(ctx, query,
		record.Exchange, record.ClientOrderID, record.ExchangeOrderID, record.Symbol,
		string(record.Side), record.Price.String(), record.Quantity.String(),
		string(record.Status), record.ExchangeStatus, record.LevelIndex,
		record.CreatedAt.UnixNano(), record.UpdatedAt.UnixNano(),
	)
	if err != nil {
		return fmt.Errorf("failed to upsert order record: %w", err)
	}
	return nil
}

// Close releases the underlying database handle.
func (s *SQLiteSink) Close() error {
	return s.db.Close()
}

var _ OrderSink = (*SQLiteSink)(nil)
