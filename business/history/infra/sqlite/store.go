// Package sqlite persists the price history journal in an embedded sqlite
// database.
package sqlite

import (
	"context"
	"database/sql"
	"time"

	"github.com/shopspring/decimal"
	_ "modernc.org/sqlite"

	"github.com/autobot-tf/pricewatch/business/history/app"
	"github.com/autobot-tf/pricewatch/internal/apperror"
)

const schema = `
CREATE TABLE IF NOT EXISTS price_updates (
	id         INTEGER PRIMARY KEY AUTOINCREMENT,
	sku        TEXT    NOT NULL,
	time       INTEGER NOT NULL,
	buy_keys   INTEGER NOT NULL,
	buy_metal  TEXT    NOT NULL,
	sell_keys  INTEGER NOT NULL,
	sell_metal TEXT    NOT NULL,
	buy_delta  TEXT,
	sell_delta TEXT,
	is_new     INTEGER NOT NULL DEFAULT 0,
	created_at TIMESTAMP NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_price_updates_sku_time ON price_updates(sku, time DESC);
CREATE INDEX IF NOT EXISTS idx_price_updates_created ON price_updates(created_at);
`

// Store implements the journal's Recorder port on modernc.org/sqlite.
type Store struct {
	db *sql.DB
}

// Open opens (creating if needed) the database in WAL mode.
func Open(path string) (*Store, error) {
	dsn := "file:" + path + "?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)&_pragma=synchronous(NORMAL)"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, apperror.Wrap(err, apperror.CodeHistoryWriteFailed, "open database")
	}
	// A single writer keeps sqlite lock contention out of the price path.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, apperror.Wrap(err, apperror.CodeHistoryWriteFailed, "apply schema")
	}
	return &Store{db: db}, nil
}

// Record inserts one journal row.
func (s *Store) Record(ctx context.Context, row app.Row) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO price_updates
			(sku, time, buy_keys, buy_metal, sell_keys, sell_metal, buy_delta, sell_delta, is_new, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		row.SKU, row.Time,
		row.Buy.Keys, row.Buy.Metal.String(),
		row.Sell.Keys, row.Sell.Metal.String(),
		decimalString(row.BuyDelta), decimalString(row.SellDelta),
		boolToInt(row.IsNew), row.CreatedAt,
	)
	if err != nil {
		return apperror.Wrap(err, apperror.CodeHistoryWriteFailed, "insert row for "+row.SKU)
	}
	return nil
}

// Recent returns up to limit rows for a SKU, newest first.
func (s *Store) Recent(ctx context.Context, sku string, limit int) ([]app.Row, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT sku, time, buy_keys, buy_metal, sell_keys, sell_metal, buy_delta, sell_delta, is_new, created_at
		FROM price_updates
		WHERE sku = ?
		ORDER BY time DESC, id DESC
		LIMIT ?`, sku, limit)
	if err != nil {
		return nil, apperror.Wrap(err, apperror.CodeHistoryQueryFailed, "query "+sku)
	}
	defer rows.Close()

	var out []app.Row
	for rows.Next() {
		var (
			row                  app.Row
			buyMetal, sellMetal  string
			buyDelta, sellDelta  sql.NullString
			isNew                int
		)
		if err := rows.Scan(&row.SKU, &row.Time,
			&row.Buy.Keys, &buyMetal, &row.Sell.Keys, &sellMetal,
			&buyDelta, &sellDelta, &isNew, &row.CreatedAt); err != nil {
			return nil, apperror.Wrap(err, apperror.CodeHistoryQueryFailed, "scan row")
		}
		if row.Buy.Metal, err = decimal.NewFromString(buyMetal); err != nil {
			return nil, apperror.Wrap(err, apperror.CodeHistoryQueryFailed, "bad buy metal")
		}
		if row.Sell.Metal, err = decimal.NewFromString(sellMetal); err != nil {
			return nil, apperror.Wrap(err, apperror.CodeHistoryQueryFailed, "bad sell metal")
		}
		row.BuyDelta = parseDelta(buyDelta)
		row.SellDelta = parseDelta(sellDelta)
		row.IsNew = isNew != 0
		out = append(out, row)
	}
	if err := rows.Err(); err != nil {
		return nil, apperror.Wrap(err, apperror.CodeHistoryQueryFailed, "iterate rows")
	}
	return out, nil
}

// Sweep deletes rows created before the cutoff and returns the count.
func (s *Store) Sweep(ctx context.Context, olderThan time.Time) (int64, error) {
	res, err := s.db.ExecContext(ctx,
		`DELETE FROM price_updates WHERE created_at < ?`, olderThan)
	if err != nil {
		return 0, apperror.Wrap(err, apperror.CodeHistoryWriteFailed, "sweep")
	}
	return res.RowsAffected()
}

// Ping verifies the database is reachable. Used by the health check.
func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// Close closes the database.
func (s *Store) Close() error {
	return s.db.Close()
}

func decimalString(d *decimal.Decimal) any {
	if d == nil {
		return nil
	}
	return d.String()
}

func parseDelta(v sql.NullString) *decimal.Decimal {
	if !v.Valid {
		return nil
	}
	d, err := decimal.NewFromString(v.String)
	if err != nil {
		return nil
	}
	return &d
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

var _ app.Recorder = (*Store)(nil)
