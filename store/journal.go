// Package store is the persistence layer: atomic JSON snapshots for live
// mutable state (orders, positions, risk counters) and a sqlite-backed
// trade journal for the durable historical record (SPEC_FULL.md's
// REDESIGN FLAGS persistence section).
package store

import (
	"database/sql"
	"fmt"
	"time"

	_ "modernc.org/sqlite"
)

// TradeJournal is the append-only record of every closed trade. The
// engine writes to it; nothing in the repository reads it back.
type TradeJournal struct {
	db *sql.DB
}

// JournalEntry is one closed trade row.
type JournalEntry struct {
	ID           int64     `json:"id"`
	Market       string    `json:"market"`
	Strategy     string    `json:"strategy"`
	Side         string    `json:"side"`
	EntryPrice   float64   `json:"entry_price"`
	ExitPrice    float64   `json:"exit_price"`
	Quantity     float64   `json:"quantity"`
	RealizedPnL  float64   `json:"realized_pnl"`
	Commission   float64   `json:"commission"`
	ExitReason   string    `json:"exit_reason"`
	EntryTime    time.Time `json:"entry_time"`
	ExitTime     time.Time `json:"exit_time"`
	IsPaper      bool      `json:"is_paper"`
}

func OpenTradeJournal(path string) (*TradeJournal, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("store: open trade journal: %w", err)
	}
	j := &TradeJournal{db: db}
	if err := j.initTables(); err != nil {
		db.Close()
		return nil, err
	}
	return j, nil
}

func (j *TradeJournal) Close() error { return j.db.Close() }

func (j *TradeJournal) initTables() error {
	_, err := j.db.Exec(`
		CREATE TABLE IF NOT EXISTS trades (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			market TEXT NOT NULL,
			strategy TEXT NOT NULL DEFAULT '',
			side TEXT NOT NULL,
			entry_price REAL NOT NULL,
			exit_price REAL NOT NULL,
			quantity REAL NOT NULL,
			realized_pnl REAL NOT NULL DEFAULT 0,
			commission REAL NOT NULL DEFAULT 0,
			exit_reason TEXT DEFAULT '',
			entry_time DATETIME NOT NULL,
			exit_time DATETIME NOT NULL,
			is_paper BOOLEAN NOT NULL DEFAULT 1
		)
	`)
	if err != nil {
		return fmt.Errorf("store: init trades table: %w", err)
	}

	_, _ = j.db.Exec(`CREATE INDEX IF NOT EXISTS idx_trades_market ON trades(market)`)
	_, _ = j.db.Exec(`CREATE INDEX IF NOT EXISTS idx_trades_exit_time ON trades(exit_time)`)

	// best-effort migration for deployments seeded before the strategy
	// column existed.
	_, _ = j.db.Exec(`ALTER TABLE trades ADD COLUMN strategy TEXT NOT NULL DEFAULT ''`)

	return nil
}

func (j *TradeJournal) RecordTrade(e JournalEntry) error {
	_, err := j.db.Exec(`
		INSERT INTO trades (market, strategy, side, entry_price, exit_price, quantity, realized_pnl, commission, exit_reason, entry_time, exit_time, is_paper)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, e.Market, e.Strategy, e.Side, e.EntryPrice, e.ExitPrice, e.Quantity, e.RealizedPnL, e.Commission, e.ExitReason, e.EntryTime, e.ExitTime, e.IsPaper)
	if err != nil {
		return fmt.Errorf("store: record trade: %w", err)
	}
	return nil
}

// TradesSince returns every trade whose exit_time is on or after since,
// ordered oldest-first. It has no caller in the repository.
func (j *TradeJournal) TradesSince(since time.Time) ([]JournalEntry, error) {
	rows, err := j.db.Query(`
		SELECT id, market, strategy, side, entry_price, exit_price, quantity, realized_pnl, commission, exit_reason, entry_time, exit_time, is_paper
		FROM trades WHERE exit_time >= ? ORDER BY exit_time ASC
	`, since)
	if err != nil {
		return nil, fmt.Errorf("store: query trades: %w", err)
	}
	defer rows.Close()

	var out []JournalEntry
	for rows.Next() {
		var e JournalEntry
		if err := rows.Scan(&e.ID, &e.Market, &e.Strategy, &e.Side, &e.EntryPrice, &e.ExitPrice, &e.Quantity, &e.RealizedPnL, &e.Commission, &e.ExitReason, &e.EntryTime, &e.ExitTime, &e.IsPaper); err != nil {
			return nil, fmt.Errorf("store: scan trade row: %w", err)
		}
		out = append(out, e)
	}
	return out, rows.Err()
}
