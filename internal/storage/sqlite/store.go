// Package sqlite keeps the append-only trade, balance and signal logs.
package sqlite

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"spot_trader/internal/models"

	_ "github.com/mattn/go-sqlite3"
	"github.com/shopspring/decimal"
)

type Store struct {
	db *sql.DB
}

func Open(dbPath string) (*Store, error) {
	if strings.TrimSpace(dbPath) == "" {
		return nil, fmt.Errorf("db path is required")
	}

	if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
		return nil, fmt.Errorf("create db dir: %w", err)
	}

	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}

	pragmas := []string{
		"PRAGMA journal_mode=WAL;",
		"PRAGMA busy_timeout=3000;",
		"PRAGMA synchronous=NORMAL;",
	}
	for _, p := range pragmas {
		if _, err := db.Exec(p); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("set pragma %s: %w", p, err)
		}
	}

	if err := initSchema(db); err != nil {
		_ = db.Close()
		return nil, err
	}

	return &Store{db: db}, nil
}

func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

func initSchema(db *sql.DB) error {
	schema := `
CREATE TABLE IF NOT EXISTS trades (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    pair TEXT NOT NULL,
    side TEXT NOT NULL,
    price TEXT NOT NULL,
    qty TEXT NOT NULL,
    signal TEXT,
    reason TEXT,
    paper INTEGER NOT NULL DEFAULT 0,
    order_id TEXT,
    trade_num INTEGER NOT NULL DEFAULT 0,
    traded_at TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS balances (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    balances TEXT NOT NULL,
    taken_at TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS signals (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    pair TEXT NOT NULL,
    strategy TEXT NOT NULL,
    action TEXT NOT NULL,
    signal TEXT,
    reason TEXT,
    price REAL NOT NULL,
    signaled_at TEXT NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_trades_pair ON trades(pair, id);
CREATE INDEX IF NOT EXISTS idx_signals_pair ON signals(pair, id);
`

	if _, err := db.Exec(schema); err != nil {
		return fmt.Errorf("init schema: %w", err)
	}
	return nil
}

func (s *Store) RecordTrade(t models.TradeRecord) error {
	paper := 0
	if t.Paper {
		paper = 1
	}
	_, err := s.db.Exec(`
INSERT INTO trades (pair, side, price, qty, signal, reason, paper, order_id, trade_num, traded_at)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		t.Pair, string(t.Side), t.Price.String(), t.Qty.String(), string(t.Signal), t.Reason,
		paper, t.OrderID, t.TradeNum, formatTime(t.Time),
	)
	if err != nil {
		return fmt.Errorf("insert trade: %w", err)
	}
	return nil
}

func (s *Store) RecordBalances(snap models.BalanceSnapshot) error {
	b, err := json.Marshal(snap.Balances)
	if err != nil {
		return fmt.Errorf("marshal balances: %w", err)
	}
	if _, err := s.db.Exec(`INSERT INTO balances (balances, taken_at) VALUES (?, ?)`,
		string(b), formatTime(snap.Time)); err != nil {
		return fmt.Errorf("insert balances: %w", err)
	}
	return nil
}

func (s *Store) RecordSignal(sig models.TradeSignal) error {
	_, err := s.db.Exec(`
INSERT INTO signals (pair, strategy, action, signal, reason, price, signaled_at)
VALUES (?, ?, ?, ?, ?, ?, ?)`,
		sig.Pair, sig.Strategy, string(sig.Action), string(sig.Signal), sig.Reason, sig.Price, formatTime(sig.Time),
	)
	if err != nil {
		return fmt.Errorf("insert signal: %w", err)
	}
	return nil
}

// RecentTrades returns the last n trades, oldest first.
func (s *Store) RecentTrades(n int) ([]models.TradeRecord, error) {
	rows, err := s.db.Query(`
SELECT pair, side, price, qty, signal, reason, paper, order_id, trade_num, traded_at
FROM (SELECT * FROM trades ORDER BY id DESC LIMIT ?) ORDER BY id ASC`, limit(n))
	if err != nil {
		return nil, fmt.Errorf("query trades: %w", err)
	}
	defer rows.Close()

	var out []models.TradeRecord
	for rows.Next() {
		var (
			t                         models.TradeRecord
			side, price, qty, sig, at string
			paper                     int
		)
		if err := rows.Scan(&t.Pair, &side, &price, &qty, &sig, &t.Reason, &paper, &t.OrderID, &t.TradeNum, &at); err != nil {
			return nil, fmt.Errorf("scan trade: %w", err)
		}
		t.Side = models.Side(side)
		t.Signal = models.Signal(sig)
		t.Paper = paper == 1
		if t.Price, err = decimal.NewFromString(price); err != nil {
			return nil, fmt.Errorf("parse trade price: %w", err)
		}
		if t.Qty, err = decimal.NewFromString(qty); err != nil {
			return nil, fmt.Errorf("parse trade qty: %w", err)
		}
		t.Time = parseTime(at)
		out = append(out, t)
	}
	return out, rows.Err()
}

// RecentBalances returns the last n balance snapshots, oldest first.
func (s *Store) RecentBalances(n int) ([]models.BalanceSnapshot, error) {
	rows, err := s.db.Query(`
SELECT balances, taken_at
FROM (SELECT * FROM balances ORDER BY id DESC LIMIT ?) ORDER BY id ASC`, limit(n))
	if err != nil {
		return nil, fmt.Errorf("query balances: %w", err)
	}
	defer rows.Close()

	var out []models.BalanceSnapshot
	for rows.Next() {
		var raw, at string
		if err := rows.Scan(&raw, &at); err != nil {
			return nil, fmt.Errorf("scan balances: %w", err)
		}
		snap := models.BalanceSnapshot{Time: parseTime(at)}
		if err := json.Unmarshal([]byte(raw), &snap.Balances); err != nil {
			return nil, fmt.Errorf("parse balances: %w", err)
		}
		out = append(out, snap)
	}
	return out, rows.Err()
}

// RecentSignals returns the last n signals, oldest first.
func (s *Store) RecentSignals(n int) ([]models.TradeSignal, error) {
	rows, err := s.db.Query(`
SELECT pair, strategy, action, signal, reason, price, signaled_at
FROM (SELECT * FROM signals ORDER BY id DESC LIMIT ?) ORDER BY id ASC`, limit(n))
	if err != nil {
		return nil, fmt.Errorf("query signals: %w", err)
	}
	defer rows.Close()

	var out []models.TradeSignal
	for rows.Next() {
		var (
			sig              models.TradeSignal
			action, name, at string
		)
		if err := rows.Scan(&sig.Pair, &sig.Strategy, &action, &name, &sig.Reason, &sig.Price, &at); err != nil {
			return nil, fmt.Errorf("scan signal: %w", err)
		}
		sig.Action = models.Action(action)
		sig.Signal = models.Signal(name)
		sig.Time = parseTime(at)
		out = append(out, sig)
	}
	return out, rows.Err()
}

func limit(n int) int {
	if n <= 0 {
		return -1
	}
	return n
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		t = time.Now()
	}
	return t.UTC().Format(time.RFC3339Nano)
}

func parseTime(s string) time.Time {
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return time.Time{}
	}
	return t
}
