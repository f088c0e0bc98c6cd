package store

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"deltastack/internal/models"
)

// SQLiteStore implements the sink interfaces on a single SQLite file.
type SQLiteStore struct {
	db *sql.DB
	mu sync.Mutex
}

// NewSQLiteStore opens (or creates) the database at dbPath.
func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}

	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(time.Hour)

	store := &SQLiteStore{db: db}
	if err := store.initSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	return store, nil
}

func (s *SQLiteStore) initSchema() error {
	schema := `
	-- Backtest run summaries
	CREATE TABLE IF NOT EXISTS runs (
		run_id TEXT PRIMARY KEY,
		strategy TEXT NOT NULL,
		underlying TEXT NOT NULL,
		date DATE NOT NULL,
		params TEXT,
		total_pnl REAL NOT NULL,
		num_trades INTEGER NOT NULL,
		win_rate REAL NOT NULL,
		mae REAL NOT NULL,
		mfe REAL NOT NULL,
		avg_hold_minutes REAL NOT NULL,
		created_at DATETIME DEFAULT CURRENT_TIMESTAMP
	);

	-- Closed trades, append-only
	CREATE TABLE IF NOT EXISTS trades (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		run_id TEXT NOT NULL,
		entry_time TEXT NOT NULL,
		exit_time TEXT NOT NULL,
		short_strike REAL NOT NULL,
		long_strike REAL NOT NULL,
		credit REAL NOT NULL,
		pnl REAL NOT NULL,
		exit_reason TEXT NOT NULL,
		minutes_held INTEGER NOT NULL,
		created_at DATETIME DEFAULT CURRENT_TIMESTAMP
	);

	-- Mark-to-market curve points, append-only
	CREATE TABLE IF NOT EXISTS pnl_points (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		run_id TEXT NOT NULL,
		snapshot_time TEXT NOT NULL,
		pnl REAL NOT NULL
	);

	-- Per-tick replay decisions
	CREATE TABLE IF NOT EXISTS tick_decisions (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		replay_id TEXT NOT NULL,
		tick_time TEXT NOT NULL,
		snapshot_time TEXT,
		decision TEXT NOT NULL,
		signal TEXT,
		reason TEXT,
		underlying TEXT,
		short_strike REAL,
		long_strike REAL,
		credit REAL,
		max_loss REAL,
		created_at DATETIME DEFAULT CURRENT_TIMESTAMP
	);

	-- Simulated fills from the paper broker
	CREATE TABLE IF NOT EXISTS paper_fills (
		order_id TEXT PRIMARY KEY,
		ticker TEXT NOT NULL,
		side TEXT NOT NULL,
		qty REAL NOT NULL,
		fill_price REAL NOT NULL,
		commission REAL NOT NULL,
		status TEXT NOT NULL,
		message TEXT,
		created_at DATETIME DEFAULT CURRENT_TIMESTAMP
	);

	-- Paper account state, single row
	CREATE TABLE IF NOT EXISTS paper_account (
		id INTEGER PRIMARY KEY CHECK (id = 1),
		cash REAL NOT NULL,
		equity REAL NOT NULL,
		updated_at DATETIME DEFAULT CURRENT_TIMESTAMP
	);

	-- Paper positions keyed by ticker
	CREATE TABLE IF NOT EXISTS paper_positions (
		ticker TEXT PRIMARY KEY,
		qty REAL NOT NULL,
		avg_price REAL NOT NULL,
		updated_at DATETIME DEFAULT CURRENT_TIMESTAMP
	);

	CREATE INDEX IF NOT EXISTS idx_trades_run ON trades(run_id);
	CREATE INDEX IF NOT EXISTS idx_pnl_points_run ON pnl_points(run_id);
	CREATE INDEX IF NOT EXISTS idx_decisions_replay ON tick_decisions(replay_id);
	CREATE INDEX IF NOT EXISTS idx_runs_underlying ON runs(underlying, date);
	`

	_, err := s.db.Exec(schema)
	return err
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// RecordRun saves a backtest run summary.
func (s *SQLiteStore) RecordRun(ctx context.Context, run RunRecord) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO runs (run_id, strategy, underlying, date, params, total_pnl, num_trades, win_rate, mae, mfe, avg_hold_minutes)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, run.RunID, run.Strategy, run.Underlying, run.Date, run.ParamsJSON,
		run.TotalPnL, run.NumTrades, run.WinRate, run.MAE, run.MFE, run.AvgHoldMinutes)
	if err != nil {
		return fmt.Errorf("failed to record run: %w", err)
	}
	return nil
}

// AppendTrade saves a closed trade for a run.
func (s *SQLiteStore) AppendTrade(ctx context.Context, runID string, trade models.ClosedTrade) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO trades (run_id, entry_time, exit_time, short_strike, long_strike, credit, pnl, exit_reason, minutes_held)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, runID, trade.EntryTime, trade.ExitTime, trade.ShortStrike, trade.LongStrike,
		trade.Credit, trade.PnL, string(trade.ExitReason), trade.MinutesHeld)
	if err != nil {
		return fmt.Errorf("failed to append trade: %w", err)
	}
	return nil
}

// AppendPnLPoint saves one mark-to-market curve point for a run.
func (s *SQLiteStore) AppendPnLPoint(ctx context.Context, runID string, point models.PnLPoint) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO pnl_points (run_id, snapshot_time, pnl) VALUES (?, ?, ?)
	`, runID, point.Time, point.PnL)
	if err != nil {
		return fmt.Errorf("failed to append pnl point: %w", err)
	}
	return nil
}

// AppendDecision saves a per-tick replay decision.
func (s *SQLiteStore) AppendDecision(ctx context.Context, replayID string, d models.Decision) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO tick_decisions (replay_id, tick_time, snapshot_time, decision, signal, reason, underlying, short_strike, long_strike, credit, max_loss)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, replayID, d.TickTime, d.SnapshotTime, d.Decision, d.Signal, string(d.Reason),
		d.Underlying, d.ShortStrike, d.LongStrike, d.Credit, d.MaxLoss)
	if err != nil {
		return fmt.Errorf("failed to append decision: %w", err)
	}
	return nil
}

// AppendFill saves a simulated order fill.
func (s *SQLiteStore) AppendFill(ctx context.Context, fill models.OrderResult) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO paper_fills (order_id, ticker, side, qty, fill_price, commission, status, message)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`, fill.OrderID, fill.Ticker, string(fill.Side), fill.Qty, fill.FillPrice,
		fill.Commission, string(fill.Status), fill.Message)
	if err != nil {
		return fmt.Errorf("failed to append fill: %w", err)
	}
	return nil
}

// SaveAccount upserts the single paper account row.
func (s *SQLiteStore) SaveAccount(ctx context.Context, account models.Account) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO paper_account (id, cash, equity, updated_at) VALUES (1, ?, ?, CURRENT_TIMESTAMP)
		ON CONFLICT(id) DO UPDATE SET cash = excluded.cash, equity = excluded.equity, updated_at = CURRENT_TIMESTAMP
	`, account.Cash, account.Equity)
	if err != nil {
		return fmt.Errorf("failed to save account: %w", err)
	}
	return nil
}

// LoadAccount returns the persisted paper account, or nil if none exists.
func (s *SQLiteStore) LoadAccount(ctx context.Context) (*models.Account, error) {
	var acc models.Account
	err := s.db.QueryRowContext(ctx, `SELECT cash, equity FROM paper_account WHERE id = 1`).
		Scan(&acc.Cash, &acc.Equity)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load account: %w", err)
	}
	return &acc, nil
}

// SavePosition upserts one paper position; zero quantity deletes the row.
func (s *SQLiteStore) SavePosition(ctx context.Context, position models.Position) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if position.Qty == 0 {
		_, err := s.db.ExecContext(ctx, `DELETE FROM paper_positions WHERE ticker = ?`, position.Ticker)
		if err != nil {
			return fmt.Errorf("failed to delete position: %w", err)
		}
		return nil
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO paper_positions (ticker, qty, avg_price, updated_at) VALUES (?, ?, ?, CURRENT_TIMESTAMP)
		ON CONFLICT(ticker) DO UPDATE SET qty = excluded.qty, avg_price = excluded.avg_price, updated_at = CURRENT_TIMESTAMP
	`, position.Ticker, position.Qty, position.AvgPrice)
	if err != nil {
		return fmt.Errorf("failed to save position: %w", err)
	}
	return nil
}

// LoadPositions returns all open paper positions.
func (s *SQLiteStore) LoadPositions(ctx context.Context) ([]models.Position, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT ticker, qty, avg_price FROM paper_positions ORDER BY ticker`)
	if err != nil {
		return nil, fmt.Errorf("failed to query positions: %w", err)
	}
	defer rows.Close()

	var positions []models.Position
	for rows.Next() {
		var p models.Position
		if err := rows.Scan(&p.Ticker, &p.Qty, &p.AvgPrice); err != nil {
			return nil, fmt.Errorf("failed to scan position: %w", err)
		}
		positions = append(positions, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating positions: %w", err)
	}
	return positions, nil
}

// ListRuns returns the most recent run summaries, newest first.
func (s *SQLiteStore) ListRuns(ctx context.Context, limit int) ([]RunRecord, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT run_id, strategy, underlying, date, params, total_pnl, num_trades, win_rate, mae, mfe, avg_hold_minutes
		FROM runs ORDER BY created_at DESC LIMIT ?
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query runs: %w", err)
	}
	defer rows.Close()

	var runs []RunRecord
	for rows.Next() {
		var r RunRecord
		if err := rows.Scan(&r.RunID, &r.Strategy, &r.Underlying, &r.Date, &r.ParamsJSON,
			&r.TotalPnL, &r.NumTrades, &r.WinRate, &r.MAE, &r.MFE, &r.AvgHoldMinutes); err != nil {
			return nil, fmt.Errorf("failed to scan run: %w", err)
		}
		runs = append(runs, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating runs: %w", err)
	}
	return runs, nil
}
