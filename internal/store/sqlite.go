package store

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"sync"
	"time"

	"StockPipeline/internal/model"

	_ "modernc.org/sqlite"
)

// SQLiteStore persists price records to a local SQLite database.
type SQLiteStore struct {
	db *sql.DB
	mu sync.Mutex
}

// NewSQLiteStore opens (or creates) the SQLite database and runs migrations.
func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}

	// WAL so dashboards can read while a batch writes.
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("set WAL mode: %w", err)
	}

	s := &SQLiteStore{db: db}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}

	log.Printf("[INFO] sqlite store opened: %s", dbPath)
	return s, nil
}

func (s *SQLiteStore) migrate() error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS stock_data (
			id          INTEGER PRIMARY KEY AUTOINCREMENT,
			symbol      TEXT NOT NULL,
			timestamp   TEXT NOT NULL,
			open_price  NUMERIC,
			high_price  NUMERIC,
			low_price   NUMERIC,
			close_price NUMERIC NOT NULL,
			volume      INTEGER,
			created_at  INTEGER NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_stock_symbol_ts ON stock_data(symbol, timestamp)`,

		`CREATE TABLE IF NOT EXISTS ingest_runs (
			run_id               TEXT PRIMARY KEY,
			started_at           INTEGER NOT NULL,
			finished_at          INTEGER NOT NULL,
			status               TEXT NOT NULL,
			total_symbols        INTEGER,
			records_inserted     INTEGER,
			successful_symbols   TEXT,
			failed_symbols       TEXT,
			store_failed_symbols TEXT,
			success_rate         REAL,
			error                TEXT
		)`,
		`CREATE INDEX IF NOT EXISTS idx_runs_started ON ingest_runs(started_at)`,
	}

	for _, stmt := range stmts {
		if _, err := s.db.Exec(stmt); err != nil {
			return fmt.Errorf("exec %q: %w", stmt[:40], err)
		}
	}
	return nil
}

func (s *SQLiteStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// Insert writes all records in one transaction. Dates are stored as
// YYYY-MM-DD text.
func (s *SQLiteStore) Insert(ctx context.Context, records []model.PriceRecord) (int, error) {
	if len(records) == 0 {
		return 0, nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `INSERT INTO stock_data
		(symbol, timestamp, open_price, high_price, low_price, close_price, volume, created_at)
		VALUES (?,?,?,?,?,?,?,?)`)
	if err != nil {
		return 0, fmt.Errorf("prepare: %w", err)
	}
	defer stmt.Close()

	now := time.Now().Unix()
	for _, r := range records {
		if _, err := stmt.ExecContext(ctx,
			r.Symbol.String(), r.Date(),
			r.Open, r.High, r.Low, r.Close, r.Volume,
			now,
		); err != nil {
			return 0, fmt.Errorf("insert %s %s: %w", r.Symbol, r.Date(), err)
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit: %w", err)
	}
	return len(records), nil
}

func (s *SQLiteStore) RecordRun(ctx context.Context, summary *model.BatchSummary, runErr error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	status, msg := runStatus(runErr)
	_, err := s.db.ExecContext(ctx, `INSERT INTO ingest_runs
		(run_id, started_at, finished_at, status, total_symbols, records_inserted,
		 successful_symbols, failed_symbols, store_failed_symbols, success_rate, error)
		VALUES (?,?,?,?,?,?,?,?,?,?,?)`,
		summary.RunID, summary.StartedAt.Unix(), summary.FinishedAt.Unix(), status,
		summary.TotalSymbols, summary.TotalRecordsInserted,
		joinSymbols(summary.SuccessfulSymbols), joinSymbols(summary.FailedSymbols),
		joinSymbols(summary.StoreFailedSymbols), summary.SuccessRate, msg,
	)
	return err
}

func (s *SQLiteStore) Close() error {
	log.Println("[INFO] closing sqlite store")
	return s.db.Close()
}
