package store

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"net/url"
	"time"

	"StockPipeline/internal/model"

	"github.com/lib/pq"
)

const (
	defaultPostgresHost    = "localhost"
	defaultPostgresPort    = 5432
	defaultPostgresSSLMode = "disable"
)

// PostgresOptions describes how to reach the Postgres server.
type PostgresOptions struct {
	Host     string
	Port     int
	User     string
	Password string
	Database string
	SSLMode  string
	// ConnString, when set, is used verbatim.
	ConnString string
}

// DSN renders the options as a postgres:// URL.
func (opt PostgresOptions) DSN() string {
	if opt.ConnString != "" {
		return opt.ConnString
	}

	host := opt.Host
	if host == "" {
		host = defaultPostgresHost
	}
	port := opt.Port
	if port == 0 {
		port = defaultPostgresPort
	}
	sslMode := opt.SSLMode
	if sslMode == "" {
		sslMode = defaultPostgresSSLMode
	}

	u := &url.URL{
		Scheme: "postgres",
		Host:   fmt.Sprintf("%s:%d", host, port),
	}
	if opt.User != "" {
		if opt.Password != "" {
			u.User = url.UserPassword(opt.User, opt.Password)
		} else {
			u.User = url.User(opt.User)
		}
	}
	if opt.Database != "" {
		u.Path = "/" + opt.Database
	}
	u.RawQuery = url.Values{"sslmode": {sslMode}}.Encode()
	return u.String()
}

// PostgresStore appends price records to the stock_data table.
type PostgresStore struct {
	db *sql.DB
}

// NewPostgresStore connects, verifies the connection and creates the
// tables if they do not exist.
func NewPostgresStore(ctx context.Context, opt PostgresOptions) (*PostgresStore, error) {
	db, err := sql.Open("postgres", opt.DSN())
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	db.SetMaxOpenConns(4)
	db.SetConnMaxIdleTime(5 * time.Minute)

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}

	s := &PostgresStore{db: db}
	if err := s.migrate(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}

	log.Printf("[INFO] postgres store connected: %s:%d/%s", opt.Host, opt.Port, opt.Database)
	return s, nil
}

func (s *PostgresStore) migrate(ctx context.Context) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS stock_data (
			id          BIGSERIAL PRIMARY KEY,
			symbol      TEXT NOT NULL,
			timestamp   TIMESTAMP NOT NULL,
			open_price  NUMERIC,
			high_price  NUMERIC,
			low_price   NUMERIC,
			close_price NUMERIC NOT NULL,
			volume      BIGINT,
			created_at  TIMESTAMPTZ NOT NULL DEFAULT now()
		)`,
		`CREATE INDEX IF NOT EXISTS idx_stock_symbol_ts ON stock_data(symbol, timestamp)`,

		`CREATE TABLE IF NOT EXISTS ingest_runs (
			run_id               UUID PRIMARY KEY,
			started_at           TIMESTAMPTZ NOT NULL,
			finished_at          TIMESTAMPTZ NOT NULL,
			status               TEXT NOT NULL,
			total_symbols        INTEGER,
			records_inserted     INTEGER,
			successful_symbols   TEXT[],
			failed_symbols       TEXT[],
			store_failed_symbols TEXT[],
			success_rate         DOUBLE PRECISION,
			error                TEXT
		)`,
	}

	for _, stmt := range stmts {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("exec %q: %w", stmt[:40], err)
		}
	}
	return nil
}

func (s *PostgresStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// Insert writes all records in one transaction with a prepared statement.
func (s *PostgresStore) Insert(ctx context.Context, records []model.PriceRecord) (int, error) {
	if len(records) == 0 {
		return 0, nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `INSERT INTO stock_data
		(symbol, timestamp, open_price, high_price, low_price, close_price, volume)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`)
	if err != nil {
		return 0, fmt.Errorf("prepare: %w", err)
	}
	defer stmt.Close()

	for _, r := range records {
		if _, err := stmt.ExecContext(ctx,
			r.Symbol.String(), r.Timestamp,
			r.Open, r.High, r.Low, r.Close, r.Volume,
		); err != nil {
			return 0, fmt.Errorf("insert %s %s: %w", r.Symbol, r.Date(), err)
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit: %w", err)
	}
	return len(records), nil
}

func (s *PostgresStore) RecordRun(ctx context.Context, summary *model.BatchSummary, runErr error) error {
	status, msg := runStatus(runErr)
	_, err := s.db.ExecContext(ctx, `INSERT INTO ingest_runs
		(run_id, started_at, finished_at, status, total_symbols, records_inserted,
		 successful_symbols, failed_symbols, store_failed_symbols, success_rate, error)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`,
		summary.RunID, summary.StartedAt, summary.FinishedAt, status,
		summary.TotalSymbols, summary.TotalRecordsInserted,
		pq.Array(symbolStrings(summary.SuccessfulSymbols)),
		pq.Array(symbolStrings(summary.FailedSymbols)),
		pq.Array(symbolStrings(summary.StoreFailedSymbols)),
		summary.SuccessRate, msg,
	)
	return err
}

func (s *PostgresStore) Close() error {
	log.Println("[INFO] closing postgres store")
	return s.db.Close()
}
