package store

import (
	"context"
	"strings"

	"StockPipeline/internal/model"
)

// Run outcomes written to ingest_runs.status.
const (
	RunCompleted = "COMPLETED"
	RunAborted   = "ABORTED"
)

// Store persists price records and run audits.
type Store interface {
	Ping(ctx context.Context) error
	// Insert appends records and returns the number of rows written.
	// Re-ingesting a day writes duplicate rows.
	Insert(ctx context.Context, records []model.PriceRecord) (int, error)
	// RecordRun writes one ingest_runs row; runErr is the error the run
	// ended with, if any.
	RecordRun(ctx context.Context, summary *model.BatchSummary, runErr error) error
	Close() error
}

func runStatus(runErr error) (string, string) {
	if runErr != nil {
		return RunAborted, runErr.Error()
	}
	return RunCompleted, ""
}

func joinSymbols(symbols []model.Symbol) string {
	return strings.Join(symbolStrings(symbols), ",")
}

func symbolStrings(symbols []model.Symbol) []string {
	out := make([]string, len(symbols))
	for i, s := range symbols {
		out[i] = s.String()
	}
	return out
}

var (
	_ Store = (*SQLiteStore)(nil)
	_ Store = (*PostgresStore)(nil)
	_ Store = (*NoopStore)(nil)
)
