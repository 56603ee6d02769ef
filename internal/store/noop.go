package store

import (
	"context"
	"log"

	"StockPipeline/internal/model"
)

// NoopStore discards everything. Used for dry runs (database.driver: noop).
type NoopStore struct{}

func NewNoopStore() *NoopStore { return &NoopStore{} }

func (n *NoopStore) Ping(_ context.Context) error { return nil }

func (n *NoopStore) Insert(_ context.Context, records []model.PriceRecord) (int, error) {
	log.Printf("[INFO] noop store: discarding %d records", len(records))
	return 0, nil
}

func (n *NoopStore) RecordRun(_ context.Context, _ *model.BatchSummary, _ error) error { return nil }
func (n *NoopStore) Close() error                                                    { return nil }
