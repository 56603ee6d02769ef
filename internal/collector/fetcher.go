package collector

import (
	"context"

	"StockPipeline/internal/model"
)

// RawResponse is the unparsed JSON body returned for one symbol.
type RawResponse []byte

// Fetcher retrieves the daily series for one symbol.
//
//go:generate mockgen -package=collector_test -destination=mock_fetcher_test.go -source=fetcher.go
type Fetcher interface {
	FetchDaily(ctx context.Context, symbol model.Symbol) (RawResponse, error)
	Name() string
}

// Store is the persistence capability the collector needs.
type Store interface {
	Ping(ctx context.Context) error
	Insert(ctx context.Context, records []model.PriceRecord) (int, error)
}

// Waiter paces consecutive fetch calls.
type Waiter interface {
	Wait(ctx context.Context) error
}
