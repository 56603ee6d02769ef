package collector

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"StockPipeline/internal/model"

	"github.com/google/uuid"
)

// Collector drives the fetch, parse and store sequence over the configured
// symbols, one symbol at a time.
type Collector struct {
	Fetcher          Fetcher
	Store            Store
	Pacer            Waiter
	Symbols          []model.Symbol
	FailureThreshold float64
	Now              func() time.Time
}

// NewCollector creates a new Collector with the default failure threshold.
func NewCollector(fetcher Fetcher, store Store, pacer Waiter, symbols []model.Symbol) *Collector {
	return &Collector{
		Fetcher:          fetcher,
		Store:            store,
		Pacer:            pacer,
		Symbols:          symbols,
		FailureThreshold: DefaultFailureThreshold,
		Now:              time.Now,
	}
}

// Run performs one batch. The returned summary is non-nil whenever the
// sweep happened, including when the batch is aborted with a
// *model.BatchAbortError. An unreachable store yields a
// *model.ConfigurationError before any fetch.
func (c *Collector) Run(ctx context.Context) (*model.BatchSummary, error) {
	if err := c.Store.Ping(ctx); err != nil {
		return nil, &model.ConfigurationError{Message: "store connection test failed", Cause: err}
	}

	started := c.now()
	runID := uuid.NewString()
	log.Printf("[INFO] run %s: starting data fetch for %d symbols via %s: %v",
		runID, len(c.Symbols), c.Fetcher.Name(), c.Symbols)

	outcomes := make([]model.SymbolOutcome, 0, len(c.Symbols))
	for i, sym := range c.Symbols {
		log.Printf("[INFO] processing symbol %s (%d/%d)", sym, i+1, len(c.Symbols))
		outcome := c.collect(ctx, sym)
		if outcome.Succeeded() {
			c.store(ctx, &outcome)
		}
		outcomes = append(outcomes, outcome)

		if i < len(c.Symbols)-1 && c.Pacer != nil {
			if err := c.Pacer.Wait(ctx); err != nil {
				log.Printf("[WARN] pacing interrupted: %v", err)
			}
		}
	}

	summary := Summarize(outcomes)
	summary.RunID = runID
	summary.StartedAt = started
	summary.FinishedAt = c.now()
	for _, o := range outcomes {
		log.Printf("[INFO]   %s", Describe(o))
	}
	log.Printf("[INFO] run %s summary: inserted=%d successful=%v failed=%v success_rate=%.1f%%",
		runID, summary.TotalRecordsInserted, summary.SuccessfulSymbols, summary.FailedSymbols, summary.SuccessRate)

	if err := CheckThreshold(summary, c.threshold()); err != nil {
		log.Printf("[ERROR] run %s: %v", runID, err)
		return summary, err
	}
	return summary, nil
}

// collect fetches and parses one symbol. Errors are logged and folded into
// the outcome.
func (c *Collector) collect(ctx context.Context, sym model.Symbol) model.SymbolOutcome {
	raw, err := c.Fetcher.FetchDaily(ctx, sym)
	if err != nil {
		log.Printf("[ERROR] failed to fetch data for %s: %v", sym, err)
		return model.SymbolOutcome{Symbol: sym, Status: model.StatusFailed, Err: err}
	}
	records := Parse(raw, sym)
	if len(records) == 0 {
		log.Printf("[WARN] no data received for %s", sym)
		return model.SymbolOutcome{Symbol: sym, Status: model.StatusEmpty, Err: model.ErrNoRecords}
	}
	return model.SymbolOutcome{Symbol: sym, Status: model.StatusSuccess, Records: records}
}

// store inserts the outcome's records. A store failure counts zero rows and
// keeps the symbol successful.
func (c *Collector) store(ctx context.Context, o *model.SymbolOutcome) {
	n, err := c.Store.Insert(ctx, o.Records)
	if err != nil {
		o.StoreErr = &model.StoreError{Symbol: o.Symbol, Err: err}
		o.Inserted = 0
		log.Printf("[ERROR] failed to store data for %s: %v", o.Symbol, err)
		return
	}
	o.Inserted = n
	log.Printf("[INFO] processed %d records for %s", n, o.Symbol)
}

func (c *Collector) threshold() float64 {
	if c.FailureThreshold <= 0 {
		return DefaultFailureThreshold
	}
	return c.FailureThreshold
}

func (c *Collector) now() time.Time {
	if c.Now == nil {
		return time.Now()
	}
	return c.Now()
}

// IsAbort reports whether err is a batch abort.
func IsAbort(err error) bool {
	var abort *model.BatchAbortError
	return errors.As(err, &abort)
}

// Describe renders an outcome for logs and notifications.
func Describe(o model.SymbolOutcome) string {
	switch o.Status {
	case model.StatusFailed:
		return fmt.Sprintf("%s: failed (%v)", o.Symbol, o.Err)
	case model.StatusEmpty:
		return fmt.Sprintf("%s: no data", o.Symbol)
	}
	if o.StoreErr != nil {
		return fmt.Sprintf("%s: %d records parsed, store failed (%v)", o.Symbol, len(o.Records), o.StoreErr)
	}
	return fmt.Sprintf("%s: %d records stored", o.Symbol, o.Inserted)
}
