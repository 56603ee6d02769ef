package model

import "time"

// OutcomeStatus classifies the result of processing one symbol.
type OutcomeStatus string

const (
	StatusSuccess OutcomeStatus = "SUCCESS"
	StatusEmpty   OutcomeStatus = "EMPTY"
	StatusFailed  OutcomeStatus = "FAILED"
)

// SymbolOutcome is produced once per symbol per run.
type SymbolOutcome struct {
	Symbol   Symbol
	Records  []PriceRecord
	Status   OutcomeStatus
	Err      error // set when Status is StatusFailed
	Inserted int
	StoreErr error // insert failure; does not change Status
}

// Succeeded reports whether fetch and parse yielded usable records.
func (o SymbolOutcome) Succeeded() bool { return o.Status == StatusSuccess }

// BatchSummary is the result of one run.
type BatchSummary struct {
	RunID                string    `json:"run_id"`
	StartedAt            time.Time `json:"started_at"`
	FinishedAt           time.Time `json:"finished_at"`
	TotalSymbols         int       `json:"total_symbols"`
	TotalRecordsInserted int       `json:"total_records_inserted"`
	SuccessfulSymbols    []Symbol  `json:"successful_symbols"`
	FailedSymbols        []Symbol  `json:"failed_symbols"`
	StoreFailedSymbols   []Symbol  `json:"store_failed_symbols"`
	SuccessRate          float64   `json:"success_rate"`
}

// Duration returns how long the run took.
func (s *BatchSummary) Duration() time.Duration {
	return s.FinishedAt.Sub(s.StartedAt)
}
