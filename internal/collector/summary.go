package collector

import (
	"StockPipeline/internal/model"
)

// DefaultFailureThreshold aborts a run when more than half the symbols fail.
const DefaultFailureThreshold = 0.5

// Summarize folds per-symbol outcomes into a BatchSummary. Empty and Failed
// outcomes both count as failed symbols. Timing and run id are left to the
// caller.
func Summarize(outcomes []model.SymbolOutcome) *model.BatchSummary {
	s := &model.BatchSummary{
		TotalSymbols:       len(outcomes),
		SuccessfulSymbols:  []model.Symbol{},
		FailedSymbols:      []model.Symbol{},
		StoreFailedSymbols: []model.Symbol{},
	}
	for _, o := range outcomes {
		if !o.Succeeded() {
			s.FailedSymbols = append(s.FailedSymbols, o.Symbol)
			continue
		}
		s.SuccessfulSymbols = append(s.SuccessfulSymbols, o.Symbol)
		s.TotalRecordsInserted += o.Inserted
		if o.StoreErr != nil {
			s.StoreFailedSymbols = append(s.StoreFailedSymbols, o.Symbol)
		}
	}
	if s.TotalSymbols > 0 {
		s.SuccessRate = float64(len(s.SuccessfulSymbols)) / float64(s.TotalSymbols) * 100
	}
	return s
}

// CheckThreshold returns a BatchAbortError when the failed share strictly
// exceeds threshold.
func CheckThreshold(s *model.BatchSummary, threshold float64) error {
	failed := len(s.FailedSymbols)
	if float64(failed) > float64(s.TotalSymbols)*threshold {
		return &model.BatchAbortError{Failed: failed, Total: s.TotalSymbols}
	}
	return nil
}
