package notifier

import (
	"fmt"
	"html"
	"strings"
	"time"

	"StockPipeline/internal/model"
)

// FormatRunSummary formats a finished batch into a Telegram message.
func FormatRunSummary(s *model.BatchSummary, runErr error) string {
	var b strings.Builder

	if runErr != nil {
		b.WriteString("❌ <b>Stock ingestion aborted</b>")
	} else {
		b.WriteString("✅ <b>Stock ingestion completed</b>")
	}
	if s == nil {
		if runErr != nil {
			b.WriteString(fmt.Sprintf("\n\n%s", html.EscapeString(runErr.Error())))
		}
		return b.String()
	}
	b.WriteString(fmt.Sprintf(" | %s\n\n", s.StartedAt.UTC().Format("2006-01-02 15:04")))

	b.WriteString(fmt.Sprintf("Success rate: %.1f%% (%d/%d)\n", s.SuccessRate, len(s.SuccessfulSymbols), s.TotalSymbols))
	b.WriteString(fmt.Sprintf("Records inserted: %d\n", s.TotalRecordsInserted))
	b.WriteString(fmt.Sprintf("Duration: %s\n", s.Duration().Round(time.Second)))
	if len(s.FailedSymbols) > 0 {
		b.WriteString(fmt.Sprintf("Failed: %s\n", joinSymbols(s.FailedSymbols)))
	}
	if len(s.StoreFailedSymbols) > 0 {
		b.WriteString(fmt.Sprintf("⚠️ Not stored: %s\n", joinSymbols(s.StoreFailedSymbols)))
	}
	if runErr != nil {
		b.WriteString(fmt.Sprintf("\n%s\n", html.EscapeString(runErr.Error())))
	}
	b.WriteString(fmt.Sprintf("\nRun: <code>%s</code>", s.RunID))
	return b.String()
}

// FormatHelp lists the commands understood by the bot.
func FormatHelp() string {
	return "Available commands:\n• /run - start a batch now\n• /status - latest batch result"
}

func joinSymbols(symbols []model.Symbol) string {
	parts := make([]string, len(symbols))
	for i, s := range symbols {
		parts[i] = s.String()
	}
	return strings.Join(parts, ", ")
}
