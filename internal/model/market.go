package model

import (
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/guregu/null/v6"
	"github.com/shopspring/decimal"
)

// Symbol is a ticker identifier such as "AAPL".
type Symbol string

var symbolPattern = regexp.MustCompile(`^[A-Z0-9][A-Z0-9.\-]{0,11}$`)

// ParseSymbol normalizes s to upper case and validates it.
func ParseSymbol(s string) (Symbol, error) {
	norm := strings.ToUpper(strings.TrimSpace(s))
	if !symbolPattern.MatchString(norm) {
		return "", fmt.Errorf("invalid symbol %q", s)
	}
	return Symbol(norm), nil
}

func (s Symbol) String() string { return string(s) }

// PriceRecord is one normalized end-of-day bar.
// Close is always positive; the other fields are null when the provider
// reported them as zero, missing or malformed.
type PriceRecord struct {
	Symbol    Symbol
	Timestamp time.Time // calendar date, UTC midnight
	Open      decimal.NullDecimal
	High      decimal.NullDecimal
	Low       decimal.NullDecimal
	Close     decimal.Decimal
	Volume    null.Int
}

// Date returns the record date formatted as YYYY-MM-DD.
func (r PriceRecord) Date() string {
	return r.Timestamp.Format(time.DateOnly)
}
