package collector

import (
	"log"
	"strconv"
	"strings"
	"time"

	"StockPipeline/internal/model"

	"github.com/guregu/null/v6"
	"github.com/shopspring/decimal"
	"github.com/tidwall/gjson"
)

// TimeSeriesKey labels the daily series container in the provider payload.
const TimeSeriesKey = "Time Series (Daily)"

const (
	fieldOpen   = "1. open"
	fieldHigh   = "2. high"
	fieldLow    = "3. low"
	fieldClose  = "4. close"
	fieldVolume = "5. volume"
)

// Parse converts one provider response into price records for symbol.
//
// Parse never fails. A payload without the series container yields no
// records. Entries keep the provider's order. A record is kept only when
// its close is a positive number; other fields degrade to null one by one.
func Parse(raw RawResponse, symbol model.Symbol) []model.PriceRecord {
	sym := model.Symbol(strings.ToUpper(string(symbol)))
	records := []model.PriceRecord{}

	if !gjson.ValidBytes(raw) {
		log.Printf("[WARN] parse %s: response is not valid JSON", sym)
		return records
	}
	root := gjson.ParseBytes(raw)
	series := member(root, TimeSeriesKey)
	if !series.IsObject() {
		log.Printf("[WARN] parse %s: no time series data found", sym)
		return records
	}

	var skipped, dropped int
	series.ForEach(func(key, value gjson.Result) bool {
		date, err := time.Parse(time.DateOnly, key.String())
		if err != nil || !value.IsObject() {
			log.Printf("[WARN] parse %s: skipping malformed entry %q", sym, key.String())
			skipped++
			return true
		}
		rec, ok := parseEntry(sym, date, value)
		if !ok {
			dropped++
			return true
		}
		records = append(records, rec)
		return true
	})

	log.Printf("[INFO] parsed %d records for %s (skipped %d, dropped %d without close)",
		len(records), sym, skipped, dropped)
	return records
}

func parseEntry(sym model.Symbol, date time.Time, entry gjson.Result) (model.PriceRecord, bool) {
	fields := make(map[string]gjson.Result, 5)
	entry.ForEach(func(k, v gjson.Result) bool {
		fields[k.String()] = v
		return true
	})

	closePrice := positiveDecimal(fields[fieldClose])
	if !closePrice.Valid {
		return model.PriceRecord{}, false
	}
	return model.PriceRecord{
		Symbol:    sym,
		Timestamp: date,
		Open:      positiveDecimal(fields[fieldOpen]),
		High:      positiveDecimal(fields[fieldHigh]),
		Low:       positiveDecimal(fields[fieldLow]),
		Close:     closePrice.Decimal,
		Volume:    positiveInt(fields[fieldVolume]),
	}, true
}

// member looks up a top-level key without gjson path syntax, since provider
// keys contain dots and parentheses.
func member(obj gjson.Result, name string) gjson.Result {
	var out gjson.Result
	obj.ForEach(func(k, v gjson.Result) bool {
		if k.String() == name {
			out = v
			return false
		}
		return true
	})
	return out
}

func positiveDecimal(v gjson.Result) decimal.NullDecimal {
	if !v.Exists() || (v.Type != gjson.String && v.Type != gjson.Number) {
		return decimal.NullDecimal{}
	}
	d, err := decimal.NewFromString(numberText(v))
	if err != nil || !d.IsPositive() {
		return decimal.NullDecimal{}
	}
	return decimal.NewNullDecimal(d)
}

func positiveInt(v gjson.Result) null.Int {
	if !v.Exists() || (v.Type != gjson.String && v.Type != gjson.Number) {
		return null.Int{}
	}
	n, err := strconv.ParseInt(numberText(v), 10, 64)
	if err != nil || n <= 0 {
		return null.Int{}
	}
	return null.IntFrom(n)
}

// numberText returns the literal digits of v; JSON numbers are taken from the
// raw text so they do not pass through float64.
func numberText(v gjson.Result) string {
	if v.Type == gjson.Number {
		return strings.TrimSpace(v.Raw)
	}
	return strings.TrimSpace(v.String())
}
