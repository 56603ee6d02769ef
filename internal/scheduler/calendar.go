package scheduler

import (
	"log"
	"strings"
	"time"

	"github.com/scmhub/calendar"
)

// TradingCalendar answers whether an exchange is open on a given day.
type TradingCalendar struct {
	Calendar *calendar.Calendar
	Fallback bool
	Timezone *time.Location
}

// NewTradingCalendar loads the calendar for an ISO 10383 MIC such as
// "xnys". Unknown MICs fall back to xnys, then to a plain Mon-Fri week.
func NewTradingCalendar(mic string) *TradingCalendar {
	mic = strings.ToLower(strings.TrimSpace(mic))
	cal := calendar.GetCalendar(mic)
	if cal == nil {
		log.Printf("[WARN] no trading calendar for %q, using xnys", mic)
		cal = calendar.GetCalendar("xnys")
	}

	if cal == nil {
		log.Printf("[WARN] trading calendar unavailable, treating Mon-Fri as trading days")
		nyLoc, _ := time.LoadLocation("America/New_York")
		if nyLoc == nil {
			nyLoc = time.UTC
		}
		return &TradingCalendar{Fallback: true, Timezone: nyLoc}
	}

	return &TradingCalendar{Calendar: cal, Timezone: cal.Loc}
}

// IsTradingDay reports whether the exchange trades on the local date of t.
func (tc *TradingCalendar) IsTradingDay(t time.Time) bool {
	if tc.Timezone != nil {
		t = t.In(tc.Timezone)
	}
	if tc.Fallback {
		wd := t.Weekday()
		return wd != time.Saturday && wd != time.Sunday
	}
	return tc.Calendar.IsBusinessDay(t)
}
