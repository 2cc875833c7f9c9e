package common

import "time"

// Regular session hours in market-local time. Holidays are not modelled;
// the monitor just sees no price movement on those days.
const (
	marketOpenHour    = 9
	marketOpenMinute  = 30
	marketCloseHour   = 16
	marketCloseMinute = 0
)

// MarketClock answers market-hours questions in a configured timezone.
type MarketClock struct {
	loc *time.Location
}

// NewMarketClock creates a clock for the given market timezone.
func NewMarketClock(loc *time.Location) *MarketClock {
	if loc == nil {
		loc = time.UTC
	}
	return &MarketClock{loc: loc}
}

// IsOpen reports whether the market is open at t: weekdays 09:30–16:00
// market time.
func (c *MarketClock) IsOpen(t time.Time) bool {
	local := t.In(c.loc)

	switch local.Weekday() {
	case time.Saturday, time.Sunday:
		return false
	}

	minutes := local.Hour()*60 + local.Minute()
	open := marketOpenHour*60 + marketOpenMinute
	close := marketCloseHour*60 + marketCloseMinute
	return minutes >= open && minutes < close
}

// IsOpenNow reports whether the market is open at the current time.
func (c *MarketClock) IsOpenNow() bool {
	return c.IsOpen(time.Now())
}

// TradingDate returns the calendar date string (YYYY-MM-DD) in market time.
// Used to key same-day idempotence checks.
func (c *MarketClock) TradingDate(t time.Time) string {
	return t.In(c.loc).Format("2006-01-02")
}
