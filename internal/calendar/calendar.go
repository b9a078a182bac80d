package calendar

import "time"

// Calendar answers whether a date is a plausible trading day. Weekends are
// excluded unconditionally; exchange closures come from an injected holiday
// set. Without a holiday set the calendar degrades to weekday-only filtering
// and reports that via Degraded, so downstream validation can treat isolated
// gaps as unconfirmed rather than erroneous.
type Calendar struct {
	holidays map[string]struct{}
	degraded bool
}

// New creates a calendar with the given holiday dates (YYYY-MM-DD). An empty
// or nil list yields a degraded weekday-only calendar.
func New(holidays []string) *Calendar {
	c := &Calendar{
		holidays: make(map[string]struct{}, len(holidays)),
		degraded: len(holidays) == 0,
	}
	for _, h := range holidays {
		c.holidays[h] = struct{}{}
	}
	return c
}

// IsTradingDay reports whether the exchange is plausibly open on the date.
func (c *Calendar) IsTradingDay(date time.Time) bool {
	switch date.Weekday() {
	case time.Saturday, time.Sunday:
		return false
	}
	_, holiday := c.holidays[date.Format("2006-01-02")]
	return !holiday
}

// Degraded reports whether the calendar is running without a holiday set.
func (c *Calendar) Degraded() bool {
	return c.degraded
}

// Midnight truncates a timestamp to its date in UTC. Trading dates are
// represented as midnight-UTC timestamps throughout the sync engine.
func Midnight(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}
