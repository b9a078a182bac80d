package planner

import (
	"time"

	"github.com/Hoangnph/stock-tracking-data/internal/calendar"
)

// DateRange is an inclusive [Start, End] range of trading dates to fetch,
// both normalized to midnight UTC.
type DateRange struct {
	Start time.Time
	End   time.Time
}

// Days returns the number of calendar days covered by the range.
func (r DateRange) Days() int {
	return int(r.End.Sub(r.Start).Hours()/24) + 1
}

// Contains reports whether the date falls inside the range.
func (r DateRange) Contains(date time.Time) bool {
	d := calendar.Midnight(date)
	return !d.Before(r.Start) && !d.After(r.End)
}

// Planner computes the date range to fetch for a symbol from its last
// persisted date and the current wall-clock time.
type Planner struct {
	epoch      time.Time
	cutoffHour int
	loc        *time.Location
}

// New creates a planner. epoch is the historical floor used for first-time
// syncs, cutoffHour the local hour after which same-day data is considered
// final, and loc the fixed-offset exchange timezone the cutoff is judged in.
func New(epoch time.Time, cutoffHour int, loc *time.Location) *Planner {
	return &Planner{
		epoch:      calendar.Midnight(epoch),
		cutoffHour: cutoffHour,
		loc:        loc,
	}
}

// Plan returns the range to fetch, or nil when the symbol is already
// current. lastSynced is the maximum trading date committed for the symbol,
// nil for a first sync.
//
// The end date follows the market-close rule: before the cutoff hour the
// current day's bar may still be partial, so the range ends yesterday.
// Ranges whose boundaries land on non-trading days are returned as-is; an
// empty fetch result for such a range is tolerated downstream.
func (p *Planner) Plan(lastSynced *time.Time, now time.Time) *DateRange {
	var start time.Time
	if lastSynced == nil {
		start = p.epoch
	} else {
		start = calendar.Midnight(*lastSynced).AddDate(0, 0, 1)
	}

	local := now.In(p.loc)
	end := time.Date(local.Year(), local.Month(), local.Day(), 0, 0, 0, 0, time.UTC)
	if local.Hour() < p.cutoffHour {
		end = end.AddDate(0, 0, -1)
	}

	if start.After(end) {
		return nil
	}

	return &DateRange{Start: start, End: end}
}
