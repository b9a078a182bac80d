package validate

import (
	"fmt"
	"sort"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/Hoangnph/stock-tracking-data/internal/calendar"
	"github.com/Hoangnph/stock-tracking-data/internal/planner"
	"github.com/Hoangnph/stock-tracking-data/pkg/models"
)

// Validator checks a symbol's record set for duplicates, missing trading
// days, and value-domain anomalies. It is descriptive: apart from duplicate
// resolution it never mutates or discards records.
type Validator struct {
	cal    *calendar.Calendar
	logger *logrus.Entry
}

// New creates a validator over the given trading calendar.
func New(cal *calendar.Calendar, logger *logrus.Logger) *Validator {
	return &Validator{
		cal:    cal,
		logger: logger.WithField("component", "validator"),
	}
}

// Validate deduplicates the records and reports integrity findings for the
// expected range. The returned slice is the deduplicated record set ordered
// by trading date.
//
// Duplicate policy: for records sharing a (symbol, trading date) key the
// last one observed wins. Later API pages carry the more recent revision of
// a bar, so the tie-break follows observation order deliberately rather than
// incidentally.
func (v *Validator) Validate(symbol string, records []*models.DailyRecord, expected planner.DateRange) ([]*models.DailyRecord, *models.ValidationResult) {
	result := &models.ValidationResult{
		Symbol:     symbol,
		RangeStart: expected.Start,
		RangeEnd:   expected.End,
	}

	byKey := make(map[models.RecordKey]*models.DailyRecord, len(records))
	var order []models.RecordKey
	for _, rec := range records {
		key := rec.Key()
		if _, exists := byKey[key]; exists {
			result.DuplicateCount++
		} else {
			order = append(order, key)
		}
		byKey[key] = rec
	}

	deduped := make([]*models.DailyRecord, 0, len(order))
	for _, key := range order {
		deduped = append(deduped, byKey[key])
	}
	sort.Slice(deduped, func(i, j int) bool {
		return deduped[i].TradingDate.Before(deduped[j].TradingDate)
	})
	result.TotalRecords = len(deduped)

	v.checkMissing(deduped, expected, result)
	v.checkDomains(deduped, result)

	if result.DuplicateCount > 0 || len(result.MissingDates) > 0 || len(result.Anomalies) > 0 {
		v.logger.WithFields(logrus.Fields{
			"symbol":      symbol,
			"records":     result.TotalRecords,
			"duplicates":  result.DuplicateCount,
			"missing":     len(result.MissingDates),
			"unconfirmed": len(result.UnconfirmedDates),
			"anomalies":   len(result.Anomalies),
		}).Warn("Validation findings")
	}

	return deduped, result
}

// checkMissing walks every trading day of the expected range and records the
// absent ones. Non-trading days are never reported. With a degraded calendar
// (no holiday list) an isolated single-day gap may simply be an unlisted
// holiday, so it is reported as unconfirmed instead of missing.
func (v *Validator) checkMissing(records []*models.DailyRecord, expected planner.DateRange, result *models.ValidationResult) {
	present := make(map[string]struct{}, len(records))
	for _, rec := range records {
		present[rec.TradingDate.Format("2006-01-02")] = struct{}{}
	}

	var gaps []time.Time
	for d := expected.Start; !d.After(expected.End); d = d.AddDate(0, 0, 1) {
		if !v.cal.IsTradingDay(d) {
			continue
		}
		if _, ok := present[d.Format("2006-01-02")]; !ok {
			gaps = append(gaps, d)
		}
	}

	if !v.cal.Degraded() {
		result.MissingDates = gaps
		return
	}

	for i, gap := range gaps {
		isolated := true
		if i > 0 && gaps[i-1].Equal(gap.AddDate(0, 0, -1)) {
			isolated = false
		}
		if i < len(gaps)-1 && gaps[i+1].Equal(gap.AddDate(0, 0, 1)) {
			isolated = false
		}
		if isolated {
			result.UnconfirmedDates = append(result.UnconfirmedDates, gap)
		} else {
			result.MissingDates = append(result.MissingDates, gap)
		}
	}
}

// checkDomains flags records with negative prices or volumes. Anomalies are
// reported, never auto-corrected; fixing them needs operator judgment.
func (v *Validator) checkDomains(records []*models.DailyRecord, result *models.ValidationResult) {
	for _, rec := range records {
		date := rec.TradingDate.Format("2006-01-02")
		for name, val := range map[string]*float64{
			"open":  rec.OpenPrice,
			"high":  rec.HighPrice,
			"low":   rec.LowPrice,
			"close": rec.ClosePrice,
		} {
			if val != nil && *val < 0 {
				result.Anomalies = append(result.Anomalies,
					fmt.Sprintf("%s %s: negative %s price %.4f", rec.Symbol, date, name, *val))
			}
		}
		if rec.Volume != nil && *rec.Volume < 0 {
			result.Anomalies = append(result.Anomalies,
				fmt.Sprintf("%s %s: negative volume %d", rec.Symbol, date, *rec.Volume))
		}
	}
}
