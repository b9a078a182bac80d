package normalize

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/Hoangnph/stock-tracking-data/internal/calendar"
	"github.com/Hoangnph/stock-tracking-data/internal/source"
	"github.com/Hoangnph/stock-tracking-data/pkg/models"
)

// ErrArrayMismatch marks a parallel-array payload whose arrays disagree in
// length. The whole batch is rejected; guessing alignment would corrupt data.
var ErrArrayMismatch = errors.New("parallel array length mismatch")

// floatFields maps stock-info source names to canonical float fields.
var floatFields = map[string]func(*models.DailyRecord, *float64){
	"open":               func(r *models.DailyRecord, v *float64) { r.OpenPrice = v },
	"high":               func(r *models.DailyRecord, v *float64) { r.HighPrice = v },
	"low":                func(r *models.DailyRecord, v *float64) { r.LowPrice = v },
	"close":              func(r *models.DailyRecord, v *float64) { r.ClosePrice = v },
	"priceChanged":       func(r *models.DailyRecord, v *float64) { r.PriceChange = v },
	"perPriceChange":     func(r *models.DailyRecord, v *float64) { r.PriceChangePercent = v },
	"ceilingPrice":       func(r *models.DailyRecord, v *float64) { r.CeilingPrice = v },
	"floorPrice":         func(r *models.DailyRecord, v *float64) { r.FloorPrice = v },
	"refPrice":           func(r *models.DailyRecord, v *float64) { r.RefPrice = v },
	"avgPrice":           func(r *models.DailyRecord, v *float64) { r.AvgPrice = v },
	"closePriceAdjusted": func(r *models.DailyRecord, v *float64) { r.ClosePriceAdjusted = v },
	"openRaw":            func(r *models.DailyRecord, v *float64) { r.OpenRaw = v },
	"highRaw":            func(r *models.DailyRecord, v *float64) { r.HighRaw = v },
	"lowRaw":             func(r *models.DailyRecord, v *float64) { r.LowRaw = v },
	"closeRaw":           func(r *models.DailyRecord, v *float64) { r.CloseRaw = v },
}

// intFields maps stock-info source names to canonical integer fields.
var intFields = map[string]func(*models.DailyRecord, *int64){
	"volume":               func(r *models.DailyRecord, v *int64) { r.Volume = v },
	"totalMatchVal":        func(r *models.DailyRecord, v *int64) { r.TotalMatchValue = v },
	"totalMatchVol":        func(r *models.DailyRecord, v *int64) { r.TotalMatchVol = v },
	"totalDealVal":         func(r *models.DailyRecord, v *int64) { r.TotalDealVal = v },
	"totalDealVol":         func(r *models.DailyRecord, v *int64) { r.TotalDealVol = v },
	"foreignBuyVolTotal":   func(r *models.DailyRecord, v *int64) { r.ForeignBuyVolTotal = v },
	"foreignCurrentRoom":   func(r *models.DailyRecord, v *int64) { r.ForeignCurrentRoom = v },
	"foreignSellVolTotal":  func(r *models.DailyRecord, v *int64) { r.ForeignSellVolTotal = v },
	"foreignBuyValTotal":   func(r *models.DailyRecord, v *int64) { r.ForeignBuyValTotal = v },
	"foreignSellValTotal":  func(r *models.DailyRecord, v *int64) { r.ForeignSellValTotal = v },
	"foreignBuyVolMatched": func(r *models.DailyRecord, v *int64) { r.ForeignBuyVolMatched = v },
	"foreignBuyVolDeal":    func(r *models.DailyRecord, v *int64) { r.ForeignBuyVolDeal = v },
	"totalBuyTrade":        func(r *models.DailyRecord, v *int64) { r.TotalBuyTrade = v },
	"totalBuyTradeVol":     func(r *models.DailyRecord, v *int64) { r.TotalBuyTradeVol = v },
	"totalSellTrade":       func(r *models.DailyRecord, v *int64) { r.TotalSellTrade = v },
	"totalSellTradeVol":    func(r *models.DailyRecord, v *int64) { r.TotalSellTradeVol = v },
	"netBuySellVol":        func(r *models.DailyRecord, v *int64) { r.NetBuySellVol = v },
	"netBuySellVal":        func(r *models.DailyRecord, v *int64) { r.NetBuySellVal = v },
}

// identityFields are consumed outside the numeric tables.
var identityFields = map[string]struct{}{
	"symbol":      {},
	"tradingDate": {},
}

// Normalizer converts heterogeneous source payloads into DailyRecords.
// Unmapped source fields are logged once per field name and dropped, so new
// upstream fields never break the pipeline.
type Normalizer struct {
	logger *logrus.Entry

	unknownMu sync.Mutex
	unknown   map[string]struct{}
}

// New creates a normalizer.
func New(logger *logrus.Logger) *Normalizer {
	return &Normalizer{
		logger:  logger.WithField("component", "normalizer"),
		unknown: make(map[string]struct{}),
	}
}

// Row converts one row-oriented stock-info record. The returned record is
// guaranteed to carry a non-empty symbol and trading date; rows failing that
// guarantee produce an error instead of a record.
func (n *Normalizer) Row(symbol string, row source.Row) (*models.DailyRecord, error) {
	if symbol == "" {
		return nil, fmt.Errorf("record has no symbol")
	}

	dateStr, _ := row["tradingDate"].(string)
	if dateStr == "" {
		return nil, fmt.Errorf("record for %s has no trading date", symbol)
	}
	tradingDate, err := time.Parse("02/01/2006", dateStr)
	if err != nil {
		return nil, fmt.Errorf("invalid trading date %q for %s: %w", dateStr, symbol, err)
	}

	rec := &models.DailyRecord{
		Symbol:      symbol,
		TradingDate: calendar.Midnight(tradingDate),
	}

	for field, value := range row {
		if _, ok := identityFields[field]; ok {
			continue
		}
		if set, ok := floatFields[field]; ok {
			set(rec, safeFloat(value))
			continue
		}
		if set, ok := intFields[field]; ok {
			set(rec, safeInt(value))
			continue
		}
		n.logUnknownOnce(field)
	}

	return rec, nil
}

// Rows converts a slice of row records, dropping and counting the ones that
// fail the symbol/date guarantee.
func (n *Normalizer) Rows(symbol string, rows []source.Row) (records []*models.DailyRecord, dropped int) {
	for _, row := range rows {
		rec, err := n.Row(symbol, row)
		if err != nil {
			n.logger.WithError(err).WithField("symbol", symbol).Warn("Dropping malformed record")
			dropped++
			continue
		}
		records = append(records, rec)
	}
	return records, dropped
}

// Series zips a parallel-array chart payload into one record per index.
// Any array whose length differs from the timestamp array fails the whole
// batch with ErrArrayMismatch.
func (n *Normalizer) Series(series *source.ChartSeries) ([]*models.DailyRecord, error) {
	if series.Symbol == "" {
		return nil, fmt.Errorf("chart series has no symbol")
	}

	count := len(series.Timestamps)
	for name, l := range map[string]int{
		"opens":   len(series.Opens),
		"highs":   len(series.Highs),
		"lows":    len(series.Lows),
		"closes":  len(series.Closes),
		"volumes": len(series.Volumes),
	} {
		if l != count {
			return nil, fmt.Errorf("%w: %s has %d entries, timestamps has %d for %s",
				ErrArrayMismatch, name, l, count, series.Symbol)
		}
	}

	records := make([]*models.DailyRecord, 0, count)
	for i := 0; i < count; i++ {
		o, h, l, c := series.Opens[i], series.Highs[i], series.Lows[i], series.Closes[i]
		v := int64(series.Volumes[i])
		records = append(records, &models.DailyRecord{
			Symbol:      series.Symbol,
			TradingDate: calendar.Midnight(time.Unix(series.Timestamps[i], 0).UTC()),
			OpenPrice:   &o,
			HighPrice:   &h,
			LowPrice:    &l,
			ClosePrice:  &c,
			Volume:      &v,
		})
	}

	return records, nil
}

func (n *Normalizer) logUnknownOnce(field string) {
	n.unknownMu.Lock()
	_, seen := n.unknown[field]
	if !seen {
		n.unknown[field] = struct{}{}
	}
	n.unknownMu.Unlock()

	if !seen {
		n.logger.WithField("field", field).Info("Unmapped source field, dropping")
	}
}

// safeFloat coerces a source value to a float pointer. Empty strings, "-",
// and null sentinels map to nil (absent), never to zero.
func safeFloat(value interface{}) *float64 {
	switch v := value.(type) {
	case nil:
		return nil
	case float64:
		return &v
	case string:
		s := strings.ReplaceAll(strings.TrimSpace(v), ",", "")
		if s == "" || s == "-" {
			return nil
		}
		f, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return nil
		}
		return &f
	default:
		return nil
	}
}

// safeInt coerces a source value to an integer pointer with the same
// absent-value semantics as safeFloat.
func safeInt(value interface{}) *int64 {
	switch v := value.(type) {
	case nil:
		return nil
	case float64:
		i := int64(v)
		return &i
	case string:
		s := strings.ReplaceAll(strings.TrimSpace(v), ",", "")
		if s == "" || s == "-" {
			return nil
		}
		i, err := strconv.ParseInt(s, 10, 64)
		if err != nil {
			f, ferr := strconv.ParseFloat(s, 64)
			if ferr != nil {
				return nil
			}
			i = int64(f)
		}
		return &i
	default:
		return nil
	}
}
