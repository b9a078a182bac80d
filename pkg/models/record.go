package models

import "time"

// DailyRecord is one day of trading data for one symbol. The pair
// (Symbol, TradingDate) is the idempotency key for all writes.
//
// Numeric fields are pointers: a nil value means the source did not report
// the field, which must stay distinguishable from a reported zero.
type DailyRecord struct {
	Symbol      string    `json:"symbol" db:"symbol"`
	TradingDate time.Time `json:"trading_date" db:"trading_date"`

	// Core OHLCV
	OpenPrice          *float64 `json:"open_price" db:"open_price"`
	HighPrice          *float64 `json:"high_price" db:"high_price"`
	LowPrice           *float64 `json:"low_price" db:"low_price"`
	ClosePrice         *float64 `json:"close_price" db:"close_price"`
	Volume             *int64   `json:"volume" db:"volume"`
	TotalMatchValue    *int64   `json:"total_match_value" db:"total_match_value"`
	PriceChange        *float64 `json:"price_change" db:"price_change"`
	PriceChangePercent *float64 `json:"price_change_percent" db:"price_change_percent"`

	// Reference prices
	CeilingPrice       *float64 `json:"ceiling_price" db:"ceiling_price"`
	FloorPrice         *float64 `json:"floor_price" db:"floor_price"`
	RefPrice           *float64 `json:"ref_price" db:"ref_price"`
	AvgPrice           *float64 `json:"avg_price" db:"avg_price"`
	ClosePriceAdjusted *float64 `json:"close_price_adjusted" db:"close_price_adjusted"`

	// Matched / deal volumes
	TotalMatchVol *int64 `json:"total_match_vol" db:"total_match_vol"`
	TotalDealVal  *int64 `json:"total_deal_val" db:"total_deal_val"`
	TotalDealVol  *int64 `json:"total_deal_vol" db:"total_deal_vol"`

	// Foreign trading
	ForeignBuyVolTotal   *int64 `json:"foreign_buy_vol_total" db:"foreign_buy_vol_total"`
	ForeignCurrentRoom   *int64 `json:"foreign_current_room" db:"foreign_current_room"`
	ForeignSellVolTotal  *int64 `json:"foreign_sell_vol_total" db:"foreign_sell_vol_total"`
	ForeignBuyValTotal   *int64 `json:"foreign_buy_val_total" db:"foreign_buy_val_total"`
	ForeignSellValTotal  *int64 `json:"foreign_sell_val_total" db:"foreign_sell_val_total"`
	ForeignBuyVolMatched *int64 `json:"foreign_buy_vol_matched" db:"foreign_buy_vol_matched"`
	ForeignBuyVolDeal    *int64 `json:"foreign_buy_vol_deal" db:"foreign_buy_vol_deal"`

	// Order statistics
	TotalBuyTrade     *int64 `json:"total_buy_trade" db:"total_buy_trade"`
	TotalBuyTradeVol  *int64 `json:"total_buy_trade_vol" db:"total_buy_trade_vol"`
	TotalSellTrade    *int64 `json:"total_sell_trade" db:"total_sell_trade"`
	TotalSellTradeVol *int64 `json:"total_sell_trade_vol" db:"total_sell_trade_vol"`
	NetBuySellVol     *int64 `json:"net_buy_sell_vol" db:"net_buy_sell_vol"`
	NetBuySellVal     *int64 `json:"net_buy_sell_val" db:"net_buy_sell_val"`

	// Unadjusted prices
	OpenRaw  *float64 `json:"open_raw" db:"open_raw"`
	HighRaw  *float64 `json:"high_raw" db:"high_raw"`
	LowRaw   *float64 `json:"low_raw" db:"low_raw"`
	CloseRaw *float64 `json:"close_raw" db:"close_raw"`
}

// Key returns the idempotency key for the record.
func (r *DailyRecord) Key() RecordKey {
	return RecordKey{Symbol: r.Symbol, TradingDate: r.TradingDate.Format("2006-01-02")}
}

// RecordKey identifies a DailyRecord uniquely.
type RecordKey struct {
	Symbol      string
	TradingDate string
}

// Merge copies every set field of other into r, leaving r's already-set
// fields untouched. Used to combine the row-oriented statistics endpoint
// with the chart-history endpoint for the same trading date.
func (r *DailyRecord) Merge(other *DailyRecord) {
	mergeFloat := func(dst **float64, src *float64) {
		if *dst == nil && src != nil {
			*dst = src
		}
	}
	mergeInt := func(dst **int64, src *int64) {
		if *dst == nil && src != nil {
			*dst = src
		}
	}

	mergeFloat(&r.OpenPrice, other.OpenPrice)
	mergeFloat(&r.HighPrice, other.HighPrice)
	mergeFloat(&r.LowPrice, other.LowPrice)
	mergeFloat(&r.ClosePrice, other.ClosePrice)
	mergeInt(&r.Volume, other.Volume)
	mergeInt(&r.TotalMatchValue, other.TotalMatchValue)
	mergeFloat(&r.PriceChange, other.PriceChange)
	mergeFloat(&r.PriceChangePercent, other.PriceChangePercent)
	mergeFloat(&r.CeilingPrice, other.CeilingPrice)
	mergeFloat(&r.FloorPrice, other.FloorPrice)
	mergeFloat(&r.RefPrice, other.RefPrice)
	mergeFloat(&r.AvgPrice, other.AvgPrice)
	mergeFloat(&r.ClosePriceAdjusted, other.ClosePriceAdjusted)
	mergeInt(&r.TotalMatchVol, other.TotalMatchVol)
	mergeInt(&r.TotalDealVal, other.TotalDealVal)
	mergeInt(&r.TotalDealVol, other.TotalDealVol)
	mergeInt(&r.ForeignBuyVolTotal, other.ForeignBuyVolTotal)
	mergeInt(&r.ForeignCurrentRoom, other.ForeignCurrentRoom)
	mergeInt(&r.ForeignSellVolTotal, other.ForeignSellVolTotal)
	mergeInt(&r.ForeignBuyValTotal, other.ForeignBuyValTotal)
	mergeInt(&r.ForeignSellValTotal, other.ForeignSellValTotal)
	mergeInt(&r.ForeignBuyVolMatched, other.ForeignBuyVolMatched)
	mergeInt(&r.ForeignBuyVolDeal, other.ForeignBuyVolDeal)
	mergeInt(&r.TotalBuyTrade, other.TotalBuyTrade)
	mergeInt(&r.TotalBuyTradeVol, other.TotalBuyTradeVol)
	mergeInt(&r.TotalSellTrade, other.TotalSellTrade)
	mergeInt(&r.TotalSellTradeVol, other.TotalSellTradeVol)
	mergeInt(&r.NetBuySellVol, other.NetBuySellVol)
	mergeInt(&r.NetBuySellVal, other.NetBuySellVal)
	mergeFloat(&r.OpenRaw, other.OpenRaw)
	mergeFloat(&r.HighRaw, other.HighRaw)
	mergeFloat(&r.LowRaw, other.LowRaw)
	mergeFloat(&r.CloseRaw, other.CloseRaw)
}
