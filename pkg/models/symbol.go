package models

import "time"

// SymbolInfo represents one equity in the tracked universe. The ticker is
// the immutable identity; descriptive attributes are refreshed on every
// universe reload. Symbols are deactivated, never deleted.
type SymbolInfo struct {
	ID            int       `json:"id" db:"id"`
	Symbol        string    `json:"symbol" db:"symbol"`
	CompanyName   string    `json:"company_name" db:"company_name"`
	CompanyNameEn string    `json:"company_name_en" db:"company_name_en"`
	Sector        string    `json:"sector" db:"sector"`
	Exchange      string    `json:"exchange" db:"exchange"`
	ISIN          string    `json:"isin" db:"isin"`
	BoardID       string    `json:"board_id" db:"board_id"`
	MarketCap     *float64  `json:"market_cap" db:"market_cap"`
	IndexWeight   *float64  `json:"index_weight" db:"index_weight"`
	IsActive      bool      `json:"is_active" db:"is_active"`
	CreatedAt     time.Time `json:"created_at" db:"created_at"`
	UpdatedAt     time.Time `json:"updated_at" db:"updated_at"`
}
