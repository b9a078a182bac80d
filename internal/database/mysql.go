package database

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	_ "github.com/go-sql-driver/mysql"
	"github.com/sirupsen/logrus"

	"github.com/Hoangnph/stock-tracking-data/pkg/config"
	"github.com/Hoangnph/stock-tracking-data/pkg/models"
)

// MySQLClient is the persistence collaborator. Daily-record writes are
// idempotent upserts keyed on (symbol, trading_date); the sync engine never
// deletes from this store.
type MySQLClient struct {
	db     *sql.DB
	logger *logrus.Entry
	cfg    *config.MySQLConfig
}

// NewMySQLClient creates a new MySQL client.
func NewMySQLClient(cfg *config.MySQLConfig, logger *logrus.Logger) (*MySQLClient, error) {
	dsn := fmt.Sprintf("%s:%s@tcp(%s:%d)/%s?parseTime=true&multiStatements=true",
		cfg.User,
		cfg.Password,
		cfg.Host,
		cfg.Port,
		cfg.Database,
	)

	logger.WithField("dsn", fmt.Sprintf("%s:***@tcp(%s:%d)/%s", cfg.User, cfg.Host, cfg.Port, cfg.Database)).Debug("Connecting to MySQL")

	db, err := sql.Open("mysql", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open MySQL connection: %w", err)
	}

	db.SetMaxOpenConns(cfg.MaxOpenConns)
	db.SetMaxIdleConns(cfg.MaxIdleConns)
	db.SetConnMaxLifetime(cfg.ConnMaxLifetime)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := db.PingContext(ctx); err != nil {
		return nil, fmt.Errorf("failed to ping MySQL: %w", err)
	}

	return &MySQLClient{
		db:     db,
		logger: logger.WithField("component", "mysql"),
		cfg:    cfg,
	}, nil
}

// Close closes the database connection.
func (mc *MySQLClient) Close() error {
	return mc.db.Close()
}

// Health checks database health.
func (mc *MySQLClient) Health(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()

	return mc.db.PingContext(ctx)
}

// Daily record operations

// GetLastSyncedDate returns the maximum committed trading date for a
// symbol, or nil when the symbol has no records yet.
func (mc *MySQLClient) GetLastSyncedDate(ctx context.Context, symbol string) (*time.Time, error) {
	query := `SELECT MAX(trading_date) FROM daily_records WHERE symbol = ?`

	var last sql.NullTime
	if err := mc.db.QueryRowContext(ctx, query, symbol).Scan(&last); err != nil {
		return nil, fmt.Errorf("failed to get last synced date for %s: %w", symbol, err)
	}
	if !last.Valid {
		return nil, nil
	}

	t := last.Time.UTC()
	return &t, nil
}

var dailyRecordColumns = []string{
	"symbol", "trading_date",
	"open_price", "high_price", "low_price", "close_price",
	"volume", "total_match_value", "price_change", "price_change_percent",
	"ceiling_price", "floor_price", "ref_price", "avg_price", "close_price_adjusted",
	"total_match_vol", "total_deal_val", "total_deal_vol",
	"foreign_buy_vol_total", "foreign_current_room", "foreign_sell_vol_total",
	"foreign_buy_val_total", "foreign_sell_val_total", "foreign_buy_vol_matched", "foreign_buy_vol_deal",
	"total_buy_trade", "total_buy_trade_vol", "total_sell_trade", "total_sell_trade_vol",
	"net_buy_sell_vol", "net_buy_sell_val",
	"open_raw", "high_raw", "low_raw", "close_raw",
}

func dailyRecordArgs(r *models.DailyRecord) []interface{} {
	return []interface{}{
		r.Symbol, r.TradingDate.Format("2006-01-02"),
		r.OpenPrice, r.HighPrice, r.LowPrice, r.ClosePrice,
		r.Volume, r.TotalMatchValue, r.PriceChange, r.PriceChangePercent,
		r.CeilingPrice, r.FloorPrice, r.RefPrice, r.AvgPrice, r.ClosePriceAdjusted,
		r.TotalMatchVol, r.TotalDealVal, r.TotalDealVol,
		r.ForeignBuyVolTotal, r.ForeignCurrentRoom, r.ForeignSellVolTotal,
		r.ForeignBuyValTotal, r.ForeignSellValTotal, r.ForeignBuyVolMatched, r.ForeignBuyVolDeal,
		r.TotalBuyTrade, r.TotalBuyTradeVol, r.TotalSellTrade, r.TotalSellTradeVol,
		r.NetBuySellVol, r.NetBuySellVal,
		r.OpenRaw, r.HighRaw, r.LowRaw, r.CloseRaw,
	}
}

// UpsertDailyRecords writes records one by one as independent idempotent
// upserts and returns the number of rows actually written. Re-syncing
// unchanged data writes nothing, which is what makes reruns self-healing
// without cross-batch transactions.
func (mc *MySQLClient) UpsertDailyRecords(ctx context.Context, records []*models.DailyRecord) (int, error) {
	if len(records) == 0 {
		return 0, nil
	}

	placeholders := strings.TrimSuffix(strings.Repeat("?, ", len(dailyRecordColumns)), ", ")

	var updates []string
	for _, col := range dailyRecordColumns[2:] {
		updates = append(updates, fmt.Sprintf("%s = VALUES(%s)", col, col))
	}

	query := fmt.Sprintf(`
		INSERT INTO daily_records (%s)
		VALUES (%s)
		ON DUPLICATE KEY UPDATE %s, updated_at = CURRENT_TIMESTAMP
	`, strings.Join(dailyRecordColumns, ", "), placeholders, strings.Join(updates, ", "))

	written := 0
	for _, rec := range records {
		result, err := mc.db.ExecContext(ctx, query, dailyRecordArgs(rec)...)
		if err != nil {
			return written, fmt.Errorf("failed to upsert record %s/%s: %w",
				rec.Symbol, rec.TradingDate.Format("2006-01-02"), err)
		}

		// MySQL reports 1 for an insert, 2 for an update that changed the
		// row, 0 for a no-op duplicate.
		if affected, err := result.RowsAffected(); err == nil && affected > 0 {
			written++
		}
	}

	mc.logger.WithFields(logrus.Fields{
		"records": len(records),
		"written": written,
	}).Debug("Upserted daily records")

	return written, nil
}

// CountRecords returns the number of committed records for a symbol.
func (mc *MySQLClient) CountRecords(ctx context.Context, symbol string) (int, error) {
	var count int
	err := mc.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM daily_records WHERE symbol = ?`, symbol).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count records for %s: %w", symbol, err)
	}
	return count, nil
}

// Symbol operations

// GetActiveSymbols retrieves all active symbols ordered by ticker.
func (mc *MySQLClient) GetActiveSymbols(ctx context.Context) ([]*models.SymbolInfo, error) {
	query := `
		SELECT id, symbol, company_name, company_name_en, sector, exchange,
		       isin, board_id, market_cap, index_weight, is_active,
		       created_at, updated_at
		FROM symbols
		WHERE is_active = 1
		ORDER BY symbol
	`

	rows, err := mc.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to query symbols: %w", err)
	}
	defer rows.Close()

	var symbols []*models.SymbolInfo
	for rows.Next() {
		s := &models.SymbolInfo{}
		err := rows.Scan(
			&s.ID, &s.Symbol, &s.CompanyName, &s.CompanyNameEn, &s.Sector,
			&s.Exchange, &s.ISIN, &s.BoardID, &s.MarketCap, &s.IndexWeight,
			&s.IsActive, &s.CreatedAt, &s.UpdatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan symbol: %w", err)
		}
		symbols = append(symbols, s)
	}

	return symbols, rows.Err()
}

const upsertSymbolQuery = `
	INSERT INTO symbols (
		symbol, company_name, company_name_en, sector, exchange,
		isin, board_id, market_cap, index_weight, is_active
	) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	ON DUPLICATE KEY UPDATE
		company_name = VALUES(company_name),
		company_name_en = VALUES(company_name_en),
		sector = VALUES(sector),
		exchange = VALUES(exchange),
		isin = VALUES(isin),
		board_id = VALUES(board_id),
		market_cap = VALUES(market_cap),
		index_weight = VALUES(index_weight),
		is_active = VALUES(is_active),
		updated_at = CURRENT_TIMESTAMP
`

// ReplaceUniverse upserts the given symbols and deactivates every symbol
// outside the set, all in one transaction so a failed refresh can never
// leave a half-updated universe. Symbols are never deleted; dropping out of
// the index only deactivates. Returns the number of symbols deactivated.
func (mc *MySQLClient) ReplaceUniverse(ctx context.Context, symbols []*models.SymbolInfo) (int, error) {
	if len(symbols) == 0 {
		return 0, fmt.Errorf("refusing to replace universe with empty symbol set")
	}

	placeholders := strings.TrimSuffix(strings.Repeat("?, ", len(symbols)), ", ")
	deactivateQuery := fmt.Sprintf(`
		UPDATE symbols SET is_active = 0, updated_at = CURRENT_TIMESTAMP
		WHERE is_active = 1 AND symbol NOT IN (%s)
	`, placeholders)

	deactivated := 0
	err := mc.ExecTx(ctx, func(tx *sql.Tx) error {
		active := make([]interface{}, 0, len(symbols))
		for _, s := range symbols {
			if _, err := tx.ExecContext(ctx, upsertSymbolQuery,
				s.Symbol, s.CompanyName, s.CompanyNameEn, s.Sector, s.Exchange,
				s.ISIN, s.BoardID, s.MarketCap, s.IndexWeight, s.IsActive,
			); err != nil {
				return fmt.Errorf("failed to upsert symbol %s: %w", s.Symbol, err)
			}
			active = append(active, s.Symbol)
		}

		result, err := tx.ExecContext(ctx, deactivateQuery, active...)
		if err != nil {
			return fmt.Errorf("failed to deactivate dropped symbols: %w", err)
		}
		affected, _ := result.RowsAffected()
		deactivated = int(affected)
		return nil
	})
	if err != nil {
		return 0, err
	}

	return deactivated, nil
}

// Sync status operations

// UpdateSyncStatus records the current state of a symbol's sync.
func (mc *MySQLClient) UpdateSyncStatus(ctx context.Context, symbol, status string, saved int, lastError string) error {
	query := `
		INSERT INTO sync_status (symbol, status, records_saved, last_error)
		VALUES (?, ?, ?, ?)
		ON DUPLICATE KEY UPDATE
			status = VALUES(status),
			records_saved = VALUES(records_saved),
			last_error = VALUES(last_error),
			updated_at = CURRENT_TIMESTAMP
	`

	_, err := mc.db.ExecContext(ctx, query, symbol, status, saved, lastError)
	if err != nil {
		return fmt.Errorf("failed to update sync status for %s: %w", symbol, err)
	}

	return nil
}

// GetSyncStatuses retrieves all per-symbol sync statuses.
func (mc *MySQLClient) GetSyncStatuses(ctx context.Context) ([]*models.SyncStatus, error) {
	query := `
		SELECT symbol, status, records_saved, last_error, updated_at
		FROM sync_status
		ORDER BY symbol
	`

	rows, err := mc.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to query sync statuses: %w", err)
	}
	defer rows.Close()

	var statuses []*models.SyncStatus
	for rows.Next() {
		s := &models.SyncStatus{}
		if err := rows.Scan(&s.Symbol, &s.Status, &s.RecordsSaved, &s.LastError, &s.UpdatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan sync status: %w", err)
		}
		statuses = append(statuses, s)
	}

	return statuses, rows.Err()
}

// ExecTx executes a function within a transaction.
func (mc *MySQLClient) ExecTx(ctx context.Context, fn func(*sql.Tx) error) error {
	tx, err := mc.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}

	defer func() {
		if p := recover(); p != nil {
			tx.Rollback()
			panic(p)
		}
	}()

	if err := fn(tx); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			return fmt.Errorf("tx err: %v, rb err: %v", err, rbErr)
		}
		return err
	}

	return tx.Commit()
}
