package database

import (
	"context"
	"fmt"
)

// schemaStatements creates the store's tables. Statements are idempotent so
// the migrate command can run on every deploy.
var schemaStatements = []string{
	`CREATE TABLE IF NOT EXISTS symbols (
		id INT AUTO_INCREMENT PRIMARY KEY,
		symbol VARCHAR(16) NOT NULL,
		company_name VARCHAR(255) NOT NULL DEFAULT '',
		company_name_en VARCHAR(255) NOT NULL DEFAULT '',
		sector VARCHAR(128) NOT NULL DEFAULT '',
		exchange VARCHAR(32) NOT NULL DEFAULT 'HOSE',
		isin VARCHAR(32) NOT NULL DEFAULT '',
		board_id VARCHAR(32) NOT NULL DEFAULT '',
		market_cap DOUBLE NULL,
		index_weight DOUBLE NULL,
		is_active TINYINT(1) NOT NULL DEFAULT 1,
		created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
		updated_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP ON UPDATE CURRENT_TIMESTAMP,
		UNIQUE KEY uq_symbol (symbol)
	) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4`,

	`CREATE TABLE IF NOT EXISTS daily_records (
		id BIGINT AUTO_INCREMENT PRIMARY KEY,
		symbol VARCHAR(16) NOT NULL,
		trading_date DATE NOT NULL,
		open_price DOUBLE NULL,
		high_price DOUBLE NULL,
		low_price DOUBLE NULL,
		close_price DOUBLE NULL,
		volume BIGINT NULL,
		total_match_value BIGINT NULL,
		price_change DOUBLE NULL,
		price_change_percent DOUBLE NULL,
		ceiling_price DOUBLE NULL,
		floor_price DOUBLE NULL,
		ref_price DOUBLE NULL,
		avg_price DOUBLE NULL,
		close_price_adjusted DOUBLE NULL,
		total_match_vol BIGINT NULL,
		total_deal_val BIGINT NULL,
		total_deal_vol BIGINT NULL,
		foreign_buy_vol_total BIGINT NULL,
		foreign_current_room BIGINT NULL,
		foreign_sell_vol_total BIGINT NULL,
		foreign_buy_val_total BIGINT NULL,
		foreign_sell_val_total BIGINT NULL,
		foreign_buy_vol_matched BIGINT NULL,
		foreign_buy_vol_deal BIGINT NULL,
		total_buy_trade BIGINT NULL,
		total_buy_trade_vol BIGINT NULL,
		total_sell_trade BIGINT NULL,
		total_sell_trade_vol BIGINT NULL,
		net_buy_sell_vol BIGINT NULL,
		net_buy_sell_val BIGINT NULL,
		open_raw DOUBLE NULL,
		high_raw DOUBLE NULL,
		low_raw DOUBLE NULL,
		close_raw DOUBLE NULL,
		created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
		updated_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP ON UPDATE CURRENT_TIMESTAMP,
		UNIQUE KEY uq_symbol_date (symbol, trading_date),
		KEY idx_trading_date (trading_date)
	) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4`,

	`CREATE TABLE IF NOT EXISTS sync_status (
		symbol VARCHAR(16) NOT NULL PRIMARY KEY,
		status VARCHAR(16) NOT NULL DEFAULT 'planning',
		records_saved INT NOT NULL DEFAULT 0,
		last_error TEXT NOT NULL,
		updated_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP ON UPDATE CURRENT_TIMESTAMP
	) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4`,
}

// Migrate creates the schema if it does not exist.
func (mc *MySQLClient) Migrate(ctx context.Context) error {
	for i, stmt := range schemaStatements {
		if _, err := mc.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("migration statement %d failed: %w", i+1, err)
		}
	}

	mc.logger.WithField("statements", len(schemaStatements)).Info("Schema migration completed")
	return nil
}
