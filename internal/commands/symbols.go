package commands

import (
	"context"
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/Hoangnph/stock-tracking-data/internal/cache"
	"github.com/Hoangnph/stock-tracking-data/internal/database"
	"github.com/Hoangnph/stock-tracking-data/internal/source"
	"github.com/Hoangnph/stock-tracking-data/internal/universe"
)

var symbolsCmd = &cobra.Command{
	Use:   "symbols",
	Short: "Symbol universe management",
	Long: `Inspect and refresh the tracked symbol universe.

The universe is the current constituents of the configured index group
plus the benchmark index. Constituents that drop out of the index are
deactivated, never deleted, so their history stays queryable.

Examples:
  stockdata symbols list     # Show the stored universe
  stockdata symbols refresh  # Re-fetch constituents from the quote API`,
}

var symbolsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List the stored symbol universe",
	RunE:  runSymbolsList,
}

var symbolsRefreshCmd = &cobra.Command{
	Use:   "refresh",
	Short: "Refresh the universe from the quote API",
	RunE:  runSymbolsRefresh,
}

func init() {
	symbolsCmd.AddCommand(symbolsListCmd)
	symbolsCmd.AddCommand(symbolsRefreshCmd)
	rootCmd.AddCommand(symbolsCmd)
}

func runSymbolsList(cmd *cobra.Command, args []string) error {
	cfg, log, err := loadConfigAndLogger()
	if err != nil {
		return err
	}

	mysqlClient, err := database.NewMySQLClient(&cfg.MySQL, log)
	if err != nil {
		return fmt.Errorf("failed to create MySQL client: %w", err)
	}
	defer mysqlClient.Close()

	ctx := context.Background()
	if err := mysqlClient.Migrate(ctx); err != nil {
		return fmt.Errorf("migration failed: %w", err)
	}

	infos, err := mysqlClient.GetActiveSymbols(ctx)
	if err != nil {
		return fmt.Errorf("failed to load symbols: %w", err)
	}

	if len(infos) == 0 {
		fmt.Println("No symbols stored. Run 'stockdata symbols refresh' first.")
		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "SYMBOL\tEXCHANGE\tSECTOR\tRECORDS\tCOMPANY")
	for _, info := range infos {
		count, err := mysqlClient.CountRecords(ctx, info.Symbol)
		if err != nil {
			return fmt.Errorf("failed to count records for %s: %w", info.Symbol, err)
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%d\t%s\n", info.Symbol, info.Exchange, info.Sector, count, info.CompanyName)
	}
	if err := w.Flush(); err != nil {
		return err
	}

	fmt.Printf("\n%d active symbols\n", len(infos))
	return nil
}

func runSymbolsRefresh(cmd *cobra.Command, args []string) error {
	cfg, log, err := loadConfigAndLogger()
	if err != nil {
		return err
	}

	mysqlClient, err := database.NewMySQLClient(&cfg.MySQL, log)
	if err != nil {
		return fmt.Errorf("failed to create MySQL client: %w", err)
	}
	defer mysqlClient.Close()

	ctx := context.Background()
	if err := mysqlClient.Migrate(ctx); err != nil {
		return fmt.Errorf("migration failed: %w", err)
	}

	var redisCache *cache.RedisClient
	if rc, err := cache.NewRedisClient(&cfg.Redis, log); err != nil {
		log.WithError(err).Warn("Redis unavailable, running without cache")
	} else {
		redisCache = rc
		defer redisCache.Close()
	}

	client := source.NewClient(&cfg.Source, log)
	loader := universe.NewLoader(client, mysqlClient, redisCache, &cfg.Source, cfg.Sync.UniverseCacheTTL, log)

	symbols, err := loader.Refresh(ctx)
	if err != nil {
		return fmt.Errorf("universe refresh failed: %w", err)
	}

	fmt.Printf("Universe refreshed: %d active symbols\n", len(symbols))
	return nil
}
