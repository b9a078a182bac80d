package commands

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/Hoangnph/stock-tracking-data/internal/cache"
	"github.com/Hoangnph/stock-tracking-data/internal/calendar"
	"github.com/Hoangnph/stock-tracking-data/internal/database"
	"github.com/Hoangnph/stock-tracking-data/internal/messaging"
	"github.com/Hoangnph/stock-tracking-data/internal/source"
	syncer "github.com/Hoangnph/stock-tracking-data/internal/sync"
	"github.com/Hoangnph/stock-tracking-data/internal/universe"
	"github.com/Hoangnph/stock-tracking-data/pkg/config"
	"github.com/Hoangnph/stock-tracking-data/pkg/logger"
)

var (
	syncSymbols    string
	syncMaxSymbols int
	syncMode       string
	syncWorkers    int
	syncRetries    int
	syncRetryDelay time.Duration
	syncTimeout    time.Duration
	syncDryRun     bool
)

var syncCmd = &cobra.Command{
	Use:   "sync",
	Short: "Run one incremental sync pass",
	Long: `Run one incremental synchronization pass over the symbol universe.

Each symbol advances through its own state machine; one symbol failing
never aborts the others. The pass is idempotent: re-running it over
already-synced data writes zero records.

Examples:
  # Sync the full universe
  stockdata sync

  # Sync two symbols sequentially with debug logging
  stockdata sync --symbols ACB,VCB --mode debug -v

  # Validate without persisting
  stockdata sync --dry-run

  # Limit the universe for a smoke run
  stockdata sync --max-symbols 5`,
	RunE: runSync,
}

func init() {
	syncCmd.Flags().StringVar(&syncSymbols, "symbols", "", "Comma-separated symbols to sync (default: full universe)")
	syncCmd.Flags().IntVar(&syncMaxSymbols, "max-symbols", 0, "Process at most N symbols (0 = no limit)")
	syncCmd.Flags().StringVar(&syncMode, "mode", "", "Execution mode (debug, production)")
	syncCmd.Flags().IntVar(&syncWorkers, "workers", 0, "Concurrent symbol workers (production mode)")
	syncCmd.Flags().IntVar(&syncRetries, "retries", 0, "Max retry attempts per page fetch")
	syncCmd.Flags().DurationVar(&syncRetryDelay, "retry-delay", 0, "Base delay between retry attempts")
	syncCmd.Flags().DurationVar(&syncTimeout, "timeout", 0, "Overall pass timeout (0 = config default)")
	syncCmd.Flags().BoolVar(&syncDryRun, "dry-run", false, "Fetch and validate without persisting")

	rootCmd.AddCommand(syncCmd)
}

func runSync(cmd *cobra.Command, args []string) error {
	cfg, log, err := loadConfigAndLogger()
	if err != nil {
		return err
	}
	applySyncFlags(&cfg.Sync)

	mysqlClient, err := database.NewMySQLClient(&cfg.MySQL, log)
	if err != nil {
		return fmt.Errorf("failed to create MySQL client: %w", err)
	}
	defer mysqlClient.Close()

	ctx := context.Background()
	if cfg.Sync.RunTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, cfg.Sync.RunTimeout)
		defer cancel()
	}

	if err := mysqlClient.Migrate(ctx); err != nil {
		return fmt.Errorf("migration failed: %w", err)
	}

	client := source.NewClient(&cfg.Source, log)

	symbols, err := resolveSymbols(ctx, client, mysqlClient, cfg, log)
	if err != nil {
		return err
	}

	var events syncer.Events
	if cfg.NATS.Enabled {
		natsClient, err := messaging.NewNATSClient(&cfg.NATS, log)
		if err != nil {
			log.WithError(err).Warn("NATS unavailable, running without events")
		} else {
			defer natsClient.Close()
			events = natsClient
		}
	}

	cal := calendar.New(cfg.Sync.Holidays)
	fetcher := source.NewFetcher(client, &cfg.Sync, log)
	engine := syncer.NewEngine(fetcher, mysqlClient, events, cal, &cfg.Sync, log)

	stats := engine.Run(ctx, symbols)

	log.WithFields(logrus.Fields{
		"processed": stats.SymbolsProcessed,
		"succeeded": stats.SymbolsSucceeded,
		"failed":    stats.SymbolsFailed,
		"skipped":   stats.SymbolsSkipped,
		"fetched":   stats.RecordsFetched,
		"saved":     stats.RecordsSaved,
		"duration":  stats.Duration,
		"dry_run":   stats.DryRun,
	}).Info("Sync pass finished")

	if stats.SymbolsFailed > 0 {
		names := make([]string, 0, len(stats.Failures))
		for _, f := range stats.Failures {
			names = append(names, f.Symbol)
		}
		return fmt.Errorf("%d of %d symbols failed: %s",
			stats.SymbolsFailed, stats.SymbolsProcessed, strings.Join(names, ", "))
	}

	return nil
}

// resolveSymbols returns the universe to sync: the --symbols flag when
// given, otherwise a fresh refresh of the index constituents with the
// stored universe as fallback.
func resolveSymbols(ctx context.Context, client *source.Client, mysqlClient *database.MySQLClient, cfg *config.Config, log *logrus.Logger) ([]string, error) {
	if syncSymbols != "" {
		parts := strings.Split(syncSymbols, ",")
		symbols := make([]string, 0, len(parts))
		for _, p := range parts {
			if s := strings.ToUpper(strings.TrimSpace(p)); s != "" {
				symbols = append(symbols, s)
			}
		}
		if len(symbols) == 0 {
			return nil, fmt.Errorf("--symbols contained no valid symbols")
		}
		return symbols, nil
	}

	var redisCache *cache.RedisClient
	if rc, err := cache.NewRedisClient(&cfg.Redis, log); err != nil {
		log.WithError(err).Warn("Redis unavailable, running without cache")
	} else {
		redisCache = rc
		defer redisCache.Close()
	}

	loader := universe.NewLoader(client, mysqlClient, redisCache, &cfg.Source, cfg.Sync.UniverseCacheTTL, log)
	symbols, err := loader.Refresh(ctx)
	if err != nil {
		log.WithError(err).Warn("Universe refresh failed, using stored universe")
		symbols, err = loader.Symbols(ctx)
		if err != nil {
			return nil, fmt.Errorf("no symbol universe available: %w", err)
		}
	}
	if len(symbols) == 0 {
		return nil, fmt.Errorf("symbol universe is empty; run 'stockdata symbols refresh' first")
	}
	return symbols, nil
}

func applySyncFlags(sc *config.SyncConfig) {
	if syncMode != "" {
		sc.Mode = syncMode
	}
	if syncWorkers > 0 {
		sc.MaxWorkers = syncWorkers
	}
	if syncMaxSymbols > 0 {
		sc.MaxSymbols = syncMaxSymbols
	}
	if syncRetries > 0 {
		sc.MaxRetries = syncRetries
	}
	if syncRetryDelay > 0 {
		sc.RetryDelay = syncRetryDelay
	}
	if syncTimeout > 0 {
		sc.RunTimeout = syncTimeout
	}
	if syncDryRun {
		sc.DryRun = true
	}
}

// loadConfigAndLogger is the shared command bootstrap: optional .env file,
// environment config, logger.
func loadConfigAndLogger() (*config.Config, *logrus.Logger, error) {
	if err := config.LoadDotEnv(); err != nil {
		fmt.Printf("Note: .env file not loaded: %v\n", err)
	}

	cfg, err := config.Load()
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load configuration: %w", err)
	}

	if verbose {
		cfg.Logging.Level = "debug"
	}

	log, err := logger.New(&cfg.Logging)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create logger: %w", err)
	}

	return cfg, log, nil
}
