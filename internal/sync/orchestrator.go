package sync

import (
	"context"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/Hoangnph/stock-tracking-data/pkg/config"
	"github.com/Hoangnph/stock-tracking-data/pkg/models"
)

// Run processes the symbol universe in one sync pass. Debug mode runs
// symbols sequentially in the given order; production mode fans them out to
// a bounded worker pool. Symbols share no mutable state, so the state
// machine is scheduler-agnostic.
//
// Cancellation stops the scheduling of new symbols; symbols already
// in flight run to a terminal state so no multi-page fetch is abandoned
// mid-commit.
func (e *Engine) Run(ctx context.Context, symbols []string) *models.RunStats {
	stats := &models.RunStats{
		StartedAt: time.Now(),
		DryRun:    e.cfg.DryRun,
	}

	if max := e.cfg.MaxSymbols; max > 0 && len(symbols) > max {
		symbols = symbols[:max]
		e.logger.WithField("max_symbols", max).Info("Symbol universe truncated")
	}

	e.logger.WithFields(logrus.Fields{
		"symbols": len(symbols),
		"mode":    e.cfg.Mode,
		"workers": e.workers(),
		"dry_run": e.cfg.DryRun,
	}).Info("Starting sync pass")

	if e.workers() <= 1 {
		e.runSequential(ctx, symbols, stats)
	} else {
		e.runPool(ctx, symbols, stats)
	}

	stats.FinishedAt = time.Now()
	stats.Duration = stats.FinishedAt.Sub(stats.StartedAt)

	e.logger.WithFields(logrus.Fields{
		"processed":  stats.SymbolsProcessed,
		"succeeded":  stats.SymbolsSucceeded,
		"failed":     stats.SymbolsFailed,
		"skipped":    stats.SymbolsSkipped,
		"fetched":    stats.RecordsFetched,
		"saved":      stats.RecordsSaved,
		"duplicates": stats.Duplicates,
		"missing":    stats.MissingDates,
		"duration":   stats.Duration.Round(time.Millisecond),
	}).Info("Sync pass completed")

	for _, f := range stats.Failures {
		e.logger.WithFields(logrus.Fields{
			"symbol": f.Symbol,
			"reason": f.Reason,
		}).Error("Symbol failed during pass")
	}

	e.events.PublishSummary(stats)
	return stats
}

func (e *Engine) workers() int {
	if e.cfg.Mode == config.ModeDebug {
		return 1
	}
	return e.cfg.MaxWorkers
}

func (e *Engine) runSequential(ctx context.Context, symbols []string, stats *models.RunStats) {
	for _, symbol := range symbols {
		if ctx.Err() != nil {
			e.logger.Warn("Run cancelled, not scheduling remaining symbols")
			return
		}
		stats.Add(e.SyncSymbol(ctx, symbol))
	}
}

func (e *Engine) runPool(ctx context.Context, symbols []string, stats *models.RunStats) {
	jobs := make(chan string)
	results := make(chan *models.SymbolResult, len(symbols))

	var wg sync.WaitGroup
	for i := 0; i < e.workers(); i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for symbol := range jobs {
				results <- e.SyncSymbol(ctx, symbol)
			}
		}()
	}

	// Dispatch until done or cancelled; workers drain naturally when the
	// jobs channel closes.
dispatch:
	for _, symbol := range symbols {
		select {
		case <-ctx.Done():
			e.logger.Warn("Run cancelled, not scheduling remaining symbols")
			break dispatch
		case jobs <- symbol:
		}
	}
	close(jobs)

	wg.Wait()
	close(results)

	for result := range results {
		stats.Add(result)
	}
}
