package sync

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/Hoangnph/stock-tracking-data/internal/calendar"
	"github.com/Hoangnph/stock-tracking-data/internal/normalize"
	"github.com/Hoangnph/stock-tracking-data/internal/planner"
	"github.com/Hoangnph/stock-tracking-data/internal/source"
	"github.com/Hoangnph/stock-tracking-data/internal/validate"
	"github.com/Hoangnph/stock-tracking-data/pkg/config"
	"github.com/Hoangnph/stock-tracking-data/pkg/models"
)

// Store is the persistence collaborator. Implementations must be idempotent
// on (symbol, trading_date) and safe under concurrent symbol workers.
type Store interface {
	GetLastSyncedDate(ctx context.Context, symbol string) (*time.Time, error)
	UpsertDailyRecords(ctx context.Context, records []*models.DailyRecord) (int, error)
	UpdateSyncStatus(ctx context.Context, symbol, status string, saved int, lastError string) error
}

// Events receives sync lifecycle notifications. Implementations must not
// block the sync path; publishing failures are the publisher's problem.
type Events interface {
	PublishProgress(symbol, state string, saved int)
	PublishComplete(symbol string, result *models.SymbolResult)
	PublishError(symbol, reason string)
	PublishSummary(stats *models.RunStats)
}

// NopEvents discards all events; used when NATS is disabled.
type NopEvents struct{}

func (NopEvents) PublishProgress(string, string, int)          {}
func (NopEvents) PublishComplete(string, *models.SymbolResult) {}
func (NopEvents) PublishError(string, string)                  {}
func (NopEvents) PublishSummary(*models.RunStats)              {}

// Engine drives the per-symbol sync state machine:
// planning → fetching → normalizing → validating → persisting → done,
// with failed reachable from every non-done state. A symbol's failure never
// aborts the run; it is recorded and the engine moves on.
type Engine struct {
	fetcher   *source.Fetcher
	store     Store
	events    Events
	planner   *planner.Planner
	norm      *normalize.Normalizer
	validator *validate.Validator
	cfg       *config.SyncConfig
	logger    *logrus.Entry

	// Now is the clock used for range planning; replaceable in tests.
	Now func() time.Time
}

// NewEngine creates a sync engine. The epoch date must already have been
// validated by config loading.
func NewEngine(fetcher *source.Fetcher, store Store, events Events, cal *calendar.Calendar, cfg *config.SyncConfig, logger *logrus.Logger) *Engine {
	epoch, _ := cfg.Epoch()
	if events == nil {
		events = NopEvents{}
	}
	return &Engine{
		fetcher:   fetcher,
		store:     store,
		events:    events,
		planner:   planner.New(epoch, cfg.CutoffHour, cfg.Location()),
		norm:      normalize.New(logger),
		validator: validate.New(cal, logger),
		cfg:       cfg,
		logger:    logger.WithField("component", "sync-engine"),
		Now:       time.Now,
	}
}

// setState advances the symbol to the next sync state and publishes the
// transition.
func (e *Engine) setState(result *models.SymbolResult, state string) {
	result.State = state
	e.events.PublishProgress(result.Symbol, state, result.Saved)
}

// SyncSymbol runs one symbol's state machine to a terminal state.
func (e *Engine) SyncSymbol(ctx context.Context, symbol string) *models.SymbolResult {
	result := &models.SymbolResult{Symbol: symbol, State: models.SyncStatePlanning}
	log := e.logger.WithField("symbol", symbol)

	// PLANNING: derive the missing range from storage. Last-synced state is
	// recomputed every run, never cached, so reruns self-heal.
	lastSynced, err := e.store.GetLastSyncedDate(ctx, symbol)
	if err != nil {
		return e.fail(ctx, result, fmt.Errorf("last synced date: %w", err))
	}

	plan := e.planner.Plan(lastSynced, e.Now())
	if plan == nil {
		log.Debug("Already current, nothing to fetch")
		result.State = models.SyncStateDone
		return result
	}

	log.WithFields(logrus.Fields{
		"start": plan.Start.Format("2006-01-02"),
		"end":   plan.End.Format("2006-01-02"),
	}).Info("Planned sync range")

	if err := e.store.UpdateSyncStatus(ctx, symbol, models.SyncStateFetching, 0, ""); err != nil {
		log.WithError(err).Warn("Failed to update sync status")
	}

	// FETCHING
	e.setState(result, models.SyncStateFetching)
	rows, err := e.fetcher.FetchRows(ctx, symbol, plan.Start, plan.End)
	if err != nil {
		return e.fail(ctx, result, fmt.Errorf("fetch rows: %w", err))
	}
	series, err := e.fetcher.FetchSeries(ctx, symbol, plan.Start, plan.End)
	if err != nil {
		return e.fail(ctx, result, fmt.Errorf("fetch series: %w", err))
	}
	result.Fetched = len(rows) + len(series.Timestamps)

	// NORMALIZING: shape errors are structural, they fail the symbol without
	// retry. Rows outside the planned range are filtered here because the
	// source's own date filter is advisory only.
	e.setState(result, models.SyncStateNormalizing)
	rowRecords, dropped := e.norm.Rows(symbol, rows)
	seriesRecords, err := e.norm.Series(series)
	if err != nil {
		return e.fail(ctx, result, fmt.Errorf("normalize series: %w", err))
	}

	seriesByKey := make(map[models.RecordKey]*models.DailyRecord, len(seriesRecords))
	combined := make([]*models.DailyRecord, 0, len(seriesRecords)+len(rowRecords))
	for _, rec := range seriesRecords {
		if !plan.Contains(rec.TradingDate) {
			continue
		}
		seriesByKey[rec.Key()] = rec
		combined = append(combined, rec)
	}
	for _, rec := range rowRecords {
		if !plan.Contains(rec.TradingDate) {
			continue
		}
		combined = append(combined, rec)
	}

	// VALIDATING: duplicates resolved last-wins, then chart bars fill any
	// OHLCV fields the statistics endpoint left absent for the same date.
	e.setState(result, models.SyncStateValidating)
	deduped, validation := e.validator.Validate(symbol, combined, *plan)
	for _, rec := range deduped {
		if s, ok := seriesByKey[rec.Key()]; ok && s != rec {
			rec.Merge(s)
		}
	}
	if dropped > 0 {
		validation.Errors = append(validation.Errors, fmt.Sprintf("%d malformed records dropped", dropped))
	}
	result.Validation = validation
	result.Duplicates = validation.DuplicateCount
	result.Missing = len(validation.MissingDates)

	// PERSISTING: each record write is an independent idempotent upsert, so
	// a mid-batch failure cannot corrupt already-committed dates and a rerun
	// heals the remainder. The whole batch is retried on transient errors.
	if e.cfg.DryRun {
		e.logger.WithFields(logrus.Fields{
			"symbol":  symbol,
			"records": len(deduped),
		}).Info("Dry run, skipping persistence")
		e.setState(result, models.SyncStateDone)
		e.events.PublishComplete(symbol, result)
		return result
	}

	e.setState(result, models.SyncStatePersisting)
	saved, err := e.persistWithRetry(ctx, deduped)
	if err != nil {
		return e.fail(ctx, result, fmt.Errorf("persist records: %w", err))
	}
	result.Saved = saved

	if err := e.store.UpdateSyncStatus(ctx, symbol, models.SyncStateDone, saved, ""); err != nil {
		log.WithError(err).Warn("Failed to update sync status")
	}

	e.setState(result, models.SyncStateDone)
	e.events.PublishComplete(symbol, result)

	log.WithFields(logrus.Fields{
		"fetched":    result.Fetched,
		"saved":      result.Saved,
		"duplicates": result.Duplicates,
		"missing":    result.Missing,
	}).Info("Symbol sync completed")

	return result
}

// persistWithRetry retries the batch upsert on transient persistence
// failures. Context cancellation aborts immediately. MaxRetries counts
// attempts and is clamped to at least one so the upsert always runs.
func (e *Engine) persistWithRetry(ctx context.Context, records []*models.DailyRecord) (int, error) {
	attempts := e.cfg.MaxRetries
	if attempts < 1 {
		attempts = 1
	}

	var lastErr error
	for attempt := 0; attempt < attempts; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return 0, ctx.Err()
			case <-time.After(e.cfg.RetryDelay * time.Duration(1<<(attempt-1))):
			}
		}

		saved, err := e.store.UpsertDailyRecords(ctx, records)
		if err == nil {
			return saved, nil
		}
		lastErr = err
		if ctx.Err() != nil {
			return 0, err
		}
		e.logger.WithError(err).WithField("attempt", attempt+1).Warn("Persistence failed, retrying")
	}
	return 0, lastErr
}

func (e *Engine) fail(ctx context.Context, result *models.SymbolResult, err error) *models.SymbolResult {
	reason := err.Error()
	if errors.Is(err, normalize.ErrArrayMismatch) {
		reason = fmt.Sprintf("structural: %s", reason)
	}

	e.logger.WithError(err).WithFields(logrus.Fields{
		"symbol": result.Symbol,
		"state":  result.State,
	}).Error("Symbol sync failed")

	if serr := e.store.UpdateSyncStatus(ctx, result.Symbol, models.SyncStateFailed, result.Saved, reason); serr != nil {
		e.logger.WithError(serr).WithField("symbol", result.Symbol).Warn("Failed to update sync status")
	}
	e.events.PublishError(result.Symbol, reason)

	result.State = models.SyncStateFailed
	result.Error = reason
	return result
}
