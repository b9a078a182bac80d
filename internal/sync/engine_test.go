package sync

import (
	"context"
	"errors"
	"fmt"
	"io"
	stdsync "sync"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/require"

	"github.com/Hoangnph/stock-tracking-data/internal/calendar"
	"github.com/Hoangnph/stock-tracking-data/internal/source"
	"github.com/Hoangnph/stock-tracking-data/pkg/config"
	"github.com/Hoangnph/stock-tracking-data/pkg/models"
)

var exchangeTZ = time.FixedZone("exchange", 7*3600)

// fixedNow is 2025-10-02 18:00 exchange time: past the cutoff, so the
// 2025-10-02 bar is final.
var fixedNow = time.Date(2025, 10, 2, 18, 0, 0, 0, exchangeTZ)

func date(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// fakeStore is an in-memory Store with scriptable failures. Written-count
// semantics mirror the real store: only records new for their key count.
type fakeStore struct {
	mu         stdsync.Mutex
	last       map[string]*time.Time
	records    map[models.RecordKey]*models.DailyRecord
	upsertFail map[string]int
	statuses   map[string][]string
	upserts    int
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		last:       make(map[string]*time.Time),
		records:    make(map[models.RecordKey]*models.DailyRecord),
		upsertFail: make(map[string]int),
		statuses:   make(map[string][]string),
	}
}

func (s *fakeStore) GetLastSyncedDate(ctx context.Context, symbol string) (*time.Time, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.last[symbol], nil
}

func (s *fakeStore) UpsertDailyRecords(ctx context.Context, records []*models.DailyRecord) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.upserts++

	if len(records) > 0 {
		sym := records[0].Symbol
		if s.upsertFail[sym] > 0 {
			s.upsertFail[sym]--
			return 0, errors.New("deadlock found when trying to get lock")
		}
	}

	written := 0
	for _, rec := range records {
		if _, exists := s.records[rec.Key()]; !exists {
			written++
		}
		s.records[rec.Key()] = rec
		if last := s.last[rec.Symbol]; last == nil || rec.TradingDate.After(*last) {
			d := rec.TradingDate
			s.last[rec.Symbol] = &d
		}
	}
	return written, nil
}

func (s *fakeStore) UpdateSyncStatus(ctx context.Context, symbol, status string, saved int, lastError string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.statuses[symbol] = append(s.statuses[symbol], status)
	return nil
}

func (s *fakeStore) record(symbol string, d time.Time) *models.DailyRecord {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.records[models.RecordKey{Symbol: symbol, TradingDate: d.Format("2006-01-02")}]
}

// fakeData serves scripted per-symbol payloads.
type fakeData struct {
	mu        stdsync.Mutex
	rows      map[string][]source.Row
	series    map[string]*source.ChartSeries
	pageFail  map[string]int
	pageCalls map[string]int
}

func newFakeData() *fakeData {
	return &fakeData{
		rows:      make(map[string][]source.Row),
		series:    make(map[string]*source.ChartSeries),
		pageFail:  make(map[string]int),
		pageCalls: make(map[string]int),
	}
}

func (d *fakeData) FetchPage(ctx context.Context, symbol string, start, end time.Time, page, pageSize int) (*source.Batch, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.pageCalls[symbol]++

	if d.pageFail[symbol] > 0 {
		d.pageFail[symbol]--
		return nil, errors.New("status 503")
	}

	rows := d.rows[symbol]
	if page > 1 {
		rows = nil
	}
	return &source.Batch{Rows: rows, Total: len(d.rows[symbol]), Page: page, PageSize: pageSize}, nil
}

func (d *fakeData) FetchSeries(ctx context.Context, symbol string, start, end time.Time) (*source.ChartSeries, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if s, ok := d.series[symbol]; ok {
		return s, nil
	}
	return &source.ChartSeries{Symbol: symbol, Status: "ok"}, nil
}

// fakeEvents records published lifecycle events.
type fakeEvents struct {
	mu        stdsync.Mutex
	progress  []string
	completes int
	errors    []string
}

func (f *fakeEvents) PublishProgress(symbol, state string, saved int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.progress = append(f.progress, state)
}

func (f *fakeEvents) PublishComplete(symbol string, result *models.SymbolResult) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.completes++
}

func (f *fakeEvents) PublishError(symbol, reason string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.errors = append(f.errors, reason)
}

func (f *fakeEvents) PublishSummary(stats *models.RunStats) {}

func testConfig(mode string) *config.SyncConfig {
	return &config.SyncConfig{
		Mode:           mode,
		MaxWorkers:     3,
		PageSize:       100,
		MaxPages:       10,
		MaxRetries:     2,
		RetryDelay:     time.Millisecond,
		RateLimitDelay: time.Millisecond,
		CutoffHour:     17,
		UTCOffsetHours: 7,
		EpochDate:      "2010-01-01",
	}
}

func testEngine(ds source.DataSource, store Store, cfg *config.SyncConfig) *Engine {
	log := logrus.New()
	log.SetOutput(io.Discard)
	e := NewEngine(source.NewFetcher(ds, cfg, log), store, nil, calendar.New(nil), cfg, log)
	e.Now = func() time.Time { return fixedNow }
	return e
}

func infoRow(d time.Time, close float64) source.Row {
	return source.Row{
		"tradingDate": d.Format("02/01/2006"),
		"close":       fmt.Sprintf("%.2f", close),
		"refPrice":    "25.80",
	}
}

func seriesFor(symbol string, days []time.Time, closes []float64) *source.ChartSeries {
	s := &source.ChartSeries{Symbol: symbol, Status: "ok"}
	for i, d := range days {
		s.Timestamps = append(s.Timestamps, d.Add(7*time.Hour).Unix())
		s.Opens = append(s.Opens, closes[i]-0.5)
		s.Highs = append(s.Highs, closes[i]+0.5)
		s.Lows = append(s.Lows, closes[i]-1)
		s.Closes = append(s.Closes, closes[i])
		s.Volumes = append(s.Volumes, 1000000)
	}
	return s
}

func TestSyncSymbol_FirstPassThenIdempotentRerun(t *testing.T) {
	day := date(2025, 10, 2)
	ds := newFakeData()
	ds.rows["ACB"] = []source.Row{infoRow(day, 26.0)}
	ds.series["ACB"] = seriesFor("ACB", []time.Time{day}, []float64{26.0})

	store := newFakeStore()
	last := date(2025, 10, 1)
	store.last["ACB"] = &last

	engine := testEngine(ds, store, testConfig(config.ModeDebug))

	result := engine.SyncSymbol(context.Background(), "ACB")
	require.Equal(t, models.SyncStateDone, result.State)
	require.Equal(t, 1, result.Saved)
	require.NotNil(t, result.Validation)

	// Second pass: the store already holds 2025-10-02, the planner finds
	// nothing missing, and nothing is fetched or written.
	calls := ds.pageCalls["ACB"]
	rerun := engine.SyncSymbol(context.Background(), "ACB")
	require.Equal(t, models.SyncStateDone, rerun.State)
	require.Zero(t, rerun.Fetched)
	require.Zero(t, rerun.Saved)
	require.Equal(t, calls, ds.pageCalls["ACB"], "current symbol must not hit the source")
}

func TestSyncSymbol_ChartFillsAbsentFields(t *testing.T) {
	day := date(2025, 10, 2)
	ds := newFakeData()
	// The stats endpoint is missing OHLC for the day; the chart endpoint
	// has the bar.
	ds.rows["ACB"] = []source.Row{{
		"tradingDate": day.Format("02/01/2006"),
		"open":        "",
		"close":       "",
		"refPrice":    "25.80",
	}}
	ds.series["ACB"] = seriesFor("ACB", []time.Time{day}, []float64{26.0})

	store := newFakeStore()
	last := date(2025, 10, 1)
	store.last["ACB"] = &last

	engine := testEngine(ds, store, testConfig(config.ModeDebug))
	result := engine.SyncSymbol(context.Background(), "ACB")
	require.Equal(t, models.SyncStateDone, result.State)

	rec := store.record("ACB", day)
	require.NotNil(t, rec)
	require.NotNil(t, rec.ClosePrice, "chart close should fill the absent field")
	require.Equal(t, 26.0, *rec.ClosePrice)
	require.NotNil(t, rec.RefPrice, "stock-info fields must survive the merge")
	require.Equal(t, 25.8, *rec.RefPrice)
}

func TestSyncSymbol_RowsWinOverChartOnConflict(t *testing.T) {
	day := date(2025, 10, 2)
	ds := newFakeData()
	ds.rows["ACB"] = []source.Row{infoRow(day, 26.5)}
	ds.series["ACB"] = seriesFor("ACB", []time.Time{day}, []float64{26.0})

	store := newFakeStore()
	last := date(2025, 10, 1)
	store.last["ACB"] = &last

	engine := testEngine(ds, store, testConfig(config.ModeDebug))
	result := engine.SyncSymbol(context.Background(), "ACB")
	require.Equal(t, models.SyncStateDone, result.State)

	rec := store.record("ACB", day)
	require.NotNil(t, rec)
	require.Equal(t, 26.5, *rec.ClosePrice, "stats close observed later must win")
}

func TestSyncSymbol_OutOfRangeRowsFiltered(t *testing.T) {
	day := date(2025, 10, 2)
	ds := newFakeData()
	ds.rows["ACB"] = []source.Row{
		infoRow(day, 26.0),
		infoRow(date(2025, 9, 15), 24.0), // before the planned range
	}

	store := newFakeStore()
	last := date(2025, 10, 1)
	store.last["ACB"] = &last

	engine := testEngine(ds, store, testConfig(config.ModeDebug))
	result := engine.SyncSymbol(context.Background(), "ACB")
	require.Equal(t, models.SyncStateDone, result.State)
	require.Equal(t, 1, result.Saved)
	require.Nil(t, store.record("ACB", date(2025, 9, 15)))
}

func TestSyncSymbol_DryRunSkipsPersistence(t *testing.T) {
	day := date(2025, 10, 2)
	ds := newFakeData()
	ds.rows["ACB"] = []source.Row{infoRow(day, 26.0)}

	store := newFakeStore()
	last := date(2025, 10, 1)
	store.last["ACB"] = &last

	cfg := testConfig(config.ModeDebug)
	cfg.DryRun = true
	engine := testEngine(ds, store, cfg)

	result := engine.SyncSymbol(context.Background(), "ACB")
	require.Equal(t, models.SyncStateDone, result.State)
	require.NotNil(t, result.Validation, "dry run must still validate")
	require.Zero(t, result.Saved)
	require.Zero(t, store.upserts, "dry run must not touch the store")
}

func TestSyncSymbol_StructuralSeriesErrorFails(t *testing.T) {
	day := date(2025, 10, 2)
	ds := newFakeData()
	ds.rows["ACB"] = []source.Row{infoRow(day, 26.0)}
	ds.series["ACB"] = &source.ChartSeries{
		Symbol:     "ACB",
		Timestamps: []int64{1, 2, 3, 4, 5},
		Opens:      []float64{1, 2, 3, 4, 5},
		Highs:      []float64{1, 2, 3, 4, 5},
		Lows:       []float64{1, 2, 3, 4, 5},
		Closes:     []float64{1, 2, 3, 4},
		Volumes:    []float64{1, 2, 3, 4, 5},
	}

	store := newFakeStore()
	last := date(2025, 10, 1)
	store.last["ACB"] = &last

	engine := testEngine(ds, store, testConfig(config.ModeDebug))
	result := engine.SyncSymbol(context.Background(), "ACB")
	require.Equal(t, models.SyncStateFailed, result.State)
	require.Contains(t, result.Error, "structural:")
	require.Zero(t, store.upserts)
}

func TestSyncSymbol_PersistRetriesTransientFailure(t *testing.T) {
	day := date(2025, 10, 2)
	ds := newFakeData()
	ds.rows["ACB"] = []source.Row{infoRow(day, 26.0)}

	store := newFakeStore()
	last := date(2025, 10, 1)
	store.last["ACB"] = &last
	store.upsertFail["ACB"] = 1

	engine := testEngine(ds, store, testConfig(config.ModeDebug))
	result := engine.SyncSymbol(context.Background(), "ACB")
	require.Equal(t, models.SyncStateDone, result.State)
	require.Equal(t, 1, result.Saved)
	require.Equal(t, 2, store.upserts)
}

func TestSyncSymbol_ZeroRetriesStillPersistsOnce(t *testing.T) {
	day := date(2025, 10, 2)
	ds := newFakeData()
	ds.rows["ACB"] = []source.Row{infoRow(day, 26.0)}

	store := newFakeStore()
	last := date(2025, 10, 1)
	store.last["ACB"] = &last

	cfg := testConfig(config.ModeDebug)
	cfg.MaxRetries = 0
	engine := testEngine(ds, store, cfg)

	result := engine.SyncSymbol(context.Background(), "ACB")
	require.Equal(t, models.SyncStateDone, result.State)
	require.Equal(t, 1, result.Saved)
	require.Equal(t, 1, store.upserts, "misconfigured retries must still persist once")
}

func TestSyncSymbol_PublishesProgressPerState(t *testing.T) {
	day := date(2025, 10, 2)
	ds := newFakeData()
	ds.rows["ACB"] = []source.Row{infoRow(day, 26.0)}

	store := newFakeStore()
	last := date(2025, 10, 1)
	store.last["ACB"] = &last

	engine := testEngine(ds, store, testConfig(config.ModeDebug))
	events := &fakeEvents{}
	engine.events = events

	result := engine.SyncSymbol(context.Background(), "ACB")
	require.Equal(t, models.SyncStateDone, result.State)
	require.Equal(t, []string{
		models.SyncStateFetching,
		models.SyncStateNormalizing,
		models.SyncStateValidating,
		models.SyncStatePersisting,
		models.SyncStateDone,
	}, events.progress)
	require.Equal(t, 1, events.completes)

	// An already-current symbol emits nothing.
	n := len(events.progress)
	engine.SyncSymbol(context.Background(), "ACB")
	require.Len(t, events.progress, n)
}

func TestRun_PartialFailureIsolation(t *testing.T) {
	day := date(2025, 10, 2)
	ds := newFakeData()
	for _, sym := range []string{"ACB", "VCB", "FPT"} {
		ds.rows[sym] = []source.Row{{
			"tradingDate": day.Format("02/01/2006"),
			"close":       "26.00",
		}}
	}
	// VCB fails every fetch attempt including retries.
	ds.pageFail["VCB"] = 100

	store := newFakeStore()
	last := date(2025, 10, 1)
	for _, sym := range []string{"ACB", "VCB", "FPT"} {
		d := last
		store.last[sym] = &d
	}

	engine := testEngine(ds, store, testConfig(config.ModeDebug))
	stats := engine.Run(context.Background(), []string{"ACB", "VCB", "FPT"})

	require.Equal(t, 3, stats.SymbolsProcessed)
	require.Equal(t, 2, stats.SymbolsSucceeded)
	require.Equal(t, 1, stats.SymbolsFailed)
	require.Len(t, stats.Failures, 1)
	require.Equal(t, "VCB", stats.Failures[0].Symbol)

	require.NotNil(t, store.record("ACB", day), "healthy symbols must still persist")
	require.NotNil(t, store.record("FPT", day))
}

func TestRun_WorkerPoolMatchesSequential(t *testing.T) {
	day := date(2025, 10, 2)
	symbols := []string{"ACB", "VCB", "FPT", "HPG", "MWG", "VNM"}

	ds := newFakeData()
	store := newFakeStore()
	for _, sym := range symbols {
		ds.rows[sym] = []source.Row{{
			"tradingDate": day.Format("02/01/2006"),
			"close":       "26.00",
		}}
		d := date(2025, 10, 1)
		store.last[sym] = &d
	}

	engine := testEngine(ds, store, testConfig(config.ModeProduction))
	stats := engine.Run(context.Background(), symbols)

	require.Equal(t, len(symbols), stats.SymbolsProcessed)
	require.Equal(t, len(symbols), stats.SymbolsSucceeded)
	require.Equal(t, len(symbols), stats.RecordsSaved)
	for _, sym := range symbols {
		require.NotNil(t, store.record(sym, day))
	}
}

func TestRun_MaxSymbolsTruncates(t *testing.T) {
	ds := newFakeData()
	store := newFakeStore()
	for _, sym := range []string{"ACB", "VCB", "FPT"} {
		d := date(2025, 10, 2)
		store.last[sym] = &d
	}

	cfg := testConfig(config.ModeDebug)
	cfg.MaxSymbols = 2
	engine := testEngine(ds, store, cfg)

	stats := engine.Run(context.Background(), []string{"ACB", "VCB", "FPT"})
	require.Equal(t, 2, stats.SymbolsProcessed)
}

func TestRun_CurrentSymbolsCountedSkipped(t *testing.T) {
	ds := newFakeData()
	store := newFakeStore()
	d := date(2025, 10, 2)
	store.last["ACB"] = &d

	engine := testEngine(ds, store, testConfig(config.ModeDebug))
	stats := engine.Run(context.Background(), []string{"ACB"})

	require.Equal(t, 1, stats.SymbolsProcessed)
	require.Equal(t, 1, stats.SymbolsSkipped)
	require.Equal(t, 1, stats.SymbolsSucceeded)
	require.Zero(t, stats.SymbolsFailed)
}

func TestRun_CancellationStopsScheduling(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	ds := newFakeData()
	store := newFakeStore()

	engine := testEngine(ds, store, testConfig(config.ModeDebug))
	stats := engine.Run(ctx, []string{"ACB", "VCB", "FPT"})

	require.Zero(t, stats.SymbolsProcessed, "cancelled run must not schedule symbols")
}
