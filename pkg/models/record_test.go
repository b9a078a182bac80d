package models

import (
	"testing"
	"time"
)

func fp(v float64) *float64 { return &v }
func ip(v int64) *int64     { return &v }

func TestKey_SameDateDifferentClockTimes(t *testing.T) {
	a := &DailyRecord{Symbol: "ACB", TradingDate: time.Date(2025, 10, 1, 0, 0, 0, 0, time.UTC)}
	b := &DailyRecord{Symbol: "ACB", TradingDate: time.Date(2025, 10, 1, 7, 0, 0, 0, time.UTC)}
	c := &DailyRecord{Symbol: "VCB", TradingDate: a.TradingDate}

	if a.Key() != b.Key() {
		t.Fatalf("same symbol and date must share a key: %v vs %v", a.Key(), b.Key())
	}
	if a.Key() == c.Key() {
		t.Fatalf("different symbols must not share a key")
	}
}

func TestMerge_FillsOnlyAbsentFields(t *testing.T) {
	day := time.Date(2025, 10, 1, 0, 0, 0, 0, time.UTC)

	dst := &DailyRecord{
		Symbol:      "ACB",
		TradingDate: day,
		ClosePrice:  fp(26.5),
		RefPrice:    fp(25.8),
	}
	src := &DailyRecord{
		Symbol:      "ACB",
		TradingDate: day,
		OpenPrice:   fp(25.5),
		ClosePrice:  fp(26.0),
		Volume:      ip(1000000),
	}

	dst.Merge(src)

	if dst.OpenPrice == nil || *dst.OpenPrice != 25.5 {
		t.Fatalf("absent open should be filled from src, got %v", dst.OpenPrice)
	}
	if dst.Volume == nil || *dst.Volume != 1000000 {
		t.Fatalf("absent volume should be filled from src, got %v", dst.Volume)
	}
	if *dst.ClosePrice != 26.5 {
		t.Fatalf("set close must not be overwritten, got %v", *dst.ClosePrice)
	}
	if *dst.RefPrice != 25.8 {
		t.Fatalf("fields absent in src must stay untouched, got %v", *dst.RefPrice)
	}
}

func TestMerge_NilSourceFieldsLeaveNil(t *testing.T) {
	day := time.Date(2025, 10, 1, 0, 0, 0, 0, time.UTC)
	dst := &DailyRecord{Symbol: "ACB", TradingDate: day}
	src := &DailyRecord{Symbol: "ACB", TradingDate: day}

	dst.Merge(src)

	if dst.OpenPrice != nil || dst.Volume != nil {
		t.Fatalf("merging two absent fields must stay absent: %+v", dst)
	}
}

func TestRunStatsAdd_Accounting(t *testing.T) {
	var stats RunStats

	stats.Add(&SymbolResult{
		Symbol: "ACB", State: SyncStateDone,
		Fetched: 10, Saved: 8, Duplicates: 1, Missing: 1,
		Validation: &ValidationResult{},
	})
	stats.Add(&SymbolResult{
		Symbol: "VCB", State: SyncStateFailed, Error: "fetch rows: status 503",
	})
	// Already-current symbol: nothing fetched, nothing validated.
	stats.Add(&SymbolResult{Symbol: "FPT", State: SyncStateDone})

	if stats.SymbolsProcessed != 3 {
		t.Fatalf("SymbolsProcessed = %d, want 3", stats.SymbolsProcessed)
	}
	if stats.SymbolsSucceeded != 2 {
		t.Fatalf("SymbolsSucceeded = %d, want 2", stats.SymbolsSucceeded)
	}
	if stats.SymbolsFailed != 1 {
		t.Fatalf("SymbolsFailed = %d, want 1", stats.SymbolsFailed)
	}
	if stats.SymbolsSkipped != 1 {
		t.Fatalf("SymbolsSkipped = %d, want 1", stats.SymbolsSkipped)
	}
	if stats.RecordsFetched != 10 || stats.RecordsSaved != 8 {
		t.Fatalf("record totals = (%d, %d), want (10, 8)", stats.RecordsFetched, stats.RecordsSaved)
	}
	if len(stats.Failures) != 1 || stats.Failures[0].Symbol != "VCB" {
		t.Fatalf("Failures = %+v, want VCB only", stats.Failures)
	}
}
