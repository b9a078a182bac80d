package planner

import (
	"testing"
	"time"
)

var exchangeTZ = time.FixedZone("exchange", 7*3600)

func date(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func TestPlan_IncrementalAfterCutoff(t *testing.T) {
	p := New(date(2010, 1, 1), 17, exchangeTZ)

	// Last synced 2025-10-01, clock 2025-10-02 18:00 local: the 2025-10-02
	// bar is final, so the plan covers exactly (2025-10-02, 2025-10-02).
	last := date(2025, 10, 1)
	now := time.Date(2025, 10, 2, 18, 0, 0, 0, exchangeTZ)

	plan := p.Plan(&last, now)
	if plan == nil {
		t.Fatalf("expected a plan, got nil")
	}
	if !plan.Start.Equal(date(2025, 10, 2)) || !plan.End.Equal(date(2025, 10, 2)) {
		t.Fatalf("plan = [%s, %s], want [2025-10-02, 2025-10-02]", plan.Start, plan.End)
	}
	if plan.Days() != 1 {
		t.Fatalf("Days() = %d, want 1", plan.Days())
	}
}

func TestPlan_CutoffHourItselfIsFinal(t *testing.T) {
	p := New(date(2010, 1, 1), 17, exchangeTZ)

	// At exactly 17:00 local the market has closed: the day's bar counts as
	// final, same as any later hour.
	last := date(2025, 10, 1)
	now := time.Date(2025, 10, 2, 17, 0, 0, 0, exchangeTZ)

	plan := p.Plan(&last, now)
	if plan == nil {
		t.Fatalf("expected a plan at the cutoff hour, got nil")
	}
	if !plan.End.Equal(date(2025, 10, 2)) {
		t.Fatalf("plan end = %s, want 2025-10-02", plan.End)
	}

	// One second before, the bar is still partial.
	now = time.Date(2025, 10, 2, 16, 59, 59, 0, exchangeTZ)
	if plan := p.Plan(&last, now); plan != nil {
		t.Fatalf("expected nil plan just before the cutoff, got [%s, %s]", plan.Start, plan.End)
	}
}

func TestPlan_BeforeCutoffEndsYesterday(t *testing.T) {
	p := New(date(2010, 1, 1), 17, exchangeTZ)

	// Before the local close the current day's bar may still be partial.
	last := date(2025, 9, 29)
	now := time.Date(2025, 10, 2, 9, 30, 0, 0, exchangeTZ)

	plan := p.Plan(&last, now)
	if plan == nil {
		t.Fatalf("expected a plan, got nil")
	}
	if !plan.Start.Equal(date(2025, 9, 30)) || !plan.End.Equal(date(2025, 10, 1)) {
		t.Fatalf("plan = [%s, %s], want [2025-09-30, 2025-10-01]", plan.Start, plan.End)
	}
}

func TestPlan_AlreadyCurrentIsNil(t *testing.T) {
	p := New(date(2010, 1, 1), 17, exchangeTZ)

	last := date(2025, 10, 2)
	now := time.Date(2025, 10, 2, 18, 0, 0, 0, exchangeTZ)

	if plan := p.Plan(&last, now); plan != nil {
		t.Fatalf("expected nil plan for current symbol, got [%s, %s]", plan.Start, plan.End)
	}

	// Before cutoff with yesterday synced: nothing final to fetch either.
	last = date(2025, 10, 1)
	now = time.Date(2025, 10, 2, 8, 0, 0, 0, exchangeTZ)
	if plan := p.Plan(&last, now); plan != nil {
		t.Fatalf("expected nil plan before cutoff, got [%s, %s]", plan.Start, plan.End)
	}
}

func TestPlan_FirstSyncStartsAtEpoch(t *testing.T) {
	epoch := date(2010, 1, 1)
	p := New(epoch, 17, exchangeTZ)

	now := time.Date(2025, 10, 2, 18, 0, 0, 0, exchangeTZ)
	plan := p.Plan(nil, now)
	if plan == nil {
		t.Fatalf("expected a plan for first sync, got nil")
	}
	if !plan.Start.Equal(epoch) {
		t.Fatalf("first sync start = %s, want epoch %s", plan.Start, epoch)
	}
	if !plan.End.Equal(date(2025, 10, 2)) {
		t.Fatalf("first sync end = %s, want 2025-10-02", plan.End)
	}
}

func TestPlan_CutoffJudgedInExchangeTime(t *testing.T) {
	p := New(date(2010, 1, 1), 17, exchangeTZ)

	// 11:00 UTC is 18:00 in the exchange zone: past the cutoff even though
	// UTC is still before it.
	last := date(2025, 10, 1)
	now := time.Date(2025, 10, 2, 11, 0, 0, 0, time.UTC)

	plan := p.Plan(&last, now)
	if plan == nil {
		t.Fatalf("expected a plan, got nil")
	}
	if !plan.End.Equal(date(2025, 10, 2)) {
		t.Fatalf("plan end = %s, want 2025-10-02", plan.End)
	}
}

func TestDateRange_Contains(t *testing.T) {
	r := DateRange{Start: date(2025, 10, 1), End: date(2025, 10, 3)}

	if !r.Contains(time.Date(2025, 10, 1, 15, 0, 0, 0, time.UTC)) {
		t.Fatalf("range should contain its start date regardless of clock time")
	}
	if !r.Contains(date(2025, 10, 3)) {
		t.Fatalf("range should contain its end date")
	}
	if r.Contains(date(2025, 9, 30)) || r.Contains(date(2025, 10, 4)) {
		t.Fatalf("range should not contain dates outside [start, end]")
	}
}
