package calendar

import (
	"testing"
	"time"
)

func TestIsTradingDay_WeekendsAlwaysExcluded(t *testing.T) {
	cal := New(nil)

	sat := time.Date(2025, 10, 4, 0, 0, 0, 0, time.UTC)
	sun := time.Date(2025, 10, 5, 0, 0, 0, 0, time.UTC)
	mon := time.Date(2025, 10, 6, 0, 0, 0, 0, time.UTC)

	if cal.IsTradingDay(sat) {
		t.Fatalf("saturday %s should not be a trading day", sat)
	}
	if cal.IsTradingDay(sun) {
		t.Fatalf("sunday %s should not be a trading day", sun)
	}
	if !cal.IsTradingDay(mon) {
		t.Fatalf("monday %s should be a trading day", mon)
	}
}

func TestIsTradingDay_Holidays(t *testing.T) {
	// 2025-09-02 is National Day, a Tuesday.
	cal := New([]string{"2025-09-02"})

	holiday := time.Date(2025, 9, 2, 0, 0, 0, 0, time.UTC)
	if cal.IsTradingDay(holiday) {
		t.Fatalf("listed holiday %s should not be a trading day", holiday)
	}
	if !cal.IsTradingDay(holiday.AddDate(0, 0, 1)) {
		t.Fatalf("day after holiday should be a trading day")
	}
	if cal.Degraded() {
		t.Fatalf("calendar with a holiday list must not be degraded")
	}
}

func TestDegraded_WithoutHolidayList(t *testing.T) {
	if !New(nil).Degraded() {
		t.Fatalf("calendar without holidays should report degraded")
	}
	if !New([]string{}).Degraded() {
		t.Fatalf("calendar with empty holiday list should report degraded")
	}
}

func TestMidnight(t *testing.T) {
	ts := time.Date(2025, 10, 1, 14, 35, 12, 999, time.FixedZone("exchange", 7*3600))
	got := Midnight(ts)
	want := time.Date(2025, 10, 1, 0, 0, 0, 0, time.UTC)
	if !got.Equal(want) {
		t.Fatalf("Midnight(%s) = %s, want %s", ts, got, want)
	}
}
