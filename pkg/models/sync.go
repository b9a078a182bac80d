package models

import "time"

// Sync state machine states for one symbol.
const (
	SyncStatePlanning    = "planning"
	SyncStateFetching    = "fetching"
	SyncStateNormalizing = "normalizing"
	SyncStateValidating  = "validating"
	SyncStatePersisting  = "persisting"
	SyncStateDone        = "done"
	SyncStateFailed      = "failed"
)

// SyncStatus is the persisted synchronization state of one symbol.
type SyncStatus struct {
	Symbol       string    `json:"symbol" db:"symbol"`
	Status       string    `json:"status" db:"status"`
	RecordsSaved int       `json:"records_saved" db:"records_saved"`
	LastError    string    `json:"last_error,omitempty" db:"last_error"`
	UpdatedAt    time.Time `json:"updated_at" db:"updated_at"`
}

// ValidationResult is the per-symbol integrity report for one sync pass.
// It is descriptive only; the validator never drops records apart from
// duplicate resolution.
type ValidationResult struct {
	Symbol           string      `json:"symbol"`
	TotalRecords     int         `json:"total_records"`
	RangeStart       time.Time   `json:"range_start"`
	RangeEnd         time.Time   `json:"range_end"`
	MissingDates     []time.Time `json:"missing_dates,omitempty"`
	UnconfirmedDates []time.Time `json:"unconfirmed_dates,omitempty"`
	DuplicateCount   int         `json:"duplicate_count"`
	Anomalies        []string    `json:"anomalies,omitempty"`
	Errors           []string    `json:"errors,omitempty"`
}

// SymbolResult is the terminal outcome of one symbol's state machine.
type SymbolResult struct {
	Symbol     string            `json:"symbol"`
	State      string            `json:"state"`
	Fetched    int               `json:"fetched"`
	Saved      int               `json:"saved"`
	Duplicates int               `json:"duplicates"`
	Missing    int               `json:"missing"`
	Error      string            `json:"error,omitempty"`
	Validation *ValidationResult `json:"validation,omitempty"`
}

// Failed reports whether the symbol reached the failed terminal state.
func (r *SymbolResult) Failed() bool { return r.State == SyncStateFailed }

// RunStats is the externally observable summary of one sync pass.
type RunStats struct {
	StartedAt        time.Time      `json:"started_at"`
	FinishedAt       time.Time      `json:"finished_at"`
	Duration         time.Duration  `json:"duration"`
	SymbolsProcessed int            `json:"symbols_processed"`
	SymbolsSucceeded int            `json:"symbols_succeeded"`
	SymbolsFailed    int            `json:"symbols_failed"`
	SymbolsSkipped   int            `json:"symbols_skipped"`
	RecordsFetched   int            `json:"records_fetched"`
	RecordsSaved     int            `json:"records_saved"`
	Duplicates       int            `json:"duplicates"`
	MissingDates     int            `json:"missing_dates"`
	DryRun           bool           `json:"dry_run"`
	Failures         []SymbolError  `json:"failures,omitempty"`
	Results          []SymbolResult `json:"-"`
}

// SymbolError names a failed symbol and the reason, enabling targeted re-runs.
type SymbolError struct {
	Symbol string `json:"symbol"`
	Reason string `json:"reason"`
}

// Add folds one symbol result into the run totals.
func (s *RunStats) Add(r *SymbolResult) {
	s.SymbolsProcessed++
	s.RecordsFetched += r.Fetched
	s.RecordsSaved += r.Saved
	s.Duplicates += r.Duplicates
	s.MissingDates += r.Missing
	switch {
	case r.Failed():
		s.SymbolsFailed++
		s.Failures = append(s.Failures, SymbolError{Symbol: r.Symbol, Reason: r.Error})
	case r.Fetched == 0 && r.Saved == 0 && r.State == SyncStateDone && r.Validation == nil:
		s.SymbolsSkipped++
		s.SymbolsSucceeded++
	default:
		s.SymbolsSucceeded++
	}
	s.Results = append(s.Results, *r)
}
