package model

import "time"

// ProgressEntry is the durable ledger row for one plan unit.
type ProgressEntry struct {
	Unit      PlanUnit         `json:"unit"`
	Status    UnitStatus       `json:"status"`
	Attempts  int              `json:"attempts"`
	LastError string           `json:"last_error,omitempty"`
	Counts    map[Category]int `json:"counts_by_category,omitempty"`
	UpdatedAt time.Time        `json:"updated_at"`
}

// RunOutcome classifies how a harvest run ended.
type RunOutcome string

const (
	// RunSuccess means the plan is fully done.
	RunSuccess RunOutcome = "success"
	// RunPartial means the run stopped early (quota or stop signal) and is resumable.
	RunPartial RunOutcome = "partial"
	// RunFailed means no unit completed due to an unrecoverable error.
	RunFailed RunOutcome = "failed"
)

// RunSummary aggregates a whole run for operator reporting. Emitted even when
// the run ends incomplete.
type RunSummary struct {
	RunID       string             `json:"run_id"`
	StartedAt   time.Time          `json:"started_at"`
	FinishedAt  time.Time          `json:"finished_at"`
	Outcome     RunOutcome         `json:"outcome"`
	UnitsDone   int                `json:"units_done"`
	UnitsFailed int                `json:"units_failed"`
	UnitsLeft   int                `json:"units_pending"`
	New         int                `json:"leads_new"`
	Updated     int                `json:"leads_updated"`
	Duplicates  int                `json:"leads_duplicate"`
	Rejected    int                `json:"records_rejected"`
	Malformed   int                `json:"records_malformed"`
	ByCategory  map[Category]int   `json:"by_category"`
	ByTier      map[int]int        `json:"by_tier"`
	QuotaLeft   map[SourceKind]int `json:"quota_remaining"`
}
