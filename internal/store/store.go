package store

import (
	"context"

	"github.com/rotisserie/eris"

	"github.com/rayofsundays-boop/virginia-contracts-lead-generation-sub003/internal/model"
)

// UpsertOutcome reports whether an upsert created or refreshed a lead row.
type UpsertOutcome string

const (
	Inserted UpsertOutcome = "inserted"
	Updated  UpsertOutcome = "updated"
)

// Store defines the persistence interface for the harvest pipeline: lead
// upsert/lookup, the per-plan-unit progress ledger, and the per-source quota
// counters. Leads are never deleted; exactly one row exists per identity key.
type Store interface {
	// Leads
	UpsertLead(ctx context.Context, lead model.Lead) (UpsertOutcome, error)
	GetLead(ctx context.Context, identityKey string) (*model.Lead, error)
	LeadCounts(ctx context.Context) (map[model.Category]int, map[int]int, error)

	// Progress ledger
	InitProgress(ctx context.Context, units []model.PlanUnit) error
	GetProgress(ctx context.Context, unit model.PlanUnit) (*model.ProgressEntry, error)
	SetProgress(ctx context.Context, unit model.PlanUnit, status model.UnitStatus, lastError string, counts map[model.Category]int) error
	ListProgress(ctx context.Context, status model.UnitStatus) ([]model.ProgressEntry, error)
	ResetFailed(ctx context.Context) (int, error)

	// Quota counters. AddQuotaUsage atomically adds n calls for the given
	// source/day and returns the new total.
	GetQuotaUsage(ctx context.Context, source model.SourceKind, day string) (int, error)
	AddQuotaUsage(ctx context.Context, source model.SourceKind, day string, n int) (int, error)

	// Lifecycle
	Migrate(ctx context.Context) error
	Close() error
}

// Open constructs a Store for the configured driver.
func Open(ctx context.Context, driver, databaseURL string) (Store, error) {
	switch driver {
	case "sqlite", "":
		return NewSQLite(databaseURL)
	case "postgres":
		return NewPostgres(ctx, databaseURL)
	default:
		return nil, eris.Errorf("store: unknown driver %q (valid: sqlite, postgres)", driver)
	}
}
