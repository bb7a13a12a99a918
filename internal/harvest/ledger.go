package harvest

import (
	"context"

	"github.com/rotisserie/eris"

	"github.com/rayofsundays-boop/virginia-contracts-lead-generation-sub003/internal/model"
	"github.com/rayofsundays-boop/virginia-contracts-lead-generation-sub003/internal/resilience"
	"github.com/rayofsundays-boop/virginia-contracts-lead-generation-sub003/internal/store"
)

// Ledger is the durable progress record for plan units, layered over the
// store with state-machine enforcement: pending -> in_progress -> done|failed.
// An in_progress unit found at startup is interrupted work and may be claimed
// again; failed units move back to pending only through an operator reset.
type Ledger struct {
	store store.Store
}

// NewLedger creates a Ledger over the given store.
func NewLedger(st store.Store) *Ledger {
	return &Ledger{store: st}
}

// Init registers every plan unit as pending, leaving existing entries alone
// so a resumed run keeps its history.
func (l *Ledger) Init(ctx context.Context, units []model.PlanUnit) error {
	if err := l.store.InitProgress(ctx, units); err != nil {
		return &resilience.StorageError{Op: "progress init", Err: err}
	}
	return nil
}

// Claim moves a unit into in_progress and returns the attempt number this
// claim represents. Valid from pending (fresh work) and from in_progress
// (interrupted work, redone from its first page).
func (l *Ledger) Claim(ctx context.Context, unit model.PlanUnit) (int, error) {
	entry, err := l.store.GetProgress(ctx, unit)
	if err != nil {
		return 0, &resilience.StorageError{Op: "progress read", Err: err}
	}
	if entry == nil {
		return 0, eris.Errorf("ledger: unknown unit %s", unit.Key())
	}
	if entry.Status != model.UnitPending && entry.Status != model.UnitInProgress {
		return 0, eris.Errorf("ledger: cannot claim %s in state %s", unit.Key(), entry.Status)
	}
	if err := l.store.SetProgress(ctx, unit, model.UnitInProgress, "", nil); err != nil {
		return 0, &resilience.StorageError{Op: "progress write", Err: err}
	}
	return entry.Attempts + 1, nil
}

// Done marks a unit complete with its per-category counts. Valid only from
// in_progress.
func (l *Ledger) Done(ctx context.Context, unit model.PlanUnit, counts map[model.Category]int) error {
	return l.transition(ctx, unit, model.UnitDone, "", counts)
}

// Fail marks a unit failed with its terminal error. Valid only from
// in_progress.
func (l *Ledger) Fail(ctx context.Context, unit model.PlanUnit, cause string) error {
	return l.transition(ctx, unit, model.UnitFailed, cause, nil)
}

// Requeue returns an in_progress unit to pending without recording a
// failure: used when the unit's source ran out of quota or the run was
// stopped mid-unit.
func (l *Ledger) Requeue(ctx context.Context, unit model.PlanUnit) error {
	return l.transition(ctx, unit, model.UnitPending, "", nil)
}

func (l *Ledger) transition(ctx context.Context, unit model.PlanUnit, next model.UnitStatus, cause string, counts map[model.Category]int) error {
	entry, err := l.store.GetProgress(ctx, unit)
	if err != nil {
		return &resilience.StorageError{Op: "progress read", Err: err}
	}
	if entry == nil {
		return eris.Errorf("ledger: unknown unit %s", unit.Key())
	}
	if !entry.Status.CanTransition(next) {
		return eris.Errorf("ledger: invalid transition %s -> %s for %s", entry.Status, next, unit.Key())
	}
	if err := l.store.SetProgress(ctx, unit, next, cause, counts); err != nil {
		return &resilience.StorageError{Op: "progress write", Err: err}
	}
	return nil
}

// Statuses returns the current status of every registered unit keyed by
// PlanUnit.Key().
func (l *Ledger) Statuses(ctx context.Context) (map[string]model.UnitStatus, error) {
	entries, err := l.store.ListProgress(ctx, "")
	if err != nil {
		return nil, err
	}
	statuses := make(map[string]model.UnitStatus, len(entries))
	for _, e := range entries {
		statuses[e.Unit.Key()] = e.Status
	}
	return statuses, nil
}

// CountByStatus tallies registered units per status.
func (l *Ledger) CountByStatus(ctx context.Context) (map[model.UnitStatus]int, error) {
	entries, err := l.store.ListProgress(ctx, "")
	if err != nil {
		return nil, err
	}
	counts := make(map[model.UnitStatus]int)
	for _, e := range entries {
		counts[e.Status]++
	}
	return counts, nil
}

// ResetFailed moves every failed unit back to pending. Operator-initiated
// only; the pipeline never does this on its own.
func (l *Ledger) ResetFailed(ctx context.Context) (int, error) {
	return l.store.ResetFailed(ctx)
}
