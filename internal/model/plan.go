package model

import "fmt"

// PlanUnit is one (region, locality, source) triple of the harvest plan.
// Immutable; the tuple itself is the identity.
type PlanUnit struct {
	RegionID   string     `json:"region_id"`
	LocalityID string     `json:"locality_id"`
	Source     SourceKind `json:"source"`
}

// Key returns the stable string form used for ledger rows and log fields.
func (u PlanUnit) Key() string {
	return fmt.Sprintf("%s/%s/%s", u.RegionID, u.LocalityID, u.Source)
}

// UnitStatus is the ledger state of one plan unit.
type UnitStatus string

const (
	UnitPending    UnitStatus = "pending"
	UnitInProgress UnitStatus = "in_progress"
	UnitDone       UnitStatus = "done"
	UnitFailed     UnitStatus = "failed"
)

// CanTransition reports whether the ledger state machine permits moving from
// s to next. failed -> pending is allowed only through an operator reset,
// which the ledger exposes separately.
func (s UnitStatus) CanTransition(next UnitStatus) bool {
	switch s {
	case UnitPending:
		return next == UnitInProgress
	case UnitInProgress:
		// pending is re-entered when the unit's source ran out of quota
		// before the unit finished; that is a pause, not a failure.
		return next == UnitDone || next == UnitFailed || next == UnitPending
	default:
		return false
	}
}
