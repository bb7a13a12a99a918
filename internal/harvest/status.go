package harvest

import (
	"context"

	"github.com/rayofsundays-boop/virginia-contracts-lead-generation-sub003/internal/model"
	"github.com/rayofsundays-boop/virginia-contracts-lead-generation-sub003/internal/quota"
	"github.com/rayofsundays-boop/virginia-contracts-lead-generation-sub003/internal/store"
)

// Status is a point-in-time picture of the pipeline: plan progress, stored
// lead counts, and per-source quota.
type Status struct {
	Units      map[model.UnitStatus]int `json:"units"`
	ByCategory map[model.Category]int   `json:"leads_by_category"`
	ByTier     map[int]int              `json:"leads_by_tier"`
	Quota      []model.QuotaState       `json:"quota"`
}

// Snapshot reads the current status from storage and the governor.
func Snapshot(ctx context.Context, st store.Store, gov *quota.Governor) (*Status, error) {
	entries, err := st.ListProgress(ctx, "")
	if err != nil {
		return nil, err
	}
	units := make(map[model.UnitStatus]int)
	for _, e := range entries {
		units[e.Status]++
	}
	byCategory, byTier, err := st.LeadCounts(ctx)
	if err != nil {
		return nil, err
	}
	states := make([]model.QuotaState, 0, len(model.SourceKinds))
	for _, kind := range model.SourceKinds {
		qs, err := gov.State(ctx, kind)
		if err != nil {
			return nil, err
		}
		states = append(states, qs)
	}
	return &Status{
		Units:      units,
		ByCategory: byCategory,
		ByTier:     byTier,
		Quota:      states,
	}, nil
}
