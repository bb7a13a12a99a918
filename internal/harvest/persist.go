package harvest

import (
	"context"

	"go.uber.org/zap"

	"github.com/rayofsundays-boop/virginia-contracts-lead-generation-sub003/internal/dedup"
	"github.com/rayofsundays-boop/virginia-contracts-lead-generation-sub003/internal/model"
	"github.com/rayofsundays-boop/virginia-contracts-lead-generation-sub003/internal/resilience"
	"github.com/rayofsundays-boop/virginia-contracts-lead-generation-sub003/internal/store"
)

// Persister writes classified leads through the deduplicator. Duplicates
// never touch the store; updates keep the existing first_seen_at.
type Persister struct {
	store   store.Store
	deduper *dedup.Deduplicator
	log     *zap.Logger
}

func NewPersister(st store.Store, deduper *dedup.Deduplicator) *Persister {
	return &Persister{
		store:   st,
		deduper: deduper,
		log:     zap.L().With(zap.String("component", "persister")),
	}
}

// Persist resolves the lead against the store and upserts it when it is new
// or changed. The returned kind reports which path was taken. Store failures
// come back as StorageError so callers can tell them from source faults.
func (p *Persister) Persist(ctx context.Context, lead model.Lead) (dedup.Kind, error) {
	res, err := p.deduper.Resolve(ctx, lead)
	if err != nil {
		return 0, &resilience.StorageError{Op: "resolve", Err: err}
	}
	switch res.Kind {
	case dedup.Duplicate:
		p.log.Debug("duplicate lead skipped", zap.String("identity_key", lead.IdentityKey))
		return dedup.Duplicate, nil
	case dedup.Update:
		lead.FirstSeenAt = res.Existing.FirstSeenAt
	}
	outcome, err := p.store.UpsertLead(ctx, lead)
	if err != nil {
		return 0, &resilience.StorageError{Op: "upsert", Err: err}
	}
	// The store's verdict wins if it disagrees with the pre-read, which can
	// happen when two workers race on the same identity key.
	if outcome == store.Updated {
		return dedup.Update, nil
	}
	return dedup.New, nil
}
