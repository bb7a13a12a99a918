// Package dedup decides whether an observed lead is new, an update to a
// stored one, or a duplicate to discard. Matching is exact on identity key
// only — no fuzzy or cross-source merging. Two true duplicates with
// differently derived keys stay separate; that false negative is accepted
// over the risk of a false-positive merge.
package dedup

import (
	"context"

	"github.com/rotisserie/eris"

	"github.com/rayofsundays-boop/virginia-contracts-lead-generation-sub003/internal/model"
)

// Kind is the resolution outcome.
type Kind int

const (
	// New means the identity key has never been stored.
	New Kind = iota
	// Update means the key exists and a mutable field differs.
	Update
	// Duplicate means the key exists and nothing materially differs;
	// no write is performed.
	Duplicate
)

func (k Kind) String() string {
	switch k {
	case New:
		return "new"
	case Update:
		return "update"
	default:
		return "duplicate"
	}
}

// Result carries the resolution and, for Update/Duplicate, the stored lead.
type Result struct {
	Kind     Kind
	Existing *model.Lead
}

// Lookup is the single storage operation resolution needs.
type Lookup interface {
	GetLead(ctx context.Context, identityKey string) (*model.Lead, error)
}

// Deduplicator resolves observed leads against storage.
type Deduplicator struct {
	lookup Lookup
}

// NewDeduplicator creates a Deduplicator over the given lookup.
func NewDeduplicator(lookup Lookup) *Deduplicator {
	return &Deduplicator{lookup: lookup}
}

// Resolve classifies lead by its identity key.
func (d *Deduplicator) Resolve(ctx context.Context, lead model.Lead) (Result, error) {
	existing, err := d.lookup.GetLead(ctx, lead.IdentityKey)
	if err != nil {
		return Result{}, eris.Wrapf(err, "dedup: lookup %s", lead.IdentityKey)
	}
	if existing == nil {
		return Result{Kind: New}, nil
	}
	if existing.Touched(lead) {
		return Result{Kind: Update, Existing: existing}, nil
	}
	return Result{Kind: Duplicate, Existing: existing}, nil
}
