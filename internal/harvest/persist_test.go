package harvest

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rayofsundays-boop/virginia-contracts-lead-generation-sub003/internal/dedup"
	"github.com/rayofsundays-boop/virginia-contracts-lead-generation-sub003/internal/model"
	"github.com/rayofsundays-boop/virginia-contracts-lead-generation-sub003/internal/resilience"
	"github.com/rayofsundays-boop/virginia-contracts-lead-generation-sub003/internal/store"
)

// brokenStore fails selected operations while delegating the rest.
type brokenStore struct {
	store.Store
	failGetLead     bool
	failUpsert      bool
	failSetProgress bool
}

func (b *brokenStore) GetLead(ctx context.Context, identityKey string) (*model.Lead, error) {
	if b.failGetLead {
		return nil, errors.New("disk I/O error")
	}
	return b.Store.GetLead(ctx, identityKey)
}

func (b *brokenStore) UpsertLead(ctx context.Context, lead model.Lead) (store.UpsertOutcome, error) {
	if b.failUpsert {
		return "", errors.New("disk I/O error")
	}
	return b.Store.UpsertLead(ctx, lead)
}

func (b *brokenStore) SetProgress(ctx context.Context, unit model.PlanUnit, status model.UnitStatus, lastError string, counts map[model.Category]int) error {
	if b.failSetProgress {
		return errors.New("disk I/O error")
	}
	return b.Store.SetProgress(ctx, unit, status, lastError, counts)
}

func sampleLead() model.Lead {
	ts := time.Date(2026, 8, 1, 9, 0, 0, 0, time.UTC)
	return model.Lead{
		IdentityKey: "sam:n1",
		DisplayName: "Acme Paving",
		Locality:    "Alpha",
		Region:      "Test Region",
		Category:    model.CategoryContract,
		Source:      model.SourceCatalog,
		SourceRef:   "n1",
		Tier:        1,
		FirstSeenAt: ts,
		LastSeenAt:  ts,
	}
}

func TestPersist_NewThenDuplicateThenUpdate(t *testing.T) {
	st := newTestStore(t)
	p := NewPersister(st, dedup.NewDeduplicator(st))
	ctx := context.Background()

	kind, err := p.Persist(ctx, sampleLead())
	require.NoError(t, err)
	assert.Equal(t, dedup.New, kind)

	// Same observation again: no write.
	resight := sampleLead()
	resight.LastSeenAt = resight.LastSeenAt.Add(24 * time.Hour)
	kind, err = p.Persist(ctx, resight)
	require.NoError(t, err)
	assert.Equal(t, dedup.Duplicate, kind)

	stored, err := st.GetLead(ctx, "sam:n1")
	require.NoError(t, err)
	require.NotNil(t, stored)
	assert.Equal(t, sampleLead().LastSeenAt, stored.LastSeenAt.UTC())

	// Changed field: update that keeps first_seen_at.
	changed := sampleLead()
	changed.Phone = "703-555-0100"
	changed.FirstSeenAt = changed.FirstSeenAt.Add(48 * time.Hour)
	kind, err = p.Persist(ctx, changed)
	require.NoError(t, err)
	assert.Equal(t, dedup.Update, kind)

	stored, err = st.GetLead(ctx, "sam:n1")
	require.NoError(t, err)
	require.NotNil(t, stored)
	assert.Equal(t, "703-555-0100", stored.Phone)
	assert.Equal(t, sampleLead().FirstSeenAt, stored.FirstSeenAt.UTC())
}

// Store failures surface as typed storage errors on both the resolve read
// and the upsert write.
func TestPersist_StoreFailureIsStorageError(t *testing.T) {
	ctx := context.Background()

	reads := &brokenStore{Store: newTestStore(t), failGetLead: true}
	p := NewPersister(reads, dedup.NewDeduplicator(reads))
	_, err := p.Persist(ctx, sampleLead())
	require.Error(t, err)
	assert.True(t, resilience.IsStorage(err))

	writes := &brokenStore{Store: newTestStore(t), failUpsert: true}
	p = NewPersister(writes, dedup.NewDeduplicator(writes))
	_, err = p.Persist(ctx, sampleLead())
	require.Error(t, err)
	assert.True(t, resilience.IsStorage(err))
	assert.Contains(t, err.Error(), "storage upsert")
}
