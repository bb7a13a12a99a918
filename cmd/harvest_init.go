package main

import (
	"context"

	"github.com/rotisserie/eris"

	"github.com/rayofsundays-boop/virginia-contracts-lead-generation-sub003/internal/classify"
	"github.com/rayofsundays-boop/virginia-contracts-lead-generation-sub003/internal/dedup"
	"github.com/rayofsundays-boop/virginia-contracts-lead-generation-sub003/internal/harvest"
	"github.com/rayofsundays-boop/virginia-contracts-lead-generation-sub003/internal/normalize"
	"github.com/rayofsundays-boop/virginia-contracts-lead-generation-sub003/internal/plan"
	"github.com/rayofsundays-boop/virginia-contracts-lead-generation-sub003/internal/quota"
	"github.com/rayofsundays-boop/virginia-contracts-lead-generation-sub003/internal/source"
	"github.com/rayofsundays-boop/virginia-contracts-lead-generation-sub003/internal/store"
	"github.com/rayofsundays-boop/virginia-contracts-lead-generation-sub003/pkg/places"
	"github.com/rayofsundays-boop/virginia-contracts-lead-generation-sub003/pkg/sam"
)

// harvestEnv holds the store, governor, and orchestrator shared by the
// harvest/status/serve commands.
type harvestEnv struct {
	Store        store.Store
	Governor     *quota.Governor
	Plan         *plan.Plan
	Orchestrator *harvest.Orchestrator
}

// Close releases resources held by the environment.
func (he *harvestEnv) Close() {
	if he.Store != nil {
		_ = he.Store.Close()
	}
}

func initStore(ctx context.Context) (store.Store, error) {
	st, err := store.Open(ctx, cfg.Store.Driver, cfg.Store.DatabaseURL)
	if err != nil {
		return nil, eris.Wrap(err, "open store")
	}
	return st, nil
}

// initHarvest sets up the store, API clients, quota governor, and
// orchestrator. Callers should defer env.Close().
func initHarvest(ctx context.Context) (*harvestEnv, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	st, err := initStore(ctx)
	if err != nil {
		return nil, err
	}

	if err := st.Migrate(ctx); err != nil {
		_ = st.Close()
		return nil, eris.Wrap(err, "migrate store")
	}

	governor, err := quota.New(st, cfg.Quota)
	if err != nil {
		_ = st.Close()
		return nil, err
	}

	p, err := plan.Load()
	if err != nil {
		_ = st.Close()
		return nil, err
	}

	samClient := sam.NewClient(cfg.SAM.Key, sam.WithBaseURL(cfg.SAM.BaseURL))
	placesClient := places.NewClient(cfg.Places.Key, places.WithBaseURL(cfg.Places.BaseURL))

	adapters := []source.Adapter{
		source.NewCatalogAdapter(samClient, cfg.SAM),
		source.NewPlacesAdapter(placesClient, cfg.Places, governor),
	}

	orch := harvest.NewOrchestrator(
		p,
		harvest.NewLedger(st),
		harvest.NewPersister(st, dedup.NewDeduplicator(st)),
		governor,
		adapters,
		normalize.New(),
		classify.New(cfg.Classify),
		cfg.Harvest,
	)

	return &harvestEnv{
		Store:        st,
		Governor:     governor,
		Plan:         p,
		Orchestrator: orch,
	}, nil
}
