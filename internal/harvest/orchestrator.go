package harvest

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/rayofsundays-boop/virginia-contracts-lead-generation-sub003/internal/classify"
	"github.com/rayofsundays-boop/virginia-contracts-lead-generation-sub003/internal/config"
	"github.com/rayofsundays-boop/virginia-contracts-lead-generation-sub003/internal/dedup"
	"github.com/rayofsundays-boop/virginia-contracts-lead-generation-sub003/internal/model"
	"github.com/rayofsundays-boop/virginia-contracts-lead-generation-sub003/internal/normalize"
	"github.com/rayofsundays-boop/virginia-contracts-lead-generation-sub003/internal/plan"
	"github.com/rayofsundays-boop/virginia-contracts-lead-generation-sub003/internal/quota"
	"github.com/rayofsundays-boop/virginia-contracts-lead-generation-sub003/internal/resilience"
	"github.com/rayofsundays-boop/virginia-contracts-lead-generation-sub003/internal/source"
)

// Orchestrator drives a harvest run: it walks the plan in deterministic
// order, hands each claimable unit to a bounded worker pool, and pushes every
// fetched record through normalize -> classify -> persist. A unit is owned by
// exactly one worker for its whole lifetime; pages within a unit are fetched
// strictly in order.
type Orchestrator struct {
	plan       *plan.Plan
	ledger     *Ledger
	persister  *Persister
	governor   *quota.Governor
	adapters   map[model.SourceKind]source.Adapter
	normalizer *normalize.Normalizer
	classifier *classify.Classifier
	cfg        config.HarvestConfig
	log        *zap.Logger
}

// NewOrchestrator wires a run. Every source kind present in the plan must
// have a matching adapter.
func NewOrchestrator(
	p *plan.Plan,
	ledger *Ledger,
	persister *Persister,
	governor *quota.Governor,
	adapters []source.Adapter,
	normalizer *normalize.Normalizer,
	classifier *classify.Classifier,
	cfg config.HarvestConfig,
) *Orchestrator {
	byKind := make(map[model.SourceKind]source.Adapter, len(adapters))
	for _, a := range adapters {
		byKind[a.Kind()] = a
	}
	return &Orchestrator{
		plan:       p,
		ledger:     ledger,
		persister:  persister,
		governor:   governor,
		adapters:   byKind,
		normalizer: normalizer,
		classifier: classifier,
		cfg:        cfg,
		log:        zap.L().With(zap.String("component", "orchestrator")),
	}
}

// runState is the mutable, mutex-guarded part of one run: the summary
// counters plus the per-source pause flags raised on quota exhaustion.
type runState struct {
	mu          sync.Mutex
	summary     *model.RunSummary
	paused      map[model.SourceKind]bool
	interrupted bool
}

func (s *runState) pause(kind model.SourceKind) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.paused[kind] = true
}

func (s *runState) isPaused(kind model.SourceKind) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.paused[kind]
}

func (s *runState) anyPaused() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.paused) > 0
}

func (s *runState) markInterrupted() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.interrupted = true
}

func (s *runState) wasInterrupted() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.interrupted
}

func (s *runState) addMalformed() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.summary.Malformed++
}

func (s *runState) addRejected() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.summary.Rejected++
}

func (s *runState) record(kind dedup.Kind, cat model.Category, tier int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	switch kind {
	case dedup.New:
		s.summary.New++
	case dedup.Update:
		s.summary.Updated++
	case dedup.Duplicate:
		s.summary.Duplicates++
	}
	s.summary.ByCategory[cat]++
	s.summary.ByTier[tier]++
}

func (s *runState) unitDone() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.summary.UnitsDone++
}

func (s *runState) unitFailed() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.summary.UnitsFailed++
}

// Run executes the plan until it is complete, both sources are out of quota,
// or ctx is cancelled. Unit-level failures are absorbed into the summary;
// the returned error covers only setup problems that prevent any work.
func (o *Orchestrator) Run(ctx context.Context) (*model.RunSummary, error) {
	summary := &model.RunSummary{
		RunID:      uuid.NewString(),
		StartedAt:  time.Now().UTC(),
		ByCategory: make(map[model.Category]int),
		ByTier:     make(map[int]int),
		QuotaLeft:  make(map[model.SourceKind]int),
	}
	log := o.log.With(zap.String("run_id", summary.RunID))

	units := o.plan.Units()
	if err := o.ledger.Init(ctx, units); err != nil {
		return nil, err
	}
	statuses, err := o.ledger.Statuses(ctx)
	if err != nil {
		return nil, err
	}
	var work []model.PlanUnit
	for _, u := range units {
		switch statuses[u.Key()] {
		case model.UnitPending, model.UnitInProgress:
			work = append(work, u)
		}
	}
	log.Info("harvest run starting",
		zap.Int("units_total", len(units)),
		zap.Int("units_claimable", len(work)),
		zap.Int("workers", o.cfg.Workers))

	st := &runState{summary: summary, paused: make(map[model.SourceKind]bool)}
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(o.cfg.Workers)
	for _, unit := range work {
		g.Go(func() error {
			o.processUnit(gctx, unit, st)
			return nil
		})
	}
	_ = g.Wait()

	return summary, o.finalize(context.WithoutCancel(ctx), summary, st)
}

// processUnit works one plan unit start to finish. All failures are recorded
// in the ledger and counters; nothing propagates to the pool.
func (o *Orchestrator) processUnit(ctx context.Context, unit model.PlanUnit, st *runState) {
	log := o.log.With(zap.String("unit", unit.Key()))
	if st.isPaused(unit.Source) || ctx.Err() != nil {
		return
	}
	adapter, ok := o.adapters[unit.Source]
	if !ok {
		log.Error("no adapter for source", zap.String("source", string(unit.Source)))
		st.unitFailed()
		return
	}

	attempt, err := o.ledger.Claim(ctx, unit)
	if err != nil {
		log.Error("claim failed", zap.Error(err))
		st.unitFailed()
		return
	}
	if attempt > o.cfg.MaxAttempts {
		o.failUnit(ctx, unit, st, log, "attempt limit reached")
		return
	}
	log.Info("unit claimed", zap.Int("attempt", attempt))

	info := source.UnitInfo{
		Unit:     unit,
		Locality: o.plan.LocalityName(unit.LocalityID),
		Region:   o.plan.RegionName(unit.RegionID),
	}
	tally := classify.NewTally()
	counts := make(map[model.Category]int)
	token := ""

	for {
		if ctx.Err() != nil {
			o.requeue(ctx, unit, st, log, "run interrupted")
			st.markInterrupted()
			return
		}
		if err := o.governor.Reserve(ctx, unit.Source, 1); err != nil {
			switch {
			case quota.IsExhausted(err):
				st.pause(unit.Source)
				o.requeue(ctx, unit, st, log, "quota exhausted")
			case ctx.Err() != nil:
				o.requeue(ctx, unit, st, log, "run interrupted")
				st.markInterrupted()
			default:
				o.failUnit(ctx, unit, st, log, err.Error())
			}
			return
		}
		page, err := adapter.FetchPage(ctx, info, token)
		if err != nil {
			switch {
			case quota.IsExhausted(err):
				st.pause(unit.Source)
				o.requeue(ctx, unit, st, log, "quota exhausted")
			case ctx.Err() != nil:
				o.requeue(ctx, unit, st, log, "run interrupted")
				st.markInterrupted()
			default:
				o.failUnit(ctx, unit, st, log, err.Error())
			}
			return
		}
		// A fetched page is processed to completion; a stop signal takes
		// effect at the next page boundary, never mid-page.
		pageCtx := context.WithoutCancel(ctx)
		for _, raw := range page.Results {
			lead, err := o.normalizer.Normalize(raw, info)
			if err != nil {
				if resilience.IsMalformed(err) {
					st.addMalformed()
					log.Debug("malformed record skipped", zap.Error(err))
					continue
				}
				o.failUnit(ctx, unit, st, log, err.Error())
				return
			}
			tier, accepted := o.classifier.Classify(lead, tally)
			if !accepted {
				st.addRejected()
				continue
			}
			lead.Tier = tier
			kind, err := o.persister.Persist(pageCtx, lead)
			if err != nil {
				if ctx.Err() != nil {
					o.requeue(ctx, unit, st, log, "run interrupted")
					st.markInterrupted()
					return
				}
				o.failUnit(ctx, unit, st, log, err.Error())
				return
			}
			st.record(kind, lead.Category, tier)
			counts[lead.Category]++
		}
		if page.NextToken == "" {
			break
		}
		token = page.NextToken
	}

	if err := o.ledger.Done(context.WithoutCancel(ctx), unit, counts); err != nil {
		log.Error("marking unit done failed", zap.Error(err))
		st.unitFailed()
		return
	}
	st.unitDone()
	log.Info("unit done", zap.Any("counts", counts))
}

// requeue puts an interrupted or quota-paused unit back to pending so the
// next run redoes it from its first page.
func (o *Orchestrator) requeue(ctx context.Context, unit model.PlanUnit, st *runState, log *zap.Logger, reason string) {
	if err := o.ledger.Requeue(context.WithoutCancel(ctx), unit); err != nil {
		log.Error("requeue failed", zap.Error(err))
		st.unitFailed()
		return
	}
	log.Warn("unit requeued", zap.String("reason", reason))
}

func (o *Orchestrator) failUnit(ctx context.Context, unit model.PlanUnit, st *runState, log *zap.Logger, cause string) {
	if err := o.ledger.Fail(context.WithoutCancel(ctx), unit, cause); err != nil {
		log.Error("marking unit failed failed", zap.Error(err))
	}
	st.unitFailed()
	log.Warn("unit failed", zap.String("cause", cause))
}

func (o *Orchestrator) finalize(ctx context.Context, summary *model.RunSummary, st *runState) error {
	byStatus, err := o.ledger.CountByStatus(ctx)
	if err != nil {
		return err
	}
	summary.UnitsLeft = byStatus[model.UnitPending] + byStatus[model.UnitInProgress]
	for _, kind := range model.SourceKinds {
		state, err := o.governor.State(ctx, kind)
		if err != nil {
			return err
		}
		summary.QuotaLeft[kind] = state.Remaining()
	}

	switch {
	case st.wasInterrupted() || st.anyPaused() || summary.UnitsLeft > 0:
		summary.Outcome = model.RunPartial
	case summary.UnitsFailed > 0 && summary.UnitsDone == 0:
		summary.Outcome = model.RunFailed
	case summary.UnitsFailed > 0:
		summary.Outcome = model.RunPartial
	default:
		summary.Outcome = model.RunSuccess
	}
	summary.FinishedAt = time.Now().UTC()
	o.log.Info("harvest run finished",
		zap.String("run_id", summary.RunID),
		zap.String("outcome", string(summary.Outcome)),
		zap.Int("units_done", summary.UnitsDone),
		zap.Int("units_failed", summary.UnitsFailed),
		zap.Int("units_left", summary.UnitsLeft),
		zap.Int("leads_new", summary.New),
		zap.Int("leads_updated", summary.Updated))
	return nil
}
