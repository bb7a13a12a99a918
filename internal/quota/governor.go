// Package quota enforces each source's externally imposed call budget. The
// daily counter is persisted and incremented before the guarded call runs, so
// a crash mid-call undercounts the remaining budget rather than overrunning
// the external limit.
package quota

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rotisserie/eris"
	"golang.org/x/time/rate"

	"github.com/rayofsundays-boop/virginia-contracts-lead-generation-sub003/internal/config"
	"github.com/rayofsundays-boop/virginia-contracts-lead-generation-sub003/internal/model"
)

// Usage is the persistence surface the governor needs: a durable per-source,
// per-day call counter with an atomic add.
type Usage interface {
	GetQuotaUsage(ctx context.Context, source model.SourceKind, day string) (int, error)
	AddQuotaUsage(ctx context.Context, source model.SourceKind, day string, n int) (int, error)
}

// ExhaustedError denies a reservation that would exceed today's budget.
// Expected steady-state condition, not a failure: the caller pauses that
// source until ResetAt and keeps the rest of the run going.
type ExhaustedError struct {
	Source  model.SourceKind
	ResetAt time.Time
}

func (e *ExhaustedError) Error() string {
	return fmt.Sprintf("quota exhausted for %s until %s", e.Source, e.ResetAt.Format(time.RFC3339))
}

// IsExhausted reports whether err chains to an ExhaustedError.
func IsExhausted(err error) bool {
	var qe *ExhaustedError
	return errors.As(err, &qe)
}

type counter struct {
	day   string
	calls int
}

// Governor tracks per-source call budgets and paces callers under the
// sources' per-second limits. Safe for concurrent use; the counter update is
// the single serialization point shared by all workers.
type Governor struct {
	usage  Usage
	zone   *time.Location
	limits map[model.SourceKind]int
	pacers map[model.SourceKind]*rate.Limiter

	mu    sync.Mutex
	state map[model.SourceKind]*counter

	now func() time.Time
}

// New builds a Governor from config, loading persisted counters lazily on
// first reserve so a restart mid-day resumes the budget already spent.
func New(usage Usage, cfg config.QuotaConfig) (*Governor, error) {
	zone, err := time.LoadLocation(cfg.ResetZone)
	if err != nil {
		return nil, eris.Wrapf(err, "quota: load reset zone %q", cfg.ResetZone)
	}
	return &Governor{
		usage: usage,
		zone:  zone,
		limits: map[model.SourceKind]int{
			model.SourceCatalog: cfg.CatalogDailyLimit,
			model.SourcePlaces:  cfg.PlacesDailyLimit,
		},
		pacers: map[model.SourceKind]*rate.Limiter{
			model.SourceCatalog: rate.NewLimiter(rate.Limit(cfg.CatalogPerSecond), 1),
			model.SourcePlaces:  rate.NewLimiter(rate.Limit(cfg.PlacesPerSecond), 1),
		},
		state: make(map[model.SourceKind]*counter),
		now:   time.Now,
	}, nil
}

// Reserve claims n calls of source's daily budget, persisting the increment
// before returning. Returns ExhaustedError when the budget cannot cover n;
// nothing is consumed in that case. On success it also blocks until the
// per-second pacer admits the call.
func (g *Governor) Reserve(ctx context.Context, source model.SourceKind, n int) error {
	if n <= 0 {
		return eris.Errorf("quota: reserve n must be positive, got %d", n)
	}
	limit, ok := g.limits[source]
	if !ok {
		return eris.Errorf("quota: unknown source %q", source)
	}

	if err := g.claim(ctx, source, n, limit); err != nil {
		return err
	}

	// Pace outside the counter lock so a waiting worker does not block
	// reservations for the other source. Each Reserve guards one upstream
	// request, so pacing always takes a single permit.
	if pacer := g.pacers[source]; pacer != nil {
		if err := pacer.Wait(ctx); err != nil {
			return eris.Wrapf(err, "quota: pacing wait for %s", source)
		}
	}
	return nil
}

func (g *Governor) claim(ctx context.Context, source model.SourceKind, n, limit int) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	day := g.dayOf(g.now())
	c, err := g.counterFor(ctx, source, day)
	if err != nil {
		return err
	}

	if c.calls+n > limit {
		return &ExhaustedError{Source: source, ResetAt: g.resetAt(g.now())}
	}

	total, err := g.usage.AddQuotaUsage(ctx, source, day, n)
	if err != nil {
		return eris.Wrapf(err, "quota: persist usage for %s", source)
	}
	c.calls = total
	return nil
}

// counterFor returns the cached counter for source, loading it from storage
// when first touched or when the day rolled over. Caller holds g.mu.
func (g *Governor) counterFor(ctx context.Context, source model.SourceKind, day string) (*counter, error) {
	c := g.state[source]
	if c == nil || c.day != day {
		calls, err := g.usage.GetQuotaUsage(ctx, source, day)
		if err != nil {
			return nil, eris.Wrapf(err, "quota: load usage for %s", source)
		}
		c = &counter{day: day, calls: calls}
		g.state[source] = c
	}
	return c, nil
}

// State returns the current budget snapshot for a source.
func (g *Governor) State(ctx context.Context, source model.SourceKind) (model.QuotaState, error) {
	limit, ok := g.limits[source]
	if !ok {
		return model.QuotaState{}, eris.Errorf("quota: unknown source %q", source)
	}

	g.mu.Lock()
	defer g.mu.Unlock()

	now := g.now()
	day := g.dayOf(now)
	c, err := g.counterFor(ctx, source, day)
	if err != nil {
		return model.QuotaState{}, err
	}

	return model.QuotaState{
		Source:     source,
		Day:        day,
		CallsMade:  c.calls,
		DailyLimit: limit,
		ResetAt:    g.resetAt(now),
	}, nil
}

func (g *Governor) dayOf(t time.Time) string {
	return t.In(g.zone).Format("2006-01-02")
}

// resetAt is the next midnight in the configured zone.
func (g *Governor) resetAt(t time.Time) time.Time {
	local := t.In(g.zone)
	return time.Date(local.Year(), local.Month(), local.Day(), 0, 0, 0, 0, g.zone).AddDate(0, 0, 1)
}
