package store

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rotisserie/eris"

	"github.com/rayofsundays-boop/virginia-contracts-lead-generation-sub003/internal/db"
	"github.com/rayofsundays-boop/virginia-contracts-lead-generation-sub003/internal/model"
)

// PostgresStore implements Store using pgxpool.
type PostgresStore struct {
	pool    db.Pool
	closeFn func()
}

// NewPostgres creates a PostgresStore with a connection pool.
func NewPostgres(ctx context.Context, connString string) (*PostgresStore, error) {
	pgxCfg, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: parse config")
	}
	pgxCfg.MaxConns = 10
	pgxCfg.MinConns = 2
	pgxCfg.MaxConnLifetime = 30 * time.Minute
	pgxCfg.MaxConnIdleTime = 5 * time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, pgxCfg)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: create pool")
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, eris.Wrap(err, "postgres: ping")
	}
	return &PostgresStore{pool: pool, closeFn: pool.Close}, nil
}

const postgresMigration = `
CREATE TABLE IF NOT EXISTS leads (
	identity_key  TEXT PRIMARY KEY,
	display_name  TEXT NOT NULL,
	locality      TEXT NOT NULL,
	region        TEXT NOT NULL,
	category      TEXT NOT NULL,
	phone         TEXT NOT NULL DEFAULT '',
	address       TEXT NOT NULL DEFAULT '',
	website       TEXT NOT NULL DEFAULT '',
	source        TEXT NOT NULL,
	source_ref    TEXT NOT NULL,
	tier          INTEGER NOT NULL,
	rating        DOUBLE PRECISION NOT NULL DEFAULT 0,
	has_website   BOOLEAN NOT NULL DEFAULT FALSE,
	naics_code    TEXT NOT NULL DEFAULT '',
	notes         TEXT NOT NULL DEFAULT '',
	first_seen_at TIMESTAMPTZ NOT NULL,
	last_seen_at  TIMESTAMPTZ NOT NULL
);

CREATE TABLE IF NOT EXISTS progress (
	region_id   TEXT NOT NULL,
	locality_id TEXT NOT NULL,
	source      TEXT NOT NULL,
	status      TEXT NOT NULL DEFAULT 'pending',
	attempts    INTEGER NOT NULL DEFAULT 0,
	last_error  TEXT NOT NULL DEFAULT '',
	counts      JSONB,
	updated_at  TIMESTAMPTZ NOT NULL DEFAULT now(),
	PRIMARY KEY (region_id, locality_id, source)
);

CREATE TABLE IF NOT EXISTS quota_usage (
	source TEXT NOT NULL,
	day    TEXT NOT NULL,
	calls  INTEGER NOT NULL DEFAULT 0,
	PRIMARY KEY (source, day)
);

CREATE INDEX IF NOT EXISTS idx_leads_category ON leads(category);
CREATE INDEX IF NOT EXISTS idx_leads_tier ON leads(tier);
CREATE INDEX IF NOT EXISTS idx_progress_status ON progress(status);
`

func (s *PostgresStore) Migrate(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, postgresMigration)
	return eris.Wrap(err, "postgres: migrate")
}

func (s *PostgresStore) Close() error {
	if s.closeFn != nil {
		s.closeFn()
	}
	return nil
}

func (s *PostgresStore) UpsertLead(ctx context.Context, lead model.Lead) (UpsertOutcome, error) {
	// Single-statement upsert: atomic per identity key, first_seen_at excluded
	// from the conflict update. xmax = 0 distinguishes a fresh insert.
	var inserted bool
	err := s.pool.QueryRow(ctx,
		`INSERT INTO leads (identity_key, display_name, locality, region, category,
			phone, address, website, source, source_ref, tier, rating, has_website,
			naics_code, notes, first_seen_at, last_seen_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17)
		 ON CONFLICT (identity_key) DO UPDATE SET
			display_name = EXCLUDED.display_name,
			locality = EXCLUDED.locality,
			region = EXCLUDED.region,
			category = EXCLUDED.category,
			phone = EXCLUDED.phone,
			address = EXCLUDED.address,
			website = EXCLUDED.website,
			tier = EXCLUDED.tier,
			rating = EXCLUDED.rating,
			has_website = EXCLUDED.has_website,
			naics_code = EXCLUDED.naics_code,
			notes = EXCLUDED.notes,
			last_seen_at = EXCLUDED.last_seen_at
		 RETURNING (xmax = 0)`,
		lead.IdentityKey, lead.DisplayName, lead.Locality, lead.Region, string(lead.Category),
		lead.Phone, lead.Address, lead.Website, string(lead.Source), lead.SourceRef,
		lead.Tier, lead.Rating, lead.HasWebsite, lead.NAICSCode, lead.Notes,
		lead.FirstSeenAt.UTC(), lead.LastSeenAt.UTC(),
	).Scan(&inserted)
	if err != nil {
		return "", eris.Wrapf(err, "postgres: upsert lead %s", lead.IdentityKey)
	}
	if inserted {
		return Inserted, nil
	}
	return Updated, nil
}

func (s *PostgresStore) GetLead(ctx context.Context, identityKey string) (*model.Lead, error) {
	var l model.Lead
	err := s.pool.QueryRow(ctx,
		`SELECT identity_key, display_name, locality, region, category, phone, address,
			website, source, source_ref, tier, rating, has_website, naics_code, notes,
			first_seen_at, last_seen_at
		 FROM leads WHERE identity_key = $1`,
		identityKey,
	).Scan(&l.IdentityKey, &l.DisplayName, &l.Locality, &l.Region, &l.Category,
		&l.Phone, &l.Address, &l.Website, &l.Source, &l.SourceRef, &l.Tier, &l.Rating,
		&l.HasWebsite, &l.NAICSCode, &l.Notes, &l.FirstSeenAt, &l.LastSeenAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: get lead %s", identityKey)
	}
	return &l, nil
}

func (s *PostgresStore) LeadCounts(ctx context.Context) (map[model.Category]int, map[int]int, error) {
	byCategory := make(map[model.Category]int)
	byTier := make(map[int]int)

	rows, err := s.pool.Query(ctx, `SELECT category, tier, COUNT(*) FROM leads GROUP BY category, tier`)
	if err != nil {
		return nil, nil, eris.Wrap(err, "postgres: lead counts")
	}
	defer rows.Close()

	for rows.Next() {
		var cat string
		var tier, n int
		if err := rows.Scan(&cat, &tier, &n); err != nil {
			return nil, nil, eris.Wrap(err, "postgres: scan lead counts")
		}
		byCategory[model.Category(cat)] += n
		byTier[tier] += n
	}
	return byCategory, byTier, eris.Wrap(rows.Err(), "postgres: lead counts iterate")
}

func (s *PostgresStore) InitProgress(ctx context.Context, units []model.PlanUnit) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return eris.Wrap(err, "postgres: begin init progress")
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	for _, u := range units {
		_, err := tx.Exec(ctx,
			`INSERT INTO progress (region_id, locality_id, source, status)
			 VALUES ($1, $2, $3, 'pending')
			 ON CONFLICT (region_id, locality_id, source) DO NOTHING`,
			u.RegionID, u.LocalityID, string(u.Source),
		)
		if err != nil {
			return eris.Wrapf(err, "postgres: init progress %s", u.Key())
		}
	}
	return eris.Wrap(tx.Commit(ctx), "postgres: commit init progress")
}

func (s *PostgresStore) GetProgress(ctx context.Context, unit model.PlanUnit) (*model.ProgressEntry, error) {
	e := model.ProgressEntry{Unit: unit}
	var countsJSON []byte
	err := s.pool.QueryRow(ctx,
		`SELECT status, attempts, last_error, counts, updated_at FROM progress
		 WHERE region_id = $1 AND locality_id = $2 AND source = $3`,
		unit.RegionID, unit.LocalityID, string(unit.Source),
	).Scan(&e.Status, &e.Attempts, &e.LastError, &countsJSON, &e.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: get progress %s", unit.Key())
	}
	if len(countsJSON) > 0 {
		if err := json.Unmarshal(countsJSON, &e.Counts); err != nil {
			return nil, eris.Wrapf(err, "postgres: unmarshal counts %s", unit.Key())
		}
	}
	return &e, nil
}

func (s *PostgresStore) SetProgress(ctx context.Context, unit model.PlanUnit, status model.UnitStatus, lastError string, counts map[model.Category]int) error {
	var countsJSON []byte
	if counts != nil {
		var err error
		countsJSON, err = json.Marshal(counts)
		if err != nil {
			return eris.Wrap(err, "postgres: marshal counts")
		}
	}

	bump := 0
	if status == model.UnitInProgress {
		bump = 1
	}

	tag, err := s.pool.Exec(ctx,
		`UPDATE progress SET status = $1, attempts = attempts + $2, last_error = $3,
			counts = COALESCE($4, counts), updated_at = now()
		 WHERE region_id = $5 AND locality_id = $6 AND source = $7`,
		string(status), bump, lastError, countsJSON,
		unit.RegionID, unit.LocalityID, string(unit.Source),
	)
	if err != nil {
		return eris.Wrapf(err, "postgres: set progress %s", unit.Key())
	}
	if tag.RowsAffected() == 0 {
		return eris.Errorf("progress not found: %s", unit.Key())
	}
	return nil
}

func (s *PostgresStore) ListProgress(ctx context.Context, status model.UnitStatus) ([]model.ProgressEntry, error) {
	query := `SELECT region_id, locality_id, source, status, attempts, last_error, counts, updated_at
		 FROM progress`
	var args []any
	if status != "" {
		query += ` WHERE status = $1`
		args = append(args, string(status))
	}
	query += ` ORDER BY region_id, locality_id, source`

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list progress")
	}
	defer rows.Close()

	var entries []model.ProgressEntry
	for rows.Next() {
		var e model.ProgressEntry
		var countsJSON []byte
		err := rows.Scan(&e.Unit.RegionID, &e.Unit.LocalityID, &e.Unit.Source,
			&e.Status, &e.Attempts, &e.LastError, &countsJSON, &e.UpdatedAt)
		if err != nil {
			return nil, eris.Wrap(err, "postgres: scan progress")
		}
		if len(countsJSON) > 0 {
			if err := json.Unmarshal(countsJSON, &e.Counts); err != nil {
				return nil, eris.Wrap(err, "postgres: unmarshal counts")
			}
		}
		entries = append(entries, e)
	}
	return entries, eris.Wrap(rows.Err(), "postgres: list progress iterate")
}

func (s *PostgresStore) ResetFailed(ctx context.Context) (int, error) {
	tag, err := s.pool.Exec(ctx,
		`UPDATE progress SET status = 'pending', last_error = '', updated_at = now()
		 WHERE status = 'failed'`,
	)
	if err != nil {
		return 0, eris.Wrap(err, "postgres: reset failed")
	}
	return int(tag.RowsAffected()), nil
}

func (s *PostgresStore) GetQuotaUsage(ctx context.Context, source model.SourceKind, day string) (int, error) {
	var calls int
	err := s.pool.QueryRow(ctx,
		`SELECT calls FROM quota_usage WHERE source = $1 AND day = $2`,
		string(source), day,
	).Scan(&calls)
	if errors.Is(err, pgx.ErrNoRows) {
		return 0, nil
	}
	if err != nil {
		return 0, eris.Wrapf(err, "postgres: get quota usage %s/%s", source, day)
	}
	return calls, nil
}

func (s *PostgresStore) AddQuotaUsage(ctx context.Context, source model.SourceKind, day string, n int) (int, error) {
	var total int
	err := s.pool.QueryRow(ctx,
		`INSERT INTO quota_usage (source, day, calls) VALUES ($1, $2, $3)
		 ON CONFLICT (source, day) DO UPDATE SET calls = quota_usage.calls + EXCLUDED.calls
		 RETURNING calls`,
		string(source), day, n,
	).Scan(&total)
	if err != nil {
		return 0, eris.Wrapf(err, "postgres: add quota usage %s/%s", source, day)
	}
	return total, nil
}
