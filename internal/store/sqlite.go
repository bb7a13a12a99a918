package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"time"

	"github.com/rotisserie/eris"
	_ "modernc.org/sqlite"

	"github.com/rayofsundays-boop/virginia-contracts-lead-generation-sub003/internal/model"
)

// SQLiteStore implements Store using modernc.org/sqlite.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLite opens a SQLite database at the given path and configures WAL mode.
func NewSQLite(dsn string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: open")
	}
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, eris.Wrapf(err, "sqlite: exec %s", pragma)
		}
	}
	// Upserts race per identity key when workers overlap; a single writer
	// connection serializes them.
	db.SetMaxOpenConns(1)
	return &SQLiteStore{db: db}, nil
}

const sqliteMigration = `
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
	rating        REAL NOT NULL DEFAULT 0,
	has_website   INTEGER NOT NULL DEFAULT 0,
	naics_code    TEXT NOT NULL DEFAULT '',
	notes         TEXT NOT NULL DEFAULT '',
	first_seen_at DATETIME NOT NULL,
	last_seen_at  DATETIME NOT NULL
);

CREATE TABLE IF NOT EXISTS progress (
	region_id   TEXT NOT NULL,
	locality_id TEXT NOT NULL,
	source      TEXT NOT NULL,
	status      TEXT NOT NULL DEFAULT 'pending',
	attempts    INTEGER NOT NULL DEFAULT 0,
	last_error  TEXT NOT NULL DEFAULT '',
	counts      TEXT,
	updated_at  DATETIME NOT NULL DEFAULT (datetime('now')),
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

func (s *SQLiteStore) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, sqliteMigration)
	return eris.Wrap(err, "sqlite: migrate")
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) UpsertLead(ctx context.Context, lead model.Lead) (UpsertOutcome, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return "", eris.Wrap(err, "sqlite: begin upsert")
	}
	defer tx.Rollback() //nolint:errcheck

	var firstSeen time.Time
	err = tx.QueryRowContext(ctx,
		`SELECT first_seen_at FROM leads WHERE identity_key = ?`, lead.IdentityKey,
	).Scan(&firstSeen)

	switch {
	case err == sql.ErrNoRows:
		_, err = tx.ExecContext(ctx,
			`INSERT INTO leads (identity_key, display_name, locality, region, category,
				phone, address, website, source, source_ref, tier, rating, has_website,
				naics_code, notes, first_seen_at, last_seen_at)
			 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			lead.IdentityKey, lead.DisplayName, lead.Locality, lead.Region, string(lead.Category),
			lead.Phone, lead.Address, lead.Website, string(lead.Source), lead.SourceRef,
			lead.Tier, lead.Rating, lead.HasWebsite, lead.NAICSCode, lead.Notes,
			lead.FirstSeenAt.UTC(), lead.LastSeenAt.UTC(),
		)
		if err != nil {
			return "", eris.Wrapf(err, "sqlite: insert lead %s", lead.IdentityKey)
		}
		if err := tx.Commit(); err != nil {
			return "", eris.Wrap(err, "sqlite: commit insert")
		}
		return Inserted, nil

	case err != nil:
		return "", eris.Wrapf(err, "sqlite: lookup lead %s", lead.IdentityKey)

	default:
		// first_seen_at never changes after creation.
		_, err = tx.ExecContext(ctx,
			`UPDATE leads SET display_name = ?, locality = ?, region = ?, category = ?,
				phone = ?, address = ?, website = ?, tier = ?, rating = ?, has_website = ?,
				naics_code = ?, notes = ?, last_seen_at = ?
			 WHERE identity_key = ?`,
			lead.DisplayName, lead.Locality, lead.Region, string(lead.Category),
			lead.Phone, lead.Address, lead.Website, lead.Tier, lead.Rating, lead.HasWebsite,
			lead.NAICSCode, lead.Notes, lead.LastSeenAt.UTC(), lead.IdentityKey,
		)
		if err != nil {
			return "", eris.Wrapf(err, "sqlite: update lead %s", lead.IdentityKey)
		}
		if err := tx.Commit(); err != nil {
			return "", eris.Wrap(err, "sqlite: commit update")
		}
		return Updated, nil
	}
}

func (s *SQLiteStore) GetLead(ctx context.Context, identityKey string) (*model.Lead, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT identity_key, display_name, locality, region, category, phone, address,
			website, source, source_ref, tier, rating, has_website, naics_code, notes,
			first_seen_at, last_seen_at
		 FROM leads WHERE identity_key = ?`,
		identityKey,
	)

	var l model.Lead
	err := row.Scan(&l.IdentityKey, &l.DisplayName, &l.Locality, &l.Region, &l.Category,
		&l.Phone, &l.Address, &l.Website, &l.Source, &l.SourceRef, &l.Tier, &l.Rating,
		&l.HasWebsite, &l.NAICSCode, &l.Notes, &l.FirstSeenAt, &l.LastSeenAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: get lead %s", identityKey)
	}
	return &l, nil
}

func (s *SQLiteStore) LeadCounts(ctx context.Context) (map[model.Category]int, map[int]int, error) {
	byCategory := make(map[model.Category]int)
	byTier := make(map[int]int)

	rows, err := s.db.QueryContext(ctx, `SELECT category, tier, COUNT(*) FROM leads GROUP BY category, tier`)
	if err != nil {
		return nil, nil, eris.Wrap(err, "sqlite: lead counts")
	}
	defer rows.Close()

	for rows.Next() {
		var cat string
		var tier, n int
		if err := rows.Scan(&cat, &tier, &n); err != nil {
			return nil, nil, eris.Wrap(err, "sqlite: scan lead counts")
		}
		byCategory[model.Category(cat)] += n
		byTier[tier] += n
	}
	return byCategory, byTier, eris.Wrap(rows.Err(), "sqlite: lead counts iterate")
}

func (s *SQLiteStore) InitProgress(ctx context.Context, units []model.PlanUnit) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return eris.Wrap(err, "sqlite: begin init progress")
	}
	defer tx.Rollback() //nolint:errcheck

	for _, u := range units {
		_, err := tx.ExecContext(ctx,
			`INSERT INTO progress (region_id, locality_id, source, status)
			 VALUES (?, ?, ?, 'pending')
			 ON CONFLICT (region_id, locality_id, source) DO NOTHING`,
			u.RegionID, u.LocalityID, string(u.Source),
		)
		if err != nil {
			return eris.Wrapf(err, "sqlite: init progress %s", u.Key())
		}
	}
	return eris.Wrap(tx.Commit(), "sqlite: commit init progress")
}

func (s *SQLiteStore) GetProgress(ctx context.Context, unit model.PlanUnit) (*model.ProgressEntry, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT status, attempts, last_error, counts, updated_at FROM progress
		 WHERE region_id = ? AND locality_id = ? AND source = ?`,
		unit.RegionID, unit.LocalityID, string(unit.Source),
	)

	e := model.ProgressEntry{Unit: unit}
	var countsJSON sql.NullString
	err := row.Scan(&e.Status, &e.Attempts, &e.LastError, &countsJSON, &e.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: get progress %s", unit.Key())
	}
	if countsJSON.Valid && countsJSON.String != "" {
		if err := json.Unmarshal([]byte(countsJSON.String), &e.Counts); err != nil {
			return nil, eris.Wrapf(err, "sqlite: unmarshal counts %s", unit.Key())
		}
	}
	return &e, nil
}

func (s *SQLiteStore) SetProgress(ctx context.Context, unit model.PlanUnit, status model.UnitStatus, lastError string, counts map[model.Category]int) error {
	var countsJSON any
	if counts != nil {
		b, err := json.Marshal(counts)
		if err != nil {
			return eris.Wrap(err, "sqlite: marshal counts")
		}
		countsJSON = string(b)
	}

	// Attempts counts how many times a unit entered in_progress.
	bump := 0
	if status == model.UnitInProgress {
		bump = 1
	}

	res, err := s.db.ExecContext(ctx,
		`UPDATE progress SET status = ?, attempts = attempts + ?, last_error = ?,
			counts = COALESCE(?, counts), updated_at = datetime('now')
		 WHERE region_id = ? AND locality_id = ? AND source = ?`,
		string(status), bump, lastError, countsJSON,
		unit.RegionID, unit.LocalityID, string(unit.Source),
	)
	if err != nil {
		return eris.Wrapf(err, "sqlite: set progress %s", unit.Key())
	}
	return checkRowsAffected(res, "progress", unit.Key())
}

func (s *SQLiteStore) ListProgress(ctx context.Context, status model.UnitStatus) ([]model.ProgressEntry, error) {
	query := `SELECT region_id, locality_id, source, status, attempts, last_error, counts, updated_at
		 FROM progress`
	var args []any
	if status != "" {
		query += ` WHERE status = ?`
		args = append(args, string(status))
	}
	query += ` ORDER BY region_id, locality_id, source`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list progress")
	}
	defer rows.Close()

	var entries []model.ProgressEntry
	for rows.Next() {
		var e model.ProgressEntry
		var countsJSON sql.NullString
		err := rows.Scan(&e.Unit.RegionID, &e.Unit.LocalityID, &e.Unit.Source,
			&e.Status, &e.Attempts, &e.LastError, &countsJSON, &e.UpdatedAt)
		if err != nil {
			return nil, eris.Wrap(err, "sqlite: scan progress")
		}
		if countsJSON.Valid && countsJSON.String != "" {
			if err := json.Unmarshal([]byte(countsJSON.String), &e.Counts); err != nil {
				return nil, eris.Wrap(err, "sqlite: unmarshal counts")
			}
		}
		entries = append(entries, e)
	}
	return entries, eris.Wrap(rows.Err(), "sqlite: list progress iterate")
}

func (s *SQLiteStore) ResetFailed(ctx context.Context) (int, error) {
	res, err := s.db.ExecContext(ctx,
		`UPDATE progress SET status = 'pending', last_error = '', updated_at = datetime('now')
		 WHERE status = 'failed'`,
	)
	if err != nil {
		return 0, eris.Wrap(err, "sqlite: reset failed")
	}
	n, err := res.RowsAffected()
	return int(n), eris.Wrap(err, "sqlite: rows affected")
}

func (s *SQLiteStore) GetQuotaUsage(ctx context.Context, source model.SourceKind, day string) (int, error) {
	var calls int
	err := s.db.QueryRowContext(ctx,
		`SELECT calls FROM quota_usage WHERE source = ? AND day = ?`,
		string(source), day,
	).Scan(&calls)
	if err == sql.ErrNoRows {
		return 0, nil
	}
	if err != nil {
		return 0, eris.Wrapf(err, "sqlite: get quota usage %s/%s", source, day)
	}
	return calls, nil
}

func (s *SQLiteStore) AddQuotaUsage(ctx context.Context, source model.SourceKind, day string, n int) (int, error) {
	var total int
	err := s.db.QueryRowContext(ctx,
		`INSERT INTO quota_usage (source, day, calls) VALUES (?, ?, ?)
		 ON CONFLICT (source, day) DO UPDATE SET calls = calls + excluded.calls
		 RETURNING calls`,
		string(source), day, n,
	).Scan(&total)
	if err != nil {
		return 0, eris.Wrapf(err, "sqlite: add quota usage %s/%s", source, day)
	}
	return total, nil
}

// helpers

func checkRowsAffected(res sql.Result, entity, id string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return eris.Wrap(err, "rows affected")
	}
	if n == 0 {
		return eris.Errorf("%s not found: %s", entity, id)
	}
	return nil
}
