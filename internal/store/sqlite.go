package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	_ "modernc.org/sqlite"

	"github.com/sells-group/buyer-sync/internal/model"
)

// SQLiteStore implements Store using modernc.org/sqlite.
type SQLiteStore struct {
	db  *sql.DB
	now func() time.Time
}

// NewSQLite opens a SQLite database at the given path and configures WAL mode.
func NewSQLite(dsn string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: open")
	}
	// Pragmas are per connection.
	db.SetMaxOpenConns(1)
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
		"PRAGMA foreign_keys=ON",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close() //nolint:errcheck
			return nil, eris.Wrapf(err, "sqlite: exec %s", pragma)
		}
	}
	return &SQLiteStore{db: db, now: time.Now}, nil
}

const sqliteMigration = `
CREATE TABLE IF NOT EXISTS buyers (
	id           TEXT PRIMARY KEY,
	name         TEXT NOT NULL,
	type         TEXT NOT NULL,
	city         TEXT NOT NULL,
	state        TEXT NOT NULL,
	lat          REAL NOT NULL,
	lng          REAL NOT NULL,
	active       INTEGER NOT NULL DEFAULT 1,
	launch_scope TEXT NOT NULL DEFAULT 'corridor'
);

CREATE TABLE IF NOT EXISTS buyer_contacts (
	id                  TEXT PRIMARY KEY,
	buyer_id            TEXT NOT NULL UNIQUE REFERENCES buyers(id),
	contact_role        TEXT NOT NULL,
	facility_phone      TEXT,
	website_url         TEXT,
	verified_status     TEXT NOT NULL DEFAULT 'unverified',
	verified_at         TEXT,
	verification_method TEXT,
	confidence_score    INTEGER NOT NULL DEFAULT 0,
	last_checked_at     TEXT,
	notes               TEXT
);

CREATE TABLE IF NOT EXISTS buyer_contact_provenance (
	id               TEXT PRIMARY KEY,
	buyer_contact_id TEXT NOT NULL REFERENCES buyer_contacts(id),
	source_type      TEXT NOT NULL,
	source_ref       TEXT,
	observed_phone   TEXT,
	observed_website TEXT,
	match_score      INTEGER NOT NULL DEFAULT 0,
	payload_hash     TEXT NOT NULL,
	payload_json     TEXT NOT NULL,
	created_at       TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS buyer_review_queue (
	id             TEXT PRIMARY KEY,
	buyer_id       TEXT NOT NULL REFERENCES buyers(id),
	reason_code    TEXT NOT NULL,
	candidate_json TEXT NOT NULL DEFAULT '{}',
	status         TEXT NOT NULL DEFAULT 'open',
	resolved_by    TEXT,
	resolved_at    TEXT,
	created_at     TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS sync_runs (
	id                     TEXT PRIMARY KEY,
	job_type               TEXT NOT NULL,
	status                 TEXT NOT NULL,
	started_at             TEXT NOT NULL,
	ended_at               TEXT,
	processed_count        INTEGER NOT NULL DEFAULT 0,
	updated_count          INTEGER NOT NULL DEFAULT 0,
	review_count           INTEGER NOT NULL DEFAULT 0,
	error_count            INTEGER NOT NULL DEFAULT 0,
	skipped_verified_count INTEGER NOT NULL DEFAULT 0,
	summary_json           TEXT NOT NULL DEFAULT '{}'
);

CREATE INDEX IF NOT EXISTS idx_buyers_scope ON buyers(launch_scope, active);
CREATE UNIQUE INDEX IF NOT EXISTS idx_provenance_dedup
	ON buyer_contact_provenance(buyer_contact_id, source_type, payload_hash);
CREATE UNIQUE INDEX IF NOT EXISTS idx_review_open
	ON buyer_review_queue(buyer_id, reason_code) WHERE status = 'open';
CREATE INDEX IF NOT EXISTS idx_sync_runs_job_started ON sync_runs(job_type, started_at);

CREATE TRIGGER IF NOT EXISTS trg_provenance_no_update
BEFORE UPDATE ON buyer_contact_provenance
BEGIN
	SELECT RAISE(ABORT, 'buyer_contact_provenance is append-only');
END;

CREATE TRIGGER IF NOT EXISTS trg_provenance_no_delete
BEFORE DELETE ON buyer_contact_provenance
BEGIN
	SELECT RAISE(ABORT, 'buyer_contact_provenance is append-only');
END;
`

// sqliteTimeLayout is fixed-width so stored timestamps sort as text.
const sqliteTimeLayout = "2006-01-02T15:04:05.000000000Z"

func formatTime(t time.Time) string {
	return t.UTC().Format(sqliteTimeLayout)
}

func parseTime(s string) (time.Time, error) {
	t, err := time.Parse(sqliteTimeLayout, s)
	if err != nil {
		return time.Time{}, eris.Wrapf(err, "sqlite: parse time %q", s)
	}
	return t, nil
}

func parseNullTime(ns sql.NullString) (*time.Time, error) {
	if !ns.Valid || ns.String == "" {
		return nil, nil
	}
	t, err := parseTime(ns.String)
	if err != nil {
		return nil, err
	}
	return &t, nil
}

// Migrate creates the schema if it does not exist.
func (s *SQLiteStore) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, sqliteMigration)
	return eris.Wrap(err, "sqlite: migrate")
}

// Close closes the database.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// UpsertBuyer inserts or replaces a registry row.
func (s *SQLiteStore) UpsertBuyer(ctx context.Context, b Buyer) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO buyers (id, name, type, city, state, lat, lng, active, launch_scope)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
ON CONFLICT (id) DO UPDATE SET
	name = excluded.name, type = excluded.type, city = excluded.city, state = excluded.state,
	lat = excluded.lat, lng = excluded.lng, active = excluded.active, launch_scope = excluded.launch_scope`,
		b.ID, b.Name, string(b.Type), b.City, b.State, b.Lat, b.Lng, b.Active, b.LaunchScope,
	)
	return eris.Wrapf(err, "sqlite: upsert buyer %s", b.ID)
}

func (s *SQLiteStore) ListSyncCandidates(ctx context.Context, filter CandidateFilter) ([]model.Facility, error) {
	cutoff := formatTime(s.now().AddDate(0, 0, -filter.StaleDays))
	rows, err := s.db.QueryContext(ctx, `SELECT b.id, b.name, b.type, b.city, b.state, b.lat, b.lng,
	COALESCE(bc.id, ''), COALESCE(bc.verified_status, ''), COALESCE(bc.confidence_score, 0),
	COALESCE(bc.facility_phone, ''), COALESCE(bc.website_url, ''), bc.last_checked_at
FROM buyers b
LEFT JOIN buyer_contacts bc ON bc.buyer_id = b.id
WHERE b.active = 1
	AND b.launch_scope = ?
	AND (
		bc.id IS NULL
		OR bc.last_checked_at IS NULL
		OR bc.last_checked_at < ?
		OR bc.verified_status <> 'verified'
	)
ORDER BY b.state, b.name
LIMIT ?`, filter.Scope, cutoff, filter.Limit)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list sync candidates")
	}
	defer rows.Close() //nolint:errcheck

	var out []model.Facility
	for rows.Next() {
		var f model.Facility
		var typ, tier string
		var checked sql.NullString
		if err := rows.Scan(&f.ID, &f.Name, &typ, &f.City, &f.State, &f.Lat, &f.Lng,
			&f.ContactID, &tier, &f.CurrentConfidence, &f.CurrentPhone, &f.CurrentWebsite, &checked); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan sync candidate")
		}
		f.Type = model.FacilityType(typ)
		f.CurrentTier = model.Tier(tier)
		if f.LastCheckedAt, err = parseNullTime(checked); err != nil {
			return nil, err
		}
		out = append(out, f)
	}
	return out, eris.Wrap(rows.Err(), "sqlite: iterate sync candidates")
}

func (s *SQLiteStore) GetContact(ctx context.Context, buyerID string) (*model.Contact, error) {
	var c model.Contact
	var tier, method string
	var verifiedAt, checkedAt sql.NullString
	err := s.db.QueryRowContext(ctx, `SELECT id, buyer_id, contact_role, COALESCE(facility_phone, ''), COALESCE(website_url, ''),
	verified_status, verified_at, COALESCE(verification_method, ''), confidence_score, last_checked_at, COALESCE(notes, '')
FROM buyer_contacts WHERE buyer_id = ?`, buyerID).Scan(
		&c.ID, &c.BuyerID, &c.Role, &c.Phone, &c.Website,
		&tier, &verifiedAt, &method, &c.Confidence, &checkedAt, &c.Notes,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: get contact for buyer %s", buyerID)
	}
	c.Tier = model.Tier(tier)
	c.VerificationMethod = model.VerificationMethod(method)
	if c.VerifiedAt, err = parseNullTime(verifiedAt); err != nil {
		return nil, err
	}
	if c.LastCheckedAt, err = parseNullTime(checkedAt); err != nil {
		return nil, err
	}
	return &c, nil
}

// withTx runs fn in a transaction, committing when it returns nil.
func (s *SQLiteStore) withTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return eris.Wrap(err, "sqlite: begin tx")
	}
	defer tx.Rollback() //nolint:errcheck

	if err := fn(tx); err != nil {
		return err
	}
	return eris.Wrap(tx.Commit(), "sqlite: commit tx")
}

func (s *SQLiteStore) CommitContact(ctx context.Context, w model.ContactWrite, prov model.Provenance) (*model.CommitResult, error) {
	if err := checkTier(w.Tier); err != nil {
		return nil, err
	}
	res := &model.CommitResult{}
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		var id, tier string
		var confidence int
		err := tx.QueryRowContext(ctx,
			`SELECT id, verified_status, confidence_score FROM buyer_contacts WHERE buyer_id = ?`, w.BuyerID,
		).Scan(&id, &tier, &confidence)
		switch {
		case errors.Is(err, sql.ErrNoRows):
		case err != nil:
			return eris.Wrapf(err, "sqlite: read contact for buyer %s", w.BuyerID)
		case model.Protects(model.Tier(tier), confidence, w.AcceptanceBar, w.Confidence):
			res.ContactID = id
			res.Protected = true
			return nil
		}

		now := formatTime(s.now())
		var verifiedAt any
		if w.Tier == model.TierVerified {
			verifiedAt = now
		}
		if err := tx.QueryRowContext(ctx, `INSERT INTO buyer_contacts (
	id, buyer_id, contact_role, facility_phone, website_url,
	verified_status, verified_at, verification_method,
	confidence_score, last_checked_at, notes
) VALUES (?, ?, ?, NULLIF(?, ''), NULLIF(?, ''), ?, ?, ?, ?, ?, NULLIF(?, ''))
ON CONFLICT (buyer_id) DO UPDATE SET
	contact_role = excluded.contact_role,
	facility_phone = excluded.facility_phone,
	website_url = excluded.website_url,
	verified_status = excluded.verified_status,
	verified_at = COALESCE(excluded.verified_at, buyer_contacts.verified_at),
	verification_method = excluded.verification_method,
	confidence_score = excluded.confidence_score,
	last_checked_at = excluded.last_checked_at,
	notes = excluded.notes
RETURNING id`,
			uuid.New().String(), w.BuyerID, w.Role, w.Phone, w.Website,
			string(w.Tier), verifiedAt, string(w.Method),
			w.Confidence, now, w.Notes,
		).Scan(&res.ContactID); err != nil {
			return eris.Wrapf(err, "sqlite: upsert contact for buyer %s", w.BuyerID)
		}

		added, err := s.insertProv(ctx, tx, res.ContactID, prov)
		if err != nil {
			return err
		}
		res.ProvenanceAdded = added
		return nil
	})
	if err != nil {
		return nil, err
	}
	return res, nil
}

func (s *SQLiteStore) insertProv(ctx context.Context, tx *sql.Tx, contactID string, prov model.Provenance) (bool, error) {
	if err := checkSource(prov.SourceType); err != nil {
		return false, err
	}
	result, err := tx.ExecContext(ctx, `INSERT INTO buyer_contact_provenance (
	id, buyer_contact_id, source_type, source_ref,
	observed_phone, observed_website, match_score,
	payload_hash, payload_json, created_at
) VALUES (?, ?, ?, NULLIF(?, ''), NULLIF(?, ''), NULLIF(?, ''), ?, ?, ?, ?)
ON CONFLICT (buyer_contact_id, source_type, payload_hash) DO NOTHING`,
		uuid.New().String(), contactID, string(prov.SourceType), prov.SourceRef,
		prov.ObservedPhone, prov.ObservedWebsite, prov.MatchScore,
		prov.PayloadHash, orEmptyJSON(prov.Payload), formatTime(s.now()),
	)
	if err != nil {
		return false, eris.Wrapf(err, "sqlite: insert provenance for contact %s", contactID)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return false, eris.Wrap(err, "sqlite: rows affected")
	}
	return n > 0, nil
}

func (s *SQLiteStore) ListProvenance(ctx context.Context, contactID string) ([]model.Provenance, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT id, buyer_contact_id, source_type, COALESCE(source_ref, ''),
	COALESCE(observed_phone, ''), COALESCE(observed_website, ''), match_score,
	payload_hash, payload_json, created_at
FROM buyer_contact_provenance WHERE buyer_contact_id = ?
ORDER BY created_at, id`, contactID)
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: list provenance for contact %s", contactID)
	}
	defer rows.Close() //nolint:errcheck

	var out []model.Provenance
	for rows.Next() {
		var p model.Provenance
		var source, payload, created string
		if err := rows.Scan(&p.ID, &p.ContactID, &source, &p.SourceRef, &p.ObservedPhone, &p.ObservedWebsite,
			&p.MatchScore, &p.PayloadHash, &payload, &created); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan provenance")
		}
		p.SourceType = model.SourceType(source)
		p.Payload = json.RawMessage(payload)
		if p.CreatedAt, err = parseTime(created); err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, eris.Wrap(rows.Err(), "sqlite: iterate provenance")
}

func (s *SQLiteStore) EnqueueReview(ctx context.Context, buyerID string, reason model.ReasonCode, candidate json.RawMessage) error {
	if err := checkReason(reason); err != nil {
		return err
	}
	_, err := s.db.ExecContext(ctx, `INSERT INTO buyer_review_queue (id, buyer_id, reason_code, candidate_json, status, created_at)
VALUES (?, ?, ?, ?, 'open', ?)
ON CONFLICT (buyer_id, reason_code) WHERE status = 'open'
DO UPDATE SET candidate_json = excluded.candidate_json`,
		uuid.New().String(), buyerID, string(reason), orEmptyJSON(candidate), formatTime(s.now()),
	)
	return eris.Wrapf(err, "sqlite: enqueue %s review for buyer %s", reason, buyerID)
}

func (s *SQLiteStore) ListOpenReviews(ctx context.Context) ([]model.ReviewRow, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT q.id, b.id, b.name, b.type, b.city, b.state, q.reason_code,
	COALESCE(bc.facility_phone, ''), COALESCE(bc.website_url, ''), q.candidate_json, q.created_at
FROM buyer_review_queue q
JOIN buyers b ON b.id = q.buyer_id
LEFT JOIN buyer_contacts bc ON bc.buyer_id = b.id
WHERE q.status = 'open'
ORDER BY b.state, b.name, q.reason_code`)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list open reviews")
	}
	defer rows.Close() //nolint:errcheck

	var out []model.ReviewRow
	for rows.Next() {
		var r model.ReviewRow
		var typ, reason, candidate, created string
		if err := rows.Scan(&r.ReviewID, &r.BuyerID, &r.BuyerName, &typ, &r.City, &r.State, &reason,
			&r.CurrentPhone, &r.CurrentWebsite, &candidate, &created); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan review row")
		}
		r.BuyerType = model.FacilityType(typ)
		r.Reason = model.ReasonCode(reason)
		r.Candidate = json.RawMessage(candidate)
		if r.CreatedAt, err = parseTime(created); err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, eris.Wrap(rows.Err(), "sqlite: iterate review rows")
}

func (s *SQLiteStore) ResolveReview(ctx context.Context, r model.ReviewResolution, prov model.Provenance) error {
	return s.withTx(ctx, func(tx *sql.Tx) error {
		var typ string
		err := tx.QueryRowContext(ctx, `SELECT type FROM buyers WHERE id = ?`, r.BuyerID).Scan(&typ)
		if errors.Is(err, sql.ErrNoRows) {
			return eris.Wrapf(ErrBuyerNotFound, "review %s references buyer %s", r.ReviewID, r.BuyerID)
		}
		if err != nil {
			return eris.Wrapf(err, "sqlite: look up buyer %s", r.BuyerID)
		}

		now := formatTime(s.now())
		var contactID string
		if err := tx.QueryRowContext(ctx, `INSERT INTO buyer_contacts (
	id, buyer_id, contact_role, facility_phone, website_url,
	verified_status, verified_at, verification_method,
	confidence_score, last_checked_at, notes
) VALUES (?, ?, ?, NULLIF(?, ''), NULLIF(?, ''), 'verified', ?, 'manual_review', 100, ?, NULLIF(?, ''))
ON CONFLICT (buyer_id) DO UPDATE SET
	contact_role = excluded.contact_role,
	facility_phone = COALESCE(excluded.facility_phone, buyer_contacts.facility_phone),
	website_url = COALESCE(excluded.website_url, buyer_contacts.website_url),
	verified_status = 'verified',
	verified_at = excluded.verified_at,
	verification_method = 'manual_review',
	confidence_score = 100,
	last_checked_at = excluded.last_checked_at,
	notes = COALESCE(excluded.notes, buyer_contacts.notes)
RETURNING id`,
			uuid.New().String(), r.BuyerID, model.FacilityType(typ).ContactRole(), r.ApprovedPhone, r.ApprovedWebsite,
			now, now, r.Notes,
		).Scan(&contactID); err != nil {
			return eris.Wrapf(err, "sqlite: approve contact for buyer %s", r.BuyerID)
		}

		if _, err := s.insertProv(ctx, tx, contactID, prov); err != nil {
			return err
		}

		if _, err := tx.ExecContext(ctx,
			`UPDATE buyer_review_queue SET status = 'resolved', resolved_by = ?, resolved_at = ? WHERE id = ? AND status = 'open'`,
			r.ResolvedBy, now, r.ReviewID,
		); err != nil {
			return eris.Wrapf(err, "sqlite: resolve review %s", r.ReviewID)
		}
		return nil
	})
}

func (s *SQLiteStore) CreateSyncRun(ctx context.Context) (*model.SyncRun, error) {
	run := &model.SyncRun{
		ID:        uuid.New().String(),
		JobType:   model.SyncJobType,
		Status:    model.RunStatusRunning,
		StartedAt: s.now().UTC(),
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO sync_runs (id, job_type, status, started_at, summary_json) VALUES (?, ?, ?, ?, '{}')`,
		run.ID, run.JobType, string(run.Status), formatTime(run.StartedAt),
	)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: create sync run")
	}
	return run, nil
}

func (s *SQLiteStore) FinalizeSyncRun(ctx context.Context, summary model.SyncSummary) error {
	if err := checkFinalStatus(summary.Status); err != nil {
		return err
	}
	summaryJSON, err := json.Marshal(summary)
	if err != nil {
		return eris.Wrap(err, "sqlite: marshal summary")
	}

	c := summary.RunCounts
	res, err := s.db.ExecContext(ctx, `UPDATE sync_runs SET
	ended_at = ?, status = ?,
	processed_count = ?, updated_count = ?, review_count = ?,
	error_count = ?, skipped_verified_count = ?,
	summary_json = ?
WHERE id = ? AND status = 'running'`,
		formatTime(summary.EndedAt), string(summary.Status),
		c.Processed, c.Updated, c.Reviewed, c.Errored, c.SkippedVerified,
		string(summaryJSON), summary.SyncRunID,
	)
	if err != nil {
		return eris.Wrapf(err, "sqlite: finalize sync run %s", summary.SyncRunID)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return eris.Wrap(err, "sqlite: rows affected")
	}
	if n == 0 {
		return eris.Errorf("sqlite: sync run %s is not running", summary.SyncRunID)
	}
	return nil
}

const sqliteSelectRun = `SELECT id, job_type, status, started_at, ended_at,
	processed_count, updated_count, review_count, error_count, skipped_verified_count, summary_json
FROM sync_runs`

func (s *SQLiteStore) GetSyncRun(ctx context.Context, id string) (*model.SyncRun, error) {
	run, err := scanSQLiteRun(s.db.QueryRowContext(ctx, sqliteSelectRun+` WHERE id = ?`, id))
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: get sync run %s", id)
	}
	return run, nil
}

func (s *SQLiteStore) ListSyncRuns(ctx context.Context, limit int) ([]model.SyncRun, error) {
	rows, err := s.db.QueryContext(ctx, sqliteSelectRun+` WHERE job_type = ? ORDER BY started_at DESC LIMIT ?`,
		model.SyncJobType, runListLimit(limit))
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list sync runs")
	}
	defer rows.Close() //nolint:errcheck

	var out []model.SyncRun
	for rows.Next() {
		run, err := scanSQLiteRun(rows)
		if err != nil {
			return nil, eris.Wrap(err, "sqlite: scan sync run")
		}
		out = append(out, *run)
	}
	return out, eris.Wrap(rows.Err(), "sqlite: iterate sync runs")
}

func (s *SQLiteStore) CountByTier(ctx context.Context) (map[string]int, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT COALESCE(bc.verified_status, 'none'), COUNT(*)
FROM buyers b
LEFT JOIN buyer_contacts bc ON bc.buyer_id = b.id
WHERE b.active = 1
GROUP BY COALESCE(bc.verified_status, 'none')`)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: count by tier")
	}
	defer rows.Close() //nolint:errcheck

	out := make(map[string]int)
	for rows.Next() {
		var tier string
		var n int
		if err := rows.Scan(&tier, &n); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan tier count")
		}
		out[tier] = n
	}
	return out, eris.Wrap(rows.Err(), "sqlite: iterate tier counts")
}

func (s *SQLiteStore) CountOpenReviews(ctx context.Context) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM buyer_review_queue WHERE status = 'open'`).Scan(&n)
	return n, eris.Wrap(err, "sqlite: count open reviews")
}

func (s *SQLiteStore) ScopeCoverage(ctx context.Context, scope string) (int, int, error) {
	var total, covered int
	err := s.db.QueryRowContext(ctx, `SELECT
	COUNT(*),
	COALESCE(SUM(CASE
		WHEN bc.facility_phone IS NOT NULL
			AND bc.website_url IS NOT NULL
			AND bc.verified_status IN ('verified', 'needs_review')
		THEN 1 ELSE 0 END), 0)
FROM buyers b
LEFT JOIN buyer_contacts bc ON bc.buyer_id = b.id
WHERE b.active = 1 AND b.launch_scope = ?`, scope).Scan(&total, &covered)
	return total, covered, eris.Wrapf(err, "sqlite: coverage for scope %s", scope)
}

func scanSQLiteRun(row scannable) (*model.SyncRun, error) {
	var run model.SyncRun
	var status, started, summary string
	var ended sql.NullString
	c := &run.Counts
	if err := row.Scan(&run.ID, &run.JobType, &status, &started, &ended,
		&c.Processed, &c.Updated, &c.Reviewed, &c.Errored, &c.SkippedVerified, &summary); err != nil {
		return nil, err
	}
	run.Status = model.RunStatus(status)

	var err error
	if run.StartedAt, err = parseTime(started); err != nil {
		return nil, err
	}
	if run.EndedAt, err = parseNullTime(ended); err != nil {
		return nil, err
	}
	if run.Summary, err = decodeSummary(run.Status, []byte(summary)); err != nil {
		return nil, err
	}
	return &run, nil
}
