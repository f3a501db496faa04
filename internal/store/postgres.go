package store

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/rotisserie/eris"

	"github.com/sells-group/buyer-sync/internal/db"
	"github.com/sells-group/buyer-sync/internal/model"
)

// PostgresStore implements Store using pgxpool.
type PostgresStore struct {
	pool    db.Pool
	closeFn func()
}

// NewPostgres creates a PostgresStore with a connection pool.
func NewPostgres(ctx context.Context, connString string, maxConns int32) (*PostgresStore, error) {
	pool, err := db.Open(ctx, connString, maxConns)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: open")
	}
	return &PostgresStore{pool: pool, closeFn: pool.Close}, nil
}

const postgresMigration = `
CREATE TABLE IF NOT EXISTS buyers (
	id           TEXT PRIMARY KEY DEFAULT gen_random_uuid()::text,
	name         TEXT NOT NULL,
	type         TEXT NOT NULL,
	city         TEXT NOT NULL,
	state        TEXT NOT NULL,
	lat          DOUBLE PRECISION NOT NULL,
	lng          DOUBLE PRECISION NOT NULL,
	active       BOOLEAN NOT NULL DEFAULT TRUE,
	launch_scope TEXT NOT NULL DEFAULT 'corridor'
);

CREATE TABLE IF NOT EXISTS buyer_contacts (
	id                  TEXT PRIMARY KEY DEFAULT gen_random_uuid()::text,
	buyer_id            TEXT NOT NULL UNIQUE REFERENCES buyers(id),
	contact_role        TEXT NOT NULL,
	facility_phone      TEXT,
	website_url         TEXT,
	verified_status     TEXT NOT NULL DEFAULT 'unverified',
	verified_at         TIMESTAMPTZ,
	verification_method TEXT,
	confidence_score    INTEGER NOT NULL DEFAULT 0,
	last_checked_at     TIMESTAMPTZ,
	notes               TEXT
);

CREATE TABLE IF NOT EXISTS buyer_contact_provenance (
	id               TEXT PRIMARY KEY DEFAULT gen_random_uuid()::text,
	buyer_contact_id TEXT NOT NULL REFERENCES buyer_contacts(id),
	source_type      TEXT NOT NULL,
	source_ref       TEXT,
	observed_phone   TEXT,
	observed_website TEXT,
	match_score      INTEGER NOT NULL DEFAULT 0,
	payload_hash     TEXT NOT NULL,
	payload_json     JSONB NOT NULL,
	created_at       TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS buyer_review_queue (
	id             TEXT PRIMARY KEY DEFAULT gen_random_uuid()::text,
	buyer_id       TEXT NOT NULL REFERENCES buyers(id),
	reason_code    TEXT NOT NULL,
	candidate_json JSONB NOT NULL DEFAULT '{}'::jsonb,
	status         TEXT NOT NULL DEFAULT 'open',
	resolved_by    TEXT,
	resolved_at    TIMESTAMPTZ,
	created_at     TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS sync_runs (
	id                     TEXT PRIMARY KEY DEFAULT gen_random_uuid()::text,
	job_type               TEXT NOT NULL,
	status                 TEXT NOT NULL,
	started_at             TIMESTAMPTZ NOT NULL DEFAULT now(),
	ended_at               TIMESTAMPTZ,
	processed_count        INTEGER NOT NULL DEFAULT 0,
	updated_count          INTEGER NOT NULL DEFAULT 0,
	review_count           INTEGER NOT NULL DEFAULT 0,
	error_count            INTEGER NOT NULL DEFAULT 0,
	skipped_verified_count INTEGER NOT NULL DEFAULT 0,
	summary_json           JSONB NOT NULL DEFAULT '{}'::jsonb
);

CREATE INDEX IF NOT EXISTS idx_buyers_scope ON buyers(launch_scope, active);
CREATE UNIQUE INDEX IF NOT EXISTS idx_provenance_dedup
	ON buyer_contact_provenance(buyer_contact_id, source_type, payload_hash);
CREATE UNIQUE INDEX IF NOT EXISTS idx_review_open
	ON buyer_review_queue(buyer_id, reason_code) WHERE status = 'open';
CREATE INDEX IF NOT EXISTS idx_sync_runs_job_started ON sync_runs(job_type, started_at DESC);

CREATE OR REPLACE FUNCTION buyer_contact_provenance_append_only() RETURNS trigger AS $$
BEGIN
	RAISE EXCEPTION 'buyer_contact_provenance is append-only';
END;
$$ LANGUAGE plpgsql;

DROP TRIGGER IF EXISTS trg_provenance_append_only ON buyer_contact_provenance;
CREATE TRIGGER trg_provenance_append_only
	BEFORE UPDATE OR DELETE ON buyer_contact_provenance
	FOR EACH ROW EXECUTE FUNCTION buyer_contact_provenance_append_only();
`

const (
	pgListCandidates = `SELECT b.id, b.name, b.type, b.city, b.state, b.lat, b.lng,
	COALESCE(bc.id, ''), COALESCE(bc.verified_status, ''), COALESCE(bc.confidence_score, 0),
	COALESCE(bc.facility_phone, ''), COALESCE(bc.website_url, ''), bc.last_checked_at
FROM buyers b
LEFT JOIN buyer_contacts bc ON bc.buyer_id = b.id
WHERE b.active = TRUE
	AND b.launch_scope = $1
	AND (
		bc.id IS NULL
		OR bc.last_checked_at IS NULL
		OR bc.last_checked_at < now() - make_interval(days => $2)
		OR bc.verified_status <> 'verified'
	)
ORDER BY b.state, b.name
LIMIT $3`

	pgGetContact = `SELECT id, buyer_id, contact_role, COALESCE(facility_phone, ''), COALESCE(website_url, ''),
	verified_status, verified_at, COALESCE(verification_method, ''), confidence_score, last_checked_at, COALESCE(notes, '')
FROM buyer_contacts WHERE buyer_id = $1`

	pgLockContact = `SELECT id, verified_status, confidence_score FROM buyer_contacts WHERE buyer_id = $1 FOR UPDATE`

	pgUpsertContact = `INSERT INTO buyer_contacts (
	buyer_id, contact_role, facility_phone, website_url,
	verified_status, verified_at, verification_method,
	confidence_score, last_checked_at, notes
) VALUES (
	$1, $2, NULLIF($3, ''), NULLIF($4, ''),
	$5, CASE WHEN $5 = 'verified' THEN now() ELSE NULL END, $6,
	$7, now(), NULLIF($8, '')
)
ON CONFLICT (buyer_id) DO UPDATE SET
	contact_role = EXCLUDED.contact_role,
	facility_phone = EXCLUDED.facility_phone,
	website_url = EXCLUDED.website_url,
	verified_status = EXCLUDED.verified_status,
	verified_at = CASE WHEN EXCLUDED.verified_status = 'verified' THEN now() ELSE buyer_contacts.verified_at END,
	verification_method = EXCLUDED.verification_method,
	confidence_score = EXCLUDED.confidence_score,
	last_checked_at = now(),
	notes = EXCLUDED.notes
RETURNING id`

	pgApproveContact = `INSERT INTO buyer_contacts (
	buyer_id, contact_role, facility_phone, website_url,
	verified_status, verified_at, verification_method,
	confidence_score, last_checked_at, notes
) VALUES (
	$1, $2, NULLIF($3, ''), NULLIF($4, ''),
	'verified', now(), 'manual_review',
	100, now(), NULLIF($5, '')
)
ON CONFLICT (buyer_id) DO UPDATE SET
	contact_role = EXCLUDED.contact_role,
	facility_phone = COALESCE(EXCLUDED.facility_phone, buyer_contacts.facility_phone),
	website_url = COALESCE(EXCLUDED.website_url, buyer_contacts.website_url),
	verified_status = 'verified',
	verified_at = now(),
	verification_method = 'manual_review',
	confidence_score = 100,
	last_checked_at = now(),
	notes = COALESCE(EXCLUDED.notes, buyer_contacts.notes)
RETURNING id`

	pgInsertProvenance = `INSERT INTO buyer_contact_provenance (
	buyer_contact_id, source_type, source_ref,
	observed_phone, observed_website, match_score,
	payload_hash, payload_json
) VALUES ($1, $2, NULLIF($3, ''), NULLIF($4, ''), NULLIF($5, ''), $6, $7, $8::jsonb)
ON CONFLICT (buyer_contact_id, source_type, payload_hash) DO NOTHING`

	pgListProvenance = `SELECT id, buyer_contact_id, source_type, COALESCE(source_ref, ''),
	COALESCE(observed_phone, ''), COALESCE(observed_website, ''), match_score,
	payload_hash, payload_json, created_at
FROM buyer_contact_provenance WHERE buyer_contact_id = $1
ORDER BY created_at, id`

	pgEnqueueReview = `INSERT INTO buyer_review_queue (buyer_id, reason_code, candidate_json, status)
VALUES ($1, $2, $3::jsonb, 'open')
ON CONFLICT (buyer_id, reason_code) WHERE status = 'open'
DO UPDATE SET candidate_json = EXCLUDED.candidate_json`

	pgListOpenReviews = `SELECT q.id, b.id, b.name, b.type, b.city, b.state, q.reason_code,
	COALESCE(bc.facility_phone, ''), COALESCE(bc.website_url, ''), q.candidate_json, q.created_at
FROM buyer_review_queue q
JOIN buyers b ON b.id = q.buyer_id
LEFT JOIN buyer_contacts bc ON bc.buyer_id = b.id
WHERE q.status = 'open'
ORDER BY b.state, b.name, q.reason_code`

	pgResolveReview = `UPDATE buyer_review_queue
SET status = 'resolved', resolved_by = $2, resolved_at = now()
WHERE id = $1 AND status = 'open'`

	pgSelectRun = `SELECT id, job_type, status, started_at, ended_at,
	processed_count, updated_count, review_count, error_count, skipped_verified_count, summary_json
FROM sync_runs`

	pgFinalizeRun = `UPDATE sync_runs SET
	ended_at = $2, status = $3,
	processed_count = $4, updated_count = $5, review_count = $6,
	error_count = $7, skipped_verified_count = $8,
	summary_json = $9::jsonb
WHERE id = $1 AND status = 'running'`

	pgCountByTier = `SELECT COALESCE(bc.verified_status, 'none'), COUNT(*)::int
FROM buyers b
LEFT JOIN buyer_contacts bc ON bc.buyer_id = b.id
WHERE b.active = TRUE
GROUP BY COALESCE(bc.verified_status, 'none')`

	pgScopeCoverage = `SELECT
	COUNT(*)::int,
	COUNT(*) FILTER (
		WHERE bc.facility_phone IS NOT NULL
			AND bc.website_url IS NOT NULL
			AND bc.verified_status IN ('verified', 'needs_review')
	)::int
FROM buyers b
LEFT JOIN buyer_contacts bc ON bc.buyer_id = b.id
WHERE b.active = TRUE AND b.launch_scope = $1`
)

// Migrate creates the schema if it does not exist.
func (s *PostgresStore) Migrate(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, postgresMigration)
	return eris.Wrap(err, "postgres: migrate")
}

// Close releases the pool.
func (s *PostgresStore) Close() error {
	if s.closeFn != nil {
		s.closeFn()
	}
	return nil
}

// UpsertBuyer inserts or replaces a registry row.
func (s *PostgresStore) UpsertBuyer(ctx context.Context, b Buyer) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO buyers (id, name, type, city, state, lat, lng, active, launch_scope)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
ON CONFLICT (id) DO UPDATE SET
	name = EXCLUDED.name, type = EXCLUDED.type, city = EXCLUDED.city, state = EXCLUDED.state,
	lat = EXCLUDED.lat, lng = EXCLUDED.lng, active = EXCLUDED.active, launch_scope = EXCLUDED.launch_scope`,
		b.ID, b.Name, string(b.Type), b.City, b.State, b.Lat, b.Lng, b.Active, b.LaunchScope,
	)
	return eris.Wrapf(err, "postgres: upsert buyer %s", b.ID)
}

func (s *PostgresStore) ListSyncCandidates(ctx context.Context, filter CandidateFilter) ([]model.Facility, error) {
	rows, err := s.pool.Query(ctx, pgListCandidates, filter.Scope, filter.StaleDays, filter.Limit)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list sync candidates")
	}
	defer rows.Close()

	var out []model.Facility
	for rows.Next() {
		var f model.Facility
		var typ, tier string
		if err := rows.Scan(&f.ID, &f.Name, &typ, &f.City, &f.State, &f.Lat, &f.Lng,
			&f.ContactID, &tier, &f.CurrentConfidence, &f.CurrentPhone, &f.CurrentWebsite, &f.LastCheckedAt); err != nil {
			return nil, eris.Wrap(err, "postgres: scan sync candidate")
		}
		f.Type = model.FacilityType(typ)
		f.CurrentTier = model.Tier(tier)
		out = append(out, f)
	}
	return out, eris.Wrap(rows.Err(), "postgres: iterate sync candidates")
}

func (s *PostgresStore) GetContact(ctx context.Context, buyerID string) (*model.Contact, error) {
	var c model.Contact
	var tier, method string
	err := s.pool.QueryRow(ctx, pgGetContact, buyerID).Scan(
		&c.ID, &c.BuyerID, &c.Role, &c.Phone, &c.Website,
		&tier, &c.VerifiedAt, &method, &c.Confidence, &c.LastCheckedAt, &c.Notes,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: get contact for buyer %s", buyerID)
	}
	c.Tier = model.Tier(tier)
	c.VerificationMethod = model.VerificationMethod(method)
	return &c, nil
}

func (s *PostgresStore) CommitContact(ctx context.Context, w model.ContactWrite, prov model.Provenance) (*model.CommitResult, error) {
	if err := checkTier(w.Tier); err != nil {
		return nil, err
	}
	res := &model.CommitResult{}
	err := db.WithTx(ctx, s.pool, func(tx pgx.Tx) error {
		var id, tier string
		var confidence int
		err := tx.QueryRow(ctx, pgLockContact, w.BuyerID).Scan(&id, &tier, &confidence)
		switch {
		case errors.Is(err, pgx.ErrNoRows):
		case err != nil:
			return eris.Wrapf(err, "postgres: lock contact for buyer %s", w.BuyerID)
		case model.Protects(model.Tier(tier), confidence, w.AcceptanceBar, w.Confidence):
			res.ContactID = id
			res.Protected = true
			return nil
		}

		if err := tx.QueryRow(ctx, pgUpsertContact,
			w.BuyerID, w.Role, w.Phone, w.Website,
			string(w.Tier), string(w.Method), w.Confidence, w.Notes,
		).Scan(&res.ContactID); err != nil {
			return eris.Wrapf(err, "postgres: upsert contact for buyer %s", w.BuyerID)
		}

		added, err := pgInsertProv(ctx, tx, res.ContactID, prov)
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

func pgInsertProv(ctx context.Context, tx pgx.Tx, contactID string, prov model.Provenance) (bool, error) {
	if err := checkSource(prov.SourceType); err != nil {
		return false, err
	}
	tag, err := tx.Exec(ctx, pgInsertProvenance,
		contactID, string(prov.SourceType), prov.SourceRef,
		prov.ObservedPhone, prov.ObservedWebsite, prov.MatchScore,
		prov.PayloadHash, orEmptyJSON(prov.Payload),
	)
	if err != nil {
		return false, eris.Wrapf(err, "postgres: insert provenance for contact %s", contactID)
	}
	return tag.RowsAffected() > 0, nil
}

func (s *PostgresStore) ListProvenance(ctx context.Context, contactID string) ([]model.Provenance, error) {
	rows, err := s.pool.Query(ctx, pgListProvenance, contactID)
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: list provenance for contact %s", contactID)
	}
	defer rows.Close()

	var out []model.Provenance
	for rows.Next() {
		var p model.Provenance
		var source string
		var payload []byte
		if err := rows.Scan(&p.ID, &p.ContactID, &source, &p.SourceRef, &p.ObservedPhone, &p.ObservedWebsite,
			&p.MatchScore, &p.PayloadHash, &payload, &p.CreatedAt); err != nil {
			return nil, eris.Wrap(err, "postgres: scan provenance")
		}
		p.SourceType = model.SourceType(source)
		p.Payload = json.RawMessage(payload)
		out = append(out, p)
	}
	return out, eris.Wrap(rows.Err(), "postgres: iterate provenance")
}

func (s *PostgresStore) EnqueueReview(ctx context.Context, buyerID string, reason model.ReasonCode, candidate json.RawMessage) error {
	if err := checkReason(reason); err != nil {
		return err
	}
	_, err := s.pool.Exec(ctx, pgEnqueueReview, buyerID, string(reason), orEmptyJSON(candidate))
	return eris.Wrapf(err, "postgres: enqueue %s review for buyer %s", reason, buyerID)
}

func (s *PostgresStore) ListOpenReviews(ctx context.Context) ([]model.ReviewRow, error) {
	rows, err := s.pool.Query(ctx, pgListOpenReviews)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list open reviews")
	}
	defer rows.Close()

	var out []model.ReviewRow
	for rows.Next() {
		var r model.ReviewRow
		var typ, reason string
		var candidate []byte
		if err := rows.Scan(&r.ReviewID, &r.BuyerID, &r.BuyerName, &typ, &r.City, &r.State, &reason,
			&r.CurrentPhone, &r.CurrentWebsite, &candidate, &r.CreatedAt); err != nil {
			return nil, eris.Wrap(err, "postgres: scan review row")
		}
		r.BuyerType = model.FacilityType(typ)
		r.Reason = model.ReasonCode(reason)
		r.Candidate = json.RawMessage(candidate)
		out = append(out, r)
	}
	return out, eris.Wrap(rows.Err(), "postgres: iterate review rows")
}

func (s *PostgresStore) ResolveReview(ctx context.Context, r model.ReviewResolution, prov model.Provenance) error {
	return db.WithTx(ctx, s.pool, func(tx pgx.Tx) error {
		var typ string
		err := tx.QueryRow(ctx, `SELECT type FROM buyers WHERE id = $1`, r.BuyerID).Scan(&typ)
		if errors.Is(err, pgx.ErrNoRows) {
			return eris.Wrapf(ErrBuyerNotFound, "review %s references buyer %s", r.ReviewID, r.BuyerID)
		}
		if err != nil {
			return eris.Wrapf(err, "postgres: look up buyer %s", r.BuyerID)
		}

		var contactID string
		if err := tx.QueryRow(ctx, pgApproveContact,
			r.BuyerID, model.FacilityType(typ).ContactRole(), r.ApprovedPhone, r.ApprovedWebsite, r.Notes,
		).Scan(&contactID); err != nil {
			return eris.Wrapf(err, "postgres: approve contact for buyer %s", r.BuyerID)
		}

		if _, err := pgInsertProv(ctx, tx, contactID, prov); err != nil {
			return err
		}

		if _, err := tx.Exec(ctx, pgResolveReview, r.ReviewID, r.ResolvedBy); err != nil {
			return eris.Wrapf(err, "postgres: resolve review %s", r.ReviewID)
		}
		return nil
	})
}

func (s *PostgresStore) CreateSyncRun(ctx context.Context) (*model.SyncRun, error) {
	run := &model.SyncRun{JobType: model.SyncJobType, Status: model.RunStatusRunning}
	err := s.pool.QueryRow(ctx,
		`INSERT INTO sync_runs (job_type, status, summary_json) VALUES ($1, $2, '{}'::jsonb) RETURNING id, started_at`,
		model.SyncJobType, string(model.RunStatusRunning),
	).Scan(&run.ID, &run.StartedAt)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: create sync run")
	}
	return run, nil
}

func (s *PostgresStore) FinalizeSyncRun(ctx context.Context, summary model.SyncSummary) error {
	if err := checkFinalStatus(summary.Status); err != nil {
		return err
	}
	summaryJSON, err := json.Marshal(summary)
	if err != nil {
		return eris.Wrap(err, "postgres: marshal summary")
	}

	c := summary.RunCounts
	tag, err := s.pool.Exec(ctx, pgFinalizeRun,
		summary.SyncRunID, summary.EndedAt, string(summary.Status),
		c.Processed, c.Updated, c.Reviewed, c.Errored, c.SkippedVerified,
		string(summaryJSON),
	)
	if err != nil {
		return eris.Wrapf(err, "postgres: finalize sync run %s", summary.SyncRunID)
	}
	if tag.RowsAffected() == 0 {
		return eris.Errorf("postgres: sync run %s is not running", summary.SyncRunID)
	}
	return nil
}

func (s *PostgresStore) GetSyncRun(ctx context.Context, id string) (*model.SyncRun, error) {
	run, err := scanSyncRun(s.pool.QueryRow(ctx, pgSelectRun+` WHERE id = $1`, id))
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: get sync run %s", id)
	}
	return run, nil
}

func (s *PostgresStore) ListSyncRuns(ctx context.Context, limit int) ([]model.SyncRun, error) {
	rows, err := s.pool.Query(ctx, pgSelectRun+` WHERE job_type = $1 ORDER BY started_at DESC LIMIT $2`,
		model.SyncJobType, runListLimit(limit))
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list sync runs")
	}
	defer rows.Close()

	var out []model.SyncRun
	for rows.Next() {
		run, err := scanSyncRun(rows)
		if err != nil {
			return nil, eris.Wrap(err, "postgres: scan sync run")
		}
		out = append(out, *run)
	}
	return out, eris.Wrap(rows.Err(), "postgres: iterate sync runs")
}

func (s *PostgresStore) CountByTier(ctx context.Context) (map[string]int, error) {
	rows, err := s.pool.Query(ctx, pgCountByTier)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: count by tier")
	}
	defer rows.Close()

	out := make(map[string]int)
	for rows.Next() {
		var tier string
		var n int
		if err := rows.Scan(&tier, &n); err != nil {
			return nil, eris.Wrap(err, "postgres: scan tier count")
		}
		out[tier] = n
	}
	return out, eris.Wrap(rows.Err(), "postgres: iterate tier counts")
}

func (s *PostgresStore) CountOpenReviews(ctx context.Context) (int, error) {
	var n int
	err := s.pool.QueryRow(ctx, `SELECT COUNT(*)::int FROM buyer_review_queue WHERE status = 'open'`).Scan(&n)
	return n, eris.Wrap(err, "postgres: count open reviews")
}

func (s *PostgresStore) ScopeCoverage(ctx context.Context, scope string) (int, int, error) {
	var total, covered int
	err := s.pool.QueryRow(ctx, pgScopeCoverage, scope).Scan(&total, &covered)
	return total, covered, eris.Wrapf(err, "postgres: coverage for scope %s", scope)
}

type scannable interface {
	Scan(dest ...any) error
}

func scanSyncRun(row scannable) (*model.SyncRun, error) {
	var run model.SyncRun
	var status string
	var summary []byte
	c := &run.Counts
	if err := row.Scan(&run.ID, &run.JobType, &status, &run.StartedAt, &run.EndedAt,
		&c.Processed, &c.Updated, &c.Reviewed, &c.Errored, &c.SkippedVerified, &summary); err != nil {
		return nil, err
	}
	run.Status = model.RunStatus(status)
	s, err := decodeSummary(run.Status, summary)
	if err != nil {
		return nil, err
	}
	run.Summary = s
	return &run, nil
}
