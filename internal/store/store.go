// Package store persists buyers, contacts, provenance, the review queue, and
// sync runs. PostgresStore is the production backend; SQLiteStore serves
// local runs and tests.
package store

import (
	"context"
	"encoding/json"

	"github.com/rotisserie/eris"

	"github.com/sells-group/buyer-sync/internal/model"
)

var (
	// ErrBuyerNotFound is returned when a referenced buyer does not exist.
	ErrBuyerNotFound = eris.New("store: buyer not found")
	// ErrInvalidValue is returned when a write carries a value outside its
	// closed set.
	ErrInvalidValue = eris.New("store: invalid value")
)

// CandidateFilter selects facilities due for a contact sync.
type CandidateFilter struct {
	Scope     string
	StaleDays int
	Limit     int
}

// Store defines the persistence interface for buyer contact sync.
type Store interface {
	// Facilities
	ListSyncCandidates(ctx context.Context, filter CandidateFilter) ([]model.Facility, error)

	// Contacts. CommitContact upserts the contact and appends the provenance
	// entry in one transaction, re-checking the stability guard against the
	// stored row first.
	GetContact(ctx context.Context, buyerID string) (*model.Contact, error)
	CommitContact(ctx context.Context, w model.ContactWrite, prov model.Provenance) (*model.CommitResult, error)
	ListProvenance(ctx context.Context, contactID string) ([]model.Provenance, error)

	// Review queue. EnqueueReview keeps one open item per (buyer, reason)
	// and replaces its candidate payload on recurrence.
	EnqueueReview(ctx context.Context, buyerID string, reason model.ReasonCode, candidate json.RawMessage) error
	ListOpenReviews(ctx context.Context) ([]model.ReviewRow, error)
	ResolveReview(ctx context.Context, r model.ReviewResolution, prov model.Provenance) error

	// Sync runs
	CreateSyncRun(ctx context.Context) (*model.SyncRun, error)
	FinalizeSyncRun(ctx context.Context, summary model.SyncSummary) error
	GetSyncRun(ctx context.Context, id string) (*model.SyncRun, error)
	ListSyncRuns(ctx context.Context, limit int) ([]model.SyncRun, error)

	// Report
	CountByTier(ctx context.Context) (map[string]int, error)
	CountOpenReviews(ctx context.Context) (int, error)
	ScopeCoverage(ctx context.Context, scope string) (total, covered int, err error)

	// Lifecycle
	Migrate(ctx context.Context) error
	Close() error
}

// Buyer is a registry row as written by UpsertBuyer.
type Buyer struct {
	model.Facility
	Active      bool
	LaunchScope string
}

const defaultRunListLimit = 20

func runListLimit(limit int) int {
	if limit <= 0 {
		return defaultRunListLimit
	}
	return limit
}

// decodeSummary parses a stored summary_json column. Running rows hold an
// empty object and yield nil.
func decodeSummary(status model.RunStatus, raw []byte) (*model.SyncSummary, error) {
	if !status.Terminal() || len(raw) == 0 {
		return nil, nil
	}
	var s model.SyncSummary
	if err := json.Unmarshal(raw, &s); err != nil {
		return nil, eris.Wrap(err, "store: unmarshal summary")
	}
	return &s, nil
}

func orEmptyJSON(raw json.RawMessage) string {
	if len(raw) == 0 {
		return "{}"
	}
	return string(raw)
}

func checkReason(r model.ReasonCode) error {
	if !r.Valid() {
		return eris.Wrapf(ErrInvalidValue, "review reason %q", r)
	}
	return nil
}

func checkTier(t model.Tier) error {
	if !t.Valid() {
		return eris.Wrapf(ErrInvalidValue, "contact tier %q", t)
	}
	return nil
}

func checkSource(s model.SourceType) error {
	if !s.Valid() {
		return eris.Wrapf(ErrInvalidValue, "provenance source %q", s)
	}
	return nil
}

// checkFinalStatus rejects finalizing a run into a non-terminal status.
func checkFinalStatus(s model.RunStatus) error {
	if !s.Terminal() {
		return eris.Wrapf(ErrInvalidValue, "final run status %q", s)
	}
	return nil
}
