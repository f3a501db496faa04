package contacts

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/buyer-sync/internal/config"
	"github.com/sells-group/buyer-sync/internal/model"
	"github.com/sells-group/buyer-sync/internal/ring"
	"github.com/sells-group/buyer-sync/internal/store"
	"github.com/sells-group/buyer-sync/pkg/google"
)

// Run option bounds.
const (
	DefaultLimit     = 500
	MaxLimit         = 2000
	DefaultStaleDays = 30
	MaxStaleDays     = 365
	DefaultDelay     = 150 * time.Millisecond
	MaxDelay         = 5 * time.Second

	sampleErrorCap   = 10
	progressInterval = 25
	finalizeTimeout  = 10 * time.Second
	topCandidates    = 3
)

// Options controls one sync run. Limit and StaleDays use their defaults
// when zero or negative, as does a negative Delay; zero Delay disables the
// pause between facilities.
type Options struct {
	Limit     int
	StaleDays int
	Delay     time.Duration
}

// Normalize applies defaults to unset options and clamps every option into
// range.
func (o Options) Normalize() Options {
	if o.Limit <= 0 {
		o.Limit = DefaultLimit
	}
	if o.StaleDays <= 0 {
		o.StaleDays = DefaultStaleDays
	}
	if o.Delay < 0 {
		o.Delay = DefaultDelay
	}
	return Options{
		Limit:     ClampLimit(o.Limit),
		StaleDays: ClampStaleDays(o.StaleDays),
		Delay:     ClampDelay(o.Delay),
	}
}

// ClampLimit bounds an explicitly requested limit to [1, MaxLimit].
func ClampLimit(n int) int { return min(max(n, 1), MaxLimit) }

// ClampStaleDays bounds an explicitly requested staleness to [1, MaxStaleDays].
func ClampStaleDays(n int) int { return min(max(n, 1), MaxStaleDays) }

// ClampDelay bounds an explicitly requested delay to [0, MaxDelay].
func ClampDelay(d time.Duration) time.Duration { return min(max(d, 0), MaxDelay) }

// Syncer resolves buyer facility contacts against Google Places and
// reconciles them into the store.
type Syncer struct {
	store   store.Store
	places  PlaceSearcher
	website WebsiteChecker
	cfg     config.SyncConfig
}

// NewSyncer creates a Syncer.
func NewSyncer(st store.Store, places PlaceSearcher, website WebsiteChecker, cfg config.SyncConfig) *Syncer {
	return &Syncer{store: st, places: places, website: website, cfg: cfg}
}

type runState struct {
	runID     string
	startedAt time.Time
	counts    model.RunCounts
	errors    *ring.Buffer[string]
}

// Run executes one sync run. The run row is always finalized exactly once.
// On a fatal error the run is finalized as failed and both the summary and
// the error are returned.
func (s *Syncer) Run(ctx context.Context, opts Options) (*model.SyncSummary, error) {
	opts = opts.Normalize()

	run, err := s.store.CreateSyncRun(ctx)
	if err != nil {
		return nil, eris.Wrap(err, "contacts: create sync run")
	}

	st := &runState{
		runID:     run.ID,
		startedAt: run.StartedAt,
		errors:    ring.New[string](sampleErrorCap),
	}
	log := zap.L().With(zap.String("component", "contacts.sync"), zap.String("sync_run_id", run.ID))
	log.Info("sync run started",
		zap.String("scope", s.cfg.LaunchScope),
		zap.Int("limit", opts.Limit),
		zap.Int("stale_days", opts.StaleDays),
		zap.Duration("delay", opts.Delay),
	)

	if runErr := s.process(ctx, opts, st, log); runErr != nil {
		st.counts.Errored++
		st.errors.Push(runErr.Error())
		summary := st.summary(model.RunStatusFailed)
		if ferr := s.finalize(ctx, summary); ferr != nil {
			log.Error("finalize failed run", zap.Error(ferr))
		}
		log.Error("sync run failed", zap.Error(runErr), zap.Int("processed", st.counts.Processed))
		return summary, runErr
	}

	summary := st.summary(model.StatusFor(st.counts))
	if err := s.finalize(ctx, summary); err != nil {
		return summary, eris.Wrap(err, "contacts: finalize sync run")
	}

	log.Info("sync run complete",
		zap.String("status", string(summary.Status)),
		zap.Int("processed", summary.Processed),
		zap.Int("updated", summary.Updated),
		zap.Int("reviewed", summary.Reviewed),
		zap.Int("errored", summary.Errored),
		zap.Int("skipped_verified", summary.SkippedVerified),
	)
	return summary, nil
}

func (s *Syncer) process(ctx context.Context, opts Options, st *runState, log *zap.Logger) error {
	facilities, err := s.store.ListSyncCandidates(ctx, store.CandidateFilter{
		Scope:     s.cfg.LaunchScope,
		StaleDays: opts.StaleDays,
		Limit:     opts.Limit,
	})
	if err != nil {
		return eris.Wrap(err, "contacts: list sync candidates")
	}
	log.Info("sync candidates loaded", zap.Int("count", len(facilities)))

	for i, f := range facilities {
		if err := ctx.Err(); err != nil {
			return eris.Wrap(err, "contacts: sync interrupted")
		}

		res, err := s.syncFacility(ctx, st.runID, f)
		if err != nil {
			if isFatal(ctx, err) {
				return eris.Wrap(err, f.Label())
			}
			st.counts.Errored++
			st.errors.Push(fmt.Sprintf("%s: %s", f.Label(), err.Error()))
			log.Warn("facility sync failed", zap.String("buyer_id", f.ID), zap.Error(err))
		}
		st.record(f, res)

		if n := i + 1; n%progressInterval == 0 {
			log.Info("sync progress",
				zap.Int("processed", n),
				zap.Int("total", len(facilities)),
				zap.Int("updated", st.counts.Updated),
				zap.Int("reviewed", st.counts.Reviewed),
				zap.Int("errored", st.counts.Errored),
			)
		}

		if err := pause(ctx, opts.Delay); err != nil {
			return eris.Wrap(err, "contacts: sync interrupted")
		}
	}
	return nil
}

// facilityResult is what happened to one facility.
type facilityResult struct {
	updated bool
	queued  bool
	// protected is set when a stored verified contact was left untouched.
	protected bool
}

func (st *runState) record(f model.Facility, res facilityResult) {
	st.counts.Processed++
	if res.updated {
		st.counts.Updated++
	}
	if res.queued {
		st.counts.Reviewed++
	}
	if !res.updated && !res.queued && (res.protected || f.CurrentTier == model.TierVerified) {
		st.counts.SkippedVerified++
	}
}

func (st *runState) summary(status model.RunStatus) *model.SyncSummary {
	return &model.SyncSummary{
		RunCounts:    st.counts,
		SyncRunID:    st.runID,
		StartedAt:    st.startedAt,
		EndedAt:      time.Now().UTC(),
		Status:       status,
		SampleErrors: st.errors.Items(),
	}
}

// finalize writes the summary even when ctx is already cancelled.
func (s *Syncer) finalize(ctx context.Context, summary *model.SyncSummary) error {
	fctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), finalizeTimeout)
	defer cancel()
	return s.store.FinalizeSyncRun(fctx, *summary)
}

// Queue payloads.
type (
	noMatchPayload struct {
		SyncRunID string `json:"syncRunId"`
		Query     string `json:"query"`
	}

	ambiguousPayload struct {
		SyncRunID  string             `json:"syncRunId"`
		Query      string             `json:"query"`
		Candidates []candidateSummary `json:"candidates"`
	}

	candidateSummary struct {
		PlaceID          string    `json:"placeId"`
		Name             string    `json:"name"`
		FormattedAddress string    `json:"formattedAddress,omitempty"`
		Score            int       `json:"score"`
		Breakdown        Breakdown `json:"breakdown"`
	}

	proposalPayload struct {
		SyncRunID       string  `json:"syncRunId"`
		PlaceID         string  `json:"placeId"`
		ProposedPhone   *string `json:"proposedPhone"`
		ProposedWebsite *string `json:"proposedWebsite"`
		Score           int     `json:"score"`
	}
)

// provenancePayload is hashed for deduplication, so it holds only what
// was observed and never the run id.
type provenancePayload struct {
	PlaceScore      placeScore  `json:"placeScore"`
	Details         PlaceDetail `json:"details"`
	WebsiteVerified bool        `json:"websiteVerified"`
}

type placeScore struct {
	Query             string       `json:"query"`
	SelectedCandidate Candidate    `json:"selectedCandidate"`
	SelectedScore     int          `json:"selectedScore"`
	SelectedBreakdown Breakdown    `json:"selectedBreakdown"`
	WebsiteCheck      Verification `json:"websiteCheck"`
}

func searchQuery(f model.Facility) string {
	parts := make([]string, 0, 3)
	for _, p := range []string{f.Name, f.City, f.State} {
		if p = strings.TrimSpace(p); p != "" {
			parts = append(parts, p)
		}
	}
	return strings.Join(parts, " ")
}

func (s *Syncer) syncFacility(ctx context.Context, runID string, f model.Facility) (facilityResult, error) {
	if !f.Type.Valid() {
		return facilityResult{}, eris.Errorf("unknown facility type %q", f.Type)
	}
	query := searchQuery(f)

	candidates, err := s.places.Search(ctx, query)
	if err != nil {
		return facilityResult{}, eris.Wrap(err, "search places")
	}
	if len(candidates) == 0 {
		return s.enqueue(ctx, f, model.ReasonNoPlaceMatch, noMatchPayload{SyncRunID: runID, Query: query})
	}

	ranked := Rank(f, candidates)
	if Ambiguous(ranked) {
		payload := ambiguousPayload{SyncRunID: runID, Query: query}
		for _, m := range ranked[:min(topCandidates, len(ranked))] {
			payload.Candidates = append(payload.Candidates, candidateSummary{
				PlaceID:          m.Candidate.PlaceID,
				Name:             m.Candidate.Name,
				FormattedAddress: m.Candidate.FormattedAddress,
				Score:            m.Score,
				Breakdown:        m.Breakdown,
			})
		}
		return s.enqueue(ctx, f, model.ReasonMultipleMatches, payload)
	}

	top := ranked[0]
	detail, err := s.places.Detail(ctx, top.Candidate.PlaceID)
	if err != nil {
		return facilityResult{}, eris.Wrap(err, "place details")
	}

	check := s.website.Verify(ctx, f.Name, detail.Website)
	score := clampScore(top.Score + check.ScoreAdjustment)
	tier := Classify(score)
	phone := strings.TrimSpace(detail.Phone)
	website := NormalizeWebsite(detail.Website)

	outcome := Decide(DecisionInput{
		Phone:             phone,
		Website:           website,
		Tier:              tier,
		Score:             score,
		WebsiteOK:         check.OK,
		CurrentTier:       f.CurrentTier,
		CurrentConfidence: f.CurrentConfidence,
		AcceptanceBar:     s.cfg.AcceptanceBarFor(string(f.Type)),
	})

	proposal := proposalPayload{
		SyncRunID:       runID,
		PlaceID:         detail.PlaceID,
		ProposedPhone:   optional(phone),
		ProposedWebsite: optional(website),
		Score:           score,
	}

	switch outcome.Kind {
	case OutcomeQueue:
		return s.enqueue(ctx, f, outcome.Reason, proposal)
	case OutcomeSkipProtected:
		return facilityResult{protected: true}, nil
	}

	method := model.MethodGooglePlaces
	if check.OK {
		method = model.MethodWebsiteVerified
	}
	prov, err := model.NewProvenance(model.SourceGooglePlaces, detail.PlaceID, provenancePayload{
		PlaceScore: placeScore{
			Query:             query,
			SelectedCandidate: top.Candidate,
			SelectedScore:     top.Score,
			SelectedBreakdown: top.Breakdown,
			WebsiteCheck:      check,
		},
		Details:         *detail,
		WebsiteVerified: check.OK,
	})
	if err != nil {
		return facilityResult{}, eris.Wrap(err, "build provenance")
	}
	prov.ObservedPhone = phone
	prov.ObservedWebsite = website
	prov.MatchScore = score

	committed, err := s.store.CommitContact(ctx, model.ContactWrite{
		BuyerID:       f.ID,
		Role:          f.Type.ContactRole(),
		Phone:         phone,
		Website:       website,
		Tier:          outcome.Tier,
		Method:        method,
		Confidence:    score,
		Notes:         fmt.Sprintf("Auto-synced via Google Places (run %s)", runID),
		AcceptanceBar: s.cfg.AcceptanceBarFor(string(f.Type)),
	}, prov)
	if err != nil {
		return facilityResult{}, eris.Wrap(err, "commit contact")
	}
	if committed.Protected {
		return facilityResult{protected: true}, nil
	}

	res := facilityResult{updated: true}
	if outcome.AlsoQueue {
		queued, err := s.enqueue(ctx, f, outcome.Reason, proposal)
		if err != nil {
			return res, err
		}
		res.queued = queued.queued
	}
	return res, nil
}

func (s *Syncer) enqueue(ctx context.Context, f model.Facility, reason model.ReasonCode, payload any) (facilityResult, error) {
	if !reason.Valid() {
		return facilityResult{}, eris.Errorf("unknown review reason %q", reason)
	}
	raw, err := json.Marshal(payload)
	if err != nil {
		return facilityResult{}, eris.Wrap(err, "marshal review payload")
	}
	if err := s.store.EnqueueReview(ctx, f.ID, reason, raw); err != nil {
		return facilityResult{}, eris.Wrapf(err, "enqueue %s review", reason)
	}
	return facilityResult{queued: true}, nil
}

// isFatal reports whether err must abort the whole run rather than count
// against a single facility.
func isFatal(ctx context.Context, err error) bool {
	if ctx.Err() != nil || errors.Is(err, context.Canceled) {
		return true
	}
	if errors.Is(err, google.ErrMissingAPIKey) {
		return true
	}
	var apiErr *google.APIError
	return errors.As(err, &apiErr) && apiErr.Unauthorized()
}

func pause(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

func optional(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
