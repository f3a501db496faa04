package model

import "time"

// SyncJobType is the job type recorded for buyer contact sync runs.
const SyncJobType = "buyer_contact_sync"

// RunStatus is the lifecycle state of a sync run.
type RunStatus string

const (
	RunStatusRunning RunStatus = "running"
	RunStatusSuccess RunStatus = "success"
	RunStatusPartial RunStatus = "partial"
	RunStatusFailed  RunStatus = "failed"
)

// Valid reports whether s is a known run status.
func (s RunStatus) Valid() bool {
	switch s {
	case RunStatusRunning, RunStatusSuccess, RunStatusPartial, RunStatusFailed:
		return true
	default:
		return false
	}
}

// Terminal reports whether s is a final status.
func (s RunStatus) Terminal() bool {
	return s == RunStatusSuccess || s == RunStatusPartial || s == RunStatusFailed
}

// RunCounts are the per-run tallies.
type RunCounts struct {
	Processed       int `json:"processedCount" yaml:"processed_count"`
	Updated         int `json:"updatedCount" yaml:"updated_count"`
	Reviewed        int `json:"reviewCount" yaml:"review_count"`
	Errored         int `json:"errorCount" yaml:"error_count"`
	SkippedVerified int `json:"skippedVerifiedCount" yaml:"skipped_verified_count"`
}

// SyncSummary is the result of a sync run. It is also stored as the run's
// summary JSON.
type SyncSummary struct {
	RunCounts `yaml:",inline"`

	SyncRunID    string    `json:"syncRunId" yaml:"sync_run_id"`
	StartedAt    time.Time `json:"startedAt" yaml:"started_at"`
	EndedAt      time.Time `json:"endedAt" yaml:"ended_at"`
	Status       RunStatus `json:"status" yaml:"status"`
	SampleErrors []string  `json:"sampleErrors" yaml:"sample_errors"`
}

// StatusFor derives a finished run's status from its counts.
func StatusFor(c RunCounts) RunStatus {
	switch {
	case c.Errored == 0:
		return RunStatusSuccess
	case c.Updated > 0 || c.Reviewed > 0:
		return RunStatusPartial
	default:
		return RunStatusFailed
	}
}

// SyncRun is a row of the sync_runs table.
type SyncRun struct {
	ID        string       `json:"id" yaml:"id"`
	JobType   string       `json:"jobType" yaml:"job_type"`
	Status    RunStatus    `json:"status" yaml:"status"`
	StartedAt time.Time    `json:"startedAt" yaml:"started_at"`
	EndedAt   *time.Time   `json:"endedAt,omitempty" yaml:"ended_at,omitempty"`
	Counts    RunCounts    `json:"counts" yaml:"counts"`
	Summary   *SyncSummary `json:"summary,omitempty" yaml:"summary,omitempty"`
}

// VerificationReport summarizes contact coverage for a launch scope.
type VerificationReport struct {
	Scope           string         `json:"scope" yaml:"scope"`
	TierCounts      map[string]int `json:"tierCounts" yaml:"tier_counts"`
	OpenReviewCount int            `json:"openReviewCount" yaml:"open_review_count"`
	TotalBuyers     int            `json:"totalBuyers" yaml:"total_buyers"`
	CoveredBuyers   int            `json:"coveredBuyers" yaml:"covered_buyers"`
	CoveragePct     float64        `json:"coveragePct" yaml:"coverage_pct"`
	LatestRun       *SyncRun       `json:"latestRun,omitempty" yaml:"latest_run,omitempty"`
}
