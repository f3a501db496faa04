package main

import (
	"bytes"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/buyer-sync/internal/model"
)

func testSummary() *model.SyncSummary {
	start := time.Date(2026, 3, 2, 14, 0, 0, 0, time.UTC)
	return &model.SyncSummary{
		RunCounts:    model.RunCounts{Processed: 12, Updated: 7, Reviewed: 4, Errored: 1, SkippedVerified: 2},
		SyncRunID:    "0f8c2a4e-1111-2222-3333-444444444444",
		StartedAt:    start,
		EndedAt:      start.Add(90 * time.Second),
		Status:       model.RunStatusPartial,
		SampleErrors: []string{"CHS Fargo (Fargo, ND): boom"},
	}
}

func TestWriteStructured_JSON(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, writeStructured(&buf, "json", testSummary()))

	out := buf.String()
	assert.Contains(t, out, `"processedCount": 12`)
	assert.Contains(t, out, `"skippedVerifiedCount": 2`)
	assert.Contains(t, out, `"status": "partial"`)
	assert.Contains(t, out, `"syncRunId": "0f8c2a4e-1111-2222-3333-444444444444"`)
}

func TestWriteStructured_YAML(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, writeStructured(&buf, "yaml", testSummary()))

	out := buf.String()
	assert.Contains(t, out, "processed_count: 12")
	assert.Contains(t, out, "status: partial")
	assert.Contains(t, out, "CHS Fargo (Fargo, ND): boom")
}

func TestWriteStructured_UnknownFormat(t *testing.T) {
	var buf bytes.Buffer
	err := writeStructured(&buf, "xml", testSummary())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unsupported output format")
}

func TestFormatRunsList(t *testing.T) {
	start := time.Date(2026, 3, 2, 14, 0, 0, 0, time.UTC)
	end := start.Add(2 * time.Minute)
	runs := []model.SyncRun{
		{
			ID:        "abc12345-6789-0000-0000-000000000000",
			Status:    model.RunStatusSuccess,
			StartedAt: start,
			EndedAt:   &end,
			Counts:    model.RunCounts{Processed: 40, Updated: 30, Reviewed: 10},
		},
		{
			ID:        "def12345-6789-0000-0000-000000000000",
			Status:    model.RunStatusRunning,
			StartedAt: start.Add(time.Hour),
		},
	}

	var buf bytes.Buffer
	formatRunsList(&buf, runs)

	out := buf.String()
	assert.Contains(t, out, "STATUS")
	assert.Contains(t, out, "abc12345")
	assert.NotContains(t, out, "abc12345-6789")
	assert.Contains(t, out, "success")
	assert.Contains(t, out, "2m0s")
	assert.Contains(t, out, "running")
	assert.Contains(t, out, "2026-03-02 14:00")
}

func TestFormatReport(t *testing.T) {
	report := &model.VerificationReport{
		Scope:           "corridor",
		TierCounts:      map[string]int{"verified": 120, "needs_review": 30, "none": 8},
		OpenReviewCount: 17,
		TotalBuyers:     150,
		CoveredBuyers:   138,
		CoveragePct:     92,
	}

	var buf bytes.Buffer
	formatReport(&buf, report)

	out := buf.String()
	assert.Contains(t, out, "verified:")
	assert.Contains(t, out, "120")
	assert.Contains(t, out, "Open review items:")
	assert.Contains(t, out, "138/150 (92%)")
	assert.Contains(t, out, "none")
}

func TestTruncateID(t *testing.T) {
	assert.Equal(t, "abc12345", truncateID("abc12345-6789"))
	assert.Equal(t, "short", truncateID("short"))
}
