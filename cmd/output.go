package main

import (
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"text/tabwriter"
	"time"

	"github.com/rotisserie/eris"
	"gopkg.in/yaml.v3"

	"github.com/sells-group/buyer-sync/internal/model"
)

// writeStructured encodes v as indented JSON or YAML.
func writeStructured(w io.Writer, format string, v any) error {
	switch format {
	case "json", "":
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return eris.Wrap(enc.Encode(v), "encode json")
	case "yaml":
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(v); err != nil {
			return eris.Wrap(err, "encode yaml")
		}
		return eris.Wrap(enc.Close(), "close yaml encoder")
	default:
		return eris.Errorf("unsupported output format %q (want json or yaml)", format)
	}
}

// formatRunsList writes a tabular list of sync runs to w.
func formatRunsList(out io.Writer, runs []model.SyncRun) {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(w, "ID\tSTATUS\tSTARTED\tDURATION\tPROCESSED\tUPDATED\tREVIEW\tERRORS\tSKIPPED")
	_, _ = fmt.Fprintln(w, "--\t------\t-------\t--------\t---------\t-------\t------\t------\t-------")

	for _, r := range runs {
		dur := "-"
		if r.EndedAt != nil {
			dur = r.EndedAt.Sub(r.StartedAt).Round(time.Second).String()
		}
		c := r.Counts
		_, _ = fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%d\t%d\t%d\t%d\t%d\n",
			truncateID(r.ID),
			r.Status,
			r.StartedAt.Format("2006-01-02 15:04"),
			dur,
			c.Processed, c.Updated, c.Reviewed, c.Errored, c.SkippedVerified,
		)
	}
	_ = w.Flush()
}

// formatReport writes a human-readable verification report to w.
func formatReport(out io.Writer, r *model.VerificationReport) {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)

	_, _ = fmt.Fprintln(w, "Contacts by tier (active buyers):")
	tiers := make([]string, 0, len(r.TierCounts))
	for t := range r.TierCounts {
		tiers = append(tiers, t)
	}
	sort.Strings(tiers)
	for _, t := range tiers {
		_, _ = fmt.Fprintf(w, "  %s:\t%d\n", t, r.TierCounts[t])
	}

	_, _ = fmt.Fprintf(w, "Open review items:\t%d\n", r.OpenReviewCount)
	_, _ = fmt.Fprintf(w, "Coverage (%s):\t%d/%d (%.0f%%)\n", r.Scope, r.CoveredBuyers, r.TotalBuyers, r.CoveragePct)

	if r.LatestRun != nil {
		lr := r.LatestRun
		_, _ = fmt.Fprintf(w, "Latest sync run:\t%s %s at %s\n", truncateID(lr.ID), lr.Status, lr.StartedAt.Format("2006-01-02 15:04"))
		_, _ = fmt.Fprintf(w, "  processed/updated/review/errors:\t%d/%d/%d/%d\n",
			lr.Counts.Processed, lr.Counts.Updated, lr.Counts.Reviewed, lr.Counts.Errored)
	} else {
		_, _ = fmt.Fprintln(w, "Latest sync run:\tnone")
	}
	_ = w.Flush()
}

// truncateID returns the first 8 characters of a UUID for compact display.
func truncateID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
