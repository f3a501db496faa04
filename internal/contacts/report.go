package contacts

import (
	"context"
	"math"

	"github.com/rotisserie/eris"
	"golang.org/x/sync/errgroup"

	"github.com/sells-group/buyer-sync/internal/model"
	"github.com/sells-group/buyer-sync/internal/store"
)

// BuildReport summarizes contact coverage for scope along with the most
// recent sync run.
func BuildReport(ctx context.Context, st store.Store, scope string) (*model.VerificationReport, error) {
	report := &model.VerificationReport{Scope: scope}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		counts, err := st.CountByTier(gctx)
		if err != nil {
			return eris.Wrap(err, "contacts: count by tier")
		}
		report.TierCounts = counts
		return nil
	})
	g.Go(func() error {
		n, err := st.CountOpenReviews(gctx)
		if err != nil {
			return eris.Wrap(err, "contacts: count open reviews")
		}
		report.OpenReviewCount = n
		return nil
	})
	g.Go(func() error {
		total, covered, err := st.ScopeCoverage(gctx, scope)
		if err != nil {
			return eris.Wrap(err, "contacts: scope coverage")
		}
		report.TotalBuyers = total
		report.CoveredBuyers = covered
		return nil
	})
	g.Go(func() error {
		runs, err := st.ListSyncRuns(gctx, 1)
		if err != nil {
			return eris.Wrap(err, "contacts: latest sync run")
		}
		if len(runs) > 0 {
			report.LatestRun = &runs[0]
		}
		return nil
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	report.CoveragePct = CoveragePct(report.CoveredBuyers, report.TotalBuyers)
	return report, nil
}

// CoveragePct is covered/total as a whole percentage, 0 when total is 0.
func CoveragePct(covered, total int) float64 {
	if total == 0 {
		return 0
	}
	return math.Round(float64(covered) / float64(total) * 100)
}
