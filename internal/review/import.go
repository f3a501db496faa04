package review

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/jszwec/csvutil"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/buyer-sync/internal/contacts"
	"github.com/sells-group/buyer-sync/internal/model"
	"github.com/sells-group/buyer-sync/internal/store"
)

const (
	// ResolvedBy is recorded on review items closed by an import.
	ResolvedBy   = "manual_csv_import"
	defaultNotes = "Approved via review CSV import"
	maxErrorList = 20
)

var (
	// ErrMissingColumn is returned when a review sheet lacks a required column.
	ErrMissingColumn = eris.New("review: missing required column")
	// ErrNoDataRows is returned for a review sheet with no rows below the header.
	ErrNoDataRows = eris.New("review: sheet has no data rows")
)

var requiredColumns = []string{"reviewQueueId", "buyerId", "approvedPhone", "approvedWebsite"}

// ImportRow is the subset of review sheet columns an import reads.
type ImportRow struct {
	ReviewQueueID   string `csv:"reviewQueueId"`
	BuyerID         string `csv:"buyerId"`
	ApprovedPhone   string `csv:"approvedPhone"`
	ApprovedWebsite string `csv:"approvedWebsite"`
	Notes           string `csv:"notes"`
}

// ImportResult tallies an import.
type ImportResult struct {
	Applied int      `json:"applied" yaml:"applied"`
	Skipped int      `json:"skipped" yaml:"skipped"`
	Errored int      `json:"errored" yaml:"errored"`
	Errors  []string `json:"errors,omitempty" yaml:"errors,omitempty"`
}

// manualPayload is the provenance payload of an approved row.
type manualPayload struct {
	ReviewQueueID   string `json:"reviewQueueId"`
	BuyerID         string `json:"buyerId"`
	ApprovedPhone   string `json:"approvedPhone,omitempty"`
	ApprovedWebsite string `json:"approvedWebsite,omitempty"`
	Notes           string `json:"notes"`
}

// ReadRows decodes a review sheet.
func ReadRows(r io.Reader, format Format) ([]ImportRow, error) {
	var reader csvutil.Reader
	switch format {
	case FormatXLSX:
		rows, err := readXLSX(r)
		if err != nil {
			return nil, err
		}
		reader = &sliceReader{rows: rows}
	default:
		cr := csv.NewReader(r)
		cr.FieldsPerRecord = -1
		cr.TrimLeadingSpace = true
		reader = cr
	}

	dec, err := csvutil.NewDecoder(reader)
	if errors.Is(err, io.EOF) {
		return nil, ErrNoDataRows
	}
	if err != nil {
		return nil, eris.Wrap(err, "review: read header")
	}
	if err := checkHeader(dec.Header()); err != nil {
		return nil, err
	}

	var out []ImportRow
	for {
		var row ImportRow
		if err := dec.Decode(&row); err != nil {
			if errors.Is(err, io.EOF) {
				break
			}
			return nil, eris.Wrapf(err, "review: decode row %d", len(out)+2)
		}
		out = append(out, row)
	}
	if len(out) == 0 {
		return nil, ErrNoDataRows
	}
	return out, nil
}

// checkHeader rejects sheets missing a column an import needs. Notes is
// optional.
func checkHeader(header []string) error {
	present := make(map[string]bool, len(header))
	for _, h := range header {
		present[h] = true
	}
	var missing []string
	for _, col := range requiredColumns {
		if !present[col] {
			missing = append(missing, col)
		}
	}
	if len(missing) > 0 {
		return eris.Wrapf(ErrMissingColumn, "%s", strings.Join(missing, ", "))
	}
	return nil
}

// Importer applies approved review rows.
type Importer struct {
	store store.Store
}

// NewImporter creates an Importer.
func NewImporter(st store.Store) *Importer {
	return &Importer{store: st}
}

// Import applies every approved row. sourceRef names the sheet and is
// recorded on each provenance entry. A failing row is counted and the import
// moves on; only a cancelled ctx stops it early.
func (im *Importer) Import(ctx context.Context, rows []ImportRow, sourceRef string) (*ImportResult, error) {
	log := zap.L().With(zap.String("component", "review.import"), zap.String("source", sourceRef))
	res := &ImportResult{}

	for i, row := range rows {
		if err := ctx.Err(); err != nil {
			return res, eris.Wrap(err, "review: import interrupted")
		}

		row = cleanRow(row)
		if row.ReviewQueueID == "" || row.BuyerID == "" ||
			(row.ApprovedPhone == "" && row.ApprovedWebsite == "") {
			res.Skipped++
			continue
		}

		if err := im.apply(ctx, row, sourceRef); err != nil {
			res.Errored++
			if len(res.Errors) < maxErrorList {
				res.Errors = append(res.Errors, fmt.Sprintf("row %d (%s): %s", i+2, row.ReviewQueueID, err.Error()))
			}
			log.Warn("review row failed",
				zap.String("review_id", row.ReviewQueueID),
				zap.String("buyer_id", row.BuyerID),
				zap.Bool("unknown_buyer", errors.Is(err, store.ErrBuyerNotFound)),
				zap.Error(err),
			)
			continue
		}
		res.Applied++
	}

	log.Info("review import complete",
		zap.Int("applied", res.Applied),
		zap.Int("skipped", res.Skipped),
		zap.Int("errored", res.Errored),
	)
	return res, nil
}

func (im *Importer) apply(ctx context.Context, row ImportRow, sourceRef string) error {
	prov, err := model.NewProvenance(model.SourceManualReview, sourceRef, manualPayload{
		ReviewQueueID:   row.ReviewQueueID,
		BuyerID:         row.BuyerID,
		ApprovedPhone:   row.ApprovedPhone,
		ApprovedWebsite: row.ApprovedWebsite,
		Notes:           row.Notes,
	})
	if err != nil {
		return eris.Wrap(err, "build provenance")
	}
	prov.ObservedPhone = row.ApprovedPhone
	prov.ObservedWebsite = row.ApprovedWebsite
	prov.MatchScore = 100

	return im.store.ResolveReview(ctx, model.ReviewResolution{
		ReviewID:        row.ReviewQueueID,
		BuyerID:         row.BuyerID,
		ApprovedPhone:   row.ApprovedPhone,
		ApprovedWebsite: row.ApprovedWebsite,
		Notes:           row.Notes,
		SourceRef:       sourceRef,
		ResolvedBy:      ResolvedBy,
	}, prov)
}

func cleanRow(row ImportRow) ImportRow {
	row.ReviewQueueID = strings.TrimSpace(row.ReviewQueueID)
	row.BuyerID = strings.TrimSpace(row.BuyerID)
	row.ApprovedPhone = strings.TrimSpace(row.ApprovedPhone)
	row.ApprovedWebsite = strings.TrimSpace(row.ApprovedWebsite)
	if site := contacts.NormalizeWebsite(row.ApprovedWebsite); site != "" {
		row.ApprovedWebsite = site
	}
	row.Notes = strings.TrimSpace(row.Notes)
	if row.Notes == "" {
		row.Notes = defaultNotes
	}
	return row
}
