// Package review moves the human review queue in and out of spreadsheets:
// open items are exported for reviewers, and approved rows are imported back
// as verified contacts.
package review

import (
	"context"
	"encoding/csv"
	"encoding/json"
	"io"
	"path/filepath"
	"strings"

	"github.com/jszwec/csvutil"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/buyer-sync/internal/model"
	"github.com/sells-group/buyer-sync/internal/store"
)

// Format is a review sheet file format.
type Format string

const (
	FormatCSV  Format = "csv"
	FormatXLSX Format = "xlsx"
)

// ParseFormat validates a format name.
func ParseFormat(s string) (Format, error) {
	switch f := Format(strings.ToLower(strings.TrimSpace(s))); f {
	case FormatCSV, FormatXLSX:
		return f, nil
	default:
		return "", eris.Errorf("review: unsupported format %q", s)
	}
}

// FormatForPath picks the format from a file extension, defaulting to CSV.
func FormatForPath(path string) Format {
	if strings.EqualFold(filepath.Ext(path), ".xlsx") {
		return FormatXLSX
	}
	return FormatCSV
}

// ExportRow is one line of the review sheet. The approved and notes columns
// are left empty for the reviewer.
type ExportRow struct {
	ReviewQueueID    string `csv:"reviewQueueId"`
	BuyerID          string `csv:"buyerId"`
	BuyerName        string `csv:"buyerName"`
	City             string `csv:"city"`
	State            string `csv:"state"`
	ReasonCode       string `csv:"reasonCode"`
	CurrentPhone     string `csv:"currentPhone"`
	CurrentWebsite   string `csv:"currentWebsite"`
	SuggestedPhone   string `csv:"suggestedPhone"`
	SuggestedWebsite string `csv:"suggestedWebsite"`
	ApprovedPhone    string `csv:"approvedPhone"`
	ApprovedWebsite  string `csv:"approvedWebsite"`
	Notes            string `csv:"notes"`
}

// suggestion is the part of a candidate payload that proposes contact values.
type suggestion struct {
	ProposedPhone   string `json:"proposedPhone"`
	ProposedWebsite string `json:"proposedWebsite"`
}

// BuildRows converts open review items to sheet rows.
func BuildRows(items []model.ReviewRow) []ExportRow {
	rows := make([]ExportRow, 0, len(items))
	for _, it := range items {
		var s suggestion
		if len(it.Candidate) > 0 {
			if err := json.Unmarshal(it.Candidate, &s); err != nil {
				zap.L().Debug("review: unreadable candidate payload",
					zap.String("review_id", it.ReviewID), zap.Error(err))
			}
		}
		rows = append(rows, ExportRow{
			ReviewQueueID:    it.ReviewID,
			BuyerID:          it.BuyerID,
			BuyerName:        it.BuyerName,
			City:             it.City,
			State:            it.State,
			ReasonCode:       string(it.Reason),
			CurrentPhone:     it.CurrentPhone,
			CurrentWebsite:   it.CurrentWebsite,
			SuggestedPhone:   s.ProposedPhone,
			SuggestedWebsite: s.ProposedWebsite,
		})
	}
	return rows
}

// Export writes every open review item to w and returns the row count.
func Export(ctx context.Context, st store.Store, w io.Writer, format Format) (int, error) {
	items, err := st.ListOpenReviews(ctx)
	if err != nil {
		return 0, eris.Wrap(err, "review: list open reviews")
	}
	rows := BuildRows(items)

	switch format {
	case FormatXLSX:
		err = WriteXLSX(w, rows)
	default:
		err = WriteCSV(w, rows)
	}
	if err != nil {
		return 0, err
	}

	zap.L().Info("review queue exported", zap.Int("rows", len(rows)), zap.String("format", string(format)))
	return len(rows), nil
}

// WriteCSV writes rows with a header line. An empty sheet still gets the
// header.
func WriteCSV(w io.Writer, rows []ExportRow) error {
	cw := csv.NewWriter(w)
	enc := csvutil.NewEncoder(cw)

	var err error
	if len(rows) == 0 {
		err = enc.EncodeHeader(ExportRow{})
	} else {
		err = enc.Encode(rows)
	}
	if err != nil {
		return eris.Wrap(err, "review: encode csv")
	}

	cw.Flush()
	return eris.Wrap(cw.Error(), "review: flush csv")
}
