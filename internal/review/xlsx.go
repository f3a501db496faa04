package review

import (
	"io"

	"github.com/jszwec/csvutil"
	"github.com/rotisserie/eris"
	"github.com/tealeg/xlsx/v2"
)

const sheetName = "Review Queue"

func (r ExportRow) values() []string {
	return []string{
		r.ReviewQueueID, r.BuyerID, r.BuyerName, r.City, r.State, r.ReasonCode,
		r.CurrentPhone, r.CurrentWebsite, r.SuggestedPhone, r.SuggestedWebsite,
		r.ApprovedPhone, r.ApprovedWebsite, r.Notes,
	}
}

// WriteXLSX writes rows to a single-sheet workbook with the same columns as
// the CSV export.
func WriteXLSX(w io.Writer, rows []ExportRow) error {
	header, err := csvutil.Header(ExportRow{}, "csv")
	if err != nil {
		return eris.Wrap(err, "review: xlsx header")
	}

	f := xlsx.NewFile()
	sheet, err := f.AddSheet(sheetName)
	if err != nil {
		return eris.Wrap(err, "review: add sheet")
	}

	addRow(sheet, header)
	for _, r := range rows {
		addRow(sheet, r.values())
	}

	return eris.Wrap(f.Write(w), "review: write xlsx")
}

func addRow(sheet *xlsx.Sheet, cells []string) {
	row := sheet.AddRow()
	for _, v := range cells {
		row.AddCell().SetString(v)
	}
}

// readXLSX returns the first sheet of an XLSX workbook as string rows.
func readXLSX(r io.Reader) ([][]string, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, eris.Wrap(err, "review: read xlsx")
	}
	f, err := xlsx.OpenBinary(data)
	if err != nil {
		return nil, eris.Wrap(err, "review: open xlsx")
	}
	if len(f.Sheets) == 0 {
		return nil, eris.New("review: workbook has no sheets")
	}

	var out [][]string
	for _, row := range f.Sheets[0].Rows {
		cells := make([]string, len(row.Cells))
		for i, c := range row.Cells {
			cells[i] = c.String()
		}
		out = append(out, cells)
	}
	return out, nil
}

// sliceReader feeds pre-read rows to a csvutil.Decoder.
type sliceReader struct {
	rows  [][]string
	width int
}

func (s *sliceReader) Read() ([]string, error) {
	if len(s.rows) == 0 {
		return nil, io.EOF
	}
	row := s.rows[0]
	s.rows = s.rows[1:]
	if s.width == 0 {
		s.width = len(row)
	}
	// Trailing empty cells are dropped by some writers; pad to header width.
	for len(row) < s.width {
		row = append(row, "")
	}
	return row[:s.width], nil
}
