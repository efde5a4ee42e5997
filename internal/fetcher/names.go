package fetcher

import (
	"context"
	"encoding/csv"
	"io"
	"os"
	"strings"

	"github.com/rotisserie/eris"
	"github.com/tealeg/xlsx/v2"
	"golang.org/x/text/encoding/htmlindex"
)

// nameHeaders are the column headers recognized as the company-name column,
// compared case-insensitively.
var nameHeaders = map[string]bool{
	"name":         true,
	"company":      true,
	"company_name": true,
	"company name": true,
}

// Names loads the company-name list behind ref. The format is picked from
// the file extension: .xlsx parses as a workbook, everything else as CSV.
// charset names a source text encoding for CSV ("" means UTF-8).
func (s *Source) Names(ctx context.Context, ref, charset string) ([]string, error) {
	rc, ext, err := s.Open(ctx, ref)
	if err != nil {
		return nil, err
	}
	defer rc.Close() //nolint:errcheck

	if ext == ".xlsx" {
		// The workbook parser needs a seekable file.
		tmp, err := os.CreateTemp("", "import-*.xlsx")
		if err != nil {
			return nil, eris.Wrap(err, "fetcher: create temp file")
		}
		defer os.Remove(tmp.Name()) //nolint:errcheck
		if _, err := io.Copy(tmp, rc); err != nil {
			tmp.Close() //nolint:errcheck
			return nil, eris.Wrap(err, "fetcher: buffer workbook")
		}
		if err := tmp.Close(); err != nil {
			return nil, eris.Wrap(err, "fetcher: close temp file")
		}
		return ReadNamesXLSX(tmp.Name())
	}

	return ReadNamesCSV(rc, charset)
}

// ReadNamesCSV extracts company names from CSV content. When the first row
// carries a recognized name header, that column is used; otherwise the first
// column is. Blank names are skipped and duplicates collapsed, first
// occurrence wins.
func ReadNamesCSV(r io.Reader, charset string) ([]string, error) {
	if charset != "" {
		enc, err := htmlindex.Get(charset)
		if err != nil {
			return nil, eris.Wrapf(err, "fetcher: unsupported charset %q", charset)
		}
		r = enc.NewDecoder().Reader(r)
	}

	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	reader.LazyQuotes = true

	var names []string
	seen := make(map[string]bool)
	col := 0
	first := true
	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, eris.Wrap(err, "fetcher: read csv row")
		}

		if first {
			first = false
			if idx, ok := nameColumn(record); ok {
				col = idx
				continue
			}
		}

		if col >= len(record) {
			continue
		}
		name := strings.TrimSpace(record[col])
		if name == "" || seen[name] {
			continue
		}
		seen[name] = true
		names = append(names, name)
	}
	return names, nil
}

// ReadNamesXLSX extracts company names from the first sheet of a workbook,
// with the same header and dedupe rules as CSV.
func ReadNamesXLSX(path string) ([]string, error) {
	f, err := xlsx.OpenFile(path)
	if err != nil {
		return nil, eris.Wrap(err, "fetcher: open workbook")
	}
	if len(f.Sheets) == 0 {
		return nil, eris.New("fetcher: workbook has no sheets")
	}
	sheet := f.Sheets[0]

	var names []string
	seen := make(map[string]bool)
	col := 0
	for i, row := range sheet.Rows {
		cells := make([]string, len(row.Cells))
		for j, cell := range row.Cells {
			cells[j] = cell.String()
		}

		if i == 0 {
			if idx, ok := nameColumn(cells); ok {
				col = idx
				continue
			}
		}

		if col >= len(cells) {
			continue
		}
		name := strings.TrimSpace(cells[col])
		if name == "" || seen[name] {
			continue
		}
		seen[name] = true
		names = append(names, name)
	}
	return names, nil
}

func nameColumn(header []string) (int, bool) {
	for i, h := range header {
		if nameHeaders[strings.ToLower(strings.TrimSpace(h))] {
			return i, true
		}
	}
	return 0, false
}
