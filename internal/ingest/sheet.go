package ingest

import (
	"bytes"
	"errors"
	"fmt"
	"strings"

	"crm_assistant_backend/platform/textnorm"

	"github.com/xuri/excelize/v2"
)

// sheet is the first worksheet of a spreadsheet extract, header row first.
type sheet struct {
	header []string
	keys   []string
	rows   [][]string
}

func readSheet(data []byte) (*sheet, error) {
	f, err := excelize.OpenReader(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("open spreadsheet: %w", err)
	}
	defer func() { _ = f.Close() }()

	names := f.GetSheetList()
	if len(names) == 0 {
		return nil, errors.New("spreadsheet has no worksheets")
	}

	rows, err := f.GetRows(names[0], excelize.Options{RawCellValue: true})
	if err != nil {
		return nil, fmt.Errorf("read worksheet %q: %w", names[0], err)
	}
	return newSheet(rows)
}

// newSheet builds a sheet from raw rows (also used for headered delimited files).
func newSheet(rows [][]string) (*sheet, error) {
	if len(rows) == 0 {
		return nil, errors.New("missing header row")
	}
	s := &sheet{header: rows[0], keys: make([]string, len(rows[0]))}
	for i, h := range rows[0] {
		s.keys[i] = textnorm.Key(h)
	}
	for _, r := range rows[1:] {
		if !blank(r) {
			s.rows = append(s.rows, r)
		}
	}
	return s, nil
}

// col returns the index of the first header whose normalized form equals one of
// names (tried in order), or -1.
func (s *sheet) col(names ...string) int {
	for _, name := range names {
		want := textnorm.Key(name)
		for i, k := range s.keys {
			if k == want {
				return i
			}
		}
	}
	return -1
}

// colContaining returns the first header containing fragment after normalization, or -1.
func (s *sheet) colContaining(fragment string) int {
	want := textnorm.Key(fragment)
	for i, k := range s.keys {
		if strings.Contains(k, want) {
			return i
		}
	}
	return -1
}

// cell returns the trimmed value at idx, or "" when idx is -1 or past the row's end.
func cell(row []string, idx int) string {
	if idx < 0 || idx >= len(row) {
		return ""
	}
	return strings.TrimSpace(row[idx])
}
