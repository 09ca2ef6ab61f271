package metadata

import (
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/xuri/excelize/v2"
)

// Table is a header row plus data rows, as read from CSV, TSV or XLSX.
// Short rows are padded to the header width.
type Table struct {
	Header []string
	Rows   [][]string
}

// Column returns the index of the first header matching any alias
// (case-insensitive), or -1.
func (t Table) Column(aliases ...string) int {
	for _, alias := range aliases {
		for i, h := range t.Header {
			if strings.EqualFold(strings.TrimSpace(h), alias) {
				return i
			}
		}
	}
	return -1
}

func ReadTable(path string) (Table, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".xlsx", ".xlsm":
		return readXLSX(path)
	case ".tsv":
		return readDelimited(path, '\t')
	default:
		return readDelimited(path, ',')
	}
}

func readXLSX(path string) (Table, error) {
	f, err := excelize.OpenFile(path)
	if err != nil {
		return Table{}, fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close()
	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return Table{}, fmt.Errorf("%s: no sheets", path)
	}
	rows, err := f.GetRows(sheets[0])
	if err != nil {
		return Table{}, fmt.Errorf("read rows %s: %w", path, err)
	}
	return newTable(path, rows)
}

func readDelimited(path string, comma rune) (Table, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Table{}, fmt.Errorf("read %s: %w", path, err)
	}
	r := csv.NewReader(bytes.NewReader(bytes.TrimPrefix(data, []byte("\xef\xbb\xbf"))))
	r.Comma = comma
	r.FieldsPerRecord = -1
	r.LazyQuotes = true
	var rows [][]string
	for {
		rec, err := r.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return Table{}, fmt.Errorf("parse %s: %w", path, err)
		}
		rows = append(rows, rec)
	}
	return newTable(path, rows)
}

func newTable(path string, rows [][]string) (Table, error) {
	if len(rows) == 0 {
		return Table{}, fmt.Errorf("%s: empty table", path)
	}
	header := make([]string, len(rows[0]))
	for i, h := range rows[0] {
		header[i] = strings.TrimSpace(h)
	}
	t := Table{Header: header, Rows: make([][]string, 0, len(rows)-1)}
	for _, r := range rows[1:] {
		if isBlankRow(r) {
			continue
		}
		if len(r) < len(header) {
			padded := make([]string, len(header))
			copy(padded, r)
			r = padded
		}
		t.Rows = append(t.Rows, r)
	}
	return t, nil
}

func isBlankRow(r []string) bool {
	for _, v := range r {
		if strings.TrimSpace(v) != "" {
			return false
		}
	}
	return true
}
