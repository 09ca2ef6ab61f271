package metadata

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/samber/lo"
	"github.com/xuri/excelize/v2"

	"mediabatch/internal/runstore"
)

const (
	TranscriptColumn = "transcript"
	LabelColumn      = "type"
)

// Source is one metadata table tagged with a label such as "creator".
type Source struct {
	Label string
	Path  string
}

type AggregateStats struct {
	Rows    int `json:"rows"`
	Matched int `json:"matched"`
	Missing int `json:"missing"`
}

// ParseSource reads "label=path". A bare path is labelled by its file name.
func ParseSource(raw string) (Source, error) {
	label, p, ok := strings.Cut(raw, "=")
	if !ok {
		p = raw
		label = IDFromPath(raw)
	}
	label = strings.TrimSpace(label)
	p = strings.TrimSpace(p)
	if label == "" || p == "" {
		return Source{}, fmt.Errorf("invalid table %q (expected label=path)", raw)
	}
	return Source{Label: label, Path: p}, nil
}

// LoadTranscripts maps item ids to transcript text across dirs. The id is
// the file name up to its first dot; later dirs win on duplicates.
func LoadTranscripts(dirs ...string) (map[string]string, error) {
	out := make(map[string]string)
	for _, dir := range dirs {
		err := filepath.WalkDir(dir, func(p string, d fs.DirEntry, err error) error {
			if err != nil {
				return err
			}
			name := d.Name()
			if d.IsDir() {
				if p != dir && strings.HasPrefix(name, ".") {
					return filepath.SkipDir
				}
				return nil
			}
			if strings.HasPrefix(name, ".") || strings.ToLower(filepath.Ext(name)) != ".txt" {
				return nil
			}
			data, err := os.ReadFile(p)
			if err != nil {
				return err
			}
			id, _, _ := strings.Cut(name, ".")
			out[id] = string(data)
			return nil
		})
		if err != nil {
			return nil, fmt.Errorf("load transcripts from %s: %w", dir, err)
		}
	}
	return out, nil
}

// Aggregate joins transcripts onto each source table by id and writes the
// concatenation to outPath (CSV, or XLSX by extension). Columns are the
// union of all table headers in first-seen order, then transcript and label.
func Aggregate(sources []Source, transcripts map[string]string, outPath string) (AggregateStats, error) {
	if len(sources) == 0 {
		return AggregateStats{}, fmt.Errorf("at least one table is required")
	}
	tables := make([]Table, len(sources))
	var header []string
	for i, src := range sources {
		t, err := ReadTable(src.Path)
		if err != nil {
			return AggregateStats{}, err
		}
		if t.Column(idAliases...) < 0 {
			return AggregateStats{}, fmt.Errorf("%s: no id column (expected one of %s)", src.Path, strings.Join(idAliases, ", "))
		}
		tables[i] = t
		header = append(header, t.Header...)
	}
	header = lo.Uniq(lo.Without(header, TranscriptColumn, LabelColumn))

	stats := AggregateStats{}
	rows := [][]string{append(slices.Clone(header), TranscriptColumn, LabelColumn)}
	for i, t := range tables {
		idCol := t.Column(idAliases...)
		pos := make(map[string]int, len(t.Header))
		for j, h := range t.Header {
			if _, seen := pos[h]; !seen {
				pos[h] = j
			}
		}
		for _, r := range t.Rows {
			out := make([]string, len(header), len(header)+2)
			for k, h := range header {
				if j, ok := pos[h]; ok && j < len(r) {
					out[k] = r[j]
				}
			}
			text, ok := transcripts[cell(r, idCol)]
			if ok {
				stats.Matched++
			} else {
				stats.Missing++
			}
			rows = append(rows, append(out, text, sources[i].Label))
			stats.Rows++
		}
	}

	var (
		data []byte
		err  error
	)
	switch strings.ToLower(filepath.Ext(outPath)) {
	case ".xlsx":
		data, err = encodeXLSX(rows)
	default:
		data, err = encodeCSV(rows)
	}
	if err != nil {
		return AggregateStats{}, err
	}
	if err := runstore.WriteBytes(outPath, data); err != nil {
		return AggregateStats{}, err
	}
	return stats, nil
}

func encodeCSV(rows [][]string) ([]byte, error) {
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	if err := w.WriteAll(rows); err != nil {
		return nil, fmt.Errorf("encode csv: %w", err)
	}
	return buf.Bytes(), nil
}

func encodeXLSX(rows [][]string) ([]byte, error) {
	f := excelize.NewFile()
	defer f.Close()
	sheet := f.GetSheetName(0)
	for i, r := range rows {
		cellName, err := excelize.CoordinatesToCellName(1, i+1)
		if err != nil {
			return nil, err
		}
		values := lo.Map(r, func(v string, _ int) any { return v })
		if err := f.SetSheetRow(sheet, cellName, &values); err != nil {
			return nil, fmt.Errorf("write row %d: %w", i+1, err)
		}
	}
	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, fmt.Errorf("encode xlsx: %w", err)
	}
	return buf.Bytes(), nil
}
