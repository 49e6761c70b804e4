// Package export writes sampling results as CSV, either one aggregate
// file with a leading rule column or one file per rule partition.
//
// Rendering is locale-formatted for the audit workflow the tool serves:
// numbers use a comma decimal separator and dates render DD-MM-YYYY.
// Files are written to a temporary path and renamed on completion, so a
// failed export never leaves a half-written file that looks complete.
package export

import (
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"auditsample/internal/sampling"
	"auditsample/internal/schema"
)

// Options control CSV rendering.
type Options struct {
	// Delimiter defaults to ';', the delimiter of the source exports.
	Delimiter rune
}

func (o Options) delimiter() rune {
	if o.Delimiter == 0 {
		return ';'
	}
	return o.Delimiter
}

// WriteAggregate writes all results to one CSV at path, with a leading
// "rule" column followed by the dataset columns in order.
func WriteAggregate(path string, t *schema.Table, results []sampling.Result, opt Options) error {
	header := append([]string{"rule"}, t.Columns...)
	records := make([][]string, 0, len(results))
	for _, res := range results {
		rec := make([]string, 0, len(header))
		rec = append(rec, res.Rule)
		rec = append(rec, renderRow(t, res.Row)...)
		records = append(records, rec)
	}
	return writeCSV(path, header, records, opt.delimiter())
}

// WriteByRule writes one CSV per rule-name partition into dir, named
// after the sanitized rule name. It returns the number of files
// written. Partitions keep the engine's result order.
func WriteByRule(dir string, t *schema.Table, results []sampling.Result, opt Options) (int, error) {
	order := make([]string, 0)
	byRule := make(map[string][]sampling.Result)
	for _, res := range results {
		if _, ok := byRule[res.Rule]; !ok {
			order = append(order, res.Rule)
		}
		byRule[res.Rule] = append(byRule[res.Rule], res)
	}

	for _, name := range order {
		records := make([][]string, 0, len(byRule[name]))
		for _, res := range byRule[name] {
			records = append(records, renderRow(t, res.Row))
		}
		path := filepath.Join(dir, SafeFileName(name)+".csv")
		if err := writeCSV(path, t.Columns, records, opt.delimiter()); err != nil {
			return 0, fmt.Errorf("export rule %q: %w", name, err)
		}
	}
	return len(order), nil
}

// renderRow formats one typed row for CSV output.
func renderRow(t *schema.Table, row schema.Row) []string {
	out := make([]string, len(t.Columns))
	for i, col := range t.Columns {
		out[i] = renderValue(t.Value(row, col), t.Types[col])
	}
	return out
}

func renderValue(v any, ct schema.ColumnType) string {
	if v == nil {
		return ""
	}
	switch ct {
	case schema.Number:
		if f, ok := v.(float64); ok {
			s := strconv.FormatFloat(f, 'f', -1, 64)
			return strings.Replace(s, ".", ",", 1)
		}
	case schema.Date:
		if d, ok := v.(time.Time); ok {
			return d.Format("02-01-2006")
		}
	}
	return schema.Stringify(v)
}

// SafeFileName strips characters that cannot appear in a file name,
// keeping letters, digits, spaces, hyphens, and underscores.
func SafeFileName(name string) string {
	var b strings.Builder
	for _, r := range name {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
			b.WriteRune(r)
		case r == ' ' || r == '-' || r == '_':
			b.WriteRune(r)
		}
	}
	out := strings.TrimRight(b.String(), " ")
	if out == "" {
		out = "rule"
	}
	return out
}

func writeCSV(path string, header []string, records [][]string, delim rune) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), "."+filepath.Base(path)+".tmp-*")
	if err != nil {
		return fmt.Errorf("export: %w", err)
	}
	defer os.Remove(tmp.Name())

	w := csv.NewWriter(tmp)
	w.Comma = delim

	if err := w.Write(header); err != nil {
		tmp.Close()
		return fmt.Errorf("export: write header: %w", err)
	}
	for _, rec := range records {
		if err := w.Write(rec); err != nil {
			tmp.Close()
			return fmt.Errorf("export: write record: %w", err)
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		tmp.Close()
		return fmt.Errorf("export: flush: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("export: %w", err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("export: %w", err)
	}
	return nil
}
