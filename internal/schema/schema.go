// Package schema defines the column type model and the typed table
// representation shared by the filter, sampling, and export layers.
//
// The schema package is responsible for:
//   - Classifying raw textual columns as text / number / date / unknown
//   - Coercing raw values into typed values across mixed locales
//   - Holding typed rows in a column-aligned layout
//
// Design constraints:
//   - Inference and coercion are best-effort and must never fail a load.
//   - Classification happens once per column at load time; a misread
//     sample yields a misclassified column, which is accepted behavior
//     and kept stable so saved configurations remain compatible.
package schema

import (
	"fmt"
	"strings"
	"time"
)

// ColumnType classifies a column's values. Assigned once at load time.
type ColumnType string

const (
	Text    ColumnType = "text"
	Number  ColumnType = "number"
	Date    ColumnType = "date"
	Unknown ColumnType = "unknown"
)

// Valid reports whether t is one of the known column types.
func (t ColumnType) Valid() bool {
	switch t {
	case Text, Number, Date, Unknown:
		return true
	}
	return false
}

// Row is one record with values aligned to its table's column order.
// Values are string, float64, time.Time, or nil. Rows are value objects:
// the sampling engine copies and tags them but never mutates them.
type Row struct {
	V []any
}

// Table is a typed dataset: an ordered column list, a per-column type
// map, and the coerced rows.
type Table struct {
	Columns []string
	Types   map[string]ColumnType
	Rows    []Row

	colIx map[string]int
}

// NewTable builds an empty typed table for the given columns and types.
// Unknown columns in types are ignored; missing ones default to Unknown.
func NewTable(columns []string, types map[string]ColumnType) *Table {
	t := &Table{
		Columns: append([]string(nil), columns...),
		Types:   make(map[string]ColumnType, len(columns)),
		colIx:   make(map[string]int, len(columns)),
	}
	for i, c := range columns {
		t.colIx[c] = i
		ct, ok := types[c]
		if !ok || !ct.Valid() {
			ct = Unknown
		}
		t.Types[c] = ct
	}
	return t
}

// ColumnIndex returns the position of a column, or -1 when absent.
func (t *Table) ColumnIndex(column string) int {
	if t.colIx == nil {
		t.colIx = make(map[string]int, len(t.Columns))
		for i, c := range t.Columns {
			t.colIx[c] = i
		}
	}
	if i, ok := t.colIx[column]; ok {
		return i
	}
	return -1
}

// Value returns row's value for the named column, or nil when the column
// does not exist or the row is short.
func (t *Table) Value(row Row, column string) any {
	i := t.ColumnIndex(column)
	if i < 0 || i >= len(row.V) {
		return nil
	}
	return row.V[i]
}

// HasColumn reports whether the table carries the named column.
func (t *Table) HasColumn(column string) bool {
	return t.ColumnIndex(column) >= 0
}

// AppendRaw coerces one raw record (aligned to Columns) and appends it.
// Short records are padded with nil; long ones are truncated.
func (t *Table) AppendRaw(raw []string) {
	v := make([]any, len(t.Columns))
	for i, c := range t.Columns {
		if i >= len(raw) {
			v[i] = nil
			continue
		}
		v[i] = ParseValue(raw[i], t.Types[c])
	}
	t.Rows = append(t.Rows, Row{V: v})
}

// Stringify renders a typed value the way the predicate layer compares
// text: numbers keep their Go float formatting, dates render ISO.
func Stringify(v any) string {
	switch x := v.(type) {
	case nil:
		return ""
	case string:
		return x
	case float64:
		return strings.TrimRight(strings.TrimRight(fmt.Sprintf("%f", x), "0"), ".")
	case time.Time:
		return x.Format("2006-01-02")
	default:
		return fmt.Sprint(v)
	}
}
