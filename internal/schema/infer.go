package schema

import (
	"strconv"
	"strings"
	"time"
)

// dateLayouts is the fixed, ordered list of supported date formats.
// Order matters: parsing returns the first layout that succeeds, so
// ambiguous values (e.g. 03/04/2024) resolve European-first. The list,
// its order, and the 20-value inference cap are load-bearing: existing
// saved configurations carry column types derived under exactly these
// rules.
var dateLayouts = []string{
	"2006-01-02",
	"02-01-2006",
	"02/01/2006",
	"02.01.2006",
	"2006/01/02",
	"2006.01.02",
	"01/02/2006",
	"01-02-2006",
	"01.02.2006",
}

// inferSampleCap bounds how many non-blank values type inference looks at.
const inferSampleCap = 20

// InferColumnType classifies a column from a sample of its raw values.
//
// Algorithm (deterministic, order-sensitive):
//  1. Blank values are discarded; an all-blank sample yields Unknown.
//  2. Up to the first 20 non-blank values are tested against the date
//     layouts, first-match per value. Strictly more than 50% parsing as
//     dates classifies the column as Date.
//  3. Otherwise the same values are tested as numbers after locale
//     normalization; strictly more than 50% classifies as Number.
//  4. Otherwise Text.
//
// The threshold applies to the sample, not the full column. A column
// whose first 20 values are atypical can be misclassified; that is
// accepted, stable behavior rather than a defect.
func InferColumnType(sample []string) ColumnType {
	vals := make([]string, 0, inferSampleCap)
	for _, s := range sample {
		if strings.TrimSpace(s) == "" {
			continue
		}
		vals = append(vals, s)
		if len(vals) >= inferSampleCap {
			break
		}
	}
	if len(vals) == 0 {
		return Unknown
	}

	dates := 0
	for _, v := range vals {
		if _, ok := parseDate(v); ok {
			dates++
		}
	}
	if dates*2 > len(vals) {
		return Date
	}

	numbers := 0
	for _, v := range vals {
		if _, ok := parseNumber(v); ok {
			numbers++
		}
	}
	if numbers*2 > len(vals) {
		return Number
	}

	return Text
}

// ParseValue coerces a raw value according to the column type.
// It never fails: blank input and unparseable values yield nil, and
// Text/Unknown columns pass the raw string through unchanged.
func ParseValue(raw string, t ColumnType) any {
	if strings.TrimSpace(raw) == "" {
		return nil
	}
	switch t {
	case Number:
		if f, ok := parseNumber(raw); ok {
			return f
		}
		return nil
	case Date:
		if d, ok := parseDate(raw); ok {
			return d
		}
		return nil
	default:
		return raw
	}
}

// NormalizeNumber rewrites a locale-formatted numeric string into a form
// strconv.ParseFloat accepts.
//
// Separator rules:
//   - Both '.' and ',' present: the later-occurring one is the decimal
//     separator; the earlier one is stripped as a thousands separator.
//   - Only ',' present: treated as the decimal separator. This keeps
//     "1,234" parsing as 1.234, which silently misreads thousands-grouped
//     integers; preserved for compatibility with existing configurations.
//   - Spaces are stripped (thousands grouping in some exports).
func NormalizeNumber(s string) string {
	s = strings.TrimSpace(s)
	s = strings.ReplaceAll(s, " ", "")
	s = strings.ReplaceAll(s, " ", "")

	dot := strings.LastIndexByte(s, '.')
	comma := strings.LastIndexByte(s, ',')
	switch {
	case dot >= 0 && comma >= 0:
		if comma > dot {
			s = strings.ReplaceAll(s, ".", "")
			s = strings.Replace(s, ",", ".", 1)
		} else {
			s = strings.ReplaceAll(s, ",", "")
		}
	case comma >= 0:
		s = strings.Replace(s, ",", ".", 1)
	}
	return s
}

func parseNumber(s string) (float64, bool) {
	f, err := strconv.ParseFloat(NormalizeNumber(s), 64)
	if err != nil {
		return 0, false
	}
	return f, true
}

func parseDate(s string) (time.Time, bool) {
	s = strings.TrimSpace(s)
	for _, lay := range dateLayouts {
		if t, err := time.Parse(lay, s); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

// TypeFromSQLType maps a raw engine type name to a ColumnType. Used as a
// hint so obviously numeric/date SQL columns skip sample inference.
// Unrecognized names report false and fall back to inference.
func TypeFromSQLType(sqlType string) (ColumnType, bool) {
	t := strings.ToLower(strings.TrimSpace(sqlType))
	if i := strings.IndexByte(t, '('); i >= 0 {
		t = t[:i]
	}
	switch t {
	case "int", "integer", "bigint", "smallint", "tinyint",
		"float", "real", "double", "double precision", "numeric", "decimal", "money":
		return Number, true
	case "date", "datetime", "datetime2", "smalldatetime", "timestamp", "timestamptz":
		return Date, true
	case "text", "varchar", "nvarchar", "char", "nchar", "character varying", "clob":
		return Text, true
	}
	return Unknown, false
}
