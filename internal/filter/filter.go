// Package filter implements the column-scoped, typed predicate model.
//
// A Filter constrains one column and evaluates in two modes with
// identical semantics: in-memory against a typed row (Matches), or
// compiled into a parameterized SQL predicate (Fragment). The two paths
// must never diverge; tests in this package compare them pairwise.
//
// Empty-config policy:
//   - A zero Config is "no filter" and matches every row.
//   - An equals config with an explicitly empty value set is an explicit
//     empty selection and matches nothing. The two cases are distinct.
package filter

import (
	"fmt"
	"strings"
	"time"

	"auditsample/internal/schema"
)

// Mode selects the text predicate flavor.
type Mode string

const (
	ModeEquals   Mode = "equals"
	ModeContains Mode = "contains"
)

// Config is the tagged union of per-type constraints. Which fields are
// meaningful depends on the owning filter's column type:
//
//	text:   Mode + Values (equals) or Pattern (contains)
//	number: Min / Max, inclusive, either may be nil
//	date:   From / To, inclusive, either may be nil
type Config struct {
	Mode    Mode
	Values  []string
	Pattern string

	Min *float64
	Max *float64

	From *time.Time
	To   *time.Time
}

// IsZero reports whether the config carries no constraint at all.
// A zero config matches everything.
func (c Config) IsZero() bool {
	return c.Mode == "" && c.Values == nil && c.Pattern == "" &&
		c.Min == nil && c.Max == nil && c.From == nil && c.To == nil
}

// effectiveMode defaults to equals, mirroring the saved-config format
// where "type" may be omitted.
func (c Config) effectiveMode() Mode {
	if c.Mode != "" {
		return c.Mode
	}
	return ModeEquals
}

// Filter is a predicate over a single column.
type Filter struct {
	Column string
	Type   schema.ColumnType
	Config Config
}

// Matches evaluates the filter against one row of the table.
// A filter without a column or with a zero config matches everything.
func (f Filter) Matches(t *schema.Table, row schema.Row) bool {
	if f.Column == "" || f.Config.IsZero() {
		return true
	}
	return f.matchValue(t.Value(row, f.Column))
}

func (f Filter) matchValue(value any) bool {
	c := f.Config

	switch f.Type {
	case schema.Text:
		switch c.effectiveMode() {
		case ModeEquals:
			if len(c.Values) == 0 {
				// Explicit empty selection: contradiction, not no-op.
				return false
			}
			s := schema.Stringify(value)
			for _, v := range c.Values {
				if s == v {
					return true
				}
			}
			return false
		case ModeContains:
			if c.Pattern == "" {
				return true
			}
			return strings.Contains(
				strings.ToLower(schema.Stringify(value)),
				strings.ToLower(c.Pattern),
			)
		}
		return true

	case schema.Number:
		v, ok := value.(float64)
		if !ok {
			return false
		}
		if c.Min != nil && v < *c.Min {
			return false
		}
		if c.Max != nil && v > *c.Max {
			return false
		}
		return true

	case schema.Date:
		v, ok := value.(time.Time)
		if !ok {
			return false
		}
		if c.From != nil && v.Before(*c.From) {
			return false
		}
		if c.To != nil && v.After(*c.To) {
			return false
		}
		return true
	}

	// Unknown-typed columns are never constrained.
	return true
}

// Description renders a stable, human-readable summary of the active
// constraint, used for audit logs and rule listings.
func (f Filter) Description() string {
	c := f.Config
	if f.Column == "" || c.IsZero() {
		return fmt.Sprintf("%s: no filter", f.Column)
	}

	switch f.Type {
	case schema.Text:
		switch c.effectiveMode() {
		case ModeEquals:
			if len(c.Values) > 0 {
				shown := c.Values
				ellipsis := ""
				if len(shown) > 3 {
					shown = shown[:3]
					ellipsis = "..."
				}
				return fmt.Sprintf("%s = %s%s", f.Column, strings.Join(shown, ", "), ellipsis)
			}
		case ModeContains:
			if c.Pattern != "" {
				return fmt.Sprintf("%s contains '%s'", f.Column, c.Pattern)
			}
		}

	case schema.Number:
		var parts []string
		if c.Min != nil {
			parts = append(parts, fmt.Sprintf(">= %.2f", *c.Min))
		}
		if c.Max != nil {
			parts = append(parts, fmt.Sprintf("<= %.2f", *c.Max))
		}
		if len(parts) > 0 {
			return fmt.Sprintf("%s %s", f.Column, strings.Join(parts, " and "))
		}

	case schema.Date:
		var parts []string
		if c.From != nil {
			parts = append(parts, "from "+c.From.Format("02-01-2006"))
		}
		if c.To != nil {
			parts = append(parts, "to "+c.To.Format("02-01-2006"))
		}
		if len(parts) > 0 {
			return fmt.Sprintf("%s %s", f.Column, strings.Join(parts, " "))
		}
	}

	return fmt.Sprintf("%s: no filter", f.Column)
}

// Apply returns the subset of rows matching every filter, in order.
// Filters combine conjunctively; an empty filter list returns all rows.
func Apply(t *schema.Table, rows []schema.Row, filters []Filter) []schema.Row {
	if len(filters) == 0 {
		return rows
	}
	out := make([]schema.Row, 0, len(rows))
	for _, row := range rows {
		ok := true
		for _, f := range filters {
			if !f.Matches(t, row) {
				ok = false
				break
			}
		}
		if ok {
			out = append(out, row)
		}
	}
	return out
}
