package filter

import (
	"strings"

	"auditsample/internal/schema"
)

// Fragment compiles the filter into a parameterized SQL predicate using
// '?' placeholders, plus its ordered bind values. Backends rebind the
// placeholders to their own style (see store adapters).
//
// An unconstrained filter returns ("", nil). All literal values travel
// as bind parameters, never interpolated into the predicate text; this
// is a correctness and injection-safety requirement, not hardening.
//
// Semantics match Matches exactly, including the empty-equals
// contradiction, which compiles to the constant-false predicate 1 = 0.
func (f Filter) Fragment() (string, []any) {
	c := f.Config
	if f.Column == "" || c.IsZero() {
		return "", nil
	}
	col := quoteIdent(f.Column)

	switch f.Type {
	case schema.Text:
		switch c.effectiveMode() {
		case ModeEquals:
			if len(c.Values) == 0 {
				return "1 = 0", nil
			}
			ph := make([]string, len(c.Values))
			params := make([]any, len(c.Values))
			for i, v := range c.Values {
				ph[i] = "?"
				params[i] = v
			}
			return col + " IN (" + strings.Join(ph, ", ") + ")", params
		case ModeContains:
			if c.Pattern == "" {
				return "", nil
			}
			return "LOWER(" + col + ") LIKE ?", []any{"%" + strings.ToLower(c.Pattern) + "%"}
		}
		return "", nil

	case schema.Number:
		// Imported tables declare every column as TEXT, so the
		// comparison must force a numeric cast on the column side;
		// without it SQLite compares strings ("9" > "50") and
		// Postgres refuses the text/double comparison outright.
		cast := "CAST(" + col + " AS REAL)"
		var parts []string
		var params []any
		if c.Min != nil {
			parts = append(parts, cast+" >= ?")
			params = append(params, *c.Min)
		}
		if c.Max != nil {
			parts = append(parts, cast+" <= ?")
			params = append(params, *c.Max)
		}
		return strings.Join(parts, " AND "), params

	case schema.Date:
		var parts []string
		var params []any
		if c.From != nil {
			parts = append(parts, col+" >= ?")
			params = append(params, c.From.Format("2006-01-02"))
		}
		if c.To != nil {
			parts = append(parts, col+" <= ?")
			params = append(params, c.To.Format("2006-01-02"))
		}
		return strings.Join(parts, " AND "), params
	}

	return "", nil
}

// Compose joins the non-empty fragments of several filters into one
// conjunctive WHERE body with a flat ordered parameter list.
func Compose(filters []Filter) (string, []any) {
	var parts []string
	var params []any
	for _, f := range filters {
		frag, p := f.Fragment()
		if frag == "" {
			continue
		}
		parts = append(parts, "("+frag+")")
		params = append(params, p...)
	}
	return strings.Join(parts, " AND "), params
}

// quoteIdent quotes a column name as an ANSI identifier. Embedded
// quotes are doubled so hostile column names cannot break out.
func quoteIdent(id string) string {
	return `"` + strings.ReplaceAll(id, `"`, `""`) + `"`
}
