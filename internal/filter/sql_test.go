package filter

import (
	"encoding/json"
	"reflect"
	"strings"
	"testing"
	"time"

	"auditsample/internal/schema"
)

func TestFragment(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name       string
		f          Filter
		wantSQL    string
		wantParams []any
	}{
		{
			"text equals",
			Filter{Column: "rechtsform", Type: schema.Text, Config: Config{Mode: ModeEquals, Values: []string{"GmbH", "AG"}}},
			`"rechtsform" IN (?, ?)`,
			[]any{"GmbH", "AG"},
		},
		{
			"text equals empty set is constant false",
			Filter{Column: "rechtsform", Type: schema.Text, Config: Config{Mode: ModeEquals, Values: []string{}}},
			"1 = 0",
			nil,
		},
		{
			"text contains",
			Filter{Column: "rechtsform", Type: schema.Text, Config: Config{Mode: ModeContains, Pattern: "Bank"}},
			`LOWER("rechtsform") LIKE ?`,
			[]any{"%bank%"},
		},
		{
			"number range",
			Filter{Column: "umsatz", Type: schema.Number, Config: Config{Min: fptr(10), Max: fptr(20)}},
			`CAST("umsatz" AS REAL) >= ? AND CAST("umsatz" AS REAL) <= ?`,
			[]any{10.0, 20.0},
		},
		{
			"number min only",
			Filter{Column: "umsatz", Type: schema.Number, Config: Config{Min: fptr(10)}},
			`CAST("umsatz" AS REAL) >= ?`,
			[]any{10.0},
		},
		{
			"date range uses iso params",
			Filter{Column: "stichtag", Type: schema.Date, Config: Config{From: dptr(2024, 1, 1), To: dptr(2024, 12, 31)}},
			`"stichtag" >= ? AND "stichtag" <= ?`,
			[]any{"2024-01-01", "2024-12-31"},
		},
		{
			"zero config compiles to nothing",
			Filter{Column: "rechtsform", Type: schema.Text},
			"",
			nil,
		},
		{
			"quote-hostile column name",
			Filter{Column: `x" OR 1=1 --`, Type: schema.Number, Config: Config{Min: fptr(1)}},
			`CAST("x"" OR 1=1 --" AS REAL) >= ?`,
			[]any{1.0},
		},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			sql, params := tt.f.Fragment()
			if sql != tt.wantSQL {
				t.Fatalf("sql = %q, want %q", sql, tt.wantSQL)
			}
			if !reflect.DeepEqual(params, tt.wantParams) {
				t.Fatalf("params = %#v, want %#v", params, tt.wantParams)
			}
		})
	}
}

func TestCompose(t *testing.T) {
	t.Parallel()

	filters := []Filter{
		{Column: "rechtsform", Type: schema.Text, Config: Config{Mode: ModeEquals, Values: []string{"GmbH"}}},
		{Column: "umsatz", Type: schema.Number},                                      // no-op, must vanish
		{Column: "stichtag", Type: schema.Date, Config: Config{From: dptr(2024, 1, 1)}},
	}
	sql, params := Compose(filters)
	want := `("rechtsform" IN (?)) AND ("stichtag" >= ?)`
	if sql != want {
		t.Fatalf("Compose sql = %q, want %q", sql, want)
	}
	if !reflect.DeepEqual(params, []any{"GmbH", "2024-01-01"}) {
		t.Fatalf("Compose params = %#v", params)
	}
}

// TestFragmentMatchesParity replays the in-memory evaluation table
// fixtures through a naive fragment interpreter to guard against the
// two evaluation paths diverging.
func TestFragmentMatchesParity(t *testing.T) {
	t.Parallel()

	tab := testTable()
	filters := []Filter{
		{Column: "rechtsform", Type: schema.Text, Config: Config{Mode: ModeEquals, Values: []string{"GmbH", "OHG"}}},
		{Column: "rechtsform", Type: schema.Text, Config: Config{Mode: ModeEquals, Values: []string{}}},
		{Column: "rechtsform", Type: schema.Text, Config: Config{Mode: ModeContains, Pattern: "ag"}},
		{Column: "umsatz", Type: schema.Number, Config: Config{Min: fptr(100), Max: fptr(600)}},
		{Column: "stichtag", Type: schema.Date, Config: Config{From: dptr(2024, 1, 1)}},
		{Column: "rechtsform", Type: schema.Text},
	}

	for _, f := range filters {
		for i, row := range tab.Rows {
			mem := f.Matches(tab, row)
			sqlish := evalFragment(t, tab, row, f)
			if mem != sqlish {
				t.Fatalf("filter %s row %d: in-memory=%t, fragment=%t", f.Description(), i, mem, sqlish)
			}
		}
	}
}

// evalFragment interprets the compiled fragment shape against a typed
// row. It only understands the constructs Fragment emits.
func evalFragment(t *testing.T, tab *schema.Table, row schema.Row, f Filter) bool {
	t.Helper()

	sql, params := f.Fragment()
	if sql == "" {
		return true
	}
	if sql == "1 = 0" {
		return false
	}
	v := tab.Value(row, f.Column)

	switch f.Type {
	case schema.Text:
		s := schema.Stringify(v)
		if f.Config.effectiveMode() == ModeContains {
			pat := params[0].(string)
			return likeMatch(s, pat)
		}
		for _, p := range params {
			if s == p.(string) {
				return true
			}
		}
		return false
	case schema.Number:
		n, ok := v.(float64)
		if !ok {
			return false // SQL NULL comparison
		}
		if f.Config.Min != nil && n < params[0].(float64) {
			return false
		}
		if f.Config.Max != nil && n > params[len(params)-1].(float64) {
			return false
		}
		return true
	case schema.Date:
		d, ok := v.(time.Time)
		if !ok {
			return false
		}
		iso := d.Format("2006-01-02")
		if f.Config.From != nil && iso < params[0].(string) {
			return false
		}
		if f.Config.To != nil && iso > params[len(params)-1].(string) {
			return false
		}
		return true
	}
	return true
}

func likeMatch(s, pattern string) bool {
	pattern = strings.Trim(pattern, "%")
	return strings.Contains(strings.ToLower(s), pattern)
}

func TestFilterJSONRoundTrip(t *testing.T) {
	t.Parallel()

	orig := []Filter{
		{Column: "rechtsform", Type: schema.Text, Config: Config{Mode: ModeEquals, Values: []string{"GmbH", "AG"}}},
		{Column: "name", Type: schema.Text, Config: Config{Mode: ModeContains, Pattern: "Bank"}},
		{Column: "umsatz", Type: schema.Number, Config: Config{Min: fptr(1.5), Max: fptr(9000)}},
		{Column: "stichtag", Type: schema.Date, Config: Config{From: dptr(2023, 1, 1), To: dptr(2024, 12, 31)}},
	}

	b, err := json.Marshal(orig)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	var got []Filter
	if err := json.Unmarshal(b, &got); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if !reflect.DeepEqual(orig, got) {
		t.Fatalf("round-trip mismatch:\n  orig %#v\n  got  %#v", orig, got)
	}
}

// TestFilterJSONEmptySelectionRoundTrip guards the one state where
// serialization could flip semantics: an explicit empty value selection
// matches nothing, and must not load back as an unconstrained filter.
func TestFilterJSONEmptySelectionRoundTrip(t *testing.T) {
	t.Parallel()

	tab := testTable()
	orig := Filter{
		Column: "rechtsform",
		Type:   schema.Text,
		Config: Config{Values: []string{}},
	}
	if orig.Matches(tab, tab.Rows[0]) {
		t.Fatal("empty selection matched before round trip")
	}

	b, err := json.Marshal(orig)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	want := `{"column":"rechtsform","column_type":"text","filter_config":{"type":"equals"}}`
	if string(b) != want {
		t.Fatalf("wire shape = %s, want %s", b, want)
	}

	var got Filter
	if err := json.Unmarshal(b, &got); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if got.Config.IsZero() {
		t.Fatal("round-tripped config collapsed to zero")
	}
	for i, row := range tab.Rows {
		if got.Matches(tab, row) {
			t.Fatalf("row %d matched after round trip", i)
		}
	}
}

// TestFilterJSONWireShape pins the on-disk format so configurations
// saved by the original desktop tool keep loading.
func TestFilterJSONWireShape(t *testing.T) {
	t.Parallel()

	f := Filter{Column: "stichtag", Type: schema.Date, Config: Config{From: dptr(2024, 3, 1)}}
	b, err := json.Marshal(f)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	want := `{"column":"stichtag","column_type":"date","filter_config":{"from":"2024-03-01"}}`
	if string(b) != want {
		t.Fatalf("wire shape = %s, want %s", b, want)
	}
}
