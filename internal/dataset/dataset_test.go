package dataset

import (
	"context"
	"reflect"
	"testing"
	"time"

	"auditsample/internal/filter"
	"auditsample/internal/sampling"
	"auditsample/internal/schema"
	"auditsample/internal/store"
)

// fakeStore is an in-memory store.Store with canned metadata. The
// pushdown path records the predicate it was asked for.
type fakeStore struct {
	columns  []string
	sqlTypes map[string]string
	rows     [][]string

	filtered      [][]string
	lastPredicate string
	lastParams    []any
}

func (f *fakeStore) Tables(ctx context.Context) ([]string, error) { return []string{"t"}, nil }

func (f *fakeStore) Columns(ctx context.Context, table string) ([]string, error) {
	return f.columns, nil
}

func (f *fakeStore) ColumnSQLTypes(ctx context.Context, table string) (map[string]string, error) {
	if f.sqlTypes == nil {
		return map[string]string{}, nil
	}
	return f.sqlTypes, nil
}

func (f *fakeStore) Rows(ctx context.Context, table string, limit int) ([]string, [][]string, error) {
	rows := f.rows
	if limit > 0 && limit < len(rows) {
		rows = rows[:limit]
	}
	return f.columns, rows, nil
}

func (f *fakeStore) FilteredRows(ctx context.Context, table, predicate string, params []any) ([]string, [][]string, error) {
	f.lastPredicate = predicate
	f.lastParams = params
	return f.columns, f.filtered, nil
}

func (f *fakeStore) RowCount(ctx context.Context, table, predicate string, params []any) (int, error) {
	return len(f.rows), nil
}

func (f *fakeStore) Close() {}

var _ store.Store = (*fakeStore)(nil)

func testStore() *fakeStore {
	return &fakeStore{
		columns: []string{"rechtsform", "umsatz", "stichtag"},
		rows: [][]string{
			{"GmbH", "1.234,56", "15.01.2024"},
			{"AG", "200", "16.01.2024"},
			{"OHG", "", "17.01.2024"},
			{"GmbH", "50", ""},
		},
	}
}

func TestLoadInfersTypes(t *testing.T) {
	t.Parallel()

	d, err := Load(context.Background(), testStore(), "t", Options{})
	if err != nil {
		t.Fatal(err)
	}

	want := map[string]schema.ColumnType{
		"rechtsform": schema.Text,
		"umsatz":     schema.Number,
		"stichtag":   schema.Date,
	}
	if !reflect.DeepEqual(d.Table.Types, want) {
		t.Fatalf("types = %v, want %v", d.Table.Types, want)
	}
	if len(d.Table.Rows) != 4 {
		t.Fatalf("rows = %d, want 4", len(d.Table.Rows))
	}

	// Coercion happened on load.
	if got := d.Table.Value(d.Table.Rows[0], "umsatz"); got != 1234.56 {
		t.Fatalf("umsatz[0] = %v, want 1234.56", got)
	}
	if got := d.Table.Value(d.Table.Rows[2], "umsatz"); got != nil {
		t.Fatalf("umsatz[2] = %v, want nil", got)
	}
	if got := d.Table.Value(d.Table.Rows[1], "stichtag"); got != time.Date(2024, time.January, 16, 0, 0, 0, 0, time.UTC) {
		t.Fatalf("stichtag[1] = %v", got)
	}
}

func TestLoadSQLTypeHints(t *testing.T) {
	t.Parallel()

	s := testStore()
	s.sqlTypes = map[string]string{
		"rechtsform": "varchar(50)",
		"umsatz":     "decimal(10,2)",
		"stichtag":   "varchar(20)",
	}

	d, err := Load(context.Background(), s, "t", Options{})
	if err != nil {
		t.Fatal(err)
	}
	// A decisive declaration skips inference.
	if d.Table.Types["umsatz"] != schema.Number {
		t.Fatalf("umsatz = %v, want number (declared decimal)", d.Table.Types["umsatz"])
	}
	// A varchar declaration is not decisive: imported tables store
	// everything as text, so the values decide.
	if d.Table.Types["stichtag"] != schema.Date {
		t.Fatalf("stichtag = %v, want date (inferred despite varchar)", d.Table.Types["stichtag"])
	}
	if d.Table.Types["rechtsform"] != schema.Text {
		t.Fatalf("rechtsform = %v, want text", d.Table.Types["rechtsform"])
	}
}

func TestLoadOverrides(t *testing.T) {
	t.Parallel()

	s := testStore()
	s.sqlTypes = map[string]string{"umsatz": "decimal(10,2)"}

	d, err := Load(context.Background(), s, "t", Options{
		Overrides: map[string]schema.ColumnType{"umsatz": schema.Text},
	})
	if err != nil {
		t.Fatal(err)
	}
	if d.Table.Types["umsatz"] != schema.Text {
		t.Fatalf("umsatz = %v, override should beat declared type", d.Table.Types["umsatz"])
	}
}

func TestApplyFilters(t *testing.T) {
	t.Parallel()

	d, err := Load(context.Background(), testStore(), "t", Options{})
	if err != nil {
		t.Fatal(err)
	}

	got := d.ApplyFilters([]filter.Filter{{
		Column: "rechtsform",
		Type:   schema.Text,
		Config: filter.Config{Mode: filter.ModeEquals, Values: []string{"GmbH"}},
	}})
	if len(got) != 2 {
		t.Fatalf("matched %d rows, want 2", len(got))
	}
}

func TestPushdownFilters(t *testing.T) {
	t.Parallel()

	s := testStore()
	s.filtered = [][]string{
		{"GmbH", "1.234,56", "15.01.2024"},
		{"GmbH", "50", ""},
	}

	d, err := Load(context.Background(), s, "t", Options{})
	if err != nil {
		t.Fatal(err)
	}

	rows, err := d.PushdownFilters(context.Background(), []filter.Filter{{
		Column: "rechtsform",
		Type:   schema.Text,
		Config: filter.Config{Mode: filter.ModeEquals, Values: []string{"GmbH"}},
	}})
	if err != nil {
		t.Fatal(err)
	}
	if len(rows) != 2 {
		t.Fatalf("rows = %d, want 2", len(rows))
	}
	if s.lastPredicate != `("rechtsform" IN (?))` {
		t.Fatalf("predicate = %q", s.lastPredicate)
	}
	if !reflect.DeepEqual(s.lastParams, []any{"GmbH"}) {
		t.Fatalf("params = %v", s.lastParams)
	}
	// Backend rows go through the same coercion as the full load.
	if got := d.Table.Value(rows[0], "umsatz"); got != 1234.56 {
		t.Fatalf("umsatz = %v, want 1234.56", got)
	}
}

func TestPushdownUnconstrainedSkipsBackend(t *testing.T) {
	t.Parallel()

	s := testStore()
	d, err := Load(context.Background(), s, "t", Options{})
	if err != nil {
		t.Fatal(err)
	}

	rows, err := d.PushdownFilters(context.Background(), nil)
	if err != nil {
		t.Fatal(err)
	}
	if len(rows) != 4 {
		t.Fatalf("rows = %d, want all 4", len(rows))
	}
	if s.lastPredicate != "" {
		t.Fatalf("backend was queried with %q", s.lastPredicate)
	}
}

func TestCountForRule(t *testing.T) {
	t.Parallel()

	d, err := Load(context.Background(), testStore(), "t", Options{})
	if err != nil {
		t.Fatal(err)
	}

	rule := sampling.Rule{
		Name: "gmbh",
		Filter: filter.Filter{
			Column: "rechtsform",
			Type:   schema.Text,
			Config: filter.Config{Mode: filter.ModeEquals, Values: []string{"GmbH"}},
		},
		SampleCount: 1,
	}
	if n := d.CountForRule(d.Table.Rows, rule); n != 2 {
		t.Fatalf("count = %d, want 2", n)
	}
}
