package sqlite

import (
	"context"
	"fmt"
	"path/filepath"
	"reflect"
	"testing"

	"auditsample/internal/filter"
	"auditsample/internal/schema"
	"auditsample/internal/store"
)

func openTestDB(t *testing.T) store.Store {
	t.Helper()
	dsn := filepath.Join(t.TempDir(), "test.db")
	s, err := store.Open(context.Background(), store.Config{Kind: "sqlite", DSN: dsn})
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(s.Close)
	return s
}

func seed(t *testing.T, s store.Store) {
	t.Helper()
	w := s.(store.Writer)
	ctx := context.Background()

	cols := []string{"rechtsform", "umsatz", "stichtag"}
	if err := w.CreateTable(ctx, "mandanten", cols, true); err != nil {
		t.Fatal(err)
	}
	n, err := w.InsertRows(ctx, "mandanten", cols, [][]string{
		{"GmbH", "1200", "2024-01-15"},
		{"AG", "300", "2024-02-10"},
		{"OHG", "", "2024-03-01"},
	})
	if err != nil {
		t.Fatal(err)
	}
	if n != 3 {
		t.Fatalf("inserted %d rows, want 3", n)
	}
}

func TestRoundTrip(t *testing.T) {
	t.Parallel()

	s := openTestDB(t)
	seed(t, s)
	ctx := context.Background()

	tables, err := s.Tables(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if !reflect.DeepEqual(tables, []string{"mandanten"}) {
		t.Fatalf("tables = %v", tables)
	}

	cols, err := s.Columns(ctx, "mandanten")
	if err != nil {
		t.Fatal(err)
	}
	if !reflect.DeepEqual(cols, []string{"rechtsform", "umsatz", "stichtag"}) {
		t.Fatalf("columns = %v", cols)
	}

	types, err := s.ColumnSQLTypes(ctx, "mandanten")
	if err != nil {
		t.Fatal(err)
	}
	if types["umsatz"] != "TEXT" {
		t.Fatalf("umsatz type = %q, want TEXT", types["umsatz"])
	}

	_, rows, err := s.Rows(ctx, "mandanten", 0)
	if err != nil {
		t.Fatal(err)
	}
	if len(rows) != 3 {
		t.Fatalf("rows = %d, want 3", len(rows))
	}
	// Empty strings were stored as NULL and come back empty.
	if rows[2][1] != "" {
		t.Fatalf("umsatz[2] = %q, want empty", rows[2][1])
	}

	_, limited, err := s.Rows(ctx, "mandanten", 2)
	if err != nil {
		t.Fatal(err)
	}
	if len(limited) != 2 {
		t.Fatalf("limited rows = %d, want 2", len(limited))
	}
}

func TestFilteredRowsWithFragment(t *testing.T) {
	t.Parallel()

	s := openTestDB(t)
	seed(t, s)
	ctx := context.Background()

	// The predicate comes out of the filter compiler untouched.
	f := filter.Filter{
		Column: "rechtsform",
		Type:   schema.Text,
		Config: filter.Config{Mode: filter.ModeEquals, Values: []string{"GmbH", "AG"}},
	}
	predicate, params := filter.Compose([]filter.Filter{f})

	_, rows, err := s.FilteredRows(ctx, "mandanten", predicate, params)
	if err != nil {
		t.Fatal(err)
	}
	if len(rows) != 2 {
		t.Fatalf("filtered rows = %d, want 2", len(rows))
	}

	n, err := s.RowCount(ctx, "mandanten", predicate, params)
	if err != nil {
		t.Fatal(err)
	}
	if n != 2 {
		t.Fatalf("count = %d, want 2", n)
	}

	n, err = s.RowCount(ctx, "mandanten", "", nil)
	if err != nil {
		t.Fatal(err)
	}
	if n != 3 {
		t.Fatalf("unfiltered count = %d, want 3", n)
	}
}

func TestFilteredRowsNumericRange(t *testing.T) {
	t.Parallel()

	s := openTestDB(t)
	w := s.(store.Writer)
	ctx := context.Background()

	// All imported columns are TEXT; a range filter must still compare
	// numerically. Lexicographic comparison would rank "9" above "50"
	// and "100" below it, matching exactly the wrong rows.
	cols := []string{"name", "umsatz"}
	if err := w.CreateTable(ctx, "betriebe", cols, true); err != nil {
		t.Fatal(err)
	}
	if _, err := w.InsertRows(ctx, "betriebe", cols, [][]string{
		{"klein", "9"},
		{"mittel", "100"},
		{"gross", "2500"},
	}); err != nil {
		t.Fatal(err)
	}

	f := filter.Filter{
		Column: "umsatz",
		Type:   schema.Number,
		Config: filter.Config{Min: fptr(50)},
	}
	predicate, params := filter.Compose([]filter.Filter{f})

	_, rows, err := s.FilteredRows(ctx, "betriebe", predicate, params)
	if err != nil {
		t.Fatal(err)
	}
	if len(rows) != 2 {
		t.Fatalf("filtered rows = %d, want 2", len(rows))
	}
	for _, r := range rows {
		if r[1] == "9" {
			t.Fatalf("row with umsatz=9 matched min 50")
		}
	}

	n, err := s.RowCount(ctx, "betriebe", predicate, params)
	if err != nil {
		t.Fatal(err)
	}
	if n != 2 {
		t.Fatalf("count = %d, want 2", n)
	}
}

func fptr(f float64) *float64 { return &f }

func TestInsertBatching(t *testing.T) {
	t.Parallel()

	s := openTestDB(t)
	w := s.(store.Writer)
	ctx := context.Background()

	cols := []string{"a", "b", "c"}
	if err := w.CreateTable(ctx, "big", cols, false); err != nil {
		t.Fatal(err)
	}

	// More rows than one batch holds (900/3 = 300 rows per batch).
	rows := make([][]string, 650)
	for i := range rows {
		rows[i] = []string{fmt.Sprint(i), "x", "y"}
	}
	n, err := w.InsertRows(ctx, "big", cols, rows)
	if err != nil {
		t.Fatal(err)
	}
	if n != 650 {
		t.Fatalf("inserted %d rows, want 650", n)
	}

	count, err := s.RowCount(ctx, "big", "", nil)
	if err != nil {
		t.Fatal(err)
	}
	if count != 650 {
		t.Fatalf("count = %d, want 650", count)
	}
}

func TestCreateTableTruncate(t *testing.T) {
	t.Parallel()

	s := openTestDB(t)
	seed(t, s)
	w := s.(store.Writer)
	ctx := context.Background()

	cols := []string{"rechtsform", "umsatz", "stichtag"}
	if err := w.CreateTable(ctx, "mandanten", cols, true); err != nil {
		t.Fatal(err)
	}
	n, err := s.RowCount(ctx, "mandanten", "", nil)
	if err != nil {
		t.Fatal(err)
	}
	if n != 0 {
		t.Fatalf("count after truncate = %d, want 0", n)
	}
}

func TestMissingTable(t *testing.T) {
	t.Parallel()

	s := openTestDB(t)
	if _, err := s.Columns(context.Background(), "nope"); err == nil {
		t.Fatal("expected error for missing table")
	}
}
