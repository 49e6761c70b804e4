package export

import (
	"encoding/csv"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"

	"auditsample/internal/sampling"
	"auditsample/internal/schema"
)

func exportFixture() (*schema.Table, []sampling.Result) {
	t := schema.NewTable(
		[]string{"kundennummer", "umsatz", "stichtag"},
		map[string]schema.ColumnType{
			"kundennummer": schema.Text,
			"umsatz":       schema.Number,
			"stichtag":     schema.Date,
		},
	)
	t.AppendRaw([]string{"K-001", "1.234,56", "2024-01-15"})
	t.AppendRaw([]string{"K-002", "", "2023-06-30"})
	t.AppendRaw([]string{"K-003", "500", "2024-03-01"})

	results := []sampling.Result{
		{RowIndex: 0, Rule: "gmbh", Row: t.Rows[0]},
		{RowIndex: 1, Rule: "gmbh", Row: t.Rows[1]},
		{RowIndex: 2, Rule: "ag/kg", Row: t.Rows[2]},
	}
	return t, results
}

func readCSV(t *testing.T, path string, delim rune) [][]string {
	t.Helper()
	f, err := os.Open(path)
	if err != nil {
		t.Fatalf("open %s: %v", path, err)
	}
	defer f.Close()
	r := csv.NewReader(f)
	r.Comma = delim
	recs, err := r.ReadAll()
	if err != nil {
		t.Fatalf("read %s: %v", path, err)
	}
	return recs
}

func TestWriteAggregate(t *testing.T) {
	t.Parallel()

	tab, results := exportFixture()
	path := filepath.Join(t.TempDir(), "out.csv")

	if err := WriteAggregate(path, tab, results, Options{}); err != nil {
		t.Fatalf("WriteAggregate: %v", err)
	}

	got := readCSV(t, path, ';')
	want := [][]string{
		{"rule", "kundennummer", "umsatz", "stichtag"},
		{"gmbh", "K-001", "1234,56", "15-01-2024"},
		{"gmbh", "K-002", "", "30-06-2023"},
		{"ag/kg", "K-003", "500", "01-03-2024"},
	}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("aggregate CSV:\n  got  %v\n  want %v", got, want)
	}
}

func TestWriteByRule(t *testing.T) {
	t.Parallel()

	tab, results := exportFixture()
	dir := t.TempDir()

	n, err := WriteByRule(dir, tab, results, Options{Delimiter: ','})
	if err != nil {
		t.Fatalf("WriteByRule: %v", err)
	}
	if n != 2 {
		t.Fatalf("wrote %d files, want 2", n)
	}

	gmbh := readCSV(t, filepath.Join(dir, "gmbh.csv"), ',')
	if len(gmbh) != 3 {
		t.Fatalf("gmbh.csv has %d records, want header+2", len(gmbh))
	}
	if gmbh[1][0] != "K-001" || gmbh[2][0] != "K-002" {
		t.Fatalf("gmbh.csv rows = %v", gmbh[1:])
	}

	// "ag/kg" sanitizes to "agkg".
	agkg := readCSV(t, filepath.Join(dir, "agkg.csv"), ',')
	if len(agkg) != 2 || agkg[1][0] != "K-003" {
		t.Fatalf("agkg.csv = %v", agkg)
	}
}

func TestWriteLeavesNoTempFiles(t *testing.T) {
	t.Parallel()

	tab, results := exportFixture()
	dir := t.TempDir()
	if err := WriteAggregate(filepath.Join(dir, "out.csv"), tab, results, Options{}); err != nil {
		t.Fatalf("WriteAggregate: %v", err)
	}
	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatalf("ReadDir: %v", err)
	}
	for _, e := range entries {
		if strings.Contains(e.Name(), ".tmp-") {
			t.Fatalf("temp file left behind: %s", e.Name())
		}
	}
}

func TestSafeFileName(t *testing.T) {
	t.Parallel()

	tests := []struct{ in, want string }{
		{"gmbh", "gmbh"},
		{"ag/kg", "agkg"},
		{"Große Kunden 2024", "Groe Kunden 2024"},
		{"///", "rule"},
		{"a b-c_d", "a b-c_d"},
	}
	for _, tt := range tests {
		if got := SafeFileName(tt.in); got != tt.want {
			t.Fatalf("SafeFileName(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}
