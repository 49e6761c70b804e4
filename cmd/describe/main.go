// Command describe inspects a data source before sampling.
//
// Without -table it lists the tables the source exposes. With -table
// it reports each column with its resolved type (declared SQL type if
// available, otherwise inferred from a row sample), the row count, and
// an example value per column. With -json the per-table report is
// emitted as JSON instead, in a shape that can seed the column_types
// section of a sampling configuration.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"os"
	"strings"

	"auditsample/internal/dataset"
	"auditsample/internal/schema"
	"auditsample/internal/store"

	_ "auditsample/internal/store/csvfile"
	_ "auditsample/internal/store/mssql"
	_ "auditsample/internal/store/postgres"
	_ "auditsample/internal/store/sqlite"
)

func main() {
	var (
		flagBackend   = flag.String("backend", "csv", "Data source backend: csv|sqlite|mssql|postgres")
		flagDSN       = flag.String("dsn", "", "Data source DSN or file path (falls back to DSN env var)")
		flagTable     = flag.String("table", "", "Table to describe; empty lists tables")
		flagEncoding  = flag.String("encoding", "", "Input encoding for csv backend")
		flagDelimiter = flag.String("delimiter", ";", "Field delimiter for csv backend")
		flagJSON      = flag.Bool("json", false, "Emit the table description as JSON")
	)
	flag.Parse()

	dsn := strings.TrimSpace(*flagDSN)
	if dsn == "" {
		dsn = strings.TrimSpace(os.Getenv("DSN"))
	}
	if dsn == "" {
		fmt.Fprintln(os.Stderr, "missing -dsn (or DSN env var)")
		flag.Usage()
		os.Exit(2)
	}

	delim := ';'
	if *flagDelimiter != "" {
		delim = []rune(*flagDelimiter)[0]
	}

	ctx := context.Background()

	src, err := store.Open(ctx, store.Config{
		Kind:      *flagBackend,
		DSN:       dsn,
		Encoding:  *flagEncoding,
		Delimiter: delim,
	})
	if err != nil {
		log.Fatalf("describe: %v", err)
	}
	defer src.Close()

	if strings.TrimSpace(*flagTable) == "" {
		tables, err := src.Tables(ctx)
		if err != nil {
			log.Fatalf("describe: %v", err)
		}
		for _, t := range tables {
			fmt.Println(t)
		}
		return
	}

	ds, err := dataset.Load(ctx, src, *flagTable, dataset.Options{})
	if err != nil {
		log.Fatalf("describe: %v", err)
	}

	if *flagJSON {
		out := struct {
			Table       string                       `json:"table"`
			Rows        int                          `json:"rows"`
			Columns     []string                     `json:"columns"`
			ColumnTypes map[string]schema.ColumnType `json:"column_types"`
		}{
			Table:       *flagTable,
			Rows:        len(ds.Table.Rows),
			Columns:     ds.Table.Columns,
			ColumnTypes: ds.Table.Types,
		}
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		if err := enc.Encode(out); err != nil {
			log.Fatalf("describe: %v", err)
		}
		return
	}

	fmt.Printf("table %s: %d rows, %d columns\n", *flagTable, len(ds.Table.Rows), len(ds.Table.Columns))
	for _, col := range ds.Table.Columns {
		fmt.Printf("  %-30s %-8s %s\n", col, ds.Table.Types[col], exampleValue(ds.Table, col))
	}
}

// exampleValue returns the first non-empty value of a column, rendered
// for display.
func exampleValue(t *schema.Table, col string) string {
	for _, row := range t.Rows {
		v := t.Value(row, col)
		if v == nil {
			continue
		}
		if s := schema.Stringify(v); s != "" {
			return s
		}
	}
	return ""
}
