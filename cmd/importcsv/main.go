// Command importcsv loads a delimited file into a SQL backend.
//
// The target table is created with TEXT columns matching the file's
// header; typing happens at sampling time, not at import time. With
// -truncate an existing table is dropped and recreated first.
//
// Input decoding handles the encodings legacy exports arrive in
// (latin-1, windows-1252, cp850) via -encoding; the default is UTF-8.
//
// DSN resolution follows cmd/sample: -dsn flag first, then the DSN
// environment variable.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"

	"auditsample/internal/store"

	_ "auditsample/internal/store/csvfile"
	_ "auditsample/internal/store/mssql"
	_ "auditsample/internal/store/postgres"
	_ "auditsample/internal/store/sqlite"
)

func main() {
	var (
		flagIn        = flag.String("in", "", "Input CSV file path")
		flagEncoding  = flag.String("encoding", "", "Input encoding: utf-8|latin-1|windows-1252|cp850")
		flagDelimiter = flag.String("delimiter", ";", "Input field delimiter")
		flagBackend   = flag.String("backend", "sqlite", "Target backend: sqlite|mssql|postgres")
		flagDSN       = flag.String("dsn", "", "Target DSN (falls back to DSN env var)")
		flagTable     = flag.String("table", "", "Target table name; defaults to the input file's base name")
		flagTruncate  = flag.Bool("truncate", false, "Drop and recreate the target table before inserting")
	)
	flag.Parse()

	if strings.TrimSpace(*flagIn) == "" {
		fmt.Fprintln(os.Stderr, "missing -in")
		flag.Usage()
		os.Exit(2)
	}

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

	table := strings.TrimSpace(*flagTable)
	if table == "" {
		table = strings.TrimSuffix(filepath.Base(*flagIn), filepath.Ext(*flagIn))
	}

	ctx := context.Background()

	if err := run(ctx, *flagIn, *flagEncoding, delim, *flagBackend, dsn, table, *flagTruncate); err != nil {
		log.Fatalf("importcsv: %v", err)
	}
}

func run(ctx context.Context, in, encoding string, delim rune, backend, dsn, table string, truncate bool) error {
	src, err := store.Open(ctx, store.Config{
		Kind:      "csv",
		DSN:       in,
		Encoding:  encoding,
		Delimiter: delim,
	})
	if err != nil {
		return err
	}
	defer src.Close()

	columns, rows, err := src.Rows(ctx, "", 0)
	if err != nil {
		return err
	}
	if len(columns) == 0 {
		return fmt.Errorf("%s: no header row", in)
	}
	log.Printf("read %d rows, %d columns from %s", len(rows), len(columns), in)

	dst, err := store.Open(ctx, store.Config{Kind: backend, DSN: dsn})
	if err != nil {
		return err
	}
	defer dst.Close()

	w, ok := dst.(store.Writer)
	if !ok {
		return fmt.Errorf("backend %s is read-only", backend)
	}

	if err := w.CreateTable(ctx, table, columns, truncate); err != nil {
		return err
	}
	n, err := w.InsertRows(ctx, table, columns, rows)
	if err != nil {
		return err
	}
	log.Printf("inserted %d rows into %s", n, table)
	return nil
}
