// Command sample draws stratified random samples from an audit dataset.
//
// It loads a table from a backend (CSV file, SQLite, SQL Server, or
// Postgres), applies the global filters and sampling rules of a saved
// configuration, and writes the drawn samples as CSV: one aggregate
// file and, optionally, one file per rule.
//
// Rules are processed in configuration order and never draw a row
// twice: a row claimed by an earlier rule is unavailable to later
// ones. Pass -seed for reproducible draws; by default every run draws
// a fresh sample.
//
// # DSN resolution
//
// The data source is selected by -backend plus a DSN:
//
//  1. -dsn flag (highest priority)
//  2. DSN environment variable
//
// For -backend csv the DSN is the file path; -encoding and -delimiter
// apply to it.
//
// # Metrics
//
// When DD_API_KEY is set, run metrics (rows loaded, samples drawn per
// rule, run duration) are submitted to Datadog. DD_TAGS adds extra
// tags in "k:v,k2:v2" form.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"strings"
	"time"

	"auditsample/internal/dataset"
	"auditsample/internal/export"
	"auditsample/internal/metrics"
	"auditsample/internal/metrics/datadog"
	"auditsample/internal/sampling"
	"auditsample/internal/samplecfg"
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
		flagTable     = flag.String("table", "", "Table to sample from (defaults to the only table for file sources)")
		flagEncoding  = flag.String("encoding", "", "Input encoding for csv backend: utf-8|latin-1|windows-1252|cp850")
		flagDelimiter = flag.String("delimiter", ";", "Field delimiter for csv backend and exports")
		flagConfig    = flag.String("config", "", "Path to a saved sampling configuration (JSON)")
		flagOut       = flag.String("out", "samples.csv", "Aggregate output CSV path")
		flagPerRule   = flag.String("per-rule-dir", "", "If set, additionally write one CSV per rule into this directory")
		flagSeed      = flag.Int64("seed", 0, "Random seed; 0 draws a fresh sample every run")
		flagPushdown  = flag.Bool("pushdown", false, "Evaluate global filters in the database instead of in memory (SQL backends only)")
	)
	flag.Parse()

	if strings.TrimSpace(*flagConfig) == "" {
		fmt.Fprintln(os.Stderr, "missing -config")
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

	ctx := context.Background()

	sink, closeSink := newMetricsSink(ctx)
	defer closeSink()

	start := time.Now()
	status := "ok"
	if err := run(ctx, runOptions{
		backend:    *flagBackend,
		dsn:        dsn,
		table:      *flagTable,
		encoding:   *flagEncoding,
		delimiter:  delim,
		configPath: *flagConfig,
		outPath:    *flagOut,
		perRuleDir: *flagPerRule,
		seed:       *flagSeed,
		pushdown:   *flagPushdown,
	}, sink); err != nil {
		status = "error"
		sink.IncCounter(metrics.RunsTotal, 1, metrics.Labels{"status": status})
		sink.ObserveHistogram(metrics.RunDuration, time.Since(start).Seconds(), metrics.Labels{"status": status})
		closeSink()
		log.Fatalf("sample: %v", err)
	}
	sink.IncCounter(metrics.RunsTotal, 1, metrics.Labels{"status": status})
	sink.ObserveHistogram(metrics.RunDuration, time.Since(start).Seconds(), metrics.Labels{"status": status})
}

type runOptions struct {
	backend    string
	dsn        string
	table      string
	encoding   string
	delimiter  rune
	configPath string
	outPath    string
	perRuleDir string
	seed       int64
	pushdown   bool
}

func run(ctx context.Context, opts runOptions, sink metrics.Backend) error {
	cfg, err := samplecfg.Load(opts.configPath)
	if err != nil {
		return err
	}
	if len(cfg.Rules) == 0 {
		return fmt.Errorf("configuration %s has no sampling rules", opts.configPath)
	}

	src, err := store.Open(ctx, store.Config{
		Kind:      opts.backend,
		DSN:       opts.dsn,
		Encoding:  opts.encoding,
		Delimiter: opts.delimiter,
	})
	if err != nil {
		return err
	}
	defer src.Close()

	table := opts.table
	if table == "" {
		tables, err := src.Tables(ctx)
		if err != nil {
			return err
		}
		if len(tables) != 1 {
			return fmt.Errorf("-table is required: source has %d tables", len(tables))
		}
		table = tables[0]
	}

	ds, err := dataset.Load(ctx, src, table, dataset.Options{Overrides: cfg.ColumnTypes})
	if err != nil {
		return err
	}
	log.Printf("loaded %d rows from %s", len(ds.Table.Rows), table)
	sink.IncCounter(metrics.RowsLoaded, float64(len(ds.Table.Rows)), metrics.Labels{"table": table})

	pruned, keptFilters, keptRules := samplecfg.Prune(cfg, ds.Table.Columns)
	if keptFilters < len(cfg.GlobalFilters) || keptRules < len(cfg.Rules) {
		log.Printf("configuration references missing columns: kept %d/%d filters, %d/%d rules",
			keptFilters, len(cfg.GlobalFilters), keptRules, len(cfg.Rules))
	}
	if len(pruned.Rules) == 0 {
		return fmt.Errorf("no sampling rule applies to table %s", table)
	}

	var working []schema.Row
	if opts.pushdown {
		working, err = ds.PushdownFilters(ctx, pruned.GlobalFilters)
		if err != nil {
			return err
		}
	} else {
		working = ds.ApplyFilters(pruned.GlobalFilters)
	}
	log.Printf("working set: %d rows after %d global filters", len(working), len(pruned.GlobalFilters))

	eng := &sampling.Engine{Logger: log.Default(), Seed: opts.seed}
	results, report, err := eng.Generate(ds.Table, working, pruned.Rules)
	if err != nil {
		return err
	}
	for _, line := range report {
		log.Print(line)
	}

	perRule := map[string]int{}
	for _, res := range results {
		perRule[res.Rule]++
	}
	for rule, n := range perRule {
		sink.IncCounter(metrics.SamplesDrawn, float64(n), metrics.Labels{"rule": rule})
	}

	exportOpts := export.Options{Delimiter: opts.delimiter}
	if err := export.WriteAggregate(opts.outPath, ds.Table, results, exportOpts); err != nil {
		return err
	}
	log.Printf("wrote %d samples to %s", len(results), opts.outPath)

	if opts.perRuleDir != "" {
		n, err := export.WriteByRule(opts.perRuleDir, ds.Table, results, exportOpts)
		if err != nil {
			return err
		}
		log.Printf("wrote %d per-rule files to %s", n, opts.perRuleDir)
	}

	return nil
}

// newMetricsSink returns a Datadog sink when DD_API_KEY is set and a
// no-op otherwise. The returned close function is idempotent.
func newMetricsSink(ctx context.Context) (metrics.Backend, func()) {
	if strings.TrimSpace(os.Getenv("DD_API_KEY")) == "" {
		return metrics.Nop{}, func() {}
	}
	b, err := datadog.NewBackend(ctx, datadog.Options{
		JobName: "sample",
		Tags:    datadog.ParseTagsCSV(os.Getenv("DD_TAGS")),
	})
	if err != nil {
		log.Printf("datadog metrics disabled: %v", err)
		return metrics.Nop{}, func() {}
	}
	var once bool
	return b, func() {
		if once {
			return
		}
		once = true
		if err := b.Close(); err != nil {
			log.Printf("metrics flush: %v", err)
		}
	}
}
