// Package store defines the backend-agnostic dataset store contract and
// the backend registry.
//
// A Store hands the core raw string rows plus column metadata; type
// inference and coercion happen in internal/schema and
// internal/dataset, not here. Each backend implements the contract in
// its own idiomatic way (placeholder styles, LIMIT vs TOP, catalog
// queries) behind this interface.
package store

import (
	"context"
	"fmt"
	"sync"
)

// Config is the minimal configuration needed to open a store.
type Config struct {
	// Kind selects a registered backend ("sqlite", "mssql", "postgres",
	// "csv").
	Kind string
	// DSN is backend-specific: a connection string for SQL backends, a
	// file path for the CSV backend.
	DSN string

	// Encoding names the input character encoding for file-backed
	// stores ("utf-8", "latin-1", "windows-1252"). SQL backends ignore it.
	Encoding string
	// Delimiter is the field delimiter for file-backed stores. Zero
	// means the backend default.
	Delimiter rune
}

// Store provides tabular data to the sampling core. Row payloads are
// raw strings in column order; blank cells are empty strings.
//
// Implementations must pass every literal filter value as a bind
// parameter. Predicate text reaching FilteredRows/RowCount uses '?'
// placeholders (see internal/filter.Fragment); backends rebind them to
// their native style.
type Store interface {
	// Tables lists the tables (or views) the store exposes.
	Tables(ctx context.Context) ([]string, error)

	// Columns returns the ordered column names of a table.
	Columns(ctx context.Context, table string) ([]string, error)

	// ColumnSQLTypes returns raw engine type names per column, used only
	// as a hint to skip sample inference on unambiguously typed columns.
	// File-backed stores return an empty map.
	ColumnSQLTypes(ctx context.Context, table string) (map[string]string, error)

	// Rows fetches up to limit rows (all rows when limit <= 0), returning
	// the column order the rows are aligned to.
	Rows(ctx context.Context, table string, limit int) ([]string, [][]string, error)

	// FilteredRows fetches the rows matching a compiled predicate.
	// An empty predicate fetches everything.
	FilteredRows(ctx context.Context, table, predicate string, params []any) ([]string, [][]string, error)

	// RowCount counts rows, optionally under a predicate.
	RowCount(ctx context.Context, table, predicate string, params []any) (int, error)

	// Close releases backend resources. Call once.
	Close()
}

// Writer is the optional write side of a store, used by the CSV import
// command. SQL backends implement it; file-backed stores do not.
type Writer interface {
	// CreateTable creates the table with text-typed columns when it does
	// not exist. When truncate is set an existing table is dropped first.
	CreateTable(ctx context.Context, table string, columns []string, truncate bool) error

	// InsertRows bulk-inserts raw records aligned to columns. Empty
	// strings insert as NULL.
	InsertRows(ctx context.Context, table string, columns []string, rows [][]string) (int64, error)
}

// ---- backend registry (one factory per kind) ----

type factory func(ctx context.Context, cfg Config) (Store, error)

var (
	regMu     sync.RWMutex
	factories = map[string]factory{}
)

// Register registers a backend factory under a kind. Backend packages
// call Register from init(). Registering a duplicate kind panics to
// fail fast on ambiguous backend selection.
func Register(kind string, f factory) {
	regMu.Lock()
	defer regMu.Unlock()

	if kind == "" {
		panic("store: Register called with empty kind")
	}
	if f == nil {
		panic("store: Register called with nil factory")
	}
	if _, exists := factories[kind]; exists {
		panic(fmt.Sprintf("store: factory already registered for kind=%q", kind))
	}
	factories[kind] = f
}

// Open constructs a Store using the registered backend factory.
func Open(ctx context.Context, cfg Config) (Store, error) {
	if cfg.Kind == "" {
		return nil, &PersistenceError{Op: "open", Err: fmt.Errorf("missing store kind")}
	}

	regMu.RLock()
	f := factories[cfg.Kind]
	regMu.RUnlock()

	if f == nil {
		return nil, &PersistenceError{Op: "open", Err: fmt.Errorf("unsupported store kind=%q", cfg.Kind)}
	}
	return f(ctx, cfg)
}

// PersistenceError marks connection, query, and I/O failures from the
// store layer, keeping them distinguishable from sampling-logic errors.
type PersistenceError struct {
	Op  string
	Err error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("store: %s: %v", e.Op, e.Err)
}

func (e *PersistenceError) Unwrap() error { return e.Err }

// wrapErr attaches the persistence error kind unless err is nil or
// already wrapped.
func wrapErr(op string, err error) error {
	if err == nil {
		return nil
	}
	if _, ok := err.(*PersistenceError); ok {
		return err
	}
	return &PersistenceError{Op: op, Err: err}
}
