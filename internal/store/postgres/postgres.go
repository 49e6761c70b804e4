// Package postgres implements store.Store for PostgreSQL via
// github.com/jackc/pgx/v5.
package postgres

import (
	"context"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5/pgxpool"

	"auditsample/internal/store"
)

// DB implements store.Store and store.Writer on a pgx connection pool.
//
// Dialect notes:
//   - Bind placeholders are $N; compiled '?' predicates are rebound.
//   - Catalog metadata comes from information_schema.
type DB struct {
	pool *pgxpool.Pool
}

func init() {
	store.Register("postgres", New)
}

func New(ctx context.Context, cfg store.Config) (store.Store, error) {
	pool, err := pgxpool.New(ctx, cfg.DSN)
	if err != nil {
		return nil, &store.PersistenceError{Op: "postgres open", Err: err}
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, &store.PersistenceError{Op: "postgres connect", Err: err}
	}
	return &DB{pool: pool}, nil
}

func (s *DB) Close() { s.pool.Close() }

func (s *DB) Tables(ctx context.Context) ([]string, error) {
	const q = `SELECT table_name FROM information_schema.tables
		WHERE table_schema = 'public' AND table_type IN ('BASE TABLE', 'VIEW')
		ORDER BY table_name`
	rows, err := s.pool.Query(ctx, q)
	if err != nil {
		return nil, &store.PersistenceError{Op: "postgres list tables", Err: err}
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, &store.PersistenceError{Op: "postgres list tables", Err: err}
		}
		out = append(out, name)
	}
	if err := rows.Err(); err != nil {
		return nil, &store.PersistenceError{Op: "postgres list tables", Err: err}
	}
	return out, nil
}

func (s *DB) Columns(ctx context.Context, table string) ([]string, error) {
	const q = `SELECT column_name FROM information_schema.columns
		WHERE table_name = $1
		ORDER BY ordinal_position`
	rows, err := s.pool.Query(ctx, q, unqualified(table))
	if err != nil {
		return nil, &store.PersistenceError{Op: "postgres columns", Err: err}
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, &store.PersistenceError{Op: "postgres columns", Err: err}
		}
		out = append(out, name)
	}
	if err := rows.Err(); err != nil {
		return nil, &store.PersistenceError{Op: "postgres columns", Err: err}
	}
	if len(out) == 0 {
		return nil, &store.PersistenceError{Op: "postgres columns", Err: fmt.Errorf("no such table: %s", table)}
	}
	return out, nil
}

func (s *DB) ColumnSQLTypes(ctx context.Context, table string) (map[string]string, error) {
	const q = `SELECT column_name, data_type FROM information_schema.columns
		WHERE table_name = $1`
	rows, err := s.pool.Query(ctx, q, unqualified(table))
	if err != nil {
		return nil, &store.PersistenceError{Op: "postgres column types", Err: err}
	}
	defer rows.Close()

	out := map[string]string{}
	for rows.Next() {
		var name, typ string
		if err := rows.Scan(&name, &typ); err != nil {
			return nil, &store.PersistenceError{Op: "postgres column types", Err: err}
		}
		out[name] = typ
	}
	if err := rows.Err(); err != nil {
		return nil, &store.PersistenceError{Op: "postgres column types", Err: err}
	}
	return out, nil
}

func (s *DB) Rows(ctx context.Context, table string, limit int) ([]string, [][]string, error) {
	q := "SELECT * FROM " + sqlIdent(table)
	if limit > 0 {
		q += fmt.Sprintf(" LIMIT %d", limit)
	}
	return s.queryRaw(ctx, q, nil)
}

func (s *DB) FilteredRows(ctx context.Context, table, predicate string, params []any) ([]string, [][]string, error) {
	q := "SELECT * FROM " + sqlIdent(table)
	if predicate != "" {
		q += " WHERE " + rebind(predicate)
	}
	return s.queryRaw(ctx, q, params)
}

func (s *DB) RowCount(ctx context.Context, table, predicate string, params []any) (int, error) {
	q := "SELECT COUNT(*) FROM " + sqlIdent(table)
	if predicate != "" {
		q += " WHERE " + rebind(predicate)
	}
	var n int64
	if err := s.pool.QueryRow(ctx, q, params...).Scan(&n); err != nil {
		return 0, &store.PersistenceError{Op: "postgres count", Err: err}
	}
	return int(n), nil
}

func (s *DB) queryRaw(ctx context.Context, q string, params []any) ([]string, [][]string, error) {
	rows, err := s.pool.Query(ctx, q, params...)
	if err != nil {
		return nil, nil, &store.PersistenceError{Op: "postgres query", Err: err}
	}
	defer rows.Close()

	fds := rows.FieldDescriptions()
	cols := make([]string, len(fds))
	for i, fd := range fds {
		cols[i] = fd.Name
	}

	var out [][]string
	for rows.Next() {
		vals, err := rows.Values()
		if err != nil {
			return nil, nil, &store.PersistenceError{Op: "postgres scan", Err: err}
		}
		rec := make([]string, len(cols))
		for i := range cols {
			if i < len(vals) {
				rec[i] = store.StringifyScan(vals[i])
			}
		}
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, nil, &store.PersistenceError{Op: "postgres query", Err: err}
	}
	return cols, out, nil
}

// ---- store.Writer ----

func (s *DB) CreateTable(ctx context.Context, table string, columns []string, truncate bool) error {
	if truncate {
		if _, err := s.pool.Exec(ctx, "DROP TABLE IF EXISTS "+sqlIdent(table)); err != nil {
			return &store.PersistenceError{Op: "postgres drop table", Err: err}
		}
	}
	defs := make([]string, len(columns))
	for i, c := range columns {
		defs[i] = sqlIdent(c) + " TEXT"
	}
	q := fmt.Sprintf("CREATE TABLE IF NOT EXISTS %s (%s)", sqlIdent(table), strings.Join(defs, ", "))
	if _, err := s.pool.Exec(ctx, q); err != nil {
		return &store.PersistenceError{Op: "postgres create table", Err: err}
	}
	return nil
}

const maxInsertVars = 10000

func (s *DB) InsertRows(ctx context.Context, table string, columns []string, rows [][]string) (int64, error) {
	if len(rows) == 0 || len(columns) == 0 {
		return 0, nil
	}
	insertBatch := maxInsertVars / len(columns)
	if insertBatch < 1 {
		insertBatch = 1
	}

	idents := make([]string, len(columns))
	for i, c := range columns {
		idents[i] = sqlIdent(c)
	}
	head := fmt.Sprintf("INSERT INTO %s (%s) VALUES ", sqlIdent(table), strings.Join(idents, ", "))

	var total int64
	for off := 0; off < len(rows); off += insertBatch {
		end := off + insertBatch
		if end > len(rows) {
			end = len(rows)
		}
		batch := rows[off:end]

		var b strings.Builder
		b.WriteString(head)
		args := make([]any, 0, len(batch)*len(columns))
		for i, rec := range batch {
			if i > 0 {
				b.WriteString(", ")
			}
			b.WriteString("(")
			for j := range columns {
				if j > 0 {
					b.WriteString(", ")
				}
				fmt.Fprintf(&b, "$%d", len(args)+1)
				args = append(args, nullable(rec, j))
			}
			b.WriteString(")")
		}

		tag, err := s.pool.Exec(ctx, b.String(), args...)
		if err != nil {
			return total, &store.PersistenceError{Op: "postgres insert", Err: err}
		}
		total += tag.RowsAffected()
	}
	return total, nil
}

func nullable(rec []string, i int) any {
	if i >= len(rec) || rec[i] == "" {
		return nil
	}
	return rec[i]
}

// rebind rewrites '?' placeholders to $N. Compiled filter fragments
// bind every literal value, so no literal question marks occur.
func rebind(predicate string) string {
	var b strings.Builder
	n := 0
	for _, r := range predicate {
		if r == '?' {
			n++
			fmt.Fprintf(&b, "$%d", n)
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

// unqualified drops a leading schema qualifier for catalog lookups.
func unqualified(table string) string {
	if i := strings.LastIndexByte(table, '.'); i >= 0 {
		return table[i+1:]
	}
	return table
}

// sqlIdent quotes an identifier, keeping public.-style schema
// qualification intact.
func sqlIdent(id string) string {
	parts := strings.Split(id, ".")
	for i, p := range parts {
		parts[i] = `"` + strings.ReplaceAll(p, `"`, `""`) + `"`
	}
	return strings.Join(parts, ".")
}
