// Package mssql implements store.Store for Microsoft SQL Server via
// github.com/microsoft/go-mssqldb.
package mssql

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	_ "github.com/microsoft/go-mssqldb"

	"auditsample/internal/store"
)

// DB implements store.Store and store.Writer for SQL Server.
//
// Dialect notes vs the SQLite backend:
//   - Row caps use SELECT TOP n, not LIMIT.
//   - Catalog metadata comes from INFORMATION_SCHEMA.
//   - Bind placeholders are positional @pN; compiled '?' predicates are
//     rebound before execution.
type DB struct {
	db *sql.DB
}

func init() {
	store.Register("mssql", New)
}

func New(ctx context.Context, cfg store.Config) (store.Store, error) {
	db, err := sql.Open("sqlserver", cfg.DSN)
	if err != nil {
		return nil, &store.PersistenceError{Op: "mssql open", Err: err}
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, &store.PersistenceError{Op: "mssql connect", Err: err}
	}
	return &DB{db: db}, nil
}

func (s *DB) Close() { _ = s.db.Close() }

func (s *DB) Tables(ctx context.Context) ([]string, error) {
	const q = `SELECT TABLE_NAME FROM INFORMATION_SCHEMA.TABLES
		WHERE TABLE_TYPE = 'BASE TABLE' OR TABLE_TYPE = 'VIEW'
		ORDER BY TABLE_NAME`
	rows, err := s.db.QueryContext(ctx, q)
	if err != nil {
		return nil, &store.PersistenceError{Op: "mssql list tables", Err: err}
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, &store.PersistenceError{Op: "mssql list tables", Err: err}
		}
		out = append(out, name)
	}
	if err := rows.Err(); err != nil {
		return nil, &store.PersistenceError{Op: "mssql list tables", Err: err}
	}
	return out, nil
}

func (s *DB) Columns(ctx context.Context, table string) ([]string, error) {
	const q = `SELECT COLUMN_NAME FROM INFORMATION_SCHEMA.COLUMNS
		WHERE TABLE_NAME = @p1
		ORDER BY ORDINAL_POSITION`
	rows, err := s.db.QueryContext(ctx, q, table)
	if err != nil {
		return nil, &store.PersistenceError{Op: "mssql columns", Err: err}
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, &store.PersistenceError{Op: "mssql columns", Err: err}
		}
		out = append(out, name)
	}
	if err := rows.Err(); err != nil {
		return nil, &store.PersistenceError{Op: "mssql columns", Err: err}
	}
	if len(out) == 0 {
		return nil, &store.PersistenceError{Op: "mssql columns", Err: fmt.Errorf("no such table: %s", table)}
	}
	return out, nil
}

func (s *DB) ColumnSQLTypes(ctx context.Context, table string) (map[string]string, error) {
	const q = `SELECT COLUMN_NAME, DATA_TYPE FROM INFORMATION_SCHEMA.COLUMNS
		WHERE TABLE_NAME = @p1`
	rows, err := s.db.QueryContext(ctx, q, table)
	if err != nil {
		return nil, &store.PersistenceError{Op: "mssql column types", Err: err}
	}
	defer rows.Close()

	out := map[string]string{}
	for rows.Next() {
		var name, typ string
		if err := rows.Scan(&name, &typ); err != nil {
			return nil, &store.PersistenceError{Op: "mssql column types", Err: err}
		}
		out[name] = typ
	}
	if err := rows.Err(); err != nil {
		return nil, &store.PersistenceError{Op: "mssql column types", Err: err}
	}
	return out, nil
}

func (s *DB) Rows(ctx context.Context, table string, limit int) ([]string, [][]string, error) {
	q := "SELECT * FROM " + sqlIdent(table)
	if limit > 0 {
		q = fmt.Sprintf("SELECT TOP %d * FROM %s", limit, sqlIdent(table))
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
	var n int
	if err := s.db.QueryRowContext(ctx, q, params...).Scan(&n); err != nil {
		return 0, &store.PersistenceError{Op: "mssql count", Err: err}
	}
	return n, nil
}

func (s *DB) queryRaw(ctx context.Context, q string, params []any) ([]string, [][]string, error) {
	rows, err := s.db.QueryContext(ctx, q, params...)
	if err != nil {
		return nil, nil, &store.PersistenceError{Op: "mssql query", Err: err}
	}
	defer rows.Close()

	cols, err := rows.Columns()
	if err != nil {
		return nil, nil, &store.PersistenceError{Op: "mssql query", Err: err}
	}

	var out [][]string
	scan := make([]any, len(cols))
	for i := range scan {
		scan[i] = new(any)
	}
	for rows.Next() {
		if err := rows.Scan(scan...); err != nil {
			return nil, nil, &store.PersistenceError{Op: "mssql scan", Err: err}
		}
		rec := make([]string, len(cols))
		for i := range cols {
			rec[i] = store.StringifyScan(*scan[i].(*any))
		}
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, nil, &store.PersistenceError{Op: "mssql query", Err: err}
	}
	return cols, out, nil
}

// ---- store.Writer ----

func (s *DB) CreateTable(ctx context.Context, table string, columns []string, truncate bool) error {
	if truncate {
		q := fmt.Sprintf("IF OBJECT_ID(N'%s', N'U') IS NOT NULL DROP TABLE %s",
			strings.ReplaceAll(table, "'", "''"), sqlIdent(table))
		if _, err := s.db.ExecContext(ctx, q); err != nil {
			return &store.PersistenceError{Op: "mssql drop table", Err: err}
		}
	}
	defs := make([]string, len(columns))
	for i, c := range columns {
		defs[i] = sqlIdent(c) + " NVARCHAR(MAX)"
	}
	q := fmt.Sprintf("IF OBJECT_ID(N'%s', N'U') IS NULL CREATE TABLE %s (%s)",
		strings.ReplaceAll(table, "'", "''"), sqlIdent(table), strings.Join(defs, ", "))
	if _, err := s.db.ExecContext(ctx, q); err != nil {
		return &store.PersistenceError{Op: "mssql create table", Err: err}
	}
	return nil
}

// maxInsertVars bounds bind variables per statement; SQL Server caps
// RPC parameters at 2100.
const maxInsertVars = 2000

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
				fmt.Fprintf(&b, "@p%d", len(args)+1)
				args = append(args, nullable(rec, j))
			}
			b.WriteString(")")
		}

		res, err := s.db.ExecContext(ctx, b.String(), args...)
		if err != nil {
			return total, &store.PersistenceError{Op: "mssql insert", Err: err}
		}
		if n, err := res.RowsAffected(); err == nil {
			total += n
		}
	}
	return total, nil
}

func nullable(rec []string, i int) any {
	if i >= len(rec) || rec[i] == "" {
		return nil
	}
	return rec[i]
}

// rebind rewrites '?' placeholders to the driver's positional @pN
// style. Compiled filter fragments never contain literal question
// marks outside placeholders (all values are bound), so a plain scan
// is sufficient.
func rebind(predicate string) string {
	var b strings.Builder
	n := 0
	for _, r := range predicate {
		if r == '?' {
			n++
			fmt.Fprintf(&b, "@p%d", n)
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

// sqlIdent brackets an identifier, keeping dbo.-style schema
// qualification intact.
func sqlIdent(id string) string {
	parts := strings.Split(id, ".")
	for i, p := range parts {
		parts[i] = "[" + strings.ReplaceAll(p, "]", "]]") + "]"
	}
	return strings.Join(parts, ".")
}
