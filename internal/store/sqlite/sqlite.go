// Package sqlite implements store.Store for SQLite via modernc.org/sqlite.
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	_ "modernc.org/sqlite"

	"auditsample/internal/store"
)

// DB implements store.Store and store.Writer for SQLite.
//
// SQLite keeps everything with loose affinity, so the declared column
// types reported by ColumnSQLTypes are hints at best; the inference
// layer treats them accordingly.
type DB struct {
	db *sql.DB
}

func init() {
	store.Register("sqlite", New)
}

func New(ctx context.Context, cfg store.Config) (store.Store, error) {
	db, err := sql.Open("sqlite", cfg.DSN)
	if err != nil {
		return nil, &store.PersistenceError{Op: "sqlite open", Err: err}
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, &store.PersistenceError{Op: "sqlite connect", Err: err}
	}
	return &DB{db: db}, nil
}

func (s *DB) Close() { _ = s.db.Close() }

func (s *DB) Tables(ctx context.Context) ([]string, error) {
	const q = `SELECT name FROM sqlite_master
		WHERE type IN ('table', 'view') AND name NOT LIKE 'sqlite_%'
		ORDER BY name`
	rows, err := s.db.QueryContext(ctx, q)
	if err != nil {
		return nil, &store.PersistenceError{Op: "sqlite list tables", Err: err}
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, &store.PersistenceError{Op: "sqlite list tables", Err: err}
		}
		out = append(out, name)
	}
	if err := rows.Err(); err != nil {
		return nil, &store.PersistenceError{Op: "sqlite list tables", Err: err}
	}
	return out, nil
}

func (s *DB) Columns(ctx context.Context, table string) ([]string, error) {
	cols, _, err := s.tableInfo(ctx, table)
	return cols, err
}

func (s *DB) ColumnSQLTypes(ctx context.Context, table string) (map[string]string, error) {
	_, types, err := s.tableInfo(ctx, table)
	return types, err
}

func (s *DB) tableInfo(ctx context.Context, table string) ([]string, map[string]string, error) {
	q := fmt.Sprintf("PRAGMA table_info(%s)", sqlIdent(table))
	rows, err := s.db.QueryContext(ctx, q)
	if err != nil {
		return nil, nil, &store.PersistenceError{Op: "sqlite table info", Err: err}
	}
	defer rows.Close()

	var cols []string
	types := map[string]string{}
	for rows.Next() {
		var (
			cid     int
			name    string
			typ     string
			notNull int
			dflt    sql.NullString
			pk      int
		)
		if err := rows.Scan(&cid, &name, &typ, &notNull, &dflt, &pk); err != nil {
			return nil, nil, &store.PersistenceError{Op: "sqlite table info", Err: err}
		}
		cols = append(cols, name)
		types[name] = typ
	}
	if err := rows.Err(); err != nil {
		return nil, nil, &store.PersistenceError{Op: "sqlite table info", Err: err}
	}
	if len(cols) == 0 {
		return nil, nil, &store.PersistenceError{Op: "sqlite table info", Err: fmt.Errorf("no such table: %s", table)}
	}
	return cols, types, nil
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
		q += " WHERE " + predicate
	}
	return s.queryRaw(ctx, q, params)
}

func (s *DB) RowCount(ctx context.Context, table, predicate string, params []any) (int, error) {
	q := "SELECT COUNT(*) FROM " + sqlIdent(table)
	if predicate != "" {
		q += " WHERE " + predicate
	}
	var n int
	if err := s.db.QueryRowContext(ctx, q, params...).Scan(&n); err != nil {
		return 0, &store.PersistenceError{Op: "sqlite count", Err: err}
	}
	return n, nil
}

func (s *DB) queryRaw(ctx context.Context, q string, params []any) ([]string, [][]string, error) {
	rows, err := s.db.QueryContext(ctx, q, params...)
	if err != nil {
		return nil, nil, &store.PersistenceError{Op: "sqlite query", Err: err}
	}
	defer rows.Close()

	cols, err := rows.Columns()
	if err != nil {
		return nil, nil, &store.PersistenceError{Op: "sqlite query", Err: err}
	}

	var out [][]string
	scan := make([]any, len(cols))
	for i := range scan {
		scan[i] = new(any)
	}
	for rows.Next() {
		if err := rows.Scan(scan...); err != nil {
			return nil, nil, &store.PersistenceError{Op: "sqlite scan", Err: err}
		}
		rec := make([]string, len(cols))
		for i := range cols {
			rec[i] = store.StringifyScan(*scan[i].(*any))
		}
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, nil, &store.PersistenceError{Op: "sqlite query", Err: err}
	}
	return cols, out, nil
}

// ---- store.Writer ----

func (s *DB) CreateTable(ctx context.Context, table string, columns []string, truncate bool) error {
	if truncate {
		if _, err := s.db.ExecContext(ctx, "DROP TABLE IF EXISTS "+sqlIdent(table)); err != nil {
			return &store.PersistenceError{Op: "sqlite drop table", Err: err}
		}
	}
	defs := make([]string, len(columns))
	for i, c := range columns {
		defs[i] = sqlIdent(c) + " TEXT"
	}
	q := fmt.Sprintf("CREATE TABLE IF NOT EXISTS %s (%s)", sqlIdent(table), strings.Join(defs, ", "))
	if _, err := s.db.ExecContext(ctx, q); err != nil {
		return &store.PersistenceError{Op: "sqlite create table", Err: err}
	}
	return nil
}

// maxInsertVars bounds bind variables per multi-row INSERT; SQLite's
// default limit is 999.
const maxInsertVars = 900

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
				b.WriteString("?")
				args = append(args, nullable(rec, j))
			}
			b.WriteString(")")
		}

		res, err := s.db.ExecContext(ctx, b.String(), args...)
		if err != nil {
			return total, &store.PersistenceError{Op: "sqlite insert", Err: err}
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

func sqlIdent(id string) string {
	// SQLite supports "quoted identifiers"
	return `"` + strings.ReplaceAll(id, `"`, `""`) + `"`
}
