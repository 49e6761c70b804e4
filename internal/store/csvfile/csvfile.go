// Package csvfile implements a read-only store.Store over a single
// delimited file. The file plays the role of a one-table database:
// Tables reports the file's base name, Columns the header row.
//
// Legacy bank exports arrive as cp1252 or latin-1; the Encoding config
// field selects the decoder. Predicate pushdown is a SQL concern and
// is not supported here.
package csvfile

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/charmap"
	"golang.org/x/text/transform"

	"auditsample/internal/store"
)

type File struct {
	name    string
	columns []string
	rows    [][]string
}

func init() {
	store.Register("csv", New)
}

func New(ctx context.Context, cfg store.Config) (store.Store, error) {
	f, err := os.Open(cfg.DSN)
	if err != nil {
		return nil, &store.PersistenceError{Op: "csv open", Err: err}
	}
	defer f.Close()

	var src io.Reader = f
	dec, err := decoderFor(cfg.Encoding)
	if err != nil {
		return nil, &store.PersistenceError{Op: "csv open", Err: err}
	}
	if dec != nil {
		src = transform.NewReader(f, dec)
	}

	comma := cfg.Delimiter
	if comma == 0 {
		comma = ';'
	}

	columns, rows, err := readAll(src, comma)
	if err != nil {
		return nil, &store.PersistenceError{Op: "csv read", Err: err}
	}

	name := filepath.Base(cfg.DSN)
	name = strings.TrimSuffix(name, filepath.Ext(name))

	return &File{name: name, columns: columns, rows: rows}, nil
}

// readAll parses the full file into a header and data rows. Parsing is
// best-effort in the manner of the import scripts this replaces:
// records with the wrong field count are skipped, fields are trimmed.
func readAll(src io.Reader, comma rune) ([]string, [][]string, error) {
	r := csv.NewReader(src)
	r.Comma = comma
	r.FieldsPerRecord = -1 // we validate manually
	r.LazyQuotes = true

	headers, err := r.Read()
	if err != nil {
		if err == io.EOF {
			return nil, nil, fmt.Errorf("empty file")
		}
		return nil, nil, err
	}
	for i := range headers {
		headers[i] = strings.TrimSpace(headers[i])
	}
	if len(headers) > 0 {
		headers[0] = strings.TrimPrefix(headers[0], "\uFEFF")
	}

	rows := make([][]string, 0, 1024)
	for {
		rec, err := r.Read()
		if err != nil {
			if err == io.EOF {
				break
			}
			return headers, rows, err
		}
		if len(rec) != len(headers) {
			continue
		}
		for i := range rec {
			rec[i] = strings.TrimSpace(rec[i])
		}
		rows = append(rows, rec)
	}

	return headers, rows, nil
}

func decoderFor(name string) (transform.Transformer, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", "utf-8", "utf8":
		return nil, nil
	case "latin-1", "latin1", "iso-8859-1", "iso8859-1":
		return decoder(charmap.ISO8859_1), nil
	case "windows-1252", "cp1252":
		return decoder(charmap.Windows1252), nil
	case "cp850", "ibm850":
		return decoder(charmap.CodePage850), nil
	default:
		return nil, fmt.Errorf("unsupported encoding %q", name)
	}
}

func decoder(cm encoding.Encoding) transform.Transformer {
	return cm.NewDecoder()
}

func (s *File) Close() {}

func (s *File) Tables(ctx context.Context) ([]string, error) {
	return []string{s.name}, nil
}

func (s *File) checkTable(table string) error {
	if table == "" || table == s.name {
		return nil
	}
	return &store.PersistenceError{Op: "csv", Err: fmt.Errorf("no such table: %s", table)}
}

func (s *File) Columns(ctx context.Context, table string) ([]string, error) {
	if err := s.checkTable(table); err != nil {
		return nil, err
	}
	return append([]string(nil), s.columns...), nil
}

// ColumnSQLTypes reports no declared types: a delimited file carries
// none, and callers fall back to value-based inference.
func (s *File) ColumnSQLTypes(ctx context.Context, table string) (map[string]string, error) {
	if err := s.checkTable(table); err != nil {
		return nil, err
	}
	return map[string]string{}, nil
}

func (s *File) Rows(ctx context.Context, table string, limit int) ([]string, [][]string, error) {
	if err := s.checkTable(table); err != nil {
		return nil, nil, err
	}
	rows := s.rows
	if limit > 0 && limit < len(rows) {
		rows = rows[:limit]
	}
	out := make([][]string, len(rows))
	for i, rec := range rows {
		out[i] = append([]string(nil), rec...)
	}
	return append([]string(nil), s.columns...), out, nil
}

func (s *File) FilteredRows(ctx context.Context, table, predicate string, params []any) ([]string, [][]string, error) {
	if predicate != "" {
		return nil, nil, &store.PersistenceError{Op: "csv filter", Err: fmt.Errorf("predicates are not supported on file stores")}
	}
	return s.Rows(ctx, table, 0)
}

func (s *File) RowCount(ctx context.Context, table, predicate string, params []any) (int, error) {
	if predicate != "" {
		return 0, &store.PersistenceError{Op: "csv count", Err: fmt.Errorf("predicates are not supported on file stores")}
	}
	if err := s.checkTable(table); err != nil {
		return 0, err
	}
	return len(s.rows), nil
}
