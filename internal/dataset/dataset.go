// Package dataset loads a table out of a store into typed, coerced
// rows and applies filters to it, either in memory or pushed down as a
// WHERE clause for query-backed stores.
package dataset

import (
	"context"
	"fmt"

	"auditsample/internal/filter"
	"auditsample/internal/sampling"
	"auditsample/internal/schema"
	"auditsample/internal/store"
)

// Options tunes loading. The zero value is usable.
type Options struct {
	// SampleLimit caps the rows fetched for value-based type
	// inference. Zero means the default of 100.
	SampleLimit int

	// Overrides pins a column to a type, skipping both the declared
	// SQL type and value inference. Unknown column names are ignored.
	Overrides map[string]schema.ColumnType
}

// Dataset is a fully loaded table bound to the store it came from, so
// filters can be re-run against the backend.
type Dataset struct {
	Table *schema.Table

	src  store.Store
	name string
}

const defaultSampleLimit = 100

// Load fetches a table and coerces every value to its column type.
//
// Type resolution per column, first match wins: caller override,
// declared SQL type, inference over a row sample. Inference never
// fails; columns that resist classification come back as unknown and
// keep their raw strings.
func Load(ctx context.Context, s store.Store, table string, opts Options) (*Dataset, error) {
	columns, err := s.Columns(ctx, table)
	if err != nil {
		return nil, err
	}

	sqlTypes, err := s.ColumnSQLTypes(ctx, table)
	if err != nil {
		return nil, err
	}

	types := make(map[string]schema.ColumnType, len(columns))
	var unresolved []int
	for i, col := range columns {
		if t, ok := opts.Overrides[col]; ok && t.Valid() {
			types[col] = t
			continue
		}
		// Text-declared columns still go through value inference:
		// bulk imports store everything as TEXT, and numbers or
		// dates routinely hide in such columns. Only a decisively
		// numeric or date declaration skips the sample.
		if t, ok := schema.TypeFromSQLType(sqlTypes[col]); ok && t != schema.Text {
			types[col] = t
			continue
		}
		unresolved = append(unresolved, i)
	}

	if len(unresolved) > 0 {
		limit := opts.SampleLimit
		if limit <= 0 {
			limit = defaultSampleLimit
		}
		_, sample, err := s.Rows(ctx, table, limit)
		if err != nil {
			return nil, err
		}
		for _, i := range unresolved {
			vals := make([]string, 0, len(sample))
			for _, rec := range sample {
				if i < len(rec) {
					vals = append(vals, rec[i])
				}
			}
			types[columns[i]] = schema.InferColumnType(vals)
		}
	}

	t := schema.NewTable(columns, types)
	_, rows, err := s.Rows(ctx, table, 0)
	if err != nil {
		return nil, err
	}
	for _, rec := range rows {
		t.AppendRaw(rec)
	}

	return &Dataset{Table: t, src: s, name: table}, nil
}

// ApplyFilters evaluates filters in memory, conjunctively, in order.
func (d *Dataset) ApplyFilters(filters []filter.Filter) []schema.Row {
	return filter.Apply(d.Table, d.Table.Rows, filters)
}

// PushdownFilters compiles filters into a single WHERE clause and asks
// the backend for the matching rows. An unconstrained filter set never
// touches the backend. Results are coerced with the dataset's resolved
// types, so either path yields the same typed rows.
func (d *Dataset) PushdownFilters(ctx context.Context, filters []filter.Filter) ([]schema.Row, error) {
	predicate, params := filter.Compose(filters)
	if predicate == "" {
		return d.ApplyFilters(filters), nil
	}

	cols, rows, err := d.src.FilteredRows(ctx, d.name, predicate, params)
	if err != nil {
		return nil, err
	}
	if len(cols) != len(d.Table.Columns) {
		return nil, fmt.Errorf("filtered query returned %d columns, expected %d", len(cols), len(d.Table.Columns))
	}

	out := schema.NewTable(d.Table.Columns, d.Table.Types)
	for _, rec := range rows {
		out.AppendRaw(rec)
	}
	return out.Rows, nil
}

// CountForRule reports how many rows of the working set a rule's
// filter matches.
func (d *Dataset) CountForRule(rows []schema.Row, rule sampling.Rule) int {
	return sampling.CountForRule(d.Table, rows, rule)
}
