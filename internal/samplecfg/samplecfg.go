// Package samplecfg persists sampling configurations: the column type
// map, the global filter set, and the sampling rules, as one JSON
// document.
//
// The on-disk format is the one the original desktop tool wrote, so
// configurations saved there keep loading here. Dates inside filter
// configs travel as YYYY-MM-DD strings and round-trip exactly.
package samplecfg

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"auditsample/internal/filter"
	"auditsample/internal/sampling"
	"auditsample/internal/schema"
)

// Configuration is the serializable pair of global filters and sampling
// rules, plus the column types they were authored against. It is
// independent of any particular dataset beyond column-name/type
// compatibility on load.
type Configuration struct {
	Name          string
	SavedAt       time.Time
	ColumnTypes   map[string]schema.ColumnType
	GlobalFilters []filter.Filter
	Rules         []sampling.Rule
}

type configurationJSON struct {
	Name          string                       `json:"name,omitempty"`
	SavedAt       string                       `json:"saved_at,omitempty"`
	ColumnTypes   map[string]schema.ColumnType `json:"column_types"`
	GlobalFilters []filter.Filter              `json:"global_filters"`
	Rules         []sampling.Rule              `json:"sampling_rules"`
}

const savedAtLayout = time.RFC3339

func (c Configuration) MarshalJSON() ([]byte, error) {
	out := configurationJSON{
		Name:          c.Name,
		ColumnTypes:   c.ColumnTypes,
		GlobalFilters: c.GlobalFilters,
		Rules:         c.Rules,
	}
	if !c.SavedAt.IsZero() {
		out.SavedAt = c.SavedAt.Format(savedAtLayout)
	}
	if out.ColumnTypes == nil {
		out.ColumnTypes = map[string]schema.ColumnType{}
	}
	if out.GlobalFilters == nil {
		out.GlobalFilters = []filter.Filter{}
	}
	if out.Rules == nil {
		out.Rules = []sampling.Rule{}
	}
	return json.Marshal(out)
}

func (c *Configuration) UnmarshalJSON(b []byte) error {
	var in configurationJSON
	if err := json.Unmarshal(b, &in); err != nil {
		return err
	}
	out := Configuration{
		Name:          in.Name,
		ColumnTypes:   in.ColumnTypes,
		GlobalFilters: in.GlobalFilters,
		Rules:         in.Rules,
	}
	if in.SavedAt != "" {
		t, err := time.Parse(savedAtLayout, in.SavedAt)
		if err != nil {
			return fmt.Errorf("parse saved_at: %w", err)
		}
		out.SavedAt = t
	}
	*c = out
	return nil
}

// Save writes the configuration to path. The file is written to a
// temporary sibling and renamed on completion, so a failed save never
// leaves a truncated configuration behind.
func Save(c Configuration, path string) error {
	b, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal configuration: %w", err)
	}
	b = append(b, '\n')

	tmp, err := os.CreateTemp(filepath.Dir(path), "."+filepath.Base(path)+".tmp-*")
	if err != nil {
		return fmt.Errorf("save configuration: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(b); err != nil {
		tmp.Close()
		return fmt.Errorf("save configuration: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("save configuration: %w", err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("save configuration: %w", err)
	}
	return nil
}

// Load reads a configuration from path without dataset validation.
// Callers loading against a live dataset follow up with Prune.
func Load(path string) (Configuration, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return Configuration{}, fmt.Errorf("load configuration: %w", err)
	}
	var c Configuration
	if err := json.Unmarshal(b, &c); err != nil {
		return Configuration{}, fmt.Errorf("load configuration %s: %w", path, err)
	}
	return c, nil
}

// Prune drops filters and rules that reference columns absent from the
// given dataset columns. The drop is silent by contract (lossy load,
// not an error); the returned counts let callers surface how much of
// the configuration survived.
func Prune(c Configuration, datasetColumns []string) (pruned Configuration, keptFilters, keptRules int) {
	known := make(map[string]struct{}, len(datasetColumns))
	for _, col := range datasetColumns {
		known[col] = struct{}{}
	}

	pruned = Configuration{
		Name:        c.Name,
		SavedAt:     c.SavedAt,
		ColumnTypes: c.ColumnTypes,
	}
	// A filter without a column is unconstrained and survives any
	// dataset; only references to columns the dataset lacks are lossy.
	for _, f := range c.GlobalFilters {
		if _, ok := known[f.Column]; !ok && f.Column != "" {
			continue
		}
		pruned.GlobalFilters = append(pruned.GlobalFilters, f)
	}
	for _, r := range c.Rules {
		if _, ok := known[r.Filter.Column]; !ok && r.Filter.Column != "" {
			continue
		}
		pruned.Rules = append(pruned.Rules, r)
	}
	return pruned, len(pruned.GlobalFilters), len(pruned.Rules)
}
