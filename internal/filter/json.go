package filter

import (
	"encoding/json"
	"fmt"
	"time"

	"auditsample/internal/schema"
)

// The wire shape mirrors the saved-configuration files the original
// desktop tool wrote: a filter object with "column", "column_type", and
// a per-type "filter_config" object. Date bounds travel as YYYY-MM-DD
// strings and must round-trip exactly.

type filterJSON struct {
	Column     string            `json:"column"`
	ColumnType schema.ColumnType `json:"column_type"`
	Config     configJSON        `json:"filter_config"`
}

type configJSON struct {
	Type    Mode     `json:"type,omitempty"`
	Values  []string `json:"values,omitempty"`
	Pattern string   `json:"pattern,omitempty"`

	Min *float64 `json:"min,omitempty"`
	Max *float64 `json:"max,omitempty"`

	From string `json:"from,omitempty"`
	To   string `json:"to,omitempty"`
}

const dateWire = "2006-01-02"

func (f Filter) MarshalJSON() ([]byte, error) {
	out := filterJSON{
		Column:     f.Column,
		ColumnType: f.Type,
		Config: configJSON{
			Type:    f.Config.Mode,
			Values:  f.Config.Values,
			Pattern: f.Config.Pattern,
			Min:     f.Config.Min,
			Max:     f.Config.Max,
		},
	}
	// An explicit empty selection with the mode omitted would otherwise
	// serialize as {} and load back as "no filter". Pin the mode so the
	// matches-nothing state survives the round trip.
	if f.Config.Values != nil && len(f.Config.Values) == 0 && f.Config.Mode == "" {
		out.Config.Type = ModeEquals
	}
	if f.Config.From != nil {
		out.Config.From = f.Config.From.Format(dateWire)
	}
	if f.Config.To != nil {
		out.Config.To = f.Config.To.Format(dateWire)
	}
	return json.Marshal(out)
}

func (f *Filter) UnmarshalJSON(b []byte) error {
	var in filterJSON
	if err := json.Unmarshal(b, &in); err != nil {
		return err
	}
	cfg := Config{
		Mode:    in.Config.Type,
		Values:  in.Config.Values,
		Pattern: in.Config.Pattern,
		Min:     in.Config.Min,
		Max:     in.Config.Max,
	}
	if in.Config.From != "" {
		t, err := time.Parse(dateWire, in.Config.From)
		if err != nil {
			return fmt.Errorf("filter %q: parse from date: %w", in.Column, err)
		}
		cfg.From = &t
	}
	if in.Config.To != "" {
		t, err := time.Parse(dateWire, in.Config.To)
		if err != nil {
			return fmt.Errorf("filter %q: parse to date: %w", in.Column, err)
		}
		cfg.To = &t
	}
	*f = Filter{Column: in.Column, Type: in.ColumnType, Config: cfg}
	return nil
}
