// Package sampling implements quota rules and the stratified sampling
// engine that draws per-rule random samples without replacement across
// rules.
package sampling

import (
	"encoding/json"
	"fmt"

	"auditsample/internal/filter"
)

// Rule is a named sampling quota over a filter predicate. Rules are
// evaluated in declared order; the order decides which rule claims rows
// matched by more than one rule.
type Rule struct {
	Name        string
	Filter      filter.Filter
	SampleCount int
}

// Description renders the rule's constraint for audit logs. A rule
// without criteria reports "no criteria".
func (r Rule) Description() string {
	if r.Filter.Column == "" || r.Filter.Config.IsZero() {
		return "no criteria"
	}
	return r.Filter.Description()
}

// Validate reports malformed rule configurations. Rules normally arrive
// column-valid from configuration load; this is the defensive check the
// engine runs before sampling.
func (r Rule) Validate() error {
	if r.Name == "" {
		return &Error{Op: "validate", Reason: "rule has no name"}
	}
	if r.SampleCount < 0 {
		return &Error{Op: "validate", Reason: fmt.Sprintf("rule %q: negative sample count %d", r.Name, r.SampleCount)}
	}
	return nil
}

// ruleJSON is the saved-configuration shape: a filter object with a
// name and sample_count alongside.
type ruleJSON struct {
	Name        string          `json:"name"`
	Column      string          `json:"column"`
	ColumnType  json.RawMessage `json:"column_type"`
	Config      json.RawMessage `json:"filter_config"`
	SampleCount int             `json:"sample_count"`
}

func (r Rule) MarshalJSON() ([]byte, error) {
	fb, err := json.Marshal(r.Filter)
	if err != nil {
		return nil, err
	}
	var flat map[string]json.RawMessage
	if err := json.Unmarshal(fb, &flat); err != nil {
		return nil, err
	}
	return json.Marshal(struct {
		Name        string          `json:"name"`
		Column      json.RawMessage `json:"column"`
		ColumnType  json.RawMessage `json:"column_type"`
		Config      json.RawMessage `json:"filter_config"`
		SampleCount int             `json:"sample_count"`
	}{r.Name, flat["column"], flat["column_type"], flat["filter_config"], r.SampleCount})
}

func (r *Rule) UnmarshalJSON(b []byte) error {
	var in ruleJSON
	if err := json.Unmarshal(b, &in); err != nil {
		return err
	}
	var f filter.Filter
	fb, err := json.Marshal(struct {
		Column     string          `json:"column"`
		ColumnType json.RawMessage `json:"column_type"`
		Config     json.RawMessage `json:"filter_config"`
	}{in.Column, in.ColumnType, in.Config})
	if err != nil {
		return err
	}
	if err := json.Unmarshal(fb, &f); err != nil {
		return err
	}
	*r = Rule{Name: in.Name, Filter: f, SampleCount: in.SampleCount}
	return nil
}
