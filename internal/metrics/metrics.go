// Package metrics defines the minimal backend contract the sampling
// commands emit run metrics through. Core packages depend only on
// Backend; concrete sinks live in subpackages.
package metrics

// Labels are metric dimensions, e.g. {"rule": "gmbh"}.
type Labels map[string]string

// Backend receives metric observations. Implementations must be safe
// for concurrent use.
type Backend interface {
	IncCounter(name string, delta float64, labels Labels)
	ObserveHistogram(name string, value float64, labels Labels)
}

// Metric names emitted by the commands.
const (
	RowsLoaded   = "audit_rows_loaded_total"    // labels: table
	SamplesDrawn = "audit_samples_drawn_total"  // labels: rule
	RunsTotal    = "audit_runs_total"           // labels: status
	RunDuration  = "audit_run_duration_seconds" // labels: status
)

// Nop discards everything. The default when no sink is configured.
type Nop struct{}

func (Nop) IncCounter(string, float64, Labels)       {}
func (Nop) ObserveHistogram(string, float64, Labels) {}

var _ Backend = Nop{}
