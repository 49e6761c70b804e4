package sampling

import (
	"fmt"
	"math/rand"
	"sync"
	"time"

	"auditsample/internal/schema"
)

// Result is one sampled row tagged with the rule that claimed it.
// RowIndex is the row's position in the working set, stable for the
// lifetime of one run and used to enforce cross-rule exclusivity.
type Result struct {
	RowIndex int
	Rule     string
	Row      schema.Row
}

// Error is the sampling-logic error kind, distinct from store
// persistence failures so callers can tell a broken rule from a broken
// connection.
type Error struct {
	Op     string
	Reason string
}

func (e *Error) Error() string {
	return fmt.Sprintf("sampling: %s: %s", e.Op, e.Reason)
}

// ProgressFn is invoked between rules with (done, total). Purely
// advisory; the engine never blocks on it.
type ProgressFn func(done, total int)

// Logger is the minimal logging interface used by the engine.
// *log.Logger satisfies this interface.
type Logger interface {
	Printf(format string, v ...any)
}

// Engine draws stratified samples over a typed working set.
//
// "Stratified" refers to the outer rule partitioning: each rule claims
// its draw from the rows no earlier rule has taken, so the same row can
// never appear under two rule tags within one run. Within a rule the
// draw is plain uniform sampling without replacement.
//
// An Engine is safe for use from multiple goroutines, but runs are
// serialized: configuration reload and dataset refresh are not expected
// to race an active run, and a single exclusive lock is all the
// concurrency control this workload needs.
type Engine struct {
	Logger   Logger
	Progress ProgressFn

	// Seed fixes the random source for reproducible runs. When zero,
	// each run draws a fresh time-based seed.
	Seed int64

	mu sync.Mutex
}

// Generate runs every rule in declared order against the working set
// and returns the tagged results plus one report line per rule.
//
// Semantics:
//   - Later rules only see rows not claimed by earlier rules.
//   - A rule wanting more rows than match is satisfied partially; that
//     is policy, not an error.
//   - Zero rules yield empty results and an empty report.
//
// Report lines read "<name>: <n> samples", or
// "<name>: 0 samples (no matches)" when nothing could be drawn.
func (e *Engine) Generate(t *schema.Table, rows []schema.Row, rules []Rule) ([]Result, []string, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	for _, r := range rules {
		if err := r.Validate(); err != nil {
			return nil, nil, err
		}
	}

	seed := e.Seed
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	rng := rand.New(rand.NewSource(seed))

	claimed := make(map[int]struct{})
	results := make([]Result, 0)
	report := make([]string, 0, len(rules))

	for i, rule := range rules {
		if e.Progress != nil {
			e.Progress(i+1, len(rules))
		}

		matching := make([]int, 0)
		for idx, row := range rows {
			if _, taken := claimed[idx]; taken {
				continue
			}
			if rule.Filter.Matches(t, row) {
				matching = append(matching, idx)
			}
		}

		n := rule.SampleCount
		if n > len(matching) {
			n = len(matching)
		}

		if n > 0 {
			rng.Shuffle(len(matching), func(a, b int) {
				matching[a], matching[b] = matching[b], matching[a]
			})
			for _, idx := range matching[:n] {
				claimed[idx] = struct{}{}
				results = append(results, Result{
					RowIndex: idx,
					Rule:     rule.Name,
					Row:      copyRow(rows[idx]),
				})
			}
			report = append(report, fmt.Sprintf("%s: %d samples", rule.Name, n))
		} else {
			report = append(report, fmt.Sprintf("%s: 0 samples (no matches)", rule.Name))
		}

		if e.Logger != nil {
			e.Logger.Printf("rule=%q criteria=%q matched=%d drawn=%d", rule.Name, rule.Description(), len(matching), n)
		}
	}

	return results, report, nil
}

// CountForRule reports how many of the given rows satisfy the rule's
// predicate, ignoring claims from other rules. Used for pre-run
// availability display.
func CountForRule(t *schema.Table, rows []schema.Row, rule Rule) int {
	n := 0
	for _, row := range rows {
		if rule.Filter.Matches(t, row) {
			n++
		}
	}
	return n
}

func copyRow(r schema.Row) schema.Row {
	return schema.Row{V: append([]any(nil), r.V...)}
}
