package engine

import (
	"slices"

	"github.com/roach88/relcheck/internal/ir"
	"github.com/roach88/relcheck/internal/ruleir"
)

// Stats describes the work a run did.
type Stats struct {
	Strata  []StratumStats
	Rounds  int // total rounds over all strata
	Derived int // facts added by rules (input facts excluded)
}

// StratumStats describes one stratum.
type StratumStats struct {
	Index     int
	Relations []string
	Rounds    int
	Derived   int
}

// Result holds the final contents of every declared relation.
// A Result is immutable and safe for concurrent reads.
type Result struct {
	RunID string

	order []string
	rows  map[string][]ir.Row
	keys  map[string]map[string]struct{}
	stats Stats
}

// NewResult builds a Result from relation contents. Relations missing from
// rows are empty. Rows are kept in the given order; duplicates are dropped.
// Used by alternative evaluators that produce the same shape of output.
func NewResult(runID string, decls []ruleir.RelationDecl, rows map[string][]ir.Row, stats Stats) *Result {
	res := &Result{
		RunID: runID,
		rows:  make(map[string][]ir.Row, len(decls)),
		keys:  make(map[string]map[string]struct{}, len(decls)),
		stats: stats,
	}
	for _, d := range decls {
		res.order = append(res.order, d.Name)
		keys := make(map[string]struct{}, len(rows[d.Name]))
		var kept []ir.Row
		for _, row := range rows[d.Name] {
			k := row.Key()
			if _, dup := keys[k]; dup {
				continue
			}
			keys[k] = struct{}{}
			kept = append(kept, row)
		}
		res.rows[d.Name] = kept
		res.keys[d.Name] = keys
	}
	return res
}

// Relation returns the rows of name in derivation order.
// The returned slice is a copy.
func (r *Result) Relation(name string) []ir.Row {
	return slices.Clone(r.rows[name])
}

// Sorted returns the rows of name ordered by key.
func (r *Result) Sorted(name string) []ir.Row {
	return ir.SortRows(r.Relation(name))
}

// Contains reports whether name holds row.
func (r *Result) Contains(name string, row ir.Row) bool {
	_, ok := r.keys[name][row.Key()]
	return ok
}

// Len returns the number of rows of name.
func (r *Result) Len(name string) int {
	return len(r.rows[name])
}

// Relations returns the relation names in declaration order.
func (r *Result) Relations() []string {
	return slices.Clone(r.order)
}

// Facts returns every relation as engine input. Running the same program
// on this input yields an identical result.
func (r *Result) Facts() Facts {
	f := make(Facts, len(r.rows))
	for name, rows := range r.rows {
		f[name] = slices.Clone(rows)
	}
	return f
}

// Stats returns the run statistics.
func (r *Result) Stats() Stats {
	return r.stats
}

// Digest returns the content digest of the whole result. It depends only
// on the set of rows per relation, not on their order.
func (r *Result) Digest() (string, error) {
	return ir.BaseDigest(r.rows)
}
