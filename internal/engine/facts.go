package engine

import (
	"slices"

	"github.com/roach88/relcheck/internal/ir"
)

// Facts maps relation names to rows. It is the input of Run.
//
// Rows are loaded in slice order; duplicates are dropped on load. Facts
// may include derived relations: they are loaded before evaluation starts,
// which is how a run is repeated on its own output.
type Facts map[string][]ir.Row

// Add appends one row to relation rel.
func (f Facts) Add(rel string, vals ...ir.Value) {
	f[rel] = append(f[rel], ir.Row(vals))
}

// AddRows appends rows to relation rel.
func (f Facts) AddRows(rel string, rows ...ir.Row) {
	f[rel] = append(f[rel], rows...)
}

// Merge appends every row of other.
func (f Facts) Merge(other map[string][]ir.Row) {
	for rel, rows := range other {
		f[rel] = append(f[rel], rows...)
	}
}

// Relations returns the relation names in sorted order.
func (f Facts) Relations() []string {
	names := make([]string, 0, len(f))
	for name := range f {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}
