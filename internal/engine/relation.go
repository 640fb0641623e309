package engine

import (
	"slices"

	"fortio.org/safecast"

	"github.com/roach88/relcheck/internal/ir"
)

// relation is an append-only set of rows.
//
// Rows are never removed or reordered, so a row's position is stable for
// the whole run and a delta is just a window [lo, hi) over rows.
type relation struct {
	name    string
	arity   int
	rows    []ir.Row
	keys    map[string]struct{}
	indexes map[colMask]*index
}

// index maps the key of the bound columns to the positions of the rows
// carrying those values. Positions are appended in insertion order, so
// every bucket is sorted ascending.
type index struct {
	cols    []int
	buckets map[string][]uint32
}

// span is a window of row positions.
type span struct {
	lo, hi int
}

func newRelation(name string, arity int, masks map[colMask]struct{}) *relation {
	r := &relation{
		name:    name,
		arity:   arity,
		keys:    make(map[string]struct{}),
		indexes: make(map[colMask]*index, len(masks)),
	}
	for m := range masks {
		idx := &index{buckets: make(map[string][]uint32)}
		for col := 0; col < arity; col++ {
			if m.has(col) {
				idx.cols = append(idx.cols, col)
			}
		}
		r.indexes[m] = idx
	}
	return r
}

func (r *relation) len() int { return len(r.rows) }

func (r *relation) has(key string) bool {
	_, ok := r.keys[key]
	return ok
}

// insert adds row under key unless it is already present.
// Returns whether the row was new.
func (r *relation) insert(key string, row ir.Row) (bool, error) {
	if r.has(key) {
		return false, nil
	}
	pos, err := safecast.Conv[uint32](len(r.rows))
	if err != nil {
		return false, &RuntimeError{Code: ErrCodeInvalidFact, Message: "relation too large", Relation: r.name}
	}
	r.rows = append(r.rows, row)
	r.keys[key] = struct{}{}
	for _, idx := range r.indexes {
		k := idx.key(row)
		idx.buckets[k] = append(idx.buckets[k], pos)
	}
	return true, nil
}

func (idx *index) key(row ir.Row) string {
	vals := make(ir.Row, len(idx.cols))
	for i, col := range idx.cols {
		vals[i] = row[col]
	}
	return vals.Key()
}

// lookup calls fn for every row position in sp whose bound columns have
// the given key, in ascending order. Iteration stops when fn returns false.
func (r *relation) lookup(m colMask, key string, sp span, fn func(pos int) bool) {
	bucket := r.indexes[m].buckets[key]
	start, _ := slices.BinarySearch(bucket, uint32(sp.lo))
	for _, p := range bucket[start:] {
		if int(p) >= sp.hi {
			return
		}
		if !fn(int(p)) {
			return
		}
	}
}

// any reports whether some row in sp has the given key on mask m.
// A zero mask matches every row.
func (r *relation) any(m colMask, key string, sp span) bool {
	if m == 0 {
		return sp.hi > sp.lo
	}
	found := false
	r.lookup(m, key, sp, func(int) bool {
		found = true
		return false
	})
	return found
}
