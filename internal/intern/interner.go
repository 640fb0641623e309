// Package intern assigns stable identities to names, expressions and paths.
//
// An Interner is an explicit arena owned by one analysis run. Every
// interner draws a process-unique generation when created and stamps it
// into the ids it issues next to a 1-based local index. An id from another
// interner, one built by hand, or a zero id is therefore detected as
// dangling rather than silently aliased.
//
// Expressions are appended without deduplication: expression identity is
// positional. Paths are deduplicated structurally through a two-way map,
// so two occurrences of a.0.1 share one PathID.
//
// Thread-safety: an Interner is single-writer. Concurrent reads are safe
// only once no more ids are being issued.
package intern

import (
	"fmt"
	"iter"
	"sync/atomic"

	"fortio.org/safecast"

	"github.com/roach88/relcheck/internal/ir"
)

// generations hands out interner generations. Zero is never used.
var generations atomic.Uint32

func nextGeneration() uint32 {
	for {
		if g := generations.Add(1); g != 0 {
			return g
		}
	}
}

// Interner owns the id counters and backing storage for one run.
type Interner struct {
	gen     uint32
	names   uint32
	exprs   []ir.Expr
	paths   []ir.Path
	pathIDs map[ir.Path]ir.PathID
}

// New returns an empty interner.
func New() *Interner {
	return &Interner{gen: nextGeneration(), pathIDs: make(map[ir.Path]ir.PathID)}
}

// FreshName returns a new, strictly increasing NameID.
func (in *Interner) FreshName() ir.NameID {
	in.names++
	return ir.NameID(ir.PackID(in.gen, in.names))
}

// Expr appends e to the expression table and returns its fresh id.
//
// Every id e references must already be issued, which rules out forward
// references and cycles. Tuple elements are copied so later mutation of
// the caller's slice cannot change an interned node.
func (in *Interner) Expr(e ir.Expr) (ir.ExprID, error) {
	if e == nil {
		return 0, fmt.Errorf("intern expr: nil expression")
	}
	if err := in.checkExpr(e); err != nil {
		return 0, err
	}
	if t, ok := e.(ir.Tuple); ok {
		t.Elems = append([]ir.ExprID(nil), t.Elems...)
		e = t
	}
	id, err := nextID(len(in.exprs), "expr")
	if err != nil {
		return 0, err
	}
	in.exprs = append(in.exprs, e)
	return ir.ExprID(ir.PackID(in.gen, id)), nil
}

// MustExpr is like Expr but panics on error.
// Use only in tests or when building trees known to be valid.
func (in *Interner) MustExpr(e ir.Expr) ir.ExprID {
	id, err := in.Expr(e)
	if err != nil {
		panic(err)
	}
	return id
}

func (in *Interner) checkExpr(e ir.Expr) error {
	ctx := ir.KindOf(e).String()
	switch n := e.(type) {
	case ir.Let:
		if !in.hasName(n.Name) {
			return dangling("name", uint64(n.Name), ctx)
		}
	case ir.Var:
		if !in.hasName(n.Name) {
			return dangling("name", uint64(n.Name), ctx)
		}
	}
	for _, child := range e.Children() {
		if !in.hasExpr(child) {
			return dangling("expr", uint64(child), ctx)
		}
	}
	return nil
}

// Path returns the id of p, allocating one if no structurally equal path
// was interned before. The bool reports whether the id is new.
func (in *Interner) Path(p ir.Path) (ir.PathID, bool, error) {
	switch n := p.(type) {
	case ir.PathVar:
		if !in.hasName(n.Name) {
			return 0, false, dangling("name", uint64(n.Name), "path var")
		}
	case ir.PathProject:
		if !in.hasPath(n.Parent) {
			return 0, false, dangling("path", uint64(n.Parent), "path project")
		}
	case nil:
		return 0, false, fmt.Errorf("intern path: nil path")
	}

	if id, ok := in.pathIDs[p]; ok {
		return id, false, nil
	}
	raw, err := nextID(len(in.paths), "path")
	if err != nil {
		return 0, false, err
	}
	id := ir.PathID(ir.PackID(in.gen, raw))
	in.paths = append(in.paths, p)
	in.pathIDs[p] = id
	return id, true, nil
}

// ResolveExpr returns the node interned under id.
func (in *Interner) ResolveExpr(id ir.ExprID) (ir.Expr, error) {
	if !in.hasExpr(id) {
		return nil, dangling("expr", uint64(id), "")
	}
	return in.exprs[id.Local()-1], nil
}

// ResolvePath returns the path interned under id.
func (in *Interner) ResolvePath(id ir.PathID) (ir.Path, error) {
	if !in.hasPath(id) {
		return nil, dangling("path", uint64(id), "")
	}
	return in.paths[id.Local()-1], nil
}

// LookupPath returns the id of p without allocating. Paths naming ids of
// another interner are never found.
func (in *Interner) LookupPath(p ir.Path) (ir.PathID, bool) {
	id, ok := in.pathIDs[p]
	return id, ok
}

// LenNames returns the number of issued names.
func (in *Interner) LenNames() int { return int(in.names) }

// LenExprs returns the number of interned expressions.
func (in *Interner) LenExprs() int { return len(in.exprs) }

// LenPaths returns the number of interned paths.
func (in *Interner) LenPaths() int { return len(in.paths) }

// Exprs iterates the expression table in id order.
func (in *Interner) Exprs() iter.Seq2[ir.ExprID, ir.Expr] {
	return func(yield func(ir.ExprID, ir.Expr) bool) {
		for i, e := range in.exprs {
			if !yield(ir.ExprID(ir.PackID(in.gen, uint32(i+1))), e) {
				return
			}
		}
	}
}

// Paths iterates the path table in id order.
func (in *Interner) Paths() iter.Seq2[ir.PathID, ir.Path] {
	return func(yield func(ir.PathID, ir.Path) bool) {
		for i, p := range in.paths {
			if !yield(ir.PathID(ir.PackID(in.gen, uint32(i+1))), p) {
				return
			}
		}
	}
}

// Generation returns the generation stamped into every id of in.
func (in *Interner) Generation() uint32 { return in.gen }

func (in *Interner) hasName(id ir.NameID) bool {
	return id.Generation() == in.gen && id.Local() != 0 && id.Local() <= in.names
}

func (in *Interner) hasExpr(id ir.ExprID) bool {
	return id.Generation() == in.gen && id.Local() != 0 && int(id.Local()) <= len(in.exprs)
}

func (in *Interner) hasPath(id ir.PathID) bool {
	return id.Generation() == in.gen && id.Local() != 0 && int(id.Local()) <= len(in.paths)
}

// nextID converts a table length into the next 1-based id.
func nextID(n int, space string) (uint32, error) {
	id, err := safecast.Conv[uint32](n + 1)
	if err != nil {
		return 0, &InternerError{Code: Exhausted, Space: space}
	}
	return id, nil
}
