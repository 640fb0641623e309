// Package resolve turns an expression tree into the base facts of the
// linearity analysis.
//
// A single pre-order walk decides for every node whether it denotes an
// access path (a Var, or a Project of a path) and records:
//
//	Root(x, p)    p is the path of the bare variable x
//	Parent(p, q)  q = p.i for some index i
//	Used(p, e)    the value at path p is consumed at expression e
//
// A value is consumed when it is bound by a let, returned as a let body,
// placed in a tuple, or fed to an operator. Re-projecting a path is not a
// use.
package resolve

import (
	"fmt"

	"github.com/roach88/relcheck/internal/intern"
	"github.com/roach88/relcheck/internal/ir"
)

// Relation names of the emitted facts.
const (
	RelRoot   = "Root"
	RelParent = "Parent"
	RelUsed   = "Used"
)

// RootFact links a path to the binder it reads.
type RootFact struct {
	Name ir.NameID
	Path ir.PathID
}

// ParentFact links a path to a one-step projection of it.
type ParentFact struct {
	Parent ir.PathID
	Child  ir.PathID
}

// UseFact records that the value at Path is consumed at Expr.
type UseFact struct {
	Path ir.PathID
	Expr ir.ExprID
}

// FactBase holds the facts of one walk, deduplicated and in the order
// they were first emitted.
type FactBase struct {
	Roots   []RootFact
	Parents []ParentFact
	Uses    []UseFact

	seenRoots   map[RootFact]bool
	seenParents map[ParentFact]bool
	seenUses    map[UseFact]bool
}

func newFactBase() *FactBase {
	return &FactBase{
		seenRoots:   make(map[RootFact]bool),
		seenParents: make(map[ParentFact]bool),
		seenUses:    make(map[UseFact]bool),
	}
}

func (fb *FactBase) addRoot(f RootFact) {
	if !fb.seenRoots[f] {
		fb.seenRoots[f] = true
		fb.Roots = append(fb.Roots, f)
	}
}

func (fb *FactBase) addParent(f ParentFact) {
	if !fb.seenParents[f] {
		fb.seenParents[f] = true
		fb.Parents = append(fb.Parents, f)
	}
}

func (fb *FactBase) addUse(f UseFact) {
	if !fb.seenUses[f] {
		fb.seenUses[f] = true
		fb.Uses = append(fb.Uses, f)
	}
}

// Facts exports the base as evaluator input relations. All three
// relations are present even when empty.
func (fb *FactBase) Facts() map[string][]ir.Row {
	out := map[string][]ir.Row{
		RelRoot:   make([]ir.Row, 0, len(fb.Roots)),
		RelParent: make([]ir.Row, 0, len(fb.Parents)),
		RelUsed:   make([]ir.Row, 0, len(fb.Uses)),
	}
	for _, f := range fb.Roots {
		out[RelRoot] = append(out[RelRoot], ir.R(f.Name, f.Path))
	}
	for _, f := range fb.Parents {
		out[RelParent] = append(out[RelParent], ir.R(f.Parent, f.Child))
	}
	for _, f := range fb.Uses {
		out[RelUsed] = append(out[RelUsed], ir.R(f.Path, f.Expr))
	}
	return out
}

// Paths walks the tree rooted at root and returns its base facts. New
// paths are interned into in, so path ids are shared with anything else
// reading the same interner.
func Paths(in *intern.Interner, root ir.ExprID) (*FactBase, error) {
	w := &walker{in: in, facts: newFactBase()}
	if _, _, err := w.visit(root); err != nil {
		return nil, fmt.Errorf("resolve paths: %w", err)
	}
	return w.facts, nil
}

type walker struct {
	in    *intern.Interner
	facts *FactBase
}

// visit returns the path id of the node and whether it denotes a path.
func (w *walker) visit(id ir.ExprID) (ir.PathID, bool, error) {
	e, err := w.in.ResolveExpr(id)
	if err != nil {
		return 0, false, err
	}

	switch n := e.(type) {
	case ir.Var:
		p, _, err := w.in.Path(ir.PathVar{Name: n.Name})
		if err != nil {
			return 0, false, err
		}
		w.facts.addRoot(RootFact{Name: n.Name, Path: p})
		return p, true, nil

	case ir.Project:
		inner, ok, err := w.visit(n.Tuple)
		if err != nil || !ok {
			return 0, false, err
		}
		q, _, err := w.in.Path(ir.PathProject{Parent: inner, Index: n.Index})
		if err != nil {
			return 0, false, err
		}
		w.facts.addParent(ParentFact{Parent: inner, Child: q})
		return q, true, nil

	case ir.Let:
		if err := w.consume(n.Value); err != nil {
			return 0, false, err
		}
		return 0, false, w.consume(n.Body)

	case ir.Tuple:
		for _, elem := range n.Elems {
			if err := w.consume(elem); err != nil {
				return 0, false, err
			}
		}
		return 0, false, nil

	case ir.Add:
		return 0, false, w.consumeAll(n.Left, n.Right)

	case ir.Equ:
		return 0, false, w.consumeAll(n.Left, n.Right)

	case ir.I32, ir.U32, ir.Str:
		return 0, false, nil

	default:
		return 0, false, fmt.Errorf("unhandled expression %T at %s", e, id)
	}
}

// consume visits id and records a use if it denotes a path.
func (w *walker) consume(id ir.ExprID) error {
	p, ok, err := w.visit(id)
	if err != nil {
		return err
	}
	if ok {
		w.facts.addUse(UseFact{Path: p, Expr: id})
	}
	return nil
}

func (w *walker) consumeAll(ids ...ir.ExprID) error {
	for _, id := range ids {
		if err := w.consume(id); err != nil {
			return err
		}
	}
	return nil
}
