package analysis

import (
	"cmp"
	"context"
	"fmt"
	"slices"

	"github.com/roach88/relcheck/internal/engine"
	"github.com/roach88/relcheck/internal/intern"
	"github.com/roach88/relcheck/internal/ir"
	"github.com/roach88/relcheck/internal/resolve"
	"github.com/roach88/relcheck/internal/rulesets"
)

// Origin links a path to the binder it reads.
type Origin struct {
	Name ir.NameID
	Path ir.PathID
}

// AncestorPair is one Ancestor fact: Descendant is a strict projection of
// Ancestor.
type AncestorPair struct {
	Ancestor   ir.PathID
	Descendant ir.PathID
}

// AncestorUse is a descendant consumed at Expr while an ancestor of the
// same origin is consumed too.
type AncestorUse struct {
	Ancestor   ir.PathID
	Descendant ir.PathID
	Expr       ir.ExprID
}

// DoubleUse is a path consumed at two distinct expressions.
type DoubleUse struct {
	Path  ir.PathID
	Expr  ir.ExprID
	Other ir.ExprID
}

// Violation is a conflicting use of Path at Expr.
type Violation struct {
	Path ir.PathID
	Expr ir.ExprID
}

// LinearityReport is the decoded outcome of the linear-use rules.
type LinearityReport struct {
	RunID        string
	Root         ir.ExprID
	Origins      []Origin
	Ancestors    []AncestorPair
	AncestorUsed []AncestorUse
	DoubleUse    []DoubleUse
	Violations   []Violation
	Base         *resolve.FactBase
	Stats        engine.Stats
	Digest       string
}

// OK reports whether no violation was derived.
func (r *LinearityReport) OK() bool {
	return len(r.Violations) == 0
}

// CheckLinearity resolves the access paths of the tree at root and checks
// that no value is consumed twice, directly or through an ancestor path.
func CheckLinearity(ctx context.Context, in *intern.Interner, root ir.ExprID, opts Options) (*LinearityReport, error) {
	base, err := resolve.Paths(in, root)
	if err != nil {
		return nil, fmt.Errorf("linearity: %w", err)
	}
	prog, err := rulesets.Linearity()
	if err != nil {
		return nil, fmt.Errorf("linearity: %w", err)
	}
	r, err := opts.runner(prog)
	if err != nil {
		return nil, fmt.Errorf("linearity: %w", err)
	}
	res, err := r.Run(ctx, engine.Facts(base.Facts()))
	if err != nil {
		return nil, fmt.Errorf("linearity: %w", err)
	}

	rep, err := decodeLinearity(res)
	if err != nil {
		return nil, fmt.Errorf("linearity: %w", err)
	}
	rep.Root = root
	rep.Base = base
	return rep, nil
}

func decodeLinearity(res *engine.Result) (*LinearityReport, error) {
	rep := &LinearityReport{RunID: res.RunID, Stats: res.Stats()}

	for _, row := range res.Relation("Origin") {
		x, err := as[ir.NameID](row, 0)
		if err != nil {
			return nil, fmt.Errorf("Origin: %w", err)
		}
		p, err := as[ir.PathID](row, 1)
		if err != nil {
			return nil, fmt.Errorf("Origin: %w", err)
		}
		rep.Origins = append(rep.Origins, Origin{Name: x, Path: p})
	}
	for _, row := range res.Relation("Ancestor") {
		p, q, err := pathPair(row)
		if err != nil {
			return nil, fmt.Errorf("Ancestor: %w", err)
		}
		rep.Ancestors = append(rep.Ancestors, AncestorPair{Ancestor: p, Descendant: q})
	}
	for _, row := range res.Relation("AncestorUsed") {
		p, q, err := pathPair(row)
		if err != nil {
			return nil, fmt.Errorf("AncestorUsed: %w", err)
		}
		e, err := as[ir.ExprID](row, 2)
		if err != nil {
			return nil, fmt.Errorf("AncestorUsed: %w", err)
		}
		rep.AncestorUsed = append(rep.AncestorUsed, AncestorUse{Ancestor: p, Descendant: q, Expr: e})
	}
	for _, row := range res.Relation("DoubleUse") {
		p, err := as[ir.PathID](row, 0)
		if err != nil {
			return nil, fmt.Errorf("DoubleUse: %w", err)
		}
		e0, err := as[ir.ExprID](row, 1)
		if err != nil {
			return nil, fmt.Errorf("DoubleUse: %w", err)
		}
		e1, err := as[ir.ExprID](row, 2)
		if err != nil {
			return nil, fmt.Errorf("DoubleUse: %w", err)
		}
		rep.DoubleUse = append(rep.DoubleUse, DoubleUse{Path: p, Expr: e0, Other: e1})
	}
	for _, row := range res.Relation("Violation") {
		p, err := as[ir.PathID](row, 0)
		if err != nil {
			return nil, fmt.Errorf("Violation: %w", err)
		}
		e, err := as[ir.ExprID](row, 1)
		if err != nil {
			return nil, fmt.Errorf("Violation: %w", err)
		}
		rep.Violations = append(rep.Violations, Violation{Path: p, Expr: e})
	}

	slices.SortFunc(rep.Origins, func(a, b Origin) int {
		return cmp.Or(cmp.Compare(a.Name, b.Name), cmp.Compare(a.Path, b.Path))
	})
	slices.SortFunc(rep.Ancestors, func(a, b AncestorPair) int {
		return cmp.Or(cmp.Compare(a.Ancestor, b.Ancestor), cmp.Compare(a.Descendant, b.Descendant))
	})
	slices.SortFunc(rep.AncestorUsed, func(a, b AncestorUse) int {
		return cmp.Or(cmp.Compare(a.Ancestor, b.Ancestor), cmp.Compare(a.Descendant, b.Descendant), cmp.Compare(a.Expr, b.Expr))
	})
	slices.SortFunc(rep.DoubleUse, func(a, b DoubleUse) int {
		return cmp.Or(cmp.Compare(a.Path, b.Path), cmp.Compare(a.Expr, b.Expr), cmp.Compare(a.Other, b.Other))
	})
	slices.SortFunc(rep.Violations, func(a, b Violation) int {
		return cmp.Or(cmp.Compare(a.Path, b.Path), cmp.Compare(a.Expr, b.Expr))
	})

	digest, err := res.Digest()
	if err != nil {
		return nil, err
	}
	rep.Digest = digest
	return rep, nil
}

func pathPair(row ir.Row) (ir.PathID, ir.PathID, error) {
	p, err := as[ir.PathID](row, 0)
	if err != nil {
		return 0, 0, err
	}
	q, err := as[ir.PathID](row, 1)
	if err != nil {
		return 0, 0, err
	}
	return p, q, nil
}
