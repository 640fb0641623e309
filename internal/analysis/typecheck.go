package analysis

import (
	"cmp"
	"context"
	"fmt"
	"slices"

	"github.com/roach88/relcheck/internal/engine"
	"github.com/roach88/relcheck/internal/intern"
	"github.com/roach88/relcheck/internal/ir"
	"github.com/roach88/relcheck/internal/rulesets"
)

// Typing is one derived TypeOf fact.
type Typing struct {
	Expr ir.ExprID
	Type ir.TypeKind
}

// Binding is one derived Bind fact: Name is bound to the value at Value.
type Binding struct {
	Name  ir.NameID
	Value ir.ExprID
}

// TypeReport is the decoded outcome of the type-inference rules.
type TypeReport struct {
	RunID    string
	Root     ir.ExprID
	Typings  []Typing
	Errors   []ir.ExprID
	Bindings []Binding
	Stats    engine.Stats
	Digest   string
}

// OK reports whether every expression received a type.
func (r *TypeReport) OK() bool {
	return len(r.Errors) == 0
}

// TypesOf returns the types derived for e, in TypeKind order.
func (r *TypeReport) TypesOf(e ir.ExprID) []ir.TypeKind {
	var out []ir.TypeKind
	for _, t := range r.Typings {
		if t.Expr == e {
			out = append(out, t.Type)
		}
	}
	return out
}

// ExprFacts flattens the interner's expression table into ExprOf facts,
// one row per node in id order.
func ExprFacts(in *intern.Interner) engine.Facts {
	facts := engine.Facts{}
	rows := make([]ir.Row, 0, in.LenExprs())
	for id, e := range in.Exprs() {
		rows = append(rows, ir.R(id, e))
	}
	facts.AddRows("ExprOf", rows...)
	return facts
}

// TypeCheck infers the type of every expression in the interner. root
// names the expression the caller considers the tree; it must have been
// issued by in. root is only validated and recorded in the report: it does
// not limit the scope, so every other tree interned in in is typed too and
// its untypeable nodes appear in Errors.
func TypeCheck(ctx context.Context, in *intern.Interner, root ir.ExprID, opts Options) (*TypeReport, error) {
	if _, err := in.ResolveExpr(root); err != nil {
		return nil, fmt.Errorf("type check: %w", err)
	}
	prog, err := rulesets.TypeInference()
	if err != nil {
		return nil, fmt.Errorf("type check: %w", err)
	}
	r, err := opts.runner(prog)
	if err != nil {
		return nil, fmt.Errorf("type check: %w", err)
	}
	res, err := r.Run(ctx, ExprFacts(in))
	if err != nil {
		return nil, fmt.Errorf("type check: %w", err)
	}
	return decodeTypes(res, root)
}

func decodeTypes(res *engine.Result, root ir.ExprID) (*TypeReport, error) {
	rep := &TypeReport{RunID: res.RunID, Root: root, Stats: res.Stats()}

	for _, row := range res.Relation("TypeOf") {
		e, err := as[ir.ExprID](row, 0)
		if err != nil {
			return nil, fmt.Errorf("TypeOf: %w", err)
		}
		t, err := as[ir.TypeKind](row, 1)
		if err != nil {
			return nil, fmt.Errorf("TypeOf: %w", err)
		}
		rep.Typings = append(rep.Typings, Typing{Expr: e, Type: t})
	}
	for _, row := range res.Relation("TypeError") {
		e, err := as[ir.ExprID](row, 0)
		if err != nil {
			return nil, fmt.Errorf("TypeError: %w", err)
		}
		rep.Errors = append(rep.Errors, e)
	}
	for _, row := range res.Relation("Bind") {
		x, err := as[ir.NameID](row, 0)
		if err != nil {
			return nil, fmt.Errorf("Bind: %w", err)
		}
		v, err := as[ir.ExprID](row, 1)
		if err != nil {
			return nil, fmt.Errorf("Bind: %w", err)
		}
		rep.Bindings = append(rep.Bindings, Binding{Name: x, Value: v})
	}

	slices.SortFunc(rep.Typings, func(a, b Typing) int {
		return cmp.Or(cmp.Compare(a.Expr, b.Expr), cmp.Compare(a.Type, b.Type))
	})
	slices.Sort(rep.Errors)
	slices.SortFunc(rep.Bindings, func(a, b Binding) int {
		return cmp.Or(cmp.Compare(a.Name, b.Name), cmp.Compare(a.Value, b.Value))
	})

	digest, err := res.Digest()
	if err != nil {
		return nil, err
	}
	rep.Digest = digest
	return rep, nil
}

// as extracts column i of row as a T.
func as[T ir.Value](row ir.Row, i int) (T, error) {
	var zero T
	if i >= len(row) {
		return zero, fmt.Errorf("row %s has no column %d", row, i)
	}
	v, ok := row[i].(T)
	if !ok {
		return zero, fmt.Errorf("row %s: column %d is %T, want %T", row, i, row[i], zero)
	}
	return v, nil
}
