package queryir

import (
	"fmt"

	"github.com/roach88/relcheck/internal/ruleir"
)

// FromRule translates a rule into an Insert into its head relation.
//
// Guards must take exactly one input; their Sources have 1+len(Out)
// columns. The rule must be range restricted (as checked by
// ruleir.Validate); FromRule fails on a term it cannot bind.
func FromRule(rule ruleir.Rule, decls map[string]ruleir.RelationDecl) (Insert, error) {
	b := &builder{rule: rule.ID, decls: decls, vars: make(map[string]Expr)}
	var conds []Predicate

	for _, lit := range rule.Body {
		switch l := lit.(type) {
		case ruleir.Positive:
			src, err := b.relationSource(l.Atom, fmt.Sprintf("t%d", len(b.from)))
			if err != nil {
				return Insert{}, err
			}
			b.from = append(b.from, src)
			conds = append(conds, b.match(src.Alias, 0, l.Atom.Args, true)...)

		case ruleir.Guard:
			if len(l.In) != 1 {
				return Insert{}, fmt.Errorf("rule %s: guard %s takes %d inputs, only single-input guards can be joined", rule.ID, l.Name, len(l.In))
			}
			src := Source{Kind: SourceGuard, Name: l.Name, Alias: fmt.Sprintf("t%d", len(b.from)), Arity: 1 + len(l.Out)}
			in, ok := b.expr(l.In[0])
			if !ok {
				return Insert{}, fmt.Errorf("rule %s: guard %s input %s is unbound", rule.ID, l.Name, l.In[0])
			}
			b.from = append(b.from, src)
			conds = append(conds, Equals{Left: Column{Alias: src.Alias, Index: 0}, Right: in})
			conds = append(conds, b.match(src.Alias, 1, l.Out, true)...)

		case ruleir.Compare:
			left, lok := b.expr(l.Left)
			right, rok := b.expr(l.Right)
			if !lok || !rok {
				return Insert{}, fmt.Errorf("rule %s: comparison %s reads an unbound term", rule.ID, l)
			}
			if l.Op == ruleir.OpEq {
				conds = append(conds, Equals{Left: left, Right: right})
			} else {
				conds = append(conds, NotEquals{Left: left, Right: right})
			}

		case ruleir.Negated:
			src, err := b.relationSource(l.Atom, fmt.Sprintf("n%d", b.negations))
			if err != nil {
				return Insert{}, err
			}
			b.negations++
			for _, t := range l.Atom.Args {
				if v, ok := t.(ruleir.Var); ok && b.vars[v.Name] == nil {
					return Insert{}, fmt.Errorf("rule %s: %s reads unbound variable %s", rule.ID, l, v.Name)
				}
			}
			ne := NotExists{Source: src}
			if inner := b.match(src.Alias, 0, l.Atom.Args, false); len(inner) > 0 {
				ne.Where = And{Predicates: inner}
			}
			conds = append(conds, ne)

		default:
			return Insert{}, fmt.Errorf("rule %s: unsupported literal %T", rule.ID, lit)
		}
	}

	if _, ok := decls[rule.Head.Relation]; !ok {
		return Insert{}, fmt.Errorf("rule %s: unknown relation %s", rule.ID, rule.Head.Relation)
	}
	sel := Select{From: b.from}
	for _, t := range rule.Head.Args {
		e, ok := b.expr(t)
		if !ok {
			return Insert{}, fmt.Errorf("rule %s: head term %s is unbound", rule.ID, t)
		}
		sel.Columns = append(sel.Columns, e)
	}
	if len(conds) > 0 {
		sel.Where = And{Predicates: conds}
	}
	return Insert{Table: rule.Head.Relation, Select: sel}, nil
}

type builder struct {
	rule      string
	decls     map[string]ruleir.RelationDecl
	vars      map[string]Expr // variable -> column that first bound it
	from      []Source
	negations int
}

func (b *builder) relationSource(a ruleir.Atom, alias string) (Source, error) {
	d, ok := b.decls[a.Relation]
	if !ok {
		return Source{}, fmt.Errorf("rule %s: unknown relation %s", b.rule, a.Relation)
	}
	if len(a.Args) != d.Arity {
		return Source{}, fmt.Errorf("rule %s: %s has %d arguments, declared arity %d", b.rule, a.Relation, len(a.Args), d.Arity)
	}
	return Source{Kind: SourceRelation, Name: a.Relation, Alias: alias, Arity: d.Arity}, nil
}

// expr returns the expression of a bound term.
func (b *builder) expr(t ruleir.Term) (Expr, bool) {
	switch tt := t.(type) {
	case ruleir.Const:
		if tt.Value == nil {
			return nil, false
		}
		return Literal{Value: tt.Value}, true
	case ruleir.Var:
		e, ok := b.vars[tt.Name]
		return e, ok
	}
	return nil, false
}

// match constrains columns offset.. of alias to terms. When bind is set,
// the first occurrence of a variable binds it to the column; otherwise
// every variable must already be bound.
func (b *builder) match(alias string, offset int, terms []ruleir.Term, bind bool) []Predicate {
	var conds []Predicate
	for i, t := range terms {
		col := Column{Alias: alias, Index: offset + i}
		if _, wild := t.(ruleir.Wildcard); wild {
			continue
		}
		if e, ok := b.expr(t); ok {
			conds = append(conds, Equals{Left: col, Right: e})
			continue
		}
		if v, ok := t.(ruleir.Var); ok && bind {
			b.vars[v.Name] = col
		}
	}
	return conds
}
