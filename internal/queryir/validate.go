package queryir

import (
	"fmt"
)

// ValidationResult lists structural problems found in a query.
type ValidationResult struct {
	// Valid is true when Problems is empty.
	Valid bool

	// Problems describes each defect found.
	Problems []string
}

// Validate checks that a query is well formed:
//  1. Source aliases are unique and non-empty
//  2. Every Column refers to an alias in scope and a column within arity
//  3. Every Literal carries a value
//  4. Insert targets a named table
//
// Validate is a pure function with no side effects.
func Validate(query Query) ValidationResult {
	v := &validator{problems: []string{}}
	v.validateQuery(query)

	return ValidationResult{
		Valid:    len(v.problems) == 0,
		Problems: v.problems,
	}
}

// validator accumulates problems during traversal.
type validator struct {
	problems []string
}

func (v *validator) addProblem(format string, args ...any) {
	v.problems = append(v.problems, fmt.Sprintf(format, args...))
}

func (v *validator) validateQuery(q Query) {
	switch query := q.(type) {
	case Select:
		v.validateSelect(query)
	case Insert:
		if query.Table == "" {
			v.addProblem("insert without target table")
		}
		v.validateSelect(query.Select)
	case nil:
		v.addProblem("nil query")
	default:
		v.addProblem("unknown query type %T", q)
	}
}

func (v *validator) validateSelect(sel Select) {
	scope := make(map[string]int, len(sel.From))
	for _, src := range sel.From {
		v.declare(scope, src)
	}
	for i, e := range sel.Columns {
		v.validateExpr(scope, e, fmt.Sprintf("column %d", i))
	}
	v.validatePredicate(scope, sel.Where)
}

func (v *validator) declare(scope map[string]int, src Source) {
	if src.Alias == "" {
		v.addProblem("source %s has no alias", src.Name)
		return
	}
	if _, dup := scope[src.Alias]; dup {
		v.addProblem("alias %s used twice", src.Alias)
	}
	if src.Kind != SourceRelation && src.Kind != SourceGuard {
		v.addProblem("source %s has unknown kind %d", src.Alias, src.Kind)
	}
	scope[src.Alias] = src.Arity
}

func (v *validator) validateExpr(scope map[string]int, e Expr, where string) {
	switch ex := e.(type) {
	case Column:
		arity, ok := scope[ex.Alias]
		if !ok {
			v.addProblem("%s: alias %s not in scope", where, ex.Alias)
			return
		}
		if ex.Index < 0 || ex.Index >= arity {
			v.addProblem("%s: column %d out of range for %s/%d", where, ex.Index, ex.Alias, arity)
		}
	case Literal:
		if ex.Value == nil {
			v.addProblem("%s: literal without value", where)
		}
	default:
		v.addProblem("%s: unknown expression type %T", where, e)
	}
}

func (v *validator) validatePredicate(scope map[string]int, p Predicate) {
	switch pred := p.(type) {
	case nil:
	case Equals:
		v.validateExpr(scope, pred.Left, "equals")
		v.validateExpr(scope, pred.Right, "equals")
	case NotEquals:
		v.validateExpr(scope, pred.Left, "not-equals")
		v.validateExpr(scope, pred.Right, "not-equals")
	case And:
		for _, sub := range pred.Predicates {
			v.validatePredicate(scope, sub)
		}
	case NotExists:
		inner := make(map[string]int, len(scope)+1)
		for alias, arity := range scope {
			inner[alias] = arity
		}
		v.declare(inner, pred.Source)
		v.validatePredicate(inner, pred.Where)
	default:
		v.addProblem("unknown predicate type %T", p)
	}
}
