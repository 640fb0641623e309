package ruleir

import (
	"fmt"
	"regexp"
)

// Issue codes (E200-E299). The compiler reports them as validation errors.
const (
	ErrUnknownRelation  = "E201" // atom names an undeclared relation
	ErrArityMismatch    = "E202" // atom argument count differs from the declaration
	ErrHeadOnInput      = "E203" // rule derives into an input relation
	ErrUnsafeHead       = "E204" // head variable not bound by the body
	ErrUnsafeNegation   = "E205" // negated atom reads an unbound variable
	ErrUnboundInput     = "E206" // guard input or comparison operand unbound
	ErrUnknownGuard     = "E207" // guard not in the registry
	ErrWildcardInHead   = "E208" // `_` in a head argument
	ErrDuplicateName    = "E209" // duplicate relation or rule id
	ErrUnknownConst     = "E210" // constant not in the registry
	ErrMalformedLiteral = "E211" // literal has an invalid shape
	ErrGuardArity       = "E212" // guard called with the wrong number of terms
	ErrInvalidName      = "E213" // relation name is not an identifier
)

// Issue is one problem found in a rule.
type Issue struct {
	Code    string
	Rule    string
	Message string
}

func (i Issue) String() string {
	return fmt.Sprintf("[%s] rule %s: %s", i.Code, i.Rule, i.Message)
}

var identPattern = regexp.MustCompile(`^[A-Za-z][A-Za-z0-9_]*$`)

// ValidName reports whether s can name a relation.
func ValidName(s string) bool {
	return identPattern.MatchString(s)
}

// Validate checks one rule against the relation declarations.
// Returns every issue found (does not fail fast).
//
// Checks:
//  1. Every atom names a declared relation with matching arity
//  2. The head is not an input relation and has no wildcards
//  3. Range restriction: every head variable is bound by the body
//  4. Negation safety: negated atoms read only bound variables
//  5. Guard inputs and comparison operands are bound before use
//
// Validate is a pure function with no side effects.
func Validate(rule Rule, decls map[string]RelationDecl) []Issue {
	v := &validator{rule: rule.ID, decls: decls, bound: make(map[string]bool)}

	if d, ok := v.checkAtom(rule.Head); ok && d.Input {
		v.add(ErrHeadOnInput, "head relation %s is an input relation", d.Name)
	}

	for i, lit := range rule.Body {
		switch l := lit.(type) {
		case Positive:
			v.checkAtom(l.Atom)
			v.bindAll(l.Atom.Args)
		case Negated:
			v.checkAtom(l.Atom)
			for _, t := range l.Atom.Args {
				if name, ok := t.(Var); ok && !v.bound[name.Name] {
					v.add(ErrUnsafeNegation, "variable %s in %s is not bound by an earlier literal", name.Name, l)
				}
			}
		case Guard:
			if l.Fn == nil {
				v.add(ErrUnknownGuard, "guard %s has no function", l.Name)
			}
			v.requireBound(l.In, l)
			v.bindAll(l.Out)
		case Compare:
			if l.Op != OpEq && l.Op != OpNeq {
				v.add(ErrMalformedLiteral, "unknown comparison %q", l.Op)
			}
			v.requireBound([]Term{l.Left, l.Right}, l)
		case nil:
			v.add(ErrMalformedLiteral, "body literal %d is nil", i)
		}
	}

	for _, t := range rule.Head.Args {
		switch h := t.(type) {
		case Wildcard:
			v.add(ErrWildcardInHead, "head %s contains a wildcard", rule.Head)
		case Var:
			if !v.bound[h.Name] {
				v.add(ErrUnsafeHead, "head variable %s is not bound by the body", h.Name)
			}
		}
	}
	return v.issues
}

type validator struct {
	rule   string
	decls  map[string]RelationDecl
	bound  map[string]bool
	issues []Issue
}

func (v *validator) add(code, format string, args ...any) {
	v.issues = append(v.issues, Issue{Code: code, Rule: v.rule, Message: fmt.Sprintf(format, args...)})
}

func (v *validator) checkAtom(a Atom) (RelationDecl, bool) {
	d, ok := v.decls[a.Relation]
	if !ok {
		v.add(ErrUnknownRelation, "unknown relation %s", a.Relation)
		return d, false
	}
	if len(a.Args) != d.Arity {
		v.add(ErrArityMismatch, "%s has %d arguments, declared arity is %d", a, len(a.Args), d.Arity)
	}
	return d, true
}

func (v *validator) bindAll(ts []Term) {
	for _, t := range ts {
		if name, ok := t.(Var); ok {
			v.bound[name.Name] = true
		}
	}
}

func (v *validator) requireBound(ts []Term, in Literal) {
	for _, t := range ts {
		switch x := t.(type) {
		case Var:
			if !v.bound[x.Name] {
				v.add(ErrUnboundInput, "variable %s in %s is not bound by an earlier literal", x.Name, in)
			}
		case Wildcard:
			v.add(ErrUnboundInput, "wildcard cannot be an input of %s", in)
		}
	}
}
