// Package compiler turns CUE rule-set sources into stratified programs.
//
// A source declares relations and rules as plain CUE data:
//
//	name: "closure"
//	relations: {
//		Edge: {arity: 2, input: true}
//		Path: {arity: 2}
//	}
//	rules: [
//		{id: "base", head: ["Path", "a", "b"], body: [{atom: ["Edge", "a", "b"]}]},
//		{id: "step", head: ["Path", "a", "c"], body: [
//			{atom: ["Path", "a", "b"]},
//			{atom: ["Edge", "b", "c"]},
//		]},
//	]
//
// Terms are strings: `_` is a wildcard, a name starting with an upper-case
// letter is a constant from the Registry, anything else is a variable.
// Body literals take one of four shapes:
//
//	{atom: [Rel, terms...]}
//	{not: [Rel, terms...]}
//	{guard: name, in: [terms...], out: [terms...]}
//	{cmp: "eq" | "neq", left: term, right: term}
package compiler

import (
	_ "embed"
	"fmt"
	"unicode"
	"unicode/utf8"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	"cuelang.org/go/cue/token"

	"github.com/roach88/relcheck/internal/ruleir"
)

//go:embed schema.cue
var schemaCUE string

// Compile parses, validates and stratifies a CUE rule-set source.
// Uses the CUE SDK's Go API directly.
//
// Errors:
//   - *CompileError for malformed CUE or a source not matching the schema
//   - ValidationErrors for rule-level problems (all of them, not just the first)
//   - *NegationCycleError when the rules cannot be stratified
func Compile(src []byte, filename string, reg *ruleir.Registry) (*ruleir.Program, error) {
	ctx := cuecontext.New()

	schema := ctx.CompileString(schemaCUE, cue.Filename("schema.cue"))
	if err := schema.Err(); err != nil {
		return nil, formatCUEError(err)
	}

	v := ctx.CompileBytes(src, cue.Filename(filename))
	if err := v.Err(); err != nil {
		return nil, formatCUEError(err)
	}

	v = schema.Unify(v)
	if err := v.Validate(cue.Concrete(true)); err != nil {
		return nil, formatCUEError(err)
	}

	return CompileValue(v, reg)
}

// CompileValue compiles an already-built CUE value.
func CompileValue(v cue.Value, reg *ruleir.Registry) (*ruleir.Program, error) {
	if err := v.Err(); err != nil {
		return nil, formatCUEError(err)
	}
	if reg == nil {
		reg = ruleir.NewRegistry()
	}

	p := &parser{reg: reg}
	prog := &ruleir.Program{}

	name, err := v.LookupPath(cue.ParsePath("name")).String()
	if err != nil {
		return nil, formatCUEError(err)
	}
	prog.Name = name

	prog.Relations, err = p.parseRelations(v)
	if err != nil {
		return nil, err
	}

	prog.Rules, err = p.parseRules(v)
	if err != nil {
		return nil, err
	}

	p.errs = append(p.errs, validateProgram(prog, p.lines)...)
	if len(p.errs) > 0 {
		return nil, p.errs
	}

	prog.Strata, err = Stratify(prog.Relations, prog.Rules)
	if err != nil {
		return nil, err
	}
	return prog, nil
}

// MustCompile is like Compile but panics on error.
// Use only for sources embedded in the binary.
func MustCompile(src []byte, filename string, reg *ruleir.Registry) *ruleir.Program {
	prog, err := Compile(src, filename, reg)
	if err != nil {
		panic(err)
	}
	return prog
}

type parser struct {
	reg   *ruleir.Registry
	errs  ValidationErrors
	lines map[string]int // rule id -> source line
}

func (p *parser) addError(field, code string, pos token.Pos, format string, args ...any) {
	e := ValidationError{Field: field, Code: code, Message: fmt.Sprintf(format, args...)}
	if pos.IsValid() {
		e.Line = pos.Line()
	}
	p.errs = append(p.errs, e)
}

// parseRelations reads relation declarations in source order.
func (p *parser) parseRelations(v cue.Value) ([]ruleir.RelationDecl, error) {
	relsVal := v.LookupPath(cue.ParsePath("relations"))
	iter, err := relsVal.Fields()
	if err != nil {
		return nil, formatCUEError(err)
	}

	var decls []ruleir.RelationDecl
	for iter.Next() {
		name := iter.Label()
		rv := iter.Value()

		arity, err := rv.LookupPath(cue.ParsePath("arity")).Int64()
		if err != nil {
			return nil, formatCUEError(err)
		}
		decl := ruleir.RelationDecl{Name: name, Arity: int(arity)}

		if in := rv.LookupPath(cue.ParsePath("input")); in.Exists() {
			if decl.Input, err = in.Bool(); err != nil {
				return nil, formatCUEError(err)
			}
		}
		if cols := rv.LookupPath(cue.ParsePath("columns")); cols.Exists() {
			if err := cols.Decode(&decl.Columns); err != nil {
				return nil, formatCUEError(err)
			}
			if len(decl.Columns) != decl.Arity {
				p.addError("relations."+name+".columns", ruleir.ErrArityMismatch, cols.Pos(),
					"%d column names for arity %d", len(decl.Columns), decl.Arity)
			}
		}
		if !ruleir.ValidName(name) {
			p.addError("relations."+name, ruleir.ErrInvalidName, rv.Pos(),
				"relation name %q is not an identifier", name)
		}
		decls = append(decls, decl)
	}
	return decls, nil
}

// parseRules reads rules in source order.
func (p *parser) parseRules(v cue.Value) ([]ruleir.Rule, error) {
	list, err := v.LookupPath(cue.ParsePath("rules")).List()
	if err != nil {
		return nil, formatCUEError(err)
	}
	p.lines = make(map[string]int)

	var rules []ruleir.Rule
	for list.Next() {
		rv := list.Value()
		var raw struct {
			ID   string   `json:"id"`
			Head []string `json:"head"`
		}
		if err := rv.Decode(&raw); err != nil {
			return nil, formatCUEError(err)
		}
		if pos := rv.Pos(); pos.IsValid() {
			p.lines[raw.ID] = pos.Line()
		}

		rule := ruleir.Rule{ID: raw.ID, Head: p.parseAtom(raw.ID, "rules."+raw.ID+".head", raw.Head, rv.Pos())}

		body, err := rv.LookupPath(cue.ParsePath("body")).List()
		if err != nil {
			return nil, formatCUEError(err)
		}
		for i := 0; body.Next(); i++ {
			lit, err := p.parseLiteral(raw.ID, i, body.Value())
			if err != nil {
				return nil, err
			}
			if lit != nil {
				rule.Body = append(rule.Body, lit)
			}
		}
		rules = append(rules, rule)
	}
	return rules, nil
}

// literalShape mirrors #Literal in schema.cue.
type literalShape struct {
	Atom  []string `json:"atom"`
	Not   []string `json:"not"`
	Guard *string  `json:"guard"`
	In    []string `json:"in"`
	Out   []string `json:"out"`
	Cmp   *string  `json:"cmp"`
	Left  *string  `json:"left"`
	Right *string  `json:"right"`
}

// parseLiteral returns nil (after recording an error) for a literal that
// cannot be built, so the remaining rules are still checked.
func (p *parser) parseLiteral(ruleID string, i int, lv cue.Value) (ruleir.Literal, error) {
	field := fmt.Sprintf("rules.%s.body[%d]", ruleID, i)

	var s literalShape
	if err := lv.Decode(&s); err != nil {
		return nil, formatCUEError(err)
	}

	shapes := 0
	for _, present := range []bool{s.Atom != nil, s.Not != nil, s.Guard != nil, s.Cmp != nil} {
		if present {
			shapes++
		}
	}
	if shapes != 1 {
		p.addError(field, ruleir.ErrMalformedLiteral, lv.Pos(),
			"literal must have exactly one of atom, not, guard, cmp")
		return nil, nil
	}

	switch {
	case s.Atom != nil:
		return ruleir.Positive{Atom: p.parseAtom(ruleID, field, s.Atom, lv.Pos())}, nil

	case s.Not != nil:
		return ruleir.Negated{Atom: p.parseAtom(ruleID, field, s.Not, lv.Pos())}, nil

	case s.Guard != nil:
		spec, ok := p.reg.Guard(*s.Guard)
		if !ok {
			p.addError(field, ruleir.ErrUnknownGuard, lv.Pos(), "unknown guard %q", *s.Guard)
			return nil, nil
		}
		if len(s.In) != spec.In || len(s.Out) != spec.Out {
			p.addError(field, ruleir.ErrGuardArity, lv.Pos(),
				"guard %s takes %d inputs and %d outputs, got %d and %d",
				spec.Name, spec.In, spec.Out, len(s.In), len(s.Out))
			return nil, nil
		}
		return ruleir.Guard{
			Name: spec.Name,
			In:   p.parseTerms(field, s.In, lv.Pos()),
			Out:  p.parseTerms(field, s.Out, lv.Pos()),
			Fn:   spec.Fn,
		}, nil

	default:
		if s.Left == nil || s.Right == nil {
			p.addError(field, ruleir.ErrMalformedLiteral, lv.Pos(), "comparison needs left and right")
			return nil, nil
		}
		return ruleir.Compare{
			Op:    ruleir.CompareOp(*s.Cmp),
			Left:  p.parseTerm(field, *s.Left, lv.Pos()),
			Right: p.parseTerm(field, *s.Right, lv.Pos()),
		}, nil
	}
}

func (p *parser) parseAtom(ruleID, field string, parts []string, pos token.Pos) ruleir.Atom {
	if len(parts) == 0 {
		p.addError(field, ruleir.ErrMalformedLiteral, pos, "rule %s: empty atom", ruleID)
		return ruleir.Atom{}
	}
	return ruleir.Atom{Relation: parts[0], Args: p.parseTerms(field, parts[1:], pos)}
}

func (p *parser) parseTerms(field string, raw []string, pos token.Pos) []ruleir.Term {
	terms := make([]ruleir.Term, len(raw))
	for i, s := range raw {
		terms[i] = p.parseTerm(field, s, pos)
	}
	return terms
}

// parseTerm classifies a term string.
func (p *parser) parseTerm(field, s string, pos token.Pos) ruleir.Term {
	if s == "_" {
		return ruleir.Wildcard{}
	}
	r, _ := utf8.DecodeRuneInString(s)
	if unicode.IsUpper(r) {
		val, ok := p.reg.Const(s)
		if !ok {
			p.addError(field, ruleir.ErrUnknownConst, pos, "unknown constant %q", s)
		}
		return ruleir.Const{Name: s, Value: val}
	}
	if !ruleir.ValidName(s) {
		p.addError(field, ruleir.ErrMalformedLiteral, pos, "invalid variable name %q", s)
	}
	return ruleir.Var{Name: s}
}
