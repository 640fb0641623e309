package ruleir

import (
	"fmt"
	"strings"

	"github.com/roach88/relcheck/internal/ir"
)

// Term is an argument position in an atom, guard or comparison.
//
// This is a sealed interface - only Var, Wildcard and Const implement it.
type Term interface {
	termNode() // Marker method - seals interface to this package
	String() string
}

// Var is a named logic variable, scoped to one rule.
type Var struct {
	Name string
}

// Wildcard matches anything and binds nothing. Written `_`.
type Wildcard struct{}

// Const is a named constant resolved against a Registry at compile time.
type Const struct {
	Name  string
	Value ir.Value
}

func (Var) termNode()      {}
func (Wildcard) termNode() {}
func (Const) termNode()    {}

func (v Var) String() string    { return v.Name }
func (Wildcard) String() string { return "_" }
func (c Const) String() string  { return c.Name }

// Atom applies a relation to argument terms.
type Atom struct {
	Relation string
	Args     []Term
}

func (a Atom) String() string {
	return a.Relation + "(" + joinTerms(a.Args) + ")"
}

// Literal is one conjunct of a rule body.
//
// This is a sealed interface - only Positive, Negated, Guard and Compare
// implement it.
type Literal interface {
	literalNode() // Marker method - seals interface to this package
	String() string
}

// Positive requires a matching fact and binds the atom's free variables.
type Positive struct {
	Atom Atom
}

// Negated holds iff no fact of the atom's relation matches its bound
// arguments. Wildcards are existential.
type Negated struct {
	Atom Atom
}

// Guard calls a host function on bound inputs. The function either rejects
// the candidate or returns one value per output term; outputs then bind,
// check or ignore like atom arguments.
//
// Written `name(in; out)`, e.g. `let(k; x, v, _)`.
type Guard struct {
	Name string
	In   []Term
	Out  []Term
	Fn   GuardFunc
}

// CompareOp is the operator of a Compare literal.
type CompareOp string

const (
	OpEq  CompareOp = "eq"
	OpNeq CompareOp = "neq"
)

// Compare tests two bound terms for equality or inequality.
type Compare struct {
	Op    CompareOp
	Left  Term
	Right Term
}

func (Positive) literalNode() {}
func (Negated) literalNode()  {}
func (Guard) literalNode()    {}
func (Compare) literalNode()  {}

func (p Positive) String() string { return p.Atom.String() }
func (n Negated) String() string  { return "NOT " + n.Atom.String() }

func (g Guard) String() string {
	if len(g.Out) == 0 {
		return g.Name + "(" + joinTerms(g.In) + ")"
	}
	return g.Name + "(" + joinTerms(g.In) + "; " + joinTerms(g.Out) + ")"
}

func (c Compare) String() string {
	return string(c.Op) + "(" + c.Left.String() + ", " + c.Right.String() + ")"
}

// Rule derives Head whenever every body literal holds.
type Rule struct {
	ID   string
	Head Atom
	Body []Literal
}

func (r Rule) String() string {
	parts := make([]string, len(r.Body))
	for i, l := range r.Body {
		parts[i] = l.String()
	}
	return r.Head.String() + " :- " + strings.Join(parts, ", ") + "."
}

// RelationDecl declares a relation. Input relations are supplied by the
// caller and may not appear in a rule head.
type RelationDecl struct {
	Name    string
	Arity   int
	Input   bool
	Columns []string // optional column names, for reports
}

// Stratum is a group of mutually recursive relations and the rules that
// derive them. Strata are evaluated in order.
type Stratum struct {
	Index     int
	Relations []string
	Rules     []int // indices into Program.Rules, in declaration order
}

// Program is a compiled, stratified rule set.
type Program struct {
	Name      string
	Relations []RelationDecl
	Rules     []Rule
	Strata    []Stratum
}

// Relation returns the declaration of name.
func (p *Program) Relation(name string) (RelationDecl, bool) {
	for _, d := range p.Relations {
		if d.Name == name {
			return d, true
		}
	}
	return RelationDecl{}, false
}

// Decls indexes the relation declarations by name.
func (p *Program) Decls() map[string]RelationDecl {
	m := make(map[string]RelationDecl, len(p.Relations))
	for _, d := range p.Relations {
		m[d.Name] = d
	}
	return m
}

// String prints the program in Datalog notation, grouped by stratum.
func (p *Program) String() string {
	var b strings.Builder
	if p.Name != "" {
		fmt.Fprintf(&b, "%% %s\n", p.Name)
	}
	for _, d := range p.Relations {
		kind := "derived"
		if d.Input {
			kind = "input"
		}
		fmt.Fprintf(&b, ".decl %s/%d %s\n", d.Name, d.Arity, kind)
	}
	for _, s := range p.Strata {
		fmt.Fprintf(&b, "\n%% stratum %d: %s\n", s.Index, strings.Join(s.Relations, ", "))
		for _, i := range s.Rules {
			b.WriteString(p.Rules[i].String())
			b.WriteByte('\n')
		}
	}
	return b.String()
}

func joinTerms(ts []Term) string {
	parts := make([]string, len(ts))
	for i, t := range ts {
		parts[i] = t.String()
	}
	return strings.Join(parts, ", ")
}
