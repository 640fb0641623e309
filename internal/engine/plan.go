package engine

import (
	"github.com/roach88/relcheck/internal/ir"
	"github.com/roach88/relcheck/internal/ruleir"
)

// maxArity bounds relation width so a column set fits in a colMask.
const maxArity = 64

// colMask has bit i set when column i is bound at lookup time.
type colMask uint64

func (m colMask) has(col int) bool { return m&(1<<uint(col)) != 0 }

type stepKind uint8

const (
	stepScan stepKind = iota + 1
	stepNegate
	stepGuard
	stepCompare
)

// operand is a value known when a step runs: a slot or a constant.
type operand struct {
	slot  int // -1 for a constant
	konst ir.Value
}

func (o operand) value(slots []ir.Value) ir.Value {
	if o.slot < 0 {
		return o.konst
	}
	return slots[o.slot]
}

type actionKind uint8

const (
	actBind actionKind = iota + 1
	actCheck
)

// action is what a step does with one column of a fetched row (or one
// guard output) that is not covered by the index lookup.
type action struct {
	col  int
	kind actionKind
	// actBind: destination slot; actCheck: operand to compare against.
	slot int
	cmp  operand
}

// step is one compiled body literal.
type step struct {
	kind    stepKind
	literal string

	// stepScan, stepNegate
	rel     int
	mask    colMask
	lookup  []operand // bound columns in ascending column order
	actions []action

	// stepGuard
	guardName string
	guard     ruleir.GuardFunc
	in        []operand
	nout      int

	// stepCompare
	op          ruleir.CompareOp
	left, right operand
}

// rulePlan is a rule compiled against static boundness: every variable
// gets a slot, and every step knows which of its columns are bound.
type rulePlan struct {
	index  int // position in Program.Rules
	id     string
	head   int
	headOp []operand
	nslots int
	steps  []step
}

type planner struct {
	rule  ruleir.Rule
	rels  map[string]int
	decls []ruleir.RelationDecl
	slots map[string]int
	masks map[int]map[colMask]struct{}
}

// planRule compiles one rule. masks collects the index masks each relation
// needs.
func planRule(index int, rule ruleir.Rule, rels map[string]int, decls []ruleir.RelationDecl, masks map[int]map[colMask]struct{}) (*rulePlan, error) {
	p := &planner{rule: rule, rels: rels, decls: decls, slots: make(map[string]int), masks: masks}
	plan := &rulePlan{index: index, id: rule.ID}

	for _, lit := range rule.Body {
		st, err := p.planLiteral(lit)
		if err != nil {
			return nil, err
		}
		plan.steps = append(plan.steps, st)
	}

	head, err := p.relation(rule.Head)
	if err != nil {
		return nil, err
	}
	plan.head = head
	for _, t := range rule.Head.Args {
		op, ok := p.operand(t)
		if !ok {
			return nil, invalidProgram(rule.ID, "head term %s is not bound by the body", t)
		}
		plan.headOp = append(plan.headOp, op)
	}
	plan.nslots = len(p.slots)
	return plan, nil
}

func (p *planner) relation(a ruleir.Atom) (int, error) {
	id, ok := p.rels[a.Relation]
	if !ok {
		return 0, invalidProgram(p.rule.ID, "unknown relation %s", a.Relation)
	}
	if got, want := len(a.Args), p.decls[id].Arity; got != want {
		return 0, invalidProgram(p.rule.ID, "%s has %d arguments, declared arity %d", a.Relation, got, want)
	}
	return id, nil
}

// operand returns the operand for a term that is already bound.
func (p *planner) operand(t ruleir.Term) (operand, bool) {
	switch tt := t.(type) {
	case ruleir.Const:
		if tt.Value == nil {
			return operand{}, false
		}
		return operand{slot: -1, konst: tt.Value}, true
	case ruleir.Var:
		if s, ok := p.slots[tt.Name]; ok {
			return operand{slot: s}, true
		}
	}
	return operand{}, false
}

func (p *planner) newSlot(name string) int {
	s := len(p.slots)
	p.slots[name] = s
	return s
}

func (p *planner) planLiteral(lit ruleir.Literal) (step, error) {
	switch l := lit.(type) {
	case ruleir.Positive:
		return p.planAtom(stepScan, l.Atom, lit.String())

	case ruleir.Negated:
		st, err := p.planAtom(stepNegate, l.Atom, lit.String())
		if err != nil {
			return step{}, err
		}
		if len(st.actions) > 0 {
			return step{}, invalidProgram(p.rule.ID, "%s reads an unbound variable", lit)
		}
		return st, nil

	case ruleir.Guard:
		if l.Fn == nil {
			return step{}, invalidProgram(p.rule.ID, "guard %s has no function", l.Name)
		}
		st := step{kind: stepGuard, literal: lit.String(), guardName: l.Name, guard: l.Fn, nout: len(l.Out)}
		for _, t := range l.In {
			op, ok := p.operand(t)
			if !ok {
				return step{}, invalidProgram(p.rule.ID, "guard input %s of %s is unbound", t, lit)
			}
			st.in = append(st.in, op)
		}
		st.actions = p.columnActions(l.Out, 0)
		return st, nil

	case ruleir.Compare:
		left, lok := p.operand(l.Left)
		right, rok := p.operand(l.Right)
		if !lok || !rok {
			return step{}, invalidProgram(p.rule.ID, "comparison %s reads an unbound term", lit)
		}
		if l.Op != ruleir.OpEq && l.Op != ruleir.OpNeq {
			return step{}, invalidProgram(p.rule.ID, "unknown comparison %q", l.Op)
		}
		return step{kind: stepCompare, literal: lit.String(), op: l.Op, left: left, right: right}, nil
	}
	return step{}, invalidProgram(p.rule.ID, "unsupported literal %T", lit)
}

// planAtom splits the atom's columns into the lookup mask (bound before
// the step) and per-row actions (first occurrences bind, repeats check).
func (p *planner) planAtom(kind stepKind, a ruleir.Atom, literal string) (step, error) {
	rel, err := p.relation(a)
	if err != nil {
		return step{}, err
	}
	st := step{kind: kind, literal: literal, rel: rel}
	for col, t := range a.Args {
		if c, ok := t.(ruleir.Const); ok && c.Value == nil {
			return step{}, invalidProgram(p.rule.ID, "constant %s in %s has no value", c.Name, literal)
		}
		if op, ok := p.operand(t); ok {
			st.mask |= 1 << uint(col)
			st.lookup = append(st.lookup, op)
		}
	}
	for col, t := range a.Args {
		if st.mask.has(col) {
			continue
		}
		if v, ok := t.(ruleir.Var); ok {
			if s, seen := p.slots[v.Name]; seen {
				st.actions = append(st.actions, action{col: col, kind: actCheck, cmp: operand{slot: s}})
			} else {
				st.actions = append(st.actions, action{col: col, kind: actBind, slot: p.newSlot(v.Name)})
			}
		}
	}
	if st.mask != 0 {
		if p.masks[rel] == nil {
			p.masks[rel] = make(map[colMask]struct{})
		}
		p.masks[rel][st.mask] = struct{}{}
	}
	return st, nil
}

// columnActions plans guard outputs: bound terms check, fresh variables
// bind, wildcards are ignored.
func (p *planner) columnActions(terms []ruleir.Term, offset int) []action {
	var acts []action
	for i, t := range terms {
		if op, ok := p.operand(t); ok {
			acts = append(acts, action{col: offset + i, kind: actCheck, cmp: op})
			continue
		}
		if v, ok := t.(ruleir.Var); ok {
			acts = append(acts, action{col: offset + i, kind: actBind, slot: p.newSlot(v.Name)})
		}
	}
	return acts
}
