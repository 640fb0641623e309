package testutil

import (
	"github.com/roach88/relcheck/internal/intern"
	"github.com/roach88/relcheck/internal/ir"
)

// Tree is an interned expression tree with labelled nodes for assertions.
type Tree struct {
	In    *intern.Interner
	Root  ir.ExprID
	Names map[string]ir.NameID
	Nodes map[string]ir.ExprID
}

func newTree() *Tree {
	return &Tree{
		In:    intern.New(),
		Names: make(map[string]ir.NameID),
		Nodes: make(map[string]ir.ExprID),
	}
}

func (t *Tree) name(label string) ir.NameID {
	n := t.In.FreshName()
	t.Names[label] = n
	return n
}

func (t *Tree) node(label string, e ir.Expr) ir.ExprID {
	id := t.In.MustExpr(e)
	if label != "" {
		t.Nodes[label] = id
	}
	return id
}

// LetVar builds `let x = 50i32 in x`.
func LetVar() *Tree {
	t := newTree()
	x := t.name("x")
	lit := t.node("lit", ir.I32{Value: 50})
	body := t.node("body", ir.Var{Name: x})
	t.Root = t.node("let", ir.Let{Name: x, Value: lit, Body: body})
	return t
}

// LetMismatch builds `let x = 50i32 in 150u32`.
func LetMismatch() *Tree {
	t := newTree()
	x := t.name("x")
	i := t.node("lit_i32", ir.I32{Value: 50})
	u := t.node("lit_u32", ir.U32{Value: 150})
	t.Root = t.node("let", ir.Let{Name: x, Value: i, Body: u})
	return t
}

// AddMismatch builds `let x = 50i32 in x + 150u32`.
func AddMismatch() *Tree {
	t := newTree()
	x := t.name("x")
	i := t.node("lit_i32", ir.I32{Value: 50})
	ref := t.node("x_ref", ir.Var{Name: x})
	u := t.node("lit_u32", ir.U32{Value: 150})
	sum := t.node("add", ir.Add{Left: ref, Right: u})
	t.Root = t.node("let", ir.Let{Name: x, Value: i, Body: sum})
	return t
}

// DoubleUse builds `let a = "foo" in let b = "bar" in let c = a in
// let d = a in 1`.
func DoubleUse() *Tree {
	t := newTree()
	a, b, c, d := t.name("a"), t.name("b"), t.name("c"), t.name("d")
	foo := t.node("foo", ir.Str{Value: "foo"})
	bar := t.node("bar", ir.Str{Value: "bar"})
	ref0 := t.node("a_ref0", ir.Var{Name: a})
	ref1 := t.node("a_ref1", ir.Var{Name: a})
	one := t.node("one", ir.I32{Value: 1})
	letD := t.node("let_d", ir.Let{Name: d, Value: ref1, Body: one})
	letC := t.node("let_c", ir.Let{Name: c, Value: ref0, Body: letD})
	letB := t.node("let_b", ir.Let{Name: b, Value: bar, Body: letC})
	t.Root = t.node("let_a", ir.Let{Name: a, Value: foo, Body: letB})
	return t
}

// DisjointProjections builds `let a = (("foo", 5), "bar") in
// let b = a.0.0 in let c = a.0.1 in let d = a.1 in 1`.
func DisjointProjections() *Tree {
	t := newTree()
	a, b, c, d := t.name("a"), t.name("b"), t.name("c"), t.name("d")
	foo := t.node("foo", ir.Str{Value: "foo"})
	five := t.node("five", ir.I32{Value: 5})
	inner := t.node("inner", ir.Tuple{Elems: []ir.ExprID{foo, five}})
	bar := t.node("bar", ir.Str{Value: "bar"})
	outer := t.node("outer", ir.Tuple{Elems: []ir.ExprID{inner, bar}})

	a00 := t.project(a, "a00", 0, 0)
	a01 := t.project(a, "a01", 0, 1)
	a1 := t.project(a, "a1", 1)

	one := t.node("one", ir.I32{Value: 1})
	letD := t.node("let_d", ir.Let{Name: d, Value: a1, Body: one})
	letC := t.node("let_c", ir.Let{Name: c, Value: a01, Body: letD})
	letB := t.node("let_b", ir.Let{Name: b, Value: a00, Body: letC})
	t.Root = t.node("let_a", ir.Let{Name: a, Value: outer, Body: letB})
	return t
}

// AncestorConflict builds `let a = (("foo", 5), "bar") in
// let b = a.0 in let c = a.0.1 in 1`, where a.0 and its child a.0.1
// are both consumed.
func AncestorConflict() *Tree {
	t := newTree()
	a, b, c := t.name("a"), t.name("b"), t.name("c")
	foo := t.node("foo", ir.Str{Value: "foo"})
	five := t.node("five", ir.I32{Value: 5})
	inner := t.node("inner", ir.Tuple{Elems: []ir.ExprID{foo, five}})
	bar := t.node("bar", ir.Str{Value: "bar"})
	outer := t.node("outer", ir.Tuple{Elems: []ir.ExprID{inner, bar}})

	a0 := t.project(a, "a0", 0)
	a01 := t.project(a, "a01", 0, 1)

	one := t.node("one", ir.I32{Value: 1})
	letC := t.node("let_c", ir.Let{Name: c, Value: a01, Body: one})
	letB := t.node("let_b", ir.Let{Name: b, Value: a0, Body: letC})
	t.Root = t.node("let_a", ir.Let{Name: a, Value: outer, Body: letB})
	return t
}

// BareLiteral builds the single expression `7i32`.
func BareLiteral() *Tree {
	t := newTree()
	t.Root = t.node("lit", ir.I32{Value: 7})
	return t
}

// project interns Var(name) followed by one Project per index and labels
// the outermost node.
func (t *Tree) project(name ir.NameID, label string, indices ...ir.Index) ir.ExprID {
	id := t.node("", ir.Var{Name: name})
	for _, i := range indices {
		id = t.node("", ir.Project{Tuple: id, Index: i})
	}
	t.Nodes[label] = id
	return id
}
