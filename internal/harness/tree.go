package harness

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/roach88/relcheck/internal/intern"
	"github.com/roach88/relcheck/internal/ir"
)

// Tree is an expression tree built from a TreeSpec, with its labels.
type Tree struct {
	In    *intern.Interner
	Root  ir.ExprID
	Names map[string]ir.NameID
	Nodes map[string]ir.ExprID
}

// BuildTree interns the nodes of spec into a fresh interner.
func BuildTree(spec TreeSpec) (*Tree, error) {
	t := &Tree{
		In:    intern.New(),
		Names: make(map[string]ir.NameID, len(spec.Names)),
		Nodes: make(map[string]ir.ExprID, len(spec.Nodes)),
	}
	for _, name := range spec.Names {
		if _, dup := t.Names[name]; dup {
			return nil, fmt.Errorf("name %q declared twice", name)
		}
		t.Names[name] = t.In.FreshName()
	}

	for i, n := range spec.Nodes {
		if _, dup := t.Nodes[n.Label]; dup {
			return nil, fmt.Errorf("nodes[%d]: label %q used twice", i, n.Label)
		}
		e, err := t.expr(n)
		if err != nil {
			return nil, fmt.Errorf("nodes[%d] (%s): %w", i, n.Label, err)
		}
		id, err := t.In.Expr(e)
		if err != nil {
			return nil, fmt.Errorf("nodes[%d] (%s): %w", i, n.Label, err)
		}
		t.Nodes[n.Label] = id
	}

	root, ok := t.Nodes[spec.Root]
	if !ok {
		return nil, fmt.Errorf("root %q is not a node label", spec.Root)
	}
	t.Root = root
	return t, nil
}

func (t *Tree) expr(n NodeSpec) (ir.Expr, error) {
	switch {
	case n.Let != nil:
		x, err := t.name(n.Let.Name)
		if err != nil {
			return nil, err
		}
		v, err := t.node(n.Let.Value)
		if err != nil {
			return nil, err
		}
		b, err := t.node(n.Let.Body)
		if err != nil {
			return nil, err
		}
		return ir.Let{Name: x, Value: v, Body: b}, nil

	case n.Var != "":
		x, err := t.name(n.Var)
		if err != nil {
			return nil, err
		}
		return ir.Var{Name: x}, nil

	case n.Tuple != nil:
		elems := make([]ir.ExprID, len(n.Tuple))
		for i, label := range n.Tuple {
			id, err := t.node(label)
			if err != nil {
				return nil, err
			}
			elems[i] = id
		}
		return ir.Tuple{Elems: elems}, nil

	case n.Project != nil:
		of, err := t.node(n.Project.Of)
		if err != nil {
			return nil, err
		}
		return ir.Project{Tuple: of, Index: ir.Index(n.Project.Index)}, nil

	case n.I32 != nil:
		return ir.I32{Value: *n.I32}, nil

	case n.U32 != nil:
		return ir.U32{Value: *n.U32}, nil

	case n.Str != nil:
		return ir.Str{Value: *n.Str}, nil

	case n.Add != nil:
		l, r, err := t.operands(n.Add)
		if err != nil {
			return nil, err
		}
		return ir.Add{Left: l, Right: r}, nil

	case n.Equ != nil:
		l, r, err := t.operands(n.Equ)
		if err != nil {
			return nil, err
		}
		return ir.Equ{Left: l, Right: r}, nil
	}
	return nil, fmt.Errorf("no node kind set")
}

func (t *Tree) operands(b *BinarySpec) (ir.ExprID, ir.ExprID, error) {
	l, err := t.node(b.Left)
	if err != nil {
		return 0, 0, err
	}
	r, err := t.node(b.Right)
	if err != nil {
		return 0, 0, err
	}
	return l, r, nil
}

func (t *Tree) name(label string) (ir.NameID, error) {
	x, ok := t.Names[label]
	if !ok {
		return 0, fmt.Errorf("undeclared name %q", label)
	}
	return x, nil
}

// node resolves a label to a node listed earlier.
func (t *Tree) node(label string) (ir.ExprID, error) {
	id, ok := t.Nodes[label]
	if !ok {
		return 0, fmt.Errorf("unknown node %q (nodes may only refer to earlier labels)", label)
	}
	return id, nil
}

// Path resolves a path written as name.i.j to its interned id. Paths the
// resolver never interned do not exist in the tree.
func (t *Tree) Path(s string) (ir.PathID, error) {
	parts := strings.Split(s, ".")
	x, err := t.name(parts[0])
	if err != nil {
		return 0, err
	}
	p, ok := t.In.LookupPath(ir.PathVar{Name: x})
	if !ok {
		return 0, fmt.Errorf("path %s does not occur in the tree", s)
	}
	for _, part := range parts[1:] {
		i, err := strconv.ParseUint(part, 10, 32)
		if err != nil {
			return 0, fmt.Errorf("path %s: bad index %q", s, part)
		}
		p, ok = t.In.LookupPath(ir.PathProject{Parent: p, Index: ir.Index(i)})
		if !ok {
			return 0, fmt.Errorf("path %s does not occur in the tree", s)
		}
	}
	return p, nil
}
