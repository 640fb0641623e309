package report

import (
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/roach88/relcheck/internal/intern"
	"github.com/roach88/relcheck/internal/ir"
)

// FormatExpr renders the expression at id in the surface notation:
//
//	let x_0 = 50i32 in x_0
//	(("foo", 5i32), "bar").0.1
//	x_0 + 150u32
//
// With inline false every `in` ends a line, so a let chain prints one
// binding per line.
func FormatExpr(in *intern.Interner, id ir.ExprID, inline bool) (string, error) {
	var b strings.Builder
	if err := writeExpr(&b, in, id, inline); err != nil {
		return "", err
	}
	return b.String(), nil
}

func writeExpr(b *strings.Builder, in *intern.Interner, id ir.ExprID, inline bool) error {
	e, err := in.ResolveExpr(id)
	if err != nil {
		return err
	}

	switch n := e.(type) {
	case ir.Let:
		b.WriteString("let ")
		b.WriteString(nameString(n.Name))
		b.WriteString(" = ")
		if err := writeExpr(b, in, n.Value, inline); err != nil {
			return err
		}
		if inline {
			b.WriteString(" in ")
		} else {
			b.WriteString(" in\n")
		}
		return writeExpr(b, in, n.Body, inline)

	case ir.Var:
		b.WriteString(nameString(n.Name))

	case ir.Tuple:
		b.WriteByte('(')
		for i, elem := range n.Elems {
			if i > 0 {
				b.WriteString(", ")
			}
			if err := writeExpr(b, in, elem, inline); err != nil {
				return err
			}
		}
		b.WriteByte(')')

	case ir.Project:
		if err := writeExpr(b, in, n.Tuple, inline); err != nil {
			return err
		}
		b.WriteByte('.')
		b.WriteString(n.Index.String())

	case ir.I32:
		b.WriteString(strconv.FormatInt(int64(n.Value), 10))
		b.WriteString("i32")

	case ir.U32:
		b.WriteString(strconv.FormatUint(uint64(n.Value), 10))
		b.WriteString("u32")

	case ir.Str:
		b.WriteString(strconv.Quote(n.Value))

	case ir.Add:
		return writeBinary(b, in, n.Left, " + ", n.Right, inline)

	case ir.Equ:
		return writeBinary(b, in, n.Left, " == ", n.Right, inline)

	default:
		return fmt.Errorf("unhandled expression %T at %s", e, id)
	}
	return nil
}

func writeBinary(b *strings.Builder, in *intern.Interner, l ir.ExprID, op string, r ir.ExprID, inline bool) error {
	if err := writeExpr(b, in, l, inline); err != nil {
		return err
	}
	b.WriteString(op)
	return writeExpr(b, in, r, inline)
}

// nameString renders a binder the way let expressions print it.
func nameString(n ir.NameID) string {
	return "x_" + strconv.FormatUint(uint64(n.Local())-1, 10)
}

// FormatPath renders a path as its root binder followed by the field
// indices, e.g. x0.1.0.
func FormatPath(in *intern.Interner, id ir.PathID) (string, error) {
	var idx []string
	for {
		p, err := in.ResolvePath(id)
		if err != nil {
			return "", err
		}
		switch n := p.(type) {
		case ir.PathVar:
			var b strings.Builder
			b.WriteString(n.Name.String())
			for i := len(idx) - 1; i >= 0; i-- {
				b.WriteByte('.')
				b.WriteString(idx[i])
			}
			return b.String(), nil
		case ir.PathProject:
			idx = append(idx, n.Index.String())
			id = n.Parent
		default:
			return "", fmt.Errorf("unhandled path %T at %s", p, id)
		}
	}
}

// PrintExpr writes the expression at id followed by a blank line.
func PrintExpr(w io.Writer, in *intern.Interner, id ir.ExprID, inline bool) error {
	s, err := FormatExpr(in, id, inline)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintf(w, "%s\n\n", s)
	return err
}
