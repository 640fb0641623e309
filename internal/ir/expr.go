package ir

import (
	"strconv"
	"strings"
)

// Expr is a closed sum type over expression nodes.
//
// This is a sealed interface - only the variants below implement it.
// Every Expr is also a Value so that the flattened expression table can be
// fed to the evaluator as ExprOf(ExprID, Expr) facts.
//
// Variants:
//   - Let: let Name = Value in Body
//   - Var: reference to a let-bound name
//   - Tuple: composite value
//   - Project: tuple field access
//   - I32, U32: integer literals (non-linear)
//   - Str: string literal (linear)
//   - Add, Equ: binary operators of the typed language
type Expr interface {
	Value
	exprNode() // Marker method - seals interface to this package

	// Children returns the ids of the direct sub-expressions in
	// evaluation order.
	Children() []ExprID
}

// ExprKind tags an Expr variant.
type ExprKind uint8

const (
	KindLet ExprKind = iota + 1
	KindVar
	KindTuple
	KindProject
	KindI32
	KindU32
	KindStr
	KindAdd
	KindEqu
)

var exprKindNames = [...]string{
	KindLet:     "let",
	KindVar:     "var",
	KindTuple:   "tuple",
	KindProject: "project",
	KindI32:     "i32",
	KindU32:     "u32",
	KindStr:     "str",
	KindAdd:     "add",
	KindEqu:     "equ",
}

func (k ExprKind) String() string {
	if int(k) < len(exprKindNames) && exprKindNames[k] != "" {
		return exprKindNames[k]
	}
	return "ExprKind(" + strconv.Itoa(int(k)) + ")"
}

// KindOf returns the variant tag of e.
func KindOf(e Expr) ExprKind {
	switch e.(type) {
	case Let:
		return KindLet
	case Var:
		return KindVar
	case Tuple:
		return KindTuple
	case Project:
		return KindProject
	case I32:
		return KindI32
	case U32:
		return KindU32
	case Str:
		return KindStr
	case Add:
		return KindAdd
	case Equ:
		return KindEqu
	default:
		return 0
	}
}

// Let binds Name to Value within Body.
type Let struct {
	Name  NameID
	Value ExprID
	Body  ExprID
}

// Var references a let-bound name.
type Var struct {
	Name NameID
}

// Tuple groups element expressions into a composite value.
type Tuple struct {
	Elems []ExprID
}

// Project selects field Index of the tuple-valued expression Tuple.
type Project struct {
	Tuple ExprID
	Index Index
}

// I32 is a signed 32-bit integer literal.
type I32 struct {
	Value int32
}

// U32 is an unsigned 32-bit integer literal.
type U32 struct {
	Value uint32
}

// Str is a string literal. Strings are linear values.
type Str struct {
	Value string
}

// Add is integer addition over operands of the same type.
type Add struct {
	Left  ExprID
	Right ExprID
}

// Equ compares two operands of the same type.
type Equ struct {
	Left  ExprID
	Right ExprID
}

func (Let) exprNode()     {}
func (Var) exprNode()     {}
func (Tuple) exprNode()   {}
func (Project) exprNode() {}
func (I32) exprNode()     {}
func (U32) exprNode()     {}
func (Str) exprNode()     {}
func (Add) exprNode()     {}
func (Equ) exprNode()     {}

func (Let) irValue()     {}
func (Var) irValue()     {}
func (Tuple) irValue()   {}
func (Project) irValue() {}
func (I32) irValue()     {}
func (U32) irValue()     {}
func (Str) irValue()     {}
func (Add) irValue()     {}
func (Equ) irValue()     {}

func (e Let) Children() []ExprID     { return []ExprID{e.Value, e.Body} }
func (Var) Children() []ExprID       { return nil }
func (e Tuple) Children() []ExprID   { return e.Elems }
func (e Project) Children() []ExprID { return []ExprID{e.Tuple} }
func (I32) Children() []ExprID       { return nil }
func (U32) Children() []ExprID       { return nil }
func (Str) Children() []ExprID       { return nil }
func (e Add) Children() []ExprID     { return []ExprID{e.Left, e.Right} }
func (e Equ) Children() []ExprID     { return []ExprID{e.Left, e.Right} }

// Key implements Value.
func (e Let) Key() string {
	return "Let(" + e.Name.Key() + "," + e.Value.Key() + "," + e.Body.Key() + ")"
}

// Key implements Value.
func (e Var) Key() string { return "Var(" + e.Name.Key() + ")" }

// Key implements Value.
func (e Tuple) Key() string {
	parts := make([]string, len(e.Elems))
	for i, id := range e.Elems {
		parts[i] = id.Key()
	}
	return "Tuple(" + strings.Join(parts, ",") + ")"
}

// Key implements Value.
func (e Project) Key() string {
	return "Project(" + e.Tuple.Key() + "," + e.Index.Key() + ")"
}

// Key implements Value.
func (e I32) Key() string { return "I32(" + strconv.FormatInt(int64(e.Value), 10) + ")" }

// Key implements Value.
func (e U32) Key() string { return "U32(" + strconv.FormatUint(uint64(e.Value), 10) + ")" }

// Key implements Value.
func (e Str) Key() string { return "Str(" + strconv.Quote(e.Value) + ")" }

// Key implements Value.
func (e Add) Key() string { return "Add(" + e.Left.Key() + "," + e.Right.Key() + ")" }

// Key implements Value.
func (e Equ) Key() string { return "Equ(" + e.Left.Key() + "," + e.Right.Key() + ")" }
