package queryir

import "github.com/roach88/relcheck/internal/ir"

// Query represents an abstract query in the QueryIR.
//
// This is a sealed interface - only Select and Insert implement it.
type Query interface {
	queryNode() // Marker method - seals interface to this package
}

// SourceKind says which kind of table a Source reads.
type SourceKind uint8

const (
	// SourceRelation reads a declared relation.
	SourceRelation SourceKind = iota + 1
	// SourceGuard reads a materialised guard: column 0 is the input, the
	// remaining columns are the outputs.
	SourceGuard
)

// Source is one joined table of a Select.
type Source struct {
	Kind  SourceKind
	Name  string // relation or guard name
	Alias string // unique within the query
	Arity int    // number of columns
}

// Select joins its Sources, keeps the combinations satisfying Where and
// projects Columns.
//
// Semantics:
//
//	SELECT DISTINCT <columns> FROM <from...> WHERE <where>
//
// An empty From selects exactly one (empty) combination.
type Select struct {
	Columns []Expr
	From    []Source
	Where   Predicate // nil = no filter
}

// Insert adds the rows of Select to relation Table. Rows already present
// are ignored.
type Insert struct {
	Table  string
	Select Select
}

func (Select) queryNode() {}
func (Insert) queryNode() {}

// Expr is a value inside a query.
//
// This is a sealed interface - only Column and Literal implement it.
type Expr interface {
	exprNode() // Marker method - seals interface to this package
}

// Column references column Index of the source with the given Alias.
type Column struct {
	Alias string
	Index int
}

// Literal is a constant value. Backends pass it as a parameter, never
// inline.
type Literal struct {
	Value ir.Value
}

func (Column) exprNode()  {}
func (Literal) exprNode() {}

// Predicate represents a filter condition in the QueryIR.
//
// This is a sealed interface - only types in this package implement it.
//
// Predicate types:
//   - Equals: left = right
//   - NotEquals: left <> right
//   - And: all predicates must be true
//   - NotExists: no row of Source satisfies Where
type Predicate interface {
	predicateNode() // Marker method - seals interface to this package
}

// Equals holds when both expressions have the same value.
type Equals struct {
	Left  Expr
	Right Expr
}

// NotEquals holds when the expressions differ.
type NotEquals struct {
	Left  Expr
	Right Expr
}

// And holds when every predicate holds. An empty And is true.
type And struct {
	Predicates []Predicate
}

// NotExists holds when no row of Source satisfies Where. Where may refer
// to the Source's alias and to every alias of the enclosing Select.
type NotExists struct {
	Source Source
	Where  Predicate // nil = Source must be empty
}

func (Equals) predicateNode()    {}
func (NotEquals) predicateNode() {}
func (And) predicateNode()       {}
func (NotExists) predicateNode() {}
