// Package queryir provides a relational intermediate representation of
// compiled rules, used by the SQL evaluation backend.
//
// ARCHITECTURE:
//
//	[ruleir.Rule] → [Query IR] → [SQL text + params]   (internal/querysql)
//
// A rule becomes an Insert of a Select: every positive atom and every
// guard is a joined Source, shared variables become column equalities,
// constants become parameterised literals, comparisons become
// (in)equalities and negated atoms become NotExists sub-queries.
//
// Guards are joined as Sources too: the SQL backend materialises each
// single-input guard into a table of (input, outputs...) rows, so a guard
// call is a lookup on its first column.
//
// SEALED INTERFACES:
//
// Query, Expr and Predicate are sealed interfaces using the marker method
// pattern, so backends can switch over them exhaustively.
package queryir
