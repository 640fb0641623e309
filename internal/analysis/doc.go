// Package analysis runs the built-in rule sets over an expression tree and
// decodes the results into typed reports.
//
// TypeCheck flattens the interner's expression table into ExprOf facts and
// runs the type-inference rules. CheckLinearity resolves the access paths
// of the tree and runs the linear-use rules. Both accept Options choosing
// the evaluator backend; the reports are identical on either.
//
// Report slices are ordered numerically by their id columns, so they are
// stable across backends and strategies.
package analysis
