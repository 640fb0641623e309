// Package ruleir is the intermediate representation of inference rules.
//
// A Program is a set of relation declarations plus Horn-style rules:
//
//	Head(args) :- L1, L2, ..., Ln
//
// where each body literal is one of:
//   - Positive: a relation atom that must match a fact
//   - Negated: negation as failure against an earlier stratum
//   - Guard: a pure host function that filters and destructures values
//   - Compare: equality or inequality of two bound terms
//
// Body literals are evaluated left to right. A variable is bound by the
// first positive atom or guard output that mentions it; negated atoms,
// guard inputs and comparisons may only read variables bound earlier.
//
// SEALED INTERFACES:
//
// Term and Literal are sealed with marker methods so evaluators (the
// native engine and the SQL backend) can switch over every variant:
//
//	switch l := lit.(type) {
//	case Positive:
//	case Negated:
//	case Guard:
//	case Compare:
//	}
//
// Programs are produced by the compiler package, which also computes the
// strata. Evaluators treat a Program as read-only.
package ruleir
