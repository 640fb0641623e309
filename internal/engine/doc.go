// Package engine implements the relcheck fixpoint evaluator.
//
// The engine runs a compiled, stratified rule program bottom-up over a set
// of input facts until no rule derives anything new.
//
// ARCHITECTURE:
//
// Per-run database:
// Every Run builds a fresh database from the program's relation
// declarations. Relations are append-only row slices with a key set and
// one hash index per bound-column mask the planner needs. Nothing survives
// between runs; Run is a pure function of the program and its inputs.
//
// Stratum loop:
//  1. Strata are evaluated in order; negated atoms only ever read relations
//     of earlier strata, which are complete by then.
//  2. Within a stratum, rounds repeat until a round derives no new fact.
//  3. Every round evaluates rules against a frozen snapshot. Each rule
//     writes into its own buffer; buffers are merged in rule declaration
//     order after all rules ran.
//
// Semi-naive evaluation:
// After the first round, a rule is evaluated once per positive body atom
// over a relation of the current stratum, with that atom restricted to the
// rows the previous round added. Atoms before it read the rows that existed
// before that delta, atoms after it read the whole snapshot. Deltas are
// plain windows over the append-only row slices.
//
// DETERMINISM:
// Rule order, merge order and index iteration order are all fixed, so the
// rows of every relation come out in the same order on every run,
// regardless of strategy or parallelism.
package engine
