// Package harness runs analysis scenarios described in YAML.
//
// A scenario builds one expression tree, runs the named analyses on it and
// checks assertions against the reports. Scenarios are the executable form
// of the analyses' documented behaviour; the built-in ones back the demo
// command and the golden tests.
//
// # Scenario Format
//
//	name: read_twice
//	description: "let a = \"foo\" in let b = a in a"
//	analyses: [linearity]
//	run_id: read-twice
//	tree:
//	  names: [a, b]
//	  nodes:
//	    - {label: foo, str: "foo"}
//	    - {label: a_ref0, var: a}
//	    - {label: a_ref1, var: a}
//	    - {label: let_b, let: {name: b, value: a_ref0, body: a_ref1}}
//	    - {label: let_a, let: {name: a, value: foo, body: let_b}}
//	  root: let_a
//	assertions:
//	  - type: double_use
//	    path: a
//	    expr: a_ref0
//	    other: a_ref1
//
// Nodes are interned in the order listed and may only refer to labels
// listed before them. Names are issued in the order listed. A path is
// written as a name followed by field indices, e.g. a.0.1.
//
// # Assertion Types
//
//   - ok: the named analysis reports no errors
//   - type_of: expr has type (i32, u32 or bool)
//   - untyped: expr is a TypeError
//   - bound: name is bound to expr
//   - double_use: path is used at expr (and at other, when given) twice
//   - ancestor_used: descendant is used at expr under a used ancestor
//   - violation: path at expr is a linearity violation
//   - count: a relation holds exactly count rows
//
// # Deterministic Testing
//
// Every run uses a fixed run id (the scenario's run_id, or
// "test-run-default"), so rendered reports are byte-identical across runs
// and backends and can be compared against golden files.
package harness
