package ir

import (
	"slices"
	"strings"
)

// Value is a sealed interface representing the values a fact can carry.
// Only the id types, Index, TypeKind and the Expr variants implement it.
type Value interface {
	irValue() // Sealed - only types in this package implement it

	// Key returns the canonical identity of the value. Two values are the
	// same fact component iff their keys are equal.
	Key() string
}

// Row is an ordered list of values - one fact of a relation.
type Row []Value

// keySep separates component keys inside a row key. It cannot occur in
// any component key (string payloads are quoted).
const keySep = "\x1f"

// Key returns the canonical identity of the row.
func (t Row) Key() string {
	switch len(t) {
	case 0:
		return ""
	case 1:
		return t[0].Key()
	}
	var b strings.Builder
	for i, v := range t {
		if i > 0 {
			b.WriteString(keySep)
		}
		b.WriteString(v.Key())
	}
	return b.String()
}

// Equal reports whether both rows hold the same values in the same order.
func (t Row) Equal(other Row) bool {
	if len(t) != len(other) {
		return false
	}
	for i := range t {
		if t[i].Key() != other[i].Key() {
			return false
		}
	}
	return true
}

// String renders the row as "(v0, v1, ...)".
func (t Row) String() string {
	parts := make([]string, len(t))
	for i, v := range t {
		parts[i] = ValueString(v)
	}
	return "(" + strings.Join(parts, ", ") + ")"
}

// R is a shorthand for building a Row.
// Example: R(ExprID(3), TypeI32)
func R(vals ...Value) Row {
	return Row(vals)
}

// SortRows orders rows by key for deterministic presentation.
// The slice is sorted in place and returned.
func SortRows(rs []Row) []Row {
	slices.SortFunc(rs, func(a, b Row) int {
		return strings.Compare(a.Key(), b.Key())
	})
	return rs
}

// ValueString renders a value for diagnostics.
func ValueString(v Value) string {
	if s, ok := v.(interface{ String() string }); ok {
		return s.String()
	}
	return v.Key()
}
