package ir

import "strconv"

// TypeKind is the closed set of types the inference rules can derive.
type TypeKind uint8

const (
	TypeI32 TypeKind = iota + 1
	TypeU32
	TypeBool
)

var typeKindNames = [...]string{
	TypeI32:  "i32",
	TypeU32:  "u32",
	TypeBool: "bool",
}

func (TypeKind) irValue() {}

// Key implements Value.
func (t TypeKind) Key() string { return "t:" + t.String() }

func (t TypeKind) String() string {
	if int(t) < len(typeKindNames) && typeKindNames[t] != "" {
		return typeKindNames[t]
	}
	return "TypeKind(" + strconv.Itoa(int(t)) + ")"
}

// ParseTypeKind maps "i32", "u32" or "bool" to its TypeKind.
func ParseTypeKind(s string) (TypeKind, bool) {
	for i, name := range typeKindNames {
		if name != "" && name == s {
			return TypeKind(i), true
		}
	}
	return 0, false
}
