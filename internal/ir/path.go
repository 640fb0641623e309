package ir

// Path is a symbolic access chain rooted at a let-bound name.
//
// Sealed: only PathVar and PathProject implement it. Both variants are
// comparable structs, so a Path can key a Go map directly and structural
// equality is plain ==.
type Path interface {
	Value
	pathNode()
}

// PathVar is the root of an access chain: the value bound to Name.
type PathVar struct {
	Name NameID
}

// PathProject selects field Index of the value at Parent.
type PathProject struct {
	Parent PathID
	Index  Index
}

func (PathVar) pathNode()     {}
func (PathProject) pathNode() {}

func (PathVar) irValue()     {}
func (PathProject) irValue() {}

// Key implements Value.
func (p PathVar) Key() string { return "PVar(" + p.Name.Key() + ")" }

// Key implements Value.
func (p PathProject) Key() string {
	return "PProj(" + p.Parent.Key() + "," + p.Index.Key() + ")"
}
