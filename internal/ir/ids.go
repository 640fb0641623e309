package ir

import "strconv"

// An id packs the generation of the interner that issued it into the high
// 32 bits and a 1-based local index into the low 32 bits. Generation 0 is
// never issued by an interner, so ids built by hand are foreign to all of
// them.
const localBits = 32

// NameID identifies a binder introduced by a let.
type NameID uint64

// ExprID identifies an interned expression node.
type ExprID uint64

// PathID identifies an interned access path.
type PathID uint64

// Index selects a tuple field (zero-based).
type Index uint32

// PackID builds the raw id for local index i of generation gen.
func PackID(gen, i uint32) uint64 { return uint64(gen)<<localBits | uint64(i) }

// Generation returns the generation of the interner that issued n.
func (n NameID) Generation() uint32 { return uint32(uint64(n) >> localBits) }

// Local returns the 1-based index of n within its interner.
func (n NameID) Local() uint32 { return uint32(n) }

// Generation returns the generation of the interner that issued e.
func (e ExprID) Generation() uint32 { return uint32(uint64(e) >> localBits) }

// Local returns the 1-based index of e within its interner.
func (e ExprID) Local() uint32 { return uint32(e) }

// Generation returns the generation of the interner that issued p.
func (p PathID) Generation() uint32 { return uint32(uint64(p) >> localBits) }

// Local returns the 1-based index of p within its interner.
func (p PathID) Local() uint32 { return uint32(p) }

// IsValid reports whether the id has a local index. Only the issuing
// interner can tell whether it is its own.
func (n NameID) IsValid() bool { return n.Local() != 0 }

// IsValid reports whether the id has a local index.
func (e ExprID) IsValid() bool { return e.Local() != 0 }

// IsValid reports whether the id has a local index.
func (p PathID) IsValid() bool { return p.Local() != 0 }

func (n NameID) String() string { return "x" + strconv.FormatUint(uint64(n.Local())-1, 10) }
func (e ExprID) String() string { return "e" + strconv.FormatUint(uint64(e.Local())-1, 10) }
func (p PathID) String() string { return "p" + strconv.FormatUint(uint64(p.Local())-1, 10) }
func (i Index) String() string  { return strconv.FormatUint(uint64(i), 10) }

func (NameID) irValue() {}
func (ExprID) irValue() {}
func (PathID) irValue() {}
func (Index) irValue()  {}

// Key implements Value.
func (n NameID) Key() string { return "n" + strconv.FormatUint(uint64(n), 10) }

// Key implements Value.
func (e ExprID) Key() string { return "e" + strconv.FormatUint(uint64(e), 10) }

// Key implements Value.
func (p PathID) Key() string { return "p" + strconv.FormatUint(uint64(p), 10) }

// Key implements Value.
func (i Index) Key() string { return "i" + strconv.FormatUint(uint64(i), 10) }
