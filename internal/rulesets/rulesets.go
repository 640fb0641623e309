// Package rulesets holds the two analyses as CUE rule sources and the
// guards and constants they are compiled against.
package rulesets

import (
	_ "embed"
	"fmt"
	"slices"
	"sync"

	"github.com/roach88/relcheck/internal/compiler"
	"github.com/roach88/relcheck/internal/ir"
	"github.com/roach88/relcheck/internal/ruleir"
)

// Rule set names.
const (
	TypeInferenceName = "typeinfer"
	LinearityName     = "linearity"
)

//go:embed typeinfer.cue
var typeInferSrc []byte

//go:embed linearity.cue
var linearitySrc []byte

var sources = map[string][]byte{
	TypeInferenceName: typeInferSrc,
	LinearityName:     linearitySrc,
}

var (
	typeInference = sync.OnceValues(func() (*ruleir.Program, error) {
		return compiler.Compile(typeInferSrc, TypeInferenceName+".cue", Registry())
	})
	linearity = sync.OnceValues(func() (*ruleir.Program, error) {
		return compiler.Compile(linearitySrc, LinearityName+".cue", Registry())
	})
)

// TypeInference returns the compiled type-inference program.
// The program is compiled once and shared; callers must not modify it.
func TypeInference() (*ruleir.Program, error) {
	return typeInference()
}

// Linearity returns the compiled linear-use program.
// The program is compiled once and shared; callers must not modify it.
func Linearity() (*ruleir.Program, error) {
	return linearity()
}

// Names lists the built-in rule sets.
func Names() []string {
	names := make([]string, 0, len(sources))
	for name := range sources {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}

// Load returns the compiled program of a built-in rule set by name.
func Load(name string) (*ruleir.Program, error) {
	switch name {
	case TypeInferenceName:
		return TypeInference()
	case LinearityName:
		return Linearity()
	}
	return nil, fmt.Errorf("unknown rule set %q (want one of %v)", name, Names())
}

// Source returns the CUE source of a built-in rule set.
func Source(name string) ([]byte, bool) {
	src, ok := sources[name]
	return src, ok
}

// Registry returns a registry with the guards and constants the built-in
// rule sets use. Each call returns a fresh registry.
//
// Guards take an ExprOf node apart and fail for every other variant:
//
//	let(k; name, value, body)
//	var(k; name)
//	equ(k; left, right)
//	add(k; left, right)
//	i32(k)
//	u32(k)
//
// Constants: I32, U32, Bool (the TypeKind values).
func Registry() *ruleir.Registry {
	reg := ruleir.NewRegistry()
	for _, g := range guards {
		reg.MustRegisterGuard(g)
	}
	reg.RegisterConst("I32", ir.TypeI32)
	reg.RegisterConst("U32", ir.TypeU32)
	reg.RegisterConst("Bool", ir.TypeBool)
	return reg
}

var guards = []ruleir.GuardSpec{
	{
		Name: "let", In: 1, Out: 3,
		Doc: "destructures Let into name, value and body",
		Fn: func(in []ir.Value) ([]ir.Value, bool) {
			e, ok := in[0].(ir.Let)
			if !ok {
				return nil, false
			}
			return []ir.Value{e.Name, e.Value, e.Body}, true
		},
	},
	{
		Name: "var", In: 1, Out: 1,
		Doc: "destructures Var into its name",
		Fn: func(in []ir.Value) ([]ir.Value, bool) {
			e, ok := in[0].(ir.Var)
			if !ok {
				return nil, false
			}
			return []ir.Value{e.Name}, true
		},
	},
	{
		Name: "equ", In: 1, Out: 2,
		Doc: "destructures Equ into its operands",
		Fn: func(in []ir.Value) ([]ir.Value, bool) {
			e, ok := in[0].(ir.Equ)
			if !ok {
				return nil, false
			}
			return []ir.Value{e.Left, e.Right}, true
		},
	},
	{
		Name: "add", In: 1, Out: 2,
		Doc: "destructures Add into its operands",
		Fn: func(in []ir.Value) ([]ir.Value, bool) {
			e, ok := in[0].(ir.Add)
			if !ok {
				return nil, false
			}
			return []ir.Value{e.Left, e.Right}, true
		},
	},
	{
		Name: "i32", In: 1,
		Doc: "holds for I32 literals",
		Fn: func(in []ir.Value) ([]ir.Value, bool) {
			_, ok := in[0].(ir.I32)
			return nil, ok
		},
	},
	{
		Name: "u32", In: 1,
		Doc: "holds for U32 literals",
		Fn: func(in []ir.Value) ([]ir.Value, bool) {
			_, ok := in[0].(ir.U32)
			return nil, ok
		},
	},
}
