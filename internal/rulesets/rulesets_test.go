package rulesets

import (
	"slices"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/relcheck/internal/ir"
	"github.com/roach88/relcheck/internal/ruleir"
)

func stratumOf(prog *ruleir.Program, rel string) int {
	for _, s := range prog.Strata {
		if slices.Contains(s.Relations, rel) {
			return s.Index
		}
	}
	return -1
}

func TestTypeInference_Compiles(t *testing.T) {
	prog, err := TypeInference()
	require.NoError(t, err)

	assert.Equal(t, "typeinfer", prog.Name)
	decl, ok := prog.Relation("ExprOf")
	require.True(t, ok)
	assert.True(t, decl.Input)
	assert.Equal(t, []string{"expr", "node"}, decl.Columns)
	assert.Len(t, prog.Rules, 8)

	require.Len(t, prog.Strata, 3)
	assert.Equal(t, []string{"Bind"}, prog.Strata[0].Relations)
	assert.Equal(t, []string{"TypeOf"}, prog.Strata[1].Relations)
	assert.Equal(t, []string{"TypeError"}, prog.Strata[2].Relations)

	again, err := TypeInference()
	require.NoError(t, err)
	assert.Same(t, prog, again, "compiled once")
}

func TestLinearity_Compiles(t *testing.T) {
	prog, err := Linearity()
	require.NoError(t, err)

	assert.Equal(t, "linearity", prog.Name)
	assert.Len(t, prog.Rules, 8)
	for _, rel := range []string{"Root", "Parent", "Used"} {
		d, ok := prog.Relation(rel)
		require.True(t, ok, rel)
		assert.True(t, d.Input, rel)
	}

	used := stratumOf(prog, "AncestorUsed")
	assert.Greater(t, used, stratumOf(prog, "Origin"))
	assert.Greater(t, used, stratumOf(prog, "Ancestor"))
	assert.Greater(t, stratumOf(prog, "Violation"), used)
	assert.Greater(t, stratumOf(prog, "Violation"), stratumOf(prog, "DoubleUse"))
}

func TestLoad(t *testing.T) {
	assert.Equal(t, []string{"linearity", "typeinfer"}, Names())

	for _, name := range Names() {
		prog, err := Load(name)
		require.NoError(t, err)
		assert.Equal(t, name, prog.Name)

		src, ok := Source(name)
		require.True(t, ok)
		assert.Contains(t, string(src), `name: "`+name+`"`)
	}

	_, err := Load("borrowck")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown rule set")
}

func TestRegistry_Guards(t *testing.T) {
	reg := Registry()
	assert.Equal(t, []string{"add", "equ", "i32", "let", "u32", "var"}, reg.GuardNames())

	call := func(name string, v ir.Value) ([]ir.Value, bool) {
		g, ok := reg.Guard(name)
		require.True(t, ok, name)
		return g.Fn([]ir.Value{v})
	}

	let := ir.Let{Name: 1, Value: 2, Body: 3}
	out, ok := call("let", let)
	require.True(t, ok)
	assert.Equal(t, []ir.Value{ir.NameID(1), ir.ExprID(2), ir.ExprID(3)}, out)

	out, ok = call("var", ir.Var{Name: 4})
	require.True(t, ok)
	assert.Equal(t, []ir.Value{ir.NameID(4)}, out)

	out, ok = call("add", ir.Add{Left: 1, Right: 2})
	require.True(t, ok)
	assert.Equal(t, []ir.Value{ir.ExprID(1), ir.ExprID(2)}, out)

	out, ok = call("equ", ir.Equ{Left: 5, Right: 6})
	require.True(t, ok)
	assert.Equal(t, []ir.Value{ir.ExprID(5), ir.ExprID(6)}, out)

	_, ok = call("i32", ir.I32{Value: 7})
	assert.True(t, ok)
	_, ok = call("u32", ir.U32{Value: 7})
	assert.True(t, ok)

	// Every guard rejects the variants it does not destructure.
	for _, name := range reg.GuardNames() {
		_, ok := call(name, ir.Str{Value: "foo"})
		assert.False(t, ok, name)
	}
	_, ok = call("i32", ir.U32{Value: 7})
	assert.False(t, ok)

	for name, want := range map[string]ir.TypeKind{"I32": ir.TypeI32, "U32": ir.TypeU32, "Bool": ir.TypeBool} {
		v, ok := reg.Const(name)
		require.True(t, ok, name)
		assert.Equal(t, want, v)
	}
}
