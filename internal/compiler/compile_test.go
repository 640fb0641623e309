package compiler

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/relcheck/internal/ir"
	"github.com/roach88/relcheck/internal/ruleir"
)

func testRegistry() *ruleir.Registry {
	reg := ruleir.NewRegistry()
	reg.MustRegisterGuard(ruleir.GuardSpec{
		Name: "i32",
		In:   1,
		Fn: func(in []ir.Value) ([]ir.Value, bool) {
			_, ok := in[0].(ir.I32)
			return nil, ok
		},
	})
	reg.MustRegisterGuard(ruleir.GuardSpec{
		Name: "var",
		In:   1,
		Out:  1,
		Fn: func(in []ir.Value) ([]ir.Value, bool) {
			v, ok := in[0].(ir.Var)
			if !ok {
				return nil, false
			}
			return []ir.Value{v.Name}, true
		},
	})
	reg.RegisterConst("I32", ir.TypeI32)
	return reg
}

const closureSrc = `
name: "closure"
relations: {
	Edge: {arity: 2, input: true, columns: ["from", "to"]}
	Path: {arity: 2}
}
rules: [
	{id: "base", head: ["Path", "a", "b"], body: [{atom: ["Edge", "a", "b"]}]},
	{id: "step", head: ["Path", "a", "c"], body: [
		{atom: ["Path", "a", "b"]},
		{atom: ["Edge", "b", "c"]},
	]},
]
`

func TestCompile_Closure(t *testing.T) {
	prog, err := Compile([]byte(closureSrc), "closure.cue", testRegistry())
	require.NoError(t, err)

	assert.Equal(t, "closure", prog.Name)
	assert.Equal(t, []ruleir.RelationDecl{
		{Name: "Edge", Arity: 2, Input: true, Columns: []string{"from", "to"}},
		{Name: "Path", Arity: 2},
	}, prog.Relations)

	require.Len(t, prog.Rules, 2)
	assert.Equal(t, "Path(a, c) :- Path(a, b), Edge(b, c).", prog.Rules[1].String())

	require.Len(t, prog.Strata, 1)
	assert.Equal(t, []string{"Path"}, prog.Strata[0].Relations)
	assert.Equal(t, []int{0, 1}, prog.Strata[0].Rules)
}

func TestCompile_TermsAndLiterals(t *testing.T) {
	src := `
name: "terms"
relations: {
	ExprOf: {arity: 2, input: true}
	Bind:   {arity: 2, input: true}
	TypeOf: {arity: 2}
	Bad:    {arity: 1}
}
rules: [
	{id: "lit", head: ["TypeOf", "e", "I32"], body: [
		{atom: ["ExprOf", "e", "k"]},
		{guard: "i32", in: ["k"]},
	]},
	{id: "var", head: ["TypeOf", "e", "t"], body: [
		{atom: ["ExprOf", "e", "k"]},
		{guard: "var", in: ["k"], out: ["x"]},
		{atom: ["Bind", "x", "v"]},
		{atom: ["TypeOf", "v", "t"]},
	]},
	{id: "bad", head: ["Bad", "e"], body: [
		{atom: ["ExprOf", "e", "_"]},
		{not: ["TypeOf", "e", "_"]},
		{cmp: "neq", left: "e", right: "e"},
	]},
]
`
	prog, err := Compile([]byte(src), "terms.cue", testRegistry())
	require.NoError(t, err)

	lit := prog.Rules[0]
	assert.Equal(t, ruleir.Const{Name: "I32", Value: ir.TypeI32}, lit.Head.Args[1])
	g, ok := lit.Body[1].(ruleir.Guard)
	require.True(t, ok)
	assert.NotNil(t, g.Fn)
	assert.Empty(t, g.Out)

	bad := prog.Rules[2]
	assert.Equal(t, ruleir.Wildcard{}, bad.Body[0].(ruleir.Positive).Atom.Args[1])
	assert.IsType(t, ruleir.Negated{}, bad.Body[1])
	assert.Equal(t, ruleir.Compare{Op: ruleir.OpNeq, Left: ruleir.Var{Name: "e"}, Right: ruleir.Var{Name: "e"}}, bad.Body[2])

	// TypeOf must be complete before Bad negates it.
	require.Len(t, prog.Strata, 2)
	assert.Equal(t, []string{"TypeOf"}, prog.Strata[0].Relations)
	assert.Equal(t, []string{"Bad"}, prog.Strata[1].Relations)
}

func TestCompile_CUEErrors(t *testing.T) {
	tests := []struct {
		name string
		src  string
	}{
		{"syntax", `name: "x" relations: {`},
		{"missing name", `relations: {} 
rules: []`},
		{"negative arity", `name: "x"
relations: {A: {arity: -1}}
rules: []`},
		{"unknown field", `name: "x"
relations: {}
rules: [{id: "r", head: ["A"], body: [{atomz: ["A"]}]}]`},
		{"bad comparison operator", `name: "x"
relations: {A: {arity: 1}}
rules: [{id: "r", head: ["A", "x"], body: [{cmp: "lt", left: "x", right: "x"}]}]`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Compile([]byte(tt.src), "bad.cue", testRegistry())
			require.Error(t, err)
			assert.False(t, IsValidation(err))
			assert.False(t, IsNegationCycle(err))
		})
	}
}

func TestCompile_ValidationErrors(t *testing.T) {
	tests := []struct {
		name string
		rule string
		code string
	}{
		{"unknown guard", `{id: "r", head: ["A", "x"], body: [{atom: ["A", "x"]}, {guard: "nope", in: ["x"]}]}`, ruleir.ErrUnknownGuard},
		{"unknown constant", `{id: "r", head: ["A", "F64"], body: [{atom: ["In", "x"]}]}`, ruleir.ErrUnknownConst},
		{"guard arity", `{id: "r", head: ["A", "x"], body: [{atom: ["In", "x"]}, {guard: "var", in: ["x"]}]}`, ruleir.ErrGuardArity},
		{"two shapes", `{id: "r", head: ["A", "x"], body: [{atom: ["In", "x"], not: ["A", "x"]}]}`, ruleir.ErrMalformedLiteral},
		{"head on input", `{id: "r", head: ["In", "x"], body: [{atom: ["A", "x"]}]}`, ruleir.ErrHeadOnInput},
		{"unsafe head", `{id: "r", head: ["A", "y"], body: [{atom: ["In", "x"]}]}`, ruleir.ErrUnsafeHead},
		{"unknown relation", `{id: "r", head: ["A", "x"], body: [{atom: ["Nope", "x"]}]}`, ruleir.ErrUnknownRelation},
		{"arity", `{id: "r", head: ["A", "x"], body: [{atom: ["In", "x", "y"]}]}`, ruleir.ErrArityMismatch},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			src := `name: "x"
relations: {
	In: {arity: 1, input: true}
	A:  {arity: 1}
}
rules: [` + tt.rule + `]
`
			_, err := Compile([]byte(src), "bad.cue", testRegistry())
			require.Error(t, err)
			require.True(t, IsValidation(err), "got %v", err)

			var ve ValidationErrors
			require.True(t, errors.As(err, &ve))
			assert.True(t, ve.HasCode(tt.code), "want %s in %v", tt.code, ve)
			assert.Equal(t, "rules.r", ve[0].Field[:len("rules.r")])
		})
	}
}

func TestCompile_DuplicateRuleID(t *testing.T) {
	src := `name: "x"
relations: {
	In: {arity: 1, input: true}
	A:  {arity: 1}
}
rules: [
	{id: "r", head: ["A", "x"], body: [{atom: ["In", "x"]}]},
	{id: "r", head: ["A", "x"], body: [{atom: ["A", "x"]}]},
]
`
	_, err := Compile([]byte(src), "dup.cue", testRegistry())
	var ve ValidationErrors
	require.True(t, errors.As(err, &ve))
	assert.True(t, ve.HasCode(ruleir.ErrDuplicateName))
	assert.Contains(t, err.Error(), "1 validation error(s)")
}

func TestCompile_NegationCycle(t *testing.T) {
	src := `name: "x"
relations: {
	Node: {arity: 1, input: true}
	P:    {arity: 1}
	Q:    {arity: 1}
}
rules: [
	{id: "p", head: ["P", "x"], body: [{atom: ["Node", "x"]}, {not: ["Q", "x"]}]},
	{id: "q", head: ["Q", "x"], body: [{atom: ["Node", "x"]}, {atom: ["P", "x"]}]},
]
`
	_, err := Compile([]byte(src), "cycle.cue", testRegistry())
	require.Error(t, err)
	assert.True(t, IsNegationCycle(err))

	var ne *NegationCycleError
	require.True(t, errors.As(err, &ne))
	assert.Equal(t, []string{"Q", "P", "Q"}, ne.Cycle)
	assert.Equal(t, "p", ne.Rule)
	assert.Contains(t, err.Error(), "Q -NOT-> P -> Q")
}

func TestMustCompilePanics(t *testing.T) {
	assert.Panics(t, func() {
		MustCompile([]byte("name: 1"), "bad.cue", nil)
	})
}

func TestCompileError_Format(t *testing.T) {
	e := &CompileError{Field: "scope", Message: "bad"}
	assert.Equal(t, "scope: bad", e.Error())

	v := ValidationError{Field: "rules.r", Message: "m", Code: "E201", Line: 3}
	assert.Equal(t, "[E201] line 3: rules.r: m", v.Error())
}
