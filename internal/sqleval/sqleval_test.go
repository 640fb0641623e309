package sqleval

import (
	"bytes"
	"context"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/relcheck/internal/compiler"
	"github.com/roach88/relcheck/internal/engine"
	"github.com/roach88/relcheck/internal/ir"
	"github.com/roach88/relcheck/internal/resolve"
	"github.com/roach88/relcheck/internal/ruleir"
	"github.com/roach88/relcheck/internal/rulesets"
	"github.com/roach88/relcheck/internal/testutil"
)

const reachSrc = `
name: "reach"
relations: {
	Node:      {arity: 1, input: true}
	Edge:      {arity: 2, input: true}
	Start:     {arity: 1, input: true}
	Reach:     {arity: 1}
	Unreached: {arity: 1}
	Leaf:      {arity: 1}
	FromRoot:  {arity: 1}
	Sibling:   {arity: 2}
}
rules: [
	{id: "start", head: ["Reach", "x"], body: [{atom: ["Start", "x"]}]},
	{id: "step", head: ["Reach", "y"], body: [{atom: ["Reach", "x"]}, {atom: ["Edge", "x", "y"]}]},
	{id: "unreached", head: ["Unreached", "x"], body: [{atom: ["Node", "x"]}, {not: ["Reach", "x"]}]},
	{id: "leaf", head: ["Leaf", "x"], body: [{atom: ["Node", "x"]}, {not: ["Edge", "x", "_"]}]},
	{id: "fromroot", head: ["FromRoot", "y"], body: [{atom: ["Edge", "Root", "y"]}]},
	{id: "sibling", head: ["Sibling", "a", "b"], body: [
		{atom: ["Edge", "p", "a"]},
		{atom: ["Edge", "p", "b"]},
		{cmp: "neq", left: "a", right: "b"},
	]},
]
`

const natSrc = `
name: "nat"
relations: {
	Zero: {arity: 1, input: true}
	Nat:  {arity: 1}
}
rules: [
	{id: "zero", head: ["Nat", "n"], body: [{atom: ["Zero", "n"]}]},
	{id: "succ", head: ["Nat", "m"], body: [{atom: ["Nat", "n"]}, {guard: "succ", in: ["n"], out: ["m"]}]},
]
`

func testRegistry(limit uint32) *ruleir.Registry {
	reg := ruleir.NewRegistry()
	reg.MustRegisterGuard(ruleir.GuardSpec{
		Name: "succ",
		In:   1,
		Out:  1,
		Fn: func(in []ir.Value) ([]ir.Value, bool) {
			n, ok := in[0].(ir.Index)
			if !ok || (limit > 0 && uint32(n) >= limit) {
				return nil, false
			}
			return []ir.Value{n + 1}, true
		},
	})
	reg.RegisterConst("Root", ir.Index(0))
	return reg
}

func mustProgram(t *testing.T, src string, reg *ruleir.Registry) *ruleir.Program {
	t.Helper()
	prog, err := compiler.Compile([]byte(src), "test.cue", reg)
	require.NoError(t, err)
	return prog
}

// newEvaluator gives every test its own database name.
func newEvaluator(t *testing.T, prog *ruleir.Program, opts ...Option) *Evaluator {
	t.Helper()
	opts = append([]Option{WithRunIDGenerator(testutil.NewFixedRunIDGenerator(t.Name()))}, opts...)
	ev, err := New(prog, opts...)
	require.NoError(t, err)
	return ev
}

func nativeRun(t *testing.T, prog *ruleir.Program, facts engine.Facts) *engine.Result {
	t.Helper()
	e, err := engine.New(prog, engine.WithRunIDGenerator(testutil.NewFixedRunIDGenerator("")))
	require.NoError(t, err)
	res, err := e.Run(context.Background(), facts)
	require.NoError(t, err)
	return res
}

// assertSameResult compares per-relation row sets and the digest.
func assertSameResult(t *testing.T, want, got *engine.Result) {
	t.Helper()
	require.Equal(t, want.Relations(), got.Relations())
	for _, rel := range want.Relations() {
		assert.Equal(t, want.Sorted(rel), got.Sorted(rel), "relation %s", rel)
	}
	wd, err := want.Digest()
	require.NoError(t, err)
	gd, err := got.Digest()
	require.NoError(t, err)
	assert.Equal(t, wd, gd)
	assert.Equal(t, want.Stats().Derived, got.Stats().Derived)
}

func graphFacts() engine.Facts {
	facts := engine.Facts{}
	for i := 0; i < 10; i++ {
		facts.Add("Node", ir.Index(i))
	}
	for _, e := range [][2]uint32{{0, 1}, {1, 2}, {2, 3}, {3, 1}, {0, 4}, {4, 4}, {5, 6}, {2, 8}} {
		facts.Add("Edge", ir.Index(e[0]), ir.Index(e[1]))
	}
	facts.Add("Start", ir.Index(0))
	return facts
}

func TestEvaluator_MatchesEngine(t *testing.T) {
	prog := mustProgram(t, reachSrc, testRegistry(0))
	facts := graphFacts()

	res, err := newEvaluator(t, prog).Run(context.Background(), facts)
	require.NoError(t, err)

	assertSameResult(t, nativeRun(t, prog, facts), res)
	assert.Equal(t, []ir.Row{ir.R(ir.Index(1)), ir.R(ir.Index(4))}, res.Sorted("FromRoot"))
	assert.Equal(t, "TestEvaluator_MatchesEngine", res.RunID)
}

func TestEvaluator_GuardMaterialisation(t *testing.T) {
	prog := mustProgram(t, natSrc, testRegistry(10))
	facts := engine.Facts{}
	facts.Add("Zero", ir.Index(0))

	res, err := newEvaluator(t, prog).Run(context.Background(), facts)
	require.NoError(t, err)

	assert.Equal(t, 11, res.Len("Nat"))
	assertSameResult(t, nativeRun(t, prog, facts), res)
}

func TestEvaluator_RoundLimit(t *testing.T) {
	prog := mustProgram(t, natSrc, testRegistry(0))
	facts := engine.Facts{}
	facts.Add("Zero", ir.Index(0))

	res, err := newEvaluator(t, prog, WithMaxRounds(4)).Run(context.Background(), facts)
	require.Error(t, err)
	assert.Nil(t, res)
	assert.True(t, engine.IsRoundLimit(err))
}

func TestEvaluator_Linearity(t *testing.T) {
	prog, err := rulesets.Linearity()
	require.NoError(t, err)

	trees := map[string]*testutil.Tree{
		"double_use":   testutil.DoubleUse(),
		"disjoint":     testutil.DisjointProjections(),
		"ancestor":     testutil.AncestorConflict(),
		"let_var":      testutil.LetVar(),
		"add_mismatch": testutil.AddMismatch(),
	}
	for name, tree := range trees {
		t.Run(name, func(t *testing.T) {
			fb, err := resolve.Paths(tree.In, tree.Root)
			require.NoError(t, err)
			facts := engine.Facts(fb.Facts())

			res, err := newEvaluator(t, prog).Run(context.Background(), facts)
			require.NoError(t, err)
			assertSameResult(t, nativeRun(t, prog, facts), res)
		})
	}
}

func TestEvaluator_TypeInference(t *testing.T) {
	prog, err := rulesets.TypeInference()
	require.NoError(t, err)

	trees := map[string]*testutil.Tree{
		"let_var":      testutil.LetVar(),
		"let_mismatch": testutil.LetMismatch(),
		"add_mismatch": testutil.AddMismatch(),
		"double_use":   testutil.DoubleUse(),
		"bare_literal": testutil.BareLiteral(),
	}
	for name, tree := range trees {
		t.Run(name, func(t *testing.T) {
			facts := engine.Facts{}
			for id, e := range tree.In.Exprs() {
				facts.Add("ExprOf", id, e)
			}

			res, err := newEvaluator(t, prog).Run(context.Background(), facts)
			require.NoError(t, err)
			assertSameResult(t, nativeRun(t, prog, facts), res)
		})
	}

	t.Run("types", func(t *testing.T) {
		tree := testutil.AddMismatch()
		facts := engine.Facts{}
		for id, e := range tree.In.Exprs() {
			facts.Add("ExprOf", id, e)
		}
		res, err := newEvaluator(t, prog).Run(context.Background(), facts)
		require.NoError(t, err)

		assert.True(t, res.Contains("TypeOf", ir.R(tree.Nodes["x_ref"], ir.TypeI32)))
		assert.True(t, res.Contains("TypeOf", ir.R(tree.Nodes["lit_u32"], ir.TypeU32)))
		assert.True(t, res.Contains("TypeError", ir.R(tree.Nodes["add"])))
		assert.True(t, res.Contains("TypeError", ir.R(tree.Root)))
	})
}

func TestEvaluator_InputErrors(t *testing.T) {
	prog := mustProgram(t, natSrc, testRegistry(3))

	tests := []struct {
		name  string
		facts engine.Facts
		code  engine.RuntimeErrorCode
	}{
		{"unknown relation", engine.Facts{"Missing": {ir.R(ir.Index(1))}}, engine.ErrCodeUnknownRelation},
		{"arity", engine.Facts{"Zero": {pair(0, 1)}}, engine.ErrCodeArityMismatch},
		{"nil value", engine.Facts{"Zero": {ir.Row{nil}}}, engine.ErrCodeInvalidFact},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := newEvaluator(t, prog).Run(context.Background(), tt.facts)
			require.Error(t, err)
			assert.True(t, engine.IsRuntimeError(err, tt.code), "got %v", err)
		})
	}
}

func TestEvaluator_GuardContract(t *testing.T) {
	reg := ruleir.NewRegistry()
	reg.MustRegisterGuard(ruleir.GuardSpec{
		Name: "succ", In: 1, Out: 1,
		Fn: func([]ir.Value) ([]ir.Value, bool) { return nil, true },
	})
	prog := mustProgram(t, natSrc, reg)
	facts := engine.Facts{}
	facts.Add("Zero", ir.Index(0))

	_, err := newEvaluator(t, prog).Run(context.Background(), facts)
	require.Error(t, err)
	assert.True(t, engine.IsRuntimeError(err, engine.ErrCodeGuardContract))
}

func TestEvaluator_ContextCancelled(t *testing.T) {
	prog := mustProgram(t, reachSrc, testRegistry(0))
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	res, err := newEvaluator(t, prog).Run(ctx, graphFacts())
	require.Error(t, err)
	assert.Nil(t, res)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestNew_Unsupported(t *testing.T) {
	zero := mustProgram(t, `
name: "flag"
relations: {
	On:   {arity: 0, input: true}
	Seen: {arity: 1, input: true}
	Out:  {arity: 1}
}
rules: [{id: "r", head: ["Out", "x"], body: [{atom: ["Seen", "x"]}, {atom: ["On"]}]}]
`, nil)
	_, err := New(zero)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "zero arity")

	_, err = New(nil)
	require.Error(t, err)
}

func TestEvaluator_Logging(t *testing.T) {
	prog := mustProgram(t, natSrc, testRegistry(2))
	facts := engine.Facts{}
	facts.Add("Zero", ir.Index(0))

	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}))
	_, err := newEvaluator(t, prog, WithLogger(logger)).Run(context.Background(), facts)
	require.NoError(t, err)

	out := buf.String()
	assert.Contains(t, out, "round complete")
	assert.Contains(t, out, "run complete")
	assert.Contains(t, out, "backend=sqlite")
}

func pair(a, b uint32) ir.Row {
	return ir.R(ir.Index(a), ir.Index(b))
}
