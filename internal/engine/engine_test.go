package engine

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/relcheck/internal/compiler"
	"github.com/roach88/relcheck/internal/ir"
	"github.com/roach88/relcheck/internal/ruleir"
	"github.com/roach88/relcheck/internal/testutil"
)

const closureSrc = `
name: "closure"
relations: {
	Edge: {arity: 2, input: true}
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

const reachSrc = `
name: "reach"
relations: {
	Node:      {arity: 1, input: true}
	Edge:      {arity: 2, input: true}
	Start:     {arity: 1, input: true}
	Reach:     {arity: 1}
	Unreached: {arity: 1}
	Leaf:      {arity: 1}
	SelfLoop:  {arity: 1}
	FromRoot:  {arity: 1}
	Sibling:   {arity: 2}
}
rules: [
	{id: "start", head: ["Reach", "x"], body: [{atom: ["Start", "x"]}]},
	{id: "step", head: ["Reach", "y"], body: [{atom: ["Reach", "x"]}, {atom: ["Edge", "x", "y"]}]},
	{id: "unreached", head: ["Unreached", "x"], body: [{atom: ["Node", "x"]}, {not: ["Reach", "x"]}]},
	{id: "leaf", head: ["Leaf", "x"], body: [{atom: ["Node", "x"]}, {not: ["Edge", "x", "_"]}]},
	{id: "selfloop", head: ["SelfLoop", "x"], body: [{atom: ["Edge", "x", "x"]}]},
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

// testRegistry provides a succ guard that counts up to limit (no limit
// when limit is 0) and a Root constant.
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

func newEngine(t *testing.T, prog *ruleir.Program, opts ...EngineOption) *Engine {
	t.Helper()
	opts = append([]EngineOption{WithRunIDGenerator(testutil.NewFixedRunIDGenerator(""))}, opts...)
	e, err := New(prog, opts...)
	require.NoError(t, err)
	return e
}

func chain(n int) Facts {
	f := Facts{}
	for i := 0; i < n; i++ {
		f.Add("Edge", ir.Index(i), ir.Index(i+1))
	}
	return f
}

func pair(a, b uint32) ir.Row {
	return ir.R(ir.Index(a), ir.Index(b))
}

func TestEngine_TransitiveClosure(t *testing.T) {
	prog := mustProgram(t, closureSrc, nil)
	res, err := newEngine(t, prog).Run(context.Background(), chain(3))
	require.NoError(t, err)

	assert.Equal(t, 6, res.Len("Path"))
	for _, p := range []ir.Row{pair(0, 1), pair(0, 2), pair(0, 3), pair(1, 2), pair(1, 3), pair(2, 3)} {
		assert.True(t, res.Contains("Path", p), "missing Path%s", p)
	}
	assert.False(t, res.Contains("Path", pair(3, 0)))

	// Derivation order: the three edges first, then by path length.
	assert.Equal(t, []ir.Row{pair(0, 1), pair(1, 2), pair(2, 3)}, res.Relation("Path")[:3])
	assert.Equal(t, []string{"Edge", "Path"}, res.Relations())
	assert.Equal(t, "test-run-default", res.RunID)
}

func TestEngine_CyclicGraph(t *testing.T) {
	prog := mustProgram(t, closureSrc, nil)
	f := chain(3)
	f.Add("Edge", ir.Index(3), ir.Index(0))

	res, err := newEngine(t, prog).Run(context.Background(), f)
	require.NoError(t, err)
	assert.Equal(t, 16, res.Len("Path"), "every node reaches every node")
}

func TestEngine_EmptyInput(t *testing.T) {
	prog := mustProgram(t, closureSrc, nil)
	res, err := newEngine(t, prog).Run(context.Background(), nil)
	require.NoError(t, err)

	assert.Equal(t, 0, res.Len("Path"))
	assert.Empty(t, res.Relation("Path"))
	assert.Equal(t, 0, res.Stats().Derived)
}

func TestEngine_StrategiesAgree(t *testing.T) {
	prog := mustProgram(t, reachSrc, testRegistry(0))
	facts := Facts{}
	for i := 0; i < 12; i++ {
		facts.Add("Node", ir.Index(i))
	}
	for _, e := range [][2]uint32{{0, 1}, {1, 2}, {2, 3}, {3, 1}, {0, 4}, {4, 4}, {5, 6}, {6, 7}, {2, 8}, {8, 9}} {
		facts.Add("Edge", ir.Index(e[0]), ir.Index(e[1]))
	}
	facts.Add("Start", ir.Index(0))

	ref, err := newEngine(t, prog, WithStrategy(Naive)).Run(context.Background(), facts)
	require.NoError(t, err)
	refDigest, err := ref.Digest()
	require.NoError(t, err)

	tests := []struct {
		name string
		opts []EngineOption
	}{
		{"semi-naive", nil},
		{"semi-naive parallel", []EngineOption{WithParallelism(4)}},
		{"naive parallel", []EngineOption{WithStrategy(Naive), WithParallelism(3)}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res, err := newEngine(t, prog, tt.opts...).Run(context.Background(), facts)
			require.NoError(t, err)

			for _, rel := range res.Relations() {
				assert.Equal(t, ref.Sorted(rel), res.Sorted(rel), "relation %s", rel)
			}
			d, err := res.Digest()
			require.NoError(t, err)
			assert.Equal(t, refDigest, d)
		})
	}
}

func TestEngine_ParallelKeepsDerivationOrder(t *testing.T) {
	prog := mustProgram(t, reachSrc, testRegistry(0))
	facts := chain(6)
	facts.Add("Start", ir.Index(0))
	for i := 0; i < 8; i++ {
		facts.Add("Node", ir.Index(i))
	}

	seq, err := newEngine(t, prog).Run(context.Background(), facts)
	require.NoError(t, err)
	par, err := newEngine(t, prog, WithParallelism(8)).Run(context.Background(), facts)
	require.NoError(t, err)

	for _, rel := range seq.Relations() {
		assert.Equal(t, seq.Relation(rel), par.Relation(rel), "relation %s", rel)
	}
}

func TestEngine_Determinism(t *testing.T) {
	prog := mustProgram(t, closureSrc, nil)
	e := newEngine(t, prog)

	first, err := e.Run(context.Background(), chain(5))
	require.NoError(t, err)
	for i := 0; i < 5; i++ {
		again, err := e.Run(context.Background(), chain(5))
		require.NoError(t, err)
		assert.Equal(t, first.Relation("Path"), again.Relation("Path"))
	}
}

func TestEngine_Idempotence(t *testing.T) {
	prog := mustProgram(t, reachSrc, testRegistry(0))
	facts := chain(4)
	facts.Add("Start", ir.Index(1))
	for i := 0; i < 6; i++ {
		facts.Add("Node", ir.Index(i))
	}
	e := newEngine(t, prog)

	first, err := e.Run(context.Background(), facts)
	require.NoError(t, err)
	second, err := e.Run(context.Background(), first.Facts())
	require.NoError(t, err)

	for _, rel := range first.Relations() {
		assert.Equal(t, first.Relation(rel), second.Relation(rel), "relation %s", rel)
	}
	assert.Equal(t, 0, second.Stats().Derived)
}

func TestEngine_Monotonicity(t *testing.T) {
	prog := mustProgram(t, closureSrc, nil)
	e := newEngine(t, prog)

	small, err := e.Run(context.Background(), chain(3))
	require.NoError(t, err)

	bigger := chain(3)
	bigger.Add("Edge", ir.Index(7), ir.Index(0))
	big, err := e.Run(context.Background(), bigger)
	require.NoError(t, err)

	for _, row := range small.Relation("Path") {
		assert.True(t, big.Contains("Path", row), "Path%s lost after adding facts", row)
	}
	assert.Greater(t, big.Len("Path"), small.Len("Path"))
}

func TestEngine_NegationAndBuiltins(t *testing.T) {
	prog := mustProgram(t, reachSrc, testRegistry(0))
	facts := Facts{}
	for i := 0; i < 5; i++ {
		facts.Add("Node", ir.Index(i))
	}
	facts.AddRows("Edge", pair(0, 1), pair(0, 2), pair(2, 2))
	facts.Add("Start", ir.Index(0))

	res, err := newEngine(t, prog).Run(context.Background(), facts)
	require.NoError(t, err)

	assert.Equal(t, []ir.Row{ir.R(ir.Index(3)), ir.R(ir.Index(4))}, res.Sorted("Unreached"))
	assert.Equal(t, []ir.Row{ir.R(ir.Index(1)), ir.R(ir.Index(3)), ir.R(ir.Index(4))}, res.Sorted("Leaf"))
	assert.Equal(t, []ir.Row{ir.R(ir.Index(2))}, res.Relation("SelfLoop"))
	assert.Equal(t, []ir.Row{ir.R(ir.Index(1)), ir.R(ir.Index(2))}, res.Relation("FromRoot"))
	assert.Equal(t, []ir.Row{pair(1, 2), pair(2, 1)}, res.Sorted("Sibling"))
}

func TestEngine_GuardConverges(t *testing.T) {
	prog := mustProgram(t, natSrc, testRegistry(10))
	facts := Facts{}
	facts.Add("Zero", ir.Index(0))

	for _, strategy := range []Strategy{SemiNaive, Naive} {
		t.Run(string(strategy), func(t *testing.T) {
			res, err := newEngine(t, prog, WithStrategy(strategy)).Run(context.Background(), facts)
			require.NoError(t, err)

			assert.Equal(t, 11, res.Len("Nat"))
			stats := res.Stats()
			assert.Equal(t, 11, stats.Derived)
			assert.Equal(t, 12, stats.Rounds, "one round per fact plus the empty round")
			require.Len(t, stats.Strata, 1)
			assert.Equal(t, []string{"Nat"}, stats.Strata[0].Relations)
		})
	}
}

func TestEngine_RoundLimit(t *testing.T) {
	prog := mustProgram(t, natSrc, testRegistry(0))
	facts := Facts{}
	facts.Add("Zero", ir.Index(0))

	res, err := newEngine(t, prog, WithMaxRounds(5)).Run(context.Background(), facts)
	require.Error(t, err)
	assert.Nil(t, res, "no partial result")
	assert.True(t, IsRoundLimit(err))

	var rl *RoundLimitError
	require.ErrorAs(t, err, &rl)
	assert.Equal(t, 0, rl.Stratum)
	assert.Equal(t, 6, rl.Rounds)
	assert.Equal(t, 5, rl.Limit)
	assert.Contains(t, err.Error(), "did not converge")
}

func TestEngine_ContextCancelled(t *testing.T) {
	prog := mustProgram(t, closureSrc, nil)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	res, err := newEngine(t, prog).Run(ctx, chain(3))
	require.Error(t, err)
	assert.Nil(t, res)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestEngine_InputErrors(t *testing.T) {
	prog := mustProgram(t, closureSrc, nil)
	e := newEngine(t, prog)

	tests := []struct {
		name  string
		facts Facts
		code  RuntimeErrorCode
	}{
		{"unknown relation", Facts{"Nope": {ir.R(ir.Index(1))}}, ErrCodeUnknownRelation},
		{"arity mismatch", Facts{"Edge": {ir.R(ir.Index(1))}}, ErrCodeArityMismatch},
		{"nil value", Facts{"Edge": {ir.R(ir.Index(1), nil)}}, ErrCodeInvalidFact},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := e.Run(context.Background(), tt.facts)
			require.Error(t, err)
			assert.True(t, IsRuntimeError(err, tt.code), "got %v", err)
		})
	}
}

func TestEngine_DuplicateInputRows(t *testing.T) {
	prog := mustProgram(t, closureSrc, nil)
	facts := Facts{}
	facts.AddRows("Edge", pair(0, 1), pair(0, 1), pair(1, 2))

	res, err := newEngine(t, prog).Run(context.Background(), facts)
	require.NoError(t, err)
	assert.Equal(t, 2, res.Len("Edge"))
	assert.Equal(t, 3, res.Len("Path"))
}

func TestNew_InvalidProgram(t *testing.T) {
	decls := []ruleir.RelationDecl{
		{Name: "A", Arity: 1, Input: true},
		{Name: "B", Arity: 1},
	}
	x := ruleir.Var{Name: "x"}
	selfNegating := ruleir.Rule{
		ID:   "r",
		Head: ruleir.Atom{Relation: "B", Args: []ruleir.Term{x}},
		Body: []ruleir.Literal{
			ruleir.Positive{Atom: ruleir.Atom{Relation: "A", Args: []ruleir.Term{x}}},
			ruleir.Negated{Atom: ruleir.Atom{Relation: "B", Args: []ruleir.Term{x}}},
		},
	}
	unsafeHead := ruleir.Rule{
		ID:   "u",
		Head: ruleir.Atom{Relation: "B", Args: []ruleir.Term{ruleir.Var{Name: "y"}}},
		Body: []ruleir.Literal{ruleir.Positive{Atom: ruleir.Atom{Relation: "A", Args: []ruleir.Term{x}}}},
	}
	oneStratum := []ruleir.Stratum{{Index: 0, Relations: []string{"B"}, Rules: []int{0}}}

	tests := []struct {
		name string
		prog *ruleir.Program
	}{
		{"nil program", nil},
		{"negation inside its own stratum", &ruleir.Program{Relations: decls, Rules: []ruleir.Rule{selfNegating}, Strata: oneStratum}},
		{"unbound head variable", &ruleir.Program{Relations: decls, Rules: []ruleir.Rule{unsafeHead}, Strata: oneStratum}},
		{"rule outside every stratum", &ruleir.Program{Relations: decls, Rules: []ruleir.Rule{unsafeHead}}},
		{"duplicate relation", &ruleir.Program{Relations: append(decls, decls[0])}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := New(tt.prog)
			require.Error(t, err)
			assert.True(t, IsRuntimeError(err, ErrCodeInvalidProgram), "got %v", err)
		})
	}

	assert.Panics(t, func() { MustNew(nil) })
}

func TestNew_UnknownStrategy(t *testing.T) {
	prog := mustProgram(t, closureSrc, nil)
	_, err := New(prog, WithStrategy("eager"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown strategy")
}

func TestEngine_GuardContract(t *testing.T) {
	reg := ruleir.NewRegistry()
	reg.MustRegisterGuard(ruleir.GuardSpec{
		Name: "succ",
		In:   1,
		Out:  1,
		Fn: func(in []ir.Value) ([]ir.Value, bool) {
			return []ir.Value{in[0], in[0]}, true
		},
	})
	prog := mustProgram(t, natSrc, reg)
	facts := Facts{}
	facts.Add("Zero", ir.Index(0))

	_, err := newEngine(t, prog).Run(context.Background(), facts)
	require.Error(t, err)
	assert.True(t, IsRuntimeError(err, ErrCodeGuardContract))
	assert.Contains(t, err.Error(), "rule=succ")
}

func TestEngine_Logging(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}))

	prog := mustProgram(t, closureSrc, nil)
	e := newEngine(t, prog, WithLogger(logger), WithRunIDGenerator(testutil.NewFixedRunIDGenerator("run-42")))
	_, err := e.Run(context.Background(), chain(2))
	require.NoError(t, err)

	out := buf.String()
	assert.Contains(t, out, "round complete")
	assert.Contains(t, out, "run complete")
	assert.Contains(t, out, "run_id=run-42")
	assert.Contains(t, out, "program=closure")
}

func TestParseStrategy(t *testing.T) {
	tests := []struct {
		in      string
		want    Strategy
		wantErr bool
	}{
		{"", SemiNaive, false},
		{"semi-naive", SemiNaive, false},
		{"naive", Naive, false},
		{"fast", "", true},
	}
	for _, tt := range tests {
		t.Run(fmt.Sprintf("%q", tt.in), func(t *testing.T) {
			got, err := ParseStrategy(tt.in)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}
