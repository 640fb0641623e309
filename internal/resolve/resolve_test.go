package resolve

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/relcheck/internal/intern"
	"github.com/roach88/relcheck/internal/ir"
	"github.com/roach88/relcheck/internal/testutil"
)

func pathOf(t *testing.T, in *intern.Interner, p ir.Path) ir.PathID {
	t.Helper()
	id, ok := in.LookupPath(p)
	require.True(t, ok, "path %s not interned", p.Key())
	return id
}

func TestPaths_LetBodyIsUsed(t *testing.T) {
	tree := testutil.LetVar()

	fb, err := Paths(tree.In, tree.Root)
	require.NoError(t, err)

	px := pathOf(t, tree.In, ir.PathVar{Name: tree.Names["x"]})
	assert.Equal(t, []RootFact{{Name: tree.Names["x"], Path: px}}, fb.Roots)
	assert.Empty(t, fb.Parents)
	assert.Equal(t, []UseFact{{Path: px, Expr: tree.Nodes["body"]}}, fb.Uses)
}

func TestPaths_DoubleUseSharesPath(t *testing.T) {
	tree := testutil.DoubleUse()

	fb, err := Paths(tree.In, tree.Root)
	require.NoError(t, err)

	pa := pathOf(t, tree.In, ir.PathVar{Name: tree.Names["a"]})
	assert.Equal(t, 1, tree.In.LenPaths(), "both reads of a share one path")
	assert.Equal(t, []RootFact{{Name: tree.Names["a"], Path: pa}}, fb.Roots)
	assert.Equal(t, []UseFact{
		{Path: pa, Expr: tree.Nodes["a_ref0"]},
		{Path: pa, Expr: tree.Nodes["a_ref1"]},
	}, fb.Uses)
}

func TestPaths_Projections(t *testing.T) {
	tree := testutil.DisjointProjections()

	fb, err := Paths(tree.In, tree.Root)
	require.NoError(t, err)

	in := tree.In
	pa := pathOf(t, in, ir.PathVar{Name: tree.Names["a"]})
	pa0 := pathOf(t, in, ir.PathProject{Parent: pa, Index: 0})
	pa00 := pathOf(t, in, ir.PathProject{Parent: pa0, Index: 0})
	pa01 := pathOf(t, in, ir.PathProject{Parent: pa0, Index: 1})
	pa1 := pathOf(t, in, ir.PathProject{Parent: pa, Index: 1})

	assert.Equal(t, 5, in.LenPaths())
	assert.Equal(t, []RootFact{{Name: tree.Names["a"], Path: pa}}, fb.Roots)
	assert.Equal(t, []ParentFact{
		{Parent: pa, Child: pa0},
		{Parent: pa0, Child: pa00},
		{Parent: pa0, Child: pa01},
		{Parent: pa, Child: pa1},
	}, fb.Parents)
	assert.Equal(t, []UseFact{
		{Path: pa00, Expr: tree.Nodes["a00"]},
		{Path: pa01, Expr: tree.Nodes["a01"]},
		{Path: pa1, Expr: tree.Nodes["a1"]},
	}, fb.Uses)
}

func TestPaths_BareLiteral(t *testing.T) {
	tree := testutil.BareLiteral()

	fb, err := Paths(tree.In, tree.Root)
	require.NoError(t, err)

	assert.Empty(t, fb.Roots)
	assert.Empty(t, fb.Parents)
	assert.Empty(t, fb.Uses)

	facts := fb.Facts()
	assert.Len(t, facts, 3, "empty relations are still declared")
	for _, rows := range facts {
		assert.Empty(t, rows)
	}
}

func TestPaths_OperatorsAndTuplesConsume(t *testing.T) {
	in := intern.New()
	x := in.FreshName()
	lit := in.MustExpr(ir.I32{Value: 1})
	l := in.MustExpr(ir.Var{Name: x})
	r := in.MustExpr(ir.Var{Name: x})
	sum := in.MustExpr(ir.Add{Left: l, Right: r})
	t0 := in.MustExpr(ir.Var{Name: x})
	tup := in.MustExpr(ir.Tuple{Elems: []ir.ExprID{t0, sum}})
	root := in.MustExpr(ir.Let{Name: x, Value: lit, Body: tup})

	fb, err := Paths(in, root)
	require.NoError(t, err)

	px := pathOf(t, in, ir.PathVar{Name: x})
	assert.Equal(t, []UseFact{
		{Path: px, Expr: t0},
		{Path: px, Expr: l},
		{Path: px, Expr: r},
	}, fb.Uses)
}

func TestPaths_ProjectionOfNonPath(t *testing.T) {
	in := intern.New()
	lit := in.MustExpr(ir.I32{Value: 1})
	tup := in.MustExpr(ir.Tuple{Elems: []ir.ExprID{lit}})
	proj := in.MustExpr(ir.Project{Tuple: tup, Index: 0})

	fb, err := Paths(in, proj)
	require.NoError(t, err)
	assert.Empty(t, fb.Parents)
	assert.Equal(t, 0, in.LenPaths())
}

func TestPaths_DanglingRoot(t *testing.T) {
	_, err := Paths(intern.New(), 1)
	require.Error(t, err)
	assert.True(t, intern.IsDanglingID(err))
}

func TestFactBase_Facts(t *testing.T) {
	tree := testutil.AncestorConflict()

	fb, err := Paths(tree.In, tree.Root)
	require.NoError(t, err)

	facts := fb.Facts()
	assert.Len(t, facts[RelRoot], 1)
	assert.Len(t, facts[RelParent], 2)
	assert.Len(t, facts[RelUsed], 2)
	assert.Equal(t, ir.R(fb.Uses[0].Path, fb.Uses[0].Expr), facts[RelUsed][0])
}
