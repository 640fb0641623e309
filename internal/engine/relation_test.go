package engine

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/relcheck/internal/ir"
)

func TestRelation_InsertDedup(t *testing.T) {
	r := newRelation("Edge", 2, nil)

	row := pair(1, 2)
	ok, err := r.insert(row.Key(), row)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = r.insert(row.Key(), pair(1, 2))
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Equal(t, 1, r.len())
	assert.True(t, r.has(row.Key()))
}

func TestRelation_IndexLookupWindow(t *testing.T) {
	first := colMask(1) // column 0 bound
	r := newRelation("Edge", 2, map[colMask]struct{}{first: {}})
	for _, row := range []ir.Row{pair(1, 2), pair(2, 3), pair(1, 4), pair(1, 5)} {
		_, err := r.insert(row.Key(), row)
		require.NoError(t, err)
	}
	key := ir.R(ir.Index(1)).Key()

	collect := func(sp span) []int {
		var got []int
		r.lookup(first, key, sp, func(p int) bool {
			got = append(got, p)
			return true
		})
		return got
	}
	assert.Equal(t, []int{0, 2, 3}, collect(span{0, 4}))
	assert.Equal(t, []int{2}, collect(span{1, 3}))
	assert.Empty(t, collect(span{3, 3}))

	assert.True(t, r.any(first, key, span{0, 4}))
	assert.False(t, r.any(first, ir.R(ir.Index(9)).Key(), span{0, 4}))
	assert.True(t, r.any(0, "", span{0, 1}))
	assert.False(t, r.any(0, "", span{0, 0}))
}

func TestDeltaVariants(t *testing.T) {
	// Path(a, c) :- Path(a, b), Path(b, c), Edge(c, d).
	plan := &rulePlan{steps: []step{
		{kind: stepScan, rel: 1},
		{kind: stepScan, rel: 1},
		{kind: stepScan, rel: 0},
	}}
	prev := []int{3, 5}
	cur := []int{3, 8}

	got := deltaVariants(plan, []int{0, 1}, prev, cur)
	assert.Equal(t, [][]span{
		{{5, 8}, {0, 8}, {0, 3}},
		{{0, 5}, {5, 8}, {0, 3}},
	}, got)

	assert.Empty(t, deltaVariants(plan, []int{0, 1}, cur, cur), "no delta, no variants")
}
