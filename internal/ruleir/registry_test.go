package ruleir

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/relcheck/internal/ir"
)

func TestRegistry(t *testing.T) {
	r := NewRegistry()
	require.NoError(t, r.RegisterGuard(GuardSpec{Name: "b", In: 1, Fn: noop}))
	require.NoError(t, r.RegisterGuard(GuardSpec{Name: "a", In: 1, Out: 1, Fn: noop}))
	r.RegisterConst("I32", ir.TypeI32)

	assert.Error(t, r.RegisterGuard(GuardSpec{Name: "a", Fn: noop}), "duplicate")
	assert.Error(t, r.RegisterGuard(GuardSpec{Name: "c"}), "nil function")
	assert.Panics(t, func() { r.MustRegisterGuard(GuardSpec{Name: "b", Fn: noop}) })

	g, ok := r.Guard("a")
	assert.True(t, ok)
	assert.Equal(t, 1, g.Out)

	c, ok := r.Const("I32")
	assert.True(t, ok)
	assert.Equal(t, ir.TypeI32, c)

	_, ok = r.Const("F64")
	assert.False(t, ok)

	assert.Equal(t, []string{"a", "b"}, r.GuardNames())
}
