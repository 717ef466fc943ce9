package translator

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/CVC-DAG/comref-converter/pkg/mtn"
)

func newTestGroupStack() *GroupStack {
	state := NewScoreState()
	symbols := NewSymbolTable()
	return NewGroupStack(state, symbols)
}

func TestNewLevelNestsGroups(t *testing.T) {
	groups := newTestGroupStack()

	outer := groups.NewLevel(false)
	require.Equal(t, 1, groups.Length(false))
	require.Len(t, outer.Appendages, 1)
	assert.Equal(t, mtn.TokenBeam, outer.Appendages[0].TokenType)

	inner := groups.NewLevel(false)
	assert.Equal(t, 2, groups.Length(false))
	assert.Same(t, inner, groups.Top(false))
	assert.Same(t, outer, groups.Bottom(false))

	// The nested level hangs from its parent.
	require.Len(t, outer.Children, 1)
	assert.Same(t, inner, outer.Children[0])
}

func TestPopReturnsInnermost(t *testing.T) {
	groups := newTestGroupStack()
	outer := groups.NewLevel(false)
	inner := groups.NewLevel(false)

	assert.Same(t, inner, groups.Pop(false))
	assert.Same(t, outer, groups.Pop(false))
	assert.Equal(t, 0, groups.Length(false))
}

func TestPopEmptyPanics(t *testing.T) {
	groups := newTestGroupStack()
	assert.Panics(t, func() { groups.Pop(false) })
}

func TestGraceStackIndependent(t *testing.T) {
	groups := newTestGroupStack()

	regular := groups.NewLevel(false)
	grace := groups.NewLevel(true)

	assert.Equal(t, 1, groups.Length(false))
	assert.Equal(t, 1, groups.Length(true))
	assert.Same(t, regular, groups.Top(false))
	assert.Same(t, grace, groups.Top(true))

	// Grace groups never nest under regular ones.
	assert.Empty(t, regular.Children)

	groups.ResetGrace(true)
	assert.Equal(t, 0, groups.Length(true))
	assert.Equal(t, 1, groups.Length(false))
}

func TestGroupOpensAtCurrentTime(t *testing.T) {
	state := NewScoreState()
	symbols := NewSymbolTable()
	groups := NewGroupStack(state, symbols)

	state.ChangeTime(mtn.Frac(3, 2))
	group := groups.NewLevel(false)
	assert.Equal(t, 0, group.Delta().Cmp(mtn.Frac(3, 2)))
}
