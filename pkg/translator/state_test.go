package translator

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/CVC-DAG/comref-converter/pkg/mtn"
)

func TestNewScoreStateDefaults(t *testing.T) {
	state := NewScoreState()
	assert.Equal(t, 1, state.NStaves)
	assert.Equal(t, 0, state.CurrentTime().Sign())

	attrs := state.Attributes()
	require.NotNil(t, attrs.Clefs[1])
	require.NotNil(t, attrs.Keys[1])
	require.NotNil(t, attrs.Timesigs[1])

	duration, err := state.GetDuration()
	require.NoError(t, err)
	assert.Equal(t, 0, duration.Cmp(mtn.Frac(4, 1)))
}

func TestBufferDefersTime(t *testing.T) {
	state := NewScoreState()

	state.SetBuffer(mtn.Frac(1, 1))
	assert.Equal(t, 0, state.CurrentTime().Sign(), "buffer must not advance the clock yet")

	state.MoveBuffer()
	assert.Equal(t, 0, state.CurrentTime().Cmp(mtn.Frac(1, 1)))

	// A flushed buffer does not fire twice.
	state.MoveBuffer()
	assert.Equal(t, 0, state.CurrentTime().Cmp(mtn.Frac(1, 1)))
}

func TestSetBufferFlushesPrevious(t *testing.T) {
	state := NewScoreState()
	state.SetBuffer(mtn.Frac(1, 2))
	state.SetBuffer(mtn.Frac(1, 4))
	assert.Equal(t, 0, state.CurrentTime().Cmp(mtn.Frac(1, 2)))

	state.MoveBuffer()
	assert.Equal(t, 0, state.CurrentTime().Cmp(mtn.Frac(3, 4)))
}

func TestIncrementTimeFlushesBuffer(t *testing.T) {
	state := NewScoreState()
	state.SetBuffer(mtn.Frac(1, 1))
	state.IncrementTime(mtn.Frac(1, 1))
	assert.Equal(t, 0, state.CurrentTime().Cmp(mtn.Frac(2, 1)))

	// A backup is a negative increment.
	state.IncrementTime(mtn.Frac(-1, 2))
	assert.Equal(t, 0, state.CurrentTime().Cmp(mtn.Frac(3, 2)))
}

func attrsWithClef(clef *mtn.Clef) *mtn.Attributes {
	attrs := mtn.MakeEmptyAttributes(1, mtn.Frac(0, 1), false)
	attrs.Clefs[1] = clef
	return attrs
}

func attrsWithTimesig(beats int64) *mtn.Attributes {
	attrs := mtn.MakeEmptyAttributes(1, mtn.Frac(0, 1), false)
	attrs.Timesigs[1] = mtn.NewTimeSignature(nil, nil, mtn.Frac(beats, 1))
	return attrs
}

func TestSetAttributesMergesSameInstant(t *testing.T) {
	state := NewScoreState()
	clef := mtn.DefaultClef(1)

	state.SetAttributes(attrsWithClef(clef))
	state.SetAttributes(attrsWithTimesig(3))

	list := state.AttributeList()
	require.Len(t, list, 1, "same-instant changes accumulate into one entry")
	assert.Same(t, clef, list[0].Clefs[1])
	require.NotNil(t, list[0].Timesigs[1])

	duration, err := state.GetDuration()
	require.NoError(t, err)
	assert.Equal(t, 0, duration.Cmp(mtn.Frac(3, 1)))
}

func TestChangeTimeBackwardRestoresAttributes(t *testing.T) {
	state := NewScoreState()
	firstClef := mtn.DefaultClef(1)
	state.SetAttributes(attrsWithClef(firstClef))

	state.ChangeTime(mtn.Frac(2, 1))
	lateClef := mtn.NewClef(nil, mtn.PitchF, 3, mtn.NewStaffPosition(1, 8))
	state.SetAttributes(attrsWithClef(lateClef))
	assert.Same(t, lateClef, state.Attributes().Clefs[1])

	// Seeking before the late change resolves the earlier clef again.
	state.ChangeTime(mtn.Frac(1, 1))
	assert.Same(t, firstClef, state.Attributes().Clefs[1])

	// Moving forward over the change folds it back in.
	state.ChangeTime(mtn.Frac(3, 1))
	assert.Same(t, lateClef, state.Attributes().Clefs[1])
}

func TestAttributeListOrdered(t *testing.T) {
	state := NewScoreState()
	state.ChangeTime(mtn.Frac(2, 1))
	second := attrsWithTimesig(3)
	state.SetAttributes(second)

	state.ChangeTime(mtn.Frac(0, 1))
	first := attrsWithClef(mtn.DefaultClef(1))
	state.SetAttributes(first)

	list := state.AttributeList()
	require.Len(t, list, 2)
	assert.Same(t, first, list[0])
	assert.Same(t, second, list[1])
}

func TestNewMeasureCarriesAttributes(t *testing.T) {
	state := NewScoreState()
	clef := mtn.NewClef(nil, mtn.PitchF, 3, mtn.NewStaffPosition(1, 8))
	state.ChangeTime(mtn.Frac(2, 1))
	state.SetAttributes(attrsWithClef(clef))

	state.NewMeasure()
	assert.Equal(t, 0, state.CurrentTime().Sign())
	assert.Empty(t, state.AttributeList())
	assert.Same(t, clef, state.Attributes().Clefs[1])
	assert.Same(t, clef, state.StartAttributes(false).Clefs[1])
}

func TestStartAttributesStripsTimesig(t *testing.T) {
	state := NewScoreState()
	state.SetAttributes(attrsWithTimesig(3))
	state.NewMeasure()

	withTimesig := state.StartAttributes(false)
	require.NotNil(t, withTimesig.Timesigs[1])

	stripped := state.StartAttributes(true)
	assert.Nil(t, stripped.Timesigs[1])
	// Stripping must not touch the live state.
	require.NotNil(t, state.Attributes().Timesigs[1])
}

func TestChangeStavesMidMeasurePanics(t *testing.T) {
	state := NewScoreState()
	state.ChangeStaves(2)
	assert.Equal(t, 2, state.NStaves)
	require.NotNil(t, state.Attributes().Clefs[2])

	state.ChangeTime(mtn.Frac(1, 1))
	assert.Panics(t, func() { state.ChangeStaves(3) })
}
