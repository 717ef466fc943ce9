package mtn

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func headToken(id int, pos StaffPosition) *Token {
	return NewToken(
		TokenNotehead,
		map[string]string{"type": string(HeadBlack)},
		pos,
		id,
	)
}

func quarterChord(delta int64, id int, pos StaffPosition) *Chord {
	return NewChord(
		Frac(delta, 1),
		nil,
		[]*Note{NewNote(headToken(id, pos), nil, nil, nil)},
	)
}

func restAt(delta int64, id int) *Rest {
	return NewRest(
		Frac(delta, 1),
		NewToken(
			TokenRest,
			map[string]string{"type": string(NoteQuarter)},
			StaffOnly(1),
			id,
		),
		nil,
		nil,
	)
}

func TestMeasureSortIdempotent(t *testing.T) {
	group := NewNoteGroup(
		Frac(0, 1),
		[]GroupChild{quarterChord(0, 1, NewStaffPosition(1, 0))},
		nil,
	)
	attributes := MakeEmptyAttributes(1, Frac(0, 1), true)
	rest := restAt(1, 2)

	measure := NewMeasure(
		[]TopLevel{rest, group, attributes},
		nil, nil, 1, "1", "P1", Frac(4, 1),
	)
	measure.Sort()
	first := make([]TopLevel, len(measure.Elements))
	copy(first, measure.Elements)

	measure.Sort()
	for i := range first {
		assert.Same(t, first[i], measure.Elements[i])
	}

	// Attributes precede sounding elements at the same instant and the
	// later rest comes last.
	assert.IsType(t, &Attributes{}, measure.Elements[0])
	assert.IsType(t, &NoteGroup{}, measure.Elements[1])
	assert.IsType(t, &Rest{}, measure.Elements[2])
}

func TestAttributesMergeLastWriteWins(t *testing.T) {
	clef1 := DefaultClef(1)
	key1 := DefaultKey()

	a := MakeEmptyAttributes(1, Frac(0, 1), false)
	a.Clefs[1] = clef1

	b := MakeEmptyAttributes(1, Frac(0, 1), false)
	b.Keys[1] = key1

	a.Merge(b)
	assert.Same(t, clef1, a.Clefs[1])
	assert.Same(t, key1, a.Keys[1])

	clef2 := NewClef(nil, PitchF, 3, NewStaffPosition(1, 8))
	c := MakeEmptyAttributes(1, Frac(0, 1), false)
	c.Clefs[1] = clef2

	a.Merge(c)
	assert.Same(t, clef2, a.Clefs[1])
	assert.Same(t, key1, a.Keys[1])
}

func TestAttributesMergeStaffMismatch(t *testing.T) {
	a := MakeEmptyAttributes(1, Frac(0, 1), false)
	b := MakeEmptyAttributes(2, Frac(0, 1), false)
	assert.Panics(t, func() { a.Merge(b) })
}

func TestNoteGroupSimplify(t *testing.T) {
	chord := quarterChord(0, 1, NewStaffPosition(1, 0))
	inner := NewNoteGroup(Frac(0, 1), []GroupChild{chord}, nil)
	outer := NewNoteGroup(Frac(0, 1), []GroupChild{inner}, nil)

	outer.Simplify()
	require.Len(t, outer.Children, 1)
	assert.Same(t, chord, outer.Children[0])
}

func TestNoteGroupSimplifyKeepsSiblings(t *testing.T) {
	left := quarterChord(0, 1, NewStaffPosition(1, 0))
	right := quarterChord(0, 2, NewStaffPosition(1, 2))
	group := NewNoteGroup(Frac(0, 1), []GroupChild{left, right}, nil)

	group.Simplify()
	require.Len(t, group.Children, 2)
}

func TestCompareIgnoresIdentifiers(t *testing.T) {
	a := headToken(1, NewStaffPosition(1, 0))
	b := headToken(99, NewStaffPosition(1, 0))
	assert.True(t, a.Compare(b))
	assert.NoError(t, a.Diff(b))

	c := headToken(1, NewStaffPosition(1, 2))
	assert.False(t, a.Compare(c))
	assert.Error(t, a.Diff(c))
}

func TestCompareDetectsModifierChange(t *testing.T) {
	a := headToken(1, NewStaffPosition(1, 0))
	b := headToken(1, NewStaffPosition(1, 0))
	b.Modifiers["type"] = string(HeadWhite)
	assert.False(t, a.Compare(b))
}

func TestDirectionSortsDirectives(t *testing.T) {
	wedge := NewToken(
		TokenWedge,
		map[string]string{"type": string(WedgeCrescendo)},
		StaffOnly(1),
		2,
	)
	dyn := NewToken(
		TokenDyn,
		map[string]string{"type": string(DynF)},
		StaffOnly(1),
		1,
	)
	direction := NewDirection(Frac(0, 1), []*Token{wedge, dyn})
	require.Len(t, direction.Directives, 2)
	assert.Equal(t, TokenDyn, direction.Directives[0].TokenType)

	other := NewDirection(Frac(0, 1), []*Token{dyn.Copy(), wedge.Copy()})
	assert.True(t, direction.Compare(other))
}

func TestMergeDirectionPanicsAcrossTime(t *testing.T) {
	a := NewDirection(Frac(0, 1), nil)
	b := NewDirection(Frac(1, 1), nil)
	assert.Panics(t, func() { a.MergeDirection(b) })
}

func TestCollectTokensRefreshTargets(t *testing.T) {
	group := NewNoteGroup(
		Frac(0, 1),
		[]GroupChild{quarterChord(0, 7, NewStaffPosition(1, 0))},
		[]*Token{NewToken(TokenBeam, nil, AnyStaffPosition(), 8)},
	)
	tokens := CollectTokens(group)
	require.Len(t, tokens, 2)

	ids := map[int]bool{}
	for _, token := range tokens {
		ids[token.ID] = true
	}
	assert.True(t, ids[7])
	assert.True(t, ids[8])
}

func TestTimesigFractionValue(t *testing.T) {
	numerator := NewNumerator([]SyntaxNode{NewNumber([]*Token{
		NewToken(TokenNumber, map[string]string{"type": "3"}, StaffOnly(1), 1),
	})})
	denominator := NewDenominator(NewNumber([]*Token{
		NewToken(TokenNumber, map[string]string{"type": "8"}, StaffOnly(1), 2),
	}))
	fraction := &TimesigFraction{Numerator: numerator, Denominator: denominator}
	assert.Equal(t, 0, fraction.Value().Cmp(Frac(3, 8)))
}

func TestNumberValueMultiDigit(t *testing.T) {
	number := NewNumber([]*Token{
		NewToken(TokenNumber, map[string]string{"type": "1"}, StaffOnly(1), 1),
		NewToken(TokenNumber, map[string]string{"type": "2"}, StaffOnly(1), 2),
	})
	assert.Equal(t, 12, number.Value())
}
