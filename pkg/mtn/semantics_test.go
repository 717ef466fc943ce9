package mtn

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func gClef() *Clef {
	return NewClef(nil, PitchG, 4, NewStaffPosition(1, 4))
}

func fClef() *Clef {
	return NewClef(nil, PitchF, 3, NewStaffPosition(1, 8))
}

func cClef() *Clef {
	return NewClef(nil, PitchC, 4, NewStaffPosition(1, 6))
}

func TestPitch2Pos(t *testing.T) {
	tests := []struct {
		name  string
		clef  *Clef
		pitch NotePitch
		want  int
	}{
		{"g clef C4", gClef(), NotePitch{Step: PitchC, Octave: 4}, 0},
		{"g clef G4", gClef(), NotePitch{Step: PitchG, Octave: 4}, 4},
		{"g clef B3", gClef(), NotePitch{Step: PitchB, Octave: 3}, -1},
		{"g clef C5", gClef(), NotePitch{Step: PitchC, Octave: 5}, 7},
		{"f clef C3", fClef(), NotePitch{Step: PitchC, Octave: 3}, 5},
		{"f clef G3", fClef(), NotePitch{Step: PitchG, Octave: 3}, 9},
		{"f clef B2", fClef(), NotePitch{Step: PitchB, Octave: 2}, 4},
		{"f clef C4", fClef(), NotePitch{Step: PitchC, Octave: 4}, 12},
		{"c clef C4", cClef(), NotePitch{Step: PitchC, Octave: 4}, 6},
		{"c clef G4", cClef(), NotePitch{Step: PitchG, Octave: 4}, 10},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.clef.Pitch2Pos(tt.pitch))
		})
	}
}

func TestPitch2PosMonotonic(t *testing.T) {
	clef := gClef()
	last := clef.Pitch2Pos(NotePitch{Step: PitchC, Octave: 2})
	pitch := NotePitch{Step: PitchC, Octave: 2}
	for i := 0; i < 28; i++ {
		pitch = pitch.Add(1)
		pos := clef.Pitch2Pos(pitch)
		require.Equal(t, last+1, pos)
		last = pos
	}
}

func TestPos2PitchRoundTrip(t *testing.T) {
	for _, clef := range []*Clef{gClef(), fClef(), cClef()} {
		for pos := -10; pos <= 20; pos++ {
			pitch := clef.Pos2Pitch(pos)
			assert.Equal(t, pos, clef.Pitch2Pos(pitch))
		}
	}
}

func TestFifthsAccidentalPositions(t *testing.T) {
	sharps := FifthsAccidentalPositions(7, gClef())
	assert.Equal(t, []int{10, 7, 11, 8, 5, 9, 6}, sharps)

	flats := FifthsAccidentalPositions(-7, gClef())
	assert.Equal(t, []int{6, 9, 5, 8, 4, 7, 3}, flats)
}

func TestFifthsAccidentalPositionsPartial(t *testing.T) {
	assert.Equal(t, []int{10, 7}, FifthsAccidentalPositions(2, gClef()))
	assert.Equal(t, []int{4}, FifthsAccidentalPositions(-1, fClef()))
}

func TestFifthsAccidentalPositionsUncommonClef(t *testing.T) {
	// A G clef on an unusual line is not in the lookup tables, so its
	// positions are projected and folded into staff range.
	clef := NewClef(nil, PitchG, 4, NewStaffPosition(1, 2))
	positions := FifthsAccidentalPositions(7, clef)
	require.Len(t, positions, 7)
	for _, pos := range positions {
		assert.GreaterOrEqual(t, pos, 1)
		assert.LessOrEqual(t, pos, 11)
	}
}

func TestFifthsAlterations(t *testing.T) {
	sharp2 := FifthsAlterations(2)
	require.NotNil(t, sharp2[int(PitchF)])
	require.NotNil(t, sharp2[int(PitchC)])
	assert.Equal(t, AccSharp, *sharp2[int(PitchF)])
	assert.Equal(t, AccSharp, *sharp2[int(PitchC)])
	for _, tone := range []NamedPitch{PitchD, PitchE, PitchG, PitchA, PitchB} {
		assert.Nil(t, sharp2[int(tone)])
	}

	flat1 := FifthsAlterations(-1)
	require.NotNil(t, flat1[int(PitchB)])
	assert.Equal(t, AccFlat, *flat1[int(PitchB)])
}

func TestEnsureKeyRange(t *testing.T) {
	tests := []struct {
		in, want int
	}{
		{1, 1},
		{11, 11},
		{12, 4},
		{15, 7},
		{0, 8},
		{-3, 5},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, EnsureKeyRange(tt.in), "EnsureKeyRange(%d)", tt.in)
	}
}

func TestStaffPositionOrdering(t *testing.T) {
	a := NewStaffPosition(1, 4)
	b := NewStaffPosition(1, 7)
	c := NewStaffPosition(2, 0)
	assert.True(t, a.Less(b))
	assert.True(t, b.Less(c))
	assert.True(t, a.Equal(NewStaffPosition(1, 4)))

	// Unset staves sort before staff one.
	assert.True(t, AnyStaffPosition().Less(a))
}

func TestNotePitchAdd(t *testing.T) {
	c4 := NotePitch{Step: PitchC, Octave: 4}
	assert.Equal(t, NotePitch{Step: PitchD, Octave: 4}, c4.Add(1))
	assert.Equal(t, NotePitch{Step: PitchC, Octave: 5}, c4.Add(7))
	assert.Equal(t, NotePitch{Step: PitchB, Octave: 3}, c4.Sub(1))
	assert.Equal(t, NotePitch{Step: PitchA, Octave: 2}, c4.Sub(9))
}
