package translator

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/CVC-DAG/comref-converter/pkg/mtn"
)

func TestPointToPointPairing(t *testing.T) {
	table := NewSymbolTable()

	open := table.IdentifyPointToPoint(mtn.TokenSlur, 1)
	closed := table.IdentifyPointToPoint(mtn.TokenSlur, 1)
	assert.Equal(t, open, closed)

	// The pair is consumed, so a third call opens a new object.
	reopened := table.IdentifyPointToPoint(mtn.TokenSlur, 1)
	assert.NotEqual(t, open, reopened)
}

func TestPointToPointKeyedByTokenAndNumber(t *testing.T) {
	table := NewSymbolTable()

	slur1 := table.IdentifyPointToPoint(mtn.TokenSlur, 1)
	slur2 := table.IdentifyPointToPoint(mtn.TokenSlur, 2)
	tie := table.IdentifyPointToPoint(mtn.TokenGlissando, 1)
	assert.NotEqual(t, slur1, slur2)
	assert.NotEqual(t, slur1, tie)

	assert.Equal(t, slur2, table.IdentifyPointToPoint(mtn.TokenSlur, 2))
	assert.Equal(t, slur1, table.IdentifyPointToPoint(mtn.TokenSlur, 1))
}

func TestTiesKeyedByPosition(t *testing.T) {
	table := NewSymbolTable()

	low := table.IdentifyTie(mtn.NewStaffPosition(1, 0), noNumber)
	high := table.IdentifyTie(mtn.NewStaffPosition(1, 4), noNumber)
	assert.NotEqual(t, low, high)

	assert.Equal(t, low, table.IdentifyTie(mtn.NewStaffPosition(1, 0), noNumber))
	assert.Equal(t, high, table.IdentifyTie(mtn.NewStaffPosition(1, 4), noNumber))
}

func TestBeamStackGrowsAndShrinks(t *testing.T) {
	table := NewSymbolTable()

	one := table.IdentifyBeams(false, false, 1)
	require.Len(t, one, 1)

	two := table.IdentifyBeams(false, false, 2)
	require.Len(t, two, 2)
	assert.Equal(t, one[0], two[0], "the outer beam survives")

	shrunk := table.IdentifyBeams(false, false, 1)
	require.Len(t, shrunk, 1)
	assert.Equal(t, one[0], shrunk[0])

	regrown := table.IdentifyBeams(false, false, 2)
	assert.NotEqual(t, two[1], regrown[1], "a dropped beam level does not come back")
}

func TestBeamStacksSeparateGraceAndCue(t *testing.T) {
	table := NewSymbolTable()

	normal := table.IdentifyBeams(false, false, 1)
	grace := table.IdentifyBeams(false, true, 1)
	cue := table.IdentifyBeams(true, false, 1)
	assert.NotEqual(t, normal[0], grace[0])
	assert.NotEqual(t, normal[0], cue[0])
	assert.NotEqual(t, grace[0], cue[0])
}

func TestArpeggioSharedWithinInstant(t *testing.T) {
	table := NewSymbolTable()

	first := table.IdentifyArpeggio(mtn.Frac(1, 2), noNumber)
	second := table.IdentifyArpeggio(mtn.Frac(1, 2), noNumber)
	assert.Equal(t, first, second)

	other := table.IdentifyArpeggio(mtn.Frac(3, 2), noNumber)
	assert.NotEqual(t, first, other)
}

func TestNewMeasureScopesArpeggiosOnly(t *testing.T) {
	table := NewSymbolTable()

	arpeggio := table.IdentifyArpeggio(mtn.Frac(0, 1), noNumber)
	slur := table.IdentifyPointToPoint(mtn.TokenSlur, 1)
	tie := table.IdentifyTie(mtn.NewStaffPosition(1, 0), noNumber)

	table.NewMeasure()

	// Ties and slurs may cross barlines; arpeggios may not.
	assert.Equal(t, slur, table.IdentifyPointToPoint(mtn.TokenSlur, 1))
	assert.Equal(t, tie, table.IdentifyTie(mtn.NewStaffPosition(1, 0), noNumber))
	assert.NotEqual(t, arpeggio, table.IdentifyArpeggio(mtn.Frac(0, 1), noNumber))
}

func TestResetRestartsIdentifiers(t *testing.T) {
	table := NewSymbolTable()
	first := table.GiveIdentifier()
	table.GiveIdentifier()

	table.Reset()
	assert.Equal(t, first, table.GiveIdentifier())
}
