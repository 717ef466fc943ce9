package translator

import (
	"math/big"

	"github.com/CVC-DAG/comref-converter/pkg/mtn"
)

// Identifier labels tokens that belong to the same musical object.
type Identifier = int

// noNumber stands in for an absent disambiguation number. MusicXML
// numbering attributes start at one.
const noNumber = 0

type beamKey struct {
	Cue   bool
	Grace bool
}

type arpeggioKey struct {
	Delta  string
	Number int
}

type pointToPointKey struct {
	Token  mtn.TokenType
	Number int
}

type tieKey struct {
	Position mtn.StaffPosition
	Number   int
}

// SymbolTable keeps track of opened and closed symbols so both ends of
// a spanning object receive the same identifier.
type SymbolTable struct {
	beamStacks   map[beamKey][]Identifier
	arpeggios    map[arpeggioKey]Identifier
	pointToPoint map[pointToPointKey]Identifier
	ties         map[tieKey]Identifier
	nextID       Identifier
}

// NewSymbolTable constructs an empty table.
func NewSymbolTable() *SymbolTable {
	t := &SymbolTable{}
	t.Reset()
	return t
}

// NewMeasure clears the per-measure symbol scopes. Arpeggios cannot
// outlive a measure; everything else can.
func (t *SymbolTable) NewMeasure() {
	t.arpeggios = map[arpeggioKey]Identifier{}
}

// Reset sets the table back to its default state.
func (t *SymbolTable) Reset() {
	t.beamStacks = map[beamKey][]Identifier{}
	t.arpeggios = map[arpeggioKey]Identifier{}
	t.pointToPoint = map[pointToPointKey]Identifier{}
	t.ties = map[tieKey]Identifier{}
	t.nextID = 1
}

// IdentifyBeams returns consistent identifiers for the ongoing beams
// of a voice. The stack for the voice grows or shrinks to the number
// of full beams on the current stem. Hook beams are self-contained and
// must not go through here.
func (t *SymbolTable) IdentifyBeams(cue, grace bool, nbeams int) []Identifier {
	key := beamKey{Cue: cue, Grace: grace}
	beams := t.beamStacks[key]
	for len(beams) < nbeams {
		beams = append(beams, t.GiveIdentifier())
	}
	if len(beams) > nbeams {
		beams = beams[:nbeams]
	}
	t.beamStacks[key] = beams

	out := make([]Identifier, len(beams))
	copy(out, beams)
	return out
}

// IdentifyArpeggio returns the identifier shared by every arpeggiate
// token playing at the same time, minting one on first sight.
func (t *SymbolTable) IdentifyArpeggio(delta *big.Rat, number int) Identifier {
	key := arpeggioKey{Delta: delta.RatString(), Number: number}
	if ident, ok := t.arpeggios[key]; ok {
		return ident
	}
	ident := t.GiveIdentifier()
	t.arpeggios[key] = ident
	return ident
}

// IdentifyPointToPoint pairs the two ends of a start-stop object. The
// first call opens the pair and mints an identifier; the second call
// closes it and returns the same identifier.
func (t *SymbolTable) IdentifyPointToPoint(tok mtn.TokenType, number int) Identifier {
	key := pointToPointKey{Token: tok, Number: number}
	if ident, ok := t.pointToPoint[key]; ok {
		delete(t.pointToPoint, key)
		return ident
	}
	ident := t.GiveIdentifier()
	t.pointToPoint[key] = ident
	return ident
}

// IdentifyTie pairs tie endpoints, which are keyed by the staff
// position of the note they hang from rather than by token type.
func (t *SymbolTable) IdentifyTie(position mtn.StaffPosition, number int) Identifier {
	key := tieKey{Position: position, Number: number}
	if ident, ok := t.ties[key]; ok {
		delete(t.ties, key)
		return ident
	}
	ident := t.GiveIdentifier()
	t.ties[key] = ident
	return ident
}

// GiveIdentifier mints an identifier without registering it anywhere.
func (t *SymbolTable) GiveIdentifier() Identifier {
	ident := t.nextID
	t.nextID++
	return ident
}
