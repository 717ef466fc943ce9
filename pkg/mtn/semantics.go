package mtn

import (
	"fmt"
	"math/big"
)

// Clef2Sign maps a clef family to the pitch its sign is anchored on.
// Percussion clefs behave like G clefs for position arithmetic.
var Clef2Sign = map[ClefType]NamedPitch{
	ClefG:          PitchG,
	ClefC:          PitchC,
	ClefF:          PitchF,
	ClefPercussion: PitchG,
}

// SymbolTimesigDuration is the measure duration, in beats, implied by
// a single-symbol time signature.
var SymbolTimesigDuration = map[TimeSymbol]*big.Rat{
	TimeCommon: Frac(4, 1),
	TimeCut:    Frac(4, 1),
}

// AccidentalAlter is the pitch alteration each accidental produces, in
// semitones.
var AccidentalAlter = map[AccidentalType]*big.Rat{
	AccDoubleFlat:   Frac(-2, 1),
	AccDoubleSharp:  Frac(2, 1),
	AccFlat:         Frac(-1, 1),
	AccSharp:        Frac(1, 1),
	AccQuarterFlat:  Frac(-1, 2),
	AccQuarterSharp: Frac(1, 2),
	AccNatural:      Frac(0, 1),
}

// NotePitch is the pitch of a note in diatonic terms: a step, an
// octave and an optional chromatic alteration in semitones.
type NotePitch struct {
	Step   NamedPitch
	Octave int
	Alter  *big.Rat
}

// Ordinal flattens the pitch into a single diatonic index across
// octaves. Alterations are ignored.
func (p NotePitch) Ordinal() int {
	return int(p.Step) + 7*p.Octave
}

// Add returns a copy of the pitch moved up a number of diatonic steps.
func (p NotePitch) Add(steps int) NotePitch {
	total := int(p.Step) + steps
	return NotePitch{
		Step:   NamedPitch(floorMod(total, 7)),
		Octave: p.Octave + floorDiv(total, 7),
		Alter:  p.Alter,
	}
}

// Sub returns a copy of the pitch moved down a number of diatonic
// steps.
func (p NotePitch) Sub(steps int) NotePitch {
	return p.Add(-steps)
}

func (p NotePitch) String() string {
	return fmt.Sprintf("%s%d", p.Step, p.Octave)
}

// unsetField marks a staff or position field as unconstrained.
const unsetField = -1 << 20

// StaffPosition locates an element on a staff in MTN terms. Either
// field may be left unset, which means "anywhere" on that axis.
type StaffPosition struct {
	staff    int
	position int
}

// NewStaffPosition builds a fully specified staff position.
func NewStaffPosition(staff, position int) StaffPosition {
	return StaffPosition{staff: staff, position: position}
}

// StaffOnly builds a position constrained to a staff but floating
// vertically.
func StaffOnly(staff int) StaffPosition {
	return StaffPosition{staff: staff, position: unsetField}
}

// AnyStaffPosition builds a fully unconstrained position.
func AnyStaffPosition() StaffPosition {
	return StaffPosition{staff: unsetField, position: unsetField}
}

// Staff returns the staff number and whether it is set.
func (p StaffPosition) Staff() (int, bool) {
	return p.staff, p.staff != unsetField
}

// Position returns the vertical position and whether it is set.
func (p StaffPosition) Position() (int, bool) {
	return p.position, p.position != unsetField
}

// WithPosition returns a copy with the vertical position replaced.
func (p StaffPosition) WithPosition(position int) StaffPosition {
	p.position = position
	return p
}

// WithStaff returns a copy with the staff replaced.
func (p StaffPosition) WithStaff(staff int) StaffPosition {
	p.staff = staff
	return p
}

// Key flattens the position into a single comparable value. Unset
// staves sort as zero and unset positions as the middle of the staff
// range.
func (p StaffPosition) Key() int {
	staff := p.staff
	if staff == unsetField {
		staff = 0
	}
	position := p.position
	if position == unsetField {
		position = 500
	}
	return 1000*staff + position
}

// Equal reports whether both positions collapse to the same key.
func (p StaffPosition) Equal(other StaffPosition) bool {
	return p.Key() == other.Key()
}

// Less orders positions by their flattened key.
func (p StaffPosition) Less(other StaffPosition) bool {
	return p.Key() < other.Key()
}

func (p StaffPosition) String() string {
	staff, position := "ANY", "ANY"
	if p.staff != unsetField {
		staff = fmt.Sprintf("%01d", p.staff)
	}
	if p.position != unsetField {
		position = fmt.Sprintf("%02d", p.position)
	}
	return fmt.Sprintf("s:%s/p:%s", staff, position)
}

// modificationSequence is the order in which scale tones acquire
// accidentals while walking the circle of fifths. The midpoint is the
// unaltered key; moving right adds sharps and moving left adds flats.
var modificationSequence = computeModifications()

func computeModifications() []int {
	seq := make([]int, 14)
	for x := range seq {
		seq[x] = ((x * 4) + 3) % 7
	}
	return seq
}

// sharpKeyPositions and flatKeyPositions give the staff positions of
// key signature accidentals for the common clefs, keyed by clef sign
// and clef position.
type clefPlacement struct {
	Sign     NamedPitch
	Position int
}

var sharpKeyPositions = map[clefPlacement][]int{
	{PitchG, 4}: {10, 7, 11, 8, 5, 9, 6},
	{PitchF, 8}: {8, 5, 9, 6, 3, 7, 4},
	{PitchC, 2}: {5, 9, 6, 10, 7, 11, 8},
	{PitchC, 6}: {9, 6, 10, 7, 4, 8, 5},
	{PitchC, 8}: {4, 8, 5, 9, 6, 10, 7},
}

var flatKeyPositions = map[clefPlacement][]int{
	{PitchG, 4}: {6, 9, 5, 8, 4, 7, 3},
	{PitchF, 8}: {4, 7, 3, 6, 2, 5, 1},
	{PitchC, 2}: {7, 10, 6, 9, 5, 8, 4},
	{PitchC, 6}: {5, 8, 4, 7, 3, 6, 2},
	{PitchC, 8}: {7, 10, 6, 9, 5, 8, 4},
}

// FifthsAccidentalPositions computes the staff positions where key
// signature accidentals are written for a given clef and number of
// fifths. Clefs with no precomputed layout have their positions
// projected from fifth-related pitches and clamped into staff range.
func FifthsAccidentalPositions(fifths int, clef *Clef) []int {
	table := flatKeyPositions
	direction := -1
	if fifths > 0 {
		table = sharpKeyPositions
		direction = 1
	}

	n := fifths
	if n < 0 {
		n = -n
	}

	position, ok := clef.Position.Position()
	if ok {
		if positions, found := table[clefPlacement{clef.Sign, position}]; found {
			return positions[:n]
		}
	}

	positions := make([]int, 0, 7)
	for ii := 1; ii <= 7; ii++ {
		pitch := NotePitch{
			Step:   NamedPitch(floorMod(ii+5*direction, 7)),
			Octave: clef.Octave + direction,
			Alter:  Frac(0, 1),
		}
		positions = append(positions, EnsureKeyRange(clef.Pitch2Pos(pitch)))
	}
	return positions[:n]
}

// FifthsAlterations returns, per scale tone, the accidental produced
// by moving the given number of fifths around the circle. A nil entry
// means the tone is unaltered.
func FifthsAlterations(fifths int) []*AccidentalType {
	output := make([]*AccidentalType, 7)
	origin := 7
	target := origin + fifths
	if target < origin {
		origin, target = target, origin
	}

	acc := AccFlat
	if fifths > 0 {
		acc = AccSharp
	}
	for _, tone := range modificationSequence[origin:target] {
		a := acc
		output[tone] = &a
	}
	return output
}

// EnsureKeyRange folds a key accidental position back into the
// printable range of the staff.
func EnsureKeyRange(value int) int {
	if value > 11 {
		value -= 8 * ceilDiv(value-11, 8)
	} else if value < 1 {
		value += 8 * ceilDiv(-(value - 1), 8)
	}
	return value
}

// DefaultClefPositions places each clef sign on its customary staff
// line when the source does not say otherwise.
var DefaultClefPositions = map[NamedPitch]int{
	PitchG: 4,
	PitchF: 8,
	PitchC: 6,
}

// DefaultClefOctave is the octave of the pitch a clef sign denotes.
var DefaultClefOctave = map[NamedPitch]int{
	PitchG: 4,
	PitchF: 3,
	PitchC: 4,
}

func floorDiv(a, b int) int {
	q := a / b
	if (a%b != 0) && ((a < 0) != (b < 0)) {
		q--
	}
	return q
}

func floorMod(a, b int) int {
	m := a % b
	if m != 0 && ((a < 0) != (b < 0)) {
		m += b
	}
	return m
}

func ceilDiv(a, b int) int {
	return -floorDiv(-a, b)
}
