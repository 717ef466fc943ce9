// Package mtn implements the Music Tree Notation model: the token
// vocabulary, pitch and key semantics, and the abstract syntax tree a
// score is represented with after translation.
package mtn

import (
	"math"
	"math/big"
)

// TokenType identifies the category of a primitive notation token. The
// string value is the element name the token serializes under.
type TokenType string

const (
	TokenAccent       TokenType = "accent"
	TokenAccidental   TokenType = "accidental"
	TokenArpeggiate   TokenType = "arpeggiate"
	TokenBarline      TokenType = "barline_tok"
	TokenBeam         TokenType = "beam"
	TokenCaesura      TokenType = "caesura"
	TokenClef         TokenType = "clef"
	TokenCoda         TokenType = "coda"
	TokenDelta        TokenType = "delta"
	TokenDot          TokenType = "dot"
	TokenDyn          TokenType = "dyn"
	TokenEOF          TokenType = "eof"
	TokenFermata      TokenType = "fermata"
	TokenFlag         TokenType = "flag"
	TokenGlissando    TokenType = "glissando"
	TokenHaydn        TokenType = "haydn"
	TokenMordent      TokenType = "mordent"
	TokenNotehead     TokenType = "notehead"
	TokenNumber       TokenType = "number"
	TokenOver         TokenType = "over"
	TokenPedal        TokenType = "pedal"
	TokenPlus         TokenType = "plus"
	TokenRepeat       TokenType = "repeat"
	TokenRest         TokenType = "rest"
	TokenSchleifer    TokenType = "schleifer"
	TokenSegno        TokenType = "segno"
	TokenSlide        TokenType = "slide"
	TokenSlur         TokenType = "slur"
	TokenStaccato     TokenType = "staccato"
	TokenStem         TokenType = "stem"
	TokenTenuto       TokenType = "tenuto"
	TokenTied         TokenType = "tied"
	TokenTimeRelation TokenType = "time_relation"
	TokenTimesig      TokenType = "timesig"
	TokenTrill        TokenType = "trill"
	TokenTuplet       TokenType = "tuplet"
	TokenTurn         TokenType = "turn"
	TokenUnknown      TokenType = "unknown"
	TokenWavyLine     TokenType = "wavy_line"
	TokenWedge        TokenType = "wedge"
)

// NamedPitch is a diatonic step, C through B, kept as an ordinal so
// staff position arithmetic can be done on it directly.
type NamedPitch int

const (
	PitchC NamedPitch = iota
	PitchD
	PitchE
	PitchF
	PitchG
	PitchA
	PitchB
)

var pitchNames = [...]string{"C", "D", "E", "F", "G", "A", "B"}

func (p NamedPitch) String() string {
	if p < 0 || int(p) >= len(pitchNames) {
		return "?"
	}
	return pitchNames[p]
}

// ParseNamedPitch converts a step letter into a NamedPitch.
func ParseNamedPitch(s string) (NamedPitch, bool) {
	for i, name := range pitchNames {
		if name == s {
			return NamedPitch(i), true
		}
	}
	return 0, false
}

// NoteType is a graphical note duration category.
type NoteType string

const (
	NoteMaxima  NoteType = "maxima"
	NoteLong    NoteType = "long"
	NoteBreve   NoteType = "breve"
	NoteWhole   NoteType = "whole"
	NoteHalf    NoteType = "half"
	NoteQuarter NoteType = "quarter"
	NoteEighth  NoteType = "eighth"
	Note16th    NoteType = "16th"
	Note32nd    NoteType = "32nd"
	Note64th    NoteType = "64th"
	Note128th   NoteType = "128th"
	Note256th   NoteType = "256th"
	Note512th   NoteType = "512th"
	Note1024th  NoteType = "1024th"
)

// AccidentalType is the printed accidental glyph on a note or key.
type AccidentalType string

const (
	AccSharp        AccidentalType = "sharp"
	AccNatural      AccidentalType = "natural"
	AccFlat         AccidentalType = "flat"
	AccDoubleSharp  AccidentalType = "double_sharp"
	AccDoubleFlat   AccidentalType = "double_flat"
	AccQuarterFlat  AccidentalType = "quarter_flat"
	AccQuarterSharp AccidentalType = "quarter_sharp"
)

// NoteheadType is the printed shape of a notehead.
type NoteheadType string

const (
	HeadBlack            NoteheadType = "black"
	HeadWhite            NoteheadType = "white"
	HeadMaxima           NoteheadType = "maxima"
	HeadLong             NoteheadType = "long"
	HeadBreve            NoteheadType = "breve"
	HeadCross            NoteheadType = "cross"
	HeadTriangle         NoteheadType = "triangle"
	HeadInvertedTriangle NoteheadType = "inverted-triangle"
	HeadDiamond          NoteheadType = "diamond"
)

// BarlineType is the printed style of a single barline token.
type BarlineType string

const (
	BarRegular BarlineType = "regular"
	BarDotted  BarlineType = "dotted"
	BarDashed  BarlineType = "dashed"
	BarHeavy   BarlineType = "heavy"
	BarTick    BarlineType = "tick"
	BarShort   BarlineType = "short"
)

// ClefType is the clef family a clef token belongs to.
type ClefType string

const (
	ClefG          ClefType = "G"
	ClefC          ClefType = "C"
	ClefF          ClefType = "F"
	ClefPercussion ClefType = "percussion"
)

// StartStop marks the starting or ending side of an ongoing element.
type StartStop string

const (
	Start StartStop = "start"
	Stop  StartStop = "stop"
)

// StemDirection is the orientation of a chord stem.
type StemDirection string

const (
	StemUp   StemDirection = "up"
	StemDown StemDirection = "down"
)

// DynamicsType is a dynamics marking.
type DynamicsType string

const (
	DynP      DynamicsType = "p"
	DynPP     DynamicsType = "pp"
	DynPPP    DynamicsType = "ppp"
	DynPPPP   DynamicsType = "pppp"
	DynPPPPP  DynamicsType = "ppppp"
	DynPPPPPP DynamicsType = "pppppp"
	DynF      DynamicsType = "f"
	DynFF     DynamicsType = "ff"
	DynFFF    DynamicsType = "fff"
	DynFFFF   DynamicsType = "ffff"
	DynFFFFF  DynamicsType = "fffff"
	DynFFFFFF DynamicsType = "ffffff"
	DynMP     DynamicsType = "mp"
	DynMF     DynamicsType = "mf"
	DynSF     DynamicsType = "sf"
	DynSFP    DynamicsType = "sfp"
	DynSFPP   DynamicsType = "sfpp"
	DynFP     DynamicsType = "fp"
	DynRF     DynamicsType = "rf"
	DynRFZ    DynamicsType = "rfz"
	DynSFZ    DynamicsType = "sfz"
	DynSFFZ   DynamicsType = "sffz"
	DynFZ     DynamicsType = "fz"
	DynN      DynamicsType = "n"
	DynPF     DynamicsType = "pf"
	DynSFZP   DynamicsType = "sfzp"
)

// TimeSymbol is a single-glyph time signature.
type TimeSymbol string

const (
	TimeCommon TimeSymbol = "common"
	TimeCut    TimeSymbol = "cut"
)

// TimeRelation is a symbol relating two interchangeable time
// signatures.
type TimeRelation string

const TimeEquals TimeRelation = "equals"

// WedgeType is a hairpin wedge kind.
type WedgeType string

const (
	WedgeCrescendo  WedgeType = "crescendo"
	WedgeDiminuendo WedgeType = "diminuendo"
	WedgeStop       WedgeType = "stop"
)

// BackwardForward marks something that aims forwards or backwards.
type BackwardForward string

const (
	DirBackward BackwardForward = "backward"
	DirForward  BackwardForward = "forward"
)

// Frac builds an exact rational. Time offsets, durations and measure
// lengths are all carried as exact fractions of a beat.
func Frac(num, den int64) *big.Rat {
	return big.NewRat(num, den)
}

// RatZero reports whether r is a zero duration. A nil rational counts
// as zero.
func RatZero(r *big.Rat) bool {
	return r == nil || r.Sign() == 0
}

// RatEq compares two optional rationals for equality.
func RatEq(a, b *big.Rat) bool {
	if a == nil || b == nil {
		return (a == nil) == (b == nil)
	}
	return a.Cmp(b) == 0
}

// noteTypeDurations maps each note type to its duration in whole
// notes.
var noteTypeDurations = map[NoteType]*big.Rat{
	NoteMaxima:  Frac(8, 1),
	NoteLong:    Frac(4, 1),
	NoteBreve:   Frac(2, 1),
	NoteWhole:   Frac(1, 1),
	NoteHalf:    Frac(1, 2),
	NoteQuarter: Frac(1, 4),
	NoteEighth:  Frac(1, 8),
	Note16th:    Frac(1, 16),
	Note32nd:    Frac(1, 32),
	Note64th:    Frac(1, 64),
	Note128th:   Frac(1, 128),
	Note256th:   Frac(1, 256),
	Note512th:   Frac(1, 512),
	Note1024th:  Frac(1, 1024),
}

// Type2Duration returns the duration in whole notes of a note type.
func Type2Duration(nt NoteType) (*big.Rat, bool) {
	d, ok := noteTypeDurations[nt]
	if !ok {
		return nil, false
	}
	return new(big.Rat).Set(d), true
}

// Type2Notehead returns the notehead shape a note type is printed
// with.
func Type2Notehead(nt NoteType) NoteheadType {
	switch nt {
	case NoteMaxima:
		return HeadMaxima
	case NoteLong:
		return HeadLong
	case NoteBreve:
		return HeadBreve
	case NoteWhole, NoteHalf:
		return HeadWhite
	default:
		return HeadBlack
	}
}

// Duration2Type maps a duration back to a note type. Durations that
// are not an exact power of two are rounded up to the closest one;
// durations outside the notated range fall back to a whole note.
func Duration2Type(dur *big.Rat) NoteType {
	if dur == nil || dur.Sign() <= 0 {
		return NoteWhole
	}
	for nt, d := range noteTypeDurations {
		if d.Cmp(dur) == 0 {
			return nt
		}
	}
	f, _ := dur.Float64()
	exp := int(math.Ceil(math.Log2(f)))
	var pow *big.Rat
	switch {
	case exp >= 0 && exp <= 3:
		pow = Frac(1<<exp, 1)
	case exp < 0 && exp >= -10:
		pow = Frac(1, 1<<(-exp))
	default:
		return NoteWhole
	}
	for nt, d := range noteTypeDurations {
		if d.Cmp(pow) == 0 {
			return nt
		}
	}
	return NoteWhole
}

// beamedTypes lists beamable note types by beam count, one beam being
// an eighth note.
var beamedTypes = [...]NoteType{
	NoteQuarter,
	NoteEighth,
	Note16th,
	Note32nd,
	Note64th,
	Note128th,
	Note256th,
	Note512th,
	Note1024th,
}

// Beams2Type returns the note type a note carrying nbeams beams must
// have. Zero beams yields a quarter note.
func Beams2Type(nbeams int) (NoteType, bool) {
	if nbeams < 0 || nbeams >= len(beamedTypes) {
		return "", false
	}
	return beamedTypes[nbeams], true
}

// Type2Beams returns how many beams or flags a note type carries. Note
// types longer than a quarter have no beam representation.
func Type2Beams(nt NoteType) (int, bool) {
	for n, t := range beamedTypes {
		if t == nt {
			return n, true
		}
	}
	return 0, false
}
