package translator

import (
	"github.com/CVC-DAG/comref-converter/pkg/mtn"
)

// MusicXML carries its own vocabulary for most musical concepts. The types
// below cover the subset of the schema the converter consumes; everything is
// a string enum so values parse straight off the document.

// BeamValue is the content of a MusicXML <beam> element.
type BeamValue string

const (
	BeamBegin        BeamValue = "begin"
	BeamContinue     BeamValue = "continue"
	BeamEnd          BeamValue = "end"
	BeamForwardHook  BeamValue = "forward hook"
	BeamBackwardHook BeamValue = "backward hook"
)

// BarStyle is the content of a <bar-style> element.
type BarStyle string

const (
	BarStyleRegular    BarStyle = "regular"
	BarStyleDotted     BarStyle = "dotted"
	BarStyleDashed     BarStyle = "dashed"
	BarStyleHeavy      BarStyle = "heavy"
	BarStyleLightLight BarStyle = "light-light"
	BarStyleLightHeavy BarStyle = "light-heavy"
	BarStyleHeavyLight BarStyle = "heavy-light"
	BarStyleHeavyHeavy BarStyle = "heavy-heavy"
	BarStyleTick       BarStyle = "tick"
	BarStyleShort      BarStyle = "short"
	BarStyleNone       BarStyle = "none"
)

// ClefSign is the content of a <sign> element within a clef.
type ClefSign string

const (
	ClefSignG          ClefSign = "G"
	ClefSignF          ClefSign = "F"
	ClefSignC          ClefSign = "C"
	ClefSignPercussion ClefSign = "percussion"
	ClefSignTAB        ClefSign = "TAB"
	ClefSignJianpu     ClefSign = "jianpu"
	ClefSignNone       ClefSign = "none"
)

// StemValue is the content of a <stem> element.
type StemValue string

const (
	StemUp     StemValue = "up"
	StemDown   StemValue = "down"
	StemDouble StemValue = "double"
	StemNone   StemValue = "none"
)

// TiedType is the type attribute of a <tied> notation.
type TiedType string

const (
	TiedStart    TiedType = "start"
	TiedStop     TiedType = "stop"
	TiedContinue TiedType = "continue"
	TiedLetRing  TiedType = "let-ring"
)

// TimeSymbolValue is the symbol attribute of a <time> element.
type TimeSymbolValue string

const (
	TimeSymCommon       TimeSymbolValue = "common"
	TimeSymCut          TimeSymbolValue = "cut"
	TimeSymSingleNumber TimeSymbolValue = "single-number"
	TimeSymNote         TimeSymbolValue = "note"
	TimeSymDottedNote   TimeSymbolValue = "dotted-note"
	TimeSymNormal       TimeSymbolValue = "normal"
)

// WedgeValue is the type attribute of a <wedge> direction.
type WedgeValue string

const (
	WedgeValCrescendo  WedgeValue = "crescendo"
	WedgeValDiminuendo WedgeValue = "diminuendo"
	WedgeValStop       WedgeValue = "stop"
	WedgeValContinue   WedgeValue = "continue"
)

// Conversion tables from MusicXML vocabulary into the target notation.

var ntypeMXML2MTN = map[string]mtn.NoteType{
	"maxima":  mtn.NoteMaxima,
	"long":    mtn.NoteLong,
	"breve":   mtn.NoteBreve,
	"whole":   mtn.NoteWhole,
	"half":    mtn.NoteHalf,
	"quarter": mtn.NoteQuarter,
	"eighth":  mtn.NoteEighth,
	"16th":    mtn.Note16th,
	"32nd":    mtn.Note32nd,
	"64th":    mtn.Note64th,
	"128th":   mtn.Note128th,
	"256th":   mtn.Note256th,
	"512th":   mtn.Note512th,
	"1024th":  mtn.Note1024th,
}

var tiedTypeMXML2MTN = map[TiedType]mtn.StartStop{
	TiedStart: mtn.Start,
	TiedStop:  mtn.Stop,
}

var startStopMXML2MTN = map[string]mtn.StartStop{
	"start": mtn.Start,
	"stop":  mtn.Stop,
}

var accidentalMXML2MTN = map[string]mtn.AccidentalType{
	"sharp":         mtn.AccSharp,
	"natural":       mtn.AccNatural,
	"flat":          mtn.AccFlat,
	"double-sharp":  mtn.AccDoubleSharp,
	"flat-flat":     mtn.AccDoubleFlat,
	"quarter-flat":  mtn.AccQuarterFlat,
	"quarter-sharp": mtn.AccQuarterSharp,
}

var noteheadMXML2MTN = map[string]mtn.NoteheadType{
	"x":                 mtn.HeadCross,
	"cross":             mtn.HeadCross,
	"diamond":           mtn.HeadDiamond,
	"triangle":          mtn.HeadTriangle,
	"inverted triangle": mtn.HeadInvertedTriangle,
}

var stemMXML2MTN = map[StemValue]mtn.StemDirection{
	StemUp:   mtn.StemUp,
	StemDown: mtn.StemDown,
}

var signMXML2MTN = map[ClefSign]mtn.NamedPitch{
	ClefSignG: mtn.PitchG,
	ClefSignC: mtn.PitchC,
	ClefSignF: mtn.PitchF,
}

var pitchMXML2MTN = map[string]mtn.NamedPitch{
	"A": mtn.PitchA,
	"B": mtn.PitchB,
	"C": mtn.PitchC,
	"D": mtn.PitchD,
	"E": mtn.PitchE,
	"F": mtn.PitchF,
	"G": mtn.PitchG,
}

var barStyleMXML2MTN = map[BarStyle][]mtn.BarlineType{
	BarStyleRegular:    {mtn.BarRegular},
	BarStyleDotted:     {mtn.BarDotted},
	BarStyleDashed:     {mtn.BarDashed},
	BarStyleHeavy:      {mtn.BarHeavy},
	BarStyleTick:       {mtn.BarTick},
	BarStyleShort:      {mtn.BarShort},
	BarStyleHeavyHeavy: {mtn.BarHeavy, mtn.BarHeavy},
	BarStyleHeavyLight: {mtn.BarHeavy, mtn.BarRegular},
	BarStyleLightLight: {mtn.BarRegular, mtn.BarRegular},
	BarStyleLightHeavy: {mtn.BarRegular, mtn.BarHeavy},
}

var clefMXML2MTN = map[ClefSign]mtn.ClefType{
	ClefSignG:          mtn.ClefG,
	ClefSignF:          mtn.ClefF,
	ClefSignC:          mtn.ClefC,
	ClefSignPercussion: mtn.ClefPercussion,
}

// Decide which point-to-point token a notation maps to.
var p2pTokens = map[string]mtn.TokenType{
	"glissando": mtn.TokenGlissando,
	"slide":     mtn.TokenSlide,
	"slur":      mtn.TokenSlur,
	"wavy-line": mtn.TokenWavyLine,
}

var ornamentTokens = map[string]mtn.TokenType{
	"trill-mark": mtn.TokenTrill,
	"turn":       mtn.TokenTurn,
	"wavy-line":  mtn.TokenWavyLine,
	"mordent":    mtn.TokenMordent,
	"schleifer":  mtn.TokenSchleifer,
	"haydn":      mtn.TokenHaydn,
}

var articulationTokens = map[string]mtn.TokenType{
	"accent":        mtn.TokenAccent,
	"strong-accent": mtn.TokenAccent,
	"staccato":      mtn.TokenStaccato,
	"tenuto":        mtn.TokenTenuto,
	"staccatissimo": mtn.TokenStaccato,
	"caesura":       mtn.TokenCaesura,
}

var dynamicsMXML2MTN = map[string]mtn.DynamicsType{
	"p":      mtn.DynP,
	"pp":     mtn.DynPP,
	"ppp":    mtn.DynPPP,
	"pppp":   mtn.DynPPPP,
	"ppppp":  mtn.DynPPPPP,
	"pppppp": mtn.DynPPPPPP,
	"f":      mtn.DynF,
	"ff":     mtn.DynFF,
	"fff":    mtn.DynFFF,
	"ffff":   mtn.DynFFFF,
	"fffff":  mtn.DynFFFFF,
	"ffffff": mtn.DynFFFFFF,
	"mp":     mtn.DynMP,
	"mf":     mtn.DynMF,
	"sf":     mtn.DynSF,
	"sfp":    mtn.DynSFP,
	"sfpp":   mtn.DynSFPP,
	"fp":     mtn.DynFP,
	"rf":     mtn.DynRF,
	"rfz":    mtn.DynRFZ,
	"sfz":    mtn.DynSFZ,
	"sffz":   mtn.DynSFFZ,
	"fz":     mtn.DynFZ,
	"n":      mtn.DynN,
	"pf":     mtn.DynPF,
	"sfzp":   mtn.DynSFZP,
}

var wedgeMXML2MTN = map[WedgeValue]mtn.WedgeType{
	WedgeValCrescendo:  mtn.WedgeCrescendo,
	WedgeValDiminuendo: mtn.WedgeDiminuendo,
	WedgeValStop:       mtn.WedgeStop,
}

var bwfwMXML2MTN = map[string]mtn.BackwardForward{
	"backward": mtn.DirBackward,
	"forward":  mtn.DirForward,
}

// Beams closing at a note are processed before beams opening at it.
var beamPrecedence = map[BeamValue]int{
	BeamBegin:        0,
	BeamContinue:     1,
	BeamEnd:          4,
	BeamForwardHook:  2,
	BeamBackwardHook: 3,
}
