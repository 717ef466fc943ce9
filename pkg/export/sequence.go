package export

import (
	"math/big"
	"sort"
	"strconv"
	"strings"

	"github.com/CVC-DAG/comref-converter/pkg/mtn"
	"github.com/CVC-DAG/comref-converter/pkg/translator"
)

// SequenceWriter linearizes a syntax tree into a model-readable token
// sequence. Visit methods return []string; VisitScore and VisitMeasure
// return map[translator.MeasureID][]string.
//
// With stateful parsing on, a delta equal to the previous one is
// omitted from the output. With simple numbers on, digit tokens are
// emitted as bare digits and timesig fractions collapse into a single
// token.
type SequenceWriter struct {
	stateful      bool
	simpleNumbers bool

	lastTime *big.Rat
}

// NewSequenceWriter builds a linearizer with the given generation
// options.
func NewSequenceWriter(stateful, simpleNumbers bool) *SequenceWriter {
	return &SequenceWriter{
		stateful:      stateful,
		simpleNumbers: simpleNumbers,
		lastTime:      mtn.Frac(0, 1),
	}
}

// WriteScore linearizes every measure of a score.
func (s *SequenceWriter) WriteScore(score *mtn.Score) map[translator.MeasureID][]string {
	return score.Accept(s).(map[translator.MeasureID][]string)
}

func (s *SequenceWriter) delta(node mtn.TopLevel) []string {
	if s.stateful && node.Delta().Cmp(s.lastTime) == 0 {
		return nil
	}
	s.lastTime = node.Delta()
	return []string{"delta:" + node.Delta().RatString()}
}

func (s *SequenceWriter) tokens(tokens []*mtn.Token) []string {
	var output []string
	for _, token := range tokens {
		output = append(output, token.Accept(s).([]string)...)
	}
	return output
}

func (s *SequenceWriter) nodes(nodes []mtn.SyntaxNode) []string {
	var output []string
	for _, node := range nodes {
		output = append(output, node.Accept(s).([]string)...)
	}
	return output
}

func (s *SequenceWriter) VisitScore(score *mtn.Score) any {
	output := make(map[translator.MeasureID][]string, len(score.Measures))
	for _, measure := range score.Measures {
		for k, v := range measure.Accept(s).(map[translator.MeasureID][]string) {
			output[k] = v
		}
	}
	return output
}

func (s *SequenceWriter) VisitMeasure(measure *mtn.Measure) any {
	var output []string
	if measure.LeftBarline != nil {
		output = append(output, measure.LeftBarline.Accept(s).([]string)...)
	}
	for _, element := range measure.Elements {
		output = append(output, element.Accept(s).([]string)...)
	}
	if measure.RightBarline != nil {
		output = append(output, measure.RightBarline.Accept(s).([]string)...)
	}
	s.lastTime = mtn.Frac(0, 1)

	key := translator.MeasureID{Part: measure.PartID, Measure: measure.MeasureID}
	return map[translator.MeasureID][]string{key: output}
}

func (s *SequenceWriter) VisitBarline(barline *mtn.Barline) any {
	output := s.delta(barline)
	output = append(output, s.tokens(barline.BarlineTokens)...)
	output = append(output, s.tokens(barline.Modifiers)...)
	return output
}

func (s *SequenceWriter) VisitAttributes(attributes *mtn.Attributes) any {
	output := s.delta(attributes)
	output = append(output, "attributes")

	for staff := 1; staff <= attributes.NStaves; staff++ {
		clef := attributes.Clefs[staff]
		key := attributes.Keys[staff]
		timesig := attributes.Timesigs[staff]
		if clef == nil && key == nil && timesig == nil {
			continue
		}
		output = append(output, "staff:"+strconv.Itoa(staff))
		if clef != nil {
			output = append(output, clef.Accept(s).([]string)...)
		}
		if key != nil {
			output = append(output, key.Accept(s).([]string)...)
		}
		if timesig != nil {
			output = append(output, timesig.Accept(s).([]string)...)
		}
	}
	return output
}

func (s *SequenceWriter) VisitTimeSignature(timesig *mtn.TimeSignature) any {
	var output []string
	switch {
	case timesig.TimeSymbol != nil:
		output = append(output, timesig.TimeSymbol.Accept(s).([]string)...)
	case timesig.Compound != nil:
		output = append(output, s.nodes(timesig.Compound)...)
	}
	return output
}

func (s *SequenceWriter) VisitTimesigFraction(fraction *mtn.TimesigFraction) any {
	output := []string{"("}
	output = append(output, fraction.Numerator.Accept(s).([]string)...)
	if fraction.Denominator != nil {
		output = append(output, "/")
		output = append(output, fraction.Denominator.Accept(s).([]string)...)
	}
	output = append(output, ")")
	if s.simpleNumbers {
		return []string{strings.Join(output, "")}
	}
	return output
}

func (s *SequenceWriter) VisitNumerator(numerator *mtn.Numerator) any {
	return s.nodes(numerator.Parts)
}

func (s *SequenceWriter) VisitDenominator(denominator *mtn.Denominator) any {
	return denominator.Digits.Accept(s)
}

func (s *SequenceWriter) VisitNumber(number *mtn.Number) any {
	return s.tokens(number.Digits)
}

func (s *SequenceWriter) VisitKey(key *mtn.Key) any {
	output := s.tokens(key.Naturals)
	output = append(output, s.tokens(key.Accidentals)...)
	return output
}

func (s *SequenceWriter) VisitClef(clef *mtn.Clef) any {
	if clef.ClefToken == nil {
		return []string(nil)
	}
	return clef.ClefToken.Accept(s)
}

func (s *SequenceWriter) VisitDirection(direction *mtn.Direction) any {
	output := s.delta(direction)
	output = append(output, "directions")
	output = append(output, s.tokens(direction.Directives)...)
	return output
}

func (s *SequenceWriter) VisitRest(rest *mtn.Rest) any {
	output := s.delta(rest)
	output = append(output, rest.RestToken.Accept(s).([]string)...)
	output = append(output, s.tokens(rest.Dots)...)
	output = append(output, s.nodes(rest.Modifiers)...)
	return output
}

func (s *SequenceWriter) VisitNoteGroup(group *mtn.NoteGroup) any {
	output := s.delta(group)
	output = append(output, "group:begin")
	output = append(output, s.tokens(group.Appendages)...)
	for _, child := range group.Children {
		output = append(output, child.Accept(s).([]string)...)
	}
	output = append(output, "group:end")
	return output
}

func (s *SequenceWriter) VisitChord(chord *mtn.Chord) any {
	var output []string
	if chord.Stem != nil {
		output = append(output, chord.Stem.Accept(s).([]string)...)
	}
	for _, note := range chord.Notes {
		output = append(output, note.Accept(s).([]string)...)
	}
	return output
}

func (s *SequenceWriter) VisitNote(note *mtn.Note) any {
	output := note.Notehead.Accept(s).([]string)
	output = append(output, s.tokens(note.Dots)...)
	output = append(output, s.tokens(note.Accidentals)...)
	output = append(output, s.nodes(note.Modifiers)...)
	return output
}

func (s *SequenceWriter) VisitToken(token *mtn.Token) any {
	if s.simpleNumbers && token.TokenType == mtn.TokenNumber {
		return []string{token.Modifiers["type"]}
	}

	text := string(token.TokenType)
	if len(token.Modifiers) != 0 {
		keys := make([]string, 0, len(token.Modifiers))
		for k := range token.Modifiers {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		pairs := make([]string, 0, len(keys))
		for _, k := range keys {
			pairs = append(pairs, k+"="+token.Modifiers[k])
		}
		text += ":" + strings.Join(pairs, "&")
	}
	output := []string{text}

	if token.TokenType == mtn.TokenNotehead {
		if staff, ok := token.Position.Staff(); ok {
			output = append(output, "staff:"+strconv.Itoa(staff))
		}
	}
	if token.TokenType == mtn.TokenNotehead || token.TokenType == mtn.TokenAccidental {
		if pos, ok := token.Position.Position(); ok {
			output = append(output, "position:"+strconv.Itoa(pos))
		}
	}
	return output
}

func (s *SequenceWriter) VisitTuplet(tuplet *mtn.Tuplet) any {
	output := tuplet.TupletToken.Accept(s).([]string)
	if tuplet.Number != nil {
		number := tuplet.Number.Accept(s).([]string)
		if s.simpleNumbers && len(number) > 0 {
			output[0] += "&" + number[0]
		} else {
			output = append(output, number...)
		}
	}
	return output
}
