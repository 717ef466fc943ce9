package export

import (
	"github.com/CVC-DAG/comref-converter/pkg/mtn"
)

// NodeCounter tallies the nodes of a syntax tree. Visit methods return
// int.
type NodeCounter struct{}

// CountNodes returns the number of syntax nodes under a subtree root,
// the root included.
func CountNodes(node mtn.SyntaxNode) int {
	return node.Accept(NodeCounter{}).(int)
}

func (c NodeCounter) VisitScore(score *mtn.Score) any {
	total := 1
	for _, measure := range score.Measures {
		total += measure.Accept(c).(int)
	}
	return total
}

func (c NodeCounter) VisitMeasure(measure *mtn.Measure) any {
	total := 1
	for _, element := range measure.Elements {
		total += element.Accept(c).(int)
	}
	if measure.LeftBarline != nil {
		total += measure.LeftBarline.Accept(c).(int)
	}
	if measure.RightBarline != nil {
		total += measure.RightBarline.Accept(c).(int)
	}
	return total
}

func (c NodeCounter) VisitBarline(barline *mtn.Barline) any {
	return 1 + len(barline.BarlineTokens) + len(barline.Modifiers)
}

func (c NodeCounter) VisitAttributes(attributes *mtn.Attributes) any {
	total := 1
	for _, clef := range attributes.Clefs {
		if clef != nil {
			total += clef.Accept(c).(int)
		}
	}
	for _, key := range attributes.Keys {
		if key != nil {
			total += key.Accept(c).(int)
		}
	}
	for _, timesig := range attributes.Timesigs {
		if timesig != nil {
			total += timesig.Accept(c).(int)
		}
	}
	return total
}

func (c NodeCounter) VisitTimeSignature(timesig *mtn.TimeSignature) any {
	total := 1
	if timesig.TimeSymbol != nil {
		total++
	}
	for _, part := range timesig.Compound {
		total += part.Accept(c).(int)
	}
	return total
}

func (c NodeCounter) VisitTimesigFraction(fraction *mtn.TimesigFraction) any {
	total := 1 + fraction.Numerator.Accept(c).(int)
	if fraction.Denominator != nil {
		total += fraction.Denominator.Accept(c).(int)
	}
	return total
}

func (c NodeCounter) VisitNumerator(numerator *mtn.Numerator) any {
	total := 1
	for _, part := range numerator.Parts {
		total += part.Accept(c).(int)
	}
	return total
}

func (c NodeCounter) VisitDenominator(denominator *mtn.Denominator) any {
	return 1 + denominator.Digits.Accept(c).(int)
}

func (c NodeCounter) VisitNumber(number *mtn.Number) any {
	return 1 + len(number.Digits)
}

func (c NodeCounter) VisitKey(key *mtn.Key) any {
	return 1 + len(key.Naturals) + len(key.Accidentals)
}

func (c NodeCounter) VisitClef(clef *mtn.Clef) any {
	if clef.ClefToken != nil {
		return 2
	}
	return 1
}

func (c NodeCounter) VisitDirection(direction *mtn.Direction) any {
	return 1 + len(direction.Directives)
}

func (c NodeCounter) VisitRest(rest *mtn.Rest) any {
	// The rest node plus its rest token.
	return 2 + len(rest.Dots) + len(rest.Modifiers)
}

func (c NodeCounter) VisitNoteGroup(group *mtn.NoteGroup) any {
	total := 1 + len(group.Appendages)
	for _, child := range group.Children {
		total += child.Accept(c).(int)
	}
	return total
}

func (c NodeCounter) VisitChord(chord *mtn.Chord) any {
	total := 1
	if chord.Stem != nil {
		total++
	}
	for _, note := range chord.Notes {
		total += note.Accept(c).(int)
	}
	return total
}

func (c NodeCounter) VisitNote(note *mtn.Note) any {
	// The note node plus its notehead.
	return 2 + len(note.Dots) + len(note.Accidentals) + len(note.Modifiers)
}

func (c NodeCounter) VisitToken(token *mtn.Token) any {
	return 1
}

func (c NodeCounter) VisitTuplet(tuplet *mtn.Tuplet) any {
	total := 2
	if tuplet.Number != nil {
		total += tuplet.Number.Accept(c).(int)
	}
	return total
}
