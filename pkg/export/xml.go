// Package export implements the consumers of a translated score:
// serialization back to its XML form, linearization into model-readable
// token sequences, node accounting and a playable MIDI render.
package export

import (
	"sort"
	"strconv"

	"github.com/beevik/etree"

	"github.com/CVC-DAG/comref-converter/pkg/mtn"
)

// XMLWriter converts a syntax tree into its XML serialization. Visit
// methods return *etree.Element unless noted otherwise.
type XMLWriter struct {
	ignoreID bool
}

// NewXMLWriter builds a serializer. With ignoreID set, token
// identifiers are left out of the output.
func NewXMLWriter(ignoreID bool) *XMLWriter {
	return &XMLWriter{ignoreID: ignoreID}
}

// WriteScore serializes a full score into a standalone document.
func (w *XMLWriter) WriteScore(score *mtn.Score) *etree.Document {
	doc := etree.NewDocument()
	doc.CreateProcInst("xml", `version="1.0" encoding="UTF-8"`)
	doc.AddChild(score.Accept(w).(*etree.Element))
	return doc
}

func (w *XMLWriter) appendChildren(root *etree.Element, children []mtn.SyntaxNode) {
	for _, child := range children {
		root.AddChild(child.Accept(w).(*etree.Element))
	}
}

func (w *XMLWriter) appendTokens(root *etree.Element, tokens []*mtn.Token) {
	for _, token := range tokens {
		root.AddChild(token.Accept(w).(*etree.Element))
	}
}

func (w *XMLWriter) VisitScore(score *mtn.Score) any {
	element := etree.NewElement("score")
	element.CreateAttr("id", score.ScoreID)
	for _, measure := range score.Measures {
		element.AddChild(measure.Accept(w).(*etree.Element))
	}
	return element
}

func (w *XMLWriter) VisitMeasure(measure *mtn.Measure) any {
	element := etree.NewElement("measure")
	element.CreateAttr("part_id", measure.PartID)
	element.CreateAttr("measure_id", measure.MeasureID)
	element.CreateAttr("staves", strconv.Itoa(measure.Staves))

	if measure.LeftBarline != nil {
		element.AddChild(measure.LeftBarline.Accept(w).(*etree.Element))
	}
	for _, child := range measure.Elements {
		element.AddChild(child.Accept(w).(*etree.Element))
	}
	if measure.RightBarline != nil {
		element.AddChild(measure.RightBarline.Accept(w).(*etree.Element))
	}
	return element
}

func (w *XMLWriter) VisitBarline(barline *mtn.Barline) any {
	element := etree.NewElement("barline")
	element.CreateAttr("delta", barline.Delta().RatString())
	w.appendTokens(element, barline.BarlineTokens)
	w.appendTokens(element, barline.Modifiers)
	return element
}

func (w *XMLWriter) VisitAttributes(attributes *mtn.Attributes) any {
	element := etree.NewElement("attributes")
	element.CreateAttr("delta", attributes.Delta().RatString())

	for _, staff := range sortedStaves(attributes.NStaves) {
		if clef := attributes.Clefs[staff]; clef != nil {
			w.appendStaffChild(element, clef, staff)
		}
	}
	for _, staff := range sortedStaves(attributes.NStaves) {
		if key := attributes.Keys[staff]; key != nil {
			w.appendStaffChild(element, key, staff)
		}
	}
	for _, staff := range sortedStaves(attributes.NStaves) {
		if timesig := attributes.Timesigs[staff]; timesig != nil {
			w.appendStaffChild(element, timesig, staff)
		}
	}
	return element
}

// appendStaffChild serializes an attribute subtree and tags it with
// its staff. Empty attribute changes produce no element.
func (w *XMLWriter) appendStaffChild(root *etree.Element, node mtn.SyntaxNode, staff int) {
	result, ok := node.Accept(w).(*etree.Element)
	if !ok || result == nil {
		return
	}
	result.CreateAttr("staff", strconv.Itoa(staff))
	root.AddChild(result)
}

func sortedStaves(nstaves int) []int {
	staves := make([]int, 0, nstaves)
	for staff := 1; staff <= nstaves; staff++ {
		staves = append(staves, staff)
	}
	return staves
}

func (w *XMLWriter) VisitTimeSignature(timesig *mtn.TimeSignature) any {
	element := etree.NewElement("time_signature")
	switch {
	case timesig.TimeSymbol != nil:
		element.AddChild(timesig.TimeSymbol.Accept(w).(*etree.Element))
	case timesig.Compound != nil:
		for _, child := range timesig.Compound {
			switch output := child.Accept(w).(type) {
			case []*etree.Element:
				for _, x := range output {
					element.AddChild(x)
				}
			case *etree.Element:
				element.AddChild(output)
			}
		}
	default:
		return (*etree.Element)(nil)
	}
	return element
}

// VisitTimesigFraction returns []*etree.Element.
func (w *XMLWriter) VisitTimesigFraction(fraction *mtn.TimesigFraction) any {
	output := []*etree.Element{fraction.Numerator.Accept(w).(*etree.Element)}
	if fraction.Denominator != nil {
		output = append(output, fraction.Denominator.Accept(w).(*etree.Element))
	}
	return output
}

func (w *XMLWriter) VisitNumerator(numerator *mtn.Numerator) any {
	element := etree.NewElement("numerator")
	for _, child := range numerator.Parts {
		switch part := child.(type) {
		case *mtn.Token:
			element.AddChild(part.Accept(w).(*etree.Element))
		case *mtn.Number:
			for _, digit := range part.Accept(w).([]*etree.Element) {
				element.AddChild(digit)
			}
		}
	}
	return element
}

func (w *XMLWriter) VisitDenominator(denominator *mtn.Denominator) any {
	element := etree.NewElement("denominator")
	for _, digit := range denominator.Digits.Accept(w).([]*etree.Element) {
		element.AddChild(digit)
	}
	return element
}

// VisitNumber returns []*etree.Element, one per digit.
func (w *XMLWriter) VisitNumber(number *mtn.Number) any {
	output := make([]*etree.Element, 0, len(number.Digits))
	for _, digit := range number.Digits {
		output = append(output, digit.Accept(w).(*etree.Element))
	}
	return output
}

func (w *XMLWriter) VisitKey(key *mtn.Key) any {
	if len(key.Naturals) == 0 && len(key.Accidentals) == 0 {
		return (*etree.Element)(nil)
	}
	element := etree.NewElement("key")
	w.appendTokens(element, key.Naturals)
	w.appendTokens(element, key.Accidentals)
	return element
}

func (w *XMLWriter) VisitClef(clef *mtn.Clef) any {
	if clef.ClefToken == nil {
		return (*etree.Element)(nil)
	}
	return clef.ClefToken.Accept(w)
}

func (w *XMLWriter) VisitDirection(direction *mtn.Direction) any {
	element := etree.NewElement("direction")
	element.CreateAttr("delta", direction.Delta().RatString())
	w.appendTokens(element, direction.Directives)
	return element
}

func (w *XMLWriter) VisitRest(rest *mtn.Rest) any {
	element := etree.NewElement("rest")
	element.CreateAttr("delta", rest.Delta().RatString())
	element.AddChild(rest.RestToken.Accept(w).(*etree.Element))
	w.appendTokens(element, rest.Dots)
	w.appendChildren(element, rest.Modifiers)
	return element
}

func (w *XMLWriter) VisitNoteGroup(group *mtn.NoteGroup) any {
	element := etree.NewElement("note_group")
	element.CreateAttr("delta", group.Delta().RatString())
	w.appendTokens(element, group.Appendages)
	for _, child := range group.Children {
		element.AddChild(child.Accept(w).(*etree.Element))
	}
	return element
}

func (w *XMLWriter) VisitChord(chord *mtn.Chord) any {
	element := etree.NewElement("chord")
	element.CreateAttr("delta", chord.Delta.RatString())
	if chord.Stem != nil {
		element.AddChild(chord.Stem.Accept(w).(*etree.Element))
	}
	for _, note := range chord.Notes {
		element.AddChild(note.Accept(w).(*etree.Element))
	}
	return element
}

func (w *XMLWriter) VisitNote(note *mtn.Note) any {
	element := etree.NewElement("note")
	element.AddChild(note.Notehead.Accept(w).(*etree.Element))
	w.appendTokens(element, note.Dots)
	w.appendTokens(element, note.Accidentals)
	w.appendChildren(element, note.Modifiers)

	// Positions inside a note are redundant: everything hangs off the
	// notehead.
	for _, child := range element.ChildElements() {
		if child.Tag == string(mtn.TokenNotehead) {
			continue
		}
		child.RemoveAttr("staff")
		child.RemoveAttr("position")
	}
	return element
}

func (w *XMLWriter) VisitToken(token *mtn.Token) any {
	element := etree.NewElement(string(token.TokenType))

	keys := make([]string, 0, len(token.Modifiers))
	for k := range token.Modifiers {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		element.CreateAttr(k, token.Modifiers[k])
	}

	switch token.TokenType {
	case mtn.TokenNotehead, mtn.TokenRest, mtn.TokenAccidental, mtn.TokenClef:
		if staff, ok := token.Position.Staff(); ok && token.TokenType != mtn.TokenAccidental {
			element.CreateAttr("staff", strconv.Itoa(staff))
		}
		if pos, ok := token.Position.Position(); ok {
			element.CreateAttr("position", strconv.Itoa(pos))
		}
	}
	if !w.ignoreID {
		element.CreateAttr("id", strconv.Itoa(token.ID))
	}
	return element
}

func (w *XMLWriter) VisitTuplet(tuplet *mtn.Tuplet) any {
	element := etree.NewElement("tuplet")
	if tuplet.Number != nil {
		for _, digit := range tuplet.Number.Accept(w).([]*etree.Element) {
			element.AddChild(digit)
		}
	}
	element.AddChild(tuplet.TupletToken.Accept(w).(*etree.Element))
	return element
}
