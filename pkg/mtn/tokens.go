package mtn

// TokenCollector is a visitor that recovers every token of a subtree
// in document order.
type TokenCollector struct{}

// CollectTokens gathers all tokens under an arbitrary subtree root.
func CollectTokens(node SyntaxNode) []*Token {
	c := &TokenCollector{}
	return node.Accept(c).([]*Token)
}

func (c *TokenCollector) VisitScore(score *Score) any {
	var out []*Token
	for _, measure := range score.Measures {
		out = append(out, measure.Accept(c).([]*Token)...)
	}
	return out
}

func (c *TokenCollector) VisitMeasure(measure *Measure) any {
	var out []*Token
	if measure.LeftBarline != nil {
		out = append(out, measure.LeftBarline.Accept(c).([]*Token)...)
	}
	for _, element := range measure.Elements {
		out = append(out, element.Accept(c).([]*Token)...)
	}
	if measure.RightBarline != nil {
		out = append(out, measure.RightBarline.Accept(c).([]*Token)...)
	}
	return out
}

func (c *TokenCollector) VisitBarline(barline *Barline) any {
	out := append([]*Token{}, barline.BarlineTokens...)
	return append(out, barline.Modifiers...)
}

func (c *TokenCollector) VisitAttributes(attributes *Attributes) any {
	var out []*Token
	for _, key := range sortedStaffValues(attributes.Keys) {
		out = append(out, key.Accept(c).([]*Token)...)
	}
	for _, clef := range sortedStaffValues(attributes.Clefs) {
		out = append(out, clef.Accept(c).([]*Token)...)
	}
	for _, timesig := range sortedStaffValues(attributes.Timesigs) {
		out = append(out, timesig.Accept(c).([]*Token)...)
	}
	return out
}

func (c *TokenCollector) VisitTimeSignature(timesig *TimeSignature) any {
	var out []*Token
	if timesig.TimeSymbol != nil {
		out = append(out, timesig.TimeSymbol)
	} else {
		for _, part := range timesig.Compound {
			out = append(out, part.Accept(c).([]*Token)...)
		}
	}
	return out
}

func (c *TokenCollector) VisitTimesigFraction(fraction *TimesigFraction) any {
	out := fraction.Numerator.Accept(c).([]*Token)
	if fraction.Denominator != nil {
		out = append(out, fraction.Denominator.Accept(c).([]*Token)...)
	}
	return out
}

func (c *TokenCollector) VisitNumerator(numerator *Numerator) any {
	var out []*Token
	for _, part := range numerator.Parts {
		out = append(out, part.Accept(c).([]*Token)...)
	}
	return out
}

func (c *TokenCollector) VisitDenominator(denominator *Denominator) any {
	return denominator.Digits.Accept(c)
}

func (c *TokenCollector) VisitNumber(number *Number) any {
	return append([]*Token{}, number.Digits...)
}

func (c *TokenCollector) VisitKey(key *Key) any {
	out := append([]*Token{}, key.Naturals...)
	return append(out, key.Accidentals...)
}

func (c *TokenCollector) VisitClef(clef *Clef) any {
	if clef.ClefToken != nil {
		return []*Token{clef.ClefToken}
	}
	return []*Token(nil)
}

func (c *TokenCollector) VisitDirection(direction *Direction) any {
	return append([]*Token{}, direction.Directives...)
}

func (c *TokenCollector) VisitRest(rest *Rest) any {
	out := []*Token{rest.RestToken}
	out = append(out, rest.Dots...)
	for _, modifier := range rest.Modifiers {
		out = append(out, modifier.Accept(c).([]*Token)...)
	}
	return out
}

func (c *TokenCollector) VisitNoteGroup(group *NoteGroup) any {
	var out []*Token
	for _, child := range group.Children {
		out = append(out, child.Accept(c).([]*Token)...)
	}
	return append(out, group.Appendages...)
}

func (c *TokenCollector) VisitChord(chord *Chord) any {
	var out []*Token
	if chord.Stem != nil {
		out = append(out, chord.Stem)
	}
	for _, note := range chord.Notes {
		out = append(out, note.Accept(c).([]*Token)...)
	}
	return out
}

func (c *TokenCollector) VisitNote(note *Note) any {
	out := []*Token{note.Notehead}
	out = append(out, note.Dots...)
	out = append(out, note.Accidentals...)
	for _, modifier := range note.Modifiers {
		out = append(out, modifier.Accept(c).([]*Token)...)
	}
	return out
}

func (c *TokenCollector) VisitToken(token *Token) any {
	return []*Token{token}
}

func (c *TokenCollector) VisitTuplet(tuplet *Tuplet) any {
	var out []*Token
	if tuplet.Number != nil {
		out = append(out, tuplet.Number.Accept(c).([]*Token)...)
	}
	return append(out, tuplet.TupletToken)
}
