package translator

import (
	"fmt"
	"math/big"
	"strconv"

	"github.com/beevik/etree"

	"github.com/CVC-DAG/comref-converter/pkg/mtn"
)

// MTNXMLTranslator loads a score from its own XML serialization back
// into a syntax tree.
type MTNXMLTranslator struct {
	currentStaves int
}

// NewMTNXMLTranslator builds a loader for MTN XML documents.
func NewMTNXMLTranslator() *MTNXMLTranslator {
	return &MTNXMLTranslator{currentStaves: 1}
}

// Translate loads a score element. The first-line set is not needed:
// line refresh attributes are already explicit in this format.
func (t *MTNXMLTranslator) Translate(
	doc *etree.Document,
	scoreID string,
	_ FirstLineSet,
) (*mtn.Score, error) {
	root := doc.Root()
	if root == nil {
		return nil, fmt.Errorf("empty document")
	}
	return t.visitScore(root)
}

// Reset returns the loader to its default state.
func (t *MTNXMLTranslator) Reset() {
	t.currentStaves = 1
}

func (t *MTNXMLTranslator) visitScore(score *etree.Element) (*mtn.Score, error) {
	scoreID := score.SelectAttrValue("id", "<NULL>")
	var measures []*mtn.Measure
	for _, child := range score.ChildElements() {
		measure, err := t.visitMeasure(child)
		if err != nil {
			return nil, err
		}
		measures = append(measures, measure)
	}
	return mtn.NewScore(measures, scoreID), nil
}

func (t *MTNXMLTranslator) visitMeasure(measure *etree.Element) (*mtn.Measure, error) {
	measureID := measure.SelectAttrValue("measure_id", "<NULL>")
	partID := measure.SelectAttrValue("part_id", "<NULL>")
	stavesAttr := measure.SelectAttrValue("staves", "")
	if stavesAttr == "" {
		return nil, fmt.Errorf("measure without required staves attribute")
	}
	staves, err := strconv.Atoi(stavesAttr)
	if err != nil {
		return nil, fmt.Errorf("invalid staves attribute %q", stavesAttr)
	}
	t.currentStaves = staves

	var leftBarline, rightBarline *mtn.Barline
	var elements []mtn.TopLevel

	children := measure.ChildElements()
	for ii, child := range children {
		switch child.Tag {
		case "rest":
			rest, err := t.visitRest(child)
			if err != nil {
				return nil, err
			}
			elements = append(elements, rest)
		case "note_group":
			group, err := t.visitNoteGroup(child)
			if err != nil {
				return nil, err
			}
			elements = append(elements, group)
		case "barline":
			barline, err := t.visitBarline(child)
			if err != nil {
				return nil, err
			}
			switch {
			case ii == 0:
				leftBarline = barline
			case ii == len(children)-1:
				rightBarline = barline
			default:
				elements = append(elements, barline)
			}
		case "direction":
			direction, err := t.visitDirection(child)
			if err != nil {
				return nil, err
			}
			elements = append(elements, direction)
		case "attributes":
			attributes, err := t.visitAttributes(child)
			if err != nil {
				return nil, err
			}
			elements = append(elements, attributes)
		}
	}

	// The serialization does not carry the measure duration.
	return mtn.NewMeasure(
		elements,
		leftBarline,
		rightBarline,
		staves,
		measureID,
		partID,
		mtn.Frac(10, 1),
	), nil
}

func (t *MTNXMLTranslator) visitAttributes(attributes *etree.Element) (*mtn.Attributes, error) {
	delta, err := getDelta(attributes)
	if err != nil {
		return nil, err
	}

	keys := make(map[int]*mtn.Key, t.currentStaves)
	clefs := make(map[int]*mtn.Clef, t.currentStaves)
	timesigs := make(map[int]*mtn.TimeSignature, t.currentStaves)
	for staff := 1; staff <= t.currentStaves; staff++ {
		keys[staff] = nil
		clefs[staff] = nil
		timesigs[staff] = nil
	}

	for _, child := range attributes.ChildElements() {
		staffAttr := child.SelectAttrValue("staff", "")
		staff, err := strconv.Atoi(staffAttr)
		if err != nil {
			return nil, fmt.Errorf("attributes element without a valid staff id")
		}

		switch child.Tag {
		case "key":
			key, err := t.visitKey(child)
			if err != nil {
				return nil, err
			}
			keys[staff] = key
		case "clef":
			clef, err := t.visitClef(child)
			if err != nil {
				return nil, err
			}
			clefs[staff] = clef
		case "time_signature":
			timesig, err := t.visitTimeSignature(child)
			if err != nil {
				return nil, err
			}
			timesigs[staff] = timesig
		default:
			return nil, fmt.Errorf("invalid child %q in attributes node", child.Tag)
		}
	}

	return mtn.NewAttributes(delta, t.currentStaves, keys, clefs, timesigs), nil
}

func (t *MTNXMLTranslator) visitRest(rest *etree.Element) (*mtn.Rest, error) {
	delta, err := getDelta(rest)
	if err != nil {
		return nil, err
	}

	var restToken *mtn.Token
	var dots []*mtn.Token
	var modifiers []mtn.SyntaxNode

	for _, child := range rest.ChildElements() {
		if child.Tag == "tuplet" {
			tuplet, err := t.visitTuplet(child)
			if err != nil {
				return nil, err
			}
			modifiers = append(modifiers, tuplet)
			continue
		}
		token, err := t.visitToken(child)
		if err != nil {
			return nil, err
		}
		switch token.TokenType {
		case mtn.TokenRest:
			restToken = token
		case mtn.TokenDot:
			dots = append(dots, token)
		default:
			modifiers = append(modifiers, token)
		}
	}
	if restToken == nil {
		return nil, fmt.Errorf("rest node without a rest token")
	}
	return mtn.NewRest(delta, restToken, dots, modifiers), nil
}

func (t *MTNXMLTranslator) visitDirection(direction *etree.Element) (*mtn.Direction, error) {
	delta, err := getDelta(direction)
	if err != nil {
		return nil, err
	}
	var directives []*mtn.Token
	for _, child := range direction.ChildElements() {
		token, err := t.visitToken(child)
		if err != nil {
			return nil, err
		}
		directives = append(directives, token)
	}
	return mtn.NewDirection(delta, directives), nil
}

func (t *MTNXMLTranslator) visitNoteGroup(noteGroup *etree.Element) (*mtn.NoteGroup, error) {
	delta, err := getDelta(noteGroup)
	if err != nil {
		return nil, err
	}
	var children []mtn.GroupChild
	var beamsOrFlags []*mtn.Token

	for _, child := range noteGroup.ChildElements() {
		switch child.Tag {
		case "note_group":
			group, err := t.visitNoteGroup(child)
			if err != nil {
				return nil, err
			}
			children = append(children, group)
		case "chord":
			chord, err := t.visitChord(child)
			if err != nil {
				return nil, err
			}
			children = append(children, chord)
		case "beam", "flag":
			token, err := t.visitToken(child)
			if err != nil {
				return nil, err
			}
			beamsOrFlags = append(beamsOrFlags, token)
		}
	}
	return mtn.NewNoteGroup(delta, children, beamsOrFlags), nil
}

func (t *MTNXMLTranslator) visitChord(chord *etree.Element) (*mtn.Chord, error) {
	delta, err := getDelta(chord)
	if err != nil {
		return nil, err
	}
	var stem *mtn.Token
	var notes []*mtn.Note

	for _, child := range chord.ChildElements() {
		switch child.Tag {
		case "stem":
			stem, err = t.visitToken(child)
			if err != nil {
				return nil, err
			}
		case "note":
			note, err := t.visitNote(child)
			if err != nil {
				return nil, err
			}
			notes = append(notes, note)
		}
	}
	if len(notes) == 0 {
		return nil, fmt.Errorf("chord node without notes")
	}
	return mtn.NewChord(delta, stem, notes), nil
}

func (t *MTNXMLTranslator) visitNote(note *etree.Element) (*mtn.Note, error) {
	var notehead *mtn.Token
	var dots, accidentals []*mtn.Token
	var modifiers []mtn.SyntaxNode

	for _, child := range note.ChildElements() {
		if child.Tag == "tuplet" {
			tuplet, err := t.visitTuplet(child)
			if err != nil {
				return nil, err
			}
			modifiers = append(modifiers, tuplet)
			continue
		}
		token, err := t.visitToken(child)
		if err != nil {
			return nil, err
		}
		switch token.TokenType {
		case mtn.TokenNotehead:
			notehead = token
		case mtn.TokenDot:
			dots = append(dots, token)
		case mtn.TokenAccidental:
			accidentals = append(accidentals, token)
		default:
			modifiers = append(modifiers, token)
		}
	}
	if notehead == nil {
		return nil, fmt.Errorf("no notehead in note node")
	}
	return mtn.NewNote(notehead, dots, accidentals, modifiers), nil
}

func (t *MTNXMLTranslator) visitBarline(barline *etree.Element) (*mtn.Barline, error) {
	delta, err := getDelta(barline)
	if err != nil {
		return nil, err
	}
	var barlineTokens, modifiers []*mtn.Token
	for _, child := range barline.ChildElements() {
		token, err := t.visitToken(child)
		if err != nil {
			return nil, err
		}
		if token.TokenType == mtn.TokenBarline {
			barlineTokens = append(barlineTokens, token)
		} else {
			modifiers = append(modifiers, token)
		}
	}
	return mtn.NewBarline(delta, barlineTokens, modifiers), nil
}

func (t *MTNXMLTranslator) visitKey(key *etree.Element) (*mtn.Key, error) {
	// Alteration semantics depend on previously seen measures, so only
	// the printed tokens are reconstructed here.
	var accidentals, naturals []*mtn.Token
	alterations := make([]*mtn.AccidentalType, 7)

	var fifths *int
	if attr := key.SelectAttrValue("fifths", ""); attr != "" {
		value, err := strconv.Atoi(attr)
		if err != nil {
			return nil, fmt.Errorf("invalid fifths attribute %q", attr)
		}
		fifths = &value
	}
	staffAttr := key.SelectAttrValue("staff", "")
	staff, err := strconv.Atoi(staffAttr)
	if err != nil {
		return nil, fmt.Errorf("key node without a valid staff")
	}

	for _, child := range key.ChildElements() {
		token, err := t.visitToken(child)
		if err != nil {
			return nil, err
		}
		token.Position = token.Position.WithStaff(staff)

		if token.Modifiers["type"] == string(mtn.AccNatural) {
			naturals = append(naturals, token)
		} else {
			accidentals = append(accidentals, token)
		}
	}
	return mtn.NewKey(accidentals, naturals, alterations, fifths), nil
}

func (t *MTNXMLTranslator) visitClef(clef *etree.Element) (*mtn.Clef, error) {
	clefToken, err := t.visitToken(clef)
	if err != nil {
		return nil, err
	}
	sign, ok := mtn.Clef2Sign[mtn.ClefType(clefToken.Modifiers["type"])]
	if !ok {
		return nil, fmt.Errorf("invalid clef type %q", clefToken.Modifiers["type"])
	}
	octave := mtn.DefaultClefOctave[sign]
	if attr := clef.SelectAttrValue("oct", ""); attr != "" {
		octaveMod, err := strconv.Atoi(attr)
		if err != nil {
			return nil, fmt.Errorf("invalid clef octave modifier %q", attr)
		}
		octave += octaveMod
	}
	return mtn.NewClef(clefToken, sign, octave, clefToken.Position), nil
}

func (t *MTNXMLTranslator) visitTimeSignature(timeSignature *etree.Element) (*mtn.TimeSignature, error) {
	var timeSymbol *mtn.Token
	var compound []mtn.SyntaxNode
	haveCompound := false

	var currentFraction *mtn.TimesigFraction
	for _, child := range timeSignature.ChildElements() {
		switch child.Tag {
		case "numerator":
			numerator, err := t.visitNumerator(child)
			if err != nil {
				return nil, err
			}
			currentFraction = &mtn.TimesigFraction{Numerator: numerator}
			compound = append(compound, currentFraction)
			haveCompound = true
		case "denominator":
			denominator, err := t.visitDenominator(child)
			if err != nil {
				return nil, err
			}
			if currentFraction == nil {
				return nil, fmt.Errorf("denominator without an open fraction")
			}
			currentFraction.Denominator = denominator
		case "timesig":
			token, err := t.visitToken(child)
			if err != nil {
				return nil, err
			}
			timeSymbol = token
		case "plus", "time_relation":
			token, err := t.visitToken(child)
			if err != nil {
				return nil, err
			}
			if currentFraction == nil {
				return nil, fmt.Errorf("fraction separator without an open fraction")
			}
			currentFraction = nil
			compound = append(compound, token)
		}
	}

	var timeValue *big.Rat
	switch {
	case haveCompound:
		timeValue = mtn.Frac(0, 1)
		for _, part := range compound {
			if fraction, ok := part.(*mtn.TimesigFraction); ok {
				timeValue.Add(timeValue, fraction.Value())
			}
		}
		// Scale whole-note fractions up to beats.
		timeValue.Mul(timeValue, mtn.Frac(4, 1))
	case timeSymbol != nil:
		duration, ok := mtn.SymbolTimesigDuration[mtn.TimeSymbol(timeSymbol.Modifiers["type"])]
		if !ok {
			return nil, fmt.Errorf("invalid time symbol %q", timeSymbol.Modifiers["type"])
		}
		timeValue = new(big.Rat).Set(duration)
	default:
		return nil, fmt.Errorf("no value for time information")
	}

	return &mtn.TimeSignature{
		TimeSymbol: timeSymbol,
		Compound:   compound,
		TimeValue:  timeValue,
	}, nil
}

func (t *MTNXMLTranslator) visitDenominator(denominator *etree.Element) (*mtn.Denominator, error) {
	var digits []*mtn.Token
	for _, child := range denominator.ChildElements() {
		token, err := t.visitToken(child)
		if err != nil {
			return nil, err
		}
		digits = append(digits, token)
	}
	return mtn.NewDenominator(mtn.NewNumber(digits)), nil
}

func (t *MTNXMLTranslator) visitNumerator(numerator *etree.Element) (*mtn.Numerator, error) {
	var processed []mtn.SyntaxNode
	var currentNum []*mtn.Token

	for _, child := range numerator.ChildElements() {
		token, err := t.visitToken(child)
		if err != nil {
			return nil, err
		}
		switch token.TokenType {
		case mtn.TokenNumber:
			currentNum = append(currentNum, token)
		case mtn.TokenPlus:
			if len(currentNum) == 0 {
				return nil, fmt.Errorf("plus sign without any digits in the numerator")
			}
			processed = append(processed, mtn.NewNumber(currentNum))
			currentNum = nil
			processed = append(processed, token)
		}
	}
	if len(currentNum) != 0 {
		processed = append(processed, mtn.NewNumber(currentNum))
	}
	return mtn.NewNumerator(processed), nil
}

func (t *MTNXMLTranslator) visitTuplet(tuplet *etree.Element) (*mtn.Tuplet, error) {
	var tupletToken *mtn.Token
	var digits []*mtn.Token

	for _, child := range tuplet.ChildElements() {
		switch child.Tag {
		case "tuplet":
			token, err := t.visitToken(child)
			if err != nil {
				return nil, err
			}
			tupletToken = token
		case "number":
			token, err := t.visitToken(child)
			if err != nil {
				return nil, err
			}
			digits = append(digits, token)
		}
	}
	if tupletToken == nil {
		return nil, fmt.Errorf("no tuplet token under tuplet node")
	}
	var number *mtn.Number
	if len(digits) > 0 {
		number = mtn.NewNumber(digits)
	}
	return mtn.NewTuplet(number, tupletToken), nil
}

func (t *MTNXMLTranslator) visitToken(token *etree.Element) (*mtn.Token, error) {
	tokenType := mtn.TokenType(token.Tag)

	identAttr := token.SelectAttrValue("id", "")
	if identAttr == "" {
		return nil, fmt.Errorf("token %q has no identifier", token.Tag)
	}
	ident, err := strconv.Atoi(identAttr)
	if err != nil {
		return nil, fmt.Errorf("invalid token identifier %q", identAttr)
	}

	position := mtn.AnyStaffPosition()
	if attr := token.SelectAttrValue("staff", ""); attr != "" {
		staff, err := strconv.Atoi(attr)
		if err != nil {
			return nil, fmt.Errorf("invalid token staff %q", attr)
		}
		position = position.WithStaff(staff)
	}
	if attr := token.SelectAttrValue("position", ""); attr != "" {
		pos, err := strconv.Atoi(attr)
		if err != nil {
			return nil, fmt.Errorf("invalid token position %q", attr)
		}
		position = position.WithPosition(pos)
	}

	modifiers := map[string]string{}
	if attr := token.SelectAttrValue("type", ""); attr != "" {
		modifiers["type"] = attr
	}
	if tokenType == mtn.TokenClef {
		if attr := token.SelectAttrValue("oct", ""); attr != "" {
			modifiers["oct"] = attr
		}
	}
	if tokenType == mtn.TokenNotehead {
		if attr := token.SelectAttrValue("grace", ""); attr != "" {
			modifiers["grace"] = attr
		}
		if attr := token.SelectAttrValue("cue", ""); attr != "" {
			modifiers["cue"] = attr
		}
	}
	return mtn.NewToken(tokenType, modifiers, position, ident), nil
}

func getDelta(node *etree.Element) (*big.Rat, error) {
	delta := node.SelectAttrValue("delta", "")
	if delta == "" {
		return nil, fmt.Errorf("compulsory delta value was not found")
	}
	value, ok := new(big.Rat).SetString(delta)
	if !ok {
		return nil, fmt.Errorf("invalid delta value %q", delta)
	}
	return value, nil
}
