package translator

import (
	"fmt"
	"math/big"
	"sort"
	"strconv"
	"strings"

	"github.com/beevik/etree"

	"github.com/CVC-DAG/comref-converter/pkg/mtn"
)

// allStaves marks an attribute element that applies to every staff of
// the part.
const allStaves = -1

// MXMLTranslator walks a partwise MusicXML document and converts it
// into an MTN score.
//
// MusicXML treats cue, grace and regular notes as independent streams,
// so an open chord is kept per stream. Beamed note groups are built
// through a stack of open groups, one level per beam.
type MXMLTranslator struct {
	state   *ScoreState
	symbols *SymbolTable
	groups  *GroupStack

	currentChord map[bool]*mtn.Chord
	lastMeasure  *mtn.Measure
}

// NewMXMLTranslator builds a translator with a blank state.
func NewMXMLTranslator() *MXMLTranslator {
	t := &MXMLTranslator{
		state:   NewScoreState(),
		symbols: NewSymbolTable(),
	}
	t.groups = NewGroupStack(t.state, t.symbols)
	t.currentChord = map[bool]*mtn.Chord{false: nil, true: nil}
	return t
}

// Translate converts a score-partwise document into an MTN score. The
// firstLine set names the measures that begin an engraved line, which
// get their clef and key restated.
func (t *MXMLTranslator) Translate(
	doc *etree.Document,
	scoreID string,
	firstLine FirstLineSet,
) (*mtn.Score, error) {
	root := doc.Root()
	if root == nil {
		return nil, fmt.Errorf("empty document")
	}
	output := mtn.NewScore(nil, scoreID)
	for _, child := range root.ChildElements() {
		if child.Tag != "part" {
			continue
		}
		measures, err := t.visitPart(child, firstLine)
		if err != nil {
			return nil, err
		}
		output.Measures = append(output.Measures, measures...)
		t.symbols.Reset()
	}
	return output, nil
}

// Reset returns the translator to its default state.
func (t *MXMLTranslator) Reset() {
	t.state = NewScoreState()
	t.symbols = NewSymbolTable()
	t.groups = NewGroupStack(t.state, t.symbols)
	t.currentChord = map[bool]*mtn.Chord{false: nil, true: nil}
	t.lastMeasure = nil
}

// duplicateAttributes deep copies an attributes subtree and refreshes
// every token identifier within it.
func (t *MXMLTranslator) duplicateAttributes(attrs *mtn.Attributes) *mtn.Attributes {
	subtree := attrs.DeepCopy()
	for _, token := range mtn.CollectTokens(subtree) {
		token.ID = t.symbols.GiveIdentifier()
	}
	return subtree
}

func (t *MXMLTranslator) newMeasure() {
	t.state.NewMeasure()

	// MusicXML allows beams crossing barlines, so the group stack
	// survives the measure change.
	t.currentChord = map[bool]*mtn.Chord{false: nil, true: nil}
}

func (t *MXMLTranslator) newPart() {
	t.state = NewScoreState()
	t.groups = NewGroupStack(t.state, t.symbols)
	t.currentChord = map[bool]*mtn.Chord{false: nil, true: nil}
	t.lastMeasure = nil
}

func (t *MXMLTranslator) visitPart(
	part *etree.Element,
	firstLine FirstLineSet,
) ([]*mtn.Measure, error) {
	partID := part.SelectAttrValue("id", "")
	if partID == "" {
		return nil, fmt.Errorf("part without an id attribute")
	}

	var output []*mtn.Measure
	for _, measure := range part.ChildElements() {
		if measure.Tag != "measure" {
			continue
		}
		measureID := measure.SelectAttrValue("number", "")
		if measureID == "" {
			return nil, fmt.Errorf("part %s: measure without a number attribute", partID)
		}

		measureMTN, err := t.visitMeasure(measure)
		if err != nil {
			return nil, fmt.Errorf("part %s measure %s: %w", partID, measureID, err)
		}

		if firstLine.Contains(partID, measureID) {
			t.addStartMeasureElements(measureMTN)
		}
		measureMTN = t.postprocessMeasure(measureMTN)

		measureMTN.MeasureID = measureID
		measureMTN.PartID = partID
		output = append(output, measureMTN)

		t.lastMeasure = measureMTN
		t.newMeasure()
	}

	// The part must end on a right barline.
	if t.lastMeasure != nil && t.lastMeasure.RightBarline == nil {
		t.lastMeasure.RightBarline = mtn.NewBarline(
			t.lastMeasure.Duration,
			[]*mtn.Token{t.barlineToken(mtn.BarRegular)},
			nil,
		)
	}
	t.newPart()

	return output, nil
}

func (t *MXMLTranslator) barlineToken(style mtn.BarlineType) *mtn.Token {
	return mtn.NewToken(
		mtn.TokenBarline,
		map[string]string{"type": string(style)},
		mtn.AnyStaffPosition(),
		t.symbols.GiveIdentifier(),
	)
}

// copyBarline deep copies a barline at a new delta, refreshing every
// token identifier so both sides of a stitched barline stay distinct.
func (t *MXMLTranslator) copyBarline(barline *mtn.Barline, delta *big.Rat) *mtn.Barline {
	tokens := make([]*mtn.Token, len(barline.BarlineTokens))
	for i, tok := range barline.BarlineTokens {
		tokens[i] = tok.Copy()
		tokens[i].ID = t.symbols.GiveIdentifier()
	}
	modifiers := make([]*mtn.Token, len(barline.Modifiers))
	for i, tok := range barline.Modifiers {
		modifiers[i] = tok.Copy()
		modifiers[i].ID = t.symbols.GiveIdentifier()
	}
	return mtn.NewBarline(new(big.Rat).Set(delta), tokens, modifiers)
}

// postprocessMeasure merges simultaneous directions, flattens trivial
// note groups and stitches barlines between consecutive measures.
func (t *MXMLTranslator) postprocessMeasure(measure *mtn.Measure) *mtn.Measure {
	var newChildren []mtn.TopLevel

	var direction *mtn.Direction
	for _, child := range measure.Elements {
		if dir, ok := child.(*mtn.Direction); ok {
			if direction != nil {
				if mtn.RatEq(direction.Delta(), dir.Delta()) {
					direction.MergeDirection(dir)
				} else {
					newChildren = append(newChildren, direction, dir)
					direction = nil
				}
			} else {
				direction = dir
			}
			continue
		}
		if direction != nil {
			newChildren = append(newChildren, direction)
			direction = nil
		}
		if group, ok := child.(*mtn.NoteGroup); ok {
			group.Simplify()
		}
		newChildren = append(newChildren, child)
	}
	if direction != nil {
		newChildren = append(newChildren, direction)
	}

	if t.lastMeasure != nil {
		switch {
		case measure.LeftBarline != nil:
			// Two conflicting barlines mean a line break. Keep both.
			if t.lastMeasure.RightBarline == nil {
				t.lastMeasure.RightBarline = t.copyBarline(
					measure.LeftBarline,
					t.lastMeasure.Duration,
				)
			}
		case t.lastMeasure.RightBarline != nil:
			measure.LeftBarline = t.copyBarline(t.lastMeasure.RightBarline, mtn.Frac(0, 1))
		default:
			defaultBarline := mtn.NewBarline(
				t.lastMeasure.Duration,
				[]*mtn.Token{t.barlineToken(mtn.BarRegular)},
				nil,
			)
			t.lastMeasure.RightBarline = defaultBarline
			measure.LeftBarline = t.copyBarline(defaultBarline, mtn.Frac(0, 1))
		}
	}

	measure.Elements = newChildren
	measure.Sort()
	return measure
}

// addStartMeasureElements restates the clef and key of every staff at
// the front of a measure that begins an engraved line.
func (t *MXMLTranslator) addStartMeasureElements(measure *mtn.Measure) {
	firstLiner := t.duplicateAttributes(t.state.StartAttributes(true))

	for staff := 1; staff <= firstLiner.NStaves; staff++ {
		key := firstLiner.Keys[staff]
		if key == nil || staff > t.state.NStaves {
			continue
		}
		if key.Fifths != nil {
			accidental := mtn.AccFlat
			if *key.Fifths > 0 {
				accidental = mtn.AccSharp
			}
			key.Accidentals = t.keyAccidentalTokens(*key.Fifths, accidental, staff)
			sort.SliceStable(key.Accidentals, func(i, j int) bool {
				return positionOf(key.Accidentals[i]) < positionOf(key.Accidentals[j])
			})
		} else {
			var steps []mtn.NamedPitch
			var alters []mtn.AccidentalType
			for ii, alt := range key.Alterations {
				if alt != nil {
					steps = append(steps, mtn.NamedPitch(ii))
					alters = append(alters, *alt)
				}
			}
			key.Accidentals = t.keyAlterTokens(steps, alters, staff)
			sort.SliceStable(key.Accidentals, func(i, j int) bool {
				return positionOf(key.Accidentals[i]) > positionOf(key.Accidentals[j])
			})
		}
	}

	if len(measure.Elements) > 0 {
		if attrs, ok := measure.Elements[0].(*mtn.Attributes); ok {
			attrs.Merge(firstLiner)
			return
		}
	}
	measure.Elements = append([]mtn.TopLevel{firstLiner}, measure.Elements...)
}

func positionOf(token *mtn.Token) int {
	pos, _ := token.Position.Position()
	return pos
}

func (t *MXMLTranslator) visitMeasure(measure *etree.Element) (*mtn.Measure, error) {
	var subelements []mtn.TopLevel
	var leftBarline, rightBarline *mtn.Barline

	// The preparse pass sets up the state and handles every attribute
	// element of the measure.
	preparsed, err := t.preparseMeasure(measure)
	if err != nil {
		return nil, err
	}
	for _, attrs := range preparsed {
		subelements = append(subelements, attrs)
	}

	for _, child := range measure.ChildElements() {
		switch child.Tag {
		case "note":
			noteOut, err := t.visitNote(child)
			if err != nil {
				return nil, err
			}
			if noteOut != nil {
				subelements = append(subelements, noteOut)
			}
		case "backup":
			if err := t.backupOrForward(false, child); err != nil {
				return nil, err
			}
		case "forward":
			if err := t.backupOrForward(true, child); err != nil {
				return nil, err
			}
		case "direction":
			direction, err := t.visitDirection(child)
			if err != nil {
				return nil, err
			}
			if direction != nil {
				subelements = append(subelements, direction)
			}
		case "barline":
			barline, err := t.visitBarline(child)
			if err != nil {
				return nil, err
			}
			if barline == nil {
				continue
			}
			timesig := t.state.Attributes().GetTimesig(1)
			switch {
			case barline.Delta().Sign() == 0:
				leftBarline = barline
			case timesig != nil && barline.Delta().Cmp(timesig.TimeValue) == 0:
				rightBarline = barline
			default:
				subelements = append(subelements, barline)
			}
		}
	}

	duration, err := t.state.GetDuration()
	if err != nil {
		return nil, err
	}

	output := mtn.NewMeasure(
		subelements,
		leftBarline,
		rightBarline,
		t.state.NStaves,
		"<INVALID>",
		"<INVALID>",
		duration,
	)
	output.Sort()

	return output, nil
}

// preparseMeasure walks the measure once to process attribute changes
// and figure out the time span of the measure, then rewinds the clock.
func (t *MXMLTranslator) preparseMeasure(measure *etree.Element) ([]*mtn.Attributes, error) {
	for _, child := range measure.ChildElements() {
		switch child.Tag {
		case "note":
			if err := t.preparseNote(child); err != nil {
				return nil, err
			}
		case "backup":
			if err := t.backupOrForward(false, child); err != nil {
				return nil, err
			}
		case "forward":
			if err := t.backupOrForward(true, child); err != nil {
				return nil, err
			}
		case "attributes":
			if _, err := t.visitAttributes(child); err != nil {
				return nil, err
			}
		}
	}
	t.state.ChangeTime(mtn.Frac(0, 1))

	return t.state.AttributeList(), nil
}

func (t *MXMLTranslator) preparseNote(note *etree.Element) error {
	if note.SelectElement("chord") != nil {
		return nil
	}
	durationElement := note.SelectElement("duration")
	if durationElement == nil {
		return nil
	}
	duration, err := t.visitDuration(durationElement)
	if err != nil {
		return err
	}
	t.state.SetBuffer(duration)
	t.state.MoveBuffer()
	return nil
}

func (t *MXMLTranslator) backupOrForward(forward bool, element *etree.Element) error {
	valueElement := element.SelectElement("duration")
	if valueElement == nil {
		return fmt.Errorf("empty or invalid %s element", element.Tag)
	}
	value, err := strconv.Atoi(strings.TrimSpace(valueElement.Text()))
	if err != nil {
		return fmt.Errorf("invalid %s duration: %w", element.Tag, err)
	}
	increment := mtn.Frac(int64(value), int64(t.state.Divisions))
	if !forward {
		increment.Neg(increment)
	}
	t.state.IncrementTime(increment)
	return nil
}

// visitNote produces a note group or rest from a note element. A nil
// result with no error means the element populated an existing chord
// or group, or is not displayed at all.
func (t *MXMLTranslator) visitNote(note *etree.Element) (mtn.TopLevel, error) {
	var (
		cue, grace, rest, chord bool

		staff             = 1
		accidentals       []*mtn.Token
		beamElements      []*etree.Element
		dots              []*mtn.Token
		duration          = mtn.Frac(0, 1)
		implicitNtype     mtn.NoteType
		notationsElements []*etree.Element
		ntype             mtn.NoteType
		pitch             *mtn.NotePitch
		timeMod           *big.Rat

		stem     *mtn.Token
		notehead *mtn.Token
	)

	visible := note.SelectAttrValue("print-object", "yes") == "yes"

	for _, child := range note.ChildElements() {
		var err error
		switch child.Tag {
		case "grace":
			grace = true
		case "cue":
			cue = true
		case "pitch":
			pitch, err = t.visitPitch(child)
		case "unpitched":
			pitch, err = t.visitUnpitched(child)
		case "rest":
			rest = true
		case "chord":
			chord = true
		case "duration":
			duration, err = t.visitDuration(child)
		case "type":
			ntype, err = t.visitType(child)
		case "dot":
			dots = append(dots, t.visitDot())
		case "accidental":
			accidentals, err = t.visitAccidental(child)
		case "stem":
			stem, err = t.visitStem(child)
		case "notehead":
			var valid bool
			notehead, valid, err = t.visitNotehead(child)
			if err == nil && !valid {
				visible = false
			}
		case "staff":
			staff, err = strconv.Atoi(strings.TrimSpace(child.Text()))
		case "beam":
			beamElements = append(beamElements, child)
		case "notations":
			notationsElements = append(notationsElements, child)
		case "time-modification":
			timeMod, implicitNtype, err = t.visitTimeMod(child)
		}
		if err != nil {
			return nil, err
		}
	}

	position, err := t.objectPositionFromPitch(staff, pitch)
	if err != nil {
		return nil, err
	}

	if stem != nil {
		stem.Position = mtn.AnyStaffPosition()
	}

	if ntype == "" {
		if implicitNtype != "" {
			ntype = implicitNtype
		} else {
			ntype = inferNtype(duration, len(dots), stem != nil, grace, notehead, len(beamElements), timeMod)
		}
	}

	var notations []mtn.SyntaxNode
	for _, element := range notationsElements {
		part, err := t.visitNotations(element, mtn.AnyStaffPosition(), timeMod)
		if err != nil {
			return nil, err
		}
		notations = append(notations, part...)
	}
	sort.SliceStable(notations, func(i, j int) bool {
		return notationSortKey(notations[i]) < notationSortKey(notations[j])
	})

	if rest {
		t.state.MoveBuffer()
		t.state.SetBuffer(duration)

		restToken := mtn.NewToken(
			mtn.TokenRest,
			map[string]string{"type": string(ntype)},
			mtn.StaffOnly(staff),
			t.symbols.GiveIdentifier(),
		)
		restOutput := mtn.NewRest(t.state.CurrentTime(), restToken, dots, notations)

		t.state.MoveBuffer()

		if !visible {
			return nil, nil
		}
		return restOutput, nil
	}

	if notehead != nil {
		notehead.Position = position
		if cue {
			notehead.Modifiers["cue"] = "true"
		}
		if grace {
			notehead.Modifiers["grace"] = "true"
		}
	} else {
		notehead = t.inferNotehead(ntype, position, grace, cue)
	}

	currentNote := mtn.NewNote(notehead, dots, accidentals, notations)

	// A chord element populates the chord already under construction.
	if chord {
		if !visible {
			return nil, nil
		}
		currentChord := t.currentChord[grace]
		if currentChord == nil {
			return nil, fmt.Errorf("chord element without an active chord")
		}
		currentChord.AddNote(currentNote)
		return nil, nil
	}

	t.state.MoveBuffer()
	t.state.SetBuffer(duration)

	// Attribute changes may have landed between the first position
	// lookup and the clock flush, so resolve the position again.
	position, err = t.objectPositionFromPitch(staff, pitch)
	if err != nil {
		return nil, err
	}
	notehead.Position = position

	if !visible && len(beamElements) == 0 && len(notations) == 0 && stem == nil {
		return nil, nil
	}

	currentChord := mtn.NewChord(t.state.CurrentTime(), stem, []*mtn.Note{currentNote})
	t.currentChord[grace] = currentChord

	if len(beamElements) > 0 {
		returnAtEnd := t.groups.Bottom(grace) == nil
		beamProcessed, err := processBeams(beamElements)
		if err != nil {
			return nil, err
		}
		t.createNoteGroups(grace, beamProcessed)
		baseGroup := t.groups.Bottom(grace)
		currentGroup := t.groups.Top(grace)
		if currentGroup == nil {
			return nil, fmt.Errorf("malformed beam structure: a group should be open")
		}
		currentGroup.Children = append(currentGroup.Children, currentChord)
		t.removeNoteGroups(grace, beamProcessed)

		if returnAtEnd {
			return baseGroup, nil
		}
		return nil, nil
	}

	// A singleton: the flags hang directly from the wrapping group.
	flags := t.flagTokens(ntype)
	currentGroup := mtn.NewNoteGroup(
		t.state.CurrentTime(),
		[]mtn.GroupChild{currentChord},
		flags,
	)

	return currentGroup, nil
}

func notationSortKey(node mtn.SyntaxNode) string {
	if token, ok := node.(*mtn.Token); ok {
		return string(token.TokenType)
	}
	return "a"
}

func (t *MXMLTranslator) objectPositionFromPitch(
	staff int,
	pitch *mtn.NotePitch,
) (mtn.StaffPosition, error) {
	currentClef := t.state.Attributes().GetClef(staff)
	if currentClef == nil {
		return mtn.StaffPosition{}, fmt.Errorf("no clef for staff %d", staff)
	}
	if pitch != nil {
		return mtn.NewStaffPosition(staff, currentClef.Pitch2Pos(*pitch)), nil
	}
	return mtn.StaffOnly(staff), nil
}

func (t *MXMLTranslator) flagTokens(ntype mtn.NoteType) []*mtn.Token {
	nflags, ok := mtn.Type2Beams(ntype)
	if !ok {
		return nil
	}
	out := make([]*mtn.Token, 0, nflags)
	for i := 0; i < nflags; i++ {
		out = append(out, mtn.NewToken(
			mtn.TokenFlag,
			nil,
			mtn.AnyStaffPosition(),
			t.symbols.GiveIdentifier(),
		))
	}
	return out
}

// processedBeam is the logic representation of a beam element.
type processedBeam struct {
	value  BeamValue
	number int // 0 when absent
}

func processBeams(beams []*etree.Element) ([]processedBeam, error) {
	out := make([]processedBeam, 0, len(beams))
	numbered := true
	for _, beam := range beams {
		value := BeamValue(strings.TrimSpace(beam.Text()))
		if _, ok := beamPrecedence[value]; !ok {
			return nil, fmt.Errorf("invalid beam value %q", string(value))
		}
		number := 0
		if attr := beam.SelectAttrValue("number", ""); attr != "" {
			n, err := strconv.Atoi(attr)
			if err != nil {
				return nil, fmt.Errorf("invalid beam number %q", attr)
			}
			number = n
		} else {
			numbered = false
		}
		out = append(out, processedBeam{value: value, number: number})
	}

	if numbered {
		sort.SliceStable(out, func(i, j int) bool { return out[i].number < out[j].number })
	} else {
		sort.SliceStable(out, func(i, j int) bool {
			return beamPrecedence[out[i].value] < beamPrecedence[out[j].value]
		})
	}
	return out, nil
}

func (t *MXMLTranslator) createNoteGroups(grace bool, beams []processedBeam) {
	for _, beam := range beams {
		switch beam.value {
		case BeamBegin, BeamForwardHook, BeamBackwardHook:
			t.groups.NewLevel(grace)
		}
	}
}

func (t *MXMLTranslator) removeNoteGroups(grace bool, beams []processedBeam) {
	for _, beam := range beams {
		switch beam.value {
		case BeamEnd, BeamForwardHook, BeamBackwardHook:
			t.groups.Pop(grace)
		}
	}
}

// inferNtype derives a note type when none is written, from the most
// reliable source available. Defaults to a quarter note.
func inferNtype(
	duration *big.Rat,
	dots int,
	stem bool,
	grace bool,
	notehead *mtn.Token,
	beams int,
	timeMod *big.Rat,
) mtn.NoteType {
	if beams > 0 {
		if ntype, ok := mtn.Beams2Type(beams); ok {
			return ntype
		}
	}
	if notehead != nil && notehead.Modifiers["type"] == string(mtn.HeadWhite) {
		if stem {
			return mtn.NoteHalf
		}
		return mtn.NoteWhole
	}

	if duration.Sign() > 0 {
		multiplier := mtn.Frac(1, 1)

		if timeMod != nil {
			// Floor of the inverse: fits the common halving ratios and
			// collapses widening ones to zero, like the notation does.
			inverse := new(big.Rat).Inv(timeMod)
			floored := new(big.Int).Quo(inverse.Num(), inverse.Denom())
			multiplier.Mul(multiplier, new(big.Rat).SetInt(floored))
		}
		if dots > 0 {
			multiplier.Add(multiplier, mtn.Frac(int64(dots), 2))
		}
		return mtn.Duration2Type(new(big.Rat).Mul(duration, multiplier))
	}
	if grace {
		return mtn.NoteEighth
	}
	return mtn.NoteQuarter
}

func (t *MXMLTranslator) inferNotehead(
	ntype mtn.NoteType,
	position mtn.StaffPosition,
	grace, cue bool,
) *mtn.Token {
	modifiers := map[string]string{"type": string(mtn.Type2Notehead(ntype))}
	if grace {
		modifiers["grace"] = "true"
	}
	if cue {
		modifiers["cue"] = "true"
	}
	return mtn.NewToken(
		mtn.TokenNotehead,
		modifiers,
		position,
		t.symbols.GiveIdentifier(),
	)
}

// visitTimeMod extracts the played-over-written ratio of a tuplet and
// the implicit note type when one is written.
func (t *MXMLTranslator) visitTimeMod(
	timeMod *etree.Element,
) (*big.Rat, mtn.NoteType, error) {
	actualElm := timeMod.SelectElement("actual-notes")
	normalElm := timeMod.SelectElement("normal-notes")
	if actualElm == nil || normalElm == nil {
		return nil, "", fmt.Errorf("time modification without note indications")
	}
	actual, err := strconv.Atoi(strings.TrimSpace(actualElm.Text()))
	if err != nil {
		return nil, "", fmt.Errorf("invalid actual-notes value: %w", err)
	}
	normal, err := strconv.Atoi(strings.TrimSpace(normalElm.Text()))
	if err != nil {
		return nil, "", fmt.Errorf("invalid normal-notes value: %w", err)
	}

	var ntype mtn.NoteType
	if typeElm := timeMod.SelectElement("normal-type"); typeElm != nil {
		mapped, ok := ntypeMXML2MTN[strings.TrimSpace(typeElm.Text())]
		if !ok {
			return nil, "", fmt.Errorf("invalid note type %q", typeElm.Text())
		}
		ntype = mapped
	}

	return mtn.Frac(int64(actual), int64(normal)), ntype, nil
}

func (t *MXMLTranslator) visitNotations(
	notations *etree.Element,
	pitch mtn.StaffPosition,
	timeMod *big.Rat,
) ([]mtn.SyntaxNode, error) {
	var output []mtn.SyntaxNode
	for _, child := range notations.ChildElements() {
		switch child.Tag {
		case "tied":
			tied, err := t.visitTied(child, pitch)
			if err != nil {
				return nil, err
			}
			if tied != nil {
				output = append(output, tied)
			}
		case "slur", "glissando", "slide":
			ptp, err := t.visitPointToPoint(child, pitch)
			if err != nil {
				return nil, err
			}
			if ptp != nil {
				output = append(output, ptp)
			}
		case "tuplet":
			tuplet, err := t.visitTuplet(child, timeMod)
			if err != nil {
				return nil, err
			}
			if tuplet != nil {
				output = append(output, tuplet)
			}
		case "arpeggiate":
			arpeggiate, err := t.visitArpeggiate(child, pitch)
			if err != nil {
				return nil, err
			}
			output = append(output, arpeggiate)
		case "fermata":
			output = append(output, t.visitFermata())
		case "ornaments":
			for _, tok := range t.visitOrnaments(child, pitch) {
				output = append(output, tok)
			}
		case "articulations":
			for _, tok := range t.visitArticulations(child, pitch) {
				output = append(output, tok)
			}
		case "dynamics":
			dynamics, err := t.visitDynamics(child)
			if err != nil {
				return nil, err
			}
			for _, tok := range dynamics {
				output = append(output, tok)
			}
		}
	}
	return output, nil
}

func elementNumber(node *etree.Element) (int, error) {
	attr := node.SelectAttrValue("number", "")
	if attr == "" {
		return noNumber, nil
	}
	number, err := strconv.Atoi(attr)
	if err != nil {
		return 0, fmt.Errorf("invalid number attribute %q", attr)
	}
	return number, nil
}

func (t *MXMLTranslator) visitTuplet(
	tuplet *etree.Element,
	timeMod *big.Rat,
) (*mtn.Tuplet, error) {
	number, err := elementNumber(tuplet)
	if err != nil {
		return nil, err
	}
	tupletType := tuplet.SelectAttrValue("type", "")
	if tupletType == "" {
		return nil, fmt.Errorf("tuplet element without compulsory attribute 'type'")
	}
	tupletValue, ok := startStopMXML2MTN[tupletType]
	if !ok {
		return nil, fmt.Errorf("invalid tuplet type %q", tupletType)
	}
	showNumber := tuplet.SelectAttrValue("show-number", "none") != "none"
	showBracket := tuplet.SelectAttrValue("bracket", "no") != "no"

	var tupletNumber *mtn.Number
	if showNumber {
		var numberText string
		if timeMod == nil {
			actualElm := tuplet.SelectElement("tuplet-actual")
			if actualElm == nil {
				return nil, fmt.Errorf("actual tuplet value missing")
			}
			numberElm := actualElm.SelectElement("tuplet-number")
			if numberElm == nil {
				return nil, fmt.Errorf("actual tuplet value missing")
			}
			numberText = strings.TrimSpace(numberElm.Text())
		} else {
			numberText = timeMod.Num().String()
		}
		if tupletValue == mtn.Start {
			digits := make([]*mtn.Token, 0, len(numberText))
			for _, digit := range numberText {
				value, err := strconv.Atoi(string(digit))
				if err != nil {
					return nil, fmt.Errorf("invalid tuplet number %q", numberText)
				}
				digits = append(digits, t.numberToken(value, 0))
			}
			tupletNumber = mtn.NewNumber(digits)
		}
	}

	ident := t.symbols.IdentifyPointToPoint(mtn.TokenTuplet, number)
	token := mtn.NewToken(
		mtn.TokenTuplet,
		map[string]string{"type": string(tupletValue)},
		mtn.AnyStaffPosition(),
		ident,
	)

	if !showBracket && !showNumber {
		return nil, nil
	}
	return mtn.NewTuplet(tupletNumber, token), nil
}

func (t *MXMLTranslator) visitTied(
	tied *etree.Element,
	pitch mtn.StaffPosition,
) (*mtn.Token, error) {
	number, err := elementNumber(tied)
	if err != nil {
		return nil, err
	}
	identifier := t.symbols.IdentifyTie(pitch, number)

	tiedType := TiedType(tied.SelectAttrValue("type", ""))
	if tiedType == "" {
		return nil, fmt.Errorf("tied element without compulsory attribute 'type'")
	}
	if tiedType == TiedContinue || tiedType == TiedLetRing {
		return nil, nil
	}
	mapped, ok := tiedTypeMXML2MTN[tiedType]
	if !ok {
		return nil, fmt.Errorf("invalid tied type %q", string(tiedType))
	}

	return mtn.NewToken(
		mtn.TokenTied,
		map[string]string{"type": string(mapped)},
		pitch,
		identifier,
	), nil
}

func (t *MXMLTranslator) visitPointToPoint(
	element *etree.Element,
	pitch mtn.StaffPosition,
) (*mtn.Token, error) {
	ptpType := element.SelectAttrValue("type", "")
	if ptpType == "" {
		return nil, fmt.Errorf("%s element without compulsory attribute 'type'", element.Tag)
	}
	// Middle points carry no notation of their own.
	position, ok := startStopMXML2MTN[ptpType]
	if !ok {
		return nil, nil
	}

	number, err := elementNumber(element)
	if err != nil {
		return nil, err
	}
	tokenType, ok := p2pTokens[element.Tag]
	if !ok {
		return nil, unsupportedf("unknown end-to-end token %q", element.Tag)
	}

	identifier := t.symbols.IdentifyPointToPoint(tokenType, number)

	return mtn.NewToken(
		tokenType,
		map[string]string{"type": string(position)},
		pitch,
		identifier,
	), nil
}

func (t *MXMLTranslator) visitArpeggiate(
	arpeggiate *etree.Element,
	pitch mtn.StaffPosition,
) (*mtn.Token, error) {
	number, err := elementNumber(arpeggiate)
	if err != nil {
		return nil, err
	}
	identifier := t.symbols.IdentifyArpeggio(t.state.CurrentTime(), number)
	return mtn.NewToken(mtn.TokenArpeggiate, nil, pitch, identifier), nil
}

func (t *MXMLTranslator) visitOrnaments(
	ornaments *etree.Element,
	pitch mtn.StaffPosition,
) []*mtn.Token {
	var output []*mtn.Token
	for _, child := range ornaments.ChildElements() {
		if tokenType, ok := ornamentTokens[child.Tag]; ok {
			output = append(output, mtn.NewToken(
				tokenType,
				nil,
				pitch,
				t.symbols.GiveIdentifier(),
			))
		}
	}
	return output
}

func (t *MXMLTranslator) visitArticulations(
	articulations *etree.Element,
	pitch mtn.StaffPosition,
) []*mtn.Token {
	var output []*mtn.Token
	for _, child := range articulations.ChildElements() {
		if tokenType, ok := articulationTokens[child.Tag]; ok {
			output = append(output, mtn.NewToken(
				tokenType,
				nil,
				pitch,
				t.symbols.GiveIdentifier(),
			))
		}
	}
	return output
}

func (t *MXMLTranslator) visitStem(stem *etree.Element) (*mtn.Token, error) {
	value := StemValue(strings.TrimSpace(stem.Text()))
	if value == StemNone {
		return nil, nil
	}
	if value == StemDouble {
		// A double stem renders as a single one for now.
		value = StemUp
	}
	direction, ok := stemMXML2MTN[value]
	if !ok {
		return nil, fmt.Errorf("invalid stem value %q", string(value))
	}
	return mtn.NewToken(
		mtn.TokenStem,
		map[string]string{"type": string(direction)},
		mtn.AnyStaffPosition(),
		t.symbols.GiveIdentifier(),
	), nil
}

// visitNotehead converts a notehead element. The boolean reports
// whether the note should stay visible.
func (t *MXMLTranslator) visitNotehead(notehead *etree.Element) (*mtn.Token, bool, error) {
	value := strings.TrimSpace(notehead.Text())
	if value == "normal" {
		return nil, true, nil
	}
	if mapped, ok := noteheadMXML2MTN[value]; ok {
		token := mtn.NewToken(
			mtn.TokenNotehead,
			map[string]string{"type": string(mapped)},
			mtn.AnyStaffPosition(),
			t.symbols.GiveIdentifier(),
		)
		return token, true, nil
	}
	if value == "none" {
		return nil, false, nil
	}
	return nil, false, unsupportedf("notehead type %q", value)
}

func (t *MXMLTranslator) visitPitch(pitch *etree.Element) (*mtn.NotePitch, error) {
	stepElm := pitch.SelectElement("step")
	octaveElm := pitch.SelectElement("octave")
	if stepElm == nil || octaveElm == nil {
		return nil, fmt.Errorf("pitch element without step/octave information")
	}
	step, ok := pitchMXML2MTN[strings.TrimSpace(stepElm.Text())]
	if !ok {
		return nil, fmt.Errorf("invalid pitch step %q", stepElm.Text())
	}
	octave, err := strconv.Atoi(strings.TrimSpace(octaveElm.Text()))
	if err != nil {
		return nil, fmt.Errorf("invalid pitch octave: %w", err)
	}

	alter := mtn.Frac(0, 1)
	if alterElm := pitch.SelectElement("alter"); alterElm != nil {
		if _, ok := alter.SetString(strings.TrimSpace(alterElm.Text())); !ok {
			return nil, fmt.Errorf("invalid pitch alteration %q", alterElm.Text())
		}
	}
	return &mtn.NotePitch{Step: step, Octave: octave, Alter: alter}, nil
}

func (t *MXMLTranslator) visitUnpitched(unpitched *etree.Element) (*mtn.NotePitch, error) {
	stepElm := unpitched.SelectElement("display-step")
	octaveElm := unpitched.SelectElement("display-octave")
	if stepElm == nil || octaveElm == nil {
		return nil, fmt.Errorf("unpitched element without step/octave information")
	}
	step, ok := pitchMXML2MTN[strings.TrimSpace(stepElm.Text())]
	if !ok {
		return nil, fmt.Errorf("invalid pitch step %q", stepElm.Text())
	}
	octave, err := strconv.Atoi(strings.TrimSpace(octaveElm.Text()))
	if err != nil {
		return nil, fmt.Errorf("invalid pitch octave: %w", err)
	}
	return &mtn.NotePitch{Step: step, Octave: octave, Alter: mtn.Frac(0, 1)}, nil
}

// visitDuration converts a duration element into beats.
func (t *MXMLTranslator) visitDuration(duration *etree.Element) (*big.Rat, error) {
	value, err := strconv.Atoi(strings.TrimSpace(duration.Text()))
	if err != nil {
		return nil, fmt.Errorf("invalid duration element: %w", err)
	}
	return mtn.Frac(int64(value), int64(t.state.Divisions)), nil
}

func (t *MXMLTranslator) visitType(ntype *etree.Element) (mtn.NoteType, error) {
	mapped, ok := ntypeMXML2MTN[strings.TrimSpace(ntype.Text())]
	if !ok {
		return "", fmt.Errorf("invalid note type %q", ntype.Text())
	}
	return mapped, nil
}

func (t *MXMLTranslator) visitDot() *mtn.Token {
	return mtn.NewToken(
		mtn.TokenDot,
		nil,
		mtn.AnyStaffPosition(),
		t.symbols.GiveIdentifier(),
	)
}

func (t *MXMLTranslator) visitAccidental(accidental *etree.Element) ([]*mtn.Token, error) {
	value := strings.TrimSpace(accidental.Text())

	var compounds []string
	switch {
	case accidentalMXML2MTN[value] != "":
		compounds = []string{value}
	case value == "natural-sharp":
		compounds = []string{"natural", "sharp"}
	case value == "natural-flat":
		compounds = []string{"natural", "flat"}
	case value == "sharp-sharp":
		compounds = []string{"sharp", "sharp"}
	default:
		return nil, unsupportedf("accidental type %q", value)
	}

	out := make([]*mtn.Token, 0, len(compounds))
	for _, acc := range compounds {
		out = append(out, mtn.NewToken(
			mtn.TokenAccidental,
			map[string]string{"type": string(accidentalMXML2MTN[acc])},
			mtn.AnyStaffPosition(),
			t.symbols.GiveIdentifier(),
		))
	}
	return out, nil
}

func (t *MXMLTranslator) visitDirection(direction *etree.Element) (*mtn.Direction, error) {
	t.state.MoveBuffer()

	var tokens []*mtn.Token
	for _, child := range direction.ChildElements() {
		if child.Tag != "direction-type" {
			continue
		}
		part, err := t.visitDirectionType(child)
		if err != nil {
			return nil, err
		}
		tokens = append(tokens, part...)
	}

	for _, token := range tokens {
		token.Position = mtn.AnyStaffPosition()
	}

	if len(tokens) == 0 {
		return nil, nil
	}
	output := mtn.NewDirection(t.state.CurrentTime(), tokens)
	output.Sort()
	return output, nil
}

func (t *MXMLTranslator) visitDirectionType(dirType *etree.Element) ([]*mtn.Token, error) {
	var output []*mtn.Token
	for _, child := range dirType.ChildElements() {
		switch child.Tag {
		case "segno":
			output = append(output, t.visitSegno())
		case "coda":
			output = append(output, t.visitCoda())
		case "wedge":
			wedge, err := t.visitWedge(child)
			if err != nil {
				return nil, err
			}
			if wedge != nil {
				output = append(output, wedge)
			}
		case "dynamics":
			dynamics, err := t.visitDynamics(child)
			if err != nil {
				return nil, err
			}
			output = append(output, dynamics...)
		}
	}
	return output, nil
}

func (t *MXMLTranslator) visitDynamics(dynamics *etree.Element) ([]*mtn.Token, error) {
	t.state.MoveBuffer()

	var output []*mtn.Token
	for _, child := range dynamics.ChildElements() {
		if child.Tag == "other-dynamics" {
			continue
		}
		mapped, ok := dynamicsMXML2MTN[child.Tag]
		if !ok {
			return nil, fmt.Errorf("invalid dynamics marking %q", child.Tag)
		}
		output = append(output, mtn.NewToken(
			mtn.TokenDyn,
			map[string]string{"type": string(mapped)},
			mtn.AnyStaffPosition(),
			t.symbols.GiveIdentifier(),
		))
	}
	return output, nil
}

func (t *MXMLTranslator) visitWedge(wedge *etree.Element) (*mtn.Token, error) {
	wedgeType := WedgeValue(wedge.SelectAttrValue("type", ""))
	if wedgeType == WedgeValContinue {
		return nil, nil
	}
	mapped, ok := wedgeMXML2MTN[wedgeType]
	if !ok {
		return nil, fmt.Errorf("invalid wedge type %q", string(wedgeType))
	}

	number := noNumber
	if attr := wedge.SelectAttrValue("number", ""); attr != "" {
		n, err := strconv.Atoi(attr)
		if err != nil {
			return nil, fmt.Errorf("invalid wedge number %q", attr)
		}
		number = n
	}
	ident := t.symbols.IdentifyPointToPoint(mtn.TokenWedge, number)

	return mtn.NewToken(
		mtn.TokenWedge,
		map[string]string{"type": string(mapped)},
		mtn.AnyStaffPosition(),
		ident,
	), nil
}

func (t *MXMLTranslator) visitAttributes(attributes *etree.Element) (*mtn.Attributes, error) {
	t.state.MoveBuffer()

	var keyElements, timesigElements, clefElements []*etree.Element

	for _, child := range attributes.ChildElements() {
		switch child.Tag {
		case "divisions":
			divisions, err := strconv.Atoi(strings.TrimSpace(child.Text()))
			if err != nil {
				return nil, fmt.Errorf("invalid divisions value: %w", err)
			}
			t.state.Divisions = divisions
		case "staves":
			nstaves, err := strconv.Atoi(strings.TrimSpace(child.Text()))
			if err != nil {
				return nil, fmt.Errorf("invalid staves value: %w", err)
			}
			t.state.ChangeStaves(nstaves)
		case "key":
			keyElements = append(keyElements, child)
		case "time":
			timesigElements = append(timesigElements, child)
		case "clef":
			clefElements = append(clefElements, child)
		}
	}

	output := mtn.MakeEmptyAttributes(t.state.NStaves, t.state.CurrentTime(), false)

	for _, clefElm := range clefElements {
		clef, err := t.visitClef(clefElm)
		if err != nil {
			return nil, err
		}
		clefStaff, ok := clef.Position.Staff()
		if !ok {
			return nil, fmt.Errorf("invalid staff value for clef")
		}
		output.SetClef(clef, clefStaff)
	}

	for _, timesigElm := range timesigElements {
		timesig, staff, err := t.visitTime(timesigElm)
		if err != nil {
			return nil, err
		}
		if staff == allStaves {
			for newStaff := 1; newStaff <= t.state.NStaves; newStaff++ {
				newTimesig := timesig.Copy()
				for _, token := range mtn.CollectTokens(newTimesig) {
					token.ID = t.symbols.GiveIdentifier()
					token.Position = mtn.AnyStaffPosition()
				}
				output.SetTimesig(newTimesig, newStaff)
			}
		} else {
			output.Timesigs[staff] = timesig
		}
	}

	// Set the state once before processing keys: the key accidentals
	// need the new clef and time signature to land on the right lines.
	t.state.SetAttributes(output)

	for _, keyElm := range keyElements {
		keyProcessed, err := t.visitKey(keyElm)
		if err != nil {
			return nil, err
		}
		for staff, key := range keyProcessed {
			output.Keys[staff] = key
		}
	}

	t.state.SetAttributes(output)

	return output, nil
}

func (t *MXMLTranslator) visitKey(key *etree.Element) (map[int]*mtn.Key, error) {
	staff := allStaves
	if attr := key.SelectAttrValue("number", ""); attr != "" {
		n, err := strconv.Atoi(attr)
		if err != nil {
			return nil, fmt.Errorf("invalid key number %q", attr)
		}
		staff = n
	}

	children := key.ChildElements()
	if len(children) > 0 {
		switch children[0].Tag {
		case "cancel", "fifths":
			return t.keyFifths(key, staff)
		}
	}
	return t.keyAlters(key, staff)
}

func (t *MXMLTranslator) keyStaves(staff int) []int {
	if staff == allStaves {
		staves := make([]int, 0, t.state.NStaves)
		for s := 1; s <= t.state.NStaves; s++ {
			staves = append(staves, s)
		}
		return staves
	}
	return []int{staff}
}

// keyFifths builds the keys denoted by a number of fifths up or down
// the circle, one per target staff.
func (t *MXMLTranslator) keyFifths(key *etree.Element, staff int) (map[int]*mtn.Key, error) {
	staves := t.keyStaves(staff)

	alterations := make([]*mtn.AccidentalType, 7)
	accidentals := make(map[int][]*mtn.Token, len(staves))
	naturals := make(map[int][]*mtn.Token, len(staves))

	fifths := 0
	for _, child := range key.ChildElements() {
		switch child.Tag {
		case "cancel":
			text := strings.TrimSpace(child.Text())
			if text == "" {
				continue
			}
			cancelled, err := strconv.Atoi(text)
			if err != nil {
				return nil, fmt.Errorf("invalid cancel value %q", text)
			}
			for _, currStaff := range staves {
				tokens, err := t.keyAccidentalTokensChecked(cancelled, mtn.AccNatural, currStaff)
				if err != nil {
					return nil, err
				}
				naturals[currStaff] = tokens
			}
		case "fifths":
			text := strings.TrimSpace(child.Text())
			if text == "" {
				continue
			}
			value, err := strconv.Atoi(text)
			if err != nil {
				return nil, fmt.Errorf("invalid fifths value %q", text)
			}
			fifths = value
			accidental := mtn.AccFlat
			if fifths > 0 {
				accidental = mtn.AccSharp
			}
			for _, currStaff := range staves {
				tokens, err := t.keyAccidentalTokensChecked(fifths, accidental, currStaff)
				if err != nil {
					return nil, err
				}
				accidentals[currStaff] = tokens
			}
			alterations = mtn.FifthsAlterations(fifths)
		}
	}

	output := make(map[int]*mtn.Key, len(staves))
	for _, currStaff := range staves {
		value := fifths
		output[currStaff] = mtn.NewKey(
			accidentals[currStaff],
			naturals[currStaff],
			alterations,
			&value,
		)
	}
	return output, nil
}

func (t *MXMLTranslator) keyAccidentalTokensChecked(
	fifths int,
	accidental mtn.AccidentalType,
	staff int,
) ([]*mtn.Token, error) {
	if t.state.Attributes().GetClef(staff) == nil {
		return nil, fmt.Errorf("no clef configuration for staff %d", staff)
	}
	return t.keyAccidentalTokens(fifths, accidental, staff), nil
}

// keyAccidentalTokens places the accidentals of a fifths-denoted key
// on the staff under its current clef.
func (t *MXMLTranslator) keyAccidentalTokens(
	fifths int,
	accidental mtn.AccidentalType,
	staff int,
) []*mtn.Token {
	clef := t.state.Attributes().GetClef(staff)
	positions := mtn.FifthsAccidentalPositions(fifths, clef)
	output := make([]*mtn.Token, 0, len(positions))
	for _, pos := range positions {
		output = append(output, mtn.NewToken(
			mtn.TokenAccidental,
			map[string]string{"type": string(accidental)},
			mtn.NewStaffPosition(staff, pos),
			t.symbols.GiveIdentifier(),
		))
	}
	return output
}

// keyAlters builds keys written as an explicit list of alterations.
func (t *MXMLTranslator) keyAlters(key *etree.Element, staff int) (map[int]*mtn.Key, error) {
	var steps []mtn.NamedPitch
	var alterSymbols []mtn.AccidentalType

	for _, child := range key.ChildElements() {
		switch child.Tag {
		case "key-step":
			text := strings.TrimSpace(child.Text())
			step, ok := pitchMXML2MTN[text]
			if !ok {
				return nil, fmt.Errorf("invalid key-step element %q", text)
			}
			steps = append(steps, step)
		case "key-alter":
			text := strings.TrimSpace(child.Text())
			value, ok := new(big.Rat).SetString(text)
			if !ok {
				return nil, fmt.Errorf("invalid key-alter element %q", text)
			}
			if value.Sign() > 0 {
				alterSymbols = append(alterSymbols, mtn.AccSharp)
			} else {
				alterSymbols = append(alterSymbols, mtn.AccFlat)
			}
		case "key-accidental":
			text := strings.TrimSpace(child.Text())
			if text == "" || len(alterSymbols) == 0 {
				continue
			}
			mapped, ok := accidentalMXML2MTN[text]
			if !ok {
				return nil, unsupportedf("accidental type %q", text)
			}
			alterSymbols[len(alterSymbols)-1] = mapped
		}
	}
	if len(steps) != len(alterSymbols) {
		return nil, fmt.Errorf("uneven key-step and key-alter elements")
	}

	alters := make([]*mtn.AccidentalType, 7)
	for i, step := range steps {
		symbol := alterSymbols[i]
		alters[int(step)] = &symbol
	}

	output := make(map[int]*mtn.Key, t.state.NStaves)
	for _, currStaff := range t.keyStaves(staff) {
		if t.state.Attributes().GetClef(currStaff) == nil {
			return nil, fmt.Errorf("no clef configuration for staff %d", currStaff)
		}
		k := mtn.NewKey(nil, nil, alters, nil)
		k.Accidentals = t.keyAlterTokens(steps, alterSymbols, currStaff)
		output[currStaff] = k
	}
	return output, nil
}

// keyAlterTokens places explicit key alterations one octave above the
// clef octave, folded into the printable range.
func (t *MXMLTranslator) keyAlterTokens(
	steps []mtn.NamedPitch,
	alters []mtn.AccidentalType,
	staff int,
) []*mtn.Token {
	clef := t.state.Attributes().GetClef(staff)
	output := make([]*mtn.Token, 0, len(steps))
	for i, step := range steps {
		position := clef.Pitch2Pos(mtn.NotePitch{
			Step:   step,
			Octave: clef.Octave + 1,
			Alter:  mtn.Frac(0, 1),
		})
		position = mtn.EnsureKeyRange(position)
		output = append(output, mtn.NewToken(
			mtn.TokenAccidental,
			map[string]string{"type": string(alters[i])},
			mtn.NewStaffPosition(staff, position),
			t.symbols.GiveIdentifier(),
		))
	}
	return output
}

func (t *MXMLTranslator) visitClef(clef *etree.Element) (*mtn.Clef, error) {
	signElement := clef.SelectElement("sign")
	if signElement == nil {
		return nil, fmt.Errorf("clef symbol without a sign")
	}
	sign := ClefSign(strings.TrimSpace(signElement.Text()))

	var clefType mtn.ClefType
	var signNote mtn.NamedPitch
	switch sign {
	case ClefSignTAB, ClefSignJianpu:
		return nil, unsupportedf("clef type %q", string(sign))
	case ClefSignNone:
		// A signless clef renders and behaves as a G clef.
		clefType = mtn.ClefG
		signNote = mtn.PitchG
	case ClefSignPercussion:
		clefType = clefMXML2MTN[sign]
		signNote = mtn.PitchG
	case ClefSignG, ClefSignF, ClefSignC:
		clefType = clefMXML2MTN[sign]
		signNote = signMXML2MTN[sign]
	default:
		return nil, fmt.Errorf("invalid clef sign %q", string(sign))
	}
	modifiers := map[string]string{"type": string(clefType)}

	staff, err := strconv.Atoi(clef.SelectAttrValue("number", "1"))
	if err != nil {
		return nil, fmt.Errorf("invalid clef number: %w", err)
	}

	printObject := clef.SelectAttrValue("print-object", "yes") == "yes"

	octave := mtn.DefaultClefOctave[signNote]
	if octElement := clef.SelectElement("clef-octave-change"); octElement != nil {
		text := strings.TrimSpace(octElement.Text())
		if text != "" {
			octChange, err := strconv.Atoi(text)
			if err != nil {
				return nil, fmt.Errorf("invalid clef octave change %q", text)
			}
			octave += octChange
			modifiers["oct"] = strconv.Itoa(octChange)
		}
	}

	clefPosition := mtn.DefaultClefPositions[signNote]
	if lineElement := clef.SelectElement("line"); lineElement != nil {
		text := strings.TrimSpace(lineElement.Text())
		if text != "" {
			line, err := strconv.Atoi(text)
			if err != nil {
				return nil, fmt.Errorf("invalid clef line %q", text)
			}
			clefPosition = 2 * line
		}
	}

	var clefToken *mtn.Token
	if printObject {
		clefToken = mtn.NewToken(
			mtn.TokenClef,
			modifiers,
			mtn.NewStaffPosition(staff, clefPosition),
			t.symbols.GiveIdentifier(),
		)
	}
	return mtn.NewClef(
		clefToken,
		signNote,
		octave,
		mtn.NewStaffPosition(staff, clefPosition),
	), nil
}

// visitTime converts a time element into a time signature plus the
// staff it applies to, or allStaves.
func (t *MXMLTranslator) visitTime(time *etree.Element) (*mtn.TimeSignature, int, error) {
	timeType := TimeSymbolValue(time.SelectAttrValue("symbol", "normal"))
	staff := allStaves
	if attr := time.SelectAttrValue("number", ""); attr != "" {
		n, err := strconv.Atoi(attr)
		if err != nil {
			return nil, 0, fmt.Errorf("invalid time number %q", attr)
		}
		staff = n
	}

	beats, beatType, err := extractBeatsAndType(time)
	if err != nil {
		return nil, 0, err
	}
	timeValue, parseTree, err := t.parseTime(beats, beatType)
	if err != nil {
		return nil, 0, err
	}
	output := mtn.NewTimeSignature(nil, nil, timeValue)

	// Hidden time signatures keep their value only.
	if time.SelectAttrValue("print-object", "yes") == "no" {
		return output, staff, nil
	}

	switch timeType {
	case TimeSymNormal:
		output.Compound = parseTree

		if interchangeable := time.SelectElement("interchangeable"); interchangeable != nil {
			intBeats, intBeatType, err := extractBeatsAndType(interchangeable)
			if err != nil {
				return nil, 0, err
			}
			_, interchParse, err := t.parseTime(intBeats, intBeatType)
			if err != nil {
				return nil, 0, err
			}
			relation := mtn.NewToken(
				mtn.TokenTimeRelation,
				map[string]string{"type": string(mtn.TimeEquals)},
				mtn.AnyStaffPosition(),
				t.symbols.GiveIdentifier(),
			)
			output.Compound = append(output.Compound, relation)
			output.Compound = append(output.Compound, interchParse...)
		}
	case TimeSymCut:
		output.TimeSymbol = mtn.NewToken(
			mtn.TokenTimesig,
			map[string]string{"type": string(mtn.TimeCut)},
			mtn.AnyStaffPosition(),
			t.symbols.GiveIdentifier(),
		)
	case TimeSymCommon:
		output.TimeSymbol = mtn.NewToken(
			mtn.TokenTimesig,
			map[string]string{"type": string(mtn.TimeCommon)},
			mtn.AnyStaffPosition(),
			t.symbols.GiveIdentifier(),
		)
	case TimeSymNote, TimeSymDottedNote:
		return nil, 0, unsupportedf("notes as time signatures")
	case TimeSymSingleNumber:
		return nil, 0, unsupportedf("single numbers as time signatures")
	default:
		return nil, 0, fmt.Errorf("invalid time symbol %q", string(timeType))
	}

	return output, staff, nil
}

// extractBeatsAndType gathers the aligned beats and beat-type children
// of a time element. Compound signatures carry several pairs.
func extractBeatsAndType(node *etree.Element) ([]string, []string, error) {
	var beats, beatType []string
	for _, elm := range node.SelectElements("beats") {
		if text := strings.TrimSpace(elm.Text()); text != "" {
			beats = append(beats, text)
		}
	}
	for _, elm := range node.SelectElements("beat-type") {
		if text := strings.TrimSpace(elm.Text()); text != "" {
			beatType = append(beatType, text)
		}
	}
	if len(beats) != len(beatType) {
		return nil, nil, fmt.Errorf("uneven number of beats and beat types in time signature")
	}
	return beats, beatType, nil
}

// parseTime converts aligned numerator and denominator strings into
// the time signature value in beats plus its printed parse tree.
// Numerators may themselves be sums, written "3+2".
func (t *MXMLTranslator) parseTime(
	numerators []string,
	denominators []string,
) (*big.Rat, []mtn.SyntaxNode, error) {
	total := mtn.Frac(0, 1)
	var output []mtn.SyntaxNode
	for ii := range numerators {
		if ii != 0 {
			output = append(output, t.plusToken(1))
		}
		numTerms := strings.Split(strings.ReplaceAll(numerators[ii], " ", ""), "+")
		var numeratorParts []mtn.SyntaxNode
		numValue := 0
		for jj, term := range numTerms {
			value, err := strconv.Atoi(term)
			if err != nil {
				return nil, nil, fmt.Errorf("invalid time signature numerator %q", numerators[ii])
			}
			numValue += value
			if jj != 0 {
				numeratorParts = append(numeratorParts, t.plusToken(1))
			}
			numeratorParts = append(numeratorParts, t.digitsNumber(term, 1))
		}
		numerator := mtn.NewNumerator(numeratorParts)

		denValue, err := strconv.Atoi(denominators[ii])
		if err != nil {
			return nil, nil, fmt.Errorf("invalid time signature denominator %q", denominators[ii])
		}
		denominator := mtn.NewDenominator(t.digitsNumber(denominators[ii], 1))
		output = append(output, mtn.NewTimesigFraction(numerator, denominator))

		// Four quarters to the whole: the value is carried in beats.
		total.Add(total, mtn.Frac(int64(numValue)*4, int64(denValue)))
	}
	return total, output, nil
}

func (t *MXMLTranslator) digitsNumber(text string, staff int) *mtn.Number {
	digits := make([]*mtn.Token, 0, len(text))
	for _, digit := range text {
		digits = append(digits, t.numberToken(int(digit-'0'), staff))
	}
	return mtn.NewNumber(digits)
}

func (t *MXMLTranslator) numberToken(num, staff int) *mtn.Token {
	position := mtn.AnyStaffPosition()
	if staff > 0 {
		position = mtn.StaffOnly(staff)
	}
	return mtn.NewToken(
		mtn.TokenNumber,
		map[string]string{"type": strconv.Itoa(num)},
		position,
		t.symbols.GiveIdentifier(),
	)
}

func (t *MXMLTranslator) plusToken(staff int) *mtn.Token {
	return mtn.NewToken(
		mtn.TokenPlus,
		nil,
		mtn.StaffOnly(staff),
		t.symbols.GiveIdentifier(),
	)
}

// visitBarline converts a barline element. Invisible barlines return
// nil.
func (t *MXMLTranslator) visitBarline(barline *etree.Element) (*mtn.Barline, error) {
	t.state.MoveBuffer()

	style := BarStyle("")
	var modifiers []*mtn.Token

	// Wavy lines on barlines are always continuations, which carry no
	// notation of their own, so they are skipped here.

	for _, child := range barline.ChildElements() {
		switch child.Tag {
		case "bar-style":
			style = BarStyle(strings.TrimSpace(child.Text()))
			if style == BarStyleNone {
				return nil, nil
			}
		case "segno":
			modifiers = append(modifiers, t.visitSegno())
		case "coda":
			modifiers = append(modifiers, t.visitCoda())
		case "fermata":
			modifiers = append(modifiers, t.visitFermata())
		case "repeat":
			repeat, err := t.visitRepeat(child)
			if err != nil {
				return nil, err
			}
			modifiers = append(modifiers, repeat)
		}
	}

	if style == "" {
		style = BarStyleRegular
	}
	styles, ok := barStyleMXML2MTN[style]
	if !ok {
		return nil, unsupportedf("barline style %q", string(style))
	}

	var barlineTime *big.Rat
	timesig := t.state.Attributes().GetTimesig(1)
	switch {
	case barline.SelectAttrValue("location", "") == "left":
		barlineTime = mtn.Frac(0, 1)
	case barline.SelectAttrValue("location", "") == "right" && timesig != nil:
		barlineTime = new(big.Rat).Set(timesig.TimeValue)
	default:
		barlineTime = t.state.CurrentTime()
	}

	tokens := make([]*mtn.Token, 0, len(styles))
	for _, s := range styles {
		tokens = append(tokens, t.barlineToken(s))
	}

	return mtn.NewBarline(barlineTime, tokens, modifiers), nil
}

func (t *MXMLTranslator) visitFermata() *mtn.Token {
	return mtn.NewToken(
		mtn.TokenFermata,
		nil,
		mtn.AnyStaffPosition(),
		t.symbols.GiveIdentifier(),
	)
}

func (t *MXMLTranslator) visitSegno() *mtn.Token {
	return mtn.NewToken(
		mtn.TokenSegno,
		nil,
		mtn.AnyStaffPosition(),
		t.symbols.GiveIdentifier(),
	)
}

func (t *MXMLTranslator) visitCoda() *mtn.Token {
	return mtn.NewToken(
		mtn.TokenCoda,
		nil,
		mtn.AnyStaffPosition(),
		t.symbols.GiveIdentifier(),
	)
}

func (t *MXMLTranslator) visitRepeat(repeat *etree.Element) (*mtn.Token, error) {
	direction := repeat.SelectAttrValue("direction", "forward")
	mapped, ok := bwfwMXML2MTN[direction]
	if !ok {
		return nil, fmt.Errorf("invalid repeat direction %q", direction)
	}
	return mtn.NewToken(
		mtn.TokenRepeat,
		map[string]string{"type": string(mapped)},
		mtn.AnyStaffPosition(),
		t.symbols.GiveIdentifier(),
	), nil
}
