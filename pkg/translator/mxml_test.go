package translator

import (
	"testing"

	"github.com/beevik/etree"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/CVC-DAG/comref-converter/pkg/mtn"
)

func translateString(t *testing.T, xml string, firstLine FirstLineSet) *mtn.Score {
	t.Helper()
	doc := etree.NewDocument()
	require.NoError(t, doc.ReadFromString(xml))

	score, err := NewMXMLTranslator().Translate(doc, "test", firstLine)
	require.NoError(t, err)
	return score
}

func measureXML(body string) string {
	return `<score-partwise version="4.0">
  <part id="P1">
    <measure number="1">` + body + `
    </measure>
  </part>
</score-partwise>`
}

func TestTranslateSingleQuarterNote(t *testing.T) {
	score := translateString(t, measureXML(`
      <attributes>
        <divisions>1</divisions>
        <key><fifths>0</fifths></key>
        <time><beats>4</beats><beat-type>4</beat-type></time>
        <clef><sign>G</sign><line>2</line></clef>
      </attributes>
      <note>
        <pitch><step>C</step><octave>4</octave></pitch>
        <duration>1</duration>
        <type>quarter</type>
      </note>`), nil)

	require.Len(t, score.Measures, 1)
	measure := score.Measures[0]

	assert.Equal(t, "P1", measure.PartID)
	assert.Equal(t, "1", measure.MeasureID)
	assert.Equal(t, 1, measure.Staves)
	assert.True(t, mtn.RatEq(mtn.Frac(4, 1), measure.Duration))

	require.Len(t, measure.Elements, 2)
	attrs, ok := measure.Elements[0].(*mtn.Attributes)
	require.True(t, ok, "attributes should sort first")
	assert.Zero(t, attrs.Delta().Sign())
	require.NotNil(t, attrs.GetClef(1))
	require.NotNil(t, attrs.GetTimesig(1))
	require.NotNil(t, attrs.GetKey(1))

	group, ok := measure.Elements[1].(*mtn.NoteGroup)
	require.True(t, ok, "the note should become a note group")
	assert.Zero(t, group.Delta().Sign())
	assert.Empty(t, group.Appendages, "quarter notes carry no flags")

	require.Len(t, group.Children, 1)
	chord, ok := group.Children[0].(*mtn.Chord)
	require.True(t, ok)
	assert.Nil(t, chord.Stem)

	require.Len(t, chord.Notes, 1)
	notehead := chord.Notes[0].Notehead
	require.NotNil(t, notehead)
	assert.Equal(t, mtn.TokenNotehead, notehead.TokenType)
	assert.Equal(t, string(mtn.HeadBlack), notehead.Modifiers["type"])
	assert.Equal(t, mtn.NewStaffPosition(1, 0), notehead.Position,
		"C4 under a G clef sits on the first ledger line below the staff")

	require.NotNil(t, measure.RightBarline, "parts must end on a barline")
	assert.Nil(t, measure.LeftBarline)
}

func TestTranslateBeamedEighths(t *testing.T) {
	score := translateString(t, measureXML(`
      <attributes>
        <divisions>2</divisions>
        <time><beats>4</beats><beat-type>4</beat-type></time>
        <clef><sign>G</sign><line>2</line></clef>
      </attributes>
      <note>
        <pitch><step>G</step><octave>4</octave></pitch>
        <duration>1</duration>
        <type>eighth</type>
        <beam number="1">begin</beam>
      </note>
      <note>
        <pitch><step>A</step><octave>4</octave></pitch>
        <duration>1</duration>
        <type>eighth</type>
        <beam number="1">end</beam>
      </note>`), nil)

	require.Len(t, score.Measures, 1)
	measure := score.Measures[0]

	var groups []*mtn.NoteGroup
	for _, element := range measure.Elements {
		if group, ok := element.(*mtn.NoteGroup); ok {
			groups = append(groups, group)
		}
	}
	require.Len(t, groups, 1, "both eighths share a single group")
	group := groups[0]

	require.Len(t, group.Appendages, 1)
	assert.Equal(t, mtn.TokenBeam, group.Appendages[0].TokenType)

	require.Len(t, group.Children, 2)
	first, ok := group.Children[0].(*mtn.Chord)
	require.True(t, ok)
	second, ok := group.Children[1].(*mtn.Chord)
	require.True(t, ok)
	assert.Zero(t, first.Delta.Sign())
	assert.True(t, mtn.RatEq(mtn.Frac(1, 2), second.Delta))

	assert.Equal(t, mtn.NewStaffPosition(1, 4), first.Notes[0].Notehead.Position)
	assert.Equal(t, mtn.NewStaffPosition(1, 5), second.Notes[0].Notehead.Position)
}

func TestTranslateChordElement(t *testing.T) {
	score := translateString(t, measureXML(`
      <attributes>
        <divisions>1</divisions>
        <time><beats>4</beats><beat-type>4</beat-type></time>
        <clef><sign>G</sign><line>2</line></clef>
      </attributes>
      <note>
        <pitch><step>C</step><octave>4</octave></pitch>
        <duration>4</duration>
        <type>whole</type>
      </note>
      <note>
        <chord/>
        <pitch><step>E</step><octave>4</octave></pitch>
        <duration>4</duration>
        <type>whole</type>
      </note>`), nil)

	require.Len(t, score.Measures, 1)
	var groups []*mtn.NoteGroup
	for _, element := range score.Measures[0].Elements {
		if group, ok := element.(*mtn.NoteGroup); ok {
			groups = append(groups, group)
		}
	}
	require.Len(t, groups, 1)

	chord, ok := groups[0].Children[0].(*mtn.Chord)
	require.True(t, ok)
	require.Len(t, chord.Notes, 2, "the chord element joins the open chord")
	assert.Equal(t, mtn.NewStaffPosition(1, 0), chord.Notes[0].Notehead.Position)
	assert.Equal(t, mtn.NewStaffPosition(1, 2), chord.Notes[1].Notehead.Position)
}

func TestTranslateRest(t *testing.T) {
	score := translateString(t, measureXML(`
      <attributes>
        <divisions>1</divisions>
        <time><beats>4</beats><beat-type>4</beat-type></time>
        <clef><sign>G</sign><line>2</line></clef>
      </attributes>
      <note>
        <rest/>
        <duration>2</duration>
        <type>half</type>
      </note>
      <note>
        <pitch><step>C</step><octave>5</octave></pitch>
        <duration>2</duration>
        <type>half</type>
      </note>`), nil)

	require.Len(t, score.Measures, 1)
	measure := score.Measures[0]

	var rest *mtn.Rest
	var group *mtn.NoteGroup
	for _, element := range measure.Elements {
		switch e := element.(type) {
		case *mtn.Rest:
			rest = e
		case *mtn.NoteGroup:
			group = e
		}
	}
	require.NotNil(t, rest)
	require.NotNil(t, group)

	assert.Zero(t, rest.Delta().Sign())
	assert.Equal(t, mtn.TokenRest, rest.RestToken.TokenType)
	assert.Equal(t, string(mtn.NoteHalf), rest.RestToken.Modifiers["type"])

	assert.True(t, mtn.RatEq(mtn.Frac(2, 1), group.Delta()),
		"the note starts after the rest")
}

func TestBarlineStitching(t *testing.T) {
	note := `
      <note>
        <pitch><step>C</step><octave>4</octave></pitch>
        <duration>4</duration>
        <type>whole</type>
      </note>`
	score := translateString(t, `<score-partwise version="4.0">
  <part id="P1">
    <measure number="1">
      <attributes>
        <divisions>1</divisions>
        <time><beats>4</beats><beat-type>4</beat-type></time>
        <clef><sign>G</sign><line>2</line></clef>
      </attributes>`+note+`
    </measure>
    <measure number="2">`+note+`
    </measure>
  </part>
</score-partwise>`, nil)

	require.Len(t, score.Measures, 2)
	first, second := score.Measures[0], score.Measures[1]

	require.NotNil(t, first.RightBarline)
	require.NotNil(t, second.LeftBarline)
	require.NotNil(t, second.RightBarline)
	assert.Nil(t, first.LeftBarline)

	assert.True(t, mtn.RatEq(first.Duration, first.RightBarline.Delta()))
	assert.Zero(t, second.LeftBarline.Delta().Sign())

	// The stitched barlines are copies of one another, not shared nodes.
	require.Len(t, first.RightBarline.BarlineTokens, 1)
	require.Len(t, second.LeftBarline.BarlineTokens, 1)
	right, left := first.RightBarline.BarlineTokens[0], second.LeftBarline.BarlineTokens[0]
	assert.NotSame(t, right, left)
	assert.True(t, right.Compare(left))
	assert.NotEqual(t, right.ID, left.ID,
		"stitched barlines must carry distinct token ids")
	assert.Equal(t, string(mtn.BarRegular), right.Modifiers["type"])
}

func TestPropagatedBarlineGetsFreshIDs(t *testing.T) {
	note := `
      <note>
        <pitch><step>C</step><octave>4</octave></pitch>
        <duration>4</duration>
        <type>whole</type>
      </note>`
	score := translateString(t, `<score-partwise version="4.0">
  <part id="P1">
    <measure number="1">
      <attributes>
        <divisions>1</divisions>
        <time><beats>4</beats><beat-type>4</beat-type></time>
        <clef><sign>G</sign><line>2</line></clef>
      </attributes>`+note+`
      <barline location="right">
        <bar-style>light-light</bar-style>
      </barline>
    </measure>
    <measure number="2">`+note+`
    </measure>
  </part>
</score-partwise>`, nil)

	require.Len(t, score.Measures, 2)
	first, second := score.Measures[0], score.Measures[1]
	require.NotNil(t, first.RightBarline)
	require.NotNil(t, second.LeftBarline)
	require.Len(t, first.RightBarline.BarlineTokens, 2)
	require.Len(t, second.LeftBarline.BarlineTokens, 2)

	for i, right := range first.RightBarline.BarlineTokens {
		left := second.LeftBarline.BarlineTokens[i]
		assert.True(t, right.Compare(left))
		assert.NotEqual(t, right.ID, left.ID,
			"propagated barline token %d must carry a fresh id", i)
	}
}

func TestExplicitRightBarlineKept(t *testing.T) {
	score := translateString(t, measureXML(`
      <attributes>
        <divisions>1</divisions>
        <time><beats>4</beats><beat-type>4</beat-type></time>
        <clef><sign>G</sign><line>2</line></clef>
      </attributes>
      <note>
        <pitch><step>C</step><octave>4</octave></pitch>
        <duration>4</duration>
        <type>whole</type>
      </note>
      <barline location="right">
        <bar-style>light-heavy</bar-style>
      </barline>`), nil)

	require.Len(t, score.Measures, 1)
	measure := score.Measures[0]
	require.NotNil(t, measure.RightBarline)
	require.Len(t, measure.RightBarline.BarlineTokens, 2,
		"a light-heavy style draws two barline tokens")
	assert.Equal(t, string(mtn.BarRegular), measure.RightBarline.BarlineTokens[0].Modifiers["type"])
	assert.Equal(t, string(mtn.BarHeavy), measure.RightBarline.BarlineTokens[1].Modifiers["type"])
}

func TestFirstLineRestatesClefAndKey(t *testing.T) {
	note := `
      <note>
        <pitch><step>C</step><octave>4</octave></pitch>
        <duration>4</duration>
        <type>whole</type>
      </note>`
	firstLine := FirstLineSet{{Part: "P1", Measure: "2"}: struct{}{}}
	score := translateString(t, `<score-partwise version="4.0">
  <part id="P1">
    <measure number="1">
      <attributes>
        <divisions>1</divisions>
        <key><fifths>2</fifths></key>
        <time><beats>4</beats><beat-type>4</beat-type></time>
        <clef><sign>G</sign><line>2</line></clef>
      </attributes>`+note+`
    </measure>
    <measure number="2">`+note+`
    </measure>
  </part>
</score-partwise>`, firstLine)

	require.Len(t, score.Measures, 2)
	second := score.Measures[1]

	require.NotEmpty(t, second.Elements)
	attrs, ok := second.Elements[0].(*mtn.Attributes)
	require.True(t, ok, "the line start restates the attributes")

	clef := attrs.GetClef(1)
	require.NotNil(t, clef)
	assert.Equal(t, mtn.PitchG, clef.Sign)

	key := attrs.GetKey(1)
	require.NotNil(t, key)
	require.NotNil(t, key.Fifths)
	assert.Equal(t, 2, *key.Fifths)
	require.Len(t, key.Accidentals, 2, "two sharps are drawn for D major")
	assert.Equal(t, []int{7, 10}, []int{
		positionOf(key.Accidentals[0]),
		positionOf(key.Accidentals[1]),
	})

	// No time signature restated at line starts.
	assert.Nil(t, attrs.GetTimesig(1))

	// Restated tokens carry fresh identifiers.
	firstAttrs := score.Measures[0].Elements[0].(*mtn.Attributes)
	originalClef := firstAttrs.GetClef(1)
	require.NotNil(t, originalClef)
	if clef.ClefToken != nil && originalClef.ClefToken != nil {
		assert.NotEqual(t, originalClef.ClefToken.ID, clef.ClefToken.ID)
	}
}
