package export

import (
	"strings"
	"testing"

	"github.com/beevik/etree"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/CVC-DAG/comref-converter/pkg/mtn"
	"github.com/CVC-DAG/comref-converter/pkg/translator"
)

const twoMeasureMusicXML = `<score-partwise version="4.0">
  <part id="P1">
    <measure number="1">
      <attributes>
        <divisions>2</divisions>
        <key><fifths>2</fifths></key>
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
      </note>
      <note>
        <rest/>
        <duration>2</duration>
        <type>quarter</type>
      </note>
      <note>
        <pitch><step>C</step><octave>5</octave></pitch>
        <duration>6</duration>
        <type>half</type>
        <dot/>
      </note>
    </measure>
    <measure number="2">
      <note>
        <pitch><step>D</step><octave>5</octave></pitch>
        <duration>8</duration>
        <type>whole</type>
      </note>
    </measure>
  </part>
</score-partwise>`

func buildTestScore(t *testing.T) *mtn.Score {
	t.Helper()
	doc := etree.NewDocument()
	require.NoError(t, doc.ReadFromString(twoMeasureMusicXML))

	score, err := translator.NewMXMLTranslator().Translate(doc, "test", nil)
	require.NoError(t, err)
	return score
}

func TestXMLRoundTrip(t *testing.T) {
	score := buildTestScore(t)

	text, err := NewXMLWriter(false).WriteScore(score).WriteToString()
	require.NoError(t, err)

	reparsed := etree.NewDocument()
	require.NoError(t, reparsed.ReadFromString(text))
	loaded, err := translator.NewMTNXMLTranslator().Translate(reparsed, "test", nil)
	require.NoError(t, err)

	if !score.Compare(loaded) {
		t.Fatalf("round trip changed the score: %v", score.Diff(loaded))
	}
}

func TestXMLWriterShape(t *testing.T) {
	score := buildTestScore(t)
	doc := NewXMLWriter(false).WriteScore(score)

	root := doc.Root()
	require.NotNil(t, root)
	assert.Equal(t, "score", root.Tag)
	assert.Equal(t, "test", root.SelectAttrValue("id", ""))

	measures := root.ChildElements()
	require.Len(t, measures, 2)

	first := measures[0]
	assert.Equal(t, "measure", first.Tag)
	assert.Equal(t, "P1", first.SelectAttrValue("part_id", ""))
	assert.Equal(t, "1", first.SelectAttrValue("measure_id", ""))
	assert.Equal(t, "1", first.SelectAttrValue("staves", ""))

	children := first.ChildElements()
	require.NotEmpty(t, children)
	assert.Equal(t, "barline", children[len(children)-1].Tag,
		"the right barline closes the measure")

	second := measures[1]
	secondChildren := second.ChildElements()
	require.NotEmpty(t, secondChildren)
	assert.Equal(t, "barline", secondChildren[0].Tag,
		"the stitched left barline opens the measure")
}

func TestXMLWriterIgnoreID(t *testing.T) {
	score := buildTestScore(t)

	withIDs, err := NewXMLWriter(false).WriteScore(score).WriteToString()
	require.NoError(t, err)
	withoutIDs, err := NewXMLWriter(true).WriteScore(score).WriteToString()
	require.NoError(t, err)

	assert.Contains(t, withIDs, `id="`)

	reparsed := etree.NewDocument()
	require.NoError(t, reparsed.ReadFromString(withoutIDs))
	assertNoIDAttrs(t, reparsed.Root())
}

func assertNoIDAttrs(t *testing.T, element *etree.Element) {
	t.Helper()
	if element.Tag != "score" && element.SelectAttr("id") != nil {
		t.Errorf("element %s still carries an id attribute", element.Tag)
	}
	for _, child := range element.ChildElements() {
		assertNoIDAttrs(t, child)
	}
}

func TestXMLWriterKeyAccidentals(t *testing.T) {
	score := buildTestScore(t)
	doc := NewXMLWriter(false).WriteScore(score)

	attrs := doc.Root().ChildElements()[0].SelectElement("attributes")
	require.NotNil(t, attrs)

	key := attrs.SelectElement("key")
	require.NotNil(t, key, "a two-sharp key is a printed key")
	assert.Equal(t, "1", key.SelectAttrValue("staff", ""))

	accidentals := key.ChildElements()
	require.Len(t, accidentals, 2)
	for _, accidental := range accidentals {
		assert.Equal(t, "accidental", accidental.Tag)
		assert.Equal(t, "sharp", accidental.SelectAttrValue("type", ""))
		assert.NotEmpty(t, accidental.SelectAttrValue("position", ""))
		assert.Empty(t, accidental.SelectAttrValue("staff", ""),
			"accidentals inherit the staff of the wrapping key")
	}
}

func TestXMLWriterStripsRedundantNotePositions(t *testing.T) {
	score := buildTestScore(t)

	text, err := NewXMLWriter(true).WriteScore(score).WriteToString()
	require.NoError(t, err)

	doc := etree.NewDocument()
	require.NoError(t, doc.ReadFromString(text))

	for _, note := range doc.FindElements("//note") {
		for _, child := range note.ChildElements() {
			if child.Tag == "notehead" {
				assert.NotEmpty(t, child.SelectAttrValue("position", ""))
				continue
			}
			assert.Empty(t, child.SelectAttrValue("position", ""),
				"only the notehead carries a position inside a note")
		}
	}
	require.NotEmpty(t, doc.FindElements("//note"))
	assert.False(t, strings.Contains(text, "score-partwise"))
}
