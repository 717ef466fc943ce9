package export

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/CVC-DAG/comref-converter/pkg/mtn"
	"github.com/CVC-DAG/comref-converter/pkg/translator"
)

func sequenceFixture() *mtn.Score {
	notehead := mtn.NewToken(
		mtn.TokenNotehead,
		map[string]string{"type": "black"},
		mtn.NewStaffPosition(1, 4),
		1,
	)
	chord := mtn.NewChord(mtn.Frac(0, 1), nil, []*mtn.Note{
		mtn.NewNote(notehead, nil, nil, nil),
	})
	group := mtn.NewNoteGroup(mtn.Frac(0, 1), []mtn.GroupChild{chord}, nil)

	rest := mtn.NewRest(
		mtn.Frac(1, 1),
		mtn.NewToken(mtn.TokenRest, map[string]string{"type": "quarter"}, mtn.StaffOnly(1), 2),
		nil,
		nil,
	)

	right := mtn.NewBarline(mtn.Frac(2, 1), []*mtn.Token{
		mtn.NewToken(mtn.TokenBarline, map[string]string{"type": "regular"}, mtn.AnyStaffPosition(), 3),
	}, nil)

	measure := mtn.NewMeasure(
		[]mtn.TopLevel{group, rest},
		nil,
		right,
		1,
		"1",
		"P1",
		mtn.Frac(2, 1),
	)
	return mtn.NewScore([]*mtn.Measure{measure}, "seq")
}

func TestSequenceStateful(t *testing.T) {
	sequences := NewSequenceWriter(true, true).WriteScore(sequenceFixture())

	key := translator.MeasureID{Part: "P1", Measure: "1"}
	require.Contains(t, sequences, key)
	assert.Equal(t, []string{
		"group:begin",
		"notehead:type=black",
		"staff:1",
		"position:4",
		"group:end",
		"delta:1",
		"rest:type=quarter",
		"delta:2",
		"barline_tok:type=regular",
	}, sequences[key])
}

func TestSequenceStateless(t *testing.T) {
	sequences := NewSequenceWriter(false, true).WriteScore(sequenceFixture())

	key := translator.MeasureID{Part: "P1", Measure: "1"}
	require.Contains(t, sequences, key)
	assert.Equal(t, "delta:0", sequences[key][0],
		"stateless sequences repeat every delta")
}

func TestSequenceNumberModes(t *testing.T) {
	digit := func(value string, id int) *mtn.Token {
		return mtn.NewToken(
			mtn.TokenNumber,
			map[string]string{"type": value},
			mtn.AnyStaffPosition(),
			id,
		)
	}
	fraction := mtn.NewTimesigFraction(
		mtn.NewNumerator([]mtn.SyntaxNode{mtn.NewNumber([]*mtn.Token{digit("3", 1)})}),
		mtn.NewDenominator(mtn.NewNumber([]*mtn.Token{digit("8", 2)})),
	)

	simple := mtn.NewTimeSignature(nil, []mtn.SyntaxNode{fraction}, mtn.Frac(3, 2)).
		Accept(NewSequenceWriter(true, true)).([]string)
	assert.Equal(t, []string{"(3/8)"}, simple)

	verbose := mtn.NewTimeSignature(nil, []mtn.SyntaxNode{fraction}, mtn.Frac(3, 2)).
		Accept(NewSequenceWriter(true, false)).([]string)
	assert.Equal(t, []string{"(", "number:type=3", "/", "number:type=8", ")"}, verbose)
}

func TestSequenceDeltaResetsPerMeasure(t *testing.T) {
	score := sequenceFixture()
	second := mtn.NewMeasure(
		[]mtn.TopLevel{mtn.NewRest(
			mtn.Frac(0, 1),
			mtn.NewToken(mtn.TokenRest, map[string]string{"type": "half"}, mtn.StaffOnly(1), 4),
			nil,
			nil,
		)},
		nil,
		nil,
		1,
		"2",
		"P1",
		mtn.Frac(2, 1),
	)
	score.Measures = append(score.Measures, second)

	sequences := NewSequenceWriter(true, true).WriteScore(score)
	key := translator.MeasureID{Part: "P1", Measure: "2"}
	require.Contains(t, sequences, key)
	assert.Equal(t, []string{"rest:type=half"}, sequences[key],
		"the measure clock restarts at zero")
}
