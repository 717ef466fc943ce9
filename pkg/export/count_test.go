package export

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/CVC-DAG/comref-converter/pkg/mtn"
)

func TestCountNodes(t *testing.T) {
	score := sequenceFixture()

	// score + measure + group + chord + note/notehead + rest pair +
	// barline with one token.
	assert.Equal(t, 10, CountNodes(score))
	assert.Equal(t, 9, CountNodes(score.Measures[0]))
}

func TestCountNodesTuplet(t *testing.T) {
	tuplet := mtn.NewTuplet(
		mtn.NewNumber([]*mtn.Token{
			mtn.NewToken(mtn.TokenNumber, map[string]string{"type": "3"}, mtn.AnyStaffPosition(), 1),
		}),
		mtn.NewToken(mtn.TokenTuplet, nil, mtn.AnyStaffPosition(), 2),
	)

	// tuplet + its token + number wrapper + one digit.
	assert.Equal(t, 4, CountNodes(tuplet))
}

func TestCountNodesDirection(t *testing.T) {
	direction := mtn.NewDirection(mtn.Frac(0, 1), []*mtn.Token{
		mtn.NewToken(mtn.TokenDyn, map[string]string{"type": "p"}, mtn.StaffOnly(1), 1),
	})
	assert.Equal(t, 2, CountNodes(direction))
}
