package export

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gitlab.com/gomidi/midi/v2/smf"
)

func TestMIDIRender(t *testing.T) {
	score := buildTestScore(t)

	data, err := NewMIDIRenderer().Render(score)
	require.NoError(t, err)
	require.NotEmpty(t, data)
	assert.True(t, bytes.HasPrefix(data, []byte("MThd")))

	parsed, err := smf.ReadFrom(bytes.NewReader(data))
	require.NoError(t, err)
	assert.EqualValues(t, 1, parsed.NumTracks(), "one track per part")

	var ons, offs int
	for _, event := range parsed.Tracks[0] {
		var channel, key, velocity uint8
		switch {
		case event.Message.GetNoteStart(&channel, &key, &velocity):
			ons++
		case event.Message.GetNoteEnd(&channel, &key):
			offs++
		}
	}
	// Two beamed eighths, a dotted half and a whole note sound. The
	// rest and the barlines do not.
	assert.Equal(t, 4, ons)
	assert.Equal(t, ons, offs)
}

func TestMIDIRenderNilScore(t *testing.T) {
	_, err := NewMIDIRenderer().Render(nil)
	assert.Error(t, err)
}
