package export

import (
	"bytes"
	"errors"
	"math/big"
	"os"
	"sort"

	"gitlab.com/gomidi/midi/v2"
	"gitlab.com/gomidi/midi/v2/smf"

	"github.com/CVC-DAG/comref-converter/pkg/mtn"
)

// MIDIRenderer turns a translated score into a Standard MIDI File,
// one track per part. The render is meant for playback checks rather
// than engraving fidelity: grace and cue notes take no time and
// unpitched staves fall back to their printed position under a G clef.
type MIDIRenderer struct {
	ticksPerQuarter uint16
	tempo           float64
}

// NewMIDIRenderer builds a renderer with the default resolution and
// tempo.
func NewMIDIRenderer() *MIDIRenderer {
	return &MIDIRenderer{
		ticksPerQuarter: 480,
		tempo:           120.0,
	}
}

// stepSemitones maps a diatonic step to its chromatic offset within
// the octave.
var stepSemitones = map[mtn.NamedPitch]int{
	mtn.PitchC: 0,
	mtn.PitchD: 2,
	mtn.PitchE: 4,
	mtn.PitchF: 5,
	mtn.PitchG: 7,
	mtn.PitchA: 9,
	mtn.PitchB: 11,
}

// dynVelocity maps printed dynamics to key velocities.
var dynVelocity = map[mtn.DynamicsType]uint8{
	mtn.DynPPP: 16,
	mtn.DynPP:  33,
	mtn.DynP:   49,
	mtn.DynMP:  64,
	mtn.DynMF:  80,
	mtn.DynF:   96,
	mtn.DynFF:  112,
	mtn.DynFFF: 126,
	mtn.DynSF:  112,
	mtn.DynSFZ: 112,
	mtn.DynFP:  96,
}

const defaultVelocity = 80

type midiEvent struct {
	tick uint32
	off  bool
	key  uint8
	vel  uint8
}

// Render produces the SMF bytes for a score.
func (r *MIDIRenderer) Render(score *mtn.Score) ([]byte, error) {
	if score == nil {
		return nil, errors.New("nil score")
	}

	s := smf.New()
	s.TimeFormat = smf.MetricTicks(r.ticksPerQuarter)

	for _, part := range splitParts(score) {
		track, err := r.renderPart(part)
		if err != nil {
			return nil, err
		}
		if err := s.Add(track); err != nil {
			return nil, err
		}
	}

	var buf bytes.Buffer
	if _, err := s.WriteTo(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// RenderFile renders a score straight to disk.
func (r *MIDIRenderer) RenderFile(score *mtn.Score, filename string) error {
	data, err := r.Render(score)
	if err != nil {
		return err
	}
	return os.WriteFile(filename, data, 0644)
}

// splitParts slices the measure list into runs sharing a part id.
func splitParts(score *mtn.Score) [][]*mtn.Measure {
	var parts [][]*mtn.Measure
	for _, measure := range score.Measures {
		if len(parts) == 0 || parts[len(parts)-1][0].PartID != measure.PartID {
			parts = append(parts, []*mtn.Measure{measure})
			continue
		}
		parts[len(parts)-1] = append(parts[len(parts)-1], measure)
	}
	return parts
}

func (r *MIDIRenderer) renderPart(measures []*mtn.Measure) (smf.Track, error) {
	var track smf.Track

	microsecondsPerBeat := uint32(60000000.0 / r.tempo)
	track.Add(0, smf.Message([]byte{
		0xFF, 0x51, 0x03,
		byte(microsecondsPerBeat >> 16),
		byte(microsecondsPerBeat >> 8),
		byte(microsecondsPerBeat),
	}))

	clefs := map[int]*mtn.Clef{}
	keys := map[int]*mtn.Key{}
	velocity := uint8(defaultVelocity)

	var events []midiEvent
	partStart := mtn.Frac(0, 1)
	meterEmitted := false

	for _, measure := range measures {
		// Accidentals carry to the end of the measure on their pitch.
		carried := map[int]*big.Rat{}

		for _, element := range measure.Elements {
			switch node := element.(type) {
			case *mtn.Attributes:
				for staff, clef := range node.Clefs {
					if clef != nil {
						clefs[staff] = clef
					}
				}
				for staff, key := range node.Keys {
					if key != nil {
						keys[staff] = key
					}
				}
				if timesig := node.Timesigs[1]; timesig != nil && !meterEmitted {
					if meta, ok := meterMessage(timesig.TimeValue); ok {
						track.Add(0, meta)
						meterEmitted = true
					}
				}
			case *mtn.Direction:
				for _, directive := range node.Directives {
					if directive.TokenType != mtn.TokenDyn {
						continue
					}
					if vel, ok := dynVelocity[mtn.DynamicsType(directive.Modifiers["type"])]; ok {
						velocity = vel
					}
				}
			case *mtn.NoteGroup:
				groupEnd := new(big.Rat).Add(node.Delta(), groupDuration(measure, node))
				events = r.groupEvents(events, node, partStart, groupEnd, clefs, keys, carried, velocity)
			}
		}
		partStart.Add(partStart, measure.Duration)
	}

	sort.SliceStable(events, func(i, j int) bool {
		if events[i].tick != events[j].tick {
			return events[i].tick < events[j].tick
		}
		// Close sounding notes before opening new ones.
		return events[i].off && !events[j].off
	})

	var lastTick uint32
	for _, ev := range events {
		delta := ev.tick - lastTick
		lastTick = ev.tick
		if ev.off {
			track.Add(delta, midi.NoteOff(0, ev.key))
		} else {
			track.Add(delta, midi.NoteOn(0, ev.key, ev.vel))
		}
	}
	track.Close(0)
	return track, nil
}

// groupDuration is the time until the next sounding element of the
// measure, or until the barline for the last one.
func groupDuration(measure *mtn.Measure, group *mtn.NoteGroup) *big.Rat {
	onset := group.Delta()
	next := measure.Duration
	for _, element := range measure.Elements {
		switch element.(type) {
		case *mtn.NoteGroup, *mtn.Rest:
			if element.Delta().Cmp(onset) > 0 && element.Delta().Cmp(next) < 0 {
				next = element.Delta()
			}
		}
	}
	return new(big.Rat).Sub(next, onset)
}

func (r *MIDIRenderer) groupEvents(
	events []midiEvent,
	group *mtn.NoteGroup,
	partStart, groupEnd *big.Rat,
	clefs map[int]*mtn.Clef,
	keys map[int]*mtn.Key,
	carried map[int]*big.Rat,
	velocity uint8,
) []midiEvent {
	chords := collectChords(group)

	for _, chord := range chords {
		// A chord sounds until the next chord of the group, or until
		// the group itself ends.
		off := groupEnd
		for _, other := range chords {
			if other.Delta.Cmp(chord.Delta) > 0 && other.Delta.Cmp(off) < 0 {
				off = other.Delta
			}
		}
		onTick := r.beats2Ticks(new(big.Rat).Add(partStart, chord.Delta))
		offTick := r.beats2Ticks(new(big.Rat).Add(partStart, off))

		for _, note := range chord.Notes {
			head := note.Notehead
			if head.Modifiers["grace"] != "" || head.Modifiers["cue"] != "" {
				continue
			}
			staff, ok := head.Position.Staff()
			if !ok {
				staff = 1
			}
			position, ok := head.Position.Position()
			if !ok {
				continue
			}
			clef := clefs[staff]
			if clef == nil {
				clef = mtn.DefaultClef(staff)
				clefs[staff] = clef
			}
			pitch := clef.Pos2Pitch(position)

			alter := noteAlteration(note, pitch, staff, keys[staff], carried)
			key, ok := midiKey(pitch, alter)
			if !ok {
				continue
			}
			events = append(events,
				midiEvent{tick: onTick, key: key, vel: velocity},
				midiEvent{tick: offTick, off: true, key: key},
			)
		}
	}
	return events
}

// noteAlteration resolves the sounding alteration of a note: printed
// accidentals win, then accidentals carried within the measure, then
// the key signature.
func noteAlteration(
	note *mtn.Note,
	pitch mtn.NotePitch,
	staff int,
	key *mtn.Key,
	carried map[int]*big.Rat,
) *big.Rat {
	ordinal := 1000*staff + pitch.Ordinal()
	if len(note.Accidentals) > 0 {
		acc := mtn.AccidentalType(note.Accidentals[0].Modifiers["type"])
		if alter, ok := mtn.AccidentalAlter[acc]; ok {
			carried[ordinal] = alter
			return alter
		}
	}
	if alter, ok := carried[ordinal]; ok {
		return alter
	}
	if key != nil {
		if acc := key.Alterations[int(pitch.Step)]; acc != nil {
			return mtn.AccidentalAlter[*acc]
		}
	}
	return nil
}

func collectChords(group *mtn.NoteGroup) []*mtn.Chord {
	var chords []*mtn.Chord
	for _, child := range group.Children {
		switch node := child.(type) {
		case *mtn.Chord:
			chords = append(chords, node)
		case *mtn.NoteGroup:
			chords = append(chords, collectChords(node)...)
		}
	}
	return chords
}

func midiKey(pitch mtn.NotePitch, alter *big.Rat) (uint8, bool) {
	key := (pitch.Octave+1)*12 + stepSemitones[pitch.Step]
	if alter != nil {
		// Microtonal alterations round to the nearest semitone.
		shifted := new(big.Rat).Add(alter, mtn.Frac(1, 2))
		quo := new(big.Int)
		quo.DivMod(shifted.Num(), shifted.Denom(), new(big.Int))
		key += int(quo.Int64())
	}
	if key < 0 || key > 127 {
		return 0, false
	}
	return uint8(key), true
}

func (r *MIDIRenderer) beats2Ticks(beats *big.Rat) uint32 {
	ticks := new(big.Rat).Mul(beats, mtn.Frac(int64(r.ticksPerQuarter), 1))
	num := new(big.Int).Set(ticks.Num())
	den := ticks.Denom()
	half := new(big.Int).Div(den, big.NewInt(2))
	num.Add(num, half)
	num.Div(num, den)
	return uint32(num.Int64())
}

// meterMessage encodes a time signature meta event for integral beat
// counts. Irregular measure lengths are skipped.
func meterMessage(timeValue *big.Rat) (smf.Message, bool) {
	if !timeValue.IsInt() {
		return nil, false
	}
	beats := timeValue.Num().Int64()
	if beats < 1 || beats > 32 {
		return nil, false
	}
	return smf.Message([]byte{0xFF, 0x58, 0x04, byte(beats), 0x02, 0x18, 0x08}), true
}
