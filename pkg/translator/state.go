package translator

import (
	"errors"
	"math/big"
	"sort"

	"github.com/CVC-DAG/comref-converter/pkg/mtn"
)

// attributeEntry pins an attributes object to the measure time it was
// declared at.
type attributeEntry struct {
	time  *big.Rat
	attrs *mtn.Attributes
}

// ScoreState tracks the translation state of a single part: the staff
// count, the division resolution, the measure clock and the attribute
// changes seen so far within the measure.
type ScoreState struct {
	NStaves   int
	Divisions int

	currentTime *big.Rat
	timeBuffer  *big.Rat

	// initial holds the attribute state at the start of the measure.
	// Later states are derived by folding stack entries over it.
	initial *mtn.Attributes
	current *mtn.Attributes
	stack   []attributeEntry
}

// NewScoreState builds the state for a fresh single-staff part with
// default attributes.
func NewScoreState() *ScoreState {
	initial := mtn.MakeEmptyAttributes(1, mtn.Frac(0, 1), true)
	return &ScoreState{
		NStaves:     1,
		Divisions:   1,
		currentTime: mtn.Frac(0, 1),
		timeBuffer:  mtn.Frac(0, 1),
		initial:     initial,
		current:     initial.Copy(),
	}
}

// CurrentTime returns the measure clock as a fresh rational.
func (s *ScoreState) CurrentTime() *big.Rat {
	return new(big.Rat).Set(s.currentTime)
}

// Attributes returns the attribute state active at the current time.
func (s *ScoreState) Attributes() *mtn.Attributes {
	return s.current
}

// SetAttributes records an attribute change at the current time and
// folds it into the active state. Changes landing on an already
// recorded time are merged into the existing entry.
func (s *ScoreState) SetAttributes(attributes *mtn.Attributes) {
	idx := sort.Search(len(s.stack), func(i int) bool {
		return s.stack[i].time.Cmp(s.currentTime) >= 0
	})
	if idx < len(s.stack) && s.stack[idx].time.Cmp(s.currentTime) == 0 {
		s.stack[idx].attrs.Merge(attributes)
	} else {
		entry := attributeEntry{time: s.CurrentTime(), attrs: attributes}
		s.stack = append(s.stack, attributeEntry{})
		copy(s.stack[idx+1:], s.stack[idx:])
		s.stack[idx] = entry
	}
	s.current.Merge(attributes)
}

// AttributeList returns every attribute change of the measure in time
// order.
func (s *ScoreState) AttributeList() []*mtn.Attributes {
	out := make([]*mtn.Attributes, 0, len(s.stack))
	for _, entry := range s.stack {
		out = append(out, entry.attrs)
	}
	return out
}

// IncrementTime flushes the buffer and moves the clock by a positive
// or negative amount.
func (s *ScoreState) IncrementTime(increment *big.Rat) {
	s.MoveBuffer()
	s.ChangeTime(new(big.Rat).Add(s.currentTime, increment))
}

// ChangeTime moves the measure clock. Moving backward rebuilds the
// active attributes from the initial state; moving forward folds the
// attribute changes the clock passes over. The buffer is discarded
// either way.
func (s *ScoreState) ChangeTime(time *big.Rat) {
	switch time.Cmp(s.currentTime) {
	case -1:
		if len(s.stack) > 0 {
			s.current = s.initial.Copy()
			for _, entry := range s.stack {
				if entry.time.Cmp(time) <= 0 {
					s.current.Merge(entry.attrs)
				}
			}
		}
	default:
		for _, entry := range s.stack {
			if entry.time.Cmp(s.currentTime) > 0 && entry.time.Cmp(time) <= 0 {
				s.current.Merge(entry.attrs)
			}
		}
	}
	s.currentTime = new(big.Rat).Set(time)
	s.timeBuffer = mtn.Frac(0, 1)
}

// SetBuffer flushes any pending buffer and schedules a new amount of
// time to pass on the next flush. The buffer is how chords keep their
// notes at the same delta while parsing element successions.
func (s *ScoreState) SetBuffer(buffer *big.Rat) {
	s.MoveBuffer()
	s.timeBuffer = new(big.Rat).Set(buffer)
}

// MoveBuffer advances the clock by the pending buffer, if any.
func (s *ScoreState) MoveBuffer() {
	if s.timeBuffer.Sign() != 0 {
		s.ChangeTime(new(big.Rat).Add(s.currentTime, s.timeBuffer))
	}
}

// ChangeStaves switches the part to a new staff count. Only legal at
// the very start of a measure.
func (s *ScoreState) ChangeStaves(nstaves int) {
	if s.currentTime.Sign() != 0 || len(s.stack) > 0 {
		panic("changing number of staves mid-measure")
	}
	s.initial.ChangeStaves(nstaves, true)
	s.current = s.initial.Copy()
	s.NStaves = nstaves
}

// NewMeasure folds every pending attribute change and restarts the
// clock, keeping the resulting attributes as the next measure's
// initial state.
func (s *ScoreState) NewMeasure() {
	if len(s.stack) > 0 {
		s.ChangeTime(s.stack[0].time)
		s.ChangeTime(s.stack[len(s.stack)-1].time)
	}
	s.initial = s.current
	s.current = s.initial.Copy()
	s.stack = nil
	s.currentTime = mtn.Frac(0, 1)
	s.timeBuffer = mtn.Frac(0, 1)
}

// StartAttributes returns the attribute state at the beginning of the
// measure, optionally with time signatures stripped.
func (s *ScoreState) StartAttributes(removeTimesig bool) *mtn.Attributes {
	initial := s.initial.Copy()
	if len(s.stack) > 0 && s.stack[0].time.Sign() == 0 {
		initial.Merge(s.stack[0].attrs)
	}
	if removeTimesig {
		for staff := range initial.Timesigs {
			initial.Timesigs[staff] = nil
		}
	}
	return initial
}

// GetDuration returns the measure duration according to the first
// staff carrying a time signature.
func (s *ScoreState) GetDuration() (*big.Rat, error) {
	for staff := 1; staff <= s.current.NStaves; staff++ {
		if timesig := s.current.Timesigs[staff]; timesig != nil {
			return new(big.Rat).Set(timesig.TimeValue), nil
		}
	}
	return nil, errors.New("no time semantics available for the current state")
}
