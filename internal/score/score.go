// Package score holds the symbolic note sequence that every other stage of
// the pipeline consumes, plus the helpers that build, vary and persist it.
package score

import (
	"sort"

	"github.com/pkg/errors"

	"github.com/cbegin/midiroll-go/internal/keys"
)

// NoFingering marks a note without a finger assignment.
const NoFingering = -1

const DefaultQPM = 120

var (
	ErrInvalidNote  = errors.New("invalid note")
	ErrInvalidScore = errors.New("invalid score")
)

// Note is a single key press. Part is the finger: 0-4 right hand thumb to
// pinky, 5-9 left hand thumb to pinky, NoFingering when unknown.
type Note struct {
	Start    float64
	End      float64
	Pitch    int
	Velocity int
	Part     int
}

func NewNote(start, end float64, pitch, velocity, part int) (Note, error) {
	n := Note{Start: start, End: end, Pitch: pitch, Velocity: velocity, Part: part}
	return n, n.Validate()
}

func (n Note) Validate() error {
	switch {
	case n.Start < 0:
		return errors.Wrapf(ErrInvalidNote, "start time should be non-negative, got %g", n.Start)
	case n.End <= n.Start:
		return errors.Wrapf(ErrInvalidNote, "end time %g should be after start time %g", n.End, n.Start)
	case n.Pitch < keys.MinMidiPitch || n.Pitch > keys.MaxMidiPitch:
		return errors.Wrapf(ErrInvalidNote, "pitch should be in [%d, %d], got %d", keys.MinMidiPitch, keys.MaxMidiPitch, n.Pitch)
	case n.Velocity < keys.MinVelocity || n.Velocity > keys.MaxVelocity:
		return errors.Wrapf(ErrInvalidNote, "velocity should be in [%d, %d], got %d", keys.MinVelocity, keys.MaxVelocity, n.Velocity)
	case n.Part != NoFingering && (n.Part < 0 || n.Part > 9):
		return errors.Wrapf(ErrInvalidNote, "part should be -1 or in [0, 9], got %d", n.Part)
	}
	return nil
}

func (n Note) Duration() float64 { return n.End - n.Start }

type ControlChange struct {
	Time   float64
	Number int
	Value  int
}

func NewControlChange(t float64, number, value int) (ControlChange, error) {
	cc := ControlChange{Time: t, Number: number, Value: value}
	return cc, cc.Validate()
}

func (cc ControlChange) Validate() error {
	switch {
	case cc.Time < 0:
		return errors.Wrapf(ErrInvalidNote, "control change time should be non-negative, got %g", cc.Time)
	case cc.Number < 0 || cc.Number > 127:
		return errors.Wrapf(ErrInvalidNote, "control number should be in [0, 127], got %d", cc.Number)
	case cc.Value < keys.MinCCValue || cc.Value > keys.MaxCCValue:
		return errors.Wrapf(ErrInvalidNote, "control value should be in [%d, %d], got %d", keys.MinCCValue, keys.MaxCCValue, cc.Value)
	}
	return nil
}

// Score is treated as immutable once built. Operations that change it return
// a new Score; no-op operations may return the receiver.
type Score struct {
	Notes          []Note
	ControlChanges []ControlChange
	TotalTime      float64
	QPM            float64
	Title          string
	Artist         string
}

// New validates every event and returns a Score. A zero totalTime is
// replaced by the latest note end or control change time.
func New(notes []Note, ccs []ControlChange, totalTime float64) (*Score, error) {
	if totalTime < 0 {
		return nil, errors.Wrapf(ErrInvalidScore, "total time should be non-negative, got %g", totalTime)
	}
	latest := 0.0
	for i, n := range notes {
		if err := n.Validate(); err != nil {
			return nil, errors.Wrapf(err, "note %d", i)
		}
		if n.End > latest {
			latest = n.End
		}
	}
	for i, cc := range ccs {
		if err := cc.Validate(); err != nil {
			return nil, errors.Wrapf(err, "control change %d", i)
		}
		if cc.Time > latest {
			latest = cc.Time
		}
	}
	if totalTime == 0 {
		totalTime = latest
	}
	return &Score{
		Notes:          append([]Note(nil), notes...),
		ControlChanges: append([]ControlChange(nil), ccs...),
		TotalTime:      totalTime,
		QPM:            DefaultQPM,
	}, nil
}

// Duration is the total time in seconds.
func (s *Score) Duration() float64 { return s.TotalTime }

func (s *Score) NumNotes() int { return len(s.Notes) }

// SortedNotes returns a copy of the notes ordered by start time. Ties keep
// their original order.
func (s *Score) SortedNotes() []Note {
	out := append([]Note(nil), s.Notes...)
	sort.SliceStable(out, func(i, j int) bool { return out[i].Start < out[j].Start })
	return out
}

// PitchBounds returns the lowest and highest pitch. ok is false for a score
// without notes.
func (s *Score) PitchBounds() (lo, hi int, ok bool) {
	if len(s.Notes) == 0 {
		return 0, 0, false
	}
	lo, hi = s.Notes[0].Pitch, s.Notes[0].Pitch
	for _, n := range s.Notes[1:] {
		if n.Pitch < lo {
			lo = n.Pitch
		}
		if n.Pitch > hi {
			hi = n.Pitch
		}
	}
	return lo, hi, true
}

// HasFingering reports whether the notes carry more than one distinct part
// and at least one of them is a real finger other than the right thumb.
func (s *Score) HasFingering() bool {
	parts := make(map[int]struct{})
	nonZero := false
	for _, n := range s.Notes {
		parts[n.Part] = struct{}{}
		if n.Part != 0 {
			nonZero = true
		}
	}
	return len(parts) > 1 && nonZero
}

func (s *Score) clone() *Score {
	c := *s
	c.Notes = append([]Note(nil), s.Notes...)
	c.ControlChanges = append([]ControlChange(nil), s.ControlChanges...)
	return &c
}
