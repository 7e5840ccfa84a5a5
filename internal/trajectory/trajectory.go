// Package trajectory turns a score into the per-timestep goal sequence a
// control loop tracks: which piano notes should be down and whether the
// sustain pedal is pressed.
package trajectory

import (
	"iter"
	"math"

	"github.com/pkg/errors"

	"github.com/cbegin/midiroll-go/internal/keys"
	"github.com/cbegin/midiroll-go/internal/pianoroll"
	"github.com/cbegin/midiroll-go/internal/score"
)

var ErrInvalid = errors.New("invalid trajectory")

// PianoNote is a note as seen at one timestep.
type PianoNote struct {
	Number    int
	Velocity  int
	Key       int
	Name      string
	Fingering int
}

func NewPianoNote(number, velocity, fingering int) (PianoNote, error) {
	if velocity < keys.MinVelocity || velocity > keys.MaxVelocity {
		return PianoNote{}, errors.Wrapf(ErrInvalid, "velocity should be in [%d, %d], got %d", keys.MinVelocity, keys.MaxVelocity, velocity)
	}
	key, err := keys.MidiToKey(number)
	if err != nil {
		return PianoNote{}, err
	}
	name, _ := keys.KeyToName(key)
	return PianoNote{Number: number, Velocity: velocity, Key: key, Name: name, Fingering: fingering}, nil
}

// Trajectory is the discretized goal sequence. Notes and Sustains always
// have the same length.
type Trajectory struct {
	DT       float64
	Notes    [][]PianoNote
	Sustains []int
}

func New(dt float64, notes [][]PianoNote, sustains []int) (*Trajectory, error) {
	if dt <= 0 {
		return nil, errors.Wrapf(ErrInvalid, "dt must be positive, got %g", dt)
	}
	if len(notes) != len(sustains) {
		return nil, errors.Wrapf(ErrInvalid, "notes and sustains must have the same length, got %d and %d", len(notes), len(sustains))
	}
	return &Trajectory{DT: dt, Notes: notes, Sustains: sustains}, nil
}

// FromScore quantizes s at 1/dt frames per second with single-frame onsets.
//
// A pitch that is active at t-1 and has an onset at t is left out of step t.
// That is how a re-struck note shows up as a one-step gap instead of being
// merged with the note before it.
func FromScore(s *score.Score, dt float64) (*Trajectory, error) {
	if dt <= 0 {
		return nil, errors.Wrapf(ErrInvalid, "dt must be positive, got %g", dt)
	}
	opts := pianoroll.DefaultOptions(1 / dt)
	opts.OnsetWindow = 0
	roll, err := pianoroll.Quantize(s, opts)
	if err != nil {
		return nil, err
	}

	frames := roll.NumFrames()
	notes := make([][]PianoNote, frames)
	for t := 0; t < frames; t++ {
		step := []PianoNote{}
		for p, v := range roll.ActiveVelocities[t] {
			if v == 0 {
				continue
			}
			if t > 0 && roll.ActiveVelocities[t-1][p] != 0 && roll.OnsetVelocities[t][p] != 0 {
				continue
			}
			vel := int(math.RoundToEven(float64(v) * keys.MaxVelocity))
			pn, err := NewPianoNote(p+roll.MinPitch, vel, int(roll.Fingerings[t][p]))
			if err != nil {
				return nil, errors.Wrapf(err, "timestep %d", t)
			}
			step = append(step, pn)
		}
		notes[t] = step
	}

	sustains := make([]int, frames)
	prev := 0
	for t := 0; t < frames; t++ {
		event := int(roll.ControlChanges[t][keys.SustainPedalCC])
		sustain := prev
		switch {
		case event >= 1 && event <= keys.SustainPedalCC:
			sustain = 0
		case event >= keys.SustainPedalCC+1 && event <= keys.MaxCCValue+1:
			sustain = 1
		}
		sustains[t] = sustain
		prev = sustain
	}
	return New(dt, notes, sustains)
}

func (tr *Trajectory) Len() int { return len(tr.Notes) }

// Duration is Len steps of DT seconds.
func (tr *Trajectory) Duration() float64 { return float64(tr.Len()) * tr.DT }

// TrimSilence drops empty steps from both ends. It mutates tr and returns it.
func (tr *Trajectory) TrimSilence() *Trajectory {
	lo, hi := 0, len(tr.Notes)
	for lo < hi && len(tr.Notes[lo]) == 0 {
		lo++
	}
	for hi > lo && len(tr.Notes[hi-1]) == 0 {
		hi--
	}
	tr.Notes = tr.Notes[lo:hi]
	tr.Sustains = tr.Sustains[lo:hi]
	return tr
}

// AddInitialBufferTime prepends round(seconds/DT) empty steps with the pedal
// up. It mutates tr and returns it.
func (tr *Trajectory) AddInitialBufferTime(seconds float64) (*Trajectory, error) {
	if seconds < 0 {
		return nil, errors.Wrapf(ErrInvalid, "initial buffer time must be non-negative, got %g", seconds)
	}
	n := int(math.RoundToEven(seconds / tr.DT))
	if n == 0 {
		return tr, nil
	}
	notes := make([][]PianoNote, n, n+len(tr.Notes))
	for i := range notes {
		notes[i] = []PianoNote{}
	}
	tr.Notes = append(notes, tr.Notes...)
	tr.Sustains = append(make([]int, n, n+len(tr.Sustains)), tr.Sustains...)
	return tr, nil
}

// ToPianoRoll marks [step][midi number] with 1 for every listed note.
func (tr *Trajectory) ToPianoRoll() [][]int32 {
	out := make([][]int32, len(tr.Notes))
	for t, step := range tr.Notes {
		row := make([]int32, keys.MaxMidiPitch+1)
		for _, n := range step {
			row[n.Number] = 1
		}
		out[t] = row
	}
	return out
}

// Goal returns the key activation vector and pedal state for step t.
func (tr *Trajectory) Goal(t int) (activation [keys.NumKeys]bool, sustain bool) {
	for _, n := range tr.Notes[t] {
		activation[n.Key] = true
	}
	return activation, tr.Sustains[t] != 0
}

// Goals yields every step's goal in order.
func (tr *Trajectory) Goals() iter.Seq2[int, Goal] {
	return func(yield func(int, Goal) bool) {
		for t := range tr.Notes {
			act, sustain := tr.Goal(t)
			if !yield(t, Goal{Keys: act, Sustain: sustain}) {
				return
			}
		}
	}
}

// Goal is one step of the control target.
type Goal struct {
	Keys    [keys.NumKeys]bool
	Sustain bool
}
