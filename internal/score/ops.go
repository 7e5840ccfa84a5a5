package score

import (
	"github.com/pkg/errors"

	"github.com/cbegin/midiroll-go/internal/keys"
)

// Stretch scales every timestamp by factor. Factors above 1 slow the piece
// down. A factor of exactly 1 returns the receiver.
func (s *Score) Stretch(factor float64) (*Score, error) {
	if factor <= 0 {
		return nil, errors.Wrapf(ErrInvalidScore, "stretch factor must be positive, got %g", factor)
	}
	if factor == 1 {
		return s, nil
	}
	out := s.clone()
	for i := range out.Notes {
		out.Notes[i].Start *= factor
		out.Notes[i].End *= factor
	}
	for i := range out.ControlChanges {
		out.ControlChanges[i].Time *= factor
	}
	out.TotalTime *= factor
	if out.QPM > 0 {
		out.QPM /= factor
	}
	return out, nil
}

// Transpose shifts every pitch by semitones. Notes that leave the piano's
// range are removed. Zero returns the receiver.
func (s *Score) Transpose(semitones int) *Score {
	if semitones == 0 {
		return s
	}
	out := s.clone()
	out.Notes = out.Notes[:0]
	for _, n := range s.Notes {
		p := n.Pitch + semitones
		if p < keys.MinMidiPitchPiano || p > keys.MaxMidiPitchPiano {
			continue
		}
		n.Pitch = p
		out.Notes = append(out.Notes, n)
	}
	return out
}

// TrimSilence shifts the score so the earliest onset lands at zero. Control
// changes before that onset are moved to zero.
func (s *Score) TrimSilence() *Score {
	if len(s.Notes) == 0 {
		return s
	}
	first := s.Notes[0].Start
	for _, n := range s.Notes[1:] {
		if n.Start < first {
			first = n.Start
		}
	}
	if first == 0 {
		return s
	}
	out := s.clone()
	for i := range out.Notes {
		out.Notes[i].Start -= first
		out.Notes[i].End -= first
	}
	for i := range out.ControlChanges {
		out.ControlChanges[i].Time = max(0, out.ControlChanges[i].Time-first)
	}
	out.TotalTime = max(0, out.TotalTime-first)
	return out
}
