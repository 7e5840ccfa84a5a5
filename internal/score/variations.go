package score

import (
	"math/rand"

	"github.com/pkg/errors"

	"github.com/cbegin/midiroll-go/internal/keys"
)

// Variation derives a randomized Score. Implementations must not mutate the
// input.
type Variation func(s *Score, rng *rand.Rand) (*Score, error)

// PitchShiftRange returns the inclusive semitone interval, limited to
// maxShift in either direction, that keeps every note on the piano.
func PitchShiftRange(s *Score, maxShift int) (lo, hi int) {
	minP, maxP, ok := s.PitchBounds()
	if !ok {
		return 0, 0
	}
	lo = max(keys.MinMidiPitchPiano-minP, -maxShift)
	hi = min(keys.MaxMidiPitchPiano-maxP, maxShift)
	return lo, hi
}

// OctaveShiftRange is PitchShiftRange expressed in whole octaves. The
// bounds are rounded inward so every octave in [lo, hi] keeps all notes.
func OctaveShiftRange(s *Score, maxOctaves int) (lo, hi int) {
	l, h := PitchShiftRange(s, maxOctaves*12)
	return -floorDiv(-l, 12), floorDiv(h, 12)
}

func floorDiv(a, b int) int {
	q := a / b
	if (a%b != 0) && ((a < 0) != (b < 0)) {
		q--
	}
	return q
}

// TemporalStretch applies, with probability prob, a stretch factor drawn
// uniformly from [1-stretchRange, 1+stretchRange].
func TemporalStretch(prob, stretchRange float64) Variation {
	return func(s *Score, rng *rand.Rand) (*Score, error) {
		if rng.Float64() > prob {
			return s, nil
		}
		factor := 1 + (rng.Float64()*2-1)*stretchRange
		return s.Stretch(factor)
	}
}

// PitchShift applies, with probability prob, a uniformly drawn semitone
// shift bounded by shiftRange and the piano's range.
func PitchShift(prob float64, shiftRange int) Variation {
	return func(s *Score, rng *rand.Rand) (*Score, error) {
		if shiftRange < 0 {
			return nil, errors.Wrapf(ErrInvalidScore, "shift range should be non-negative, got %d", shiftRange)
		}
		if rng.Float64() > prob || shiftRange == 0 {
			return s, nil
		}
		lo, hi := PitchShiftRange(s, shiftRange)
		if hi < lo {
			return s, nil
		}
		return s.Transpose(lo + rng.Intn(hi-lo+1)), nil
	}
}

// OctaveShift applies, with probability prob, a whole-octave shift bounded
// by octaveRange and the piano's range.
func OctaveShift(prob float64, octaveRange int) Variation {
	return func(s *Score, rng *rand.Rand) (*Score, error) {
		if octaveRange < 0 {
			return nil, errors.Wrapf(ErrInvalidScore, "octave range should be non-negative, got %d", octaveRange)
		}
		if rng.Float64() > prob || octaveRange == 0 {
			return s, nil
		}
		lo, hi := OctaveShiftRange(s, octaveRange)
		if hi < lo {
			return s, nil
		}
		return s.Transpose(12 * (lo + rng.Intn(hi-lo+1))), nil
	}
}

// Chain applies variations in order.
func Chain(vs ...Variation) Variation {
	return func(s *Score, rng *rand.Rand) (*Score, error) {
		var err error
		for _, v := range vs {
			if s, err = v(s, rng); err != nil {
				return nil, err
			}
		}
		return s, nil
	}
}
