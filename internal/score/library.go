package score

import (
	"sort"

	"github.com/pkg/errors"

	"github.com/cbegin/midiroll-go/internal/keys"
)

const (
	libraryVelocity = 80
	libraryArtist   = "midiroll"
	libraryQPM      = 60
)

var ErrUnknownSong = errors.New("unknown song")

var builtins = map[string]func() *Score{
	"Toy":                            func() *Score { return Toy(1, 6) },
	"TwinkleTwinkleLittleStar":       TwinkleTwinkleOneHand,
	"CMajorScaleOneHand":             func() *Score { return CMajorScaleOneHand(6, 0.5) },
	"CMajorScaleTwoHands":            func() *Score { return CMajorScaleTwoHands(4, 6, 0.5) },
	"DMajorScaleOneHand":             func() *Score { return DMajorScaleOneHand(6, 0.5) },
	"DMajorScaleTwoHands":            func() *Score { return DMajorScaleTwoHands(4, 6, 0.5) },
	"CMajorChordProgressionTwoHands": CMajorChordProgressionTwoHands,
}

// Names lists the built-in songs in lexical order.
func Names() []string {
	out := make([]string, 0, len(builtins))
	for name := range builtins {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}

// Builtin returns a fresh copy of a built-in song.
func Builtin(name string) (*Score, error) {
	fn, ok := builtins[name]
	if !ok {
		return nil, errors.Wrapf(ErrUnknownSong, "%q", name)
	}
	return fn(), nil
}

type builder struct {
	s *Score
}

func newBuilder(title string, total float64) *builder {
	return &builder{s: &Score{Title: title, Artist: libraryArtist, TotalTime: total, QPM: libraryQPM}}
}

func (b *builder) add(pitch int, start, end float64, part int) {
	b.s.Notes = append(b.s.Notes, Note{Start: start, End: end, Pitch: pitch, Velocity: libraryVelocity, Part: part})
}

// Toy is a four note test sequence: C6 then G5 in the right hand against C3
// then C4 in the left.
func Toy(rightFinger, leftFinger int) *Score {
	b := newBuilder("Toy", 1.0)
	b.add(keys.MustNameToMidi("C6"), 0.0, 0.5, rightFinger)
	b.add(keys.MustNameToMidi("G5"), 0.5, 1.0, rightFinger)
	b.add(keys.MustNameToMidi("C3"), 0.0, 0.5, leftFinger)
	b.add(keys.MustNameToMidi("C4"), 0.5, 1.0, leftFinger)
	return b.s
}

func TwinkleTwinkleOneHand() *Score {
	b := newBuilder("Twinkle Twinkle (one hand)", 8.0)
	melody := []struct {
		pitch      int
		start, end float64
		part       int
	}{
		{60, 0.0, 0.5, 0}, {60, 0.5, 1.0, 0}, {67, 1.0, 1.5, 2}, {67, 1.5, 2.0, 2},
		{69, 2.0, 2.5, 3}, {69, 2.5, 3.0, 3}, {67, 3.0, 4.0, 2},
		{65, 4.0, 4.5, 3}, {65, 4.5, 5.0, 3}, {64, 5.0, 5.5, 2}, {64, 5.5, 6.0, 2},
		{62, 6.0, 6.5, 1}, {62, 6.5, 7.0, 1}, {60, 7.0, 8.0, 0},
	}
	for _, m := range melody {
		b.add(m.pitch, m.start, m.end, m.part)
	}
	return b.s
}

var (
	cMajorSteps = [8]int{0, 2, 4, 5, 7, 9, 11, 12}
	dMajorSteps = [8]int{2, 4, 6, 7, 9, 11, 13, 14}

	rightUp   = [8]int{0, 1, 2, 0, 1, 2, 3, 4}
	rightDown = [7]int{3, 2, 1, 0, 2, 1, 0}
	leftUp    = [8]int{9, 8, 7, 6, 5, 7, 6, 5}
	leftDown  = [7]int{6, 7, 5, 6, 7, 8, 9}
)

// scale plays steps up then back down, one note per duration. 15 notes.
func (b *builder) scale(octave int, steps [8]int, up [8]int, down [7]int, duration float64) {
	for i := 0; i < 8; i++ {
		b.add(12*octave+steps[i], float64(i)*duration, float64(i+1)*duration, up[i])
	}
	for i := 0; i < 7; i++ {
		b.add(12*octave+steps[7-i-1], float64(8+i)*duration, float64(9+i)*duration, down[i])
	}
}

func CMajorScaleOneHand(rightOctave int, duration float64) *Score {
	b := newBuilder("C major scale (one hand)", 15*duration)
	b.scale(rightOctave, cMajorSteps, rightUp, rightDown, duration)
	return b.s
}

func DMajorScaleOneHand(rightOctave int, duration float64) *Score {
	b := newBuilder("D major scale (one hand)", 15*duration)
	b.scale(rightOctave, dMajorSteps, rightUp, rightDown, duration)
	return b.s
}

func CMajorScaleTwoHands(leftOctave, rightOctave int, duration float64) *Score {
	b := newBuilder("C major scale", 15*duration)
	b.scale(rightOctave, cMajorSteps, rightUp, rightDown, duration)
	b.scale(leftOctave, cMajorSteps, leftUp, leftDown, duration)
	return b.s
}

func DMajorScaleTwoHands(leftOctave, rightOctave int, duration float64) *Score {
	b := newBuilder("D major scale", 15*duration)
	b.scale(rightOctave, dMajorSteps, rightUp, rightDown, duration)
	b.scale(leftOctave, dMajorSteps, leftUp, leftDown, duration)
	return b.s
}

// CMajorChordProgressionTwoHands plays I-IV-V-I, one chord per second.
func CMajorChordProgressionTwoHands() *Score {
	b := newBuilder("C major chord progression", 4)
	chords := [4][4][2]int{
		{{48, 5}, {60, 0}, {64, 2}, {67, 4}},
		{{41, 8}, {65, 0}, {69, 2}, {72, 4}},
		{{43, 7}, {67, 0}, {71, 2}, {74, 4}},
		{{48, 5}, {60, 0}, {64, 2}, {67, 4}},
	}
	for i, chord := range chords {
		for _, n := range chord {
			b.add(n[0], float64(i), float64(i+1), n[1])
		}
	}
	return b.s
}
