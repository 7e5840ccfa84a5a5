// Package keys maps between piano key indices, MIDI pitch numbers and
// scientific pitch names for an 88-key piano.
package keys

import (
	"math"
	"strconv"

	"github.com/pkg/errors"
)

const (
	MinMidiPitch = 0
	MaxMidiPitch = 127

	MinMidiPitchPiano = 21
	MaxMidiPitchPiano = 108

	MinKey  = 0
	MaxKey  = 87
	NumKeys = MaxKey - MinKey + 1

	SustainPedalCC = 64
	MinCCValue     = 0
	MaxCCValue     = 127

	MinVelocity = 0
	MaxVelocity = 127

	SampleRate = 44100
)

// ErrOutOfRange is wrapped by every conversion failure in this package.
var ErrOutOfRange = errors.New("value out of range")

var notesInOctave = [12]string{"C", "C#", "D", "D#", "E", "F", "F#", "G", "G#", "A", "A#", "B"}

var (
	keyNames  [NumKeys]string
	nameToKey = make(map[string]int, NumKeys)
)

func init() {
	for k := 0; k < NumKeys; k++ {
		midi := k + MinMidiPitchPiano
		name := notesInOctave[midi%12] + strconv.Itoa(midi/12-1)
		keyNames[k] = name
		nameToKey[name] = k
	}
}

func KeyToMidi(key int) (int, error) {
	if key < MinKey || key > MaxKey {
		return 0, errors.Wrapf(ErrOutOfRange, "key number should be in [%d, %d], got %d", MinKey, MaxKey, key)
	}
	return key + MinMidiPitchPiano, nil
}

func MidiToKey(midi int) (int, error) {
	if midi < MinMidiPitchPiano || midi > MaxMidiPitchPiano {
		return 0, errors.Wrapf(ErrOutOfRange, "midi pitch should be in [%d, %d], got %d", MinMidiPitchPiano, MaxMidiPitchPiano, midi)
	}
	return midi - MinMidiPitchPiano, nil
}

// KeyToName returns the scientific pitch name of a key, e.g. 0 -> "A0".
func KeyToName(key int) (string, error) {
	if key < MinKey || key > MaxKey {
		return "", errors.Wrapf(ErrOutOfRange, "key number should be in [%d, %d], got %d", MinKey, MaxKey, key)
	}
	return keyNames[key], nil
}

func NameToKey(name string) (int, error) {
	k, ok := nameToKey[name]
	if !ok {
		return 0, errors.Wrapf(ErrOutOfRange, "unknown note name %q", name)
	}
	return k, nil
}

// MidiToName returns the name of a piano-range MIDI pitch, e.g. 73 -> "C#5".
func MidiToName(midi int) (string, error) {
	k, err := MidiToKey(midi)
	if err != nil {
		return "", err
	}
	return keyNames[k], nil
}

func NameToMidi(name string) (int, error) {
	k, err := NameToKey(name)
	if err != nil {
		return 0, err
	}
	return k + MinMidiPitchPiano, nil
}

// MustNameToMidi is NameToMidi for compile-time constant names.
func MustNameToMidi(name string) int {
	m, err := NameToMidi(name)
	if err != nil {
		panic(err)
	}
	return m
}

// Names returns all 88 key names in key order.
func Names() []string {
	out := make([]string, NumKeys)
	copy(out, keyNames[:])
	return out
}

// MidiToFreq converts a MIDI pitch to Hz in 12-TET with A4 = 440 Hz.
func MidiToFreq(midi int) float64 {
	return 440 * math.Pow(2, float64(midi-69)/12)
}

// IsBlack reports whether the key is a black key.
func IsBlack(key int) bool {
	switch (key + MinMidiPitchPiano) % 12 {
	case 1, 3, 6, 8, 10:
		return true
	}
	return false
}
