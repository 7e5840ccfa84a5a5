package keys

import (
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestKnownNames(t *testing.T) {
	cases := []struct {
		key  int
		midi int
		name string
	}{
		{0, 21, "A0"},
		{1, 22, "A#0"},
		{2, 23, "B0"},
		{3, 24, "C1"},
		{39, 60, "C4"},
		{48, 69, "A4"},
		{52, 73, "C#5"},
		{87, 108, "C8"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			m, err := KeyToMidi(tc.key)
			require.NoError(t, err)
			assert.Equal(t, tc.midi, m)

			n, err := KeyToName(tc.key)
			require.NoError(t, err)
			assert.Equal(t, tc.name, n)

			n, err = MidiToName(tc.midi)
			require.NoError(t, err)
			assert.Equal(t, tc.name, n)

			m, err = NameToMidi(tc.name)
			require.NoError(t, err)
			assert.Equal(t, tc.midi, m)
		})
	}
}

func TestRoundTripAllKeys(t *testing.T) {
	for k := MinKey; k <= MaxKey; k++ {
		m, err := KeyToMidi(k)
		require.NoError(t, err)
		back, err := MidiToKey(m)
		require.NoError(t, err)
		assert.Equal(t, k, back)

		name, err := KeyToName(k)
		require.NoError(t, err)
		back, err = NameToKey(name)
		require.NoError(t, err)
		assert.Equal(t, k, back)
	}
	assert.Len(t, Names(), NumKeys)
}

func TestOutOfRange(t *testing.T) {
	_, err := KeyToMidi(88)
	assert.True(t, errors.Is(err, ErrOutOfRange))
	_, err = KeyToMidi(-1)
	assert.True(t, errors.Is(err, ErrOutOfRange))
	_, err = MidiToKey(20)
	assert.True(t, errors.Is(err, ErrOutOfRange))
	_, err = MidiToKey(109)
	assert.True(t, errors.Is(err, ErrOutOfRange))
	_, err = MidiToName(0)
	assert.True(t, errors.Is(err, ErrOutOfRange))
	_, err = NameToMidi("H4")
	assert.True(t, errors.Is(err, ErrOutOfRange))
	_, err = NameToKey("C9")
	assert.True(t, errors.Is(err, ErrOutOfRange))
}

func TestMidiToFreq(t *testing.T) {
	assert.InDelta(t, 440.0, MidiToFreq(69), 1e-9)
	assert.InDelta(t, 880.0, MidiToFreq(81), 1e-9)
	assert.InDelta(t, 261.6256, MidiToFreq(60), 1e-3)
}

func TestIsBlack(t *testing.T) {
	assert.False(t, IsBlack(0)) // A0
	assert.True(t, IsBlack(1))  // A#0
	assert.False(t, IsBlack(3)) // C1
	assert.True(t, IsBlack(4))  // C#1
}
