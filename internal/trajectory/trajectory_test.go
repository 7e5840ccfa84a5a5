package trajectory

import (
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cbegin/midiroll-go/internal/keys"
	"github.com/cbegin/midiroll-go/internal/score"
)

const dt = 0.01

// retriggerScore strikes C6 for one step, then again for three steps.
func retriggerScore(t *testing.T) *score.Score {
	c6 := keys.MustNameToMidi("C6")
	s, err := score.New([]score.Note{
		{Start: 1 * dt, End: 2 * dt, Pitch: c6, Velocity: 80, Part: -1},
		{Start: 2.0 * dt, End: 5 * dt, Pitch: c6, Velocity: 80, Part: -1},
	}, nil, 5.0*dt)
	require.NoError(t, err)
	return s
}

func sustainScore(t *testing.T) *score.Score {
	c6 := keys.MustNameToMidi("C6")
	s, err := score.New([]score.Note{
		{Start: 0 * dt, End: 1 * dt, Pitch: c6, Velocity: 80, Part: -1},
		{Start: 5 * dt, End: 6 * dt, Pitch: c6, Velocity: 80, Part: -1},
	}, []score.ControlChange{
		{Time: 0 * dt, Number: keys.SustainPedalCC, Value: 64},
		{Time: 3 * dt, Number: keys.SustainPedalCC, Value: 0},
	}, 6.0*dt)
	require.NoError(t, err)
	return s
}

func TestSameNotePressedConsecutively(t *testing.T) {
	tr, err := FromScore(retriggerScore(t), dt)
	require.NoError(t, err)
	require.Equal(t, 6, tr.Len())

	assert.Empty(t, tr.Notes[0])
	require.Len(t, tr.Notes[1], 1)
	assert.Equal(t, "C6", tr.Notes[1][0].Name)
	assert.Empty(t, tr.Notes[2], "re-strike step must be empty")
	require.Len(t, tr.Notes[3], 1)
	assert.Equal(t, "C6", tr.Notes[3][0].Name)
	require.Len(t, tr.Notes[4], 1)
	assert.Equal(t, "C6", tr.Notes[4][0].Name)

	n := tr.Notes[1][0]
	assert.Equal(t, 84, n.Number)
	assert.Equal(t, 63, n.Key)
	assert.Equal(t, 80, n.Velocity)
	assert.Equal(t, -1, n.Fingering)
}

func TestSustain(t *testing.T) {
	tr, err := FromScore(sustainScore(t), dt)
	require.NoError(t, err)
	require.Equal(t, 7, tr.Len())
	for i := 0; i < 3; i++ {
		assert.Equal(t, 1, tr.Sustains[i], "step %d", i)
	}
	for i := 3; i < 6; i++ {
		assert.Equal(t, 0, tr.Sustains[i], "step %d", i)
	}
}

func TestFingeringCarried(t *testing.T) {
	tr, err := FromScore(score.Toy(1, 6), 0.05)
	require.NoError(t, err)
	require.Len(t, tr.Notes[0], 2)
	byName := map[string]int{}
	for _, n := range tr.Notes[0] {
		byName[n.Name] = n.Fingering
	}
	assert.Equal(t, map[string]int{"C3": 6, "C6": 1}, byName)
}

func TestRejectsNotesOffThePiano(t *testing.T) {
	s, err := score.New([]score.Note{{Start: 0, End: 0.1, Pitch: 10, Velocity: 80, Part: -1}}, nil, 0)
	require.NoError(t, err)
	_, err = FromScore(s, dt)
	assert.True(t, errors.Is(err, keys.ErrOutOfRange))
}

func TestNewValidates(t *testing.T) {
	_, err := New(0, nil, nil)
	assert.True(t, errors.Is(err, ErrInvalid))
	_, err = New(-1, nil, nil)
	assert.True(t, errors.Is(err, ErrInvalid))
	_, err = New(dt, [][]PianoNote{{}}, nil)
	assert.True(t, errors.Is(err, ErrInvalid))
	_, err = FromScore(retriggerScore(t), 0)
	assert.True(t, errors.Is(err, ErrInvalid))
}

func TestNewPianoNote(t *testing.T) {
	n, err := NewPianoNote(keys.MustNameToMidi("C4"), 100, -1)
	require.NoError(t, err)
	assert.Equal(t, "C4", n.Name)
	assert.Equal(t, 100, n.Velocity)

	for _, tc := range []struct{ number, velocity int }{{-1, 0}, {128, 0}, {60, -1}, {60, 128}} {
		_, err := NewPianoNote(tc.number, tc.velocity, -1)
		assert.Error(t, err)
	}
}

func TestTrimSilence(t *testing.T) {
	tr, err := FromScore(retriggerScore(t), dt)
	require.NoError(t, err)
	same := tr.TrimSilence()
	assert.Same(t, tr, same)
	assert.Equal(t, 4, tr.Len())
	assert.NotEmpty(t, tr.Notes[0])
	assert.NotEmpty(t, tr.Notes[tr.Len()-1])
	assert.Len(t, tr.Sustains, tr.Len())

	once := append([][]PianoNote(nil), tr.Notes...)
	tr.TrimSilence()
	assert.Equal(t, once, tr.Notes)

	empty, err := New(dt, [][]PianoNote{{}, {}}, []int{0, 1})
	require.NoError(t, err)
	assert.Equal(t, 0, empty.TrimSilence().Len())
}

func TestAddInitialBufferTime(t *testing.T) {
	tr, err := FromScore(retriggerScore(t), dt)
	require.NoError(t, err)
	before := append([][]PianoNote(nil), tr.Notes...)

	same, err := tr.AddInitialBufferTime(0)
	require.NoError(t, err)
	assert.Same(t, tr, same)
	assert.Equal(t, before, tr.Notes)

	_, err = tr.AddInitialBufferTime(0.05)
	require.NoError(t, err)
	assert.Equal(t, len(before)+5, tr.Len())
	assert.Len(t, tr.Sustains, tr.Len())
	for i := 0; i < 5; i++ {
		assert.Empty(t, tr.Notes[i])
		assert.Equal(t, 0, tr.Sustains[i])
	}
	assert.Equal(t, before[1], tr.Notes[6])

	_, err = tr.AddInitialBufferTime(-1)
	assert.True(t, errors.Is(err, ErrInvalid))
}

func TestToPianoRollAndGoals(t *testing.T) {
	tr, err := FromScore(sustainScore(t), dt)
	require.NoError(t, err)
	roll := tr.ToPianoRoll()
	require.Len(t, roll, tr.Len())
	assert.Len(t, roll[0], 128)
	assert.Equal(t, int32(1), roll[0][84])
	assert.Equal(t, int32(0), roll[1][84])

	act, sustain := tr.Goal(0)
	assert.True(t, act[63])
	assert.True(t, sustain)

	count := 0
	for i, g := range tr.Goals() {
		assert.Equal(t, tr.Sustains[i] == 1, g.Sustain)
		count++
	}
	assert.Equal(t, tr.Len(), count)
}
