package pianoroll

import (
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cbegin/midiroll-go/internal/score"
)

func scoreOf(total float64, notes ...score.Note) *score.Score {
	return &score.Score{Notes: notes, TotalTime: total}
}

func TestNumFrames(t *testing.T) {
	assert.Equal(t, 11, NumFrames(1.0, 10))
	assert.Equal(t, 6, NumFrames(0.05, 100))
	assert.Equal(t, 7, NumFrames(0.06, 100))
	assert.Equal(t, 1, NumFrames(0, 100))
	assert.Equal(t, 12, NumFrames(1.05, 10))
}

func TestQuantizeSingleNote(t *testing.T) {
	s := scoreOf(1.0, score.Note{Start: 0, End: 0.5, Pitch: 60, Velocity: 127, Part: 2})
	r, err := Quantize(s, DefaultOptions(10))
	require.NoError(t, err)
	require.Equal(t, 11, r.NumFrames())
	require.Equal(t, 128, r.NumPitches())

	for f := 0; f < r.NumFrames(); f++ {
		assert.Equal(t, f < 5, r.Active[f][60], "active frame %d", f)
		assert.Equal(t, f < 2, r.Onsets[f][60], "onset frame %d", f)
		assert.Equal(t, f == 5, r.Offsets[f][60], "offset frame %d", f)
		if f < 5 {
			assert.Equal(t, float32(1), r.ActiveVelocities[f][60])
			assert.Equal(t, int8(2), r.Fingerings[f][60])
		} else {
			assert.Equal(t, int8(-1), r.Fingerings[f][60])
		}
		assert.Equal(t, f < 2, r.OnsetVelocities[f][60] > 0)
		assert.False(t, r.Active[f][61])
	}

	want := []float32{5, 5, 5, 2.5, 5.0 / 3, 1, 1, 1, 1, 1, 1}
	for f, w := range want {
		assert.InDelta(t, w, r.Weights[f][60], 1e-6, "weight frame %d", f)
	}
}

func TestQuantizeIsDeterministic(t *testing.T) {
	s := score.CMajorScaleTwoHands(4, 6, 0.37)
	a, err := Quantize(s, DefaultOptions(33))
	require.NoError(t, err)
	b, err := Quantize(s, DefaultOptions(33))
	require.NoError(t, err)
	assert.Equal(t, a, b)
}

func TestQuantizeControlChanges(t *testing.T) {
	s := scoreOf(1.0)
	s.ControlChanges = []score.ControlChange{
		{Time: 0.35, Number: 64, Value: 100},
		{Time: 0, Number: 64, Value: 0},
		{Time: 2.0, Number: 64, Value: 127},
	}
	r, err := Quantize(s, DefaultOptions(10))
	require.NoError(t, err)
	assert.Equal(t, int16(101), r.ControlChanges[3][64])
	assert.Equal(t, int16(1), r.ControlChanges[0][64])
	for f := 0; f < r.NumFrames(); f++ {
		if f != 0 && f != 3 {
			assert.Zero(t, r.ControlChanges[f][64])
		}
	}
}

func TestQuantizeMinFrameOccupancy(t *testing.T) {
	opts := DefaultOptions(10)
	opts.MinFrameOccupancy = 0.5
	s := scoreOf(1.0, score.Note{Start: 0.07, End: 0.31, Pitch: 60, Velocity: 64, Part: -1})
	r, err := Quantize(s, opts)
	require.NoError(t, err)
	var active []int
	for f := range r.Active {
		if r.Active[f][60] {
			active = append(active, f)
		}
	}
	assert.Equal(t, []int{1, 2, 3}, active)
}

func TestQuantizeOnsetLengthMode(t *testing.T) {
	opts := DefaultOptions(10)
	opts.OnsetMode = OnsetLengthMs
	opts.OnsetLengthMs = 150
	s := scoreOf(1.0, score.Note{Start: 0.2, End: 0.8, Pitch: 60, Velocity: 64, Part: -1})
	r, err := Quantize(s, opts)
	require.NoError(t, err)
	for f := 0; f < r.NumFrames(); f++ {
		assert.Equal(t, f == 2 || f == 3, r.Onsets[f][60], "onset frame %d", f)
		assert.Equal(t, f >= 2 && f < 8, r.Active[f][60], "active frame %d", f)
	}
	assert.InDelta(t, 5, r.Weights[4][60], 1e-6)
	assert.InDelta(t, 1.25, r.Weights[7][60], 1e-6)
}

func TestQuantizeFingeringLastWriterWins(t *testing.T) {
	s := scoreOf(1.0,
		score.Note{Start: 0.3, End: 0.8, Pitch: 60, Velocity: 64, Part: 3},
		score.Note{Start: 0, End: 0.5, Pitch: 60, Velocity: 64, Part: 1},
	)
	r, err := Quantize(s, DefaultOptions(10))
	require.NoError(t, err)
	for f := 0; f < 3; f++ {
		assert.Equal(t, int8(1), r.Fingerings[f][60])
	}
	for f := 3; f < 8; f++ {
		assert.Equal(t, int8(3), r.Fingerings[f][60])
	}
}

func TestQuantizeRejectsVelocityAboveMax(t *testing.T) {
	opts := DefaultOptions(10)
	opts.MaxVelocity = 100
	_, err := Quantize(scoreOf(1, score.Note{Start: 0, End: 1, Pitch: 60, Velocity: 110, Part: -1}), opts)
	assert.True(t, errors.Is(err, score.ErrInvalidNote))
}

func TestQuantizeBlankFrameBeforeOnset(t *testing.T) {
	opts := DefaultOptions(10)
	opts.AddBlankFrameBeforeOnset = true
	s := scoreOf(1.0,
		score.Note{Start: 0, End: 0.3, Pitch: 60, Velocity: 64, Part: -1},
		score.Note{Start: 0.3, End: 0.6, Pitch: 60, Velocity: 64, Part: -1},
	)
	r, err := Quantize(s, opts)
	require.NoError(t, err)
	assert.True(t, r.Active[1][60])
	assert.False(t, r.Active[2][60])
	assert.Equal(t, float32(1), r.Weights[2][60])
	assert.True(t, r.Active[3][60])
}

func TestQuantizeWithoutOnsetOverlap(t *testing.T) {
	opts := DefaultOptions(10)
	opts.OnsetOverlap = false
	r, err := Quantize(scoreOf(1.0, score.Note{Start: 0, End: 0.5, Pitch: 60, Velocity: 64, Part: -1}), opts)
	require.NoError(t, err)
	assert.False(t, r.Active[0][60])
	assert.False(t, r.Active[1][60])
	assert.True(t, r.Active[2][60])
	assert.True(t, r.Active[4][60])
	assert.False(t, r.Active[5][60])
}

func TestQuantizePitchWindow(t *testing.T) {
	opts := DefaultOptions(10)
	opts.MinPitch, opts.MaxPitch = 21, 108
	r, err := Quantize(scoreOf(1.0,
		score.Note{Start: 0, End: 0.5, Pitch: 10, Velocity: 64, Part: -1},
		score.Note{Start: 0, End: 0.5, Pitch: 21, Velocity: 64, Part: -1},
	), opts)
	require.NoError(t, err)
	assert.Equal(t, 88, r.NumPitches())
	assert.True(t, r.Active[0][0])
}

func TestQuantizeRejectsBadOptions(t *testing.T) {
	_, err := Quantize(scoreOf(1), DefaultOptions(0))
	assert.True(t, errors.Is(err, ErrInvalidOptions))
	opts := DefaultOptions(10)
	opts.MinPitch, opts.MaxPitch = 50, 40
	_, err = Quantize(scoreOf(1), opts)
	assert.True(t, errors.Is(err, ErrInvalidOptions))
}
