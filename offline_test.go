package midiroll

import (
	"crypto/sha256"
	"fmt"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cbegin/midiroll-go/internal/midimsg"
	"github.com/cbegin/midiroll-go/internal/score"
	"github.com/cbegin/midiroll-go/internal/soundfont"
)

func TestEventsFromScoreOrdering(t *testing.T) {
	events, err := EventsFromScore(score.Toy(0, 5))
	require.NoError(t, err)

	var got []string
	for _, ev := range events {
		got = append(got, fmt.Sprint(ev))
	}
	assert.Equal(t, []string{
		"note_on note=84 velocity=80 time=0.0000",
		"note_on note=48 velocity=80 time=0.0000",
		"note_off note=84 time=0.5000",
		"note_off note=48 time=0.5000",
		"note_on note=79 velocity=80 time=0.5000",
		"note_on note=60 velocity=80 time=0.5000",
		"note_off note=79 time=1.0000",
		"note_off note=60 time=1.0000",
	}, got)
}

func TestEventsFromScorePedal(t *testing.T) {
	s, err := score.New(nil, []score.ControlChange{
		{Time: 0.2, Number: 64, Value: 0},
		{Time: 0.1, Number: 64, Value: 127},
		{Time: 0.3, Number: 64, Value: 100},
		{Time: 0.4, Number: 7, Value: 10},
		{Time: 0.5, Number: 64, Value: 12},
	}, 1)
	require.NoError(t, err)
	events, err := EventsFromScore(s)
	require.NoError(t, err)
	assert.Equal(t, []midimsg.Message{
		midimsg.SustainOn{Time: 0.1},
		midimsg.SustainOff{Time: 0.2},
		midimsg.SustainOn{Time: 0.3},
		midimsg.SustainOff{Time: 0.5},
	}, events)
}

func TestEventsFromTrajectoryReleasesEverything(t *testing.T) {
	tr, err := BuildTrajectory(score.TwinkleTwinkleOneHand(), 0.05, 0.5)
	require.NoError(t, err)
	events, err := EventsFromTrajectory(tr)
	require.NoError(t, err)
	require.NotEmpty(t, events)

	held := map[int]bool{}
	prev := 0.0
	for _, ev := range events {
		assert.GreaterOrEqual(t, ev.Seconds(), prev)
		prev = ev.Seconds()
		switch m := ev.(type) {
		case midimsg.NoteOn:
			assert.Equal(t, 127, m.Velocity)
			held[m.Note] = true
		case midimsg.NoteOff:
			delete(held, m.Note)
		}
	}
	assert.Empty(t, held)
	assert.GreaterOrEqual(t, events[0].Seconds(), 0.5, "initial buffer delays the first note")
}

func TestBuildTrajectoryRejectsBadInput(t *testing.T) {
	_, err := BuildTrajectory(score.Toy(0, 5), 0, 0)
	assert.Error(t, err)
	_, err = BuildTrajectory(score.Toy(0, 5), 0.05, -1)
	assert.Error(t, err)
}

func TestRenderScoreIsDeterministic(t *testing.T) {
	s := score.Toy(-1, -1)
	a, err := RenderScore(s, SynthModeFM, 8000)
	require.NoError(t, err)
	b, err := RenderScore(s, SynthModeFM, 8000)
	require.NoError(t, err)

	// 1 s of score plus the 1 s tail
	require.Len(t, a, 16000)
	assert.Equal(t, sha256.Sum256(EncodeWAVInt16LE(a, 8000, 1)), sha256.Sum256(EncodeWAVInt16LE(b, 8000, 1)))

	var peak int16
	for _, v := range a {
		peak = max(peak, v, -v)
	}
	assert.Equal(t, int16(32767), peak)
}

func TestRenderTrajectory(t *testing.T) {
	tr, err := BuildTrajectory(score.Toy(-1, -1), 0.05, 0)
	require.NoError(t, err)
	samples, err := RenderTrajectory(tr, SynthModeFM, 8000)
	require.NoError(t, err)
	assert.NotEmpty(t, samples)
}

func TestNewSynthesizerModes(t *testing.T) {
	_, err := NewSynthesizer("organ", 8000)
	assert.ErrorIs(t, err, ErrUnknownMode)

	_, err = NewSynthesizer(SynthModeSoundFont, 8000)
	assert.ErrorIs(t, err, soundfont.ErrLoad)

	_, err = NewSynthesizer(SynthModeSoundFont, 8000, WithSoundFont(filepath.Join(t.TempDir(), "none.sf2")))
	assert.ErrorIs(t, err, soundfont.ErrLoad)

	sy, err := NewSynthesizer(SynthModeFM, 8000)
	require.NoError(t, err)
	assert.Equal(t, 8000, sy.SampleRate())
	require.NoError(t, sy.Close())
}
