package midiroll

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cbegin/midiroll-go/internal/synth"
)

func TestPlayerMasterVolumeRuntimeAPI(t *testing.T) {
	pl, err := NewPlayer(48000, SynthModeFM)
	require.NoError(t, err)
	assert.Equal(t, 1.0, pl.MasterVolume())
	pl.SetMasterVolume(0.35)
	assert.Equal(t, 0.35, pl.MasterVolume())
	pl.SetMasterVolume(-2)
	assert.Equal(t, 0.0, pl.MasterVolume(), "volume should clamp to 0")
}

func TestPlayerRejectsBadInput(t *testing.T) {
	_, err := NewPlayer(0, SynthModeFM)
	assert.Error(t, err)
	_, err = NewPlayer(48000, "organ")
	assert.ErrorIs(t, err, ErrUnknownMode)

	pl, err := NewPlayer(48000, SynthModeFM)
	require.NoError(t, err)
	assert.ErrorIs(t, pl.Play(nil), synth.ErrNoEvents)
}

func TestPlayerWaitWithoutPlayback(t *testing.T) {
	pl, err := NewPlayer(48000, SynthModeFM)
	require.NoError(t, err)
	pl.Wait()
	require.NoError(t, pl.Stop())
}

func TestPlayerListenerDrivesLiveSynth(t *testing.T) {
	pl, err := NewPlayer(8000, SynthModeFM)
	require.NoError(t, err)
	l := pl.Listener()
	l.NoteOn(60, 127)
	l.SustainOn()
	l.NoteOff(60)
	l.SustainOff()
	assert.Zero(t, pl.Elapsed())
}

func TestPlayerPositionBeforeStart(t *testing.T) {
	pl, err := NewPlayer(8000, SynthModeFM)
	require.NoError(t, err)
	assert.Zero(t, pl.Position())
}

func TestPlayerMuteAndPedal(t *testing.T) {
	pl, err := NewPlayer(8000, SynthModeFM)
	require.NoError(t, err)
	l := pl.Listener()
	l.SustainOn()
	assert.True(t, pl.Sustained())

	pl.Mute(true)
	assert.True(t, pl.Muted())
	assert.False(t, pl.Sustained())
	l.SustainOn()
	assert.False(t, pl.Sustained(), "pedal input is ignored while muted")

	pl.Mute(false)
	l.SustainOn()
	assert.True(t, pl.Sustained())
	require.NoError(t, pl.Stop())
}
