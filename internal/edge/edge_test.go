package edge

import (
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cbegin/midiroll-go/internal/keys"
	"github.com/cbegin/midiroll-go/internal/midimsg"
)

type recordingListener struct {
	calls []string
}

func (r *recordingListener) NoteOn(note, velocity int) {
	r.calls = append(r.calls, "on:"+name(note))
}
func (r *recordingListener) NoteOff(note int) { r.calls = append(r.calls, "off:"+name(note)) }
func (r *recordingListener) SustainOn()       { r.calls = append(r.calls, "sustain:on") }
func (r *recordingListener) SustainOff()      { r.calls = append(r.calls, "sustain:off") }

func name(midi int) string {
	n, _ := keys.MidiToName(midi)
	return n
}

func activation(pressed ...int) []bool {
	a := make([]bool, keys.NumKeys)
	for _, k := range pressed {
		a[k] = true
	}
	return a
}

func TestStepEmitsEdges(t *testing.T) {
	d := New()
	events, err := d.Step(activation(0, 39), false, 0.1)
	require.NoError(t, err)
	assert.Equal(t, []midimsg.Message{
		midimsg.NoteOn{Note: 21, Velocity: 127, Time: 0.1},
		midimsg.NoteOn{Note: 60, Velocity: 127, Time: 0.1},
	}, events)

	events, err = d.Step(activation(0, 39), false, 0.2)
	require.NoError(t, err)
	assert.Empty(t, events)

	events, err = d.Step(activation(40), true, 0.3)
	require.NoError(t, err)
	assert.Equal(t, []midimsg.Message{
		midimsg.NoteOn{Note: 61, Velocity: 127, Time: 0.3},
		midimsg.NoteOff{Note: 21, Time: 0.3},
		midimsg.NoteOff{Note: 60, Time: 0.3},
		midimsg.SustainOn{Time: 0.3},
	}, events)

	events, err = d.Step(activation(), false, 0.4)
	require.NoError(t, err)
	assert.Equal(t, []midimsg.Message{
		midimsg.NoteOff{Note: 61, Time: 0.4},
		midimsg.SustainOff{Time: 0.4},
	}, events)

	assert.Equal(t, 4, d.Steps())
	assert.Len(t, d.All(), 8)
	assert.Equal(t, events, d.Latest())
}

func TestStepIsDeterministicGivenPreviousState(t *testing.T) {
	prev, cur := activation(3, 10), activation(10, 20)
	run := func(history ...[]bool) []midimsg.Message {
		d := New()
		for _, h := range history {
			_, err := d.Step(h, false, 0)
			require.NoError(t, err)
		}
		_, err := d.Step(prev, false, 1)
		require.NoError(t, err)
		events, err := d.Step(cur, false, 2)
		require.NoError(t, err)
		return events
	}
	assert.Equal(t, run(), run(activation(1, 2, 3), activation(50)))
}

func TestStepDoesNotAliasInput(t *testing.T) {
	d := New()
	a := activation(5)
	_, err := d.Step(a, false, 0)
	require.NoError(t, err)
	a[5] = false
	events, err := d.Step(a, false, 1)
	require.NoError(t, err)
	assert.Equal(t, []midimsg.Message{midimsg.NoteOff{Note: 26, Time: 1}}, events)
}

func TestListenersInvokedInEmissionOrder(t *testing.T) {
	rec := &recordingListener{}
	d := New()
	d.AddListener(rec)
	_, err := d.Step(activation(39), true, 0)
	require.NoError(t, err)
	_, err = d.Step(activation(51), false, 1)
	require.NoError(t, err)
	assert.Equal(t, []string{"on:C4", "sustain:on", "on:C5", "off:C4", "sustain:off"}, rec.calls)
}

func TestReset(t *testing.T) {
	d := New()
	_, err := d.Step(activation(1), true, 0)
	require.NoError(t, err)
	d.Reset()
	assert.Nil(t, d.Latest())
	assert.Empty(t, d.All())
	act, sustain := d.Active()
	assert.Equal(t, [keys.NumKeys]bool{}, act)
	assert.False(t, sustain)

	events, err := d.Step(activation(1), true, 0)
	require.NoError(t, err)
	assert.Len(t, events, 2)
}

func TestStepValidates(t *testing.T) {
	d := New()
	_, err := d.Step(make([]bool, 87), false, 0)
	assert.True(t, errors.Is(err, ErrActivation))
	_, err = d.Step(activation(), false, -1)
	assert.True(t, errors.Is(err, ErrActivation))
	assert.Equal(t, 0, d.Steps())
}
