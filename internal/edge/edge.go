// Package edge converts successive key activation vectors into note and
// pedal messages.
package edge

import (
	"fmt"

	"github.com/pkg/errors"

	"github.com/cbegin/midiroll-go/internal/keys"
	"github.com/cbegin/midiroll-go/internal/midimsg"
)

// NoteOnVelocity is used for every emitted note on; key velocity is not
// sensed.
const NoteOnVelocity = keys.MaxVelocity

var ErrActivation = errors.New("invalid activation")

// Listener receives each emitted event synchronously, in emission order.
type Listener interface {
	NoteOn(note, velocity int)
	NoteOff(note int)
	SustainOn()
	SustainOff()
}

// Detector remembers the previous activation and pedal state. The zero value
// is ready to use. Not safe for concurrent use.
type Detector struct {
	prev        [keys.NumKeys]bool
	prevSustain bool
	listeners   []Listener
	log         [][]midimsg.Message
}

func New(listeners ...Listener) *Detector {
	return &Detector{listeners: listeners}
}

func (d *Detector) AddListener(l Listener) {
	d.listeners = append(d.listeners, l)
}

// Reset clears the previous state and the event log. Listeners stay.
func (d *Detector) Reset() {
	d.prev = [keys.NumKeys]bool{}
	d.prevSustain = false
	d.log = nil
}

// Step compares activation with the previous step and returns the resulting
// messages: note ons in key order, then note offs in key order, then the
// pedal change.
func (d *Detector) Step(activation []bool, sustain bool, t float64) ([]midimsg.Message, error) {
	if len(activation) != keys.NumKeys {
		return nil, errors.Wrapf(ErrActivation, "expected %d keys, got %d", keys.NumKeys, len(activation))
	}
	if t < 0 {
		return nil, errors.Wrapf(ErrActivation, "time should be non-negative, got %g", t)
	}

	var changed [keys.NumKeys]bool
	for k := range changed {
		changed[k] = activation[k] != d.prev[k]
	}

	events := []midimsg.Message{}
	for k, c := range changed {
		if c && activation[k] {
			events = append(events, midimsg.NoteOn{Note: k + keys.MinMidiPitchPiano, Velocity: NoteOnVelocity, Time: t})
		}
	}
	for k, c := range changed {
		if c && !activation[k] {
			events = append(events, midimsg.NoteOff{Note: k + keys.MinMidiPitchPiano, Time: t})
		}
	}
	if sustain != d.prevSustain {
		if sustain {
			events = append(events, midimsg.SustainOn{Time: t})
		} else {
			events = append(events, midimsg.SustainOff{Time: t})
		}
	}

	copy(d.prev[:], activation)
	d.prevSustain = sustain
	d.log = append(d.log, events)

	for _, ev := range events {
		d.dispatch(ev)
	}
	return events, nil
}

// StepKeys is Step for callers that already hold a fixed-size vector.
func (d *Detector) StepKeys(activation [keys.NumKeys]bool, sustain bool, t float64) ([]midimsg.Message, error) {
	return d.Step(activation[:], sustain, t)
}

func (d *Detector) dispatch(ev midimsg.Message) {
	for _, l := range d.listeners {
		switch m := ev.(type) {
		case midimsg.NoteOn:
			l.NoteOn(m.Note, m.Velocity)
		case midimsg.NoteOff:
			l.NoteOff(m.Note)
		case midimsg.SustainOn:
			l.SustainOn()
		case midimsg.SustainOff:
			l.SustainOff()
		default:
			panic(fmt.Sprintf("edge: unknown message type %T", ev))
		}
	}
}

// Latest returns the events of the most recent step.
func (d *Detector) Latest() []midimsg.Message {
	if len(d.log) == 0 {
		return nil
	}
	return d.log[len(d.log)-1]
}

// All returns every event since the last Reset, flattened in order.
func (d *Detector) All() []midimsg.Message {
	var out []midimsg.Message
	for _, step := range d.log {
		out = append(out, step...)
	}
	return out
}

// Steps is the number of steps logged since the last Reset.
func (d *Detector) Steps() int { return len(d.log) }

// Active returns a copy of the previous activation vector.
func (d *Detector) Active() ([keys.NumKeys]bool, bool) {
	return d.prev, d.prevSustain
}
