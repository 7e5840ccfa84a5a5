// Package midimsg defines the timestamped note and pedal messages that flow
// from the edge detector to a synthesizer.
package midimsg

import (
	"fmt"

	"github.com/pkg/errors"
	"gitlab.com/gomidi/midi/v2"

	"github.com/cbegin/midiroll-go/internal/keys"
)

// ErrInvalid is wrapped by constructor validation failures.
var ErrInvalid = errors.New("invalid midi message")

// Message is implemented only by NoteOn, NoteOff, SustainOn and SustainOff.
type Message interface {
	// Seconds is the absolute event time.
	Seconds() float64
	isMessage()
}

type NoteOn struct {
	Note     int
	Velocity int
	Time     float64
}

type NoteOff struct {
	Note int
	Time float64
}

type SustainOn struct {
	Time float64
}

type SustainOff struct {
	Time float64
}

func (m NoteOn) Seconds() float64     { return m.Time }
func (m NoteOff) Seconds() float64    { return m.Time }
func (m SustainOn) Seconds() float64  { return m.Time }
func (m SustainOff) Seconds() float64 { return m.Time }

func (NoteOn) isMessage()     {}
func (NoteOff) isMessage()    {}
func (SustainOn) isMessage()  {}
func (SustainOff) isMessage() {}

func (m NoteOn) String() string {
	return fmt.Sprintf("note_on note=%d velocity=%d time=%.4f", m.Note, m.Velocity, m.Time)
}
func (m NoteOff) String() string    { return fmt.Sprintf("note_off note=%d time=%.4f", m.Note, m.Time) }
func (m SustainOn) String() string  { return fmt.Sprintf("sustain_on time=%.4f", m.Time) }
func (m SustainOff) String() string { return fmt.Sprintf("sustain_off time=%.4f", m.Time) }

func NewNoteOn(note, velocity int, t float64) (NoteOn, error) {
	if err := validateNote(note); err != nil {
		return NoteOn{}, err
	}
	if velocity < keys.MinVelocity || velocity > keys.MaxVelocity {
		return NoteOn{}, errors.Wrapf(ErrInvalid, "velocity should be in [%d, %d], got %d", keys.MinVelocity, keys.MaxVelocity, velocity)
	}
	if err := validateTime(t); err != nil {
		return NoteOn{}, err
	}
	return NoteOn{Note: note, Velocity: velocity, Time: t}, nil
}

func NewNoteOff(note int, t float64) (NoteOff, error) {
	if err := validateNote(note); err != nil {
		return NoteOff{}, err
	}
	if err := validateTime(t); err != nil {
		return NoteOff{}, err
	}
	return NoteOff{Note: note, Time: t}, nil
}

func NewSustainOn(t float64) (SustainOn, error) {
	if err := validateTime(t); err != nil {
		return SustainOn{}, err
	}
	return SustainOn{Time: t}, nil
}

func NewSustainOff(t float64) (SustainOff, error) {
	if err := validateTime(t); err != nil {
		return SustainOff{}, err
	}
	return SustainOff{Time: t}, nil
}

func validateNote(note int) error {
	if note < keys.MinMidiPitch || note > keys.MaxMidiPitch {
		return errors.Wrapf(ErrInvalid, "note should be in [%d, %d], got %d", keys.MinMidiPitch, keys.MaxMidiPitch, note)
	}
	return nil
}

func validateTime(t float64) error {
	if t < 0 {
		return errors.Wrapf(ErrInvalid, "time should be non-negative, got %g", t)
	}
	return nil
}

// OnlySustain reports whether msgs is non-empty and contains nothing but
// pedal messages.
func OnlySustain(msgs []Message) bool {
	if len(msgs) == 0 {
		return false
	}
	for _, m := range msgs {
		switch m.(type) {
		case SustainOn, SustainOff:
		default:
			return false
		}
	}
	return true
}

// ToMIDI encodes m as a channel voice message for a hardware or virtual port.
// Pedal messages become CC64 with value 127 or 0.
func ToMIDI(m Message, channel uint8) midi.Message {
	switch v := m.(type) {
	case NoteOn:
		return midi.NoteOn(channel, uint8(v.Note), uint8(v.Velocity))
	case NoteOff:
		return midi.NoteOff(channel, uint8(v.Note))
	case SustainOn:
		return midi.ControlChange(channel, keys.SustainPedalCC, keys.MaxCCValue)
	case SustainOff:
		return midi.ControlChange(channel, keys.SustainPedalCC, keys.MinCCValue)
	default:
		panic(fmt.Sprintf("midimsg: unknown message type %T", m))
	}
}
