package midimsg

import (
	"fmt"

	"github.com/pkg/errors"
)

// Record is the flat JSON form of a Message.
type Record struct {
	Type     string  `json:"type"`
	Note     int     `json:"note,omitempty"`
	Velocity int     `json:"velocity,omitempty"`
	Time     float64 `json:"time"`
}

const (
	TypeNoteOn     = "note_on"
	TypeNoteOff    = "note_off"
	TypeSustainOn  = "sustain_on"
	TypeSustainOff = "sustain_off"
)

func ToRecord(m Message) Record {
	switch v := m.(type) {
	case NoteOn:
		return Record{Type: TypeNoteOn, Note: v.Note, Velocity: v.Velocity, Time: v.Time}
	case NoteOff:
		return Record{Type: TypeNoteOff, Note: v.Note, Time: v.Time}
	case SustainOn:
		return Record{Type: TypeSustainOn, Time: v.Time}
	case SustainOff:
		return Record{Type: TypeSustainOff, Time: v.Time}
	default:
		panic(fmt.Sprintf("midimsg: unknown message type %T", m))
	}
}

func ToRecords(msgs []Message) []Record {
	out := make([]Record, len(msgs))
	for i, m := range msgs {
		out[i] = ToRecord(m)
	}
	return out
}

// FromRecord validates r and rebuilds the Message it describes.
func FromRecord(r Record) (Message, error) {
	switch r.Type {
	case TypeNoteOn:
		return NewNoteOn(r.Note, r.Velocity, r.Time)
	case TypeNoteOff:
		return NewNoteOff(r.Note, r.Time)
	case TypeSustainOn:
		return NewSustainOn(r.Time)
	case TypeSustainOff:
		return NewSustainOff(r.Time)
	default:
		return nil, errors.Wrapf(ErrInvalid, "unknown message type %q", r.Type)
	}
}
