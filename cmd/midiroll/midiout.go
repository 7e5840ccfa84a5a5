package main

import (
	"context"
	"sync"
	"time"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"gitlab.com/gomidi/midi/v2"
	"gitlab.com/gomidi/midi/v2/drivers"
	_ "gitlab.com/gomidi/midi/v2/drivers/rtmididrv" // autoregisters driver

	"github.com/cbegin/midiroll-go/internal/edge"
	"github.com/cbegin/midiroll-go/internal/midimsg"
)

var _ edge.Listener = (*midiOut)(nil)

// midiOut forwards note events to a hardware or virtual MIDI output port.
// It is safe for concurrent use, so several server sessions can share it.
type midiOut struct {
	mu      sync.Mutex
	port    drivers.Out
	send    func(msg midi.Message) error
	channel uint8
}

func openMIDIOut(name string) (*midiOut, error) {
	port, err := midi.FindOutPort(name)
	if err != nil {
		return nil, errors.Wrapf(err, "find MIDI out %q", name)
	}
	send, err := midi.SendTo(port)
	if err != nil {
		return nil, errors.Wrapf(err, "open MIDI out %q", name)
	}
	return &midiOut{port: port, send: send}, nil
}

func (o *midiOut) emit(m midimsg.Message) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if err := o.send(midimsg.ToMIDI(m, o.channel)); err != nil {
		logrus.WithField("component", "midiout").Warnf("send %v: %v", m, err)
	}
}

func (o *midiOut) NoteOn(note, velocity int) { o.emit(midimsg.NoteOn{Note: note, Velocity: velocity}) }
func (o *midiOut) NoteOff(note int)          { o.emit(midimsg.NoteOff{Note: note}) }
func (o *midiOut) SustainOn()                { o.emit(midimsg.SustainOn{}) }
func (o *midiOut) SustainOff()               { o.emit(midimsg.SustainOff{}) }

// Play sends events at their times, measured from the call.
func (o *midiOut) Play(ctx context.Context, events []midimsg.Message) error {
	start := time.Now()
	for _, ev := range events {
		wait := time.Until(start.Add(time.Duration(ev.Seconds() * float64(time.Second))))
		if wait > 0 {
			select {
			case <-ctx.Done():
				o.allOff()
				return ctx.Err()
			case <-time.After(wait):
			}
		}
		o.emit(ev)
	}
	return nil
}

func (o *midiOut) allOff() {
	o.SustainOff()
	for note := 0; note < 128; note++ {
		o.NoteOff(note)
	}
}

func (o *midiOut) Close() error {
	o.allOff()
	return o.port.Close()
}

func listMIDIOuts() []string {
	var names []string
	for _, p := range midi.GetOutPorts() {
		names = append(names, p.String())
	}
	return names
}
