// Package synth drives a tone generator from timed MIDI events, either live
// through note calls or offline through Render.
package synth

import (
	"fmt"
	"math"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/cbegin/midiroll-go/internal/effects"
	"github.com/cbegin/midiroll-go/internal/keys"
	"github.com/cbegin/midiroll-go/internal/midimsg"
)

// TailSeconds is the silence rendered after the last event so the final
// notes decay.
const TailSeconds = 1.0

var (
	ErrNoEvents = errors.New("no events to render")
	ErrClosed   = errors.New("synthesizer closed")
	ErrInvalid  = errors.New("invalid synthesizer argument")
)

var log = logrus.WithField("component", "synth")

// ToneGenerator is a polyphonic mono sound source keyed by MIDI note.
type ToneGenerator interface {
	NoteOn(note, velocity int)
	NoteOff(note int)
	SetSustain(on bool)
	Render(dst []float32)
	Reset()
	Close() error
}

type Option func(*Synthesizer)

// WithResetBeforeRender controls whether Render starts from a silent
// generator. Defaults to true.
func WithResetBeforeRender(reset bool) Option {
	return func(s *Synthesizer) { s.resetBeforeRender = reset }
}

// WithEffects post-processes rendered audio before normalization.
func WithEffects(chain *effects.Chain) Option {
	return func(s *Synthesizer) { s.effects = chain }
}

// Synthesizer owns a ToneGenerator. It is not safe for concurrent use.
type Synthesizer struct {
	gen               ToneGenerator
	sampleRate        int
	effects           *effects.Chain
	resetBeforeRender bool
	muted             bool
	sustained         bool
	held              map[int]struct{}
	closed            bool
}

func New(gen ToneGenerator, sampleRate int, opts ...Option) (*Synthesizer, error) {
	if gen == nil {
		return nil, errors.Wrap(ErrInvalid, "nil tone generator")
	}
	if sampleRate <= 0 {
		return nil, errors.Wrapf(ErrInvalid, "sample rate %d", sampleRate)
	}
	s := &Synthesizer{
		gen:               gen,
		sampleRate:        sampleRate,
		resetBeforeRender: true,
		held:              make(map[int]struct{}),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

func (s *Synthesizer) SampleRate() int { return s.sampleRate }

// NoteOn strikes note. It does nothing while muted.
func (s *Synthesizer) NoteOn(note, velocity int) error {
	if err := s.check(); err != nil {
		return err
	}
	if note < keys.MinMidiPitch || note > keys.MaxMidiPitch {
		return errors.Wrapf(ErrInvalid, "note %d", note)
	}
	if velocity < keys.MinVelocity || velocity > keys.MaxVelocity {
		return errors.Wrapf(ErrInvalid, "velocity %d", velocity)
	}
	if s.muted {
		return nil
	}
	s.gen.NoteOn(note, velocity)
	s.held[note] = struct{}{}
	return nil
}

// NoteOff releases note. It does nothing while muted.
func (s *Synthesizer) NoteOff(note int) error {
	if err := s.check(); err != nil {
		return err
	}
	if note < keys.MinMidiPitch || note > keys.MaxMidiPitch {
		return errors.Wrapf(ErrInvalid, "note %d", note)
	}
	if s.muted {
		return nil
	}
	s.gen.NoteOff(note)
	delete(s.held, note)
	return nil
}

// SustainOn presses the pedal. It does nothing while muted.
func (s *Synthesizer) SustainOn() error {
	if err := s.check(); err != nil {
		return err
	}
	if s.muted {
		return nil
	}
	s.gen.SetSustain(true)
	s.sustained = true
	return nil
}

// SustainOff lifts the pedal. It does nothing while muted.
func (s *Synthesizer) SustainOff() error {
	if err := s.check(); err != nil {
		return err
	}
	if s.muted {
		return nil
	}
	s.gen.SetSustain(false)
	s.sustained = false
	return nil
}

// Mute silences everything sounding and ignores live note and pedal calls
// until unmuted.
func (s *Synthesizer) Mute(muted bool) {
	if muted {
		s.AllSoundsOff()
	}
	s.muted = muted
}

func (s *Synthesizer) Muted() bool { return s.muted }

func (s *Synthesizer) Sustained() bool { return s.sustained }

// AllSoundsOff lifts the pedal, releases every held note and silences the
// generator.
func (s *Synthesizer) AllSoundsOff() {
	if s.closed {
		return
	}
	s.gen.SetSustain(false)
	for note := range s.held {
		s.gen.NoteOff(note)
	}
	s.gen.Reset()
	clear(s.held)
	s.sustained = false
}

// Generate fills dst with live samples from the generator's current state.
func (s *Synthesizer) Generate(dst []float32) error {
	if err := s.check(); err != nil {
		return err
	}
	s.gen.Render(dst)
	return nil
}

// Apply plays one message through the live calls, so validation and mute
// hold. The message time is ignored.
func (s *Synthesizer) Apply(ev midimsg.Message) error {
	switch m := ev.(type) {
	case midimsg.NoteOn:
		return s.NoteOn(m.Note, m.Velocity)
	case midimsg.NoteOff:
		return s.NoteOff(m.Note)
	case midimsg.SustainOn:
		return s.SustainOn()
	case midimsg.SustainOff:
		return s.SustainOff()
	default:
		panic(fmt.Sprintf("synth: unsupported message %T", ev))
	}
}

// Render synthesizes events, which must be sorted by time, into peak
// normalized 16-bit samples. Events are applied regardless of Mute. The
// last event is followed by TailSeconds of rendering.
func (s *Synthesizer) Render(events []midimsg.Message) ([]int16, error) {
	if err := s.check(); err != nil {
		return nil, err
	}
	if len(events) == 0 {
		return nil, ErrNoEvents
	}
	if midimsg.OnlySustain(events) {
		log.Debugf("rendering %d sustain-only events", len(events))
	}
	if s.resetBeforeRender {
		s.reset()
	}

	deltas := make([]float64, len(events))
	total := events[0].Seconds()
	for i := range events {
		if i == len(events)-1 {
			deltas[i] = TailSeconds
		} else {
			deltas[i] = events[i+1].Seconds() - events[i].Seconds()
		}
		total += deltas[i]
	}

	sr := float64(s.sampleRate)
	out := make([]float32, int(math.Ceil(sr*total)))
	var chunk []float32
	cur := events[0].Seconds()
	for i, ev := range events {
		s.apply(ev)

		start := int(math.Round(sr * cur))
		n := int(math.Round(sr*(cur+deltas[i]))) - start
		if n > 0 {
			if cap(chunk) < n {
				chunk = make([]float32, n)
			}
			chunk = chunk[:n]
			s.gen.Render(chunk)
			for j, v := range chunk {
				if k := start + j; k >= 0 && k < len(out) {
					out[k] += v
				}
			}
		}
		cur += deltas[i]
	}

	if s.effects != nil {
		s.effects.Reset()
		s.effects.ProcessBuffer(out)
	}
	return toInt16(out), nil
}

func (s *Synthesizer) apply(ev midimsg.Message) {
	switch m := ev.(type) {
	case midimsg.NoteOn:
		s.gen.NoteOn(m.Note, m.Velocity)
		s.held[m.Note] = struct{}{}
	case midimsg.NoteOff:
		s.gen.NoteOff(m.Note)
		delete(s.held, m.Note)
	case midimsg.SustainOn:
		s.gen.SetSustain(true)
		s.sustained = true
	case midimsg.SustainOff:
		s.gen.SetSustain(false)
		s.sustained = false
	default:
		panic(fmt.Sprintf("synth: unsupported message %T", ev))
	}
}

func (s *Synthesizer) reset() {
	s.gen.Reset()
	clear(s.held)
	s.sustained = false
}

// Close releases the generator. Calling it again is a no-op.
func (s *Synthesizer) Close() error {
	if s.closed {
		return nil
	}
	s.closed = true
	return s.gen.Close()
}

func (s *Synthesizer) check() error {
	if s.closed {
		return ErrClosed
	}
	return nil
}

// toInt16 scales buf by its peak into the int16 range, truncating toward
// zero. An all-zero buffer stays zero.
func toInt16(buf []float32) []int16 {
	var peak float64
	for _, v := range buf {
		if a := math.Abs(float64(v)); a > peak {
			peak = a
		}
	}
	out := make([]int16, len(buf))
	if peak == 0 {
		return out
	}
	for i, v := range buf {
		out[i] = int16(float64(v) / peak * math.MaxInt16)
	}
	return out
}
