// Package soundfont plays a piano program from a SoundFont2 bank.
package soundfont

import (
	"io"
	"os"

	"github.com/pkg/errors"
	meltysynth "github.com/sinshu/go-meltysynth/meltysynth"

	"github.com/cbegin/midiroll-go/internal/keys"
)

const (
	channel = 0
	// Program 0 is the acoustic grand in General MIDI banks.
	DefaultProgram = 0

	midiControlChange = 0xB0
	midiProgramChange = 0xC0
)

var ErrLoad = errors.New("cannot load soundfont")

type Option func(*Engine)

func WithProgram(program int) Option {
	return func(e *Engine) { e.program = int32(program) }
}

// Engine renders a single MIDI channel of a SoundFont. It is not safe for
// concurrent use.
type Engine struct {
	synth   *meltysynth.Synthesizer
	program int32
	left    []float32
	right   []float32
}

// New reads a SoundFont2 bank from r.
func New(r io.Reader, sampleRate int, opts ...Option) (*Engine, error) {
	sf, err := meltysynth.NewSoundFont(r)
	if err != nil {
		return nil, errors.Wrapf(ErrLoad, "parse: %v", err)
	}
	synth, err := meltysynth.NewSynthesizer(sf, meltysynth.NewSynthesizerSettings(int32(sampleRate)))
	if err != nil {
		return nil, errors.Wrapf(ErrLoad, "synthesizer: %v", err)
	}
	e := &Engine{synth: synth, program: DefaultProgram}
	for _, opt := range opts {
		opt(e)
	}
	e.selectProgram()
	return e, nil
}

// Open loads the SoundFont2 file at path.
func Open(path string, sampleRate int, opts ...Option) (*Engine, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrapf(ErrLoad, "%v", err)
	}
	defer f.Close()
	return New(f, sampleRate, opts...)
}

func (e *Engine) selectProgram() {
	e.synth.ProcessMidiMessage(channel, midiProgramChange, e.program, 0)
}

func (e *Engine) NoteOn(note, velocity int) {
	e.synth.NoteOn(channel, int32(note), int32(velocity))
}

func (e *Engine) NoteOff(note int) {
	e.synth.NoteOff(channel, int32(note))
}

// SetSustain sends the damper pedal controller.
func (e *Engine) SetSustain(on bool) {
	value := int32(keys.MinCCValue)
	if on {
		value = keys.MaxCCValue
	}
	e.synth.ProcessMidiMessage(channel, midiControlChange, keys.SustainPedalCC, value)
}

// Render writes the average of the stereo output into dst.
func (e *Engine) Render(dst []float32) {
	if cap(e.left) < len(dst) {
		e.left = make([]float32, len(dst))
		e.right = make([]float32, len(dst))
	}
	left, right := e.left[:len(dst)], e.right[:len(dst)]
	e.synth.Render(left, right)
	for i := range dst {
		dst[i] = (left[i] + right[i]) * 0.5
	}
}

func (e *Engine) Reset() {
	e.synth.Reset()
	e.selectProgram()
}

func (e *Engine) Close() error {
	e.synth = nil
	return nil
}
