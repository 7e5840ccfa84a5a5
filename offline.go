// Package midiroll turns piano scores into key-activation trajectories, the
// note events those trajectories imply, and audio.
package midiroll

import (
	"sort"

	"github.com/pkg/errors"

	"github.com/cbegin/midiroll-go/internal/audio"
	"github.com/cbegin/midiroll-go/internal/edge"
	"github.com/cbegin/midiroll-go/internal/effects"
	"github.com/cbegin/midiroll-go/internal/fm"
	"github.com/cbegin/midiroll-go/internal/keys"
	"github.com/cbegin/midiroll-go/internal/midimsg"
	"github.com/cbegin/midiroll-go/internal/score"
	"github.com/cbegin/midiroll-go/internal/soundfont"
	"github.com/cbegin/midiroll-go/internal/synth"
	"github.com/cbegin/midiroll-go/internal/trajectory"
)

type SynthMode string

const (
	SynthModeFM        SynthMode = "fm"
	SynthModeSoundFont SynthMode = "soundfont"
)

var ErrUnknownMode = errors.New("unknown synth mode")

type Option func(*options)

type options struct {
	soundFont   string
	fmParams    fm.Params
	effects     *effects.Chain
	resetRender bool
}

func defaultOptions() options {
	return options{fmParams: fm.DefaultParams(), resetRender: true}
}

// WithSoundFont sets the SF2 bank used by SynthModeSoundFont.
func WithSoundFont(path string) Option {
	return func(o *options) { o.soundFont = path }
}

func WithFMParams(p fm.Params) Option {
	return func(o *options) { o.fmParams = p }
}

// WithEffects post-processes rendered and live audio.
func WithEffects(chain *effects.Chain) Option {
	return func(o *options) { o.effects = chain }
}

// WithResetBeforeRender controls whether each render starts from silence.
func WithResetBeforeRender(reset bool) Option {
	return func(o *options) { o.resetRender = reset }
}

func LoadScore(nameOrPath string, stretch float64, shift int) (*score.Score, error) {
	return score.Load(nameOrPath, stretch, shift)
}

// BuildTrajectory samples s every dt seconds and prepends initialBuffer
// seconds of silence.
func BuildTrajectory(s *score.Score, dt, initialBuffer float64) (*trajectory.Trajectory, error) {
	tr, err := trajectory.FromScore(s, dt)
	if err != nil {
		return nil, err
	}
	return tr.AddInitialBufferTime(initialBuffer)
}

// EventsFromTrajectory replays the goal of every step through an edge
// detector at t = step*dt. A final step at the trajectory's end lifts
// whatever is still held.
func EventsFromTrajectory(tr *trajectory.Trajectory) ([]midimsg.Message, error) {
	d := edge.New()
	for i, g := range tr.Goals() {
		if _, err := d.StepKeys(g.Keys, g.Sustain, float64(i)*tr.DT); err != nil {
			return nil, err
		}
	}
	if _, err := d.StepKeys([keys.NumKeys]bool{}, false, tr.Duration()); err != nil {
		return nil, err
	}
	return d.All(), nil
}

// EventsFromScore converts notes and pedal changes to time-sorted messages,
// keeping each note's velocity. At equal times offs come before pedal
// changes, which come before ons.
func EventsFromScore(s *score.Score) ([]midimsg.Message, error) {
	var out []midimsg.Message
	for _, n := range s.Notes {
		on, err := midimsg.NewNoteOn(n.Pitch, n.Velocity, n.Start)
		if err != nil {
			return nil, err
		}
		off, err := midimsg.NewNoteOff(n.Pitch, n.End)
		if err != nil {
			return nil, err
		}
		out = append(out, on, off)
	}

	ccs := append([]score.ControlChange(nil), s.ControlChanges...)
	sort.SliceStable(ccs, func(i, j int) bool { return ccs[i].Time < ccs[j].Time })
	pedal := false
	for _, cc := range ccs {
		if cc.Number != keys.SustainPedalCC {
			continue
		}
		down := cc.Value >= 64
		if down == pedal {
			continue
		}
		pedal = down
		if down {
			m, err := midimsg.NewSustainOn(cc.Time)
			if err != nil {
				return nil, err
			}
			out = append(out, m)
		} else {
			m, err := midimsg.NewSustainOff(cc.Time)
			if err != nil {
				return nil, err
			}
			out = append(out, m)
		}
	}

	sort.SliceStable(out, func(i, j int) bool {
		ti, tj := out[i].Seconds(), out[j].Seconds()
		if ti != tj {
			return ti < tj
		}
		return rank(out[i]) < rank(out[j])
	})
	return out, nil
}

func rank(m midimsg.Message) int {
	switch m.(type) {
	case midimsg.NoteOff:
		return 0
	case midimsg.SustainOn, midimsg.SustainOff:
		return 1
	default:
		return 2
	}
}

func newGenerator(mode SynthMode, sampleRate int, o options) (synth.ToneGenerator, error) {
	switch mode {
	case SynthModeFM, "":
		return fm.New(sampleRate, o.fmParams), nil
	case SynthModeSoundFont:
		if o.soundFont == "" {
			return nil, errors.Wrap(soundfont.ErrLoad, "no soundfont path")
		}
		return soundfont.Open(o.soundFont, sampleRate)
	default:
		return nil, errors.Wrapf(ErrUnknownMode, "%q", mode)
	}
}

// NewSynthesizer builds an offline synthesizer. The caller must Close it.
func NewSynthesizer(mode SynthMode, sampleRate int, opts ...Option) (*synth.Synthesizer, error) {
	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}
	gen, err := newGenerator(mode, sampleRate, o)
	if err != nil {
		return nil, err
	}
	sopts := []synth.Option{synth.WithResetBeforeRender(o.resetRender)}
	if o.effects != nil {
		sopts = append(sopts, synth.WithEffects(o.effects))
	}
	sy, err := synth.New(gen, sampleRate, sopts...)
	if err != nil {
		_ = gen.Close()
		return nil, err
	}
	return sy, nil
}

// RenderEvents renders events with a fresh synthesizer.
func RenderEvents(events []midimsg.Message, mode SynthMode, sampleRate int, opts ...Option) ([]int16, error) {
	sy, err := NewSynthesizer(mode, sampleRate, opts...)
	if err != nil {
		return nil, err
	}
	defer sy.Close()
	return sy.Render(events)
}

// RenderScore renders the notes of s at their own velocities.
func RenderScore(s *score.Score, mode SynthMode, sampleRate int, opts ...Option) ([]int16, error) {
	events, err := EventsFromScore(s)
	if err != nil {
		return nil, err
	}
	return RenderEvents(events, mode, sampleRate, opts...)
}

// RenderTrajectory renders what a player hitting every goal key at full
// velocity would sound like.
func RenderTrajectory(tr *trajectory.Trajectory, mode SynthMode, sampleRate int, opts ...Option) ([]int16, error) {
	events, err := EventsFromTrajectory(tr)
	if err != nil {
		return nil, err
	}
	return RenderEvents(events, mode, sampleRate, opts...)
}

func EncodeWAVInt16LE(samples []int16, sampleRate int, channels int) []byte {
	return audio.EncodeWAVInt16LE(samples, sampleRate, channels)
}
