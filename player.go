package midiroll

import (
	"sync"

	"github.com/pkg/errors"

	"github.com/cbegin/midiroll-go/internal/audio"
	"github.com/cbegin/midiroll-go/internal/edge"
	"github.com/cbegin/midiroll-go/internal/midimsg"
	"github.com/cbegin/midiroll-go/internal/synth"
)

type gainSetter interface {
	SetMasterGain(gain float64)
}

// Player plays event schedules and live key presses through the default
// audio device.
type Player struct {
	mu         sync.Mutex
	sampleRate int
	mode       SynthMode
	opts       options
	gen        synth.ToneGenerator
	live       *audio.LiveSynth
	audio      *audio.Player
	volume     float64
	base       float64
	started    float64
	done       chan struct{}
}

func NewPlayer(sampleRate int, mode SynthMode, opts ...Option) (*Player, error) {
	if sampleRate <= 0 {
		return nil, errors.New("sampleRate must be positive")
	}
	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}
	gen, err := newGenerator(mode, sampleRate, o)
	if err != nil {
		return nil, err
	}
	sy, err := synth.New(gen, sampleRate)
	if err != nil {
		_ = gen.Close()
		return nil, err
	}
	p := &Player{
		sampleRate: sampleRate,
		mode:       mode,
		opts:       o,
		gen:        gen,
		volume:     1,
	}
	liveOpts := []audio.LiveOption{audio.WithOnFinished(p.signalDone)}
	if o.effects != nil {
		liveOpts = append(liveOpts, audio.WithLiveEffects(o.effects))
	}
	p.live = audio.NewLiveSynth(sy, liveOpts...)
	return p, nil
}

// Listener returns the live input for an edge detector.
func (p *Player) Listener() edge.Listener { return p.live }

// Start opens the audio output without scheduling anything, for live input.
func (p *Player) Start() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.startLocked()
}

func (p *Player) startLocked() error {
	if p.audio != nil {
		p.audio.Play()
		return nil
	}
	backend, err := audio.NewPlayer(p.sampleRate, p.live)
	if err != nil {
		return err
	}
	p.audio = backend
	p.base = p.live.Elapsed()
	p.audio.Play()
	return nil
}

// Play schedules events relative to now, followed by a decay tail.
func (p *Player) Play(events []midimsg.Message) error {
	if len(events) == 0 {
		return synth.ErrNoEvents
	}
	p.mu.Lock()
	defer p.mu.Unlock()

	// Signal any existing Wait() that the previous playback was replaced
	if p.done != nil {
		close(p.done)
	}
	p.done = make(chan struct{})
	// A finished stream has hit EOF and will not read again.
	if p.audio != nil && p.live.Finished() {
		if err := p.audio.Stop(); err != nil {
			return err
		}
		p.audio = nil
	}
	p.live.Panic()
	p.started = p.live.Elapsed()
	p.live.Schedule(events, synth.TailSeconds)
	return p.startLocked()
}

// Position returns the seconds of the current schedule the listener has
// heard.
func (p *Player) Position() float64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.audio == nil {
		return 0
	}
	return max(p.base+p.audio.Position().Seconds()-p.started, 0)
}

func (p *Player) signalDone() {
	p.mu.Lock()
	done := p.done
	p.done = nil
	p.mu.Unlock()
	if done != nil {
		close(done)
	}
}

func (p *Player) Pause() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.audio != nil {
		p.audio.Pause()
	}
}

func (p *Player) Resume() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.audio != nil {
		p.audio.Play()
	}
}

// Stop closes the output and releases the generator.
func (p *Player) Stop() error {
	p.mu.Lock()
	var err error
	if p.audio != nil {
		err = p.audio.Stop()
		p.audio = nil
	}
	p.live.Panic()
	done := p.done
	p.done = nil
	p.mu.Unlock()
	if done != nil {
		close(done)
	}
	if cerr := p.live.Close(); err == nil {
		err = cerr
	}
	return err
}

// Wait blocks until the current schedule has played out.
// Wait returns immediately if no playback is active or if it was stopped.
func (p *Player) Wait() {
	p.mu.Lock()
	done := p.done
	p.mu.Unlock()
	if done != nil {
		<-done
	}
}

// SetMasterVolume sets runtime volume scalar. 1.0 is default. Only the FM
// engine exposes a gain; other engines ignore it.
func (p *Player) SetMasterVolume(volume float64) {
	if volume < 0 {
		volume = 0
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	p.volume = volume
	if g, ok := p.gen.(gainSetter); ok {
		g.SetMasterGain(p.opts.fmParams.MasterGain * volume)
	}
}

func (p *Player) MasterVolume() float64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.volume
}

// Mute silences what is sounding and ignores note and pedal input, live or
// scheduled, until unmuted.
func (p *Player) Mute(muted bool) { p.live.Mute(muted) }

func (p *Player) Muted() bool { return p.live.Muted() }

// Sustained reports whether the pedal is currently down.
func (p *Player) Sustained() bool { return p.live.Sustained() }

// Elapsed returns the seconds of audio produced since the player was made.
func (p *Player) Elapsed() float64 { return p.live.Elapsed() }
