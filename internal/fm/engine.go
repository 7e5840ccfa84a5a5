package fm

import (
	"math"
	"sync/atomic"

	"github.com/cbegin/midiroll-go/internal/keys"
	"github.com/cbegin/midiroll-go/internal/numeric"
)

const (
	twoPi = math.Pi * 2

	// silence is the envelope level below which a voice is freed.
	silence = 1e-4
	// decayFloor is the level a full DecaySec brings the envelope to (-60 dB).
	decayFloor = 1e-3
)

type Params struct {
	Polyphony   int
	CarrierMul  float64
	ModMul      float64
	ModIndex    float64 // peak modulation index at full velocity
	AttackSec   float64
	DecaySec    float64 // -60 dB decay time of a held middle C
	ModDecaySec float64 // -60 dB decay time of the modulator, i.e. the brightness
	ReleaseSec  float64 // -60 dB time after the damper falls
	KeyScaling  float64 // decay time halves every 1/KeyScaling octaves above middle C
	Detune      float64 // cents of the second carrier
	MasterGain  float64
	VelocityAmp float64
	LPFCutoff   float64 // lowpass filter cutoff in Hz (0 = disabled)
}

func DefaultParams() Params {
	return Params{
		Polyphony:   48,
		CarrierMul:  1.0,
		ModMul:      1.0,
		ModIndex:    2.2,
		AttackSec:   0.002,
		DecaySec:    6.0,
		ModDecaySec: 0.9,
		ReleaseSec:  0.25,
		KeyScaling:  0.6,
		Detune:      3,
		MasterGain:  0.3,
		VelocityAmp: 0.8,
		LPFCutoff:   9000,
	}
}

type envState int

const (
	envAttack envState = iota
	envDecay
	envRelease
	envOff
)

type operator struct {
	phase    float64
	env      float64
	envState envState
	mul      float64
	attack   float64 // per-sample increment
	decay    float64 // per-sample multiplier
	release  float64 // per-sample multiplier
}

type voice struct {
	active   bool
	note     int
	age      int
	velocity float64
	freq     float64
	detune   float64
	carrier  operator
	detuned  operator
	mod      operator
	keyDown  bool
	held     bool // released while the pedal was down
}

// Engine is a polyphonic two-operator FM piano keyed by MIDI note. It is not
// safe for concurrent use.
type Engine struct {
	sampleRate float64
	params     Params
	voices     []voice
	masterGain uint64
	sustain    bool
	age        int
	lpf        float64
	lpfAlpha   float64
}

func New(sampleRate int, params Params) *Engine {
	if params.Polyphony <= 0 {
		params.Polyphony = 48
	}
	e := &Engine{
		sampleRate: float64(sampleRate),
		params:     params,
		voices:     make([]voice, params.Polyphony),
		masterGain: math.Float64bits(params.MasterGain),
	}
	if params.LPFCutoff > 0 && params.LPFCutoff < float64(sampleRate)/2 {
		rc := 1.0 / (twoPi * params.LPFCutoff)
		dt := 1.0 / float64(sampleRate)
		e.lpfAlpha = dt / (rc + dt)
	}
	return e
}

// NoteOn starts note. A velocity of zero is a note off. Striking a note that
// is still sounding restarts its voice.
func (e *Engine) NoteOn(note, velocity int) {
	if velocity <= 0 {
		e.NoteOff(note)
		return
	}
	slot := e.voiceFor(note)
	e.age++

	vel := numeric.Clamp(float64(velocity)/keys.MaxVelocity, 0, 1)
	scale := math.Pow(2, -float64(note-60)/12*e.params.KeyScaling)
	decaySec := e.params.DecaySec * scale
	modDecaySec := e.params.ModDecaySec * scale

	v := &e.voices[slot]
	*v = voice{
		active:   true,
		note:     note,
		age:      e.age,
		velocity: vel,
		freq:     keys.MidiToFreq(note),
		detune:   math.Pow(2, e.params.Detune/1200),
		keyDown:  true,
	}
	v.carrier = e.newOperator(e.params.CarrierMul, decaySec)
	v.detuned = e.newOperator(e.params.CarrierMul, decaySec*0.8)
	v.mod = e.newOperator(e.params.ModMul, modDecaySec)
}

func (e *Engine) newOperator(mul, decaySec float64) operator {
	return operator{
		envState: envAttack,
		mul:      mul,
		attack:   1.0 / math.Max(e.params.AttackSec*e.sampleRate, 1),
		decay:    e.multiplier(decaySec),
		release:  e.multiplier(e.params.ReleaseSec),
	}
}

// multiplier is the per-sample factor that reaches decayFloor after sec.
func (e *Engine) multiplier(sec float64) float64 {
	samples := math.Max(sec*e.sampleRate, 1)
	return math.Exp(math.Log(decayFloor) / samples)
}

// NoteOff lifts the key. With the pedal down the voice keeps ringing until
// the pedal is released.
func (e *Engine) NoteOff(note int) {
	for i := range e.voices {
		v := &e.voices[i]
		if !v.active || v.note != note || !v.keyDown {
			continue
		}
		v.keyDown = false
		if e.sustain {
			v.held = true
			continue
		}
		v.release()
	}
}

func (v *voice) release() {
	v.held = false
	for _, op := range []*operator{&v.carrier, &v.detuned, &v.mod} {
		if op.envState != envOff {
			op.envState = envRelease
		}
	}
}

// SetSustain presses or lifts the damper pedal.
func (e *Engine) SetSustain(on bool) {
	e.sustain = on
	if on {
		return
	}
	for i := range e.voices {
		v := &e.voices[i]
		if v.active && v.held {
			v.release()
		}
	}
}

func (e *Engine) Sustained() bool { return e.sustain }

// Render writes len(dst) mono samples.
func (e *Engine) Render(dst []float32) {
	for i := range dst {
		dst[i] = e.RenderSample()
	}
}

func (e *Engine) RenderSample() float32 {
	gain := e.masterGainValue()
	var out float64
	for i := range e.voices {
		v := &e.voices[i]
		if !v.active {
			continue
		}
		advanceOpEnv(&v.carrier)
		advanceOpEnv(&v.detuned)
		advanceOpEnv(&v.mod)
		if v.carrier.envState == envOff && v.detuned.envState == envOff {
			v.active = false
			continue
		}

		index := e.params.ModIndex * (0.4 + 0.6*v.velocity) * v.mod.env
		mod := math.Sin(v.mod.phase) * index
		sig := math.Sin(v.carrier.phase+mod)*v.carrier.env*0.6 +
			math.Sin(v.detuned.phase+mod*0.5)*v.detuned.env*0.4
		out += sig * gain * (0.2 + v.velocity*e.params.VelocityAmp)

		step := twoPi * v.freq / e.sampleRate
		v.carrier.advance(step)
		v.detuned.advance(step * v.detune)
		v.mod.advance(step)
	}
	if e.lpfAlpha > 0 {
		e.lpf += e.lpfAlpha * (out - e.lpf)
		out = e.lpf
	}
	return float32(numeric.Clamp(out, -1, 1))
}

func (op *operator) advance(step float64) {
	op.phase += step * op.mul
	if op.phase > twoPi {
		op.phase = math.Mod(op.phase, twoPi)
	}
}

// voiceFor returns the voice already playing note, else a free voice, else
// the quietest one, the oldest among equally quiet voices.
func (e *Engine) voiceFor(note int) int {
	for i := range e.voices {
		if e.voices[i].active && e.voices[i].note == note {
			return i
		}
	}
	for i := range e.voices {
		if !e.voices[i].active {
			return i
		}
	}
	quiet := 0
	for i := 1; i < len(e.voices); i++ {
		v, q := &e.voices[i], &e.voices[quiet]
		if v.carrier.env < q.carrier.env || (v.carrier.env == q.carrier.env && v.age < q.age) {
			quiet = i
		}
	}
	return quiet
}

func advanceOpEnv(op *operator) {
	switch op.envState {
	case envAttack:
		op.env += op.attack
		if op.env >= 1 {
			op.env = 1
			op.envState = envDecay
		}
	case envDecay:
		op.env *= op.decay
		if op.env <= silence {
			op.env = 0
			op.envState = envOff
		}
	case envRelease:
		op.env *= op.release
		if op.env <= silence {
			op.env = 0
			op.envState = envOff
		}
	case envOff:
		op.env = 0
	}
}

// Reset silences every voice and lifts the pedal.
func (e *Engine) Reset() {
	for i := range e.voices {
		e.voices[i] = voice{}
	}
	e.sustain = false
	e.age = 0
	e.lpf = 0
}

func (e *Engine) Close() error { return nil }

func (e *Engine) SetMasterGain(gain float64) {
	if gain < 0 {
		gain = 0
	}
	atomic.StoreUint64(&e.masterGain, math.Float64bits(gain))
}

func (e *Engine) ActiveVoiceCount() int {
	n := 0
	for i := range e.voices {
		if e.voices[i].active {
			n++
		}
	}
	return n
}

func (e *Engine) masterGainValue() float64 {
	return math.Float64frombits(atomic.LoadUint64(&e.masterGain))
}
