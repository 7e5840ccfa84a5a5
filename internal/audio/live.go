package audio

import (
	"math"
	"sync"
	"sync/atomic"

	"github.com/sirupsen/logrus"

	"github.com/cbegin/midiroll-go/internal/edge"
	"github.com/cbegin/midiroll-go/internal/effects"
	"github.com/cbegin/midiroll-go/internal/midimsg"
	"github.com/cbegin/midiroll-go/internal/synth"
)

var _ edge.Listener = (*LiveSynth)(nil)

var log = logrus.WithField("component", "audio")

// LiveSynth feeds an audio thread from a synthesizer. Notes arrive either
// immediately through the edge.Listener methods or as a timed schedule that
// is applied as the sample clock passes each event.
type LiveSynth struct {
	mu         sync.Mutex
	synth      *synth.Synthesizer
	sampleRate float64
	effects    *effects.Chain
	clock      int64
	queue      []scheduled
	end        int64
	scheduled  bool
	finished   atomic.Bool
	onFinished func()
}

type scheduled struct {
	at  int64
	msg midimsg.Message
}

type LiveOption func(*LiveSynth)

func WithLiveEffects(chain *effects.Chain) LiveOption {
	return func(l *LiveSynth) { l.effects = chain }
}

// WithOnFinished registers f to run on the audio thread once a schedule has
// fully played. It is called without the synth lock held.
func WithOnFinished(f func()) LiveOption {
	return func(l *LiveSynth) { l.onFinished = f }
}

// NewLiveSynth takes ownership of s; all further calls must go through the
// LiveSynth.
func NewLiveSynth(s *synth.Synthesizer, opts ...LiveOption) *LiveSynth {
	l := &LiveSynth{synth: s, sampleRate: float64(s.SampleRate())}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

func (l *LiveSynth) warn(op string, err error) {
	if err != nil {
		log.Warnf("%s: %v", op, err)
	}
}

func (l *LiveSynth) NoteOn(note, velocity int) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.warn("note on", l.synth.NoteOn(note, velocity))
}

func (l *LiveSynth) NoteOff(note int) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.warn("note off", l.synth.NoteOff(note))
}

func (l *LiveSynth) SustainOn() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.warn("sustain on", l.synth.SustainOn())
}

func (l *LiveSynth) SustainOff() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.warn("sustain off", l.synth.SustainOff())
}

// Mute silences the synthesizer and drops note and pedal input until
// unmuted. The schedule keeps its clock.
func (l *LiveSynth) Mute(muted bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.synth.Mute(muted)
}

func (l *LiveSynth) Muted() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.synth.Muted()
}

func (l *LiveSynth) Sustained() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.synth.Sustained()
}

// Schedule queues time-sorted events relative to the current clock. Once the
// last one has played and tail seconds have passed, Finished reports true.
func (l *LiveSynth) Schedule(events []midimsg.Message, tail float64) {
	l.mu.Lock()
	defer l.mu.Unlock()
	last := l.clock
	for _, ev := range events {
		at := l.clock + int64(math.Round(ev.Seconds()*l.sampleRate))
		l.queue = append(l.queue, scheduled{at: at, msg: ev})
		last = max(last, at)
	}
	l.end = last + int64(math.Round(tail*l.sampleRate))
	l.scheduled = true
	l.finished.Store(false)
}

// Process renders len(dst) samples, applying due events at their sample.
func (l *LiveSynth) Process(dst []float32) {
	if l.process(dst) && l.onFinished != nil {
		l.onFinished()
	}
}

// process reports whether this call finished the schedule.
func (l *LiveSynth) process(dst []float32) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	i := 0
	for i < len(dst) {
		for len(l.queue) > 0 && l.queue[0].at <= l.clock {
			l.warn("scheduled event", l.synth.Apply(l.queue[0].msg))
			l.queue = l.queue[1:]
		}
		n := len(dst) - i
		if len(l.queue) > 0 {
			n = int(min(int64(n), l.queue[0].at-l.clock))
		}
		if err := l.synth.Generate(dst[i : i+n]); err != nil {
			clear(dst[i : i+n])
		}
		i += n
		l.clock += int64(n)
	}
	if l.effects != nil {
		l.effects.ProcessBuffer(dst)
	}
	if l.scheduled && len(l.queue) == 0 && l.clock >= l.end {
		return !l.finished.Swap(true)
	}
	return false
}

func (l *LiveSynth) Finished() bool { return l.finished.Load() }

// Elapsed returns the seconds of audio produced so far.
func (l *LiveSynth) Elapsed() float64 {
	l.mu.Lock()
	defer l.mu.Unlock()
	return float64(l.clock) / l.sampleRate
}

// Panic drops the schedule and turns all sounds off.
func (l *LiveSynth) Panic() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.queue = nil
	l.synth.AllSoundsOff()
}

// Close releases the synthesizer. Calling it again is a no-op.
func (l *LiveSynth) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.queue = nil
	return l.synth.Close()
}
