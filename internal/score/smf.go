package score

import (
	"bytes"
	"fmt"
	"io"
	"math"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"gitlab.com/gomidi/midi/v2"
	"gitlab.com/gomidi/midi/v2/smf"

	"github.com/cbegin/midiroll-go/internal/keys"
)

// Resolution is the ticks per quarter note used when writing files.
const Resolution = 480

var log = logrus.WithField("component", "score")

type pendingNote struct {
	start    float64
	velocity int
}

type noteKey struct {
	channel uint8
	key     uint8
}

// ReadSMF parses a Standard MIDI File from disk.
func ReadSMF(path string) (*Score, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrapf(err, "reading midi file %s", path)
	}
	s, err := ReadSMFFrom(bytes.NewReader(data))
	if err != nil {
		return nil, errors.Wrapf(err, "parsing midi file %s", path)
	}
	if s.Title == "" {
		s.Title = strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	}
	return s, nil
}

// ReadSMFFrom pairs note starts with note ends on the same channel and key
// across all tracks, converting ticks to seconds through the file's tempo
// map. Notes still sounding at the end of the file are closed there.
func ReadSMFFrom(r io.Reader) (out *Score, err error) {
	// smf panics on some malformed input.
	defer func() {
		if rec := recover(); rec != nil {
			out = nil
			err = errors.Errorf("malformed midi data: %v", rec)
		}
	}()

	f, err := smf.ReadFrom(r)
	if err != nil {
		return nil, errors.WithStack(err)
	}

	s := &Score{QPM: DefaultQPM}
	var tempoSeen bool
	var fileEnd float64
	for ti, track := range f.Tracks {
		var absTicks int64
		open := make(map[noteKey][]pendingNote)
		for _, ev := range track {
			absTicks += int64(ev.Delta)
			now := float64(f.TimeAt(absTicks)) / 1e6
			if now > fileEnd {
				fileEnd = now
			}

			var name string
			var bpm float64
			if ev.Message.GetMetaTrackName(&name) && s.Title == "" {
				s.Title = strings.TrimSpace(name)
				continue
			}
			if ev.Message.GetMetaTempo(&bpm) && !tempoSeen {
				s.QPM = bpm
				tempoSeen = true
				continue
			}

			msg := midi.Message(ev.Message)
			var ch, key, vel, ctl, val uint8
			switch {
			case msg.GetNoteStart(&ch, &key, &vel):
				k := noteKey{ch, key}
				open[k] = append(open[k], pendingNote{start: now, velocity: int(vel)})
			case msg.GetNoteEnd(&ch, &key):
				k := noteKey{ch, key}
				stack := open[k]
				if len(stack) == 0 {
					log.Debugf("note off without note on: key=%d ch=%d track=%d", key, ch, ti)
					continue
				}
				p := stack[0]
				open[k] = stack[1:]
				s.appendNote(p, int(key), now)
			case msg.GetControlChange(&ch, &ctl, &val):
				s.ControlChanges = append(s.ControlChanges, ControlChange{Time: now, Number: int(ctl), Value: int(val)})
			}
		}
		for k, stack := range open {
			for _, p := range stack {
				log.Warnf("missing note off: key=%d ch=%d track=%d", k.key, k.channel, ti)
				s.appendNote(p, int(k.key), fileEnd)
			}
		}
	}

	sort.SliceStable(s.Notes, func(i, j int) bool { return s.Notes[i].Start < s.Notes[j].Start })
	sort.SliceStable(s.ControlChanges, func(i, j int) bool { return s.ControlChanges[i].Time < s.ControlChanges[j].Time })
	s.TotalTime = fileEnd
	for _, n := range s.Notes {
		if n.End > s.TotalTime {
			s.TotalTime = n.End
		}
	}
	return s, nil
}

func (s *Score) appendNote(p pendingNote, key int, end float64) {
	if end <= p.start {
		log.Debugf("dropping zero-length note: key=%d at %.4fs", key, p.start)
		return
	}
	s.Notes = append(s.Notes, Note{Start: p.start, End: end, Pitch: key, Velocity: p.velocity, Part: NoFingering})
}

// WriteSMF writes s as a single-track Standard MIDI File.
func WriteSMF(s *Score, path string) error {
	f, err := os.Create(path)
	if err != nil {
		return errors.WithStack(err)
	}
	if err := WriteSMFTo(s, f); err != nil {
		f.Close()
		return errors.Wrapf(err, "writing %s", path)
	}
	return errors.WithStack(f.Close())
}

type timedMessage struct {
	tick  int64
	order int
	msg   []byte
}

// WriteSMFTo encodes notes, control changes and the score tempo on channel 0.
func WriteSMFTo(s *Score, w io.Writer) error {
	qpm := s.QPM
	if qpm <= 0 {
		qpm = DefaultQPM
	}
	toTicks := func(sec float64) int64 {
		return int64(math.Round(sec * qpm / 60 * Resolution))
	}

	var events []timedMessage
	for _, n := range s.Notes {
		if err := n.Validate(); err != nil {
			return err
		}
		// Note offs sort before note ons at the same tick so repeated
		// pitches re-strike instead of collapsing.
		events = append(events,
			timedMessage{tick: toTicks(n.Start), order: 2, msg: midi.NoteOn(0, uint8(n.Pitch), uint8(n.Velocity))},
			timedMessage{tick: toTicks(n.End), order: 0, msg: midi.NoteOff(0, uint8(n.Pitch))},
		)
	}
	for _, cc := range s.ControlChanges {
		if err := cc.Validate(); err != nil {
			return err
		}
		events = append(events, timedMessage{tick: toTicks(cc.Time), order: 1, msg: midi.ControlChange(0, uint8(cc.Number), uint8(cc.Value))})
	}
	sort.SliceStable(events, func(i, j int) bool {
		if events[i].tick != events[j].tick {
			return events[i].tick < events[j].tick
		}
		return events[i].order < events[j].order
	})

	var tr smf.Track
	if s.Title != "" {
		tr.Add(0, smf.MetaTrackSequenceName(s.Title))
	}
	tr.Add(0, smf.MetaTempo(qpm))
	var last int64
	for _, ev := range events {
		tr.Add(uint32(ev.tick-last), ev.msg)
		last = ev.tick
	}
	end := toTicks(s.TotalTime)
	if end < last {
		end = last
	}
	tr.Close(uint32(end - last))

	file := smf.New()
	file.TimeFormat = smf.MetricTicks(Resolution)
	if err := file.Add(tr); err != nil {
		return errors.WithStack(err)
	}
	_, err := file.WriteTo(w)
	return errors.WithStack(err)
}

// Load resolves nameOrPath to a built-in song or a .mid/.midi file, then
// applies stretch and a semitone shift.
func Load(nameOrPath string, stretch float64, shift int) (*Score, error) {
	var s *Score
	var err error
	switch ext := strings.ToLower(filepath.Ext(nameOrPath)); {
	case ext == ".mid" || ext == ".midi":
		s, err = ReadSMF(nameOrPath)
	default:
		s, err = Builtin(nameOrPath)
		if err != nil {
			err = errors.Wrapf(err, "expected one of %s or a .mid file", strings.Join(Names(), ", "))
		}
	}
	if err != nil {
		return nil, err
	}
	if s, err = s.Stretch(stretch); err != nil {
		return nil, err
	}
	return s.Transpose(shift), nil
}

// Describe is a one-line summary for listings.
func (s *Score) Describe() string {
	name := s.Title
	if name == "" {
		name = "untitled"
	}
	lo, hi, ok := s.PitchBounds()
	if !ok {
		return fmt.Sprintf("%s: empty, %.2fs", name, s.TotalTime)
	}
	loName, _ := keys.MidiToName(lo)
	hiName, _ := keys.MidiToName(hi)
	return fmt.Sprintf("%s: %d notes, %.2fs, %s-%s, fingering=%t", name, len(s.Notes), s.TotalTime, loName, hiName, s.HasFingering())
}
