package fm

import (
	"math"
	"testing"
)

func energy(buf []float32) float64 {
	var sum float64
	for _, s := range buf {
		sum += math.Abs(float64(s))
	}
	return sum
}

func TestEngineGeneratesSignal(t *testing.T) {
	e := New(48000, DefaultParams())
	e.NoteOn(60, 100)

	buf := make([]float32, 5000)
	e.Render(buf)
	if energy(buf) == 0 {
		t.Fatalf("expected non-zero output")
	}
	for i, s := range buf {
		if s < -1 || s > 1 {
			t.Fatalf("sample %d out of range: %f", i, s)
		}
	}
}

func TestSilentWithoutNotes(t *testing.T) {
	e := New(48000, DefaultParams())
	buf := make([]float32, 1024)
	e.Render(buf)
	if energy(buf) != 0 {
		t.Fatalf("expected silence")
	}
}

func TestZeroVelocityIsNoteOff(t *testing.T) {
	e := New(48000, DefaultParams())
	e.NoteOn(60, 0)
	if got := e.ActiveVoiceCount(); got != 0 {
		t.Fatalf("active voices = %d, want 0", got)
	}
}

func TestNoteOffReleasesVoice(t *testing.T) {
	e := New(48000, DefaultParams())
	e.NoteOn(60, 100)
	e.Render(make([]float32, 512))
	e.NoteOff(60)
	e.Render(make([]float32, 48000))
	if got := e.ActiveVoiceCount(); got != 0 {
		t.Fatalf("active voices after release = %d, want 0", got)
	}
}

func TestSustainHoldsReleasedNotes(t *testing.T) {
	e := New(48000, DefaultParams())
	e.SetSustain(true)
	e.NoteOn(60, 100)
	e.Render(make([]float32, 512))
	e.NoteOff(60)
	e.Render(make([]float32, 24000))
	if got := e.ActiveVoiceCount(); got != 1 {
		t.Fatalf("held voice count = %d, want 1", got)
	}

	e.SetSustain(false)
	e.Render(make([]float32, 48000))
	if got := e.ActiveVoiceCount(); got != 0 {
		t.Fatalf("voices after pedal up = %d, want 0", got)
	}
}

func TestRestrikeReusesVoice(t *testing.T) {
	e := New(48000, DefaultParams())
	e.NoteOn(64, 90)
	e.NoteOn(64, 90)
	if got := e.ActiveVoiceCount(); got != 1 {
		t.Fatalf("active voices = %d, want 1", got)
	}
}

func TestVoiceStealingKeepsPolyphonyBound(t *testing.T) {
	p := DefaultParams()
	p.Polyphony = 4
	e := New(48000, p)
	for n := 60; n < 70; n++ {
		e.NoteOn(n, 100)
		e.Render(make([]float32, 64))
	}
	if got := e.ActiveVoiceCount(); got != 4 {
		t.Fatalf("active voices = %d, want 4", got)
	}
}

func TestVelocityScalesLoudness(t *testing.T) {
	render := func(vel int) float64 {
		e := New(48000, DefaultParams())
		e.NoteOn(60, vel)
		buf := make([]float32, 4096)
		e.Render(buf)
		return energy(buf)
	}
	soft, loud := render(20), render(120)
	if soft >= loud {
		t.Fatalf("expected louder output for higher velocity, soft=%f loud=%f", soft, loud)
	}
}

func TestHighNotesDecayFaster(t *testing.T) {
	tail := func(note int) float64 {
		e := New(48000, DefaultParams())
		e.NoteOn(note, 100)
		e.Render(make([]float32, 48000))
		buf := make([]float32, 4800)
		e.Render(buf)
		return energy(buf)
	}
	if low, high := tail(40), tail(96); high >= low {
		t.Fatalf("expected faster decay for high notes, low=%f high=%f", low, high)
	}
}

func TestResetSilences(t *testing.T) {
	e := New(48000, DefaultParams())
	e.SetSustain(true)
	e.NoteOn(60, 100)
	e.NoteOn(67, 100)
	e.Reset()
	if e.ActiveVoiceCount() != 0 || e.Sustained() {
		t.Fatalf("expected reset engine")
	}
	buf := make([]float32, 256)
	e.Render(buf)
	if energy(buf) != 0 {
		t.Fatalf("expected silence after reset")
	}
}

func TestSetMasterGainZeroMutes(t *testing.T) {
	e := New(48000, DefaultParams())
	e.SetMasterGain(0)
	e.NoteOn(60, 100)
	buf := make([]float32, 2048)
	e.Render(buf)
	if energy(buf) != 0 {
		t.Fatalf("expected silence at zero gain")
	}
}

func playingNotes(e *Engine) map[int]bool {
	notes := map[int]bool{}
	for _, v := range e.voices {
		if v.active {
			notes[v.note] = true
		}
	}
	return notes
}

func TestStealingPrefersOldestAmongEquallyQuiet(t *testing.T) {
	p := DefaultParams()
	p.Polyphony = 2
	e := New(48000, p)
	// Nothing is rendered, so every voice sits at the start of its attack.
	e.NoteOn(60, 100)
	e.NoteOn(61, 100)
	e.NoteOn(62, 100)
	e.NoteOn(63, 100)
	got := playingNotes(e)
	if len(got) != 2 || !got[62] || !got[63] {
		t.Fatalf("playing notes = %v, want 62 and 63", got)
	}
}
