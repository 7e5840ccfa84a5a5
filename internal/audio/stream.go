package audio

import (
	"encoding/binary"
	"fmt"
	"io"
	"math"
	"sync"
	"time"

	ebitaudio "github.com/hajimehoshi/ebiten/v2/audio"
)

// SampleSource produces mono samples on demand.
type SampleSource interface {
	Process(dst []float32)
}

// FinishingSource is a SampleSource that can signal when playback has ended.
// When Finished returns true, the stream will return io.EOF on the next Read.
type FinishingSource interface {
	SampleSource
	Finished() bool
}

// StreamReader encodes a mono source as interleaved stereo float32 LE frames.
type StreamReader struct {
	mu     sync.Mutex
	source SampleSource
	buf    []float32
}

func NewStreamReader(source SampleSource) *StreamReader {
	return &StreamReader{source: source}
}

func (r *StreamReader) Read(p []byte) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	frames := len(p) / 8
	if frames == 0 {
		return 0, nil
	}
	if cap(r.buf) < frames {
		r.buf = make([]float32, frames)
	}
	r.buf = r.buf[:frames]
	r.source.Process(r.buf)
	for i, s := range r.buf {
		u := math.Float32bits(s)
		binary.LittleEndian.PutUint32(p[i*8:], u)
		binary.LittleEndian.PutUint32(p[i*8+4:], u)
	}
	n := frames * 8
	if fs, ok := r.source.(FinishingSource); ok && fs.Finished() {
		return n, io.EOF
	}
	return n, nil
}

func (r *StreamReader) Close() error { return nil }

// Player streams a SampleSource to the default output device.
type Player struct {
	out    *ebitaudio.Player
	stream *StreamReader
}

var (
	ctxOnce       sync.Once
	ctx           *ebitaudio.Context
	ctxSampleRate int
)

// sharedContext returns the process-wide ebiten context. ebiten allows only
// one, so every Player must use the same sample rate.
func sharedContext(sampleRate int) (*ebitaudio.Context, error) {
	ctxOnce.Do(func() {
		ctxSampleRate = sampleRate
		ctx = ebitaudio.NewContext(sampleRate)
	})
	if ctxSampleRate != sampleRate {
		return nil, fmt.Errorf("audio output already opened at %d Hz, cannot reopen at %d Hz", ctxSampleRate, sampleRate)
	}
	return ctx, nil
}

func NewPlayer(sampleRate int, source SampleSource) (*Player, error) {
	c, err := sharedContext(sampleRate)
	if err != nil {
		return nil, err
	}
	stream := NewStreamReader(source)
	out, err := c.NewPlayerF32(stream)
	if err != nil {
		return nil, err
	}
	return &Player{out: out, stream: stream}, nil
}

func (p *Player) Play()  { p.out.Play() }
func (p *Player) Pause() { p.out.Pause() }

// Position is how much of the stream has reached the speakers.
func (p *Player) Position() time.Duration { return p.out.Position() }

func (p *Player) Stop() error {
	p.out.Pause()
	if err := p.out.Close(); err != nil {
		return err
	}
	return p.stream.Close()
}
