// Package pianoroll rasterizes a score into dense per-frame grids.
//
// A Roll is indexed [frame][pitch-MinPitch]. Quantize is a pure function:
// the same score and options always produce identical grids.
package pianoroll

import (
	"math"

	"github.com/pkg/errors"

	"github.com/cbegin/midiroll-go/internal/keys"
	"github.com/cbegin/midiroll-go/internal/numeric"
	"github.com/cbegin/midiroll-go/internal/score"
)

const (
	DefaultOnsetUpweight = 5.0
	DefaultOnsetWindow   = 1

	// NumControls is the width of the control change grid.
	NumControls = 128

	// frameEpsilon absorbs float error when sizing the frame axis so a total
	// time of exactly n frames is not rounded up to n+1.
	frameEpsilon = 1e-9
)

var ErrInvalidOptions = errors.New("invalid piano roll options")

type OnsetMode int

const (
	// OnsetWindow flags OnsetWindow frames on either side of the onset frame.
	OnsetWindow OnsetMode = iota
	// OnsetLengthMs flags a trailing span of OnsetLengthMs after the onset.
	OnsetLengthMs
)

type Options struct {
	FramesPerSecond float64
	MinPitch        int
	MaxPitch        int
	MaxVelocity     int

	OnsetMode      OnsetMode
	OnsetWindow    int
	OnsetLengthMs  float64
	OffsetLengthMs float64
	OnsetDelayMs   float64

	// MinFrameOccupancy, when positive, drops a boundary frame that the note
	// covers for less than this fraction.
	MinFrameOccupancy float64

	OnsetUpweight            float64
	OnsetOverlap             bool
	AddBlankFrameBeforeOnset bool
}

func DefaultOptions(fps float64) Options {
	return Options{
		FramesPerSecond: fps,
		MinPitch:        keys.MinMidiPitch,
		MaxPitch:        keys.MaxMidiPitch,
		MaxVelocity:     keys.MaxVelocity,
		OnsetMode:       OnsetWindow,
		OnsetWindow:     DefaultOnsetWindow,
		OnsetUpweight:   DefaultOnsetUpweight,
		OnsetOverlap:    true,
	}
}

func (o Options) validate() error {
	switch {
	case o.FramesPerSecond <= 0 || math.IsInf(o.FramesPerSecond, 0) || math.IsNaN(o.FramesPerSecond):
		return errors.Wrapf(ErrInvalidOptions, "frames per second must be positive, got %g", o.FramesPerSecond)
	case o.MinPitch < keys.MinMidiPitch || o.MaxPitch > keys.MaxMidiPitch || o.MinPitch > o.MaxPitch:
		return errors.Wrapf(ErrInvalidOptions, "pitch window [%d, %d] is not inside [0, 127]", o.MinPitch, o.MaxPitch)
	case o.MaxVelocity <= 0:
		return errors.Wrapf(ErrInvalidOptions, "max velocity must be positive, got %d", o.MaxVelocity)
	case o.OnsetWindow < 0:
		return errors.Wrapf(ErrInvalidOptions, "onset window must be non-negative, got %d", o.OnsetWindow)
	case o.OnsetMode != OnsetWindow && o.OnsetMode != OnsetLengthMs:
		return errors.Wrapf(ErrInvalidOptions, "unknown onset mode %d", o.OnsetMode)
	}
	return nil
}

type Roll struct {
	FramesPerSecond float64
	MinPitch        int

	Active           [][]bool
	Onsets           [][]bool
	Offsets          [][]bool
	ActiveVelocities [][]float32
	OnsetVelocities  [][]float32
	Weights          [][]float32
	Fingerings       [][]int8
	// ControlChanges holds value+1 per control number; 0 means no event.
	ControlChanges [][NumControls]int16
}

func (r *Roll) NumFrames() int { return len(r.Active) }

func (r *Roll) NumPitches() int {
	if len(r.Active) == 0 {
		return 0
	}
	return len(r.Active[0])
}

// NumFrames is the frame count for a score of totalTime seconds.
func NumFrames(totalTime, fps float64) int {
	return int(math.Ceil(totalTime*fps-frameEpsilon)) + 1
}

func grid[T any](frames, cols int) [][]T {
	flat := make([]T, frames*cols)
	out := make([][]T, frames)
	for i := range out {
		out[i] = flat[i*cols : (i+1)*cols : (i+1)*cols]
	}
	return out
}

// span sets col in rows [from, to) clipped to the grid.
func span[T any](g [][]T, from, to, col int, v T) {
	from = numeric.Clamp(from, 0, len(g))
	to = numeric.Clamp(to, 0, len(g))
	for f := from; f < to; f++ {
		g[f][col] = v
	}
}

type quantizer struct {
	opts Options
}

// frames converts a time span into a [start, end) frame range. Start rounds
// down and end rounds up, then the occupancy threshold trims boundary frames
// and the result always covers at least one frame.
func (q quantizer) frames(start, end float64) (int, int) {
	fps := q.opts.FramesPerSecond
	occ := q.opts.MinFrameOccupancy

	startFrame := int(math.Floor(start * fps))
	startOcc := float64(startFrame) + 1 - start*fps
	if occ > 0 && startOcc < occ {
		startFrame++
	}

	endFrame := int(math.Ceil(end * fps))
	endOcc := end*fps - float64(startFrame) - 1
	if occ > 0 && endOcc < occ {
		endFrame--
	}
	return startFrame, max(startFrame+1, endFrame)
}

// Quantize builds the piano roll for s. Notes are visited in start order and
// later notes overwrite earlier ones where their spans overlap, fingering
// included.
func Quantize(s *score.Score, opts Options) (*Roll, error) {
	if err := opts.validate(); err != nil {
		return nil, err
	}
	if s.TotalTime < 0 {
		return nil, errors.Wrapf(ErrInvalidOptions, "score total time must be non-negative, got %g", s.TotalTime)
	}
	q := quantizer{opts: opts}
	numFrames := NumFrames(s.TotalTime, opts.FramesPerSecond)
	numPitches := opts.MaxPitch - opts.MinPitch + 1

	r := &Roll{
		FramesPerSecond:  opts.FramesPerSecond,
		MinPitch:         opts.MinPitch,
		Active:           grid[bool](numFrames, numPitches),
		Onsets:           grid[bool](numFrames, numPitches),
		Offsets:          grid[bool](numFrames, numPitches),
		ActiveVelocities: grid[float32](numFrames, numPitches),
		OnsetVelocities:  grid[float32](numFrames, numPitches),
		Weights:          grid[float32](numFrames, numPitches),
		Fingerings:       grid[int8](numFrames, numPitches),
		ControlChanges:   make([][NumControls]int16, numFrames),
	}
	for f := 0; f < numFrames; f++ {
		for p := 0; p < numPitches; p++ {
			r.Weights[f][p] = 1
			r.Fingerings[f][p] = score.NoFingering
		}
	}

	upweight := float32(opts.OnsetUpweight)
	for _, note := range s.SortedNotes() {
		if note.Pitch < opts.MinPitch || note.Pitch > opts.MaxPitch {
			continue
		}
		if note.Velocity < 0 || note.Velocity > opts.MaxVelocity {
			return nil, errors.Wrapf(score.ErrInvalidNote, "note velocity %d exceeds max velocity %d", note.Velocity, opts.MaxVelocity)
		}
		col := note.Pitch - opts.MinPitch
		startFrame, endFrame := q.frames(note.Start, note.End)

		delay := opts.OnsetDelayMs / 1000
		onsetStartTime := note.Start + delay
		onsetEndTime := note.End + delay
		var onsetStart, onsetEnd int
		switch opts.OnsetMode {
		case OnsetWindow:
			center, _ := q.frames(onsetStartTime, onsetEndTime)
			onsetStart = max(0, center-opts.OnsetWindow)
			onsetEnd = min(numFrames, center+opts.OnsetWindow+1)
		case OnsetLengthMs:
			onsetEndTime = min(onsetEndTime, onsetStartTime+opts.OnsetLengthMs/1000)
			onsetStart, onsetEnd = q.frames(onsetStartTime, onsetEndTime)
		}

		offsetStartTime := min(note.End, s.TotalTime-opts.OffsetLengthMs/1000)
		offsetEndTime := offsetStartTime + opts.OffsetLengthMs/1000
		offsetStart, offsetEnd := q.frames(offsetStartTime, offsetEndTime)
		offsetEnd = max(offsetEnd, offsetStart+1)

		if !opts.OnsetOverlap {
			startFrame = onsetEnd
			endFrame = max(startFrame+1, endFrame)
		}

		span(r.Offsets, offsetStart, offsetEnd, col, true)
		span(r.Onsets, onsetStart, onsetEnd, col, true)
		span(r.Active, startFrame, endFrame, col, true)
		span(r.ActiveVelocities, startFrame, endFrame, col, float32(note.Velocity)/float32(opts.MaxVelocity))
		span(r.Weights, onsetStart, onsetEnd, col, upweight)
		for f, k := max(onsetEnd, 0), 1; f < min(endFrame, numFrames); f, k = f+1, k+1 {
			r.Weights[f][col] = upweight / float32(k)
		}
		span(r.Fingerings, startFrame, endFrame, col, int8(note.Part))

		if opts.AddBlankFrameBeforeOnset && startFrame > 0 && startFrame-1 < numFrames {
			r.Active[startFrame-1][col] = false
			r.Weights[startFrame-1][col] = 1
		}
	}

	for _, cc := range s.ControlChanges {
		frame, _ := q.frames(cc.Time, 0)
		if frame < 0 || frame >= numFrames || cc.Number < 0 || cc.Number >= NumControls {
			continue
		}
		r.ControlChanges[frame][cc.Number] = int16(cc.Value + 1)
	}

	for f := 0; f < numFrames; f++ {
		for p := 0; p < numPitches; p++ {
			if r.Onsets[f][p] {
				r.OnsetVelocities[f][p] = r.ActiveVelocities[f][p]
			}
		}
	}
	return r, nil
}
