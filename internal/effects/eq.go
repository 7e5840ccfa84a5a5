package effects

import "math"

// EQ3Band splits the signal at two one-pole crossovers and reweights the bands.
type EQ3Band struct {
	lowGain  float32
	midGain  float32
	highGain float32
	lpAlpha  float32
	hpAlpha  float32
	lp, hp   float32
}

// NewEQ3Band creates a 3-band EQ. Gains of 1.0 are unity.
func NewEQ3Band(sampleRate int, lowGain, midGain, highGain, lowFreq, highFreq float32) *EQ3Band {
	lpRC := 1.0 / (2.0 * math.Pi * float64(lowFreq))
	hpRC := 1.0 / (2.0 * math.Pi * float64(highFreq))
	dt := 1.0 / float64(sampleRate)
	return &EQ3Band{
		lowGain:  lowGain,
		midGain:  midGain,
		highGain: highGain,
		lpAlpha:  float32(dt / (lpRC + dt)),
		hpAlpha:  float32(dt / (hpRC + dt)),
	}
}

func (eq *EQ3Band) Process(x float32) float32 {
	eq.lp += eq.lpAlpha * (x - eq.lp)
	low := eq.lp

	eq.hp += eq.hpAlpha * (x - eq.hp)
	high := x - eq.hp

	mid := x - low - high
	return low*eq.lowGain + mid*eq.midGain + high*eq.highGain
}

func (eq *EQ3Band) Reset() {
	eq.lp, eq.hp = 0, 0
}
