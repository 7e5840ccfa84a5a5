package effects

import (
	"math"
	"testing"
)

func TestReverbProducesTail(t *testing.T) {
	r := NewReverb(44100, 0.5, 0.7, 0.5)
	r.Process(1.0)
	var maxOut float32
	for i := 0; i < 10000; i++ {
		if out := r.Process(0); out > maxOut {
			maxOut = out
		}
	}
	if maxOut < 0.001 {
		t.Error("expected reverb tail")
	}
}

func TestReverbResetClearsTail(t *testing.T) {
	r := NewReverb(44100, 0.5, 0.7, 0.5)
	for i := 0; i < 100; i++ {
		r.Process(0.8)
	}
	r.Reset()
	for i := 0; i < 5000; i++ {
		if out := r.Process(0); out != 0 {
			t.Fatalf("expected silence after reset, got %f at %d", out, i)
		}
	}
}

func TestEQ3BandUnityGain(t *testing.T) {
	eq := NewEQ3Band(44100, 1.0, 1.0, 1.0, 300, 3000)
	for i := 0; i < 1000; i++ {
		eq.Process(0.5)
	}
	if out := eq.Process(0.5); math.Abs(float64(out)-0.5) > 0.1 {
		t.Errorf("expected ~0.5 with unity gains, got %f", out)
	}
}

func TestCompressorReducesLoud(t *testing.T) {
	c := NewCompressor(44100, -10, 4, 1, 50, 0)
	var out float32
	for i := 0; i < 1000; i++ {
		out = c.Process(1.0)
	}
	if out >= 1.0 {
		t.Errorf("compressor should reduce loud signals, got %f", out)
	}
}

func TestCompressorPassesQuiet(t *testing.T) {
	c := NewCompressor(44100, -10, 4, 1, 50, 0)
	var out float32
	for i := 0; i < 1000; i++ {
		out = c.Process(0.1)
	}
	if math.Abs(float64(out)-0.1) > 1e-6 {
		t.Errorf("quiet signal should pass unchanged, got %f", out)
	}
}

func TestChainAppliesEffectsInOrder(t *testing.T) {
	c := NewChain(
		NewEQ3Band(44100, 1, 1, 1, 300, 3000),
		NewReverb(44100, 0.3, 0.5, 0.3),
	)
	buf := []float32{0.5, 0, 0, 0}
	c.ProcessBuffer(buf)
	if buf[0] == 0 {
		t.Error("chain should produce output")
	}
	if c.Len() != 2 {
		t.Errorf("Len() = %d, want 2", c.Len())
	}
}

func TestEmptyChainIsIdentity(t *testing.T) {
	buf := []float32{0.25, -0.5}
	NewChain().ProcessBuffer(buf)
	if buf[0] != 0.25 || buf[1] != -0.5 {
		t.Errorf("empty chain changed input: %v", buf)
	}
}
